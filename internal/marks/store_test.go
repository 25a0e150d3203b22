package marks_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fakeyudi/pagemark/internal/engine"
	"github.com/fakeyudi/pagemark/internal/geom"
	"github.com/fakeyudi/pagemark/internal/marks"
)

func TestStoreAddAndByPage(t *testing.T) {
	s := marks.NewStore()
	s.Add(marks.NewRedact(2, geom.Rect{X: 10, Y: 10, W: 50, H: 20}, engine.Black))
	s.Add(marks.NewHighlight(2, geom.Point{X: 100, Y: 100}))
	s.Add(marks.NewHighlight(3, geom.Point{X: 5, Y: 5}))

	assert.Len(t, s.ByPage(2), 2)
	assert.Len(t, s.ByPage(3), 1)
	assert.Empty(t, s.ByPage(1))
	assert.Equal(t, []int{2, 3}, s.Pages())
	assert.Equal(t, 3, s.Count())
}

func TestHighlightCenteredOnClick(t *testing.T) {
	m := marks.NewHighlight(1, geom.Point{X: 200, Y: 300})
	assert.Equal(t, geom.Rect{X: 160, Y: 292, W: 80, H: 16}, m.Rect)

	u := marks.NewUnderline(1, geom.Point{X: 200, Y: 300})
	assert.Equal(t, geom.Rect{X: 160, Y: 299, W: 80, H: 2}, u.Rect)
}

func TestHitTestReturnsTopmost(t *testing.T) {
	s := marks.NewStore()
	first := marks.NewRedact(1, geom.Rect{X: 0, Y: 0, W: 100, H: 100}, engine.Black)
	second := marks.NewRedact(1, geom.Rect{X: 50, Y: 50, W: 100, H: 100}, engine.Black)
	s.Add(first)
	s.Add(second)

	got, ok := s.HitTest(1, geom.Point{X: 60, Y: 60}, marks.KindRedact)
	require.True(t, ok)
	assert.Equal(t, second.ID, got.ID)

	got, ok = s.HitTest(1, geom.Point{X: 10, Y: 10}, marks.KindRedact)
	require.True(t, ok)
	assert.Equal(t, first.ID, got.ID)

	_, ok = s.HitTest(1, geom.Point{X: 300, Y: 300}, marks.KindRedact)
	assert.False(t, ok)
}

func TestRemoveAndSetText(t *testing.T) {
	s := marks.NewStore()
	note := marks.NewSticky(1, geom.Point{X: 10, Y: 10})
	s.Add(note)

	require.True(t, s.SetText(note.ID, "call legal before filing"))
	got, ok := s.Get(note.ID)
	require.True(t, ok)
	assert.Equal(t, "call legal before filing", got.Text)

	removed, ok := s.Remove(note.ID)
	require.True(t, ok)
	assert.Equal(t, note.ID, removed.ID)
	assert.Zero(t, s.Count())

	_, ok = s.Remove("no-such-id")
	assert.False(t, ok)
}

func TestClearKind(t *testing.T) {
	s := marks.NewStore()
	s.Add(marks.NewRedact(1, geom.Rect{W: 10, H: 10}, engine.Black))
	s.Add(marks.NewRedact(2, geom.Rect{W: 10, H: 10}, engine.Black))
	s.Add(marks.NewSticky(1, geom.Point{}))

	assert.Equal(t, 2, s.ClearKind(marks.KindRedact))
	assert.Zero(t, s.CountKind(marks.KindRedact))
	assert.Equal(t, 1, s.CountKind(marks.KindSticky))
}

func TestPathBounds(t *testing.T) {
	pts := []geom.Point{{X: 10, Y: 40}, {X: 30, Y: 20}, {X: 25, Y: 60}}
	m := marks.NewPath(1, pts, engine.Color{R: 255, Alpha: 1}, 2)
	assert.Equal(t, geom.Rect{X: 10, Y: 20, W: 20, H: 40}, m.Rect)
	assert.Len(t, m.Points, 3)
}
