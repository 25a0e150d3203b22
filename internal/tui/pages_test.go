package tui

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fakeyudi/pagemark/internal/engine"
	"github.com/fakeyudi/pagemark/internal/geom"
	"github.com/fakeyudi/pagemark/internal/marks"
	"github.com/fakeyudi/pagemark/internal/render"
)

func frameWith(pages ...render.PageSurface) *render.Frame {
	return &render.Frame{Pages: pages}
}

func TestRenderPagesStampsRedactCells(t *testing.T) {
	st := marks.NewStore()
	st.Add(marks.NewRedact(1, geom.Rect{X: 40, Y: 48, W: 80, H: 32}, engine.Black))

	out := renderPages(frameWith(render.PageSurface{
		Page:   1,
		Bounds: geom.Rect{X: 0, Y: 0, W: 612, H: 792},
	}), 1.0, st, nil, nil)

	assert.Contains(t, out, string(glyphRedact))
	assert.Contains(t, out, "page 1")
}

func TestRenderPagesMarksSelection(t *testing.T) {
	out := renderPages(frameWith(
		render.PageSurface{Page: 1, Bounds: geom.Rect{W: 612, H: 792}},
		render.PageSurface{Page: 2, Bounds: geom.Rect{W: 612, H: 792}},
	), 1.0, marks.NewStore(), []int{2}, nil)

	assert.Contains(t, out, "page 2 ✓")
	assert.NotContains(t, out, "page 1 ✓")
}

func TestRenderPagesShowsFailedPlaceholder(t *testing.T) {
	out := renderPages(frameWith(render.PageSurface{
		Page:   1,
		Bounds: geom.Rect{W: 612, H: 792},
		Failed: true,
	}), 1.0, marks.NewStore(), nil, nil)

	assert.Contains(t, out, "render failed")
}

func TestRenderPagesTextBoxLabelFirstLineOnly(t *testing.T) {
	st := marks.NewStore()
	m := marks.NewTextBox(1, geom.Rect{X: 80, Y: 80, W: 160, H: 48}, "first line\nsecond line", 12, "Helvetica")
	st.Add(m)

	out := renderPages(frameWith(render.PageSurface{
		Page:   1,
		Bounds: geom.Rect{W: 612, H: 792},
	}), 1.0, st, nil, nil)

	assert.Contains(t, out, "first line")
	assert.False(t, strings.Contains(out, "second line"))
}
