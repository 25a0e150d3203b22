package render

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fakeyudi/pagemark/internal/engine"
	"github.com/fakeyudi/pagemark/internal/engine/enginetest"
	"github.com/fakeyudi/pagemark/internal/geom"
	"github.com/fakeyudi/pagemark/internal/session"
)

func openSession(t *testing.T, pages int) (*session.Workspace, *session.DocumentSession) {
	t.Helper()
	w := session.NewWorkspace(&enginetest.Engine{})
	s, err := w.Open(context.Background(), enginetest.DocBytes(pages), "doc.pdf")
	require.NoError(t, err)
	return w, s
}

func TestLayoutStacksPagesWithGap(t *testing.T) {
	_, s := openSession(t, 3)
	s.SetZoom(2.0)
	p := NewPipeline(&enginetest.Engine{}, &enginetest.Rasterizer{})

	f := p.Layout(s)
	require.Len(t, f.Pages, 3)
	assert.Equal(t, 0.0, f.Pages[0].Bounds.Y)
	assert.Equal(t, enginetest.PageHeight*2, f.Pages[0].Bounds.H)
	assert.Equal(t, enginetest.PageHeight*2+PageGap, f.Pages[1].Bounds.Y)
	assert.Equal(t, 3*(enginetest.PageHeight*2+PageGap), f.TotalHeight)
}

func TestLayoutBuildsThreeOverlaysPerPage(t *testing.T) {
	_, s := openSession(t, 2)
	p := NewPipeline(&enginetest.Engine{}, &enginetest.Rasterizer{})
	p.Layout(s)

	for _, kind := range []OverlayKind{OverlayAnnotation, OverlayRedaction, OverlayTextEdit} {
		surfaces := p.Overlays(kind)
		require.Len(t, surfaces, 2)
		assert.Equal(t, 1, surfaces[0].Page)
		assert.Equal(t, 2, surfaces[1].Page)
	}
}

func TestOnLayoutFires(t *testing.T) {
	_, s := openSession(t, 1)
	p := NewPipeline(&enginetest.Engine{}, &enginetest.Rasterizer{})
	fired := 0
	p.OnLayout(func() { fired++ })

	p.Layout(s)
	p.Layout(s)
	assert.Equal(t, 2, fired)
}

func TestRenderAllContinuesPastFailedPage(t *testing.T) {
	_, s := openSession(t, 3)
	ras := &enginetest.Rasterizer{FailPages: map[int]error{2: errors.New("boom")}}
	p := NewPipeline(&enginetest.Engine{}, ras)

	ctx, gen := p.Begin(context.Background())
	f, err := p.RenderAll(ctx, s, gen)
	require.NoError(t, err)
	require.Len(t, f.Pages, 3)
	assert.NotNil(t, f.Pages[0].Image)
	assert.True(t, f.Pages[1].Failed, "failed page becomes a placeholder")
	assert.Nil(t, f.Pages[1].Image)
	assert.NotNil(t, f.Pages[2].Image, "failure must not abort later pages")
}

func TestSupersededRenderIsDiscarded(t *testing.T) {
	_, s := openSession(t, 2)
	p := NewPipeline(&enginetest.Engine{}, &enginetest.Rasterizer{})

	ctx1, gen1 := p.Begin(context.Background())
	_, gen2 := p.Begin(context.Background())

	// The first generation's context is cancelled by the second Begin.
	_, err := p.RenderAll(ctx1, s, gen1)
	require.Error(t, err)
	assert.True(t, engine.IsCancelled(err), "superseded render cancels, it does not fail")

	// A stale frame is never applied.
	assert.True(t, p.Stale(gen1))
	assert.False(t, p.Apply(&Frame{Generation: gen1}))
	assert.True(t, p.Apply(&Frame{Generation: gen2}))
}

func TestCurrentPageForScrollUsesViewportMidpoint(t *testing.T) {
	_, s := openSession(t, 3)
	p := NewPipeline(&enginetest.Engine{}, &enginetest.Rasterizer{})
	p.Layout(s)

	pageH := enginetest.PageHeight + PageGap
	assert.Equal(t, 1, p.CurrentPageForScroll(0, 100))
	assert.Equal(t, 2, p.CurrentPageForScroll(pageH, 100))
	assert.Equal(t, 3, p.CurrentPageForScroll(2*pageH+500, 100))
}

func TestScrollTrackingSuppressedAfterProgrammaticScroll(t *testing.T) {
	_, s := openSession(t, 3)
	p := NewPipeline(&enginetest.Engine{}, &enginetest.Rasterizer{})
	p.Layout(s)

	now := time.Now()
	p.now = func() time.Time { return now }

	offset := p.ScrollTo(3)
	assert.Greater(t, offset, 0.0)

	// Inside the cooldown the scroll listener reports nothing.
	assert.Equal(t, 0, p.CurrentPageForScroll(offset, 100))

	// After the cooldown tracking resumes.
	now = now.Add(TrackingCooldown + time.Millisecond)
	assert.Equal(t, 3, p.CurrentPageForScroll(offset, 100))
}

func TestThumbnailsFixedWidth(t *testing.T) {
	_, s := openSession(t, 2)
	s.SetZoom(3.0) // thumbnails ignore the main zoom
	p := NewPipeline(&enginetest.Engine{}, &enginetest.Rasterizer{})

	thumbs, err := p.Thumbnails(context.Background(), s)
	require.NoError(t, err)
	require.Len(t, thumbs, 2)
	for _, th := range thumbs {
		assert.Equal(t, DefaultThumbWidth, th.Image.Bounds().Dx())
	}
}

func TestThumbnailsConfiguredWidth(t *testing.T) {
	_, s := openSession(t, 1)
	p := NewPipeline(&enginetest.Engine{}, &enginetest.Rasterizer{})
	p.SetThumbWidth(64)

	thumbs, err := p.Thumbnails(context.Background(), s)
	require.NoError(t, err)
	require.Len(t, thumbs, 1)
	assert.Equal(t, 64, thumbs[0].Image.Bounds().Dx())
}

func TestPageAtResolvesGapAndPages(t *testing.T) {
	_, s := openSession(t, 2)
	p := NewPipeline(&enginetest.Engine{}, &enginetest.Rasterizer{})
	p.Layout(s)

	page, local, ok := p.PageAt(geom.Point{X: 10, Y: 20})
	require.True(t, ok)
	assert.Equal(t, 1, page)
	assert.Equal(t, geom.Point{X: 10, Y: 20}, local)

	// Inside the gap between pages nothing is hit.
	_, _, ok = p.PageAt(geom.Point{X: 10, Y: enginetest.PageHeight + PageGap/2})
	assert.False(t, ok)

	page, local, ok = p.PageAt(geom.Point{X: 5, Y: enginetest.PageHeight + PageGap + 7})
	require.True(t, ok)
	assert.Equal(t, 2, page)
	assert.Equal(t, 7.0, local.Y)
}

func TestOverlayRegisterDispatchUnregister(t *testing.T) {
	o := newOverlay(4, OverlayRedaction)
	var got []PointerEvent
	id := o.Register(func(ev PointerEvent) { got = append(got, ev) })

	o.Dispatch(PointerEvent{Page: 4, Kind: PointerClick, Pos: geom.Point{X: 1, Y: 2}})
	require.Len(t, got, 1)
	assert.Equal(t, 4, got[0].Page)

	o.Unregister(id)
	o.Dispatch(PointerEvent{Page: 4, Kind: PointerClick})
	assert.Len(t, got, 1)
	assert.Zero(t, o.HandlerCount())
}
