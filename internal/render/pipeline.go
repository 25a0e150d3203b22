// Package render lays out and rasterizes every page of the active
// session into a scrollable continuous area, maintains the per-page
// overlay surfaces, and tracks which page is current from the scroll
// position. Rendering is generation-counted: a new render for a
// session supersedes the in-flight one, and results arriving for an
// old generation are discarded rather than applied.
package render

import (
	"context"
	"image"
	"math"
	"time"

	"github.com/fakeyudi/pagemark/internal/engine"
	"github.com/fakeyudi/pagemark/internal/geom"
	"github.com/fakeyudi/pagemark/internal/session"
)

// PageGap is the vertical spacing between pages in screen units.
const PageGap = 12.0

// DefaultThumbWidth is the fixed thumbnail width in pixels,
// independent of the main zoom.
const DefaultThumbWidth = 120

// PageSurface is one laid-out page: its position in the scroll area
// (screen space at the session zoom) and its raster, once rendered.
// Failed surfaces keep a nil Image and are painted as placeholders.
type PageSurface struct {
	Page   int
	Bounds geom.Rect
	Image  image.Image
	Failed bool
}

// Frame is the immutable result of one full render pass.
type Frame struct {
	Generation uint64
	SessionID  int
	Version    int
	Zoom       float64
	Pages      []PageSurface
	// TotalHeight is the height of the whole scroll area.
	TotalHeight float64
}

// Pipeline renders the active session and owns its overlay stack.
type Pipeline struct {
	ras        engine.Rasterizer
	eng        engine.Engine
	thumbWidth int

	generation uint64
	cancel     context.CancelFunc

	frame    *Frame
	overlays map[OverlayKind]map[int]*Overlay
	onLayout []func()

	// Current-page tracking from scroll position is suppressed for a
	// cooldown window after every programmatic scroll, so navigation
	// does not feed back into itself.
	trackingOffUntil time.Time
	now              func() time.Time
}

// NewPipeline returns a pipeline backed by the given engine and
// rasterizer.
func NewPipeline(eng engine.Engine, ras engine.Rasterizer) *Pipeline {
	return &Pipeline{
		ras:        ras,
		eng:        eng,
		thumbWidth: DefaultThumbWidth,
		overlays:   make(map[OverlayKind]map[int]*Overlay),
		now:        time.Now,
	}
}

// SetThumbWidth overrides the thumbnail width in pixels. Non-positive
// widths keep the default.
func (p *Pipeline) SetThumbWidth(w int) {
	if w > 0 {
		p.thumbWidth = w
	}
}

// OnLayout registers a callback invoked after every layout rebuild,
// used by the tool mode controller to re-attach its listeners to the
// fresh overlay set.
func (p *Pipeline) OnLayout(fn func()) {
	p.onLayout = append(p.onLayout, fn)
}

// Layout positions every page of s vertically at its zoom and
// rebuilds the three overlay surfaces per page. Previously registered
// overlay handlers are dropped; OnLayout callbacks fire so modes can
// re-wire.
func (p *Pipeline) Layout(s *session.DocumentSession) *Frame {
	f := &Frame{
		Generation: p.generation,
		SessionID:  s.ID,
		Version:    s.Version,
		Zoom:       s.Zoom,
	}
	y := 0.0
	for n := 1; n <= s.PageCount(); n++ {
		dims := s.PageSize(n)
		b := geom.Rect{X: 0, Y: y, W: dims.W * s.Zoom, H: dims.H * s.Zoom}
		f.Pages = append(f.Pages, PageSurface{Page: n, Bounds: b})
		y += b.H + PageGap
	}
	f.TotalHeight = y
	p.frame = f

	p.overlays = make(map[OverlayKind]map[int]*Overlay)
	for _, kind := range []OverlayKind{OverlayAnnotation, OverlayRedaction, OverlayTextEdit} {
		p.overlays[kind] = make(map[int]*Overlay)
		for n := 1; n <= s.PageCount(); n++ {
			p.overlays[kind][n] = newOverlay(n, kind)
		}
	}
	for _, fn := range p.onLayout {
		fn()
	}
	return f
}

// Frame returns the last laid-out frame, or nil.
func (p *Pipeline) Frame() *Frame { return p.frame }

// Overlay returns the surface of the given kind on the given page, or
// nil before the first layout.
func (p *Pipeline) Overlay(kind OverlayKind, page int) *Overlay {
	return p.overlays[kind][page]
}

// Overlays returns every surface of one kind in page order.
func (p *Pipeline) Overlays(kind OverlayKind) []*Overlay {
	byPage := p.overlays[kind]
	out := make([]*Overlay, 0, len(byPage))
	if p.frame != nil {
		for _, ps := range p.frame.Pages {
			if o := byPage[ps.Page]; o != nil {
				out = append(out, o)
			}
		}
	}
	return out
}

// Begin starts a new render generation, cancelling any in-flight one.
// The returned context is cancelled when a later Begin supersedes it.
func (p *Pipeline) Begin(ctx context.Context) (context.Context, uint64) {
	if p.cancel != nil {
		p.cancel()
	}
	p.generation++
	ctx, p.cancel = context.WithCancel(ctx)
	return ctx, p.generation
}

// Stale reports whether gen has been superseded by a newer render.
func (p *Pipeline) Stale(gen uint64) bool { return gen != p.generation }

// RenderAll rasterizes every page of s into a fresh frame. A
// cancelled page render stops the pass silently; any other per-page
// failure marks that surface as a placeholder and rendering continues
// with the remaining pages.
func (p *Pipeline) RenderAll(ctx context.Context, s *session.DocumentSession, gen uint64) (*Frame, error) {
	doc, err := p.eng.Load(ctx, s.Bytes())
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	f := &Frame{
		Generation: gen,
		SessionID:  s.ID,
		Version:    s.Version,
		Zoom:       s.Zoom,
	}
	y := 0.0
	for n := 1; n <= s.PageCount(); n++ {
		dims := s.PageSize(n)
		surf := PageSurface{
			Page:   n,
			Bounds: geom.Rect{X: 0, Y: y, W: dims.W * s.Zoom, H: dims.H * s.Zoom},
		}
		img, err := p.ras.RenderPage(ctx, doc, n, s.Zoom)
		switch {
		case engine.IsCancelled(err) || ctx.Err() != nil:
			// Superseded: drop the whole pass, not an error.
			return nil, engine.ErrRenderCancelled
		case err != nil:
			surf.Failed = true
		default:
			surf.Image = img
		}
		f.Pages = append(f.Pages, surf)
		y += surf.Bounds.H + PageGap
	}
	f.TotalHeight = y
	return f, nil
}

// Apply installs a completed frame unless a newer generation has
// started since, in which case it is discarded and Apply reports
// false.
func (p *Pipeline) Apply(f *Frame) bool {
	if f == nil || p.Stale(f.Generation) {
		return false
	}
	p.frame = f
	return true
}

// Thumbnails renders every page of s at the fixed thumbnail width,
// once per commit, independent of the main zoom. Pages that fail to
// render are skipped.
func (p *Pipeline) Thumbnails(ctx context.Context, s *session.DocumentSession) ([]session.Thumbnail, error) {
	doc, err := p.eng.Load(ctx, s.Bytes())
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	thumbs := make([]session.Thumbnail, 0, s.PageCount())
	for n := 1; n <= s.PageCount(); n++ {
		dims := s.PageSize(n)
		if dims.W <= 0 {
			continue
		}
		scale := float64(p.thumbWidth) / dims.W
		img, err := p.ras.RenderPage(ctx, doc, n, scale)
		if err != nil {
			if engine.IsCancelled(err) {
				return nil, engine.ErrRenderCancelled
			}
			continue
		}
		thumbs = append(thumbs, session.Thumbnail{Page: n, Image: img})
	}
	return thumbs, nil
}

// CurrentPageForScroll returns the page whose rendered bounds are
// closest to the viewport's vertical midpoint, or 0 while tracking is
// suppressed or no frame exists.
func (p *Pipeline) CurrentPageForScroll(viewportTop, viewportHeight float64) int {
	if p.frame == nil || len(p.frame.Pages) == 0 {
		return 0
	}
	if p.now().Before(p.trackingOffUntil) {
		return 0
	}
	mid := viewportTop + viewportHeight/2
	best := 0
	bestDist := math.Inf(1)
	for _, ps := range p.frame.Pages {
		center := ps.Bounds.Y + ps.Bounds.H/2
		if d := math.Abs(center - mid); d < bestDist {
			bestDist = d
			best = ps.Page
		}
	}
	return best
}

// TrackingCooldown is how long scroll tracking stays off after a
// programmatic scroll.
const TrackingCooldown = 350 * time.Millisecond

// ScrollTo returns the scroll offset that puts page n at the top of
// the viewport and suppresses scroll tracking for the cooldown
// window.
func (p *Pipeline) ScrollTo(n int) float64 {
	p.trackingOffUntil = p.now().Add(TrackingCooldown)
	if p.frame == nil {
		return 0
	}
	for _, ps := range p.frame.Pages {
		if ps.Page == n {
			return ps.Bounds.Y
		}
	}
	return 0
}

// PageAt resolves a position in the scroll area to (page, position
// within that page). ok is false in the gaps between pages.
func (p *Pipeline) PageAt(pos geom.Point) (page int, local geom.Point, ok bool) {
	if p.frame == nil {
		return 0, geom.Point{}, false
	}
	for _, ps := range p.frame.Pages {
		if ps.Bounds.Contains(pos) {
			return ps.Page, geom.Point{X: pos.X - ps.Bounds.X, Y: pos.Y - ps.Bounds.Y}, true
		}
	}
	return 0, geom.Point{}, false
}
