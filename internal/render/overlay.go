package render

import "github.com/fakeyudi/pagemark/internal/geom"

// OverlayKind names the three transparent surfaces stacked above each
// page raster. Only one tool mode's event wiring is active at a time,
// but the surfaces themselves always exist for every page.
type OverlayKind int

const (
	OverlayAnnotation OverlayKind = iota
	OverlayRedaction
	OverlayTextEdit
)

// PointerKind classifies a pointer event delivered to an overlay.
type PointerKind int

const (
	PointerDown PointerKind = iota
	PointerMove
	PointerUp
	PointerClick
	PointerRightClick
)

// PointerEvent is a pointer interaction on one page's overlay. Pos is
// in screen space relative to that page's top-left corner, so handlers
// never recompute which page was hit.
type PointerEvent struct {
	Page int
	Kind PointerKind
	Pos  geom.Point
}

// PointerHandler consumes pointer events from one overlay surface.
type PointerHandler func(PointerEvent)

// HandlerID identifies a registered handler for later removal.
type HandlerID int

// Overlay is one transparent surface above one page, tagged with the
// page number. Tool modes register handlers on enter and must remove
// exactly those handlers on exit.
type Overlay struct {
	Page int
	Kind OverlayKind

	nextID   HandlerID
	handlers map[HandlerID]PointerHandler
}

func newOverlay(page int, kind OverlayKind) *Overlay {
	return &Overlay{Page: page, Kind: kind, handlers: make(map[HandlerID]PointerHandler)}
}

// Register attaches h and returns its id.
func (o *Overlay) Register(h PointerHandler) HandlerID {
	o.nextID++
	o.handlers[o.nextID] = h
	return o.nextID
}

// Unregister removes the handler with the given id.
func (o *Overlay) Unregister(id HandlerID) {
	delete(o.handlers, id)
}

// HandlerCount returns the number of attached handlers.
func (o *Overlay) HandlerCount() int { return len(o.handlers) }

// Dispatch delivers ev to every registered handler.
func (o *Overlay) Dispatch(ev PointerEvent) {
	for _, h := range o.handlers {
		h(ev)
	}
}
