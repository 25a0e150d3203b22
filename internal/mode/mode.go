// Package mode implements the tool mode state machine. At most one
// mode is active; entering a mode exits the previous one first. Each
// mode registers its pointer handlers on the relevant overlay
// surfaces when entered and owns an arena of those registrations, so
// exit tears down exactly what enter set up — nothing leaks across
// mode switches.
package mode

import (
	"fmt"
	"time"

	"github.com/fakeyudi/pagemark/internal/engine"
	"github.com/fakeyudi/pagemark/internal/geom"
	"github.com/fakeyudi/pagemark/internal/marks"
	"github.com/fakeyudi/pagemark/internal/render"
)

// State is the active tool mode.
type State string

const (
	StateNone      State = "none"
	StateTextEdit  State = "text-edit"
	StateRedact    State = "redact"
	StateHighlight State = "annotate:highlight"
	StateUnderline State = "annotate:underline"
	StateSticky    State = "annotate:sticky"
	StateDraw      State = "annotate:draw"
	StateAddField  State = "add-field"
)

// MinDragSize is the minimum redaction drag extent, in screen pixels,
// required in both dimensions. Smaller drags are discarded.
const MinDragSize = 5.0

// Surfaces is the overlay stack the controller wires modes onto.
type Surfaces interface {
	Overlay(kind render.OverlayKind, page int) *render.Overlay
	Overlays(kind render.OverlayKind) []*render.Overlay
}

// Delegate receives the observable side effects of mode activity.
type Delegate interface {
	// BannerChanged reports the mode banner: empty text hides it.
	BannerChanged(s State, text string)
	// ApplyBarVisible tracks whether at least one redaction rect exists.
	ApplyBarVisible(visible bool)
	// MarkAdded fires for every mark a mode places.
	MarkAdded(m marks.Mark)
	// MarkRemoved fires when a mode deletes a mark.
	MarkRemoved(m marks.Mark)
	// NoteEditorToggled opens or closes the inline editor for a sticky
	// note.
	NoteEditorToggled(id string)
	// TextBoxOpened opens the inline editor for a freshly placed text
	// box.
	TextBoxOpened(id string)
	// FieldPlaced requests the immediate engine-side creation of a
	// form field.
	FieldPlaced(page int, at geom.Point, name string)
}

type registration struct {
	overlay *render.Overlay
	id      render.HandlerID
}

type dragState struct {
	page   int
	start  geom.Point
	cur    geom.Point
	active bool
}

type pathState struct {
	page   int
	points []geom.Point
	active bool
}

// Controller multiplexes the tool modes onto the shared overlay
// stack.
type Controller struct {
	state    State
	surfaces Surfaces
	store    *marks.Store
	delegate Delegate

	redactColor engine.Color
	drawColor   engine.Color
	drawStroke  float64

	regs []registration
	drag dragState
	path pathState

	// fieldClock names new form fields; a test can pin it.
	fieldClock func() time.Time
}

// NewController returns a controller in StateNone.
func NewController(surfaces Surfaces, store *marks.Store, delegate Delegate) *Controller {
	return &Controller{
		state:       StateNone,
		surfaces:    surfaces,
		store:       store,
		delegate:    delegate,
		redactColor: engine.Black,
		drawColor:   engine.Color{R: 220, Alpha: 1},
		drawStroke:  2,
		fieldClock:  time.Now,
	}
}

// State returns the active mode.
func (c *Controller) State() State { return c.state }

// SetStore swaps the mark store the modes write to, used when the
// active session changes. The active mode is exited first.
func (c *Controller) SetStore(store *marks.Store) {
	c.ExitAll()
	c.store = store
}

// Toggle enters s, exiting whatever mode was active. Toggling the
// mode that is already active exits it instead.
func (c *Controller) Toggle(s State) {
	if c.state == s {
		c.exit()
		return
	}
	c.exit()
	c.enter(s)
}

// Escape exits the active mode, matching the escape key binding.
func (c *Controller) Escape() { c.exit() }

// ExitAll exits the active mode; called when the workspace navigates
// away from the document.
func (c *Controller) ExitAll() { c.exit() }

// Reattach re-wires the active mode's handlers onto the current
// overlay set. The render pipeline rebuilds overlays on every layout,
// dropping old registrations, so the controller re-enters the mode in
// place.
func (c *Controller) Reattach() {
	s := c.state
	if s == StateNone {
		return
	}
	c.regs = nil
	c.drag = dragState{}
	c.path = pathState{}
	c.enter(s)
}

func (c *Controller) enter(s State) {
	c.state = s
	switch s {
	case StateNone:
		return
	case StateRedact:
		c.enterRedact()
	case StateHighlight, StateUnderline:
		c.enterClickAnnotate(s)
	case StateSticky:
		c.enterSticky()
	case StateDraw:
		c.enterDraw()
	case StateTextEdit:
		c.enterTextEdit()
	case StateAddField:
		c.enterAddField()
	}
	c.delegate.BannerChanged(s, bannerText(s))
}

// exit unregisters every handler the active mode attached and drops
// transient artifacts (drag preview, in-progress path).
func (c *Controller) exit() {
	for _, r := range c.regs {
		r.overlay.Unregister(r.id)
	}
	c.regs = nil
	c.drag = dragState{}
	c.path = pathState{}
	if c.state != StateNone {
		c.state = StateNone
		c.delegate.BannerChanged(StateNone, "")
	}
}

// attach registers h on every overlay of the given kind and records
// the registrations in the mode's arena.
func (c *Controller) attach(kind render.OverlayKind, h render.PointerHandler) {
	for _, o := range c.surfaces.Overlays(kind) {
		c.regs = append(c.regs, registration{overlay: o, id: o.Register(h)})
	}
}

func bannerText(s State) string {
	switch s {
	case StateRedact:
		return "Redact: drag to mark an area, right-click removes"
	case StateHighlight:
		return "Highlight: click to place"
	case StateUnderline:
		return "Underline: click to place"
	case StateSticky:
		return "Sticky note: click to add, click a note to edit, right-click deletes"
	case StateDraw:
		return "Draw: drag to sketch"
	case StateTextEdit:
		return "Text: click to place a text box"
	case StateAddField:
		return "Form field: click to place"
	}
	return ""
}

// ── Redact ──────────────────────────────────────────────────────────

func (c *Controller) enterRedact() {
	c.attach(render.OverlayRedaction, func(ev render.PointerEvent) {
		switch ev.Kind {
		case render.PointerDown:
			c.drag = dragState{page: ev.Page, start: ev.Pos, cur: ev.Pos, active: true}
		case render.PointerMove:
			if c.drag.active && c.drag.page == ev.Page {
				c.drag.cur = ev.Pos
			}
		case render.PointerUp:
			if !c.drag.active || c.drag.page != ev.Page {
				return
			}
			r := rectFromDrag(c.drag.start, ev.Pos)
			c.drag = dragState{}
			if r.W < MinDragSize || r.H < MinDragSize {
				return // too small, discard
			}
			m := marks.NewRedact(ev.Page, r, c.redactColor)
			c.store.Add(m)
			c.delegate.MarkAdded(m)
			c.delegate.ApplyBarVisible(true)
		case render.PointerRightClick:
			if m, ok := c.store.HitTest(ev.Page, ev.Pos, marks.KindRedact); ok {
				c.store.Remove(m.ID)
				c.delegate.MarkRemoved(m)
				c.delegate.ApplyBarVisible(c.store.CountKind(marks.KindRedact) > 0)
			}
		}
	})
}

// DragPreview returns the in-progress redaction rectangle for drawing
// feedback.
func (c *Controller) DragPreview() (page int, r geom.Rect, ok bool) {
	if !c.drag.active {
		return 0, geom.Rect{}, false
	}
	return c.drag.page, rectFromDrag(c.drag.start, c.drag.cur), true
}

func rectFromDrag(a, b geom.Point) geom.Rect {
	x, y := a.X, a.Y
	if b.X < x {
		x = b.X
	}
	if b.Y < y {
		y = b.Y
	}
	w, h := a.X-b.X, a.Y-b.Y
	if w < 0 {
		w = -w
	}
	if h < 0 {
		h = -h
	}
	return geom.Rect{X: x, Y: y, W: w, H: h}
}

// ── Highlight / Underline ───────────────────────────────────────────

func (c *Controller) enterClickAnnotate(s State) {
	c.attach(render.OverlayAnnotation, func(ev render.PointerEvent) {
		if ev.Kind != render.PointerClick {
			return
		}
		if c.store.Occupied(ev.Page, ev.Pos) {
			return // never stack a second mark on an existing one
		}
		var m marks.Mark
		if s == StateHighlight {
			m = marks.NewHighlight(ev.Page, ev.Pos)
		} else {
			m = marks.NewUnderline(ev.Page, ev.Pos)
		}
		c.store.Add(m)
		c.delegate.MarkAdded(m)
	})
}

// ── Sticky notes ────────────────────────────────────────────────────

func (c *Controller) enterSticky() {
	c.attach(render.OverlayAnnotation, func(ev render.PointerEvent) {
		switch ev.Kind {
		case render.PointerClick:
			if m, ok := c.store.HitTest(ev.Page, ev.Pos, marks.KindSticky); ok {
				c.delegate.NoteEditorToggled(m.ID)
				return
			}
			m := marks.NewSticky(ev.Page, ev.Pos)
			c.store.Add(m)
			c.delegate.MarkAdded(m)
		case render.PointerRightClick:
			if m, ok := c.store.HitTest(ev.Page, ev.Pos, marks.KindSticky); ok {
				c.store.Remove(m.ID)
				c.delegate.MarkRemoved(m)
			}
		}
	})
}

// ── Freehand drawing ────────────────────────────────────────────────

func (c *Controller) enterDraw() {
	c.attach(render.OverlayAnnotation, func(ev render.PointerEvent) {
		switch ev.Kind {
		case render.PointerDown:
			c.path = pathState{page: ev.Page, points: []geom.Point{ev.Pos}, active: true}
		case render.PointerMove:
			// Points accrue only on the page the stroke started on.
			if c.path.active && c.path.page == ev.Page {
				c.path.points = append(c.path.points, ev.Pos)
			}
		case render.PointerUp:
			if !c.path.active || c.path.page != ev.Page {
				return
			}
			pts := c.path.points
			c.path = pathState{}
			if len(pts) < 2 {
				return // a click is not a stroke
			}
			m := marks.NewPath(ev.Page, pts, c.drawColor, c.drawStroke)
			c.store.Add(m)
			c.delegate.MarkAdded(m)
		}
	})
}

// ActivePath returns the stroke being drawn, for incremental visual
// feedback.
func (c *Controller) ActivePath() (page int, pts []geom.Point, ok bool) {
	if !c.path.active {
		return 0, nil, false
	}
	return c.path.page, c.path.points, true
}

// ── Text boxes ──────────────────────────────────────────────────────

// Default text box geometry and font, screen units.
const (
	textBoxW        = 160.0
	textBoxH        = 40.0
	textBoxFontSize = 12.0
	textBoxFont     = "Helvetica"
)

func (c *Controller) enterTextEdit() {
	c.attach(render.OverlayTextEdit, func(ev render.PointerEvent) {
		if ev.Kind != render.PointerClick {
			return
		}
		if m, ok := c.store.HitTest(ev.Page, ev.Pos, marks.KindTextBox); ok {
			c.delegate.TextBoxOpened(m.ID)
			return
		}
		m := marks.NewTextBox(ev.Page,
			geom.Rect{X: ev.Pos.X, Y: ev.Pos.Y, W: textBoxW, H: textBoxH},
			"", textBoxFontSize, textBoxFont)
		c.store.Add(m)
		c.delegate.MarkAdded(m)
		c.delegate.TextBoxOpened(m.ID)
	})
}

// ── Form fields ─────────────────────────────────────────────────────

func (c *Controller) enterAddField() {
	c.attach(render.OverlayTextEdit, func(ev render.PointerEvent) {
		if ev.Kind != render.PointerClick {
			return
		}
		name := fmt.Sprintf("field_%d", c.fieldClock().UnixMilli())
		m := marks.NewFormField(ev.Page, ev.Pos, name)
		c.store.Add(m)
		c.delegate.MarkAdded(m)
		// Field creation goes to the engine immediately, unlike every
		// other mark kind.
		c.delegate.FieldPlaced(ev.Page, ev.Pos, name)
	})
}
