// Package editor wires the workspace, mark stores, tool modes, render
// pipeline and undo history into one explicit EditorSession object.
// Nothing in here is a package-level singleton: every collaborator is
// passed in and every component reaches shared state through the
// Editor it belongs to.
package editor

import (
	"context"
	"fmt"

	"github.com/fakeyudi/pagemark/internal/engine"
	"github.com/fakeyudi/pagemark/internal/geom"
	"github.com/fakeyudi/pagemark/internal/history"
	"github.com/fakeyudi/pagemark/internal/marks"
	"github.com/fakeyudi/pagemark/internal/mode"
	"github.com/fakeyudi/pagemark/internal/render"
	"github.com/fakeyudi/pagemark/internal/session"
)

// ControlSink enables and disables document-scoped controls by id.
type ControlSink interface {
	Enable(ids ...string)
	Disable(ids ...string)
}

// StatusSink receives status text during long operations and the mode
// banner.
type StatusSink interface {
	Status(text string)
	Banner(text string)
}

// Dialogs is the outward dialog surface: errors and confirmations are
// requested by the core but presented elsewhere.
type Dialogs interface {
	Error(msg string)
	Confirm(msg string) bool
}

// DocControls are the toolbar ids enabled while at least one document
// is open and disabled when the workspace empties.
var DocControls = []string{
	"save", "close-doc", "zoom-in", "zoom-out",
	"page-next", "page-prev", "rotate", "delete-pages", "extract-pages",
	"mode-text", "mode-redact", "mode-highlight", "mode-underline",
	"mode-sticky", "mode-draw", "mode-field", "undo", "redo",
}

// ApplyBarControl is the floating redaction apply bar's control id.
const ApplyBarControl = "redact-apply"

// Editor is the session object coordinating one workspace.
type Editor struct {
	ws       *session.Workspace
	eng      engine.Engine
	extract  engine.TextExtractor
	pipeline *render.Pipeline
	modes    *mode.Controller
	history  *history.Stack

	// One mark store per open session, keyed by session id.
	stores map[int]*marks.Store

	controls ControlSink
	status   StatusSink
	dialogs  Dialogs

	// OnEditRequest is invoked when a mode wants an inline text editor
	// opened for a mark (sticky note or text box). The rendering layer
	// sets it.
	OnEditRequest func(markID string)

	redactColor engine.Color
}

// Config collects the Editor's collaborators.
type Config struct {
	Engine     engine.Engine
	Rasterizer engine.Rasterizer
	Extractor  engine.TextExtractor
	Controls   ControlSink
	Status     StatusSink
	Dialogs    Dialogs
	UndoBound  int
	ThumbWidth int // thumbnail strip width in px; 0 keeps the default
}

// New builds an Editor with an empty workspace.
func New(cfg Config) *Editor {
	e := &Editor{
		ws:          session.NewWorkspace(cfg.Engine),
		eng:         cfg.Engine,
		extract:     cfg.Extractor,
		pipeline:    render.NewPipeline(cfg.Engine, cfg.Rasterizer),
		history:     history.New(cfg.UndoBound),
		stores:      make(map[int]*marks.Store),
		controls:    cfg.Controls,
		status:      cfg.Status,
		dialogs:     cfg.Dialogs,
		redactColor: engine.Black,
	}
	e.pipeline.SetThumbWidth(cfg.ThumbWidth)
	e.modes = mode.NewController(e.pipeline, marks.NewStore(), e)
	e.pipeline.OnLayout(e.modes.Reattach)
	return e
}

// Workspace exposes the underlying workspace.
func (e *Editor) Workspace() *session.Workspace { return e.ws }

// Pipeline exposes the render pipeline.
func (e *Editor) Pipeline() *render.Pipeline { return e.pipeline }

// Modes exposes the tool mode controller.
func (e *Editor) Modes() *mode.Controller { return e.modes }

// History exposes the undo stack.
func (e *Editor) History() *history.Stack { return e.history }

// Marks returns the active session's mark store, or nil when the
// workspace is empty.
func (e *Editor) Marks() *marks.Store {
	s := e.ws.Active()
	if s == nil {
		return nil
	}
	return e.stores[s.ID]
}

// ── Lifecycle ───────────────────────────────────────────────────────

// Open loads data as a new active session. On a load failure the
// workspace is untouched, the user gets a dialog, and the error is
// returned.
func (e *Editor) Open(ctx context.Context, data []byte, name string) (*session.DocumentSession, error) {
	s, err := e.ws.Open(ctx, data, name)
	if err != nil {
		e.dialogs.Error(fmt.Sprintf("Could not open %s: %v", name, err))
		return nil, err
	}
	e.stores[s.ID] = marks.NewStore()
	e.modes.SetStore(e.stores[s.ID])
	e.controls.Enable(DocControls...)
	e.pipeline.Layout(s)
	e.refreshThumbs(ctx)
	return s, nil
}

// SwitchTo activates the session with the given id, re-laying out the
// view. Unknown ids are a no-op.
func (e *Editor) SwitchTo(id int) {
	if !e.ws.SwitchTo(id) {
		return
	}
	s := e.ws.Active()
	e.modes.SetStore(e.stores[s.ID])
	e.pipeline.Layout(s)
}

// Close removes the session with the given id, exiting any active
// mode and dropping its marks and history. When the last session goes
// all document-scoped controls are disabled.
func (e *Editor) Close(id int) {
	e.modes.ExitAll()
	if !e.ws.Close(id) {
		return
	}
	delete(e.stores, id)
	e.history.DropSession(id)

	s := e.ws.Active()
	if s == nil {
		e.controls.Disable(DocControls...)
		e.controls.Disable(ApplyBarControl)
		return
	}
	e.modes.SetStore(e.stores[s.ID])
	e.pipeline.Layout(s)
}

// ── Navigation ──────────────────────────────────────────────────────

// GoToPage clamps n and returns the programmatic scroll offset for
// it. Scroll tracking is suppressed for the cooldown window.
func (e *Editor) GoToPage(n int) float64 {
	s := e.ws.Active()
	if s == nil {
		return 0
	}
	s.SetCurrentPage(n)
	return e.pipeline.ScrollTo(s.CurrentPage)
}

// SetZoom clamps and applies z, re-laying out the pages.
func (e *Editor) SetZoom(z float64) {
	s := e.ws.Active()
	if s == nil {
		return
	}
	s.SetZoom(z)
	e.pipeline.Layout(s)
}

// ScrollChanged feeds a user scroll position into current-page
// tracking.
func (e *Editor) ScrollChanged(viewportTop, viewportHeight float64) {
	s := e.ws.Active()
	if s == nil {
		return
	}
	if page := e.pipeline.CurrentPageForScroll(viewportTop, viewportHeight); page > 0 {
		s.CurrentPage = page
	}
}

// RefreshThumbnails regenerates the active session's thumbnail strip.
func (e *Editor) RefreshThumbnails(ctx context.Context) error {
	s := e.ws.Active()
	if s == nil {
		return nil
	}
	thumbs, err := e.pipeline.Thumbnails(ctx, s)
	if err != nil {
		if engine.IsCancelled(err) {
			return nil
		}
		return err
	}
	s.Thumbs = thumbs
	return nil
}

// refreshThumbs is the best-effort variant used after opens and
// commits: a failed thumbnail pass surfaces as status text, never as
// an error on the operation that triggered it.
func (e *Editor) refreshThumbs(ctx context.Context) {
	if err := e.RefreshThumbnails(ctx); err != nil {
		e.status.Status(fmt.Sprintf("Thumbnails unavailable: %v", err))
	}
}

// ── mode.Delegate ───────────────────────────────────────────────────

// BannerChanged forwards the mode banner to the status surface.
func (e *Editor) BannerChanged(_ mode.State, text string) {
	e.status.Banner(text)
}

// ApplyBarVisible toggles the floating redaction apply bar.
func (e *Editor) ApplyBarVisible(visible bool) {
	if visible {
		e.controls.Enable(ApplyBarControl)
	} else {
		e.controls.Disable(ApplyBarControl)
	}
}

// MarkAdded records an additive, in-memory action so the mark can be
// undone (and redone) without touching the document bytes.
func (e *Editor) MarkAdded(m marks.Mark) {
	s := e.ws.Active()
	if s == nil {
		return
	}
	if m.Kind == marks.KindFormField {
		// Form fields go straight to the engine; the snapshot pushed by
		// FieldPlaced covers their undo.
		return
	}
	op := history.OpAddMark
	if m.Kind == marks.KindTextBox {
		op = history.OpAddText
	}
	e.history.Push(history.Action{Op: op, SessionID: s.ID, Mark: m, Additive: true})
}

// MarkRemoved is informational; explicit mark deletion is not
// undoable in this design.
func (e *Editor) MarkRemoved(marks.Mark) {}

// NoteEditorToggled asks the rendering layer for a sticky note's
// inline editor.
func (e *Editor) NoteEditorToggled(id string) {
	if e.OnEditRequest != nil {
		e.OnEditRequest(id)
	}
}

// TextBoxOpened asks the rendering layer for a text box editor.
func (e *Editor) TextBoxOpened(id string) {
	if e.OnEditRequest != nil {
		e.OnEditRequest(id)
	}
}

// FieldPlaced creates the form field in the document engine
// immediately, unlike every other mark kind, which stays in memory
// until an explicit commit.
func (e *Editor) FieldPlaced(page int, at geom.Point, name string) {
	s := e.ws.Active()
	if s == nil {
		return
	}
	zoom := s.Zoom
	pageH := s.PageSize(page).H
	err := e.mutate(context.Background(), history.OpAddField, 0, func(ctx context.Context, doc engine.Document) error {
		return doc.AddFormField(ctx, page, geom.ToDocumentPoint(at, zoom, pageH), name)
	})
	if err != nil {
		e.dialogs.Error(fmt.Sprintf("Could not add form field: %v", err))
	}
	// The document renders the field now; the placement mark has
	// served its purpose either way.
	if st := e.Marks(); st != nil {
		for _, m := range st.OfKind(page, marks.KindFormField) {
			if m.FieldName == name {
				st.Remove(m.ID)
			}
		}
	}
}
