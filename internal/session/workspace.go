package session

import (
	"context"
	"fmt"

	"github.com/fakeyudi/pagemark/internal/engine"
)

// Workspace is the ordered collection of open sessions. Insertion
// order is tab order. The active index is -1 exactly when the
// workspace is empty.
type Workspace struct {
	eng      engine.Engine
	sessions []*DocumentSession
	active   int
	nextID   int
}

// NewWorkspace returns an empty workspace backed by eng.
func NewWorkspace(eng engine.Engine) *Workspace {
	return &Workspace{eng: eng, active: -1, nextID: 1}
}

// Sessions returns the open sessions in tab order.
func (w *Workspace) Sessions() []*DocumentSession { return w.sessions }

// Active returns the active session, or nil when the workspace is
// empty.
func (w *Workspace) Active() *DocumentSession {
	if w.active < 0 {
		return nil
	}
	return w.sessions[w.active]
}

// ActiveIndex returns the active tab index, -1 when empty.
func (w *Workspace) ActiveIndex() int { return w.active }

// Len returns the number of open sessions.
func (w *Workspace) Len() int { return len(w.sessions) }

// Open decodes data through the engine and appends a new active
// session with page 1 current, zoom 1 and an empty selection. A load
// failure leaves the workspace unchanged.
func (w *Workspace) Open(ctx context.Context, data []byte, name string) (*DocumentSession, error) {
	pageCount, dims, err := w.inspect(ctx, data)
	if err != nil {
		return nil, err
	}

	s := &DocumentSession{
		ID:          w.nextID,
		Name:        name,
		data:        data,
		pageCount:   pageCount,
		pageDims:    dims,
		CurrentPage: 1,
		Zoom:        1.0,
		selected:    make(map[int]bool),
	}
	w.nextID++
	w.sessions = append(w.sessions, s)
	w.active = len(w.sessions) - 1
	return s, nil
}

// SwitchTo makes the session with the given id active. Unknown ids
// are a no-op. The session's page, zoom and selection are untouched,
// so switching away and back preserves them exactly.
func (w *Workspace) SwitchTo(id int) bool {
	for i, s := range w.sessions {
		if s.ID == id {
			w.active = i
			return true
		}
	}
	return false
}

// SwitchIndex makes the tab at index i active.
func (w *Workspace) SwitchIndex(i int) bool {
	if i < 0 || i >= len(w.sessions) {
		return false
	}
	w.active = i
	return true
}

// Close removes the session with the given id. When the active
// session closes and others remain, the session now occupying the
// same index becomes active (or the last one if the index fell off
// the end). Closing the final session leaves the workspace empty.
func (w *Workspace) Close(id int) bool {
	idx := -1
	for i, s := range w.sessions {
		if s.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}
	w.sessions = append(w.sessions[:idx:idx], w.sessions[idx+1:]...)

	switch {
	case len(w.sessions) == 0:
		w.active = -1
	case w.active == idx:
		if idx >= len(w.sessions) {
			idx = len(w.sessions) - 1
		}
		w.active = idx
	case w.active > idx:
		w.active--
	}
	return true
}

// CommitActive replaces the active session's bytes with newBytes:
// page count and page sizes are recomputed, the current page is
// clamped, the selection cleared and thumbnails invalidated. keepPage
// selects the page to restore scroll to; 0 keeps the previous current
// page. The old byte slice is never patched, so in-flight renders
// holding it stay valid.
func (w *Workspace) CommitActive(ctx context.Context, newBytes []byte, keepPage int) error {
	s := w.Active()
	if s == nil {
		return fmt.Errorf("no active session")
	}
	pageCount, dims, err := w.inspect(ctx, newBytes)
	if err != nil {
		return fmt.Errorf("inspecting committed bytes: %w", err)
	}
	s.replaceBytes(newBytes, pageCount, dims, keepPage)
	return nil
}

// inspect loads data just long enough to read page count and sizes.
func (w *Workspace) inspect(ctx context.Context, data []byte) (int, []PageDims, error) {
	doc, err := w.eng.Load(ctx, data)
	if err != nil {
		return 0, nil, err
	}
	defer doc.Close()

	n := doc.PageCount()
	dims := make([]PageDims, n)
	for p := 1; p <= n; p++ {
		pw, ph, err := doc.PageSize(p)
		if err != nil {
			return 0, nil, fmt.Errorf("page %d size: %w", p, err)
		}
		dims[p-1] = PageDims{W: pw, H: ph}
	}
	return n, dims, nil
}
