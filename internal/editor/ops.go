package editor

import (
	"context"
	"fmt"
	"strings"

	"github.com/fakeyudi/pagemark/internal/engine"
	"github.com/fakeyudi/pagemark/internal/geom"
	"github.com/fakeyudi/pagemark/internal/history"
	"github.com/fakeyudi/pagemark/internal/marks"
)

// Fallback glyph box for search matches when the extractor reports no
// geometry: 6 screen px per character, 12 px tall.
const (
	fallbackCharW = 6.0
	fallbackRunH  = 12.0
)

// mutate runs one engine mutation against the active session: load
// the current bytes, apply fn, save, and commit the new bytes. The
// pre-action bytes are pushed as an undo snapshot only after the
// whole chain succeeds; any failure leaves the session's bytes and
// rendered view exactly as they were.
func (e *Editor) mutate(ctx context.Context, op history.Op, keepPage int, fn func(context.Context, engine.Document) error) error {
	s := e.ws.Active()
	if s == nil {
		return fmt.Errorf("no open document")
	}
	prev := s.Bytes()

	doc, err := e.eng.Load(ctx, prev)
	if err != nil {
		return err
	}
	defer doc.Close()

	if err := fn(ctx, doc); err != nil {
		return err
	}
	newBytes, err := doc.Save(ctx)
	if err != nil {
		return err
	}
	if err := e.ws.CommitActive(ctx, newBytes, keepPage); err != nil {
		return err
	}

	e.history.Push(history.Action{Op: op, SessionID: s.ID, Snapshot: prev})
	e.pipeline.Layout(s)
	// The commit replaced the rendered content wholesale: scroll back
	// to the kept page and rebuild the thumbnail strip.
	e.pipeline.ScrollTo(s.CurrentPage)
	e.refreshThumbs(ctx)
	return nil
}

// DeleteSelectedPages removes the selected pages. Deleting nothing or
// everything is rejected before any engine call.
func (e *Editor) DeleteSelectedPages(ctx context.Context) error {
	s := e.ws.Active()
	if s == nil {
		return fmt.Errorf("no open document")
	}
	sel := s.Selected()
	if len(sel) == 0 {
		err := &engine.ValidationError{Reason: "no pages selected"}
		e.dialogs.Error(err.Reason)
		return err
	}
	if len(sel) == s.PageCount() {
		err := &engine.ValidationError{Reason: "cannot delete all pages"}
		e.dialogs.Error(err.Reason)
		return err
	}
	if !e.dialogs.Confirm(fmt.Sprintf("Delete %d page(s)?", len(sel))) {
		return nil
	}
	if err := e.mutate(ctx, history.OpDelete, 0, func(ctx context.Context, doc engine.Document) error {
		return doc.RemovePages(ctx, sel)
	}); err != nil {
		e.dialogs.Error(fmt.Sprintf("Could not delete pages: %v", err))
		return err
	}
	e.status.Status(fmt.Sprintf("Deleted %d page(s)", len(sel)))
	return nil
}

// ExtractSelected returns a new document containing only the selected
// pages. The open document is not modified. An empty selection is
// rejected before any engine call.
func (e *Editor) ExtractSelected(ctx context.Context) ([]byte, error) {
	s := e.ws.Active()
	if s == nil {
		return nil, fmt.Errorf("no open document")
	}
	sel := s.Selected()
	if len(sel) == 0 {
		err := &engine.ValidationError{Reason: "no pages selected to extract"}
		e.dialogs.Error(err.Reason)
		return nil, err
	}
	doc, err := e.eng.Load(ctx, s.Bytes())
	if err != nil {
		return nil, err
	}
	defer doc.Close()
	return doc.ExtractPages(ctx, sel)
}

// RotateSelected adds degrees to the rotation of the selected pages
// (or the current page when nothing is selected). Rotation
// accumulates: two 90° turns leave a page at 180, not 270.
func (e *Editor) RotateSelected(ctx context.Context, degrees int) error {
	s := e.ws.Active()
	if s == nil {
		return fmt.Errorf("no open document")
	}
	pages := s.Selected()
	if len(pages) == 0 {
		pages = []int{s.CurrentPage}
	}
	if err := e.mutate(ctx, history.OpRotate, 0, func(ctx context.Context, doc engine.Document) error {
		return doc.RotatePages(ctx, pages, degrees)
	}); err != nil {
		e.dialogs.Error(fmt.Sprintf("Could not rotate pages: %v", err))
		return err
	}
	return nil
}

// ApplyRedactions bakes every pending redaction rectangle into the
// document as an opaque filled rectangle. The conversion to document
// space happens here, with the zoom active right now — not the zoom
// the rect was drawn at. This is visual-only redaction: the covered
// text remains in the file's content streams.
func (e *Editor) ApplyRedactions(ctx context.Context) error {
	s := e.ws.Active()
	st := e.Marks()
	if s == nil || st == nil {
		return fmt.Errorf("no open document")
	}
	if st.CountKind(marks.KindRedact) == 0 {
		return nil
	}
	zoom := s.Zoom
	err := e.mutate(ctx, history.OpRedact, s.CurrentPage, func(ctx context.Context, doc engine.Document) error {
		for _, page := range st.Pages() {
			pageH := s.PageSize(page).H
			for _, m := range st.OfKind(page, marks.KindRedact) {
				r := geom.ToDocumentSpace(m.Rect, zoom, pageH)
				if err := doc.DrawRect(ctx, page, r, m.Color); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		e.dialogs.Error(fmt.Sprintf("Could not apply redactions: %v", err))
		return err
	}
	st.ClearKind(marks.KindRedact)
	e.ApplyBarVisible(false)
	e.status.Status("Redactions applied (visual only)")
	return nil
}

// SearchRedact scans every page's text for case-insensitive matches
// of term and queues one redaction rectangle per match. When the
// extractor reports a glyph box the rectangle is cut from it
// proportionally; otherwise the size is estimated. Pages are scanned
// one awaited step at a time with a status update per page. The
// rectangles still need ApplyRedactions, and the same visual-only
// caveat applies.
func (e *Editor) SearchRedact(ctx context.Context, term string) (int, error) {
	s := e.ws.Active()
	st := e.Marks()
	if s == nil || st == nil {
		return 0, fmt.Errorf("no open document")
	}
	if strings.TrimSpace(term) == "" {
		return 0, &engine.ValidationError{Reason: "search text is empty"}
	}

	doc, err := e.eng.Load(ctx, s.Bytes())
	if err != nil {
		return 0, err
	}
	defer doc.Close()

	needle := strings.ToLower(term)
	found := 0
	for page := 1; page <= s.PageCount(); page++ {
		if err := ctx.Err(); err != nil {
			return found, err
		}
		e.status.Status(fmt.Sprintf("Searching page %d/%d…", page, s.PageCount()))

		runs, err := e.extract.PageText(ctx, doc, page)
		if err != nil {
			continue // a page without readable text is not fatal
		}
		pageH := s.PageSize(page).H
		for _, run := range runs {
			for _, r := range matchRects(run, needle, s.Zoom, pageH) {
				st.Add(marks.NewRedact(page, r, e.redactColor))
				found++
			}
		}
	}
	if found > 0 {
		e.ApplyBarVisible(true)
	}
	e.status.Status(fmt.Sprintf("%d match(es) for %q", found, term))
	return found, nil
}

// matchRects returns screen-space rectangles covering every occurrence
// of needle (already lowercased) inside run.
func matchRects(run engine.TextRun, needle string, zoom, pageH float64) []geom.Rect {
	hay := strings.ToLower(run.Text)
	if len(needle) == 0 || len(hay) < len(needle) {
		return nil
	}
	var out []geom.Rect
	for from := 0; ; {
		i := strings.Index(hay[from:], needle)
		if i < 0 {
			break
		}
		start := from + i
		out = append(out, matchRect(run, start, len(needle), zoom, pageH))
		from = start + len(needle)
	}
	return out
}

func matchRect(run engine.TextRun, start, length int, zoom, pageH float64) geom.Rect {
	if run.Width > 0 && run.Height > 0 {
		perChar := run.Width / float64(len(run.Text))
		doc := geom.Rect{
			X: run.Origin.X + float64(start)*perChar,
			Y: run.Origin.Y,
			W: float64(length) * perChar,
			H: run.Height,
		}
		return geom.ToScreenSpace(doc, zoom, pageH)
	}
	// No glyph box from the engine: estimate 6 px per character and a
	// 12 px line height, anchored at the run origin.
	origin := geom.ToScreenSpace(geom.Rect{X: run.Origin.X, Y: run.Origin.Y}, zoom, pageH)
	return geom.Rect{
		X: origin.X + float64(start)*fallbackCharW,
		Y: origin.Y - fallbackRunH,
		W: float64(length) * fallbackCharW,
		H: fallbackRunH,
	}
}

// CommitAnnotations bakes the in-memory highlights, underlines,
// sticky notes, drawn paths and text boxes into the document in one
// engine pass, converting each mark at the zoom active now.
func (e *Editor) CommitAnnotations(ctx context.Context) error {
	s := e.ws.Active()
	st := e.Marks()
	if s == nil || st == nil {
		return fmt.Errorf("no open document")
	}
	if st.Count()-st.CountKind(marks.KindRedact) == 0 {
		return nil
	}
	zoom := s.Zoom
	highlightFill := engine.Color{R: 255, G: 230, B: 0, Alpha: 0.4}

	err := e.mutate(ctx, history.OpStamp, s.CurrentPage, func(ctx context.Context, doc engine.Document) error {
		for _, page := range st.Pages() {
			pageH := s.PageSize(page).H
			for _, m := range st.ByPage(page) {
				var err error
				switch m.Kind {
				case marks.KindHighlight:
					err = doc.DrawRect(ctx, page, geom.ToDocumentSpace(m.Rect, zoom, pageH), highlightFill)
				case marks.KindUnderline:
					err = doc.DrawRect(ctx, page, geom.ToDocumentSpace(m.Rect, zoom, pageH), engine.Black)
				case marks.KindPath:
					pts := make([]geom.Point, len(m.Points))
					for i, p := range m.Points {
						pts[i] = geom.ToDocumentPoint(p, zoom, pageH)
					}
					err = doc.DrawPath(ctx, page, pts, m.Color, m.StrokeWidth/zoom)
				case marks.KindSticky:
					if m.Text == "" {
						continue
					}
					err = doc.DrawText(ctx, page, geom.ToDocumentPoint(geom.Point{X: m.Rect.X, Y: m.Rect.Y}, zoom, pageH), m.Text, "Helvetica", 10)
				case marks.KindTextBox:
					if m.Text == "" {
						continue
					}
					err = doc.DrawText(ctx, page, geom.ToDocumentPoint(geom.Point{X: m.Rect.X, Y: m.Rect.Y}, zoom, pageH), m.Text, m.FontFamily, m.FontSize)
				default:
					continue
				}
				if err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		e.dialogs.Error(fmt.Sprintf("Could not commit annotations: %v", err))
		return err
	}
	for _, k := range []marks.Kind{marks.KindHighlight, marks.KindUnderline, marks.KindPath, marks.KindSticky, marks.KindTextBox} {
		st.ClearKind(k)
	}
	e.status.Status("Annotations committed")
	return nil
}

// SetFieldValue fills one form field.
func (e *Editor) SetFieldValue(ctx context.Context, name, value string) error {
	if err := e.mutate(ctx, history.OpFillForm, 0, func(ctx context.Context, doc engine.Document) error {
		return doc.SetFieldValue(ctx, name, value)
	}); err != nil {
		e.dialogs.Error(fmt.Sprintf("Could not fill field %s: %v", name, err))
		return err
	}
	return nil
}

// FlattenForm flattens every form field into page content.
func (e *Editor) FlattenForm(ctx context.Context) error {
	if err := e.mutate(ctx, history.OpFlatten, 0, func(ctx context.Context, doc engine.Document) error {
		return doc.FlattenForm(ctx)
	}); err != nil {
		e.dialogs.Error(fmt.Sprintf("Could not flatten form: %v", err))
		return err
	}
	return nil
}

// Undo reverses the most recent action. Snapshot actions restore the
// previous bytes wholesale; additive actions remove their in-memory
// mark and touch nothing else.
func (e *Editor) Undo(ctx context.Context) error {
	a, ok := e.history.Undo()
	if !ok {
		e.status.Status("Nothing to undo")
		return nil
	}
	if a.Additive {
		if st := e.stores[a.SessionID]; st != nil {
			st.Remove(a.Mark.ID)
			if a.Mark.Kind == marks.KindRedact {
				e.ApplyBarVisible(st.CountKind(marks.KindRedact) > 0)
			}
		}
		return nil
	}
	if a.Snapshot == nil {
		return nil
	}
	e.ws.SwitchTo(a.SessionID)
	if err := e.ws.CommitActive(ctx, a.Snapshot, 0); err != nil {
		e.dialogs.Error(fmt.Sprintf("Undo failed: %v", err))
		return err
	}
	if s := e.ws.Active(); s != nil {
		e.pipeline.Layout(s)
		e.pipeline.ScrollTo(s.CurrentPage)
		e.refreshThumbs(ctx)
	}
	return nil
}

// Redo re-applies the most recently undone action when it was an
// additive mark. Snapshot actions are not re-executed: redoing one is
// stack bookkeeping only, a documented limitation of the snapshot
// undo model.
func (e *Editor) Redo(ctx context.Context) error {
	a, ok, replayable := e.history.Redo()
	if !ok {
		e.status.Status("Nothing to redo")
		return nil
	}
	if !replayable {
		e.status.Status("That action cannot be redone")
		return nil
	}
	if st := e.stores[a.SessionID]; st != nil {
		st.Add(a.Mark)
		if a.Mark.Kind == marks.KindRedact {
			e.ApplyBarVisible(st.CountKind(marks.KindRedact) > 0)
		}
	}
	return nil
}

// ActiveBytes returns the active session's current bytes and name for
// saving.
func (e *Editor) ActiveBytes() ([]byte, string, error) {
	s := e.ws.Active()
	if s == nil {
		return nil, "", fmt.Errorf("no open document")
	}
	return s.Bytes(), s.Name, nil
}
