// Package enginetest provides an in-memory document engine for tests.
//
// Documents are line-oriented text payloads: a magic header, a page
// count, per-page rotation and text-run lines, and an append-only op
// log. Every mutation changes the serialized form deterministically,
// so tests can compare committed bytes byte-for-byte and verify that
// undo restores the exact previous payload.
package enginetest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/fakeyudi/pagemark/internal/engine"
	"github.com/fakeyudi/pagemark/internal/geom"
)

const magic = "%FAKEDOC"

// Default page size used by fake documents, in points.
const (
	PageWidth  = 612.0
	PageHeight = 792.0
)

// Engine is a scripted in-memory engine.Engine.
type Engine struct {
	// FailLoad, when set, makes every Load fail with a *engine.LoadError
	// wrapping it.
	FailLoad error
	// FailSave, when set, makes Save fail with a *engine.EngineError.
	FailSave error
}

// DocBytes builds a minimal fake document payload with the given page
// count.
func DocBytes(pages int) []byte {
	return DocBytesWithText(pages, nil)
}

// DocBytesWithText builds a fake document payload carrying text runs,
// keyed by page number, for the extractor to report.
func DocBytesWithText(pages int, text map[int][]engine.TextRun) []byte {
	var sb strings.Builder
	sb.WriteString(magic + "\n")
	fmt.Fprintf(&sb, "pages %d\n", pages)
	for p := 1; p <= pages; p++ {
		for _, r := range text[p] {
			fmt.Fprintf(&sb, "text %d %g %g %g %g %s\n",
				p, r.Origin.X, r.Origin.Y, r.Width, r.Height, r.Text)
		}
	}
	return []byte(sb.String())
}

// Load parses a fake payload. Input not starting with the magic header
// fails with a *engine.LoadError, leaving callers' state untouched.
func (e *Engine) Load(_ context.Context, data []byte) (engine.Document, error) {
	if e.FailLoad != nil {
		return nil, &engine.LoadError{Err: e.FailLoad}
	}
	if !bytes.HasPrefix(data, []byte(magic)) {
		return nil, &engine.LoadError{Err: errors.New("bad magic")}
	}
	d := &Document{
		failSave:  e.FailSave,
		rotations: make(map[int]int),
		text:      make(map[int][]engine.TextRun),
	}
	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "pages":
			n, err := strconv.Atoi(fields[1])
			if err != nil {
				return nil, &engine.LoadError{Err: err}
			}
			d.pages = n
		case "rot":
			p, _ := strconv.Atoi(fields[1])
			deg, _ := strconv.Atoi(fields[2])
			d.rotations[p] = deg
		case "text":
			p, _ := strconv.Atoi(fields[1])
			x, _ := strconv.ParseFloat(fields[2], 64)
			y, _ := strconv.ParseFloat(fields[3], 64)
			w, _ := strconv.ParseFloat(fields[4], 64)
			h, _ := strconv.ParseFloat(fields[5], 64)
			d.text[p] = append(d.text[p], engine.TextRun{
				Text:   strings.Join(fields[6:], " "),
				Origin: geom.Point{X: x, Y: y},
				Width:  w,
				Height: h,
			})
		case "op":
			d.ops = append(d.ops, strings.Join(fields[1:], " "))
		}
	}
	if d.pages < 1 {
		return nil, &engine.LoadError{Err: errors.New("no pages")}
	}
	return d, nil
}

// Document is the fake engine.Document.
type Document struct {
	pages     int
	rotations map[int]int
	text      map[int][]engine.TextRun
	ops       []string
	fields    []string
	closed    bool
	failSave  error
}

func (d *Document) PageCount() int { return d.pages }

func (d *Document) PageSize(n int) (float64, float64, error) {
	if n < 1 || n > d.pages {
		return 0, 0, fmt.Errorf("page %d out of range", n)
	}
	return PageWidth, PageHeight, nil
}

func (d *Document) RemovePages(_ context.Context, pages []int) error {
	if len(pages) >= d.pages {
		return &engine.EngineError{Op: "remove", Err: errors.New("would remove every page")}
	}
	d.pages -= len(pages)
	d.op("remove %v", pages)
	return nil
}

func (d *Document) ExtractPages(_ context.Context, pages []int) ([]byte, error) {
	if len(pages) == 0 {
		return nil, &engine.EngineError{Op: "extract", Err: errors.New("no pages")}
	}
	return DocBytes(len(pages)), nil
}

func (d *Document) RotatePages(_ context.Context, pages []int, degrees int) error {
	for _, p := range pages {
		d.rotations[p] = ((d.rotations[p]+degrees)%360 + 360) % 360
	}
	d.op("rotate %v %d", pages, degrees)
	return nil
}

func (d *Document) Rotation(n int) (int, error) {
	return d.rotations[n], nil
}

func (d *Document) DrawRect(_ context.Context, n int, r geom.Rect, c engine.Color) error {
	d.op("rect %d %g %g %g %g", n, r.X, r.Y, r.W, r.H)
	return nil
}

func (d *Document) DrawPath(_ context.Context, n int, pts []geom.Point, c engine.Color, width float64) error {
	d.op("path %d points=%d", n, len(pts))
	return nil
}

func (d *Document) DrawText(_ context.Context, n int, p geom.Point, text, font string, size float64) error {
	d.op("drawtext %d %g %g %s", n, p.X, p.Y, text)
	return nil
}

func (d *Document) DrawImage(_ context.Context, n int, r geom.Rect, _ image.Image) error {
	d.op("image %d %g %g %g %g", n, r.X, r.Y, r.W, r.H)
	return nil
}

func (d *Document) AddFormField(_ context.Context, n int, p geom.Point, name string) error {
	d.fields = append(d.fields, name)
	d.op("field %d %s", n, name)
	return nil
}

func (d *Document) FieldNames() ([]string, error) {
	return append([]string(nil), d.fields...), nil
}

func (d *Document) SetFieldValue(_ context.Context, name, value string) error {
	d.op("setfield %s=%s", name, value)
	return nil
}

func (d *Document) FlattenForm(_ context.Context) error {
	d.fields = nil
	d.op("flatten")
	return nil
}

// Save serializes the document deterministically: header, rotations in
// page order, text runs, then the op log in mutation order.
func (d *Document) Save(_ context.Context) ([]byte, error) {
	if d.failSave != nil {
		return nil, &engine.EngineError{Op: "save", Err: d.failSave}
	}
	var sb strings.Builder
	sb.WriteString(magic + "\n")
	fmt.Fprintf(&sb, "pages %d\n", d.pages)
	rotPages := make([]int, 0, len(d.rotations))
	for p, deg := range d.rotations {
		if deg != 0 {
			rotPages = append(rotPages, p)
		}
	}
	sort.Ints(rotPages)
	for _, p := range rotPages {
		fmt.Fprintf(&sb, "rot %d %d\n", p, d.rotations[p])
	}
	textPages := make([]int, 0, len(d.text))
	for p := range d.text {
		textPages = append(textPages, p)
	}
	sort.Ints(textPages)
	for _, p := range textPages {
		for _, r := range d.text[p] {
			fmt.Fprintf(&sb, "text %d %g %g %g %g %s\n",
				p, r.Origin.X, r.Origin.Y, r.Width, r.Height, r.Text)
		}
	}
	for _, op := range d.ops {
		sb.WriteString("op " + op + "\n")
	}
	return []byte(sb.String()), nil
}

func (d *Document) Close() error {
	d.closed = true
	return nil
}

func (d *Document) op(format string, args ...interface{}) {
	d.ops = append(d.ops, fmt.Sprintf(format, args...))
}

// Rasterizer is a scripted engine.Rasterizer.
type Rasterizer struct {
	// FailPages maps page numbers to the error their render returns.
	FailPages map[int]error
	// Rendered records every successfully rendered page number.
	Rendered []int
}

func (r *Rasterizer) RenderPage(ctx context.Context, doc engine.Document, n int, scale float64) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, engine.ErrRenderCancelled
	}
	if err := r.FailPages[n]; err != nil {
		return nil, err
	}
	w, h, err := doc.PageSize(n)
	if err != nil {
		return nil, err
	}
	r.Rendered = append(r.Rendered, n)
	return image.NewRGBA(image.Rect(0, 0, int(math.Round(w*scale)), int(math.Round(h*scale)))), nil
}

// Extractor reports the text runs baked into a fake document.
type Extractor struct{}

func (Extractor) PageText(_ context.Context, doc engine.Document, n int) ([]engine.TextRun, error) {
	fd, ok := doc.(*Document)
	if !ok {
		return nil, errors.New("not a fake document")
	}
	return append([]engine.TextRun(nil), fd.text[n]...), nil
}
