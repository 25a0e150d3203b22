// Package pdfium backs the engine interfaces with pdfium via
// klippa-app/go-pdfium running in a webassembly worker pool.
package pdfium

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"sync"
	"time"

	"github.com/klippa-app/go-pdfium"
	"github.com/klippa-app/go-pdfium/enums"
	"github.com/klippa-app/go-pdfium/references"
	"github.com/klippa-app/go-pdfium/requests"
	"github.com/klippa-app/go-pdfium/structs"
	"github.com/klippa-app/go-pdfium/webassembly"
	"github.com/pkg/errors"

	"github.com/fakeyudi/pagemark/internal/engine"
	"github.com/fakeyudi/pagemark/internal/geom"
)

const instanceTimeout = 30 * time.Second

// Engine opens documents with a pooled pdfium instance. It implements
// engine.Engine, engine.Rasterizer and engine.TextExtractor.
type Engine struct {
	pool     pdfium.Pool
	instance pdfium.Pdfium
}

// New initialises the pdfium webassembly pool. Call Close when done.
func New() (*Engine, error) {
	pool, err := webassembly.Init(webassembly.Config{
		MinIdle:  1,
		MaxIdle:  1,
		MaxTotal: 1,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialise pdfium")
	}
	instance, err := pool.GetInstance(instanceTimeout)
	if err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "failed to get pdfium instance")
	}
	return &Engine{pool: pool, instance: instance}, nil
}

// Close tears down the worker pool.
func (e *Engine) Close() error {
	return e.pool.Close()
}

// Load implements engine.Engine.
func (e *Engine) Load(ctx context.Context, data []byte) (engine.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := e.instance.OpenDocument(&requests.OpenDocument{
		File: &data,
	})
	if err != nil {
		return nil, &engine.LoadError{Err: errors.Wrap(err, "failed to open PDF document")}
	}
	count, err := e.instance.FPDF_GetPageCount(&requests.FPDF_GetPageCount{
		Document: doc.Document,
	})
	if err != nil {
		e.instance.FPDF_CloseDocument(&requests.FPDF_CloseDocument{Document: doc.Document})
		return nil, &engine.LoadError{Err: errors.Wrap(err, "failed to get page count")}
	}
	return &document{eng: e, ref: doc.Document, pages: count.PageCount}, nil
}

// document is an open pdfium document. Mutations accumulate on the
// pdfium handle until Save serializes them with FPDF_SaveAsCopy.
type document struct {
	eng   *Engine
	ref   references.FPDF_DOCUMENT
	pages int

	mu     sync.Mutex
	closed bool
}

func (d *document) page(n int) requests.Page {
	return requests.Page{
		ByIndex: &requests.PageByIndex{
			Document: d.ref,
			Index:    n - 1,
		},
	}
}

func (d *document) PageCount() int { return d.pages }

func (d *document) PageSize(n int) (float64, float64, error) {
	if n < 1 || n > d.pages {
		return 0, 0, &engine.ValidationError{Reason: fmt.Sprintf("page %d out of range", n)}
	}
	w, err := d.eng.instance.FPDF_GetPageWidthF(&requests.FPDF_GetPageWidthF{Page: d.page(n)})
	if err != nil {
		return 0, 0, &engine.EngineError{Op: "page-size", Err: errors.Wrap(err, "failed to get page width")}
	}
	h, err := d.eng.instance.FPDF_GetPageHeightF(&requests.FPDF_GetPageHeightF{Page: d.page(n)})
	if err != nil {
		return 0, 0, &engine.EngineError{Op: "page-size", Err: errors.Wrap(err, "failed to get page height")}
	}
	return float64(w.PageWidth), float64(h.PageHeight), nil
}

func (d *document) RemovePages(ctx context.Context, pages []int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	// Delete from the highest index down so earlier indices stay valid.
	sorted := append([]int(nil), pages...)
	for i := 0; i < len(sorted); i++ {
		for j := i + 1; j < len(sorted); j++ {
			if sorted[j] > sorted[i] {
				sorted[i], sorted[j] = sorted[j], sorted[i]
			}
		}
	}
	for _, p := range sorted {
		_, err := d.eng.instance.FPDFPage_Delete(&requests.FPDFPage_Delete{
			Document:  d.ref,
			PageIndex: p - 1,
		})
		if err != nil {
			return &engine.EngineError{Op: "remove-pages", Err: errors.Wrapf(err, "failed to delete page %d", p)}
		}
		d.pages--
	}
	return nil
}

func (d *document) ExtractPages(ctx context.Context, pages []int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dest, err := d.eng.instance.FPDF_CreateNewDocument(&requests.FPDF_CreateNewDocument{})
	if err != nil {
		return nil, &engine.EngineError{Op: "extract-pages", Err: errors.Wrap(err, "failed to create destination document")}
	}
	defer d.eng.instance.FPDF_CloseDocument(&requests.FPDF_CloseDocument{Document: dest.Document})

	var rng bytes.Buffer
	for i, p := range pages {
		if i > 0 {
			rng.WriteByte(',')
		}
		fmt.Fprintf(&rng, "%d", p)
	}
	pageRange := rng.String()
	_, err = d.eng.instance.FPDF_ImportPages(&requests.FPDF_ImportPages{
		Source:      d.ref,
		Destination: dest.Document,
		PageRange:   &pageRange,
	})
	if err != nil {
		return nil, &engine.EngineError{Op: "extract-pages", Err: errors.Wrap(err, "failed to import pages")}
	}

	saved, err := d.eng.instance.FPDF_SaveAsCopy(&requests.FPDF_SaveAsCopy{
		Document: dest.Document,
	})
	if err != nil {
		return nil, &engine.EngineError{Op: "extract-pages", Err: errors.Wrap(err, "failed to serialize extracted pages")}
	}
	return *saved.FileBytes, nil
}

var rotations = [...]enums.FPDF_PAGE_ROTATION{
	enums.FPDF_PAGE_ROTATION_NONE,
	enums.FPDF_PAGE_ROTATION_90_CW,
	enums.FPDF_PAGE_ROTATION_180_CW,
	enums.FPDF_PAGE_ROTATION_270_CW,
}

func (d *document) RotatePages(ctx context.Context, pages []int, degrees int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, p := range pages {
		cur, err := d.eng.instance.FPDFPage_GetRotation(&requests.FPDFPage_GetRotation{Page: d.page(p)})
		if err != nil {
			return &engine.EngineError{Op: "rotate-pages", Err: errors.Wrapf(err, "failed to read rotation of page %d", p)}
		}
		next := (int(cur.PageRotation)*90 + degrees) % 360
		if next < 0 {
			next += 360
		}
		_, err = d.eng.instance.FPDFPage_SetRotation(&requests.FPDFPage_SetRotation{
			Page:   d.page(p),
			Rotate: rotations[next/90],
		})
		if err != nil {
			return &engine.EngineError{Op: "rotate-pages", Err: errors.Wrapf(err, "failed to rotate page %d", p)}
		}
	}
	return nil
}

func (d *document) Rotation(n int) (int, error) {
	cur, err := d.eng.instance.FPDFPage_GetRotation(&requests.FPDFPage_GetRotation{Page: d.page(n)})
	if err != nil {
		return 0, &engine.EngineError{Op: "rotation", Err: errors.Wrapf(err, "failed to read rotation of page %d", n)}
	}
	return int(cur.PageRotation) * 90, nil
}

func (d *document) DrawRect(ctx context.Context, n int, r geom.Rect, c engine.Color) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	obj, err := d.eng.instance.FPDFPageObj_CreateNewRect(&requests.FPDFPageObj_CreateNewRect{
		X: float32(r.X), Y: float32(r.Y), W: float32(r.W), H: float32(r.H),
	})
	if err != nil {
		return &engine.EngineError{Op: "draw-rect", Err: errors.Wrap(err, "failed to create rect object")}
	}
	_, err = d.eng.instance.FPDFPageObj_SetFillColor(&requests.FPDFPageObj_SetFillColor{
		PageObject: obj.PageObject,
		FillColor:  color(c),
	})
	if err != nil {
		return &engine.EngineError{Op: "draw-rect", Err: errors.Wrap(err, "failed to set fill color")}
	}
	_, err = d.eng.instance.FPDFPath_SetDrawMode(&requests.FPDFPath_SetDrawMode{
		PageObject: obj.PageObject,
		FillMode:   enums.FPDF_FILLMODE_WINDING,
	})
	if err != nil {
		return &engine.EngineError{Op: "draw-rect", Err: errors.Wrap(err, "failed to set draw mode")}
	}
	return d.insert(n, obj.PageObject, "draw-rect")
}

func (d *document) DrawPath(ctx context.Context, n int, pts []geom.Point, c engine.Color, width float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(pts) < 2 {
		return &engine.ValidationError{Reason: "path needs at least two points"}
	}
	obj, err := d.eng.instance.FPDFPageObj_CreateNewPath(&requests.FPDFPageObj_CreateNewPath{
		X: float32(pts[0].X), Y: float32(pts[0].Y),
	})
	if err != nil {
		return &engine.EngineError{Op: "draw-path", Err: errors.Wrap(err, "failed to create path object")}
	}
	for _, p := range pts[1:] {
		_, err = d.eng.instance.FPDFPath_LineTo(&requests.FPDFPath_LineTo{
			PageObject: obj.PageObject,
			X:          float32(p.X), Y: float32(p.Y),
		})
		if err != nil {
			return &engine.EngineError{Op: "draw-path", Err: errors.Wrap(err, "failed to extend path")}
		}
	}
	_, err = d.eng.instance.FPDFPageObj_SetStrokeColor(&requests.FPDFPageObj_SetStrokeColor{
		PageObject:  obj.PageObject,
		StrokeColor: color(c),
	})
	if err != nil {
		return &engine.EngineError{Op: "draw-path", Err: errors.Wrap(err, "failed to set stroke color")}
	}
	_, err = d.eng.instance.FPDFPageObj_SetStrokeWidth(&requests.FPDFPageObj_SetStrokeWidth{
		PageObject:  obj.PageObject,
		StrokeWidth: float32(width),
	})
	if err != nil {
		return &engine.EngineError{Op: "draw-path", Err: errors.Wrap(err, "failed to set stroke width")}
	}
	_, err = d.eng.instance.FPDFPath_SetDrawMode(&requests.FPDFPath_SetDrawMode{
		PageObject: obj.PageObject,
		FillMode:   enums.FPDF_FILLMODE_NONE,
		Stroke:     true,
	})
	if err != nil {
		return &engine.EngineError{Op: "draw-path", Err: errors.Wrap(err, "failed to set draw mode")}
	}
	return d.insert(n, obj.PageObject, "draw-path")
}

func (d *document) DrawText(ctx context.Context, n int, p geom.Point, text, font string, size float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	obj, err := d.eng.instance.FPDFPageObj_NewTextObj(&requests.FPDFPageObj_NewTextObj{
		Document: d.ref,
		Font:     font,
		FontSize: float32(size),
	})
	if err != nil {
		return &engine.EngineError{Op: "draw-text", Err: errors.Wrap(err, "failed to create text object")}
	}
	_, err = d.eng.instance.FPDFText_SetText(&requests.FPDFText_SetText{
		PageObject: obj.PageObject,
		Text:       text,
	})
	if err != nil {
		return &engine.EngineError{Op: "draw-text", Err: errors.Wrap(err, "failed to set text")}
	}
	_, err = d.eng.instance.FPDFPageObj_Transform(&requests.FPDFPageObj_Transform{
		PageObject: obj.PageObject,
		Transform:  structs.FPDF_FS_MATRIX{A: 1, B: 0, C: 0, D: 1, E: float32(p.X), F: float32(p.Y)},
	})
	if err != nil {
		return &engine.EngineError{Op: "draw-text", Err: errors.Wrap(err, "failed to position text")}
	}
	return d.insert(n, obj.PageObject, "draw-text")
}

func (d *document) DrawImage(ctx context.Context, n int, r geom.Rect, img image.Image) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		return &engine.EngineError{Op: "draw-image", Err: errors.Wrap(err, "failed to encode image")}
	}
	obj, err := d.eng.instance.FPDFPageObj_NewImageObj(&requests.FPDFPageObj_NewImageObj{
		Document: d.ref,
	})
	if err != nil {
		return &engine.EngineError{Op: "draw-image", Err: errors.Wrap(err, "failed to create image object")}
	}
	page := d.page(n)
	_, err = d.eng.instance.FPDFImageObj_LoadJpegFile(&requests.FPDFImageObj_LoadJpegFile{
		Page:        &page,
		ImageObject: obj.PageObject,
		FileReader:  bytes.NewReader(buf.Bytes()),
	})
	if err != nil {
		return &engine.EngineError{Op: "draw-image", Err: errors.Wrap(err, "failed to load image data")}
	}
	_, err = d.eng.instance.FPDFPageObj_Transform(&requests.FPDFPageObj_Transform{
		PageObject: obj.PageObject,
		Transform:  structs.FPDF_FS_MATRIX{A: float32(r.W), B: 0, C: 0, D: float32(r.H), E: float32(r.X), F: float32(r.Y)},
	})
	if err != nil {
		return &engine.EngineError{Op: "draw-image", Err: errors.Wrap(err, "failed to place image")}
	}
	return d.insert(n, obj.PageObject, "draw-image")
}

// insert attaches obj to page n and regenerates the page content
// stream so the new object is part of the saved document.
func (d *document) insert(n int, obj references.FPDF_PAGEOBJECT, op string) error {
	_, err := d.eng.instance.FPDFPage_InsertObject(&requests.FPDFPage_InsertObject{
		Page:       d.page(n),
		PageObject: obj,
	})
	if err != nil {
		return &engine.EngineError{Op: op, Err: errors.Wrap(err, "failed to insert page object")}
	}
	_, err = d.eng.instance.FPDFPage_GenerateContent(&requests.FPDFPage_GenerateContent{
		Page: d.page(n),
	})
	if err != nil {
		return &engine.EngineError{Op: op, Err: errors.Wrap(err, "failed to regenerate page content")}
	}
	return nil
}

func (d *document) AddFormField(ctx context.Context, n int, p geom.Point, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	annot, err := d.eng.instance.FPDFPage_CreateAnnot(&requests.FPDFPage_CreateAnnot{
		Page:    d.page(n),
		Subtype: enums.FPDF_ANNOT_SUBTYPE_WIDGET,
	})
	if err != nil {
		return &engine.EngineError{Op: "add-form-field", Err: errors.Wrap(err, "failed to create widget annotation")}
	}
	defer d.eng.instance.FPDFPage_CloseAnnot(&requests.FPDFPage_CloseAnnot{Annotation: annot.Annotation})

	_, err = d.eng.instance.FPDFAnnot_SetRect(&requests.FPDFAnnot_SetRect{
		Annotation: annot.Annotation,
		Rect: structs.FPDF_FS_RECTF{
			Left:   float32(p.X),
			Bottom: float32(p.Y),
			Right:  float32(p.X + fieldWidth),
			Top:    float32(p.Y + fieldHeight),
		},
	})
	if err != nil {
		return &engine.EngineError{Op: "add-form-field", Err: errors.Wrap(err, "failed to size widget annotation")}
	}
	_, err = d.eng.instance.FPDFAnnot_SetStringValue(&requests.FPDFAnnot_SetStringValue{
		Annotation: annot.Annotation,
		Key:        "T",
		Value:      name,
	})
	if err != nil {
		return &engine.EngineError{Op: "add-form-field", Err: errors.Wrap(err, "failed to name form field")}
	}
	return nil
}

const (
	fieldWidth  = 120.0
	fieldHeight = 24.0
)

func (d *document) FieldNames() ([]string, error) {
	var names []string
	for p := 1; p <= d.pages; p++ {
		count, err := d.eng.instance.FPDFPage_GetAnnotCount(&requests.FPDFPage_GetAnnotCount{Page: d.page(p)})
		if err != nil {
			return nil, &engine.EngineError{Op: "field-names", Err: errors.Wrapf(err, "failed to count annotations on page %d", p)}
		}
		for i := 0; i < count.Count; i++ {
			annot, err := d.eng.instance.FPDFPage_GetAnnot(&requests.FPDFPage_GetAnnot{
				Page:  d.page(p),
				Index: i,
			})
			if err != nil {
				continue
			}
			sub, err := d.eng.instance.FPDFAnnot_GetSubtype(&requests.FPDFAnnot_GetSubtype{Annotation: annot.Annotation})
			if err != nil || sub.Subtype != enums.FPDF_ANNOT_SUBTYPE_WIDGET {
				d.eng.instance.FPDFPage_CloseAnnot(&requests.FPDFPage_CloseAnnot{Annotation: annot.Annotation})
				continue
			}
			name, err := d.eng.instance.FPDFAnnot_GetStringValue(&requests.FPDFAnnot_GetStringValue{
				Annotation: annot.Annotation,
				Key:        "T",
			})
			if err == nil && name.Value != "" {
				names = append(names, name.Value)
			}
			d.eng.instance.FPDFPage_CloseAnnot(&requests.FPDFPage_CloseAnnot{Annotation: annot.Annotation})
		}
	}
	return names, nil
}

func (d *document) SetFieldValue(ctx context.Context, name, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for p := 1; p <= d.pages; p++ {
		count, err := d.eng.instance.FPDFPage_GetAnnotCount(&requests.FPDFPage_GetAnnotCount{Page: d.page(p)})
		if err != nil {
			continue
		}
		for i := 0; i < count.Count; i++ {
			annot, err := d.eng.instance.FPDFPage_GetAnnot(&requests.FPDFPage_GetAnnot{
				Page:  d.page(p),
				Index: i,
			})
			if err != nil {
				continue
			}
			got, err := d.eng.instance.FPDFAnnot_GetStringValue(&requests.FPDFAnnot_GetStringValue{
				Annotation: annot.Annotation,
				Key:        "T",
			})
			if err == nil && got.Value == name {
				_, err = d.eng.instance.FPDFAnnot_SetStringValue(&requests.FPDFAnnot_SetStringValue{
					Annotation: annot.Annotation,
					Key:        "V",
					Value:      value,
				})
				d.eng.instance.FPDFPage_CloseAnnot(&requests.FPDFPage_CloseAnnot{Annotation: annot.Annotation})
				if err != nil {
					return &engine.EngineError{Op: "set-field-value", Err: errors.Wrapf(err, "failed to set value of field %q", name)}
				}
				return nil
			}
			d.eng.instance.FPDFPage_CloseAnnot(&requests.FPDFPage_CloseAnnot{Annotation: annot.Annotation})
		}
	}
	return &engine.ValidationError{Reason: fmt.Sprintf("no form field named %q", name)}
}

func (d *document) FlattenForm(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for p := 1; p <= d.pages; p++ {
		_, err := d.eng.instance.FPDFPage_Flatten(&requests.FPDFPage_Flatten{
			Page:  d.page(p),
			Usage: requests.FPDFPage_FlattenUsageNormalDisplay,
		})
		if err != nil {
			return &engine.EngineError{Op: "flatten-form", Err: errors.Wrapf(err, "failed to flatten page %d", p)}
		}
	}
	return nil
}

func (d *document) Save(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	saved, err := d.eng.instance.FPDF_SaveAsCopy(&requests.FPDF_SaveAsCopy{
		Document: d.ref,
	})
	if err != nil {
		return nil, &engine.EngineError{Op: "save", Err: errors.Wrap(err, "failed to serialize document")}
	}
	return *saved.FileBytes, nil
}

func (d *document) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	_, err := d.eng.instance.FPDF_CloseDocument(&requests.FPDF_CloseDocument{Document: d.ref})
	if err != nil {
		return errors.Wrap(err, "failed to close document")
	}
	return nil
}

// RenderPage implements engine.Rasterizer. scale 1.0 renders at 72 DPI,
// one pixel per point.
func (e *Engine) RenderPage(ctx context.Context, doc engine.Document, n int, scale float64) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, engine.ErrRenderCancelled
		}
		return nil, err
	}
	d, ok := doc.(*document)
	if !ok {
		return nil, &engine.EngineError{Op: "render", Err: errors.New("document was not opened by this engine")}
	}
	res, err := e.instance.RenderPageInDPI(&requests.RenderPageInDPI{
		Page: d.page(n),
		DPI:  int(72 * scale),
	})
	if err != nil {
		return nil, &engine.EngineError{Op: "render", Err: errors.Wrapf(err, "failed to render page %d", n)}
	}
	if err := ctx.Err(); err != nil {
		return nil, engine.ErrRenderCancelled
	}
	return res.Result.Image, nil
}

// PageText implements engine.TextExtractor. Each extracted segment
// carries its glyph box in document space (origin bottom-left).
func (e *Engine) PageText(ctx context.Context, doc engine.Document, n int) ([]engine.TextRun, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d, ok := doc.(*document)
	if !ok {
		return nil, &engine.EngineError{Op: "page-text", Err: errors.New("document was not opened by this engine")}
	}
	textPage, err := e.instance.FPDFText_LoadPage(&requests.FPDFText_LoadPage{Page: d.page(n)})
	if err != nil {
		return nil, &engine.EngineError{Op: "page-text", Err: errors.Wrap(err, "failed to load text page")}
	}
	defer e.instance.FPDFText_ClosePage(&requests.FPDFText_ClosePage{TextPage: textPage.TextPage})

	count, err := e.instance.FPDFText_CountRects(&requests.FPDFText_CountRects{
		TextPage:   textPage.TextPage,
		StartIndex: 0,
		Count:      -1,
	})
	if err != nil {
		return nil, &engine.EngineError{Op: "page-text", Err: errors.Wrap(err, "failed to segment text page")}
	}

	runs := make([]engine.TextRun, 0, count.Count)
	for i := 0; i < count.Count; i++ {
		rect, err := e.instance.FPDFText_GetRect(&requests.FPDFText_GetRect{
			TextPage: textPage.TextPage,
			Index:    i,
		})
		if err != nil {
			continue
		}
		text, err := e.instance.FPDFText_GetBoundedText(&requests.FPDFText_GetBoundedText{
			TextPage: textPage.TextPage,
			Left:     rect.Left,
			Top:      rect.Top,
			Right:    rect.Right,
			Bottom:   rect.Bottom,
		})
		if err != nil || text.Text == "" {
			continue
		}
		runs = append(runs, engine.TextRun{
			Text:   text.Text,
			Origin: geom.Point{X: rect.Left, Y: rect.Bottom},
			Width:  rect.Right - rect.Left,
			Height: rect.Top - rect.Bottom,
		})
	}
	return runs, nil
}

func color(c engine.Color) structs.FPDF_COLOR {
	return structs.FPDF_COLOR{
		R: uint(c.R),
		G: uint(c.G),
		B: uint(c.B),
		A: uint(c.Alpha * 255),
	}
}
