// Package engine defines the boundary to the external document codec,
// rasterizer and text extractor. The viewer core consumes these
// interfaces only; concrete backends live in subpackages.
package engine

import (
	"context"
	"image"

	"github.com/fakeyudi/pagemark/internal/geom"
)

// Engine opens raw document bytes.
type Engine interface {
	// Load parses bytes into a Document. Malformed input yields a
	// *LoadError and no Document.
	Load(ctx context.Context, data []byte) (Document, error)
}

// Document is an open document handle. All geometry passed to drawing
// and field operations is in document space (points, y-up).
// Mutations accumulate on the handle; Save serializes them to new
// bytes. A failed mutation or save must leave the previously saved
// bytes unaffected.
type Document interface {
	PageCount() int
	// PageSize returns the width and height of page n (1-based) in points.
	PageSize(n int) (w, h float64, err error)

	RemovePages(ctx context.Context, pages []int) error
	// ExtractPages produces a new document containing only the given
	// pages, in the given order, as serialized bytes.
	ExtractPages(ctx context.Context, pages []int) ([]byte, error)
	// RotatePages adds degrees to each page's current rotation,
	// normalized into [0, 360).
	RotatePages(ctx context.Context, pages []int, degrees int) error
	// Rotation returns page n's current rotation in degrees.
	Rotation(n int) (int, error)

	// DrawRect fills a rectangle on page n with the given color.
	DrawRect(ctx context.Context, n int, r geom.Rect, c Color) error
	// DrawPath strokes a polyline on page n.
	DrawPath(ctx context.Context, n int, pts []geom.Point, c Color, width float64) error
	// DrawText places text at p on page n.
	DrawText(ctx context.Context, n int, p geom.Point, text string, font string, size float64) error
	// DrawImage places img into r on page n.
	DrawImage(ctx context.Context, n int, r geom.Rect, img image.Image) error

	// AddFormField creates a named text field at p on page n.
	AddFormField(ctx context.Context, n int, p geom.Point, name string) error
	FieldNames() ([]string, error)
	SetFieldValue(ctx context.Context, name, value string) error
	FlattenForm(ctx context.Context) error

	Save(ctx context.Context) ([]byte, error)
	Close() error
}

// Rasterizer renders a page to pixels at a viewport scale.
// A render superseded by a newer request fails with ErrRenderCancelled.
type Rasterizer interface {
	RenderPage(ctx context.Context, doc Document, n int, scale float64) (image.Image, error)
}

// TextRun is one extracted text item with its glyph box in document
// space. Width and Height are zero when the backend cannot report a
// glyph box; callers must estimate in that case.
type TextRun struct {
	Text   string
	Origin geom.Point
	Width  float64
	Height float64
}

// TextExtractor reads positioned text from a page.
type TextExtractor interface {
	PageText(ctx context.Context, doc Document, n int) ([]TextRun, error)
}

// Color is an RGB color with an opacity in [0, 1].
type Color struct {
	R, G, B uint8
	Alpha   float64
}

// Black is the default redaction fill.
var Black = Color{R: 0, G: 0, B: 0, Alpha: 1}
