// Package marks holds user-authored, uncommitted page marks. A mark's
// geometry is screen space at the zoom active when it was created;
// conversion to document space happens only when the mark is
// committed, using the zoom active at that moment.
package marks

import (
	"github.com/google/uuid"

	"github.com/fakeyudi/pagemark/internal/engine"
	"github.com/fakeyudi/pagemark/internal/geom"
)

// Kind discriminates the mark union.
type Kind string

const (
	KindRedact    Kind = "redact"
	KindHighlight Kind = "highlight"
	KindUnderline Kind = "underline"
	KindSticky    Kind = "sticky"
	KindPath      Kind = "path"
	KindTextBox   Kind = "textbox"
	KindFormField Kind = "formfield"
)

// Fixed screen-unit sizes for click-placed annotations, centered on
// the click point.
const (
	HighlightW = 80.0
	HighlightH = 16.0
	UnderlineW = 80.0
	UnderlineH = 2.0
)

// Mark is one user-placed item on a page overlay. Rect is used by all
// kinds; Points only by paths, Text by sticky notes and text boxes.
type Mark struct {
	ID     string
	Kind   Kind
	Page   int
	Rect   geom.Rect
	Points []geom.Point
	Text   string

	Color       engine.Color
	StrokeWidth float64
	FontSize    float64
	FontFamily  string

	// FieldName is set for form-field placements.
	FieldName string
}

// NewRedact builds a redaction rectangle mark.
func NewRedact(page int, r geom.Rect, c engine.Color) Mark {
	return Mark{ID: uuid.NewString(), Kind: KindRedact, Page: page, Rect: r, Color: c}
}

// NewHighlight builds a fixed-size highlight centered on p.
func NewHighlight(page int, p geom.Point) Mark {
	return Mark{
		ID:   uuid.NewString(),
		Kind: KindHighlight,
		Page: page,
		Rect: geom.Rect{X: p.X - HighlightW/2, Y: p.Y - HighlightH/2, W: HighlightW, H: HighlightH},
	}
}

// NewUnderline builds a fixed-size underline centered on p.
func NewUnderline(page int, p geom.Point) Mark {
	return Mark{
		ID:   uuid.NewString(),
		Kind: KindUnderline,
		Page: page,
		Rect: geom.Rect{X: p.X - UnderlineW/2, Y: p.Y - UnderlineH/2, W: UnderlineW, H: UnderlineH},
	}
}

// NewSticky builds an empty sticky note at p.
func NewSticky(page int, p geom.Point) Mark {
	return Mark{
		ID:   uuid.NewString(),
		Kind: KindSticky,
		Page: page,
		Rect: geom.Rect{X: p.X, Y: p.Y, W: 16, H: 16},
	}
}

// NewPath builds a freehand path mark from recorded points.
func NewPath(page int, pts []geom.Point, c engine.Color, stroke float64) Mark {
	bounds := pathBounds(pts)
	return Mark{
		ID:          uuid.NewString(),
		Kind:        KindPath,
		Page:        page,
		Rect:        bounds,
		Points:      append([]geom.Point(nil), pts...),
		Color:       c,
		StrokeWidth: stroke,
	}
}

// NewTextBox builds a text box mark.
func NewTextBox(page int, r geom.Rect, text string, fontSize float64, fontFamily string) Mark {
	return Mark{
		ID:         uuid.NewString(),
		Kind:       KindTextBox,
		Page:       page,
		Rect:       r,
		Text:       text,
		FontSize:   fontSize,
		FontFamily: fontFamily,
	}
}

// NewFormField builds a form-field placement mark.
func NewFormField(page int, p geom.Point, name string) Mark {
	return Mark{
		ID:        uuid.NewString(),
		Kind:      KindFormField,
		Page:      page,
		Rect:      geom.Rect{X: p.X, Y: p.Y, W: 120, H: 24},
		FieldName: name,
	}
}

func pathBounds(pts []geom.Point) geom.Rect {
	if len(pts) == 0 {
		return geom.Rect{}
	}
	minX, minY := pts[0].X, pts[0].Y
	maxX, maxY := pts[0].X, pts[0].Y
	for _, p := range pts[1:] {
		if p.X < minX {
			minX = p.X
		}
		if p.X > maxX {
			maxX = p.X
		}
		if p.Y < minY {
			minY = p.Y
		}
		if p.Y > maxY {
			maxY = p.Y
		}
	}
	return geom.Rect{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
}
