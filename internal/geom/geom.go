// Package geom provides the coordinate mapping between screen space
// (pixels at the current zoom, y-down, origin at the page's top-left)
// and document space (points, y-up, origin at the page's bottom-left).
package geom

// Zoom bounds for every document session.
const (
	MinZoom = 0.25
	MaxZoom = 4.0
)

// Point is a position in either coordinate space.
type Point struct {
	X float64
	Y float64
}

// Rect is an axis-aligned rectangle in either coordinate space.
type Rect struct {
	X float64
	Y float64
	W float64
	H float64
}

// Contains reports whether p lies inside r (edges inclusive).
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X <= r.X+r.W && p.Y >= r.Y && p.Y <= r.Y+r.H
}

// ClampZoom limits z to [MinZoom, MaxZoom].
func ClampZoom(z float64) float64 {
	if z < MinZoom {
		return MinZoom
	}
	if z > MaxZoom {
		return MaxZoom
	}
	return z
}

// ToDocumentSpace maps a screen-space rectangle to document space.
// Screen coordinates are divided by zoom and the y axis is flipped
// around the page height, so the returned rect's origin is the mark's
// bottom-left corner in points. The conversion must use the zoom in
// effect at the moment of the call, never a cached one: marks are
// authored in screen space and only become zoom-invariant here.
func ToDocumentSpace(screen Rect, zoom, pageHeight float64) Rect {
	return Rect{
		X: screen.X / zoom,
		Y: pageHeight - screen.Y/zoom - screen.H/zoom,
		W: screen.W / zoom,
		H: screen.H / zoom,
	}
}

// ToScreenSpace is the inverse of ToDocumentSpace.
func ToScreenSpace(doc Rect, zoom, pageHeight float64) Rect {
	return Rect{
		X: doc.X * zoom,
		Y: (pageHeight - doc.Y - doc.H) * zoom,
		W: doc.W * zoom,
		H: doc.H * zoom,
	}
}

// ToDocumentPoint maps a single screen-space point to document space.
func ToDocumentPoint(p Point, zoom, pageHeight float64) Point {
	return Point{
		X: p.X / zoom,
		Y: pageHeight - p.Y/zoom,
	}
}
