package geom_test

import (
	"math"
	"testing"

	"pgregory.net/rapid"

	"github.com/fakeyudi/pagemark/internal/geom"
)

// generateRect produces an arbitrary screen-space rectangle on a page.
func generateRect(t *rapid.T) geom.Rect {
	return geom.Rect{
		X: rapid.Float64Range(0, 2000).Draw(t, "x"),
		Y: rapid.Float64Range(0, 3000).Draw(t, "y"),
		W: rapid.Float64Range(0, 500).Draw(t, "w"),
		H: rapid.Float64Range(0, 500).Draw(t, "h"),
	}
}

// Property: document-space conversion followed by the inverse recovers
// the original screen rectangle for every legal zoom.
func TestTransformRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		screen := generateRect(t)
		zoom := rapid.Float64Range(geom.MinZoom, geom.MaxZoom).Draw(t, "zoom")
		pageHeight := rapid.Float64Range(100, 2000).Draw(t, "page_height")

		doc := geom.ToDocumentSpace(screen, zoom, pageHeight)
		back := geom.ToScreenSpace(doc, zoom, pageHeight)

		const tol = 1e-9
		if math.Abs(back.X-screen.X) > tol ||
			math.Abs(back.Y-screen.Y) > tol ||
			math.Abs(back.W-screen.W) > tol ||
			math.Abs(back.H-screen.H) > tol {
			t.Fatalf("round trip drifted: %+v -> %+v", screen, back)
		}
	})
}

// Scenario from the redaction flow: a 50x20 drag at (100,100) on a
// zoom-2.0 render lands at (50, pageHeight-60, 25, 10) in points.
func TestTransformAtDoubleZoom(t *testing.T) {
	pageHeight := 792.0
	doc := geom.ToDocumentSpace(geom.Rect{X: 100, Y: 100, W: 50, H: 20}, 2.0, pageHeight)

	const tol = 1e-9
	want := geom.Rect{X: 50, Y: pageHeight - 60, W: 25, H: 10}
	if math.Abs(doc.X-want.X) > tol || math.Abs(doc.Y-want.Y) > tol ||
		math.Abs(doc.W-want.W) > tol || math.Abs(doc.H-want.H) > tol {
		t.Fatalf("got %+v, want %+v", doc, want)
	}
}

func TestClampZoom(t *testing.T) {
	cases := []struct{ in, want float64 }{
		{0.1, 0.25},
		{0.25, 0.25},
		{1.0, 1.0},
		{4.0, 4.0},
		{7.5, 4.0},
	}
	for _, c := range cases {
		if got := geom.ClampZoom(c.in); got != c.want {
			t.Errorf("ClampZoom(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestRectContains(t *testing.T) {
	r := geom.Rect{X: 10, Y: 10, W: 20, H: 20}
	if !r.Contains(geom.Point{X: 10, Y: 10}) {
		t.Error("corner should be inside")
	}
	if !r.Contains(geom.Point{X: 30, Y: 30}) {
		t.Error("far corner should be inside")
	}
	if r.Contains(geom.Point{X: 31, Y: 20}) {
		t.Error("point past right edge should be outside")
	}
}
