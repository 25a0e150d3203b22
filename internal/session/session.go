// Package session tracks open documents and the workspace that owns
// them. A DocumentSession is the full viewer state of one document:
// bytes, page count, navigation, zoom and page selection. Sessions are
// arranged in tab order inside a Workspace with one active at a time.
package session

import (
	"image"
	"sort"

	"github.com/fakeyudi/pagemark/internal/geom"
)

// PageDims is the size of one page in points.
type PageDims struct {
	W float64
	H float64
}

// Thumbnail is a small raster of one page, regenerated whenever the
// session's bytes change.
type Thumbnail struct {
	Page  int
	Image image.Image
}

// DocumentSession is one open document. The byte payload is owned
// exclusively by the session and replaced wholesale on every commit;
// in-flight readers holding the old slice stay valid until they
// finish.
type DocumentSession struct {
	ID      int
	Name    string
	Version int // bumped on every commit so stale async results can be detected

	data      []byte
	pageCount int
	pageDims  []PageDims // indexed by page-1

	CurrentPage int
	Zoom        float64

	selected map[int]bool
	Thumbs   []Thumbnail
}

// Bytes returns the current document bytes. Callers must treat the
// slice as immutable; commits install a new slice rather than patching
// this one.
func (s *DocumentSession) Bytes() []byte { return s.data }

// PageCount returns the number of pages.
func (s *DocumentSession) PageCount() int { return s.pageCount }

// PageSize returns page n's dimensions in points.
func (s *DocumentSession) PageSize(n int) PageDims {
	if n < 1 || n > len(s.pageDims) {
		return PageDims{}
	}
	return s.pageDims[n-1]
}

// SetCurrentPage clamps n into [1, pageCount] and makes it current.
func (s *DocumentSession) SetCurrentPage(n int) {
	if n < 1 {
		n = 1
	}
	if n > s.pageCount {
		n = s.pageCount
	}
	s.CurrentPage = n
}

// SetZoom clamps z into the legal zoom range and applies it.
func (s *DocumentSession) SetZoom(z float64) {
	s.Zoom = geom.ClampZoom(z)
}

// ToggleSelect flips page n's membership in the selection set.
// Out-of-range pages are ignored.
func (s *DocumentSession) ToggleSelect(n int) {
	if n < 1 || n > s.pageCount {
		return
	}
	if s.selected[n] {
		delete(s.selected, n)
	} else {
		s.selected[n] = true
	}
}

// Selected returns the selected page numbers in ascending order.
func (s *DocumentSession) Selected() []int {
	out := make([]int, 0, len(s.selected))
	for p := range s.selected {
		out = append(out, p)
	}
	sort.Ints(out)
	return out
}

// SelectionCount returns the number of selected pages.
func (s *DocumentSession) SelectionCount() int { return len(s.selected) }

// ClearSelection empties the selection set.
func (s *DocumentSession) ClearSelection() {
	s.selected = make(map[int]bool)
}

// replaceBytes installs a new payload and page geometry, clamps the
// current page to the new bound and clears the page selection.
func (s *DocumentSession) replaceBytes(data []byte, pageCount int, dims []PageDims, keepPage int) {
	s.data = data
	s.pageCount = pageCount
	s.pageDims = dims
	s.Version++
	s.ClearSelection()
	s.Thumbs = nil
	if keepPage < 1 {
		keepPage = s.CurrentPage
	}
	s.SetCurrentPage(keepPage)
}
