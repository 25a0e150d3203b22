package marks

import (
	"sort"

	"github.com/fakeyudi/pagemark/internal/geom"
)

// Store is an ordered, per-page collection of marks. Order within a
// page is creation order, which is also commit order.
type Store struct {
	byPage map[int][]Mark
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{byPage: make(map[int][]Mark)}
}

// Add appends m to its page's list.
func (s *Store) Add(m Mark) {
	s.byPage[m.Page] = append(s.byPage[m.Page], m)
}

// ByPage returns the marks for a page in creation order. The returned
// slice is a copy.
func (s *Store) ByPage(page int) []Mark {
	return append([]Mark(nil), s.byPage[page]...)
}

// OfKind returns the page's marks of one kind, in creation order.
func (s *Store) OfKind(page int, k Kind) []Mark {
	var out []Mark
	for _, m := range s.byPage[page] {
		if m.Kind == k {
			out = append(out, m)
		}
	}
	return out
}

// Pages returns the page numbers that hold at least one mark, sorted.
func (s *Store) Pages() []int {
	pages := make([]int, 0, len(s.byPage))
	for p, ms := range s.byPage {
		if len(ms) > 0 {
			pages = append(pages, p)
		}
	}
	sort.Ints(pages)
	return pages
}

// Count returns the total number of marks across all pages.
func (s *Store) Count() int {
	n := 0
	for _, ms := range s.byPage {
		n += len(ms)
	}
	return n
}

// CountKind returns the number of marks of one kind across all pages.
func (s *Store) CountKind(k Kind) int {
	n := 0
	for _, ms := range s.byPage {
		for _, m := range ms {
			if m.Kind == k {
				n++
			}
		}
	}
	return n
}

// HitTest returns the topmost (most recently added) mark of kind k on
// page containing p, or false.
func (s *Store) HitTest(page int, p geom.Point, k Kind) (Mark, bool) {
	ms := s.byPage[page]
	for i := len(ms) - 1; i >= 0; i-- {
		if ms[i].Kind == k && ms[i].Rect.Contains(p) {
			return ms[i], true
		}
	}
	return Mark{}, false
}

// Occupied reports whether any mark on the page contains p.
func (s *Store) Occupied(page int, p geom.Point) bool {
	for _, m := range s.byPage[page] {
		if m.Rect.Contains(p) {
			return true
		}
	}
	return false
}

// Remove deletes the mark with the given id. It reports whether a
// mark was removed and returns it.
func (s *Store) Remove(id string) (Mark, bool) {
	for page, ms := range s.byPage {
		for i, m := range ms {
			if m.ID == id {
				s.byPage[page] = append(ms[:i:i], ms[i+1:]...)
				return m, true
			}
		}
	}
	return Mark{}, false
}

// Get returns the mark with the given id.
func (s *Store) Get(id string) (Mark, bool) {
	for _, ms := range s.byPage {
		for _, m := range ms {
			if m.ID == id {
				return m, true
			}
		}
	}
	return Mark{}, false
}

// SetText replaces the text of the mark with the given id.
func (s *Store) SetText(id, text string) bool {
	for page, ms := range s.byPage {
		for i, m := range ms {
			if m.ID == id {
				m.Text = text
				s.byPage[page][i] = m
				return true
			}
		}
	}
	return false
}

// ClearKind removes every mark of kind k, returning how many were
// dropped.
func (s *Store) ClearKind(k Kind) int {
	n := 0
	for page, ms := range s.byPage {
		kept := ms[:0]
		for _, m := range ms {
			if m.Kind == k {
				n++
				continue
			}
			kept = append(kept, m)
		}
		s.byPage[page] = kept
	}
	return n
}

// Clear empties the store.
func (s *Store) Clear() {
	s.byPage = make(map[int][]Mark)
}
