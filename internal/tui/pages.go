package tui

import (
	"fmt"
	"strings"

	"github.com/fakeyudi/pagemark/internal/geom"
	"github.com/fakeyudi/pagemark/internal/marks"
	"github.com/fakeyudi/pagemark/internal/mode"
	"github.com/fakeyudi/pagemark/internal/render"
)

// cell glyphs per mark kind
const (
	glyphRedact    = '█'
	glyphHighlight = '▒'
	glyphUnderline = '─'
	glyphSticky    = '◆'
	glyphPath      = '·'
	glyphTextBox   = '□'
	glyphField     = '⊞'
)

// pageGrid is one page's character cells before styling.
type pageGrid struct {
	cells  [][]rune
	styles [][]int // index into cellStyles, 0 = plain
	w, h   int
}

var cellStyles = []func(string) string{
	func(s string) string { return s },
	func(s string) string { return redactCellStyle.Render(s) },
	func(s string) string { return highlightCellStyle.Render(s) },
	func(s string) string { return underlineCellStyle.Render(s) },
	func(s string) string { return stickyCellStyle.Render(s) },
	func(s string) string { return pathCellStyle.Render(s) },
	func(s string) string { return textCellStyle.Render(s) },
	func(s string) string { return fieldCellStyle.Render(s) },
}

const (
	styleRedact = iota + 1
	styleHighlight
	styleUnderline
	styleSticky
	stylePath
	styleText
	styleField
)

func newPageGrid(w, h int) *pageGrid {
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	g := &pageGrid{w: w, h: h}
	g.cells = make([][]rune, h)
	g.styles = make([][]int, h)
	for y := 0; y < h; y++ {
		g.cells[y] = make([]rune, w)
		g.styles[y] = make([]int, w)
		for x := 0; x < w; x++ {
			g.cells[y][x] = ' '
		}
	}
	return g
}

func (g *pageGrid) set(x, y int, r rune, style int) {
	if x < 0 || x >= g.w || y < 0 || y >= g.h {
		return
	}
	g.cells[y][x] = r
	g.styles[y][x] = style
}

// fill covers the cells of a screen-space rect relative to the page
// origin.
func (g *pageGrid) fill(r geom.Rect, glyph rune, style int) {
	x0 := int(r.X / cellW)
	y0 := int(r.Y / cellH)
	x1 := int((r.X + r.W) / cellW)
	y1 := int((r.Y + r.H) / cellH)
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			g.set(x, y, glyph, style)
		}
	}
}

func (g *pageGrid) String() string {
	var sb strings.Builder
	for y := 0; y < g.h; y++ {
		// Group runs of equal style so each row costs few escape
		// sequences.
		x := 0
		for x < g.w {
			style := g.styles[y][x]
			start := x
			for x < g.w && g.styles[y][x] == style {
				x++
			}
			sb.WriteString(cellStyles[style](string(g.cells[y][start:x])))
		}
		if y < g.h-1 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// drawMarks stamps every mark of the page into the grid. Geometry is
// already screen space, the overlay's native coordinates.
func drawMarks(g *pageGrid, st *marks.Store, page int) {
	if st == nil {
		return
	}
	for _, mk := range st.ByPage(page) {
		switch mk.Kind {
		case marks.KindRedact:
			g.fill(mk.Rect, glyphRedact, styleRedact)
		case marks.KindHighlight:
			g.fill(mk.Rect, glyphHighlight, styleHighlight)
		case marks.KindUnderline:
			g.fill(mk.Rect, glyphUnderline, styleUnderline)
		case marks.KindSticky:
			g.set(int(mk.Rect.X/cellW), int(mk.Rect.Y/cellH), glyphSticky, styleSticky)
		case marks.KindPath:
			for _, pt := range mk.Points {
				g.set(int(pt.X/cellW), int(pt.Y/cellH), glyphPath, stylePath)
			}
		case marks.KindTextBox:
			g.fill(mk.Rect, glyphTextBox, styleText)
			drawLabel(g, mk.Rect, mk.Text, styleText)
		case marks.KindFormField:
			g.fill(mk.Rect, glyphField, styleField)
		}
	}
}

// drawLabel writes the first line of text into the rect so text boxes
// and notes show their content inline.
func drawLabel(g *pageGrid, r geom.Rect, text string, style int) {
	if text == "" {
		return
	}
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	x := int(r.X/cellW) + 1
	y := int(r.Y/cellH) + 1
	for _, ch := range text {
		g.set(x, y, ch, style)
		x++
	}
}

// renderPages lays every page surface out vertically, with marks, the
// live drag preview and the in-progress freehand path stamped on top.
// The output is a pure function of the frame, zoom, marks and mode
// state.
func renderPages(frame *render.Frame, zoom float64, st *marks.Store, selected []int, modes *mode.Controller) string {
	sel := make(map[int]bool, len(selected))
	for _, p := range selected {
		sel[p] = true
	}

	var sb strings.Builder
	for i, surface := range frame.Pages {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(renderPage(surface, zoom, st, sel[surface.Page], modes))
	}
	return sb.String()
}

func renderPage(surface render.PageSurface, zoom float64, st *marks.Store, selected bool, modes *mode.Controller) string {
	w := int(surface.Bounds.W / cellW)
	h := int(surface.Bounds.H / cellH)
	g := newPageGrid(w, h)

	if surface.Failed {
		label := "render failed"
		for i, ch := range label {
			g.set(w/2-len(label)/2+i, h/2, ch, 0)
		}
	}

	drawMarks(g, st, surface.Page)

	if modes != nil {
		if page, r, ok := modes.DragPreview(); ok && page == surface.Page {
			g.fill(r, glyphRedact, styleRedact)
		}
		if page, pts, ok := modes.ActivePath(); ok && page == surface.Page {
			for _, pt := range pts {
				g.set(int(pt.X/cellW), int(pt.Y/cellH), glyphPath, stylePath)
			}
		}
	}

	label := fmt.Sprintf(" page %d ", surface.Page)
	style := pageLabelStyle
	if selected {
		label = fmt.Sprintf(" page %d ✓ ", surface.Page)
		style = selectedLabelStyle
	}
	body := g.String()
	if surface.Failed {
		body = failedPageStyle.Render(body)
	}

	top := pageBorderStyle.Render("┌" + strings.Repeat("─", w) + "┐")
	bottom := pageBorderStyle.Render("└" + strings.Repeat("─", w) + "┘")

	var sb strings.Builder
	sb.WriteString(style.Render(label))
	sb.WriteString(fmt.Sprintf("  %.0f×%.0f @ %.0f%%\n", surface.Bounds.W/zoom, surface.Bounds.H/zoom, zoom*100))
	sb.WriteString(top)
	sb.WriteByte('\n')
	for _, line := range strings.Split(body, "\n") {
		sb.WriteString(pageBorderStyle.Render("│"))
		sb.WriteString(line)
		sb.WriteString(pageBorderStyle.Render("│"))
		sb.WriteByte('\n')
	}
	sb.WriteString(bottom)
	return sb.String()
}
