// Package tui provides the Bubble Tea front end for the pagemark
// workspace: document tabs, a scrollable page viewport with overlay
// marks, a mode banner and a status bar.
package tui

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fakeyudi/pagemark/internal/editor"
	"github.com/fakeyudi/pagemark/internal/geom"
	"github.com/fakeyudi/pagemark/internal/mode"
	"github.com/fakeyudi/pagemark/internal/render"
	"github.com/fakeyudi/pagemark/internal/watch"
)

// ── Styles ────────────

var (
	// Title bar at the very top
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 2)

	// Active document tab: bright
	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	// Inactive document tab: muted
	inactiveTabStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("245")).
				Background(lipgloss.Color("235")).
				Padding(0, 1)

	tabSepStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("238")).
			Background(lipgloss.Color("235"))

	bannerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("178")).
			Padding(0, 1)

	pageBorderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	pageLabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("33")).
			Bold(true)

	selectedLabelStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("15")).
				Background(lipgloss.Color("62")).
				Bold(true)

	failedPageStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	redactCellStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("0"))
	highlightCellStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	underlineCellStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	stickyCellStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	pathCellStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	textCellStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	fieldCellStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))

	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("245")).
			Padding(0, 1)

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)
)

// A terminal cell is not square: one row covers about twice the
// points of one column. cellW/cellH map screen-space points to cells.
const (
	cellW = 8.0
	cellH = 16.0
)

// clickSlop is how far, in screen points, a release may land from its
// press and still count as a click. Press and release in the same
// terminal cell always qualify; one cell of travel never does.
const clickSlop = 4.0

// ── Sinks ────────────

// Sinks is the mutable surface the editor core writes into. The
// Bubble Tea model is copied on every Update, so the sinks live
// behind a pointer the copies share.
type Sinks struct {
	status   string
	banner   string
	enabled  map[string]bool
	lastErr  string
	armed    bool // next Confirm call answers yes
	editMark string
}

func (u *Sinks) Enable(ids ...string) {
	for _, id := range ids {
		u.enabled[id] = true
	}
}

func (u *Sinks) Disable(ids ...string) {
	for _, id := range ids {
		delete(u.enabled, id)
	}
}

func (u *Sinks) Status(text string) { u.status = text }
func (u *Sinks) Banner(text string) { u.banner = text }

func (u *Sinks) Error(msg string) { u.lastErr = msg }

// Confirm answers yes only when the user armed the pending action by
// repeating its key.
func (u *Sinks) Confirm(string) bool { return u.armed }

// ── Messages ────────────

type renderedMsg struct {
	frame *render.Frame
	gen   uint64
	err   error
}

type fileChangedMsg struct{ path string }

// inputPurpose says what the text prompt collects when open.
type inputPurpose int

const (
	inputNone inputPurpose = iota
	inputSearch
	inputGoto
	inputMarkText
	inputFieldValue
)

// ── Model ────────────

// Model is the root Bubble Tea model for the workspace.
type Model struct {
	ed *editor.Editor
	ui *Sinks

	vp      viewport.Model
	width   int
	height  int
	ready   bool
	pending string // key awaiting a confirming repeat

	input      textinput.Model
	purpose    inputPurpose
	inputField string // mark id or field name the prompt targets

	// Where the last left press landed, for click detection on release.
	pressPage int
	pressPos  geom.Point

	watcher *watch.Watcher
}

// New builds the model around an editor whose sinks must be the
// Sinks returned by NewSinks.
func New(ed *editor.Editor, ui *Sinks, watcher *watch.Watcher) Model {
	ti := textinput.New()
	ti.CharLimit = 256
	m := Model{ed: ed, ui: ui, input: ti, watcher: watcher}
	ed.OnEditRequest = func(markID string) { ui.editMark = markID }
	return m
}

// NewSinks returns the shared sink state to hand to editor.Config as
// Controls, Status and Dialogs.
func NewSinks() *Sinks {
	return &Sinks{enabled: make(map[string]bool)}
}

// ── Bubble Tea interface ───────────────

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.renderCmd(), m.watchCmd())
}

// renderCmd starts an asynchronous render pass for the active
// session. The resulting frame carries the pass generation; stale
// completions are dropped in Update.
func (m Model) renderCmd() tea.Cmd {
	s := m.ed.Workspace().Active()
	if s == nil {
		return nil
	}
	p := m.ed.Pipeline()
	ctx, gen := p.Begin(context.Background())
	return func() tea.Msg {
		frame, err := p.RenderAll(ctx, s, gen)
		return renderedMsg{frame: frame, gen: gen, err: err}
	}
}

func (m Model) watchCmd() tea.Cmd {
	if m.watcher == nil {
		return nil
	}
	ch := m.watcher.C
	return func() tea.Msg {
		c, ok := <-ch
		if !ok {
			return nil
		}
		return fileChangedMsg{path: c.Path}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.purpose != inputNone {
			return m.updatePrompt(msg)
		}
		return m.updateKeys(msg)

	case tea.MouseMsg:
		return m.updateMouse(msg)

	case renderedMsg:
		if msg.err != nil || m.ed.Pipeline().Stale(msg.gen) {
			return m, nil
		}
		m.ed.Pipeline().Apply(msg.frame)
		m.refreshContent()
		return m, nil

	case fileChangedMsg:
		m.ui.status = fmt.Sprintf("%s changed on disk. Close and reopen the tab to pick up the new contents", msg.path)
		return m, m.watchCmd()

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.vp = viewport.New(msg.Width, m.contentHeight())
		m.refreshContent()
		return m, nil
	}
	return m, nil
}

// contentHeight is the viewport height after the fixed chrome rows:
// title, tab bar, banner, status bar.
func (m Model) contentHeight() int {
	h := m.height - 4
	if h < 1 {
		h = 1
	}
	return h
}

func (m Model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	// A destructive key pressed twice in a row confirms itself.
	if m.pending != "" && key == m.pending {
		m.ui.armed = true
		m.pending = ""
	} else if m.pending != "" {
		m.pending = ""
		m.ui.status = ""
	}

	s := m.ed.Workspace().Active()

	switch key {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "tab":
		m.switchTab(1)
		return m, m.renderCmd()
	case "shift+tab":
		m.switchTab(-1)
		return m, m.renderCmd()

	case "ctrl+w":
		if s != nil {
			m.ed.Close(s.ID)
			m.refreshContent()
			return m, m.renderCmd()
		}

	case "j", "down":
		m.vp.ScrollDown(1)
		m.scrollChanged()
		return m, nil
	case "k", "up":
		m.vp.ScrollUp(1)
		m.scrollChanged()
		return m, nil
	case "pgdown", " ":
		m.vp.PageDown()
		m.scrollChanged()
		return m, nil
	case "pgup":
		m.vp.PageUp()
		m.scrollChanged()
		return m, nil

	case "n":
		if s != nil {
			m.scrollToPage(s.CurrentPage + 1)
		}
		return m, nil
	case "p":
		if s != nil {
			m.scrollToPage(s.CurrentPage - 1)
		}
		return m, nil
	case "g":
		m.openPrompt(inputGoto, "go to page")
		return m, textinput.Blink

	case "+", "=":
		if s != nil {
			m.ed.SetZoom(s.Zoom + 0.25)
			m.refreshContent()
			return m, m.renderCmd()
		}
	case "-":
		if s != nil {
			m.ed.SetZoom(s.Zoom - 0.25)
			m.refreshContent()
			return m, m.renderCmd()
		}

	case "x":
		if s != nil {
			s.ToggleSelect(s.CurrentPage)
			m.refreshContent()
		}
		return m, nil

	case "t":
		m.ed.Modes().Toggle(mode.StateTextEdit)
	case "r":
		m.ed.Modes().Toggle(mode.StateRedact)
	case "h":
		m.ed.Modes().Toggle(mode.StateHighlight)
	case "u":
		m.ed.Modes().Toggle(mode.StateUnderline)
	case "s":
		m.ed.Modes().Toggle(mode.StateSticky)
	case "d":
		m.ed.Modes().Toggle(mode.StateDraw)
	case "f":
		m.ed.Modes().Toggle(mode.StateAddField)
	case "esc":
		m.ed.Modes().Escape()

	case "a":
		if m.ui.enabled[editor.ApplyBarControl] {
			m.ed.ApplyRedactions(context.Background())
			return m, m.commitRefresh()
		}
	case "c":
		m.ed.CommitAnnotations(context.Background())
		return m, m.commitRefresh()

	case "/":
		m.openPrompt(inputSearch, "redact text")
		return m, textinput.Blink

	case "v":
		m.openPrompt(inputFieldValue, "fill field (name=value)")
		return m, textinput.Blink

	case "D":
		if m.pendingKey("D", "delete selected pages") {
			m.ed.DeleteSelectedPages(context.Background())
			m.ui.armed = false
			return m, m.commitRefresh()
		}
		return m, nil
	case "R":
		if s != nil {
			m.ed.RotateSelected(context.Background(), 90)
			return m, m.commitRefresh()
		}
	case "F":
		m.ed.FlattenForm(context.Background())
		return m, m.commitRefresh()

	case "z", "ctrl+z":
		m.ed.Undo(context.Background())
		return m, m.commitRefresh()
	case "y", "ctrl+y":
		m.ed.Redo(context.Background())
		m.refreshContent()
		return m, nil
	}

	if cmd := m.maybeEditMark(); cmd != nil {
		return m, cmd
	}

	m.refreshContent()
	return m, nil
}

// maybeEditMark opens the text prompt when a mode asked for a mark's
// inline editor (sticky note toggled, text box placed or reopened).
func (m *Model) maybeEditMark() tea.Cmd {
	if m.ui.editMark == "" {
		return nil
	}
	id := m.ui.editMark
	m.ui.editMark = ""
	m.openPrompt(inputMarkText, "note text")
	m.inputField = id
	if st := m.ed.Marks(); st != nil {
		if mk, ok := st.Get(id); ok {
			m.input.SetValue(mk.Text)
		}
	}
	return textinput.Blink
}

// pendingKey reports whether the action key was already armed; on the
// first press it records the pending action and asks for the repeat.
func (m *Model) pendingKey(key, what string) bool {
	if m.ui.armed {
		return true
	}
	m.pending = key
	m.ui.status = fmt.Sprintf("Press %s again to %s", key, what)
	return false
}

func (m *Model) switchTab(dir int) {
	ws := m.ed.Workspace()
	if ws.Len() < 2 {
		return
	}
	idx := (ws.ActiveIndex() + dir + ws.Len()) % ws.Len()
	m.ed.SwitchTo(ws.Sessions()[idx].ID)
	m.refreshContent()
}

func (m *Model) scrollToPage(n int) {
	offset := m.ed.GoToPage(n)
	m.vp.SetYOffset(int(offset / cellH))
	m.refreshContent()
}

// commitRefresh re-renders after a document mutation and puts the
// viewport back on the page the commit kept current.
func (m *Model) commitRefresh() tea.Cmd {
	if s := m.ed.Workspace().Active(); s != nil {
		m.scrollToPage(s.CurrentPage)
	} else {
		m.refreshContent()
	}
	return m.renderCmd()
}

func (m *Model) scrollChanged() {
	m.ed.ScrollChanged(float64(m.vp.YOffset)*cellH, float64(m.vp.Height)*cellH)
	m.refreshContent()
}

// ── Prompt handling ───────────────

func (m *Model) openPrompt(p inputPurpose, prompt string) {
	m.purpose = p
	m.input.Prompt = prompt + ": "
	m.input.SetValue("")
	m.input.Focus()
}

func (m Model) updatePrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.purpose = inputNone
		m.input.Blur()
		return m, nil
	case "enter":
		value := m.input.Value()
		purpose := m.purpose
		m.purpose = inputNone
		m.input.Blur()
		return m.submitPrompt(purpose, value)
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submitPrompt(purpose inputPurpose, value string) (tea.Model, tea.Cmd) {
	switch purpose {
	case inputGoto:
		var n int
		if _, err := fmt.Sscanf(strings.TrimSpace(value), "%d", &n); err == nil {
			m.scrollToPage(n)
		}
		return m, nil

	case inputSearch:
		if value != "" {
			m.ed.SearchRedact(context.Background(), value)
			m.refreshContent()
		}
		return m, nil

	case inputMarkText:
		if st := m.ed.Marks(); st != nil {
			st.SetText(m.inputField, value)
		}
		m.refreshContent()
		return m, nil

	case inputFieldValue:
		name, fieldValue, ok := strings.Cut(value, "=")
		if !ok {
			m.ui.status = "Expected name=value"
			return m, nil
		}
		m.ed.SetFieldValue(context.Background(), strings.TrimSpace(name), fieldValue)
		return m, m.commitRefresh()
	}
	return m, nil
}

// ── Mouse routing ───────────────

// updateMouse converts the cell position to screen-space points,
// resolves the page under it and dispatches to that page's overlays.
func (m Model) updateMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	var kind render.PointerKind
	switch {
	case msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft:
		kind = render.PointerDown
	case msg.Action == tea.MouseActionMotion:
		kind = render.PointerMove
	case msg.Action == tea.MouseActionRelease && msg.Button == tea.MouseButtonLeft:
		kind = render.PointerUp
	case msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonRight:
		kind = render.PointerRightClick
	default:
		return m, nil
	}

	pos := geom.Point{
		X: float64(msg.X) * cellW,
		Y: (float64(msg.Y-3) + float64(m.vp.YOffset)) * cellH,
	}
	page, local, ok := m.ed.Pipeline().PageAt(pos)
	if !ok {
		return m, nil
	}
	if kind == render.PointerDown {
		m.pressPage = page
		m.pressPos = local
	}

	ev := render.PointerEvent{Page: page, Kind: kind, Pos: local}
	for _, overlayKind := range []render.OverlayKind{render.OverlayTextEdit, render.OverlayRedaction, render.OverlayAnnotation} {
		if o := m.ed.Pipeline().Overlay(overlayKind, page); o != nil {
			o.Dispatch(ev)
		}
	}
	// A press and release on the same spot is also a click for the
	// click-to-place modes. A release that ends a drag is not.
	if kind == render.PointerUp {
		if page == m.pressPage && withinSlop(local, m.pressPos) {
			ev.Kind = render.PointerClick
			for _, overlayKind := range []render.OverlayKind{render.OverlayTextEdit, render.OverlayRedaction, render.OverlayAnnotation} {
				if o := m.ed.Pipeline().Overlay(overlayKind, page); o != nil {
					o.Dispatch(ev)
				}
			}
		}
		m.pressPage = 0
	}
	if cmd := m.maybeEditMark(); cmd != nil {
		return m, cmd
	}
	m.refreshContent()
	return m, nil
}

func withinSlop(a, b geom.Point) bool {
	return math.Abs(a.X-b.X) <= clickSlop && math.Abs(a.Y-b.Y) <= clickSlop
}

// ── View ───────────────

func (m Model) View() string {
	if !m.ready {
		return "Loading…"
	}

	title := titleStyle.Width(m.width).Render("  pagemark")

	tabRow := m.renderTabs()

	banner := ""
	if m.ui.banner != "" {
		banner = bannerStyle.Width(m.width).Render(m.ui.banner)
	} else {
		banner = strings.Repeat(" ", m.width)
	}

	content := m.vp.View()

	return lipgloss.JoinVertical(lipgloss.Left, title, tabRow, banner, content, m.renderStatusBar())
}

func (m Model) renderTabs() string {
	ws := m.ed.Workspace()
	if ws.Len() == 0 {
		return inactiveTabStyle.Width(m.width).Render("no documents open")
	}
	var parts []string
	for i, s := range ws.Sessions() {
		label := fmt.Sprintf(" %d %s ", i+1, s.Name)
		if i == ws.ActiveIndex() {
			parts = append(parts, activeTabStyle.Render(label))
		} else {
			parts = append(parts, inactiveTabStyle.Render(label))
		}
		if i < ws.Len()-1 {
			parts = append(parts, tabSepStyle.Render("│"))
		}
	}
	return lipgloss.NewStyle().
		Background(lipgloss.Color("235")).
		Width(m.width).
		Render(lipgloss.JoinHorizontal(lipgloss.Top, parts...))
}

func (m Model) renderStatusBar() string {
	if m.purpose != inputNone {
		return promptStyle.Width(m.width).Render(m.input.View())
	}

	hint := "  tab docs  n/p page  +/- zoom  r/h/u/s/d/t/f modes  / redact  z undo  q quit"
	left := hint
	if m.ui.status != "" {
		left = "  " + m.ui.status
	} else if m.ui.lastErr != "" {
		left = "  ✗ " + m.ui.lastErr
	}

	right := ""
	if s := m.ed.Workspace().Active(); s != nil {
		right = fmt.Sprintf("p.%d/%d  %3.0f%%", s.CurrentPage, s.PageCount(), s.Zoom*100)
	}
	pad := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if pad < 1 {
		pad = 1
	}
	return statusBarStyle.Width(m.width).Render(left + strings.Repeat(" ", pad) + right)
}

// Run starts the workspace UI in the alternate screen with mouse
// reporting on.
func Run(ed *editor.Editor, ui *Sinks, watcher *watch.Watcher) error {
	p := tea.NewProgram(New(ed, ui, watcher), tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, err := p.Run()
	return err
}

// refreshContent re-renders the page grid into the viewport.
func (m *Model) refreshContent() {
	s := m.ed.Workspace().Active()
	if s == nil {
		m.vp.SetContent(hintStyle.Render("\n  Open a document with: pagemark open <file>"))
		return
	}
	frame := m.ed.Pipeline().Frame()
	if frame == nil {
		return
	}
	m.vp.SetContent(renderPages(frame, s.Zoom, m.ed.Marks(), s.Selected(), m.ed.Modes()))
}
