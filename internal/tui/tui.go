package tui

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/marcin-skalski/repo-manager/internal/app"
	"github.com/marcin-skalski/repo-manager/internal/clone"
	"github.com/marcin-skalski/repo-manager/internal/repository"
	"github.com/marcin-skalski/repo-manager/internal/sortorder"
	"github.com/marcin-skalski/repo-manager/internal/tree"
)

type Backend interface {
	Snapshot() app.Snapshot
	Hide(n *tree.Node) error
	Unhide(n *tree.Node) error
	ToggleSort() (sortorder.Order, error)
	Reload()
	CloneNode(ctx context.Context, n *tree.Node) (string, error)
	DeleteStatus(n *tree.Node) (repository.Dirtiness, error)
	DeleteNode(n *tree.Node) error
}

type Model struct {
	ctx             context.Context
	backend         Backend
	refreshInterval time.Duration

	snapshot app.Snapshot
	rows     []row
	expanded expansion
	cursor   int
	offset   int

	width  int
	height int

	status   string
	cloning  bool
	deleting bool
	confirm  *deleteConfirm
}

// deleteConfirm is a delete waiting for y/n.
type deleteConfirm struct {
	node   *tree.Node
	title  string
	detail string
	dirty  bool
}

type tickMsg time.Time

// changedMsg is sent when the hidden state, the sort order or the catalog
// changes.
type changedMsg struct{}

type cloneDoneMsg struct {
	name string
	dir  string
	err  error
}

type deleteDoneMsg struct {
	name string
	err  error
}

func NewModel(ctx context.Context, backend Backend, refreshInterval time.Duration) Model {
	m := Model{
		ctx:             ctx,
		backend:         backend,
		refreshInterval: refreshInterval,
		expanded:        expansion{},
	}
	m.refresh()
	return m
}

// Run shows the tree until the user quits or ctx is done. subscribe
// registers for change notifications.
func Run(ctx context.Context, backend Backend, subscribe func(fn func()) func(), refreshInterval time.Duration) error {
	p := tea.NewProgram(NewModel(ctx, backend, refreshInterval), tea.WithAltScreen(), tea.WithContext(ctx))

	// Notifications may fire from inside Update; Send must not block it.
	unsubscribe := subscribe(func() { go p.Send(changedMsg{}) })
	defer unsubscribe()

	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}

func (m Model) Init() tea.Cmd {
	return tickCmd(m.refreshInterval)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.scrollToCursor()

	case tea.KeyMsg:
		return m.handleKey(msg)

	case changedMsg:
		m.refresh()

	case cloneDoneMsg:
		m.cloning = false
		if msg.err != nil {
			m.status = "Clone failed: " + msg.err.Error()
		} else {
			m.status = fmt.Sprintf("Cloned %s to %s", msg.name, msg.dir)
		}

	case deleteDoneMsg:
		m.deleting = false
		if msg.err != nil {
			m.status = "Delete failed: " + msg.err.Error()
		} else {
			m.status = "Locally deleted " + msg.name
		}
		m.refresh()

	case tickMsg:
		m.refresh()
		return m, tickCmd(m.refreshInterval)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.confirm != nil {
		return m.handleConfirm(msg)
	}

	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.rows)-1 {
			m.cursor++
		}
	case "home", "g":
		m.cursor = 0
	case "end", "G":
		m.cursor = max(0, len(m.rows)-1)
	case "enter", " ":
		if n := m.selected(); n != nil && len(n.Children) > 0 {
			m.expanded.set(n, !m.expanded.isOpen(n))
			m.relayout()
		}
	case "right", "l":
		if n := m.selected(); n != nil && len(n.Children) > 0 {
			m.expanded.set(n, true)
			m.relayout()
		}
	case "left":
		n := m.selected()
		if n == nil {
			break
		}
		if len(n.Children) > 0 && m.expanded.isOpen(n) {
			m.expanded.set(n, false)
			m.relayout()
		} else if p := parentIndex(m.rows, m.cursor); p >= 0 {
			m.cursor = p
		}
	case "h":
		m.status = actionStatus("Hidden", m.selected(), m.backend.Hide(m.selected()))
		m.refresh()
	case "u":
		m.status = actionStatus("Restored", m.selected(), m.backend.Unhide(m.selected()))
		m.refresh()
	case "s":
		order, err := m.backend.ToggleSort()
		if err != nil {
			m.status = "Sort failed: " + err.Error()
		} else {
			m.status = "Sorted by " + orderLabel(order)
		}
		m.refresh()
	case "r":
		m.backend.Reload()
		m.status = "Reloading..."
	case "c":
		n := m.selected()
		if n == nil || !n.CanClone() {
			m.status = "Select a repository under Not Cloned to clone it"
			break
		}
		if m.cloning {
			m.status = "A clone is already running"
			break
		}
		m.cloning = true
		m.status = "Cloning " + n.Repo.FullName() + "..."
		return m, m.cloneCmd(n)
	case "d":
		n := m.selected()
		if m.deleting {
			m.status = "A delete is already running"
			break
		}
		d, err := m.backend.DeleteStatus(n)
		if err != nil {
			m.status = "Select a cloned repository to delete it"
			break
		}
		title, detail := clone.DeletePrompt(n.Repo.Name, d)
		m.confirm = &deleteConfirm{node: n, title: title, detail: detail, dirty: d == repository.Dirty}
		m.status = ""
	}

	m.scrollToCursor()
	return m, nil
}

// handleConfirm answers a pending delete: y deletes, anything else cancels.
func (m Model) handleConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	c := m.confirm
	m.confirm = nil
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}
	if msg.String() != "y" && msg.String() != "Y" {
		m.status = "Delete cancelled"
		return m, nil
	}
	m.deleting = true
	m.status = "Locally deleting " + c.node.Repo.Name + "..."
	return m, m.deleteCmd(c.node)
}

func (m Model) deleteCmd(n *tree.Node) tea.Cmd {
	backend := m.backend
	return func() tea.Msg {
		return deleteDoneMsg{name: n.Repo.Name, err: backend.DeleteNode(n)}
	}
}

func (m Model) cloneCmd(n *tree.Node) tea.Cmd {
	ctx, backend := m.ctx, m.backend
	return func() tea.Msg {
		dir, err := backend.CloneNode(ctx, n)
		return cloneDoneMsg{name: n.Repo.FullName(), dir: dir, err: err}
	}
}

func (m Model) selected() *tree.Node {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return nil
	}
	return m.rows[m.cursor].node
}

// refresh rebuilds the tree and keeps the cursor on the same node when it
// still exists.
func (m *Model) refresh() {
	m.snapshot = m.backend.Snapshot()
	m.relayout()
}

func (m *Model) relayout() {
	selectedID := ""
	if n := m.selected(); n != nil {
		selectedID = n.ID
	}
	m.rows = flatten(m.snapshot.Roots, m.expanded)

	for i, r := range m.rows {
		if r.node.ID == selectedID {
			m.cursor = i
			m.scrollToCursor()
			return
		}
	}
	m.cursor = min(m.cursor, len(m.rows)-1)
	m.cursor = max(m.cursor, 0)
	m.scrollToCursor()
}

func (m *Model) scrollToCursor() {
	visible := m.visibleRows()
	if visible <= 0 {
		return
	}
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+visible {
		m.offset = m.cursor - visible + 1
	}
}

// visibleRows is the tree height left after header and footer, or 0 before
// the terminal size is known.
func (m Model) visibleRows() int {
	if m.height == 0 {
		return 0
	}
	return max(1, m.height-5)
}

func (m Model) View() string {
	return renderView(m)
}

func actionStatus(verb string, n *tree.Node, err error) string {
	if err != nil {
		if errors.Is(err, app.ErrNotApplicable) {
			return "Nothing to do for the selected item"
		}
		return err.Error()
	}
	return verb + " " + n.Label
}

func orderLabel(o sortorder.Order) string {
	if o == sortorder.Alphabetical {
		return "name"
	}
	return "last updated"
}

func tickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
