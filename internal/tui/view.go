package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/marcin-skalski/repo-manager/internal/repository"
	"github.com/marcin-skalski/repo-manager/internal/tree"
)

func renderView(m Model) string {
	var b strings.Builder

	cat := m.snapshot.Catalog
	header := fmt.Sprintf("repo-manager │ %d orgs │ %d clones elsewhere │ sorted by %s",
		len(cat.Organizations), len(cat.ClonedOtherRepos), orderLabel(m.snapshot.Order))
	if cat.UserLogin != "" {
		header = fmt.Sprintf("%s │ %s", header, cat.UserLogin)
	}
	b.WriteString(headerStyle.Render(header))
	b.WriteString("\n")

	b.WriteString(renderRows(m))

	if m.snapshot.Err != nil {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render("Last reload failed: " + m.snapshot.Err.Error()))
	}

	b.WriteString("\n")
	if c := m.confirm; c != nil {
		style := confirmStyle
		if c.dirty {
			style = errorStyle
		}
		b.WriteString(style.MarginTop(1).Render(truncate(c.title+" "+c.detail+" (y/N)", m.width)))
		return b.String()
	}
	footer := "↑↓:move ⏎:expand h:hide u:unhide s:sort r:reload c:clone d:delete q:quit"
	if m.status != "" {
		footer = m.status + " │ " + footer
	}
	b.WriteString(footerStyle.Render(truncate(footer, m.width)))

	return b.String()
}

func renderRows(m Model) string {
	if len(m.rows) == 0 {
		if m.snapshot.Catalog.State == repository.StateNone {
			return placeholderStyle.Render("  Starting...") + "\n"
		}
		return placeholderStyle.Render("  (nothing to show)") + "\n"
	}

	end := len(m.rows)
	if visible := m.visibleRows(); visible > 0 {
		end = min(end, m.offset+visible)
	}

	var b strings.Builder
	for i := m.offset; i < end; i++ {
		b.WriteString(renderRow(m.rows[i], m.expanded, i == m.cursor, m.width))
		b.WriteString("\n")
	}
	return b.String()
}

func renderRow(r row, e expansion, selected bool, width int) string {
	n := r.node
	marker := "  "
	if len(n.Children) > 0 {
		if e.isOpen(n) {
			marker = "▾ "
		} else {
			marker = "▸ "
		}
	}
	indent := strings.Repeat("  ", r.depth)
	label := truncate(indent+marker+n.Label, width-descriptionWidth(n))

	if selected {
		return selectedStyle.Render(label + plainDescription(n))
	}
	line := nodeStyle(n).Render(label)
	if n.Description != "" {
		line += lipgloss.NewStyle().Foreground(descriptionColor(n.Description)).Render(" " + n.Description)
	}
	return line
}

func plainDescription(n *tree.Node) string {
	if n.Description == "" {
		return ""
	}
	return " " + n.Description
}

func descriptionWidth(n *tree.Node) int {
	return runewidth.StringWidth(plainDescription(n))
}

// truncate cuts s to width cells. A width of 0 or less means unknown.
func truncate(s string, width int) string {
	if width <= 0 || runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, "...")
}
