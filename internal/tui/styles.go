package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/marcin-skalski/repo-manager/internal/tree"
)

var (
	colorDirty   = lipgloss.Color("214") // orange
	colorError   = lipgloss.Color("196") // red
	colorMuted   = lipgloss.Color("240") // gray
	colorSection = lipgloss.Color("212") // pink
	colorOrg     = lipgloss.Color("39")  // blue
	colorRepo    = lipgloss.Color("252")

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			PaddingLeft(1).
			PaddingRight(1)

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorSection)

	orgStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorOrg)

	repoStyle = lipgloss.NewStyle().
			Foreground(colorRepo)

	placeholderStyle = lipgloss.NewStyle().
				Foreground(colorMuted).
				Italic(true)

	descriptionStyle = lipgloss.NewStyle().
				Foreground(colorMuted)

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			Background(lipgloss.Color("237"))

	footerStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			MarginTop(1)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorError)

	confirmStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorDirty)
)

func nodeStyle(n *tree.Node) lipgloss.Style {
	switch n.Kind {
	case tree.KindSection:
		return sectionStyle
	case tree.KindOrg:
		return orgStyle
	case tree.KindPlaceholder:
		return placeholderStyle
	default:
		return repoStyle
	}
}

func descriptionColor(desc string) lipgloss.Color {
	switch desc {
	case "*":
		return colorDirty
	case "E":
		return colorError
	default:
		return colorMuted
	}
}
