package styles

import (
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
)

var (
	// Straw hat palette
	Primary   = lipgloss.Color("#E63946")
	Secondary = lipgloss.Color("#F4A261")
	Success   = lipgloss.Color("#8AC926")
	Warning   = lipgloss.Color("#FFCA3A")
	Error     = lipgloss.Color("#FF595E")
	Info      = lipgloss.Color("#1982C4")
	Muted     = lipgloss.Color("#6C757D")
	Surface   = lipgloss.Color("#1D3557")
	Text      = lipgloss.Color("#F1FAEE")

	RoundedBorder = lipgloss.RoundedBorder()
)

var (
	TitleStyle = lipgloss.NewStyle().
			Foreground(Primary).
			Bold(true)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(Secondary).
			Italic(true)

	TextStyle = lipgloss.NewStyle().
			Foreground(Text)

	MutedStyle = lipgloss.NewStyle().
			Foreground(Muted)

	StatusDownloading = lipgloss.NewStyle().
				Foreground(Info).
				Bold(true)

	StatusPackaging = lipgloss.NewStyle().
			Foreground(Warning).
			Bold(true)

	StatusCompleted = lipgloss.NewStyle().
			Foreground(Success).
			Bold(true)

	StatusError = lipgloss.NewStyle().
			Foreground(Error).
			Bold(true)

	ActiveTabStyle = lipgloss.NewStyle().
			Foreground(Text).
			Background(Surface).
			Padding(0, 2).
			Bold(true)

	InactiveTabStyle = lipgloss.NewStyle().
				Foreground(Muted).
				Padding(0, 2)

	HelpStyle = lipgloss.NewStyle().
			Foreground(Muted).
			Italic(true).
			MarginTop(1)

	InputStyle = lipgloss.NewStyle().
			Border(RoundedBorder).
			BorderForeground(Muted).
			Padding(0, 1)

	FocusedInputStyle = lipgloss.NewStyle().
				Border(RoundedBorder).
				BorderForeground(Primary).
				Padding(0, 1)

	PanelStyle = lipgloss.NewStyle().
			Border(RoundedBorder).
			BorderForeground(Secondary).
			Padding(0, 1)
)

// StatusStyle picks the style for a download status.
func StatusStyle(status string) lipgloss.Style {
	switch status {
	case "downloading":
		return StatusDownloading
	case "packaging":
		return StatusPackaging
	case "complete", "downloaded", "available":
		return StatusCompleted
	case "error", "unavailable":
		return StatusError
	default:
		return MutedStyle
	}
}

// TableStyles are the chapter table styles shared by the TUI and the CLI.
func TableStyles(focused bool) table.Styles {
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(Muted).
		BorderBottom(true).
		Bold(true)
	if focused {
		s.Selected = s.Selected.
			Foreground(Text).
			Background(Primary).
			Bold(false)
	} else {
		s.Selected = lipgloss.NewStyle()
	}
	return s
}
