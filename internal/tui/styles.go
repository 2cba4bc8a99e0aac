package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/netdiag/internal/ui"
	"github.com/muurk/netdiag/internal/version"
)

// Application branding constants
const (
	AppName    = "NETWORK DIAGNOSTICS"
	FooterText = "Network Diagnostics MVP • Local Access Only"
)

// Layout constants for responsive terminal width
const (
	MinTerminalWidth  = 72
	MinTerminalHeight = 20
	DefaultWidth      = 100
	DefaultHeight     = 30
)

// Neutral colors beyond the shared palette
var (
	BorderColor     = ui.PrimaryColor
	HighlightColor  = ui.SuccessColor
	BackgroundColor = lipgloss.Color("#1A1A1A")
)

var (
	TitleStyle = lipgloss.NewStyle().
			Foreground(ui.PrimaryColor).
			Bold(true)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(ui.MutedColor).
			Italic(true)

	ActiveTabStyle = lipgloss.NewStyle().
			Foreground(ui.TextColor).
			Background(ui.PrimaryColor).
			Bold(true).
			Padding(0, 1)

	TabStyle = lipgloss.NewStyle().
			Foreground(ui.MutedColor).
			Padding(0, 1)

	LabelStyle = lipgloss.NewStyle().
			Foreground(ui.MutedColor)

	ValueStyle = lipgloss.NewStyle().
			Foreground(ui.TextColor).
			Bold(true)

	ErrorLineStyle = lipgloss.NewStyle().
			Foreground(ui.ErrorColor).
			Bold(true)

	StatusLineStyle = lipgloss.NewStyle().
			Foreground(ui.SuccessColor)

	SpinnerStyle = lipgloss.NewStyle().
			Foreground(ui.PrimaryColor)

	SelectedRowStyle = lipgloss.NewStyle().
				Foreground(HighlightColor).
				Bold(true).
				Padding(0, 1)

	ButtonStyle = lipgloss.NewStyle().
			Foreground(ui.TextColor).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ui.PrimaryColor).
			Padding(0, 1)

	DisabledButtonStyle = lipgloss.NewStyle().
				Foreground(ui.MutedColor).
				Border(lipgloss.RoundedBorder()).
				BorderForeground(ui.MutedColor).
				Padding(0, 1)

	CardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(BorderColor).
			Padding(0, 2)

	ModalStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(ui.WarningColor).
			Padding(1, 3)
)

// RenderError renders a one-line failure message
func RenderError(text string) string {
	return ErrorLineStyle.Render(ui.FailureMarker + " " + text)
}

// connectionIndicator renders the push link state
func connectionIndicator(connected bool) string {
	if connected {
		return lipgloss.NewStyle().Foreground(ui.SuccessColor).Render(ui.OnlineMarker + " Connected")
	}
	return lipgloss.NewStyle().Foreground(ui.ErrorColor).Render(ui.OnlineMarker + " Disconnected")
}

// RenderApplicationContainer wraps a screen in the header, footer and
// outer border. Every view goes through it.
func RenderApplicationContainer(header, content, footer string, width, height int) string {
	if width < MinTerminalWidth {
		width = MinTerminalWidth
	}
	if height < MinTerminalHeight {
		height = MinTerminalHeight
	}

	headerStyle := lipgloss.NewStyle().
		BorderStyle(lipgloss.Border{Bottom: "─"}).
		BorderBottom(true).
		BorderForeground(BorderColor).
		Width(width-4).
		Padding(0, 1)

	footerStyle := lipgloss.NewStyle().
		BorderStyle(lipgloss.Border{Top: "─"}).
		BorderTop(true).
		BorderForeground(BorderColor).
		Width(width-4).
		Padding(0, 1)

	contentStyle := lipgloss.NewStyle().
		Width(width-4).
		Padding(1, 1)

	inner := lipgloss.JoinVertical(
		lipgloss.Left,
		headerStyle.Render(header),
		contentStyle.Render(content),
		footerStyle.Render(footer),
	)

	return lipgloss.NewStyle().
		Border(lipgloss.NormalBorder()).
		BorderForeground(BorderColor).
		Width(width - 2).
		MaxHeight(height).
		Render(inner)
}

// RenderModal centers a modal over a dimmed background
func RenderModal(modalContent string, width, height int) string {
	if width < MinTerminalWidth {
		width = MinTerminalWidth
	}
	if height < MinTerminalHeight {
		height = MinTerminalHeight
	}
	return lipgloss.Place(
		width,
		height,
		lipgloss.Center,
		lipgloss.Center,
		modalContent,
		lipgloss.WithWhitespaceChars("░"),
		lipgloss.WithWhitespaceForeground(lipgloss.Color("240")),
	)
}

// brandLine returns the application name and version
func brandLine() string {
	return lipgloss.NewStyle().Foreground(ui.TextColor).Bold(true).Render(AppName) +
		" " + LabelStyle.Render("v"+version.Version)
}

// spread places left and right at the two ends of a line of width
func spread(left, right string, width int) string {
	gap := width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right
}
