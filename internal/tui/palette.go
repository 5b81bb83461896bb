package tui

import (
	"github.com/charmbracelet/lipgloss"

	"deepdefender/internal/present"
)

var (
	ColorInk       = lipgloss.Color("#E5E9F0")
	ColorDim       = lipgloss.Color("#7A8291")
	ColorAccent    = lipgloss.Color("#88C0D0")
	ColorAccentAlt = lipgloss.Color("#81A1C1")
	ColorSuccess   = lipgloss.Color("#A3BE8C")
	ColorWarn      = lipgloss.Color("#EBCB8B")
	ColorDanger    = lipgloss.Color("#BF616A")
)

// ToneColor maps a display tone to its palette colour.
func ToneColor(tone present.Tone) lipgloss.Color {
	switch tone {
	case present.ToneAlert, present.ToneError:
		return ColorDanger
	case present.ToneSafe:
		return ColorSuccess
	default:
		return ColorAccent
	}
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)
	labelStyle = lipgloss.NewStyle().Foreground(ColorInk)
	valueStyle = lipgloss.NewStyle().Foreground(ColorInk).Bold(true)
	dimStyle   = lipgloss.NewStyle().Foreground(ColorDim)
	flashStyle = lipgloss.NewStyle().Foreground(ColorWarn)
	keyStyle   = lipgloss.NewStyle().Foreground(ColorAccentAlt).Bold(true)

	dropZoneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorDim).
			Padding(1, 4).
			Align(lipgloss.Center)
	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(ColorDim).
			Padding(0, 1)
)
