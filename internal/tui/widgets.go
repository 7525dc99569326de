package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Palette
var (
	ColorOrange = lipgloss.Color("#DDA036") // active
	ColorGray   = lipgloss.Color("#9A9EA0") // subtle
	ColorWhite  = lipgloss.Color("#FFFFFF")
	ColorRed    = lipgloss.Color("#E95420") // recording, errors
	ColorGreen  = lipgloss.Color("#4CAF50")
)

// HeaderWidth is the width of the header block
const HeaderWidth = 60

var (
	LabelStyle     = lipgloss.NewStyle().Foreground(ColorGray)
	ValueStyle     = lipgloss.NewStyle().Foreground(ColorWhite)
	ErrorStyle     = lipgloss.NewStyle().Foreground(ColorRed).Bold(true)
	SuccessStyle   = lipgloss.NewStyle().Foreground(ColorGreen).Bold(true)
	RecordingStyle = lipgloss.NewStyle().Foreground(ColorRed).Bold(true).Blink(true)

	headerLine = lipgloss.NewStyle().Width(HeaderWidth).Align(lipgloss.Center)
)

// HeaderState is what the status line of the header shows
type HeaderState struct {
	IsRecording bool
	Device      string
	Elapsed     time.Duration
	BlinkOn     bool
}

func (s HeaderState) indicator() string {
	style := lipgloss.NewStyle().Bold(true).Foreground(ColorGray)
	if !s.IsRecording {
		return style.Render("Ready")
	}
	dot := "○"
	if s.BlinkOn {
		dot = "●"
	}
	return style.Foreground(ColorRed).Render(dot + " REC")
}

// RenderHeader renders the title block and the recorder status line
func RenderHeader(screenTitle string, state HeaderState) string {
	device := state.Device
	if device == "" {
		device = "Default"
	}

	divider := LabelStyle.Render(strings.Repeat("─", HeaderWidth))
	status := fmt.Sprintf("%s  |  %s  |  %s", state.indicator(), device, FormatClock(state.Elapsed))

	return lipgloss.JoinVertical(
		lipgloss.Center,
		headerLine.Bold(true).Foreground(ColorOrange).Render("videosnap - "+screenTitle),
		headerLine.Italic(true).Foreground(ColorGray).Render("record your camera"),
		divider,
		headerLine.Foreground(ColorWhite).Render(status),
		divider,
	)
}

// RenderHelpFooter renders the key help centered across width
func RenderHelpFooter(helpText string, width int) string {
	return lipgloss.NewStyle().
		Width(width).
		Align(lipgloss.Center).
		Render(LabelStyle.Italic(true).Render(helpText))
}

// LayoutWithHeaderFooter places header and content at the top and the footer on the last line
func LayoutWithHeaderFooter(header, content, footer string, width, height int) string {
	top := lipgloss.Place(width, height-2, lipgloss.Center, lipgloss.Top,
		lipgloss.JoinVertical(lipgloss.Center, header, "", content))
	return lipgloss.JoinVertical(lipgloss.Left, top, footer)
}

// FormatClock renders d as HH:MM:SS
func FormatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, secs/60%60, secs%60)
}
