package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const (
	colorSuccess lipgloss.Color = "2"
	colorError   lipgloss.Color = "1"
	colorWarning lipgloss.Color = "3"
	colorInfo    lipgloss.Color = "6"
	colorMuted   lipgloss.Color = "8"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorInfo)
	labelStyle   = lipgloss.NewStyle().Foreground(colorMuted).Width(16)
	successStyle = lipgloss.NewStyle().Foreground(colorSuccess)
	errorStyle   = lipgloss.NewStyle().Foreground(colorError).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(colorWarning)
	boxStyle     = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorMuted).
			Padding(0, 1)
)

// field renders one aligned "label value" line
func field(label string, value interface{}) string {
	return labelStyle.Render(label) + fmt.Sprint(value)
}

// section renders a titled box of lines
func section(title string, lines ...string) string {
	return boxStyle.Render(titleStyle.Render(title) + "\n" + strings.Join(lines, "\n"))
}

// swatch renders text in a hex color
func swatch(hex, text string) string {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(hex)).Render(text)
}
