// Package common holds the styles and text helpers shared by the command line
// output and the interactive browser.
package common

import (
	"fmt"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

const (
	COLOR_GREY      = "241"
	COLOR_MAGENTA   = "170"
	COLOR_LIGHTBLUE = "69"
	COLOR_PURPLE    = "#7D56F4"
	COLOR_GREEN     = "42"
	COLOR_RED       = "203"
	COLOR_YELLOW    = "214"
)

// DefaultWrap is the Markdown wrap width when the terminal width is unknown.
const DefaultWrap = 80

var (
	TitleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(COLOR_MAGENTA))
	MetaStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color(COLOR_GREY))
	HelpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color(COLOR_GREY)).Padding(0, 2)
	HeaderStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(COLOR_PURPLE)).Padding(0, 1)
	CellStyle    = lipgloss.NewStyle().Padding(0, 1)
	TagStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color(COLOR_LIGHTBLUE))
	EmptyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color(COLOR_GREY)).Italic(true)
	SuccessStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(COLOR_GREEN))
	ErrorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color(COLOR_RED))
	WarningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(COLOR_YELLOW)).Bold(true)
)

// RenderMarkdown renders content for a terminal. style is a glamour standard
// style name, or "auto" (or empty) to pick one from the terminal. A width
// below 40 columns is raised to 40.
func RenderMarkdown(content, style string, width int) (string, error) {
	if width < 40 {
		width = 40
	}
	styleOpt := glamour.WithAutoStyle()
	if style != "" && style != "auto" {
		styleOpt = glamour.WithStandardStyle(style)
	}
	r, err := glamour.NewTermRenderer(styleOpt, glamour.WithWordWrap(width-4))
	if err != nil {
		return "", fmt.Errorf("failed to create markdown renderer: %w", err)
	}
	out, err := r.Render(content)
	if err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return out, nil
}

// FormatTime is a coarse age relative to now. Anything older than a month is
// shown as a date.
func FormatTime(t, now time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 30*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
	return t.Format("2006-01-02")
}

func Truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
