// Package ui provides the lipgloss styling for squad's line-oriented CLI
// output: diff previews, result summaries, and progress lines.
package ui

import (
	"github.com/charmbracelet/lipgloss"
)

// Semantic colors shared across commands.
var (
	ColorAdded   = lipgloss.Color("#8BC34A") // lime green
	ColorRemoved = lipgloss.Color("#e53935") // red
	ColorHeader  = lipgloss.Color("#2196F3") // blue
	ColorMuted   = lipgloss.Color("#808080")
	ColorWarning = lipgloss.Color("#FFC107") // yellow
)

// Styles holds the style set used by the CLI renderers.
type Styles struct {
	Title       lipgloss.Style
	Header      lipgloss.Style
	Added       lipgloss.Style
	AddedEmph   lipgloss.Style
	Removed     lipgloss.Style
	RemovedEmph lipgloss.Style
	Context     lipgloss.Style
	LineNum     lipgloss.Style
	Success     lipgloss.Style
	Failure     lipgloss.Style
	Warning     lipgloss.Style
	Muted       lipgloss.Style
}

// DefaultStyles returns the standard style set.
func DefaultStyles() Styles {
	return Styles{
		Title:       lipgloss.NewStyle().Bold(true),
		Header:      lipgloss.NewStyle().Foreground(ColorHeader).Bold(true),
		Added:       lipgloss.NewStyle().Foreground(ColorAdded),
		AddedEmph:   lipgloss.NewStyle().Foreground(ColorAdded).Bold(true).Underline(true),
		Removed:     lipgloss.NewStyle().Foreground(ColorRemoved),
		RemovedEmph: lipgloss.NewStyle().Foreground(ColorRemoved).Bold(true).Underline(true),
		Context:     lipgloss.NewStyle(),
		LineNum:     lipgloss.NewStyle().Foreground(ColorMuted),
		Success:     lipgloss.NewStyle().Foreground(ColorAdded).Bold(true),
		Failure:     lipgloss.NewStyle().Foreground(ColorRemoved).Bold(true),
		Warning:     lipgloss.NewStyle().Foreground(ColorWarning),
		Muted:       lipgloss.NewStyle().Foreground(ColorMuted),
	}
}

// PlainStyles returns an uncolored style set for non-TTY output.
func PlainStyles() Styles {
	return Styles{
		Title:       lipgloss.NewStyle(),
		Header:      lipgloss.NewStyle(),
		Added:       lipgloss.NewStyle(),
		AddedEmph:   lipgloss.NewStyle(),
		Removed:     lipgloss.NewStyle(),
		RemovedEmph: lipgloss.NewStyle(),
		Context:     lipgloss.NewStyle(),
		LineNum:     lipgloss.NewStyle(),
		Success:     lipgloss.NewStyle(),
		Failure:     lipgloss.NewStyle(),
		Warning:     lipgloss.NewStyle(),
		Muted:       lipgloss.NewStyle(),
	}
}
