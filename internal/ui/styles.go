// Package ui renders tornet's console views.
package ui

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Palette
var (
	ColorAccent = lipgloss.Color("#A8D8EA")
	ColorDeep   = lipgloss.Color("#596E79")
	ColorText   = lipgloss.Color("#E0E0E0")
	ColorAlert  = lipgloss.Color("#FF6B6B")
	ColorGood   = lipgloss.Color("#4ECDC4")
	ColorWarn   = lipgloss.Color("#FFE66D")
	ColorInfo   = lipgloss.Color("#74B9FF")
)

// Rule is the horizontal rule that closes every panel.
const Rule = "──────────────────────────────────────────"

// Theme binds styles to one output.
type Theme struct {
	r *lipgloss.Renderer

	Title lipgloss.Style
	Frame lipgloss.Style
	Label lipgloss.Style
	Value lipgloss.Style
	Good  lipgloss.Style
	Bad   lipgloss.Style
	Warn  lipgloss.Style
	Info  lipgloss.Style
}

// NewTheme returns styles for w. With plain set, no escape sequences are
// emitted.
func NewTheme(w io.Writer, plain bool) *Theme {
	r := lipgloss.NewRenderer(w)
	if plain {
		r.SetColorProfile(termenv.Ascii)
	}
	return &Theme{
		r:     r,
		Title: r.NewStyle().Foreground(ColorGood).Bold(true),
		Frame: r.NewStyle().Foreground(ColorText),
		Label: r.NewStyle().Foreground(ColorAccent),
		Value: r.NewStyle().Foreground(ColorText),
		Good:  r.NewStyle().Foreground(ColorGood).Bold(true),
		Bad:   r.NewStyle().Foreground(ColorAlert).Bold(true),
		Warn:  r.NewStyle().Foreground(ColorWarn),
		Info:  r.NewStyle().Foreground(ColorInfo),
	}
}

// Plain reports whether output must be unstyled: JSON mode or NO_COLOR.
func Plain(jsonOutput bool) bool {
	if jsonOutput {
		return true
	}
	_, set := os.LookupEnv("NO_COLOR")
	return set
}
