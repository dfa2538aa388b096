package ui

import (
	"os"

	"github.com/charmbracelet/colorprofile"
	"github.com/charmbracelet/lipgloss"
)

// TermProfile holds the detected terminal color profile. Computed once at
// package init so every style helper can branch without re-detecting.
var TermProfile colorprofile.Profile

func init() {
	TermProfile = colorprofile.Detect(os.Stdout, os.Environ())
}

// ThemeBg returns the given hex color for TrueColor terminals and
// lipgloss.NoColor{} otherwise, so 16/256-color terminals keep their own
// background.
func ThemeBg(hex string) lipgloss.TerminalColor {
	if TermProfile < colorprofile.TrueColor {
		return lipgloss.NoColor{}
	}
	return lipgloss.Color(hex)
}

// ThemeFg returns the given hex color for ANSI256+ terminals and a safe
// ANSI white (color 7) for 16-color or lower terminals.
func ThemeFg(hex string) lipgloss.TerminalColor {
	if TermProfile < colorprofile.ANSI256 {
		return lipgloss.ANSIColor(7)
	}
	return lipgloss.Color(hex)
}

type Theme struct {
	Renderer *lipgloss.Renderer

	// Colors
	Primary   lipgloss.AdaptiveColor
	Secondary lipgloss.AdaptiveColor
	Subtext   lipgloss.AdaptiveColor

	// Page states
	Modified lipgloss.AdaptiveColor
	Invalid  lipgloss.AdaptiveColor
	Project  lipgloss.AdaptiveColor
	Match    lipgloss.AdaptiveColor

	// UI Elements
	Border    lipgloss.AdaptiveColor
	Highlight lipgloss.AdaptiveColor
	Muted     lipgloss.AdaptiveColor

	// Styles
	Base     lipgloss.Style
	Selected lipgloss.Style
	Header   lipgloss.Style

	// Pre-computed row styles, created once instead of per frame.
	MutedText     lipgloss.Style
	DimmedText    lipgloss.Style
	GroupText     lipgloss.Style
	ModifiedText  lipgloss.Style
	InvalidText   lipgloss.Style
	ProjectTag    lipgloss.Style
	SecondaryText lipgloss.Style
	PrimaryBold   lipgloss.Style
	ErrorText     lipgloss.Style
}

// DefaultTheme returns the standard Dracula-inspired theme (adaptive)
func DefaultTheme(r *lipgloss.Renderer) Theme {
	t := Theme{
		Renderer: r,

		Primary:   lipgloss.AdaptiveColor{Light: "#6B47D9", Dark: "#BD93F9"}, // Purple
		Secondary: lipgloss.AdaptiveColor{Light: "#555555", Dark: "#6272A4"}, // Gray
		Subtext:   lipgloss.AdaptiveColor{Light: "#666666", Dark: "#BFBFBF"},

		Modified: lipgloss.AdaptiveColor{Light: "#0066CC", Dark: "#6699FF"}, // Blue
		Invalid:  lipgloss.AdaptiveColor{Light: "#CC0000", Dark: "#FF5555"}, // Red
		Project:  lipgloss.AdaptiveColor{Light: "#008080", Dark: "#00CED1"}, // Teal
		Match:    lipgloss.AdaptiveColor{Light: "#B06800", Dark: "#FFB86C"}, // Orange

		Border:    lipgloss.AdaptiveColor{Light: "#AAAAAA", Dark: "#44475A"},
		Highlight: lipgloss.AdaptiveColor{Light: "#E0E0E0", Dark: "#44475A"},
		Muted:     lipgloss.AdaptiveColor{Light: "#555555", Dark: "#6272A4"},
	}

	t.Base = r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#000000", Dark: "#F8F8F2"})

	t.Selected = r.NewStyle().
		Background(t.Highlight).
		Bold(true)

	t.Header = r.NewStyle().
		Background(t.Primary).
		Foreground(lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#282A36"}).
		Bold(true)

	t.MutedText = r.NewStyle().Foreground(t.Muted)
	t.DimmedText = r.NewStyle().Foreground(t.Muted).Faint(true)
	t.GroupText = r.NewStyle().Bold(true)
	t.ModifiedText = r.NewStyle().Foreground(t.Modified)
	t.InvalidText = r.NewStyle().Foreground(t.Invalid)
	t.ProjectTag = r.NewStyle().Foreground(t.Project)
	t.SecondaryText = r.NewStyle().Foreground(t.Secondary)
	t.PrimaryBold = r.NewStyle().Foreground(t.Primary).Bold(true)
	t.ErrorText = r.NewStyle().Foreground(ThemeFg("#FF5555")).Bold(true)

	return t
}

// PageStyle picks the name style for a row: errors win over edits, and
// groups are bold.
func (t Theme) PageStyle(group, modified, invalid bool) lipgloss.Style {
	switch {
	case invalid:
		return t.InvalidText
	case modified:
		return t.ModifiedText
	case group:
		return t.GroupText
	default:
		return t.Base
	}
}

// TestTheme returns a theme suitable for use in tests.
func TestTheme() Theme {
	return DefaultTheme(lipgloss.NewRenderer(os.Stdout))
}
