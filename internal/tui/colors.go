package tui

import (
	"github.com/charmbracelet/lipgloss"
	colorful "github.com/lucasb-eyer/go-colorful"
)

// blockStyle builds a foreground style for a timeline block color,
// falling back to the muted style when the hex string is unusable.
func blockStyle(hex string) lipgloss.Style {
	if _, err := colorful.Hex(hex); err != nil {
		return mutedStyle
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(hex))
}

// readableTextOn picks black or white for text over the given background,
// based on perceived luminance.
func readableTextOn(hex string) lipgloss.Color {
	c, err := colorful.Hex(hex)
	if err != nil {
		return lipgloss.Color("#FFFFFF")
	}
	if _, _, l := c.Hsl(); l > 0.6 {
		return lipgloss.Color("#000000")
	}
	return lipgloss.Color("#FFFFFF")
}

// dimmed returns the color blended halfway toward the terminal background,
// used for past-day and gap rendering.
func dimmed(hex string) lipgloss.Color {
	c, err := colorful.Hex(hex)
	if err != nil {
		return colorSubtle
	}
	bg, _ := colorful.Hex("#1A1B26")
	return lipgloss.Color(c.BlendLab(bg, 0.5).Hex())
}
