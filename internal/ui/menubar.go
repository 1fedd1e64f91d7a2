package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"serial-plotter.klederson.com/internal/config"
)

// Key is a menu entry: the highlighted key and the rest of its label.
type Key struct {
	Key   string
	Label string
}

// PlotterKeys is the menu of a single plotter instance.
var PlotterKeys = []Key{
	{"C", "onnect"},
	{"W", "rite CSV"},
	{"R", "estart"},
	{"I", "nput"},
	{"A", "ddress"},
	{"V", " raw"},
	{"Tab", " view"},
	{"Q", "uit"},
}

// LauncherKeys is the menu of the multi-instance launcher.
var LauncherKeys = []Key{
	{"1-4", " edit"},
	{"S", "tart all"},
	{"X", " stop all"},
	{"C", "onnect all"},
	{"W", "rite CSV all"},
	{"R", "estart all"},
	{"Q", "uit"},
}

// RenderMenuBar renders the top menu bar with a title, the key menu and a
// right aligned status text.
func RenderMenuBar(width int, title string, keys []Key, right string) string {
	left := StyleMenuKey.Render(fmt.Sprintf(" %s v%s ", config.AppName, config.AppVersion))
	if title != "" {
		left += StyleMenuLabel.Render(title + " ")
	}

	for _, k := range keys {
		left += "  " + StyleMenuKey.Render("["+k.Key+"]") + StyleMenuLabel.Render(k.Label)
	}
	right += " "

	gap := width - 2 - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}
	return StyleMenuBar.Width(width).Render(left + strings.Repeat(" ", gap) + right)
}
