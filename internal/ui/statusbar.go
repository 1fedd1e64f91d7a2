package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Status is the data shown in a plotter's status line.
type Status struct {
	State     string
	Address   string
	Cursor    int
	Samples   int
	Rows      int
	Skipped   int
	CSVPath   string
	Raw       bool
	Connected bool
}

// RenderState styles a connection state label.
func RenderState(state string) string {
	switch state {
	case "CONNECTED":
		return StyleStateConnected.Render("[" + state + "]")
	case "CONNECTING":
		return StyleStateConnecting.Render("[" + state + "]")
	default:
		return StyleStateDisconnected.Render("[" + state + "]")
	}
}

// RenderStatusBar renders the bottom status bar.
func RenderStatusBar(width int, st Status) string {
	content := RenderState(st.State)

	info := fmt.Sprintf(" %s  idx: %d/%d  rows: %d  other: %d", st.Address, st.Cursor, st.Samples, st.Rows, st.Skipped)
	if st.Raw {
		info += "  raw"
	}
	content += StyleStatusBar.Foreground(ColorGreen).Render(info)
	if st.CSVPath != "" {
		content += "  " + StyleRecording.Render("● REC "+st.CSVPath)
	}

	gap := width - 2 - lipgloss.Width(content)
	if gap < 0 {
		gap = 0
	}
	return StyleStatusBar.Width(width).Render(content + strings.Repeat(" ", gap))
}
