package ui

import "github.com/charmbracelet/lipgloss"

// RenderPanel wraps content in a bordered box of exactly width x height
// cells, with an optional title as the first line.
func RenderPanel(width, height int, title, content string, active bool, frame lipgloss.TerminalColor) string {
	style := StylePanelBorder
	if active {
		style = StylePanelActive
	}
	if frame != nil {
		style = style.BorderForeground(frame)
	}

	if title != "" {
		content = StylePanelTitle.Render(title) + "\n" + content
	}
	innerW := max(width-2, 1)
	innerH := max(height-2, 1)
	return style.Width(innerW).Height(innerH).MaxHeight(height).Render(content)
}
