package ui

import (
	"github.com/charmbracelet/lipgloss"

	"serial-plotter.klederson.com/internal/config"
)

// ComposeLayout stacks the menu bar, the body and the status bar.
func ComposeLayout(menuBar, body, statusBar string) string {
	return lipgloss.JoinVertical(lipgloss.Left, menuBar, body, statusBar)
}

// Rect is a screen area in terminal cells.
type Rect struct {
	X, Y, W, H int
}

// Tile splits screen for n instances:
//
//	1: the whole screen
//	2: left and right halves
//	3-4: a 2x2 grid filled row by row (with 3, the bottom right stays empty)
//
// n is capped at config.MaxInstances; n <= 0 yields nil. Odd cells go to the
// right column and bottom row so the tiles cover the screen.
func Tile(screen Rect, n int) []Rect {
	if n <= 0 {
		return nil
	}
	if n > config.MaxInstances {
		n = config.MaxInstances
	}

	leftW := screen.W / 2
	rightW := screen.W - leftW
	topH := screen.H / 2
	bottomH := screen.H - topH

	switch n {
	case 1:
		return []Rect{screen}
	case 2:
		return []Rect{
			{screen.X, screen.Y, leftW, screen.H},
			{screen.X + leftW, screen.Y, rightW, screen.H},
		}
	}

	grid := []Rect{
		{screen.X, screen.Y, leftW, topH},
		{screen.X + leftW, screen.Y, rightW, topH},
		{screen.X, screen.Y + topH, leftW, bottomH},
		{screen.X + leftW, screen.Y + topH, rightW, bottomH},
	}
	return grid[:n]
}

// ComposeTiles joins rendered panes laid out by Tile. Panes sharing a top
// edge form a row.
func ComposeTiles(rects []Rect, panes []string) string {
	var rows []string
	var row []string
	y := -1
	for i, r := range rects {
		if i >= len(panes) {
			break
		}
		if r.Y != y && row != nil {
			rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, row...))
			row = nil
		}
		y = r.Y
		row = append(row, panes[i])
	}
	if row != nil {
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, row...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}
