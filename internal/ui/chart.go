package ui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"serial-plotter.klederson.com/internal/plot"
)

const gutterWidth = 10

// Trace is one channel prepared for drawing.
type Trace struct {
	Label  string
	Color  lipgloss.Color
	Values []float64 // buffer order, index 0 at the left edge
	Cursor int       // shared write cursor, drawn as a faint column
	Range  plot.Range
	Last   float64
}

// RenderTrace draws a channel header (label and live value) above a chart
// of width x height cells with the Y range in a left gutter.
func RenderTrace(tr Trace, width, height int) string {
	valueStyle := lipgloss.NewStyle().Foreground(tr.Color).Bold(true)
	header := StylePanelTitle.Render(tr.Label) + valueStyle.Render(fmt.Sprintf("%.2f", tr.Last))

	chartH := height - 1
	if chartH < 1 {
		return header
	}
	chartW := width - gutterWidth
	if chartW < 1 {
		chartW = 1
	}

	rows := renderGrid(tr, chartW, chartH)
	for i := range rows {
		label := ""
		switch i {
		case 0:
			label = formatAxis(tr.Range.Max)
		case len(rows) - 1:
			label = formatAxis(tr.Range.Min)
		}
		rows[i] = StyleAxis.Render(fmt.Sprintf("%*s ┤", gutterWidth-2, label)) + rows[i]
	}
	return header + "\n" + strings.Join(rows, "\n")
}

func formatAxis(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	if len(s) > gutterWidth-2 {
		s = fmt.Sprintf("%.1e", v)
	}
	return s
}

// renderGrid maps the buffer onto width columns. When there are more
// samples than columns each column shows the min..max span of its bucket.
func renderGrid(tr Trace, width, height int) []string {
	cells := make([][]bool, height)
	for i := range cells {
		cells[i] = make([]bool, width)
	}

	n := len(tr.Values)
	cursorCol := -1
	if n > 0 {
		cursorCol = tr.Cursor * width / n
	}

	for col := 0; col < width && n > 0; col++ {
		i0 := col * n / width
		i1 := (col + 1) * n / width
		if i1 <= i0 {
			i1 = i0 + 1
		}
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, v := range tr.Values[i0:min(i1, n)] {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		rTop := rowOf(hi, tr.Range, height)
		rBottom := rowOf(lo, tr.Range, height)
		for r := rTop; r <= rBottom; r++ {
			cells[r][col] = true
		}
	}

	dot := lipgloss.NewStyle().Foreground(tr.Color).Render("█")
	mark := StyleCursor.Render("┊")

	out := make([]string, height)
	var b strings.Builder
	for r := range cells {
		b.Reset()
		for c, on := range cells[r] {
			switch {
			case on:
				b.WriteString(dot)
			case c == cursorCol:
				b.WriteString(mark)
			default:
				b.WriteByte(' ')
			}
		}
		out[r] = b.String()
	}
	return out
}

// rowOf maps v to a row index, 0 at the top; values outside the range are
// clamped to the edges.
func rowOf(v float64, r plot.Range, height int) int {
	span := r.Span()
	switch {
	case span <= 0 || math.IsNaN(v) || math.IsInf(v, -1):
		return height - 1
	case math.IsInf(v, 1):
		return 0
	}
	frac := (v - r.Min) / span
	if math.IsNaN(frac) || math.IsInf(frac, 0) {
		return height - 1
	}
	row := height - 1 - int(math.Round(frac*float64(height-1)))
	if row < 0 {
		return 0
	}
	if row > height-1 {
		return height - 1
	}
	return row
}
