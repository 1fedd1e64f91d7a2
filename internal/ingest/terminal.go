package ingest

import (
	"fmt"
	"strings"

	"serial-plotter.klederson.com/internal/config"
)

// Terminal is the scrollback shown in the terminal pane. Only the newest
// lines up to the configured limit are kept.
type Terminal struct {
	lines []string
	max   int
	seq   int
}

// NewTerminal creates a terminal holding at most max lines.
func NewTerminal(max int) *Terminal {
	if max <= 0 {
		max = config.TerminalHistory
	}
	return &Terminal{max: max}
}

// Append adds a device or raw line.
func (t *Terminal) Append(line string) {
	t.seq++
	t.lines = append(t.lines, line)
	if over := len(t.lines) - t.max; over > 0 {
		t.lines = append(t.lines[:0], t.lines[over:]...)
	}
}

// Notef adds a host-side message prefixed with [-PC-].
func (t *Terminal) Notef(format string, args ...any) {
	t.Append(config.PCPrefix + fmt.Sprintf(format, args...))
}

// Lines returns a copy of the scrollback.
func (t *Terminal) Lines() []string {
	out := make([]string, len(t.lines))
	copy(out, t.lines)
	return out
}

// Len returns the number of stored lines.
func (t *Terminal) Len() int {
	return len(t.lines)
}

func (t *Terminal) String() string {
	return strings.Join(t.lines, "\n")
}

// Clear drops all lines.
func (t *Terminal) Clear() {
	t.seq++
	t.lines = t.lines[:0]
}

// Seq changes whenever the content changes.
func (t *Terminal) Seq() int {
	return t.seq
}
