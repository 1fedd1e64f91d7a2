package ui

import "github.com/charmbracelet/lipgloss"

// Matrix color palette
var (
	ColorMatrixGreen  = lipgloss.Color("#00FF41")
	ColorGreen        = lipgloss.Color("#00CC33")
	ColorMidGreen     = lipgloss.Color("#008F11")
	ColorDimGreen     = lipgloss.Color("#004A0A")
	ColorBorderBright = lipgloss.Color("#00FF41")
	ColorBorderNorm   = lipgloss.Color("#00AA22")
	ColorError        = lipgloss.Color("#FF3300")
	ColorWarning      = lipgloss.Color("#FFAA00")
	ColorRecording    = lipgloss.Color("#FF0055")
)

// Pre-built styles
var (
	StyleMenuBar = lipgloss.NewStyle().
			Background(lipgloss.Color("#002200")).
			Foreground(ColorMatrixGreen).
			Bold(true).
			Padding(0, 1)

	StyleMenuKey = lipgloss.NewStyle().
			Foreground(ColorMatrixGreen).
			Bold(true)

	StyleMenuLabel = lipgloss.NewStyle().
			Foreground(ColorGreen)

	StyleStatusBar = lipgloss.NewStyle().
			Background(lipgloss.Color("#002200")).
			Foreground(ColorGreen).
			Padding(0, 1)

	StyleStateConnected = lipgloss.NewStyle().
				Foreground(ColorMatrixGreen).
				Bold(true)

	StyleStateConnecting = lipgloss.NewStyle().
				Foreground(ColorWarning).
				Bold(true)

	StyleStateDisconnected = lipgloss.NewStyle().
				Foreground(ColorError).
				Bold(true)

	StyleRecording = lipgloss.NewStyle().
			Foreground(ColorRecording).
			Bold(true)

	StylePanelBorder = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(ColorBorderNorm)

	StylePanelActive = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(ColorBorderBright)

	StylePanelTitle = lipgloss.NewStyle().
			Foreground(ColorMatrixGreen).
			Bold(true).
			Padding(0, 1)

	StyleAxis = lipgloss.NewStyle().
			Foreground(ColorMidGreen)

	StyleCursor = lipgloss.NewStyle().
			Foreground(ColorDimGreen)

	StyleTabActive = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#000000")).
			Background(ColorMatrixGreen).
			Bold(true).
			Padding(0, 1)

	StyleTabInactive = lipgloss.NewStyle().
				Foreground(ColorMidGreen).
				Padding(0, 1)

	StyleTerminal = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF"))

	StyleHelp = lipgloss.NewStyle().
			Foreground(ColorDimGreen)
)

// pyqtgraph single letter color codes used by older config files.
var letterColors = map[string]string{
	"b": "#0000FF",
	"g": "#00FF00",
	"r": "#FF0000",
	"c": "#00FFFF",
	"m": "#FF00FF",
	"y": "#FFFF00",
	"k": "#000000",
	"w": "#FFFFFF",
}

// ParseColor converts a config color ("#RRGGBB" or a single letter code)
// to a lipgloss color.
func ParseColor(s string) lipgloss.Color {
	if hex, ok := letterColors[s]; ok {
		return lipgloss.Color(hex)
	}
	return lipgloss.Color(s)
}
