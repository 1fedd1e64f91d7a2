package config

import "time"

const (
	// Transport
	BaudRate  = 115200     // Fixed serial baud rate
	BLEMarker = "Address " // Prefix that routes an address to BLE

	// Nordic UART service
	NUSServiceUUID = "6e400001-b5a3-f393-e0a9-e50e24dcca9e"
	NUSNotifyUUID  = "6e400003-b5a3-f393-e0a9-e50e24dcca9e" // device -> host
	NUSWriteUUID   = "6e400002-b5a3-f393-e0a9-e50e24dcca9e" // host -> device

	// Plot display
	AutoscaleMargin = 2.5 // Range headroom divisor: margin = (max-min)/2.5
	MinChartRows    = 3   // Smallest chart height per channel

	// Terminal pane
	TerminalHistory = 2000 // Lines kept in the terminal view
	PCPrefix        = "[-PC-] "

	// Launcher
	MaxInstances = 4

	// BLE scan
	ScanTimeout = 10 * time.Second

	// Demo mode
	DemoInterval = 20 * time.Millisecond // Time between synthetic lines
	DemoBanner   = 250                   // Emit a non-data line every N samples

	// App
	AppName    = "SERIAL-PLOTTER"
	AppVersion = "1.0"
)
