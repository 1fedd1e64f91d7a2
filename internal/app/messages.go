package app

import (
	"time"

	"serial-plotter.klederson.com/internal/session"
	"serial-plotter.klederson.com/internal/transport"
)

// TickMsg triggers a redraw of the plots.
type TickMsg time.Time

// LineMsg carries one received line to instance ID.
type LineMsg struct {
	ID   int
	Gen  int
	Line string
}

// ClosedMsg reports that instance ID's transport ended on its own.
type ClosedMsg struct {
	ID  int
	Gen int
	Err error
}

// ConnectedMsg is the result of a connect attempt.
type ConnectedMsg struct {
	ID      int
	Attempt session.Attempt
	Link    transport.Transport
	Err     error
}

// SentMsg is the result of a write to instance ID's link.
type SentMsg struct {
	ID  int
	Job session.Job
	Err error
}

// DisconnectedMsg reports that a link of instance ID finished closing.
type DisconnectedMsg struct {
	ID  int
	Job session.Job
	Err error
}
