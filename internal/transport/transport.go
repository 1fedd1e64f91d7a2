package transport

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"serial-plotter.klederson.com/internal/config"
)

// Kind identifies the link type behind a Transport.
type Kind int

const (
	KindSerial Kind = iota
	KindBLE
)

func (k Kind) String() string {
	switch k {
	case KindBLE:
		return "BLE"
	default:
		return "Serial"
	}
}

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("transport closed")

// Transport is an open link to a device. Received lines are delivered
// through the Events given when it was opened.
type Transport interface {
	Kind() Kind
	Target() string
	Send(p []byte) error
	Close() error
}

// Events receives callbacks from a transport's reader goroutine.
type Events struct {
	// Line is called once per received line, in arrival order.
	Line func(line string)
	// Closed is called when the link ends without Close being called.
	Closed func(err error)
}

func (e Events) line(s string) {
	if e.Line != nil {
		e.Line(s)
	}
}

func (e Events) closed(err error) {
	if e.Closed != nil {
		e.Closed(err)
	}
}

// DialFunc opens one kind of transport to target.
type DialFunc func(ctx context.Context, target string, ev Events) (Transport, error)

// Dialer routes an address to the serial or BLE opener.
type Dialer struct {
	Serial DialFunc
	BLE    DialFunc
}

// ParseAddress classifies an address. Addresses carrying the BLE marker
// (as printed by the scan command) are BLE; the marker is stripped from
// the returned target. Everything else is a serial port name.
func ParseAddress(address string) (Kind, string) {
	address = strings.TrimSpace(address)
	if i := strings.Index(address, config.BLEMarker); i >= 0 {
		return KindBLE, strings.TrimSpace(address[i+len(config.BLEMarker):])
	}
	return KindSerial, address
}

// Dial opens the transport selected by address.
func (d Dialer) Dial(ctx context.Context, address string, ev Events) (Transport, error) {
	kind, target := ParseAddress(address)
	if target == "" {
		return nil, fmt.Errorf("empty %s address", kind)
	}

	open := d.Serial
	if kind == KindBLE {
		open = d.BLE
	}
	if open == nil {
		return nil, fmt.Errorf("%s transport not available", kind)
	}
	return open(ctx, target, ev)
}

// SplitPayload breaks a notification payload into lines. A payload
// without a newline is one line; empty pieces are dropped.
func SplitPayload(buf []byte) []string {
	var lines []string
	for _, l := range strings.Split(string(buf), "\n") {
		l = strings.TrimRight(l, "\r")
		if l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}
