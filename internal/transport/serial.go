package transport

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"go.bug.st/serial"
	"go.uber.org/atomic"

	"serial-plotter.klederson.com/internal/config"
)

type portHandle interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

// overridden in tests
var openPort = func(name string, mode *serial.Mode) (portHandle, error) {
	return serial.Open(name, mode)
}

// Serial is a line-oriented serial port transport.
type Serial struct {
	name   string
	port   portHandle
	closed atomic.Bool
	done   chan struct{}
	log    zerolog.Logger
}

// SerialDialer returns a DialFunc opening ports at the fixed baud rate.
func SerialDialer(log zerolog.Logger) DialFunc {
	return func(ctx context.Context, target string, ev Events) (Transport, error) {
		return OpenSerial(ctx, target, ev, log)
	}
}

// OpenSerial opens name read/write at config.BaudRate 8N1 and starts
// reading lines.
func OpenSerial(ctx context.Context, name string, ev Events, log zerolog.Logger) (*Serial, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mode := &serial.Mode{
		BaudRate: config.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := openPort(name, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", name, err)
	}

	s := &Serial{
		name: name,
		port: port,
		done: make(chan struct{}),
		log:  log.With().Str("port", name).Logger(),
	}
	go s.readLoop(ev)

	s.log.Info().Int("baud", config.BaudRate).Msg("serial port opened")
	return s, nil
}

func (s *Serial) readLoop(ev Events) {
	defer close(s.done)

	scanner := bufio.NewScanner(s.port)
	for scanner.Scan() {
		ev.line(scanner.Text())
	}

	if s.closed.Load() {
		return
	}
	err := scanner.Err()
	if err == nil {
		err = io.EOF
	}
	s.log.Warn().Err(err).Msg("serial read ended")
	ev.closed(err)
}

func (s *Serial) Kind() Kind     { return KindSerial }
func (s *Serial) Target() string { return s.name }

// Send writes p to the port.
func (s *Serial) Send(p []byte) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if _, err := s.port.Write(p); err != nil {
		return fmt.Errorf("serial write: %w", err)
	}
	return nil
}

// Close closes the port, which ends the reader. Only the first call closes.
// It does not wait for the reader: the reader may be blocked handing a line
// to the caller's loop.
func (s *Serial) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := s.port.Close()
	s.log.Info().Msg("serial port closed")
	return err
}

// Done is closed once the reader goroutine has exited.
func (s *Serial) Done() <-chan struct{} {
	return s.done
}

// ListPorts returns the serial ports present on the system.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("listing serial ports: %w", err)
	}
	return ports, nil
}
