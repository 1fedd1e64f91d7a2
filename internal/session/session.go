package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"serial-plotter.klederson.com/internal/config"
	"serial-plotter.klederson.com/internal/ingest"
	"serial-plotter.klederson.com/internal/transport"
)

// State is the connection state of a session.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "CONNECTING"
	case Connected:
		return "CONNECTED"
	default:
		return "DISCONNECTED"
	}
}

var (
	ErrNotConnected = errors.New("not connected")
	ErrBusy         = errors.New("connection already active")
)

// Attempt identifies one connect request. Results and received lines are
// matched to the session by Gen so late events from an abandoned link are
// dropped.
type Attempt struct {
	Gen     int
	Address string
	Kind    transport.Kind
}

// Job is a blocking operation on a link: a write of Payload, or closing
// the link when Payload is nil.
type Job struct {
	Gen     int
	Link    transport.Transport
	Text    string
	Payload []byte
}

// IsClose reports whether the job closes the link.
func (j Job) IsClose() bool {
	return j.Payload == nil
}

// Run performs the job on the link.
func (j Job) Run() error {
	if j.IsClose() {
		return j.Link.Close()
	}
	return j.Link.Send(j.Payload)
}

// Session ties one device connection to its ingestion controller. All
// methods except Dial and Job.Run must be called from the same goroutine.
type Session struct {
	cfg     config.Config
	dialer  transport.Dialer
	term    *ingest.Terminal
	ctrl    *ingest.Controller
	log     zerolog.Logger
	now     func() time.Time
	home    string
	csvTmpl string

	state   State
	gen     int
	address string
	link    transport.Transport
	offload func(Job)
}

// Option customises a Session.
type Option func(*Session)

// WithClock sets the time source used for templates and messages.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithHome sets the directory substituted for <home>.
func WithHome(dir string) Option {
	return func(s *Session) { s.home = dir }
}

// WithOffload hands link writes and closes to run instead of performing
// them inline. run must report each result back through JobDone on the
// session's goroutine, in submission order.
func WithOffload(run func(Job)) Option {
	return func(s *Session) { s.offload = run }
}

// New creates a disconnected session for cfg.
func New(cfg config.Config, dialer transport.Dialer, log zerolog.Logger, opts ...Option) *Session {
	term := ingest.NewTerminal(config.TerminalHistory)
	s := &Session{
		cfg:     cfg,
		dialer:  dialer,
		term:    term,
		ctrl:    ingest.NewController(cfg, term, log),
		log:     log,
		now:     time.Now,
		csvTmpl: cfg.CSVPath,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.home == "" {
		s.home, _ = os.UserHomeDir()
	}

	term.Notef("Welcome! Starting session at %s", s.now().Format("2006-01-02 15:04:05"))
	return s
}

// BeginConnect moves a disconnected session to Connecting.
func (s *Session) BeginConnect(address string) (Attempt, error) {
	if s.state != Disconnected {
		return Attempt{}, ErrBusy
	}
	kind, target := transport.ParseAddress(address)

	s.gen++
	s.state = Connecting
	s.address = address
	s.term.Notef("Connecting to %s", target)
	s.log.Info().Str("address", address).Stringer("kind", kind).Int("gen", s.gen).Msg("connecting")
	return Attempt{Gen: s.gen, Address: address, Kind: kind}, nil
}

// Dial opens the transport for a. It only reads immutable session fields
// and may run off the update goroutine.
func (s *Session) Dial(ctx context.Context, a Attempt, ev transport.Events) (transport.Transport, error) {
	return s.dialer.Dial(ctx, a.Address, ev)
}

// FinishConnect applies the outcome of Dial. A result for an attempt that
// is no longer current is closed and ignored.
func (s *Session) FinishConnect(a Attempt, link transport.Transport, err error) {
	if a.Gen != s.gen || s.state != Connecting {
		if link != nil {
			_ = s.submit(Job{Gen: a.Gen, Link: link})
		}
		return
	}

	if err != nil {
		s.state = Disconnected
		s.term.Notef("Failed to connect to %s: %v", a.Address, err)
		s.log.Warn().Err(err).Str("address", a.Address).Msg("connect failed")
		return
	}

	s.link = link
	s.state = Connected
	s.term.Notef("Connected to %s (%s)", link.Target(), link.Kind())
	s.log.Info().Str("target", link.Target()).Stringer("kind", link.Kind()).Msg("connected")

	if s.cfg.CmdConnect != "" {
		_ = s.SendCommand(s.cfg.CmdConnect)
	}
}

// Connect runs BeginConnect, Dial and FinishConnect in sequence.
func (s *Session) Connect(ctx context.Context, address string, ev transport.Events) error {
	a, err := s.BeginConnect(address)
	if err != nil {
		return err
	}
	link, err := s.Dial(ctx, a, ev)
	s.FinishConnect(a, link, err)
	return err
}

// Disconnect closes the active transport. It is a no-op when
// disconnected; a pending connect attempt is abandoned. The state change
// is immediate, the close itself may be offloaded.
func (s *Session) Disconnect() error {
	gen := s.gen
	link := s.detach()
	if link == nil {
		return nil
	}
	return s.submit(Job{Gen: gen, Link: link})
}

// Stop disconnects and closes the CSV log.
func (s *Session) Stop() error {
	derr := s.Disconnect()
	if _, err := s.ctrl.StopLog(); err != nil {
		return err
	}
	return derr
}

// detach moves the session to Disconnected and returns the link that was
// active, or nil.
func (s *Session) detach() transport.Transport {
	switch s.state {
	case Disconnected:
		return nil
	case Connecting:
		s.gen++
		s.state = Disconnected
		s.term.Notef("Connect to %s cancelled", s.address)
		return nil
	}

	link := s.link
	s.link = nil
	s.state = Disconnected
	s.gen++

	if link.Kind() == transport.KindBLE {
		s.term.Notef("Disconnecting BLE")
	} else {
		s.term.Notef("Disconnected from %s", link.Target())
	}
	return link
}

// OnLine ingests a line received under attempt gen. Lines from stale
// attempts are dropped and false is returned.
func (s *Session) OnLine(gen int, line string) bool {
	if gen != s.gen || s.state == Disconnected {
		return false
	}
	s.ctrl.OnLine(line)
	return true
}

// OnClosed handles a transport ending on its own (cable pulled, device
// reset). There is no reconnect.
func (s *Session) OnClosed(gen int, err error) {
	if gen != s.gen || s.state != Connected {
		return
	}
	s.term.Notef("Connection to %s lost: %v", s.link.Target(), err)
	s.log.Warn().Err(err).Str("target", s.link.Target()).Msg("connection lost")
	_ = s.submit(Job{Gen: gen, Link: s.link})
	s.link = nil
	s.state = Disconnected
	s.gen++
}

// Send writes text plus CRLF to the device. With an offload set the write
// happens later and only ErrNotConnected is returned here.
func (s *Session) Send(text string) error {
	if s.state != Connected {
		s.term.Notef("Error: Not connected")
		return ErrNotConnected
	}
	return s.submit(Job{Gen: s.gen, Link: s.link, Text: text, Payload: []byte(text + "\r\n")})
}

func (s *Session) submit(j Job) error {
	if s.offload != nil {
		s.offload(j)
		return nil
	}
	err := j.Run()
	s.JobDone(j, err)
	return err
}

// JobDone reports the outcome of a job to the terminal and the log.
func (s *Session) JobDone(j Job, err error) {
	if j.IsClose() {
		if err != nil {
			s.log.Warn().Err(err).Str("target", j.Link.Target()).Msg("close failed")
		}
		return
	}
	if err != nil {
		s.term.Notef("Error sending %q: %v", j.Text, err)
		s.log.Warn().Err(err).Str("command", j.Text).Msg("send failed")
		return
	}
	s.term.Notef("=> %s", j.Text)
}

// SendCommand expands <date>/<time>/<home> in cmd and sends it.
func (s *Session) SendCommand(cmd string) error {
	return s.Send(config.ExpandTemplate(cmd, s.now(), s.home))
}

// StartLog opens the CSV log and sends cmdstartwritecsv when configured.
// Calling it while logging is a no-op.
func (s *Session) StartLog() error {
	started, err := s.ctrl.StartLog(s.csvTmpl, s.now(), s.home)
	if err != nil || !started {
		return err
	}
	if s.cfg.CmdStartWriteCSV != "" {
		_ = s.SendCommand(s.cfg.CmdStartWriteCSV)
	}
	return nil
}

// StopLog closes the CSV log and sends cmdstopwritecsv when configured.
// Calling it while not logging is a no-op.
func (s *Session) StopLog() error {
	stopped, err := s.ctrl.StopLog()
	if !stopped {
		return err
	}
	if s.cfg.CmdStopWriteCSV != "" {
		_ = s.SendCommand(s.cfg.CmdStopWriteCSV)
	}
	return err
}

// ToggleLog starts or stops CSV logging.
func (s *Session) ToggleLog() error {
	if s.ctrl.Logging() {
		return s.StopLog()
	}
	return s.StartLog()
}

// SetCSVTemplate changes the path template used by the next StartLog.
func (s *Session) SetCSVTemplate(tmpl string) {
	s.csvTmpl = tmpl
}

// CSVTemplate returns the current path template.
func (s *Session) CSVTemplate() string {
	return s.csvTmpl
}

// Restart moves the shared cursor to 0.
func (s *Session) Restart() {
	s.ctrl.Restart()
}

// Close releases the transport and the CSV log inline. It is meant for
// shutdown, when no loop is left to receive offloaded results.
func (s *Session) Close() error {
	var errs []error
	if link := s.detach(); link != nil {
		if err := link.Close(); err != nil {
			errs = append(errs, fmt.Errorf("disconnect: %w", err))
		}
	}
	if err := s.ctrl.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing csv: %w", err))
	}
	return errors.Join(errs...)
}

func (s *Session) State() State                   { return s.state }
func (s *Session) Gen() int                       { return s.gen }
func (s *Session) Address() string                { return s.address }
func (s *Session) Config() config.Config          { return s.cfg }
func (s *Session) Controller() *ingest.Controller { return s.ctrl }
func (s *Session) Terminal() *ingest.Terminal     { return s.term }

// Link returns the active transport, or nil.
func (s *Session) Link() transport.Transport {
	return s.link
}
