package app

import (
	"context"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"serial-plotter.klederson.com/internal/config"
	"serial-plotter.klederson.com/internal/plot"
	"serial-plotter.klederson.com/internal/session"
	"serial-plotter.klederson.com/internal/transport"
	"serial-plotter.klederson.com/internal/ui"
)

const connectTimeout = 30 * time.Second

// Sender delivers messages into the program loop. *tea.Program satisfies it.
type Sender interface {
	Send(msg tea.Msg)
}

// Instance is one plotting session together with its display state. All
// methods run on the Bubble Tea update goroutine except the commands they
// return.
type Instance struct {
	id      int
	sess    *session.Session
	ranges  []plot.Range
	program Sender
	log     zerolog.Logger

	run     func(func())
	pending chan struct{} // closed when the last submitted job finished
}

// NewInstance creates a disconnected instance.
func NewInstance(id int, cfg config.Config, dialer transport.Dialer, log zerolog.Logger, opts ...session.Option) *Instance {
	l := log.With().Int("instance", id).Logger()
	ranges := make([]plot.Range, cfg.Plots)
	for i := range ranges {
		ranges[i] = plot.Pad(0, 0)
	}
	in := &Instance{
		id:     id,
		ranges: ranges,
		log:    l,
		run:    func(f func()) { go f() },
	}
	opts = append([]session.Option{session.WithOffload(in.offload)}, opts...)
	in.sess = session.New(cfg, dialer, l, opts...)
	return in
}

// SetRunner replaces how link jobs are started. The default starts a
// goroutine per job.
func (in *Instance) SetRunner(run func(f func())) {
	in.run = run
}

// offload runs a link write or close off the update loop. Jobs run one at
// a time in submission order and report back through the program.
func (in *Instance) offload(j session.Job) {
	prev := in.pending
	done := make(chan struct{})
	in.pending = done

	id := in.id
	in.run(func() {
		if prev != nil {
			<-prev
		}
		defer close(done)
		err := j.Run()
		if j.IsClose() {
			in.send(DisconnectedMsg{ID: id, Job: j, Err: err})
		} else {
			in.send(SentMsg{ID: id, Job: j, Err: err})
		}
	})
}

// Attach sets the program that transport events are sent to. Must be
// called before the first connect.
func (in *Instance) Attach(p Sender) {
	in.program = p
}

func (in *Instance) ID() int                   { return in.id }
func (in *Instance) Session() *session.Session { return in.sess }

// ToggleConnect connects to address when disconnected and disconnects
// when connected. While a connect is pending it cancels it. The link is
// closed off the update loop.
func (in *Instance) ToggleConnect(address string) tea.Cmd {
	if in.sess.State() == session.Disconnected {
		return in.Connect(address)
	}
	_ = in.sess.Disconnect()
	return nil
}

// Connect starts a connect attempt and returns the command that dials.
func (in *Instance) Connect(address string) tea.Cmd {
	a, err := in.sess.BeginConnect(address)
	if err != nil {
		return nil
	}

	id := in.id
	ev := transport.Events{
		Line: func(line string) {
			in.send(LineMsg{ID: id, Gen: a.Gen, Line: line})
		},
		Closed: func(err error) {
			in.send(ClosedMsg{ID: id, Gen: a.Gen, Err: err})
		},
	}
	sess := in.sess
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()
		link, err := sess.Dial(ctx, a, ev)
		return ConnectedMsg{ID: id, Attempt: a, Link: link, Err: err}
	}
}

func (in *Instance) send(msg tea.Msg) {
	if in.program != nil {
		in.program.Send(msg)
	}
}

// Handle applies transport messages addressed to this instance and
// reports whether msg was consumed.
func (in *Instance) Handle(msg tea.Msg) bool {
	switch msg := msg.(type) {
	case LineMsg:
		if msg.ID != in.id {
			return false
		}
		in.sess.OnLine(msg.Gen, msg.Line)
		return true

	case ConnectedMsg:
		if msg.ID != in.id {
			return false
		}
		in.sess.FinishConnect(msg.Attempt, msg.Link, msg.Err)
		return true

	case ClosedMsg:
		if msg.ID != in.id {
			return false
		}
		in.sess.OnClosed(msg.Gen, msg.Err)
		return true

	case SentMsg:
		if msg.ID != in.id {
			return false
		}
		in.sess.JobDone(msg.Job, msg.Err)
		return true

	case DisconnectedMsg:
		if msg.ID != in.id {
			return false
		}
		in.sess.JobDone(msg.Job, msg.Err)
		return true
	}
	return false
}

// Refresh recomputes the Y ranges. Ranges only move while connected; a
// channel with a fixed min/max always uses it.
func (in *Instance) Refresh() {
	if in.sess.State() != session.Connected {
		return
	}
	cfg := in.sess.Config()
	set := in.sess.Controller().Buffers()
	for i := range in.ranges {
		if lo, hi, ok := cfg.Channels[i].FixedRange(); ok {
			in.ranges[i] = plot.Range{Min: lo, Max: hi}
			continue
		}
		buf := set.Channel(i)
		if cfg.AutoscaleInterval == 0 {
			in.ranges[i] = plot.Fit(buf)
			continue
		}
		if r, ok := plot.Estimate(buf, set.Cursor(), cfg.AutoscaleInterval); ok {
			in.ranges[i] = r
		}
	}
}

// Ranges returns the current Y range per channel.
func (in *Instance) Ranges() []plot.Range {
	out := make([]plot.Range, len(in.ranges))
	copy(out, in.ranges)
	return out
}

// Traces prepares every channel for drawing.
func (in *Instance) Traces() []ui.Trace {
	cfg := in.sess.Config()
	set := in.sess.Controller().Buffers()
	traces := make([]ui.Trace, set.Channels())
	for i := range traces {
		traces[i] = ui.Trace{
			Label:  cfg.Channels[i].Label,
			Color:  ui.ParseColor(cfg.Channels[i].Color),
			Values: set.Channel(i),
			Cursor: set.Cursor(),
			Range:  in.ranges[i],
			Last:   set.Last(i),
		}
	}
	return traces
}

// RenderGraph stacks one chart per channel into width x height cells.
func (in *Instance) RenderGraph(width, height int) string {
	traces := in.Traces()
	per := height / len(traces)
	if per < config.MinChartRows {
		per = config.MinChartRows
	}
	parts := make([]string, len(traces))
	for i, tr := range traces {
		parts[i] = ui.RenderTrace(tr, width, per)
	}
	return strings.Join(parts, "\n")
}

// Status summarises the instance for the status bar.
func (in *Instance) Status() ui.Status {
	ctrl := in.sess.Controller()
	rows, skipped := ctrl.Stats()
	addr := in.sess.Address()
	if addr == "" {
		addr = in.sess.Config().Com
	}
	return ui.Status{
		State:     in.sess.State().String(),
		Address:   addr,
		Cursor:    ctrl.Buffers().Cursor(),
		Samples:   ctrl.Buffers().Samples(),
		Rows:      rows,
		Skipped:   skipped,
		CSVPath:   ctrl.LogPath(),
		Raw:       ctrl.Raw(),
		Connected: in.sess.State() == session.Connected,
	}
}

// FrameColor returns the configured frame color, or nil.
func (in *Instance) FrameColor() lipgloss.TerminalColor {
	fc := in.sess.Config().FrameColor
	if fc == nil || *fc == "" {
		return nil
	}
	return ui.ParseColor(*fc)
}

// Stop disconnects and closes the CSV log without blocking the caller.
func (in *Instance) Stop() {
	if err := in.sess.Stop(); err != nil {
		in.log.Warn().Err(err).Msg("stop")
	}
}

// Close stops the transport and the CSV log inline, for shutdown.
func (in *Instance) Close() error {
	err := in.sess.Close()
	if err != nil {
		in.log.Warn().Err(err).Msg("close")
	}
	return err
}
