package app

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"serial-plotter.klederson.com/internal/config"
	"serial-plotter.klederson.com/internal/plot"
	"serial-plotter.klederson.com/internal/session"
	"serial-plotter.klederson.com/internal/transport"
)

type recordingSender struct {
	mu   sync.Mutex
	msgs []tea.Msg
}

func (r *recordingSender) Send(msg tea.Msg) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

type nopLink struct {
	kind   transport.Kind
	target string
	sent   []string
	closed bool
}

func (l *nopLink) Kind() transport.Kind { return l.kind }
func (l *nopLink) Target() string       { return l.target }
func (l *nopLink) Send(p []byte) error  { l.sent = append(l.sent, string(p)); return nil }
func (l *nopLink) Close() error         { l.closed = true; return nil }

// stubDialer returns links that emit the given lines synchronously through
// the events, like a device that talks as soon as the port opens.
func stubDialer(links *[]*nopLink, lines ...string) transport.Dialer {
	open := func(kind transport.Kind) transport.DialFunc {
		return func(_ context.Context, target string, ev transport.Events) (transport.Transport, error) {
			l := &nopLink{kind: kind, target: target}
			*links = append(*links, l)
			for _, line := range lines {
				ev.Line(line)
			}
			return l, nil
		}
	}
	return transport.Dialer{Serial: open(transport.KindSerial), BLE: open(transport.KindBLE)}
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Plots = 2
	cfg.Samples = 4
	cfg.AutoscaleInterval = 2
	cfg.Channels = cfg.Channels[:2]
	return cfg
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func newTestInstance(t *testing.T, cfg config.Config, d transport.Dialer) (*Instance, *recordingSender) {
	t.Helper()
	inst := NewInstance(1, cfg, d, zerolog.Nop(), session.WithHome(t.TempDir()))
	inst.SetRunner(inline)
	rec := &recordingSender{}
	inst.Attach(rec)
	return inst, rec
}

func inline(f func()) { f() }

func TestInstanceConnectFlow(t *testing.T) {
	var links []*nopLink
	inst, rec := newTestInstance(t, testConfig(), stubDialer(&links, "1;2", "banner", "3;4"))

	cmd := inst.Connect("/dev/ttyUSB1")
	if cmd == nil {
		t.Fatal("expected dial command")
	}
	if inst.Session().State() != session.Connecting {
		t.Fatalf("state = %v", inst.Session().State())
	}

	msg := cmd()
	if !inst.Handle(msg) {
		t.Fatal("ConnectedMsg not handled")
	}
	if inst.Session().State() != session.Connected {
		t.Fatalf("state = %v", inst.Session().State())
	}

	for _, m := range rec.msgs {
		if !inst.Handle(m) {
			t.Fatalf("message %T not handled", m)
		}
	}
	set := inst.Session().Controller().Buffers()
	if set.Cursor() != 2 || set.Last(0) != 3 || set.Last(1) != 4 {
		t.Errorf("cursor=%d last=%v/%v", set.Cursor(), set.Last(0), set.Last(1))
	}
	if !strings.Contains(inst.Session().Terminal().String(), "banner") {
		t.Error("banner not in terminal")
	}

	rec.msgs = nil
	if cmd := inst.ToggleConnect(""); cmd != nil {
		t.Error("disconnect should not return a command")
	}
	if !links[0].closed || inst.Session().State() != session.Disconnected {
		t.Errorf("closed=%v state=%v", links[0].closed, inst.Session().State())
	}
	if len(rec.msgs) != 1 {
		t.Fatalf("msgs = %+v", rec.msgs)
	}
	if _, ok := rec.msgs[0].(DisconnectedMsg); !ok || !inst.Handle(rec.msgs[0]) {
		t.Errorf("close result %T not handled", rec.msgs[0])
	}
}

func TestLinkJobsRunInOrderOffLoop(t *testing.T) {
	var links []*nopLink
	inst, rec := newTestInstance(t, testConfig(), stubDialer(&links))

	var queued []func()
	inst.SetRunner(func(f func()) { queued = append(queued, f) })

	inst.Handle(inst.Connect("COM1")())
	if err := inst.Session().Send("a"); err != nil {
		t.Fatal(err)
	}
	if err := inst.Session().Send("b"); err != nil {
		t.Fatal(err)
	}
	inst.ToggleConnect("")

	if len(links[0].sent) != 0 || links[0].closed {
		t.Fatal("link I/O ran on the update loop")
	}
	if inst.Session().State() != session.Disconnected {
		t.Errorf("state = %v", inst.Session().State())
	}

	// started in reverse, each job still waits for the one before it
	done := make(chan struct{})
	go func() {
		for i := len(queued) - 1; i >= 0; i-- {
			go queued[i]()
		}
		close(done)
	}()
	<-done

	deadline := time.After(2 * time.Second)
	for {
		rec.mu.Lock()
		n := len(rec.msgs)
		rec.mu.Unlock()
		if n == 3 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("got %d results", n)
		case <-time.After(time.Millisecond):
		}
	}

	rec.mu.Lock()
	msgs := rec.msgs
	rec.mu.Unlock()
	for _, m := range msgs {
		inst.Handle(m)
	}
	if got := strings.Join(links[0].sent, ""); got != "a\r\nb\r\n" || !links[0].closed {
		t.Errorf("sent=%q closed=%v", got, links[0].closed)
	}
	if !strings.Contains(inst.Session().Terminal().String(), "=> b") {
		t.Error("send result not reported")
	}
}

func TestInstanceIgnoresOtherIDs(t *testing.T) {
	var links []*nopLink
	inst, _ := newTestInstance(t, testConfig(), stubDialer(&links))

	if inst.Handle(LineMsg{ID: 2, Gen: 1, Line: "1;2"}) {
		t.Error("message for another instance consumed")
	}
	if inst.Handle(TickMsg(time.Now())) {
		t.Error("tick should not be consumed")
	}
}

func TestRefreshRanges(t *testing.T) {
	cfg := testConfig()
	lo, hi := -5.0, 5.0
	cfg.Channels[1].Min = &lo
	cfg.Channels[1].Max = &hi

	var links []*nopLink
	inst, rec := newTestInstance(t, cfg, stubDialer(&links, "1;0", "2;0", "4;0"))

	// not connected: ranges stay at the initial value
	inst.Refresh()
	if inst.Ranges()[0] != plot.Pad(0, 0) {
		t.Errorf("range moved while disconnected: %+v", inst.Ranges()[0])
	}

	inst.Handle(inst.Connect("COM1")())
	for _, m := range rec.msgs {
		inst.Handle(m)
	}
	inst.Refresh()

	ranges := inst.Ranges()
	// cursor 3, latest index 2, window 2 -> [0,2) plus [0,4)
	if ranges[0] != plot.Pad(0, 4) {
		t.Errorf("channel 0 range = %+v, want %+v", ranges[0], plot.Pad(0, 4))
	}
	if ranges[1] != (plot.Range{Min: -5, Max: 5}) {
		t.Errorf("channel 1 range = %+v", ranges[1])
	}
}

func TestAppModelKeys(t *testing.T) {
	var links []*nopLink
	cfg := testConfig()
	cfg.Com = "/dev/ttyACM0"
	m := New(cfg, stubDialer(&links), zerolog.Nop(), []string{"config loaded"}, session.WithHome(t.TempDir()))
	m.shared.inst.SetRunner(inline)
	rec := &recordingSender{}
	m.shared.inst.Attach(rec)

	model, _ := m.Update(tea.WindowSizeMsg{Width: 160, Height: 40})
	m = model.(AppModel)

	model, cmd := m.Update(key("c"))
	m = model.(AppModel)
	if cmd == nil {
		t.Fatal("connect key returned no command")
	}
	model, _ = m.Update(cmd())
	m = model.(AppModel)
	if len(links) != 1 || links[0].target != "/dev/ttyACM0" {
		t.Fatalf("links = %+v", links)
	}

	model, _ = m.Update(key("v"))
	m = model.(AppModel)
	if !m.shared.inst.Session().Controller().Raw() {
		t.Error("raw toggle not applied")
	}

	model, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = model.(AppModel)
	if m.view != viewTerminal {
		t.Errorf("view = %v", m.view)
	}

	model, _ = m.Update(key("i"))
	m = model.(AppModel)
	if !m.command.Focused() {
		t.Fatal("command input not focused")
	}
	model, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = model.(AppModel)
	if len(links[0].sent) != 1 || links[0].sent[0] != "h\r\n" {
		t.Errorf("sent = %q", links[0].sent)
	}
	sent, ok := rec.msgs[len(rec.msgs)-1].(SentMsg)
	if !ok {
		t.Fatalf("last message %T, want SentMsg", rec.msgs[len(rec.msgs)-1])
	}
	model, _ = m.Update(sent)
	m = model.(AppModel)
	if !strings.Contains(m.shared.inst.Session().Terminal().String(), "=> h") {
		t.Error("sent command not echoed")
	}

	out := m.View()
	if !strings.Contains(out, "CONNECTED") {
		t.Error("view does not show connection state")
	}
	if !strings.Contains(m.shared.inst.Session().Terminal().String(), "config loaded") {
		t.Error("startup notes missing from terminal")
	}

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil || !links[0].closed {
		t.Error("ctrl+c should close the link and quit")
	}
}
