package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"serial-plotter.klederson.com/internal/config"
	"serial-plotter.klederson.com/internal/transport"
)

type fakeLink struct {
	kind   transport.Kind
	target string
	sent   []string
	closes int
}

func (f *fakeLink) Kind() transport.Kind { return f.kind }
func (f *fakeLink) Target() string       { return f.target }
func (f *fakeLink) Close() error         { f.closes++; return nil }

func (f *fakeLink) Send(p []byte) error {
	f.sent = append(f.sent, string(p))
	return nil
}

type fakeDialer struct {
	serial  []*fakeLink
	ble     []*fakeLink
	failErr error
}

func (d *fakeDialer) dialer() transport.Dialer {
	open := func(kind transport.Kind, list *[]*fakeLink) transport.DialFunc {
		return func(_ context.Context, target string, _ transport.Events) (transport.Transport, error) {
			if d.failErr != nil {
				return nil, d.failErr
			}
			l := &fakeLink{kind: kind, target: target}
			*list = append(*list, l)
			return l, nil
		}
	}
	return transport.Dialer{
		Serial: open(transport.KindSerial, &d.serial),
		BLE:    open(transport.KindBLE, &d.ble),
	}
}

var fixedNow = time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

func newSession(t *testing.T, cfg config.Config, d *fakeDialer) *Session {
	t.Helper()
	return New(cfg, d.dialer(), zerolog.Nop(),
		WithClock(func() time.Time { return fixedNow }),
		WithHome(t.TempDir()))
}

func twoChannelConfig() config.Config {
	cfg := config.Default()
	cfg.Plots = 2
	cfg.Samples = 3
	cfg.Channels = cfg.Channels[:2]
	return cfg
}

func TestConnectRoutesSerial(t *testing.T) {
	d := &fakeDialer{}
	s := newSession(t, twoChannelConfig(), d)

	if err := s.Connect(context.Background(), "/dev/ttyUSB0", transport.Events{}); err != nil {
		t.Fatal(err)
	}
	if s.State() != Connected {
		t.Fatalf("state = %v", s.State())
	}
	if len(d.serial) != 1 || len(d.ble) != 0 {
		t.Errorf("serial=%d ble=%d", len(d.serial), len(d.ble))
	}
}

func TestConnectRoutesBLE(t *testing.T) {
	d := &fakeDialer{}
	s := newSession(t, twoChannelConfig(), d)

	if err := s.Connect(context.Background(), "Address C0:FF:EE:00:11:22", transport.Events{}); err != nil {
		t.Fatal(err)
	}
	if len(d.ble) != 1 || len(d.serial) != 0 {
		t.Fatalf("serial=%d ble=%d", len(d.serial), len(d.ble))
	}
	if d.ble[0].target != "C0:FF:EE:00:11:22" {
		t.Errorf("target = %q", d.ble[0].target)
	}

	if err := s.Disconnect(); err != nil {
		t.Fatal(err)
	}
	if d.ble[0].closes != 1 {
		t.Errorf("BLE closes = %d", d.ble[0].closes)
	}
}

func TestConnectFailureReturnsToDisconnected(t *testing.T) {
	d := &fakeDialer{failErr: errors.New("port busy")}
	s := newSession(t, twoChannelConfig(), d)

	err := s.Connect(context.Background(), "COM7", transport.Events{})
	if err == nil {
		t.Fatal("expected error")
	}
	if s.State() != Disconnected {
		t.Errorf("state = %v", s.State())
	}
	if !strings.Contains(s.Terminal().String(), "Failed to connect to COM7") {
		t.Errorf("terminal = %q", s.Terminal().String())
	}

	// retry is manual and allowed
	d.failErr = nil
	if err := s.Connect(context.Background(), "COM7", transport.Events{}); err != nil {
		t.Fatalf("retry: %v", err)
	}
}

func TestConnectWhileConnectedIsBusy(t *testing.T) {
	d := &fakeDialer{}
	s := newSession(t, twoChannelConfig(), d)
	_ = s.Connect(context.Background(), "COM1", transport.Events{})

	if _, err := s.BeginConnect("COM2"); !errors.Is(err, ErrBusy) {
		t.Errorf("err = %v, want ErrBusy", err)
	}
}

func TestDisconnectWhenDisconnectedIsNoop(t *testing.T) {
	s := newSession(t, twoChannelConfig(), &fakeDialer{})
	if err := s.Disconnect(); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestCmdConnectSentWithPlaceholders(t *testing.T) {
	cfg := twoChannelConfig()
	cfg.CmdConnect = "start <date> <time>"
	d := &fakeDialer{}
	s := newSession(t, cfg, d)

	if err := s.Connect(context.Background(), "COM1", transport.Events{}); err != nil {
		t.Fatal(err)
	}
	want := "start 2024-05-06 07-08-09\r\n"
	if len(d.serial[0].sent) != 1 || d.serial[0].sent[0] != want {
		t.Errorf("sent = %q, want %q", d.serial[0].sent, want)
	}
}

func TestSendRequiresConnection(t *testing.T) {
	d := &fakeDialer{}
	s := newSession(t, twoChannelConfig(), d)

	if err := s.Send("h"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("err = %v", err)
	}
	if !strings.Contains(s.Terminal().String(), "[-PC-] Error: Not connected") {
		t.Errorf("terminal = %q", s.Terminal().String())
	}

	_ = s.Connect(context.Background(), "COM1", transport.Events{})
	if err := s.Send("h"); err != nil {
		t.Fatal(err)
	}
	if d.serial[0].sent[0] != "h\r\n" {
		t.Errorf("sent = %q", d.serial[0].sent)
	}
	if !strings.Contains(s.Terminal().String(), "[-PC-] => h") {
		t.Errorf("terminal = %q", s.Terminal().String())
	}
}

func TestLinesFromStaleAttemptDropped(t *testing.T) {
	d := &fakeDialer{}
	s := newSession(t, twoChannelConfig(), d)

	_ = s.Connect(context.Background(), "COM1", transport.Events{})
	oldGen := s.Gen()
	if !s.OnLine(oldGen, "1;2") {
		t.Fatal("current line rejected")
	}

	_ = s.Disconnect()
	if s.OnLine(oldGen, "3;4") {
		t.Error("line accepted after disconnect")
	}
	if s.Controller().Buffers().Cursor() != 1 {
		t.Errorf("cursor = %d", s.Controller().Buffers().Cursor())
	}
}

func TestAbandonedAttemptClosesLateLink(t *testing.T) {
	d := &fakeDialer{}
	s := newSession(t, twoChannelConfig(), d)

	a, err := s.BeginConnect("COM1")
	if err != nil {
		t.Fatal(err)
	}
	_ = s.Disconnect()

	link := &fakeLink{kind: transport.KindSerial, target: "COM1"}
	s.FinishConnect(a, link, nil)
	if s.State() != Disconnected || link.closes != 1 {
		t.Errorf("state=%v closes=%d", s.State(), link.closes)
	}
}

func TestOnClosedDisconnects(t *testing.T) {
	d := &fakeDialer{}
	s := newSession(t, twoChannelConfig(), d)
	_ = s.Connect(context.Background(), "COM1", transport.Events{})

	s.OnClosed(s.Gen(), errors.New("EOF"))
	if s.State() != Disconnected || d.serial[0].closes != 1 {
		t.Errorf("state=%v closes=%d", s.State(), d.serial[0].closes)
	}
}

func TestToggleLogSendsDeviceCommands(t *testing.T) {
	cfg := twoChannelConfig()
	cfg.CSVPath = "<home>/log_<date>.csv"
	cfg.CmdStartWriteCSV = "rec on"
	cfg.CmdStopWriteCSV = "rec off"
	d := &fakeDialer{}
	s := newSession(t, cfg, d)
	_ = s.Connect(context.Background(), "COM1", transport.Events{})

	if err := s.ToggleLog(); err != nil {
		t.Fatal(err)
	}
	if !s.Controller().Logging() {
		t.Fatal("logging not started")
	}
	s.OnLine(s.Gen(), "1;2")
	if err := s.ToggleLog(); err != nil {
		t.Fatal(err)
	}

	sent := d.serial[0].sent
	if len(sent) != 2 || sent[0] != "rec on\r\n" || sent[1] != "rec off\r\n" {
		t.Errorf("sent = %q", sent)
	}

	entries, err := os.ReadDir(s.home)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "log_2024-05-06.csv" {
		t.Fatalf("files = %v", entries)
	}
	data, _ := os.ReadFile(filepath.Join(s.home, entries[0].Name()))
	if string(data) != "Channel 1;Channel 2\n1;2\n" {
		t.Errorf("csv = %q", data)
	}
}

func TestCloseReleasesEverything(t *testing.T) {
	d := &fakeDialer{}
	s := newSession(t, twoChannelConfig(), d)
	_ = s.Connect(context.Background(), "COM1", transport.Events{})
	_ = s.StartLog()

	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if s.State() != Disconnected || d.serial[0].closes != 1 || s.Controller().Logging() {
		t.Errorf("state=%v closes=%d logging=%v", s.State(), d.serial[0].closes, s.Controller().Logging())
	}
}

func TestOffloadDefersLinkIO(t *testing.T) {
	var jobs []Job
	d := &fakeDialer{}
	s := New(twoChannelConfig(), d.dialer(), zerolog.Nop(),
		WithHome(t.TempDir()),
		WithOffload(func(j Job) { jobs = append(jobs, j) }))

	if err := s.Connect(context.Background(), "COM1", transport.Events{}); err != nil {
		t.Fatal(err)
	}
	link := d.serial[0]

	if err := s.Send("h"); err != nil {
		t.Fatal(err)
	}
	if len(link.sent) != 0 {
		t.Fatal("write ran inline")
	}

	if err := s.Disconnect(); err != nil {
		t.Fatal(err)
	}
	if s.State() != Disconnected || link.closes != 0 {
		t.Fatalf("state=%v closes=%d", s.State(), link.closes)
	}

	if len(jobs) != 2 || jobs[0].IsClose() || !jobs[1].IsClose() {
		t.Fatalf("jobs = %+v", jobs)
	}
	for _, j := range jobs {
		s.JobDone(j, j.Run())
	}
	if len(link.sent) != 1 || link.sent[0] != "h\r\n" || link.closes != 1 {
		t.Errorf("sent=%q closes=%d", link.sent, link.closes)
	}
	if !strings.Contains(s.Terminal().String(), "[-PC-] => h") {
		t.Errorf("terminal = %q", s.Terminal().String())
	}
}

func TestOffloadReportsSendError(t *testing.T) {
	s := newSession(t, twoChannelConfig(), &fakeDialer{})
	s.JobDone(Job{Link: &fakeLink{}, Text: "x", Payload: []byte("x\r\n")}, errors.New("broken pipe"))
	if !strings.Contains(s.Terminal().String(), `Error sending "x": broken pipe`) {
		t.Errorf("terminal = %q", s.Terminal().String())
	}
}

func TestStopClosesLinkAndLog(t *testing.T) {
	d := &fakeDialer{}
	s := newSession(t, twoChannelConfig(), d)
	_ = s.Connect(context.Background(), "COM1", transport.Events{})
	_ = s.StartLog()

	if err := s.Stop(); err != nil {
		t.Fatal(err)
	}
	if s.State() != Disconnected || d.serial[0].closes != 1 || s.Controller().Logging() {
		t.Errorf("state=%v closes=%d logging=%v", s.State(), d.serial[0].closes, s.Controller().Logging())
	}
}
