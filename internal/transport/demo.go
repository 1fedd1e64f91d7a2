package transport

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"go.uber.org/atomic"

	"serial-plotter.klederson.com/internal/config"
)

type demoChannel struct {
	base      float64
	amplitude float64
	period    float64
	phase     float64
	noise     float64
}

// Demo is a synthetic device producing delimited sample rows, with an
// occasional status line and an echo of every command sent to it.
type Demo struct {
	kind     Kind
	target   string
	delim    string
	channels []demoChannel
	ev       Events
	interval time.Duration
	closed   atomic.Bool
	cancel   context.CancelFunc
	replies  chan string
}

// DemoDialer returns a Dialer whose serial and BLE paths both open demo
// devices emitting plots values per row.
func DemoDialer(plots int, delim string) Dialer {
	open := func(kind Kind) DialFunc {
		return func(ctx context.Context, target string, ev Events) (Transport, error) {
			return NewDemo(kind, target, plots, delim, config.DemoInterval, ev), nil
		}
	}
	return Dialer{Serial: open(KindSerial), BLE: open(KindBLE)}
}

// NewDemo starts a demo device.
func NewDemo(kind Kind, target string, plots int, delim string, interval time.Duration, ev Events) *Demo {
	chans := make([]demoChannel, plots)
	for i := range chans {
		chans[i] = demoChannel{
			base:      rand.Float64()*20 - 10,
			amplitude: 1 + rand.Float64()*9,
			period:    2 + rand.Float64()*6, // seconds
			phase:     rand.Float64() * 2 * math.Pi,
			noise:     rand.Float64() * 0.5,
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Demo{
		kind:     kind,
		target:   target,
		delim:    delim,
		channels: chans,
		ev:       ev,
		interval: interval,
		cancel:   cancel,
		replies:  make(chan string, 16),
	}
	go d.loop(ctx)
	return d
}

func (d *Demo) loop(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.ev.line(fmt.Sprintf("demo device on %s ready", d.target))
	n := 0
	for {
		select {
		case <-ctx.Done():
			return
		case reply := <-d.replies:
			d.ev.line(reply)
		case <-ticker.C:
			n++
			if n%config.DemoBanner == 0 {
				d.ev.line(fmt.Sprintf("status: %d samples sent", n))
				continue
			}
			d.ev.line(d.row(float64(n) * d.interval.Seconds()))
		}
	}
}

func (d *Demo) row(t float64) string {
	fields := make([]string, len(d.channels))
	for i, c := range d.channels {
		v := c.base + c.amplitude*math.Sin(2*math.Pi*t/c.period+c.phase) + (rand.Float64()-0.5)*c.noise
		fields[i] = strconv.FormatFloat(v, 'f', 3, 64)
	}
	return strings.Join(fields, d.delim)
}

func (d *Demo) Kind() Kind     { return d.kind }
func (d *Demo) Target() string { return d.target }

// Send answers with an acknowledgement line, like a device echoing its
// command prompt.
func (d *Demo) Send(p []byte) error {
	if d.closed.Load() {
		return ErrClosed
	}
	cmd := strings.TrimRight(string(p), "\r\n")
	select {
	case d.replies <- "ok: " + cmd:
	default:
	}
	return nil
}

// Close stops the demo device.
func (d *Demo) Close() error {
	if d.closed.CompareAndSwap(false, true) {
		d.cancel()
	}
	return nil
}
