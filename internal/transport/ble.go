package transport

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"
	"tinygo.org/x/bluetooth"

	"serial-plotter.klederson.com/internal/config"
)

// bleChunk is the payload size of one write at the default ATT MTU.
const bleChunk = 20

// BLE is a Nordic UART service client.
type BLE struct {
	address string
	device  bluetooth.Device
	notify  bluetooth.DeviceCharacteristic
	write   bluetooth.DeviceCharacteristic
	closed  atomic.Bool
	log     zerolog.Logger
}

// BLEDialer returns a DialFunc connecting through the default adapter.
func BLEDialer(log zerolog.Logger) DialFunc {
	return func(ctx context.Context, target string, ev Events) (Transport, error) {
		return DialBLE(ctx, target, ev, log)
	}
}

// DialBLE connects to the peripheral at address (a MAC), discovers the
// UART service and subscribes to its notify characteristic. Each
// notification is delivered as one or more lines.
func DialBLE(ctx context.Context, address string, ev Events, log zerolog.Logger) (*BLE, error) {
	svcUUID, notifyUUID, writeUUID, err := nusUUIDs()
	if err != nil {
		return nil, err
	}

	mac, err := bluetooth.ParseMAC(address)
	if err != nil {
		return nil, fmt.Errorf("invalid BLE address %q: %w", address, err)
	}

	adapter := bluetooth.DefaultAdapter
	if err := adapter.Enable(); err != nil {
		return nil, fmt.Errorf("failed to enable BLE adapter: %w (try running with sudo or setcap cap_net_admin+ep)", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l := log.With().Str("ble", address).Logger()
	l.Info().Msg("connecting")

	device, err := adapter.Connect(bluetooth.Address{MACAddress: bluetooth.MACAddress{MAC: mac}}, bluetooth.ConnectionParams{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", address, err)
	}

	b := &BLE{address: address, device: device, log: l}
	if err := b.subscribe(svcUUID, notifyUUID, writeUUID, ev); err != nil {
		_ = device.Disconnect()
		return nil, err
	}

	l.Info().Msg("connected, notifications enabled")
	return b, nil
}

func (b *BLE) subscribe(svcUUID, notifyUUID, writeUUID bluetooth.UUID, ev Events) error {
	services, err := b.device.DiscoverServices([]bluetooth.UUID{svcUUID})
	if err != nil {
		return fmt.Errorf("discovering UART service: %w", err)
	}
	if len(services) == 0 {
		return errors.New("UART service not found")
	}

	chars, err := services[0].DiscoverCharacteristics([]bluetooth.UUID{notifyUUID, writeUUID})
	if err != nil {
		return fmt.Errorf("discovering UART characteristics: %w", err)
	}
	var haveNotify, haveWrite bool
	for _, c := range chars {
		switch c.UUID() {
		case notifyUUID:
			b.notify, haveNotify = c, true
		case writeUUID:
			b.write, haveWrite = c, true
		}
	}
	if !haveNotify || !haveWrite {
		return errors.New("UART characteristics not found")
	}

	return b.notify.EnableNotifications(func(buf []byte) {
		if b.closed.Load() {
			return
		}
		for _, line := range SplitPayload(buf) {
			ev.line(line)
		}
	})
}

func (b *BLE) Kind() Kind     { return KindBLE }
func (b *BLE) Target() string { return b.address }

// Send writes p to the UART write characteristic in MTU sized chunks.
func (b *BLE) Send(p []byte) error {
	if b.closed.Load() {
		return ErrClosed
	}
	for len(p) > 0 {
		n := min(len(p), bleChunk)
		if _, err := b.write.WriteWithoutResponse(p[:n]); err != nil {
			return fmt.Errorf("BLE write: %w", err)
		}
		p = p[n:]
	}
	return nil
}

// Close disconnects from the peripheral. Only the first call disconnects.
func (b *BLE) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := b.device.Disconnect()
	b.log.Info().Msg("disconnected")
	return err
}

func nusUUIDs() (svc, notify, write bluetooth.UUID, err error) {
	if svc, err = bluetooth.ParseUUID(config.NUSServiceUUID); err != nil {
		return
	}
	if notify, err = bluetooth.ParseUUID(config.NUSNotifyUUID); err != nil {
		return
	}
	write, err = bluetooth.ParseUUID(config.NUSWriteUUID)
	return
}
