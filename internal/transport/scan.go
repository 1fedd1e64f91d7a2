package transport

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"tinygo.org/x/bluetooth"

	"serial-plotter.klederson.com/internal/config"
)

// Peripheral is a BLE device seen while scanning.
type Peripheral struct {
	Address  string
	Name     string
	RSSI     int16
	LastSeen time.Time
}

// DisplayName returns the device name or "[unnamed]" if empty.
func (p Peripheral) DisplayName() string {
	if p.Name == "" {
		return "[unnamed]"
	}
	return p.Name
}

// Target returns the address in the form accepted by Dialer.Dial.
func (p Peripheral) Target() string {
	return config.BLEMarker + p.Address
}

// PeripheralStore collects scan results keyed by address.
type PeripheralStore struct {
	mu    sync.Mutex
	found map[string]*Peripheral
}

// NewPeripheralStore creates an empty store.
func NewPeripheralStore() *PeripheralStore {
	return &PeripheralStore{found: make(map[string]*Peripheral)}
}

// Upsert records a sighting. A known device keeps its name when the new
// advertisement has none.
func (s *PeripheralStore) Upsert(address, name string, rssi int16, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.found[address]; ok {
		p.RSSI = rssi
		p.LastSeen = now
		if name != "" {
			p.Name = name
		}
		return
	}
	s.found[address] = &Peripheral{Address: address, Name: name, RSSI: rssi, LastSeen: now}
}

// Snapshot returns the peripherals, strongest signal first.
func (s *PeripheralStore) Snapshot() []Peripheral {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Peripheral, 0, len(s.found))
	for _, p := range s.found {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RSSI != out[j].RSSI {
			return out[i].RSSI > out[j].RSSI
		}
		return out[i].Address < out[j].Address
	})
	return out
}

// Scan listens for BLE advertisements until timeout or ctx ends.
func Scan(ctx context.Context, timeout time.Duration, log zerolog.Logger) ([]Peripheral, error) {
	adapter := bluetooth.DefaultAdapter
	if err := adapter.Enable(); err != nil {
		return nil, fmt.Errorf("failed to enable BLE adapter: %w (try running with sudo or setcap cap_net_admin+ep)", err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	go func() {
		<-ctx.Done()
		_ = adapter.StopScan()
	}()

	store := NewPeripheralStore()
	log.Info().Dur("timeout", timeout).Msg("BLE scan started")
	err := adapter.Scan(func(_ *bluetooth.Adapter, result bluetooth.ScanResult) {
		name := result.LocalName()
		if name == "" {
			if mfrs := result.ManufacturerData(); len(mfrs) > 0 {
				name = lookupManufacturer(mfrs[0].CompanyID)
			}
		}
		store.Upsert(result.Address.String(), name, result.RSSI, time.Now())
	})
	if err != nil {
		return nil, fmt.Errorf("BLE scan: %w", err)
	}

	found := store.Snapshot()
	log.Info().Int("devices", len(found)).Msg("BLE scan finished")
	return found, nil
}

// lookupManufacturer names boards that commonly expose a UART service when
// they advertise no local name.
func lookupManufacturer(companyID uint16) string {
	return companyNames[companyID]
}

var companyNames = map[uint16]string{
	0x0059: "Nordic",
	0x02E5: "Espressif",
	0x0822: "Adafruit",
	0x000D: "Texas Inst.",
	0x0131: "Cypress",
	0x0030: "ST Micro",
	0x0499: "Ruuvi",
	0x0002: "Intel",
	0x000F: "Broadcom",
}
