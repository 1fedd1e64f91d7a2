package plot

import (
	"errors"
	"fmt"
)

// ErrChannelCount is returned when a sample row does not have one value
// per channel.
var ErrChannelCount = errors.New("value count does not match channel count")

// ChannelSet holds one fixed-length circular buffer per channel. All
// buffers share a single write cursor so a row written at idx is aligned
// across channels.
type ChannelSet struct {
	bufs  [][]float64
	idx   int
	count int
}

// NewChannelSet creates zeroed buffers for the given channel count, each
// holding samples values.
func NewChannelSet(channels, samples int) *ChannelSet {
	bufs := make([][]float64, channels)
	for i := range bufs {
		bufs[i] = make([]float64, samples)
	}
	return &ChannelSet{bufs: bufs}
}

// Write stores one row (a value per channel) at the cursor and advances it.
func (s *ChannelSet) Write(values []float64) error {
	if len(values) != len(s.bufs) {
		return fmt.Errorf("%w: got %d, want %d", ErrChannelCount, len(values), len(s.bufs))
	}
	for i, v := range values {
		s.bufs[i][s.idx] = v
	}
	s.idx = (s.idx + 1) % s.Samples()
	if s.count < s.Samples() {
		s.count++
	}
	return nil
}

// Restart moves the cursor back to 0. Buffer contents are kept and get
// overwritten as new rows arrive.
func (s *ChannelSet) Restart() {
	s.idx = 0
}

// Cursor returns the index the next row will be written to.
func (s *ChannelSet) Cursor() int {
	return s.idx
}

// Channels returns the number of channels.
func (s *ChannelSet) Channels() int {
	return len(s.bufs)
}

// Samples returns the buffer length per channel.
func (s *ChannelSet) Samples() int {
	if len(s.bufs) == 0 {
		return 0
	}
	return len(s.bufs[0])
}

// Channel returns a copy of channel i in buffer (index) order.
func (s *ChannelSet) Channel(i int) []float64 {
	out := make([]float64, len(s.bufs[i]))
	copy(out, s.bufs[i])
	return out
}

// Ordered returns the written values of channel i oldest first.
func (s *ChannelSet) Ordered(i int) []float64 {
	if s.count == 0 {
		return nil
	}
	buf := s.bufs[i]
	result := make([]float64, s.count)
	if s.count < len(buf) {
		start := (s.idx - s.count + len(buf)) % len(buf)
		for k := range result {
			result[k] = buf[(start+k)%len(buf)]
		}
		return result
	}
	n := copy(result, buf[s.idx:])
	copy(result[n:], buf[:s.idx])
	return result
}

// Last returns the most recently written value of channel i (the slot
// before the cursor).
func (s *ChannelSet) Last(i int) float64 {
	buf := s.bufs[i]
	return buf[(s.idx-1+len(buf))%len(buf)]
}
