package plot

import (
	"math"

	"serial-plotter.klederson.com/internal/config"
)

// Range is a Y axis range.
type Range struct {
	Min float64
	Max float64
}

// Span returns Max-Min.
func (r Range) Span() float64 {
	return r.Max - r.Min
}

// Pad widens a flat range by one and adds a margin of (max-min)/2.5 on
// both sides.
func Pad(lo, hi float64) Range {
	if hi == lo {
		hi = lo + 1
	}
	margin := (hi - lo) / config.AutoscaleMargin
	return Range{Min: lo - margin, Max: hi + margin}
}

// Estimate computes a padded range from the window samples preceding the
// most recent one. cursor is the shared write cursor, window the
// autoscale interval. ok is false when autoscale is disabled (window 0)
// or the most recent sample sits at index 0; the caller keeps its
// previous range in that case.
func Estimate(buf []float64, cursor, window int) (r Range, ok bool) {
	n := len(buf)
	if window <= 0 || n == 0 {
		return Range{}, false
	}

	idx := cursor - 1
	if idx < 0 {
		idx = n - 1
	}
	if idx == 0 {
		return Range{}, false
	}

	var lo, hi float64
	if idx > window {
		lo, hi = extent(buf[idx-window : idx])
	} else {
		// Look back across the end of the buffer.
		start := idx - window
		if start < 0 {
			start += n
		}
		if start < 0 {
			start = 0
		}
		lo1, hi1 := extent(buf[:idx])
		lo2, hi2 := extent(buf[start:])
		lo, hi = math.Min(lo1, lo2), math.Max(hi1, hi2)
	}
	return Pad(lo, hi), true
}

// Fit returns the padded range over the whole buffer. It is used when
// autoscale is disabled.
func Fit(buf []float64) Range {
	if len(buf) == 0 {
		return Pad(0, 0)
	}
	return Pad(extent(buf))
}

func extent(vals []float64) (lo, hi float64) {
	if len(vals) == 0 {
		return math.Inf(1), math.Inf(-1)
	}
	lo, hi = vals[0], vals[0]
	for _, v := range vals[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}
