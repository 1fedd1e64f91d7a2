package plot

import (
	"math"
	"testing"
)

func TestPadFlatWindow(t *testing.T) {
	r := Pad(3, 3)
	if r.Span() <= 0 {
		t.Fatalf("flat window produced empty range %+v", r)
	}
	if math.Abs(r.Min-2.6) > 1e-9 || math.Abs(r.Max-4.4) > 1e-9 {
		t.Errorf("Pad(3,3) = %+v, want [2.6, 4.4]", r)
	}
}

func TestEstimateDisabled(t *testing.T) {
	if _, ok := Estimate([]float64{1, 2, 3}, 2, 0); ok {
		t.Error("window 0 must disable estimation")
	}
}

func TestEstimateSkipsIndexZero(t *testing.T) {
	// cursor 1 means the latest sample sits at index 0
	if _, ok := Estimate([]float64{1, 2, 3, 4}, 1, 2); ok {
		t.Error("expected no estimate when latest index is 0")
	}
}

func TestEstimateLinearWindow(t *testing.T) {
	buf := []float64{100, -100, 1, 5, 3, 2, 0, 0}
	// latest index 6, window [2, 6)
	r, ok := Estimate(buf, 7, 4)
	if !ok {
		t.Fatal("expected estimate")
	}
	want := Pad(1, 5)
	if r != want {
		t.Errorf("range = %+v, want %+v", r, want)
	}
}

func TestEstimateWrapsAroundEnd(t *testing.T) {
	buf := []float64{2, 4, 0, 0, 0, -3, 9}
	// latest index 2 with window 3: [0,2) plus [6,7)
	r, ok := Estimate(buf, 3, 3)
	if !ok {
		t.Fatal("expected estimate")
	}
	want := Pad(2, 9)
	if r != want {
		t.Errorf("range = %+v, want %+v", r, want)
	}
}

func TestEstimateCursorZeroUsesLastSlot(t *testing.T) {
	buf := []float64{0, 1, 2, 3, 4, 10}
	// cursor 0 -> latest index 5, window [3,5)
	r, ok := Estimate(buf, 0, 2)
	if !ok {
		t.Fatal("expected estimate")
	}
	if r != Pad(3, 4) {
		t.Errorf("range = %+v", r)
	}
}

func TestEstimateContainsWindow(t *testing.T) {
	buf := make([]float64, 50)
	for i := range buf {
		buf[i] = math.Sin(float64(i)/3) * float64(i)
	}
	for cursor := 0; cursor < len(buf); cursor++ {
		for _, w := range []int{1, 5, 20, 49, 80} {
			r, ok := Estimate(buf, cursor, w)
			if !ok {
				continue
			}
			idx := cursor - 1
			if idx < 0 {
				idx = len(buf) - 1
			}
			var lo, hi float64
			if idx > w {
				lo, hi = extent(buf[idx-w : idx])
			} else {
				// [0, idx) plus the tail from idx-w wrapped around the end
				start := max(idx-w+len(buf), 0)
				lo1, hi1 := extent(buf[:idx])
				lo2, hi2 := extent(buf[start:])
				lo, hi = math.Min(lo1, lo2), math.Max(hi1, hi2)
			}
			if r.Min > lo || r.Max < hi {
				t.Errorf("cursor %d w %d: range %+v does not contain [%v, %v]", cursor, w, r, lo, hi)
			}
			if r.Span() <= 0 {
				t.Errorf("cursor %d w %d: empty range", cursor, w)
			}
		}
	}
}

func TestFit(t *testing.T) {
	if r := Fit([]float64{-2, 3}); r != Pad(-2, 3) {
		t.Errorf("Fit = %+v", r)
	}
}
