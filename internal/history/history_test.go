package history

import (
	"math"
	"testing"
	"time"
)

func TestZScoreRequiresTenSamples(t *testing.T) {
	h := New()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 9; i++ {
		h.RecordAt("tok", 0.5, base.Add(time.Duration(i)*time.Second))
	}
	if _, ok := h.ZScore("tok", 0.9); ok {
		t.Fatal("expected no Z-score with 9 samples")
	}

	h.RecordAt("tok", 0.5, base.Add(10*time.Second))
	if _, ok := h.ZScore("tok", 0.9); !ok {
		t.Fatal("expected Z-score with 10 samples")
	}
}

func TestZScoreNearConstantSeriesIsZero(t *testing.T) {
	h := New()
	base := time.Now()
	for i := 0; i < 20; i++ {
		h.RecordAt("tok", 0.5, base.Add(time.Duration(i)*time.Second))
	}
	z, ok := h.ZScore("tok", 0.99)
	if !ok {
		t.Fatal("expected ok")
	}
	if z != 0 {
		t.Fatalf("expected Z=0 for constant series regardless of price, got %f", z)
	}
}

func TestZScoreComputation(t *testing.T) {
	h := New()
	base := time.Now()
	prices := []float64{0.4, 0.5, 0.6, 0.4, 0.5, 0.6, 0.4, 0.5, 0.6, 0.5}
	for i, p := range prices {
		h.RecordAt("tok", p, base.Add(time.Duration(i)*time.Second))
	}

	var sum float64
	for _, p := range prices {
		sum += p
	}
	mean := sum / float64(len(prices))
	var variance float64
	for _, p := range prices {
		variance += (p - mean) * (p - mean)
	}
	std := math.Sqrt(variance / float64(len(prices)))
	want := (0.8 - mean) / std

	z, ok := h.ZScore("tok", 0.8)
	if !ok {
		t.Fatal("expected ok")
	}
	if math.Abs(z-want) > 1e-9 {
		t.Fatalf("Z = %f, want %f", z, want)
	}
}

func TestRecordNoDedup(t *testing.T) {
	h := New()
	ts := time.Now()
	h.RecordAt("tok", 0.5, ts)
	h.RecordAt("tok", 0.5, ts)
	if got := h.Count("tok"); got != 2 {
		t.Fatalf("identical samples must both count: got %d, want 2", got)
	}
}

func TestWindowEvictionAndCap(t *testing.T) {
	h := New()
	base := time.Now()

	// Two samples that will fall out of the 30-minute window.
	h.RecordAt("tok", 0.1, base.Add(-40*time.Minute))
	h.RecordAt("tok", 0.2, base.Add(-35*time.Minute))
	h.RecordAt("tok", 0.5, base)
	if got := h.Count("tok"); got != 1 {
		t.Fatalf("stale samples not purged: got %d, want 1", got)
	}

	// Overfill past the cap; only the most recent 60 survive.
	h2 := New()
	for i := 0; i < 80; i++ {
		h2.RecordAt("tok", float64(i), base.Add(time.Duration(i)*time.Second))
	}
	if got := h2.Count("tok"); got != 60 {
		t.Fatalf("cap not enforced: got %d, want 60", got)
	}
	st := h2.Stats("tok")
	if st.Min != 20 {
		t.Fatalf("expected oldest surviving sample 20, got min %f", st.Min)
	}
}

func TestTrend(t *testing.T) {
	base := time.Now()
	cases := []struct {
		name   string
		prices []float64
		want   int
	}{
		{"rising", []float64{0.40, 0.42, 0.46, 0.50, 0.52}, 1},
		{"falling", []float64{0.52, 0.50, 0.46, 0.42, 0.40}, -1},
		{"flat within deadband", []float64{0.50, 0.50, 0.50, 0.51, 0.50}, 0},
		{"too few samples", []float64{0.40, 0.60}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := New()
			for i, p := range tc.prices {
				h.RecordAt("tok", p, base.Add(time.Duration(i)*time.Second))
			}
			if got := h.Trend("tok"); got != tc.want {
				t.Fatalf("Trend = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestStatsEmpty(t *testing.T) {
	h := New()
	st := h.Stats("unknown")
	if st.Count != 0 || st.Mean != 0 || st.StdDev != 0 {
		t.Fatalf("expected zero stats for empty window, got %+v", st)
	}
}
