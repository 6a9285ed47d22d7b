// Package history maintains per-token rolling price windows and the
// statistics the mean-reversion detector relies on.
package history

import (
	"math"
	"sync"
	"time"
)

const (
	// maxSamples caps the window size per token.
	maxSamples = 60
	// window is the sliding time window; older samples are purged on record.
	window = 30 * time.Minute
	// minSamplesForZScore is the minimum sample count before a Z-score is
	// considered meaningful.
	minSamplesForZScore = 10
	// minStdDev below which a series is treated as non-deviating rather
	// than dividing by a near-zero number.
	minStdDev = 0.001
	// trendDeadband is the minimum mean shift that counts as a trend.
	trendDeadband = 0.02
)

// Sample is a single price observation. Identical samples are recorded as-is;
// there is no deduplication.
type Sample struct {
	Price float64
	Time  time.Time
}

// Stats summarises the current window for one token.
type Stats struct {
	Count  int
	Mean   float64
	Min    float64
	Max    float64
	StdDev float64
}

// History tracks rolling price windows for many tokens. It is safe for
// concurrent use.
type History struct {
	mu      sync.RWMutex
	samples map[string][]Sample
	now     func() time.Time
}

// New creates an empty History.
func New() *History {
	return &History{
		samples: make(map[string][]Sample),
		now:     time.Now,
	}
}

// Record appends a sample for the token, evicts samples older than the
// window, and truncates to the size cap keeping the most recent samples.
func (h *History) Record(tokenID string, price float64) {
	h.RecordAt(tokenID, price, h.now())
}

// RecordAt is Record with an explicit observation time, for replay and tests.
func (h *History) RecordAt(tokenID string, price float64, ts time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s := append(h.samples[tokenID], Sample{Price: price, Time: ts})

	cutoff := ts.Add(-window)
	i := 0
	for i < len(s) && s[i].Time.Before(cutoff) {
		i++
	}
	s = s[i:]

	if len(s) > maxSamples {
		s = s[len(s)-maxSamples:]
	}
	h.samples[tokenID] = s
}

// ZScore returns how many standard deviations price lies from the window
// mean. ok is false when fewer than 10 samples exist. A near-constant
// series (stdDev < 0.001) yields a Z-score of exactly 0.
func (h *History) ZScore(tokenID string, price float64) (z float64, ok bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	s := h.samples[tokenID]
	if len(s) < minSamplesForZScore {
		return 0, false
	}
	mean, std := meanStdDev(s)
	if std < minStdDev {
		return 0, true
	}
	return (price - mean) / std, true
}

// Trend compares the mean of the first two against the last two of the most
// recent five samples. It returns +1 for rising, -1 for falling, and 0 for
// flat or fewer than five samples, using a 0.02 deadband.
func (h *History) Trend(tokenID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	s := h.samples[tokenID]
	if len(s) < 5 {
		return 0
	}
	last5 := s[len(s)-5:]
	early := (last5[0].Price + last5[1].Price) / 2
	late := (last5[3].Price + last5[4].Price) / 2

	switch {
	case late-early > trendDeadband:
		return 1
	case early-late > trendDeadband:
		return -1
	default:
		return 0
	}
}

// Stats returns count, mean, min, max, and stdDev over the current window.
// An empty window yields the zero Stats.
func (h *History) Stats(tokenID string) Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	s := h.samples[tokenID]
	if len(s) == 0 {
		return Stats{}
	}

	mean, std := meanStdDev(s)
	min, max := s[0].Price, s[0].Price
	for _, p := range s[1:] {
		if p.Price < min {
			min = p.Price
		}
		if p.Price > max {
			max = p.Price
		}
	}
	return Stats{Count: len(s), Mean: mean, Min: min, Max: max, StdDev: std}
}

// Count returns the number of samples currently held for the token.
func (h *History) Count(tokenID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.samples[tokenID])
}

// meanStdDev computes the mean and population standard deviation.
func meanStdDev(s []Sample) (mean, std float64) {
	var sum float64
	for _, p := range s {
		sum += p.Price
	}
	mean = sum / float64(len(s))

	var variance float64
	for _, p := range s {
		d := p.Price - mean
		variance += d * d
	}
	variance /= float64(len(s))
	return mean, math.Sqrt(variance)
}
