// Package rate estimates the incoming sample rate from arrival timestamps
// and maps it onto render-loop recommendations: a target render rate and an
// interpolation factor for the SLERP stepper.
package rate

import (
	"sync"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"github.com/yuk1kaza/quaternion-3Dvisualizer/internal/ringbuf"
)

const (
	arrivalCapacity = 100
	estimateWindow  = 50
	minSamples      = 10

	// Re-estimation cadence in seconds; between ticks the previous
	// estimate is returned unchanged.
	estimateInterval = 2.0

	// Intervals outside this window are dropped as glitches (duplicate
	// timestamps, scheduler stalls) before averaging.
	minInterval = 0.001
	maxInterval = 1.0

	emaWeight        = 0.3
	renderMultiplier = 2.5
)

// Estimate is one rate recommendation snapshot.
type Estimate struct {
	DetectedRateHz      float64 `json:"detected_rate_hz"`
	TargetRenderRateHz  float64 `json:"target_render_rate_hz"`
	InterpolationFactor float64 `json:"interpolation_factor"`
}

// Synchronizer tracks sample arrival timestamps and produces rate estimates
// on a fixed cadence. Safe for concurrent use.
type Synchronizer struct {
	mu           sync.Mutex
	arrivals     *ringbuf.Floats
	rate         float64
	lastEstimate float64
	current      Estimate
}

// New creates an empty synchronizer.
func New() *Synchronizer {
	return &Synchronizer{
		arrivals: ringbuf.NewFloats(arrivalCapacity),
		current:  Estimate{InterpolationFactor: factorFor(0)},
	}
}

// RecordArrival notes one sample arrival at ts (unix seconds).
func (s *Synchronizer) RecordArrival(ts float64) {
	s.mu.Lock()
	s.arrivals.Push(ts)
	s.mu.Unlock()
}

// Estimate returns the current recommendation, re-deriving it when the
// estimation cadence has elapsed. With too little data the estimate is
// zero-valued with the most conservative interpolation factor.
func (s *Synchronizer) Estimate(now float64) Estimate {
	s.mu.Lock()
	defer s.mu.Unlock()

	if now-s.lastEstimate < estimateInterval {
		return s.current
	}
	s.lastEstimate = now

	if s.arrivals.Len() < minSamples {
		return s.current
	}

	intervals := usableIntervals(s.arrivals.Tail(estimateWindow))
	if len(intervals) == 0 {
		return s.current
	}

	instantaneous := 1 / stat.Mean(intervals, nil)
	if s.rate == 0 {
		s.rate = instantaneous
	} else {
		s.rate = emaWeight*instantaneous + (1-emaWeight)*s.rate
	}

	s.current = Estimate{
		DetectedRateHz:      s.rate,
		TargetRenderRateHz:  s.rate * renderMultiplier,
		InterpolationFactor: factorFor(s.rate),
	}
	log.Debugf("rate: %.1f Hz detected, render target %.1f Hz, factor %.2f",
		s.current.DetectedRateHz, s.current.TargetRenderRateHz, s.current.InterpolationFactor)
	return s.current
}

// Reset discards all arrival history and the running rate.
func (s *Synchronizer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.arrivals.Clear()
	s.rate = 0
	s.lastEstimate = 0
	s.current = Estimate{InterpolationFactor: factorFor(0)}
}

func usableIntervals(ts []float64) []float64 {
	var out []float64
	for i := 1; i < len(ts); i++ {
		d := ts[i] - ts[i-1]
		if d >= minInterval && d <= maxInterval {
			out = append(out, d)
		}
	}
	return out
}

// factorFor maps a detected rate onto an interpolation factor: fast streams
// take small steps for smoothness, slow streams take large steps to keep up.
func factorFor(rate float64) float64 {
	switch {
	case rate >= 200:
		return 0.08
	case rate >= 100:
		return 0.12
	case rate >= 50:
		return 0.18
	default:
		return 0.25
	}
}
