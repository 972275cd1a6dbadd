package filter

import (
	"gonum.org/v1/gonum/stat"

	"github.com/yuk1kaza/quaternion-3Dvisualizer/internal/ringbuf"
)

// WeightPolicy supplies the complementary-filter blend weights for each
// sample. The policy is chosen once at construction; the filter feeds it a
// per-sample stability observation before asking for weights.
type WeightPolicy interface {
	// Observe records the stability score (0 = noisy, 1 = perfectly calm)
	// of the incoming raw sample.
	Observe(stability float64)
	// Weights returns the current history-trust alpha and gyro-trust weight.
	Weights() (alpha, gyroWeight float64)
}

// FixedWeights holds alpha and the gyro weight constant.
type FixedWeights struct {
	Alpha      float64
	GyroWeight float64
}

// Observe is a no-op for fixed weights.
func (FixedWeights) Observe(float64) {}

// Weights returns the configured constants.
func (w FixedWeights) Weights() (float64, float64) {
	return w.Alpha, w.GyroWeight
}

// AdaptiveWeights maps a rolling average of the stability score linearly
// onto alpha and the gyro weight: noisy input shifts both toward trusting
// the new sample, calm input toward trusting history.
type AdaptiveWeights struct {
	AlphaMin float64
	AlphaMax float64
	GyroMin  float64
	GyroMax  float64

	window *ringbuf.Floats
	alpha  float64
	gyro   float64
}

// NewAdaptiveWeights creates an adaptive policy over the given weight
// ranges, seeded at the range midpoints, with a 10-sample stability window.
func NewAdaptiveWeights(alphaMin, alphaMax, gyroMin, gyroMax float64) *AdaptiveWeights {
	return &AdaptiveWeights{
		AlphaMin: alphaMin,
		AlphaMax: alphaMax,
		GyroMin:  gyroMin,
		GyroMax:  gyroMax,
		window:   ringbuf.NewFloats(stabilityWindow),
		alpha:    (alphaMin + alphaMax) / 2,
		gyro:     (gyroMin + gyroMax) / 2,
	}
}

// DefaultAdaptiveWeights returns the adaptive policy over the ranges the
// pipeline ships with, centered on the aggressive drift-suppression tuning.
func DefaultAdaptiveWeights() *AdaptiveWeights {
	return NewAdaptiveWeights(0.60, 0.75, 0.50, 0.65)
}

// Observe pushes one stability score and, once the window is full, remaps
// the weights from its average.
func (w *AdaptiveWeights) Observe(stability float64) {
	w.window.Push(stability)
	if w.window.Len() < stabilityWindow {
		return
	}
	avg := stat.Mean(w.window.Slice(), nil)
	w.alpha = w.AlphaMin + (w.AlphaMax-w.AlphaMin)*avg
	w.gyro = w.GyroMin + (w.GyroMax-w.GyroMin)*avg
}

// Weights returns the currently adapted values.
func (w *AdaptiveWeights) Weights() (float64, float64) {
	return w.alpha, w.gyro
}
