// Package filter implements the drift-suppressing complementary filter. It
// blends each raw quaternion (or gyro/accel pair) with the filtered history,
// then runs a chain of drift suppressors: a generic detector over the recent
// angular-change window, per-axis roll and yaw creep suppression against a
// slowly-updated reference, a periodic hard reset and a short weighted
// moving average on the output.
package filter

import (
	"math"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"github.com/yuk1kaza/quaternion-3Dvisualizer/internal/quat"
	"github.com/yuk1kaza/quaternion-3Dvisualizer/internal/ringbuf"
)

const (
	// DefaultAlpha is how much the fixed policy trusts filter history over
	// the incoming sample.
	DefaultAlpha = 0.65
	// DefaultGyroWeight is how much sensor fusion trusts the integrated
	// gyro step over the accelerometer tilt estimate.
	DefaultGyroWeight = 0.55

	historySize     = 10
	axisHistorySize = 10
	smoothTaps      = 4

	driftWindowSize   = 20
	driftDetectWindow = 10
	driftThreshold    = 1e-4
	driftStrength     = 0.5
	driftSpikeRatio   = 1.5

	rollThreshold = 0.1 * math.Pi / 180
	rollStrength  = 0.8
	rollWindow    = 3
	rollMinHist   = 5

	yawThreshold = 0.3 * math.Pi / 180
	yawStrength  = 0.6
	yawWindow    = 5
	yawMinHist   = 10

	resetInterval     = 1000
	referenceInterval = 50
	referenceStep     = 0.01

	stabilityWindow = 10
	stabilityScale  = 0.1

	vectorDecayMin = 0.95
	vectorDecayMax = 1.0
)

var smoothWeights = [smoothTaps]float64{0.1, 0.2, 0.3, 0.4}

// Inertial optionally carries raw sensor data alongside a sample. When both
// Gyro (rad/s) and Accel (raw or g, only the direction matters) are present
// the filter fuses them instead of blending the raw quaternion directly.
type Inertial struct {
	Gyro  *[3]float64
	Accel *[3]float64
}

// Stats are the filter's cumulative counters.
type Stats struct {
	Samples              uint64  `json:"samples"`
	DriftCorrections     uint64  `json:"drift_corrections"`
	RollSuppressions     uint64  `json:"roll_suppressions"`
	YawSuppressions      uint64  `json:"yaw_suppressions"`
	ResetCount           uint64  `json:"reset_count"`
	TotalDriftCorrection float64 `json:"total_drift_correction"`
}

// Filter is a single-threaded state machine; callers feed it one sample at a
// time from one goroutine.
type Filter struct {
	policy WeightPolicy

	seeded    bool
	current   quat.Quaternion
	reference quat.Quaternion

	history  *ringbuf.Quats
	drift    *ringbuf.Floats
	rollHist *ringbuf.Floats
	yawHist  *ringbuf.Floats

	stats Stats
}

// New creates a filter driven by the given weight policy.
func New(policy WeightPolicy) *Filter {
	if policy == nil {
		policy = FixedWeights{Alpha: DefaultAlpha, GyroWeight: DefaultGyroWeight}
	}
	return &Filter{
		policy:   policy,
		history:  ringbuf.NewQuats(historySize),
		drift:    ringbuf.NewFloats(driftWindowSize),
		rollHist: ringbuf.NewFloats(axisHistorySize),
		yawHist:  ringbuf.NewFloats(axisHistorySize),
	}
}

// Stats returns a snapshot of the cumulative counters.
func (f *Filter) Stats() Stats {
	return f.stats
}

// Reference returns the current drift reference quaternion.
func (f *Filter) Reference() quat.Quaternion {
	return f.reference
}

// Reset clears all filter state. The next Update seeds fresh.
func (f *Filter) Reset() {
	f.seeded = false
	f.current = quat.Quaternion{}
	f.reference = quat.Quaternion{}
	f.history.Clear()
	f.drift.Clear()
	f.rollHist.Clear()
	f.yawHist.Clear()
	f.stats = Stats{}
}

// UpdateQuat processes one quaternion-only sample.
func (f *Filter) UpdateQuat(raw quat.Quaternion, dt float64) quat.Quaternion {
	return f.Update(raw, Inertial{}, dt)
}

// Update processes one sample and returns the filtered orientation. The raw
// value must already be validated; degenerate inputs fall back to the
// previous output.
func (f *Filter) Update(raw quat.Quaternion, in Inertial, dt float64) quat.Quaternion {
	if !raw.IsValid() {
		if f.seeded {
			return f.current
		}
		raw = quat.Identity()
	}
	raw = raw.Normalized()
	if dt <= 0 {
		dt = 1e-3
	}

	if !f.seeded {
		f.seed(raw)
		return f.current
	}

	f.stats.Samples++

	stability := 1 - f.current.AngleTo(raw)/stabilityScale
	f.policy.Observe(math.Max(0, math.Min(1, stability)))
	alpha, gyroWeight := f.policy.Weights()

	q := f.fuse(raw, in, alpha, gyroWeight, dt)

	change := f.current.AngleTo(q)
	f.drift.Push(change)

	q = f.suppressDrift(q, change, dt)
	q = f.suppressAxes(q)

	if f.stats.Samples%resetInterval == 0 {
		f.reference = q
		f.drift.Clear()
		f.stats.ResetCount++
		log.Debugf("filter: reference reset at sample %d", f.stats.Samples)
	}

	f.history.Push(q)
	e := q.ToEuler()
	f.rollHist.Push(e.Roll)
	f.yawHist.Push(e.Yaw)

	out := f.smooth()
	f.current = out

	if f.stats.Samples%referenceInterval == 0 {
		if w := f.drift.Tail(driftDetectWindow); len(w) == driftDetectWindow &&
			stat.Variance(w, nil) < driftThreshold*0.1 {
			f.reference = quat.Slerp(f.reference, out, referenceStep)
		}
	}
	return out
}

func (f *Filter) seed(raw quat.Quaternion) {
	f.seeded = true
	f.current = raw
	f.reference = raw
	f.history.Push(raw)
	e := raw.ToEuler()
	f.rollHist.Push(e.Roll)
	f.yawHist.Push(e.Yaw)
}

// fuse blends the incoming sample with the filtered history. With inertial
// data present, the previous output is advanced by the gyro step, combined
// with the accelerometer tilt estimate, and that fused value replaces the
// raw sample in the history blend.
func (f *Filter) fuse(raw quat.Quaternion, in Inertial, alpha, gyroWeight, dt float64) quat.Quaternion {
	if in.Gyro != nil && in.Accel != nil {
		g := in.Gyro
		step := quat.Quaternion{
			W: 1,
			X: g[0] * dt / 2,
			Y: g[1] * dt / 2,
			Z: g[2] * dt / 2,
		}
		gyroQ := f.current.Mul(step).Normalized()
		accelQ := quat.FromAccel(in.Accel[0], in.Accel[1], in.Accel[2])
		raw = quat.Slerp(accelQ, gyroQ, gyroWeight)
	}
	return quat.Slerp(f.current, raw, 1-alpha)
}

// suppressDrift watches the recent angular-change window for the slow,
// regular creep signature: a non-trivial mean change with low variance,
// punctuated by a step larger than the recent average. On detection the
// output is pulled toward the reference, either by SLERP when clearly
// deviated or by decaying the vector part.
func (f *Filter) suppressDrift(q quat.Quaternion, change, dt float64) quat.Quaternion {
	w := f.drift.Tail(driftDetectWindow)
	if len(w) < driftDetectWindow {
		return q
	}

	mean := stat.Mean(w, nil)
	variance := stat.Variance(w, nil)
	recent := stat.Mean(w[:len(w)-1], nil)

	if mean <= driftThreshold || variance >= driftThreshold/2 || change <= driftSpikeRatio*recent {
		return q
	}

	f.stats.DriftCorrections++
	deviation := q.AngleTo(f.reference)
	f.stats.TotalDriftCorrection += deviation

	if deviation > 2*driftThreshold {
		return quat.Slerp(q, f.reference, driftStrength*dt)
	}

	decay := math.Max(vectorDecayMin, math.Min(vectorDecayMax, 1-driftStrength*dt))
	return quat.Quaternion{W: q.W, X: q.X * decay, Y: q.Y * decay, Z: q.Z * decay}.Normalized()
}

// suppressAxes runs the per-axis creep suppressors. Roll and yaw drift show
// up as a long run of tiny same-direction steps, so each axis is gated on
// its recent mean step being below the axis threshold while the absolute
// deviation from the reference has grown past it. The deviation is cut by
// the axis strength outright; a dt-scaled nudge cannot hold the output
// against input that creeps indefinitely.
func (f *Filter) suppressAxes(q quat.Quaternion) quat.Quaternion {
	e := q.ToEuler()
	ref := f.reference.ToEuler()
	adjusted := false

	if f.rollHist.Len() >= rollMinHist &&
		meanAbsStep(f.rollHist.Tail(rollWindow+1)) < rollThreshold {
		if dev := quat.WrapAngle(e.Roll - ref.Roll); math.Abs(dev) > rollThreshold {
			e.Roll = quat.WrapAngle(e.Roll - dev*rollStrength)
			f.stats.RollSuppressions++
			adjusted = true
		}
	}

	if f.yawHist.Len() >= yawMinHist &&
		meanAbsStep(f.yawHist.Tail(yawWindow+1)) < yawThreshold {
		if dev := quat.WrapAngle(e.Yaw - ref.Yaw); math.Abs(dev) > yawThreshold {
			e.Yaw = quat.WrapAngle(e.Yaw - dev*yawStrength)
			f.stats.YawSuppressions++
			adjusted = true
		}
	}

	if !adjusted {
		return q
	}
	return quat.FromEuler(e)
}

// meanAbsStep averages the absolute consecutive differences of a window of
// angles, with ±180° wraparound.
func meanAbsStep(window []float64) float64 {
	if len(window) < 2 {
		return math.Inf(1)
	}
	var sum float64
	for i := 1; i < len(window); i++ {
		sum += math.Abs(quat.WrapAngle(window[i] - window[i-1]))
	}
	return sum / float64(len(window)-1)
}

// smooth applies a weighted moving average over the most recent history
// entries, newest weighted heaviest. Signs are aligned to the newest entry
// so antipodal representations do not cancel.
func (f *Filter) smooth() quat.Quaternion {
	tail := f.history.Tail(smoothTaps)
	if len(tail) == 0 {
		return f.current
	}
	newest := tail[len(tail)-1]
	weights := smoothWeights[smoothTaps-len(tail):]

	var acc quat.Quaternion
	var total float64
	for i, q := range tail {
		if newest.Dot(q) < 0 {
			q = q.Neg()
		}
		w := weights[i]
		acc.W += w * q.W
		acc.X += w * q.X
		acc.Y += w * q.Y
		acc.Z += w * q.Z
		total += w
	}
	if total <= 0 {
		return newest
	}
	acc.W /= total
	acc.X /= total
	acc.Y /= total
	acc.Z /= total
	return acc.Normalized()
}
