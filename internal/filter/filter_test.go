package filter

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuk1kaza/quaternion-3Dvisualizer/internal/quat"
)

const deg = math.Pi / 180

func fixed() *Filter {
	return New(FixedWeights{Alpha: DefaultAlpha, GyroWeight: DefaultGyroWeight})
}

func TestFirstSampleSeeds(t *testing.T) {
	f := fixed()
	raw := quat.FromEuler(quat.Euler{Roll: 10 * deg, Pitch: 5 * deg, Yaw: -20 * deg})

	out := f.Update(raw, Inertial{}, 0.01)

	assert.InDelta(t, 0, out.AngleTo(raw), 1e-9)
	assert.Equal(t, uint64(0), f.Stats().Samples)
	assert.InDelta(t, 0, f.Reference().AngleTo(raw), 1e-9)
}

func TestNoisyStreamStaysBounded(t *testing.T) {
	f := fixed()
	rng := rand.New(rand.NewSource(1))
	base := quat.FromEuler(quat.Euler{Roll: 15 * deg, Yaw: 30 * deg})

	var out quat.Quaternion
	for i := 0; i < 2000; i++ {
		noisy := quat.FromEuler(quat.Euler{
			Roll:  15*deg + (rng.Float64()-0.5)*deg,
			Pitch: (rng.Float64() - 0.5) * deg,
			Yaw:   30*deg + (rng.Float64()-0.5)*deg,
		})
		out = f.UpdateQuat(noisy, 0.01)
	}

	assert.Less(t, out.AngleTo(base), 2*deg)
	assert.Equal(t, uint64(1999), f.Stats().Samples)
}

func TestSlowRollCreepSuppressed(t *testing.T) {
	f := fixed()

	var out quat.Quaternion
	for i := 0; i < 2000; i++ {
		raw := quat.FromEuler(quat.Euler{Roll: float64(i) * 0.01 * deg})
		out = f.UpdateQuat(raw, 0.01)
	}

	rawRoll := 1999 * 0.01 * deg // just under 20 degrees
	filteredRoll := math.Abs(out.ToEuler().Roll)

	assert.Less(t, filteredRoll, 5*deg)
	assert.Less(t, filteredRoll, rawRoll/4)
	assert.NotZero(t, f.Stats().RollSuppressions)
}

func TestDegenerateInputFallsBack(t *testing.T) {
	f := fixed()
	seedQ := quat.FromEuler(quat.Euler{Yaw: 45 * deg})
	f.UpdateQuat(seedQ, 0.01)

	out := f.UpdateQuat(quat.Quaternion{}, 0.01)
	assert.InDelta(t, 0, out.AngleTo(seedQ), 1e-9)

	out = f.UpdateQuat(quat.Quaternion{W: math.NaN()}, 0.01)
	assert.InDelta(t, 0, out.AngleTo(seedQ), 1e-9)
}

func TestInertialFusionLevel(t *testing.T) {
	f := fixed()
	f.UpdateQuat(quat.Identity(), 0.01)

	gyro := [3]float64{0, 0, 0}
	accel := [3]float64{0, 0, 1}

	var out quat.Quaternion
	for i := 0; i < 100; i++ {
		out = f.Update(quat.Identity(), Inertial{Gyro: &gyro, Accel: &accel}, 0.01)
	}
	assert.Less(t, out.AngleTo(quat.Identity()), 0.5*deg)
}

func TestPeriodicReferenceReset(t *testing.T) {
	f := fixed()
	for i := 0; i <= 1000; i++ {
		f.UpdateQuat(quat.FromEuler(quat.Euler{Yaw: 10 * deg}), 0.01)
	}
	assert.Equal(t, uint64(1), f.Stats().ResetCount)
}

func TestResetClearsState(t *testing.T) {
	f := fixed()
	f.UpdateQuat(quat.FromEuler(quat.Euler{Roll: 30 * deg}), 0.01)
	f.UpdateQuat(quat.FromEuler(quat.Euler{Roll: 31 * deg}), 0.01)
	require.NotZero(t, f.Stats().Samples)

	f.Reset()
	assert.Equal(t, Stats{}, f.Stats())

	fresh := quat.FromEuler(quat.Euler{Yaw: -60 * deg})
	out := f.UpdateQuat(fresh, 0.01)
	assert.InDelta(t, 0, out.AngleTo(fresh), 1e-9)
}

func TestFixedWeightsConstant(t *testing.T) {
	w := FixedWeights{Alpha: 0.65, GyroWeight: 0.55}
	w.Observe(0)
	w.Observe(1)
	a, g := w.Weights()
	assert.Equal(t, 0.65, a)
	assert.Equal(t, 0.55, g)
}

func TestAdaptiveWeightsTrackStability(t *testing.T) {
	w := DefaultAdaptiveWeights()

	for i := 0; i < stabilityWindow; i++ {
		w.Observe(1)
	}
	a, g := w.Weights()
	assert.InDelta(t, w.AlphaMax, a, 1e-9)
	assert.InDelta(t, w.GyroMax, g, 1e-9)

	for i := 0; i < stabilityWindow; i++ {
		w.Observe(0)
	}
	a, g = w.Weights()
	assert.InDelta(t, w.AlphaMin, a, 1e-9)
	assert.InDelta(t, w.GyroMin, g, 1e-9)
}

func TestAdaptiveWeightsStayInRange(t *testing.T) {
	f := New(DefaultAdaptiveWeights())
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 500; i++ {
		raw := quat.FromEuler(quat.Euler{
			Roll: (rng.Float64() - 0.5) * 10 * deg,
			Yaw:  (rng.Float64() - 0.5) * 10 * deg,
		})
		f.UpdateQuat(raw, 0.01)
	}

	a, g := f.policy.Weights()
	assert.GreaterOrEqual(t, a, 0.60)
	assert.LessOrEqual(t, a, 0.75)
	assert.GreaterOrEqual(t, g, 0.50)
	assert.LessOrEqual(t, g, 0.65)
}
