package interp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yuk1kaza/quaternion-3Dvisualizer/internal/quat"
)

func TestFirstStepSnapsToTarget(t *testing.T) {
	var s Stepper
	target := quat.FromEuler(quat.Euler{Yaw: math.Pi / 3})

	out := s.Step(target, 0.12)
	assert.InDelta(t, 0, out.AngleTo(target), 1e-9)
}

func TestStepConvergesMonotonically(t *testing.T) {
	var s Stepper
	s.Step(quat.Identity(), 0.12)
	target := quat.FromEuler(quat.Euler{Yaw: math.Pi / 2})

	prev := math.Inf(1)
	for i := 0; i < 50; i++ {
		out := s.Step(target, 0.12)
		d := out.AngleTo(target)
		assert.Less(t, d, prev)
		prev = d
	}
	assert.Less(t, prev, 0.01)
}

func TestStepFactorBounds(t *testing.T) {
	var s Stepper
	start := quat.Identity()
	s.Step(start, 0.12)
	target := quat.FromEuler(quat.Euler{Roll: 1})

	held := s.Step(target, 0)
	assert.InDelta(t, 0, held.AngleTo(start), 1e-9)

	snapped := s.Step(target, 1)
	assert.InDelta(t, 0, snapped.AngleTo(target), 1e-9)
}

func TestResetForgetsState(t *testing.T) {
	var s Stepper
	s.Step(quat.FromEuler(quat.Euler{Yaw: 1}), 0.12)
	s.Reset()

	target := quat.FromEuler(quat.Euler{Roll: -1})
	out := s.Step(target, 0.12)
	assert.InDelta(t, 0, out.AngleTo(target), 1e-9)
}
