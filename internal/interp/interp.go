// Package interp smooths a render loop over a slower sample stream: each
// render tick steps the displayed orientation a fixed SLERP fraction toward
// the latest target.
package interp

import "github.com/yuk1kaza/quaternion-3Dvisualizer/internal/quat"

// Stepper holds the displayed orientation between render ticks. It is not
// safe for concurrent use; drive it from the render goroutine.
type Stepper struct {
	current quat.Quaternion
	primed  bool
}

// Step advances the displayed orientation toward target by the given SLERP
// factor and returns the new display value. The first call snaps straight to
// the target.
func (s *Stepper) Step(target quat.Quaternion, factor float64) quat.Quaternion {
	target = target.Normalized()
	if !s.primed {
		s.primed = true
		s.current = target
		return s.current
	}
	if factor <= 0 {
		return s.current
	}
	if factor >= 1 {
		s.current = target
		return s.current
	}
	s.current = quat.Slerp(s.current, target, factor)
	return s.current
}

// Current returns the last displayed orientation.
func (s *Stepper) Current() quat.Quaternion {
	return s.current
}

// Reset forgets the displayed orientation; the next Step snaps to its target.
func (s *Stepper) Reset() {
	s.primed = false
	s.current = quat.Quaternion{}
}
