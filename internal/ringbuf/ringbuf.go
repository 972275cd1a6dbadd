// Package ringbuf provides the small fixed-capacity ring buffers backing the
// filter and rate-estimator history windows.
package ringbuf

import "github.com/yuk1kaza/quaternion-3Dvisualizer/internal/quat"

// Floats is a fixed-capacity ring buffer of float64 values.
type Floats struct {
	data []float64
	pos  int
	full bool
}

// NewFloats creates a Floats ring with the given capacity.
func NewFloats(capacity int) *Floats {
	return &Floats{data: make([]float64, capacity)}
}

// Push appends v, overwriting the oldest value once the ring is full.
func (r *Floats) Push(v float64) {
	r.data[r.pos] = v
	r.pos++
	if r.pos >= len(r.data) {
		r.pos = 0
		r.full = true
	}
}

// Len returns the number of stored values.
func (r *Floats) Len() int {
	if r.full {
		return len(r.data)
	}
	return r.pos
}

// Slice returns the stored values in insertion order, oldest first.
func (r *Floats) Slice() []float64 {
	n := r.Len()
	out := make([]float64, n)
	if r.full {
		copy(out, r.data[r.pos:])
		copy(out[len(r.data)-r.pos:], r.data[:r.pos])
	} else {
		copy(out, r.data[:r.pos])
	}
	return out
}

// Tail returns up to n of the most recent values, oldest first.
func (r *Floats) Tail(n int) []float64 {
	s := r.Slice()
	if len(s) > n {
		s = s[len(s)-n:]
	}
	return s
}

// Clear empties the ring.
func (r *Floats) Clear() {
	r.pos = 0
	r.full = false
}

// Quats is a fixed-capacity ring buffer of quaternions.
type Quats struct {
	data []quat.Quaternion
	pos  int
	full bool
}

// NewQuats creates a Quats ring with the given capacity.
func NewQuats(capacity int) *Quats {
	return &Quats{data: make([]quat.Quaternion, capacity)}
}

// Push appends q, overwriting the oldest value once the ring is full.
func (r *Quats) Push(q quat.Quaternion) {
	r.data[r.pos] = q
	r.pos++
	if r.pos >= len(r.data) {
		r.pos = 0
		r.full = true
	}
}

// Len returns the number of stored quaternions.
func (r *Quats) Len() int {
	if r.full {
		return len(r.data)
	}
	return r.pos
}

// Slice returns the stored quaternions in insertion order, oldest first.
func (r *Quats) Slice() []quat.Quaternion {
	n := r.Len()
	out := make([]quat.Quaternion, n)
	if r.full {
		copy(out, r.data[r.pos:])
		copy(out[len(r.data)-r.pos:], r.data[:r.pos])
	} else {
		copy(out, r.data[:r.pos])
	}
	return out
}

// Tail returns up to n of the most recent quaternions, oldest first.
func (r *Quats) Tail(n int) []quat.Quaternion {
	s := r.Slice()
	if len(s) > n {
		s = s[len(s)-n:]
	}
	return s
}

// Last returns the most recently pushed quaternion. ok is false when the
// ring is empty.
func (r *Quats) Last() (q quat.Quaternion, ok bool) {
	if r.Len() == 0 {
		return quat.Quaternion{}, false
	}
	idx := r.pos - 1
	if idx < 0 {
		idx = len(r.data) - 1
	}
	return r.data[idx], true
}

// Clear empties the ring.
func (r *Quats) Clear() {
	r.pos = 0
	r.full = false
}
