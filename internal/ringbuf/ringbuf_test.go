package ringbuf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuk1kaza/quaternion-3Dvisualizer/internal/quat"
)

func TestFloatsBelowCapacity(t *testing.T) {
	r := NewFloats(4)
	r.Push(1)
	r.Push(2)

	assert.Equal(t, 2, r.Len())
	assert.Equal(t, []float64{1, 2}, r.Slice())
}

func TestFloatsWraparoundOrder(t *testing.T) {
	r := NewFloats(3)
	for _, v := range []float64{1, 2, 3, 4, 5} {
		r.Push(v)
	}

	assert.Equal(t, 3, r.Len())
	assert.Equal(t, []float64{3, 4, 5}, r.Slice())
}

func TestFloatsTail(t *testing.T) {
	r := NewFloats(5)
	for _, v := range []float64{1, 2, 3, 4} {
		r.Push(v)
	}

	assert.Equal(t, []float64{3, 4}, r.Tail(2))
	assert.Equal(t, []float64{1, 2, 3, 4}, r.Tail(10))
}

func TestFloatsClear(t *testing.T) {
	r := NewFloats(2)
	r.Push(1)
	r.Push(2)
	r.Push(3)
	r.Clear()

	assert.Equal(t, 0, r.Len())
	assert.Empty(t, r.Slice())
}

func TestQuatsLastAndWraparound(t *testing.T) {
	r := NewQuats(2)

	_, ok := r.Last()
	assert.False(t, ok)

	a := quat.FromEuler(quat.Euler{Yaw: 0.1})
	b := quat.FromEuler(quat.Euler{Yaw: 0.2})
	c := quat.FromEuler(quat.Euler{Yaw: 0.3})
	r.Push(a)
	r.Push(b)
	r.Push(c)

	last, ok := r.Last()
	require.True(t, ok)
	assert.Equal(t, c, last)
	assert.Equal(t, []quat.Quaternion{b, c}, r.Slice())
}
