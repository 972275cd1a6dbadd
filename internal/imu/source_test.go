package imu

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockSourceReadings(t *testing.T) {
	src := NewMockSource()

	r1, err := src.Next()
	require.NoError(t, err)
	r2, err := src.Next()
	require.NoError(t, err)

	// The mock's acceleration is a pure gravity direction, so its magnitude
	// is exactly 1 g regardless of the swept tilt.
	for _, r := range []Reading{r1, r2} {
		norm := math.Sqrt(r.Accel[0]*r.Accel[0] + r.Accel[1]*r.Accel[1] + r.Accel[2]*r.Accel[2])
		assert.InDelta(t, 1.0, norm, 1e-9)
	}

	assert.NotZero(t, r1.Timestamp)
	assert.GreaterOrEqual(t, r2.Timestamp, r1.Timestamp)
}

func TestMockSourceGyroBounded(t *testing.T) {
	src := NewMockSource()

	for i := 0; i < 10; i++ {
		r, err := src.Next()
		require.NoError(t, err)
		for axis, v := range r.Gyro {
			assert.LessOrEqual(t, math.Abs(v), 0.5, "gyro axis %d", axis)
		}
	}
}
