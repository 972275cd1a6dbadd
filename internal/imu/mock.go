package imu

import (
	"math"
	"time"
)

type mockSource struct {
	start time.Time
}

// NewMockSource creates a source that sweeps a smooth tilt motion, for
// development without the sensor attached.
func NewMockSource() Source {
	return &mockSource{start: time.Now()}
}

func (m *mockSource) Next() (Reading, error) {
	elapsed := time.Since(m.start).Seconds()

	roll := 0.3 * math.Sin(elapsed)
	pitch := 0.2 * math.Cos(elapsed*0.7)

	return Reading{
		Gyro: [3]float64{
			0.3 * math.Cos(elapsed),
			-0.14 * math.Sin(elapsed*0.7),
			0,
		},
		Accel: [3]float64{
			-math.Sin(pitch),
			math.Sin(roll) * math.Cos(pitch),
			math.Cos(roll) * math.Cos(pitch),
		},
		Timestamp: float64(time.Now().UnixNano()) / 1e9,
	}, nil
}
