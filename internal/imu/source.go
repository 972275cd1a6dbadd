// Package imu provides inertial sample sources for the filter's sensor
// fusion path: a real MPU-9250 over SPI and a mock for development off the
// target hardware.
package imu

import (
	"fmt"
	"math"
	"time"

	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/devices/v3/mpu9250"
	"periph.io/x/host/v3"
)

// Scale factors for the default sensor ranges: ±250 °/s gyro and ±2 g
// accelerometer.
const (
	gyroLSBPerDps = 131.0
	accelLSBPerG  = 16384.0
	degToRad      = math.Pi / 180
)

// Reading is one inertial sample: angular rate in rad/s and specific force
// in g, plus the read timestamp in unix seconds.
type Reading struct {
	Gyro      [3]float64 `json:"gyro"`
	Accel     [3]float64 `json:"accel"`
	Timestamp float64    `json:"timestamp"`
}

// Source yields inertial readings one at a time.
type Source interface {
	Next() (Reading, error)
}

type mpuSource struct {
	imu *mpu9250.MPU9250
}

// NewMPU9250 initializes an MPU-9250 on the given SPI device with the given
// chip-select pin and returns it as a Source.
func NewMPU9250(spiDev, csPin string) (Source, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}

	cs := gpioreg.ByName(csPin)
	if cs == nil {
		return nil, fmt.Errorf("CS pin %q not found", csPin)
	}

	tr, err := mpu9250.NewSpiTransport(spiDev, cs)
	if err != nil {
		return nil, fmt.Errorf("SPI transport (%s): %w", spiDev, err)
	}

	dev, err := mpu9250.New(tr)
	if err != nil {
		return nil, fmt.Errorf("mpu9250 device: %w", err)
	}
	if err := dev.Init(); err != nil {
		return nil, fmt.Errorf("mpu9250 init: %w", err)
	}

	if err := dev.Calibrate(); err != nil {
		log.Warnf("imu: calibration failed, continuing uncalibrated: %v", err)
	} else {
		log.Info("imu: calibration complete")
	}

	return &mpuSource{imu: dev}, nil
}

// Next reads one gyro+accel sample and scales it to physical units.
func (s *mpuSource) Next() (Reading, error) {
	gx, err := s.imu.GetRotationX()
	if err != nil {
		return Reading{}, fmt.Errorf("gyro X: %w", err)
	}
	gy, err := s.imu.GetRotationY()
	if err != nil {
		return Reading{}, fmt.Errorf("gyro Y: %w", err)
	}
	gz, err := s.imu.GetRotationZ()
	if err != nil {
		return Reading{}, fmt.Errorf("gyro Z: %w", err)
	}

	ax, err := s.imu.GetAccelerationX()
	if err != nil {
		return Reading{}, fmt.Errorf("accel X: %w", err)
	}
	ay, err := s.imu.GetAccelerationY()
	if err != nil {
		return Reading{}, fmt.Errorf("accel Y: %w", err)
	}
	az, err := s.imu.GetAccelerationZ()
	if err != nil {
		return Reading{}, fmt.Errorf("accel Z: %w", err)
	}

	return Reading{
		Gyro: [3]float64{
			float64(gx) / gyroLSBPerDps * degToRad,
			float64(gy) / gyroLSBPerDps * degToRad,
			float64(gz) / gyroLSBPerDps * degToRad,
		},
		Accel: [3]float64{
			float64(ax) / accelLSBPerG,
			float64(ay) / accelLSBPerG,
			float64(az) / accelLSBPerG,
		},
		Timestamp: float64(time.Now().UnixNano()) / 1e9,
	}, nil
}
