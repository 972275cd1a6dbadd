package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/yuk1kaza/quaternion-3Dvisualizer/internal/config"
	"github.com/yuk1kaza/quaternion-3Dvisualizer/internal/filter"
	"github.com/yuk1kaza/quaternion-3Dvisualizer/internal/imu"
	"github.com/yuk1kaza/quaternion-3Dvisualizer/internal/quat"
)

// RunIMUProducer samples the on-board MPU-9250 (or a mock source), runs the
// full gyro+accel fusion path through the filter and publishes the filtered
// orientation over MQTT, same topics as the serial producer.
func RunIMUProducer(cfg *config.Config, useMock bool) error {
	var src imu.Source
	if useMock {
		log.Info("imu-producer: using mock source")
		src = imu.NewMockSource()
	} else {
		var err error
		src, err = imu.NewMPU9250(cfg.IMU.SPIDevice, cfg.IMU.CSPin)
		if err != nil {
			return err
		}
		log.Infof("imu-producer: MPU-9250 on %s (CS %s)", cfg.IMU.SPIDevice, cfg.IMU.CSPin)
	}

	client, err := connectMQTT(cfg.MQTT.Broker, cfg.MQTT.ClientIDProducer)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	f := filter.New(policyFromConfig(cfg.Filter))

	ticker := time.NewTicker(time.Duration(cfg.IMU.SampleIntervalMs) * time.Millisecond)
	defer ticker.Stop()

	var lastTs float64
	for {
		select {
		case <-ctx.Done():
			log.Infof("imu-producer: shutting down after %d samples", f.Stats().Samples)
			return nil
		case <-ticker.C:
			r, err := src.Next()
			if err != nil {
				log.Warnf("imu-producer: read error: %v", err)
				continue
			}

			dt := float64(cfg.IMU.SampleIntervalMs) / 1000
			if lastTs > 0 && r.Timestamp > lastTs {
				dt = r.Timestamp - lastTs
			}
			lastTs = r.Timestamp

			raw := quat.FromAccel(r.Accel[0], r.Accel[1], r.Accel[2])
			fused := f.Update(raw, filter.Inertial{Gyro: &r.Gyro, Accel: &r.Accel}, dt)

			publish(client, cfg.MQTT.TopicSample, quat.NewSample(fused, raw, r.Timestamp))
		}
	}
}
