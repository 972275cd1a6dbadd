package app

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/yuk1kaza/quaternion-3Dvisualizer/internal/config"
	"github.com/yuk1kaza/quaternion-3Dvisualizer/internal/quat"
	"github.com/yuk1kaza/quaternion-3Dvisualizer/internal/rate"
)

// RunConsole subscribes to the sample and rate topics and prints one line
// per message until interrupted.
func RunConsole(cfg *config.Config) error {
	client, err := connectMQTT(cfg.MQTT.Broker, cfg.MQTT.ClientIDConsole)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	sampleToken := client.Subscribe(cfg.MQTT.TopicSample, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var s quat.Sample
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			log.Warnf("console: sample unmarshal error: %v", err)
			return
		}
		fmt.Printf(
			"[POSE] ROLL=%7.2f PITCH=%7.2f YAW=%7.2f  q=(%.4f, %.4f, %.4f, %.4f)\n",
			s.EulerDeg.Roll, s.EulerDeg.Pitch, s.EulerDeg.Yaw,
			s.Quaternion.W, s.Quaternion.X, s.Quaternion.Y, s.Quaternion.Z,
		)
	})
	sampleToken.Wait()
	if sampleToken.Error() != nil {
		return sampleToken.Error()
	}
	log.Infof("console: subscribed to %s", cfg.MQTT.TopicSample)

	rateToken := client.Subscribe(cfg.MQTT.TopicRate, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var est rate.Estimate
		if err := json.Unmarshal(msg.Payload(), &est); err != nil {
			log.Warnf("console: rate unmarshal error: %v", err)
			return
		}
		fmt.Printf(
			"[RATE] detected=%6.1fHz render=%6.1fHz factor=%.2f\n",
			est.DetectedRateHz, est.TargetRenderRateHz, est.InterpolationFactor,
		)
	})
	rateToken.Wait()
	if rateToken.Error() != nil {
		return rateToken.Error()
	}
	log.Infof("console: subscribed to %s", cfg.MQTT.TopicRate)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("console: shutting down")
	return nil
}
