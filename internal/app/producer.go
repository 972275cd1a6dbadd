// Package app wires the library packages into the runnable roles: the
// serial producer, the on-board IMU producer, the console subscriber and
// the web subscriber.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/yuk1kaza/quaternion-3Dvisualizer/internal/config"
	"github.com/yuk1kaza/quaternion-3Dvisualizer/internal/decode"
	"github.com/yuk1kaza/quaternion-3Dvisualizer/internal/filter"
	"github.com/yuk1kaza/quaternion-3Dvisualizer/internal/pipeline"
	"github.com/yuk1kaza/quaternion-3Dvisualizer/internal/serialport"
)

// rateInterval is how often the producer publishes a rate estimate.
const rateInterval = 2 * time.Second

func policyFromConfig(fc config.FilterOpt) filter.WeightPolicy {
	if fc.Adaptive {
		return filter.NewAdaptiveWeights(fc.AlphaMin, fc.AlphaMax, fc.GyroMin, fc.GyroMax)
	}
	return filter.FixedWeights{Alpha: fc.Alpha, GyroWeight: fc.GyroWeight}
}

func connectMQTT(broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", broker, token.Error())
	}
	log.Infof("connected to MQTT broker at %s", broker)
	return client, nil
}

func publish(client mqtt.Client, topic string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		log.Warnf("marshal for %s: %v", topic, err)
		return
	}
	if token := client.Publish(topic, 0, true, payload); token.Wait() && token.Error() != nil {
		log.Warnf("publish to %s: %v", topic, token.Error())
	}
}

// RunProducer reads the configured serial port, runs the decode/filter
// pipeline and publishes every sample plus periodic rate estimates over
// MQTT. It returns on SIGINT/SIGTERM or when the serial stream ends.
func RunProducer(cfg *config.Config) error {
	format, err := decode.ParseFormat(cfg.Decode.Format)
	if err != nil {
		return err
	}

	ch, err := serialport.Open(serialport.Options{
		Port:                    cfg.Serial.Port,
		BaudRate:                cfg.Serial.Baud,
		DataBits:                cfg.Serial.DataBits,
		StopBits:                cfg.Serial.StopBits,
		Parity:                  cfg.Serial.Parity,
		RTSCTSFlowControl:       cfg.Serial.RTSCTS,
		InterCharacterTimeoutMs: cfg.Serial.TimeoutMs,
	})
	if err != nil {
		return err
	}
	defer ch.Close()

	client, err := connectMQTT(cfg.MQTT.Broker, cfg.MQTT.ClientIDProducer)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	ch.Start(ctx)
	p := pipeline.New(ch, format, policyFromConfig(cfg.Filter))
	go p.Run(ctx)

	log.Infof("producer: %s format on %s, publishing to %s",
		format, cfg.Serial.Port, cfg.MQTT.TopicSample)

	ticker := time.NewTicker(rateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("producer: shutting down")
			stats := p.Stats()
			log.Infof("producer: %d valid / %d invalid packets, %d dropped samples",
				stats.Decoder.Valid, stats.Decoder.Invalid, stats.Dropped)
			return nil
		case s, ok := <-p.Samples():
			if !ok {
				log.Info("producer: sample stream ended")
				return nil
			}
			publish(client, cfg.MQTT.TopicSample, s)
		case <-ticker.C:
			est := p.RateEstimate(float64(time.Now().UnixNano()) / 1e9)
			publish(client, cfg.MQTT.TopicRate, est)
		}
	}
}
