package app

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/yuk1kaza/quaternion-3Dvisualizer/internal/config"
	"github.com/yuk1kaza/quaternion-3Dvisualizer/internal/interp"
	"github.com/yuk1kaza/quaternion-3Dvisualizer/internal/quat"
	"github.com/yuk1kaza/quaternion-3Dvisualizer/internal/rate"
)

// Render cadence used until the first rate estimate arrives.
const fallbackRenderRate = 50.0

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// webState holds the latest sample and rate estimate shared between the
// MQTT callbacks and the HTTP handlers.
type webState struct {
	mu         sync.RWMutex
	sample     quat.Sample
	haveSample bool
	est        rate.Estimate
}

func (s *webState) setSample(v quat.Sample) {
	s.mu.Lock()
	s.sample = v
	s.haveSample = true
	s.mu.Unlock()
}

func (s *webState) setRate(v rate.Estimate) {
	s.mu.Lock()
	s.est = v
	s.mu.Unlock()
}

func (s *webState) latest() (quat.Sample, bool, rate.Estimate) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sample, s.haveSample, s.est
}

// wsFrame is one interpolated display update pushed to the browser.
type wsFrame struct {
	Quaternion quat.Quaternion `json:"quaternion"`
	EulerDeg   quat.Euler      `json:"euler_deg"`
	Timestamp  float64         `json:"timestamp"`
}

// RunWeb subscribes to the sample and rate topics and serves them over
// HTTP: JSON snapshots on /api/orientation and /api/rate, and a websocket
// on /ws that pushes display frames interpolated at the recommended factor.
func RunWeb(cfg *config.Config) error {
	state := &webState{est: rate.Estimate{InterpolationFactor: 0.25}}

	client, err := connectMQTT(cfg.MQTT.Broker, cfg.MQTT.ClientIDWeb)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	sampleToken := client.Subscribe(cfg.MQTT.TopicSample, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var s quat.Sample
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			log.Warnf("web: sample unmarshal error: %v", err)
			return
		}
		state.setSample(s)
	})
	sampleToken.Wait()
	if sampleToken.Error() != nil {
		return sampleToken.Error()
	}

	rateToken := client.Subscribe(cfg.MQTT.TopicRate, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var est rate.Estimate
		if err := json.Unmarshal(msg.Payload(), &est); err != nil {
			log.Warnf("web: rate unmarshal error: %v", err)
			return
		}
		state.setRate(est)
	})
	rateToken.Wait()
	if rateToken.Error() != nil {
		return rateToken.Error()
	}
	log.Infof("web: subscribed to %s and %s", cfg.MQTT.TopicSample, cfg.MQTT.TopicRate)

	mux := http.NewServeMux()

	mux.HandleFunc("/api/orientation", func(w http.ResponseWriter, r *http.Request) {
		sample, ok, _ := state.latest()
		if !ok {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(sample); err != nil {
			log.Warnf("web: encode error: %v", err)
		}
	})

	mux.HandleFunc("/api/rate", func(w http.ResponseWriter, r *http.Request) {
		_, _, est := state.latest()
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(est); err != nil {
			log.Warnf("web: encode error: %v", err)
		}
	})

	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warnf("web: websocket upgrade error: %v", err)
			return
		}
		go serveWS(conn, state)
	})

	mux.Handle("/", http.FileServer(http.Dir("web")))

	log.Infof("web server listening on %s", cfg.Web.Addr)
	return http.ListenAndServe(cfg.Web.Addr, mux)
}

// serveWS pushes interpolated frames to one websocket client. The render
// ticker follows the published target rate; the stepper eases the displayed
// orientation toward the latest sample by the recommended factor.
func serveWS(conn *websocket.Conn, state *webState) {
	defer conn.Close()

	// Reader goroutine: discard client messages, detect close.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	var stepper interp.Stepper
	renderRate := fallbackRenderRate
	ticker := time.NewTicker(time.Duration(float64(time.Second) / renderRate))
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			sample, ok, est := state.latest()
			if !ok {
				continue
			}

			if est.TargetRenderRateHz > 0 && est.TargetRenderRateHz != renderRate {
				renderRate = est.TargetRenderRateHz
				ticker.Reset(time.Duration(float64(time.Second) / renderRate))
			}

			display := stepper.Step(sample.Quaternion, est.InterpolationFactor)
			frame := wsFrame{
				Quaternion: display,
				EulerDeg:   display.ToEuler().Degrees(),
				Timestamp:  sample.Timestamp,
			}
			if err := conn.WriteJSON(frame); err != nil {
				log.Debugf("web: websocket write error: %v", err)
				return
			}
		}
	}
}
