package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// SimPayload is the wire shape published by classroom nodes.
type SimPayload struct {
	Temp float64 `json:"temp"`
	Hum  float64 `json:"hum"`
	Lux  int     `json:"lux,omitempty"`
}

// GenerateReading returns a plausible classroom sample. A warm drift makes
// the hot label appear during longer runs.
func GenerateReading(rng *rand.Rand, step int) SimPayload {
	drift := float64(step%120) / 20
	return SimPayload{
		Temp: round1(23 + drift + rng.Float64()*4),
		Hum:  round1(45 + rng.Float64()*30),
		Lux:  150 + rng.Intn(350),
	}
}

func round1(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}

// Simulator publishes synthetic readings to the telemetry topic.
type Simulator struct {
	cfg      Config
	interval time.Duration
	client   mqtt.Client
	rng      *rand.Rand
}

// NewSimulator connects a publishing client to the broker.
func NewSimulator(cfg Config, interval time.Duration) (*Simulator, error) {
	opts := mqtt.NewClientOptions().AddBroker(cfg.URL())
	opts.SetClientID("classmon-sim-" + uuid.NewString())
	opts.SetConnectTimeout(connectTimeout)

	c := mqtt.NewClient(opts)
	token := c.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("mqtt connect to %s: timeout", cfg.URL())
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", cfg.URL(), err)
	}

	return &Simulator{
		cfg:      cfg,
		interval: interval,
		client:   c,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// Run publishes one reading per interval until ctx is cancelled.
func (s *Simulator) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	defer s.client.Disconnect(quiesceMillis)

	for step := 0; ; step++ {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			reading := GenerateReading(s.rng, step)
			payload, err := json.Marshal(reading)
			if err != nil {
				return fmt.Errorf("marshal reading: %w", err)
			}

			token := s.client.Publish(s.cfg.Topic, s.cfg.QoS, false, payload)
			if !token.WaitTimeout(2 * time.Second) {
				slog.Warn("publish timeout", "topic", s.cfg.Topic)
				continue
			}
			if err := token.Error(); err != nil {
				slog.Error("failed to publish reading", "topic", s.cfg.Topic, "error", err)
				continue
			}
			slog.Info("published", "topic", s.cfg.Topic, "payload", string(payload))
		}
	}
}
