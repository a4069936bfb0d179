// Package feed connects to the classroom MQTT broker. Subscriber decodes
// inbound telemetry and pushes it onto the ingestion queue; Simulator
// publishes synthetic telemetry for demos.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/luki/classmon/internal/sensor"
)

const (
	connectTimeout   = 10 * time.Second
	subscribeTimeout = 5 * time.Second
	keepAlive        = 60 * time.Second
	quiesceMillis    = 250
)

// Config addresses one topic on one broker.
type Config struct {
	Broker string // host, e.g. "broker.hivemq.com"
	Port   int
	Topic  string
	QoS    byte
}

// URL returns the broker address in paho's scheme://host:port form.
func (c Config) URL() string {
	return fmt.Sprintf("tcp://%s:%d", c.Broker, c.Port)
}

// Sink receives decoded readings. *queue.Queue satisfies it.
type Sink interface {
	Push(r sensor.Reading)
}

// Subscriber owns the MQTT connection for the telemetry topic.
type Subscriber struct {
	cfg    Config
	sink   Sink
	client mqtt.Client

	mu        sync.RWMutex
	connected bool

	received atomic.Uint64
	dropped  atomic.Uint64
}

// NewSubscriber prepares a subscriber; call Connect to start receiving.
func NewSubscriber(cfg Config, sink Sink) *Subscriber {
	return &Subscriber{cfg: cfg, sink: sink}
}

// Connect establishes the broker connection and subscribes to the topic.
// Messages are handled on paho's goroutines until Close.
func (s *Subscriber) Connect(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(s.cfg.URL())
	opts.SetClientID("classmon-" + uuid.NewString())
	opts.SetKeepAlive(keepAlive)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetCleanSession(true)

	opts.OnConnect = func(c mqtt.Client) {
		s.setConnected(true)
		slog.Info("mqtt connection established", "broker", s.cfg.URL())

		// Resubscribe after an automatic reconnect; clean sessions drop it.
		token := c.Subscribe(s.cfg.Topic, s.cfg.QoS, s.handleMessage)
		if !token.WaitTimeout(subscribeTimeout) {
			slog.Error("mqtt subscribe timeout", "topic", s.cfg.Topic)
			return
		}
		if err := token.Error(); err != nil {
			slog.Error("mqtt subscribe failed", "topic", s.cfg.Topic, "error", err)
			return
		}
		slog.Info("subscribed", "topic", s.cfg.Topic)
	}

	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		s.setConnected(false)
		slog.Warn("mqtt connection lost, will auto-reconnect", "broker", s.cfg.URL(), "error", err)
	}

	s.client = mqtt.NewClient(opts)

	slog.Info("connecting to mqtt broker", "broker", s.cfg.URL(), "topic", s.cfg.Topic)

	token := s.client.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("mqtt connect: %w", ctx.Err())
	case <-time.After(connectTimeout):
		return fmt.Errorf("mqtt connect to %s: timeout", s.cfg.URL())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect to %s: %w", s.cfg.URL(), err)
	}

	return nil
}

// handleMessage runs on a paho goroutine. A bad payload is logged and
// dropped; nothing here may take the subscriber down.
func (s *Subscriber) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	s.received.Add(1)

	defer func() {
		if r := recover(); r != nil {
			s.dropped.Add(1)
			slog.Error("panic while handling mqtt message", "topic", msg.Topic(), "panic", r)
		}
	}()

	payload := msg.Payload()
	slog.Debug("mqtt message", "topic", msg.Topic(), "payload", string(payload))

	r, err := sensor.DecodePayload(payload)
	if err != nil {
		s.dropped.Add(1)
		slog.Error("failed to parse mqtt payload", "topic", msg.Topic(), "error", err)
		return
	}

	s.sink.Push(r)
}

func (s *Subscriber) setConnected(v bool) {
	s.mu.Lock()
	s.connected = v
	s.mu.Unlock()
}

// Connected reports whether the broker connection is currently up.
func (s *Subscriber) Connected() bool {
	if s == nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// Broker returns the configured broker address.
func (s *Subscriber) Broker() string {
	return s.cfg.URL()
}

// Counts returns the number of messages received and dropped as malformed.
func (s *Subscriber) Counts() (received, dropped uint64) {
	if s == nil {
		return 0, 0
	}
	return s.received.Load(), s.dropped.Load()
}

// Close disconnects from the broker.
func (s *Subscriber) Close() {
	if s == nil || s.client == nil {
		return
	}
	s.client.Disconnect(quiesceMillis)
	s.setConnected(false)
	slog.Info("mqtt disconnected", "broker", s.cfg.URL())
}
