package feed

import (
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/luki/classmon/internal/queue"
	"github.com/luki/classmon/internal/sensor"
)

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 0 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 0 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

type panickingSink struct{}

func (panickingSink) Push(sensor.Reading) { panic("sink closed") }

func TestHandleMessage(t *testing.T) {
	q := queue.New()
	s := NewSubscriber(Config{Broker: "localhost", Port: 1883, Topic: "kelas/data"}, q)

	s.handleMessage(nil, fakeMessage{"kelas/data", []byte(`{"temp": 31.0, "hum": 40.0}`)})

	r, ok := q.TryPop()
	if !ok {
		t.Fatal("expected a queued reading")
	}
	if r != (sensor.Reading{Temperature: 31, Humidity: 40}) {
		t.Errorf("got %+v", r)
	}
}

func TestHandleMessageSurvivesMalformed(t *testing.T) {
	q := queue.New()
	s := NewSubscriber(Config{Topic: "kelas/data"}, q)

	const n = 25
	bad := [][]byte{[]byte(`{`), []byte(`null`), []byte(`[]`), {0xff}, []byte(`{"hum": "wet"}`)}
	for i := 0; i < n; i++ {
		s.handleMessage(nil, fakeMessage{"kelas/data", bad[i%len(bad)]})
	}
	if !q.Empty() {
		t.Fatalf("malformed payloads must not enqueue, queue has %d", q.Len())
	}

	s.handleMessage(nil, fakeMessage{"kelas/data", []byte(`{"temp": 22, "hum": 60, "lux": 300}`)})
	if q.Len() != 1 {
		t.Fatalf("subscriber stopped handling after malformed input, queue has %d", q.Len())
	}

	received, dropped := s.Counts()
	if received != n+1 || dropped != n {
		t.Errorf("Counts: received=%d dropped=%d, want %d/%d", received, dropped, n+1, n)
	}
}

func TestHandleMessageRecoversSinkPanic(t *testing.T) {
	s := NewSubscriber(Config{Topic: "kelas/data"}, panickingSink{})
	s.handleMessage(nil, fakeMessage{"kelas/data", []byte(`{"temp": 1}`)})

	if _, dropped := s.Counts(); dropped != 1 {
		t.Errorf("dropped: got %d, want 1", dropped)
	}
}

func TestNilSubscriber(t *testing.T) {
	var s *Subscriber
	if s.Connected() {
		t.Error("nil subscriber reports connected")
	}
	s.Close()
}

func TestConfigURL(t *testing.T) {
	c := Config{Broker: "broker.hivemq.com", Port: 1883}
	if got := c.URL(); got != "tcp://broker.hivemq.com:1883" {
		t.Errorf("URL: got %q", got)
	}
}

func TestGenerateReadingDecodes(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for step := 0; step < 50; step++ {
		p := GenerateReading(rng, step)
		b, err := json.Marshal(p)
		if err != nil {
			t.Fatal(err)
		}
		r, err := sensor.DecodePayload(b)
		if err != nil {
			t.Fatalf("step %d: %v", step, err)
		}
		if r.Temperature < 23 || r.Temperature > 33 || r.Light < 150 {
			t.Errorf("step %d: implausible reading %+v", step, r)
		}
	}
}
