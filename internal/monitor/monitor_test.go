package monitor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/luki/classmon/internal/classifier"
	"github.com/luki/classmon/internal/dashboard"
	"github.com/luki/classmon/internal/ingest"
	"github.com/luki/classmon/internal/queue"
	"github.com/luki/classmon/internal/sensor"
	"github.com/luki/classmon/internal/weather"
)

type labelFunc func(t, h float64) string

func (f labelFunc) Classify(t, h float64) string { return f(t, h) }

type failingSink struct{}

func (failingSink) Append(sensor.LogRecord) error { return errors.New("disk full") }

type connectedFeed struct{}

func (connectedFeed) Connected() bool                    { return true }
func (connectedFeed) Counts() (received, dropped uint64) { return 3, 1 }

type staticWeather struct {
	cond weather.Conditions
	ok   bool
}

func (s staticWeather) Fetch(context.Context) (weather.Conditions, bool) { return s.cond, s.ok }

func newTestModel(t *testing.T, q *queue.Queue, c ingest.Classifier, sink ingest.Sink) (Model, *dashboard.Publisher) {
	t.Helper()
	clock := time.Date(2026, 2, 21, 9, 0, 0, 0, time.Local)
	now := func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	pub := dashboard.NewPublisher()
	m := New(Options{
		Processor: ingest.New(q, c, sink, ingest.WithClock(now)),
		Feed:      connectedFeed{},
		Publisher: pub,
		Topic:     "kelas/data",
		Broker:    "tcp://broker.hivemq.com:1883",
		LogPath:   "live_data_dashboard.csv",
		Clock:     now,
	})
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 180, Height: 400})
	return updated.(Model), pub
}

func tick(t *testing.T, m Model) Model {
	t.Helper()
	updated, cmd := m.Update(tickMsg(time.Now()))
	if cmd == nil {
		t.Fatal("tick should reschedule itself")
	}
	return updated.(Model)
}

func TestWaitingFrame(t *testing.T) {
	m, pub := newTestModel(t, queue.New(), nil, nil)

	view := m.View()
	if !strings.Contains(view, "Waiting for sensor data on topic 'kelas/data'") {
		t.Errorf("missing waiting indicator:\n%s", view)
	}
	if f, ok := pub.Latest(); !ok || !f.Waiting {
		t.Errorf("expected a published waiting frame, got %+v (ok=%v)", f, ok)
	}
}

func TestTickDrainsAndRendersAlert(t *testing.T) {
	q := queue.New()
	hot := labelFunc(func(t, h float64) string {
		if t > 30 {
			return sensor.LabelHot
		}
		return "Nyaman"
	})
	m, pub := newTestModel(t, q, hot, nil)

	q.Push(sensor.Reading{Temperature: 31.0, Humidity: 40.0})
	m = tick(t, m)

	f := m.Frame()
	if f.Waiting || f.Records != 1 {
		t.Fatalf("expected one record, got %+v", f)
	}
	if f.Status != sensor.LabelHot || f.Alert == "" {
		t.Errorf("expected hot alert, got status=%q alert=%q", f.Status, f.Alert)
	}

	view := m.View()
	t.Logf("\n%s", view)
	for _, want := range []string{"PERINGATAN SUHU TINGGI", "Suhu Kelas", "Panas", "Data Terbaru (1)"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
	if latest, _ := pub.Latest(); latest.Records != 1 {
		t.Errorf("publisher should carry the new frame, got %d records", latest.Records)
	}
}

func TestBurstChartsCarryLastFifty(t *testing.T) {
	q := queue.New()
	m, _ := newTestModel(t, q, nil, nil)

	for i := 0; i < 60; i++ {
		q.Push(sensor.Reading{Temperature: float64(i), Humidity: 50, Light: i})
	}
	m = tick(t, m)

	f := m.Frame()
	if f.Records != 60 {
		t.Fatalf("expected 60 records after one tick, got %d", f.Records)
	}
	pts := f.TempChart.Series["Temp_In"]
	if len(pts) != dashboard.ChartWindow {
		t.Fatalf("chart has %d points, want %d", len(pts), dashboard.ChartWindow)
	}
	if pts[0].Value != 10 || pts[len(pts)-1].Value != 59 {
		t.Errorf("chart window = %v..%v, want 10..59", pts[0].Value, pts[len(pts)-1].Value)
	}
	if len(f.Preview) != dashboard.PreviewSize || f.Preview[0].TempIn != 59 {
		t.Errorf("preview should start with the newest record, got %+v", f.Preview)
	}
	if f.Latest.Prediction != sensor.LabelNoModel {
		t.Errorf("prediction without a classifier = %q", f.Latest.Prediction)
	}
}

func TestPauseHoldsQueue(t *testing.T) {
	q := queue.New()
	m, _ := newTestModel(t, q, nil, nil)

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("p")})
	m = updated.(Model)
	if !m.Paused() {
		t.Fatal("p should pause")
	}

	q.Push(sensor.Reading{Temperature: 25})
	m = tick(t, m)
	if q.Len() != 1 || !m.Frame().Waiting {
		t.Errorf("paused tick drained the queue (len=%d)", q.Len())
	}

	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("p")})
	m = tick(t, updated.(Model))
	if q.Len() != 0 || m.Frame().Records != 1 {
		t.Errorf("resumed tick should drain, len=%d records=%d", q.Len(), m.Frame().Records)
	}
}

func TestWakeDrainsEarly(t *testing.T) {
	q := queue.New()
	m, _ := newTestModel(t, q, nil, nil)

	q.Push(sensor.Reading{Temperature: 27})
	updated, cmd := m.Update(wakeMsg{})
	m = updated.(Model)
	if m.Frame().Records != 1 {
		t.Errorf("wake should drain, got %d records", m.Frame().Records)
	}
	if cmd != nil {
		t.Error("no wake channel configured, expected no follow-up command")
	}
}

func TestWeatherUpdatesOutdoorTemp(t *testing.T) {
	q := queue.New()
	m, _ := newTestModel(t, q, nil, nil)
	m.opts.Weather = staticWeather{}

	updated, _ := m.Update(weatherMsg{cond: weather.Conditions{Temperature: 29.5, Description: "cerah"}, ok: true})
	m = updated.(Model)
	q.Push(sensor.Reading{Temperature: 30})
	m = tick(t, m)
	if got := m.Frame().Latest.TempOut; got != 29.5 {
		t.Errorf("TempOut = %v, want 29.5", got)
	}

	updated, _ = m.Update(weatherMsg{ok: false})
	m = updated.(Model)
	q.Push(sensor.Reading{Temperature: 30})
	m = tick(t, m)
	if got := m.Frame().Latest.TempOut; got != ingest.DefaultFallbackTempOut {
		t.Errorf("TempOut after failure = %v, want fallback", got)
	}
	if !strings.Contains(m.View(), "Weather unavailable") {
		t.Error("expected weather banner")
	}
}

func TestBanners(t *testing.T) {
	q := queue.New()
	m, _ := newTestModel(t, q, nil, failingSink{})
	m.opts.Feed = nil
	m.opts.Model = classifier.StateMissing

	q.Push(sensor.Reading{Temperature: 24})
	m = tick(t, m)

	view := m.View()
	for _, want := range []string{"MQTT disconnected", "Model not found", "log write failed"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing banner %q", want)
		}
	}
	if m.Frame().Records != 1 {
		t.Error("a failed write must still reach the series")
	}
}

func TestQuit(t *testing.T) {
	m, _ := newTestModel(t, queue.New(), nil, nil)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("q should return a command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should quit")
	}
}

func TestFmtDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0m00s"},
		{90 * time.Second, "1m30s"},
		{2*time.Hour + 3*time.Minute + 4*time.Second, "2h03m04s"},
	}
	for _, tt := range tests {
		if got := fmtDuration(tt.in); got != tt.want {
			t.Errorf("fmtDuration(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
