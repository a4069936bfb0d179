package ingest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/luki/classmon/internal/classifier"
	"github.com/luki/classmon/internal/queue"
	"github.com/luki/classmon/internal/sensor"
	"github.com/luki/classmon/internal/store"
)

type memSink struct {
	records []sensor.LogRecord
	failOn  map[int]bool
}

func (m *memSink) Append(rec sensor.LogRecord) error {
	n := len(m.records)
	m.records = append(m.records, rec)
	if m.failOn[n] {
		return errors.New("disk full")
	}
	return nil
}

type labelFunc func(t, h float64) string

func (f labelFunc) Classify(t, h float64) string { return f(t, h) }

type fixedPredictor string

func (f fixedPredictor) Predict([]float64) (string, error) { return string(f), nil }

type panickingPredictor struct{ calls *int }

func (p panickingPredictor) Predict(x []float64) (string, error) {
	*p.calls++
	if x[0] > 30 {
		panic("model exploded")
	}
	return "Nyaman", nil
}

func fixedClock() func() time.Time {
	t := time.Date(2026, 2, 21, 14, 0, 0, 0, time.Local)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func TestDrainPreservesOrder(t *testing.T) {
	q := queue.New()
	sink := &memSink{}
	p := New(q, classifier.New(fixedPredictor("Nyaman")), sink, WithClock(fixedClock()))

	for i := 0; i < 60; i++ {
		q.Push(sensor.Reading{Temperature: 20, Humidity: 50, Light: i})
	}

	batch := p.Drain()
	if batch.Err != nil {
		t.Fatalf("unexpected persistence error: %v", batch.Err)
	}
	if len(batch.Records) != 60 {
		t.Fatalf("expected 60 records in one drain, got %d", len(batch.Records))
	}
	for i, rec := range batch.Records {
		if rec.LuxIn != i {
			t.Fatalf("record %d: got lux %d, want %d", i, rec.LuxIn, i)
		}
		if sink.records[i].LuxIn != i {
			t.Fatalf("sink record %d: got lux %d, want %d", i, sink.records[i].LuxIn, i)
		}
	}
	if p.Series().Len() != 60 {
		t.Errorf("series: got %d records, want 60", p.Series().Len())
	}
	if !q.Empty() {
		t.Error("queue should be drained")
	}
	if got := p.Drain(); len(got.Records) != 0 {
		t.Errorf("second drain: got %d records, want 0", len(got.Records))
	}
}

func TestDrainHotScenario(t *testing.T) {
	q := queue.New()
	p := New(q, classifier.New(fixedPredictor(sensor.LabelHot)), &memSink{})

	r, err := sensor.DecodePayload([]byte(`{"temp": 31.0, "hum": 40.0}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	q.Push(r)

	batch := p.Drain()
	if len(batch.Records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(batch.Records))
	}
	rec := batch.Records[0]
	if rec.TempIn != 31.0 || rec.HumIn != 40.0 || rec.LuxIn != 0 || rec.Prediction != "Panas" {
		t.Errorf("got %+v", rec)
	}
	if rec.TempOut != DefaultFallbackTempOut {
		t.Errorf("TempOut: got %f, want fallback %f", rec.TempOut, DefaultFallbackTempOut)
	}
	if !sensor.IsHot(rec.Prediction) {
		t.Error("expected the high-temperature alert condition")
	}
}

func TestDrainMissingModel(t *testing.T) {
	q := queue.New()
	adapter := classifier.Load(filepath.Join(t.TempDir(), "model.json"))
	p := New(q, adapter, &memSink{})

	for _, tmp := range []float64{-5, 22, 31, 99} {
		q.Push(sensor.Reading{Temperature: tmp, Humidity: tmp})
	}
	for _, rec := range p.Drain().Records {
		if rec.Prediction != sensor.LabelNoModel {
			t.Errorf("temp %.0f: got %q, want %q", rec.TempIn, rec.Prediction, sensor.LabelNoModel)
		}
	}
}

func TestDrainClassifierFailureContinues(t *testing.T) {
	q := queue.New()
	calls := 0
	p := New(q, classifier.New(panickingPredictor{calls: &calls}), &memSink{})

	q.Push(sensor.Reading{Temperature: 25})
	q.Push(sensor.Reading{Temperature: 35})
	q.Push(sensor.Reading{Temperature: 26})

	recs := p.Drain().Records
	if len(recs) != 3 {
		t.Fatalf("expected 3 records, got %d", len(recs))
	}
	want := []string{"Nyaman", sensor.LabelError, "Nyaman"}
	for i, rec := range recs {
		if rec.Prediction != want[i] {
			t.Errorf("record %d: got %q, want %q", i, rec.Prediction, want[i])
		}
	}
	if calls != 3 {
		t.Errorf("classifier calls: got %d, want 3", calls)
	}
}

func TestDrainOutdoorTemperature(t *testing.T) {
	q := queue.New()
	p := New(q, labelFunc(func(float64, float64) string { return "Nyaman" }), &memSink{},
		WithFallbackTempOut(21.5))

	q.Push(sensor.Reading{})
	if got := p.Drain().Records[0].TempOut; got != 21.5 {
		t.Errorf("fallback: got %f, want 21.5", got)
	}

	p.SetOutdoor(28.3, true)
	q.Push(sensor.Reading{})
	if got := p.Drain().Records[0].TempOut; got != 28.3 {
		t.Errorf("cached: got %f, want 28.3", got)
	}

	p.SetOutdoor(0, false)
	if got := p.TempOut(); got != 21.5 {
		t.Errorf("cleared: got %f, want 21.5", got)
	}
}

func TestDrainPersistenceFailure(t *testing.T) {
	q := queue.New()
	sink := &memSink{failOn: map[int]bool{1: true}}
	p := New(q, labelFunc(func(float64, float64) string { return "Nyaman" }), sink)

	for i := 0; i < 3; i++ {
		q.Push(sensor.Reading{Light: i})
	}
	batch := p.Drain()
	if batch.Err == nil {
		t.Fatal("expected a persistence error")
	}
	if len(batch.Records) != 3 || p.Series().Len() != 3 {
		t.Errorf("records should still reach the series: batch=%d series=%d", len(batch.Records), p.Series().Len())
	}
	processed, failed, lastErr := p.Stats()
	if processed != 3 || failed != 1 || lastErr == nil {
		t.Errorf("Stats: processed=%d failed=%d err=%v", processed, failed, lastErr)
	}
}

func TestDrainWritesCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "live_data_dashboard.csv")
	q := queue.New()
	p := New(q, classifier.New(fixedPredictor("Nyaman")), store.NewLog(path))

	for i := 0; i < 4; i++ {
		q.Push(sensor.Reading{Temperature: 24, Humidity: 60, Light: i})
	}
	p.Drain()

	recs, err := store.LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(recs) != 4 {
		t.Fatalf("expected 4 persisted records, got %d", len(recs))
	}
	for i, rec := range recs {
		if rec.LuxIn != i {
			t.Errorf("row %d: got lux %d", i, rec.LuxIn)
		}
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("log file missing: %v", err)
	}
}
