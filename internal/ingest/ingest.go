// Package ingest turns queued readings into classified, persisted log
// records. It is the drain half of the render loop; the monitor package
// calls Drain once per tick and then redraws.
package ingest

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/luki/classmon/internal/history"
	"github.com/luki/classmon/internal/sensor"
)

// DefaultFallbackTempOut is used when no outdoor temperature is cached.
const DefaultFallbackTempOut = 25.0

// Source yields every reading waiting since the last call, oldest first.
type Source interface {
	DrainAll() []sensor.Reading
}

// Classifier labels a temperature/humidity pair. Implementations must not
// fail; they substitute sentinel labels instead.
type Classifier interface {
	Classify(temperature, humidity float64) string
}

// Sink durably stores one record.
type Sink interface {
	Append(rec sensor.LogRecord) error
}

// Batch is the outcome of one drain pass.
type Batch struct {
	Records []sensor.LogRecord
	Err     error // joined persistence errors, nil when every append succeeded
}

// Processor owns the session series. It must only be used from the render
// loop goroutine.
type Processor struct {
	source     Source
	classifier Classifier
	sink       Sink
	series     *history.Series
	fallback   float64
	now        func() time.Time

	outdoor    float64
	hasOutdoor bool

	processed      int
	persistFailed  int
	lastPersistErr error
}

// Option configures a Processor.
type Option func(*Processor)

// WithFallbackTempOut overrides the outdoor temperature used when the
// weather cache is empty.
func WithFallbackTempOut(v float64) Option {
	return func(p *Processor) { p.fallback = v }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Processor) { p.now = now }
}

// New creates a processor with an empty series.
func New(source Source, classifier Classifier, sink Sink, opts ...Option) *Processor {
	p := &Processor{
		source:     source,
		classifier: classifier,
		sink:       sink,
		series:     history.NewSeries(),
		fallback:   DefaultFallbackTempOut,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SetOutdoor records the last known outdoor temperature. ok=false clears
// it so the fallback is used.
func (p *Processor) SetOutdoor(temp float64, ok bool) {
	p.outdoor, p.hasOutdoor = temp, ok
}

// TempOut returns the outdoor temperature that the next record will carry.
func (p *Processor) TempOut() float64 {
	if p.hasOutdoor {
		return p.outdoor
	}
	return p.fallback
}

// Series returns the session series.
func (p *Processor) Series() *history.Series {
	return p.series
}

// Drain processes every waiting reading in arrival order: stamp, pair with
// the outdoor temperature, classify, persist, append to the series.
// A persistence failure is reported in the batch but does not stop the
// pass, and the record still enters the series.
func (p *Processor) Drain() Batch {
	readings := p.source.DrainAll()
	if len(readings) == 0 {
		return Batch{}
	}

	tempOut := p.TempOut()
	batch := Batch{Records: make([]sensor.LogRecord, 0, len(readings))}
	var errs []error

	for _, r := range readings {
		label := sensor.LabelNoModel
		if p.classifier != nil {
			label = p.classifier.Classify(r.Temperature, r.Humidity)
		}
		rec := sensor.NewLogRecord(r, p.now(), tempOut, label)

		if p.sink != nil {
			if err := p.sink.Append(rec); err != nil {
				p.persistFailed++
				p.lastPersistErr = err
				errs = append(errs, fmt.Errorf("persist %s: %w", rec.Timestamp, err))
				slog.Error("failed to persist record", "timestamp", rec.Timestamp, "error", err)
			}
		}

		p.series.Append(rec)
		batch.Records = append(batch.Records, rec)
	}

	p.processed += len(batch.Records)
	batch.Err = errors.Join(errs...)

	slog.Debug("drained queue", "records", len(batch.Records), "temp_out", tempOut)
	return batch
}

// Stats reports lifetime counters.
func (p *Processor) Stats() (processed, persistFailed int, lastErr error) {
	return p.processed, p.persistFailed, p.lastPersistErr
}
