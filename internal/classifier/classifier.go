// Package classifier wraps the pretrained comfort model. The model itself
// is opaque to the rest of the program: it is resolved once at startup and
// every call goes through Adapter.Classify, which never fails.
package classifier

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/luki/classmon/internal/sensor"
)

// ErrNoModel is reported when no model artifact could be loaded.
var ErrNoModel = errors.New("no model loaded")

// Predictor is anything that maps a feature vector to a label.
type Predictor interface {
	Predict(features []float64) (string, error)
}

// State is the resolved state of the classifier handle.
type State int

const (
	StateLoaded State = iota
	StateMissing
	StateLoadError
)

func (s State) String() string {
	switch s {
	case StateLoaded:
		return "loaded"
	case StateMissing:
		return "missing"
	default:
		return "load error"
	}
}

// Adapter is the process-wide classifier handle.
type Adapter struct {
	model Predictor
	state State
	err   error
	path  string
}

// Load resolves the model artifact at path. It never fails: a missing file
// or an unreadable artifact produce an adapter in the matching state.
func Load(path string) *Adapter {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		slog.Warn("model artifact not found", "path", path)
		return &Adapter{state: StateMissing, err: ErrNoModel, path: path}
	}

	m, err := LoadKNN(path)
	if err != nil {
		slog.Error("failed to load model artifact", "path", path, "error", err)
		return &Adapter{state: StateLoadError, err: fmt.Errorf("load %s: %w", path, err), path: path}
	}

	slog.Info("model loaded", "path", path, "k", m.K, "samples", len(m.Samples))
	return &Adapter{model: m, state: StateLoaded, path: path}
}

// New wraps an already constructed predictor. A nil predictor yields an
// adapter in the missing state.
func New(p Predictor) *Adapter {
	if p == nil {
		return &Adapter{state: StateMissing, err: ErrNoModel}
	}
	return &Adapter{model: p, state: StateLoaded}
}

// State returns the resolved handle state.
func (a *Adapter) State() State {
	return a.state
}

// Err returns the load error, if any.
func (a *Adapter) Err() error {
	return a.err
}

// Path returns the artifact path the adapter was loaded from.
func (a *Adapter) Path() string {
	return a.path
}

// Classify returns the comfort label for a temperature/humidity pair.
// Without a model it returns sensor.LabelNoModel; if the model errors or
// panics it returns sensor.LabelError.
func (a *Adapter) Classify(temperature, humidity float64) (label string) {
	if a == nil || a.state != StateLoaded {
		return sensor.LabelNoModel
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("classifier panicked", "temp", temperature, "hum", humidity, "panic", r)
			label = sensor.LabelError
		}
	}()

	pred, err := a.model.Predict(sensor.Reading{Temperature: temperature, Humidity: humidity}.Features())
	if err != nil {
		slog.Error("classifier failed", "temp", temperature, "hum", humidity, "error", err)
		return sensor.LabelError
	}
	return pred
}
