package classifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
)

// Sample is one labelled training point of the KNN artifact.
type Sample struct {
	X     []float64 `json:"x"`
	Label string    `json:"label"`
}

// KNN is a k-nearest-neighbours model serialized as JSON:
//
//	{"k": 3, "features": ["temp", "hum"], "samples": [{"x": [30.1, 55], "label": "Panas"}]}
type KNN struct {
	K        int      `json:"k"`
	Features []string `json:"features,omitempty"`
	Samples  []Sample `json:"samples"`
}

// LoadKNN reads and validates a KNN artifact.
func LoadKNN(path string) (*KNN, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var m KNN
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *KNN) validate() error {
	if len(m.Samples) == 0 {
		return errors.New("artifact has no samples")
	}
	if m.K <= 0 {
		m.K = 5
	}
	if m.K > len(m.Samples) {
		m.K = len(m.Samples)
	}
	dim := len(m.Samples[0].X)
	if dim == 0 {
		return errors.New("artifact samples have no features")
	}
	for i, s := range m.Samples {
		if len(s.X) != dim {
			return fmt.Errorf("sample %d has %d features, want %d", i, len(s.X), dim)
		}
		if s.Label == "" {
			return fmt.Errorf("sample %d has no label", i)
		}
	}
	return nil
}

type neighbour struct {
	dist  float64
	label string
}

// Predict returns the majority label among the k nearest samples. Ties go
// to the label whose closest member is nearest.
func (m *KNN) Predict(features []float64) (string, error) {
	if len(m.Samples) == 0 {
		return "", ErrNoModel
	}
	if len(features) != len(m.Samples[0].X) {
		return "", fmt.Errorf("got %d features, model expects %d", len(features), len(m.Samples[0].X))
	}
	for _, f := range features {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return "", fmt.Errorf("feature is not finite: %v", f)
		}
	}

	ns := make([]neighbour, len(m.Samples))
	for i, s := range m.Samples {
		sum := 0.0
		for j, v := range s.X {
			d := v - features[j]
			sum += d * d
		}
		ns[i] = neighbour{dist: sum, label: s.Label}
	}
	sort.SliceStable(ns, func(i, j int) bool { return ns[i].dist < ns[j].dist })

	votes := make(map[string]int)
	first := make(map[string]int)
	for i, n := range ns[:m.K] {
		if _, ok := first[n.label]; !ok {
			first[n.label] = i
		}
		votes[n.label]++
	}

	best := ""
	for label, v := range votes {
		if best == "" || v > votes[best] || (v == votes[best] && first[label] < first[best]) {
			best = label
		}
	}
	return best, nil
}
