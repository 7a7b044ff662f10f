// Package model provides the pre-trained binary classifiers battled scores
// matches with.
//
// A Scorer maps a fixed-length feature vector to the probabilities of class
// 0 and class 1. Class 1 means the first entity of the match wins.
package model

import (
	"errors"
	"fmt"
	"math"

	"github.com/fyrsmithlabs/battled/internal/snapshot"
)

// KindLogistic identifies a logistic regression snapshot.
const KindLogistic = "logistic"

var (
	// ErrShapeMismatch is returned when a feature vector does not have
	// NumFeatures elements.
	ErrShapeMismatch = errors.New("feature vector shape mismatch")

	// ErrUnknownKind is returned when a snapshot names a model kind this
	// package cannot score.
	ErrUnknownKind = errors.New("unknown model kind")
)

// Scorer is a read-only, concurrency-safe binary classifier.
type Scorer interface {
	Name() string
	NumFeatures() int
	PredictProba(features []float64) (p0, p1 float64, err error)
}

// FeatureNamer is implemented by scorers that know which training column
// each feature came from.
type FeatureNamer interface {
	Features() []string
}

// PairFeatureNames returns the feature names of a match vector built from
// columns: every column suffixed "_1" for the first entity, then every
// column suffixed "_2" for the second.
func PairFeatureNames(columns []string) []string {
	names := make([]string, 0, 2*len(columns))
	for _, side := range []string{"_1", "_2"} {
		for _, c := range columns {
			names = append(names, c+side)
		}
	}
	return names
}

// Snapshot is the serialized form of a trained model.
type Snapshot struct {
	Kind         string    `json:"kind" yaml:"kind"`
	Features     []string  `json:"features" yaml:"features"`
	Coefficients []float64 `json:"coefficients" yaml:"coefficients"`
	Intercept    float64   `json:"intercept" yaml:"intercept"`
}

// LogisticModel scores p1 = sigmoid(intercept + coefficients . features).
type LogisticModel struct {
	features     []string
	coefficients []float64
	intercept    float64
}

var _ Scorer = (*LogisticModel)(nil)

// NewLogisticModel validates s and builds a model from it.
func NewLogisticModel(s *Snapshot) (*LogisticModel, error) {
	if s.Kind != KindLogistic {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, s.Kind)
	}
	if len(s.Coefficients) == 0 {
		return nil, errors.New("logistic model has no coefficients")
	}
	if len(s.Features) != len(s.Coefficients) {
		return nil, fmt.Errorf("logistic model has %d features but %d coefficients",
			len(s.Features), len(s.Coefficients))
	}
	for i, c := range s.Coefficients {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return nil, fmt.Errorf("coefficient %d (%s) is not finite", i, s.Features[i])
		}
	}
	if math.IsNaN(s.Intercept) || math.IsInf(s.Intercept, 0) {
		return nil, errors.New("intercept is not finite")
	}

	m := &LogisticModel{
		features:     make([]string, len(s.Features)),
		coefficients: make([]float64, len(s.Coefficients)),
		intercept:    s.Intercept,
	}
	copy(m.features, s.Features)
	copy(m.coefficients, s.Coefficients)
	return m, nil
}

// LoadFile reads a JSON or YAML model snapshot.
func LoadFile(path string) (Scorer, error) {
	var s Snapshot
	if err := snapshot.ReadFile(path, &s); err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}

	switch s.Kind {
	case KindLogistic:
		m, err := NewLogisticModel(&s)
		if err != nil {
			return nil, fmt.Errorf("load model %s: %w", path, err)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("load model %s: %w: %q", path, ErrUnknownKind, s.Kind)
	}
}

func (m *LogisticModel) Name() string { return KindLogistic }

func (m *LogisticModel) NumFeatures() int { return len(m.coefficients) }

// Features returns the training column names in vector order.
func (m *LogisticModel) Features() []string {
	out := make([]string, len(m.features))
	copy(out, m.features)
	return out
}

func (m *LogisticModel) PredictProba(features []float64) (float64, float64, error) {
	if len(features) != len(m.coefficients) {
		return 0, 0, fmt.Errorf("%w: got %d features, want %d",
			ErrShapeMismatch, len(features), len(m.coefficients))
	}

	z := m.intercept
	for i, w := range m.coefficients {
		z += w * features[i]
	}
	p1 := sigmoid(z)
	return 1 - p1, p1, nil
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}
