// Package battle resolves a match between two named entities into a
// predicted winner and a confidence.
package battle

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/battled/internal/logging"
	"github.com/fyrsmithlabs/battled/internal/model"
	"github.com/fyrsmithlabs/battled/internal/stats"
)

const instrumentationName = "github.com/fyrsmithlabs/battled/internal/battle"

// ErrNotFound is returned when either name is absent from the attribute
// table. It does not say which one.
var ErrNotFound = errors.New("entity not found")

// ErrInvalidProbability is returned when a scorer yields a class-1
// probability outside [0, 1].
var ErrInvalidProbability = errors.New("probability out of range")

// Prediction is the outcome of one match. Winner is always First or Second
// and Confidence is in [0.5, 1.0].
type Prediction struct {
	First      string
	Second     string
	Winner     string
	Confidence float64
}

// Resolver looks up both entities, scores the concatenated feature vector
// and maps the class-1 probability to a winner. It holds no mutable state
// and is safe for concurrent use.
type Resolver struct {
	store  stats.Store
	scorer model.Scorer
	logger *logging.Logger
	tracer trace.Tracer
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithTracerProvider sets the provider spans are created from. Defaults to
// the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(r *Resolver) {
		r.tracer = tp.Tracer(instrumentationName)
	}
}

// NewResolver creates a Resolver.
//
// The scorer must expect exactly two attribute vectors, so
// NumFeatures must equal 2 * store.Width(). When the scorer also reports
// feature names, they must match model.PairFeatureNames(store.Columns())
// position by position.
func NewResolver(store stats.Store, scorer model.Scorer, logger *logging.Logger, opts ...Option) (*Resolver, error) {
	if store == nil {
		return nil, errors.New("attribute store is required")
	}
	if scorer == nil {
		return nil, errors.New("scorer is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if want := 2 * store.Width(); scorer.NumFeatures() != want {
		return nil, fmt.Errorf("%w: model %s expects %d features, attribute table yields %d",
			model.ErrShapeMismatch, scorer.Name(), scorer.NumFeatures(), want)
	}
	if namer, ok := scorer.(model.FeatureNamer); ok {
		want := model.PairFeatureNames(store.Columns())
		names := namer.Features()
		if len(names) != len(want) {
			return nil, fmt.Errorf("%w: model %s names %d features, attribute table yields %d",
				model.ErrShapeMismatch, scorer.Name(), len(names), len(want))
		}
		for i, got := range names {
			if got != want[i] {
				return nil, fmt.Errorf("%w: model %s feature %d is %q, attribute table yields %q",
					model.ErrShapeMismatch, scorer.Name(), i, got, want[i])
			}
		}
	}

	r := &Resolver{
		store:  store,
		scorer: scorer,
		logger: logger.Named("battle"),
		tracer: otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Resolve predicts the winner of first against second. Class 1 of the
// scorer means first wins; a probability of exactly 0.5 goes to second.
func (r *Resolver) Resolve(ctx context.Context, first, second string) (*Prediction, error) {
	ctx, span := r.tracer.Start(ctx, "battle.Resolve")
	defer span.End()

	start := time.Now()
	defer func() { ResolveDuration.Observe(time.Since(start).Seconds()) }()

	a, okA := r.store.Get(first)
	b, okB := r.store.Get(second)
	if !okA || !okB {
		r.logger.Debug(ctx, "entity lookup failed",
			logging.Match(first, second),
			zap.Bool("first_found", okA),
			zap.Bool("second_found", okB),
		)
		span.SetStatus(codes.Error, ErrNotFound.Error())
		PredictionsTotal.WithLabelValues(resultNotFound).Inc()
		return nil, ErrNotFound
	}

	features := make([]float64, 0, len(a)+len(b))
	features = append(features, a...)
	features = append(features, b...)

	_, p, err := r.scorer.PredictProba(features)
	if err == nil && (math.IsNaN(p) || p < 0 || p > 1) {
		err = fmt.Errorf("%w: %v", ErrInvalidProbability, p)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		PredictionsTotal.WithLabelValues(resultError).Inc()
		r.logger.Error(ctx, "scoring failed",
			logging.Match(first, second),
			zap.String("model", r.scorer.Name()),
			zap.Int("features", len(features)),
			zap.Error(err),
		)
		return nil, fmt.Errorf("score match: %w", err)
	}

	pred := &Prediction{First: first, Second: second}
	if p > 0.5 {
		pred.Winner = first
		pred.Confidence = p
		PredictionsTotal.WithLabelValues(resultFirst).Inc()
	} else {
		pred.Winner = second
		pred.Confidence = 1 - p
		PredictionsTotal.WithLabelValues(resultSecond).Inc()
	}
	Confidence.Observe(pred.Confidence)

	span.SetAttributes(
		attribute.Float64("battle.p1", p),
		attribute.Float64("battle.confidence", pred.Confidence),
		attribute.Bool("battle.first_wins", p > 0.5),
	)
	r.logger.Trace(ctx, "match resolved",
		logging.Match(first, second),
		zap.String("winner", pred.Winner),
		zap.Float64("confidence", pred.Confidence),
	)

	return pred, nil
}
