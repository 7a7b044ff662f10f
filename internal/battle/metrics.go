package battle

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Values of the result label on PredictionsTotal.
const (
	resultFirst    = "first"
	resultSecond   = "second"
	resultNotFound = "not_found"
	resultError    = "error"
)

var (
	// PredictionsTotal counts resolutions.
	// Labels: result (first, second, not_found, error)
	PredictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "battled",
			Subsystem: "battle",
			Name:      "predictions_total",
			Help:      "Total number of match resolutions by outcome",
		},
		[]string{"result"},
	)

	// Confidence tracks the confidence of successful predictions.
	Confidence = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "battled",
			Subsystem: "battle",
			Name:      "confidence",
			Help:      "Confidence of the predicted winner",
			Buckets:   []float64{0.5, 0.55, 0.6, 0.65, 0.7, 0.75, 0.8, 0.85, 0.9, 0.95, 1.0},
		},
	)

	// ResolveDuration tracks how long scoring takes, lookups included.
	ResolveDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "battled",
			Subsystem: "battle",
			Name:      "resolve_duration_seconds",
			Help:      "Duration of match resolutions in seconds",
			Buckets:   []float64{.00001, .00005, .0001, .0005, .001, .005, .01},
		},
	)
)
