package http

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/battled/internal/logging"
)

const httpInstrumentationName = "github.com/fyrsmithlabs/battled/internal/http"

// HTTPMetrics records OTEL instruments for every request the server handles.
type HTTPMetrics struct {
	requestsTotal  metric.Int64Counter
	requestDur     metric.Float64Histogram
	responseSize   metric.Int64Histogram
	activeRequests metric.Int64UpDownCounter
}

// NewHTTPMetrics creates the instruments on mp. A nil mp uses the global
// provider. Instruments that fail to register are logged and skipped.
func NewHTTPMetrics(mp metric.MeterProvider, logger *logging.Logger) *HTTPMetrics {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	meter := mp.Meter(httpInstrumentationName)
	ctx := context.Background()
	m := &HTTPMetrics{}

	var err error
	m.requestsTotal, err = meter.Int64Counter(
		"battled.http.requests_total",
		metric.WithDescription("HTTP requests by method, route (index, predict, health, metrics) and status code."),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		logger.Warn(ctx, "failed to create requests counter", zap.Error(err))
	}

	// Predictions are in-memory lookups, so the buckets start well below 1ms.
	m.requestDur, err = meter.Float64Histogram(
		"battled.http.request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds by method, route and status."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.05, 0.25, 1.0),
	)
	if err != nil {
		logger.Warn(ctx, "failed to create duration histogram", zap.Error(err))
	}

	m.responseSize, err = meter.Int64Histogram(
		"battled.http.response_size_bytes",
		metric.WithDescription("HTTP response body size in bytes by method, route and status."),
		metric.WithUnit("By"),
		metric.WithExplicitBucketBoundaries(32, 64, 128, 256, 512, 1024, 4096, 16384),
	)
	if err != nil {
		logger.Warn(ctx, "failed to create response size histogram", zap.Error(err))
	}

	m.activeRequests, err = meter.Int64UpDownCounter(
		"battled.http.active_requests",
		metric.WithDescription("Number of in-flight HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		logger.Warn(ctx, "failed to create active requests gauge", zap.Error(err))
	}

	return m
}

// Middleware returns an Echo middleware that records the instruments. It
// must run after the status code is final, so errors are rendered by the
// inner request logger first.
func (m *HTTPMetrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			ctx := c.Request().Context()

			if m.activeRequests != nil {
				m.activeRequests.Add(ctx, 1)
				defer m.activeRequests.Add(ctx, -1)
			}

			err := next(c)

			res := c.Response()
			attrs := metric.WithAttributes(
				attribute.String("method", c.Request().Method),
				attribute.String("route", routeLabel(c.Request().Method, c.Path())),
				attribute.Int("status", res.Status),
			)
			if m.requestsTotal != nil {
				m.requestsTotal.Add(ctx, 1, attrs)
			}
			if m.requestDur != nil {
				m.requestDur.Record(ctx, time.Since(start).Seconds(), attrs)
			}
			if m.responseSize != nil {
				m.responseSize.Record(ctx, res.Size, attrs)
			}
			return err
		}
	}
}

// routeLabel maps a matched route to a bounded metric label. Echo reports
// an empty path when no route matched.
func routeLabel(method, path string) string {
	switch {
	case path == "":
		return "unmatched"
	case path == "/" && method == http.MethodPost:
		return "predict"
	case path == "/":
		return "index"
	default:
		return path[1:]
	}
}
