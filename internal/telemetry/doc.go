// Package telemetry provides OpenTelemetry instrumentation for battled.
//
// # Usage
//
//	tel, err := telemetry.New(ctx, telemetry.FromAppConfig(cfg.Telemetry))
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	tracer := tel.Tracer("battled/battle")
//	ctx, span := tracer.Start(ctx, "battle.Resolve")
//	defer span.End()
//
// # Configuration
//
// Telemetry is off by default. When enabled, traces and metrics are exported
// over OTLP (grpc on localhost:4317 unless configured otherwise). Plaintext
// export is refused for non-loopback endpoints.
//
// # Degradation
//
// Exporter construction errors never fail startup. The instance is marked
// degraded (see Health) and the global no-op providers remain installed.
//
// # Testing
//
// NewTestTelemetry wires a tracetest.SpanRecorder and a ManualReader so tests
// can assert on spans and collected metrics without a collector.
package telemetry
