// Package telemetry wraps OpenTelemetry SDK setup for tracing around
// review stage executions and LLM/retrieval calls. When telemetry is
// disabled, no tracer provider is installed and global tracing remains
// noop.
package telemetry

import (
	"context"
	"fmt"
	"runtime/debug"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/BaSui01/agentflow/config"
)

// Providers holds the OTel SDK TracerProvider. When telemetry is
// disabled, tp is nil and Shutdown is a no-op.
type Providers struct {
	tp *sdktrace.TracerProvider
}

// Init installs a TracerProvider sampling at cfg.SampleRate. No OTLP
// exporter is wired here — this deployment shape has no collector
// endpoint in scope; an embedding application can attach a span
// processor to the returned provider if it needs export.
func Init(cfg config.TelemetryConfig, serviceVersion string) (*Providers, error) {
	if !cfg.Enabled {
		return &Providers{}, nil
	}
	if serviceVersion == "" {
		serviceVersion = buildVersion()
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SampleRate)),
	)
	otel.SetTracerProvider(tp)

	return &Providers{tp: tp}, nil
}

func (p *Providers) Shutdown(ctx context.Context) error {
	if p == nil || p.tp == nil {
		return nil
	}
	if err := p.tp.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown tracer provider: %w", err)
	}
	return nil
}

func buildVersion() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "dev"
	}
	if info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev"
}
