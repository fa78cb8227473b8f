// Package telemetry holds the OpenTelemetry instruments the mining core records into.
// A nil *Recorder is valid and records nothing.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "voxelminer.ai/mining"

type Recorder struct {
	blocksMined   metric.Int64Counter
	oresMined     metric.Int64Counter
	digFailures   metric.Int64Counter
	furnaceJobs   metric.Int64Counter
	toolsCrafted  metric.Int64Counter
	sessions      metric.Int64Counter
	sessionLength metric.Float64Histogram
}

// New creates the instruments on provider; a nil provider uses the no-op provider.
func New(provider metric.MeterProvider) (*Recorder, error) {
	if provider == nil {
		provider = noop.NewMeterProvider()
	}
	m := provider.Meter(meterName)
	r := &Recorder{}
	var err error

	if r.blocksMined, err = m.Int64Counter("mining.blocks",
		metric.WithDescription("Blocks excavated"), metric.WithUnit("1")); err != nil {
		return nil, fmt.Errorf("create blocks counter: %w", err)
	}
	if r.oresMined, err = m.Int64Counter("mining.ores",
		metric.WithDescription("Ore blocks excavated, by ore"), metric.WithUnit("1")); err != nil {
		return nil, fmt.Errorf("create ores counter: %w", err)
	}
	if r.digFailures, err = m.Int64Counter("mining.dig_failures",
		metric.WithDescription("Dig calls that failed after retries"), metric.WithUnit("1")); err != nil {
		return nil, fmt.Errorf("create dig failure counter: %w", err)
	}
	if r.furnaceJobs, err = m.Int64Counter("mining.furnace_jobs",
		metric.WithDescription("Finished furnace jobs, by kind and status"), metric.WithUnit("1")); err != nil {
		return nil, fmt.Errorf("create furnace counter: %w", err)
	}
	if r.toolsCrafted, err = m.Int64Counter("mining.tools_crafted",
		metric.WithDescription("Tools crafted, by item"), metric.WithUnit("1")); err != nil {
		return nil, fmt.Errorf("create tools counter: %w", err)
	}
	if r.sessions, err = m.Int64Counter("mining.sessions",
		metric.WithDescription("Finished sessions, by outcome"), metric.WithUnit("1")); err != nil {
		return nil, fmt.Errorf("create sessions counter: %w", err)
	}
	if r.sessionLength, err = m.Float64Histogram("mining.session_duration",
		metric.WithDescription("Session wall time"), metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("create session histogram: %w", err)
	}
	return r, nil
}

func (r *Recorder) BlockMined(ctx context.Context, block string, ore bool) {
	if r == nil {
		return
	}
	r.blocksMined.Add(ctx, 1)
	if ore {
		r.oresMined.Add(ctx, 1, metric.WithAttributes(attribute.String("ore", block)))
	}
}

func (r *Recorder) DigFailed(ctx context.Context, block string) {
	if r == nil {
		return
	}
	r.digFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("block", block)))
}

func (r *Recorder) FurnaceJob(ctx context.Context, kind, status string) {
	if r == nil {
		return
	}
	r.furnaceJobs.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("status", status),
	))
}

func (r *Recorder) ToolCrafted(ctx context.Context, item string) {
	if r == nil {
		return
	}
	r.toolsCrafted.Add(ctx, 1, metric.WithAttributes(attribute.String("item", item)))
}

func (r *Recorder) SessionFinished(ctx context.Context, success bool, seconds float64) {
	if r == nil {
		return
	}
	outcome := "failure"
	if success {
		outcome = "success"
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	r.sessions.Add(ctx, 1, attrs)
	r.sessionLength.Record(ctx, seconds, attrs)
}
