package signals

import (
	"context"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricNameSignalSuccess = "engagement_signal_apply_success_total"
	metricNameSignalFailure = "engagement_signal_apply_failure_total"
	metricNameSignalSkipped = "engagement_signal_skipped_total"
	metricNameSignalLag     = "engagement_signal_lag_ms"
)

type signalMetrics struct {
	success metric.Int64Counter
	failure metric.Int64Counter
	skipped metric.Int64Counter
	lag     metric.Float64Histogram
	helper  *log.Helper
	enabled bool
}

func newSignalMetrics(meter metric.Meter, helper *log.Helper) *signalMetrics {
	m := &signalMetrics{helper: helper}
	if meter == nil {
		return m
	}

	var err error
	if m.success, err = meter.Int64Counter(metricNameSignalSuccess,
		metric.WithDescription("Number of interaction signals applied successfully")); err != nil {
		helper.Warnf("signal metrics: register success counter: %v", err)
		return m
	}
	if m.failure, err = meter.Int64Counter(metricNameSignalFailure,
		metric.WithDescription("Number of interaction signals failed to apply")); err != nil {
		helper.Warnf("signal metrics: register failure counter: %v", err)
	}
	if m.skipped, err = meter.Int64Counter(metricNameSignalSkipped,
		metric.WithDescription("Number of interaction signals skipped (malformed or unknown content)")); err != nil {
		helper.Warnf("signal metrics: register skipped counter: %v", err)
	}
	if m.lag, err = meter.Float64Histogram(metricNameSignalLag,
		metric.WithDescription("Signal lag between occurred_at and processing time"), metric.WithUnit("ms")); err != nil {
		helper.Warnf("signal metrics: register lag histogram: %v", err)
	}
	m.enabled = true
	return m
}

func (m *signalMetrics) recordSuccess(ctx context.Context, kind string, occurredAt, now time.Time) {
	if m == nil || !m.enabled {
		return
	}
	attrs := metric.WithAttributes(attribute.String("kind", kind))
	if m.success != nil {
		m.success.Add(ctx, 1, attrs)
	}
	if m.lag != nil {
		lag := now.Sub(occurredAt).Milliseconds()
		if lag < 0 {
			lag = 0
		}
		m.lag.Record(ctx, float64(lag), attrs)
	}
}

func (m *signalMetrics) recordFailure(ctx context.Context, kind string) {
	if m == nil || !m.enabled {
		return
	}
	if m.failure != nil {
		m.failure.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
	}
}

func (m *signalMetrics) recordSkip(ctx context.Context, reason string) {
	if m == nil || !m.enabled {
		return
	}
	if m.skipped != nil {
		m.skipped.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
	}
}
