package internaltelemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// VersionDbMetrics holds the metric instruments for the version database.
type VersionDbMetrics struct {
	RequestsEnqueuedCounter metric.Int64Counter
	RequestsAppliedCounter  metric.Int64Counter
	VisitBatchHistogram     metric.Int64Histogram
	QueueSwapsCounter       metric.Int64Counter
}

// NewVersionDbMetrics creates and registers all the metrics for the version database.
// A nil meter yields no-op instruments.
func NewVersionDbMetrics(meter metric.Meter) (*VersionDbMetrics, error) {
	if meter == nil {
		meter = noop.NewMeterProvider().Meter("")
	}

	requestsEnqueuedCounter, err := meter.Int64Counter(
		"versiondb.requests.enqueued_total",
		metric.WithDescription("Total number of requests appended to a live queue."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	requestsAppliedCounter, err := meter.Int64Counter(
		"versiondb.requests.applied_total",
		metric.WithDescription("Total number of requests applied by a partition visitor."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	visitBatchHistogram, err := meter.Int64Histogram(
		"versiondb.visit.batch_size",
		metric.WithDescription("Number of requests drained by one visit."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	queueSwapsCounter, err := meter.Int64Counter(
		"versiondb.queue.swaps_total",
		metric.WithDescription("Total number of live/flush queue swaps."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	return &VersionDbMetrics{
		RequestsEnqueuedCounter: requestsEnqueuedCounter,
		RequestsAppliedCounter:  requestsAppliedCounter,
		VisitBatchHistogram:     visitBatchHistogram,
		QueueSwapsCounter:       queueSwapsCounter,
	}, nil
}

// Outcome labels for applied requests.
const (
	OutcomeOK     = "ok"
	OutcomeFailed = "failed"
)

func (m *VersionDbMetrics) RecordEnqueued(ctx context.Context, table, kind string) {
	m.RequestsEnqueuedCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("table", table),
		attribute.String("kind", kind),
	))
}

func (m *VersionDbMetrics) RecordApplied(ctx context.Context, table, kind string, err error) {
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeFailed
	}
	m.RequestsAppliedCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("table", table),
		attribute.String("kind", kind),
		attribute.String("outcome", outcome),
	))
}

func (m *VersionDbMetrics) RecordVisit(ctx context.Context, table string, partition, batch int) {
	attrs := metric.WithAttributes(
		attribute.String("table", table),
		attribute.Int("partition", partition),
	)
	m.QueueSwapsCounter.Add(ctx, 1, attrs)
	m.VisitBatchHistogram.Record(ctx, int64(batch), attrs)
}
