package versiondb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
)

func sumCounter(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "metric %s is not an int64 sum", name)
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	return total
}

func TestMetrics_CountEnqueuedAndApplied(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = provider.Shutdown(context.Background()) }()

	db, err := New(Config{PartitionCount: 1}, zap.NewNop(), provider.Meter("versiondb-test"))
	require.NoError(t, err)

	db.EnqueueInsertTxID(1)
	db.EnqueueInsertTxID(1)
	db.EnqueueGetTxEntry(1)
	require.NoError(t, db.Visit(TxTableID, 0))
	require.NoError(t, db.Visit(TxTableID, 0))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	require.Equal(t, int64(3), sumCounter(t, rm, "versiondb.requests.enqueued_total"))
	require.Equal(t, int64(3), sumCounter(t, rm, "versiondb.requests.applied_total"))
	// The second visit found nothing to swap.
	require.Equal(t, int64(1), sumCounter(t, rm, "versiondb.queue.swaps_total"))
}
