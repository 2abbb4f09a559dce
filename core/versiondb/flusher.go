package versiondb

import (
	"context"
	"errors"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultVisitsPerSecond paces each partition's flush loop when unset.
const DefaultVisitsPerSecond = 1000

// FlusherConfig controls how often partitions are visited.
type FlusherConfig struct {
	// VisitsPerSecond is the number of flush rounds per partition per second.
	VisitsPerSecond float64 `yaml:"visits_per_second"`
}

// Flusher drives Visit for every (table, partition) of a VersionDb. It runs
// one goroutine per partition, so visits of the same partition never overlap.
// Nothing else may call Visit on the same VersionDb while a Flusher runs.
type Flusher struct {
	db     *VersionDb
	cfg    FlusherConfig
	logger *zap.Logger
	tracer trace.Tracer

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewFlusher creates a stopped Flusher. A nil tracer disables spans.
func NewFlusher(db *VersionDb, cfg FlusherConfig, logger *zap.Logger, tracer trace.Tracer) *Flusher {
	if cfg.VisitsPerSecond <= 0 {
		cfg.VisitsPerSecond = DefaultVisitsPerSecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if tracer == nil {
		tracer = nooptrace.NewTracerProvider().Tracer("")
	}
	return &Flusher{
		db:     db,
		cfg:    cfg,
		logger: logger.Named("flusher"),
		tracer: tracer,
	}
}

// Start launches the per-partition flush loops. They stop when ctx is done or
// Stop is called.
func (f *Flusher) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancel != nil {
		return ErrFlusherRunning
	}
	ctx, f.cancel = context.WithCancel(ctx)

	f.logger.Info("Starting flusher",
		zap.Int("partitions", f.db.PartitionCount()),
		zap.Float64("visits_per_second", f.cfg.VisitsPerSecond))
	for pk := 0; pk < f.db.PartitionCount(); pk++ {
		f.wg.Add(1)
		go f.partitionLoop(ctx, pk)
	}
	return nil
}

// Stop halts the flush loops and waits for them. Each loop runs one last
// round before exiting so requests enqueued before Stop are applied.
func (f *Flusher) Stop() {
	f.mu.Lock()
	cancel := f.cancel
	f.cancel = nil
	f.mu.Unlock()
	if cancel == nil {
		return
	}

	f.logger.Info("Stopping flusher...")
	cancel()
	f.wg.Wait()
	f.logger.Info("Flusher stopped.")
}

func (f *Flusher) partitionLoop(ctx context.Context, pk int) {
	defer f.wg.Done()
	limiter := rate.NewLimiter(rate.Limit(f.cfg.VisitsPerSecond), 1)

	for {
		if err := limiter.Wait(ctx); err != nil {
			if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
				f.logger.Warn("Flush limiter failed", zap.Int("partition", pk), zap.Error(err))
			}
			f.VisitPartition(context.Background(), pk)
			return
		}
		f.VisitPartition(ctx, pk)
	}
}

// VisitPartition runs one flush round for a partition: the transaction table
// first, then every registered version table.
func (f *Flusher) VisitPartition(ctx context.Context, pk int) {
	_, span := f.tracer.Start(ctx, "versiondb.flush_round",
		trace.WithAttributes(attribute.Int("partition", pk)))
	defer span.End()

	if err := f.db.Visit(TxTableID, pk); err != nil {
		span.RecordError(err)
		f.logger.Error("Failed to visit transaction table", zap.Int("partition", pk), zap.Error(err))
		return
	}
	for _, tableID := range f.db.ListTables() {
		// A table deleted since ListTables is simply skipped.
		if err := f.db.Visit(tableID, pk); err != nil && !errors.Is(err, ErrTableNotFound) {
			span.RecordError(err)
			f.logger.Error("Failed to visit version table",
				zap.String("table_id", tableID), zap.Int("partition", pk), zap.Error(err))
		}
	}
}
