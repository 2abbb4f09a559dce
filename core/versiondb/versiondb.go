// Package versiondb implements the transaction bookkeeping core of the MVCC
// storage layer: a partitioned transaction table fed through double-buffered
// request queues, plus a registry of version tables that follow the same
// queue/visit protocol.
//
// Producers call the Enqueue* methods from any goroutine and receive a
// request handle immediately. Requests take effect when a driver calls Visit
// for the owning (table, partition). Visit calls for the same partition must
// not overlap; the Flusher provides one goroutine per partition for this.
package versiondb

import (
	"context"
	"fmt"

	"github.com/sushant-115/versiondb/core/transaction"
	internaltelemetry "github.com/sushant-115/versiondb/internal/telemetry"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// TxTableID is the reserved id of the transaction table.
const TxTableID = "tx_table"

// DefaultPartitionCount is used when Config.PartitionCount is zero.
const DefaultPartitionCount = 4

// Config holds the version database settings. PartitionCount is fixed for the
// life of a VersionDb.
type Config struct {
	PartitionCount int `yaml:"partition_count"`
}

// Option customizes a VersionDb at construction.
type Option func(*VersionDb)

// WithIdentitySource replaces the generator used by EnqueueNewTxID.
func WithIdentitySource(src transaction.IdentitySource) Option {
	return func(db *VersionDb) { db.identity = src }
}

// WithTableFactory replaces the constructor used by CreateTable.
func WithTableFactory(factory TableFactory) Option {
	return func(db *VersionDb) { db.newTable = factory }
}

// txPartition is one shard of the transaction table.
type txPartition struct {
	queue   queuePair[transaction.TxEntryRequest]
	txTable map[int64]*transaction.TxTableEntry
	visitor *transaction.PartitionVisitor
}

// VersionDb owns the partitioned transaction table and the version table registry.
type VersionDb struct {
	partitionCount int
	partitioner    Partitioner
	partitions     []*txPartition
	registry       *tableRegistry

	identity transaction.IdentitySource
	newTable TableFactory

	logger  *zap.Logger
	metrics *internaltelemetry.VersionDbMetrics
}

// New creates a VersionDb. A nil logger or meter disables logging or metrics.
func New(cfg Config, logger *zap.Logger, meter metric.Meter, opts ...Option) (*VersionDb, error) {
	partitionCount := cfg.PartitionCount
	if partitionCount == 0 {
		partitionCount = DefaultPartitionCount
	}
	if partitionCount < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPartitionCount, partitionCount)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics, err := internaltelemetry.NewVersionDbMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("failed to register versiondb metrics: %w", err)
	}

	db := &VersionDb{
		partitionCount: partitionCount,
		partitioner:    NewPartitioner(partitionCount),
		partitions:     make([]*txPartition, partitionCount),
		registry:       newTableRegistry(),
		identity:       transaction.RandomIdentity{},
		logger:         logger.Named("versiondb"),
		metrics:        metrics,
	}
	db.newTable = func(tableID string, partitionCount int) VersionTable {
		return NewPartitionedVersionTable(tableID, partitionCount, db.logger, db.metrics)
	}
	for _, opt := range opts {
		opt(db)
	}

	for pk := range db.partitions {
		txTable := make(map[int64]*transaction.TxTableEntry)
		db.partitions[pk] = &txPartition{
			txTable: txTable,
			visitor: transaction.NewPartitionVisitor(pk, txTable, db.logger),
		}
	}

	db.logger.Info("VersionDb initialized", zap.Int("partition_count", partitionCount))
	return db, nil
}

// PartitionCount returns the number of partitions.
func (db *VersionDb) PartitionCount() int {
	return db.partitionCount
}

// PartitionOfTx returns the partition that owns txID.
func (db *VersionDb) PartitionOfTx(txID int64) int {
	return db.partitioner.OfTx(txID)
}

// PartitionOfKey returns the partition that owns a version table record key.
func (db *VersionDb) PartitionOfKey(recordKey string) int {
	return db.partitioner.OfKey(recordKey)
}

// --- Request submission ---

// EnqueueTxEntryRequest routes req by its transaction id and appends it to
// that partition's live queue.
func (db *VersionDb) EnqueueTxEntryRequest(req transaction.TxEntryRequest) {
	pk := db.partitioner.OfTx(req.TxID())
	db.partitions[pk].queue.enqueue(req)
	db.metrics.RecordEnqueued(context.Background(), TxTableID, req.Kind().String())
}

func (db *VersionDb) EnqueueGetTxEntry(txID int64) *transaction.GetTxEntryRequest {
	req := transaction.NewGetTxEntryRequest(txID)
	db.EnqueueTxEntryRequest(req)
	return req
}

func (db *VersionDb) EnqueueInsertTxID(txID int64) *transaction.InsertTxIDRequest {
	req := transaction.NewInsertTxIDRequest(txID)
	db.EnqueueTxEntryRequest(req)
	return req
}

// EnqueueNewTxID draws a fresh id from the identity source. The request fails
// with transaction.ErrTxAlreadyExists if the id is already in use.
func (db *VersionDb) EnqueueNewTxID() *transaction.NewTxIDRequest {
	req := transaction.NewNewTxIDRequest(db.identity.NextID())
	db.EnqueueTxEntryRequest(req)
	return req
}

func (db *VersionDb) EnqueueRecycleTx(txID int64) *transaction.RecycleTxRequest {
	req := transaction.NewRecycleTxRequest(txID)
	db.EnqueueTxEntryRequest(req)
	return req
}

func (db *VersionDb) EnqueueSetCommitTs(txID, proposedCommitTs int64) *transaction.SetCommitTsRequest {
	req := transaction.NewSetCommitTsRequest(txID, proposedCommitTs)
	db.EnqueueTxEntryRequest(req)
	return req
}

func (db *VersionDb) EnqueueUpdateCommitLowerBound(txID, lowerBound int64) *transaction.UpdateCommitLowerBoundRequest {
	req := transaction.NewUpdateCommitLowerBoundRequest(txID, lowerBound)
	db.EnqueueTxEntryRequest(req)
	return req
}

func (db *VersionDb) EnqueueUpdateTxStatus(txID int64, status transaction.TxStatus) *transaction.UpdateTxStatusRequest {
	req := transaction.NewUpdateTxStatusRequest(txID, status)
	db.EnqueueTxEntryRequest(req)
	return req
}

// --- Visit ---

// Visit applies every request queued for (tableID, partition). For the
// transaction table the live and flush queues are swapped under the
// partition lock and the batch is applied without it; any other table
// handles the visit itself. Request failures are recorded on the requests.
//
// Visit must not run concurrently with another Visit for the same partition.
func (db *VersionDb) Visit(tableID string, partition int) error {
	if partition < 0 || partition >= db.partitionCount {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrPartitionOutOfRange, partition, db.partitionCount)
	}
	if tableID == TxTableID {
		db.visitTxTable(partition)
		return nil
	}
	table, ok := db.registry.get(tableID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrTableNotFound, tableID)
	}
	table.Visit(partition)
	return nil
}

func (db *VersionDb) visitTxTable(pk int) {
	p := db.partitions[pk]
	batch := p.queue.swap()
	if len(batch) == 0 {
		return
	}
	defer p.queue.release()

	ctx := context.Background()
	for _, req := range batch {
		err := p.visitor.Invoke(req)
		db.metrics.RecordApplied(ctx, TxTableID, req.Kind().String(), err)
	}
	db.metrics.RecordVisit(ctx, TxTableID, pk, len(batch))
}

// PendingRequests returns the number of transaction requests queued for a
// partition and not yet applied. It must not race with Visit on that partition.
func (db *VersionDb) PendingRequests(partition int) int {
	return db.partitions[partition].queue.size()
}

// --- Table registry ---

// CreateTable returns the version table registered under tableID, creating
// it if needed.
func (db *VersionDb) CreateTable(tableID string) (VersionTable, error) {
	switch tableID {
	case "":
		return nil, ErrEmptyTableID
	case TxTableID:
		return nil, fmt.Errorf("%w: %s", ErrReservedTableID, tableID)
	}
	table, created := db.registry.getOrCreate(tableID, func() VersionTable {
		return db.newTable(tableID, db.partitionCount)
	})
	if created {
		db.logger.Info("Version table created", zap.String("table_id", tableID))
	}
	return table, nil
}

// DeleteTable unregisters tableID. It returns true if the table was removed
// or was already absent, and false if a concurrent delete removed it first.
func (db *VersionDb) DeleteTable(tableID string) bool {
	return db.registry.remove(tableID)
}

// GetTable returns the version table registered under tableID.
func (db *VersionDb) GetTable(tableID string) (VersionTable, bool) {
	return db.registry.get(tableID)
}

// ListTables returns the registered table ids in sorted order.
func (db *VersionDb) ListTables() []string {
	return db.registry.ids()
}

// Clear empties and unregisters every version table and empties every
// partition's transaction table. Queued requests are kept and are applied
// against the emptied state on the next visit. Clear must not run
// concurrently with Visit.
func (db *VersionDb) Clear() {
	tables := db.registry.drain()
	for _, t := range tables {
		t.Clear()
	}
	for _, p := range db.partitions {
		clear(p.txTable)
	}
	db.logger.Info("VersionDb cleared", zap.Int("tables_removed", len(tables)))
}
