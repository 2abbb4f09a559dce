package versiondb

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	internaltelemetry "github.com/sushant-115/versiondb/internal/telemetry"
	"go.uber.org/zap"
)

// RecordStore is the record-level interface of a version table backend.
// Backends that do not implement an operation return an error wrapping
// ErrUnsupportedOperation.
type RecordStore interface {
	GetJSON(key string, txID int64) ([]byte, error)
	GetRangeJSONs(lowerKey, upperKey string, txID int64) ([][]byte, error)
	GetRecordKeyList(value []byte, txID int64) ([]string, error)
	GetRangeRecordKeyList(lowerValue, upperValue []byte, txID int64) ([]string, error)
	InsertJSON(key string, record []byte, txID int64) error
}

// VersionTable is a named table registered with a VersionDb.
// Visit drains the table's queued operations for one partition and has the
// same single-applier precondition as VersionDb.Visit.
type VersionTable interface {
	TableID() string
	Clear()
	Visit(partition int)
	RecordStore
}

// TableFactory builds the version table for a newly created table id.
type TableFactory func(tableID string, partitionCount int) VersionTable

type versionPartition struct {
	queue   queuePair[VersionRequest]
	records map[string]map[int64]*VersionEntry // recordKey -> versionKey -> entry
}

// PartitionedVersionTable is an in-memory version table partitioned by
// record key. Version operations are queued and applied by Visit.
type PartitionedVersionTable struct {
	tableID     string
	partitioner Partitioner
	partitions  []*versionPartition
	logger      *zap.Logger
	metrics     *internaltelemetry.VersionDbMetrics
}

// NewPartitionedVersionTable creates an empty table. A nil metrics value
// disables metrics.
func NewPartitionedVersionTable(tableID string, partitionCount int, logger *zap.Logger, metrics *internaltelemetry.VersionDbMetrics) *PartitionedVersionTable {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics, _ = internaltelemetry.NewVersionDbMetrics(nil)
	}
	t := &PartitionedVersionTable{
		tableID:     tableID,
		partitioner: NewPartitioner(partitionCount),
		partitions:  make([]*versionPartition, partitionCount),
		logger:      logger.With(zap.String("table_id", tableID)),
		metrics:     metrics,
	}
	for pk := range t.partitions {
		t.partitions[pk] = &versionPartition{records: make(map[string]map[int64]*VersionEntry)}
	}
	return t
}

func (t *PartitionedVersionTable) TableID() string { return t.tableID }

// Clear drops every stored version. Queued requests are kept.
func (t *PartitionedVersionTable) Clear() {
	for _, p := range t.partitions {
		clear(p.records)
	}
}

func (t *PartitionedVersionTable) enqueue(req VersionRequest) {
	pk := t.partitioner.OfKey(req.RecordKey())
	t.partitions[pk].queue.enqueue(req)
	t.metrics.RecordEnqueued(context.Background(), t.tableID, req.Kind().String())
}

func (t *PartitionedVersionTable) EnqueueGetVersionList(recordKey string) *GetVersionListRequest {
	req := &GetVersionListRequest{versionRequest: newVersionRequest(recordKey)}
	t.enqueue(req)
	return req
}

func (t *PartitionedVersionTable) EnqueueUploadNewVersion(entry VersionEntry) *UploadNewVersionRequest {
	req := &UploadNewVersionRequest{versionRequest: newVersionRequest(entry.RecordKey), Entry: entry.clone()}
	t.enqueue(req)
	return req
}

func (t *PartitionedVersionTable) EnqueueReplaceVersionEntry(entry VersionEntry, expectedTxID int64) *ReplaceVersionEntryRequest {
	req := &ReplaceVersionEntryRequest{
		versionRequest: newVersionRequest(entry.RecordKey),
		Entry:          entry.clone(),
		ExpectedTxID:   expectedTxID,
	}
	t.enqueue(req)
	return req
}

func (t *PartitionedVersionTable) EnqueueDeleteVersionEntry(recordKey string, versionKey int64) *DeleteVersionEntryRequest {
	req := &DeleteVersionEntryRequest{versionRequest: newVersionRequest(recordKey), VersionKey: versionKey}
	t.enqueue(req)
	return req
}

// PendingRequests returns the number of queued, unapplied requests of a
// partition. It must not race with Visit on that partition.
func (t *PartitionedVersionTable) PendingRequests(partition int) int {
	return t.partitions[partition].queue.size()
}

// Visit applies the requests queued for one partition.
func (t *PartitionedVersionTable) Visit(partition int) {
	if partition < 0 || partition >= len(t.partitions) {
		t.logger.Warn("Ignoring visit of out-of-range partition", zap.Int("partition", partition))
		return
	}
	p := t.partitions[partition]
	batch := p.queue.swap()
	if len(batch) == 0 {
		return
	}
	defer p.queue.release()

	ctx := context.Background()
	for _, req := range batch {
		err := t.invoke(p, partition, req)
		t.metrics.RecordApplied(ctx, t.tableID, req.Kind().String(), err)
	}
	t.metrics.RecordVisit(ctx, t.tableID, partition, len(batch))
}

func (t *PartitionedVersionTable) invoke(p *versionPartition, partition int, req VersionRequest) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrApplyPanic, r)
			t.logger.Error("Recovered panic while applying version request",
				zap.Int("partition", partition),
				zap.String("record_key", req.RecordKey()),
				zap.Stringer("kind", req.Kind()),
				zap.Any("panic", r))
		}
		_ = req.Handle().Complete(err)
	}()
	return p.apply(req)
}

func (p *versionPartition) apply(req VersionRequest) error {
	switch r := req.(type) {
	case *GetVersionListRequest:
		versions := p.records[r.recordKey]
		r.versions = make([]VersionEntry, 0, len(versions))
		for _, e := range versions {
			r.versions = append(r.versions, e.clone())
		}
		slices.SortFunc(r.versions, func(a, b VersionEntry) int {
			return cmp.Compare(b.VersionKey, a.VersionKey)
		})

	case *UploadNewVersionRequest:
		versions, ok := p.records[r.recordKey]
		if !ok {
			versions = make(map[int64]*VersionEntry)
			p.records[r.recordKey] = versions
		}
		if _, exists := versions[r.Entry.VersionKey]; exists {
			return fmt.Errorf("%w: %s@%d", ErrVersionAlreadyExists, r.recordKey, r.Entry.VersionKey)
		}
		entry := r.Entry.clone()
		versions[entry.VersionKey] = &entry

	case *ReplaceVersionEntryRequest:
		stored, ok := p.records[r.recordKey][r.Entry.VersionKey]
		if !ok {
			return fmt.Errorf("%w: %s@%d", ErrVersionNotFound, r.recordKey, r.Entry.VersionKey)
		}
		if stored.TxID != r.ExpectedTxID {
			r.current = stored.clone()
			return fmt.Errorf("%w: held by %d, expected %d", ErrVersionConflict, stored.TxID, r.ExpectedTxID)
		}
		*stored = r.Entry.clone()
		r.current = stored.clone()

	case *DeleteVersionEntryRequest:
		versions := p.records[r.recordKey]
		stored, ok := versions[r.VersionKey]
		if !ok {
			return fmt.Errorf("%w: %s@%d", ErrVersionNotFound, r.recordKey, r.VersionKey)
		}
		r.deleted = *stored
		delete(versions, r.VersionKey)
		if len(versions) == 0 {
			delete(p.records, r.recordKey)
		}

	default:
		return fmt.Errorf("%w: %T", ErrUnsupportedOperation, req)
	}
	return nil
}

// --- Record store (not implemented by the in-memory backend) ---

func unsupported(op string) error {
	return fmt.Errorf("%w: %s", ErrUnsupportedOperation, op)
}

func (t *PartitionedVersionTable) GetJSON(key string, txID int64) ([]byte, error) {
	return nil, unsupported("GetJSON")
}

func (t *PartitionedVersionTable) GetRangeJSONs(lowerKey, upperKey string, txID int64) ([][]byte, error) {
	return nil, unsupported("GetRangeJSONs")
}

func (t *PartitionedVersionTable) GetRecordKeyList(value []byte, txID int64) ([]string, error) {
	return nil, unsupported("GetRecordKeyList")
}

func (t *PartitionedVersionTable) GetRangeRecordKeyList(lowerValue, upperValue []byte, txID int64) ([]string, error) {
	return nil, unsupported("GetRangeRecordKeyList")
}

func (t *PartitionedVersionTable) InsertJSON(key string, record []byte, txID int64) error {
	return unsupported("InsertJSON")
}
