package transaction

import (
	"fmt"

	"go.uber.org/zap"
)

// PartitionVisitor applies queued requests to one partition's transaction
// table. It is not safe for concurrent use: exactly one goroutine may drive a
// given partition's visitor at a time.
type PartitionVisitor struct {
	partition int
	txTable   map[int64]*TxTableEntry
	logger    *zap.Logger
}

// NewPartitionVisitor binds a visitor to a partition's state map.
func NewPartitionVisitor(partition int, txTable map[int64]*TxTableEntry, logger *zap.Logger) *PartitionVisitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PartitionVisitor{
		partition: partition,
		txTable:   txTable,
		logger:    logger,
	}
}

// Invoke applies req, writes its outputs and completes its handle.
// The returned error is the one recorded on the request. A panic during
// application is recovered and recorded as ErrApplyPanic.
func (v *PartitionVisitor) Invoke(req TxEntryRequest) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrApplyPanic, r)
			v.logger.Error("Recovered panic while applying tx request",
				zap.Int("partition", v.partition),
				zap.Int64("tx_id", req.TxID()),
				zap.Stringer("kind", req.Kind()),
				zap.Any("panic", r))
		}
		_ = req.Handle().Complete(err)
	}()
	return v.apply(req)
}

func (v *PartitionVisitor) apply(req TxEntryRequest) error {
	switch r := req.(type) {
	case *GetTxEntryRequest:
		entry, ok := v.txTable[r.txID]
		if !ok {
			return ErrTxNotFound
		}
		r.entry = *entry

	case *InsertTxIDRequest:
		return v.insert(r.txID)

	case *NewTxIDRequest:
		return v.insert(r.txID)

	case *RecycleTxRequest:
		entry, ok := v.txTable[r.txID]
		if !ok {
			return ErrTxNotFound
		}
		r.evicted = *entry
		delete(v.txTable, r.txID)

	case *SetCommitTsRequest:
		entry, ok := v.txTable[r.txID]
		if !ok {
			return ErrTxNotFound
		}
		if !entry.HasCommitTime() {
			if r.ProposedCommitTs < entry.CommitLowerBound {
				r.commitTs = entry.CommitTime
				return fmt.Errorf("%w: proposed %d, lower bound %d",
					ErrCommitTsRejected, r.ProposedCommitTs, entry.CommitLowerBound)
			}
			entry.CommitTime = r.ProposedCommitTs
		}
		r.commitTs = entry.CommitTime

	case *UpdateCommitLowerBoundRequest:
		entry, ok := v.txTable[r.txID]
		if !ok {
			return ErrTxNotFound
		}
		if !entry.HasCommitTime() && entry.CommitLowerBound < r.LowerBound {
			entry.CommitLowerBound = r.LowerBound
		}
		r.commitTs = entry.CommitTime

	case *UpdateTxStatusRequest:
		entry, ok := v.txTable[r.txID]
		if !ok {
			return ErrTxNotFound
		}
		r.previous = entry.Status
		if !entry.Status.CanTransitionTo(r.Status) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, entry.Status, r.Status)
		}
		entry.Status = r.Status

	default:
		return fmt.Errorf("%w: %T", ErrUnknownRequest, req)
	}
	return nil
}

func (v *PartitionVisitor) insert(txID int64) error {
	if _, exists := v.txTable[txID]; exists {
		return fmt.Errorf("%w: %d", ErrTxAlreadyExists, txID)
	}
	v.txTable[txID] = NewTxTableEntry(txID)
	return nil
}
