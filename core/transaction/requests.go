package transaction

import (
	"context"

	"github.com/sushant-115/versiondb/core/request"
)

// RequestKind identifies the operation a TxEntryRequest carries.
type RequestKind int

const (
	KindGetTxEntry RequestKind = iota
	KindInsertTxID
	KindNewTxID
	KindRecycleTx
	KindSetCommitTs
	KindUpdateCommitLowerBound
	KindUpdateTxStatus
)

func (k RequestKind) String() string {
	switch k {
	case KindGetTxEntry:
		return "get_tx_entry"
	case KindInsertTxID:
		return "insert_tx_id"
	case KindNewTxID:
		return "new_tx_id"
	case KindRecycleTx:
		return "recycle_tx"
	case KindSetCommitTs:
		return "set_commit_ts"
	case KindUpdateCommitLowerBound:
		return "update_commit_lower_bound"
	case KindUpdateTxStatus:
		return "update_tx_status"
	default:
		return "unknown"
	}
}

// TxEntryRequest is a queued operation against the transaction table.
// The set of implementations is closed: only the request types in this
// package satisfy it.
type TxEntryRequest interface {
	TxID() int64
	Kind() RequestKind
	Handle() *request.Handle
	isTxEntryRequest()
}

type txRequest struct {
	handle *request.Handle
	txID   int64
}

func newTxRequest(txID int64) txRequest {
	return txRequest{handle: request.NewHandle(), txID: txID}
}

func (r *txRequest) TxID() int64             { return r.txID }
func (r *txRequest) Handle() *request.Handle { return r.handle }
func (r *txRequest) isTxEntryRequest()       {}

// Done is closed once the request has been applied.
func (r *txRequest) Done() <-chan struct{} { return r.handle.Done() }

// Finished reports whether the request has been applied.
func (r *txRequest) Finished() bool { return r.handle.Finished() }

// Err returns the application error of a finished request.
func (r *txRequest) Err() error { return r.handle.Err() }

// Wait blocks until the request is applied or ctx is done.
func (r *txRequest) Wait(ctx context.Context) error { return r.handle.Wait(ctx) }

// GetTxEntryRequest fetches a copy of an existing entry.
type GetTxEntryRequest struct {
	txRequest
	entry TxTableEntry
}

func NewGetTxEntryRequest(txID int64) *GetTxEntryRequest {
	return &GetTxEntryRequest{txRequest: newTxRequest(txID)}
}

func (r *GetTxEntryRequest) Kind() RequestKind { return KindGetTxEntry }

// Entry returns the fetched entry. Valid once the request is finished without error.
func (r *GetTxEntryRequest) Entry() TxTableEntry { return r.entry }

// InsertTxIDRequest inserts a caller-supplied id as a new transaction.
type InsertTxIDRequest struct {
	txRequest
}

func NewInsertTxIDRequest(txID int64) *InsertTxIDRequest {
	return &InsertTxIDRequest{txRequest: newTxRequest(txID)}
}

func (r *InsertTxIDRequest) Kind() RequestKind { return KindInsertTxID }

// NewTxIDRequest inserts a freshly generated id as a new transaction.
type NewTxIDRequest struct {
	txRequest
}

func NewNewTxIDRequest(txID int64) *NewTxIDRequest {
	return &NewTxIDRequest{txRequest: newTxRequest(txID)}
}

func (r *NewTxIDRequest) Kind() RequestKind { return KindNewTxID }

// RecycleTxRequest evicts a transaction's entry from the table.
type RecycleTxRequest struct {
	txRequest
	evicted TxTableEntry
}

func NewRecycleTxRequest(txID int64) *RecycleTxRequest {
	return &RecycleTxRequest{txRequest: newTxRequest(txID)}
}

func (r *RecycleTxRequest) Kind() RequestKind { return KindRecycleTx }

// Evicted returns the entry as it was when it was removed.
func (r *RecycleTxRequest) Evicted() TxTableEntry { return r.evicted }

// SetCommitTsRequest proposes a commit timestamp.
type SetCommitTsRequest struct {
	txRequest
	ProposedCommitTs int64
	commitTs         int64
}

func NewSetCommitTsRequest(txID, proposedCommitTs int64) *SetCommitTsRequest {
	return &SetCommitTsRequest{
		txRequest:        newTxRequest(txID),
		ProposedCommitTs: proposedCommitTs,
		commitTs:         NoCommitTime,
	}
}

func (r *SetCommitTsRequest) Kind() RequestKind { return KindSetCommitTs }

// CommitTs returns the transaction's commit timestamp after the request was
// applied. It may differ from the proposal if one was already assigned.
func (r *SetCommitTsRequest) CommitTs() int64 { return r.commitTs }

// UpdateCommitLowerBoundRequest raises the lower bound of the commit timestamp.
type UpdateCommitLowerBoundRequest struct {
	txRequest
	LowerBound int64
	commitTs   int64
}

func NewUpdateCommitLowerBoundRequest(txID, lowerBound int64) *UpdateCommitLowerBoundRequest {
	return &UpdateCommitLowerBoundRequest{
		txRequest:  newTxRequest(txID),
		LowerBound: lowerBound,
		commitTs:   NoCommitTime,
	}
}

func (r *UpdateCommitLowerBoundRequest) Kind() RequestKind { return KindUpdateCommitLowerBound }

// CommitTs returns the commit timestamp observed when the bound was applied,
// or NoCommitTime if none had been assigned.
func (r *UpdateCommitLowerBoundRequest) CommitTs() int64 { return r.commitTs }

// UpdateTxStatusRequest moves a transaction to a new status.
type UpdateTxStatusRequest struct {
	txRequest
	Status   TxStatus
	previous TxStatus
}

func NewUpdateTxStatusRequest(txID int64, status TxStatus) *UpdateTxStatusRequest {
	return &UpdateTxStatusRequest{txRequest: newTxRequest(txID), Status: status}
}

func (r *UpdateTxStatusRequest) Kind() RequestKind { return KindUpdateTxStatus }

// Previous returns the status held before the update.
func (r *UpdateTxStatusRequest) Previous() TxStatus { return r.previous }
