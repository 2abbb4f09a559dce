package transaction

import "fmt"

// TxStatus is the lifecycle state of a transaction in the transaction table.
type TxStatus int

const (
	TxStatusOngoing   TxStatus = iota // Transaction is running, operations may still be applied
	TxStatusCommitted                 // Commit decision has been recorded
	TxStatusAborted                   // Abort decision has been recorded
)

func (s TxStatus) String() string {
	switch s {
	case TxStatusOngoing:
		return "ongoing"
	case TxStatusCommitted:
		return "committed"
	case TxStatusAborted:
		return "aborted"
	default:
		return fmt.Sprintf("TxStatus(%d)", int(s))
	}
}

// CanTransitionTo reports whether the status may move to next.
// Setting a status to itself is always allowed; terminal states accept nothing else.
func (s TxStatus) CanTransitionTo(next TxStatus) bool {
	if s == next {
		return true
	}
	return s == TxStatusOngoing && (next == TxStatusCommitted || next == TxStatusAborted)
}

// NoCommitTime marks a transaction whose commit timestamp has not been assigned.
const NoCommitTime int64 = -1

// TxTableEntry is the bookkeeping record of one transaction.
// Entries live inside a partition's state map and are only mutated by that
// partition's visitor; callers always receive copies.
type TxTableEntry struct {
	TxID             int64
	Status           TxStatus
	CommitTime       int64
	CommitLowerBound int64
}

// NewTxTableEntry returns a fresh entry in the ongoing state.
func NewTxTableEntry(txID int64) *TxTableEntry {
	return &TxTableEntry{
		TxID:             txID,
		Status:           TxStatusOngoing,
		CommitTime:       NoCommitTime,
		CommitLowerBound: 0,
	}
}

// HasCommitTime reports whether a commit timestamp has been assigned.
func (e *TxTableEntry) HasCommitTime() bool {
	return e.CommitTime != NoCommitTime
}
