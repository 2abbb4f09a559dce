package transaction

import "errors"

var (
	ErrTxNotFound              = errors.New("transaction not found")
	ErrTxAlreadyExists         = errors.New("transaction already exists in table")
	ErrInvalidStatusTransition = errors.New("invalid transaction status transition")
	ErrCommitTsRejected        = errors.New("proposed commit timestamp is below the commit lower bound")
	ErrApplyPanic              = errors.New("panic while applying transaction request")
	ErrUnknownRequest          = errors.New("unknown transaction request kind")
)
