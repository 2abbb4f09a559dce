package versiondb

import "errors"

var (
	ErrInvalidPartitionCount = errors.New("partition count must be positive")
	ErrPartitionOutOfRange   = errors.New("partition out of range")
	ErrTableNotFound         = errors.New("version table not found")
	ErrReservedTableID       = errors.New("table id is reserved for the transaction table")
	ErrEmptyTableID          = errors.New("table id must not be empty")
	ErrUnsupportedOperation  = errors.New("operation not supported by version table")
	ErrVersionNotFound       = errors.New("version entry not found")
	ErrVersionAlreadyExists  = errors.New("version entry already exists")
	ErrVersionConflict       = errors.New("version entry held by another transaction")
	ErrApplyPanic            = errors.New("panic while applying version request")
	ErrFlusherRunning        = errors.New("flusher already running")
)
