package versiondb

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// Partitioner maps transaction ids and record keys to partitions.
// The mapping depends only on the key and the partition count, so it is
// stable for the life of the process.
type Partitioner struct {
	count uint64
}

func NewPartitioner(partitionCount int) Partitioner {
	return Partitioner{count: uint64(partitionCount)}
}

// OfTx returns the partition owning txID.
func (p Partitioner) OfTx(txID int64) int {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(txID))
	return int(xxhash.Sum64(buf[:]) % p.count)
}

// OfKey returns the partition owning a record key.
func (p Partitioner) OfKey(recordKey string) int {
	return int(xxhash.Sum64String(recordKey) % p.count)
}
