package transaction

import (
	"encoding/binary"

	"github.com/google/uuid"
)

// IdentitySource generates transaction ids. Implementations must be safe for
// concurrent use.
type IdentitySource interface {
	NextID() int64
}

// RandomIdentity draws ids from random (version 4) UUIDs, keeping 63 bits so
// every id is positive. The collision probability over n ids is roughly
// n^2 / 2^64, about 5e-10 for 100,000 ids.
type RandomIdentity struct{}

func (RandomIdentity) NextID() int64 {
	for {
		id := uuid.New()
		v := int64(binary.BigEndian.Uint64(id[:8]) & (1<<63 - 1))
		if v != 0 {
			return v
		}
	}
}

// IdentityFunc adapts a plain function to IdentitySource.
type IdentityFunc func() int64

func (f IdentityFunc) NextID() int64 { return f() }
