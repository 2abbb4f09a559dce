package versiondb

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/sushant-115/versiondb/core/transaction"
	"go.uber.org/zap"
)

// --- Test Helpers ---

func newTestDb(t *testing.T, partitions int, opts ...Option) *VersionDb {
	t.Helper()
	logger, err := zap.NewDevelopment()
	require.NoError(t, err)
	db, err := New(Config{PartitionCount: partitions}, logger, nil, opts...)
	require.NoError(t, err)
	return db
}

// visitAll visits the transaction table on every partition once.
func visitAll(t *testing.T, db *VersionDb) {
	t.Helper()
	for pk := 0; pk < db.PartitionCount(); pk++ {
		require.NoError(t, db.Visit(TxTableID, pk))
	}
}

// txIDsOnDistinctPartitions finds two ids owned by different partitions.
func txIDsOnDistinctPartitions(t *testing.T, db *VersionDb) (int64, int64) {
	t.Helper()
	a := int64(1)
	for b := int64(2); b < 1000; b++ {
		if db.PartitionOfTx(a) != db.PartitionOfTx(b) {
			return a, b
		}
	}
	t.Fatal("no two ids on distinct partitions")
	return 0, 0
}

// --- Construction ---

func TestNew_DefaultsPartitionCount(t *testing.T) {
	db, err := New(Config{}, nil, nil)
	require.NoError(t, err)
	require.Equal(t, DefaultPartitionCount, db.PartitionCount())
}

func TestNew_RejectsNegativePartitionCount(t *testing.T) {
	_, err := New(Config{PartitionCount: -1}, nil, nil)
	require.ErrorIs(t, err, ErrInvalidPartitionCount)
}

// --- Submission and visit ---

func TestVisit_RequestsPendingUntilVisited(t *testing.T) {
	db := newTestDb(t, 4)
	req := db.EnqueueInsertTxID(100)
	pk := db.PartitionOfTx(100)

	require.False(t, req.Finished())
	require.Equal(t, 1, db.PendingRequests(pk))

	// Visiting a different partition leaves the request untouched.
	other := (pk + 1) % db.PartitionCount()
	require.NoError(t, db.Visit(TxTableID, other))
	require.False(t, req.Finished())

	require.NoError(t, db.Visit(TxTableID, pk))
	require.True(t, req.Finished())
	require.NoError(t, req.Err())
}

func TestVisit_FIFOPerTransaction(t *testing.T) {
	db := newTestDb(t, 4)
	const txID = int64(77)
	pk := db.PartitionOfTx(txID)

	insert := db.EnqueueInsertTxID(txID)
	bound1 := db.EnqueueUpdateCommitLowerBound(txID, 10)
	get1 := db.EnqueueGetTxEntry(txID)
	require.NoError(t, db.Visit(TxTableID, pk))

	bound2 := db.EnqueueUpdateCommitLowerBound(txID, 20)
	get2 := db.EnqueueGetTxEntry(txID)
	commit := db.EnqueueUpdateTxStatus(txID, transaction.TxStatusCommitted)
	abort := db.EnqueueUpdateTxStatus(txID, transaction.TxStatusAborted)
	get3 := db.EnqueueGetTxEntry(txID)
	require.NoError(t, db.Visit(TxTableID, pk))

	for _, err := range []error{insert.Err(), bound1.Err(), get1.Err(), bound2.Err(), get2.Err(), commit.Err(), get3.Err()} {
		require.NoError(t, err)
	}
	require.Equal(t, int64(10), get1.Entry().CommitLowerBound)
	require.Equal(t, int64(20), get2.Entry().CommitLowerBound)
	require.Equal(t, transaction.TxStatusOngoing, get2.Entry().Status)
	require.ErrorIs(t, abort.Err(), transaction.ErrInvalidStatusTransition)
	require.Equal(t, transaction.TxStatusCommitted, get3.Entry().Status)
}

func TestVisit_GetBeforeInsertIsOrdered(t *testing.T) {
	db := newTestDb(t, 2)
	get := db.EnqueueGetTxEntry(5)
	insert := db.EnqueueInsertTxID(5)
	visitAll(t, db)

	require.ErrorIs(t, get.Err(), transaction.ErrTxNotFound)
	require.NoError(t, insert.Err())
}

func TestVisit_CrossPartitionOrderIsFree(t *testing.T) {
	db := newTestDb(t, 4)
	a, b := txIDsOnDistinctPartitions(t, db)

	insertA := db.EnqueueInsertTxID(a)
	insertB := db.EnqueueInsertTxID(b)

	// Apply b's partition first; either order must succeed.
	require.NoError(t, db.Visit(TxTableID, db.PartitionOfTx(b)))
	require.True(t, insertB.Finished())
	require.False(t, insertA.Finished())
	require.NoError(t, db.Visit(TxTableID, db.PartitionOfTx(a)))

	require.NoError(t, insertA.Err())
	require.NoError(t, insertB.Err())
}

func TestVisit_EmptyPartitionIsNoop(t *testing.T) {
	db := newTestDb(t, 4)
	for i := 0; i < 3; i++ {
		visitAll(t, db)
	}
	for pk := 0; pk < db.PartitionCount(); pk++ {
		require.Equal(t, 0, db.PendingRequests(pk))
	}
}

func TestVisit_DrainsQueuesCompletely(t *testing.T) {
	db := newTestDb(t, 1)
	const k = 50
	reqs := make([]*transaction.InsertTxIDRequest, k)
	for i := range reqs {
		reqs[i] = db.EnqueueInsertTxID(int64(i + 1))
	}
	require.Equal(t, k, db.PendingRequests(0))

	require.NoError(t, db.Visit(TxTableID, 0))
	require.Equal(t, 0, db.PendingRequests(0))
	for _, r := range reqs {
		require.True(t, r.Finished())
	}

	// A second visit with nothing new does nothing.
	require.NoError(t, db.Visit(TxTableID, 0))
	require.Equal(t, 0, db.PendingRequests(0))
	require.Len(t, db.partitions[0].txTable, k)
}

func TestVisit_FailureDoesNotAbortBatch(t *testing.T) {
	db := newTestDb(t, 1)
	first := db.EnqueueInsertTxID(1)
	dup := db.EnqueueInsertTxID(1)
	missing := db.EnqueueGetTxEntry(2)
	after := db.EnqueueInsertTxID(3)
	require.NoError(t, db.Visit(TxTableID, 0))

	require.NoError(t, first.Err())
	require.ErrorIs(t, dup.Err(), transaction.ErrTxAlreadyExists)
	require.ErrorIs(t, missing.Err(), transaction.ErrTxNotFound)
	require.NoError(t, after.Err())
}

func TestVisit_SetCommitTsBelowLowerBound(t *testing.T) {
	db := newTestDb(t, 4)
	const txID = int64(900)
	db.EnqueueInsertTxID(txID)
	db.EnqueueUpdateCommitLowerBound(txID, 500)
	set := db.EnqueueSetCommitTs(txID, 499)
	get := db.EnqueueGetTxEntry(txID)
	visitAll(t, db)

	require.ErrorIs(t, set.Err(), transaction.ErrCommitTsRejected)
	require.NoError(t, get.Err())
	require.Equal(t, transaction.NoCommitTime, get.Entry().CommitTime)
}

func TestVisit_ArgumentErrors(t *testing.T) {
	db := newTestDb(t, 2)
	require.ErrorIs(t, db.Visit(TxTableID, 2), ErrPartitionOutOfRange)
	require.ErrorIs(t, db.Visit(TxTableID, -1), ErrPartitionOutOfRange)
	require.ErrorIs(t, db.Visit("missing", 0), ErrTableNotFound)
}

func TestEnqueueNewTxID(t *testing.T) {
	db := newTestDb(t, 4)
	req := db.EnqueueNewTxID()
	require.Positive(t, req.TxID())
	visitAll(t, db)
	require.NoError(t, req.Err())

	get := db.EnqueueGetTxEntry(req.TxID())
	visitAll(t, db)
	require.NoError(t, get.Err())
	require.Equal(t, req.TxID(), get.Entry().TxID)
}

func TestEnqueueNewTxID_CollisionFails(t *testing.T) {
	db := newTestDb(t, 4, WithIdentitySource(transaction.IdentityFunc(func() int64 { return 42 })))
	first := db.EnqueueNewTxID()
	second := db.EnqueueNewTxID()
	visitAll(t, db)

	require.NoError(t, first.Err())
	require.ErrorIs(t, second.Err(), transaction.ErrTxAlreadyExists)
}

func TestEnqueueRecycleTx(t *testing.T) {
	db := newTestDb(t, 4)
	db.EnqueueInsertTxID(8)
	recycle := db.EnqueueRecycleTx(8)
	get := db.EnqueueGetTxEntry(8)
	visitAll(t, db)

	require.NoError(t, recycle.Err())
	require.Equal(t, int64(8), recycle.Evicted().TxID)
	require.ErrorIs(t, get.Err(), transaction.ErrTxNotFound)
}

func TestRequest_WaitObservesVisit(t *testing.T) {
	db := newTestDb(t, 4)
	req := db.EnqueueInsertTxID(31)

	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = db.Visit(TxTableID, db.PartitionOfTx(31))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, req.Wait(ctx))
}

// --- Concurrency ---

func TestConcurrentProducers_NoLossNoDuplication(t *testing.T) {
	const producers, perProducer = 8, 2000
	db := newTestDb(t, 4)

	reqs := make([][]*transaction.InsertTxIDRequest, producers)
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			reqs[p] = make([]*transaction.InsertTxIDRequest, perProducer)
			for i := 0; i < perProducer; i++ {
				reqs[p][i] = db.EnqueueInsertTxID(int64(p*perProducer + i + 1))
			}
		}(p)
	}
	wg.Wait()

	total := 0
	for pk := 0; pk < db.PartitionCount(); pk++ {
		total += db.PendingRequests(pk)
	}
	require.Equal(t, producers*perProducer, total)

	visitAll(t, db)

	applied := 0
	for _, rs := range reqs {
		for _, r := range rs {
			require.True(t, r.Finished())
			require.NoError(t, r.Err())
			applied++
		}
	}
	require.Equal(t, producers*perProducer, applied)

	stored := 0
	for _, p := range db.partitions {
		stored += len(p.txTable)
	}
	require.Equal(t, producers*perProducer, stored)
}

func TestConcurrentProducersAndAppliers(t *testing.T) {
	const producers, perProducer = 8, 1000
	db := newTestDb(t, 4)

	stop := make(chan struct{})
	var appliers sync.WaitGroup
	for pk := 0; pk < db.PartitionCount(); pk++ {
		appliers.Add(1)
		go func(pk int) {
			defer appliers.Done()
			for {
				select {
				case <-stop:
					return
				default:
					_ = db.Visit(TxTableID, pk)
				}
			}
		}(pk)
	}

	var wg sync.WaitGroup
	results := make(chan *transaction.InsertTxIDRequest, producers*perProducer)
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				results <- db.EnqueueInsertTxID(int64(p*perProducer + i + 1))
			}
		}(p)
	}
	wg.Wait()
	close(stop)
	appliers.Wait()
	visitAll(t, db)
	close(results)

	n := 0
	for r := range results {
		require.True(t, r.Finished())
		require.NoError(t, r.Err())
		n++
	}
	require.Equal(t, producers*perProducer, n)
}

// --- Clear ---

func TestClear_EmptiesStateButKeepsQueues(t *testing.T) {
	db := newTestDb(t, 2)
	db.EnqueueInsertTxID(1)
	visitAll(t, db)
	_, err := db.CreateTable("users")
	require.NoError(t, err)

	pending := db.EnqueueGetTxEntry(1)
	db.Clear()

	require.Empty(t, db.ListTables())
	_, ok := db.GetTable("users")
	require.False(t, ok)

	// The queued request survives the clear and sees the emptied table.
	require.False(t, pending.Finished())
	visitAll(t, db)
	require.ErrorIs(t, pending.Err(), transaction.ErrTxNotFound)
}
