package request

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHandle_CompleteOnce(t *testing.T) {
	h := NewHandle()
	require.False(t, h.Finished())
	require.NoError(t, h.Err())

	first := errors.New("first")
	require.NoError(t, h.Complete(first))
	require.True(t, h.Finished())
	require.ErrorIs(t, h.Err(), first)

	// A second completion must not overwrite the first outcome.
	require.ErrorIs(t, h.Complete(nil), ErrAlreadyCompleted)
	require.ErrorIs(t, h.Err(), first)
}

func TestHandle_WaitReleasedByComplete(t *testing.T) {
	h := NewHandle()
	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = h.Complete(nil)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, h.Wait(ctx))

	select {
	case <-h.Done():
	default:
		t.Fatal("Done channel should be closed after completion")
	}
}

func TestHandle_WaitHonorsContext(t *testing.T) {
	h := NewHandle()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	require.ErrorIs(t, h.Wait(ctx), context.DeadlineExceeded)
	require.False(t, h.Finished())
}
