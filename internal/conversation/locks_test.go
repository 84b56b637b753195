// ABOUTME: Tests for the keyed mutex guarding per-thread work

package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedMutex_ExclusivePerKey(t *testing.T) {
	k := newKeyedMutex()

	unlock, err := k.Lock(context.Background(), "a")
	require.NoError(t, err)

	acquired := make(chan func())
	go func() {
		u, err := k.Lock(context.Background(), "a")
		if err == nil {
			acquired <- u
		}
	}()

	select {
	case <-acquired:
		t.Fatal("second holder acquired a held key")
	case <-time.After(30 * time.Millisecond):
	}

	other, err := k.Lock(context.Background(), "b")
	require.NoError(t, err, "different keys do not contend")
	other()

	unlock()
	select {
	case u := <-acquired:
		u()
	case <-time.After(time.Second):
		t.Fatal("waiter never acquired the key")
	}

	assert.Equal(t, 0, k.size())
}

func TestKeyedMutex_CancelWhileWaiting(t *testing.T) {
	k := newKeyedMutex()

	unlock, err := k.Lock(context.Background(), "a")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = k.Lock(ctx, "a")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, k.size())

	unlock()
	unlock() // second call is a no-op
	assert.Equal(t, 0, k.size())
}
