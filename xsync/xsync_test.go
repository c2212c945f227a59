package xsync

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLatch(t *testing.T) {
	l := NewLatch()
	require.False(t, l.Test())

	const waiters = 4
	var wg sync.WaitGroup
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Wait()
		}()
	}

	l.Trigger()
	wg.Wait()
	require.True(t, l.Test())

	// Triggering again is a no-op.
	l.Trigger()
	require.True(t, l.Test())

	select {
	case <-l.WaitChan():
	default:
		t.Fatal("WaitChan should be closed after Trigger")
	}
}

func TestLatchTriggerWith(t *testing.T) {
	l := NewLatch()
	value := 0

	require.True(t, l.TriggerWith(func() { value = 1 }))
	// Later triggers are dropped and their function never runs.
	require.False(t, l.TriggerWith(func() { value = 2 }))
	require.Equal(t, 1, value)
}
