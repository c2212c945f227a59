package execution

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nnrt/nnrt"
	"github.com/nnrt/nnrt/hal"
	"github.com/stretchr/testify/require"
)

func TestCallbackNotifyExactlyOnce(t *testing.T) {
	callback := NewCallback()
	require.False(t, callback.Notified())

	callback.Notify(hal.StatusNone, []hal.OutputShape{{Dimensions: []uint32{1}, IsSufficient: true}}, nnrt.NoTiming)
	// A later notification, e.g. from a slower fallback strategy, is dropped.
	callback.Notify(hal.StatusGeneralFailure, nil, nnrt.NoTiming)

	require.True(t, callback.Notified())
	require.Equal(t, nnrt.NoError, callback.Wait())
	require.Equal(t, hal.StatusNone, callback.Status())
	require.Len(t, callback.OutputShapes(), 1)
}

func TestCallbackConcurrentWaiters(t *testing.T) {
	callback := NewCallback()

	const waiters = 8
	var wg sync.WaitGroup
	results := make([]nnrt.ResultCode, waiters)
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = callback.Wait()
		}(i)
	}

	callback.Notify(hal.StatusOutputInsufficientSize, nil, nnrt.NoTiming)
	wg.Wait()
	for _, code := range results {
		require.Equal(t, nnrt.OutputInsufficientSize, code)
	}
}

func TestCallbackBoundWorkerIsJoined(t *testing.T) {
	callback := NewCallback()
	var finished atomic.Bool
	callback.BindWorker(func() {
		time.Sleep(10 * time.Millisecond)
		finished.Store(true)
		callback.Notify(hal.StatusNone, nil, nnrt.NoTiming)
	})
	require.Equal(t, nnrt.NoError, callback.Wait())
	require.True(t, finished.Load())
}

func TestCallbackReleaseWhilePending(t *testing.T) {
	callback := NewCallback()
	started := make(chan struct{})
	var finished atomic.Bool
	callback.BindWorker(func() {
		close(started)
		time.Sleep(10 * time.Millisecond)
		finished.Store(true)
		callback.Notify(hal.StatusNone, nil, nnrt.NoTiming)
	})
	<-started
	callback.Release()

	// The work still runs to completion, but the owner-visible wait reports
	// a deletion status instead of the real result.
	require.Equal(t, nnrt.BadState, callback.Wait())
	require.True(t, finished.Load())
}

func TestCallbackReleaseAfterCompletion(t *testing.T) {
	callback := NewCallback()
	callback.Notify(hal.StatusNone, nil, nnrt.NoTiming)
	require.Equal(t, nnrt.NoError, callback.Wait())
	callback.Release()
}

func TestCallbackQueriesBeforeCompletion(t *testing.T) {
	callback := NewCallback()

	_, code := callback.OutputRank(0)
	require.Equal(t, nnrt.BadState, code)
	_, code = callback.OutputDimensions(0)
	require.Equal(t, nnrt.BadState, code)
	duration, code := callback.Duration(nnrt.DurationOnHardware)
	require.Equal(t, nnrt.BadState, code)
	require.Equal(t, nnrt.DurationNone, duration)
}

func TestCallbackOutputQueries(t *testing.T) {
	callback := NewCallback()
	callback.Notify(hal.StatusNone,
		[]hal.OutputShape{{Dimensions: []uint32{2, 3}, IsSufficient: true}},
		nnrt.Timing{OnDevice: 11, InDriver: 15})
	require.Equal(t, nnrt.NoError, callback.Wait())

	rank, code := callback.OutputRank(0)
	require.Equal(t, nnrt.NoError, code)
	require.Equal(t, 2, rank)

	dims, code := callback.OutputDimensions(0)
	require.Equal(t, nnrt.NoError, code)
	require.Equal(t, []uint32{2, 3}, dims)

	_, code = callback.OutputRank(1)
	require.Equal(t, nnrt.BadData, code)

	onDevice, code := callback.Duration(nnrt.DurationOnHardware)
	require.Equal(t, nnrt.NoError, code)
	require.Equal(t, uint64(11), onDevice)
	inDriver, code := callback.Duration(nnrt.DurationInDriver)
	require.Equal(t, nnrt.NoError, code)
	require.Equal(t, uint64(15), inDriver)
}
