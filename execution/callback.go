package execution

import (
	"sync"
	"sync/atomic"

	"github.com/nnrt/nnrt"
	"github.com/nnrt/nnrt/hal"
	"github.com/nnrt/nnrt/xsync"
	"k8s.io/klog/v2"
)

// Callback is the completion handle of one execution attempt.
//
// It reaches its notified state exactly once, no matter how many execution
// strategies were attempted internally; later notifications are dropped.
// Waiting is safe from any number of goroutines: all waiters are released
// together when the notification lands.
//
// For in-process executions a worker goroutine can be bound to the callback;
// the worker is always joined before the callback's resources are considered
// released, so no captured argument outlives its owner.
type Callback struct {
	latch *xsync.Latch

	// Written once, inside the latch trigger; read only after the latch
	// fires.
	status       hal.ErrorStatus
	outputShapes []hal.OutputShape
	timing       nnrt.Timing

	workerMu   sync.Mutex
	workerDone chan struct{}

	released atomic.Bool
}

// NewCallback returns a pending completion handle.
func NewCallback() *Callback {
	return &Callback{
		latch:  xsync.NewLatch(),
		timing: nnrt.NoTiming,
	}
}

// Notify records the execution outcome and releases all waiters.
// Only the first call has any effect.
func (c *Callback) Notify(status hal.ErrorStatus, outputShapes []hal.OutputShape, timing nnrt.Timing) {
	delivered := c.latch.TriggerWith(func() {
		c.status = status
		c.outputShapes = outputShapes
		c.timing = timing
	})
	if !delivered {
		klog.V(1).Infof("execution: dropped duplicate notification with status %s", status)
	}
}

// BindWorker runs fn on a new goroutine and ties its lifetime to the
// callback: Wait and Release only return after fn has finished.
// At most one worker may be bound.
func (c *Callback) BindWorker(fn func()) {
	c.workerMu.Lock()
	defer c.workerMu.Unlock()
	if c.workerDone != nil {
		panic("execution.Callback: BindWorker called twice")
	}
	done := make(chan struct{})
	c.workerDone = done
	go func() {
		defer close(done)
		fn()
	}()
}

// joinWorker waits for the bound worker goroutine, if any.
func (c *Callback) joinWorker() {
	c.workerMu.Lock()
	done := c.workerDone
	c.workerMu.Unlock()
	if done != nil {
		<-done
	}
}

// Wait blocks until the execution has been notified and any bound worker has
// finished. It returns BadState if the handle was released while pending;
// the execution outcome is then no longer owner-visible.
func (c *Callback) Wait() nnrt.ResultCode {
	c.latch.Wait()
	c.joinWorker()
	if c.released.Load() {
		return nnrt.BadState
	}
	return c.status.ResultCode()
}

// Notified reports whether the terminal notification has landed.
func (c *Callback) Notified() bool { return c.latch.Test() }

// Status returns the driver status. Valid only after Wait.
func (c *Callback) Status() hal.ErrorStatus { return c.status }

// Timing returns the measured durations. Valid only after Wait.
func (c *Callback) Timing() nnrt.Timing { return c.timing }

// OutputShapes returns the actual output shapes reported by the backend, in
// model output order. Valid only after Wait. Empty when the backend did not
// report shapes.
func (c *Callback) OutputShapes() []hal.OutputShape { return c.outputShapes }

// OutputRank returns the rank of the given output. BadState before
// completion, BadData for an out-of-range index.
func (c *Callback) OutputRank(index int) (int, nnrt.ResultCode) {
	if !c.latch.Test() {
		return 0, nnrt.BadState
	}
	if index < 0 || index >= len(c.outputShapes) {
		return 0, nnrt.BadData
	}
	return len(c.outputShapes[index].Dimensions), nnrt.NoError
}

// OutputDimensions returns the dimensions of the given output. BadState
// before completion, BadData for an out-of-range index.
func (c *Callback) OutputDimensions(index int) ([]uint32, nnrt.ResultCode) {
	if !c.latch.Test() {
		return nil, nnrt.BadState
	}
	if index < 0 || index >= len(c.outputShapes) {
		return nil, nnrt.BadData
	}
	return c.outputShapes[index].Dimensions, nnrt.NoError
}

// Duration returns the duration selected by kind, or DurationNone with
// BadState if the execution has not completed.
func (c *Callback) Duration(kind nnrt.DurationKind) (uint64, nnrt.ResultCode) {
	if !c.latch.Test() {
		return nnrt.DurationNone, nnrt.BadState
	}
	return c.timing.Duration(kind), nnrt.NoError
}

// Release gives up ownership of the callback.
//
// If the execution already completed, Release joins any bound worker and
// returns. If it is still pending, the handle is marked for deferred
// deletion: the underlying work still runs to completion (a detached
// goroutine joins the worker afterwards), but any Wait now reports BadState
// instead of the real outcome.
func (c *Callback) Release() {
	if c.released.Swap(true) {
		return
	}
	if c.latch.Test() {
		c.joinWorker()
		return
	}
	klog.V(1).Info("execution: callback released while pending, deferring teardown")
	go func() {
		c.latch.Wait()
		c.joinWorker()
	}()
}
