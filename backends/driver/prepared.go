package driver

import (
	"github.com/nnrt/nnrt"
	"github.com/nnrt/nnrt/backends"
	"github.com/nnrt/nnrt/execution"
	"github.com/nnrt/nnrt/hal"
	"github.com/nnrt/nnrt/memory"
	"k8s.io/klog/v2"
)

// PreparedModel wraps the prepared-model handle returned by a driver.
type PreparedModel struct {
	prepared hal.PreparedModel
	syncExec bool
}

var _ backends.PreparedModel = (*PreparedModel)(nil)

// ConfigureExecutionBurst implements backends.PreparedModel.
func (p *PreparedModel) ConfigureExecutionBurst(blocking bool) hal.Burst {
	burst, err := p.prepared.ConfigureExecutionBurst(blocking)
	if err != nil {
		klog.V(1).Infof("driver: ConfigureExecutionBurst unavailable: %+v", err)
		return nil
	}
	return burst
}

// Execute starts a computation on the driver.
//
// Two separate pools are allocated for pointer-bound inputs and outputs, so
// the driver only needs to copy input pool contents and can treat them as
// read-only. Input pointer data is copied in before dispatch; output pointer
// data is copied back after a successful completion, as the very last step.
//
// Strategy order: burst when supplied (with fallback on request), then the
// synchronous or asynchronous remote call depending on configuration. The
// callback reaches its notified state exactly once regardless of fallbacks.
func (p *PreparedModel) Execute(burst hal.Burst, measure bool,
	inputs, outputs []*execution.ArgumentInfo,
	memories *memory.Tracker) (*execution.Callback, nnrt.ResultCode) {

	// Layout the input and output data.
	inputPool, code := execution.LayoutPointerArguments(memories, inputs)
	if code != nnrt.NoError {
		return nil, code
	}
	outputPool, code := execution.LayoutPointerArguments(memories, outputs)
	if code != nnrt.NoError {
		return nil, code
	}
	memories.Freeze()

	execution.CopyPointerInputs(inputPool, inputs)

	request := hal.Request{
		Inputs:  execution.RequestArguments(inputs),
		Outputs: execution.RequestArguments(outputs),
		Pools:   memories.Regions(),
	}

	callback := execution.NewCallback()

	// Compute using burst if present.
	burstCompute := burst != nil
	burstFallback := false
	if burstCompute {
		poolKeys := make([]int64, 0, memories.Len())
		for _, region := range memories.Regions() {
			poolKeys = append(poolKeys, region.Key())
		}
		klog.V(2).Info("driver: before Burst.TryCompute()")
		status, outputShapes, timing, fallback := burst.TryCompute(request, measure, poolKeys)
		burstFallback = fallback
		if !fallback {
			callback.Notify(status, outputShapes, timing)
		}
	}

	// Compute through the prepared model if either burst was not supplied or
	// the burst execution asked for a fallback.
	if !burstCompute || burstFallback {
		if p.syncExec {
			klog.V(2).Info("driver: before PreparedModel.ExecuteSynchronously()")
			status, outputShapes, timing, err := p.prepared.ExecuteSynchronously(request, measure)
			if err != nil {
				klog.Errorf("driver: synchronous execution transport failure: %+v", err)
				return nil, nnrt.OpFailed
			}
			callback.Notify(status, outputShapes, timing)
		} else {
			klog.V(2).Info("driver: before PreparedModel.Execute()")
			if err := p.prepared.Execute(request, measure, callback.Notify); err != nil {
				klog.Errorf("driver: execute launch failed: %+v", err)
				return nil, nnrt.OpFailed
			}
		}
	}

	callback.Wait()
	if status := callback.Status(); status != hal.StatusNone {
		klog.V(1).Infof("driver: execution failed with status %s", status)
		if status == hal.StatusOutputInsufficientSize {
			// Non-fatal: hand the callback to the caller so it can query the
			// required output shapes, resize and retry.
			return callback, nnrt.NoError
		}
		return nil, status.ResultCode()
	}

	// Copy the output data from the staging pool to the caller's buffers.
	execution.CopyPointerOutputs(outputPool, outputs)
	klog.V(2).Info("driver: execution completed")
	return callback, nnrt.NoError
}
