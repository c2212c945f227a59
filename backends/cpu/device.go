// Package cpu implements the built-in reference backend.
//
// It is always available, executes in-process, supports every core operation
// type, and by definition has relative performance 1.0/1.0. It does not
// support compilation caching.
package cpu

import (
	"os"

	"github.com/gomlx/exceptions"
	"github.com/nnrt/nnrt"
	"github.com/nnrt/nnrt/backends"
	"github.com/nnrt/nnrt/execution"
	"github.com/nnrt/nnrt/hal"
	"github.com/nnrt/nnrt/memory"
	"github.com/nnrt/nnrt/model"
	"k8s.io/klog/v2"
)

const (
	// DeviceName is the reference device's service name.
	DeviceName = "nnrt-reference"

	versionString = "0.1.0"
	featureLevel  = 29
)

// referencePerformance is 1.0/1.0 by definition: all driver performance
// numbers are ratios against the reference device.
var referencePerformance = hal.PerformanceInfo{ExecTime: 1.0, PowerUsage: 1.0}

// Device is the reference backend.
type Device struct {
	// syncExec selects running the executor on the calling goroutine over a
	// bound worker goroutine, decided once by the manager's configuration.
	syncExec bool
}

var _ backends.Device = (*Device)(nil)

// NewDevice returns the reference device. syncExec selects synchronous
// in-process execution over a worker goroutine.
func NewDevice(syncExec bool) *Device {
	return &Device{syncExec: syncExec}
}

// Name implements backends.Device.
func (d *Device) Name() string { return DeviceName }

// VersionString implements backends.Device.
func (d *Device) VersionString() string { return versionString }

// FeatureLevel implements backends.Device.
func (d *Device) FeatureLevel() int64 { return featureLevel }

// Type implements backends.Device.
func (d *Device) Type() nnrt.DeviceType { return nnrt.DeviceCPU }

// SupportedExtensions implements backends.Device. The reference device
// supports no extensions.
func (d *Device) SupportedExtensions() []hal.Extension { return nil }

// SupportedOperations reports every operation as supported, except extension
// operations and the opaque vendor-defined operation. Pure local computation,
// no failure mode.
func (d *Device) SupportedOperations(m *model.Model) []bool {
	supported := make([]bool, len(m.Operations))
	for i, op := range m.Operations {
		supported[i] = !op.Type.IsExtension() && op.Type != model.OEMOperation
	}
	return supported
}

// Performance implements backends.Device.
func (d *Device) Performance(model.OperandType) hal.PerformanceInfo { return referencePerformance }

// RelaxedFloat32ToFloat16PerformanceScalar implements backends.Device.
func (d *Device) RelaxedFloat32ToFloat16PerformanceScalar() hal.PerformanceInfo {
	return referencePerformance
}

// RelaxedFloat32ToFloat16PerformanceTensor implements backends.Device.
func (d *Device) RelaxedFloat32ToFloat16PerformanceTensor() hal.PerformanceInfo {
	return referencePerformance
}

// NumberOfCacheFilesNeeded implements backends.Device. The reference device
// does not support compilation caching.
func (d *Device) NumberOfCacheFilesNeeded() (uint32, uint32) { return 0, 0 }

// PrepareModel validates the model and keeps it, together with its constant
// pools, for later execution. The caller must not attempt caching on the
// reference device: non-empty cache handle lists are a contract violation.
func (d *Device) PrepareModel(m *model.Model, preference nnrt.ExecutionPreference,
	modelCache, dataCache []*os.File, _ nnrt.CacheToken) (backends.PreparedModel, nnrt.ResultCode) {
	if len(modelCache) != 0 || len(dataCache) != 0 {
		exceptions.Panicf("cpu: PrepareModel must not be called with cache information on the reference device")
	}
	if m == nil {
		return nil, nnrt.UnexpectedNull
	}
	if !preference.Valid() {
		klog.Errorf("cpu: invalid execution preference %d", preference)
		return nil, nnrt.OpFailed
	}
	if err := m.Validate(); err != nil {
		klog.Errorf("cpu: invalid model: %+v", err)
		return nil, nnrt.OpFailed
	}
	for i, pool := range m.Pools {
		if pool == nil || pool.Bytes() == nil {
			klog.Errorf("cpu: constant pool %d cannot be mapped", i)
			return nil, nnrt.Unmappable
		}
	}
	return &PreparedModel{m: m, modelPools: m.Pools, syncExec: d.syncExec}, nnrt.NoError
}

// PrepareModelFromCache panics: the reference device never advertises
// caching, so reaching this call is a bug in the caller, not a runtime
// condition.
func (d *Device) PrepareModelFromCache([]*os.File, []*os.File, nnrt.CacheToken) (backends.PreparedModel, nnrt.ResultCode) {
	exceptions.Panicf("cpu: PrepareModelFromCache must never be called on the reference device")
	return nil, nnrt.OpFailed
}

// PreparedModel is the reference backend's compiled artifact: the validated
// model plus its mapped constant pools.
type PreparedModel struct {
	m          *model.Model
	modelPools []*memory.Region
	syncExec   bool
}

var _ backends.PreparedModel = (*PreparedModel)(nil)

// ConfigureExecutionBurst implements backends.PreparedModel. The in-process
// path has no per-call setup cost to avoid, so there is no burst support.
func (p *PreparedModel) ConfigureExecutionBurst(bool) hal.Burst { return nil }

// Execute runs the reference executor.
//
// Contrary to the driver path, the executor lives in-process and can take the
// caller's buffers directly: every pointer-bound argument becomes its own
// zero-offset pool wrapping the existing buffer, copy-free. Timing is never
// measured.
//
// Runs on the calling goroutine or on a worker goroutine bound to the
// callback, according to configuration; the worker is joined before the
// callback is released.
func (p *PreparedModel) Execute(_ hal.Burst, _ bool,
	inputs, outputs []*execution.ArgumentInfo,
	memories *memory.Tracker) (*execution.Callback, nnrt.ResultCode) {

	requestPools := make([]*memory.Region, 0, memories.Len()+len(inputs)+len(outputs))
	for _, region := range memories.Regions() {
		if region.Bytes() == nil {
			return nil, nnrt.Unmappable
		}
		requestPools = append(requestPools, region)
	}
	memories.Freeze()

	// Create as many pools as there are pointer-bound inputs/outputs, to
	// avoid data copying.
	fixPointerArguments := func(args []*execution.ArgumentInfo) {
		for _, info := range args {
			if info.State != execution.Pointer {
				continue
			}
			info.Location.PoolIndex = uint32(len(requestPools))
			info.Location.Offset = 0
			requestPools = append(requestPools, memory.FromBuffer(info.Buffer))
		}
	}
	fixPointerArguments(inputs)
	fixPointerArguments(outputs)

	request := hal.Request{
		Inputs:  execution.RequestArguments(inputs),
		Outputs: execution.RequestArguments(outputs),
		Pools:   requestPools,
	}

	callback := execution.NewCallback()
	run := func() {
		status, outputShapes := runModel(p.m, request, p.modelPools)
		callback.Notify(status, outputShapes, nnrt.NoTiming)
	}
	if p.syncExec {
		run()
	} else {
		callback.BindWorker(run)
	}
	return callback, nnrt.NoError
}
