// Package backends defines the interface an execution backend needs to
// implement to run computations for the runtime.
//
// Two kinds of backend exist: out-of-process accelerator drivers
// (backends/driver), discovered at startup through the platform's service
// directory, and the built-in in-process reference backend (backends/cpu),
// which is always available and supports every core operation.
//
// A Device and a PreparedModel are immutable after creation and safe for
// concurrent use from many goroutines without external locking.
package backends

import (
	"os"

	"github.com/nnrt/nnrt"
	"github.com/nnrt/nnrt/execution"
	"github.com/nnrt/nnrt/hal"
	"github.com/nnrt/nnrt/memory"
	"github.com/nnrt/nnrt/model"
)

// Device is one execution backend: identity, declared capabilities, a
// per-operation support query, and model preparation.
//
// Devices are created once during discovery and owned by the device manager
// for the process lifetime.
type Device interface {
	// Name returns the device's service name, e.g. "nnrt-reference".
	Name() string

	// VersionString returns the backend's version string.
	VersionString() string

	// FeatureLevel returns the feature level the backend implements.
	FeatureLevel() int64

	// Type returns the device-type tag.
	Type() nnrt.DeviceType

	// SupportedExtensions returns the vendor extensions the backend supports.
	SupportedExtensions() []hal.Extension

	// SupportedOperations returns one boolean per operation of the model, in
	// operation order. A backend that cannot answer reliably reports every
	// operation as unsupported.
	SupportedOperations(m *model.Model) []bool

	// Performance returns the relative performance for the operand type,
	// against the reference backend's 1.0/1.0.
	Performance(t model.OperandType) hal.PerformanceInfo

	// RelaxedFloat32ToFloat16PerformanceScalar returns the performance of the
	// reduced-precision float mode for scalar operands.
	RelaxedFloat32ToFloat16PerformanceScalar() hal.PerformanceInfo

	// RelaxedFloat32ToFloat16PerformanceTensor returns the performance of the
	// reduced-precision float mode for tensor operands.
	RelaxedFloat32ToFloat16PerformanceTensor() hal.PerformanceInfo

	// NumberOfCacheFilesNeeded returns the (model, data) cache file counts
	// required for compilation caching. Zero/zero means no caching support.
	NumberOfCacheFilesNeeded() (numModelCache, numDataCache uint32)

	// PrepareModel compiles the model for this device. The caller guarantees
	// the model is finished and validated and the preference is one of the
	// defined values.
	PrepareModel(m *model.Model, preference nnrt.ExecutionPreference,
		modelCache, dataCache []*os.File, token nnrt.CacheToken) (PreparedModel, nnrt.ResultCode)

	// PrepareModelFromCache recreates a prepared model from the compilation
	// cache, without re-submitting the model. Only defined for devices whose
	// cache-file counts are non-zero; calling it on a device that never
	// advertised caching is a programming error and panics.
	PrepareModelFromCache(modelCache, dataCache []*os.File, token nnrt.CacheToken) (PreparedModel, nnrt.ResultCode)
}

// CachingSupported reports whether the device supports compilation caching:
// either of its cache-file counts is greater than zero.
func CachingSupported(d Device) bool {
	numModel, numData := d.NumberOfCacheFilesNeeded()
	return numModel > 0 || numData > 0
}

// PreparedModel is a compiled artifact: the backend-specific, execute-only
// form of a model. Multiple executions may run concurrently against the same
// prepared model.
type PreparedModel interface {
	// Execute runs the computation against one binding of inputs and
	// outputs, staging pointer-bound arguments through the tracker, and
	// returns the completion handle the caller waits on.
	//
	// burst, when non-nil, is attempted first; on a fallback signal the
	// regular execution path is used instead. The tracker must be exclusively
	// owned by this execution.
	//
	// A nil callback is returned together with a non-NoError code when the
	// execution could not be launched or failed outright. An
	// OutputInsufficientSize outcome still returns the callback with a
	// NoError launch code, so the caller can query the required output
	// shapes, resize and retry.
	Execute(burst hal.Burst, measure bool,
		inputs, outputs []*execution.ArgumentInfo,
		memories *memory.Tracker) (*execution.Callback, nnrt.ResultCode)

	// ConfigureExecutionBurst creates a reusable execution channel for this
	// prepared model, or nil if the backend has no burst support.
	ConfigureExecutionBurst(blocking bool) hal.Burst
}
