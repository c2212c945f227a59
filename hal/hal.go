// Package hal defines the contract between the runtime and out-of-process
// accelerator drivers.
//
// The transport carrying these calls is out of scope: a Driver implementation
// is assumed to be a reliable request/response channel plus an asynchronous
// notification path. The runtime only depends on the call semantics defined
// here.
package hal

import (
	"os"

	"github.com/nnrt/nnrt"
	"github.com/nnrt/nnrt/memory"
	"github.com/nnrt/nnrt/model"
)

// ErrorStatus is the status a driver reports for one call or one execution.
type ErrorStatus int32

const (
	StatusNone ErrorStatus = iota
	StatusDeviceUnavailable
	StatusGeneralFailure
	StatusOutputInsufficientSize
	StatusInvalidArgument
)

// String implements fmt.Stringer.
func (s ErrorStatus) String() string {
	switch s {
	case StatusNone:
		return "NONE"
	case StatusDeviceUnavailable:
		return "DEVICE_UNAVAILABLE"
	case StatusGeneralFailure:
		return "GENERAL_FAILURE"
	case StatusOutputInsufficientSize:
		return "OUTPUT_INSUFFICIENT_SIZE"
	case StatusInvalidArgument:
		return "INVALID_ARGUMENT"
	}
	return "UNKNOWN"
}

// ResultCode translates the driver status to the public result-code taxonomy.
func (s ErrorStatus) ResultCode() nnrt.ResultCode {
	switch s {
	case StatusNone:
		return nnrt.NoError
	case StatusDeviceUnavailable:
		return nnrt.UnavailableDevice
	case StatusOutputInsufficientSize:
		return nnrt.OutputInsufficientSize
	case StatusInvalidArgument:
		return nnrt.BadData
	default:
		return nnrt.OpFailed
	}
}

// PerformanceInfo is the relative performance of a device for some workload,
// as a ratio against the reference CPU device (defined as 1.0/1.0).
// Lower is better.
type PerformanceInfo struct {
	ExecTime   float32
	PowerUsage float32
}

// Capabilities describes the performance of a device.
type Capabilities struct {
	// OperandPerformance maps operand types to their relative performance.
	// Types not listed fall back to the zero PerformanceInfo.
	OperandPerformance map[model.OperandType]PerformanceInfo

	// RelaxedFloat32ToFloat16PerformanceScalar and ...Tensor describe the
	// reduced-precision float computation mode.
	RelaxedFloat32ToFloat16PerformanceScalar PerformanceInfo
	RelaxedFloat32ToFloat16PerformanceTensor PerformanceInfo
}

// Extension names a vendor extension supported by a driver.
type Extension struct {
	Name string
}

// RequestArgument binds one model input or output for an execution.
type RequestArgument struct {
	// HasNoValue marks an omitted optional operand; Location is then unused.
	HasNoValue bool

	// Location addresses the argument data inside the request pools.
	Location model.DataLocation

	// Dimensions overrides the operand's dimensions when the model left them
	// unspecified. Empty means "as declared in the model".
	Dimensions []uint32
}

// Request is one execution request: argument bindings in model input/output
// order, plus the pools the bindings index into.
type Request struct {
	Inputs  []RequestArgument
	Outputs []RequestArgument
	Pools   []*memory.Region
}

// OutputShape reports the actual shape of one output after execution.
type OutputShape struct {
	Dimensions []uint32

	// IsSufficient is false when the caller's buffer was too small for this
	// output.
	IsSufficient bool
}

// NotifyFunc delivers the completion of an asynchronous execution.
type NotifyFunc func(status ErrorStatus, outputShapes []OutputShape, timing nnrt.Timing)

// Driver is the per-device entry point the runtime discovered through the
// service directory.
type Driver interface {
	// GetCapabilities returns the device's declared performance.
	GetCapabilities() (Capabilities, error)

	// GetVersionString returns the driver's version string.
	GetVersionString() (string, error)

	// GetFeatureLevel returns the feature level the driver implements.
	GetFeatureLevel() int64

	// GetType returns the device-type tag.
	GetType() nnrt.DeviceType

	// GetSupportedExtensions returns the vendor extensions the driver
	// supports.
	GetSupportedExtensions() ([]Extension, error)

	// GetNumberOfCacheFilesNeeded returns how many model-cache and data-cache
	// files the driver needs for compilation caching. Zero/zero means caching
	// is unsupported.
	GetNumberOfCacheFilesNeeded() (numModelCache, numDataCache uint32, err error)

	// GetSupportedOperations returns one boolean per operation of the model,
	// in operation order, reporting whether the driver can execute it.
	GetSupportedOperations(m *model.Model) ([]bool, error)

	// PrepareModel compiles the model for this device.
	PrepareModel(m *model.Model, preference nnrt.ExecutionPreference,
		modelCache, dataCache []*os.File, token nnrt.CacheToken) (PreparedModel, error)

	// PrepareModelFromCache recreates a prepared model from the compilation
	// cache identified by token, without re-submitting the model.
	PrepareModelFromCache(modelCache, dataCache []*os.File, token nnrt.CacheToken) (PreparedModel, error)
}

// PreparedModel is a compiled model held by a driver, ready to execute.
type PreparedModel interface {
	// Execute launches the request asynchronously. The launch error reports
	// only whether the request was accepted; the outcome arrives through
	// notify, on a transport-managed goroutine, exactly once.
	Execute(request Request, measure bool, notify NotifyFunc) error

	// ExecuteSynchronously blocks for the full round trip and returns the
	// outcome directly. The error reports transport failure only.
	ExecuteSynchronously(request Request, measure bool) (ErrorStatus, []OutputShape, nnrt.Timing, error)

	// ConfigureExecutionBurst creates a reusable low-overhead execution
	// channel for this prepared model, or an error if the driver does not
	// support bursts.
	ConfigureExecutionBurst(blocking bool) (Burst, error)
}

// Burst is a pre-configured execution channel reused across many executions
// of the same prepared model.
type Burst interface {
	// TryCompute runs the request over the burst channel. poolKeys identifies
	// the request pools (memory.Region keys) so the driver can recognize
	// regions it has already mapped. fallback=true asks the runtime to retry
	// through the regular execution path instead of failing.
	TryCompute(request Request, measure bool, poolKeys []int64) (status ErrorStatus, outputShapes []OutputShape, timing nnrt.Timing, fallback bool)

	// Close releases the burst channel.
	Close()
}
