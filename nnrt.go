// Package nnrt defines the public vocabulary of the neural-network runtime:
// result codes, execution preferences, device types and the timing/caching
// types shared by the device manager, the backends and the execution layer.
//
// The runtime itself lives in the sub-packages: `manager` discovers devices,
// `backends` defines what a device is, `backends/driver` and `backends/cpu`
// implement the two device kinds, and `execution` carries one computation
// from argument binding to completion.
package nnrt

import (
	"math"

	"github.com/google/uuid"
)

// ResultCode is returned by every public runtime operation.
type ResultCode int

const (
	// NoError means the operation succeeded.
	NoError ResultCode = iota

	// OutOfMemory means a memory allocation failed.
	OutOfMemory

	// Incomplete means the object was not in a finished state.
	Incomplete

	// UnexpectedNull means a required argument was nil.
	UnexpectedNull

	// BadData means an argument or graph content was invalid.
	BadData

	// OpFailed means the computation itself failed.
	OpFailed

	// BadState means an object was used outside its allowed lifecycle phase.
	BadState

	// Unmappable means a memory region could not be mapped; callers should
	// fall back to reading the content directly.
	Unmappable

	// OutputInsufficientSize means at least one output buffer was too small.
	// The execution callback still carries the actual required output shapes,
	// so callers can resize and retry.
	OutputInsufficientSize

	// UnavailableDevice means the device handle is no longer usable.
	UnavailableDevice
)

// String implements fmt.Stringer.
func (r ResultCode) String() string {
	switch r {
	case NoError:
		return "NO_ERROR"
	case OutOfMemory:
		return "OUT_OF_MEMORY"
	case Incomplete:
		return "INCOMPLETE"
	case UnexpectedNull:
		return "UNEXPECTED_NULL"
	case BadData:
		return "BAD_DATA"
	case OpFailed:
		return "OP_FAILED"
	case BadState:
		return "BAD_STATE"
	case Unmappable:
		return "UNMAPPABLE"
	case OutputInsufficientSize:
		return "OUTPUT_INSUFFICIENT_SIZE"
	case UnavailableDevice:
		return "UNAVAILABLE_DEVICE"
	}
	return "UNKNOWN_RESULT_CODE"
}

// ExecutionPreference hints the compilation trade-off a backend should make.
type ExecutionPreference int32

const (
	// PreferLowPower favors battery life over speed.
	PreferLowPower ExecutionPreference = iota

	// PreferFastSingleAnswer favors returning one answer as fast as possible.
	PreferFastSingleAnswer

	// PreferSustainedSpeed favors maximizing throughput of successive frames.
	PreferSustainedSpeed
)

// Valid reports whether p is one of the three defined preferences.
func (p ExecutionPreference) Valid() bool {
	return p >= PreferLowPower && p <= PreferSustainedSpeed
}

// DeviceType is a coarse tag describing what kind of hardware backs a device.
type DeviceType int32

const (
	DeviceUnknown DeviceType = iota
	DeviceOther
	DeviceCPU
	DeviceGPU
	DeviceAccelerator
)

// String implements fmt.Stringer.
func (t DeviceType) String() string {
	switch t {
	case DeviceOther:
		return "OTHER"
	case DeviceCPU:
		return "CPU"
	case DeviceGPU:
		return "GPU"
	case DeviceAccelerator:
		return "ACCELERATOR"
	}
	return "UNKNOWN"
}

// DurationKind selects which measured duration to query from a finished
// execution.
type DurationKind int32

const (
	// DurationOnHardware is the time spent executing on the device itself.
	DurationOnHardware DurationKind = iota

	// DurationInDriver is the time spent in the driver, including on-hardware
	// time.
	DurationInDriver
)

// FusedActivation is the activation fused into an operation, passed as the
// trailing scalar input of arithmetic operations.
type FusedActivation int32

const (
	FusedNone FusedActivation = iota
	FusedRelu
	FusedRelu1
	FusedRelu6
)

// DurationNone marks a duration that was not measured.
const DurationNone uint64 = math.MaxUint64

// Timing holds the measured durations of one execution, in microseconds.
// DurationNone in a field means that duration was not measured.
type Timing struct {
	// OnDevice is the execution time on the accelerator hardware.
	OnDevice uint64

	// InDriver is the execution time in the driver, on-device time included.
	InDriver uint64
}

// NoTiming is the Timing reported when measurement was off or unsupported.
var NoTiming = Timing{OnDevice: DurationNone, InDriver: DurationNone}

// Duration returns the duration selected by kind.
func (t Timing) Duration(kind DurationKind) uint64 {
	if kind == DurationOnHardware {
		return t.OnDevice
	}
	return t.InDriver
}

const (
	// ByteSizeOfCacheToken is the length of the opaque token identifying one
	// compiled model in a driver's compilation cache.
	ByteSizeOfCacheToken = 32

	// MaxCacheFiles bounds the number of model or data cache files a driver
	// may request. A driver reporting more is treated as not caching at all.
	MaxCacheFiles = 32
)

// CacheToken identifies one compiled model in a driver's compilation cache.
type CacheToken [ByteSizeOfCacheToken]byte

// NewCacheToken returns a fresh random cache token.
func NewCacheToken() CacheToken {
	var token CacheToken
	u := uuid.New()
	copy(token[:16], u[:])
	u = uuid.New()
	copy(token[16:], u[:])
	return token
}
