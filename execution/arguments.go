// Package execution carries one computation from argument binding to
// completion: it stages pointer-bound arguments into shared-memory pools,
// and it implements the completion-handle protocol every execution strategy
// reports through.
package execution

import (
	"github.com/nnrt/nnrt"
	"github.com/nnrt/nnrt/hal"
	"github.com/nnrt/nnrt/model"
	"k8s.io/klog/v2"
)

// ArgumentState says how one model input or output is bound.
type ArgumentState int

const (
	// Unspecified means the argument has not been bound yet.
	Unspecified ArgumentState = iota

	// Pointer means the argument is backed by caller-owned memory, valid for
	// the duration of the call. It must be staged into a pool before being
	// sent to an out-of-process driver.
	Pointer

	// Memory means the argument is an (offset, length) range of a registered
	// pool.
	Memory

	// HasNoValue marks an omitted optional argument.
	HasNoValue
)

// ArgumentInfo is the binding of one model input or output for one execution.
type ArgumentInfo struct {
	State ArgumentState

	// Buffer is the caller's memory for Pointer bindings.
	Buffer []byte

	// Location addresses the argument inside the execution's pools. For
	// Pointer bindings it starts with only Length set; the pool index and
	// offset are filled in when the argument is staged.
	Location model.DataLocation

	// Dimensions are the operand dimensions for this execution, after
	// applying the caller's override over the operand's declared shape.
	// Empty dimensions mean the operand shape is fully specified by the
	// model.
	Dimensions []uint32
}

// updateDimensions merges the caller's dimension override into the operand's
// declared shape. Declared dimensions of 0 are unspecified and may be set by
// the override; specified dimensions must match. Only outputs may stay
// partially unspecified, their actual shape is then reported on completion.
func updateDimensions(operand *model.Operand, override []uint32, forOutput bool) ([]uint32, nnrt.ResultCode) {
	if len(override) == 0 {
		if !forOutput {
			for _, d := range operand.Dimensions {
				if d == 0 {
					return nil, nnrt.BadData
				}
			}
		}
		return nil, nnrt.NoError
	}
	if len(override) != len(operand.Dimensions) {
		return nil, nnrt.BadData
	}
	merged := make([]uint32, len(override))
	for i, declared := range operand.Dimensions {
		if declared != 0 && override[i] != declared {
			return nil, nnrt.BadData
		}
		if override[i] == 0 && !forOutput {
			return nil, nnrt.BadData
		}
		merged[i] = override[i]
	}
	return merged, nnrt.NoError
}

// resolvedByteSize is the operand's size under the merged dimensions, or 0
// when the size is not yet known (unspecified dimensions or extension types).
func resolvedByteSize(operand *model.Operand, dims []uint32) uint32 {
	if operand.Type.IsExtension() {
		return 0
	}
	if len(dims) == 0 {
		dims = operand.Dimensions
	}
	size := operand.Type.ElementSize()
	for _, d := range dims {
		size *= d
	}
	return size
}

// checkLength rejects a binding whose length disagrees with the operand's
// resolved byte size. Bindings of unknown size pass; for outputs their
// sufficiency is checked at execution time instead.
func checkLength(operand *model.Operand, dims []uint32, length uint32) nnrt.ResultCode {
	needed := resolvedByteSize(operand, dims)
	if needed != 0 && length != needed {
		klog.Errorf("execution: binding of %d bytes for an operand of %d bytes", length, needed)
		return nnrt.BadData
	}
	return nnrt.NoError
}

func newPointerArgument(operand *model.Operand, override []uint32, buffer []byte, forOutput bool) (*ArgumentInfo, nnrt.ResultCode) {
	if buffer == nil {
		return nil, nnrt.UnexpectedNull
	}
	dims, code := updateDimensions(operand, override, forOutput)
	if code != nnrt.NoError {
		return nil, code
	}
	if code := checkLength(operand, dims, uint32(len(buffer))); code != nnrt.NoError {
		return nil, code
	}
	return &ArgumentInfo{
		State:      Pointer,
		Buffer:     buffer,
		Location:   model.DataLocation{Length: uint32(len(buffer))},
		Dimensions: dims,
	}, nnrt.NoError
}

func newMemoryArgument(operand *model.Operand, override []uint32, poolIndex, offset, length uint32, forOutput bool) (*ArgumentInfo, nnrt.ResultCode) {
	dims, code := updateDimensions(operand, override, forOutput)
	if code != nnrt.NoError {
		return nil, code
	}
	if code := checkLength(operand, dims, length); code != nnrt.NoError {
		return nil, code
	}
	return &ArgumentInfo{
		State:      Memory,
		Location:   model.DataLocation{PoolIndex: poolIndex, Offset: offset, Length: length},
		Dimensions: dims,
	}, nnrt.NoError
}

// NewPointerInput binds a model input to caller-owned memory. The override
// dimensions resolve any dimension the model left unspecified; the buffer
// length must match the operand's resolved byte size.
func NewPointerInput(operand *model.Operand, override []uint32, buffer []byte) (*ArgumentInfo, nnrt.ResultCode) {
	return newPointerArgument(operand, override, buffer, false)
}

// NewPointerOutput binds a model output to caller-owned memory. Unlike
// inputs, an output may leave dimensions unspecified; whether its buffer is
// large enough is then only known once the execution reports actual shapes.
func NewPointerOutput(operand *model.Operand, override []uint32, buffer []byte) (*ArgumentInfo, nnrt.ResultCode) {
	return newPointerArgument(operand, override, buffer, true)
}

// NewMemoryInput binds a model input to a range of an already registered
// pool.
func NewMemoryInput(operand *model.Operand, override []uint32, poolIndex, offset, length uint32) (*ArgumentInfo, nnrt.ResultCode) {
	return newMemoryArgument(operand, override, poolIndex, offset, length, false)
}

// NewMemoryOutput binds a model output to a range of an already registered
// pool.
func NewMemoryOutput(operand *model.Operand, override []uint32, poolIndex, offset, length uint32) (*ArgumentInfo, nnrt.ResultCode) {
	return newMemoryArgument(operand, override, poolIndex, offset, length, true)
}

// NewNoValueArgument marks an optional operand as omitted.
func NewNoValueArgument() *ArgumentInfo {
	return &ArgumentInfo{State: HasNoValue}
}

// RequestArguments converts bindings to the wire-level request arguments, in
// binding order.
func RequestArguments(args []*ArgumentInfo) []hal.RequestArgument {
	out := make([]hal.RequestArgument, len(args))
	for i, info := range args {
		out[i] = hal.RequestArgument{
			HasNoValue: info.State == HasNoValue,
			Location:   info.Location,
			Dimensions: info.Dimensions,
		}
	}
	return out
}
