// Package model holds the finished, validated operand/operation graph the
// runtime compiles and executes. Graph construction itself happens elsewhere;
// by the time a Model reaches a device it is immutable, and concurrent
// read-only use is safe.
package model

import (
	"fmt"

	"github.com/nnrt/nnrt/memory"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// OperandType describes the data type of one operand.
type OperandType int32

const (
	Float32 OperandType = iota
	Int32
	UInt32
	TensorFloat32
	TensorInt32
	TensorQuant8Asymm
	Bool
	TensorFloat16
)

// extensionTypeBase is the first type value reserved for vendor extensions.
const extensionTypeBase = 0x10000

// IsExtension reports whether the type belongs to an extension namespace.
func (t OperandType) IsExtension() bool { return t >= extensionTypeBase }

// IsTensor reports whether the type carries dimensions.
func (t OperandType) IsTensor() bool {
	switch t {
	case TensorFloat32, TensorInt32, TensorQuant8Asymm, TensorFloat16:
		return true
	}
	return false
}

// ElementSize returns the size of one element of the type in bytes.
func (t OperandType) ElementSize() uint32 {
	switch t {
	case Float32, Int32, UInt32, TensorFloat32, TensorInt32:
		return 4
	case TensorFloat16:
		return 2
	case TensorQuant8Asymm, Bool:
		return 1
	}
	return 0
}

// OperationType identifies one operation kind. The values match the stable
// public operation codes.
type OperationType int32

const (
	Add  OperationType = 0
	Mul  OperationType = 18
	Relu OperationType = 19
	Sub  OperationType = 36

	// OEMOperation is the opaque vendor-defined operation.
	OEMOperation OperationType = 10000
)

// IsExtension reports whether the operation belongs to an extension
// namespace.
func (t OperationType) IsExtension() bool { return t >= extensionTypeBase }

// OperandLifetime describes where an operand's value comes from.
type OperandLifetime int32

const (
	// TemporaryVariable values are produced and consumed within the graph.
	TemporaryVariable OperandLifetime = iota

	// ModelInput values are supplied by the execution request.
	ModelInput

	// ModelOutput values are delivered through the execution request.
	ModelOutput

	// ConstantCopy values live in the model's OperandValues blob.
	ConstantCopy

	// ConstantReference values live in one of the model's constant pools.
	ConstantReference

	// NoValue marks an omitted optional operand.
	NoValue
)

// DataLocation addresses a byte range inside a memory pool.
type DataLocation struct {
	PoolIndex uint32
	Offset    uint32
	Length    uint32
}

// Operand is one value node of the graph.
type Operand struct {
	Type       OperandType
	Dimensions []uint32
	Scale      float32
	ZeroPoint  int32
	Lifetime   OperandLifetime

	// Location addresses the operand's constant data, for lifetimes
	// ConstantCopy (into OperandValues) and ConstantReference (into Pools).
	Location DataLocation
}

// ByteSize returns the operand's total size in bytes, or 0 if any dimension
// is unspecified.
func (o *Operand) ByteSize() uint32 {
	size := o.Type.ElementSize()
	for _, d := range o.Dimensions {
		size *= d
	}
	return size
}

// Operation is one computation node of the graph. Inputs and Outputs index
// into the model's operand list.
type Operation struct {
	Type    OperationType
	Inputs  []uint32
	Outputs []uint32
}

// Model is a finished graph. Operations are listed in a valid execution
// order.
type Model struct {
	Operands   []Operand
	Operations []Operation

	// InputIndexes and OutputIndexes designate the model's inputs and
	// outputs. Their order defines the argument-binding indices used by
	// executions, independent of the operand indices themselves.
	InputIndexes  []uint32
	OutputIndexes []uint32

	// OperandValues backs ConstantCopy operands.
	OperandValues []byte

	// Pools backs ConstantReference operands.
	Pools []*memory.Region

	// RelaxedComputation allows float32 computation to be carried out in
	// reduced (float16) precision.
	RelaxedComputation bool
}

// Validate checks the structural invariants of a finished model and returns
// all violations found, combined.
func (m *Model) Validate() error {
	var err error
	if len(m.Operations) == 0 {
		err = multierr.Append(err, errors.New("model has no operations"))
	}
	for i, op := range m.Operations {
		err = multierr.Append(err, m.validateOperandIndexes(fmt.Sprintf("operation #%d inputs", i), op.Inputs))
		err = multierr.Append(err, m.validateOperandIndexes(fmt.Sprintf("operation #%d outputs", i), op.Outputs))
	}
	err = multierr.Append(err, m.validateOperandIndexes("model inputs", m.InputIndexes))
	err = multierr.Append(err, m.validateOperandIndexes("model outputs", m.OutputIndexes))
	for _, idx := range m.InputIndexes {
		if int(idx) < len(m.Operands) && m.Operands[idx].Lifetime != ModelInput {
			err = multierr.Append(err, errors.Errorf("operand %d is a model input but has lifetime %d", idx, m.Operands[idx].Lifetime))
		}
	}
	for _, idx := range m.OutputIndexes {
		if int(idx) < len(m.Operands) && m.Operands[idx].Lifetime != ModelOutput {
			err = multierr.Append(err, errors.Errorf("operand %d is a model output but has lifetime %d", idx, m.Operands[idx].Lifetime))
		}
	}
	for i, operand := range m.Operands {
		switch operand.Lifetime {
		case ConstantCopy:
			if int(operand.Location.Offset)+int(operand.Location.Length) > len(m.OperandValues) {
				err = multierr.Append(err, errors.Errorf("operand %d constant data out of OperandValues range", i))
			}
		case ConstantReference:
			if int(operand.Location.PoolIndex) >= len(m.Pools) {
				err = multierr.Append(err, errors.Errorf("operand %d references pool %d of %d", i, operand.Location.PoolIndex, len(m.Pools)))
			} else if pool := m.Pools[operand.Location.PoolIndex]; uint64(operand.Location.Offset)+uint64(operand.Location.Length) > uint64(pool.Size()) {
				err = multierr.Append(err, errors.Errorf("operand %d constant data out of pool %d range", i, operand.Location.PoolIndex))
			}
		}
	}
	return err
}

func (m *Model) validateOperandIndexes(what string, indexes []uint32) error {
	var err error
	for _, idx := range indexes {
		if int(idx) >= len(m.Operands) {
			err = multierr.Append(err, errors.Errorf("%s: operand index %d out of range (%d operands)", what, idx, len(m.Operands)))
		}
	}
	return err
}
