package cpu

import (
	"encoding/binary"
	"math"

	"github.com/nnrt/nnrt"
	"github.com/nnrt/nnrt/hal"
	"github.com/nnrt/nnrt/memory"
	"github.com/nnrt/nnrt/model"
	"github.com/x448/float16"
	"k8s.io/klog/v2"
)

// operandSlot is the runtime view of one operand during a single execution.
type operandSlot struct {
	typ    model.OperandType
	dims   []uint32
	buffer []byte
}

func (s *operandSlot) byteSize() uint32 {
	size := s.typ.ElementSize()
	for _, d := range s.dims {
		size *= d
	}
	return size
}

// runModel evaluates the model's operations in list order against one
// request. It returns the driver-level status plus the actual output shapes.
//
// Insufficient output buffers are detected before any computation runs, so a
// StatusOutputInsufficientSize result never has partially written outputs.
func runModel(m *model.Model, request hal.Request, modelPools []*memory.Region) (hal.ErrorStatus, []hal.OutputShape) {
	slots := make([]operandSlot, len(m.Operands))
	for i, operand := range m.Operands {
		slots[i] = operandSlot{typ: operand.Type, dims: operand.Dimensions}
		loc := operand.Location
		switch operand.Lifetime {
		case model.ConstantCopy:
			slots[i].buffer = m.OperandValues[loc.Offset : loc.Offset+loc.Length]
		case model.ConstantReference:
			data := modelPools[loc.PoolIndex].Bytes()
			slots[i].buffer = data[loc.Offset : loc.Offset+loc.Length]
		}
	}

	// requireSize rejects bindings smaller than the operand; only outputs may
	// be undersized, which surfaces through the output-shape protocol below.
	bind := func(indexes []uint32, args []hal.RequestArgument, requireSize bool) hal.ErrorStatus {
		if len(args) != len(indexes) {
			return hal.StatusInvalidArgument
		}
		for i, operandIndex := range indexes {
			arg := args[i]
			if arg.HasNoValue {
				continue
			}
			slot := &slots[operandIndex]
			if len(arg.Dimensions) > 0 {
				slot.dims = arg.Dimensions
			}
			if int(arg.Location.PoolIndex) >= len(request.Pools) {
				return hal.StatusInvalidArgument
			}
			data := request.Pools[arg.Location.PoolIndex].Bytes()
			loc := arg.Location
			if int(loc.Offset)+int(loc.Length) > len(data) {
				return hal.StatusInvalidArgument
			}
			slot.buffer = data[loc.Offset : loc.Offset+loc.Length]
			if requireSize && uint32(len(slot.buffer)) < slot.byteSize() {
				return hal.StatusInvalidArgument
			}
		}
		return hal.StatusNone
	}
	if status := bind(m.InputIndexes, request.Inputs, true); status != hal.StatusNone {
		return status, nil
	}
	if status := bind(m.OutputIndexes, request.Outputs, false); status != hal.StatusNone {
		return status, nil
	}

	// Check output buffer sufficiency up front against the declared shapes.
	outputShapes := make([]hal.OutputShape, len(m.OutputIndexes))
	if !collectOutputShapes(m, slots, outputShapes) {
		return hal.StatusOutputInsufficientSize, outputShapes
	}

	for i := range m.Operations {
		if status := runOperation(m, &m.Operations[i], slots); status != hal.StatusNone {
			klog.Errorf("cpu: operation #%d (type %d) failed with status %s", i, m.Operations[i].Type, status)
			if status == hal.StatusOutputInsufficientSize {
				// An operation widened an output at run time; report the
				// actual shapes so the caller can resize and retry.
				collectOutputShapes(m, slots, outputShapes)
			}
			return status, outputShapes
		}
	}
	return hal.StatusNone, outputShapes
}

// collectOutputShapes fills shapes with the outputs' current dimensions and
// buffer sufficiency, reporting whether all outputs fit.
func collectOutputShapes(m *model.Model, slots []operandSlot, shapes []hal.OutputShape) bool {
	sufficient := true
	for i, operandIndex := range m.OutputIndexes {
		slot := &slots[operandIndex]
		shapes[i] = hal.OutputShape{Dimensions: slot.dims, IsSufficient: true}
		if uint32(len(slot.buffer)) < slot.byteSize() {
			shapes[i].IsSufficient = false
			sufficient = false
		}
	}
	return sufficient
}

func runOperation(m *model.Model, op *model.Operation, slots []operandSlot) hal.ErrorStatus {
	switch op.Type {
	case model.Add:
		return runBinary(m, op, slots, func(a, b float32) float32 { return a + b })
	case model.Sub:
		return runBinary(m, op, slots, func(a, b float32) float32 { return a - b })
	case model.Mul:
		return runBinary(m, op, slots, func(a, b float32) float32 { return a * b })
	case model.Relu:
		return runUnary(m, op, slots, func(a float32) float32 { return max(a, 0) })
	}
	return hal.StatusInvalidArgument
}

// runBinary evaluates an elementwise arithmetic operation with a trailing
// fused-activation scalar input. The reference subset requires both tensor
// inputs to have identical shapes.
func runBinary(m *model.Model, op *model.Operation, slots []operandSlot, fn func(a, b float32) float32) hal.ErrorStatus {
	if len(op.Inputs) != 3 || len(op.Outputs) != 1 {
		return hal.StatusInvalidArgument
	}
	a := &slots[op.Inputs[0]]
	b := &slots[op.Inputs[1]]
	activationBuf := slots[op.Inputs[2]].buffer
	if len(activationBuf) < 4 {
		return hal.StatusInvalidArgument
	}
	activation := nnrt.FusedActivation(readInt32(activationBuf))
	out := &slots[op.Outputs[0]]
	if a.typ != model.TensorFloat32 || b.typ != model.TensorFloat32 {
		return hal.StatusInvalidArgument
	}
	n := int(a.byteSize() / 4)
	if b.byteSize() != a.byteSize() {
		return hal.StatusInvalidArgument
	}
	out.dims = a.dims
	if status := allocateIfNeeded(out); status != hal.StatusNone {
		return status
	}
	for i := 0; i < n; i++ {
		v := fn(readFloat32(a.buffer, i), readFloat32(b.buffer, i))
		if m.RelaxedComputation {
			v = float16.Fromfloat32(v).Float32()
		}
		writeFloat32(out.buffer, i, applyActivation(v, activation))
	}
	return hal.StatusNone
}

func runUnary(m *model.Model, op *model.Operation, slots []operandSlot, fn func(a float32) float32) hal.ErrorStatus {
	if len(op.Inputs) != 1 || len(op.Outputs) != 1 {
		return hal.StatusInvalidArgument
	}
	a := &slots[op.Inputs[0]]
	out := &slots[op.Outputs[0]]
	if a.typ != model.TensorFloat32 {
		return hal.StatusInvalidArgument
	}
	out.dims = a.dims
	if status := allocateIfNeeded(out); status != hal.StatusNone {
		return status
	}
	n := int(a.byteSize() / 4)
	for i := 0; i < n; i++ {
		v := fn(readFloat32(a.buffer, i))
		if m.RelaxedComputation {
			v = float16.Fromfloat32(v).Float32()
		}
		writeFloat32(out.buffer, i, v)
	}
	return hal.StatusNone
}

// allocateIfNeeded backs a temporary operand with fresh storage; bound
// outputs were size-checked before execution started.
func allocateIfNeeded(slot *operandSlot) hal.ErrorStatus {
	size := slot.byteSize()
	if slot.buffer == nil {
		slot.buffer = make([]byte, size)
		return hal.StatusNone
	}
	if uint32(len(slot.buffer)) < size {
		return hal.StatusOutputInsufficientSize
	}
	return hal.StatusNone
}

func applyActivation(v float32, activation nnrt.FusedActivation) float32 {
	switch activation {
	case nnrt.FusedRelu:
		return max(v, 0)
	case nnrt.FusedRelu1:
		return min(max(v, -1), 1)
	case nnrt.FusedRelu6:
		return min(max(v, 0), 6)
	}
	return v
}

func readFloat32(buf []byte, i int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
}

func writeFloat32(buf []byte, i int, v float32) {
	binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
}

func readInt32(buf []byte) int32 {
	return int32(binary.LittleEndian.Uint32(buf))
}
