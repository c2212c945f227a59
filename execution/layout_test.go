package execution

import (
	"math"
	"testing"

	"github.com/nnrt/nnrt"
	"github.com/nnrt/nnrt/memory"
	"github.com/nnrt/nnrt/model"
	"github.com/stretchr/testify/require"
)

func pointerArg(t *testing.T, size int) *ArgumentInfo {
	t.Helper()
	operand := &model.Operand{Type: model.TensorQuant8Asymm, Dimensions: []uint32{uint32(size)}}
	info, code := NewPointerInput(operand, nil, make([]byte, size))
	require.Equal(t, nnrt.NoError, code)
	return info
}

func TestLayoutPointerArguments(t *testing.T) {
	t.Run("no pointer arguments is a no-op", func(t *testing.T) {
		var tracker memory.Tracker
		args := []*ArgumentInfo{
			NewNoValueArgument(),
			{State: Memory, Location: model.DataLocation{PoolIndex: 0, Offset: 0, Length: 16}},
		}
		region, code := LayoutPointerArguments(&tracker, args)
		require.Equal(t, nnrt.NoError, code)
		require.Nil(t, region)
		require.Equal(t, 0, tracker.Len())
	})

	t.Run("pointer arguments are packed with padding", func(t *testing.T) {
		var tracker memory.Tracker
		args := []*ArgumentInfo{
			pointerArg(t, 1), // offset 0
			pointerArg(t, 4), // aligned up to offset 4
			pointerArg(t, 2), // aligned up to offset 8
			pointerArg(t, 1), // no alignment, offset 10
		}
		region, code := LayoutPointerArguments(&tracker, args)
		require.Equal(t, nnrt.NoError, code)
		require.NotNil(t, region)
		require.Equal(t, 1, tracker.Len())
		require.Equal(t, uint32(11), region.Size())

		require.Equal(t, uint32(0), args[0].Location.Offset)
		require.Equal(t, uint32(4), args[1].Location.Offset)
		require.Equal(t, uint32(8), args[2].Location.Offset)
		require.Equal(t, uint32(10), args[3].Location.Offset)
		for _, info := range args {
			require.Equal(t, uint32(0), info.Location.PoolIndex)
		}
	})

	t.Run("pool index follows already registered pools", func(t *testing.T) {
		var tracker memory.Tracker
		existing, err := memory.NewRegion(8)
		require.NoError(t, err)
		tracker.Add(existing)

		args := []*ArgumentInfo{pointerArg(t, 4)}
		region, code := LayoutPointerArguments(&tracker, args)
		require.Equal(t, nnrt.NoError, code)
		require.NotNil(t, region)
		require.Equal(t, uint32(1), args[0].Location.PoolIndex)
	})

	t.Run("total above 2^32-1 fails with BadData and allocates nothing", func(t *testing.T) {
		var tracker memory.Tracker
		// Fake large pointer arguments without backing allocations.
		big := &ArgumentInfo{State: Pointer, Location: model.DataLocation{PoolIndex: 3, Offset: 21, Length: math.MaxUint32}}
		small := &ArgumentInfo{State: Pointer, Location: model.DataLocation{PoolIndex: 5, Offset: 7, Length: 16}}
		region, code := LayoutPointerArguments(&tracker, []*ArgumentInfo{big, small})
		require.Equal(t, nnrt.BadData, code)
		require.Nil(t, region)
		require.Equal(t, 0, tracker.Len())

		// A failed layout leaves the bindings untouched.
		require.Equal(t, model.DataLocation{PoolIndex: 3, Offset: 21, Length: math.MaxUint32}, big.Location)
		require.Equal(t, model.DataLocation{PoolIndex: 5, Offset: 7, Length: 16}, small.Location)
	})
}

func TestAlignBytesNeeded(t *testing.T) {
	tests := []struct {
		offset, length, want uint32
	}{
		{0, 8, 0},
		{1, 1, 0},
		{1, 2, 1},
		{1, 4, 3},
		{2, 4, 2},
		{3, 4, 1},
		{4, 4, 0},
		{6, 8, 2},
	}
	for _, test := range tests {
		require.Equal(t, test.want, alignBytesNeeded(test.offset, test.length),
			"alignBytesNeeded(%d, %d)", test.offset, test.length)
	}

	// Monotonic: padded offsets never decrease as the start offset grows.
	prev := uint32(0)
	for offset := uint32(0); offset < 64; offset++ {
		padded := offset + alignBytesNeeded(offset, 4)
		require.GreaterOrEqual(t, padded, prev)
		prev = padded
	}
}

func TestCopyPointerInputsAndOutputs(t *testing.T) {
	var tracker memory.Tracker
	in := pointerArg(t, 4)
	copy(in.Buffer, []byte{1, 2, 3, 4})
	region, code := LayoutPointerArguments(&tracker, []*ArgumentInfo{in})
	require.Equal(t, nnrt.NoError, code)

	CopyPointerInputs(region, []*ArgumentInfo{in})
	require.Equal(t, []byte{1, 2, 3, 4}, region.Bytes()[:4])

	out := pointerArg(t, 4)
	var outTracker memory.Tracker
	outRegion, code := LayoutPointerArguments(&outTracker, []*ArgumentInfo{out})
	require.Equal(t, nnrt.NoError, code)
	copy(outRegion.Bytes(), []byte{9, 8, 7, 6})
	CopyPointerOutputs(outRegion, []*ArgumentInfo{out})
	require.Equal(t, []byte{9, 8, 7, 6}, out.Buffer)
}

func TestUpdateDimensions(t *testing.T) {
	operand := &model.Operand{Type: model.TensorFloat32, Dimensions: []uint32{2, 0}}

	t.Run("override resolves unspecified dimensions", func(t *testing.T) {
		info, code := NewPointerInput(operand, []uint32{2, 3}, make([]byte, 24))
		require.Equal(t, nnrt.NoError, code)
		require.Equal(t, []uint32{2, 3}, info.Dimensions)
	})
	t.Run("override cannot contradict specified dimensions", func(t *testing.T) {
		_, code := NewPointerInput(operand, []uint32{3, 3}, make([]byte, 36))
		require.Equal(t, nnrt.BadData, code)
	})
	t.Run("missing override for unspecified input dimensions", func(t *testing.T) {
		_, code := NewPointerInput(operand, nil, make([]byte, 8))
		require.Equal(t, nnrt.BadData, code)
	})
	t.Run("outputs may stay unspecified", func(t *testing.T) {
		info, code := NewPointerOutput(operand, nil, make([]byte, 8))
		require.Equal(t, nnrt.NoError, code)
		require.Empty(t, info.Dimensions)
	})
	t.Run("nil buffer", func(t *testing.T) {
		_, code := NewPointerInput(operand, []uint32{2, 3}, nil)
		require.Equal(t, nnrt.UnexpectedNull, code)
	})
}
