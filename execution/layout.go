package execution

import (
	"math"

	"github.com/nnrt/nnrt"
	"github.com/nnrt/nnrt/memory"
	"golang.org/x/exp/constraints"
	"k8s.io/klog/v2"
)

// alignBytesNeeded returns the padding to insert before an argument of the
// given length starting at offset. Arguments shorter than 2 bytes need no
// alignment, shorter than 4 bytes align to 2, everything else aligns to 4.
// Deterministic and monotonic in offset.
func alignBytesNeeded[T constraints.Unsigned](offset T, length T) T {
	var pattern T
	switch {
	case length < 2:
		pattern = 0
	case length < 4:
		pattern = 1
	default:
		pattern = 3
	}
	return (^(offset - 1)) & pattern
}

// LayoutPointerArguments places every pointer-bound argument of args into a
// single new pool: it computes padded offsets, allocates one region of the
// total size, registers it with the tracker and rewrites each pointer
// argument's location to (poolIndex, offset, length).
//
// It does not copy any data. If no argument is pointer-bound it is a no-op
// and returns a nil region. Inputs and outputs are laid out by separate
// calls, so drivers can treat input pools as read-only.
func LayoutPointerArguments(tracker *memory.Tracker, args []*ArgumentInfo) (*memory.Region, nnrt.ResultCode) {
	nextPoolIndex := uint32(tracker.Len())
	var staged []*ArgumentInfo
	var offsets []uint64
	var total uint64
	for _, info := range args {
		if info.State != Pointer {
			continue
		}
		total += alignBytesNeeded(total, uint64(info.Location.Length))
		staged = append(staged, info)
		offsets = append(offsets, total)
		total += uint64(info.Location.Length)
	}
	// Locations are rewritten only once the layout is known to fit, so a
	// failed layout leaves the bindings untouched.
	if total > math.MaxUint32 {
		klog.Errorf("execution: size of all pointer-bound arguments exceeds 2^32-1 (%d bytes)", total)
		return nil, nnrt.BadData
	}
	if total == 0 {
		return nil, nnrt.NoError
	}
	region, err := memory.NewRegion(uint32(total))
	if err != nil {
		klog.Errorf("execution: failed to allocate %d-byte argument pool: %+v", total, err)
		return nil, nnrt.OutOfMemory
	}
	tracker.Add(region)
	for i, info := range staged {
		info.Location.PoolIndex = nextPoolIndex
		info.Location.Offset = uint32(offsets[i])
	}
	return region, nnrt.NoError
}

// CopyPointerInputs copies every pointer-bound argument's bytes into its
// staged location inside region. Called once before dispatch.
func CopyPointerInputs(region *memory.Region, args []*ArgumentInfo) {
	if region == nil {
		return
	}
	data := region.Bytes()
	for _, info := range args {
		if info.State != Pointer {
			continue
		}
		loc := info.Location
		copy(data[loc.Offset:loc.Offset+loc.Length], info.Buffer)
	}
}

// CopyPointerOutputs copies every pointer-bound argument's staged bytes back
// into the caller's buffer. Called once, only after a successful execution.
func CopyPointerOutputs(region *memory.Region, args []*ArgumentInfo) {
	if region == nil {
		return
	}
	data := region.Bytes()
	for _, info := range args {
		if info.State != Pointer {
			continue
		}
		loc := info.Location
		copy(info.Buffer, data[loc.Offset:loc.Offset+loc.Length])
	}
}
