// Package memory provides the shared-memory pool abstraction used to move
// argument data between the runtime and execution backends.
//
// A Region stands in for a platform shared-memory object: out-of-process
// drivers address argument data as (pool index, offset, length) triples into
// a list of regions, never as raw pointers. A Tracker holds the ordered list
// of regions referenced by one execution.
package memory

import (
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// nextRegionKey hands out process-unique region keys, used by burst
// controllers to recognize regions across repeated executions.
var nextRegionKey atomic.Int64

// Region is one shared memory pool. It is either allocated by the runtime
// (NewRegion) or wraps a buffer that already exists (FromBuffer).
type Region struct {
	data []byte
	key  int64
}

// NewRegion allocates a zeroed region of size bytes.
func NewRegion(size uint32) (*Region, error) {
	if size == 0 {
		return nil, errors.New("memory: cannot allocate an empty region")
	}
	klog.V(2).Infof("memory: allocating %s pool", humanize.IBytes(uint64(size)))
	return &Region{
		data: make([]byte, size),
		key:  nextRegionKey.Add(1),
	}, nil
}

// FromBuffer wraps an existing buffer as a region without copying.
// The caller keeps ownership of buf and must keep it alive while the region
// is registered.
func FromBuffer(buf []byte) *Region {
	return &Region{
		data: buf,
		key:  nextRegionKey.Add(1),
	}
}

// Bytes returns the region's backing storage.
func (r *Region) Bytes() []byte { return r.data }

// Size returns the region length in bytes.
func (r *Region) Size() uint32 { return uint32(len(r.data)) }

// Key returns a process-unique identity for the region, stable for its
// lifetime.
func (r *Region) Key() int64 { return r.key }

// Tracker is the ordered set of regions referenced by one execution.
//
// Indices are dense and assigned in registration order, starting at zero.
// A tracker is exclusively owned by one execution: it is appended to while
// the execution's arguments are staged, then frozen before dispatch.
type Tracker struct {
	regions []*Region
	frozen  bool
}

// Add registers a region and returns its pool index.
// It panics if called after Freeze: by then the pool list has already been
// handed to a backend.
func (t *Tracker) Add(r *Region) uint32 {
	if t.frozen {
		exceptions.Panicf("memory.Tracker: Add called after Freeze")
	}
	if r == nil {
		exceptions.Panicf("memory.Tracker: Add called with a nil region")
	}
	t.regions = append(t.regions, r)
	return uint32(len(t.regions) - 1)
}

// Freeze marks the pool list immutable. Idempotent.
func (t *Tracker) Freeze() { t.frozen = true }

// Len returns the number of registered regions.
func (t *Tracker) Len() int { return len(t.regions) }

// At returns the region registered under the given pool index.
func (t *Tracker) At(index uint32) *Region {
	if int(index) >= len(t.regions) {
		exceptions.Panicf("memory.Tracker: pool index %d out of range (%d pools)", index, len(t.regions))
	}
	return t.regions[index]
}

// Regions returns the dense region list in registration order.
func (t *Tracker) Regions() []*Region { return t.regions }
