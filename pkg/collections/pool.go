// Package collections provides generic data structures for efficient data processing.
package collections

import (
	"sync"
)

// SlicePool is a generic pool of reusable slices, used to keep the hot
// per-cell M2L/P2P interaction-list scans in internal/traversal from
// allocating a fresh []int32 on every cell at every level.
type SlicePool[T any] struct {
	pool       sync.Pool
	initialCap int
}

// NewSlicePool creates a new slice pool with the given initial capacity.
func NewSlicePool[T any](initialCap int) *SlicePool[T] {
	if initialCap <= 0 {
		initialCap = 256
	}
	return &SlicePool[T]{
		initialCap: initialCap,
		pool: sync.Pool{
			New: func() interface{} {
				s := make([]T, 0, initialCap)
				return &s
			},
		},
	}
}

// Get gets a slice from the pool.
func (p *SlicePool[T]) Get() *[]T {
	return p.pool.Get().(*[]T)
}

// Put returns a slice to the pool after clearing it.
func (p *SlicePool[T]) Put(s *[]T) {
	*s = (*s)[:0]
	p.pool.Put(s)
}

// Int32SlicePool is the pool GetInt32Slice/PutInt32Slice draw from; cell
// indices are always int32 (pkg/model.Cell's own index fields), so
// this is the one instantiation the traversal package needs. Sized at
// 256 so a leaf's near-field P2P list rarely forces the backing array to
// grow mid-scan.
var Int32SlicePool = NewSlicePool[int32](256)

// GetInt32Slice borrows a scratch []int32 from Int32SlicePool.
func GetInt32Slice() *[]int32 {
	return Int32SlicePool.Get()
}

// PutInt32Slice returns a scratch []int32 to Int32SlicePool.
func PutInt32Slice(s *[]int32) {
	Int32SlicePool.Put(s)
}
