package identity

import (
	"sync"

	"github.com/gogpu/gpuactor/id"
)

// Allocator manufactures identifiers for one backend tag and recycles freed
// indices with a bumped generation. Clients use it to assign identifiers
// before sending create commands; the actor never does.
//
// Allocator is safe for concurrent use.
type Allocator struct {
	mu          sync.Mutex
	backend     id.Backend
	generations []uint32
	free        []uint32
}

// NewAllocator returns an allocator for backend.
func NewAllocator(backend id.Backend) *Allocator {
	return &Allocator{backend: backend}
}

// Backend returns the tag stamped on every identifier.
func (a *Allocator) Backend() id.Backend {
	return a.backend
}

// Alloc returns a fresh identifier. Recycled indices come back with a newer
// generation, so stale copies of the old identifier stop matching.
func (a *Allocator) Alloc() id.ID {
	a.mu.Lock()
	defer a.mu.Unlock()

	if n := len(a.free); n > 0 {
		index := a.free[n-1]
		a.free = a.free[:n-1]
		return id.New(index, a.generations[index], a.backend)
	}

	index := uint32(len(a.generations))
	a.generations = append(a.generations, 1)
	return id.New(index, 1, a.backend)
}

// Free retires i. It returns false when i is foreign, stale or already free.
func (a *Allocator) Free(i id.ID) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if i.Backend != a.backend || int(i.Index) >= len(a.generations) {
		return false
	}
	if a.generations[i.Index] != i.Generation {
		return false
	}

	next := (i.Generation + 1) & id.MaxGeneration
	if next == 0 {
		next = 1
	}
	a.generations[i.Index] = next
	a.free = append(a.free, i.Index)
	return true
}
