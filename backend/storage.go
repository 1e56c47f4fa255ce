package backend

import (
	"fmt"
	"maps"
	"slices"

	"github.com/gogpu/gpuactor/id"
)

// Storage maps caller-assigned identifiers to backend resources.
//
// A lookup succeeds only when index, generation and tag all match the
// registered identifier. Storage is not safe for concurrent use; it is
// owned by the actor goroutine.
type Storage[T any] struct {
	kind    id.Kind
	entries map[uint32]entry[T]
}

type entry[T any] struct {
	id    id.ID
	value T
}

// NewStorage returns an empty storage for resources of kind.
func NewStorage[T any](kind id.Kind) *Storage[T] {
	return &Storage[T]{kind: kind, entries: make(map[uint32]entry[T])}
}

// Kind returns the resource kind held by s.
func (s *Storage[T]) Kind() id.Kind { return s.kind }

// Insert registers v under i.
func (s *Storage[T]) Insert(i id.ID, v T) error {
	if i.IsZero() {
		return fmt.Errorf("%w: zero %s id", ErrStaleHandle, s.kind)
	}
	if e, ok := s.entries[i.Index]; ok {
		return fmt.Errorf("%w: %s %v (live %v)", ErrDuplicateHandle, s.kind, i, e.id)
	}
	s.entries[i.Index] = entry[T]{id: i, value: v}
	return nil
}

// Get returns the resource registered under i.
func (s *Storage[T]) Get(i id.ID) (T, error) {
	e, ok := s.entries[i.Index]
	if !ok || e.id != i {
		var zero T
		return zero, fmt.Errorf("%w: %s %v", ErrStaleHandle, s.kind, i)
	}
	return e.value, nil
}

// Contains reports whether i names a live resource.
func (s *Storage[T]) Contains(i id.ID) bool {
	e, ok := s.entries[i.Index]
	return ok && e.id == i
}

// Remove unregisters i and returns its resource.
func (s *Storage[T]) Remove(i id.ID) (T, error) {
	v, err := s.Get(i)
	if err != nil {
		return v, err
	}
	delete(s.entries, i.Index)
	return v, nil
}

// Len returns the number of live resources.
func (s *Storage[T]) Len() int { return len(s.entries) }

// Range calls fn for every live resource in index order until fn returns
// false.
func (s *Storage[T]) Range(fn func(id.ID, T) bool) {
	for _, idx := range slices.Sorted(maps.Keys(s.entries)) {
		e := s.entries[idx]
		if !fn(e.id, e.value) {
			return
		}
	}
}

// Drain removes every resource and returns them in index order.
func (s *Storage[T]) Drain() []T {
	out := make([]T, 0, len(s.entries))
	s.Range(func(_ id.ID, v T) bool {
		out = append(out, v)
		return true
	})
	clear(s.entries)
	return out
}
