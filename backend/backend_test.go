package backend

import (
	"errors"
	"testing"

	"github.com/gogpu/gpuactor/id"
)

func TestStorageGenerationCheck(t *testing.T) {
	s := NewStorage[string](id.KindBuffer)
	live := id.New(3, 2, id.Vulkan)
	if err := s.Insert(live, "a"); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	tests := []struct {
		name string
		id   id.ID
		ok   bool
	}{
		{"exact", live, true},
		{"older generation", id.New(3, 1, id.Vulkan), false},
		{"newer generation", id.New(3, 3, id.Vulkan), false},
		{"other backend", id.New(3, 2, id.Metal), false},
		{"unknown index", id.New(4, 2, id.Vulkan), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := s.Get(tt.id)
			if tt.ok {
				if err != nil || v != "a" {
					t.Errorf("Get(%v) = %q, %v", tt.id, v, err)
				}
				return
			}
			if !errors.Is(err, ErrStaleHandle) {
				t.Errorf("Get(%v) error = %v, want ErrStaleHandle", tt.id, err)
			}
		})
	}
}

func TestStorageInsertRemove(t *testing.T) {
	s := NewStorage[int](id.KindTexture)
	a := id.New(1, 1, id.Software)

	if err := s.Insert(id.ID{}, 1); !errors.Is(err, ErrStaleHandle) {
		t.Errorf("Insert(zero) error = %v, want ErrStaleHandle", err)
	}
	if err := s.Insert(a, 1); err != nil {
		t.Fatal(err)
	}
	if err := s.Insert(id.New(1, 2, id.Software), 2); !errors.Is(err, ErrDuplicateHandle) {
		t.Errorf("Insert(occupied index) error = %v, want ErrDuplicateHandle", err)
	}
	if _, err := s.Remove(id.New(1, 2, id.Software)); !errors.Is(err, ErrStaleHandle) {
		t.Errorf("Remove(wrong generation) error = %v, want ErrStaleHandle", err)
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d after failed remove, want 1", s.Len())
	}
	if v, err := s.Remove(a); err != nil || v != 1 {
		t.Errorf("Remove() = %d, %v", v, err)
	}
	if s.Contains(a) {
		t.Error("Contains() after Remove")
	}
	// The index is free again for the next generation.
	if err := s.Insert(id.New(1, 2, id.Software), 3); err != nil {
		t.Errorf("Insert(recycled) error = %v", err)
	}
}

func TestStorageRangeAndDrain(t *testing.T) {
	s := NewStorage[uint32](id.KindSampler)
	for _, i := range []uint32{5, 1, 3} {
		if err := s.Insert(id.New(i, 1, id.Empty), i); err != nil {
			t.Fatal(err)
		}
	}
	var order []uint32
	s.Range(func(_ id.ID, v uint32) bool {
		order = append(order, v)
		return true
	})
	if len(order) != 3 || order[0] != 1 || order[1] != 3 || order[2] != 5 {
		t.Errorf("Range order = %v, want [1 3 5]", order)
	}

	drained := s.Drain()
	if len(drained) != 3 || s.Len() != 0 {
		t.Errorf("Drain() = %v, Len() = %d", drained, s.Len())
	}
}

func TestDeviceTypeString(t *testing.T) {
	if DeviceTypeDiscreteGPU.String() != "discrete" {
		t.Errorf("DeviceTypeDiscreteGPU.String() = %q", DeviceTypeDiscreteGPU.String())
	}
	if DeviceType(99).String() != "other" {
		t.Errorf("DeviceType(99).String() = %q", DeviceType(99).String())
	}
}
