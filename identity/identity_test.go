package identity

import (
	"errors"
	"sync"
	"testing"

	"github.com/gogpu/gpuactor/id"
)

func TestAllocatorRecyclesWithNewGeneration(t *testing.T) {
	a := NewAllocator(id.Vulkan)

	first := a.Alloc()
	if first.Index != 0 || first.Generation != 1 || first.Backend != id.Vulkan {
		t.Fatalf("first Alloc() = %v", first)
	}
	if !a.Free(first) {
		t.Fatal("Free(first) = false")
	}
	if a.Free(first) {
		t.Error("double Free should fail")
	}

	again := a.Alloc()
	if again.Index != first.Index {
		t.Errorf("recycled index = %d, want %d", again.Index, first.Index)
	}
	if again.Generation != 2 {
		t.Errorf("recycled generation = %d, want 2", again.Generation)
	}
}

func TestAllocatorRejectsForeign(t *testing.T) {
	a := NewAllocator(id.Metal)
	a.Alloc()
	if a.Free(id.New(0, 1, id.Vulkan)) {
		t.Error("Free accepted an id of another backend")
	}
	if a.Free(id.New(5, 1, id.Metal)) {
		t.Error("Free accepted an index never allocated")
	}
}

func TestAllocatorConcurrent(t *testing.T) {
	a := NewAllocator(id.Software)
	const n = 64
	ids := make(chan id.ID, n)

	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids <- a.Alloc()
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[id.ID]bool)
	for i := range ids {
		if seen[i] {
			t.Fatalf("duplicate id %v", i)
		}
		seen[i] = true
	}
}

func TestRecyclerForwards(t *testing.T) {
	sink := make(chan Msg, 2)
	r := NewRecycler(sink)
	b := id.New(1, 1, id.Empty)

	r.Process(id.KindBuffer, b)
	r.Free(id.KindBuffer, b)

	if m := <-sink; m.Type != MsgAssigned || m.ID != b || m.Kind != id.KindBuffer {
		t.Errorf("first msg = %+v", m)
	}
	if m := <-sink; m.Type != MsgFreed {
		t.Errorf("second msg = %+v", m)
	}
}

func TestSendNeverBlocks(t *testing.T) {
	sink := make(chan Msg, 1)
	if err := Send(sink, Exit); err != nil {
		t.Fatalf("Send() = %v", err)
	}
	if err := Send(sink, Exit); !errors.Is(err, ErrDownstreamFull) {
		t.Errorf("Send() on full sink = %v, want ErrDownstreamFull", err)
	}
	if err := Send(nil, Exit); !errors.Is(err, ErrDownstreamFull) {
		t.Errorf("Send() on nil sink = %v, want ErrDownstreamFull", err)
	}
}
