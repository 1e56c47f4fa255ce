package software

import (
	"bytes"
	"errors"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/gpuactor/backend"
	"github.com/gogpu/gpuactor/id"
	"github.com/gogpu/gpuactor/protocol"
)

var (
	testAdapter = id.New(0, 1, id.Software)
	testDevice  = id.New(0, 1, id.Software)
)

// newTestDevice returns a backend with one adopted adapter and one device.
func newTestDevice(t *testing.T, opts ...Option) *Backend {
	t.Helper()
	b := New(opts...)
	exposed, err := b.Expose(protocol.AdapterOptions{})
	if err != nil {
		t.Fatalf("Expose() error = %v", err)
	}
	if _, err := b.AdoptAdapter(testAdapter, exposed[0]); err != nil {
		t.Fatalf("AdoptAdapter() error = %v", err)
	}
	if err := b.RequestDevice(testAdapter, protocol.DefaultDeviceDescriptor(), testDevice); err != nil {
		t.Fatalf("RequestDevice() error = %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func mustBuffer(t *testing.T, b *Backend, buf id.ID, size uint64) {
	t.Helper()
	err := b.CreateBuffer(testDevice, buf, protocol.BufferDescriptor{
		Size:  size,
		Usage: gputypes.BufferUsageCopySrc | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		t.Fatalf("CreateBuffer(%v) error = %v", buf, err)
	}
}

func TestExposeReportsConfiguredAdapter(t *testing.T) {
	b := New(WithTag(id.Vulkan), WithAdapter("fake discrete", backend.DeviceTypeDiscreteGPU))
	if b.Tag() != id.Vulkan {
		t.Errorf("Tag() = %v, want vulkan", b.Tag())
	}
	exposed, err := b.Expose(protocol.AdapterOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(exposed) != 1 {
		t.Fatalf("len(Expose()) = %d, want 1", len(exposed))
	}
	info := exposed[0].Info
	if info.Name != "fake discrete" || info.DeviceType != backend.DeviceTypeDiscreteGPU || info.Backend != id.Vulkan {
		t.Errorf("Info = %+v", info)
	}
}

func TestCopyBufferToBufferOnSubmit(t *testing.T) {
	b := newTestDevice(t)
	src := id.New(1, 1, id.Software)
	dst := id.New(2, 1, id.Software)
	enc := id.New(3, 1, id.Software)
	mustBuffer(t, b, src, 16)
	mustBuffer(t, b, dst, 16)

	if err := b.WriteBuffer(testDevice, src, 0, []byte{1, 2, 3, 4, 5, 6, 7, 8}); err != nil {
		t.Fatalf("WriteBuffer() error = %v", err)
	}
	if err := b.CreateCommandEncoder(testDevice, enc, protocol.CommandEncoderDescriptor{Label: "copy"}); err != nil {
		t.Fatal(err)
	}
	if err := b.CopyBufferToBuffer(enc, src, 4, dst, 8, 4); err != nil {
		t.Fatalf("CopyBufferToBuffer() error = %v", err)
	}

	// Copies execute at submission, not at recording.
	got, _ := b.ReadBuffer(dst)
	if !bytes.Equal(got, make([]byte, 16)) {
		t.Errorf("dst before submit = %v, want zeros", got)
	}

	if err := b.FinishCommandEncoder(enc); err != nil {
		t.Fatal(err)
	}
	if err := b.Submit(testDevice, []id.ID{enc}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	got, err := b.ReadBuffer(dst)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{0, 0, 0, 0, 0, 0, 0, 0, 5, 6, 7, 8, 0, 0, 0, 0}
	if !bytes.Equal(got, want) {
		t.Errorf("dst = %v, want %v", got, want)
	}
	if n := b.Live(id.KindCommandBuffer); n != 0 {
		t.Errorf("live command buffers after submit = %d, want 0", n)
	}
}

func TestStaleHandles(t *testing.T) {
	b := newTestDevice(t)
	buf := id.New(1, 1, id.Software)
	mustBuffer(t, b, buf, 4)

	stale := id.New(1, 2, id.Software)
	if err := b.DestroyBuffer(stale); !errors.Is(err, backend.ErrStaleHandle) {
		t.Errorf("DestroyBuffer(newer generation) error = %v, want ErrStaleHandle", err)
	}
	if _, err := b.ReadBuffer(buf); err != nil {
		t.Errorf("buffer was affected by stale destroy: %v", err)
	}

	if err := b.DestroyBuffer(buf); err != nil {
		t.Fatal(err)
	}
	if err := b.DestroyBuffer(buf); !errors.Is(err, backend.ErrStaleHandle) {
		t.Errorf("double DestroyBuffer() error = %v, want ErrStaleHandle", err)
	}
	if err := b.CreateBuffer(id.New(9, 1, id.Software), id.New(2, 1, id.Software), protocol.BufferDescriptor{Size: 4}); !errors.Is(err, backend.ErrStaleHandle) {
		t.Errorf("CreateBuffer(unknown device) error = %v, want ErrStaleHandle", err)
	}
}

func TestEncoderStateMachine(t *testing.T) {
	b := newTestDevice(t)
	enc := id.New(5, 1, id.Software)
	if err := b.CreateCommandEncoder(testDevice, enc, protocol.CommandEncoderDescriptor{}); err != nil {
		t.Fatal(err)
	}
	if err := b.Submit(testDevice, []id.ID{enc}); !errors.Is(err, ErrNotFinished) {
		t.Errorf("Submit(unfinished) error = %v, want ErrNotFinished", err)
	}
	if err := b.FinishCommandEncoder(enc); err != nil {
		t.Fatal(err)
	}
	if err := b.FinishCommandEncoder(enc); !errors.Is(err, ErrEncoderFinished) {
		t.Errorf("second FinishCommandEncoder() error = %v, want ErrEncoderFinished", err)
	}
	if err := b.RunComputePass(enc, &protocol.ComputePass{}); !errors.Is(err, ErrEncoderFinished) {
		t.Errorf("RunComputePass(finished) error = %v, want ErrEncoderFinished", err)
	}
}

// finishedCopy records and finishes an encoder copying size bytes from
// src to dst.
func finishedCopy(t *testing.T, b *Backend, enc, src, dst id.ID, size uint64) {
	t.Helper()
	if err := b.CreateCommandEncoder(testDevice, enc, protocol.CommandEncoderDescriptor{}); err != nil {
		t.Fatal(err)
	}
	if err := b.CopyBufferToBuffer(enc, src, 0, dst, 0, size); err != nil {
		t.Fatal(err)
	}
	if err := b.FinishCommandEncoder(enc); err != nil {
		t.Fatal(err)
	}
}

func TestFailedSubmitRunsNothing(t *testing.T) {
	b := newTestDevice(t)
	src := id.New(1, 1, id.Software)
	dst := id.New(2, 1, id.Software)
	gone := id.New(3, 1, id.Software)
	e1 := id.New(4, 1, id.Software)
	e2 := id.New(5, 1, id.Software)
	e3 := id.New(6, 1, id.Software)
	mustBuffer(t, b, src, 4)
	mustBuffer(t, b, dst, 4)
	mustBuffer(t, b, gone, 4)
	if err := b.WriteBuffer(testDevice, src, 0, []byte{1, 2, 3, 4}); err != nil {
		t.Fatal(err)
	}
	finishedCopy(t, b, e1, src, dst, 4)
	finishedCopy(t, b, e2, src, gone, 4)
	if err := b.DestroyBuffer(gone); err != nil {
		t.Fatal(err)
	}
	if err := b.CreateCommandEncoder(testDevice, e3, protocol.CommandEncoderDescriptor{}); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		bufs []id.ID
		want error
	}{
		{"unfinished", []id.ID{e1, e3}, ErrNotFinished},
		{"destroyed destination", []id.ID{e1, e2}, backend.ErrStaleHandle},
		{"duplicate", []id.ID{e1, e1}, backend.ErrInvalidDescriptor},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := b.Submit(testDevice, tt.bufs); !errors.Is(err, tt.want) {
				t.Errorf("Submit() error = %v, want %v", err, tt.want)
			}
			if n := b.Live(id.KindCommandBuffer); n != 3 {
				t.Errorf("live command buffers = %d, want 3", n)
			}
			got, _ := b.ReadBuffer(dst)
			if !bytes.Equal(got, make([]byte, 4)) {
				t.Errorf("dst = %v, want zeros", got)
			}
		})
	}

	if err := b.Submit(testDevice, []id.ID{e1}); err != nil {
		t.Fatalf("Submit(e1) error = %v", err)
	}
	got, _ := b.ReadBuffer(dst)
	if !bytes.Equal(got, []byte{1, 2, 3, 4}) {
		t.Errorf("dst = %v, want [1 2 3 4]", got)
	}
}

func TestBufferBounds(t *testing.T) {
	b := newTestDevice(t, WithMaxBufferSize(64))
	buf := id.New(1, 1, id.Software)
	mustBuffer(t, b, buf, 8)

	if err := b.WriteBuffer(testDevice, buf, 4, make([]byte, 8)); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("WriteBuffer(overflow) error = %v, want ErrOutOfBounds", err)
	}
	if err := b.CreateBuffer(testDevice, id.New(2, 1, id.Software), protocol.BufferDescriptor{Size: 65}); !errors.Is(err, ErrTooLarge) {
		t.Errorf("CreateBuffer(65) error = %v, want ErrTooLarge", err)
	}
}

func TestPassesCheckReferences(t *testing.T) {
	b := newTestDevice(t)
	enc := id.New(1, 1, id.Software)
	if err := b.CreateCommandEncoder(testDevice, enc, protocol.CommandEncoderDescriptor{}); err != nil {
		t.Fatal(err)
	}

	var cp protocol.ComputePass
	cp.SetPipeline(id.New(7, 1, id.Software))
	if err := b.RunComputePass(enc, &cp); !errors.Is(err, backend.ErrStaleHandle) {
		t.Errorf("RunComputePass(unknown pipeline) error = %v, want ErrStaleHandle", err)
	}

	module := id.New(2, 1, id.Software)
	pipeline := id.New(3, 1, id.Software)
	if err := b.CreateShaderModule(testDevice, module, protocol.ShaderModuleDescriptor{WGSL: "@compute @workgroup_size(1) fn main() {}"}); err != nil {
		t.Fatal(err)
	}
	if err := b.CreateComputePipeline(testDevice, pipeline, protocol.ComputePipelineDescriptor{Module: module, EntryPoint: "main"}); err != nil {
		t.Fatal(err)
	}
	cp = protocol.ComputePass{}
	cp.SetPipeline(pipeline)
	cp.Dispatch(1, 1, 1)
	if err := b.RunComputePass(enc, &cp); err != nil {
		t.Errorf("RunComputePass() error = %v", err)
	}
}

func TestEventsInOrder(t *testing.T) {
	b := newTestDevice(t)
	buf := id.New(1, 1, id.Software)
	mustBuffer(t, b, buf, 4)
	if err := b.DestroyBuffer(buf); err != nil {
		t.Fatal(err)
	}

	want := []Event{
		{protocol.OpRequestAdapter, testAdapter},
		{protocol.OpRequestDevice, testDevice},
		{protocol.OpCreateBuffer, buf},
		{protocol.OpDestroyBuffer, buf},
	}
	got := b.Events()
	if len(got) != len(want) {
		t.Fatalf("Events() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Events()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestCloseReleasesEverything(t *testing.T) {
	b := newTestDevice(t)
	mustBuffer(t, b, id.New(1, 1, id.Software), 4)
	if err := b.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !b.Closed() {
		t.Error("Closed() = false after Close")
	}
	if n := b.Live(id.KindBuffer); n != 0 {
		t.Errorf("live buffers after Close = %d", n)
	}
	if err := b.CreateBuffer(testDevice, id.New(2, 1, id.Software), protocol.BufferDescriptor{}); !errors.Is(err, ErrClosed) {
		t.Errorf("CreateBuffer after Close error = %v, want ErrClosed", err)
	}
	if err := b.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}
