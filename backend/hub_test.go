package backend_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/gpuactor/backend"
	"github.com/gogpu/gpuactor/backend/software"
	"github.com/gogpu/gpuactor/id"
	"github.com/gogpu/gpuactor/identity"
	"github.com/gogpu/gpuactor/protocol"
)

// recorder is an identity.Handler that remembers every notification.
type recorder struct {
	msgs []identity.Msg
}

func (r *recorder) Process(kind id.Kind, i id.ID) {
	r.msgs = append(r.msgs, identity.Msg{Type: identity.MsgAssigned, Kind: kind, ID: i})
}

func (r *recorder) Free(kind id.Kind, i id.ID) {
	r.msgs = append(r.msgs, identity.Msg{Type: identity.MsgFreed, Kind: kind, ID: i})
}

// panicky panics on CreateBuffer.
type panicky struct {
	*software.Backend
}

func (panicky) CreateBuffer(id.ID, id.ID, protocol.BufferDescriptor) error {
	panic("driver exploded")
}

// slowQueue submits like the software backend but reports that the queue
// did not finish in time.
type slowQueue struct {
	*software.Backend
}

func (q slowQueue) Submit(queue id.ID, bufs []id.ID) error {
	if err := q.Backend.Submit(queue, bufs); err != nil {
		return err
	}
	return fmt.Errorf("%w: fence not signaled", backend.ErrQueueTimeout)
}

func newHub(t *testing.T, bs ...backend.Backend) (*backend.Hub, *recorder) {
	t.Helper()
	table, err := backend.NewTable(bs...)
	if err != nil {
		t.Fatalf("NewTable() error = %v", err)
	}
	rec := &recorder{}
	hub := backend.NewHub(table, rec)
	t.Cleanup(func() { _ = hub.Close() })
	return hub, rec
}

// openDevice adopts an adapter and opens a device on the software tag.
func openDevice(t *testing.T, hub *backend.Hub, tag id.Backend) id.ID {
	t.Helper()
	adapter, _, err := hub.PickAdapter(protocol.AdapterOptions{}, []id.ID{id.New(0, 1, tag)}, nil)
	if err != nil {
		t.Fatalf("PickAdapter() error = %v", err)
	}
	dev := id.New(0, 1, tag)
	if err := hub.RequestDevice(adapter, protocol.DefaultDeviceDescriptor(), dev); err != nil {
		t.Fatalf("RequestDevice() error = %v", err)
	}
	return dev
}

func TestTableRegister(t *testing.T) {
	table, err := backend.NewTable(software.New())
	if err != nil {
		t.Fatal(err)
	}
	if err := table.Register(software.New()); !errors.Is(err, backend.ErrDuplicateBackend) {
		t.Errorf("Register(duplicate) error = %v, want ErrDuplicateBackend", err)
	}
	if err := table.Register(software.New(software.WithTag(id.Vulkan))); err != nil {
		t.Fatal(err)
	}
	tags := table.Tags()
	if len(tags) != 2 || tags[0] != id.Software || tags[1] != id.Vulkan {
		t.Errorf("Tags() = %v, want [software vulkan]", tags)
	}
	if _, err := table.Lookup(id.Metal); !errors.Is(err, backend.ErrUnknownBackend) {
		t.Errorf("Lookup(metal) error = %v, want ErrUnknownBackend", err)
	}
}

func TestPickAdapterSkipsUnavailable(t *testing.T) {
	hub, rec := newHub(t, software.New())
	a := id.New(0, 1, id.Metal)
	b := id.New(0, 1, id.Software)

	got, info, err := hub.PickAdapter(protocol.AdapterOptions{}, []id.ID{a, b}, nil)
	if err != nil {
		t.Fatalf("PickAdapter() error = %v", err)
	}
	if got != b {
		t.Errorf("PickAdapter() = %v, want %v", got, b)
	}
	if info.Name != "software" {
		t.Errorf("info.Name = %q", info.Name)
	}
	if len(rec.msgs) != 1 || rec.msgs[0].Kind != id.KindAdapter || rec.msgs[0].ID != b {
		t.Errorf("notifications = %v", rec.msgs)
	}
}

func TestPickAdapterPowerPreference(t *testing.T) {
	candidates := []id.ID{id.New(0, 1, id.Metal), id.New(0, 1, id.Vulkan)}

	tests := []struct {
		pref protocol.PowerPreference
		want id.Backend
	}{
		{protocol.PowerPreferenceNone, id.Metal},
		{protocol.PowerPreferenceLowPower, id.Metal},
		{protocol.PowerPreferenceHighPerformance, id.Vulkan},
	}
	for _, tt := range tests {
		hub, _ := newHub(t,
			software.New(software.WithTag(id.Metal), software.WithAdapter("igpu", backend.DeviceTypeIntegratedGPU)),
			software.New(software.WithTag(id.Vulkan), software.WithAdapter("dgpu", backend.DeviceTypeDiscreteGPU)),
		)
		got, _, err := hub.PickAdapter(protocol.AdapterOptions{PowerPreference: tt.pref}, candidates, nil)
		if err != nil {
			t.Fatalf("PickAdapter(%d) error = %v", tt.pref, err)
		}
		if got.Backend != tt.want {
			t.Errorf("PickAdapter(%d) = %v, want %s", tt.pref, got, tt.want)
		}
	}
}

func TestPickAdapterNoMatch(t *testing.T) {
	hub, _ := newHub(t, software.New())
	skipAll := func(id.ID) bool { return true }

	if _, _, err := hub.PickAdapter(protocol.AdapterOptions{}, []id.ID{id.New(0, 1, id.Software)}, skipAll); !errors.Is(err, backend.ErrNoAdapter) {
		t.Errorf("PickAdapter(all skipped) error = %v, want ErrNoAdapter", err)
	}
	if _, _, err := hub.PickAdapter(protocol.AdapterOptions{}, nil, nil); !errors.Is(err, backend.ErrNoAdapter) {
		t.Errorf("PickAdapter(nil) error = %v, want ErrNoAdapter", err)
	}

	gpuOnly, _ := newHub(t, software.New(software.WithAdapter("gpu", backend.DeviceTypeDiscreteGPU)))
	if _, _, err := gpuOnly.PickAdapter(protocol.AdapterOptions{ForceFallback: true}, []id.ID{id.New(0, 1, id.Software)}, nil); !errors.Is(err, backend.ErrNoAdapter) {
		t.Errorf("PickAdapter(force fallback, gpu only) error = %v, want ErrNoAdapter", err)
	}
}

func TestDispatchUnknownBackend(t *testing.T) {
	hub, _ := newHub(t, software.New())
	err := hub.Dispatch(protocol.DestroyBuffer{BufferID: id.New(1, 1, id.DX12)})
	if !errors.Is(err, backend.ErrUnknownBackend) {
		t.Errorf("Dispatch() error = %v, want ErrUnknownBackend", err)
	}
}

func TestDispatchBackendMismatch(t *testing.T) {
	hub, _ := newHub(t, software.New())
	dev := openDevice(t, hub, id.Software)
	err := hub.Dispatch(protocol.CreateBuffer{DeviceID: dev, BufferID: id.New(1, 1, id.Vulkan)})
	if !errors.Is(err, backend.ErrBackendMismatch) {
		t.Errorf("Dispatch() error = %v, want ErrBackendMismatch", err)
	}
}

func TestDispatchRejectsInvalidLabel(t *testing.T) {
	sw := software.New()
	hub, _ := newHub(t, sw)
	dev := openDevice(t, hub, id.Software)

	bad := protocol.CreateBuffer{DeviceID: dev, BufferID: id.New(1, 1, id.Software), Descriptor: protocol.BufferDescriptor{Label: "a\x00b", Size: 4}}
	if err := hub.Dispatch(bad); !errors.Is(err, backend.ErrInvalidLabel) {
		t.Errorf("Dispatch(NUL label) error = %v, want ErrInvalidLabel", err)
	}
	if n := sw.Live(id.KindBuffer); n != 0 {
		t.Errorf("buffer created despite invalid label")
	}

	good := protocol.CreateBuffer{DeviceID: dev, BufferID: id.New(2, 1, id.Software), Descriptor: protocol.BufferDescriptor{Label: "vertices", Size: 4}}
	if err := hub.Dispatch(good); err != nil {
		t.Errorf("Dispatch(valid label) error = %v", err)
	}
}

func TestDispatchRejectsInvalidDescriptors(t *testing.T) {
	hub, _ := newHub(t, software.New())
	dev := openDevice(t, hub, id.Software)
	sw := func(i uint32) id.ID { return id.New(i, 1, id.Software) }

	tests := []struct {
		name string
		req  protocol.Request
	}{
		{"zero texture", protocol.CreateTexture{DeviceID: dev, TextureID: sw(1), Descriptor: protocol.TextureDescriptor{Format: gputypes.TextureFormatRGBA8Unorm}}},
		{"no shader code", protocol.CreateShaderModule{DeviceID: dev, ShaderModuleID: sw(2)}},
		{"compute without entry point", protocol.CreateComputePipeline{DeviceID: dev, ComputePipelineID: sw(3), Descriptor: protocol.ComputePipelineDescriptor{Module: sw(2)}}},
		{"bind group entry with two resources", protocol.CreateBindGroup{DeviceID: dev, BindGroupID: sw(4), Descriptor: protocol.BindGroupDescriptor{
			Layout:  sw(5),
			Entries: []protocol.BindGroupEntry{{Buffer: sw(6), Sampler: sw(7)}},
		}}},
		{"duplicate layout binding", protocol.CreateBindGroupLayout{DeviceID: dev, BindGroupLayoutID: sw(8), Descriptor: protocol.BindGroupLayoutDescriptor{
			Entries: []protocol.BindGroupLayoutEntry{
				{Binding: 0, Visibility: protocol.StageCompute, Type: protocol.BindingStorageBuffer},
				{Binding: 0, Visibility: protocol.StageCompute, Type: protocol.BindingUniformBuffer},
			},
		}}},
		{"unaligned copy", protocol.CopyBufferToBuffer{CommandEncoderID: sw(9), SourceID: sw(6), DestinationID: sw(10), Size: 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := hub.Dispatch(tt.req); !errors.Is(err, backend.ErrInvalidDescriptor) {
				t.Errorf("Dispatch() error = %v, want ErrInvalidDescriptor", err)
			}
		})
	}
}

func TestDispatchMalformedPass(t *testing.T) {
	hub, _ := newHub(t, software.New())
	err := hub.Dispatch(protocol.RunComputePass{CommandEncoderID: id.New(1, 1, id.Software), PassData: []byte{0xff}})
	if !errors.Is(err, protocol.ErrMalformed) {
		t.Errorf("Dispatch() error = %v, want ErrMalformed", err)
	}
}

func TestDispatchRecoversPanic(t *testing.T) {
	hub, _ := newHub(t, panicky{software.New()})
	dev := openDevice(t, hub, id.Software)

	err := hub.Dispatch(protocol.CreateBuffer{DeviceID: dev, BufferID: id.New(1, 1, id.Software)})
	if !errors.Is(err, backend.ErrPanic) {
		t.Fatalf("Dispatch() error = %v, want ErrPanic", err)
	}
	// The hub keeps working after the panic.
	if err := hub.Dispatch(protocol.CreateCommandEncoder{DeviceID: dev, CommandEncoderID: id.New(2, 1, id.Software)}); err != nil {
		t.Errorf("Dispatch() after panic error = %v", err)
	}
}

func TestDispatchNotifiesIdentity(t *testing.T) {
	hub, rec := newHub(t, software.New())
	dev := openDevice(t, hub, id.Software)
	buf := id.New(1, 1, id.Software)
	enc := id.New(2, 1, id.Software)
	rec.msgs = nil

	reqs := []protocol.Request{
		protocol.CreateBuffer{DeviceID: dev, BufferID: buf, Descriptor: protocol.BufferDescriptor{Size: 4}},
		protocol.CreateCommandEncoder{DeviceID: dev, CommandEncoderID: enc},
		protocol.CommandEncoderFinish{CommandEncoderID: enc},
		protocol.Submit{QueueID: dev, CommandBuffers: []id.ID{enc}},
		protocol.DestroyBuffer{BufferID: buf},
	}
	for _, r := range reqs {
		if err := hub.Dispatch(r); err != nil {
			t.Fatalf("Dispatch(%s) error = %v", r.Op(), err)
		}
	}

	want := []identity.Msg{
		{Type: identity.MsgAssigned, Kind: id.KindBuffer, ID: buf},
		{Type: identity.MsgAssigned, Kind: id.KindCommandEncoder, ID: enc},
		{Type: identity.MsgAssigned, Kind: id.KindCommandBuffer, ID: enc},
		{Type: identity.MsgFreed, Kind: id.KindCommandBuffer, ID: enc},
		{Type: identity.MsgFreed, Kind: id.KindBuffer, ID: buf},
	}
	if len(rec.msgs) != len(want) {
		t.Fatalf("notifications = %v, want %v", rec.msgs, want)
	}
	for i := range want {
		if rec.msgs[i] != want[i] {
			t.Errorf("notification %d = %v, want %v", i, rec.msgs[i], want[i])
		}
	}
}

// freed returns the command buffers reported freed.
func freed(rec *recorder) []id.ID {
	var out []id.ID
	for _, m := range rec.msgs {
		if m.Type == identity.MsgFreed && m.Kind == id.KindCommandBuffer {
			out = append(out, m.ID)
		}
	}
	return out
}

func TestFailedSubmitFreesNothing(t *testing.T) {
	sw := software.New()
	hub, rec := newHub(t, sw)
	dev := openDevice(t, hub, id.Software)
	e1 := id.New(1, 1, id.Software)
	e2 := id.New(2, 1, id.Software)
	reqs := []protocol.Request{
		protocol.CreateCommandEncoder{DeviceID: dev, CommandEncoderID: e1},
		protocol.CommandEncoderFinish{CommandEncoderID: e1},
		protocol.CreateCommandEncoder{DeviceID: dev, CommandEncoderID: e2},
	}
	for _, r := range reqs {
		if err := hub.Dispatch(r); err != nil {
			t.Fatalf("Dispatch(%s) error = %v", r.Op(), err)
		}
	}

	if err := hub.Dispatch(protocol.Submit{QueueID: dev, CommandBuffers: []id.ID{e1, e2}}); !errors.Is(err, software.ErrNotFinished) {
		t.Fatalf("Submit() error = %v, want ErrNotFinished", err)
	}
	if n := sw.Live(id.KindCommandBuffer); n != 2 {
		t.Errorf("live command buffers = %d, want 2", n)
	}
	if got := freed(rec); len(got) != 0 {
		t.Errorf("freed after failed submit = %v, want none", got)
	}

	if err := hub.Dispatch(protocol.CommandEncoderFinish{CommandEncoderID: e2}); err != nil {
		t.Fatal(err)
	}
	if err := hub.Dispatch(protocol.Submit{QueueID: dev, CommandBuffers: []id.ID{e1, e2}}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if got := freed(rec); len(got) != 2 || got[0] != e1 || got[1] != e2 {
		t.Errorf("freed = %v, want [%v %v]", got, e1, e2)
	}
}

func TestQueueTimeoutStillFrees(t *testing.T) {
	hub, rec := newHub(t, slowQueue{software.New()})
	dev := openDevice(t, hub, id.Software)
	enc := id.New(1, 1, id.Software)
	for _, r := range []protocol.Request{
		protocol.CreateCommandEncoder{DeviceID: dev, CommandEncoderID: enc},
		protocol.CommandEncoderFinish{CommandEncoderID: enc},
	} {
		if err := hub.Dispatch(r); err != nil {
			t.Fatal(err)
		}
	}
	if err := hub.Dispatch(protocol.Submit{QueueID: dev, CommandBuffers: []id.ID{enc}}); !errors.Is(err, backend.ErrQueueTimeout) {
		t.Fatalf("Submit() error = %v, want ErrQueueTimeout", err)
	}
	if got := freed(rec); len(got) != 1 || got[0] != enc {
		t.Errorf("freed = %v, want [%v]", got, enc)
	}
}

func TestDispatchRejectsPrivileged(t *testing.T) {
	hub, _ := newHub(t, software.New())
	if err := hub.Dispatch(protocol.Exit{}); !errors.Is(err, backend.ErrUnsupported) {
		t.Errorf("Dispatch(Exit) error = %v, want ErrUnsupported", err)
	}
}
