// Package native implements backend.Backend on the gogpu/wgpu HAL.
//
// A Backend serves one identifier tag. Tag id.Empty runs on the HAL noop
// implementation, which accepts every call without touching a GPU; tag
// id.Vulkan runs on the Vulkan HAL when it is compiled in (builds without
// the nogpu tag). The HAL instance is created on the first Expose, so a
// backend whose driver is missing still registers and simply exposes no
// adapters.
//
// Resources are kept in generation-checked storage and destroyed through
// the device that created them. A command buffer is registered under the
// identifier of the encoder that produced it.
package native

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/gpuactor/backend"
	"github.com/gogpu/gpuactor/id"
	"github.com/gogpu/gpuactor/internal/cache"
	"github.com/gogpu/gpuactor/internal/logging"
	"github.com/gogpu/gpuactor/protocol"
)

// Native backend errors.
var (
	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("native: backend closed")

	// ErrUnavailable is returned when the HAL for a tag is not compiled in
	// or its instance cannot be created.
	ErrUnavailable = errors.New("native: HAL backend unavailable")

	// ErrEncoderFinished is returned when recording into a finished encoder.
	ErrEncoderFinished = errors.New("native: command encoder already finished")

	// ErrNotFinished is returned when submitting an unfinished encoder.
	ErrNotFinished = errors.New("native: command buffer not finished")

	// ErrWrongDevice is returned when a resource belongs to another device.
	ErrWrongDevice = errors.New("native: resource belongs to another device")
)

// InstanceFactory is the part of a HAL backend that creates instances.
type InstanceFactory interface {
	CreateInstance(desc *hal.InstanceDescriptor) (hal.Instance, error)
}

// Option configures a Backend.
type Option func(*Backend)

// WithSubmitTimeout bounds how long Submit waits for the queue.
func WithSubmitTimeout(d time.Duration) Option {
	return func(b *Backend) { b.submitTimeout = d }
}

// DefaultSubmitTimeout is the Submit wait bound used unless overridden.
const DefaultSubmitTimeout = 5 * time.Second

// DefaultShaderCacheSize is the number of compiled WGSL modules kept.
const DefaultShaderCacheSize = 64

// WithShaderCacheSize sets how many compiled WGSL modules are kept. Zero
// keeps all of them.
func WithShaderCacheSize(n int) Option {
	return func(b *Backend) { b.shaders = cache.New[[sha256.Size]byte, []uint32](n) }
}

// WithFactory replaces the HAL the backend creates its instance from.
func WithFactory(f InstanceFactory) Option {
	return func(b *Backend) { b.factory = f }
}

type adapter struct {
	hal  hal.Adapter
	info backend.AdapterInfo
}

type device struct {
	adapter id.ID
	hal     hal.Device
	queue   hal.Queue
}

type buffer struct {
	device id.ID
	hal    hal.Buffer
	size   uint64
}

type texture struct {
	device id.ID
	hal    hal.Texture
}

type textureView struct {
	device  id.ID
	texture id.ID
	hal     hal.TextureView
}

// owned is a HAL object tied to the device that created it.
type owned[T any] struct {
	device id.ID
	hal    T
}

type encoder struct {
	device   id.ID
	hal      hal.CommandEncoder
	cmd      hal.CommandBuffer
	finished bool
}

// Backend is a HAL-backed implementation of backend.Backend.
type Backend struct {
	mu       sync.Mutex
	tag      id.Backend
	factory  InstanceFactory
	instance hal.Instance
	closed   bool

	submitTimeout time.Duration
	shaders       *cache.Cache[[sha256.Size]byte, []uint32] // WGSL source hash -> SPIR-V

	adapters         *backend.Storage[*adapter]
	devices          *backend.Storage[*device]
	buffers          *backend.Storage[*buffer]
	textures         *backend.Storage[*texture]
	views            *backend.Storage[*textureView]
	samplers         *backend.Storage[owned[hal.Sampler]]
	bindGroupLayouts *backend.Storage[owned[hal.BindGroupLayout]]
	bindGroups       *backend.Storage[owned[hal.BindGroup]]
	pipelineLayouts  *backend.Storage[owned[hal.PipelineLayout]]
	shaderModules    *backend.Storage[owned[hal.ShaderModule]]
	computePipelines *backend.Storage[owned[hal.ComputePipeline]]
	renderPipelines  *backend.Storage[owned[hal.RenderPipeline]]
	encoders         *backend.Storage[*encoder]
}

var _ backend.Backend = (*Backend)(nil)

// New returns a backend serving tag. The HAL is resolved from the tag:
// id.Empty uses the noop HAL, id.Vulkan the Vulkan HAL.
func New(tag id.Backend, opts ...Option) *Backend {
	b := &Backend{
		tag:              tag,
		submitTimeout:    DefaultSubmitTimeout,
		shaders:          cache.New[[sha256.Size]byte, []uint32](DefaultShaderCacheSize),
		adapters:         backend.NewStorage[*adapter](id.KindAdapter),
		devices:          backend.NewStorage[*device](id.KindDevice),
		buffers:          backend.NewStorage[*buffer](id.KindBuffer),
		textures:         backend.NewStorage[*texture](id.KindTexture),
		views:            backend.NewStorage[*textureView](id.KindTextureView),
		samplers:         backend.NewStorage[owned[hal.Sampler]](id.KindSampler),
		bindGroupLayouts: backend.NewStorage[owned[hal.BindGroupLayout]](id.KindBindGroupLayout),
		bindGroups:       backend.NewStorage[owned[hal.BindGroup]](id.KindBindGroup),
		pipelineLayouts:  backend.NewStorage[owned[hal.PipelineLayout]](id.KindPipelineLayout),
		shaderModules:    backend.NewStorage[owned[hal.ShaderModule]](id.KindShaderModule),
		computePipelines: backend.NewStorage[owned[hal.ComputePipeline]](id.KindComputePipeline),
		renderPipelines:  backend.NewStorage[owned[hal.RenderPipeline]](id.KindRenderPipeline),
		encoders:         backend.NewStorage[*encoder](id.KindCommandEncoder),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Tag returns the served identifier tag.
func (b *Backend) Tag() id.Backend { return b.tag }

// Name returns the backend name.
func (b *Backend) Name() string { return "native-" + b.tag.String() }

// begin locks the backend and fails if it is closed. Callers must unlock.
func (b *Backend) begin() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	return nil
}

func stale(kind id.Kind, i id.ID) error {
	return fmt.Errorf("%w: %s %v", backend.ErrStaleHandle, kind, i)
}

func resolveFactory(tag id.Backend) (InstanceFactory, error) {
	switch tag {
	case id.Empty:
		return &noop.API{}, nil
	case id.Vulkan:
		hb, ok := hal.GetBackend(gputypes.BackendVulkan)
		if !ok {
			return nil, fmt.Errorf("%w: vulkan not compiled in", ErrUnavailable)
		}
		return hb, nil
	}
	return nil, fmt.Errorf("%w: no HAL for %s", ErrUnavailable, tag)
}

// ensureInstance creates the HAL instance on first use. Must be called
// with mu held.
func (b *Backend) ensureInstance() error {
	if b.instance != nil {
		return nil
	}
	if b.factory == nil {
		f, err := resolveFactory(b.tag)
		if err != nil {
			return err
		}
		b.factory = f
	}
	inst, err := b.factory.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return fmt.Errorf("%w: create instance: %v", ErrUnavailable, err)
	}
	b.instance = inst
	logging.L().Debug("native: instance created", "backend", b.tag)
	return nil
}

// Expose enumerates the HAL adapters. Exposed.Handle holds the
// hal.ExposedAdapter.
func (b *Backend) Expose(protocol.AdapterOptions) ([]backend.Exposed, error) {
	if err := b.begin(); err != nil {
		return nil, err
	}
	defer b.mu.Unlock()
	if err := b.ensureInstance(); err != nil {
		return nil, err
	}
	adapters := b.instance.EnumerateAdapters(nil)
	out := make([]backend.Exposed, 0, len(adapters))
	for _, a := range adapters {
		dt := backend.DeviceTypeOther
		switch a.Info.DeviceType {
		case gputypes.DeviceTypeDiscreteGPU:
			dt = backend.DeviceTypeDiscreteGPU
		case gputypes.DeviceTypeIntegratedGPU:
			dt = backend.DeviceTypeIntegratedGPU
		}
		out = append(out, backend.Exposed{
			Info:   backend.AdapterInfo{Name: a.Info.Name, DeviceType: dt, Backend: b.tag},
			Handle: a,
		})
	}
	return out, nil
}

// AdoptAdapter registers an adapter returned by Expose under a.
func (b *Backend) AdoptAdapter(a id.ID, e backend.Exposed) (backend.AdapterInfo, error) {
	if err := b.begin(); err != nil {
		return backend.AdapterInfo{}, err
	}
	defer b.mu.Unlock()
	exposed, ok := e.Handle.(hal.ExposedAdapter)
	if !ok || exposed.Adapter == nil {
		return backend.AdapterInfo{}, fmt.Errorf("%w: adapter handle %T", backend.ErrInvalidDescriptor, e.Handle)
	}
	if err := b.adapters.Insert(a, &adapter{hal: exposed.Adapter, info: e.Info}); err != nil {
		return backend.AdapterInfo{}, err
	}
	return e.Info, nil
}

// RequestDevice opens a device and its queue on a.
func (b *Backend) RequestDevice(a id.ID, desc protocol.DeviceDescriptor, dev id.ID) error {
	if err := b.begin(); err != nil {
		return err
	}
	defer b.mu.Unlock()
	ad, err := b.adapters.Get(a)
	if err != nil {
		return err
	}
	if b.devices.Contains(dev) {
		return fmt.Errorf("%w: device %v", backend.ErrDuplicateHandle, dev)
	}
	open, err := ad.hal.Open(desc.RequiredFeatures, desc.RequiredLimits)
	if err != nil {
		return fmt.Errorf("open device on %q: %w", ad.info.Name, err)
	}
	if err := b.devices.Insert(dev, &device{adapter: a, hal: open.Device, queue: open.Queue}); err != nil {
		open.Device.Destroy()
		return err
	}
	return nil
}

func (b *Backend) device(dev id.ID) (*device, error) {
	return b.devices.Get(dev)
}

// Close destroys every resource in reverse dependency order, then the
// devices and the instance.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true

	destroyEach(b, b.encoders, func(d hal.Device, e *encoder) {
		switch {
		case e.cmd != nil:
			d.FreeCommandBuffer(e.cmd)
		case !e.finished:
			e.hal.DiscardEncoding()
		}
	})
	destroyOwned(b, b.renderPipelines, hal.Device.DestroyRenderPipeline)
	destroyOwned(b, b.computePipelines, hal.Device.DestroyComputePipeline)
	destroyOwned(b, b.bindGroups, hal.Device.DestroyBindGroup)
	destroyOwned(b, b.pipelineLayouts, hal.Device.DestroyPipelineLayout)
	destroyOwned(b, b.bindGroupLayouts, hal.Device.DestroyBindGroupLayout)
	destroyOwned(b, b.shaderModules, hal.Device.DestroyShaderModule)
	destroyOwned(b, b.samplers, hal.Device.DestroySampler)
	destroyEach(b, b.views, func(d hal.Device, v *textureView) { d.DestroyTextureView(v.hal) })
	destroyEach(b, b.textures, func(d hal.Device, t *texture) { d.DestroyTexture(t.hal) })
	destroyEach(b, b.buffers, func(d hal.Device, buf *buffer) { d.DestroyBuffer(buf.hal) })

	for _, d := range b.devices.Drain() {
		d.hal.Destroy()
	}
	b.adapters.Drain()
	if b.instance != nil {
		b.instance.Destroy()
		b.instance = nil
	}
	return nil
}

type deviceOwned interface {
	*buffer | *texture | *textureView | *encoder
}

func ownerOf[T deviceOwned](v T) id.ID {
	switch r := any(v).(type) {
	case *buffer:
		return r.device
	case *texture:
		return r.device
	case *textureView:
		return r.device
	case *encoder:
		return r.device
	}
	return id.ID{}
}

// destroyEach drains s and destroys each value through its device. Must
// be called with mu held, before the devices are drained.
func destroyEach[T deviceOwned](b *Backend, s *backend.Storage[T], fn func(hal.Device, T)) {
	for _, v := range s.Drain() {
		if d, err := b.devices.Get(ownerOf(v)); err == nil {
			fn(d.hal, v)
		}
	}
}

func destroyOwned[T any](b *Backend, s *backend.Storage[owned[T]], fn func(hal.Device, T)) {
	for _, v := range s.Drain() {
		if d, err := b.devices.Get(v.device); err == nil {
			fn(d.hal, v.hal)
		}
	}
}
