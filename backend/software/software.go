// Package software provides a CPU reference backend.
//
// Buffers are plain byte slices: queue writes and buffer-to-buffer copies
// move real bytes, so the effects of a command stream can be checked
// without a GPU. Pipelines, textures and passes are validated and
// recorded but not executed. Every successful mutation is appended to an
// event log in execution order.
//
// Backend is safe for concurrent use; the actor calls it from one
// goroutine while tests observe it from another.
package software

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/gpuactor/backend"
	"github.com/gogpu/gpuactor/id"
	"github.com/gogpu/gpuactor/protocol"
)

// Software backend errors.
var (
	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("software: backend closed")

	// ErrEncoderFinished is returned when recording into a finished encoder.
	ErrEncoderFinished = errors.New("software: command encoder already finished")

	// ErrNotFinished is returned when submitting an unfinished encoder.
	ErrNotFinished = errors.New("software: command buffer not finished")

	// ErrOutOfBounds is returned for buffer accesses past the end.
	ErrOutOfBounds = errors.New("software: buffer access out of bounds")

	// ErrTooLarge is returned for buffers above the device limit.
	ErrTooLarge = errors.New("software: buffer exceeds size limit")

	// ErrWrongDevice is returned when a resource belongs to another device.
	ErrWrongDevice = errors.New("software: resource belongs to another device")
)

// DefaultMaxBufferSize caps buffer allocations regardless of the limits a
// client requests.
const DefaultMaxBufferSize = 64 << 20

// Event is one recorded mutation.
type Event struct {
	Op protocol.Op
	ID id.ID
}

// Option configures a Backend.
type Option func(*options)

type options struct {
	tag           id.Backend
	adapterName   string
	deviceType    backend.DeviceType
	maxBufferSize uint64
}

// WithTag serves tag instead of id.Software.
func WithTag(tag id.Backend) Option {
	return func(o *options) { o.tag = tag }
}

// WithAdapter sets the name and device type of the exposed adapter.
func WithAdapter(name string, t backend.DeviceType) Option {
	return func(o *options) {
		o.adapterName = name
		o.deviceType = t
	}
}

// WithMaxBufferSize caps buffer allocations.
func WithMaxBufferSize(n uint64) Option {
	return func(o *options) { o.maxBufferSize = n }
}

type adapter struct {
	info backend.AdapterInfo
}

type device struct {
	adapter id.ID
	desc    protocol.DeviceDescriptor
}

type buffer struct {
	device id.ID
	desc   protocol.BufferDescriptor
	data   []byte
}

type texture struct {
	device id.ID
	desc   protocol.TextureDescriptor
}

type textureView struct {
	texture id.ID
	desc    protocol.TextureViewDescriptor
}

// owned is a resource whose only state is its device and descriptor.
type owned[D any] struct {
	device id.ID
	desc   D
}

type copyCmd struct {
	src, dst             id.ID
	srcOffset, dstOffset uint64
	size                 uint64
}

type encoder struct {
	device   id.ID
	label    string
	copies   []copyCmd
	passes   int
	finished bool
}

// Backend is the CPU reference backend.
type Backend struct {
	mu     sync.Mutex
	opts   options
	closed bool
	events []Event

	adapters         *backend.Storage[*adapter]
	devices          *backend.Storage[*device]
	buffers          *backend.Storage[*buffer]
	textures         *backend.Storage[*texture]
	views            *backend.Storage[*textureView]
	samplers         *backend.Storage[owned[protocol.SamplerDescriptor]]
	bindGroupLayouts *backend.Storage[owned[protocol.BindGroupLayoutDescriptor]]
	bindGroups       *backend.Storage[owned[protocol.BindGroupDescriptor]]
	pipelineLayouts  *backend.Storage[owned[protocol.PipelineLayoutDescriptor]]
	shaderModules    *backend.Storage[owned[protocol.ShaderModuleDescriptor]]
	computePipelines *backend.Storage[owned[protocol.ComputePipelineDescriptor]]
	renderPipelines  *backend.Storage[owned[protocol.RenderPipelineDescriptor]]
	encoders         *backend.Storage[*encoder]
}

var _ backend.Backend = (*Backend)(nil)

// New returns a software backend.
func New(opts ...Option) *Backend {
	o := options{
		tag:           id.Software,
		adapterName:   "software",
		deviceType:    backend.DeviceTypeCPU,
		maxBufferSize: DefaultMaxBufferSize,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Backend{
		opts:             o,
		adapters:         backend.NewStorage[*adapter](id.KindAdapter),
		devices:          backend.NewStorage[*device](id.KindDevice),
		buffers:          backend.NewStorage[*buffer](id.KindBuffer),
		textures:         backend.NewStorage[*texture](id.KindTexture),
		views:            backend.NewStorage[*textureView](id.KindTextureView),
		samplers:         backend.NewStorage[owned[protocol.SamplerDescriptor]](id.KindSampler),
		bindGroupLayouts: backend.NewStorage[owned[protocol.BindGroupLayoutDescriptor]](id.KindBindGroupLayout),
		bindGroups:       backend.NewStorage[owned[protocol.BindGroupDescriptor]](id.KindBindGroup),
		pipelineLayouts:  backend.NewStorage[owned[protocol.PipelineLayoutDescriptor]](id.KindPipelineLayout),
		shaderModules:    backend.NewStorage[owned[protocol.ShaderModuleDescriptor]](id.KindShaderModule),
		computePipelines: backend.NewStorage[owned[protocol.ComputePipelineDescriptor]](id.KindComputePipeline),
		renderPipelines:  backend.NewStorage[owned[protocol.RenderPipelineDescriptor]](id.KindRenderPipeline),
		encoders:         backend.NewStorage[*encoder](id.KindCommandEncoder),
	}
}

// Tag returns the served identifier tag.
func (b *Backend) Tag() id.Backend { return b.opts.tag }

// Name returns the backend name.
func (b *Backend) Name() string { return "software" }

// Events returns a copy of the event log.
func (b *Backend) Events() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.events)
}

// Closed reports whether Close has run.
func (b *Backend) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// ReadBuffer returns a copy of the buffer contents.
func (b *Backend) ReadBuffer(buf id.ID) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	bb, err := b.buffers.Get(buf)
	if err != nil {
		return nil, err
	}
	return slices.Clone(bb.data), nil
}

// Live returns the number of live resources of kind.
func (b *Backend) Live(kind id.Kind) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch kind {
	case id.KindAdapter:
		return b.adapters.Len()
	case id.KindDevice, id.KindQueue:
		return b.devices.Len()
	case id.KindBuffer:
		return b.buffers.Len()
	case id.KindTexture:
		return b.textures.Len()
	case id.KindTextureView:
		return b.views.Len()
	case id.KindSampler:
		return b.samplers.Len()
	case id.KindBindGroupLayout:
		return b.bindGroupLayouts.Len()
	case id.KindBindGroup:
		return b.bindGroups.Len()
	case id.KindPipelineLayout:
		return b.pipelineLayouts.Len()
	case id.KindShaderModule:
		return b.shaderModules.Len()
	case id.KindComputePipeline:
		return b.computePipelines.Len()
	case id.KindRenderPipeline:
		return b.renderPipelines.Len()
	case id.KindCommandEncoder, id.KindCommandBuffer:
		return b.encoders.Len()
	}
	return 0
}

// begin locks the backend and fails if it is closed. Callers must unlock.
func (b *Backend) begin() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	return nil
}

func (b *Backend) record(op protocol.Op, i id.ID) {
	b.events = append(b.events, Event{Op: op, ID: i})
}

// checkDevice verifies that device is live and returns it.
func (b *Backend) checkDevice(dev id.ID) (*device, error) {
	return b.devices.Get(dev)
}

// Expose offers the single software adapter.
func (b *Backend) Expose(protocol.AdapterOptions) ([]backend.Exposed, error) {
	if err := b.begin(); err != nil {
		return nil, err
	}
	defer b.mu.Unlock()
	return []backend.Exposed{{Info: backend.AdapterInfo{
		Name:       b.opts.adapterName,
		DeviceType: b.opts.deviceType,
		Backend:    b.opts.tag,
	}}}, nil
}

// AdoptAdapter registers the exposed adapter under a.
func (b *Backend) AdoptAdapter(a id.ID, e backend.Exposed) (backend.AdapterInfo, error) {
	if err := b.begin(); err != nil {
		return backend.AdapterInfo{}, err
	}
	defer b.mu.Unlock()
	if err := b.adapters.Insert(a, &adapter{info: e.Info}); err != nil {
		return backend.AdapterInfo{}, err
	}
	b.record(protocol.OpRequestAdapter, a)
	return e.Info, nil
}

// RequestDevice opens a device on a.
func (b *Backend) RequestDevice(a id.ID, desc protocol.DeviceDescriptor, dev id.ID) error {
	if err := b.begin(); err != nil {
		return err
	}
	defer b.mu.Unlock()
	if _, err := b.adapters.Get(a); err != nil {
		return err
	}
	if err := b.devices.Insert(dev, &device{adapter: a, desc: desc}); err != nil {
		return err
	}
	b.record(protocol.OpRequestDevice, dev)
	return nil
}

func (b *Backend) maxBufferSize(d *device) uint64 {
	limit := b.opts.maxBufferSize
	if l := uint64(d.desc.RequiredLimits.MaxBufferSize); l != 0 && l < limit {
		limit = l
	}
	return limit
}

// CreateBuffer allocates a zeroed buffer.
func (b *Backend) CreateBuffer(dev, buf id.ID, desc protocol.BufferDescriptor) error {
	if err := b.begin(); err != nil {
		return err
	}
	defer b.mu.Unlock()
	d, err := b.checkDevice(dev)
	if err != nil {
		return err
	}
	if limit := b.maxBufferSize(d); desc.Size > limit {
		return fmt.Errorf("%w: %d > %d", ErrTooLarge, desc.Size, limit)
	}
	if err := b.buffers.Insert(buf, &buffer{device: dev, desc: desc, data: make([]byte, desc.Size)}); err != nil {
		return err
	}
	b.record(protocol.OpCreateBuffer, buf)
	return nil
}

// DestroyBuffer releases a buffer.
func (b *Backend) DestroyBuffer(buf id.ID) error {
	if err := b.begin(); err != nil {
		return err
	}
	defer b.mu.Unlock()
	if _, err := b.buffers.Remove(buf); err != nil {
		return err
	}
	b.record(protocol.OpDestroyBuffer, buf)
	return nil
}

// WriteBuffer copies data into the buffer at offset.
func (b *Backend) WriteBuffer(dev, buf id.ID, offset uint64, data []byte) error {
	if err := b.begin(); err != nil {
		return err
	}
	defer b.mu.Unlock()
	if _, err := b.checkDevice(dev); err != nil {
		return err
	}
	bb, err := b.buffers.Get(buf)
	if err != nil {
		return err
	}
	if bb.device != dev {
		return fmt.Errorf("%w: buffer %v", ErrWrongDevice, buf)
	}
	if err := checkRange(bb, offset, uint64(len(data))); err != nil {
		return err
	}
	copy(bb.data[offset:], data)
	b.record(protocol.OpUnmapBuffer, buf)
	return nil
}

func checkRange(bb *buffer, offset, size uint64) error {
	n := uint64(len(bb.data))
	if offset > n || size > n-offset {
		return fmt.Errorf("%w: [%d, +%d) of %d", ErrOutOfBounds, offset, size, n)
	}
	return nil
}

// CreateTexture records a texture.
func (b *Backend) CreateTexture(dev, tex id.ID, desc protocol.TextureDescriptor) error {
	if err := b.begin(); err != nil {
		return err
	}
	defer b.mu.Unlock()
	if _, err := b.checkDevice(dev); err != nil {
		return err
	}
	if err := b.textures.Insert(tex, &texture{device: dev, desc: desc}); err != nil {
		return err
	}
	b.record(protocol.OpCreateTexture, tex)
	return nil
}

// DestroyTexture releases a texture.
func (b *Backend) DestroyTexture(tex id.ID) error {
	if err := b.begin(); err != nil {
		return err
	}
	defer b.mu.Unlock()
	if _, err := b.textures.Remove(tex); err != nil {
		return err
	}
	b.record(protocol.OpDestroyTexture, tex)
	return nil
}

// CreateTextureView records a view of tex.
func (b *Backend) CreateTextureView(tex, view id.ID, desc protocol.TextureViewDescriptor) error {
	if err := b.begin(); err != nil {
		return err
	}
	defer b.mu.Unlock()
	t, err := b.textures.Get(tex)
	if err != nil {
		return err
	}
	if desc.Format == gputypes.TextureFormatUndefined {
		desc.Format = t.desc.Format
	}
	if desc.MipLevelCount == 0 {
		desc.MipLevelCount = t.desc.MipLevelCount - min(desc.BaseMipLevel, t.desc.MipLevelCount)
	}
	if err := b.views.Insert(view, &textureView{texture: tex, desc: desc}); err != nil {
		return err
	}
	b.record(protocol.OpCreateTextureView, view)
	return nil
}

// insertOwned registers a descriptor-only resource after checking its device.
func insertOwned[D any](b *Backend, s *backend.Storage[owned[D]], op protocol.Op, dev, res id.ID, desc D) error {
	if err := b.begin(); err != nil {
		return err
	}
	defer b.mu.Unlock()
	if _, err := b.checkDevice(dev); err != nil {
		return err
	}
	if err := s.Insert(res, owned[D]{device: dev, desc: desc}); err != nil {
		return err
	}
	b.record(op, res)
	return nil
}

// CreateSampler records a sampler.
func (b *Backend) CreateSampler(dev, s id.ID, desc protocol.SamplerDescriptor) error {
	return insertOwned(b, b.samplers, protocol.OpCreateSampler, dev, s, desc)
}

// CreateBindGroupLayout records a bind group layout.
func (b *Backend) CreateBindGroupLayout(dev, l id.ID, desc protocol.BindGroupLayoutDescriptor) error {
	return insertOwned(b, b.bindGroupLayouts, protocol.OpCreateBindGroupLayout, dev, l, desc)
}

// CreateBindGroup checks every referenced resource and records the group.
func (b *Backend) CreateBindGroup(dev, g id.ID, desc protocol.BindGroupDescriptor) error {
	if err := b.resolve(func() error {
		if !b.bindGroupLayouts.Contains(desc.Layout) {
			return b.stale(b.bindGroupLayouts.Kind(), desc.Layout)
		}
		for _, e := range desc.Entries {
			switch {
			case !e.Buffer.IsZero():
				bb, err := b.buffers.Get(e.Buffer)
				if err != nil {
					return err
				}
				if err := checkRange(bb, e.Offset, e.Size); err != nil {
					return err
				}
			case !e.TextureView.IsZero():
				if !b.views.Contains(e.TextureView) {
					return b.stale(id.KindTextureView, e.TextureView)
				}
			case !e.Sampler.IsZero():
				if !b.samplers.Contains(e.Sampler) {
					return b.stale(id.KindSampler, e.Sampler)
				}
			}
		}
		return nil
	}); err != nil {
		return err
	}
	return insertOwned(b, b.bindGroups, protocol.OpCreateBindGroup, dev, g, desc)
}

// CreatePipelineLayout records a pipeline layout.
func (b *Backend) CreatePipelineLayout(dev, l id.ID, desc protocol.PipelineLayoutDescriptor) error {
	if err := b.resolve(func() error {
		for _, bgl := range desc.BindGroupLayouts {
			if !b.bindGroupLayouts.Contains(bgl) {
				return b.stale(id.KindBindGroupLayout, bgl)
			}
		}
		return nil
	}); err != nil {
		return err
	}
	return insertOwned(b, b.pipelineLayouts, protocol.OpCreatePipelineLayout, dev, l, desc)
}

// CreateShaderModule records a shader module. Code is not compiled.
func (b *Backend) CreateShaderModule(dev, m id.ID, desc protocol.ShaderModuleDescriptor) error {
	return insertOwned(b, b.shaderModules, protocol.OpCreateShaderModule, dev, m, desc)
}

// CreateComputePipeline records a compute pipeline.
func (b *Backend) CreateComputePipeline(dev, p id.ID, desc protocol.ComputePipelineDescriptor) error {
	if err := b.resolve(func() error {
		if !desc.Layout.IsZero() && !b.pipelineLayouts.Contains(desc.Layout) {
			return b.stale(id.KindPipelineLayout, desc.Layout)
		}
		if !b.shaderModules.Contains(desc.Module) {
			return b.stale(id.KindShaderModule, desc.Module)
		}
		return nil
	}); err != nil {
		return err
	}
	return insertOwned(b, b.computePipelines, protocol.OpCreateComputePipeline, dev, p, desc)
}

// CreateRenderPipeline records a render pipeline.
func (b *Backend) CreateRenderPipeline(dev, p id.ID, desc protocol.RenderPipelineDescriptor) error {
	if err := b.resolve(func() error {
		if !desc.Layout.IsZero() && !b.pipelineLayouts.Contains(desc.Layout) {
			return b.stale(id.KindPipelineLayout, desc.Layout)
		}
		for _, m := range []id.ID{desc.VertexModule, desc.FragmentModule} {
			if !m.IsZero() && !b.shaderModules.Contains(m) {
				return b.stale(id.KindShaderModule, m)
			}
		}
		return nil
	}); err != nil {
		return err
	}
	return insertOwned(b, b.renderPipelines, protocol.OpCreateRenderPipeline, dev, p, desc)
}

// resolve runs fn under the lock.
func (b *Backend) resolve(fn func() error) error {
	if err := b.begin(); err != nil {
		return err
	}
	defer b.mu.Unlock()
	return fn()
}

func (b *Backend) stale(kind id.Kind, i id.ID) error {
	return fmt.Errorf("%w: %s %v", backend.ErrStaleHandle, kind, i)
}

// CreateCommandEncoder starts recording.
func (b *Backend) CreateCommandEncoder(dev, enc id.ID, desc protocol.CommandEncoderDescriptor) error {
	if err := b.begin(); err != nil {
		return err
	}
	defer b.mu.Unlock()
	if _, err := b.checkDevice(dev); err != nil {
		return err
	}
	if err := b.encoders.Insert(enc, &encoder{device: dev, label: desc.Label}); err != nil {
		return err
	}
	b.record(protocol.OpCreateCommandEncoder, enc)
	return nil
}

func (b *Backend) recording(enc id.ID) (*encoder, error) {
	e, err := b.encoders.Get(enc)
	if err != nil {
		return nil, err
	}
	if e.finished {
		return nil, fmt.Errorf("%w: %v", ErrEncoderFinished, enc)
	}
	return e, nil
}

// CopyBufferToBuffer records a copy executed at submission.
func (b *Backend) CopyBufferToBuffer(enc, src id.ID, srcOffset uint64, dst id.ID, dstOffset, size uint64) error {
	if err := b.begin(); err != nil {
		return err
	}
	defer b.mu.Unlock()
	e, err := b.recording(enc)
	if err != nil {
		return err
	}
	for _, r := range []struct {
		buf    id.ID
		offset uint64
	}{{src, srcOffset}, {dst, dstOffset}} {
		bb, err := b.buffers.Get(r.buf)
		if err != nil {
			return err
		}
		if bb.device != e.device {
			return fmt.Errorf("%w: buffer %v", ErrWrongDevice, r.buf)
		}
		if err := checkRange(bb, r.offset, size); err != nil {
			return err
		}
	}
	e.copies = append(e.copies, copyCmd{src: src, dst: dst, srcOffset: srcOffset, dstOffset: dstOffset, size: size})
	b.record(protocol.OpCopyBufferToBuffer, enc)
	return nil
}

// RunComputePass checks every referenced resource and records the pass.
func (b *Backend) RunComputePass(enc id.ID, pass *protocol.ComputePass) error {
	if err := b.begin(); err != nil {
		return err
	}
	defer b.mu.Unlock()
	e, err := b.recording(enc)
	if err != nil {
		return err
	}
	for _, c := range pass.Commands {
		switch c.Op {
		case protocol.ComputeSetPipeline:
			if !b.computePipelines.Contains(c.Pipeline) {
				return b.stale(id.KindComputePipeline, c.Pipeline)
			}
		case protocol.ComputeSetBindGroup:
			if !b.bindGroups.Contains(c.BindGroup) {
				return b.stale(id.KindBindGroup, c.BindGroup)
			}
		}
	}
	e.passes++
	b.record(protocol.OpRunComputePass, enc)
	return nil
}

// RunRenderPass checks every referenced resource and records the pass.
func (b *Backend) RunRenderPass(enc id.ID, pass *protocol.RenderPass) error {
	if err := b.begin(); err != nil {
		return err
	}
	defer b.mu.Unlock()
	e, err := b.recording(enc)
	if err != nil {
		return err
	}
	for _, ca := range pass.ColorAttachments {
		if !b.views.Contains(ca.View) {
			return b.stale(id.KindTextureView, ca.View)
		}
		if !ca.ResolveTarget.IsZero() && !b.views.Contains(ca.ResolveTarget) {
			return b.stale(id.KindTextureView, ca.ResolveTarget)
		}
	}
	if ds := pass.DepthStencil; ds != nil && !b.views.Contains(ds.View) {
		return b.stale(id.KindTextureView, ds.View)
	}
	for _, c := range pass.Commands {
		switch c.Op {
		case protocol.RenderSetPipeline:
			if !b.renderPipelines.Contains(c.Pipeline) {
				return b.stale(id.KindRenderPipeline, c.Pipeline)
			}
		case protocol.RenderSetBindGroup:
			if !b.bindGroups.Contains(c.BindGroup) {
				return b.stale(id.KindBindGroup, c.BindGroup)
			}
		case protocol.RenderSetVertexBuffer, protocol.RenderSetIndexBuffer:
			if !b.buffers.Contains(c.Buffer) {
				return b.stale(id.KindBuffer, c.Buffer)
			}
		}
	}
	e.passes++
	b.record(protocol.OpRunRenderPass, enc)
	return nil
}

// FinishCommandEncoder ends recording.
func (b *Backend) FinishCommandEncoder(enc id.ID) error {
	if err := b.begin(); err != nil {
		return err
	}
	defer b.mu.Unlock()
	e, err := b.recording(enc)
	if err != nil {
		return err
	}
	e.finished = true
	b.record(protocol.OpCommandEncoderFinish, enc)
	return nil
}

// Submit executes the recorded copies of each command buffer in order and
// releases the buffers. Every command buffer and every copy is checked
// before anything runs, so a failed Submit changes nothing.
func (b *Backend) Submit(queue id.ID, cmdBufs []id.ID) error {
	if err := b.begin(); err != nil {
		return err
	}
	defer b.mu.Unlock()
	if _, err := b.checkDevice(queue); err != nil {
		return err
	}
	encs := make([]*encoder, 0, len(cmdBufs))
	seen := make(map[id.ID]bool, len(cmdBufs))
	for _, cb := range cmdBufs {
		if seen[cb] {
			return fmt.Errorf("%w: command buffer %v submitted twice", backend.ErrInvalidDescriptor, cb)
		}
		seen[cb] = true
		e, err := b.encoders.Get(cb)
		if err != nil {
			return err
		}
		if !e.finished {
			return fmt.Errorf("%w: %v", ErrNotFinished, cb)
		}
		if e.device != queue {
			return fmt.Errorf("%w: command buffer %v", ErrWrongDevice, cb)
		}
		if err := b.checkCopies(e); err != nil {
			return fmt.Errorf("command buffer %v: %w", cb, err)
		}
		encs = append(encs, e)
	}
	for i, cb := range cmdBufs {
		b.execute(encs[i])
		_, _ = b.encoders.Remove(cb)
		b.record(protocol.OpSubmit, cb)
	}
	return nil
}

// checkCopies verifies that every copy of e names live buffers and stays
// in range.
func (b *Backend) checkCopies(e *encoder) error {
	for _, c := range e.copies {
		src, err := b.buffers.Get(c.src)
		if err != nil {
			return err
		}
		dst, err := b.buffers.Get(c.dst)
		if err != nil {
			return err
		}
		if err := checkRange(src, c.srcOffset, c.size); err != nil {
			return err
		}
		if err := checkRange(dst, c.dstOffset, c.size); err != nil {
			return err
		}
	}
	return nil
}

// execute runs the copies of e, which must have passed checkCopies.
func (b *Backend) execute(e *encoder) {
	for _, c := range e.copies {
		src, _ := b.buffers.Get(c.src)
		dst, _ := b.buffers.Get(c.dst)
		copy(dst.data[c.dstOffset:c.dstOffset+c.size], src.data[c.srcOffset:c.srcOffset+c.size])
	}
}

// Close releases every resource. The event log is kept.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	b.encoders.Drain()
	b.renderPipelines.Drain()
	b.computePipelines.Drain()
	b.shaderModules.Drain()
	b.pipelineLayouts.Drain()
	b.bindGroups.Drain()
	b.bindGroupLayouts.Drain()
	b.samplers.Drain()
	b.views.Drain()
	b.textures.Drain()
	b.buffers.Drain()
	b.devices.Drain()
	b.adapters.Drain()
	return nil
}
