package backend

import (
	"errors"

	"github.com/gogpu/gpuactor/id"
	"github.com/gogpu/gpuactor/protocol"
)

// Common backend errors.
var (
	// ErrUnknownBackend is returned when an identifier carries a tag with
	// no registered backend.
	ErrUnknownBackend = errors.New("backend: unknown backend tag")

	// ErrStaleHandle is returned when an identifier does not name a live
	// resource: never registered, already released or of an older generation.
	ErrStaleHandle = errors.New("backend: stale or unknown handle")

	// ErrDuplicateHandle is returned when a resource is registered under an
	// identifier that is already live.
	ErrDuplicateHandle = errors.New("backend: handle already in use")

	// ErrBackendMismatch is returned when identifiers of one request name
	// different backends.
	ErrBackendMismatch = errors.New("backend: identifiers belong to different backends")

	// ErrNoAdapter is returned when no candidate yields a usable adapter.
	ErrNoAdapter = errors.New("backend: no suitable adapter")

	// ErrDeviceLost is returned when the native device is gone.
	ErrDeviceLost = errors.New("backend: device lost")

	// ErrQueueTimeout is returned by Submit when the queue accepted the
	// command buffers but did not finish them in time. The command buffers
	// are consumed.
	ErrQueueTimeout = errors.New("backend: queue did not finish")

	// ErrInvalidLabel is returned when a debug label is not valid text.
	ErrInvalidLabel = errors.New("backend: invalid label")

	// ErrInvalidDescriptor is returned when a descriptor fails validation.
	ErrInvalidDescriptor = errors.New("backend: invalid descriptor")

	// ErrDuplicateBackend is returned when a tag is registered twice.
	ErrDuplicateBackend = errors.New("backend: tag already registered")

	// ErrPanic is returned when a backend call panicked.
	ErrPanic = errors.New("backend: panic in backend call")

	// ErrUnsupported is returned for operations a backend does not implement.
	ErrUnsupported = errors.New("backend: operation not supported")
)

// DeviceType classifies an adapter for power-preference selection.
type DeviceType uint8

// Adapter device types.
const (
	DeviceTypeOther DeviceType = iota
	DeviceTypeIntegratedGPU
	DeviceTypeDiscreteGPU
	DeviceTypeVirtualGPU
	DeviceTypeCPU
)

func (t DeviceType) String() string {
	switch t {
	case DeviceTypeIntegratedGPU:
		return "integrated"
	case DeviceTypeDiscreteGPU:
		return "discrete"
	case DeviceTypeVirtualGPU:
		return "virtual"
	case DeviceTypeCPU:
		return "cpu"
	default:
		return "other"
	}
}

// AdapterInfo describes an adapter.
type AdapterInfo struct {
	Name       string
	DeviceType DeviceType
	Backend    id.Backend
}

// Exposed is an adapter a backend offers but has not yet registered.
// Handle is private to the backend that produced it.
type Exposed struct {
	Info   AdapterInfo
	Handle any
}

// Backend is the capability set of one backend tag.
//
// Resources are addressed by caller-assigned identifiers. Implementations
// keep them in generation-checked storage and return ErrStaleHandle for
// identifiers that do not name a live resource. Methods are only called
// from the actor goroutine.
type Backend interface {
	// Tag returns the identifier tag this backend serves.
	Tag() id.Backend

	// Name returns a human-readable backend name.
	Name() string

	// Expose lists the adapters available for opts. Order is the
	// backend's preference.
	Expose(opts protocol.AdapterOptions) ([]Exposed, error)

	// AdoptAdapter registers an exposed adapter under the given identifier.
	AdoptAdapter(adapter id.ID, e Exposed) (AdapterInfo, error)

	// RequestDevice opens a device on adapter. The device's queue is
	// registered under the device identifier.
	RequestDevice(adapter id.ID, desc protocol.DeviceDescriptor, device id.ID) error

	CreateBuffer(device, buffer id.ID, desc protocol.BufferDescriptor) error
	DestroyBuffer(buffer id.ID) error

	// WriteBuffer copies data into buffer at offset.
	WriteBuffer(device, buffer id.ID, offset uint64, data []byte) error

	CreateTexture(device, texture id.ID, desc protocol.TextureDescriptor) error
	DestroyTexture(texture id.ID) error
	CreateTextureView(texture, view id.ID, desc protocol.TextureViewDescriptor) error
	CreateSampler(device, sampler id.ID, desc protocol.SamplerDescriptor) error
	CreateBindGroupLayout(device, layout id.ID, desc protocol.BindGroupLayoutDescriptor) error
	CreateBindGroup(device, group id.ID, desc protocol.BindGroupDescriptor) error
	CreatePipelineLayout(device, layout id.ID, desc protocol.PipelineLayoutDescriptor) error
	CreateShaderModule(device, module id.ID, desc protocol.ShaderModuleDescriptor) error
	CreateComputePipeline(device, pipeline id.ID, desc protocol.ComputePipelineDescriptor) error
	CreateRenderPipeline(device, pipeline id.ID, desc protocol.RenderPipelineDescriptor) error
	CreateCommandEncoder(device, encoder id.ID, desc protocol.CommandEncoderDescriptor) error

	CopyBufferToBuffer(encoder, src id.ID, srcOffset uint64, dst id.ID, dstOffset, size uint64) error
	RunComputePass(encoder id.ID, pass *protocol.ComputePass) error
	RunRenderPass(encoder id.ID, pass *protocol.RenderPass) error

	// FinishCommandEncoder ends recording. The command buffer is registered
	// under the encoder identifier.
	FinishCommandEncoder(encoder id.ID) error

	// Submit executes command buffers on queue and releases them. Every
	// command buffer is checked first: on error none of them has been
	// consumed, unless the error is ErrQueueTimeout.
	Submit(queue id.ID, buffers []id.ID) error

	// Close releases every resource the backend holds.
	Close() error
}
