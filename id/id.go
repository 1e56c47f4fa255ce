// Package id defines the caller-assigned resource identifiers routed by the
// actor.
//
// Identifiers are manufactured by an external allocator (see package
// identity) and are opaque to the actor. Each one carries an index, a
// generation counter and a backend tag. The tag selects the backend
// implementation; the index and generation select the concrete resource
// inside that backend.
package id

import "fmt"

// Backend is the discriminator embedded in every identifier. It names the
// backend implementation that owns the resource.
type Backend uint8

// Backend tags. Values fit in the 3 tag bits of a packed identifier.
const (
	// Empty is the no-op HAL backend.
	Empty Backend = 0
	// Vulkan is the Vulkan HAL backend.
	Vulkan Backend = 1
	// Metal is the Metal HAL backend.
	Metal Backend = 2
	// DX12 is the Direct3D 12 HAL backend.
	DX12 Backend = 3
	// DX11 is the Direct3D 11 HAL backend.
	DX11 Backend = 4
	// GL is the OpenGL / GLES HAL backend.
	GL Backend = 5
	// Software is the CPU reference backend.
	Software Backend = 7
)

// String returns the lowercase backend name.
func (b Backend) String() string {
	switch b {
	case Empty:
		return "empty"
	case Vulkan:
		return "vulkan"
	case Metal:
		return "metal"
	case DX12:
		return "dx12"
	case DX11:
		return "dx11"
	case GL:
		return "gl"
	case Software:
		return "software"
	default:
		return fmt.Sprintf("backend(%d)", uint8(b))
	}
}

// ParseBackend returns the tag for a backend name as printed by String.
func ParseBackend(name string) (Backend, bool) {
	for _, b := range []Backend{Empty, Vulkan, Metal, DX12, DX11, GL, Software} {
		if b.String() == name {
			return b, true
		}
	}
	return 0, false
}

const (
	indexBits      = 32
	generationBits = 29
	backendBits    = 3

	generationMask = 1<<generationBits - 1
	backendMask    = 1<<backendBits - 1
)

// MaxGeneration is the largest generation a packed identifier can carry.
// Allocators wrap to 0 after it.
const MaxGeneration = generationMask

// ID is an immutable resource identifier.
//
// The zero ID is invalid; allocators start generations at 1.
type ID struct {
	Index      uint32
	Generation uint32
	Backend    Backend
}

// New returns an identifier for the given components.
func New(index, generation uint32, backend Backend) ID {
	return ID{Index: index, Generation: generation & generationMask, Backend: backend}
}

// IsZero reports whether the identifier is the zero (invalid) value.
func (i ID) IsZero() bool {
	return i == ID{}
}

// Pack encodes the identifier into 64 bits:
// index in bits 0-31, generation in bits 32-60, backend tag in bits 61-63.
func (i ID) Pack() uint64 {
	return uint64(i.Index) |
		uint64(i.Generation&generationMask)<<indexBits |
		uint64(i.Backend&backendMask)<<(indexBits+generationBits)
}

// Unpack decodes a value produced by Pack.
func Unpack(v uint64) ID {
	return ID{
		Index:      uint32(v),
		Generation: uint32(v>>indexBits) & generationMask,
		Backend:    Backend(v>>(indexBits+generationBits)) & backendMask,
	}
}

// String returns a compact form like "vulkan:3v2".
func (i ID) String() string {
	return fmt.Sprintf("%s:%dv%d", i.Backend, i.Index, i.Generation)
}

// Kind enumerates the resource kinds that identifiers refer to.
type Kind uint8

// Resource kinds.
const (
	KindAdapter Kind = iota + 1
	KindDevice
	KindQueue
	KindBuffer
	KindTexture
	KindTextureView
	KindSampler
	KindBindGroupLayout
	KindBindGroup
	KindPipelineLayout
	KindShaderModule
	KindComputePipeline
	KindRenderPipeline
	KindCommandEncoder
	KindCommandBuffer
)

var kindNames = [...]string{
	KindAdapter:         "adapter",
	KindDevice:          "device",
	KindQueue:           "queue",
	KindBuffer:          "buffer",
	KindTexture:         "texture",
	KindTextureView:     "texture_view",
	KindSampler:         "sampler",
	KindBindGroupLayout: "bind_group_layout",
	KindBindGroup:       "bind_group",
	KindPipelineLayout:  "pipeline_layout",
	KindShaderModule:    "shader_module",
	KindComputePipeline: "compute_pipeline",
	KindRenderPipeline:  "render_pipeline",
	KindCommandEncoder:  "command_encoder",
	KindCommandBuffer:   "command_buffer",
}

// String returns the snake_case kind name.
func (k Kind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}
