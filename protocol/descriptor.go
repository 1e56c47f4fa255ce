package protocol

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/gpuactor/id"
)

// PowerPreference selects between adapters when several are available.
type PowerPreference uint8

// Power preferences.
const (
	PowerPreferenceNone PowerPreference = iota
	PowerPreferenceLowPower
	PowerPreferenceHighPerformance
)

// AdapterOptions are the selection criteria of a RequestAdapter.
type AdapterOptions struct {
	PowerPreference PowerPreference

	// ForceFallback restricts selection to CPU/fallback adapters.
	ForceFallback bool
}

// DeviceDescriptor describes a device requested from an adapter.
type DeviceDescriptor struct {
	Label            string
	RequiredFeatures gputypes.Features
	RequiredLimits   gputypes.Limits
}

// DefaultDeviceDescriptor returns a descriptor with default limits and no
// required features.
func DefaultDeviceDescriptor() DeviceDescriptor {
	return DeviceDescriptor{RequiredLimits: gputypes.DefaultLimits()}
}

// BufferDescriptor describes a buffer to create.
type BufferDescriptor struct {
	Label            string
	Size             uint64
	Usage            gputypes.BufferUsage
	MappedAtCreation bool
}

// TextureDescriptor describes a texture to create.
type TextureDescriptor struct {
	Label         string
	Size          gputypes.Extent3D
	MipLevelCount uint32
	SampleCount   uint32
	Dimension     gputypes.TextureDimension
	Format        gputypes.TextureFormat
	Usage         gputypes.TextureUsage
}

// TextureViewDescriptor describes a view of an existing texture.
// Zero values inherit from the texture.
type TextureViewDescriptor struct {
	Label           string
	Format          gputypes.TextureFormat
	Dimension       gputypes.TextureViewDimension
	Aspect          gputypes.TextureAspect
	BaseMipLevel    uint32
	MipLevelCount   uint32
	BaseArrayLayer  uint32
	ArrayLayerCount uint32
}

// SamplerDescriptor describes a sampler to create.
type SamplerDescriptor struct {
	Label        string
	AddressModeU gputypes.AddressMode
	AddressModeV gputypes.AddressMode
	AddressModeW gputypes.AddressMode
	MagFilter    gputypes.FilterMode
	MinFilter    gputypes.FilterMode
	MipmapFilter gputypes.FilterMode
}

// ShaderStages is a bitmask of the shader stages a binding is visible to.
type ShaderStages uint8

// Shader stages.
const (
	StageVertex ShaderStages = 1 << iota
	StageFragment
	StageCompute
)

// BindingType is the kind of resource a bind group layout slot accepts.
type BindingType uint8

// Binding types.
const (
	BindingUniformBuffer BindingType = iota + 1
	BindingStorageBuffer
	BindingReadOnlyStorageBuffer
	BindingSampler
	BindingSampledTexture
)

// BindGroupLayoutEntry describes one slot of a bind group layout.
type BindGroupLayoutEntry struct {
	Binding        uint32
	Visibility     ShaderStages
	Type           BindingType
	MinBindingSize uint64

	// ViewDimension applies to BindingSampledTexture.
	ViewDimension gputypes.TextureViewDimension
}

// BindGroupLayoutDescriptor describes a bind group layout.
type BindGroupLayoutDescriptor struct {
	Label   string
	Entries []BindGroupLayoutEntry
}

// BindGroupEntry binds one resource to a layout slot. Exactly one of
// Buffer, TextureView and Sampler is non-zero.
type BindGroupEntry struct {
	Binding     uint32
	Buffer      id.ID
	Offset      uint64
	Size        uint64
	TextureView id.ID
	Sampler     id.ID
}

// BindGroupDescriptor describes a bind group.
type BindGroupDescriptor struct {
	Label   string
	Layout  id.ID
	Entries []BindGroupEntry
}

// PipelineLayoutDescriptor describes a pipeline layout.
type PipelineLayoutDescriptor struct {
	Label            string
	BindGroupLayouts []id.ID
}

// ShaderModuleDescriptor carries shader code. SPIRV takes precedence;
// WGSL is compiled by the backend when SPIRV is empty.
type ShaderModuleDescriptor struct {
	Label string
	SPIRV []uint32
	WGSL  string
}

// ComputePipelineDescriptor describes a compute pipeline.
type ComputePipelineDescriptor struct {
	Label      string
	Layout     id.ID
	Module     id.ID
	EntryPoint string
}

// VertexAttribute describes one attribute of a vertex buffer.
type VertexAttribute struct {
	Format         gputypes.VertexFormat
	Offset         uint64
	ShaderLocation uint32
}

// VertexBufferLayout describes one vertex buffer slot.
type VertexBufferLayout struct {
	ArrayStride uint64
	StepMode    gputypes.VertexStepMode
	Attributes  []VertexAttribute
}

// BlendMode selects the blend state of a color target.
type BlendMode uint8

// Blend modes.
const (
	BlendReplace BlendMode = iota
	BlendPremultiplied
)

// ColorTarget describes one color attachment format of a render pipeline.
type ColorTarget struct {
	Format gputypes.TextureFormat
	Blend  BlendMode

	// DisableWrites masks all color channels.
	DisableWrites bool
}

// DepthStencilState describes the depth/stencil format of a render pipeline.
type DepthStencilState struct {
	Format            gputypes.TextureFormat
	DepthWriteEnabled bool
	DepthCompare      gputypes.CompareFunction
}

// RenderPipelineDescriptor describes a render pipeline.
// A zero FragmentModule means the pipeline has no fragment stage.
type RenderPipelineDescriptor struct {
	Label              string
	Layout             id.ID
	VertexModule       id.ID
	VertexEntryPoint   string
	VertexBuffers      []VertexBufferLayout
	FragmentModule     id.ID
	FragmentEntryPoint string
	Targets            []ColorTarget
	Topology           gputypes.PrimitiveTopology
	CullMode           gputypes.CullMode
	DepthStencil       *DepthStencilState
	SampleCount        uint32
	SampleMask         uint32
	AlphaToCoverage    bool
}

// CommandEncoderDescriptor describes a command encoder.
type CommandEncoderDescriptor struct {
	Label string
}
