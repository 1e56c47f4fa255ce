package native

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gpuactor/backend"
	"github.com/gogpu/gpuactor/id"
	"github.com/gogpu/gpuactor/protocol"
)

// nativeHandle is implemented by HAL objects that can be bound by handle.
type nativeHandle interface {
	NativeHandle() uintptr
}

func convertLayoutEntry(e protocol.BindGroupLayoutEntry) gputypes.BindGroupLayoutEntry {
	out := gputypes.BindGroupLayoutEntry{Binding: e.Binding}
	if e.Visibility&protocol.StageVertex != 0 {
		out.Visibility |= gputypes.ShaderStageVertex
	}
	if e.Visibility&protocol.StageFragment != 0 {
		out.Visibility |= gputypes.ShaderStageFragment
	}
	if e.Visibility&protocol.StageCompute != 0 {
		out.Visibility |= gputypes.ShaderStageCompute
	}

	switch e.Type {
	case protocol.BindingUniformBuffer:
		out.Buffer = &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform, MinBindingSize: e.MinBindingSize}
	case protocol.BindingStorageBuffer:
		out.Buffer = &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage, MinBindingSize: e.MinBindingSize}
	case protocol.BindingReadOnlyStorageBuffer:
		out.Buffer = &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage, MinBindingSize: e.MinBindingSize}
	case protocol.BindingSampler:
		out.Sampler = &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering}
	case protocol.BindingSampledTexture:
		dim := e.ViewDimension
		if dim == gputypes.TextureViewDimensionUndefined {
			dim = gputypes.TextureViewDimension2D
		}
		out.Texture = &gputypes.TextureBindingLayout{SampleType: gputypes.TextureSampleTypeFloat, ViewDimension: dim}
	}
	return out
}

// convertBindGroupEntry resolves the referenced resource of e. Must be
// called with mu held.
func (b *Backend) convertBindGroupEntry(dev id.ID, e protocol.BindGroupEntry) (gputypes.BindGroupEntry, error) {
	out := gputypes.BindGroupEntry{Binding: e.Binding}
	switch {
	case !e.Buffer.IsZero():
		buf, err := b.buffers.Get(e.Buffer)
		if err != nil {
			return out, err
		}
		if buf.device != dev {
			return out, fmt.Errorf("%w: buffer %v", ErrWrongDevice, e.Buffer)
		}
		size := e.Size
		if size == 0 && e.Offset <= buf.size {
			size = buf.size - e.Offset
		}
		out.Resource = gputypes.BufferBinding{Buffer: buf.hal.NativeHandle(), Offset: e.Offset, Size: size}
	case !e.TextureView.IsZero():
		v, err := b.views.Get(e.TextureView)
		if err != nil {
			return out, err
		}
		h, ok := v.hal.(nativeHandle)
		if !ok {
			return out, fmt.Errorf("%w: texture view %v has no native handle", backend.ErrUnsupported, e.TextureView)
		}
		out.Resource = gputypes.TextureViewBinding{TextureView: h.NativeHandle()}
	case !e.Sampler.IsZero():
		s, err := b.samplers.Get(e.Sampler)
		if err != nil {
			return out, err
		}
		h, ok := s.hal.(nativeHandle)
		if !ok {
			return out, fmt.Errorf("%w: sampler %v has no native handle", backend.ErrUnsupported, e.Sampler)
		}
		out.Resource = gputypes.SamplerBinding{Sampler: h.NativeHandle()}
	}
	return out, nil
}

func convertVertexBuffers(in []protocol.VertexBufferLayout) []gputypes.VertexBufferLayout {
	if len(in) == 0 {
		return nil
	}
	out := make([]gputypes.VertexBufferLayout, len(in))
	for i, l := range in {
		attrs := make([]gputypes.VertexAttribute, len(l.Attributes))
		for j, a := range l.Attributes {
			attrs[j] = gputypes.VertexAttribute{Format: a.Format, Offset: a.Offset, ShaderLocation: a.ShaderLocation}
		}
		out[i] = gputypes.VertexBufferLayout{ArrayStride: l.ArrayStride, StepMode: l.StepMode, Attributes: attrs}
	}
	return out
}

func convertTargets(in []protocol.ColorTarget) []gputypes.ColorTargetState {
	out := make([]gputypes.ColorTargetState, len(in))
	for i, t := range in {
		out[i] = gputypes.ColorTargetState{Format: t.Format, WriteMask: gputypes.ColorWriteMaskAll}
		if t.DisableWrites {
			out[i].WriteMask = gputypes.ColorWriteMaskNone
		}
		if t.Blend == protocol.BlendPremultiplied {
			blend := gputypes.BlendStatePremultiplied()
			out[i].Blend = &blend
		}
	}
	return out
}

func convertDepthStencil(ds *protocol.DepthStencilState) *hal.DepthStencilState {
	if ds == nil {
		return nil
	}
	compare := ds.DepthCompare
	if compare == 0 {
		compare = gputypes.CompareFunctionAlways
	}
	keep := hal.StencilFaceState{
		Compare:     gputypes.CompareFunctionAlways,
		FailOp:      hal.StencilOperationKeep,
		DepthFailOp: hal.StencilOperationKeep,
		PassOp:      hal.StencilOperationKeep,
	}
	return &hal.DepthStencilState{
		Format:            ds.Format,
		DepthWriteEnabled: ds.DepthWriteEnabled,
		DepthCompare:      compare,
		StencilFront:      keep,
		StencilBack:       keep,
		StencilReadMask:   0xFF,
		StencilWriteMask:  0xFF,
	}
}

func primitiveState(desc protocol.RenderPipelineDescriptor) gputypes.PrimitiveState {
	return gputypes.PrimitiveState{Topology: desc.Topology, CullMode: desc.CullMode}
}

// multisampleState maps the sample settings. AlphaToCoverage is not
// forwarded; the HAL pipelines in use never enable it.
func multisampleState(desc protocol.RenderPipelineDescriptor) gputypes.MultisampleState {
	var ms gputypes.MultisampleState
	setUint(&ms.Count, desc.SampleCount)
	setUint(&ms.Mask, desc.SampleMask)
	return ms
}

func setUint[T ~uint32 | ~uint64](dst *T, v uint32) { *dst = T(v) }
