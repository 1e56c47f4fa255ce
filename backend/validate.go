package backend

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/gpuactor/internal/label"
	"github.com/gogpu/gpuactor/protocol"
)

// Descriptor validation runs before any backend sees a request. Each
// function returns a normalized copy: labels in NFC, zero counts replaced
// by their defaults.

func sanitizeLabel(s string) (string, error) {
	n, err := label.Sanitize(s)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidLabel, err)
	}
	return n, nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidDescriptor}, args...)...)
}

func validateDevice(d protocol.DeviceDescriptor) (protocol.DeviceDescriptor, error) {
	var err error
	d.Label, err = sanitizeLabel(d.Label)
	return d, err
}

func validateBuffer(d protocol.BufferDescriptor) (protocol.BufferDescriptor, error) {
	var err error
	if d.Label, err = sanitizeLabel(d.Label); err != nil {
		return d, err
	}
	if d.MappedAtCreation && d.Size%4 != 0 {
		return d, invalid("mapped buffer size %d is not a multiple of 4", d.Size)
	}
	return d, nil
}

func validateTexture(d protocol.TextureDescriptor) (protocol.TextureDescriptor, error) {
	var err error
	if d.Label, err = sanitizeLabel(d.Label); err != nil {
		return d, err
	}
	if d.Size.Width == 0 || d.Size.Height == 0 {
		return d, invalid("texture size %dx%d", d.Size.Width, d.Size.Height)
	}
	if d.Size.DepthOrArrayLayers == 0 {
		d.Size.DepthOrArrayLayers = 1
	}
	if d.MipLevelCount == 0 {
		d.MipLevelCount = 1
	}
	switch d.SampleCount {
	case 0:
		d.SampleCount = 1
	case 1, 4:
	default:
		return d, invalid("sample count %d", d.SampleCount)
	}
	if d.Format == gputypes.TextureFormatUndefined {
		return d, invalid("texture format undefined")
	}
	return d, nil
}

func validateTextureView(d protocol.TextureViewDescriptor) (protocol.TextureViewDescriptor, error) {
	var err error
	d.Label, err = sanitizeLabel(d.Label)
	return d, err
}

func validateSampler(d protocol.SamplerDescriptor) (protocol.SamplerDescriptor, error) {
	var err error
	d.Label, err = sanitizeLabel(d.Label)
	return d, err
}

func validateBindGroupLayout(d protocol.BindGroupLayoutDescriptor) (protocol.BindGroupLayoutDescriptor, error) {
	var err error
	if d.Label, err = sanitizeLabel(d.Label); err != nil {
		return d, err
	}
	seen := make(map[uint32]bool, len(d.Entries))
	for _, e := range d.Entries {
		if seen[e.Binding] {
			return d, invalid("duplicate binding %d", e.Binding)
		}
		seen[e.Binding] = true
		if e.Type < protocol.BindingUniformBuffer || e.Type > protocol.BindingSampledTexture {
			return d, invalid("binding %d has type %d", e.Binding, e.Type)
		}
		const allStages = protocol.StageVertex | protocol.StageFragment | protocol.StageCompute
		if e.Visibility == 0 || e.Visibility&^allStages != 0 {
			return d, invalid("binding %d has visibility %#x", e.Binding, e.Visibility)
		}
	}
	return d, nil
}

func validateBindGroup(d protocol.BindGroupDescriptor) (protocol.BindGroupDescriptor, error) {
	var err error
	if d.Label, err = sanitizeLabel(d.Label); err != nil {
		return d, err
	}
	if d.Layout.IsZero() {
		return d, invalid("bind group without layout")
	}
	for _, e := range d.Entries {
		n := 0
		for _, set := range []bool{!e.Buffer.IsZero(), !e.TextureView.IsZero(), !e.Sampler.IsZero()} {
			if set {
				n++
			}
		}
		if n != 1 {
			return d, invalid("binding %d names %d resources", e.Binding, n)
		}
	}
	return d, nil
}

func validatePipelineLayout(d protocol.PipelineLayoutDescriptor) (protocol.PipelineLayoutDescriptor, error) {
	var err error
	d.Label, err = sanitizeLabel(d.Label)
	return d, err
}

func validateShaderModule(d protocol.ShaderModuleDescriptor) (protocol.ShaderModuleDescriptor, error) {
	var err error
	if d.Label, err = sanitizeLabel(d.Label); err != nil {
		return d, err
	}
	if len(d.SPIRV) == 0 && d.WGSL == "" {
		return d, invalid("shader module without code")
	}
	return d, nil
}

func validateComputePipeline(d protocol.ComputePipelineDescriptor) (protocol.ComputePipelineDescriptor, error) {
	var err error
	if d.Label, err = sanitizeLabel(d.Label); err != nil {
		return d, err
	}
	if d.Module.IsZero() || d.EntryPoint == "" {
		return d, invalid("compute stage requires a module and an entry point")
	}
	return d, nil
}

func validateRenderPipeline(d protocol.RenderPipelineDescriptor) (protocol.RenderPipelineDescriptor, error) {
	var err error
	if d.Label, err = sanitizeLabel(d.Label); err != nil {
		return d, err
	}
	if d.VertexModule.IsZero() || d.VertexEntryPoint == "" {
		return d, invalid("vertex stage requires a module and an entry point")
	}
	if !d.FragmentModule.IsZero() && d.FragmentEntryPoint == "" {
		return d, invalid("fragment stage without entry point")
	}
	if d.FragmentModule.IsZero() && len(d.Targets) > 0 {
		return d, invalid("color targets without fragment stage")
	}
	if d.SampleCount == 0 {
		d.SampleCount = 1
	}
	if d.SampleMask == 0 {
		d.SampleMask = ^uint32(0)
	}
	return d, nil
}

func validateCommandEncoder(d protocol.CommandEncoderDescriptor) (protocol.CommandEncoderDescriptor, error) {
	var err error
	d.Label, err = sanitizeLabel(d.Label)
	return d, err
}

func validateCopy(r protocol.CopyBufferToBuffer) error {
	if r.SourceOffset%4 != 0 || r.DestinationOffset%4 != 0 || r.Size%4 != 0 {
		return invalid("copy offsets and size must be multiples of 4")
	}
	if r.SourceID == r.DestinationID {
		return invalid("copy source and destination are the same buffer")
	}
	return nil
}
