package native

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gpuactor/backend"
	"github.com/gogpu/gpuactor/id"
	"github.com/gogpu/gpuactor/protocol"
)

// CreateBuffer creates a HAL buffer on dev.
func (b *Backend) CreateBuffer(dev, buf id.ID, desc protocol.BufferDescriptor) error {
	if err := b.begin(); err != nil {
		return err
	}
	defer b.mu.Unlock()
	d, err := b.device(dev)
	if err != nil {
		return err
	}
	if b.buffers.Contains(buf) {
		return fmt.Errorf("%w: buffer %v", backend.ErrDuplicateHandle, buf)
	}
	hb, err := d.hal.CreateBuffer(&hal.BufferDescriptor{
		Label:            desc.Label,
		Size:             desc.Size,
		Usage:            desc.Usage,
		MappedAtCreation: desc.MappedAtCreation,
	})
	if err != nil {
		return fmt.Errorf("create buffer %q: %w", desc.Label, err)
	}
	if err := b.buffers.Insert(buf, &buffer{device: dev, hal: hb, size: desc.Size}); err != nil {
		d.hal.DestroyBuffer(hb)
		return err
	}
	return nil
}

// DestroyBuffer destroys a buffer.
func (b *Backend) DestroyBuffer(buf id.ID) error {
	if err := b.begin(); err != nil {
		return err
	}
	defer b.mu.Unlock()
	bb, err := b.buffers.Remove(buf)
	if err != nil {
		return err
	}
	if d, err := b.device(bb.device); err == nil {
		d.hal.DestroyBuffer(bb.hal)
	}
	return nil
}

// WriteBuffer writes data through the device queue.
func (b *Backend) WriteBuffer(dev, buf id.ID, offset uint64, data []byte) error {
	if err := b.begin(); err != nil {
		return err
	}
	defer b.mu.Unlock()
	d, err := b.device(dev)
	if err != nil {
		return err
	}
	bb, err := b.buffers.Get(buf)
	if err != nil {
		return err
	}
	if bb.device != dev {
		return fmt.Errorf("%w: buffer %v", ErrWrongDevice, buf)
	}
	if n := uint64(len(data)); offset > bb.size || n > bb.size-offset {
		return fmt.Errorf("%w: write [%d, +%d) of %d", backend.ErrInvalidDescriptor, offset, n, bb.size)
	}
	d.queue.WriteBuffer(bb.hal, offset, data)
	return nil
}

// CreateTexture creates a HAL texture on dev.
func (b *Backend) CreateTexture(dev, tex id.ID, desc protocol.TextureDescriptor) error {
	if err := b.begin(); err != nil {
		return err
	}
	defer b.mu.Unlock()
	d, err := b.device(dev)
	if err != nil {
		return err
	}
	if b.textures.Contains(tex) {
		return fmt.Errorf("%w: texture %v", backend.ErrDuplicateHandle, tex)
	}
	ht, err := d.hal.CreateTexture(&hal.TextureDescriptor{
		Label: desc.Label,
		Size: hal.Extent3D{
			Width:              desc.Size.Width,
			Height:             desc.Size.Height,
			DepthOrArrayLayers: desc.Size.DepthOrArrayLayers,
		},
		MipLevelCount: desc.MipLevelCount,
		SampleCount:   desc.SampleCount,
		Dimension:     desc.Dimension,
		Format:        desc.Format,
		Usage:         desc.Usage,
	})
	if err != nil {
		return fmt.Errorf("create texture %q: %w", desc.Label, err)
	}
	if err := b.textures.Insert(tex, &texture{device: dev, hal: ht}); err != nil {
		d.hal.DestroyTexture(ht)
		return err
	}
	return nil
}

// DestroyTexture destroys a texture and every view created from it.
func (b *Backend) DestroyTexture(tex id.ID) error {
	if err := b.begin(); err != nil {
		return err
	}
	defer b.mu.Unlock()
	t, err := b.textures.Remove(tex)
	if err != nil {
		return err
	}
	d, err := b.device(t.device)
	if err != nil {
		return nil
	}
	var views []id.ID
	b.views.Range(func(vid id.ID, v *textureView) bool {
		if v.texture == tex {
			views = append(views, vid)
		}
		return true
	})
	for _, vid := range views {
		if v, err := b.views.Remove(vid); err == nil {
			d.hal.DestroyTextureView(v.hal)
		}
	}
	d.hal.DestroyTexture(t.hal)
	return nil
}

// CreateTextureView creates a view of tex.
func (b *Backend) CreateTextureView(tex, view id.ID, desc protocol.TextureViewDescriptor) error {
	if err := b.begin(); err != nil {
		return err
	}
	defer b.mu.Unlock()
	t, err := b.textures.Get(tex)
	if err != nil {
		return err
	}
	d, err := b.device(t.device)
	if err != nil {
		return err
	}
	if b.views.Contains(view) {
		return fmt.Errorf("%w: texture view %v", backend.ErrDuplicateHandle, view)
	}
	hv, err := d.hal.CreateTextureView(t.hal, &hal.TextureViewDescriptor{
		Label:           desc.Label,
		Format:          desc.Format,
		Dimension:       desc.Dimension,
		Aspect:          desc.Aspect,
		BaseMipLevel:    desc.BaseMipLevel,
		MipLevelCount:   desc.MipLevelCount,
		BaseArrayLayer:  desc.BaseArrayLayer,
		ArrayLayerCount: desc.ArrayLayerCount,
	})
	if err != nil {
		return fmt.Errorf("create texture view %q: %w", desc.Label, err)
	}
	if err := b.views.Insert(view, &textureView{device: t.device, texture: tex, hal: hv}); err != nil {
		d.hal.DestroyTextureView(hv)
		return err
	}
	return nil
}

// createOwned creates a device-owned HAL object with fn and stores it
// under res. fn runs with mu held and may resolve other resources.
func createOwned[T any](b *Backend, s *backend.Storage[owned[T]], dev, res id.ID, fn func(*device) (T, error), destroy func(hal.Device, T)) error {
	if err := b.begin(); err != nil {
		return err
	}
	defer b.mu.Unlock()
	d, err := b.device(dev)
	if err != nil {
		return err
	}
	if s.Contains(res) {
		return fmt.Errorf("%w: %s %v", backend.ErrDuplicateHandle, s.Kind(), res)
	}
	v, err := fn(d)
	if err != nil {
		return err
	}
	if err := s.Insert(res, owned[T]{device: dev, hal: v}); err != nil {
		destroy(d.hal, v)
		return err
	}
	return nil
}

// ownedOn returns the HAL object stored under i, checking that it was
// created on dev.
func ownedOn[T any](s *backend.Storage[owned[T]], dev, i id.ID) (T, error) {
	v, err := s.Get(i)
	if err != nil {
		var zero T
		return zero, err
	}
	if v.device != dev {
		var zero T
		return zero, fmt.Errorf("%w: %s %v", ErrWrongDevice, s.Kind(), i)
	}
	return v.hal, nil
}

// CreateSampler creates a sampler.
func (b *Backend) CreateSampler(dev, sampler id.ID, desc protocol.SamplerDescriptor) error {
	return createOwned(b, b.samplers, dev, sampler, func(d *device) (hal.Sampler, error) {
		s, err := d.hal.CreateSampler(&hal.SamplerDescriptor{
			Label:        desc.Label,
			AddressModeU: desc.AddressModeU,
			AddressModeV: desc.AddressModeV,
			AddressModeW: desc.AddressModeW,
			MagFilter:    desc.MagFilter,
			MinFilter:    desc.MinFilter,
			MipmapFilter: desc.MipmapFilter,
		})
		if err != nil {
			return nil, fmt.Errorf("create sampler %q: %w", desc.Label, err)
		}
		return s, nil
	}, hal.Device.DestroySampler)
}

// CreateBindGroupLayout creates a bind group layout.
func (b *Backend) CreateBindGroupLayout(dev, layout id.ID, desc protocol.BindGroupLayoutDescriptor) error {
	return createOwned(b, b.bindGroupLayouts, dev, layout, func(d *device) (hal.BindGroupLayout, error) {
		entries := make([]gputypes.BindGroupLayoutEntry, len(desc.Entries))
		for i, e := range desc.Entries {
			entries[i] = convertLayoutEntry(e)
		}
		l, err := d.hal.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{Label: desc.Label, Entries: entries})
		if err != nil {
			return nil, fmt.Errorf("create bind group layout %q: %w", desc.Label, err)
		}
		return l, nil
	}, hal.Device.DestroyBindGroupLayout)
}

// CreateBindGroup resolves every entry and creates a bind group.
func (b *Backend) CreateBindGroup(dev, group id.ID, desc protocol.BindGroupDescriptor) error {
	return createOwned(b, b.bindGroups, dev, group, func(d *device) (hal.BindGroup, error) {
		layout, err := ownedOn(b.bindGroupLayouts, dev, desc.Layout)
		if err != nil {
			return nil, err
		}
		entries := make([]gputypes.BindGroupEntry, len(desc.Entries))
		for i, e := range desc.Entries {
			if entries[i], err = b.convertBindGroupEntry(dev, e); err != nil {
				return nil, err
			}
		}
		g, err := d.hal.CreateBindGroup(&hal.BindGroupDescriptor{Label: desc.Label, Layout: layout, Entries: entries})
		if err != nil {
			return nil, fmt.Errorf("create bind group %q: %w", desc.Label, err)
		}
		return g, nil
	}, hal.Device.DestroyBindGroup)
}

// CreatePipelineLayout creates a pipeline layout.
func (b *Backend) CreatePipelineLayout(dev, layout id.ID, desc protocol.PipelineLayoutDescriptor) error {
	return createOwned(b, b.pipelineLayouts, dev, layout, func(d *device) (hal.PipelineLayout, error) {
		layouts := make([]hal.BindGroupLayout, len(desc.BindGroupLayouts))
		for i, l := range desc.BindGroupLayouts {
			hl, err := ownedOn(b.bindGroupLayouts, dev, l)
			if err != nil {
				return nil, err
			}
			layouts[i] = hl
		}
		pl, err := d.hal.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{Label: desc.Label, BindGroupLayouts: layouts})
		if err != nil {
			return nil, fmt.Errorf("create pipeline layout %q: %w", desc.Label, err)
		}
		return pl, nil
	}, hal.Device.DestroyPipelineLayout)
}

// CreateShaderModule creates a shader module, compiling WGSL through naga
// when no SPIR-V is given.
func (b *Backend) CreateShaderModule(dev, module id.ID, desc protocol.ShaderModuleDescriptor) error {
	return createOwned(b, b.shaderModules, dev, module, func(d *device) (hal.ShaderModule, error) {
		code, err := b.shaderCode(desc)
		if err != nil {
			return nil, err
		}
		m, err := d.hal.CreateShaderModule(&hal.ShaderModuleDescriptor{
			Label:  desc.Label,
			Source: hal.ShaderSource{SPIRV: code},
		})
		if err != nil {
			return nil, fmt.Errorf("create shader module %q: %w", desc.Label, err)
		}
		return m, nil
	}, hal.Device.DestroyShaderModule)
}

// pipelineLayout resolves an optional pipeline layout.
func (b *Backend) pipelineLayout(dev, l id.ID) (hal.PipelineLayout, error) {
	if l.IsZero() {
		return nil, nil
	}
	return ownedOn(b.pipelineLayouts, dev, l)
}

// CreateComputePipeline creates a compute pipeline.
func (b *Backend) CreateComputePipeline(dev, pipeline id.ID, desc protocol.ComputePipelineDescriptor) error {
	return createOwned(b, b.computePipelines, dev, pipeline, func(d *device) (hal.ComputePipeline, error) {
		layout, err := b.pipelineLayout(dev, desc.Layout)
		if err != nil {
			return nil, err
		}
		module, err := ownedOn(b.shaderModules, dev, desc.Module)
		if err != nil {
			return nil, err
		}
		p, err := d.hal.CreateComputePipeline(&hal.ComputePipelineDescriptor{
			Label:   desc.Label,
			Layout:  layout,
			Compute: hal.ComputeState{Module: module, EntryPoint: desc.EntryPoint},
		})
		if err != nil {
			return nil, fmt.Errorf("create compute pipeline %q: %w", desc.Label, err)
		}
		return p, nil
	}, hal.Device.DestroyComputePipeline)
}

// CreateRenderPipeline creates a render pipeline.
func (b *Backend) CreateRenderPipeline(dev, pipeline id.ID, desc protocol.RenderPipelineDescriptor) error {
	return createOwned(b, b.renderPipelines, dev, pipeline, func(d *device) (hal.RenderPipeline, error) {
		layout, err := b.pipelineLayout(dev, desc.Layout)
		if err != nil {
			return nil, err
		}
		vertex, err := ownedOn(b.shaderModules, dev, desc.VertexModule)
		if err != nil {
			return nil, err
		}
		hd := &hal.RenderPipelineDescriptor{
			Label:  desc.Label,
			Layout: layout,
			Vertex: hal.VertexState{
				Module:     vertex,
				EntryPoint: desc.VertexEntryPoint,
				Buffers:    convertVertexBuffers(desc.VertexBuffers),
			},
			Primitive:    primitiveState(desc),
			DepthStencil: convertDepthStencil(desc.DepthStencil),
			Multisample:  multisampleState(desc),
		}
		if !desc.FragmentModule.IsZero() {
			fragment, err := ownedOn(b.shaderModules, dev, desc.FragmentModule)
			if err != nil {
				return nil, err
			}
			hd.Fragment = &hal.FragmentState{
				Module:     fragment,
				EntryPoint: desc.FragmentEntryPoint,
				Targets:    convertTargets(desc.Targets),
			}
		}
		p, err := d.hal.CreateRenderPipeline(hd)
		if err != nil {
			return nil, fmt.Errorf("create render pipeline %q: %w", desc.Label, err)
		}
		return p, nil
	}, hal.Device.DestroyRenderPipeline)
}
