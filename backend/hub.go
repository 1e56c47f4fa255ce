package backend

import (
	"errors"
	"fmt"

	"github.com/gogpu/gpuactor/id"
	"github.com/gogpu/gpuactor/identity"
	"github.com/gogpu/gpuactor/internal/logging"
	"github.com/gogpu/gpuactor/protocol"
)

// Hub routes requests to backends.
//
// Every dispatch is a two-step lookup: the tag of the owning identifier
// selects the backend, then the backend resolves index and generation in
// its own storage. Descriptors are validated before routing. Identifier
// lifecycle changes are reported to the identity handler on behalf of the
// backends.
type Hub struct {
	table *Table
	ids   identity.Handler
}

// NewHub returns a hub over t. A nil handler discards notifications.
func NewHub(t *Table, ids identity.Handler) *Hub {
	if ids == nil {
		ids = identity.Discard{}
	}
	return &Hub{table: t, ids: ids}
}

// Table returns the dispatch table.
func (h *Hub) Table() *Table { return h.table }

// guard runs fn and converts a panic into ErrPanic.
func guard(op string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: %v", ErrPanic, op, r)
		}
	}()
	return fn()
}

// route resolves the backend of owner and checks that every related
// non-zero identifier carries the same tag.
func (h *Hub) route(owner id.ID, related ...id.ID) (Backend, error) {
	b, err := h.table.Lookup(owner.Backend)
	if err != nil {
		return nil, err
	}
	for _, r := range related {
		if !r.IsZero() && r.Backend != owner.Backend {
			return nil, fmt.Errorf("%w: %v and %v", ErrBackendMismatch, owner, r)
		}
	}
	return b, nil
}

type candidate struct {
	id      id.ID
	backend Backend
	exposed Exposed
}

// PickAdapter selects an adapter among candidates and registers it under
// the winning candidate's identifier.
//
// Candidates whose tag is not registered, or for which skip returns true,
// are ignored. Only the first candidate of each tag is considered.
func (h *Hub) PickAdapter(opts protocol.AdapterOptions, candidates []id.ID, skip func(id.ID) bool) (picked id.ID, info AdapterInfo, err error) {
	err = guard(protocol.OpRequestAdapter.String(), func() error {
		var found []candidate
		seen := make(map[id.Backend]bool)
		for _, c := range candidates {
			if c.IsZero() || seen[c.Backend] || !h.table.Has(c.Backend) {
				continue
			}
			if skip != nil && skip(c) {
				continue
			}
			seen[c.Backend] = true

			b, _ := h.table.Lookup(c.Backend)
			exposed, err := b.Expose(opts)
			if err != nil {
				logging.L().Debug("backend: expose failed", "backend", c.Backend, "error", err)
				continue
			}
			for _, e := range exposed {
				if opts.ForceFallback && e.Info.DeviceType != DeviceTypeCPU {
					continue
				}
				found = append(found, candidate{id: c, backend: b, exposed: e})
			}
		}
		if len(found) == 0 {
			return ErrNoAdapter
		}

		best := selectAdapter(opts.PowerPreference, found)
		adopted, err := best.backend.AdoptAdapter(best.id, best.exposed)
		if err != nil {
			return fmt.Errorf("adopt %s adapter: %w", best.id.Backend, err)
		}
		picked, info = best.id, adopted
		h.ids.Process(id.KindAdapter, best.id)
		return nil
	})
	if err != nil {
		return id.ID{}, AdapterInfo{}, err
	}
	return picked, info, nil
}

func selectAdapter(pref protocol.PowerPreference, found []candidate) candidate {
	var want DeviceType
	switch pref {
	case protocol.PowerPreferenceHighPerformance:
		want = DeviceTypeDiscreteGPU
	case protocol.PowerPreferenceLowPower:
		want = DeviceTypeIntegratedGPU
	default:
		return found[0]
	}
	for _, c := range found {
		if c.exposed.Info.DeviceType == want {
			return c
		}
	}
	return found[0]
}

// RequestDevice opens a device on adapter. The queue shares the device
// identifier.
func (h *Hub) RequestDevice(adapter id.ID, desc protocol.DeviceDescriptor, device id.ID) error {
	return guard(protocol.OpRequestDevice.String(), func() error {
		d, err := validateDevice(desc)
		if err != nil {
			return err
		}
		if device.IsZero() {
			return fmt.Errorf("%w: zero device id", ErrInvalidDescriptor)
		}
		b, err := h.route(adapter, device)
		if err != nil {
			return err
		}
		if err := b.RequestDevice(adapter, d, device); err != nil {
			return err
		}
		h.ids.Process(id.KindDevice, device)
		h.ids.Process(id.KindQueue, device)
		return nil
	})
}

// Dispatch executes a fire-and-forget request.
func (h *Hub) Dispatch(req protocol.Request) error {
	return guard(req.Op().String(), func() error {
		return h.dispatch(req)
	})
}

// create routes a resource creation and reports the new identifier.
func (h *Hub) create(kind id.Kind, res id.ID, fn func(Backend) error, owner id.ID, related ...id.ID) error {
	if res.IsZero() {
		return fmt.Errorf("%w: zero %s id", ErrStaleHandle, kind)
	}
	if res.Backend != owner.Backend {
		return fmt.Errorf("%w: %v and %v", ErrBackendMismatch, owner, res)
	}
	b, err := h.route(owner, related...)
	if err != nil {
		return err
	}
	if err := fn(b); err != nil {
		return err
	}
	h.ids.Process(kind, res)
	return nil
}

func (h *Hub) dispatch(req protocol.Request) error {
	switch r := req.(type) {
	case protocol.CreateBuffer:
		d, err := validateBuffer(r.Descriptor)
		if err != nil {
			return err
		}
		return h.create(id.KindBuffer, r.BufferID, func(b Backend) error {
			return b.CreateBuffer(r.DeviceID, r.BufferID, d)
		}, r.DeviceID)

	case protocol.DestroyBuffer:
		b, err := h.route(r.BufferID)
		if err != nil {
			return err
		}
		if err := b.DestroyBuffer(r.BufferID); err != nil {
			return err
		}
		h.ids.Free(id.KindBuffer, r.BufferID)
		return nil

	case protocol.UnmapBuffer:
		b, err := h.route(r.DeviceID, r.BufferID)
		if err != nil {
			return err
		}
		return b.WriteBuffer(r.DeviceID, r.BufferID, 0, r.Data)

	case protocol.CreateTexture:
		d, err := validateTexture(r.Descriptor)
		if err != nil {
			return err
		}
		return h.create(id.KindTexture, r.TextureID, func(b Backend) error {
			return b.CreateTexture(r.DeviceID, r.TextureID, d)
		}, r.DeviceID)

	case protocol.DestroyTexture:
		b, err := h.route(r.TextureID)
		if err != nil {
			return err
		}
		if err := b.DestroyTexture(r.TextureID); err != nil {
			return err
		}
		h.ids.Free(id.KindTexture, r.TextureID)
		return nil

	case protocol.CreateTextureView:
		d, err := validateTextureView(r.Descriptor)
		if err != nil {
			return err
		}
		return h.create(id.KindTextureView, r.TextureViewID, func(b Backend) error {
			return b.CreateTextureView(r.TextureID, r.TextureViewID, d)
		}, r.TextureID)

	case protocol.CreateSampler:
		d, err := validateSampler(r.Descriptor)
		if err != nil {
			return err
		}
		return h.create(id.KindSampler, r.SamplerID, func(b Backend) error {
			return b.CreateSampler(r.DeviceID, r.SamplerID, d)
		}, r.DeviceID)

	case protocol.CreateBindGroupLayout:
		d, err := validateBindGroupLayout(r.Descriptor)
		if err != nil {
			return err
		}
		return h.create(id.KindBindGroupLayout, r.BindGroupLayoutID, func(b Backend) error {
			return b.CreateBindGroupLayout(r.DeviceID, r.BindGroupLayoutID, d)
		}, r.DeviceID)

	case protocol.CreateBindGroup:
		d, err := validateBindGroup(r.Descriptor)
		if err != nil {
			return err
		}
		related := []id.ID{d.Layout}
		for _, e := range d.Entries {
			related = append(related, e.Buffer, e.TextureView, e.Sampler)
		}
		return h.create(id.KindBindGroup, r.BindGroupID, func(b Backend) error {
			return b.CreateBindGroup(r.DeviceID, r.BindGroupID, d)
		}, r.DeviceID, related...)

	case protocol.CreatePipelineLayout:
		d, err := validatePipelineLayout(r.Descriptor)
		if err != nil {
			return err
		}
		return h.create(id.KindPipelineLayout, r.PipelineLayoutID, func(b Backend) error {
			return b.CreatePipelineLayout(r.DeviceID, r.PipelineLayoutID, d)
		}, r.DeviceID, d.BindGroupLayouts...)

	case protocol.CreateShaderModule:
		d, err := validateShaderModule(r.Descriptor)
		if err != nil {
			return err
		}
		return h.create(id.KindShaderModule, r.ShaderModuleID, func(b Backend) error {
			return b.CreateShaderModule(r.DeviceID, r.ShaderModuleID, d)
		}, r.DeviceID)

	case protocol.CreateComputePipeline:
		d, err := validateComputePipeline(r.Descriptor)
		if err != nil {
			return err
		}
		return h.create(id.KindComputePipeline, r.ComputePipelineID, func(b Backend) error {
			return b.CreateComputePipeline(r.DeviceID, r.ComputePipelineID, d)
		}, r.DeviceID, d.Layout, d.Module)

	case protocol.CreateRenderPipeline:
		d, err := validateRenderPipeline(r.Descriptor)
		if err != nil {
			return err
		}
		return h.create(id.KindRenderPipeline, r.RenderPipelineID, func(b Backend) error {
			return b.CreateRenderPipeline(r.DeviceID, r.RenderPipelineID, d)
		}, r.DeviceID, d.Layout, d.VertexModule, d.FragmentModule)

	case protocol.CreateCommandEncoder:
		d, err := validateCommandEncoder(r.Descriptor)
		if err != nil {
			return err
		}
		return h.create(id.KindCommandEncoder, r.CommandEncoderID, func(b Backend) error {
			return b.CreateCommandEncoder(r.DeviceID, r.CommandEncoderID, d)
		}, r.DeviceID)

	case protocol.CopyBufferToBuffer:
		if err := validateCopy(r); err != nil {
			return err
		}
		b, err := h.route(r.CommandEncoderID, r.SourceID, r.DestinationID)
		if err != nil {
			return err
		}
		return b.CopyBufferToBuffer(r.CommandEncoderID, r.SourceID, r.SourceOffset, r.DestinationID, r.DestinationOffset, r.Size)

	case protocol.RunComputePass:
		pass, err := protocol.DecodeComputePass(r.PassData)
		if err != nil {
			return err
		}
		if pass.Label, err = sanitizeLabel(pass.Label); err != nil {
			return err
		}
		var related []id.ID
		for _, c := range pass.Commands {
			related = append(related, c.Pipeline, c.BindGroup)
		}
		b, err := h.route(r.CommandEncoderID, related...)
		if err != nil {
			return err
		}
		return b.RunComputePass(r.CommandEncoderID, pass)

	case protocol.RunRenderPass:
		pass, err := protocol.DecodeRenderPass(r.PassData)
		if err != nil {
			return err
		}
		if pass.Label, err = sanitizeLabel(pass.Label); err != nil {
			return err
		}
		var related []id.ID
		for _, ca := range pass.ColorAttachments {
			related = append(related, ca.View, ca.ResolveTarget)
		}
		if pass.DepthStencil != nil {
			related = append(related, pass.DepthStencil.View)
		}
		for _, c := range pass.Commands {
			related = append(related, c.Pipeline, c.BindGroup, c.Buffer)
		}
		b, err := h.route(r.CommandEncoderID, related...)
		if err != nil {
			return err
		}
		return b.RunRenderPass(r.CommandEncoderID, pass)

	case protocol.CommandEncoderFinish:
		b, err := h.route(r.CommandEncoderID)
		if err != nil {
			return err
		}
		if err := b.FinishCommandEncoder(r.CommandEncoderID); err != nil {
			return err
		}
		h.ids.Process(id.KindCommandBuffer, r.CommandEncoderID)
		return nil

	case protocol.Submit:
		b, err := h.route(r.QueueID, r.CommandBuffers...)
		if err != nil {
			return err
		}
		err = b.Submit(r.QueueID, r.CommandBuffers)
		if err != nil && !errors.Is(err, ErrQueueTimeout) {
			return err
		}
		for _, cb := range r.CommandBuffers {
			h.ids.Free(id.KindCommandBuffer, cb)
		}
		return err
	}
	return fmt.Errorf("%w: %s is not a fire-and-forget request", ErrUnsupported, req.Op())
}

// Close releases every backend.
func (h *Hub) Close() error {
	return h.table.Close()
}
