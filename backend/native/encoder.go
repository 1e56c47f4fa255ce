package native

import (
	"fmt"

	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gpuactor/backend"
	"github.com/gogpu/gpuactor/id"
	"github.com/gogpu/gpuactor/protocol"
)

// CreateCommandEncoder creates an encoder and begins recording.
func (b *Backend) CreateCommandEncoder(dev, enc id.ID, desc protocol.CommandEncoderDescriptor) error {
	if err := b.begin(); err != nil {
		return err
	}
	defer b.mu.Unlock()
	d, err := b.device(dev)
	if err != nil {
		return err
	}
	if b.encoders.Contains(enc) {
		return fmt.Errorf("%w: command encoder %v", backend.ErrDuplicateHandle, enc)
	}
	he, err := d.hal.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: desc.Label})
	if err != nil {
		return fmt.Errorf("create command encoder %q: %w", desc.Label, err)
	}
	if err := he.BeginEncoding(desc.Label); err != nil {
		he.DiscardEncoding()
		return fmt.Errorf("begin encoding %q: %w", desc.Label, err)
	}
	if err := b.encoders.Insert(enc, &encoder{device: dev, hal: he}); err != nil {
		he.DiscardEncoding()
		return err
	}
	return nil
}

// recording returns the encoder under enc if it still accepts commands.
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

// bufferOn returns the buffer under i, checking that it was created on dev.
func (b *Backend) bufferOn(dev, i id.ID) (*buffer, error) {
	bb, err := b.buffers.Get(i)
	if err != nil {
		return nil, err
	}
	if bb.device != dev {
		return nil, fmt.Errorf("%w: buffer %v", ErrWrongDevice, i)
	}
	return bb, nil
}

func (b *Backend) viewOn(dev, i id.ID) (hal.TextureView, error) {
	v, err := b.views.Get(i)
	if err != nil {
		return nil, err
	}
	if v.device != dev {
		return nil, fmt.Errorf("%w: texture view %v", ErrWrongDevice, i)
	}
	return v.hal, nil
}

// CopyBufferToBuffer records a copy between two buffers of the encoder's
// device.
func (b *Backend) CopyBufferToBuffer(enc, src id.ID, srcOffset uint64, dst id.ID, dstOffset, size uint64) error {
	if err := b.begin(); err != nil {
		return err
	}
	defer b.mu.Unlock()
	e, err := b.recording(enc)
	if err != nil {
		return err
	}
	sb, err := b.bufferOn(e.device, src)
	if err != nil {
		return err
	}
	db, err := b.bufferOn(e.device, dst)
	if err != nil {
		return err
	}
	if srcOffset > sb.size || size > sb.size-srcOffset || dstOffset > db.size || size > db.size-dstOffset {
		return fmt.Errorf("%w: copy of %d bytes out of bounds", backend.ErrInvalidDescriptor, size)
	}
	e.hal.CopyBufferToBuffer(sb.hal, db.hal, []hal.BufferCopy{{SrcOffset: srcOffset, DstOffset: dstOffset, Size: size}})
	return nil
}

// RunComputePass resolves every command of pass and then records it.
// Nothing is recorded if a reference does not resolve.
func (b *Backend) RunComputePass(enc id.ID, pass *protocol.ComputePass) error {
	if err := b.begin(); err != nil {
		return err
	}
	defer b.mu.Unlock()
	e, err := b.recording(enc)
	if err != nil {
		return err
	}

	steps := make([]func(hal.ComputePassEncoder), 0, len(pass.Commands))
	for _, c := range pass.Commands {
		switch c.Op {
		case protocol.ComputeSetPipeline:
			p, err := ownedOn(b.computePipelines, e.device, c.Pipeline)
			if err != nil {
				return err
			}
			steps = append(steps, func(cp hal.ComputePassEncoder) { cp.SetPipeline(p) })
		case protocol.ComputeSetBindGroup:
			g, err := ownedOn(b.bindGroups, e.device, c.BindGroup)
			if err != nil {
				return err
			}
			steps = append(steps, func(cp hal.ComputePassEncoder) { cp.SetBindGroup(c.Index, g, c.Offsets) })
		case protocol.ComputeDispatch:
			steps = append(steps, func(cp hal.ComputePassEncoder) { cp.Dispatch(c.X, c.Y, c.Z) })
		default:
			return fmt.Errorf("%w: compute command %d", backend.ErrInvalidDescriptor, c.Op)
		}
	}

	cp := e.hal.BeginComputePass(&hal.ComputePassDescriptor{Label: pass.Label})
	for _, step := range steps {
		step(cp)
	}
	cp.End()
	return nil
}

// RunRenderPass resolves the attachments and every command of pass and
// then records it. Nothing is recorded if a reference does not resolve.
func (b *Backend) RunRenderPass(enc id.ID, pass *protocol.RenderPass) error {
	if err := b.begin(); err != nil {
		return err
	}
	defer b.mu.Unlock()
	e, err := b.recording(enc)
	if err != nil {
		return err
	}

	desc, err := b.renderPassDescriptor(e.device, pass)
	if err != nil {
		return err
	}

	steps := make([]func(hal.RenderPassEncoder), 0, len(pass.Commands))
	for _, c := range pass.Commands {
		switch c.Op {
		case protocol.RenderSetPipeline:
			p, err := ownedOn(b.renderPipelines, e.device, c.Pipeline)
			if err != nil {
				return err
			}
			steps = append(steps, func(rp hal.RenderPassEncoder) { rp.SetPipeline(p) })
		case protocol.RenderSetBindGroup:
			g, err := ownedOn(b.bindGroups, e.device, c.BindGroup)
			if err != nil {
				return err
			}
			steps = append(steps, func(rp hal.RenderPassEncoder) { rp.SetBindGroup(c.Index, g, c.Offsets) })
		case protocol.RenderSetVertexBuffer:
			bb, err := b.bufferOn(e.device, c.Buffer)
			if err != nil {
				return err
			}
			steps = append(steps, func(rp hal.RenderPassEncoder) { rp.SetVertexBuffer(c.Index, bb.hal, c.Offset) })
		case protocol.RenderSetIndexBuffer:
			bb, err := b.bufferOn(e.device, c.Buffer)
			if err != nil {
				return err
			}
			steps = append(steps, func(rp hal.RenderPassEncoder) { rp.SetIndexBuffer(bb.hal, c.IndexFormat, c.Offset) })
		case protocol.RenderDraw:
			steps = append(steps, func(rp hal.RenderPassEncoder) {
				rp.Draw(c.Count, c.InstanceCount, c.First, c.FirstInstance)
			})
		case protocol.RenderDrawIndexed:
			steps = append(steps, func(rp hal.RenderPassEncoder) {
				rp.DrawIndexed(c.Count, c.InstanceCount, c.First, c.BaseVertex, c.FirstInstance)
			})
		default:
			return fmt.Errorf("%w: render command %d", backend.ErrInvalidDescriptor, c.Op)
		}
	}

	rp := e.hal.BeginRenderPass(desc)
	for _, step := range steps {
		step(rp)
	}
	rp.End()
	return nil
}

func (b *Backend) renderPassDescriptor(dev id.ID, pass *protocol.RenderPass) (*hal.RenderPassDescriptor, error) {
	desc := &hal.RenderPassDescriptor{
		Label:            pass.Label,
		ColorAttachments: make([]hal.RenderPassColorAttachment, len(pass.ColorAttachments)),
	}
	for i, ca := range pass.ColorAttachments {
		view, err := b.viewOn(dev, ca.View)
		if err != nil {
			return nil, err
		}
		var resolve hal.TextureView
		if !ca.ResolveTarget.IsZero() {
			if resolve, err = b.viewOn(dev, ca.ResolveTarget); err != nil {
				return nil, err
			}
		}
		desc.ColorAttachments[i] = hal.RenderPassColorAttachment{
			View:          view,
			ResolveTarget: resolve,
			LoadOp:        ca.LoadOp,
			StoreOp:       ca.StoreOp,
			ClearValue:    ca.Clear,
		}
	}
	if ds := pass.DepthStencil; ds != nil {
		view, err := b.viewOn(dev, ds.View)
		if err != nil {
			return nil, err
		}
		desc.DepthStencilAttachment = &hal.RenderPassDepthStencilAttachment{
			View:              view,
			DepthLoadOp:       ds.DepthLoadOp,
			DepthStoreOp:      ds.DepthStoreOp,
			DepthClearValue:   ds.DepthClear,
			StencilLoadOp:     ds.StencilLoadOp,
			StencilStoreOp:    ds.StencilStoreOp,
			StencilClearValue: ds.StencilClear,
		}
	}
	return desc, nil
}

// FinishCommandEncoder ends recording and keeps the command buffer under
// the encoder identifier.
func (b *Backend) FinishCommandEncoder(enc id.ID) error {
	if err := b.begin(); err != nil {
		return err
	}
	defer b.mu.Unlock()
	e, err := b.recording(enc)
	if err != nil {
		return err
	}
	cmd, err := e.hal.EndEncoding()
	if err != nil {
		e.hal.DiscardEncoding()
		_, _ = b.encoders.Remove(enc)
		return fmt.Errorf("end encoding %v: %w", enc, err)
	}
	e.cmd = cmd
	e.finished = true
	return nil
}

// Submit submits the command buffers to the queue of dev in order, waits
// for completion and releases them. All command buffers are checked before
// anything is submitted.
func (b *Backend) Submit(queue id.ID, cmdBufs []id.ID) error {
	if err := b.begin(); err != nil {
		return err
	}
	defer b.mu.Unlock()
	d, err := b.device(queue)
	if err != nil {
		return err
	}
	hcbs := make([]hal.CommandBuffer, 0, len(cmdBufs))
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
		hcbs = append(hcbs, e.cmd)
	}

	fence, err := d.hal.CreateFence()
	if err != nil {
		return fmt.Errorf("create fence: %w", err)
	}
	defer d.hal.DestroyFence(fence)

	if err := d.queue.Submit(hcbs, fence, 1); err != nil {
		return fmt.Errorf("%w: submit: %v", backend.ErrDeviceLost, err)
	}
	for _, cb := range cmdBufs {
		_, _ = b.encoders.Remove(cb)
	}
	ok, err := d.hal.Wait(fence, 1, b.submitTimeout)
	if err != nil || !ok {
		// The GPU may still read the command buffers; leak them.
		return fmt.Errorf("%w: %w: ok=%v err=%v", backend.ErrDeviceLost, backend.ErrQueueTimeout, ok, err)
	}
	for _, c := range hcbs {
		d.hal.FreeCommandBuffer(c)
	}
	return nil
}
