package protocol

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/gpuactor/id"
)

// ComputeOp identifies a recorded compute pass command.
type ComputeOp uint8

// Compute pass commands.
const (
	ComputeSetPipeline ComputeOp = iota + 1
	ComputeSetBindGroup
	ComputeDispatch
)

// ComputeCommand is one recorded compute pass command. Fields unused by
// Op are ignored.
type ComputeCommand struct {
	Op        ComputeOp
	Pipeline  id.ID
	Index     uint32
	BindGroup id.ID
	Offsets   []uint32
	X, Y, Z   uint32
}

// ComputePass is a recorded compute pass replayed by RunComputePass.
type ComputePass struct {
	Label    string
	Commands []ComputeCommand
}

// SetPipeline records a pipeline change.
func (p *ComputePass) SetPipeline(pipeline id.ID) {
	p.Commands = append(p.Commands, ComputeCommand{Op: ComputeSetPipeline, Pipeline: pipeline})
}

// SetBindGroup records a bind group at index.
func (p *ComputePass) SetBindGroup(index uint32, group id.ID, offsets []uint32) {
	p.Commands = append(p.Commands, ComputeCommand{Op: ComputeSetBindGroup, Index: index, BindGroup: group, Offsets: offsets})
}

// Dispatch records a workgroup dispatch.
func (p *ComputePass) Dispatch(x, y, z uint32) {
	p.Commands = append(p.Commands, ComputeCommand{Op: ComputeDispatch, X: x, Y: y, Z: z})
}

// RenderOp identifies a recorded render pass command.
type RenderOp uint8

// Render pass commands.
const (
	RenderSetPipeline RenderOp = iota + 1
	RenderSetBindGroup
	RenderSetVertexBuffer
	RenderSetIndexBuffer
	RenderDraw
	RenderDrawIndexed
)

// RenderCommand is one recorded render pass command. Fields unused by Op
// are ignored.
type RenderCommand struct {
	Op          RenderOp
	Pipeline    id.ID
	Index       uint32 // bind group index or vertex buffer slot
	BindGroup   id.ID
	Offsets     []uint32
	Buffer      id.ID
	IndexFormat gputypes.IndexFormat
	Offset      uint64

	Count         uint32 // vertex or index count
	InstanceCount uint32
	First         uint32 // first vertex or first index
	BaseVertex    int32
	FirstInstance uint32
}

// ColorAttachment is a color target of a render pass.
type ColorAttachment struct {
	View          id.ID
	ResolveTarget id.ID
	LoadOp        gputypes.LoadOp
	StoreOp       gputypes.StoreOp
	Clear         gputypes.Color
}

// DepthStencilAttachment is the depth/stencil target of a render pass.
type DepthStencilAttachment struct {
	View           id.ID
	DepthLoadOp    gputypes.LoadOp
	DepthStoreOp   gputypes.StoreOp
	DepthClear     float32
	StencilLoadOp  gputypes.LoadOp
	StencilStoreOp gputypes.StoreOp
	StencilClear   uint32
}

// RenderPass is a recorded render pass replayed by RunRenderPass.
type RenderPass struct {
	Label            string
	ColorAttachments []ColorAttachment
	DepthStencil     *DepthStencilAttachment
	Commands         []RenderCommand
}

// SetPipeline records a pipeline change.
func (p *RenderPass) SetPipeline(pipeline id.ID) {
	p.Commands = append(p.Commands, RenderCommand{Op: RenderSetPipeline, Pipeline: pipeline})
}

// SetBindGroup records a bind group at index.
func (p *RenderPass) SetBindGroup(index uint32, group id.ID, offsets []uint32) {
	p.Commands = append(p.Commands, RenderCommand{Op: RenderSetBindGroup, Index: index, BindGroup: group, Offsets: offsets})
}

// SetVertexBuffer records a vertex buffer binding.
func (p *RenderPass) SetVertexBuffer(slot uint32, buffer id.ID, offset uint64) {
	p.Commands = append(p.Commands, RenderCommand{Op: RenderSetVertexBuffer, Index: slot, Buffer: buffer, Offset: offset})
}

// SetIndexBuffer records an index buffer binding.
func (p *RenderPass) SetIndexBuffer(buffer id.ID, format gputypes.IndexFormat, offset uint64) {
	p.Commands = append(p.Commands, RenderCommand{Op: RenderSetIndexBuffer, Buffer: buffer, IndexFormat: format, Offset: offset})
}

// Draw records a non-indexed draw.
func (p *RenderPass) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	p.Commands = append(p.Commands, RenderCommand{
		Op: RenderDraw, Count: vertexCount, InstanceCount: instanceCount,
		First: firstVertex, FirstInstance: firstInstance,
	})
}

// DrawIndexed records an indexed draw.
func (p *RenderPass) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) {
	p.Commands = append(p.Commands, RenderCommand{
		Op: RenderDrawIndexed, Count: indexCount, InstanceCount: instanceCount,
		First: firstIndex, BaseVertex: baseVertex, FirstInstance: firstInstance,
	})
}

// EncodeComputePass serializes p for RunComputePass.PassData.
func EncodeComputePass(p *ComputePass) []byte {
	var e encoder
	e.str(1, p.Label)
	for _, c := range p.Commands {
		e.msg(2, func(e *encoder) {
			e.uint(1, uint64(c.Op))
			e.id(2, c.Pipeline)
			e.uint(3, uint64(c.Index))
			e.id(4, c.BindGroup)
			e.u32s(5, c.Offsets)
			e.uint(6, uint64(c.X))
			e.uint(7, uint64(c.Y))
			e.uint(8, uint64(c.Z))
		})
	}
	return e.b
}

// DecodeComputePass parses data produced by EncodeComputePass.
func DecodeComputePass(data []byte) (*ComputePass, error) {
	p := &ComputePass{}
	err := walk(data, func(f field) error {
		switch f.num {
		case 1:
			p.Label = f.str()
		case 2:
			var c ComputeCommand
			err := walk(f.b, func(f field) error {
				switch f.num {
				case 1:
					c.Op = ComputeOp(f.v)
				case 2:
					c.Pipeline = f.id()
				case 3:
					c.Index = f.u32()
				case 4:
					c.BindGroup = f.id()
				case 5:
					offs, err := f.u32s()
					if err != nil {
						return err
					}
					c.Offsets = offs
				case 6:
					c.X = f.u32()
				case 7:
					c.Y = f.u32()
				case 8:
					c.Z = f.u32()
				}
				return nil
			})
			if err != nil {
				return err
			}
			if c.Op < ComputeSetPipeline || c.Op > ComputeDispatch {
				return fmt.Errorf("%w: compute command %d", ErrMalformed, c.Op)
			}
			p.Commands = append(p.Commands, c)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// EncodeRenderPass serializes p for RunRenderPass.PassData.
func EncodeRenderPass(p *RenderPass) []byte {
	var e encoder
	e.str(1, p.Label)
	for _, ca := range p.ColorAttachments {
		e.msg(2, func(e *encoder) {
			e.id(1, ca.View)
			e.id(2, ca.ResolveTarget)
			e.uint(3, uint64(ca.LoadOp))
			e.uint(4, uint64(ca.StoreOp))
			e.float(5, ca.Clear.R)
			e.float(6, ca.Clear.G)
			e.float(7, ca.Clear.B)
			e.float(8, ca.Clear.A)
		})
	}
	if ds := p.DepthStencil; ds != nil {
		e.msg(3, func(e *encoder) {
			e.id(1, ds.View)
			e.uint(2, uint64(ds.DepthLoadOp))
			e.uint(3, uint64(ds.DepthStoreOp))
			e.float(4, float64(ds.DepthClear))
			e.uint(5, uint64(ds.StencilLoadOp))
			e.uint(6, uint64(ds.StencilStoreOp))
			e.uint(7, uint64(ds.StencilClear))
		})
	}
	for _, c := range p.Commands {
		e.msg(4, func(e *encoder) {
			e.uint(1, uint64(c.Op))
			e.id(2, c.Pipeline)
			e.uint(3, uint64(c.Index))
			e.id(4, c.BindGroup)
			e.u32s(5, c.Offsets)
			e.id(6, c.Buffer)
			e.uint(7, uint64(c.IndexFormat))
			e.uint(8, c.Offset)
			e.uint(9, uint64(c.Count))
			e.uint(10, uint64(c.InstanceCount))
			e.uint(11, uint64(c.First))
			e.sint(12, int64(c.BaseVertex))
			e.uint(13, uint64(c.FirstInstance))
		})
	}
	return e.b
}

// DecodeRenderPass parses data produced by EncodeRenderPass.
func DecodeRenderPass(data []byte) (*RenderPass, error) {
	p := &RenderPass{}
	err := walk(data, func(f field) error {
		switch f.num {
		case 1:
			p.Label = f.str()
		case 2:
			var ca ColorAttachment
			err := walk(f.b, func(f field) error {
				switch f.num {
				case 1:
					ca.View = f.id()
				case 2:
					ca.ResolveTarget = f.id()
				case 3:
					ca.LoadOp = gputypes.LoadOp(f.v)
				case 4:
					ca.StoreOp = gputypes.StoreOp(f.v)
				case 5:
					ca.Clear.R = f.float()
				case 6:
					ca.Clear.G = f.float()
				case 7:
					ca.Clear.B = f.float()
				case 8:
					ca.Clear.A = f.float()
				}
				return nil
			})
			if err != nil {
				return err
			}
			p.ColorAttachments = append(p.ColorAttachments, ca)
		case 3:
			ds := &DepthStencilAttachment{}
			err := walk(f.b, func(f field) error {
				switch f.num {
				case 1:
					ds.View = f.id()
				case 2:
					ds.DepthLoadOp = gputypes.LoadOp(f.v)
				case 3:
					ds.DepthStoreOp = gputypes.StoreOp(f.v)
				case 4:
					ds.DepthClear = float32(f.float())
				case 5:
					ds.StencilLoadOp = gputypes.LoadOp(f.v)
				case 6:
					ds.StencilStoreOp = gputypes.StoreOp(f.v)
				case 7:
					ds.StencilClear = f.u32()
				}
				return nil
			})
			if err != nil {
				return err
			}
			p.DepthStencil = ds
		case 4:
			c, err := decodeRenderCommand(f.b)
			if err != nil {
				return err
			}
			p.Commands = append(p.Commands, c)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func decodeRenderCommand(b []byte) (RenderCommand, error) {
	var c RenderCommand
	err := walk(b, func(f field) error {
		switch f.num {
		case 1:
			c.Op = RenderOp(f.v)
		case 2:
			c.Pipeline = f.id()
		case 3:
			c.Index = f.u32()
		case 4:
			c.BindGroup = f.id()
		case 5:
			offs, err := f.u32s()
			if err != nil {
				return err
			}
			c.Offsets = offs
		case 6:
			c.Buffer = f.id()
		case 7:
			c.IndexFormat = gputypes.IndexFormat(f.v)
		case 8:
			c.Offset = f.v
		case 9:
			c.Count = f.u32()
		case 10:
			c.InstanceCount = f.u32()
		case 11:
			c.First = f.u32()
		case 12:
			c.BaseVertex = int32(f.sint())
		case 13:
			c.FirstInstance = f.u32()
		}
		return nil
	})
	if err != nil {
		return c, err
	}
	if c.Op < RenderSetPipeline || c.Op > RenderDrawIndexed {
		return c, fmt.Errorf("%w: render command %d", ErrMalformed, c.Op)
	}
	return c, nil
}
