package protocol

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/gpuactor/id"
)

// Envelope field numbers shared by request and result frames.
const (
	fieldOp    = 1
	fieldToken = 2
	fieldBody  = 3

	fieldResultToken   = 1
	fieldResultErr     = 2
	fieldResultAdapter = 3
	fieldResultDevice  = 4
)

// MarshalRequest encodes r for a stream transport. Reply and Ack channels
// cannot cross a process boundary; token stands in for them and is echoed
// back in the matching result frame.
func MarshalRequest(r Request, token uint64) ([]byte, error) {
	body, err := encodeBody(r)
	if err != nil {
		return nil, err
	}
	var e encoder
	e.uint(fieldOp, uint64(r.Op()))
	e.uint(fieldToken, token)
	e.bytes(fieldBody, body)
	return e.b, nil
}

// UnmarshalRequest decodes a frame produced by MarshalRequest. Reply and
// Ack channels of the returned request are nil.
func UnmarshalRequest(b []byte) (Request, uint64, error) {
	var (
		op    Op
		token uint64
		body  []byte
	)
	err := walk(b, func(f field) error {
		switch f.num {
		case fieldOp:
			op = Op(f.v)
		case fieldToken:
			token = f.v
		case fieldBody:
			body = f.b
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	r, err := decodeBody(op, body)
	if err != nil {
		return nil, 0, fmt.Errorf("decode %s: %w", op, err)
	}
	return r, token, nil
}

// MarshalResult encodes the result of the request identified by token.
// AdapterResponse.Channel is not transmitted.
func MarshalResult(token uint64, r Result) []byte {
	var e encoder
	e.uint(fieldResultToken, token)
	e.str(fieldResultErr, r.Err)
	switch resp := r.Response.(type) {
	case AdapterResponse:
		e.msg(fieldResultAdapter, func(e *encoder) {
			e.str(1, resp.Name)
			e.id(2, resp.AdapterID)
		})
	case DeviceResponse:
		e.msg(fieldResultDevice, func(e *encoder) {
			e.id(1, resp.DeviceID)
			e.id(2, resp.QueueID)
			e.msg(3, func(e *encoder) { encodeDeviceDescriptor(e, resp.Descriptor) })
		})
	}
	return e.b
}

// UnmarshalResult decodes a frame produced by MarshalResult.
func UnmarshalResult(b []byte) (uint64, Result, error) {
	var (
		token uint64
		res   Result
	)
	err := walk(b, func(f field) error {
		switch f.num {
		case fieldResultToken:
			token = f.v
		case fieldResultErr:
			res.Err = f.str()
		case fieldResultAdapter:
			var a AdapterResponse
			err := walk(f.b, func(f field) error {
				switch f.num {
				case 1:
					a.Name = f.str()
				case 2:
					a.AdapterID = f.id()
				}
				return nil
			})
			if err != nil {
				return err
			}
			res.Response = a
		case fieldResultDevice:
			var d DeviceResponse
			err := walk(f.b, func(f field) error {
				var err error
				switch f.num {
				case 1:
					d.DeviceID = f.id()
				case 2:
					d.QueueID = f.id()
				case 3:
					d.Descriptor, err = decodeDeviceDescriptor(f.b)
				}
				return err
			})
			if err != nil {
				return err
			}
			res.Response = d
		}
		return nil
	})
	if err != nil {
		return 0, Result{}, err
	}
	return token, res, nil
}

func encodeBody(r Request) ([]byte, error) {
	var e encoder
	switch r := r.(type) {
	case RequestAdapter:
		e.uint(1, uint64(r.Options.PowerPreference))
		e.bool(2, r.Options.ForceFallback)
		e.ids(3, r.IDs)
	case RequestDevice:
		e.id(1, r.AdapterID)
		e.msg(2, func(e *encoder) { encodeDeviceDescriptor(e, r.Descriptor) })
		e.id(3, r.DeviceID)
	case CreateBuffer:
		e.id(1, r.DeviceID)
		e.id(2, r.BufferID)
		e.msg(3, func(e *encoder) {
			d := r.Descriptor
			e.str(1, d.Label)
			e.uint(2, d.Size)
			e.uint(3, uint64(d.Usage))
			e.bool(4, d.MappedAtCreation)
		})
	case DestroyBuffer:
		e.id(1, r.BufferID)
	case UnmapBuffer:
		e.id(1, r.DeviceID)
		e.id(2, r.BufferID)
		e.bytes(3, r.Data)
	case CreateTexture:
		e.id(1, r.DeviceID)
		e.id(2, r.TextureID)
		e.msg(3, func(e *encoder) {
			d := r.Descriptor
			e.str(1, d.Label)
			e.uint(2, uint64(d.Size.Width))
			e.uint(3, uint64(d.Size.Height))
			e.uint(4, uint64(d.Size.DepthOrArrayLayers))
			e.uint(5, uint64(d.MipLevelCount))
			e.uint(6, uint64(d.SampleCount))
			e.uint(7, uint64(d.Dimension))
			e.uint(8, uint64(d.Format))
			e.uint(9, uint64(d.Usage))
		})
	case DestroyTexture:
		e.id(1, r.TextureID)
	case CreateTextureView:
		e.id(1, r.TextureID)
		e.id(2, r.TextureViewID)
		e.msg(3, func(e *encoder) {
			d := r.Descriptor
			e.str(1, d.Label)
			e.uint(2, uint64(d.Format))
			e.uint(3, uint64(d.Dimension))
			e.uint(4, uint64(d.Aspect))
			e.uint(5, uint64(d.BaseMipLevel))
			e.uint(6, uint64(d.MipLevelCount))
			e.uint(7, uint64(d.BaseArrayLayer))
			e.uint(8, uint64(d.ArrayLayerCount))
		})
	case CreateSampler:
		e.id(1, r.DeviceID)
		e.id(2, r.SamplerID)
		e.msg(3, func(e *encoder) {
			d := r.Descriptor
			e.str(1, d.Label)
			e.uint(2, uint64(d.AddressModeU))
			e.uint(3, uint64(d.AddressModeV))
			e.uint(4, uint64(d.AddressModeW))
			e.uint(5, uint64(d.MagFilter))
			e.uint(6, uint64(d.MinFilter))
			e.uint(7, uint64(d.MipmapFilter))
		})
	case CreateBindGroupLayout:
		e.id(1, r.DeviceID)
		e.id(2, r.BindGroupLayoutID)
		e.msg(3, func(e *encoder) {
			e.str(1, r.Descriptor.Label)
			for _, en := range r.Descriptor.Entries {
				e.msg(2, func(e *encoder) {
					e.uint(1, uint64(en.Binding))
					e.uint(2, uint64(en.Visibility))
					e.uint(3, uint64(en.Type))
					e.uint(4, en.MinBindingSize)
					e.uint(5, uint64(en.ViewDimension))
				})
			}
		})
	case CreateBindGroup:
		e.id(1, r.DeviceID)
		e.id(2, r.BindGroupID)
		e.msg(3, func(e *encoder) {
			e.str(1, r.Descriptor.Label)
			e.id(2, r.Descriptor.Layout)
			for _, en := range r.Descriptor.Entries {
				e.msg(3, func(e *encoder) {
					e.uint(1, uint64(en.Binding))
					e.id(2, en.Buffer)
					e.uint(3, en.Offset)
					e.uint(4, en.Size)
					e.id(5, en.TextureView)
					e.id(6, en.Sampler)
				})
			}
		})
	case CreatePipelineLayout:
		e.id(1, r.DeviceID)
		e.id(2, r.PipelineLayoutID)
		e.msg(3, func(e *encoder) {
			e.str(1, r.Descriptor.Label)
			e.ids(2, r.Descriptor.BindGroupLayouts)
		})
	case CreateShaderModule:
		e.id(1, r.DeviceID)
		e.id(2, r.ShaderModuleID)
		e.msg(3, func(e *encoder) {
			e.str(1, r.Descriptor.Label)
			e.u32s(2, r.Descriptor.SPIRV)
			e.str(3, r.Descriptor.WGSL)
		})
	case CreateComputePipeline:
		e.id(1, r.DeviceID)
		e.id(2, r.ComputePipelineID)
		e.msg(3, func(e *encoder) {
			d := r.Descriptor
			e.str(1, d.Label)
			e.id(2, d.Layout)
			e.id(3, d.Module)
			e.str(4, d.EntryPoint)
		})
	case CreateRenderPipeline:
		e.id(1, r.DeviceID)
		e.id(2, r.RenderPipelineID)
		e.msg(3, func(e *encoder) { encodeRenderPipeline(e, r.Descriptor) })
	case CreateCommandEncoder:
		e.id(1, r.DeviceID)
		e.id(2, r.CommandEncoderID)
		e.msg(3, func(e *encoder) { e.str(1, r.Descriptor.Label) })
	case CopyBufferToBuffer:
		e.id(1, r.CommandEncoderID)
		e.id(2, r.SourceID)
		e.uint(3, r.SourceOffset)
		e.id(4, r.DestinationID)
		e.uint(5, r.DestinationOffset)
		e.uint(6, r.Size)
	case RunComputePass:
		e.id(1, r.CommandEncoderID)
		e.bytes(2, r.PassData)
	case RunRenderPass:
		e.id(1, r.CommandEncoderID)
		e.bytes(2, r.PassData)
	case CommandEncoderFinish:
		e.id(1, r.CommandEncoderID)
	case Submit:
		e.id(1, r.QueueID)
		e.ids(2, r.CommandBuffers)
	case Exit:
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownOp, r)
	}
	return e.b, nil
}

func decodeBody(op Op, b []byte) (Request, error) {
	switch op {
	case OpRequestAdapter:
		var r RequestAdapter
		err := walk(b, func(f field) error {
			switch f.num {
			case 1:
				r.Options.PowerPreference = PowerPreference(f.v)
			case 2:
				r.Options.ForceFallback = f.bool()
			case 3:
				r.IDs = append(r.IDs, f.id())
			}
			return nil
		})
		return r, err
	case OpRequestDevice:
		var r RequestDevice
		err := walk(b, func(f field) error {
			var err error
			switch f.num {
			case 1:
				r.AdapterID = f.id()
			case 2:
				r.Descriptor, err = decodeDeviceDescriptor(f.b)
			case 3:
				r.DeviceID = f.id()
			}
			return err
		})
		return r, err
	case OpCreateBuffer:
		var r CreateBuffer
		err := walkCreate(b, &r.DeviceID, &r.BufferID, func(f field) {
			d := &r.Descriptor
			switch f.num {
			case 1:
				d.Label = f.str()
			case 2:
				d.Size = f.v
			case 3:
				d.Usage = gputypes.BufferUsage(f.v)
			case 4:
				d.MappedAtCreation = f.bool()
			}
		})
		return r, err
	case OpDestroyBuffer:
		var r DestroyBuffer
		err := walk(b, func(f field) error {
			if f.num == 1 {
				r.BufferID = f.id()
			}
			return nil
		})
		return r, err
	case OpUnmapBuffer:
		var r UnmapBuffer
		err := walk(b, func(f field) error {
			switch f.num {
			case 1:
				r.DeviceID = f.id()
			case 2:
				r.BufferID = f.id()
			case 3:
				r.Data = f.bytes()
			}
			return nil
		})
		return r, err
	case OpCreateTexture:
		var r CreateTexture
		err := walkCreate(b, &r.DeviceID, &r.TextureID, func(f field) {
			d := &r.Descriptor
			switch f.num {
			case 1:
				d.Label = f.str()
			case 2:
				d.Size.Width = f.u32()
			case 3:
				d.Size.Height = f.u32()
			case 4:
				d.Size.DepthOrArrayLayers = f.u32()
			case 5:
				d.MipLevelCount = f.u32()
			case 6:
				d.SampleCount = f.u32()
			case 7:
				d.Dimension = gputypes.TextureDimension(f.v)
			case 8:
				d.Format = gputypes.TextureFormat(f.v)
			case 9:
				d.Usage = gputypes.TextureUsage(f.v)
			}
		})
		return r, err
	case OpDestroyTexture:
		var r DestroyTexture
		err := walk(b, func(f field) error {
			if f.num == 1 {
				r.TextureID = f.id()
			}
			return nil
		})
		return r, err
	case OpCreateTextureView:
		var r CreateTextureView
		err := walkCreate(b, &r.TextureID, &r.TextureViewID, func(f field) {
			d := &r.Descriptor
			switch f.num {
			case 1:
				d.Label = f.str()
			case 2:
				d.Format = gputypes.TextureFormat(f.v)
			case 3:
				d.Dimension = gputypes.TextureViewDimension(f.v)
			case 4:
				d.Aspect = gputypes.TextureAspect(f.v)
			case 5:
				d.BaseMipLevel = f.u32()
			case 6:
				d.MipLevelCount = f.u32()
			case 7:
				d.BaseArrayLayer = f.u32()
			case 8:
				d.ArrayLayerCount = f.u32()
			}
		})
		return r, err
	case OpCreateSampler:
		var r CreateSampler
		err := walkCreate(b, &r.DeviceID, &r.SamplerID, func(f field) {
			d := &r.Descriptor
			switch f.num {
			case 1:
				d.Label = f.str()
			case 2:
				d.AddressModeU = gputypes.AddressMode(f.v)
			case 3:
				d.AddressModeV = gputypes.AddressMode(f.v)
			case 4:
				d.AddressModeW = gputypes.AddressMode(f.v)
			case 5:
				d.MagFilter = gputypes.FilterMode(f.v)
			case 6:
				d.MinFilter = gputypes.FilterMode(f.v)
			case 7:
				d.MipmapFilter = gputypes.FilterMode(f.v)
			}
		})
		return r, err
	case OpCreateBindGroupLayout:
		var r CreateBindGroupLayout
		err := walkCreateErr(b, &r.DeviceID, &r.BindGroupLayoutID, func(f field) error {
			switch f.num {
			case 1:
				r.Descriptor.Label = f.str()
			case 2:
				var en BindGroupLayoutEntry
				err := walk(f.b, func(f field) error {
					switch f.num {
					case 1:
						en.Binding = f.u32()
					case 2:
						en.Visibility = ShaderStages(f.v)
					case 3:
						en.Type = BindingType(f.v)
					case 4:
						en.MinBindingSize = f.v
					case 5:
						en.ViewDimension = gputypes.TextureViewDimension(f.v)
					}
					return nil
				})
				if err != nil {
					return err
				}
				r.Descriptor.Entries = append(r.Descriptor.Entries, en)
			}
			return nil
		})
		return r, err
	case OpCreateBindGroup:
		var r CreateBindGroup
		err := walkCreateErr(b, &r.DeviceID, &r.BindGroupID, func(f field) error {
			switch f.num {
			case 1:
				r.Descriptor.Label = f.str()
			case 2:
				r.Descriptor.Layout = f.id()
			case 3:
				var en BindGroupEntry
				err := walk(f.b, func(f field) error {
					switch f.num {
					case 1:
						en.Binding = f.u32()
					case 2:
						en.Buffer = f.id()
					case 3:
						en.Offset = f.v
					case 4:
						en.Size = f.v
					case 5:
						en.TextureView = f.id()
					case 6:
						en.Sampler = f.id()
					}
					return nil
				})
				if err != nil {
					return err
				}
				r.Descriptor.Entries = append(r.Descriptor.Entries, en)
			}
			return nil
		})
		return r, err
	case OpCreatePipelineLayout:
		var r CreatePipelineLayout
		err := walkCreate(b, &r.DeviceID, &r.PipelineLayoutID, func(f field) {
			switch f.num {
			case 1:
				r.Descriptor.Label = f.str()
			case 2:
				r.Descriptor.BindGroupLayouts = append(r.Descriptor.BindGroupLayouts, f.id())
			}
		})
		return r, err
	case OpCreateShaderModule:
		var r CreateShaderModule
		err := walkCreateErr(b, &r.DeviceID, &r.ShaderModuleID, func(f field) error {
			switch f.num {
			case 1:
				r.Descriptor.Label = f.str()
			case 2:
				words, err := f.u32s()
				if err != nil {
					return err
				}
				r.Descriptor.SPIRV = words
			case 3:
				r.Descriptor.WGSL = f.str()
			}
			return nil
		})
		return r, err
	case OpCreateComputePipeline:
		var r CreateComputePipeline
		err := walkCreate(b, &r.DeviceID, &r.ComputePipelineID, func(f field) {
			d := &r.Descriptor
			switch f.num {
			case 1:
				d.Label = f.str()
			case 2:
				d.Layout = f.id()
			case 3:
				d.Module = f.id()
			case 4:
				d.EntryPoint = f.str()
			}
		})
		return r, err
	case OpCreateRenderPipeline:
		var r CreateRenderPipeline
		err := walk(b, func(f field) error {
			var err error
			switch f.num {
			case 1:
				r.DeviceID = f.id()
			case 2:
				r.RenderPipelineID = f.id()
			case 3:
				r.Descriptor, err = decodeRenderPipeline(f.b)
			}
			return err
		})
		return r, err
	case OpCreateCommandEncoder:
		var r CreateCommandEncoder
		err := walkCreate(b, &r.DeviceID, &r.CommandEncoderID, func(f field) {
			if f.num == 1 {
				r.Descriptor.Label = f.str()
			}
		})
		return r, err
	case OpCopyBufferToBuffer:
		var r CopyBufferToBuffer
		err := walk(b, func(f field) error {
			switch f.num {
			case 1:
				r.CommandEncoderID = f.id()
			case 2:
				r.SourceID = f.id()
			case 3:
				r.SourceOffset = f.v
			case 4:
				r.DestinationID = f.id()
			case 5:
				r.DestinationOffset = f.v
			case 6:
				r.Size = f.v
			}
			return nil
		})
		return r, err
	case OpRunComputePass:
		var r RunComputePass
		err := walk(b, func(f field) error {
			switch f.num {
			case 1:
				r.CommandEncoderID = f.id()
			case 2:
				r.PassData = f.bytes()
			}
			return nil
		})
		return r, err
	case OpRunRenderPass:
		var r RunRenderPass
		err := walk(b, func(f field) error {
			switch f.num {
			case 1:
				r.CommandEncoderID = f.id()
			case 2:
				r.PassData = f.bytes()
			}
			return nil
		})
		return r, err
	case OpCommandEncoderFinish:
		var r CommandEncoderFinish
		err := walk(b, func(f field) error {
			if f.num == 1 {
				r.CommandEncoderID = f.id()
			}
			return nil
		})
		return r, err
	case OpSubmit:
		var r Submit
		err := walk(b, func(f field) error {
			switch f.num {
			case 1:
				r.QueueID = f.id()
			case 2:
				r.CommandBuffers = append(r.CommandBuffers, f.id())
			}
			return nil
		})
		return r, err
	case OpExit:
		return Exit{}, nil
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownOp, uint8(op))
}

// walkCreate decodes the common create layout: owner id in field 1,
// resource id in field 2, descriptor fields nested in field 3.
func walkCreate(b []byte, owner, res *id.ID, desc func(field)) error {
	return walkCreateErr(b, owner, res, func(f field) error {
		desc(f)
		return nil
	})
}

func walkCreateErr(b []byte, owner, res *id.ID, desc func(field) error) error {
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			*owner = f.id()
		case 2:
			*res = f.id()
		case 3:
			return walk(f.b, desc)
		}
		return nil
	})
}

func encodeDeviceDescriptor(e *encoder, d DeviceDescriptor) {
	e.str(1, d.Label)
	e.uint(2, uint64(d.RequiredFeatures))
	l := d.RequiredLimits
	e.uint(3, uint64(l.MaxTextureDimension2D))
	e.uint(4, uint64(l.MaxBufferSize))
	e.uint(5, uint64(l.MaxComputeWorkgroupSizeX))
	e.uint(6, uint64(l.MaxComputeWorkgroupSizeY))
	e.uint(7, uint64(l.MaxComputeWorkgroupSizeZ))
}

// decodeDeviceDescriptor starts from default limits; only the limits
// carried on the wire are overridden.
func decodeDeviceDescriptor(b []byte) (DeviceDescriptor, error) {
	d := DefaultDeviceDescriptor()
	err := walk(b, func(f field) error {
		l := &d.RequiredLimits
		switch f.num {
		case 1:
			d.Label = f.str()
		case 2:
			d.RequiredFeatures = gputypes.Features(f.v)
		case 3:
			setUint(&l.MaxTextureDimension2D, f.v)
		case 4:
			setUint(&l.MaxBufferSize, f.v)
		case 5:
			setUint(&l.MaxComputeWorkgroupSizeX, f.v)
		case 6:
			setUint(&l.MaxComputeWorkgroupSizeY, f.v)
		case 7:
			setUint(&l.MaxComputeWorkgroupSizeZ, f.v)
		}
		return nil
	})
	return d, err
}

func setUint[T ~uint32 | ~uint64](dst *T, v uint64) {
	*dst = T(v)
}

func encodeRenderPipeline(e *encoder, d RenderPipelineDescriptor) {
	e.str(1, d.Label)
	e.id(2, d.Layout)
	e.id(3, d.VertexModule)
	e.str(4, d.VertexEntryPoint)
	for _, vb := range d.VertexBuffers {
		e.msg(5, func(e *encoder) {
			e.uint(1, vb.ArrayStride)
			e.uint(2, uint64(vb.StepMode))
			for _, a := range vb.Attributes {
				e.msg(3, func(e *encoder) {
					e.uint(1, uint64(a.Format))
					e.uint(2, a.Offset)
					e.uint(3, uint64(a.ShaderLocation))
				})
			}
		})
	}
	e.id(6, d.FragmentModule)
	e.str(7, d.FragmentEntryPoint)
	for _, t := range d.Targets {
		e.msg(8, func(e *encoder) {
			e.uint(1, uint64(t.Format))
			e.uint(2, uint64(t.Blend))
			e.bool(3, t.DisableWrites)
		})
	}
	e.uint(9, uint64(d.Topology))
	e.uint(10, uint64(d.CullMode))
	if ds := d.DepthStencil; ds != nil {
		e.msg(11, func(e *encoder) {
			e.uint(1, uint64(ds.Format))
			e.bool(2, ds.DepthWriteEnabled)
			e.uint(3, uint64(ds.DepthCompare))
		})
	}
	e.uint(12, uint64(d.SampleCount))
	e.uint(13, uint64(d.SampleMask))
	e.bool(14, d.AlphaToCoverage)
}

func decodeRenderPipeline(b []byte) (RenderPipelineDescriptor, error) {
	var d RenderPipelineDescriptor
	err := walk(b, func(f field) error {
		switch f.num {
		case 1:
			d.Label = f.str()
		case 2:
			d.Layout = f.id()
		case 3:
			d.VertexModule = f.id()
		case 4:
			d.VertexEntryPoint = f.str()
		case 5:
			var vb VertexBufferLayout
			err := walk(f.b, func(f field) error {
				switch f.num {
				case 1:
					vb.ArrayStride = f.v
				case 2:
					vb.StepMode = gputypes.VertexStepMode(f.v)
				case 3:
					var a VertexAttribute
					err := walk(f.b, func(f field) error {
						switch f.num {
						case 1:
							a.Format = gputypes.VertexFormat(f.v)
						case 2:
							a.Offset = f.v
						case 3:
							a.ShaderLocation = f.u32()
						}
						return nil
					})
					if err != nil {
						return err
					}
					vb.Attributes = append(vb.Attributes, a)
				}
				return nil
			})
			if err != nil {
				return err
			}
			d.VertexBuffers = append(d.VertexBuffers, vb)
		case 6:
			d.FragmentModule = f.id()
		case 7:
			d.FragmentEntryPoint = f.str()
		case 8:
			var t ColorTarget
			err := walk(f.b, func(f field) error {
				switch f.num {
				case 1:
					t.Format = gputypes.TextureFormat(f.v)
				case 2:
					t.Blend = BlendMode(f.v)
				case 3:
					t.DisableWrites = f.bool()
				}
				return nil
			})
			if err != nil {
				return err
			}
			d.Targets = append(d.Targets, t)
		case 9:
			d.Topology = gputypes.PrimitiveTopology(f.v)
		case 10:
			d.CullMode = gputypes.CullMode(f.v)
		case 11:
			ds := &DepthStencilState{}
			err := walk(f.b, func(f field) error {
				switch f.num {
				case 1:
					ds.Format = gputypes.TextureFormat(f.v)
				case 2:
					ds.DepthWriteEnabled = f.bool()
				case 3:
					ds.DepthCompare = gputypes.CompareFunction(f.v)
				}
				return nil
			})
			if err != nil {
				return err
			}
			d.DepthStencil = ds
		case 12:
			d.SampleCount = f.u32()
		case 13:
			d.SampleMask = f.u32()
		case 14:
			d.AlphaToCoverage = f.bool()
		}
		return nil
	})
	return d, err
}
