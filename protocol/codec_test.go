package protocol

import (
	"errors"
	"reflect"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/gpuactor/id"
)

func TestRequestRoundTrip(t *testing.T) {
	dev := id.New(1, 1, id.Vulkan)
	tests := []struct {
		name string
		req  Request
	}{
		{"request adapter", RequestAdapter{
			Options: AdapterOptions{PowerPreference: PowerPreferenceHighPerformance},
			IDs:     []id.ID{id.New(0, 1, id.Vulkan), {}, id.New(2, 5, id.Software)},
		}},
		{"request device", RequestDevice{
			AdapterID:  id.New(0, 1, id.Vulkan),
			Descriptor: DeviceDescriptor{Label: "main", RequiredLimits: gputypes.DefaultLimits()},
			DeviceID:   dev,
		}},
		{"create buffer", CreateBuffer{
			DeviceID: dev, BufferID: id.New(4, 2, id.Vulkan),
			Descriptor: BufferDescriptor{Label: "vertices", Size: 4096, Usage: gputypes.BufferUsageVertex | gputypes.BufferUsageCopyDst},
		}},
		{"unmap buffer", UnmapBuffer{DeviceID: dev, BufferID: id.New(4, 2, id.Vulkan), Data: []byte{1, 2, 3}}},
		{"create texture", CreateTexture{
			DeviceID: dev, TextureID: id.New(9, 1, id.Vulkan),
			Descriptor: TextureDescriptor{
				Label:         "target",
				Size:          gputypes.Extent3D{Width: 640, Height: 480, DepthOrArrayLayers: 1},
				MipLevelCount: 1, SampleCount: 4,
				Dimension: gputypes.TextureDimension2D,
				Format:    gputypes.TextureFormatRGBA8Unorm,
				Usage:     gputypes.TextureUsageRenderAttachment,
			},
		}},
		{"bind group", CreateBindGroup{
			DeviceID: dev, BindGroupID: id.New(3, 1, id.Vulkan),
			Descriptor: BindGroupDescriptor{
				Layout: id.New(2, 1, id.Vulkan),
				Entries: []BindGroupEntry{
					{Binding: 0, Buffer: id.New(4, 2, id.Vulkan), Size: 64},
					{Binding: 1, Sampler: id.New(5, 1, id.Vulkan)},
				},
			},
		}},
		{"shader module", CreateShaderModule{
			DeviceID: dev, ShaderModuleID: id.New(6, 1, id.Vulkan),
			Descriptor: ShaderModuleDescriptor{SPIRV: []uint32{0x07230203, 0x00010000, 0}},
		}},
		{"render pipeline", CreateRenderPipeline{
			DeviceID: dev, RenderPipelineID: id.New(7, 1, id.Vulkan),
			Descriptor: RenderPipelineDescriptor{
				Label:            "quad",
				VertexModule:     id.New(6, 1, id.Vulkan),
				VertexEntryPoint: "vs_main",
				VertexBuffers: []VertexBufferLayout{{
					ArrayStride: 16,
					Attributes:  []VertexAttribute{{Format: gputypes.VertexFormatFloat32x2, ShaderLocation: 0}, {Format: gputypes.VertexFormatFloat32x2, Offset: 8, ShaderLocation: 1}},
				}},
				FragmentModule:     id.New(6, 1, id.Vulkan),
				FragmentEntryPoint: "fs_main",
				Targets:            []ColorTarget{{Format: gputypes.TextureFormatBGRA8Unorm, Blend: BlendPremultiplied}},
				DepthStencil:       &DepthStencilState{Format: gputypes.TextureFormatDepth24PlusStencil8, DepthWriteEnabled: true},
				SampleCount:        4,
				SampleMask:         0xFFFFFFFF,
			},
		}},
		{"copy", CopyBufferToBuffer{
			CommandEncoderID: id.New(8, 1, id.Vulkan),
			SourceID:         id.New(4, 2, id.Vulkan), SourceOffset: 16,
			DestinationID: id.New(5, 2, id.Vulkan), Size: 256,
		}},
		{"submit", Submit{QueueID: dev, CommandBuffers: []id.ID{id.New(8, 1, id.Vulkan)}}},
		{"destroy", DestroyBuffer{BufferID: id.New(4, 2, id.Vulkan)}},
		{"exit", Exit{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := MarshalRequest(tt.req, 77)
			if err != nil {
				t.Fatalf("MarshalRequest() error = %v", err)
			}
			got, token, err := UnmarshalRequest(b)
			if err != nil {
				t.Fatalf("UnmarshalRequest() error = %v", err)
			}
			if token != 77 {
				t.Errorf("token = %d, want 77", token)
			}
			if !reflect.DeepEqual(got, tt.req) {
				t.Errorf("UnmarshalRequest() = %+v, want %+v", got, tt.req)
			}
		})
	}
}

func TestMarshalRequestDropsReplyChannel(t *testing.T) {
	reply := make(chan Result, 1)
	b, err := MarshalRequest(RequestAdapter{Reply: reply, IDs: []id.ID{id.New(1, 1, id.Empty)}}, 5)
	if err != nil {
		t.Fatal(err)
	}
	got, _, err := UnmarshalRequest(b)
	if err != nil {
		t.Fatal(err)
	}
	if got.(RequestAdapter).Reply != nil {
		t.Error("decoded request carries a reply channel")
	}
}

func TestUnmarshalRequestRejectsGarbage(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"truncated tag", []byte{0x80}, ErrMalformed},
		{"unknown op", []byte{0x08, 0x63}, ErrUnknownOp},
		{"missing op", nil, ErrUnknownOp},
		{"truncated body", []byte{0x08, 0x03, 0x1a, 0x05, 0x08}, ErrMalformed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := UnmarshalRequest(tt.data)
			if !errors.Is(err, tt.want) {
				t.Errorf("UnmarshalRequest() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestResultRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		res  Result
	}{
		{"adapter", Result{Response: AdapterResponse{Name: "noop", AdapterID: id.New(1, 1, id.Empty)}}},
		{"device", Result{Response: DeviceResponse{
			DeviceID: id.New(2, 1, id.Empty), QueueID: id.New(2, 1, id.Empty),
			Descriptor: DefaultDeviceDescriptor(),
		}}},
		{"error", Result{Err: "backend: no suitable adapter"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, got, err := UnmarshalResult(MarshalResult(9, tt.res))
			if err != nil {
				t.Fatalf("UnmarshalResult() error = %v", err)
			}
			if token != 9 {
				t.Errorf("token = %d, want 9", token)
			}
			if !reflect.DeepEqual(got, tt.res) {
				t.Errorf("UnmarshalResult() = %+v, want %+v", got, tt.res)
			}
		})
	}
}

func TestResultOK(t *testing.T) {
	if (Result{}).OK() {
		t.Error("empty result reported OK")
	}
	if !(Result{Response: AdapterResponse{}}).OK() {
		t.Error("adapter result not OK")
	}
	if Fail(errors.New("boom")).Err != "boom" {
		t.Error("Fail did not carry the message")
	}
}

func TestPrivileged(t *testing.T) {
	if !Privileged(RequestAdapter{}) || !Privileged(RequestDevice{}) {
		t.Error("adapter/device requests must be privileged")
	}
	if Privileged(CreateBuffer{}) || Privileged(Exit{}) {
		t.Error("fire-and-forget request reported privileged")
	}
}

func TestCheckReply(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		ok   bool
	}{
		{"adapter buffered", RequestAdapter{Reply: make(chan Result, 1)}, true},
		{"adapter unbuffered", RequestAdapter{Reply: make(chan Result)}, false},
		{"adapter nil", RequestAdapter{}, false},
		{"device buffered", RequestDevice{Reply: make(chan Result, 1)}, true},
		{"device nil", RequestDevice{}, false},
		{"exit buffered", Exit{Ack: make(chan struct{}, 1)}, true},
		{"exit unbuffered", Exit{Ack: make(chan struct{})}, false},
		{"fire and forget", DestroyBuffer{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckReply(tt.req)
			if tt.ok && err != nil {
				t.Errorf("CheckReply() error = %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrUnbufferedReply) {
				t.Errorf("CheckReply() error = %v, want ErrUnbufferedReply", err)
			}
		})
	}
}
