// Package protocol defines the closed set of messages exchanged with the
// command actor and their wire encoding.
//
// Requests are self-describing and stateless between calls. Two variants
// are privileged and carry a reply channel (RequestAdapter and
// RequestDevice); Exit carries an acknowledgment channel; every other
// variant is fire-and-forget.
//
// Callers are expected to issue requests in the order adapter, device,
// resources, destroy/exit. The actor does not validate that order.
package protocol

import (
	"errors"
	"fmt"

	"github.com/gogpu/gpuactor/id"
)

// Op identifies a request variant. Values are part of the wire format.
type Op uint8

// Request operations.
const (
	OpRequestAdapter        Op = 1
	OpRequestDevice         Op = 2
	OpCreateBuffer          Op = 3
	OpDestroyBuffer         Op = 4
	OpUnmapBuffer           Op = 5
	OpCreateTexture         Op = 6
	OpDestroyTexture        Op = 7
	OpCreateTextureView     Op = 8
	OpCreateSampler         Op = 9
	OpCreateBindGroupLayout Op = 10
	OpCreateBindGroup       Op = 11
	OpCreatePipelineLayout  Op = 12
	OpCreateShaderModule    Op = 13
	OpCreateComputePipeline Op = 14
	OpCreateRenderPipeline  Op = 15
	OpCreateCommandEncoder  Op = 16
	OpCopyBufferToBuffer    Op = 17
	OpRunComputePass        Op = 18
	OpRunRenderPass         Op = 19
	OpCommandEncoderFinish  Op = 20
	OpSubmit                Op = 21
	OpExit                  Op = 22
)

var opNames = map[Op]string{
	OpRequestAdapter:        "request_adapter",
	OpRequestDevice:         "request_device",
	OpCreateBuffer:          "create_buffer",
	OpDestroyBuffer:         "destroy_buffer",
	OpUnmapBuffer:           "unmap_buffer",
	OpCreateTexture:         "create_texture",
	OpDestroyTexture:        "destroy_texture",
	OpCreateTextureView:     "create_texture_view",
	OpCreateSampler:         "create_sampler",
	OpCreateBindGroupLayout: "create_bind_group_layout",
	OpCreateBindGroup:       "create_bind_group",
	OpCreatePipelineLayout:  "create_pipeline_layout",
	OpCreateShaderModule:    "create_shader_module",
	OpCreateComputePipeline: "create_compute_pipeline",
	OpCreateRenderPipeline:  "create_render_pipeline",
	OpCreateCommandEncoder:  "create_command_encoder",
	OpCopyBufferToBuffer:    "copy_buffer_to_buffer",
	OpRunComputePass:        "run_compute_pass",
	OpRunRenderPass:         "run_render_pass",
	OpCommandEncoderFinish:  "command_encoder_finish",
	OpSubmit:                "submit",
	OpExit:                  "exit",
}

func (o Op) String() string {
	if s, ok := opNames[o]; ok {
		return s
	}
	return fmt.Sprintf("op(%d)", uint8(o))
}

// Request is implemented by every request variant. The set is closed.
type Request interface {
	Op() Op
	isRequest()
}

// Sender enqueues requests to an actor.
type Sender interface {
	Send(Request) error
}

// RequestAdapter asks the actor to select an adapter among IDs matching
// Options. Privileged: exactly one Result is sent on Reply.
type RequestAdapter struct {
	Reply   chan<- Result
	Options AdapterOptions
	IDs     []id.ID
}

// RequestDevice asks the adapter for a device registered as DeviceID.
// Privileged: exactly one Result is sent on Reply.
type RequestDevice struct {
	Reply      chan<- Result
	AdapterID  id.ID
	Descriptor DeviceDescriptor
	DeviceID   id.ID
}

// CreateBuffer creates a buffer owned by DeviceID.
type CreateBuffer struct {
	DeviceID   id.ID
	BufferID   id.ID
	Descriptor BufferDescriptor
}

// DestroyBuffer destroys a buffer.
type DestroyBuffer struct {
	BufferID id.ID
}

// UnmapBuffer writes the client's mapped bytes into the buffer at offset 0.
type UnmapBuffer struct {
	DeviceID id.ID
	BufferID id.ID
	Data     []byte
}

// CreateTexture creates a texture owned by DeviceID.
type CreateTexture struct {
	DeviceID   id.ID
	TextureID  id.ID
	Descriptor TextureDescriptor
}

// DestroyTexture destroys a texture.
type DestroyTexture struct {
	TextureID id.ID
}

// CreateTextureView creates a view of TextureID.
type CreateTextureView struct {
	TextureID     id.ID
	TextureViewID id.ID
	Descriptor    TextureViewDescriptor
}

// CreateSampler creates a sampler owned by DeviceID.
type CreateSampler struct {
	DeviceID   id.ID
	SamplerID  id.ID
	Descriptor SamplerDescriptor
}

// CreateBindGroupLayout creates a bind group layout owned by DeviceID.
type CreateBindGroupLayout struct {
	DeviceID          id.ID
	BindGroupLayoutID id.ID
	Descriptor        BindGroupLayoutDescriptor
}

// CreateBindGroup creates a bind group owned by DeviceID.
type CreateBindGroup struct {
	DeviceID    id.ID
	BindGroupID id.ID
	Descriptor  BindGroupDescriptor
}

// CreatePipelineLayout creates a pipeline layout owned by DeviceID.
type CreatePipelineLayout struct {
	DeviceID         id.ID
	PipelineLayoutID id.ID
	Descriptor       PipelineLayoutDescriptor
}

// CreateShaderModule creates a shader module owned by DeviceID.
type CreateShaderModule struct {
	DeviceID       id.ID
	ShaderModuleID id.ID
	Descriptor     ShaderModuleDescriptor
}

// CreateComputePipeline creates a compute pipeline owned by DeviceID.
type CreateComputePipeline struct {
	DeviceID          id.ID
	ComputePipelineID id.ID
	Descriptor        ComputePipelineDescriptor
}

// CreateRenderPipeline creates a render pipeline owned by DeviceID.
type CreateRenderPipeline struct {
	DeviceID         id.ID
	RenderPipelineID id.ID
	Descriptor       RenderPipelineDescriptor
}

// CreateCommandEncoder creates a command encoder owned by DeviceID.
type CreateCommandEncoder struct {
	DeviceID         id.ID
	CommandEncoderID id.ID
	Descriptor       CommandEncoderDescriptor
}

// CopyBufferToBuffer records a buffer copy into CommandEncoderID.
type CopyBufferToBuffer struct {
	CommandEncoderID  id.ID
	SourceID          id.ID
	SourceOffset      uint64
	DestinationID     id.ID
	DestinationOffset uint64
	Size              uint64
}

// RunComputePass replays an encoded ComputePass into CommandEncoderID.
type RunComputePass struct {
	CommandEncoderID id.ID
	PassData         []byte
}

// RunRenderPass replays an encoded RenderPass into CommandEncoderID.
type RunRenderPass struct {
	CommandEncoderID id.ID
	PassData         []byte
}

// CommandEncoderFinish ends recording. The resulting command buffer is
// addressed by the encoder's identifier.
type CommandEncoderFinish struct {
	CommandEncoderID id.ID
}

// Submit submits command buffers to QueueID. A queue is addressed by the
// identifier of the device that owns it.
type Submit struct {
	QueueID        id.ID
	CommandBuffers []id.ID
}

// Exit stops the actor. A single value is sent on Ack once all backend
// state has been released.
type Exit struct {
	Ack chan<- struct{}
}

func (RequestAdapter) Op() Op        { return OpRequestAdapter }
func (RequestDevice) Op() Op         { return OpRequestDevice }
func (CreateBuffer) Op() Op          { return OpCreateBuffer }
func (DestroyBuffer) Op() Op         { return OpDestroyBuffer }
func (UnmapBuffer) Op() Op           { return OpUnmapBuffer }
func (CreateTexture) Op() Op         { return OpCreateTexture }
func (DestroyTexture) Op() Op        { return OpDestroyTexture }
func (CreateTextureView) Op() Op     { return OpCreateTextureView }
func (CreateSampler) Op() Op         { return OpCreateSampler }
func (CreateBindGroupLayout) Op() Op { return OpCreateBindGroupLayout }
func (CreateBindGroup) Op() Op       { return OpCreateBindGroup }
func (CreatePipelineLayout) Op() Op  { return OpCreatePipelineLayout }
func (CreateShaderModule) Op() Op    { return OpCreateShaderModule }
func (CreateComputePipeline) Op() Op { return OpCreateComputePipeline }
func (CreateRenderPipeline) Op() Op  { return OpCreateRenderPipeline }
func (CreateCommandEncoder) Op() Op  { return OpCreateCommandEncoder }
func (CopyBufferToBuffer) Op() Op    { return OpCopyBufferToBuffer }
func (RunComputePass) Op() Op        { return OpRunComputePass }
func (RunRenderPass) Op() Op         { return OpRunRenderPass }
func (CommandEncoderFinish) Op() Op  { return OpCommandEncoderFinish }
func (Submit) Op() Op                { return OpSubmit }
func (Exit) Op() Op                  { return OpExit }

func (RequestAdapter) isRequest()        {}
func (RequestDevice) isRequest()         {}
func (CreateBuffer) isRequest()          {}
func (DestroyBuffer) isRequest()         {}
func (UnmapBuffer) isRequest()           {}
func (CreateTexture) isRequest()         {}
func (DestroyTexture) isRequest()        {}
func (CreateTextureView) isRequest()     {}
func (CreateSampler) isRequest()         {}
func (CreateBindGroupLayout) isRequest() {}
func (CreateBindGroup) isRequest()       {}
func (CreatePipelineLayout) isRequest()  {}
func (CreateShaderModule) isRequest()    {}
func (CreateComputePipeline) isRequest() {}
func (CreateRenderPipeline) isRequest()  {}
func (CreateCommandEncoder) isRequest()  {}
func (CopyBufferToBuffer) isRequest()    {}
func (RunComputePass) isRequest()        {}
func (RunRenderPass) isRequest()         {}
func (CommandEncoderFinish) isRequest()  {}
func (Submit) isRequest()                {}
func (Exit) isRequest()                  {}

// Privileged reports whether r carries a reply channel that must receive
// exactly one Result.
func Privileged(r Request) bool {
	switch r.(type) {
	case RequestAdapter, RequestDevice:
		return true
	}
	return false
}

// ErrUnbufferedReply is returned by CheckReply for a reply or
// acknowledgment channel that cannot hold a value.
var ErrUnbufferedReply = errors.New("protocol: reply channel must be buffered")

// CheckReply returns an error if r is privileged or an Exit and its reply
// or acknowledgment channel is nil or unbuffered. The actor never blocks
// on a reply, so such a channel would lose the only result.
func CheckReply(r Request) error {
	var n int
	switch q := r.(type) {
	case RequestAdapter:
		n = cap(q.Reply)
	case RequestDevice:
		n = cap(q.Reply)
	case Exit:
		n = cap(q.Ack)
	default:
		return nil
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrUnbufferedReply, r.Op())
	}
	return nil
}
