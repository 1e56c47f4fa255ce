package protocol

import "github.com/gogpu/gpuactor/id"

// Response is the payload of a successful privileged request.
type Response interface {
	isResponse()
}

// AdapterResponse reports the adapter selected by a RequestAdapter.
type AdapterResponse struct {
	// Name is the adapter's human-readable name.
	Name string

	// AdapterID is the candidate identifier the adapter was adopted under.
	AdapterID id.ID

	// Channel is a sender for the actor that owns the adapter. It is not
	// encoded; a stream client sets it to itself on decode.
	Channel Sender
}

// DeviceResponse reports the device created by a RequestDevice.
type DeviceResponse struct {
	DeviceID id.ID

	// QueueID always equals DeviceID.
	QueueID id.ID

	Descriptor DeviceDescriptor
}

func (AdapterResponse) isResponse() {}
func (DeviceResponse) isResponse()  {}

// Result is delivered exactly once on the reply channel of a privileged
// request. Exactly one of Response and Err is set.
type Result struct {
	Response Response
	Err      string
}

// OK reports whether the result carries a response.
func (r Result) OK() bool {
	return r.Err == "" && r.Response != nil
}

// Fail returns a Result carrying err's message.
func Fail(err error) Result {
	return Result{Err: err.Error()}
}
