package gpuactor

import (
	"context"
	"fmt"

	"github.com/gogpu/gpuactor/id"
	"github.com/gogpu/gpuactor/protocol"
)

// Client enqueues requests to an actor. The zero value is not usable;
// clients are obtained from Start, Launch or Clone. A Client is safe for
// concurrent use, and requests from one goroutine are processed in the
// order they were sent.
type Client struct {
	inbox chan<- protocol.Request
	done  <-chan struct{}
}

var _ protocol.Sender = (*Client)(nil)

// Send enqueues req. It blocks while the inbox is full and returns
// ErrDisconnected once the actor has terminated. Reply and Ack channels
// must be buffered; otherwise req is rejected with
// protocol.ErrUnbufferedReply before it is enqueued.
func (c *Client) Send(req protocol.Request) error {
	if req == nil {
		return ErrNilRequest
	}
	if err := protocol.CheckReply(req); err != nil {
		return err
	}
	select {
	case <-c.done:
		return ErrDisconnected
	default:
	}
	select {
	case c.inbox <- req:
		return nil
	case <-c.done:
		return ErrDisconnected
	}
}

// Exit asks the actor to stop. A single value is sent on ack, which must
// be buffered, once every backend has been released.
func (c *Client) Exit(ack chan<- struct{}) error {
	if err := c.Send(protocol.Exit{Ack: ack}); err != nil {
		return fmt.Errorf("failed to send Exit message: %w", err)
	}
	return nil
}

// Clone returns another handle on the same actor.
func (c *Client) Clone() *Client {
	return &Client{inbox: c.inbox, done: c.done}
}

// Done is closed when the actor has terminated.
func (c *Client) Done() <-chan struct{} { return c.done }

// RequestAdapter sends a RequestAdapter and waits for its result.
func (c *Client) RequestAdapter(ctx context.Context, opts protocol.AdapterOptions, ids []id.ID) (protocol.AdapterResponse, error) {
	reply := make(chan protocol.Result, 1)
	res, err := c.call(ctx, protocol.RequestAdapter{Reply: reply, Options: opts, IDs: ids}, reply)
	if err != nil {
		return protocol.AdapterResponse{}, err
	}
	resp, ok := res.(protocol.AdapterResponse)
	if !ok {
		return protocol.AdapterResponse{}, fmt.Errorf("%w: %T", ErrUnexpectedResponse, res)
	}
	return resp, nil
}

// RequestDevice sends a RequestDevice and waits for its result.
func (c *Client) RequestDevice(ctx context.Context, adapter id.ID, desc protocol.DeviceDescriptor, device id.ID) (protocol.DeviceResponse, error) {
	reply := make(chan protocol.Result, 1)
	req := protocol.RequestDevice{Reply: reply, AdapterID: adapter, Descriptor: desc, DeviceID: device}
	res, err := c.call(ctx, req, reply)
	if err != nil {
		return protocol.DeviceResponse{}, err
	}
	resp, ok := res.(protocol.DeviceResponse)
	if !ok {
		return protocol.DeviceResponse{}, fmt.Errorf("%w: %T", ErrUnexpectedResponse, res)
	}
	return resp, nil
}

// call sends a privileged request and waits for the single reply. ctx
// bounds only the wait, not the processing.
func (c *Client) call(ctx context.Context, req protocol.Request, reply <-chan protocol.Result) (protocol.Response, error) {
	if err := c.Send(req); err != nil {
		return nil, err
	}
	var res protocol.Result
	select {
	case res = <-reply:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		// The reply may have been sent just before termination.
		select {
		case res = <-reply:
		default:
			return nil, ErrDisconnected
		}
	}
	if res.Err != "" {
		return nil, fmt.Errorf("%w: %s", ErrRequestFailed, res.Err)
	}
	if res.Response == nil {
		return nil, fmt.Errorf("%w: empty result", ErrUnexpectedResponse)
	}
	return res.Response, nil
}
