package ipc

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/gogpu/gpuactor/id"
	"github.com/gogpu/gpuactor/internal/logging"
	"github.com/gogpu/gpuactor/protocol"
)

// Remote sends requests to an actor served on the other end of a
// connection. Its methods mirror those of gpuactor.Client. A Remote is
// safe for concurrent use.
type Remote struct {
	conn net.Conn
	wmu  sync.Mutex

	mu      sync.Mutex
	next    uint64
	pending map[uint64]func(protocol.Result)
	err     error

	done chan struct{}
}

var _ protocol.Sender = (*Remote)(nil)

// Dial connects to the unix socket at path.
func Dial(ctx context.Context, path string) (*Remote, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", path, err)
	}
	return NewRemote(conn), nil
}

// NewRemote wraps an established connection.
func NewRemote(conn net.Conn) *Remote {
	r := &Remote{
		conn:    conn,
		pending: make(map[uint64]func(protocol.Result)),
		done:    make(chan struct{}),
	}
	go r.readLoop()
	return r
}

// Done is closed once the connection is gone.
func (r *Remote) Done() <-chan struct{} { return r.done }

// Close closes the connection. Pending privileged requests fail with
// ErrPeerDisconnected.
func (r *Remote) Close() error {
	err := r.conn.Close()
	<-r.done
	return err
}

// Send writes req to the connection. A Reply or Ack channel on req is
// served by the matching result frame; unbuffered channels are rejected
// with protocol.ErrUnbufferedReply.
func (r *Remote) Send(req protocol.Request) error {
	if req == nil {
		return ErrNilRequest
	}
	if err := protocol.CheckReply(req); err != nil {
		return err
	}
	var deliver func(protocol.Result)
	switch q := req.(type) {
	case protocol.RequestAdapter:
		deliver = replyTo(q.Reply, r)
	case protocol.RequestDevice:
		deliver = replyTo(q.Reply, nil)
	case protocol.Exit:
		if q.Ack != nil {
			deliver = func(res protocol.Result) {
				if res.Err != "" {
					return
				}
				select {
				case q.Ack <- struct{}{}:
				default:
				}
			}
		}
	}
	return r.send(req, deliver)
}

// replyTo delivers results on ch without blocking. Adapter responses get
// sender as their Channel.
func replyTo(ch chan<- protocol.Result, sender protocol.Sender) func(protocol.Result) {
	if ch == nil {
		return nil
	}
	return func(res protocol.Result) {
		if a, ok := res.Response.(protocol.AdapterResponse); ok && sender != nil {
			a.Channel = sender
			res.Response = a
		}
		select {
		case ch <- res:
		default:
			logging.L().Warn("ipc: reply dropped", "reason", "reply channel full")
		}
	}
}

func (r *Remote) send(req protocol.Request, deliver func(protocol.Result)) error {
	r.mu.Lock()
	if r.err != nil {
		err := r.err
		r.mu.Unlock()
		return err
	}
	r.next++
	token := r.next
	if deliver != nil {
		r.pending[token] = deliver
	}
	r.mu.Unlock()

	frame, err := protocol.MarshalRequest(req, token)
	if err == nil {
		r.wmu.Lock()
		err = writeFrame(r.conn, frame)
		r.wmu.Unlock()
	}
	if err != nil {
		r.mu.Lock()
		delete(r.pending, token)
		r.mu.Unlock()
		return fmt.Errorf("send %s: %w", req.Op(), err)
	}
	return nil
}

// Exit asks the remote actor to stop. A single value is sent on ack once
// the actor has released every backend.
func (r *Remote) Exit(ack chan<- struct{}) error {
	if err := r.Send(protocol.Exit{Ack: ack}); err != nil {
		return fmt.Errorf("failed to send Exit message: %w", err)
	}
	return nil
}

// RequestAdapter sends a RequestAdapter and waits for its result.
func (r *Remote) RequestAdapter(ctx context.Context, opts protocol.AdapterOptions, ids []id.ID) (protocol.AdapterResponse, error) {
	reply := make(chan protocol.Result, 1)
	res, err := r.call(ctx, protocol.RequestAdapter{Reply: reply, Options: opts, IDs: ids}, reply)
	if err != nil {
		return protocol.AdapterResponse{}, err
	}
	resp, ok := res.(protocol.AdapterResponse)
	if !ok {
		return protocol.AdapterResponse{}, fmt.Errorf("ipc: unexpected response %T", res)
	}
	return resp, nil
}

// RequestDevice sends a RequestDevice and waits for its result.
func (r *Remote) RequestDevice(ctx context.Context, adapter id.ID, desc protocol.DeviceDescriptor, device id.ID) (protocol.DeviceResponse, error) {
	reply := make(chan protocol.Result, 1)
	req := protocol.RequestDevice{Reply: reply, AdapterID: adapter, Descriptor: desc, DeviceID: device}
	res, err := r.call(ctx, req, reply)
	if err != nil {
		return protocol.DeviceResponse{}, err
	}
	resp, ok := res.(protocol.DeviceResponse)
	if !ok {
		return protocol.DeviceResponse{}, fmt.Errorf("ipc: unexpected response %T", res)
	}
	return resp, nil
}

func (r *Remote) call(ctx context.Context, req protocol.Request, reply <-chan protocol.Result) (protocol.Response, error) {
	if err := r.Send(req); err != nil {
		return nil, err
	}
	select {
	case res := <-reply:
		switch {
		case res.Err == ErrPeerDisconnected.Error():
			return nil, ErrPeerDisconnected
		case res.Err != "":
			return nil, fmt.Errorf("%w: %s", ErrRequestFailed, res.Err)
		case res.Response == nil:
			return nil, fmt.Errorf("%w: empty result", ErrRequestFailed)
		}
		return res.Response, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *Remote) readLoop() {
	defer close(r.done)
	var err error
	for {
		var b []byte
		if b, err = readFrame(r.conn); err != nil {
			break
		}
		token, res, derr := protocol.UnmarshalResult(b)
		if derr != nil {
			logging.L().Warn("ipc: malformed result dropped", "error", derr)
			continue
		}
		r.mu.Lock()
		deliver := r.pending[token]
		delete(r.pending, token)
		r.mu.Unlock()
		if deliver == nil {
			logging.L().Debug("ipc: result for unknown token", "token", token)
			continue
		}
		deliver(res)
	}

	r.mu.Lock()
	r.err = fmt.Errorf("%w: %v", ErrPeerDisconnected, err)
	pending := r.pending
	r.pending = nil
	r.mu.Unlock()
	_ = r.conn.Close()

	// Privileged requests still get their single reply. Exit acks do not:
	// the peer never confirmed the release.
	fail := protocol.Fail(ErrPeerDisconnected)
	for _, deliver := range pending {
		deliver(fail)
	}
}
