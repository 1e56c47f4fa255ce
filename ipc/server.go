package ipc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gogpu/gpuactor/internal/logging"
	"github.com/gogpu/gpuactor/protocol"
)

// Serve accepts connections on ln and forwards their requests to actor
// until ctx is canceled or the actor terminates, then closes ln.
//
// When the actor terminates, pending results (including the Exit
// acknowledgment) are still written before each connection is closed.
// Canceling ctx closes every connection immediately.
func Serve(ctx context.Context, ln net.Listener, actor Actor) error {
	g, gctx := errgroup.WithContext(ctx)

	var (
		mu    sync.Mutex
		conns = make(map[net.Conn]struct{})
		stop  bool
	)
	g.Go(func() error {
		canceled := false
		select {
		case <-gctx.Done():
			canceled = true
		case <-actor.Done():
		}
		mu.Lock()
		stop = true
		for c := range conns {
			if canceled {
				_ = c.Close()
			} else {
				// Ends the read loop; the session flushes and closes.
				_ = c.SetReadDeadline(time.Now())
			}
		}
		mu.Unlock()
		return ln.Close()
	})

	g.Go(func() error {
		for {
			conn, err := ln.Accept()
			if err != nil {
				mu.Lock()
				stopped := stop
				mu.Unlock()
				if stopped || errors.Is(err, net.ErrClosed) {
					return nil
				}
				return fmt.Errorf("accept: %w", err)
			}
			mu.Lock()
			if stop {
				mu.Unlock()
				_ = conn.Close()
				return nil
			}
			conns[conn] = struct{}{}
			mu.Unlock()

			logging.L().Debug("ipc: connection accepted", "remote", conn.RemoteAddr())
			g.Go(func() error {
				defer func() {
					mu.Lock()
					delete(conns, conn)
					mu.Unlock()
				}()
				if err := ServeConn(gctx, conn, actor); err != nil {
					logging.L().Warn("ipc: connection closed", "remote", conn.RemoteAddr(), "error", err)
				}
				return nil
			})
		}
	})

	err := g.Wait()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

// session is the server side of one connection.
type session struct {
	ctx   context.Context
	conn  net.Conn
	actor Actor
	wmu   sync.Mutex
	wg    sync.WaitGroup
}

// ServeConn forwards the requests read from conn to actor until the
// stream ends, waits for the pending results to be written, and closes
// conn. It returns nil on a clean end of stream.
func ServeConn(ctx context.Context, conn net.Conn, actor Actor) error {
	s := &session{ctx: ctx, conn: conn, actor: actor}
	defer conn.Close()
	defer s.wg.Wait()

	for {
		b, err := readFrame(conn)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, os.ErrDeadlineExceeded) {
				return nil
			}
			return fmt.Errorf("read frame: %w", err)
		}
		req, token, err := protocol.UnmarshalRequest(b)
		if err != nil {
			// Frame boundaries are intact; only this request is lost.
			logging.L().Warn("ipc: malformed request dropped", "error", err)
			continue
		}
		if err := s.forward(req, token); err != nil {
			select {
			case <-actor.Done():
				return nil
			default:
				return err
			}
		}
	}
}

// forward enqueues req, attaching local reply channels to privileged
// requests and to Exit.
func (s *session) forward(req protocol.Request, token uint64) error {
	switch r := req.(type) {
	case protocol.RequestAdapter:
		reply := make(chan protocol.Result, 1)
		r.Reply = reply
		return s.call(r, token, reply)
	case protocol.RequestDevice:
		reply := make(chan protocol.Result, 1)
		r.Reply = reply
		return s.call(r, token, reply)
	case protocol.Exit:
		ack := make(chan struct{}, 1)
		r.Ack = ack
		if err := s.actor.Send(r); err != nil {
			return fmt.Errorf("%w: %v", ErrPeerDisconnected, err)
		}
		s.await(token, func() (protocol.Result, bool) {
			select {
			case <-ack:
				return protocol.Result{}, true
			case <-s.actor.Done():
				// The ack is sent before Done is closed.
				select {
				case <-ack:
					return protocol.Result{}, true
				default:
				}
			case <-s.ctx.Done():
			}
			return protocol.Result{}, false
		})
		return nil
	default:
		if err := s.actor.Send(req); err != nil {
			return fmt.Errorf("%w: %v", ErrPeerDisconnected, err)
		}
		return nil
	}
}

func (s *session) call(req protocol.Request, token uint64, reply <-chan protocol.Result) error {
	if err := s.actor.Send(req); err != nil {
		s.write(protocol.MarshalResult(token, protocol.Fail(err)))
		return fmt.Errorf("%w: %v", ErrPeerDisconnected, err)
	}
	s.await(token, func() (protocol.Result, bool) {
		select {
		case res := <-reply:
			return res, true
		case <-s.actor.Done():
			select {
			case res := <-reply:
				return res, true
			default:
			}
			return protocol.Fail(ErrPeerDisconnected), true
		case <-s.ctx.Done():
			return protocol.Result{}, false
		}
	})
	return nil
}

// await waits for a result off the read loop and writes it back.
func (s *session) await(token uint64, wait func() (protocol.Result, bool)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if res, ok := wait(); ok {
			s.write(protocol.MarshalResult(token, res))
		}
	}()
}

func (s *session) write(frame []byte) {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if err := writeFrame(s.conn, frame); err != nil {
		logging.L().Warn("ipc: peer disconnected", "error", err)
	}
}
