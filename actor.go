package gpuactor

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"sync/atomic"

	"github.com/gogpu/gpuactor/backend"
	"github.com/gogpu/gpuactor/id"
	"github.com/gogpu/gpuactor/identity"
	"github.com/gogpu/gpuactor/internal/logging"
	"github.com/gogpu/gpuactor/protocol"
)

// State is the lifecycle state of an Actor.
type State int32

// Actor states.
const (
	StateIdle State = iota
	StateRunning
	StateTerminated
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Actor owns the backends and processes requests one at a time.
type Actor struct {
	opts    options
	hub     *backend.Hub
	metrics *metrics

	inbox  chan protocol.Request
	notify chan identity.Msg
	done   chan struct{}
	state  atomic.Int32

	// Owned by the actor goroutine until Done is closed.
	adapters map[id.ID]backend.AdapterInfo
	invalid  map[id.ID]struct{}
	devices  map[id.ID]id.ID // device -> adapter
}

// New creates an actor over table. Nothing runs until Start.
func New(table *backend.Table, opts ...Option) (*Actor, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if !o.enabled {
		return nil, ErrDisabled
	}
	if table == nil {
		return nil, fmt.Errorf("%w: nil backend table", ErrInvalidOption)
	}
	if o.inboxDepth <= 0 {
		return nil, fmt.Errorf("%w: inbox depth %d", ErrInvalidOption, o.inboxDepth)
	}
	if o.notifyDepth <= 0 {
		return nil, fmt.Errorf("%w: notify depth %d", ErrInvalidOption, o.notifyDepth)
	}

	m := newMetrics(o.name)
	if o.registerer != nil {
		if err := m.register(o.registerer); err != nil {
			return nil, fmt.Errorf("%w: register metrics for %q: %v", ErrInvalidOption, o.name, err)
		}
	}

	notify := make(chan identity.Msg, o.notifyDepth)
	return &Actor{
		opts:     o,
		hub:      backend.NewHub(table, identity.NewRecycler(notify)),
		metrics:  m,
		inbox:    make(chan protocol.Request, o.inboxDepth),
		notify:   notify,
		done:     make(chan struct{}),
		adapters: make(map[id.ID]backend.AdapterInfo),
		invalid:  make(map[id.ID]struct{}),
		devices:  make(map[id.ID]id.ID),
	}, nil
}

// Start spawns the actor goroutine and returns the client handle and the
// downstream notification channel.
func (a *Actor) Start() (*Client, <-chan identity.Msg, error) {
	if !a.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return nil, nil, ErrAlreadyStarted
	}
	go a.run()
	return a.client(), a.notify, nil
}

// State returns the current lifecycle state.
func (a *Actor) State() State { return State(a.state.Load()) }

// Done is closed when the actor has terminated.
func (a *Actor) Done() <-chan struct{} { return a.done }

func (a *Actor) client() *Client {
	return &Client{inbox: a.inbox, done: a.done}
}

func (a *Actor) log() *slog.Logger {
	return logging.L().With("actor", a.opts.name)
}

func (a *Actor) run() {
	// The device context stays on one OS thread for the actor's lifetime.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	a.log().Info("gpuactor: started", "backends", a.hub.Table().Tags())
	for {
		if a.step(<-a.inbox) {
			return
		}
	}
}

// step processes one request and reports whether the actor terminated.
func (a *Actor) step(req protocol.Request) bool {
	switch r := req.(type) {
	case nil:
		a.log().Warn("gpuactor: nil request dropped")
	case protocol.RequestAdapter:
		a.requestAdapter(r)
	case protocol.RequestDevice:
		a.requestDevice(r)
	case protocol.Exit:
		a.exit(r)
		return true
	default:
		err := a.hub.Dispatch(req)
		a.metrics.observe(req.Op().String(), err)
		if err != nil {
			a.log().Warn("gpuactor: request dropped", "op", req.Op(), "error", err)
		} else {
			a.log().Debug("gpuactor: request done", "op", req.Op())
		}
	}
	return false
}

func (a *Actor) isInvalid(adapter id.ID) bool {
	_, ok := a.invalid[adapter]
	return ok
}

func (a *Actor) requestAdapter(r protocol.RequestAdapter) {
	picked, info, err := a.hub.PickAdapter(r.Options, r.IDs, a.isInvalid)
	a.metrics.observe(r.Op().String(), err)
	if err != nil {
		a.log().Warn("gpuactor: no adapter", "candidates", len(r.IDs), "error", err)
		a.reply(r.Reply, protocol.Fail(err))
		return
	}
	a.adapters[picked] = info
	a.metrics.adapters.Set(float64(len(a.adapters)))
	a.log().Info("gpuactor: adapter selected", "adapter", picked, "name", info.Name, "type", info.DeviceType)
	a.reply(r.Reply, protocol.Result{Response: protocol.AdapterResponse{
		Name:      info.Name,
		AdapterID: picked,
		Channel:   a.client(),
	}})
}

func (a *Actor) requestDevice(r protocol.RequestDevice) {
	err := a.openDevice(r)
	a.metrics.observe(r.Op().String(), err)
	if err != nil {
		a.log().Warn("gpuactor: device request failed", "adapter", r.AdapterID, "device", r.DeviceID, "error", err)
		a.reply(r.Reply, protocol.Fail(err))
		return
	}
	a.reply(r.Reply, protocol.Result{Response: protocol.DeviceResponse{
		DeviceID:   r.DeviceID,
		QueueID:    r.DeviceID,
		Descriptor: r.Descriptor,
	}})
}

func (a *Actor) openDevice(r protocol.RequestDevice) error {
	if a.isInvalid(r.AdapterID) {
		return fmt.Errorf("%w: adapter %v is invalid", backend.ErrStaleHandle, r.AdapterID)
	}
	err := a.hub.RequestDevice(r.AdapterID, r.Descriptor, r.DeviceID)
	if err != nil {
		_, adopted := a.adapters[r.AdapterID]
		if adopted && (errors.Is(err, backend.ErrStaleHandle) || errors.Is(err, backend.ErrDeviceLost)) {
			// The adapter cannot produce devices; never offer it again.
			delete(a.adapters, r.AdapterID)
			a.invalid[r.AdapterID] = struct{}{}
			a.metrics.adapters.Set(float64(len(a.adapters)))
		}
		return err
	}
	a.devices[r.DeviceID] = r.AdapterID
	a.metrics.devices.Set(float64(len(a.devices)))
	return nil
}

// reply delivers res without blocking.
func (a *Actor) reply(ch chan<- protocol.Result, res protocol.Result) {
	if ch == nil {
		a.metrics.droppedReplies.Inc()
		a.log().Warn("gpuactor: peer disconnected", "reason", "nil reply channel")
		return
	}
	select {
	case ch <- res:
	default:
		a.metrics.droppedReplies.Inc()
		a.log().Warn("gpuactor: peer disconnected", "reason", "reply channel full")
	}
}

// exit shuts the actor down. Every step runs even if an earlier one fails.
func (a *Actor) exit(r protocol.Exit) {
	a.log().Info("gpuactor: exiting")
	if err := identity.Send(a.notify, identity.Exit); err != nil {
		a.log().Warn("gpuactor: exit notification not delivered", "error", err)
	}
	if err := a.hub.Close(); err != nil {
		a.log().Warn("gpuactor: backend release failed", "error", err)
	}
	a.metrics.adapters.Set(0)
	a.metrics.devices.Set(0)

	if r.Ack == nil {
		a.metrics.droppedReplies.Inc()
		a.log().Warn("gpuactor: peer disconnected", "reason", "nil exit ack")
	} else {
		select {
		case r.Ack <- struct{}{}:
		default:
			a.metrics.droppedReplies.Inc()
			a.log().Warn("gpuactor: peer disconnected", "reason", "exit ack full")
		}
	}

	a.state.Store(int32(StateTerminated))
	close(a.done)
}

// Adapters returns the adapters live at termination, in index order.
func (a *Actor) Adapters() ([]id.ID, error) {
	if a.State() != StateTerminated {
		return nil, ErrNotTerminated
	}
	return sortedKeys(a.adapters), nil
}

// InvalidAdapters returns the adapters invalidated by failed device
// requests, in index order.
func (a *Actor) InvalidAdapters() ([]id.ID, error) {
	if a.State() != StateTerminated {
		return nil, ErrNotTerminated
	}
	return sortedKeys(a.invalid), nil
}

// Devices returns the devices open at termination, in index order.
func (a *Actor) Devices() ([]id.ID, error) {
	if a.State() != StateTerminated {
		return nil, ErrNotTerminated
	}
	return sortedKeys(a.devices), nil
}

func sortedKeys[V any](m map[id.ID]V) []id.ID {
	keys := make([]id.ID, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(x, y id.ID) int {
		switch {
		case x.Pack() < y.Pack():
			return -1
		case x.Pack() > y.Pack():
			return 1
		}
		return 0
	})
	return keys
}
