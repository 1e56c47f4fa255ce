// Package identity carries the identifier capabilities the actor consumes:
// downstream lifecycle notifications, the handler backends report
// registrations to, and a reference allocator for clients.
package identity

import (
	"errors"
	"fmt"

	"github.com/gogpu/gpuactor/id"
	"github.com/gogpu/gpuactor/internal/logging"
)

// ErrDownstreamFull is returned when a notification cannot be delivered
// without blocking the actor.
var ErrDownstreamFull = errors.New("identity: downstream channel full")

// MsgType discriminates downstream notifications.
type MsgType uint8

// Downstream notification types.
const (
	// MsgExit announces that the actor is shutting down.
	MsgExit MsgType = iota + 1
	// MsgAssigned announces that a caller-assigned identifier now names a
	// live resource.
	MsgAssigned
	// MsgFreed announces that an identifier was released by its backend and
	// may be recycled by the allocator.
	MsgFreed
)

func (t MsgType) String() string {
	switch t {
	case MsgExit:
		return "exit"
	case MsgAssigned:
		return "assigned"
	case MsgFreed:
		return "freed"
	default:
		return fmt.Sprintf("msg(%d)", uint8(t))
	}
}

// Msg is a notification sent to the downstream consumer.
type Msg struct {
	Type MsgType
	Kind id.Kind
	ID   id.ID
}

// Exit is the shutdown notification.
var Exit = Msg{Type: MsgExit}

// Handler is notified as identifiers become live or are released.
// Implementations must not block.
type Handler interface {
	Process(kind id.Kind, i id.ID)
	Free(kind id.Kind, i id.ID)
}

// Recycler is a Handler that forwards notifications to the downstream
// consumer.
type Recycler struct {
	sink chan<- Msg
}

// NewRecycler returns a Recycler writing to sink.
func NewRecycler(sink chan<- Msg) *Recycler {
	return &Recycler{sink: sink}
}

// Process reports a newly registered identifier.
func (r *Recycler) Process(kind id.Kind, i id.ID) {
	r.notify(Msg{Type: MsgAssigned, Kind: kind, ID: i})
}

// Free reports a released identifier.
func (r *Recycler) Free(kind id.Kind, i id.ID) {
	r.notify(Msg{Type: MsgFreed, Kind: kind, ID: i})
}

func (r *Recycler) notify(m Msg) {
	if err := Send(r.sink, m); err != nil {
		logging.L().Warn("identity: notification dropped", "type", m.Type, "kind", m.Kind, "id", m.ID, "error", err)
	}
}

// Send delivers m without blocking. A full or nil sink is a transport error.
func Send(sink chan<- Msg, m Msg) error {
	if sink == nil {
		return fmt.Errorf("%w: no receiver", ErrDownstreamFull)
	}
	select {
	case sink <- m:
		return nil
	default:
		return ErrDownstreamFull
	}
}

// Discard is a Handler that drops every notification.
type Discard struct{}

func (Discard) Process(id.Kind, id.ID) {}
func (Discard) Free(id.Kind, id.ID)    {}
