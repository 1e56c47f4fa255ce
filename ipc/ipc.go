// Package ipc carries the command protocol over a stream connection.
//
// Frames are a 4-byte big-endian length followed by a protowire-encoded
// request or result (see protocol.MarshalRequest and protocol.MarshalResult).
// Reply and acknowledgment channels cannot cross a process boundary; each
// privileged request and each Exit carries a token that the server echoes
// in the matching result frame.
//
// The stream is ordered and reliable, so the per-sender ordering of the
// actor extends to a remote peer: requests written on one connection are
// enqueued in the order they were written.
package ipc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/gogpu/gpuactor/protocol"
)

// MaxFrameSize bounds a single frame. Larger frames close the connection.
const MaxFrameSize = 16 << 20

const frameLengthSize = 4

var (
	// ErrPeerDisconnected is returned once the connection is gone.
	ErrPeerDisconnected = errors.New("ipc: peer disconnected")

	// ErrRequestFailed wraps the error message of a failed privileged
	// request.
	ErrRequestFailed = errors.New("ipc: request failed")

	// ErrNilRequest is returned by Remote.Send for a nil request.
	ErrNilRequest = errors.New("ipc: nil request")

	// ErrFrameTooLarge is returned for frames above MaxFrameSize.
	ErrFrameTooLarge = errors.New("ipc: frame too large")
)

// Actor is the local end a server forwards requests to.
// *gpuactor.Client implements it.
type Actor interface {
	protocol.Sender
	Done() <-chan struct{}
}

func writeFrame(w io.Writer, data []byte) error {
	if len(data) > MaxFrameSize {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(data))
	}
	buf := make([]byte, frameLengthSize+len(data))
	binary.BigEndian.PutUint32(buf, uint32(len(data)))
	copy(buf[frameLengthSize:], data)
	_, err := w.Write(buf)
	return err
}

func readFrame(r io.Reader) ([]byte, error) {
	lenBuf := make([]byte, frameLengthSize)
	if _, err := io.ReadFull(r, lenBuf); err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint32(lenBuf)
	if length > MaxFrameSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, length)
	}
	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}
	return data, nil
}
