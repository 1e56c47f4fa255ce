package gpuactor

import "errors"

// Package errors.
var (
	// ErrNilRequest is returned by Client.Send for a nil request.
	ErrNilRequest = errors.New("gpuactor: nil request")

	// ErrDisconnected is returned by Client.Send once the actor has
	// terminated.
	ErrDisconnected = errors.New("gpuactor: actor disconnected")

	// ErrDisabled is returned by New when the actor is disabled by
	// configuration.
	ErrDisabled = errors.New("gpuactor: actor disabled")

	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = errors.New("gpuactor: actor already started")

	// ErrNotTerminated is returned by the bookkeeping snapshots while the
	// actor is still running.
	ErrNotTerminated = errors.New("gpuactor: actor not terminated")

	// ErrInvalidOption is returned by New for an unusable option value.
	ErrInvalidOption = errors.New("gpuactor: invalid option")

	// ErrRequestFailed wraps the error message of a failed privileged
	// request.
	ErrRequestFailed = errors.New("gpuactor: request failed")

	// ErrUnexpectedResponse is returned when a reply carries the wrong
	// response type.
	ErrUnexpectedResponse = errors.New("gpuactor: unexpected response type")
)
