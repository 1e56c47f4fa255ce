// Package backend provides the dispatch layer between the command actor and
// the backend implementations.
//
// # Dispatch
//
// Every resource identifier carries a backend tag. A Table maps tags to
// Backend implementations; the Hub resolves the tag of each request's
// owning identifier and forwards the request. Inside a backend, resources
// live in generation-checked Storage, so a released or recycled identifier
// yields ErrStaleHandle instead of reaching a different resource.
//
//	table, _ := backend.NewTable(software.New(), native.New(id.Empty))
//	hub := backend.NewHub(table, identity.Discard{})
//	adapter, info, err := hub.PickAdapter(opts, candidates, nil)
//
// # Failure model
//
// Descriptors are validated before a backend sees them. Labels must be
// valid UTF-8 without NUL and are normalized to NFC. A panic in a backend
// call is recovered and reported as ErrPanic for that call only.
//
// Implementations shipped with this module:
//
//   - backend/native: gogpu/wgpu HAL (noop and Vulkan)
//   - backend/software: CPU reference implementation
package backend
