// Package gpuactor serializes access to a graphics device context behind a
// single command actor.
//
// Many clients share one actor. Each client enqueues requests through a
// Client handle; the actor runs them one at a time on a goroutine locked to
// its OS thread, routes each request to the backend named by the tag of its
// resource identifiers, and answers privileged requests exactly once.
//
// # Quick Start
//
//	table, _ := backend.NewTable(software.New())
//	a, _ := gpuactor.New(table)
//	client, notifications, _ := a.Start()
//
//	ids := identity.NewAllocator(id.Software)
//	adapter, err := client.RequestAdapter(ctx, protocol.AdapterOptions{}, []id.ID{ids.Alloc()})
//	device, err := client.RequestDevice(ctx, adapter.AdapterID, protocol.DefaultDeviceDescriptor(), ids.Alloc())
//
//	_ = client.Send(protocol.CreateBuffer{DeviceID: device.DeviceID, BufferID: ids.Alloc(), Descriptor: desc})
//
//	ack := make(chan struct{}, 1)
//	_ = client.Exit(ack)
//	<-ack
//
// # Failure model
//
// RequestAdapter and RequestDevice always receive one Result. Every other
// request is fire-and-forget: a failure is logged and the request is
// dropped, and the actor moves on to the next request. Exit is the only
// way to stop the actor. After Exit the downstream consumer receives
// identity.Exit, every backend is closed, the Exit acknowledgment is sent
// and Done is closed. Requests still queued at that point are never read.
//
// Reply channels must be buffered. The actor never blocks on a reply; a
// nil or full channel is logged as a disconnected peer.
//
// A backend that hangs hangs the actor. There is no per-step timeout.
//
// # Logging
//
// gpuactor is silent by default. Call SetLogger to enable structured
// logging through log/slog.
package gpuactor
