package gpuactor

import "github.com/prometheus/client_golang/prometheus"

// Option configures an Actor during creation.
//
// Example:
//
//	a, err := gpuactor.New(table,
//	    gpuactor.WithName("compositor"),
//	    gpuactor.WithInboxDepth(1024),
//	    gpuactor.WithMetrics(prometheus.DefaultRegisterer),
//	)
type Option func(*options)

// options holds optional configuration for Actor creation.
type options struct {
	name        string
	enabled     bool
	inboxDepth  int
	notifyDepth int
	registerer  prometheus.Registerer
}

// Default channel depths.
const (
	DefaultInboxDepth  = 256
	DefaultNotifyDepth = 256
)

// defaultOptions returns the default actor options.
func defaultOptions() options {
	return options{
		name:        "gpuactor",
		enabled:     true,
		inboxDepth:  DefaultInboxDepth,
		notifyDepth: DefaultNotifyDepth,
	}
}

// WithName labels the actor in logs and metrics.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithEnabled gates creation. New returns ErrDisabled when false.
func WithEnabled(enabled bool) Option {
	return func(o *options) {
		o.enabled = enabled
	}
}

// WithInboxDepth sets the capacity of the request channel. Send blocks
// while the channel is full.
func WithInboxDepth(n int) Option {
	return func(o *options) {
		o.inboxDepth = n
	}
}

// WithNotifyDepth sets the capacity of the downstream notification channel.
// Notifications are dropped, with a warning, while it is full.
func WithNotifyDepth(n int) Option {
	return func(o *options) {
		o.notifyDepth = n
	}
}

// WithMetrics registers the actor's Prometheus collectors with r.
func WithMetrics(r prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = r
	}
}
