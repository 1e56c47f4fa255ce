package gpuactor

import (
	"errors"
	"fmt"

	"github.com/gogpu/gpuactor/backend"
	"github.com/gogpu/gpuactor/config"
	"github.com/gogpu/gpuactor/identity"
	"github.com/gogpu/gpuactor/internal/logging"
)

// Launch creates and starts an actor configured by cfg. Options are
// applied after the values taken from cfg.
//
// Launch never panics. It returns ok=false, after logging the reason, when
// the actor is disabled or could not be started.
func Launch(cfg config.Config, table *backend.Table, opts ...Option) (client *Client, notify <-chan identity.Msg, ok bool) {
	log := logging.L()
	defer func() {
		if r := recover(); r != nil {
			log.Error("gpuactor: launch panicked", "panic", fmt.Sprint(r))
			client, notify, ok = nil, nil, false
		}
	}()

	all := []Option{WithEnabled(cfg.Enabled)}
	if cfg.Name != "" {
		all = append(all, WithName(cfg.Name))
	}
	if cfg.InboxDepth != 0 {
		all = append(all, WithInboxDepth(cfg.InboxDepth))
	}
	if cfg.NotifyDepth != 0 {
		all = append(all, WithNotifyDepth(cfg.NotifyDepth))
	}
	all = append(all, opts...)

	a, err := New(table, all...)
	if err != nil {
		if errors.Is(err, ErrDisabled) {
			log.Info("gpuactor: actor disabled by configuration")
		} else {
			log.Error("gpuactor: create actor", "error", err)
		}
		return nil, nil, false
	}
	client, notify, err = a.Start()
	if err != nil {
		log.Error("gpuactor: start actor", "error", err)
		return nil, nil, false
	}
	return client, notify, true
}
