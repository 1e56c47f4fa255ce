// Package daemon runs a command actor behind a unix socket.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/gogpu/gpuactor"
	"github.com/gogpu/gpuactor/backend"
	"github.com/gogpu/gpuactor/backend/native"
	"github.com/gogpu/gpuactor/backend/software"
	"github.com/gogpu/gpuactor/config"
	"github.com/gogpu/gpuactor/id"
	"github.com/gogpu/gpuactor/identity"
	"github.com/gogpu/gpuactor/internal/logging"
	"github.com/gogpu/gpuactor/ipc"
)

// exitTimeout bounds the wait for the actor's Exit acknowledgment on
// shutdown.
const exitTimeout = 10 * time.Second

// Tag returns the identifier tag served by the named backend.
func Tag(name string) (id.Backend, bool) {
	switch name {
	case config.BackendSoftware:
		return id.Software, true
	case config.BackendNoop:
		return id.Empty, true
	case config.BackendVulkan:
		return id.Vulkan, true
	}
	return 0, false
}

// BuildTable registers the backends named in cfg, in order.
func BuildTable(cfg config.Config) (*backend.Table, error) {
	table, err := backend.NewTable()
	if err != nil {
		return nil, err
	}
	var nopts []native.Option
	if cfg.SubmitTimeout > 0 {
		nopts = append(nopts, native.WithSubmitTimeout(cfg.SubmitTimeout))
	}
	for _, name := range cfg.Backends {
		var b backend.Backend
		switch name {
		case config.BackendSoftware:
			b = software.New()
		case config.BackendNoop:
			b = native.New(id.Empty, nopts...)
		case config.BackendVulkan:
			b = native.New(id.Vulkan, nopts...)
		default:
			return nil, fmt.Errorf("%w: unknown backend %q", config.ErrInvalid, name)
		}
		if err := table.Register(b); err != nil {
			return nil, err
		}
	}
	return table, nil
}

// Run starts the actor configured by cfg, serves it on cfg.Socket and, if
// cfg.MetricsAddr is set, serves Prometheus metrics over HTTP. It returns
// when ctx is canceled or a client sends Exit. On cancellation the actor
// is stopped with Exit before Run returns.
func Run(ctx context.Context, cfg config.Config) error {
	log := logging.L()
	if !cfg.Enabled {
		log.Info("daemon: actor disabled by configuration")
		return nil
	}

	table, err := BuildTable(cfg)
	if err != nil {
		return err
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	client, notify, ok := gpuactor.Launch(cfg, table, gpuactor.WithMetrics(reg))
	if !ok {
		_ = table.Close()
		return errors.New("daemon: actor failed to start")
	}

	ln, err := listenUnix(cfg.Socket)
	if err != nil {
		stop(client)
		return err
	}
	defer os.Remove(cfg.Socket)
	log.Info("daemon: serving", "socket", cfg.Socket, "backends", cfg.Backends)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		return ipc.Serve(gctx, ln, client)
	})
	g.Go(func() error {
		consume(notify, client.Done())
		return nil
	})
	if cfg.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           metricsHandler(reg),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serve metrics: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			return srv.Shutdown(shutdownCtx)
		})
		log.Info("daemon: metrics", "addr", cfg.MetricsAddr)
	}
	g.Go(func() error {
		<-gctx.Done()
		stop(client)
		return nil
	})

	return g.Wait()
}

func metricsHandler(reg *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	return mux
}

// stop sends Exit unless the actor already terminated and waits for it.
func stop(client *gpuactor.Client) {
	select {
	case <-client.Done():
		return
	default:
	}
	ack := make(chan struct{}, 1)
	if err := client.Exit(ack); err != nil {
		if !errors.Is(err, gpuactor.ErrDisconnected) {
			logging.L().Warn("daemon: stop actor", "error", err)
		}
		return
	}
	select {
	case <-ack:
		logging.L().Info("daemon: actor stopped")
	case <-time.After(exitTimeout):
		logging.L().Error("daemon: actor did not acknowledge Exit", "timeout", exitTimeout)
	}
}

// consume drains the downstream notifications until Exit.
func consume(notify <-chan identity.Msg, done <-chan struct{}) {
	for {
		select {
		case m := <-notify:
			if m.Type == identity.MsgExit {
				return
			}
			logging.L().Debug("daemon: identity", "type", m.Type, "kind", m.Kind, "id", m.ID)
		case <-done:
			return
		}
	}
}

func listenUnix(socketPath string) (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(socketPath), 0o755); err != nil {
		return nil, fmt.Errorf("create socket directory: %w", err)
	}
	if err := os.Remove(socketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("remove stale socket: %w", err)
	}
	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("listen unix: %w", err)
	}
	if err := os.Chmod(socketPath, 0o660); err != nil {
		_ = ln.Close()
		return nil, fmt.Errorf("set socket permissions: %w", err)
	}
	return ln, nil
}
