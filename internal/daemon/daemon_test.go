package daemon

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gogpu/gpuactor/config"
	"github.com/gogpu/gpuactor/id"
	"github.com/gogpu/gpuactor/ipc"
	"github.com/gogpu/gpuactor/protocol"
)

func TestBuildTable(t *testing.T) {
	cfg := config.Default()
	cfg.Backends = []string{config.BackendNoop, config.BackendSoftware}
	table, err := BuildTable(cfg)
	if err != nil {
		t.Fatalf("BuildTable() error = %v", err)
	}
	defer table.Close()
	tags := table.Tags()
	if len(tags) != 2 || tags[0] != id.Empty || tags[1] != id.Software {
		t.Errorf("Tags() = %v, want [empty software]", tags)
	}

	cfg.Backends = []string{"metal"}
	if _, err := BuildTable(cfg); !errors.Is(err, config.ErrInvalid) {
		t.Errorf("BuildTable(metal) error = %v, want ErrInvalid", err)
	}
}

func TestTag(t *testing.T) {
	for name, want := range map[string]id.Backend{
		config.BackendSoftware: id.Software,
		config.BackendNoop:     id.Empty,
		config.BackendVulkan:   id.Vulkan,
	} {
		if got, ok := Tag(name); !ok || got != want {
			t.Errorf("Tag(%q) = %v, %v, want %v", name, got, ok, want)
		}
	}
	if _, ok := Tag("dx12"); ok {
		t.Error("Tag(dx12) ok = true")
	}
}

func TestRunDisabled(t *testing.T) {
	cfg := config.Default()
	cfg.Enabled = false
	if err := Run(context.Background(), cfg); err != nil {
		t.Errorf("Run(disabled) error = %v", err)
	}
}

func TestRunServesUntilCanceled(t *testing.T) {
	cfg := config.Default()
	cfg.Socket = filepath.Join(t.TempDir(), "gpud.sock")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errc := make(chan error, 1)
	go func() { errc <- Run(ctx, cfg) }()

	var r *ipc.Remote
	deadline := time.Now().Add(5 * time.Second)
	for {
		var err error
		dctx, dcancel := context.WithTimeout(ctx, time.Second)
		r, err = ipc.Dial(dctx, cfg.Socket)
		dcancel()
		if err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("Dial() error = %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}
	defer r.Close()

	rctx, rcancel := context.WithTimeout(ctx, 5*time.Second)
	defer rcancel()
	adapter, err := r.RequestAdapter(rctx, protocol.AdapterOptions{}, []id.ID{id.New(1, 1, id.Software)})
	if err != nil {
		t.Fatalf("RequestAdapter() error = %v", err)
	}
	if adapter.AdapterID.Backend != id.Software {
		t.Errorf("adapter = %v, want a software adapter", adapter.AdapterID)
	}

	cancel()
	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if _, err := os.Stat(cfg.Socket); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("socket left behind: %v", err)
	}
}
