package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/gogpu/gpuactor/config"
	"github.com/gogpu/gpuactor/id"
	"github.com/gogpu/gpuactor/internal/daemon"
	"github.com/gogpu/gpuactor/ipc"
	"github.com/gogpu/gpuactor/protocol"
)

func probeCmd() *cobra.Command {
	var (
		socket   string
		backends []string
		timeout  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Request an adapter and a device from a running gpud",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			// Probe identifiers use the process id as their index so that
			// concurrent probes do not collide.
			index := uint32(os.Getpid())
			candidates := make([]id.ID, 0, len(backends))
			for _, name := range backends {
				tag, ok := daemon.Tag(name)
				if !ok {
					return fmt.Errorf("%w: unknown backend %q", config.ErrInvalid, name)
				}
				candidates = append(candidates, id.New(index, 1, tag))
			}

			r, err := ipc.Dial(ctx, socket)
			if err != nil {
				return err
			}
			defer r.Close()

			adapter, err := r.RequestAdapter(ctx, protocol.AdapterOptions{}, candidates)
			if err != nil {
				return fmt.Errorf("request adapter: %w", err)
			}
			device := id.New(index, 1, adapter.AdapterID.Backend)
			dev, err := r.RequestDevice(ctx, adapter.AdapterID, protocol.DefaultDeviceDescriptor(), device)
			if err != nil {
				return fmt.Errorf("request device: %w", err)
			}

			fmt.Printf("adapter  %s (%s)\n", adapter.AdapterID, adapter.Name)
			fmt.Printf("device   %s\n", dev.DeviceID)
			fmt.Printf("queue    %s\n", dev.QueueID)
			return nil
		},
	}
	cmd.Flags().StringVar(&socket, "socket", config.Default().Socket, "gpud unix socket path")
	cmd.Flags().StringSliceVar(&backends, "backend", []string{config.BackendSoftware}, "Candidate backends, in order")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "Overall timeout")
	return cmd
}
