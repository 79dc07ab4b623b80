package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/satishydv/meshaid-mvp/internal/config"
	"github.com/satishydv/meshaid-mvp/internal/core"
	"github.com/satishydv/meshaid-mvp/internal/engine"
	"github.com/satishydv/meshaid-mvp/internal/protocol"
	"github.com/satishydv/meshaid-mvp/internal/store"
	"github.com/satishydv/meshaid-mvp/internal/transport"
)

type simulation struct {
	peers    int
	duration time.Duration
	dropOut  bool
}

func newSimulateCmd(cfg *config.Config) *cobra.Command {
	sim := simulation{peers: 4, duration: 3 * time.Second, dropOut: true}
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run several peers on an in-process bus and print what each one sees",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulation(cmd.Context(), cmd.OutOrStdout(), *cfg, sim)
		},
	}
	f := cmd.Flags()
	f.IntVar(&sim.peers, "peers", sim.peers, "Number of simulated peers")
	f.DurationVar(&sim.duration, "duration", sim.duration, "How long peers exchange heartbeats before the report")
	f.BoolVar(&sim.dropOut, "drop-out", sim.dropOut, "Stop the last peer and show it going offline")
	return cmd
}

// runSimulation links peers over a Bus with short timers. Every peer sends one
// message; when dropOut is set the last peer stops and the report waits for
// the others to mark it offline.
func runSimulation(ctx context.Context, out io.Writer, cfg config.Config, sim simulation) error {
	if sim.peers < 2 {
		return fmt.Errorf("%w: simulate needs at least 2 peers", config.ErrInvalid)
	}

	opts := engine.DefaultOptions()
	opts.HeartbeatInterval = 100 * time.Millisecond
	opts.SweepInterval = 100 * time.Millisecond
	opts.LivenessTimeout = 400 * time.Millisecond
	opts.MonotonicLastSeen = cfg.MonotonicLastSeen

	bus := transport.NewBus()
	meshes := make([]*engine.Mesh, sim.peers)
	for i := range meshes {
		ep := bus.Join(cfg.Channel)
		defer ep.Close()
		meshes[i] = engine.New(ep, store.NewSnapshots(store.NewMemoryStore()), opts)
		meshes[i].Init(ctx, core.RandomNickname(nil))
		defer meshes[i].Stop()
	}

	kinds := protocol.Kinds()
	for i, m := range meshes {
		k := kinds[i%len(kinds)]
		m.Send(k.Kind, fmt.Sprintf("%s report from %s", k.Label, m.Nickname()), nil, "")
	}

	if !sleepCtx(ctx, sim.duration) {
		return ctx.Err()
	}

	active := meshes
	if sim.dropOut {
		last := meshes[len(meshes)-1]
		last.Stop()
		fmt.Fprintf(out, "%s left the mesh\n", last.Nickname())
		active = meshes[:len(meshes)-1]
		if !sleepCtx(ctx, 3*opts.LivenessTimeout) {
			return ctx.Err()
		}
	}

	for _, m := range active {
		stats := m.Stats()
		fmt.Fprintf(out, "\n== %s (%s): %d/%d peers online, %d messages, %d SOS\n",
			m.Nickname(), m.LocalPeerID(), stats.PeersOnline, stats.PeersKnown, stats.Messages, stats.ActiveSOS)
		for _, p := range m.Peers() {
			fmt.Fprintf(out, "   peer %-20s %s\n", p.Nickname, p.Status)
		}
		for _, msg := range protocol.Canonical(m.History()) {
			fmt.Fprintf(out, "   [%s] %s: %s\n", msg.Type, msg.Sender, msg.Payload.Text)
		}
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
