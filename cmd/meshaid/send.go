package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/satishydv/meshaid-mvp/internal/config"
	"github.com/satishydv/meshaid-mvp/internal/engine"
	"github.com/satishydv/meshaid-mvp/internal/protocol"
	"github.com/satishydv/meshaid-mvp/internal/store"
)

type sendFlags struct {
	kind   string
	at     string
	lat    float64
	lng    float64
	wait   time.Duration
	linger time.Duration
}

func newSendCmd(cfg *config.Config) *cobra.Command {
	var sf sendFlags
	cmd := &cobra.Command{
		Use:   "send [text]",
		Short: "Join the mesh briefly and broadcast one message",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSend(cmd.Context(), *cfg, sf, strings.Join(args, " "))
		},
	}

	f := cmd.Flags()
	f.StringVarP(&cfg.Nick, "nick", "n", cfg.Nick, "Nickname")
	f.StringVarP(&sf.kind, "type", "t", string(protocol.KindInfo), "Message type (SOS, MEDICAL, RESOURCE, ALERT, INFO)")
	f.StringVar(&sf.at, "at", "", "Manual location description")
	f.Float64Var(&sf.lat, "lat", 0, "Latitude")
	f.Float64Var(&sf.lng, "lng", 0, "Longitude")
	f.DurationVar(&sf.wait, "wait", 6*time.Second, "How long to wait for a peer before sending")
	f.DurationVar(&sf.linger, "linger", time.Second, "How long to stay joined after sending")
	return cmd
}

func runSend(ctx context.Context, cfg config.Config, sf sendFlags, text string) error {
	kind, err := protocol.ParseKind(sf.kind)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	tr, _, err := openTransport(ctx, cfg)
	if err != nil {
		return err
	}
	defer tr.Close()

	opts := meshOptions(cfg)
	opts.Seed = nil
	mesh := engine.New(tr, store.NewSnapshots(store.NewMemoryStore()), opts)
	mesh.Init(ctx, cfg.Nick)
	defer mesh.Stop()

	if !waitForPeer(ctx, mesh, sf.wait) {
		fmt.Println("No peers seen yet, sending anyway")
	}

	var loc *protocol.Location
	if sf.lat != 0 || sf.lng != 0 {
		loc = &protocol.Location{Lat: sf.lat, Lng: sf.lng}
	}
	msg, ok := mesh.Send(kind, text, loc, sf.at)
	if !ok {
		return fmt.Errorf("%w: message text is empty", config.ErrInvalid)
	}
	fmt.Printf("Sent %s %s as %s\n", msg.Type, msg.ID, mesh.Nickname())

	select {
	case <-ctx.Done():
	case <-time.After(sf.linger):
	}
	return nil
}

// waitForPeer polls until some peer is online or d elapses.
func waitForPeer(ctx context.Context, mesh *engine.Mesh, d time.Duration) bool {
	deadline := time.NewTimer(d)
	defer deadline.Stop()
	poll := time.NewTicker(200 * time.Millisecond)
	defer poll.Stop()
	for {
		if mesh.Stats().PeersOnline > 0 {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			return false
		case <-poll.C:
		}
	}
}
