package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/skip2/go-qrcode"
	"github.com/spf13/cobra"

	"github.com/satishydv/meshaid-mvp/internal/config"
	"github.com/satishydv/meshaid-mvp/internal/engine"
	"github.com/satishydv/meshaid-mvp/internal/logger"
	"github.com/satishydv/meshaid-mvp/internal/store"
	"github.com/satishydv/meshaid-mvp/internal/transport"
	"github.com/satishydv/meshaid-mvp/internal/tui"
	"github.com/satishydv/meshaid-mvp/internal/uplink"
	"github.com/satishydv/meshaid-mvp/internal/web"
)

const defaultWebPort = 8080

func newRootCmd(cfg *config.Config) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "meshaid",
		Short:         "MeshAid peer mesh for disaster communication",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := logger.Init(cfg.LogFile, cfg.LogLevel); err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			return nil
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "Log file path")
	pf.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	pf.StringVar(&cfg.Channel, "channel", cfg.Channel, "Mesh channel name")
	pf.StringVar(&cfg.Transport, "transport", cfg.Transport, "Transport: udp or relay")
	pf.IntVarP(&cfg.Port, "port", "p", cfg.Port, "First UDP port of the mesh range")
	pf.IntVar(&cfg.PortSpan, "port-span", cfg.PortSpan, "Number of UDP ports in the mesh range")
	pf.StringVar(&cfg.UDPBindHost, "bind", cfg.UDPBindHost, "UDP bind address")
	pf.StringSliceVar(&cfg.UDPTargets, "targets", cfg.UDPTargets, "Hosts that receive UDP posts")
	pf.StringVar(&cfg.RelayURL, "relay-url", cfg.RelayURL, "WebSocket relay URL")

	rootCmd.AddCommand(newStartCmd(cfg), newRelayCmd(cfg), newSendCmd(cfg), newKindsCmd(), newSimulateCmd(cfg))
	return rootCmd
}

func newStartCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Join the mesh and open the terminal and web interfaces",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runStart(ctx, *cfg)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&cfg.Nick, "nick", "n", cfg.Nick, "Nickname (blank keeps the stored one or picks a call sign)")
	f.IntVarP(&cfg.WebPort, "web-port", "w", cfg.WebPort, "Web interface port")
	f.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "Directory for local state")
	f.StringVar(&cfg.StoreBackend, "store", cfg.StoreBackend, "State backend: sqlite, badger, mysql, consul or memory")
	f.StringVar(&cfg.StoreDSN, "store-dsn", cfg.StoreDSN, "Backend location override (path, DSN or agent address)")
	f.DurationVar(&cfg.HeartbeatInterval, "heartbeat", cfg.HeartbeatInterval, "Heartbeat interval")
	f.DurationVar(&cfg.SweepInterval, "sweep", cfg.SweepInterval, "Liveness sweep interval")
	f.DurationVar(&cfg.LivenessTimeout, "timeout", cfg.LivenessTimeout, "Silence before a peer is offline")
	f.BoolVar(&cfg.MonotonicLastSeen, "monotonic", cfg.MonotonicLastSeen, "Ignore heartbeats older than the last one seen")
	f.BoolVar(&cfg.SeedDemo, "seed-demo", cfg.SeedDemo, "Seed demo messages when no history is stored")
	f.StringVar(&cfg.DiscordWebhook, "discord-webhook", cfg.DiscordWebhook, "Discord Webhook URL for Uplink Service")
	f.BoolVar(&cfg.Headless, "headless", cfg.Headless, "Run without the terminal UI")
	return cmd
}

func Execute(cfg *config.Config) {
	if err := newRootCmd(cfg).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runStart(ctx context.Context, cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Transport == config.TransportBus {
		return fmt.Errorf("%w: the bus transport only links peers inside one process, use simulate", config.ErrInvalid)
	}

	tr, boundPort, err := openTransport(ctx, cfg)
	if err != nil {
		return err
	}
	defer tr.Close()

	// Peers sharing a machine get their own state file and web port, offset
	// by the UDP port they won.
	if boundPort != 0 {
		offset := boundPort - cfg.Port
		cfg.Port = boundPort
		if offset != 0 && cfg.WebPort == defaultWebPort {
			cfg.WebPort += offset
			fmt.Printf("Auto-adjusting Web Port to %d (to match mesh port offset)\n", cfg.WebPort)
		}
	}
	if err := checkPort(cfg.WebPort); err != nil {
		return fmt.Errorf("web port %d is already in use", cfg.WebPort)
	}

	slog.Info("Starting MeshAid", "transport", cfg.Transport, "port", cfg.Port, "store", cfg.StoreBackend)
	kv, err := store.Open(cfg.StoreBackend, cfg.StoreLocation())
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", cfg.StoreBackend, err)
	}
	defer kv.Close()

	mesh := engine.New(tr, store.NewSnapshots(kv), meshOptions(cfg))

	if cfg.DiscordWebhook != "" {
		slog.Info("Initializing Uplink Service", "webhook", "REDACTED")
		upService := uplink.NewService(cfg.DiscordWebhook)
		upService.Start(ctx)
		mesh.SubscribeMessages(upService.Handle)
	}

	mesh.Init(ctx, cfg.Nick)
	defer mesh.Stop()

	webSrv := web.NewServer(mesh, cfg.WebPort)
	webErr := make(chan error, 1)
	go func() { webErr <- webSrv.Start(ctx) }()

	url := web.JoinURL(cfg.WebPort)
	qrASCII := ""
	if qr, err := qrcode.New(url, qrcode.Medium); err == nil {
		qrASCII = qr.ToString(false)
	}
	fmt.Println("\nSCAN TO JOIN MESH:")
	fmt.Println(qrASCII)
	fmt.Println("URL:", url)

	if cfg.Headless {
		slog.Info("Running in HEADLESS mode (No TUI)", "peerID", mesh.LocalPeerID(), "nick", mesh.Nickname())
		select {
		case <-ctx.Done():
			return nil
		case err := <-webErr:
			return err
		}
	}
	return tui.StartTUI(mesh, qrASCII)
}

// openTransport connects the configured transport. For UDP it also returns
// the port that was bound.
func openTransport(ctx context.Context, cfg config.Config) (transport.Transport, int, error) {
	switch cfg.Transport {
	case config.TransportUDP:
		tr, err := transport.ListenUDP(transport.UDPConfig{
			BindHost: cfg.UDPBindHost,
			BasePort: cfg.Port,
			PortSpan: cfg.PortSpan,
			Targets:  cfg.UDPTargets,
		})
		if err != nil {
			return nil, 0, err
		}
		port := 0
		if addr, ok := tr.LocalAddr().(*net.UDPAddr); ok {
			port = addr.Port
		}
		return tr, port, nil
	case config.TransportRelay:
		dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		tr, err := transport.DialRelay(dialCtx, cfg.RelayURL, cfg.Channel)
		if err != nil {
			return nil, 0, err
		}
		return tr, 0, nil
	}
	return nil, 0, fmt.Errorf("%w: transport %q", config.ErrInvalid, cfg.Transport)
}

func meshOptions(cfg config.Config) engine.Options {
	opts := engine.DefaultOptions()
	opts.HeartbeatInterval = cfg.HeartbeatInterval
	opts.SweepInterval = cfg.SweepInterval
	opts.LivenessTimeout = cfg.LivenessTimeout
	opts.MonotonicLastSeen = cfg.MonotonicLastSeen
	if cfg.SeedDemo {
		opts.Seed = store.DemoMessages(time.Now())
	}
	return opts
}

func checkPort(port int) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return err
	}
	return ln.Close()
}
