package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/satishydv/meshaid-mvp/internal/config"
	"github.com/satishydv/meshaid-mvp/internal/transport"
)

func newRelayCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Run a WebSocket relay that links peers across networks",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runRelay(ctx, cfg.RelayListen)
		},
	}
	cmd.Flags().StringVar(&cfg.RelayListen, "listen", cfg.RelayListen, "Address the relay listens on")
	return cmd
}

func runRelay(ctx context.Context, addr string) error {
	hub := transport.NewHub()
	mux := http.NewServeMux()
	mux.Handle("/ws", hub)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "ok %d\n", hub.Count())
	})

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		hub.CloseAll()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("Relay listening", "addr", addr)
	fmt.Printf("Relay listening on %s (ws path /ws)\n", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
