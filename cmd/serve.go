package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"daily-digest/internal/inbound"
	"daily-digest/internal/server"
	"daily-digest/worker"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduler and the HTTP endpoints",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		store, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		p, err := newPipeline(cfg, store)
		if err != nil {
			return err
		}
		srv := server.New(cfg.Server, p, inbound.New(store, cfg.Inbound), slog.Default())

		ws := []worker.Worker{&worker.HTTPServer{Server: srv, Addr: cfg.Server.Addr}}
		if !cfg.Scheduler.Disabled {
			ws = append(ws, &worker.Scheduler{Spec: cfg.Scheduler.Spec, Runner: p})
		} else {
			slog.Info("serve: in-process scheduler disabled, relying on /api/cron/digest")
		}

		// Signal handling for systemd
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			s := <-sigc
			slog.Info("serve: received signal, shutting down", "signal", s.String())
			cancel()
		}()

		slog.Info("serve: starting", "addr", cfg.Server.Addr, "storage", cfg.Storage.Driver)
		return worker.NewManager(ws...).Start(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
