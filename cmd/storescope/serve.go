package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/StoreScope/internal/api"
	"github.com/IshaanNene/StoreScope/internal/config"
	"github.com/IshaanNene/StoreScope/pkg/storescope"
)

var (
	servePort int
	maxJobs   int
)

// serveCmd creates the "serve" subcommand.
func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP job API",
		Long: `Serve the analysis pipeline over HTTP.

Endpoints:
  GET  /api/v1/health
  POST /api/v1/analyze     {"url": "...", "sections": {...}, "providers": [...]}
  GET  /api/v1/jobs
  GET  /api/v1/jobs/{id}
  GET  /api/v1/stats
  GET  /metrics`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}

	cmd.Flags().IntVar(&servePort, "port", 0, "listen port (default: server.port)")
	cmd.Flags().IntVar(&maxJobs, "max-jobs", 0, "maximum concurrent analyses (default: server.max_concurrent_jobs)")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(func(cfg *config.Config) {
		if servePort > 0 {
			cfg.Server.Port = servePort
		}
		if maxJobs > 0 {
			cfg.Server.MaxConcurrentJobs = maxJobs
		}
	})
	if err != nil {
		return err
	}
	logger := setupLogger(&cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := storescope.New(ctx, storescope.WithConfig(cfg), storescope.WithLogger(logger))
	if err != nil {
		return err
	}
	defer p.Close()

	srv := api.NewServer(&cfg.Server, p, p.Metrics(), logger)
	srv.SetVersion(config.Version)
	if err := srv.Start(); err != nil {
		return fmt.Errorf("start API server: %w", err)
	}
	fmt.Printf("🚀 StoreScope API listening on :%d\n", cfg.Server.Port)

	<-ctx.Done()
	logger.Info("received signal, shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
