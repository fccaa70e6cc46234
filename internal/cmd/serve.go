// internal/cmd/serve.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/avivl/editwarning/internal/config"
	"github.com/avivl/editwarning/internal/host"
	"github.com/avivl/editwarning/internal/notice"
	"github.com/avivl/editwarning/internal/observability"
	"github.com/avivl/editwarning/internal/server"
	"github.com/avivl/editwarning/internal/store"
	"github.com/avivl/editwarning/internal/sweeper"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the edit-lock HTTP service",
	Long: `Serve starts the HTTP API, the expired-lock sweeper and the configuration
watcher. It stops gracefully on SIGINT or SIGTERM.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	otelShutdown, err := observability.InitProvider(ctx, rt.cfg.Observability, rt.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	defer otelShutdown()

	otelMetrics, err := observability.NewMetricsClient(rt.cfg.Observability, rt.logger)
	if err != nil {
		return fmt.Errorf("failed to create metrics client: %w", err)
	}

	events := host.NewEvents(rt.coord, notice.Builder{Timeout: rt.coord.LockTimeout()}, rt.logger)
	srv, err := server.NewServer(rt.cfg.ServerAddress, events, rt.logger, otelMetrics)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	sw, err := sweeper.New(rt.coord, rt.cfg.Locks.SweepSchedule, rt.logger)
	if err != nil {
		return err
	}

	rt.loader.OnReload(func(next *config.GlobalConfig[store.StoreConfig]) {
		rt.logger.Info("configuration reloaded")
		if err := sw.Reschedule(next.Locks.SweepSchedule); err != nil {
			rt.logger.Errorf("keeping sweep schedule %q: %v", sw.Schedule(), err)
		}
		if next.Backend.Type != rt.cfg.Backend.Type || next.ServerAddress != rt.cfg.ServerAddress || next.Locks.Timeout != rt.cfg.Locks.Timeout {
			rt.logger.Warn("backend, server address and lock timeout changes take effect after a restart")
		}
	})

	rt.logger.Infof("starting editwarning service, backend %s", rt.cfg.Backend.Type)

	errs := make(chan error, 2)
	go func() { errs <- srv.Start(ctx) }()
	go func() { errs <- sw.Start(ctx) }()

	var runErr error
	running := 2
	select {
	case <-ctx.Done():
		rt.logger.Info("shutdown signal received")
	case runErr = <-errs:
		running--
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		rt.logger.Errorf("error stopping server: %v", err)
	}
	for ; running > 0; running-- {
		select {
		case <-errs:
		case <-shutdownCtx.Done():
			rt.logger.Warn("shutdown timed out")
			running = 0
		}
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	rt.logger.Info("shutdown complete")
	return nil
}
