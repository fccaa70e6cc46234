// internal/cmd/root.go
// Package cmd holds the editwarning-service command line.
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/avivl/editwarning/internal/config"
	"github.com/avivl/editwarning/internal/coordinator"
	"github.com/avivl/editwarning/internal/lockservice"
	"github.com/avivl/editwarning/internal/metrics"
	"github.com/avivl/editwarning/internal/observability"
	"github.com/avivl/editwarning/internal/store"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "editwarning-service",
	Short: "Edit-lock coordinator for wiki pages",
	Long: `editwarning-service tracks who is editing which page or section and
warns other editors before they run into an edit conflict.

The configuration is read from --config (a file or a directory holding
config.yaml) and can be overridden with EDITWARNING_* environment variables.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file or directory (defaults and environment only when empty)")
}

// runtime is what every subcommand needs: configuration, logger, store and coordinator.
type runtime struct {
	loader *config.ConfigLoader
	cfg    *config.GlobalConfig[store.StoreConfig]
	logger *observability.SLogger
	store  store.LockStore
	coord  *coordinator.Coordinator
}

func newRuntime(ctx context.Context) (*runtime, error) {
	loader, cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := observability.NewLogger(cfg.Logger.Level.GetZapLevel())
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	loader.SetLogger(logger)

	st, err := lockservice.NewStore(ctx, cfg.Backend.Type, cfg.Store, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s store: %w", cfg.Backend.Type, err)
	}

	coord := coordinator.New(st, logger,
		coordinator.WithLockTimeout(cfg.Locks.Timeout),
		coordinator.WithRecorder(metrics.Recorder{}),
	)

	return &runtime{
		loader: loader,
		cfg:    cfg,
		logger: logger,
		store:  st,
		coord:  coord,
	}, nil
}

func (r *runtime) Close() {
	r.store.Close()
	_ = r.loader.Close()
	_ = r.logger.Sync()
}
