// Package main is the entry point for the tagged todos server.
//
// MAIN PACKAGE IN GO:
// Every Go program starts execution in the main() function of the "main" package.
// The main package should be kept minimal. Its job is to:
// 1. Read configuration (config file, .env, environment)
// 2. Create dependencies (logger, store)
// 3. Start the application
//
// All actual logic lives in imported packages (internal/server, internal/handler, etc.).
//
// COMMANDS (cobra):
//
//	tagged-todos [--config config.yaml]           serve (default)
//	tagged-todos serve [--config config.yaml]     same, spelled out
//	tagged-todos migrate [--config config.yaml]   bring the store schema up to date and exit
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sakif/tagged-todos/internal/config"
	"github.com/sakif/tagged-todos/internal/logging"
	"github.com/sakif/tagged-todos/internal/server"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "tagged-todos",
		Short: "Tagged todo list API server",
		Long: "Serves a multi-user todo list API with tag and text search.\n" +
			"Configuration comes from the --config YAML file, a .env file and environment variables.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(configPath)
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the YAML config file (optional)")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(configPath)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Create or update the store schema and exit",
		Long:  "Opens the configured store, which runs SQLite migrations or creates MongoDB indexes, then exits.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return migrate(cmd.Context(), configPath)
		},
	})

	return root
}

// setup loads configuration and builds the logger. The returned cleanup
// closes the log file, if any.
func setup(configPath string) (*config.Config, *slog.Logger, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, err
	}

	logger, closer, err := logging.New(cfg.Log)
	if err != nil {
		return nil, nil, nil, err
	}
	slog.SetDefault(logger)

	return cfg, logger, func() { _ = closer.Close() }, nil
}

func serve(configPath string) error {
	cfg, logger, cleanup, err := setup(configPath)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		return err
	}

	// Connecting may involve a network round-trip (MongoDB); don't hang forever.
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	store, err := server.OpenStore(ctx, cfg.Storage)
	cancel()
	if err != nil {
		logger.Error("failed to open store",
			slog.String("driver", cfg.Storage.Driver),
			slog.String("error", err.Error()),
		)
		return err
	}

	srv, err := server.New(cfg, store, logger)
	if err != nil {
		store.Close()
		logger.Error("failed to create server", slog.String("error", err.Error()))
		return err
	}

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		return err
	}
	return nil
}

func migrate(ctx context.Context, configPath string) error {
	cfg, logger, cleanup, err := setup(configPath)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := cfg.ValidateStorage(); err != nil {
		return err
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	store, err := server.OpenStore(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("migrating %s store: %w", cfg.Storage.Driver, err)
	}
	if err := store.Close(); err != nil {
		return fmt.Errorf("closing store: %w", err)
	}

	logger.Info("store schema is up to date", slog.String("driver", cfg.Storage.Driver))
	return nil
}
