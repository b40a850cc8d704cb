// Credsync - Partner Training Synchronization and Reconciliation
// Copyright 2026 The Credsync Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/credsync/credsync

// Package cli implements the credsync command tree: the long-running serve
// daemon plus one-shot operational commands (run, rebuild, status, version)
// that share the daemon's store and configuration.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/credsync/credsync/internal/config"
	"github.com/credsync/credsync/internal/database"
	"github.com/credsync/credsync/internal/logging"
)

// BuildInfo carries the metadata stamped into the binary at link time.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

var buildInfo = BuildInfo{Version: "dev", Commit: "none", Date: "unknown"}

// Execute runs the command tree and returns the first command error.
func Execute(info BuildInfo) error {
	buildInfo = info
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "credsync",
		Short: "Partner training synchronization and reconciliation",
		Long: `Credsync mirrors partners, users, groups, courses, enrollments and leads
from a learning management system and a partner CRM into a local DuckDB
store, reconciles identities across the two systems, and maintains
per-partner training rollups.

The serve command runs the full daemon: scheduled syncs, stale-run
recovery and the operational HTTP API. The remaining commands are
one-shot operations against the same store.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configPath != "" {
				// The loader already honors this variable; the flag is just a
				// more discoverable way to set it.
				if err := os.Setenv(config.ConfigPathEnvVar, configPath); err != nil {
					return fmt.Errorf("failed to set %s: %w", config.ConfigPathEnvVar, err)
				}
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "",
		"path to the YAML config file (equivalent to "+config.ConfigPathEnvVar+")")

	root.AddCommand(
		newServeCmd(),
		newRunCmd(),
		newRebuildCmd(),
		newStatusCmd(),
		newVersionCmd(),
	)
	return root
}

// loadConfig loads configuration and initializes the global logger from it.
// Every subcommand calls this first so log output respects LOG_LEVEL and
// LOG_FORMAT even for one-shot commands.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	return cfg, nil
}

// openDatabase opens the store, running schema setup and migrations.
func openDatabase(cfg *config.Config) (*database.DB, error) {
	db, err := database.New(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return db, nil
}

func closeDatabase(db *database.DB) {
	if err := db.Close(); err != nil {
		logging.Error().Err(err).Msg("Error closing database")
	}
}

// signalContext returns a context canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	return ctx, cancel
}
