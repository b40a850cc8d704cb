// Credsync - Partner Training Synchronization and Reconciliation
// Copyright 2026 The Credsync Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/credsync/credsync

package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/credsync/credsync/internal/audit"
	"github.com/credsync/credsync/internal/models"
	"github.com/credsync/credsync/internal/rollup"
)

func newRebuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild",
		Short: "Rebuild the partner rollup cache from synced data",
		Long: `Recompute every partner's training rollup (active and expired credits,
certification counts, certified users) from the synced tables inside a
single transaction. The previous cache stays readable until the rebuild
commits.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRebuild(cmd.OutOrStdout())
		},
	}
}

func runRebuild(out io.Writer) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer closeDatabase(db)

	events := audit.NewDuckDBStore(db.Conn())
	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = events.CreateTable(initCtx)
	initCancel()
	if err != nil {
		return err
	}

	builder, err := rollup.New(&cfg.Rollup, db, audit.NewRecorder(events))
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	started := time.Now()
	partners, err := builder.Rebuild(ctx, models.TriggerCLI)
	if err != nil {
		return fmt.Errorf("rollup rebuild failed: %w", err)
	}

	fmt.Fprintf(out, "rebuilt rollups for %d partners (%s attribution) in %s\n",
		partners, builder.Attribution(), time.Since(started).Round(time.Millisecond))
	return nil
}
