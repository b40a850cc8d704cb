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
	syncer "github.com/credsync/credsync/internal/sync"
)

func newRunCmd() *cobra.Command {
	var full, dryRun bool

	cmd := &cobra.Command{
		Use:   "run <entity>",
		Short: "Execute one sync run and exit",
		Long: `Execute a single synchronization run for one entity type, or "all" for
every entity type in dependency order (partners first).

The command exits non-zero when the run fails or another run for the same
entity type is already active. A failed run still prints its summary with
the partial counts.`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: append([]string{"all"}, entityNames()...),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd.OutOrStdout(), args[0], full, dryRun)
		},
	}

	cmd.Flags().BoolVar(&full, "full", false, "ignore the stored cursor and fetch the whole collection")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "fetch and diff without writing; the cursor does not move")
	return cmd
}

func entityNames() []string {
	entities := models.AllEntityTypes()
	names := make([]string, len(entities))
	for i, entity := range entities {
		names[i] = string(entity)
	}
	return names
}

func runOnce(out io.Writer, target string, full, dryRun bool) error {
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
	recorder := audit.NewRecorder(events)

	builder, err := rollup.New(&cfg.Rollup, db, recorder)
	if err != nil {
		return err
	}

	engine := syncer.NewEngine(cfg, db,
		syncer.NewLMSClient(&cfg.LMS),
		syncer.NewPRMClient(&cfg.PRM),
		recorder, builder)

	ctx, cancel := signalContext()
	defer cancel()

	opts := syncer.RunOptions{
		Mode:        models.ModeIncremental,
		DryRun:      dryRun,
		TriggeredBy: models.TriggerCLI,
	}
	if full {
		opts.Mode = models.ModeFull
	}

	if target == "all" {
		summaries, err := engine.RunAll(ctx, opts)
		for _, summary := range summaries {
			printSummary(out, summary)
		}
		return err
	}

	entity, err := models.ParseEntityType(target)
	if err != nil {
		return err
	}

	summary, err := engine.Run(ctx, entity, opts)
	if summary != nil {
		printSummary(out, summary)
	}
	return err
}

// printSummary writes one human-readable result line per run.
func printSummary(out io.Writer, s *models.RunSummary) {
	prefix := ""
	if s.DryRun {
		prefix = "[dry-run] "
	}

	fmt.Fprintf(out, "%s%s: %s (%s) in %s - processed %d, created %d, updated %d, failed %d, fk_skips %d, pages %d\n",
		prefix, s.EntityType, s.Status, s.Mode, s.Duration.Round(time.Millisecond),
		s.Processed, s.Created, s.Updated, s.Failed, s.FKSkips, s.Pages)

	if len(s.NotFound) > 0 {
		fmt.Fprintf(out, "  not found (%d): %v\n", len(s.NotFound), s.NotFound)
	}
	if s.ErrorDetail != "" {
		fmt.Fprintf(out, "  error: %s\n", s.ErrorDetail)
	}
}
