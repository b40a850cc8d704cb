// Credsync - Partner Training Synchronization and Reconciliation
// Copyright 2026 The Credsync Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/credsync/credsync

package cli

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/credsync/credsync/internal/models"
)

func newStatusCmd() *cobra.Command {
	var recent int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show store contents, schedules and recent runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.OutOrStdout(), recent)
		},
	}

	cmd.Flags().IntVar(&recent, "recent", 10, "number of recent runs to show")
	return cmd
}

func runStatus(out io.Writer, recent int) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer closeDatabase(db)

	ctx, cancel := signalContext()
	defer cancel()

	schemaVersion, err := db.GetCurrentSchemaVersion()
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	fmt.Fprintf(out, "database: %s (schema v%d)\n\n", db.Path(), schemaVersion)

	counts, err := db.TableCounts(ctx)
	if err != nil {
		return fmt.Errorf("failed to count tables: %w", err)
	}
	tables := make([]string, 0, len(counts))
	for table := range counts {
		tables = append(tables, table)
	}
	sort.Strings(tables)

	fmt.Fprintln(out, "tables:")
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, table := range tables {
		fmt.Fprintf(tw, "  %s\t%d\n", table, counts[table])
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	schedules, err := db.ListSchedules(ctx)
	if err != nil {
		return fmt.Errorf("failed to list schedules: %w", err)
	}

	fmt.Fprintln(out, "\nschedules:")
	tw = tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  ENTITY\tENABLED\tINTERVAL\tMODE\tLAST STATUS\tLAST RUN\tNEXT RUN\tCURSOR")
	for _, sched := range schedules {
		fmt.Fprintf(tw, "  %s\t%t\t%s\t%s\t%s\t%s\t%s\t%s\n",
			sched.EntityType, sched.Enabled, sched.IntervalDuration(), sched.Mode,
			orDash(string(sched.LastStatus)), timeOrDash(sched.LastRunAt),
			timeOrDash(sched.NextRunAt), timeOrDash(sched.Cursor))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	runs, err := db.ListRuns(ctx, models.RunFilter{Limit: recent})
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	fmt.Fprintf(out, "\nrecent runs (%d):\n", len(runs))
	tw = tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  STARTED\tENTITY\tMODE\tSTATUS\tPROCESSED\tFAILED\tTRIGGER\tRUN ID")
	for _, run := range runs {
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			run.StartedAt.UTC().Format(time.RFC3339), run.EntityType, run.Mode,
			run.Status, run.Processed, run.Failed, run.TriggeredBy, run.ID)
	}
	return tw.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func timeOrDash(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
