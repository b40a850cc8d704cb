// Credsync - Partner Training Synchronization and Reconciliation
// Copyright 2026 The Credsync Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/credsync/credsync

package cli

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/credsync/credsync/internal/api"
	"github.com/credsync/credsync/internal/audit"
	"github.com/credsync/credsync/internal/logging"
	"github.com/credsync/credsync/internal/metrics"
	"github.com/credsync/credsync/internal/rollup"
	"github.com/credsync/credsync/internal/scheduler"
	"github.com/credsync/credsync/internal/supervisor"
	syncer "github.com/credsync/credsync/internal/sync"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the sync daemon: scheduler, recovery sweep and ops API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	metrics.SetBuildInfo(buildInfo.Version, buildInfo.Commit)
	logging.Info().
		Str("version", buildInfo.Version).
		Str("commit", buildInfo.Commit).
		Str("db_path", cfg.Database.Path).
		Bool("scheduler", cfg.Scheduler.Enabled).
		Bool("server", cfg.Server.Enabled).
		Msg("Starting credsync")

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

	if cfg.Rollup.RebuildOnStart {
		// Not fatal: the cache is rebuilt again after the next
		// enrollment or course-property sync.
		if _, err := builder.Rebuild(ctx, audit.ActorSystem); err != nil {
			logging.Error().Err(err).Msg("Startup rollup rebuild failed")
		}
	}

	treeCfg := supervisor.DefaultTreeConfig()
	tree, err := supervisor.NewTree(logging.NewSlogLogger(), treeCfg)
	if err != nil {
		return err
	}

	if cfg.Scheduler.Enabled {
		tree.AddWorker(scheduler.New(&cfg.Scheduler, db, engine, recorder))
	} else {
		logging.Info().Msg("Scheduler disabled (SCHEDULER_ENABLED=false); syncs run only when triggered")
	}
	// The sweeper runs even without the scheduler: CLI and API triggered runs
	// can orphan too.
	tree.AddWorker(scheduler.NewSweeper(&cfg.Scheduler, db, events, recorder))

	if cfg.Server.Enabled {
		handler := api.NewHandler(db, engine, builder, events, buildInfo.Version)
		srv := api.NewServer(&cfg.Server, handler)
		tree.AddAPIService(supervisor.NewHTTPService(srv, treeCfg.ShutdownTimeout))
		logging.Info().Str("addr", srv.Addr).Msg("Ops API enabled")
	} else {
		logging.Info().Msg("Ops API disabled (SERVER_ENABLED=false)")
	}

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Waiting for services to stop")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Credsync stopped")
	return nil
}
