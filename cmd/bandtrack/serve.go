// USA Band Track - Live Music Event Aggregation
// Copyright 2026 The USA Band Track Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Pradervand/USA-BAND-TRACK

package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/Pradervand/USA-BAND-TRACK/internal/api"
	"github.com/Pradervand/USA-BAND-TRACK/internal/config"
	"github.com/Pradervand/USA-BAND-TRACK/internal/logging"
	"github.com/Pradervand/USA-BAND-TRACK/internal/supervisor"
	"github.com/Pradervand/USA-BAND-TRACK/internal/supervisor/services"
	ws "github.com/Pradervand/USA-BAND-TRACK/internal/websocket"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the read API and websocket feed, optionally running on a schedule",
		Long: `Serve starts the HTTP API (/api/v1/events, /stats, /health, /sync, /purge),
the websocket feed at /api/v1/ws and Prometheus metrics at /metrics.

With schedule.enabled (SCHEDULE_ENABLED=true) an aggregation run starts every
schedule.interval. Scheduled and API-triggered runs never overlap.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()
			return a.serve(ctx)
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfg := a.cfg
	logging.Info().
		Str("version", Version).
		Str("db_path", cfg.Database.Path).
		Str("window", cfg.Window.Start+".."+cfg.Window.End).
		Strs("states", cfg.Region.States).
		Msg("Starting bandtrack with supervisor tree")

	db, manager, err := a.openStore()
	if err != nil {
		return err
	}
	defer closeDB(db)
	logging.Info().Msg("Database initialized successfully")

	hub := ws.NewHub()
	handler := api.NewHandler(db, manager, hub, cfg.Server, Version)
	defer handler.Close()
	handler.SetRunContext(ctx)
	manager.SetOnSyncCompleted(handler.OnRunCompleted)

	router := api.NewRouter(handler)
	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router.SetupChi(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		IdleTimeout:       2 * time.Minute,
		// no WriteTimeout: ?wait=true runs last as long as the sources take
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		return err
	}
	tree.AddMessagingService(services.NewWebSocketHubService(hub))
	tree.AddAPIService(services.NewHTTPServerService(srv, cfg.Server.Addr(), cfg.Server.ShutdownTimeout))
	addSchedule(tree, manager, cfg.Schedule)

	logging.Info().Str("addr", cfg.Server.Addr()).Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	var treeErr error
	select {
	case <-ctx.Done():
		logging.Info().Msg("Shutdown signal received, waiting for supervisor to finish...")
		treeErr = <-errCh
	case treeErr = <-errCh:
	}
	if treeErr != nil && !errors.Is(treeErr, context.Canceled) {
		logging.Error().Err(treeErr).Msg("Supervisor tree error")
	}
	cancel()

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	// background runs hold the store; let them see the cancellation first
	handler.WaitForRuns()
	logging.Info().Msg("Application stopped gracefully")
	return nil
}

func addSchedule(tree *supervisor.SupervisorTree, runner services.Runner, sc config.ScheduleConfig) {
	if !sc.Enabled {
		logging.Info().Msg("Scheduled aggregation disabled (SCHEDULE_ENABLED=false)")
		return
	}
	tree.AddAggregationService(services.NewAggregationService(runner, sc.Interval, sc.RunOnStartup))
}
