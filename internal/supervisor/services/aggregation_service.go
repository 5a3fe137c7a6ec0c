// USA Band Track - Live Music Event Aggregation
// Copyright 2026 The USA Band Track Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Pradervand/USA-BAND-TRACK

package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/thejerf/suture/v4"

	"github.com/Pradervand/USA-BAND-TRACK/internal/logging"
	"github.com/Pradervand/USA-BAND-TRACK/internal/models"
	syncpkg "github.com/Pradervand/USA-BAND-TRACK/internal/sync"
)

// Runner is satisfied by *sync.Manager.
type Runner interface {
	RunAll(ctx context.Context) (*models.RunReport, error)
}

// AggregationService runs RunAll on a fixed interval. Runs never overlap:
// a tick that arrives while a run is still going is skipped.
type AggregationService struct {
	runner       Runner
	interval     time.Duration
	runOnStartup bool
}

// NewAggregationService schedules runner every interval. With runOnStartup
// the first run starts as soon as the service does.
func NewAggregationService(runner Runner, interval time.Duration, runOnStartup bool) *AggregationService {
	return &AggregationService{runner: runner, interval: interval, runOnStartup: runOnStartup}
}

// Serve implements suture.Service.
func (a *AggregationService) Serve(ctx context.Context) error {
	if a.interval <= 0 {
		return fmt.Errorf("aggregation interval must be positive, got %s: %w", a.interval, suture.ErrDoNotRestart)
	}

	s, err := gocron.NewScheduler(
		gocron.WithLocation(time.UTC),
		gocron.WithLogger(logging.NewSlogLogger()),
	)
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}

	opts := []gocron.JobOption{
		gocron.WithName("aggregation-run"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	}
	if a.runOnStartup {
		opts = append(opts, gocron.WithStartAt(gocron.WithStartImmediately()))
	}

	job, err := s.NewJob(
		gocron.DurationJob(a.interval),
		gocron.NewTask(func() { a.run(ctx) }),
		opts...,
	)
	if err != nil {
		_ = s.Shutdown()
		return fmt.Errorf("schedule aggregation: %w", err)
	}

	s.Start()
	next, _ := job.NextRun()
	logging.Info().
		Dur("interval", a.interval).
		Bool("run_on_startup", a.runOnStartup).
		Time("next_run", next).
		Msg("Aggregation schedule started")

	<-ctx.Done()
	if err := s.Shutdown(); err != nil {
		logging.Warn().Err(err).Msg("Aggregation scheduler shutdown")
	}
	return ctx.Err()
}

func (a *AggregationService) run(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	report, err := a.runner.RunAll(ctx)
	switch {
	case errors.Is(err, syncpkg.ErrRunInProgress):
		logging.Info().Msg("Scheduled run skipped, a triggered run is active")
	case err != nil:
		logging.Error().Err(err).Msg("Scheduled run halted")
	default:
		logging.Info().
			Str("run_id", report.RunID).
			Str("outcome", report.Outcome()).
			Int("added", report.TotalAdded).
			Msg("Scheduled run finished")
	}
}

func (a *AggregationService) String() string {
	return "aggregation-scheduler"
}
