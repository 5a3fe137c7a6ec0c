// USA Band Track - Live Music Event Aggregation
// Copyright 2026 The USA Band Track Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Pradervand/USA-BAND-TRACK

/*
manager.go - Aggregation Orchestrator

The Manager runs adapters and applies the retention policy.

Operations:
  - RunAll(): every adapter in fixed order, then one retention purge
  - RunOne(): a single adapter, no purge
  - Preview(): a single adapter against an in-memory overlay; nothing is stored
  - Purge(): the retention purge on demand

Failure Isolation:
  - source, configuration and panic failures are recorded in the report
    and the run continues with the next adapter
  - a storage failure halts the run; remaining adapters and the purge are
    skipped and the error is returned with the partial report

Thread Safety:
  - runMu: one run or purge at a time; a concurrent trigger gets ErrRunInProgress
  - mu: protects lastRun and the completion callback
*/

//nolint:staticcheck // File documentation, not package doc
package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Pradervand/USA-BAND-TRACK/internal/config"
	"github.com/Pradervand/USA-BAND-TRACK/internal/genre"
	"github.com/Pradervand/USA-BAND-TRACK/internal/logging"
	"github.com/Pradervand/USA-BAND-TRACK/internal/metrics"
	"github.com/Pradervand/USA-BAND-TRACK/internal/models"
)

// Manager orchestrates adapters against one store.
type Manager struct {
	db       DBInterface
	window   models.RetentionWindow
	adapters []Adapter

	runMu sync.Mutex

	mu              sync.RWMutex
	lastRun         *models.RunReport
	onSyncCompleted func(report *models.RunReport)
}

// NewManager registers the enabled sources in fixed order: Ticketmaster,
// SeatGeek, Concerts-Metal.
func NewManager(db DBInterface, cfg *config.Config) *Manager {
	classifier := genre.New()

	var adapters []Adapter
	if cfg.Sources.Ticketmaster.Enabled {
		adapters = append(adapters, NewTicketmasterAdapter(cfg, classifier))
	}
	if cfg.Sources.SeatGeek.Enabled {
		adapters = append(adapters, NewSeatGeekAdapter(cfg, classifier))
	}
	if cfg.Sources.ConcertsMetal.Enabled {
		adapters = append(adapters, NewConcertsMetalAdapter(cfg, classifier))
	}
	return NewManagerWithAdapters(db, windowFrom(cfg.Window), adapters...)
}

// NewManagerWithAdapters builds a Manager around explicit adapters, run in
// the order given.
func NewManagerWithAdapters(db DBInterface, window models.RetentionWindow, adapters ...Adapter) *Manager {
	return &Manager{db: db, window: window, adapters: adapters}
}

// SetOnSyncCompleted sets a callback invoked after every finished run,
// including halted ones.
func (m *Manager) SetOnSyncCompleted(fn func(report *models.RunReport)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onSyncCompleted = fn
}

// LastRun returns a copy of the most recent report, or nil.
func (m *Manager) LastRun() *models.RunReport {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.lastRun == nil {
		return nil
	}
	cp := *m.lastRun
	cp.Results = append([]models.SourceResult(nil), m.lastRun.Results...)
	return &cp
}

// Window returns the retention window.
func (m *Manager) Window() models.RetentionWindow {
	return m.window
}

// Sources lists registered sources in run order.
func (m *Manager) Sources() []models.Source {
	out := make([]models.Source, 0, len(m.adapters))
	for _, a := range m.adapters {
		out = append(out, a.Source())
	}
	return out
}

// Running reports whether a run or purge currently holds the run lock.
// The answer may be stale by the time the caller acts on it.
func (m *Manager) Running() bool {
	if m.runMu.TryLock() {
		m.runMu.Unlock()
		return false
	}
	return true
}

func (m *Manager) adapterFor(src models.Source) (Adapter, error) {
	for _, a := range m.adapters {
		if a.Source() == src {
			return a, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownSource, src)
}

// RunAll runs every adapter and then purges events outside the window.
// Adapter failures are reported, not returned. A storage failure stops the
// run and is returned together with the partial report.
func (m *Manager) RunAll(ctx context.Context) (*models.RunReport, error) {
	if !m.runMu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer m.runMu.Unlock()

	report, ctx := m.newReport(ctx)
	logging.CtxInfo(ctx).Str("run_id", report.RunID).Int("adapters", len(m.adapters)).Msg("Aggregation run started")

	for _, a := range m.adapters {
		res, err := m.runAdapter(ctx, a)
		report.AddResult(res)

		if err == nil {
			continue
		}
		if errors.Is(err, ErrStorage) || ctx.Err() != nil {
			report.Halted = true
			logging.CtxErr(ctx, err).Str("source", a.Name()).Msg("Aggregation run halted")
			m.finish(ctx, report)
			return report, err
		}
		logging.CtxWarn(ctx).Str("source", a.Name()).Str("class", res.ErrorClass).Err(err).Msg("Adapter failed, continuing")
	}

	purged, err := m.db.PurgeOutsideWindow(ctx, m.window)
	if err != nil {
		report.Halted = true
		err = storageError("purge", err)
		logging.CtxErr(ctx, err).Msg("Retention purge failed")
		m.finish(ctx, report)
		return report, err
	}
	report.Purged = purged
	report.PurgeRan = true

	m.finish(ctx, report)
	return report, nil
}

// RunOne runs a single adapter without purging. Configuration and storage
// errors are returned; other adapter failures are only recorded in the result.
func (m *Manager) RunOne(ctx context.Context, src models.Source) (*models.SourceResult, error) {
	a, err := m.adapterFor(src)
	if err != nil {
		return nil, err
	}
	if !m.runMu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer m.runMu.Unlock()

	report, ctx := m.newReport(ctx)
	res, err := m.runAdapter(ctx, a)
	report.AddResult(res)
	if errors.Is(err, ErrStorage) {
		report.Halted = true
	}
	m.finish(ctx, report)

	switch res.ErrorClass {
	case classConfig, classStorage, classCanceled:
		return &res, err
	default:
		return &res, nil
	}
}

// Preview runs one adapter against an in-memory overlay of the store and
// returns what it would add. Nothing is persisted.
func (m *Manager) Preview(ctx context.Context, src models.Source) ([]models.Event, error) {
	a, err := m.adapterFor(src)
	if err != nil {
		return nil, err
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}

	mem := NewMemoryStore()
	ctx = logging.ContextWithCorrelationID(ctx, logging.GenerateCorrelationID())
	if _, err := a.FetchNew(logging.ContextWithSource(ctx, a.Name()), &previewStore{base: m.db, mem: mem}); err != nil {
		return mem.Events(), err
	}
	return mem.Events(), nil
}

// Purge removes events outside the retention window.
func (m *Manager) Purge(ctx context.Context) (int64, error) {
	if !m.runMu.TryLock() {
		return 0, ErrRunInProgress
	}
	defer m.runMu.Unlock()

	removed, err := m.db.PurgeOutsideWindow(ctx, m.window)
	if err != nil {
		return 0, storageError("purge", err)
	}
	if removed > 0 {
		metrics.EventsPurged.Add(float64(removed))
	}
	logging.CtxInfo(ctx).Int64("removed", removed).Str("window", m.window.String()).Msg("Retention purge complete")
	return removed, nil
}

func (m *Manager) newReport(ctx context.Context) (*models.RunReport, context.Context) {
	runID := uuid.NewString()
	ctx = logging.ContextWithCorrelationID(ctx, runID[:8])
	return &models.RunReport{RunID: runID, StartedAt: time.Now().UTC()}, ctx
}

// runAdapter validates and runs a, converting panics into errors.
func (m *Manager) runAdapter(ctx context.Context, a Adapter) (res models.SourceResult, err error) {
	start := time.Now()
	res.Source = a.Source()
	ctx = logging.ContextWithSource(ctx, a.Name())

	panicked := false
	defer func() {
		if r := recover(); r != nil {
			panicked = true
			err = fmt.Errorf("%s adapter panicked: %v", a.Name(), r)
		}
		res.Duration = time.Since(start)
		if err != nil {
			res.Error = err.Error()
			res.ErrorClass = errorClass(err)
			if panicked {
				res.ErrorClass = classPanic
			}
		}
		metrics.RecordAdapterRun(a.Name(), res.Duration, res.ErrorClass)
		logging.CtxInfo(ctx).Int("added", res.Added).Dur("duration", res.Duration).Str("class", res.ErrorClass).Msg("Adapter finished")
	}()

	if err = a.Validate(); err != nil {
		return res, err
	}
	res.Added, err = a.FetchNew(ctx, m.db)
	return res, err
}

func (m *Manager) finish(ctx context.Context, report *models.RunReport) {
	report.FinishedAt = time.Now().UTC()
	metrics.RecordAggregationRun(report.Outcome(), report.Purged)

	logging.CtxInfo(ctx).
		Str("run_id", report.RunID).
		Int("added", report.TotalAdded).
		Int("committed", report.Committed).
		Int64("purged", report.Purged).
		Int("failures", len(report.Failures())).
		Str("outcome", report.Outcome()).
		Dur("duration", report.FinishedAt.Sub(report.StartedAt)).
		Msg("Aggregation run finished")

	m.mu.Lock()
	m.lastRun = report
	callback := m.onSyncCompleted
	m.mu.Unlock()

	if callback != nil {
		callback(report)
	}
}
