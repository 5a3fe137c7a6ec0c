// USA Band Track - Live Music Event Aggregation
// Copyright 2026 The USA Band Track Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Pradervand/USA-BAND-TRACK

// Package api serves the read API and run triggers over HTTP.
//
// The API never writes events itself. Reads go through the store; writes
// happen only inside aggregation runs started through the Aggregator.
package api

import (
	"context"
	stdsync "sync"
	"time"

	"github.com/Pradervand/USA-BAND-TRACK/internal/cache"
	"github.com/Pradervand/USA-BAND-TRACK/internal/config"
	"github.com/Pradervand/USA-BAND-TRACK/internal/models"
	ws "github.com/Pradervand/USA-BAND-TRACK/internal/websocket"
)

// EventStore is the read side of the store.
type EventStore interface {
	ListEvents(ctx context.Context, filter models.EventFilter) ([]models.Event, error)
	CountEvents(ctx context.Context) (int64, error)
	CountBySource(ctx context.Context) (map[string]int64, error)
	GetCurrentSchemaVersion(ctx context.Context) (int, error)
	Ping(ctx context.Context) error
}

// Aggregator starts runs. *sync.Manager satisfies it.
type Aggregator interface {
	RunAll(ctx context.Context) (*models.RunReport, error)
	RunOne(ctx context.Context, src models.Source) (*models.SourceResult, error)
	Purge(ctx context.Context) (int64, error)
	LastRun() *models.RunReport
	Window() models.RetentionWindow
	Sources() []models.Source
	Running() bool
}

// Handler holds the dependencies shared by every endpoint.
type Handler struct {
	store     EventStore
	agg       Aggregator
	wsHub     *ws.Hub
	server    config.ServerConfig
	version   string
	startTime time.Time
	events    *cache.Cache[[]models.Event]

	// background runs started by trigger endpoints
	runCtx context.Context
	runs   stdsync.WaitGroup
}

// NewHandler wires a handler. wsHub may be nil, in which case the
// websocket endpoint answers 503.
func NewHandler(store EventStore, agg Aggregator, wsHub *ws.Hub, server config.ServerConfig, version string) *Handler {
	if version == "" {
		version = "dev"
	}
	return &Handler{
		store:     store,
		agg:       agg,
		wsHub:     wsHub,
		server:    server,
		version:   version,
		startTime: time.Now(),
		events:    cache.New[[]models.Event](server.CacheTTL),
		runCtx:    context.Background(),
	}
}

// SetRunContext bounds runs started by trigger endpoints. Cancel it on
// shutdown to abort an in-flight run.
func (h *Handler) SetRunContext(ctx context.Context) {
	h.runCtx = ctx
}

// WaitForRuns blocks until background runs started by this handler return.
func (h *Handler) WaitForRuns() {
	h.runs.Wait()
}

// OnRunCompleted clears cached listings and notifies websocket clients.
// Register it as the manager's completion callback.
func (h *Handler) OnRunCompleted(report *models.RunReport) {
	h.events.Clear()
	if h.wsHub != nil {
		h.wsHub.BroadcastSyncCompleted(report)
	}
}

// Close stops the cache sweeper.
func (h *Handler) Close() {
	h.events.Close()
}
