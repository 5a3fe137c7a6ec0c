// USA Band Track - Live Music Event Aggregation
// Copyright 2026 The USA Band Track Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Pradervand/USA-BAND-TRACK

package sync

import (
	"context"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/Pradervand/USA-BAND-TRACK/internal/config"
	"github.com/Pradervand/USA-BAND-TRACK/internal/logging"
	"github.com/Pradervand/USA-BAND-TRACK/internal/metrics"
	"github.com/Pradervand/USA-BAND-TRACK/internal/models"
	"github.com/Pradervand/USA-BAND-TRACK/internal/validation"
)

// EventStore is the part of the store adapters write through.
type EventStore interface {
	EventExists(ctx context.Context, id string) (bool, error)
	InsertEventIfAbsent(ctx context.Context, e *models.Event) (bool, error)
}

// DBInterface is what the Manager needs from the store.
type DBInterface interface {
	EventStore
	PurgeOutsideWindow(ctx context.Context, w models.RetentionWindow) (int64, error)
}

// Adapter fetches one upstream source and persists new events.
type Adapter interface {
	// Name is the lower-case key used in logs, metrics and the CLI.
	Name() string
	Source() models.Source
	// Validate checks configuration without network I/O.
	Validate() error
	// FetchNew returns the number of events newly persisted. A returned
	// error is a *SourceError, a *ConfigError, wraps ErrSourceUnavailable or
	// ErrStorage, or is a context error.
	FetchNew(ctx context.Context, store EventStore) (int, error)
}

// Skip reasons recorded in metrics.
const (
	skipIrrelevant = "irrelevant"
	skipKnown      = "known"
	skipDuplicate  = "duplicate"
	skipInvalid    = "invalid"
	skipParse      = "parse"
	skipOutside    = "outside_window"
	skipRegion     = "outside_region"
)

// region is the set of configured state codes. Sources answer a state
// query with venues from neighbouring states, so every record is checked.
type region map[string]struct{}

func newRegion(states []string) region {
	r := make(region, len(states))
	for _, st := range states {
		if st = strings.ToUpper(strings.TrimSpace(st)); st != "" {
			r[st] = struct{}{}
		}
	}
	return r
}

func (r region) contains(state string) bool {
	_, ok := r[strings.ToUpper(strings.TrimSpace(state))]
	return ok
}

// windowFrom converts configured bounds to a RetentionWindow.
func windowFrom(cfg config.WindowConfig) models.RetentionWindow {
	return models.RetentionWindow{Start: cfg.Start, End: cfg.End}
}

func validateWindow(src models.Source, w models.RetentionWindow) error {
	if err := validation.ValidateStruct(w); err != nil {
		return &ConfigError{Source: src, Field: "window", Reason: err.Error()}
	}
	if w.Start > w.End {
		return &ConfigError{Source: src, Field: "window", Reason: "start is after end"}
	}
	return nil
}

// pageLimiter paces page requests. A zero delay disables pacing.
func pageLimiter(delay time.Duration) *rate.Limiter {
	if delay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(delay), 1)
}

// known reports whether id is already stored.
func known(ctx context.Context, store EventStore, id string) (bool, error) {
	exists, err := store.EventExists(ctx, id)
	if err != nil {
		return false, storageError("check event", err)
	}
	return exists, nil
}

// persist validates and stores e, reporting whether it was newly added.
// Invalid records and venues outside the region are skipped and counted,
// never returned as errors.
func persist(ctx context.Context, store EventStore, in region, e *models.Event) (bool, error) {
	src := e.Source.Key()
	if verr := validation.ValidateStruct(e); verr != nil {
		metrics.RecordEventSkipped(src, skipInvalid)
		logging.CtxWarn(ctx).Str("event_id", e.ID).Str("tag", verr.FirstTag()).Str("reason", verr.Error()).Msg("Skipping invalid event")
		return false, nil
	}
	if !in.contains(e.State) {
		metrics.RecordEventSkipped(src, skipRegion)
		logging.CtxDebug(ctx).Str("event_id", e.ID).Str("state", e.State).Msg("Skipping event outside region")
		return false, nil
	}

	added, err := store.InsertEventIfAbsent(ctx, e)
	if err != nil {
		return false, storageError("insert event", err)
	}
	if added {
		metrics.RecordEventAdded(src)
	} else {
		metrics.RecordEventSkipped(src, skipKnown)
	}
	return added, nil
}

func orDefault(s, def string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	return s
}
