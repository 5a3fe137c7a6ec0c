// USA Band Track - Live Music Event Aggregation
// Copyright 2026 The USA Band Track Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Pradervand/USA-BAND-TRACK

package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/Pradervand/USA-BAND-TRACK/internal/cache"
	"github.com/Pradervand/USA-BAND-TRACK/internal/models"
	"github.com/Pradervand/USA-BAND-TRACK/internal/validation"
)

// Events lists stored events ordered by date.
//
// Query parameters (all optional):
//   - state:  two-letter code, case-insensitive
//   - source: ticketmaster, seatgeek, concertsmetal (or display name)
//   - genre:  case-insensitive substring of the genre label
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	q := r.URL.Query()

	filter := models.EventFilter{
		State: strings.ToUpper(strings.TrimSpace(q.Get("state"))),
		Genre: strings.TrimSpace(q.Get("genre")),
	}
	if raw := q.Get("source"); raw != "" {
		src, err := models.ParseSource(raw)
		if err != nil {
			respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, err.Error(), nil)
			return
		}
		filter.Source = src
	}
	if verr := validation.ValidateStruct(&filter); verr != nil {
		respondValidationError(w, verr)
		return
	}

	key := cache.GenerateKey("events", filter)
	if events, ok := h.events.Get(key); ok {
		respondSuccess(w, http.StatusOK, events, models.Metadata{
			Count:       len(events),
			Cached:      true,
			QueryTimeMS: time.Since(start).Milliseconds(),
		})
		return
	}

	events, err := h.store.ListEvents(r.Context(), filter)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, ErrCodeDatabaseError, "Failed to list events", err)
		return
	}
	if events == nil {
		events = []models.Event{}
	}
	h.events.Set(key, events)

	respondSuccess(w, http.StatusOK, events, models.Metadata{
		Count:       len(events),
		QueryTimeMS: time.Since(start).Milliseconds(),
	})
}

// Stats reports store totals per source, the retention window and the
// last run.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	total, err := h.store.CountEvents(ctx)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, ErrCodeDatabaseError, "Failed to count events", err)
		return
	}
	bySource, err := h.store.CountBySource(ctx)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, ErrCodeDatabaseError, "Failed to count events", err)
		return
	}

	respondSuccess(w, http.StatusOK, models.StoreStats{
		Total:    total,
		BySource: bySource,
		Window:   h.agg.Window(),
		LastRun:  h.agg.LastRun(),
	}, models.Metadata{QueryTimeMS: time.Since(start).Milliseconds()})
}
