// USA Band Track - Live Music Event Aggregation
// Copyright 2026 The USA Band Track Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Pradervand/USA-BAND-TRACK

package api

import (
	"context"
	"errors"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"

	"github.com/Pradervand/USA-BAND-TRACK/internal/logging"
	"github.com/Pradervand/USA-BAND-TRACK/internal/models"
	syncpkg "github.com/Pradervand/USA-BAND-TRACK/internal/sync"
)

// TriggerResponse is returned when a run is started in the background.
type TriggerResponse struct {
	Status  string          `json:"status"`
	Sources []models.Source `json:"sources"`
}

// TriggerSync starts a full run (every adapter, then the purge).
//
// By default the run continues in the background and the endpoint answers
// 202; completion is pushed over the websocket. With ?wait=true the request
// blocks and returns the RunReport.
func (h *Handler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	if waitRequested(r) {
		report, err := h.agg.RunAll(r.Context())
		if err != nil && report == nil {
			h.respondRunError(w, r, err)
			return
		}
		status := http.StatusOK
		if err != nil {
			// halted run: the partial report is still useful
			status = http.StatusInternalServerError
			logging.CtxErr(r.Context(), err).Str("run_id", report.RunID).Msg("Triggered run halted")
		}
		respondSuccess(w, status, report, models.Metadata{Count: report.TotalAdded})
		return
	}

	if h.agg.Running() {
		h.respondRunError(w, r, syncpkg.ErrRunInProgress)
		return
	}
	h.background(r, "all", func(ctx context.Context) error {
		_, err := h.agg.RunAll(ctx)
		return err
	})
	respondSuccess(w, http.StatusAccepted, TriggerResponse{Status: "started", Sources: h.agg.Sources()}, models.Metadata{})
}

// TriggerSource runs one adapter without purging. Same wait semantics as
// TriggerSync; the synchronous form returns the SourceResult.
func (h *Handler) TriggerSource(w http.ResponseWriter, r *http.Request) {
	src, err := models.ParseSource(chi.URLParam(r, "source"))
	if err != nil {
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, err.Error(), nil)
		return
	}

	if waitRequested(r) {
		res, err := h.agg.RunOne(r.Context(), src)
		if err != nil {
			h.respondRunError(w, r, err)
			return
		}
		status := http.StatusOK
		if res.Failed() {
			status = http.StatusBadGateway
		}
		respondSuccess(w, status, res, models.Metadata{Count: res.Added})
		return
	}

	if !slices.Contains(h.agg.Sources(), src) {
		h.respondRunError(w, r, syncpkg.ErrUnknownSource)
		return
	}
	if h.agg.Running() {
		h.respondRunError(w, r, syncpkg.ErrRunInProgress)
		return
	}
	h.background(r, src.Key(), func(ctx context.Context) error {
		_, err := h.agg.RunOne(ctx, src)
		return err
	})
	respondSuccess(w, http.StatusAccepted, TriggerResponse{Status: "started", Sources: []models.Source{src}}, models.Metadata{})
}

// Purge applies the retention window immediately.
func (h *Handler) Purge(w http.ResponseWriter, r *http.Request) {
	removed, err := h.agg.Purge(r.Context())
	if err != nil {
		h.respondRunError(w, r, err)
		return
	}
	h.events.Clear()
	if h.wsHub != nil {
		h.wsHub.BroadcastPurgeCompleted(removed)
	}
	respondSuccess(w, http.StatusOK, map[string]any{
		"purged": removed,
		"window": h.agg.Window(),
	}, models.Metadata{})
}

func (h *Handler) background(r *http.Request, what string, run func(ctx context.Context) error) {
	ctx := logging.ContextWithRequestID(h.runCtx, logging.RequestIDFromContext(r.Context()))
	h.runs.Add(1)
	go func() {
		defer h.runs.Done()
		err := run(ctx)
		switch {
		case errors.Is(err, syncpkg.ErrRunInProgress):
			logging.CtxInfo(ctx).Str("sources", what).Msg("Triggered run skipped, another run is active")
		case err != nil:
			logging.CtxErr(ctx, err).Str("sources", what).Msg("Triggered run failed")
		}
	}()
}

func (h *Handler) respondRunError(w http.ResponseWriter, r *http.Request, err error) {
	var cfgErr *syncpkg.ConfigError
	switch {
	case errors.Is(err, syncpkg.ErrRunInProgress):
		respondError(w, r, http.StatusConflict, ErrCodeConflict, "An aggregation run is already in progress", nil)
	case errors.Is(err, syncpkg.ErrUnknownSource):
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "Source is not enabled", nil)
	case errors.As(err, &cfgErr):
		respondError(w, r, http.StatusUnprocessableEntity, ErrCodeConfiguration, cfgErr.Error(), err)
	case errors.Is(err, syncpkg.ErrStorage):
		respondError(w, r, http.StatusInternalServerError, ErrCodeDatabaseError, "Event store failure", err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Run canceled", err)
	default:
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "Run failed", err)
	}
}

func waitRequested(r *http.Request) bool {
	switch r.URL.Query().Get("wait") {
	case "1", "true", "yes":
		return true
	}
	return false
}
