// USA Band Track - Live Music Event Aggregation
// Copyright 2026 The USA Band Track Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Pradervand/USA-BAND-TRACK

package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Pradervand/USA-BAND-TRACK/internal/logging"
	"github.com/Pradervand/USA-BAND-TRACK/internal/models"
	ws "github.com/Pradervand/USA-BAND-TRACK/internal/websocket"
)

// Health reports store connectivity and the last run. It answers 503 when
// the store cannot be reached.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	dbOK := h.store.Ping(ctx) == nil

	health := models.HealthStatus{
		Status:     "healthy",
		Version:    h.version,
		DatabaseOK: dbOK,
		Uptime:     time.Since(h.startTime).Seconds(),
	}
	if dbOK {
		if v, err := h.store.GetCurrentSchemaVersion(ctx); err == nil {
			health.SchemaVersion = v
		}
	}
	if last := h.agg.LastRun(); last != nil {
		finished := last.FinishedAt
		health.LastRun = &finished
	}
	if h.wsHub != nil {
		health.WebSocketClient = h.wsHub.ClientCount()
	}

	status := http.StatusOK
	if !dbOK {
		health.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	respondSuccess(w, status, health, models.Metadata{})
}

func (h *Handler) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		HandshakeTimeout: 10 * time.Second,
		CheckOrigin:      h.checkWebSocketOrigin,
	}
}

// checkWebSocketOrigin accepts origins listed in server.cors_origins. A
// missing Origin header is rejected unless "*" is configured.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	for _, allowed := range h.server.CORSOrigins {
		if allowed == "*" || (origin != "" && allowed == origin) {
			return true
		}
	}
	logging.Warn().Str("origin", sanitizeLogValue(origin)).Msg("WebSocket connection rejected: origin not allowed")
	return false
}

// WebSocket upgrades the connection and attaches it to the hub.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.wsHub == nil {
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "WebSocket service unavailable", nil)
		return
	}

	upgrader := h.upgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		logging.Debug().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	if !h.wsHub.Attach(ws.NewClient(h.wsHub, conn)) {
		_ = conn.Close()
	}
}
