// USA Band Track - Live Music Event Aggregation
// Copyright 2026 The USA Band Track Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Pradervand/USA-BAND-TRACK

package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/Pradervand/USA-BAND-TRACK/internal/config"
	"github.com/Pradervand/USA-BAND-TRACK/internal/models"
	ws "github.com/Pradervand/USA-BAND-TRACK/internal/websocket"
)

func TestRouterNotFound(t *testing.T) {
	env := newTestEnv(t, config.ServerConfig{})

	rec, body := env.do(t, http.MethodGet, "/api/v1/nope")
	checkStatus(t, rec, http.StatusNotFound)
	checkErrorCode(t, body, ErrCodeNotFound)
}

func TestRouterMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, config.ServerConfig{})
	env.do(t, http.MethodGet, "/api/v1/health")

	rec, _ := env.do(t, http.MethodGet, "/metrics")
	checkStatus(t, rec, http.StatusOK)
	if !strings.Contains(rec.Body.String(), "api_requests_total") {
		t.Error("expected api_requests_total in metrics output")
	}
}

func TestRouterTriggerRateLimit(t *testing.T) {
	env := newTestEnv(t, config.ServerConfig{SyncRateLimit: 2})

	for i := 0; i < 2; i++ {
		rec, _ := env.do(t, http.MethodPost, "/api/v1/purge")
		checkStatus(t, rec, http.StatusOK)
	}
	rec, body := env.do(t, http.MethodPost, "/api/v1/purge")
	checkStatus(t, rec, http.StatusTooManyRequests)
	checkErrorCode(t, body, ErrCodeTooManyRequests)

	// reads are limited separately
	rec, _ = env.do(t, http.MethodGet, "/api/v1/events")
	checkStatus(t, rec, http.StatusOK)
}

func TestRouterCORSPreflight(t *testing.T) {
	env := newTestEnv(t, config.ServerConfig{})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/sync", nil)
	req.Header.Set("Origin", testOrigin)
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != testOrigin {
		t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, testOrigin)
	}
}

func TestWebSocketReceivesSyncCompleted(t *testing.T) {
	env := newTestEnv(t, config.ServerConfig{}, &stubAdapter{
		src:    models.SourceTicketmaster,
		events: []models.Event{stubEvent(models.SourceTicketmaster, "1", "CA", "Metal", "2026-07-10")},
	})
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Origin": {testOrigin}})
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	waitFor(t, "client registration", func() bool { return env.hub.ClientCount() == 1 })

	res, err := http.Post(srv.URL+"/api/v1/sync?wait=true", "application/json", nil)
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("trigger status = %d", res.StatusCode)
	}

	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg struct {
		Type string               `json:"type"`
		Data ws.SyncCompletedData `json:"data"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.Type != ws.MessageTypeSyncCompleted {
		t.Fatalf("type = %q", msg.Type)
	}
	checkIntEqual(t, "added", msg.Data.Added, 1)
	if msg.Data.Outcome != "ok" {
		t.Errorf("outcome = %q", msg.Data.Outcome)
	}
}

func TestWebSocketRejectsForeignOrigin(t *testing.T) {
	env := newTestEnv(t, config.ServerConfig{})
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ws"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Origin": {"https://evil.example"}})
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if err == nil {
		t.Fatal("expected handshake to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403, got %v", resp)
	}
}
