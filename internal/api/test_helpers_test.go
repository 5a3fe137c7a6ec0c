// USA Band Track - Live Music Event Aggregation
// Copyright 2026 The USA Band Track Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Pradervand/USA-BAND-TRACK

package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/Pradervand/USA-BAND-TRACK/internal/config"
	"github.com/Pradervand/USA-BAND-TRACK/internal/database"
	"github.com/Pradervand/USA-BAND-TRACK/internal/logging"
	"github.com/Pradervand/USA-BAND-TRACK/internal/models"
	syncpkg "github.com/Pradervand/USA-BAND-TRACK/internal/sync"
	ws "github.com/Pradervand/USA-BAND-TRACK/internal/websocket"
)

//nolint:gochecknoinits // quiet logs for tests
func init() {
	logging.Init(logging.Config{Level: "disabled", Output: io.Discard})
}

const testOrigin = "http://localhost:5173"

// testDBSemaphore keeps one DuckDB instance alive at a time across tests.
var testDBSemaphore = make(chan struct{}, 1)

func testWindow() models.RetentionWindow {
	return models.RetentionWindow{Start: "2026-07-01", End: "2026-07-31"}
}

// stubAdapter stores a fixed list of events, or blocks until released.
type stubAdapter struct {
	src         models.Source
	events      []models.Event
	validateErr error
	block       chan struct{}
	started     chan struct{}
}

func (a *stubAdapter) Name() string          { return a.src.Key() }
func (a *stubAdapter) Source() models.Source { return a.src }
func (a *stubAdapter) Validate() error       { return a.validateErr }

func (a *stubAdapter) FetchNew(ctx context.Context, store syncpkg.EventStore) (int, error) {
	if a.started != nil {
		close(a.started)
	}
	if a.block != nil {
		select {
		case <-a.block:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	added := 0
	for i := range a.events {
		ok, err := store.InsertEventIfAbsent(ctx, &a.events[i])
		if err != nil {
			return added, err
		}
		if ok {
			added++
		}
	}
	return added, nil
}

func stubEvent(src models.Source, native, state, genre, date string) models.Event {
	return models.Event{
		ID:     models.EventID(src, native),
		Artist: "Band " + native,
		Genre:  genre,
		Venue:  "The Venue",
		City:   "Somewhere",
		State:  state,
		Date:   date,
		URL:    "https://example.com/" + native,
		Source: src,
	}
}

type testEnv struct {
	db      *database.DB
	manager *syncpkg.Manager
	handler *Handler
	hub     *ws.Hub
	router  http.Handler
}

func newTestEnv(t *testing.T, server config.ServerConfig, adapters ...syncpkg.Adapter) *testEnv {
	t.Helper()

	testDBSemaphore <- struct{}{}
	t.Cleanup(func() { <-testDBSemaphore })

	db, err := database.New(&config.DatabaseConfig{Path: ":memory:", MaxMemory: "256MB", Threads: 2})
	if err != nil {
		t.Fatalf("database.New: %v", err)
	}

	hub := ws.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = hub.RunWithContext(ctx) }()

	if server.CORSOrigins == nil {
		server.CORSOrigins = []string{testOrigin}
	}
	mgr := syncpkg.NewManagerWithAdapters(db, testWindow(), adapters...)
	h := NewHandler(db, mgr, hub, server, "test")
	mgr.SetOnSyncCompleted(h.OnRunCompleted)

	t.Cleanup(func() {
		h.WaitForRuns()
		h.Close()
		cancel()
		if err := db.Close(); err != nil {
			t.Logf("close: %v", err)
		}
	})

	return &testEnv{db: db, manager: mgr, handler: h, hub: hub, router: NewRouter(h).SetupChi()}
}

type apiBody struct {
	Status   string           `json:"status"`
	Data     json.RawMessage  `json:"data"`
	Metadata models.Metadata  `json:"metadata"`
	Error    *models.APIError `json:"error"`
}

func (e *testEnv) do(t *testing.T, method, target string) (*httptest.ResponseRecorder, apiBody) {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	req.RemoteAddr = "192.0.2.1:1234"
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	var body apiBody
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode %s %s: %v (%s)", method, target, err, rec.Body.String())
		}
	}
	return rec, body
}

func decodeData(t *testing.T, body apiBody, out any) {
	t.Helper()
	if err := json.Unmarshal(body.Data, out); err != nil {
		t.Fatalf("decode data: %v (%s)", err, body.Data)
	}
}

func checkStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d; body %s", rec.Code, want, rec.Body.String())
	}
}

func checkErrorCode(t *testing.T, body apiBody, want string) {
	t.Helper()
	if body.Error == nil {
		t.Fatalf("expected error code %s, got none", want)
	}
	if body.Error.Code != want {
		t.Errorf("error code = %s, want %s", body.Error.Code, want)
	}
}

func checkIntEqual(t *testing.T, field string, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("%s: expected %d, got %d", field, want, got)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
