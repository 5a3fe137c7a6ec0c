// USA Band Track - Live Music Event Aggregation
// Copyright 2026 The USA Band Track Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Pradervand/USA-BAND-TRACK

package sync

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/Pradervand/USA-BAND-TRACK/internal/config"
	"github.com/Pradervand/USA-BAND-TRACK/internal/database"
	"github.com/Pradervand/USA-BAND-TRACK/internal/models"
)

func setupTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.New(&config.DatabaseConfig{Path: ":memory:", MaxMemory: "256MB", Threads: 2})
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("close: %v", err)
		}
	})
	return db
}

// Full runs against DuckDB are idempotent and apply the retention purge.
func TestManager_RunAllAgainstDuckDB(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping DuckDB integration test in short mode")
	}

	srv, _ := tmServer(t, func(page int, _ *http.Request) models.TMSearchResponse {
		var events []models.TMEvent
		for i := 0; i < 10; i++ {
			events = append(events, tmEvent(fmt.Sprintf("d%d", i), fmt.Sprintf("Doom Metal Night %d", i)))
		}
		return tmPageOf(events, 100, 10, 1, page)
	})

	cfg := newTestConfig(srv.URL)
	cfg.Sources.SeatGeek.Enabled = false
	cfg.Sources.ConcertsMetal.Enabled = false

	db := setupTestDB(t)
	ctx := context.Background()
	stale := testEvent(models.SourceSeatGeek, "stale", "2026-08-02")
	_, err := db.InsertEventIfAbsent(ctx, stale)
	checkNoError(t, err)

	m := NewManager(db, cfg)

	report, err := m.RunAll(ctx)
	checkNoError(t, err)
	checkIntEqual(t, "first run added", report.TotalAdded, 10)
	checkInt64Equal(t, "purged", report.Purged, 1)

	report, err = m.RunAll(ctx)
	checkNoError(t, err)
	checkIntEqual(t, "second run added", report.TotalAdded, 0)
	checkInt64Equal(t, "second purge", report.Purged, 0)

	count, err := db.CountEvents(ctx)
	checkNoError(t, err)
	checkInt64Equal(t, "stored", count, 10)

	events, err := db.ListEvents(ctx, models.EventFilter{Genre: "metal", State: "CA"})
	checkNoError(t, err)
	checkIntEqual(t, "metal events", len(events), 10)
}
