// USA Band Track - Live Music Event Aggregation
// Copyright 2026 The USA Band Track Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Pradervand/USA-BAND-TRACK

package database

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Pradervand/USA-BAND-TRACK/internal/config"
)

// testDBSemaphore keeps one DuckDB instance alive at a time across tests.
var testDBSemaphore = make(chan struct{}, 1)

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	testDBSemaphore <- struct{}{}
	t.Cleanup(func() {
		<-testDBSemaphore
	})

	db, err := New(&config.DatabaseConfig{Path: ":memory:", MaxMemory: "256MB", Threads: 2})
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

func TestNew_CreatesSchema(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	checkNoError(t, db.Ping(ctx))

	version, err := db.GetCurrentSchemaVersion(ctx)
	checkNoError(t, err)
	if version != len(migrations()) {
		t.Errorf("schema version = %d, want %d", version, len(migrations()))
	}

	for _, col := range []string{"id", "genre", "image", "inserted_at"} {
		ok, err := db.columnExists(ctx, "events", col)
		checkNoError(t, err)
		checkBool(t, "column "+col, ok, true)
	}

	history, err := db.GetMigrationHistory(ctx)
	checkNoError(t, err)
	checkLen(t, "migration history", len(history), 2)
	checkStringEqual(t, "first migration", history[0].Name, "add_genre")
}

func TestNew_FileReopenIsIdempotent(t *testing.T) {
	testDBSemaphore <- struct{}{}
	defer func() { <-testDBSemaphore }()

	path := filepath.Join(t.TempDir(), "nested", "events.duckdb")
	cfg := &config.DatabaseConfig{Path: path, MaxMemory: "256MB", Threads: 1}

	db, err := New(cfg)
	checkNoError(t, err)
	added, err := db.InsertEventIfAbsent(context.Background(), sampleEvent("tm_keep", "2026-07-10"))
	checkNoError(t, err)
	checkBool(t, "added", added, true)
	checkNoError(t, db.Close())

	db, err = New(cfg)
	checkNoError(t, err)
	defer db.Close()

	n, err := db.CountEvents(context.Background())
	checkNoError(t, err)
	checkInt64Equal(t, "events after reopen", n, 1)
}

// An events table written before genre and image existed must open, gain
// the columns, and keep its rows.
func TestNew_MigratesOldSchema(t *testing.T) {
	testDBSemaphore <- struct{}{}
	defer func() { <-testDBSemaphore }()

	path := filepath.Join(t.TempDir(), "old.duckdb")

	raw, err := sql.Open("duckdb", path)
	checkNoError(t, err)
	_, err = raw.Exec(`CREATE TABLE events (
		id TEXT PRIMARY KEY, artist TEXT, venue TEXT, city TEXT, state TEXT,
		date DATE NOT NULL, url TEXT, source TEXT,
		inserted_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP)`)
	checkNoError(t, err)
	_, err = raw.Exec(`INSERT INTO events (id, artist, venue, city, state, date, url, source)
		VALUES ('tm_legacy', 'Old Band', 'Old Hall', 'Denver', 'CO', DATE '2026-07-04', 'https://x.test/1', 'Ticketmaster')`)
	checkNoError(t, err)
	checkNoError(t, raw.Close())

	db, err := New(&config.DatabaseConfig{Path: path, MaxMemory: "256MB", Threads: 1})
	checkNoError(t, err)
	defer db.Close()

	ctx := context.Background()
	for _, col := range []string{"genre", "image"} {
		ok, err := db.columnExists(ctx, "events", col)
		checkNoError(t, err)
		checkBool(t, "migrated column "+col, ok, true)
	}

	events, err := db.ListEvents(ctx, emptyFilter)
	checkNoError(t, err)
	checkLen(t, "events", len(events), 1)
	checkStringEqual(t, "artist", events[0].Artist, "Old Band")
	checkStringEqual(t, "genre", events[0].Genre, "Unknown")
	checkStringEqual(t, "image", events[0].Image, "")
	checkStringEqual(t, "date", events[0].Date, "2026-07-04")
}

func TestVerifySchema(t *testing.T) {
	db := setupTestDB(t)
	checkNoError(t, db.verifySchema())

	err := db.requireColumns(context.Background(), "events", []string{"id", "lineup"})
	if err == nil || !strings.Contains(err.Error(), `"lineup"`) {
		t.Errorf("requireColumns = %v, want missing lineup column", err)
	}
}
