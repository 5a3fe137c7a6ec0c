// USA Band Track - Live Music Event Aggregation
// Copyright 2026 The USA Band Track Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Pradervand/USA-BAND-TRACK

package database

import (
	"context"
	"fmt"
	"time"
)

// baseEventsTable is the original layout. Columns added later (genre, image)
// arrive through migrations so that files written by older versions open
// without loss.
const baseEventsTable = `
CREATE TABLE IF NOT EXISTS events (
	id          TEXT PRIMARY KEY,
	artist      TEXT,
	venue       TEXT,
	city        TEXT,
	state       TEXT,
	date        DATE NOT NULL,
	url         TEXT,
	source      TEXT,
	inserted_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

func (db *DB) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()

	if _, err := db.conn.ExecContext(ctx, baseEventsTable); err != nil {
		return fmt.Errorf("failed to create events table: %w", err)
	}
	return nil
}

// requiredEventColumns are read by every event query.
var requiredEventColumns = []string{"id", "artist", "genre", "venue", "city", "state", "date", "url", "source", "image", "inserted_at"}

// verifySchema fails when a migrated events table still lacks a column
// the queries read.
func (db *DB) verifySchema() error {
	ctx, cancel := schemaContext()
	defer cancel()
	return db.requireColumns(ctx, "events", requiredEventColumns)
}

func (db *DB) requireColumns(ctx context.Context, table string, columns []string) error {
	for _, col := range columns {
		ok, err := db.columnExists(ctx, table, col)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%s table is missing column %q after migrations", table, col)
		}
	}
	return nil
}

// columnExists reports whether table has column.
func (db *DB) columnExists(ctx context.Context, table, column string) (bool, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	var n int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM information_schema.columns WHERE table_name = ? AND column_name = ?`,
		table, column).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to inspect %s.%s: %w", table, column, err)
	}
	return n > 0, nil
}
