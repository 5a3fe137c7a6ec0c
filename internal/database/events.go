// USA Band Track - Live Music Event Aggregation
// Copyright 2026 The USA Band Track Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Pradervand/USA-BAND-TRACK

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Pradervand/USA-BAND-TRACK/internal/logging"
	"github.com/Pradervand/USA-BAND-TRACK/internal/metrics"
	"github.com/Pradervand/USA-BAND-TRACK/internal/models"
)

const eventColumns = `id, COALESCE(artist, ''), COALESCE(genre, ''), COALESCE(venue, ''),
	COALESCE(city, ''), COALESCE(state, ''), strftime(date, '%Y-%m-%d'), COALESCE(url, ''),
	COALESCE(source, ''), COALESCE(image, ''), inserted_at`

// EventExists reports whether an event with id is stored.
func (db *DB) EventExists(ctx context.Context, id string) (bool, error) {
	start := time.Now()
	var exists bool
	err := db.withConn(ctx, func(ctx context.Context, c *sql.Conn) error {
		return c.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM events WHERE id = ?)`, id).Scan(&exists)
	})
	metrics.RecordDBQuery("exists", "events", time.Since(start), err)
	if err != nil {
		return false, fmt.Errorf("failed to check event %s: %w", id, err)
	}
	return exists, nil
}

// InsertEventIfAbsent stores e unless its id is already present and reports
// whether a row was written. An existing row is never modified, so repeated
// calls with the same id are no-ops regardless of the other field values.
func (db *DB) InsertEventIfAbsent(ctx context.Context, e *models.Event) (bool, error) {
	insertedAt := e.InsertedAt
	if insertedAt.IsZero() {
		insertedAt = time.Now().UTC()
	}

	start := time.Now()
	var affected int64
	err := db.withConn(ctx, func(ctx context.Context, c *sql.Conn) error {
		res, err := c.ExecContext(ctx, `
			INSERT INTO events (id, artist, genre, venue, city, state, date, url, source, image, inserted_at)
			VALUES (?, ?, ?, ?, ?, ?, CAST(? AS DATE), ?, ?, ?, ?)
			ON CONFLICT (id) DO NOTHING`,
			e.ID, e.Artist, e.Genre, e.Venue, e.City, e.State, e.Date, e.URL, string(e.Source), e.Image, insertedAt)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	metrics.RecordDBQuery("insert", "events", time.Since(start), err)

	if err != nil {
		// Two writers racing on one id: the loser can fail at commit instead
		// of hitting DO NOTHING. If the row is there now, another writer won.
		if exists, existsErr := db.EventExists(ctx, e.ID); existsErr == nil && exists {
			if isTransactionConflict(err) || isDuplicateKey(err) {
				logging.Debug().Str("id", e.ID).Msg("Concurrent insert resolved to existing row")
			} else {
				logging.Warn().Err(err).Str("id", e.ID).Msg("Insert failed but row exists")
			}
			return false, nil
		}
		return false, fmt.Errorf("failed to insert event %s: %w", e.ID, err)
	}
	if affected > 0 {
		e.InsertedAt = insertedAt
	}
	return affected > 0, nil
}

// ListEvents returns stored events ordered by date, then artist.
func (db *DB) ListEvents(ctx context.Context, filter models.EventFilter) ([]models.Event, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.State != "" {
		where = append(where, "state = ?")
		args = append(args, strings.ToUpper(filter.State))
	}
	if filter.Source != "" {
		where = append(where, "source = ?")
		args = append(args, string(filter.Source))
	}
	if filter.Genre != "" {
		where = append(where, `genre ILIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(filter.Genre)+"%")
	}

	query := "SELECT " + eventColumns + " FROM events"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY date ASC, artist ASC, id ASC"

	start := time.Now()
	var events []models.Event
	err := db.withConn(ctx, func(ctx context.Context, c *sql.Conn) error {
		rows, err := c.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer closeWithLog(rows, "event rows")

		for rows.Next() {
			var (
				e      models.Event
				source string
			)
			if err := rows.Scan(&e.ID, &e.Artist, &e.Genre, &e.Venue, &e.City, &e.State,
				&e.Date, &e.URL, &source, &e.Image, &e.InsertedAt); err != nil {
				return err
			}
			e.Source = models.Source(source)
			if e.Genre == "" {
				e.Genre = models.Unknown
			}
			events = append(events, e)
		}
		return rows.Err()
	})
	metrics.RecordDBQuery("select", "events", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return events, nil
}

// likeEscaper makes LIKE wildcards in user-supplied text match literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// PurgeOutsideWindow deletes every event dated before w.Start or after
// w.End and returns how many rows were removed. The delete is final.
func (db *DB) PurgeOutsideWindow(ctx context.Context, w models.RetentionWindow) (int64, error) {
	if w.Start == "" || w.End == "" {
		return 0, errors.New("retention window requires start and end")
	}

	start := time.Now()
	var removed int64
	err := db.withConn(ctx, func(ctx context.Context, c *sql.Conn) error {
		res, err := c.ExecContext(ctx,
			`DELETE FROM events WHERE date < CAST(? AS DATE) OR date > CAST(? AS DATE)`, w.Start, w.End)
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	})
	metrics.RecordDBQuery("delete", "events", time.Since(start), err)
	if err != nil {
		return 0, fmt.Errorf("failed to purge events outside %s: %w", w, err)
	}
	return removed, nil
}

// CountEvents returns the number of stored events.
func (db *DB) CountEvents(ctx context.Context) (int64, error) {
	var n int64
	err := db.withConn(ctx, func(ctx context.Context, c *sql.Conn) error {
		return c.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&n)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return n, nil
}

// CountBySource returns event counts keyed by source name.
func (db *DB) CountBySource(ctx context.Context) (map[string]int64, error) {
	counts := make(map[string]int64)
	err := db.withConn(ctx, func(ctx context.Context, c *sql.Conn) error {
		rows, err := c.QueryContext(ctx,
			`SELECT COALESCE(source, ''), COUNT(*) FROM events GROUP BY 1 ORDER BY 1`)
		if err != nil {
			return err
		}
		defer closeWithLog(rows, "count rows")

		for rows.Next() {
			var (
				source string
				n      int64
			)
			if err := rows.Scan(&source, &n); err != nil {
				return err
			}
			counts[source] = n
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to count events by source: %w", err)
	}
	return counts, nil
}

// ResetEvents deletes every stored event. Schema and migrations are kept.
func (db *DB) ResetEvents(ctx context.Context) (int64, error) {
	var removed int64
	err := db.withConn(ctx, func(ctx context.Context, c *sql.Conn) error {
		res, err := c.ExecContext(ctx, `DELETE FROM events`)
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to reset events: %w", err)
	}
	return removed, nil
}
