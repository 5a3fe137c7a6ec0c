// USA Band Track - Live Music Event Aggregation
// Copyright 2026 The USA Band Track Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Pradervand/USA-BAND-TRACK

package sync

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/Pradervand/USA-BAND-TRACK/internal/config"
	"github.com/Pradervand/USA-BAND-TRACK/internal/models"
)

// newTestConfig returns a config tuned for fast tests: one state, no page
// delays, a single retry with a 1ms backoff and short timeouts.
//
// Tests only. Production configuration comes from config.LoadWithKoanf.
func newTestConfig(baseURL string) *config.Config {
	cfg := config.Default()
	cfg.Region.States = []string{"CA"}
	cfg.Window = config.WindowConfig{Start: "2026-07-01", End: "2026-07-31"}
	cfg.HTTP = config.HTTPConfig{
		Timeout:        2 * time.Second,
		RetryLimit:     1,
		RetryDelay:     time.Millisecond,
		UserAgent:      "bandtrack-test",
		AcceptLanguage: "en-US,en;q=0.9",
	}

	cfg.Sources.Ticketmaster = config.TicketmasterConfig{
		Enabled:  true,
		APIKey:   "tm-test-key",
		BaseURL:  baseURL,
		Keywords: []string{"metal"},
		PageSize: 100,
		MaxPages: 5,
	}
	cfg.Sources.SeatGeek = config.SeatGeekConfig{
		Enabled:  true,
		ClientID: "sg-test-id",
		BaseURL:  baseURL,
		PerPage:  100,
		MaxPages: 5,
	}
	cfg.Sources.ConcertsMetal = config.ConcertsMetalConfig{
		Enabled:     true,
		BaseURL:     baseURL,
		Concurrency: 3,
	}
	return cfg
}

func testWindow() models.RetentionWindow {
	return models.RetentionWindow{Start: "2026-07-01", End: "2026-07-31"}
}

// fakeAdapter runs fetch when invoked and counts calls.
type fakeAdapter struct {
	src         models.Source
	validateErr error
	fetch       func(ctx context.Context, store EventStore) (int, error)
	calls       atomic.Int32
}

func (f *fakeAdapter) Name() string          { return f.src.Key() }
func (f *fakeAdapter) Source() models.Source { return f.src }
func (f *fakeAdapter) Validate() error       { return f.validateErr }

func (f *fakeAdapter) FetchNew(ctx context.Context, store EventStore) (int, error) {
	f.calls.Add(1)
	if f.fetch == nil {
		return 0, nil
	}
	return f.fetch(ctx, store)
}

// insertN stores n valid events with ids prefix_0..prefix_n-1.
func insertN(ctx context.Context, store EventStore, src models.Source, prefix string, n int) (int, error) {
	added := 0
	for i := 0; i < n; i++ {
		ok, err := persist(ctx, store, newRegion([]string{"CA"}), testEvent(src, prefix+"_"+strconv.Itoa(i), "2026-07-10"))
		if err != nil {
			return added, err
		}
		if ok {
			added++
		}
	}
	return added, nil
}

func testEvent(src models.Source, native, date string) *models.Event {
	return &models.Event{
		ID:     models.EventID(src, native),
		Artist: "Band " + native,
		Genre:  "Metal",
		Venue:  "Venue",
		City:   "Los Angeles",
		State:  "CA",
		Date:   date,
		URL:    "https://example.com/" + native,
		Source: src,
	}
}

// fakeDB wraps a MemoryStore with injectable failures.
type fakeDB struct {
	*MemoryStore
	insertErr  error
	purgeErr   error
	purgeCalls atomic.Int32
}

func newFakeDB() *fakeDB {
	return &fakeDB{MemoryStore: NewMemoryStore()}
}

func (f *fakeDB) InsertEventIfAbsent(ctx context.Context, e *models.Event) (bool, error) {
	if f.insertErr != nil {
		return false, f.insertErr
	}
	return f.MemoryStore.InsertEventIfAbsent(ctx, e)
}

func (f *fakeDB) PurgeOutsideWindow(ctx context.Context, w models.RetentionWindow) (int64, error) {
	f.purgeCalls.Add(1)
	if f.purgeErr != nil {
		return 0, f.purgeErr
	}
	return f.MemoryStore.PurgeOutsideWindow(ctx, w)
}

var errDiskFull = errors.New("disk full")
