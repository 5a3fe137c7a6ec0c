// USA Band Track - Live Music Event Aggregation
// Copyright 2026 The USA Band Track Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Pradervand/USA-BAND-TRACK

package sync

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/goccy/go-json"

	"github.com/Pradervand/USA-BAND-TRACK/internal/genre"
	"github.com/Pradervand/USA-BAND-TRACK/internal/models"
)

// tmPageFunc builds the response for a requested page number.
type tmPageFunc func(page int, r *http.Request) models.TMSearchResponse

func tmServer(t *testing.T, fn tmPageFunc) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc(tmEventsPath, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(fn(page, r))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &hits
}

func tmEvent(id, name string) models.TMEvent {
	var ev models.TMEvent
	ev.ID = id
	ev.Name = name
	ev.URL = "https://www.ticketmaster.com/event/" + id
	ev.Dates.Start.LocalDate = "2026-07-15"
	ev.Embedded.Venues = []models.TMVenue{{Name: "The Forum"}}
	ev.Embedded.Venues[0].City.Name = "Inglewood"
	ev.Embedded.Venues[0].State.StateCode = "CA"
	return ev
}

func tmPageOf(events []models.TMEvent, size, totalElements, totalPages, number int) models.TMSearchResponse {
	var resp models.TMSearchResponse
	resp.Embedded.Events = events
	resp.Page = models.TMPage{Size: size, TotalElements: totalElements, TotalPages: totalPages, Number: number}
	return resp
}

// Two pages of 25 events, 37 relevant, 5 of those already stored: 32 added.
func TestTicketmaster_AddsOnlyNewRelevantEvents(t *testing.T) {
	const perPage = 25
	srv, hits := tmServer(t, func(page int, _ *http.Request) models.TMSearchResponse {
		var events []models.TMEvent
		for i := page * perPage; i < (page+1)*perPage; i++ {
			name := fmt.Sprintf("Pop Star %d", i)
			if i < 37 {
				name = fmt.Sprintf("Metal Band %d", i)
			}
			events = append(events, tmEvent(fmt.Sprintf("ev%d", i), name))
		}
		return tmPageOf(events, perPage, 50, 2, page)
	})

	cfg := newTestConfig(srv.URL)
	cfg.Sources.Ticketmaster.PageSize = perPage
	a := NewTicketmasterAdapter(cfg, genre.New())

	store := NewMemoryStore()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := store.InsertEventIfAbsent(ctx, testEvent(models.SourceTicketmaster, fmt.Sprintf("ev%d", i), "2026-07-15"))
		checkNoError(t, err)
	}

	added, err := a.FetchNew(ctx, store)
	checkNoError(t, err)
	checkIntEqual(t, "added", added, 32)
	checkIntEqual(t, "stored", store.Len(), 37)
	checkIntEqual(t, "requests", int(hits.Load()), 2)

	// A second run adds nothing.
	added, err = a.FetchNew(ctx, store)
	checkNoError(t, err)
	checkIntEqual(t, "second run added", added, 0)
}

func TestTicketmaster_NormalizesEvent(t *testing.T) {
	srv, _ := tmServer(t, func(page int, _ *http.Request) models.TMSearchResponse {
		ev := tmEvent("abc", "Ghost: Metal Mass")
		ev.Classifications = []models.TMClassification{
			{Primary: true, Genre: models.TMNamed{Name: "Rock"}, SubGenre: models.TMNamed{Name: "Heavy Metal"}},
		}
		ev.Images = []models.TMImage{
			{URL: "https://img/small.jpg", Ratio: "16_9", Width: 640},
			{URL: "https://img/huge.jpg", Ratio: "4_3", Width: 2048},
			{URL: "https://img/large.jpg", Ratio: "16_9", Width: 1024},
		}
		noVenue := tmEvent("novenue", "Metal Night")
		noVenue.Embedded.Venues = nil
		return tmPageOf([]models.TMEvent{ev, noVenue}, 100, 2, 1, page)
	})

	a := NewTicketmasterAdapter(newTestConfig(srv.URL), genre.New())
	store := NewMemoryStore()
	added, err := a.FetchNew(context.Background(), store)
	checkNoError(t, err)
	checkIntEqual(t, "added", added, 2)

	events := store.Events()
	byID := map[string]models.Event{}
	for _, e := range events {
		byID[e.ID] = e
	}

	ghost := byID["tm_abc"]
	checkStringEqual(t, "genre", ghost.Genre, "Heavy Metal")
	checkStringEqual(t, "image", ghost.Image, "https://img/large.jpg")
	checkStringEqual(t, "venue", ghost.Venue, "The Forum")
	checkStringEqual(t, "city", ghost.City, "Inglewood")
	checkStringEqual(t, "source", string(ghost.Source), "Ticketmaster")

	nv := byID["tm_novenue"]
	checkStringEqual(t, "default venue", nv.Venue, models.UnknownVenue)
	checkStringEqual(t, "default city", nv.City, models.Unknown)
	checkStringEqual(t, "default state", nv.State, "CA")
}

func TestTicketmaster_UnclassifiedIsUnknown(t *testing.T) {
	srv, _ := tmServer(t, func(page int, _ *http.Request) models.TMSearchResponse {
		ev := tmEvent("x1", "Jazzfest Brunch Quartet")
		ev.Classifications = []models.TMClassification{{Genre: models.TMNamed{Name: "Jazz"}}}
		return tmPageOf([]models.TMEvent{ev}, 100, 1, 1, page)
	})

	cfg := newTestConfig(srv.URL)
	cfg.Sources.Ticketmaster.Keywords = []string{"jazzfest"}
	a := NewTicketmasterAdapter(cfg, genre.New())
	store := NewMemoryStore()

	added, err := a.FetchNew(context.Background(), store)
	checkNoError(t, err)
	checkIntEqual(t, "added", added, 1)
	checkStringEqual(t, "genre", store.Events()[0].Genre, models.Unknown)
}

func TestTicketmaster_Pagination(t *testing.T) {
	tests := []struct {
		name          string
		pageSize      int
		maxPages      int
		totalElements int
		totalPages    int
		wantRequests  int32
	}{
		{"inconsistent total pages uses element count", 100, 10, 150, 50, 2},
		{"capped by max pages", 100, 3, 100000, 1000, 3},
		{"deep paging limit", 400, 10, 100000, 250, 2},
		{"missing totals stops after first page", 100, 10, 0, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, hits := tmServer(t, func(page int, _ *http.Request) models.TMSearchResponse {
				return tmPageOf([]models.TMEvent{tmEvent("p"+strconv.Itoa(page), "Metal "+strconv.Itoa(page))},
					tt.pageSize, tt.totalElements, tt.totalPages, page)
			})

			cfg := newTestConfig(srv.URL)
			cfg.Sources.Ticketmaster.PageSize = tt.pageSize
			cfg.Sources.Ticketmaster.MaxPages = tt.maxPages
			a := NewTicketmasterAdapter(cfg, genre.New())

			_, err := a.FetchNew(context.Background(), NewMemoryStore())
			checkNoError(t, err)
			checkIntEqual(t, "requests", int(hits.Load()), int(tt.wantRequests))
		})
	}
}

func TestTicketmaster_EmptyPageEndsQuery(t *testing.T) {
	srv, hits := tmServer(t, func(page int, _ *http.Request) models.TMSearchResponse {
		return tmPageOf(nil, 100, 500, 5, page)
	})

	a := NewTicketmasterAdapter(newTestConfig(srv.URL), genre.New())
	added, err := a.FetchNew(context.Background(), NewMemoryStore())
	checkNoError(t, err)
	checkIntEqual(t, "added", added, 0)
	checkIntEqual(t, "requests", int(hits.Load()), 1)
}

func TestTicketmaster_QueryParameters(t *testing.T) {
	t.Run("keyword mode", func(t *testing.T) {
		var keywords []string
		srv, _ := tmServer(t, func(page int, r *http.Request) models.TMSearchResponse {
			q := r.URL.Query()
			keywords = append(keywords, q.Get("keyword"))
			checkStringEqual(t, "apikey", q.Get("apikey"), "tm-test-key")
			checkStringEqual(t, "stateCode", q.Get("stateCode"), "CA")
			checkStringEqual(t, "classificationName", q.Get("classificationName"), "music")
			checkStringEqual(t, "startDateTime", q.Get("startDateTime"), "2026-07-01T00:00:00Z")
			checkStringEqual(t, "endDateTime", q.Get("endDateTime"), "2026-07-31T23:59:59Z")
			checkStringEqual(t, "genreId", q.Get("genreId"), "")
			return tmPageOf(nil, 100, 0, 0, page)
		})

		cfg := newTestConfig(srv.URL)
		cfg.Sources.Ticketmaster.Keywords = []string{"metal", "punk"}
		_, err := NewTicketmasterAdapter(cfg, genre.New()).FetchNew(context.Background(), NewMemoryStore())
		checkNoError(t, err)
		checkIntEqual(t, "queries", len(keywords), 2)
	})

	t.Run("genre id mode", func(t *testing.T) {
		var genreIDs, keyword string
		srv, hits := tmServer(t, func(page int, r *http.Request) models.TMSearchResponse {
			genreIDs = r.URL.Query().Get("genreId")
			keyword = r.URL.Query().Get("keyword")
			// Genre-id mode keeps events regardless of name.
			return tmPageOf([]models.TMEvent{tmEvent("g1", "Slayer")}, 100, 1, 1, page)
		})

		cfg := newTestConfig(srv.URL)
		cfg.Sources.Ticketmaster.GenreIDs = []string{"KnvZfZ7vAvt", "KnvZfZ7vAv1"}
		cfg.Region.States = []string{"CA", "AZ"}
		added, err := NewTicketmasterAdapter(cfg, genre.New()).FetchNew(context.Background(), NewMemoryStore())
		checkNoError(t, err)
		checkIntEqual(t, "queries", int(hits.Load()), 2)
		checkIntEqual(t, "added", added, 1)
		checkStringEqual(t, "genreId", genreIDs, "KnvZfZ7vAvt,KnvZfZ7vAv1")
		checkStringEqual(t, "keyword", keyword, "")
	})
}

func TestTicketmaster_MissingKeyIsConfigError(t *testing.T) {
	srv, hits := tmServer(t, func(page int, _ *http.Request) models.TMSearchResponse {
		return tmPageOf(nil, 100, 0, 0, page)
	})

	cfg := newTestConfig(srv.URL)
	cfg.Sources.Ticketmaster.APIKey = ""
	_, err := NewTicketmasterAdapter(cfg, genre.New()).FetchNew(context.Background(), NewMemoryStore())

	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected *ConfigError, got %v", err)
	}
	checkIntEqual(t, "requests", int(hits.Load()), 0)
}

func TestTicketmaster_RejectedRequestAbortsAdapter(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, `{"fault":"Invalid ApiKey"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	cfg := newTestConfig(srv.URL)
	cfg.Sources.Ticketmaster.Keywords = []string{"metal", "punk", "goth"}
	_, err := NewTicketmasterAdapter(cfg, genre.New()).FetchNew(context.Background(), NewMemoryStore())

	var srcErr *SourceError
	if !errors.As(err, &srcErr) {
		t.Fatalf("expected *SourceError, got %v", err)
	}
	checkIntEqual(t, "requests", int(hits.Load()), 1)
}

func TestTmPageCount(t *testing.T) {
	tests := []struct {
		page models.TMPage
		size int
		want int
	}{
		{models.TMPage{TotalPages: 3, TotalElements: 250}, 100, 3},
		{models.TMPage{TotalPages: 50, TotalElements: 150}, 100, 2},
		{models.TMPage{TotalPages: 0, TotalElements: 101}, 100, 2},
		{models.TMPage{TotalPages: 4}, 100, 4},
		{models.TMPage{}, 100, 0},
	}
	for _, tt := range tests {
		checkIntEqual(t, fmt.Sprintf("%+v", tt.page), tmPageCount(tt.page, tt.size), tt.want)
	}
}

func TestTmBestImage(t *testing.T) {
	checkStringEqual(t, "empty", tmBestImage(nil), "")
	checkStringEqual(t, "no 16:9", tmBestImage([]models.TMImage{
		{URL: "a", Ratio: "3_2", Width: 100},
		{URL: "b", Ratio: "4_3", Width: 300},
	}), "b")
}

// flakyTMServer answers 503 for keywords starting with "flaky" and one
// event named after the keyword otherwise.
func flakyTMServer(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var flakyHits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		kw := r.URL.Query().Get("keyword")
		if strings.HasPrefix(kw, "flaky") {
			flakyHits.Add(1)
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		resp := tmPageOf([]models.TMEvent{tmEvent("kw-"+kw, strings.ToUpper(kw)+" Night")}, 100, 1, 1, 0)
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv, &flakyHits
}

func TestTicketmaster_TransientQueryFailuresDoNotSkipOthers(t *testing.T) {
	srv, flakyHits := flakyTMServer(t)

	cfg := newTestConfig(srv.URL)
	cfg.Sources.Ticketmaster.Keywords = []string{"flaky1", "flaky2", "metal", "doom", "punk"}
	store := NewMemoryStore()

	added, err := NewTicketmasterAdapter(cfg, genre.New()).FetchNew(context.Background(), store)
	checkNoError(t, err)
	checkIntEqual(t, "added", added, 3)
	checkIntEqual(t, "stored", store.Len(), 3)
	// RetryLimit 1: two attempts per failing query.
	checkIntEqual(t, "flaky requests", int(flakyHits.Load()), 4)
}

func TestTicketmaster_OpenCircuitFailsAdapter(t *testing.T) {
	srv, flakyHits := flakyTMServer(t)

	cfg := newTestConfig(srv.URL)
	cfg.Sources.Ticketmaster.Keywords = []string{"flaky1", "flaky2", "flaky3", "flaky4", "flaky5", "flaky6", "metal"}

	added, err := NewTicketmasterAdapter(cfg, genre.New()).FetchNew(context.Background(), NewMemoryStore())
	checkErrorIs(t, err, ErrSourceUnavailable)
	checkStringEqual(t, "class", errorClass(err), classSource)
	checkIntEqual(t, "added", added, 0)
	// five failed queries open the circuit; the sixth never reaches the server
	checkIntEqual(t, "flaky requests", int(flakyHits.Load()), 10)
}

func TestTicketmaster_SkipsVenuesOutsideRegion(t *testing.T) {
	srv, _ := tmServer(t, func(page int, _ *http.Request) models.TMSearchResponse {
		home := tmEvent("home", "Metal Fest")
		away := tmEvent("away", "Metal Cruise")
		away.Embedded.Venues[0].State.StateCode = "NY"
		lower := tmEvent("lower", "Metal Matinee")
		lower.Embedded.Venues[0].State.StateCode = "ca"
		return tmPageOf([]models.TMEvent{home, away, lower}, 100, 3, 1, page)
	})

	store := NewMemoryStore()
	added, err := NewTicketmasterAdapter(newTestConfig(srv.URL), genre.New()).FetchNew(context.Background(), store)
	checkNoError(t, err)
	checkIntEqual(t, "added", added, 2)
	for _, e := range store.Events() {
		checkStringEqual(t, e.ID+" state", e.State, "CA")
	}
}
