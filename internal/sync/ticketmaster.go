// USA Band Track - Live Music Event Aggregation
// Copyright 2026 The USA Band Track Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Pradervand/USA-BAND-TRACK

/*
ticketmaster.go - Ticketmaster Discovery API Adapter

Queries:
  - keyword mode (default): one query per state and configured keyword
  - genre-id mode: one query per state with all configured genre ids

Pagination:
  - page numbers start at 0 and continue while page+1 < totalPages
  - totalPages is cross-checked against ceil(totalElements/size); the smaller wins
  - capped by max_pages and by the Discovery deep-paging limit (size*(page+1) <= 1000)
  - an empty page ends the query

Relevance:
  - keyword mode keeps an event only when a configured keyword appears in its name
  - classification genre and subGenre names feed the classifier; events the
    classifier cannot label are stored with genre "Unknown"
*/

//nolint:staticcheck // File documentation, not package doc
package sync

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/time/rate"

	"github.com/Pradervand/USA-BAND-TRACK/internal/config"
	"github.com/Pradervand/USA-BAND-TRACK/internal/genre"
	"github.com/Pradervand/USA-BAND-TRACK/internal/logging"
	"github.com/Pradervand/USA-BAND-TRACK/internal/metrics"
	"github.com/Pradervand/USA-BAND-TRACK/internal/models"
)

const (
	tmEventsPath = "/discovery/v2/events.json"

	// tmDeepPagingLimit is the Discovery API ceiling on size*(page+1).
	tmDeepPagingLimit = 1000
)

// TicketmasterAdapter fetches music events from the Discovery API.
type TicketmasterAdapter struct {
	cfg        config.TicketmasterConfig
	states     []string
	region     region
	window     models.RetentionWindow
	fetcher    *Fetcher
	classifier *genre.Classifier
	keywords   *genre.KeywordMatcher
	limiter    *rate.Limiter
}

// tmQuery is one state/keyword combination. keyword is empty in genre-id mode.
type tmQuery struct {
	state   string
	keyword string
}

// NewTicketmasterAdapter builds the adapter from the application config.
func NewTicketmasterAdapter(cfg *config.Config, classifier *genre.Classifier) *TicketmasterAdapter {
	tm := cfg.Sources.Ticketmaster
	return &TicketmasterAdapter{
		cfg:        tm,
		states:     cfg.Region.States,
		region:     newRegion(cfg.Region.States),
		window:     windowFrom(cfg.Window),
		fetcher:    NewFetcher(models.SourceTicketmaster, cfg.HTTP),
		classifier: classifier,
		keywords:   genre.NewKeywordMatcher(tm.Keywords),
		limiter:    pageLimiter(tm.Delay),
	}
}

func (a *TicketmasterAdapter) Name() string          { return models.SourceTicketmaster.Key() }
func (a *TicketmasterAdapter) Source() models.Source { return models.SourceTicketmaster }

// Validate requires an API key, a window and either keywords or genre ids.
func (a *TicketmasterAdapter) Validate() error {
	if strings.TrimSpace(a.cfg.APIKey) == "" {
		return &ConfigError{Source: a.Source(), Field: "sources.ticketmaster.api_key", Reason: "TM_API_KEY is not set"}
	}
	if !a.genreIDMode() && a.keywords.Len() == 0 {
		return &ConfigError{Source: a.Source(), Field: "sources.ticketmaster.keywords", Reason: "no keywords or genre ids configured"}
	}
	return validateWindow(a.Source(), a.window)
}

func (a *TicketmasterAdapter) genreIDMode() bool {
	return len(a.cfg.GenreIDs) > 0
}

func (a *TicketmasterAdapter) queries() []tmQuery {
	var qs []tmQuery
	for _, st := range a.states {
		if a.genreIDMode() {
			qs = append(qs, tmQuery{state: st})
			continue
		}
		for _, kw := range a.cfg.Keywords {
			if kw = strings.TrimSpace(kw); kw != "" {
				qs = append(qs, tmQuery{state: st, keyword: kw})
			}
		}
	}
	return qs
}

// FetchNew runs every query and returns the number of events added.
func (a *TicketmasterAdapter) FetchNew(ctx context.Context, store EventStore) (int, error) {
	if err := a.Validate(); err != nil {
		return 0, err
	}

	added := 0
	for _, q := range a.queries() {
		n, err := a.fetchQuery(ctx, store, q)
		added += n
		if err != nil {
			return added, err
		}
	}

	logging.CtxInfo(ctx).Str("source", a.Name()).Int("added", added).Msg("Ticketmaster fetch complete")
	return added, nil
}

func (a *TicketmasterAdapter) fetchQuery(ctx context.Context, store EventStore, q tmQuery) (int, error) {
	size := a.cfg.PageSize
	if size <= 0 {
		size = 100
	}
	maxPages := a.cfg.MaxPages
	if maxPages <= 0 {
		maxPages = 1
	}

	added := 0
	for page := 0; page < maxPages; page++ {
		if size*(page+1) > tmDeepPagingLimit {
			break
		}
		if err := a.limiter.Wait(ctx); err != nil {
			return added, err
		}

		var resp models.TMSearchResponse
		found, err := a.fetcher.GetJSON(ctx, a.cfg.BaseURL+tmEventsPath, a.params(q, page, size), &resp)
		if err != nil {
			return added, err
		}
		if !found || len(resp.Embedded.Events) == 0 {
			break
		}

		for i := range resp.Embedded.Events {
			ok, err := a.handle(ctx, store, q, &resp.Embedded.Events[i])
			if err != nil {
				return added, err
			}
			if ok {
				added++
			}
		}

		if page+1 >= tmPageCount(resp.Page, size) {
			break
		}
	}

	logging.CtxDebug(ctx).Str("source", a.Name()).Str("state", q.state).Str("keyword", q.keyword).Int("added", added).Msg("Query complete")
	return added, nil
}

func (a *TicketmasterAdapter) params(q tmQuery, page, size int) url.Values {
	v := url.Values{}
	v.Set("apikey", a.cfg.APIKey)
	v.Set("classificationName", "music")
	v.Set("stateCode", q.state)
	v.Set("startDateTime", a.window.Start+"T00:00:00Z")
	v.Set("endDateTime", a.window.End+"T23:59:59Z")
	v.Set("size", strconv.Itoa(size))
	v.Set("page", strconv.Itoa(page))
	v.Set("sort", "date,asc")
	if a.genreIDMode() {
		v.Set("genreId", strings.Join(a.cfg.GenreIDs, ","))
	} else {
		v.Set("keyword", q.keyword)
	}
	return v
}

// tmPageCount returns the number of pages the response supports. The
// reported totalPages is distrusted when totalElements implies fewer.
func tmPageCount(p models.TMPage, size int) int {
	pages := p.TotalPages
	if p.TotalElements > 0 && size > 0 {
		computed := (p.TotalElements + size - 1) / size
		if pages <= 0 || computed < pages {
			pages = computed
		}
	}
	return pages
}

func (a *TicketmasterAdapter) handle(ctx context.Context, store EventStore, q tmQuery, ev *models.TMEvent) (bool, error) {
	src := a.Name()
	if ev.ID == "" {
		metrics.RecordEventSkipped(src, skipParse)
		return false, nil
	}
	if !a.genreIDMode() {
		if _, ok := a.keywords.Match(ev.Name); !ok {
			metrics.RecordEventSkipped(src, skipIrrelevant)
			return false, nil
		}
	}

	id := models.EventID(models.SourceTicketmaster, ev.ID)
	exists, err := known(ctx, store, id)
	if err != nil {
		return false, err
	}
	if exists {
		metrics.RecordEventSkipped(src, skipKnown)
		return false, nil
	}

	e := a.toEvent(id, q.state, ev)
	return persist(ctx, store, a.region, e)
}

func (a *TicketmasterAdapter) toEvent(id, state string, ev *models.TMEvent) *models.Event {
	venue, city, st := models.UnknownVenue, models.Unknown, state
	if len(ev.Embedded.Venues) > 0 {
		v := ev.Embedded.Venues[0]
		venue = orDefault(v.Name, models.UnknownVenue)
		city = orDefault(v.City.Name, models.Unknown)
		st = strings.ToUpper(orDefault(v.State.StateCode, state))
	}

	label := models.Unknown
	if res := a.classifier.Classify(ev.Name, tmGenreHints(ev.Classifications)); res.Matched {
		label = res.Label
	}

	return &models.Event{
		ID:     id,
		Artist: strings.TrimSpace(ev.Name),
		Genre:  label,
		Venue:  venue,
		City:   city,
		State:  st,
		Date:   ev.Dates.Start.LocalDate,
		URL:    ev.URL,
		Source: models.SourceTicketmaster,
		Image:  tmBestImage(ev.Images),
	}
}

// tmGenreHints lists genre and subGenre names, primary classification first.
func tmGenreHints(cs []models.TMClassification) []string {
	var hints []string
	add := func(c models.TMClassification) {
		for _, n := range []string{c.Genre.Name, c.SubGenre.Name} {
			if n != "" && !strings.EqualFold(n, "Undefined") && !strings.EqualFold(n, "Other") {
				hints = append(hints, n)
			}
		}
	}
	for _, c := range cs {
		if c.Primary {
			add(c)
		}
	}
	for _, c := range cs {
		if !c.Primary {
			add(c)
		}
	}
	return hints
}

// tmBestImage picks the widest 16:9 image, or the widest image of any ratio.
func tmBestImage(images []models.TMImage) string {
	best, bestWide := -1, -1
	for i, img := range images {
		if img.URL == "" {
			continue
		}
		if best < 0 || img.Width > images[best].Width {
			best = i
		}
		if img.Ratio == "16_9" && (bestWide < 0 || img.Width > images[bestWide].Width) {
			bestWide = i
		}
	}
	switch {
	case bestWide >= 0:
		return images[bestWide].URL
	case best >= 0:
		return images[best].URL
	default:
		return ""
	}
}
