// USA Band Track - Live Music Event Aggregation
// Copyright 2026 The USA Band Track Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Pradervand/USA-BAND-TRACK

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

const sgEventsPath = "/2/events"

// SeatGeekAdapter fetches concerts per state from the SeatGeek events API.
// Only events the genre classifier can label are kept.
type SeatGeekAdapter struct {
	cfg        config.SeatGeekConfig
	states     []string
	region     region
	window     models.RetentionWindow
	fetcher    *Fetcher
	classifier *genre.Classifier
	limiter    *rate.Limiter
}

// NewSeatGeekAdapter builds the adapter from the application config.
func NewSeatGeekAdapter(cfg *config.Config, classifier *genre.Classifier) *SeatGeekAdapter {
	sg := cfg.Sources.SeatGeek
	return &SeatGeekAdapter{
		cfg:        sg,
		states:     cfg.Region.States,
		region:     newRegion(cfg.Region.States),
		window:     windowFrom(cfg.Window),
		fetcher:    NewFetcher(models.SourceSeatGeek, cfg.HTTP),
		classifier: classifier,
		limiter:    pageLimiter(sg.Delay),
	}
}

func (a *SeatGeekAdapter) Name() string          { return models.SourceSeatGeek.Key() }
func (a *SeatGeekAdapter) Source() models.Source { return models.SourceSeatGeek }

func (a *SeatGeekAdapter) Validate() error {
	if strings.TrimSpace(a.cfg.ClientID) == "" {
		return &ConfigError{Source: a.Source(), Field: "sources.seatgeek.client_id", Reason: "SEATGEEK_ID is not set"}
	}
	return validateWindow(a.Source(), a.window)
}

// FetchNew walks every state's pages. Events repeated across states within
// one run are dropped by title, city and date.
func (a *SeatGeekAdapter) FetchNew(ctx context.Context, store EventStore) (int, error) {
	if err := a.Validate(); err != nil {
		return 0, err
	}

	seen := make(map[string]struct{})
	added := 0
	for _, st := range a.states {
		n, err := a.fetchState(ctx, store, st, seen)
		added += n
		if err != nil {
			return added, err
		}
	}

	logging.CtxInfo(ctx).Str("source", a.Name()).Int("added", added).Msg("SeatGeek fetch complete")
	return added, nil
}

func (a *SeatGeekAdapter) fetchState(ctx context.Context, store EventStore, state string, seen map[string]struct{}) (int, error) {
	perPage := a.cfg.PerPage
	if perPage <= 0 {
		perPage = 100
	}
	maxPages := a.cfg.MaxPages
	if maxPages <= 0 {
		maxPages = 1
	}

	added := 0
	for page := 1; page <= maxPages; page++ {
		if err := a.limiter.Wait(ctx); err != nil {
			return added, err
		}

		var resp models.SGSearchResponse
		found, err := a.fetcher.GetJSON(ctx, a.cfg.BaseURL+sgEventsPath, a.params(state, page, perPage), &resp)
		if err != nil {
			return added, err
		}
		if !found || len(resp.Events) == 0 {
			break
		}

		for i := range resp.Events {
			ok, err := a.handle(ctx, store, state, &resp.Events[i], seen)
			if err != nil {
				return added, err
			}
			if ok {
				added++
			}
		}

		if !sgHasNext(resp.Meta, page, perPage) {
			break
		}
	}

	logging.CtxDebug(ctx).Str("source", a.Name()).Str("state", state).Int("added", added).Msg("State complete")
	return added, nil
}

func (a *SeatGeekAdapter) params(state string, page, perPage int) url.Values {
	v := url.Values{}
	v.Set("client_id", a.cfg.ClientID)
	v.Set("taxonomies.name", "concert")
	v.Set("venue.state", state)
	v.Set("datetime_utc.gte", a.window.Start+"T00:00:00Z")
	v.Set("datetime_utc.lte", a.window.End+"T23:59:59Z")
	v.Set("per_page", strconv.Itoa(perPage))
	v.Set("page", strconv.Itoa(page))
	return v
}

// sgHasNext follows meta.has_next when the API sends it and otherwise
// compares the pages consumed with meta.total.
func sgHasNext(meta models.SGMeta, page, perPage int) bool {
	if meta.HasNext != nil {
		return *meta.HasNext
	}
	if meta.PerPage > 0 {
		perPage = meta.PerPage
	}
	return page*perPage < meta.Total
}

func (a *SeatGeekAdapter) handle(ctx context.Context, store EventStore, state string, ev *models.SGEvent, seen map[string]struct{}) (bool, error) {
	src := a.Name()
	if ev.ID == 0 {
		metrics.RecordEventSkipped(src, skipParse)
		return false, nil
	}

	res := a.classifier.Classify(sgText(ev), sgGenreHints(ev.Performers))
	if !res.Matched {
		metrics.RecordEventSkipped(src, skipIrrelevant)
		return false, nil
	}

	e := a.toEvent(state, ev, res.Label)

	key := strings.ToLower(e.Artist) + "_" + strings.ToLower(e.City) + "_" + e.Date
	if _, dup := seen[key]; dup {
		metrics.RecordEventSkipped(src, skipDuplicate)
		return false, nil
	}
	seen[key] = struct{}{}

	exists, err := known(ctx, store, e.ID)
	if err != nil {
		return false, err
	}
	if exists {
		metrics.RecordEventSkipped(src, skipKnown)
		return false, nil
	}
	return persist(ctx, store, a.region, e)
}

func (a *SeatGeekAdapter) toEvent(state string, ev *models.SGEvent, label string) *models.Event {
	date := ev.DatetimeLocal
	if len(date) >= len(config.DateLayout) {
		date = date[:len(config.DateLayout)]
	}
	image := ""
	if len(ev.Performers) > 0 {
		image = ev.Performers[0].Image
	}
	return &models.Event{
		ID:     models.EventID(models.SourceSeatGeek, strconv.FormatInt(ev.ID, 10)),
		Artist: strings.TrimSpace(ev.Title),
		Genre:  label,
		Venue:  orDefault(ev.Venue.Name, models.UnknownVenue),
		City:   orDefault(ev.Venue.City, models.Unknown),
		State:  strings.ToUpper(orDefault(ev.Venue.State, state)),
		Date:   date,
		URL:    ev.URL,
		Source: models.SourceSeatGeek,
		Image:  image,
	}
}

// sgText joins the title with performer names for keyword evidence.
func sgText(ev *models.SGEvent) string {
	parts := []string{ev.Title}
	for _, p := range ev.Performers {
		if p.Name != "" {
			parts = append(parts, p.Name)
		}
	}
	return strings.Join(parts, " ")
}

func sgGenreHints(performers []models.SGPerformer) []string {
	var hints []string
	for _, p := range performers {
		for _, g := range p.Genres {
			switch {
			case g.Name != "":
				hints = append(hints, g.Name)
			case g.Slug != "":
				hints = append(hints, strings.ReplaceAll(g.Slug, "-", " "))
			}
		}
	}
	return hints
}
