// USA Band Track - Live Music Event Aggregation
// Copyright 2026 The USA Band Track Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Pradervand/USA-BAND-TRACK

/*
concertsmetal.go - Concerts-Metal HTML Crawler

Index pages:
  - one page per state: {base}/next_US-{ST}_{YEAR}.html
  - a missing or refused (400/401/403/429) index skips that state only
  - a concert is an anchor whose href starts with "concert_-_"
  - the text node before the anchor starts with the date as dd/mm/YYYY
  - the text node after it reads "@ City, Venue"

Enrichment:
  - listings outside the retention window or already stored are dropped first
  - remaining detail pages are fetched by a bounded errgroup, each task
    pausing for the throttle afterwards
  - a detail page that fails to load leaves genre "Unknown" and no image;
    enrichment failures never fail the crawl
*/

//nolint:staticcheck // File documentation, not package doc
package sync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/Pradervand/USA-BAND-TRACK/internal/config"
	"github.com/Pradervand/USA-BAND-TRACK/internal/genre"
	"github.com/Pradervand/USA-BAND-TRACK/internal/logging"
	"github.com/Pradervand/USA-BAND-TRACK/internal/metrics"
	"github.com/Pradervand/USA-BAND-TRACK/internal/models"
)

const (
	cmConcertPrefix = "concert_-_"
	cmDateLayout    = "02/01/2006"
	cmMusicGroup    = `div[itemtype="https://schema.org/MusicGroup"]`
)

// ConcertsMetalAdapter crawls the concerts-metal.com per-state listings.
type ConcertsMetalAdapter struct {
	cfg        config.ConcertsMetalConfig
	states     []string
	region     region
	window     models.RetentionWindow
	year       int
	fetcher    *Fetcher
	classifier *genre.Classifier
	limiter    *rate.Limiter
}

// NewConcertsMetalAdapter builds the crawler from the application config.
// The index year is taken from the retention window start.
func NewConcertsMetalAdapter(cfg *config.Config, classifier *genre.Classifier) *ConcertsMetalAdapter {
	cm := cfg.Sources.ConcertsMetal
	return &ConcertsMetalAdapter{
		cfg:        cm,
		states:     cfg.Region.States,
		region:     newRegion(cfg.Region.States),
		window:     windowFrom(cfg.Window),
		year:       cfg.Window.Year(),
		fetcher:    NewFetcher(models.SourceConcertsMetal, cfg.HTTP),
		classifier: classifier,
		limiter:    pageLimiter(cm.Throttle),
	}
}

func (a *ConcertsMetalAdapter) Name() string          { return models.SourceConcertsMetal.Key() }
func (a *ConcertsMetalAdapter) Source() models.Source { return models.SourceConcertsMetal }

// Validate needs no credentials; only the window must be usable.
func (a *ConcertsMetalAdapter) Validate() error {
	if a.cfg.BaseURL == "" {
		return &ConfigError{Source: a.Source(), Field: "sources.concertsmetal.base_url", Reason: "must not be empty"}
	}
	return validateWindow(a.Source(), a.window)
}

// FetchNew crawls every state index, enriches unseen listings and stores them.
func (a *ConcertsMetalAdapter) FetchNew(ctx context.Context, store EventStore) (int, error) {
	if err := a.Validate(); err != nil {
		return 0, err
	}

	var listings []models.CMListing
	for _, st := range a.states {
		if err := a.limiter.Wait(ctx); err != nil {
			return 0, err
		}
		found, err := a.crawlIndex(ctx, st)
		if err != nil {
			return 0, err
		}
		listings = append(listings, found...)
	}

	pending, err := a.selectPending(ctx, store, listings)
	if err != nil {
		return 0, err
	}

	details := a.enrich(ctx, pending)
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	added := 0
	for i := range pending {
		ok, err := persist(ctx, store, a.region, a.toEvent(&pending[i], details[i]))
		if err != nil {
			return added, err
		}
		if ok {
			added++
		}
	}

	logging.CtxInfo(ctx).Str("source", a.Name()).Int("listed", len(listings)).Int("enriched", len(pending)).Int("added", added).Msg("Concerts-Metal crawl complete")
	return added, nil
}

func (a *ConcertsMetalAdapter) indexURL(state string) string {
	return fmt.Sprintf("%s/next_US-%s_%d.html", a.cfg.BaseURL, state, a.year)
}

func (a *ConcertsMetalAdapter) crawlIndex(ctx context.Context, state string) ([]models.CMListing, error) {
	body, err := a.fetcher.Get(ctx, a.indexURL(state), nil)
	var srcErr *SourceError
	switch {
	case errors.As(err, &srcErr):
		// a refused index is a missing index; other states still crawl
		metrics.RecordIndexSkipped(a.Name(), state)
		logging.CtxWarn(ctx).Str("source", a.Name()).Str("state", state).Int("status", srcErr.Status).Msg("Index page rejected, skipping state")
		return nil, nil
	case err != nil:
		return nil, err
	case body == nil:
		logging.CtxWarn(ctx).Str("source", a.Name()).Str("state", state).Msg("No index page")
		return nil, nil
	}

	listings, err := parseCMIndex(decodeHTML(body), state)
	if err != nil {
		metrics.RecordEventSkipped(a.Name(), skipParse)
		logging.CtxWarn(ctx).Str("source", a.Name()).Str("state", state).Err(err).Msg("Failed to parse index page")
		return nil, nil
	}
	logging.CtxDebug(ctx).Str("source", a.Name()).Str("state", state).Int("listings", len(listings)).Msg("Parsed index page")
	return listings, nil
}

// parseCMIndex extracts listings from one state index page. Anchors whose
// neighbouring text does not have the expected shape are ignored.
func parseCMIndex(page, state string) ([]models.CMListing, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil, err
	}

	var out []models.CMListing
	doc.Find(`a[href^="` + cmConcertPrefix + `"]`).Each(func(_ int, s *goquery.Selection) {
		node := s.Get(0)
		href, _ := s.Attr("href")

		prev := strings.TrimSpace(siblingText(node.PrevSibling))
		if !strings.Contains(prev, "/") {
			return
		}
		date, err := time.Parse(cmDateLayout, strings.Fields(prev)[0])
		if err != nil {
			return
		}

		city, venue := models.Unknown, models.Unknown
		if next := siblingText(node.NextSibling); next != "" {
			parts := strings.Split(strings.TrimSpace(strings.ReplaceAll(next, "@", "")), ",")
			city = orDefault(parts[0], models.Unknown)
			if len(parts) >= 2 {
				venue = orDefault(parts[1], models.Unknown)
			}
		}

		out = append(out, models.CMListing{
			Href:   href,
			Artist: strings.TrimSpace(s.Text()),
			Date:   date.Format(config.DateLayout),
			City:   city,
			Venue:  venue,
			State:  state,
		})
	})
	return out, nil
}

// siblingText returns the text of a text node, or the text content of an
// element node. Nil yields "".
func siblingText(n *html.Node) string {
	if n == nil {
		return ""
	}
	if n.Type == html.TextNode {
		return n.Data
	}
	if n.Type != html.ElementNode {
		return ""
	}
	var buf bytes.Buffer
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		if c.Type == html.TextNode {
			buf.WriteString(c.Data)
		}
		for ch := c.FirstChild; ch != nil; ch = ch.NextSibling {
			walk(ch)
		}
	}
	walk(n)
	return buf.String()
}

// cmNativeID is the last '-' segment of href without the .html suffix.
func cmNativeID(href string) string {
	parts := strings.Split(href, "-")
	return strings.TrimSuffix(parts[len(parts)-1], ".html")
}

// selectPending drops listings outside the window, already stored, or
// repeated within this crawl.
func (a *ConcertsMetalAdapter) selectPending(ctx context.Context, store EventStore, listings []models.CMListing) ([]models.CMListing, error) {
	seen := make(map[string]struct{}, len(listings))
	var pending []models.CMListing
	for _, l := range listings {
		if !a.window.Contains(l.Date) {
			metrics.RecordEventSkipped(a.Name(), skipOutside)
			continue
		}
		id := models.EventID(a.Source(), cmNativeID(l.Href))
		if _, dup := seen[id]; dup {
			metrics.RecordEventSkipped(a.Name(), skipDuplicate)
			continue
		}
		seen[id] = struct{}{}

		exists, err := known(ctx, store, id)
		if err != nil {
			return nil, err
		}
		if exists {
			metrics.RecordEventSkipped(a.Name(), skipKnown)
			continue
		}
		pending = append(pending, l)
	}
	return pending, nil
}

// cmDetail is the outcome of one enrichment task.
type cmDetail struct {
	loaded bool
	models.CMDetail
}

// enrich fetches detail pages with bounded concurrency. Results line up
// with listings by index.
func (a *ConcertsMetalAdapter) enrich(ctx context.Context, listings []models.CMListing) []cmDetail {
	results := make([]cmDetail, len(listings))
	limit := a.cfg.Concurrency
	if limit <= 0 {
		limit = 1
	}

	var g errgroup.Group
	g.SetLimit(limit)
	for i := range listings {
		g.Go(func() error {
			results[i] = a.fetchDetail(ctx, a.detailURL(listings[i].Href))
			_ = sleepCtx(ctx, a.cfg.Throttle)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (a *ConcertsMetalAdapter) detailURL(href string) string {
	return a.cfg.BaseURL + "/" + strings.TrimPrefix(href, "/")
}

func (a *ConcertsMetalAdapter) fetchDetail(ctx context.Context, pageURL string) cmDetail {
	body, err := a.fetcher.Get(ctx, pageURL, nil)
	if err != nil || body == nil {
		metrics.EnrichmentFailures.WithLabelValues(a.Name()).Inc()
		if err != nil {
			logging.CtxDebug(ctx).Str("source", a.Name()).Str("url", pageURL).Err(err).Msg("Detail fetch failed")
		}
		return cmDetail{}
	}

	detail, err := parseCMDetail(decodeHTML(body))
	if err != nil {
		metrics.EnrichmentFailures.WithLabelValues(a.Name()).Inc()
		return cmDetail{}
	}
	return cmDetail{loaded: true, CMDetail: detail}
}

// parseCMDetail reads genre and image from an event page.
func parseCMDetail(page string) (models.CMDetail, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return models.CMDetail{}, err
	}

	var d models.CMDetail
	doc.Find(cmMusicGroup).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if g := lastDashPart(collapse(s.Text())); g != "" {
			d.Genre = g
			return false
		}
		return true
	})

	if d.Genre == "" {
		doc.Find("div.carousel-item").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			txt := collapse(s.Text())
			if len(txt) <= 3 || len(txt) >= 60 || strings.HasPrefix(txt, "202") {
				return true
			}
			if g := lastDashPart(txt); g != "" {
				d.Genre = g
			} else {
				d.Genre = txt
			}
			return false
		})
	}

	if content, ok := doc.Find(`meta[property="og:image"]`).First().Attr("content"); ok {
		d.Image = strings.TrimSpace(content)
	}
	return d, nil
}

// lastDashPart returns the trimmed text after the last '-', or "" when
// text has no '-'.
func lastDashPart(text string) string {
	i := strings.LastIndex(text, "-")
	if i < 0 {
		return ""
	}
	return strings.TrimSpace(text[i+1:])
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func (a *ConcertsMetalAdapter) toEvent(l *models.CMListing, d cmDetail) *models.Event {
	label := models.Unknown
	switch {
	case !d.loaded:
	case d.Genre != "":
		label = d.Genre
	default:
		if res := a.classifier.Classify(l.Artist, nil); res.Matched {
			label = res.Label
		}
	}

	return &models.Event{
		ID:     models.EventID(a.Source(), cmNativeID(l.Href)),
		Artist: l.Artist,
		Genre:  label,
		Venue:  l.Venue,
		City:   l.City,
		State:  l.State,
		Date:   l.Date,
		URL:    a.detailURL(l.Href),
		Source: a.Source(),
		Image:  d.Image,
	}
}
