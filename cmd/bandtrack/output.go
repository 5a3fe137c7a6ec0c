// USA Band Track - Live Music Event Aggregation
// Copyright 2026 The USA Band Track Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Pradervand/USA-BAND-TRACK

package main

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/Pradervand/USA-BAND-TRACK/internal/database"
	"github.com/Pradervand/USA-BAND-TRACK/internal/models"
)

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func printReport(w io.Writer, r *models.RunReport) error {
	if r == nil {
		return nil
	}
	fmt.Fprintf(w, "run %s  outcome=%s  added=%d", r.RunID, r.Outcome(), r.TotalAdded)
	if r.Committed != r.TotalAdded {
		fmt.Fprintf(w, "  committed=%d", r.Committed)
	}
	if r.PurgeRan {
		fmt.Fprintf(w, "  purged=%d", r.Purged)
	}
	fmt.Fprintf(w, "  took=%s\n", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))

	tw := newTable(w)
	fmt.Fprintln(tw, "SOURCE\tADDED\tDURATION\tERROR")
	for i := range r.Results {
		printResultRow(tw, &r.Results[i])
	}
	return tw.Flush()
}

func printResult(w io.Writer, res *models.SourceResult) error {
	if res == nil {
		return nil
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "SOURCE\tADDED\tDURATION\tERROR")
	printResultRow(tw, res)
	return tw.Flush()
}

func printResultRow(w io.Writer, res *models.SourceResult) {
	errText := "-"
	if res.Failed() {
		errText = res.ErrorClass + ": " + res.Error
	}
	fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", res.Source, res.Added, res.Duration.Round(time.Millisecond), errText)
}

func printEvents(w io.Writer, events []models.Event) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "DATE\tSTATE\tCITY\tARTIST\tGENRE\tVENUE\tSOURCE")
	for i := range events {
		e := &events[i]
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n", e.Date, e.State, e.City, e.Artist, e.Genre, e.Venue, e.Source)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%d events\n", len(events))
	return err
}

// genreSummary counts events per state, then per genre.
func genreSummary(events []models.Event) map[string]map[string]int {
	out := make(map[string]map[string]int)
	for i := range events {
		g := events[i].Genre
		if g == "" {
			g = models.Unknown
		}
		byGenre, ok := out[events[i].State]
		if !ok {
			byGenre = make(map[string]int)
			out[events[i].State] = byGenre
		}
		byGenre[g]++
	}
	return out
}

func printSummary(w io.Writer, events []models.Event) error {
	summary := genreSummary(events)
	states := make([]string, 0, len(summary))
	for st := range summary {
		states = append(states, st)
	}
	sort.Strings(states)

	tw := newTable(w)
	fmt.Fprintln(tw, "STATE\tGENRE\tCOUNT")
	for _, st := range states {
		genres := make([]string, 0, len(summary[st]))
		for g := range summary[st] {
			genres = append(genres, g)
		}
		// most common first
		sort.Slice(genres, func(i, j int) bool {
			ci, cj := summary[st][genres[i]], summary[st][genres[j]]
			if ci != cj {
				return ci > cj
			}
			return genres[i] < genres[j]
		})
		for _, g := range genres {
			fmt.Fprintf(tw, "%s\t%s\t%d\n", st, g, summary[st][g])
		}
	}
	return tw.Flush()
}

func printMigrations(w io.Writer, version int, history []database.Migration) error {
	fmt.Fprintf(w, "schema version %d\n", version)
	tw := newTable(w)
	fmt.Fprintln(tw, "VERSION\tNAME\tAPPLIED\tDESCRIPTION")
	for _, m := range history {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", m.Version, m.Name, m.AppliedAt.UTC().Format(time.RFC3339), m.Description)
	}
	return tw.Flush()
}
