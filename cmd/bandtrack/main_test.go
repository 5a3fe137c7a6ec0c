// USA Band Track - Live Music Event Aggregation
// Copyright 2026 The USA Band Track Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Pradervand/USA-BAND-TRACK

package main

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Pradervand/USA-BAND-TRACK/internal/config"
	"github.com/Pradervand/USA-BAND-TRACK/internal/database"
	"github.com/Pradervand/USA-BAND-TRACK/internal/models"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "none.yaml"))
	t.Setenv("DUCKDB_PATH", filepath.Join(t.TempDir(), "events.duckdb"))
	t.Setenv("LOG_LEVEL", "disabled")
}

func TestMigrateAndList(t *testing.T) {
	isolate(t)

	out, err := execute(t, "migrate")
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if !strings.Contains(out, "schema version 2") {
		t.Errorf("migrate output missing version:\n%s", out)
	}
	if !strings.Contains(out, "add_image") {
		t.Errorf("migrate output missing history:\n%s", out)
	}

	out, err = execute(t, "list", "--state", "ca", "--source", "sg")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "0 events") {
		t.Errorf("list output = %q", out)
	}
}

func TestReset(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "reset.duckdb")
	t.Setenv("DUCKDB_PATH", path)

	dbCfg := config.Default().Database
	dbCfg.Path = path
	db, err := database.New(&dbCfg)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_, err = db.InsertEventIfAbsent(context.Background(), &models.Event{
		ID: "tm_1", Artist: "Sleep", Genre: "Doom", Venue: "The Fillmore", City: "San Francisco",
		State: "CA", Date: "2026-07-04", URL: "https://example.test/1", Source: models.SourceTicketmaster,
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if _, err := execute(t, "reset"); !errors.Is(err, errResetUnconfirmed) {
		t.Fatalf("reset without --yes: err = %v", err)
	}

	out, err := execute(t, "reset", "--yes")
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if !strings.Contains(out, "removed 1 events") {
		t.Errorf("reset output = %q", out)
	}

	out, err = execute(t, "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "0 events") {
		t.Errorf("list after reset = %q", out)
	}
}

func TestListRejectsBadFilter(t *testing.T) {
	isolate(t)

	if _, err := execute(t, "list", "--source", "eventbrite"); err == nil {
		t.Error("expected error for unknown source")
	}
	if _, err := execute(t, "list", "--state", "CAL"); err == nil {
		t.Error("expected error for a three-letter state")
	}
}

func TestConfigFlagMissingFile(t *testing.T) {
	isolate(t)
	if _, err := execute(t, "--config", filepath.Join(t.TempDir(), "nope.yaml"), "list"); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestArgValidation(t *testing.T) {
	isolate(t)
	tests := []struct {
		name string
		args []string
	}{
		{"preview needs a source", []string{"preview"}},
		{"run takes at most one source", []string{"run", "tm", "sg"}},
		{"preview unknown source", []string{"preview", "bandcamp"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := execute(t, tt.args...); err == nil {
				t.Errorf("%v: expected error", tt.args)
			}
		})
	}
}

func TestBuildFilter(t *testing.T) {
	f, err := buildFilter(" az ", "Concerts-Metal", " doom ")
	if err != nil {
		t.Fatalf("buildFilter: %v", err)
	}
	want := models.EventFilter{State: "AZ", Source: models.SourceConcertsMetal, Genre: "doom"}
	if f != want {
		t.Errorf("filter = %+v, want %+v", f, want)
	}

	if _, err := buildFilter("", "", ""); err != nil {
		t.Errorf("empty filter: %v", err)
	}
}

func TestGenreSummary(t *testing.T) {
	events := []models.Event{
		{State: "CA", Genre: "Black Metal"},
		{State: "CA", Genre: "Black Metal"},
		{State: "CA", Genre: "Punk"},
		{State: "WA", Genre: ""},
	}
	got := genreSummary(events)
	if got["CA"]["Black Metal"] != 2 || got["CA"]["Punk"] != 1 {
		t.Errorf("CA counts = %v", got["CA"])
	}
	if got["WA"][models.Unknown] != 1 {
		t.Errorf("empty genre should count as %s: %v", models.Unknown, got["WA"])
	}
}

func TestPrintSummaryOrdersByCount(t *testing.T) {
	events := []models.Event{
		{State: "WA", Genre: "Doom"},
		{State: "CA", Genre: "Punk"},
		{State: "CA", Genre: "Thrash"},
		{State: "CA", Genre: "Thrash"},
	}
	var buf bytes.Buffer
	if err := printSummary(&buf, events); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("lines = %q", lines)
	}
	order := []string{"Thrash", "Punk", "Doom"}
	for i, g := range order {
		if !strings.Contains(lines[i+1], g) {
			t.Errorf("line %d = %q, want %s", i+1, lines[i+1], g)
		}
	}
}

func TestPrintReport(t *testing.T) {
	start := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	report := &models.RunReport{
		RunID:      "abc",
		StartedAt:  start,
		FinishedAt: start.Add(1500 * time.Millisecond),
		TotalAdded: 3,
		Committed:  5,
		PurgeRan:   true,
		Purged:     2,
		Results: []models.SourceResult{
			{Source: models.SourceTicketmaster, Added: 3},
			{Source: models.SourceSeatGeek, Added: 2, Error: "quota exceeded", ErrorClass: "source"},
		},
	}
	var buf bytes.Buffer
	if err := printReport(&buf, report); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"outcome=partial", "added=3", "committed=5", "purged=2", "took=1.5s", "source: quota exceeded"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	if err := printReport(&buf, nil); err != nil || buf.Len() != 0 {
		t.Errorf("nil report wrote %q, err %v", buf.String(), err)
	}
}
