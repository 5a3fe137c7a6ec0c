// USA Band Track - Live Music Event Aggregation
// Copyright 2026 The USA Band Track Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Pradervand/USA-BAND-TRACK

package models

import "time"

// SourceResult is the outcome of one adapter invocation. Added counts rows
// committed before any failure.
type SourceResult struct {
	Source     Source        `json:"source"`
	Added      int           `json:"added"`
	Error      string        `json:"error,omitempty"`
	ErrorClass string        `json:"error_class,omitempty"` // source, config, storage, panic, other
	Duration   time.Duration `json:"duration_ns"`
}

// Failed reports whether the adapter ended with an error.
func (r SourceResult) Failed() bool {
	return r.Error != ""
}

// RunReport summarizes a full aggregation run.
type RunReport struct {
	RunID      string         `json:"run_id"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Results    []SourceResult `json:"results"`
	TotalAdded int            `json:"total_added"` // successful adapters only
	Committed  int            `json:"committed"`   // rows written, failed adapters included
	Purged     int64          `json:"purged"`
	PurgeRan   bool           `json:"purge_ran"`
	Halted     bool           `json:"halted,omitempty"` // a storage error stopped the run
}

// AddResult folds res into the totals. A failed adapter's rows stay committed
// but do not count toward TotalAdded.
func (r *RunReport) AddResult(res SourceResult) {
	r.Results = append(r.Results, res)
	r.Committed += res.Added
	if !res.Failed() {
		r.TotalAdded += res.Added
	}
}

// Failures returns the results that carry an error.
func (r *RunReport) Failures() []SourceResult {
	var out []SourceResult
	for _, res := range r.Results {
		if res.Failed() {
			out = append(out, res)
		}
	}
	return out
}

// Outcome is "ok", "partial" (some adapters failed), or "failed" (halted).
func (r *RunReport) Outcome() string {
	switch {
	case r.Halted:
		return "failed"
	case len(r.Failures()) > 0:
		return "partial"
	default:
		return "ok"
	}
}
