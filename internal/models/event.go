// USA Band Track - Live Music Event Aggregation
// Copyright 2026 The USA Band Track Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Pradervand/USA-BAND-TRACK

// Package models defines the normalized event record, the per-source raw
// payload shapes, run reports, and API response envelopes.
package models

import (
	"fmt"
	"strings"
	"time"
)

// Placeholder values for optional fields a source did not provide.
const (
	UnknownVenue = "Unknown Venue"
	Unknown      = "Unknown"
)

// Event is one normalized live-music listing.
//
// ID is "<prefix>_<native id>" and is the only deduplication key: the first
// write wins and a stored event is never updated. Date is a calendar date
// (YYYY-MM-DD), never a timestamp.
type Event struct {
	ID         string    `json:"id" validate:"required,max=256"`
	Artist     string    `json:"artist" validate:"required"`
	Genre      string    `json:"genre"`
	Venue      string    `json:"venue" validate:"required"`
	City       string    `json:"city" validate:"required"`
	State      string    `json:"state" validate:"required,statecode"`
	Date       string    `json:"date" validate:"required,isodate"`
	URL        string    `json:"url" validate:"omitempty,url"`
	Source     Source    `json:"source" validate:"required,oneof=Ticketmaster SeatGeek Concerts-Metal"`
	Image      string    `json:"image,omitempty"`
	InsertedAt time.Time `json:"inserted_at"`
}

// EventFilter narrows ListEvents. Empty fields match everything.
type EventFilter struct {
	State  string `json:"state,omitempty" validate:"omitempty,statecode"`
	Source Source `json:"source,omitempty" validate:"omitempty,oneof=Ticketmaster SeatGeek Concerts-Metal"`
	Genre  string `json:"genre,omitempty" validate:"omitempty,max=64"` // case-insensitive substring
}

// RetentionWindow is an inclusive date range in YYYY-MM-DD form.
type RetentionWindow struct {
	Start string `json:"start" validate:"required,isodate"`
	End   string `json:"end" validate:"required,isodate"`
}

// Contains reports whether date falls inside the window. ISO dates compare
// lexically in calendar order.
func (w RetentionWindow) Contains(date string) bool {
	return date >= w.Start && date <= w.End
}

// String renders the window as "start..end".
func (w RetentionWindow) String() string {
	return w.Start + ".." + w.End
}

// Source tags which adapter produced an event.
type Source string

const (
	SourceTicketmaster  Source = "Ticketmaster"
	SourceSeatGeek      Source = "SeatGeek"
	SourceConcertsMetal Source = "Concerts-Metal"
)

// AllSources lists the sources in their fixed run order.
var AllSources = []Source{SourceTicketmaster, SourceSeatGeek, SourceConcertsMetal}

// Prefix returns the ID prefix for the source.
func (s Source) Prefix() string {
	switch s {
	case SourceTicketmaster:
		return "tm"
	case SourceSeatGeek:
		return "sg"
	case SourceConcertsMetal:
		return "cm"
	default:
		return ""
	}
}

// Key is the lower-case slug used on the command line and in API paths.
func (s Source) Key() string {
	switch s {
	case SourceTicketmaster:
		return "ticketmaster"
	case SourceSeatGeek:
		return "seatgeek"
	case SourceConcertsMetal:
		return "concertsmetal"
	default:
		return strings.ToLower(string(s))
	}
}

// ParseSource accepts a slug, prefix, or display name in any case.
func ParseSource(s string) (Source, error) {
	needle := strings.ToLower(strings.TrimSpace(s))
	for _, src := range AllSources {
		if needle == src.Key() || needle == src.Prefix() || needle == strings.ToLower(string(src)) {
			return src, nil
		}
	}
	return "", fmt.Errorf("unknown source %q (want one of ticketmaster, seatgeek, concertsmetal)", s)
}

// EventID builds the store key for a source-native identifier.
func EventID(src Source, nativeID string) string {
	return src.Prefix() + "_" + nativeID
}
