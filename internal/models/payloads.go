// USA Band Track - Live Music Event Aggregation
// Copyright 2026 The USA Band Track Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Pradervand/USA-BAND-TRACK

package models

// Raw source payloads. Each source gets its own explicit shape; adapters map
// these onto Event through per-source functions, never through loose maps.

// TMSearchResponse is a Ticketmaster Discovery v2 events page.
type TMSearchResponse struct {
	Embedded struct {
		Events []TMEvent `json:"events"`
	} `json:"_embedded"`
	Page TMPage `json:"page"`
}

// TMPage is the Discovery pagination block.
type TMPage struct {
	Size          int `json:"size"`
	TotalElements int `json:"totalElements"`
	TotalPages    int `json:"totalPages"`
	Number        int `json:"number"`
}

// TMEvent is one Discovery event.
type TMEvent struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	URL   string `json:"url"`
	Dates struct {
		Start struct {
			LocalDate string `json:"localDate"`
			LocalTime string `json:"localTime"`
		} `json:"start"`
	} `json:"dates"`
	Images          []TMImage          `json:"images"`
	Classifications []TMClassification `json:"classifications"`
	Embedded        struct {
		Venues []TMVenue `json:"venues"`
	} `json:"_embedded"`
}

// TMImage is one artwork variant.
type TMImage struct {
	URL    string `json:"url"`
	Ratio  string `json:"ratio"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// TMNamed is the {id, name} pair Discovery uses for taxonomy nodes.
type TMNamed struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TMClassification is a segment/genre/subGenre triple.
type TMClassification struct {
	Primary  bool    `json:"primary"`
	Segment  TMNamed `json:"segment"`
	Genre    TMNamed `json:"genre"`
	SubGenre TMNamed `json:"subGenre"`
}

// TMVenue is a venue from the event's _embedded block.
type TMVenue struct {
	Name string `json:"name"`
	City struct {
		Name string `json:"name"`
	} `json:"city"`
	State struct {
		StateCode string `json:"stateCode"`
	} `json:"state"`
}

// SGSearchResponse is a SeatGeek /2/events page.
type SGSearchResponse struct {
	Events []SGEvent `json:"events"`
	Meta   SGMeta    `json:"meta"`
}

// SGMeta is SeatGeek pagination. HasNext is a pointer because older
// responses omit it and fall back to total/per_page arithmetic.
type SGMeta struct {
	Total   int   `json:"total"`
	Page    int   `json:"page"`
	PerPage int   `json:"per_page"`
	HasNext *bool `json:"has_next"`
}

// SGEvent is one SeatGeek event.
type SGEvent struct {
	ID            int64         `json:"id"`
	Title         string        `json:"title"`
	URL           string        `json:"url"`
	DatetimeLocal string        `json:"datetime_local"`
	Venue         SGVenue       `json:"venue"`
	Performers    []SGPerformer `json:"performers"`
}

// SGVenue is the venue block of a SeatGeek event.
type SGVenue struct {
	Name  string `json:"name"`
	City  string `json:"city"`
	State string `json:"state"`
}

// SGPerformer is one billed performer.
type SGPerformer struct {
	Name   string    `json:"name"`
	Image  string    `json:"image"`
	Genres []SGGenre `json:"genres"`
}

// SGGenre is a performer genre tag.
type SGGenre struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// CMListing is one row parsed from a concerts-metal.com index page, before
// detail enrichment.
type CMListing struct {
	Href   string
	Artist string
	Date   string // YYYY-MM-DD
	City   string
	Venue  string
	State  string
}

// CMDetail is what a concerts-metal.com event page contributes.
type CMDetail struct {
	Genre string
	Image string
}
