// USA Band Track - Live Music Event Aggregation
// Copyright 2026 The USA Band Track Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Pradervand/USA-BAND-TRACK

// Package config loads USA Band Track configuration.
//
// Configuration is layered (defaults, then an optional YAML file, then
// environment variables) and grouped by concern:
//
//  1. Sources: credentials and pagination limits for each external source
//     (Ticketmaster Discovery, SeatGeek, concerts-metal.com).
//  2. Region and Window: the operating states and the date window that
//     bounds both the queries and the retention purge.
//  3. HTTP: the transport identity, timeout and retry policy shared by
//     every adapter.
//  4. Storage and Serving: DuckDB file, schedule, API server, logging.
//
// Example:
//
//	cfg, err := config.LoadWithKoanf()
//	if err != nil {
//	    return err
//	}
//	db, err := database.New(&cfg.Database)
//
// Missing source credentials are NOT load errors. Each adapter reports them
// as a configuration error when it is invoked, so one absent key only
// disables that source.
//
// Config is immutable after load and safe for concurrent reads.
package config

import (
	"fmt"
	"time"
)

// DateLayout is the calendar date format used by the window and by events.
const DateLayout = "2006-01-02"

// MinScheduleInterval keeps scheduled runs from hammering the sources.
const MinScheduleInterval = 15 * time.Minute

// Config is the root configuration.
type Config struct {
	Sources  SourcesConfig  `koanf:"sources"`
	Region   RegionConfig   `koanf:"region"`
	Window   WindowConfig   `koanf:"window"`
	HTTP     HTTPConfig     `koanf:"http"`
	Database DatabaseConfig `koanf:"database"`
	Schedule ScheduleConfig `koanf:"schedule"`
	Server   ServerConfig   `koanf:"server"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// SourcesConfig groups per-source settings.
type SourcesConfig struct {
	Ticketmaster  TicketmasterConfig  `koanf:"ticketmaster"`
	SeatGeek      SeatGeekConfig      `koanf:"seatgeek"`
	ConcertsMetal ConcertsMetalConfig `koanf:"concertsmetal"`
}

// TicketmasterConfig configures the Discovery API adapter.
//
// When GenreIDs is non-empty the adapter queries once per state with a
// genreId filter; otherwise it queries per state and keyword.
type TicketmasterConfig struct {
	Enabled  bool          `koanf:"enabled"`
	APIKey   string        `koanf:"api_key"`
	BaseURL  string        `koanf:"base_url"`
	Keywords []string      `koanf:"keywords"`
	GenreIDs []string      `koanf:"genre_ids"`
	PageSize int           `koanf:"page_size"`
	MaxPages int           `koanf:"max_pages"`
	Delay    time.Duration `koanf:"delay"` // between page requests
}

// SeatGeekConfig configures the SeatGeek events API adapter.
type SeatGeekConfig struct {
	Enabled  bool          `koanf:"enabled"`
	ClientID string        `koanf:"client_id"`
	BaseURL  string        `koanf:"base_url"`
	PerPage  int           `koanf:"per_page"`
	MaxPages int           `koanf:"max_pages"`
	Delay    time.Duration `koanf:"delay"`
}

// ConcertsMetalConfig configures the concerts-metal.com crawler.
type ConcertsMetalConfig struct {
	Enabled     bool          `koanf:"enabled"`
	BaseURL     string        `koanf:"base_url"`
	Concurrency int           `koanf:"concurrency"` // detail pages in flight
	Throttle    time.Duration `koanf:"throttle"`    // pause after each detail fetch
}

// RegionConfig lists the operating states (two-letter codes).
type RegionConfig struct {
	States []string `koanf:"states"`
}

// WindowConfig is the inclusive date range for queries and retention.
type WindowConfig struct {
	Start string `koanf:"start"`
	End   string `koanf:"end"`
}

// Bounds parses Start and End.
func (w WindowConfig) Bounds() (start, end time.Time, err error) {
	start, err = time.Parse(DateLayout, w.Start)
	if err != nil {
		return start, end, fmt.Errorf("window.start %q: %w", w.Start, err)
	}
	end, err = time.Parse(DateLayout, w.End)
	if err != nil {
		return start, end, fmt.Errorf("window.end %q: %w", w.End, err)
	}
	return start, end, nil
}

// Year returns the calendar year of the window start, or 0 when unparsable.
func (w WindowConfig) Year() int {
	start, err := time.Parse(DateLayout, w.Start)
	if err != nil {
		return 0
	}
	return start.Year()
}

// HTTPConfig is the transport policy shared by all adapters.
type HTTPConfig struct {
	Timeout        time.Duration `koanf:"timeout"`
	RetryLimit     int           `koanf:"retry_limit"` // retries after the first attempt
	RetryDelay     time.Duration `koanf:"retry_delay"`
	UserAgent      string        `koanf:"user_agent"`
	AcceptLanguage string        `koanf:"accept_language"`
}

// DatabaseConfig holds DuckDB settings.
type DatabaseConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"` // 0 = runtime.NumCPU()
}

// ScheduleConfig controls the periodic full run in serve mode.
type ScheduleConfig struct {
	Enabled      bool          `koanf:"enabled"`
	Interval     time.Duration `koanf:"interval"`
	RunOnStartup bool          `koanf:"run_on_startup"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Timeout         time.Duration `koanf:"timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	CacheTTL        time.Duration `koanf:"cache_ttl"`
	SyncRateLimit   int           `koanf:"sync_rate_limit"` // trigger requests per minute per client
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}
