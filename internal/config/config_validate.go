// USA Band Track - Live Music Event Aggregation
// Copyright 2026 The USA Band Track Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Pradervand/USA-BAND-TRACK

package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/Pradervand/USA-BAND-TRACK/internal/logging"
)

// Validate checks structural settings. Source credentials are checked later,
// by each adapter, so a missing key disables one source instead of the process.
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateRegion,
		c.validateWindow,
		c.validateSources,
		c.validateHTTP,
		c.validateDatabase,
		c.validateSchedule,
		c.validateServer,
		c.validateLogging,
	}
	for _, v := range validators {
		if err := v(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateRegion() error {
	if len(c.Region.States) == 0 {
		return fmt.Errorf("region.states must list at least one state code")
	}
	seen := make(map[string]bool, len(c.Region.States))
	for _, st := range c.Region.States {
		if len(st) != 2 || strings.ToUpper(st) != st || !isLetters(st) {
			return fmt.Errorf("region.states: %q is not a two-letter state code", st)
		}
		if seen[st] {
			return fmt.Errorf("region.states: %q listed twice", st)
		}
		seen[st] = true
	}
	return nil
}

func isLetters(s string) bool {
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

func (c *Config) validateWindow() error {
	start, end, err := c.Window.Bounds()
	if err != nil {
		return err
	}
	if end.Before(start) {
		return fmt.Errorf("window.end (%s) is before window.start (%s)", c.Window.End, c.Window.Start)
	}
	return nil
}

func (c *Config) validateSources() error {
	tm := c.Sources.Ticketmaster
	if tm.Enabled {
		if err := validateHTTPURL(tm.BaseURL, "sources.ticketmaster.base_url"); err != nil {
			return err
		}
		if tm.PageSize < 1 || tm.PageSize > 200 {
			return fmt.Errorf("sources.ticketmaster.page_size must be between 1 and 200, got %d", tm.PageSize)
		}
		if tm.MaxPages < 1 {
			return fmt.Errorf("sources.ticketmaster.max_pages must be positive, got %d", tm.MaxPages)
		}
		if len(tm.Keywords) == 0 && len(tm.GenreIDs) == 0 {
			return fmt.Errorf("sources.ticketmaster needs keywords or genre_ids")
		}
	}

	sg := c.Sources.SeatGeek
	if sg.Enabled {
		if err := validateHTTPURL(sg.BaseURL, "sources.seatgeek.base_url"); err != nil {
			return err
		}
		if sg.PerPage < 1 {
			return fmt.Errorf("sources.seatgeek.per_page must be positive, got %d", sg.PerPage)
		}
		if sg.MaxPages < 1 {
			return fmt.Errorf("sources.seatgeek.max_pages must be positive, got %d", sg.MaxPages)
		}
	}

	cm := c.Sources.ConcertsMetal
	if cm.Enabled {
		if err := validateHTTPURL(cm.BaseURL, "sources.concertsmetal.base_url"); err != nil {
			return err
		}
		if cm.Concurrency < 1 {
			return fmt.Errorf("sources.concertsmetal.concurrency must be positive, got %d", cm.Concurrency)
		}
		if cm.Throttle < 0 {
			return fmt.Errorf("sources.concertsmetal.throttle must not be negative")
		}
	}
	return nil
}

func (c *Config) validateHTTP() error {
	if c.HTTP.Timeout <= 0 {
		return fmt.Errorf("http.timeout must be positive")
	}
	if c.HTTP.RetryLimit < 0 || c.HTTP.RetryLimit > 10 {
		return fmt.Errorf("http.retry_limit must be between 0 and 10, got %d", c.HTTP.RetryLimit)
	}
	if c.HTTP.RetryDelay < 0 {
		return fmt.Errorf("http.retry_delay must not be negative")
	}
	if c.HTTP.UserAgent == "" {
		return fmt.Errorf("http.user_agent is required")
	}
	return nil
}

func (c *Config) validateDatabase() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Database.Threads < 0 {
		return fmt.Errorf("database.threads must not be negative")
	}
	return nil
}

func (c *Config) validateSchedule() error {
	if c.Schedule.Enabled && c.Schedule.Interval < MinScheduleInterval {
		return fmt.Errorf("schedule.interval must be at least %s, got %s", MinScheduleInterval, c.Schedule.Interval)
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.SyncRateLimit < 1 {
		return fmt.Errorf("server.sync_rate_limit must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("logging.level %q is not a recognized level", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
	return nil
}

// validateHTTPURL requires an http(s) scheme and a host. Paths are allowed
// so tests can point adapters at a sub-path of a fake server.
func validateHTTPURL(rawURL, fieldName string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%s failed to parse URL: %w", fieldName, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s scheme must be http or https, got: %q", fieldName, parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%s host is required", fieldName)
	}
	if parsed.RawQuery != "" {
		return fmt.Errorf("%s should not contain query parameters", fieldName)
	}
	return nil
}
