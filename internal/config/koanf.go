// USA Band Track - Live Music Event Aggregation
// Copyright 2026 The USA Band Track Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Pradervand/USA-BAND-TRACK

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists config file locations in priority order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/bandtrack/config.yaml",
	"/etc/bandtrack/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultStates is the operating region.
var DefaultStates = []string{"CA", "AZ", "UT", "CO", "WY", "MT", "WA"}

// DefaultKeywords is the Ticketmaster keyword search list. Each keyword is
// a separate query per state; results are kept only when the event name
// contains one of them.
var DefaultKeywords = []string{
	"metal", "punk", "goth", "hardcore", "darkwave", "industrial", "thrash", "doom",
	// black metal
	"black metal", "atmospheric black metal", "raw black metal", "depressive black metal", "dsbm",
	"melodic black metal", "symphonic black metal", "post-black metal", "ambient black metal",
	"blackened death metal", "blackened thrash", "blackened hardcore", "folk black metal",
	"pagan black metal", "viking metal", "occult black metal", "avant-garde black metal", "industrial black metal",
	// doom, sludge, drone
	"doom metal", "stoner metal", "sludge metal", "funeral doom", "death doom", "black doom", "drone", "drone metal",
	// punk, goth, darkwave
	"hardcore punk", "crust", "d-beat", "anarcho punk", "post-punk", "dark post-punk", "coldwave",
	"goth rock", "deathrock", "minimal wave", "synthwave", "new wave",
	// industrial, electronic
	"ebm", "electro-industrial", "power electronics", "industrial metal", "aggrotech",
	"dark electro", "noise", "martial industrial", "ritual ambient", "dark ambient", "cyberpunk", "techno-industrial",
	// atmospheric, experimental
	"post-metal", "shoegaze", "blackgaze", "post-rock", "ambient", "noise rock", "experimental", "avant-garde",
}

// DefaultUserAgent is sent with every outbound request.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

func defaultConfig() *Config {
	return &Config{
		Sources: SourcesConfig{
			Ticketmaster: TicketmasterConfig{
				Enabled:  true,
				BaseURL:  "https://app.ticketmaster.com",
				Keywords: append([]string(nil), DefaultKeywords...),
				PageSize: 100,
				MaxPages: 5,
				Delay:    250 * time.Millisecond, // Discovery allows 5 req/s
			},
			SeatGeek: SeatGeekConfig{
				Enabled:  true,
				BaseURL:  "https://api.seatgeek.com",
				PerPage:  100,
				MaxPages: 20,
				Delay:    300 * time.Millisecond,
			},
			ConcertsMetal: ConcertsMetalConfig{
				Enabled:     true,
				BaseURL:     "https://www.concerts-metal.com",
				Concurrency: 5,
				Throttle:    time.Second,
			},
		},
		Region: RegionConfig{States: append([]string(nil), DefaultStates...)},
		Window: WindowConfig{
			Start: "2026-07-01",
			End:   "2026-07-31",
		},
		HTTP: HTTPConfig{
			Timeout:        10 * time.Second,
			RetryLimit:     2,
			RetryDelay:     2 * time.Second,
			UserAgent:      DefaultUserAgent,
			AcceptLanguage: "en-US,en;q=0.9",
		},
		Database: DatabaseConfig{
			Path:      "data/events.duckdb",
			MaxMemory: "512MB",
			Threads:   0,
		},
		Schedule: ScheduleConfig{
			Enabled:      false,
			Interval:     6 * time.Hour,
			RunOnStartup: false,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8420,
			Timeout:         30 * time.Second,
			CORSOrigins:     []string{"*"},
			CacheTTL:        time.Minute,
			SyncRateLimit:   6,
			ShutdownTimeout: 15 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadWithKoanf loads configuration in three layers, later layers winning:
//  1. built-in defaults
//  2. optional YAML file (CONFIG_PATH or DefaultConfigPaths)
//  3. mapped environment variables
//
// The result is validated before it is returned.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Default returns the built-in configuration without reading files or env.
func Default() *Config {
	cfg := defaultConfig()
	cfg.normalize()
	return cfg
}

// normalize upper-cases state codes and trims credentials pasted with whitespace.
func (c *Config) normalize() {
	for i, st := range c.Region.States {
		c.Region.States[i] = strings.ToUpper(strings.TrimSpace(st))
	}
	c.Sources.Ticketmaster.APIKey = strings.TrimSpace(c.Sources.Ticketmaster.APIKey)
	c.Sources.SeatGeek.ClientID = strings.TrimSpace(c.Sources.SeatGeek.ClientID)
	c.Sources.Ticketmaster.BaseURL = strings.TrimRight(c.Sources.Ticketmaster.BaseURL, "/")
	c.Sources.SeatGeek.BaseURL = strings.TrimRight(c.Sources.SeatGeek.BaseURL, "/")
	c.Sources.ConcertsMetal.BaseURL = strings.TrimRight(c.Sources.ConcertsMetal.BaseURL, "/")
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths are parsed from comma-separated strings when set via env.
var sliceConfigPaths = []string{
	"region.states",
	"sources.ticketmaster.keywords",
	"sources.ticketmaster.genre_ids",
	"server.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps environment variable names (lower-cased) to config paths.
// Unmapped variables are ignored.
var envMappings = map[string]string{
	// Sources
	"tm_api_key":         "sources.ticketmaster.api_key",
	"tm_enabled":         "sources.ticketmaster.enabled",
	"tm_base_url":        "sources.ticketmaster.base_url",
	"tm_keywords":        "sources.ticketmaster.keywords",
	"tm_genre_ids":       "sources.ticketmaster.genre_ids",
	"tm_page_size":       "sources.ticketmaster.page_size",
	"tm_max_pages":       "sources.ticketmaster.max_pages",
	"tm_delay":           "sources.ticketmaster.delay",
	"seatgeek_id":        "sources.seatgeek.client_id",
	"seatgeek_enabled":   "sources.seatgeek.enabled",
	"seatgeek_base_url":  "sources.seatgeek.base_url",
	"seatgeek_per_page":  "sources.seatgeek.per_page",
	"seatgeek_max_pages": "sources.seatgeek.max_pages",
	"seatgeek_delay":     "sources.seatgeek.delay",
	"cm_enabled":         "sources.concertsmetal.enabled",
	"cm_base_url":        "sources.concertsmetal.base_url",
	"cm_concurrency":     "sources.concertsmetal.concurrency",
	"cm_throttle":        "sources.concertsmetal.throttle",

	// Region and window
	"region_states": "region.states",
	"window_start":  "window.start",
	"window_end":    "window.end",

	// Transport
	"http_timeout":         "http.timeout",
	"http_retry_limit":     "http.retry_limit",
	"http_retry_delay":     "http.retry_delay",
	"http_user_agent":      "http.user_agent",
	"http_accept_language": "http.accept_language",

	// Database
	"duckdb_path":       "database.path",
	"duckdb_max_memory": "database.max_memory",
	"duckdb_threads":    "database.threads",

	// Schedule
	"schedule_enabled":        "schedule.enabled",
	"schedule_interval":       "schedule.interval",
	"schedule_run_on_startup": "schedule.run_on_startup",

	// Server
	"server_host":      "server.host",
	"server_port":      "server.port",
	"server_timeout":   "server.timeout",
	"cors_origins":     "server.cors_origins",
	"cache_ttl":        "server.cache_ttl",
	"sync_rate_limit":  "server.sync_rate_limit",
	"shutdown_timeout": "server.shutdown_timeout",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps TM_API_KEY to sources.ticketmaster.api_key and so on.
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
