// USA Band Track - Live Music Event Aggregation
// Copyright 2026 The USA Band Track Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Pradervand/USA-BAND-TRACK

package models

import "time"

// APIResponse is the envelope for every JSON API response.
//
//	{
//	  "status": "success",
//	  "data": [...],
//	  "metadata": {"timestamp": "2026-07-01T12:00:00Z", "count": 42, "cached": true}
//	}
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata carries response timing and cache information.
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
	Count       int       `json:"count,omitempty"`
	Cached      bool      `json:"cached,omitempty"`
}

// APIError is a machine-readable error body.
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// HealthStatus is returned by the health endpoint.
type HealthStatus struct {
	Status          string     `json:"status"`
	Version         string     `json:"version"`
	DatabaseOK      bool       `json:"database_connected"`
	SchemaVersion   int        `json:"schema_version"`
	LastRun         *time.Time `json:"last_run,omitempty"`
	WebSocketClient int        `json:"websocket_clients"`
	Uptime          float64    `json:"uptime_seconds"`
}

// StoreStats summarizes store contents for the stats endpoint.
type StoreStats struct {
	Total    int64            `json:"total"`
	BySource map[string]int64 `json:"by_source"`
	Window   RetentionWindow  `json:"window"`
	LastRun  *RunReport       `json:"last_run,omitempty"`
}
