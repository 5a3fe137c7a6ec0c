// USA Band Track - Live Music Event Aggregation
// Copyright 2026 The USA Band Track Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Pradervand/USA-BAND-TRACK

// Command bandtrack aggregates upcoming heavy-music concerts in the western
// United States from Ticketmaster, SeatGeek and concerts-metal.com into a
// local DuckDB event store.
//
// # Commands
//
//	bandtrack run [source]       one aggregation run, all sources or just one
//	bandtrack preview <source>   fetch without persisting and print the result
//	bandtrack list               print stored events (--state, --source, --genre)
//	bandtrack purge              remove events outside the retention window
//	bandtrack migrate            apply schema migrations and print the history
//	bandtrack serve              read API, websocket feed and scheduled runs
//
// # Configuration
//
// Settings come from built-in defaults, then a YAML file (--config or
// CONFIG_PATH), then environment variables:
//
//	export TM_API_KEY=your-ticketmaster-key
//	export SEATGEEK_ID=your-seatgeek-client-id
//	bandtrack run
//
// A missing credential only fails its own source; the others still run.
//
// # Signal Handling
//
// SIGINT and SIGTERM cancel the current run. Rows already inserted stay
// committed. In serve mode the supervisor tree stops the HTTP server, the
// websocket hub and the scheduler, then the database is closed.
package main

import (
	"os"
)

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
