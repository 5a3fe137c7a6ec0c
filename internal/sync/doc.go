// USA Band Track - Live Music Event Aggregation
// Copyright 2026 The USA Band Track Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Pradervand/USA-BAND-TRACK

/*
Package sync aggregates upcoming concerts from upstream sources into the
event store.

Components:
  - Manager: runs the adapters in a fixed order, isolates their failures,
    and applies the retention purge once per full run
  - TicketmasterAdapter: Discovery API, keyword or genre-id queries per state
  - SeatGeekAdapter: events API, concert taxonomy per state
  - ConcertsMetalAdapter: HTML crawl of per-state index pages with bounded
    concurrent detail enrichment
  - Fetcher: shared HTTP transport with retries, per-source circuit breaker
    and outcome metrics

Error Classes:
  - transient (network, 5xx, 408): retried, then treated as "no content"
  - parse: logged and counted, the record is skipped
  - *SourceError (400, 401, 403, 429): aborts the current adapter only
  - *ConfigError: missing credential, raised before any network I/O
  - ErrStorage: the store failed; the whole run halts

Every adapter reports the number of events it newly persisted. Duplicates
are suppressed by identifier at the store, so runs are idempotent.
*/
package sync
