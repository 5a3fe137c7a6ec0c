// USA Band Track - Live Music Event Aggregation
// Copyright 2026 The USA Band Track Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Pradervand/USA-BAND-TRACK

package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/Pradervand/USA-BAND-TRACK/internal/models"
)

var (
	// ErrStorage marks failures of the event store. It halts a full run.
	ErrStorage = errors.New("event store failure")

	// ErrRunInProgress is returned when a run is requested while another is active.
	ErrRunInProgress = errors.New("aggregation run already in progress")

	// ErrUnknownSource is returned for a source with no registered adapter.
	ErrUnknownSource = errors.New("unknown source")

	// ErrSourceUnavailable is returned once a source's circuit has opened
	// after repeated transient failures. It aborts that adapter only.
	ErrSourceUnavailable = errors.New("source unavailable")
)

// SourceError is a non-retryable upstream rejection: bad credentials,
// exhausted quota or a malformed query.
type SourceError struct {
	Source models.Source
	Status int
	URL    string
	Body   string
}

func (e *SourceError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s: request rejected with status %d: %s", e.Source, e.Status, e.Body)
	}
	return fmt.Sprintf("%s: request rejected with status %d", e.Source, e.Status)
}

// ConfigError reports an adapter that cannot run with the current configuration.
type ConfigError struct {
	Source models.Source
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: invalid configuration %s: %s", e.Source, e.Field, e.Reason)
}

func storageError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}

// Error classes used in reports and metrics.
const (
	classSource   = "source"
	classConfig   = "config"
	classStorage  = "storage"
	classPanic    = "panic"
	classCanceled = "canceled"
	classOther    = "other"
)

func errorClass(err error) string {
	var srcErr *SourceError
	var cfgErr *ConfigError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrStorage):
		return classStorage
	case errors.As(err, &srcErr), errors.Is(err, ErrSourceUnavailable):
		return classSource
	case errors.As(err, &cfgErr):
		return classConfig
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return classCanceled
	default:
		return classOther
	}
}
