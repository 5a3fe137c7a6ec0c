// USA Band Track - Live Music Event Aggregation
// Copyright 2026 The USA Band Track Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Pradervand/USA-BAND-TRACK

package sync

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Pradervand/USA-BAND-TRACK/internal/models"
)

// MemoryStore is an EventStore held in memory. It backs preview runs and
// has the same first-write-wins semantics as the database.
type MemoryStore struct {
	mu     sync.Mutex
	events map[string]models.Event
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{events: make(map[string]models.Event)}
}

func (s *MemoryStore) EventExists(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.events[id]
	return ok, nil
}

func (s *MemoryStore) InsertEventIfAbsent(_ context.Context, e *models.Event) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[e.ID]; ok {
		return false, nil
	}
	stored := *e
	if stored.InsertedAt.IsZero() {
		stored.InsertedAt = time.Now().UTC()
	}
	s.events[e.ID] = stored
	return true, nil
}

func (s *MemoryStore) PurgeOutsideWindow(_ context.Context, w models.RetentionWindow) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed int64
	for id, e := range s.events {
		if !w.Contains(e.Date) {
			delete(s.events, id)
			removed++
		}
	}
	return removed, nil
}

// Events returns a snapshot ordered by date, artist and id.
func (s *MemoryStore) Events() []models.Event {
	s.mu.Lock()
	out := make([]models.Event, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		if out[i].Artist != out[j].Artist {
			return out[i].Artist < out[j].Artist
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Len returns the number of stored events.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

// previewStore reads existence from the real store and keeps writes in memory.
type previewStore struct {
	base EventStore
	mem  *MemoryStore
}

func (p *previewStore) EventExists(ctx context.Context, id string) (bool, error) {
	if ok, _ := p.mem.EventExists(ctx, id); ok {
		return true, nil
	}
	if p.base == nil {
		return false, nil
	}
	return p.base.EventExists(ctx, id)
}

func (p *previewStore) InsertEventIfAbsent(ctx context.Context, e *models.Event) (bool, error) {
	exists, err := p.EventExists(ctx, e.ID)
	if err != nil || exists {
		return false, err
	}
	return p.mem.InsertEventIfAbsent(ctx, e)
}
