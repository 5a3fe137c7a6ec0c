// USA Band Track - Live Music Event Aggregation
// Copyright 2026 The USA Band Track Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Pradervand/USA-BAND-TRACK

// Package websocket pushes aggregation notifications to connected browsers.
//
// A single Hub goroutine owns the client set. Handlers upgrade connections
// and hand the resulting Client to Hub.Attach; the hub fans broadcast
// messages out to every client's buffered send channel and drops clients
// whose buffer is full.
package websocket

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/Pradervand/USA-BAND-TRACK/internal/logging"
	"github.com/Pradervand/USA-BAND-TRACK/internal/metrics"
	"github.com/Pradervand/USA-BAND-TRACK/internal/models"
)

// Message types.
const (
	MessageTypePing           = "ping"
	MessageTypePong           = "pong"
	MessageTypeSyncCompleted  = "sync_completed"
	MessageTypePurgeCompleted = "purge_completed"
)

const broadcastBuffer = 64

// Message is the envelope for everything sent over the socket.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Hub maintains the set of active clients and broadcasts messages to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex

	done     chan struct{} // closed once the hub has stopped
	doneOnce sync.Once
}

// NewHub creates a hub. Call RunWithContext to start it.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message, broadcastBuffer),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Attach registers c and starts its pumps. It returns false, leaving c
// untouched, when the hub has already stopped.
func (h *Hub) Attach(c *Client) bool {
	select {
	case h.Register <- c:
		c.Start()
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) detach(c *Client) {
	select {
	case h.Unregister <- c:
	case <-h.done:
	}
}

// RunWithContext serves the hub until ctx is done, then closes every client.
//
// Lifecycle events are drained before broadcasts so a client registered
// just before a broadcast always receives it.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case c := <-h.Register:
			h.add(c)
			continue
		case c := <-h.Unregister:
			h.remove(c)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		case c := <-h.Register:
			h.add(c)
		case c := <-h.Unregister:
			h.remove(c)
		case msg := <-h.broadcast:
			h.broadcastToClients(msg)
		}
	}
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	h.clients[c] = true
	n := len(h.clients)
	h.mu.Unlock()
	metrics.WSConnections.Inc()
	logging.Debug().Int("total_clients", n).Msg("websocket client connected")
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	if ok {
		metrics.WSConnections.Dec()
		logging.Debug().Int("total_clients", n).Msg("websocket client disconnected")
	}
}

func (h *Hub) shutdown(ctx context.Context) {
	h.doneOnce.Do(func() { close(h.done) })
	n := h.closeAllClients()
	reason := "context_canceled"
	if ctx.Err() == context.DeadlineExceeded {
		reason = "context_deadline"
	}
	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", reason).
		Int("clients_closed", n).
		Msg("websocket hub stopped")
}

// sortedClients must be called with mu held.
func (h *Hub) sortedClients() []*Client {
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].id < clients[j].id })
	return clients
}

func (h *Hub) broadcastToClients(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var slow []*Client
	for _, c := range h.sortedClients() {
		select {
		case c.send <- msg:
		default:
			slow = append(slow, c)
		}
	}
	for _, c := range slow {
		close(c.send)
		delete(h.clients, c)
		metrics.WSConnections.Dec()
	}
	if len(slow) > 0 {
		logging.Warn().Int("dropped", len(slow)).Msg("dropped slow websocket clients")
	}
}

func (h *Hub) closeAllClients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients := h.sortedClients()
	for _, c := range clients {
		close(c.send)
		delete(h.clients, c)
		metrics.WSConnections.Dec()
	}
	return len(clients)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastJSON queues a message for every client. It never blocks; when
// the queue is full the message is dropped.
func (h *Hub) BroadcastJSON(messageType string, data any) {
	select {
	case h.broadcast <- Message{Type: messageType, Data: data}:
	default:
		logging.Warn().Str("message_type", messageType).Msg("broadcast channel full, dropping message")
	}
}

// SyncCompletedData is the payload of a sync_completed message.
type SyncCompletedData struct {
	Timestamp string                `json:"timestamp"`
	RunID     string                `json:"run_id"`
	Outcome   string                `json:"outcome"`
	Added     int                   `json:"added"`
	Purged    int64                 `json:"purged"`
	Results   []models.SourceResult `json:"results"`
}

// BroadcastSyncCompleted notifies clients that a run finished. Suitable as
// the manager's completion callback.
func (h *Hub) BroadcastSyncCompleted(report *models.RunReport) {
	if report == nil {
		return
	}
	h.BroadcastJSON(MessageTypeSyncCompleted, SyncCompletedData{
		Timestamp: report.FinishedAt.UTC().Format(time.RFC3339),
		RunID:     report.RunID,
		Outcome:   report.Outcome(),
		Added:     report.TotalAdded,
		Purged:    report.Purged,
		Results:   report.Results,
	})
}

// PurgeCompletedData is the payload of a purge_completed message.
type PurgeCompletedData struct {
	Timestamp string `json:"timestamp"`
	Purged    int64  `json:"purged"`
}

// BroadcastPurgeCompleted notifies clients that a standalone purge ran.
func (h *Hub) BroadcastPurgeCompleted(purged int64) {
	h.BroadcastJSON(MessageTypePurgeCompleted, PurgeCompletedData{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Purged:    purged,
	})
}

// MarshalMessage encodes msg as JSON.
func MarshalMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}
