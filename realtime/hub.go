// Package realtime admits authenticated websocket connections and routes
// server pushes to every live connection of a subject.
package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/goliatone/go-course-auth"
)

const subjectScopePrefix = "user:"

// ScopeForSubject is the broadcast scope holding every connection of id
func ScopeForSubject(id string) string {
	return subjectScopePrefix + id
}

// Message is the frame exchanged with clients
type Message struct {
	Type string         `json:"type"`
	Data any            `json:"data,omitempty"`
	Auth map[string]any `json:"auth,omitempty"`
}

const (
	TypeConnect      = "connect"
	TypeConnectAck   = "connect_ack"
	TypeConnectError = "connect_error"
	TypePing         = "ping"
	TypePong         = "pong"
	TypeError        = "error"
	TypeRoleUpdated  = "role.updated"
)

// Broadcaster delivers a message to every connection in a scope
type Broadcaster interface {
	Publish(ctx context.Context, scope string, msg Message) error
}

// Hub tracks which sessions belong to which scope on this instance
type Hub struct {
	mu     sync.RWMutex
	scopes map[string]map[*Session]struct{}
	logger auth.Logger
}

var _ Broadcaster = (*Hub)(nil)

func NewHub(logger auth.Logger) *Hub {
	if logger == nil {
		logger = auth.DefaultLogger()
	}
	return &Hub{
		scopes: make(map[string]map[*Session]struct{}),
		logger: logger,
	}
}

func (h *Hub) Join(scope string, s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.scopes[scope]
	if !ok {
		members = make(map[*Session]struct{})
		h.scopes[scope] = members
	}
	members[s] = struct{}{}
	s.addScope(scope)
}

// LeaveAll removes s from every scope it joined
func (h *Hub) LeaveAll(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, scope := range s.joinedScopes() {
		h.leave(scope, s)
	}
}

func (h *Hub) leave(scope string, s *Session) {
	members, ok := h.scopes[scope]
	if !ok {
		return
	}
	delete(members, s)
	if len(members) == 0 {
		delete(h.scopes, scope)
	}
	s.removeScope(scope)
}

// Count returns the number of sessions in scope
func (h *Hub) Count(scope string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.scopes[scope])
}

// Emit writes msg to every session in scope and returns how many received it
func (h *Hub) Emit(scope string, msg Message) int {
	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("realtime emit marshal failed", "scope", scope, "error", err)
		return 0
	}

	h.mu.RLock()
	targets := make([]*Session, 0, len(h.scopes[scope]))
	for s := range h.scopes[scope] {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, s := range targets {
		if err := s.writeRaw(payload); err != nil {
			h.logger.Warn("realtime emit failed", "scope", scope, "session", s.ID(), "error", err)
			continue
		}
		delivered++
	}

	MessagesEmittedTotal.WithLabelValues(msg.Type).Add(float64(delivered))

	return delivered
}

// Publish implements Broadcaster for a single instance
func (h *Hub) Publish(_ context.Context, scope string, msg Message) error {
	h.Emit(scope, msg)
	return nil
}

// PushToSubject publishes msg to every connection of subject id
func PushToSubject(ctx context.Context, b Broadcaster, id string, msg Message) error {
	return b.Publish(ctx, ScopeForSubject(id), msg)
}
