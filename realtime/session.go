package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-course-auth"
)

// Conn is the part of a websocket connection a session needs
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadDeadline(t time.Time) error
	Close() error
}

const textMessage = 1

// Session is one live connection. Writes are serialized, the identity is
// set once when the connection is admitted.
type Session struct {
	id       string
	conn     Conn
	writeMu  sync.Mutex
	mu       sync.RWMutex
	identity *auth.Identity
	scopes   map[string]struct{}
	closed   bool
}

func NewSession(conn Conn) *Session {
	return &Session{
		id:     uuid.NewString(),
		conn:   conn,
		scopes: make(map[string]struct{}),
	}
}

func (s *Session) ID() string {
	return s.id
}

// Identity returns the identity attached at admission, nil before it
func (s *Session) Identity() *auth.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity
}

func (s *Session) setIdentity(identity *auth.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity = identity
}

func (s *Session) Send(msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return s.writeRaw(payload)
}

func (s *Session) writeRaw(payload []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(textMessage, payload)
}

// Close closes the underlying connection once
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.Close()
}

func (s *Session) addScope(scope string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scopes[scope] = struct{}{}
}

func (s *Session) removeScope(scope string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.scopes, scope)
}

func (s *Session) joinedScopes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.scopes))
	for scope := range s.scopes {
		out = append(out, scope)
	}
	return out
}
