package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-course-auth"
)

const handshakeLocalsKey = "realtime.handshake"

// DefaultHandshakeTimeout bounds how long a client has to send its connect frame
const DefaultHandshakeTimeout = 10 * time.Second

// ConnectionAuthenticator resolves the identity presented in a handshake
type ConnectionAuthenticator interface {
	Authenticate(ctx context.Context, hs auth.Handshake) (*auth.Identity, error)
}

// Server upgrades fiber requests to websocket sessions. A session is
// authenticated exactly once, from its first frame, and only then
// acknowledged and joined to its subject scope.
type Server struct {
	authn            ConnectionAuthenticator
	hub              *Hub
	logger           auth.Logger
	handshakeTimeout time.Duration
	baseCtx          context.Context
}

type ServerOption func(*Server)

// WithHandshakeTimeout overrides DefaultHandshakeTimeout
func WithHandshakeTimeout(timeout time.Duration) ServerOption {
	return func(s *Server) {
		if timeout > 0 {
			s.handshakeTimeout = timeout
		}
	}
}

// WithBaseContext sets the context every websocket session derives from.
// Canceling it aborts handshakes still waiting on the credential store.
func WithBaseContext(ctx context.Context) ServerOption {
	return func(s *Server) {
		if ctx != nil {
			s.baseCtx = ctx
		}
	}
}

// WithServerLogger sets the logger
func WithServerLogger(logger auth.Logger) ServerOption {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewServer(authn ConnectionAuthenticator, hub *Hub, opts ...ServerOption) *Server {
	s := &Server{
		authn:            authn,
		hub:              hub,
		logger:           hub.logger,
		handshakeTimeout: DefaultHandshakeTimeout,
		baseCtx:          context.Background(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Register mounts the upgrade guard and the websocket handler on path
func (s *Server) Register(r fiber.Router, path string) {
	r.Use(path, s.Upgrade())
	r.Get(path, s.Handler())
}

// Upgrade rejects plain HTTP requests and keeps the upgrade request
// headers and query for the handshake.
func (s *Server) Upgrade() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}

		header := http.Header{}
		c.Request().Header.VisitAll(func(key, value []byte) {
			header.Add(string(key), string(value))
		})

		query := url.Values{}
		c.Context().QueryArgs().VisitAll(func(key, value []byte) {
			query.Add(string(key), string(value))
		})

		c.Locals(handshakeLocalsKey, auth.Handshake{Header: header, Query: query})
		return c.Next()
	}
}

// Handler returns the websocket handler
func (s *Server) Handler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		hs, _ := conn.Locals(handshakeLocalsKey).(auth.Handshake)
		s.Serve(s.baseCtx, conn, hs)
	})
}

// Serve runs one connection until it closes. hs carries what was captured
// from the upgrade request; the auth payload comes from the connect frame.
func (s *Server) Serve(ctx context.Context, conn Conn, hs auth.Handshake) {
	sess := NewSession(conn)
	defer sess.Close()

	identity, err := s.authenticate(ctx, sess, hs)
	if err != nil {
		s.refuse(sess, err)
		return
	}

	if !s.admit(sess, identity) {
		return
	}
	defer func() {
		s.hub.LeaveAll(sess)
		ActiveSessions.Dec()
	}()

	s.readLoop(sess)
}

func (s *Server) authenticate(ctx context.Context, sess *Session, hs auth.Handshake) (*auth.Identity, error) {
	if err := sess.conn.SetReadDeadline(time.Now().Add(s.handshakeTimeout)); err != nil {
		return nil, err
	}

	_, data, err := sess.conn.ReadMessage()
	if err != nil {
		s.logger.Debug("realtime handshake read failed", "session", sess.ID(), "error", err)
		return nil, auth.ErrAuthenticationRequired
	}

	var frame Message
	if err := json.Unmarshal(data, &frame); err != nil || frame.Type != TypeConnect {
		return nil, auth.ErrAuthenticationRequired
	}

	hs.Auth = frame.Auth

	identity, err := s.authn.Authenticate(ctx, hs)
	if err != nil {
		return nil, err
	}

	if err := sess.conn.SetReadDeadline(time.Time{}); err != nil {
		return nil, err
	}

	return identity, nil
}

// admit attaches identity, acknowledges and only then joins the subject
// scope, so no push can overtake the ack. A session that ends up without
// an identity is closed on the spot.
func (s *Server) admit(sess *Session, identity *auth.Identity) bool {
	sess.setIdentity(identity)

	current := sess.Identity()
	if current == nil || current.ID == "" {
		s.logger.Error("realtime session admitted without identity", "session", sess.ID())
		_ = sess.Close()
		return false
	}

	if err := sess.Send(Message{Type: TypeConnectAck, Data: current}); err != nil {
		s.logger.Warn("realtime ack failed", "session", sess.ID(), "error", err)
		_ = sess.Close()
		return false
	}

	s.hub.Join(ScopeForSubject(current.ID), sess)
	ActiveSessions.Inc()

	return true
}

func (s *Server) refuse(sess *Session, err error) {
	code, message := publicError(err)
	_ = sess.Send(Message{
		Type: TypeConnectError,
		Data: map[string]any{
			"code":    code,
			"message": message,
		},
	})
}

func (s *Server) readLoop(sess *Session) {
	for {
		_, data, err := sess.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			_ = sess.Send(Message{Type: TypeError, Data: map[string]any{"message": "malformed frame"}})
			continue
		}

		switch msg.Type {
		case TypePing:
			_ = sess.Send(Message{Type: TypePong})
		default:
			_ = sess.Send(Message{Type: TypeError, Data: map[string]any{"message": "unsupported frame type"}})
		}
	}
}

// publicError returns a code and message that are safe to show a client
func publicError(err error) (string, string) {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return auth.TextCodeAuthenticationRequired, "authentication required"
	}
	if richErr.Category == goerrors.CategoryInternal {
		return auth.TextCodeServerMisconfigured, "server error"
	}
	return richErr.TextCode, richErr.Message
}
