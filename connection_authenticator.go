package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const (
	HandshakeAuthField       = "token"
	HandshakeLegacyAuthField = "accessToken"
	HandshakeQueryParam      = "token"
)

// Handshake is what a client presents when opening a realtime connection.
// Auth is the payload sent with the connect frame, Header and Query come
// from the upgrade request.
type Handshake struct {
	Auth   map[string]any
	Header http.Header
	Query  url.Values
}

// TokenCarrier extracts a candidate token from a handshake
type TokenCarrier func(hs Handshake) string

// DefaultTokenCarriers is the precedence used by the connection
// authenticator: auth payload, legacy auth payload, Authorization header,
// query parameter.
var DefaultTokenCarriers = []TokenCarrier{
	AuthPayloadCarrier(HandshakeAuthField),
	AuthPayloadCarrier(HandshakeLegacyAuthField),
	HeaderCarrier(),
	QueryCarrier(HandshakeQueryParam),
}

// AuthPayloadCarrier reads field from the handshake auth payload
func AuthPayloadCarrier(field string) TokenCarrier {
	return func(hs Handshake) string {
		if hs.Auth == nil {
			return ""
		}
		raw, ok := hs.Auth[field]
		if !ok || raw == nil {
			return ""
		}
		s, ok := raw.(string)
		if !ok {
			s = fmt.Sprint(raw)
		}
		return stripToken(s)
	}
}

// HeaderCarrier reads an exact "Bearer <token>" Authorization header
func HeaderCarrier() TokenCarrier {
	return func(hs Handshake) string {
		if hs.Header == nil {
			return ""
		}
		token, _ := BearerToken(hs.Header.Get("Authorization"))
		return token
	}
}

// QueryCarrier reads param from the handshake query string
func QueryCarrier(param string) TokenCarrier {
	return func(hs Handshake) string {
		if hs.Query == nil {
			return ""
		}
		return stripToken(hs.Query.Get(param))
	}
}

// ExtractHandshakeToken returns the first non-empty token in carrier order
func ExtractHandshakeToken(hs Handshake, carriers ...TokenCarrier) string {
	if len(carriers) == 0 {
		carriers = DefaultTokenCarriers
	}
	for _, carrier := range carriers {
		if carrier == nil {
			continue
		}
		if token := carrier(hs); token != "" {
			return token
		}
	}
	return ""
}

// stripToken removes surrounding quotes and an optional Bearer prefix
func stripToken(s string) string {
	s = trimQuotes(strings.TrimSpace(s))
	prefix := AuthScheme + " "
	if len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) {
		s = s[len(prefix):]
	}
	return trimQuotes(strings.TrimSpace(s))
}

func trimQuotes(s string) string {
	return strings.Trim(s, `"'`)
}

// ConnectionAuthenticator authenticates a realtime connection attempt
// once, before it is admitted to any broadcast scope.
type ConnectionAuthenticator struct {
	resolver
	carriers []TokenCarrier
}

// NewConnectionAuthenticator creates a ConnectionAuthenticator using the default carriers
func NewConnectionAuthenticator(codec *TokenCodec, store CredentialStore, opts ...AuthenticatorOption) *ConnectionAuthenticator {
	return &ConnectionAuthenticator{
		resolver: newResolver(codec, store, TransportWebSocket, opts...),
		carriers: DefaultTokenCarriers,
	}
}

// WithCarriers returns a copy using a custom carrier precedence
func (a *ConnectionAuthenticator) WithCarriers(carriers ...TokenCarrier) *ConnectionAuthenticator {
	next := *a
	next.carriers = carriers
	return &next
}

// Authenticate resolves the identity presented by hs. Any error means the
// connection must be refused before it is acknowledged.
func (a *ConnectionAuthenticator) Authenticate(ctx context.Context, hs Handshake) (*Identity, error) {
	if !a.configured() {
		return nil, a.reject(ctx, ErrServerMisconfigured, ErrServerMisconfigured)
	}

	token := ExtractHandshakeToken(hs, a.carriers...)
	if token == "" {
		return nil, a.reject(ctx, ErrAuthenticationRequired, nil)
	}

	return a.resolve(ctx, token)
}
