package auth

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// AuthScheme is the only accepted Authorization scheme
const AuthScheme = "Bearer"

// AuthenticatorOption customizes the request and connection authenticators.
type AuthenticatorOption func(*resolver)

// WithAuthenticatorLogger overrides the logger used for rejected credentials.
func WithAuthenticatorLogger(logger Logger) AuthenticatorOption {
	return func(r *resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithAuthenticatorActivitySink publishes authentication failures.
func WithAuthenticatorActivitySink(sink ActivitySink) AuthenticatorOption {
	return func(r *resolver) {
		r.activitySink = normalizeActivitySink(sink)
	}
}

// resolver holds what both authenticators share: verify a token and
// resolve its subject. It is read-only after construction.
type resolver struct {
	codec        *TokenCodec
	store        CredentialStore
	transport    string
	logger       Logger
	activitySink ActivitySink
	now          func() time.Time
}

func newResolver(codec *TokenCodec, store CredentialStore, transport string, opts ...AuthenticatorOption) resolver {
	r := resolver{
		codec:        codec,
		store:        store,
		transport:    transport,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
		now:          time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&r)
		}
	}
	return r
}

func (r resolver) configured() bool {
	return r.codec.Configured()
}

func (r resolver) resolve(ctx context.Context, token string) (*Identity, error) {
	claims, err := r.codec.Decode(token)
	if err != nil {
		if HasTextCode(err, TextCodeServerMisconfigured) {
			return nil, r.reject(ctx, ErrServerMisconfigured, err)
		}
		return nil, r.reject(ctx, ErrInvalidOrExpiredToken, err)
	}

	subject := claims.Subject()
	if subject == "" {
		return nil, r.reject(ctx, ErrInvalidOrExpiredToken, ErrTokenInvalid)
	}

	cred, err := r.store.FindByID(ctx, subject)
	if err != nil {
		if IsNotFound(err) {
			return nil, r.reject(ctx, ErrInvalidAuthentication, err)
		}
		return nil, r.reject(ctx,
			goerrors.Wrap(err, goerrors.CategoryInternal, "credential lookup failed").
				WithCode(goerrors.CodeInternal),
			err,
		)
	}

	if cred == nil {
		return nil, r.reject(ctx, ErrInvalidAuthentication, ErrIdentityNotFound)
	}

	identity := NewIdentityFromCredential(cred)
	if identity.Role == "" {
		r.logger.Warn("credential carries an unknown role", "subject", subject, "role", cred.Role)
	}

	AuthSuccessTotal.WithLabelValues(r.transport).Inc()

	return identity, nil
}

// reject records the internal cause and returns the client facing error
func (r resolver) reject(ctx context.Context, public error, cause error) error {
	reason := failureReason(cause)
	if reason == "" {
		reason = failureReason(public)
	}
	if HasTextCode(public, TextCodeAuthenticationRequired) {
		reason = ReasonMissingCredentials
	}

	AuthFailuresTotal.WithLabelValues(r.transport, reason).Inc()

	switch reason {
	case ReasonMisconfigured, ReasonStoreError:
		r.logger.Error("authentication failed", "transport", r.transport, "reason", reason, "error", cause)
	default:
		r.logger.Debug("authentication rejected", "transport", r.transport, "reason", reason)
	}

	recordActivity(ctx, r.activitySink, r.logger, r.now, ActivityEvent{
		EventType: ActivityEventAuthFailure,
		Actor:     ActorRef{Type: "anonymous"},
		Metadata: map[string]any{
			"transport": r.transport,
			"reason":    reason,
		},
	})

	return public
}

// RequestAuthenticator authenticates one inbound request from its
// Authorization header.
type RequestAuthenticator struct {
	resolver
}

// NewRequestAuthenticator creates a RequestAuthenticator
func NewRequestAuthenticator(codec *TokenCodec, store CredentialStore, opts ...AuthenticatorOption) *RequestAuthenticator {
	return &RequestAuthenticator{
		resolver: newResolver(codec, store, TransportHTTP, opts...),
	}
}

// Authenticate checks the header shape, the secret, the token and the
// subject, in that order. It never mutates stored state.
func (a *RequestAuthenticator) Authenticate(ctx context.Context, authorization string) (*Identity, error) {
	token, ok := BearerToken(authorization)
	if !ok {
		return nil, a.reject(ctx, ErrAuthenticationRequired, nil)
	}

	if !a.configured() {
		return nil, a.reject(ctx, ErrServerMisconfigured, ErrServerMisconfigured)
	}

	return a.resolve(ctx, token)
}

// BearerToken extracts the token from an exact "Bearer <token>" value
func BearerToken(header string) (string, bool) {
	prefix := AuthScheme + " "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}

	token := header[len(prefix):]
	if token == "" || strings.ContainsAny(token, " \t\r\n") {
		return "", false
	}

	return token, true
}
