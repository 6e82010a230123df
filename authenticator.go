package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
)

// RegisterInput is the payload used to create a member account
type RegisterInput struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
}

// Validate checks the registration payload
func (r RegisterInput) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.EmailFormat),
		validation.Field(&r.DisplayName, validation.Required, validation.RuneLength(1, 120)),
		validation.Field(&r.Password, validation.Required, validation.RuneLength(8, 72)),
	)
}

// LoginInput is the payload used to exchange credentials for a token
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks the login payload
func (l LoginInput) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Email, validation.Required, is.EmailFormat),
		validation.Field(&l.Password, validation.Required),
	)
}

// Session is what a successful register or login returns
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Identity  *Identity `json:"user"`
}

// Auther issues tokens. Registration and login are the only places a
// token is created.
type Auther struct {
	users        Users
	codec        *TokenCodec
	passwords    PasswordAuthenticator
	logger       Logger
	activitySink ActivitySink
	now          func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

// NewAuthenticator returns a new Auther
func NewAuthenticator(users Users, codec *TokenCodec) *Auther {
	return &Auther{
		users:        users,
		codec:        codec,
		passwords:    BcryptPasswords{},
		logger:       defLogger{},
		activitySink: noopActivitySink{},
		now:          time.Now,
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	s.logger = normalizeLogger(logger)
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// WithPasswordAuthenticator replaces the password hasher
func (s *Auther) WithPasswordAuthenticator(passwords PasswordAuthenticator) *Auther {
	if passwords != nil {
		s.passwords = passwords
	}
	return s
}

// WithClock injects a custom clock (useful for tests).
func (s *Auther) WithClock(clock func() time.Time) *Auther {
	if clock != nil {
		s.now = clock
	}
	return s
}

// Register creates a member account and returns a session for it
func (s *Auther) Register(ctx context.Context, input RegisterInput) (*Session, error) {
	input.Email = normalizeEmail(input.Email)
	input.DisplayName = strings.TrimSpace(input.DisplayName)

	if err := input.Validate(); err != nil {
		return nil, validationError(err)
	}

	if !s.codec.Configured() {
		s.logger.Error("register refused, signing key is not configured")
		return nil, ErrServerMisconfigured
	}

	if _, err := s.users.GetByIdentifier(ctx, input.Email); err == nil {
		return nil, with(ErrConflict, map[string]any{
			"fields": map[string]any{"email": "already registered"},
		})
	} else if !IsNotFound(err) {
		return nil, err
	}

	hash, err := s.passwords.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	id, err := hashid.NewUUID(input.Email)
	if err != nil {
		id = uuid.New()
	}

	user, err := s.users.Register(ctx, &User{
		ID:           id,
		Email:        input.Email,
		DisplayName:  input.DisplayName,
		Role:         RoleMember.Canonical(),
		PasswordHash: hash,
	})
	if err != nil {
		return nil, err
	}

	session, err := s.issue(user)
	if err != nil {
		return nil, err
	}

	s.emit(ctx, ActivityEventRegistered, user.ID.String(), nil)

	return session, nil
}

// Login verifies email and password. Unknown emails and wrong passwords
// fail with the same error.
func (s *Auther) Login(ctx context.Context, input LoginInput) (*Session, error) {
	input.Email = normalizeEmail(input.Email)

	if err := input.Validate(); err != nil {
		return nil, validationError(err)
	}

	if !s.codec.Configured() {
		s.logger.Error("login refused, signing key is not configured")
		return nil, ErrServerMisconfigured
	}

	user, err := s.users.GetByIdentifier(ctx, input.Email)
	if err != nil {
		if IsNotFound(err) {
			// same hashing work as a wrong password
			_ = s.passwords.ComparePasswordAndHash(input.Password, s.dummyPasswordHash())
			s.emit(ctx, ActivityEventLoginFailure, "", map[string]any{"reason": "unknown_email"})
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := s.passwords.ComparePasswordAndHash(input.Password, user.PasswordHash); err != nil {
		s.logger.Debug("login password mismatch", "user_id", user.ID.String())
		s.emit(ctx, ActivityEventLoginFailure, user.ID.String(), map[string]any{"reason": "password_mismatch"})
		return nil, ErrInvalidCredentials
	}

	if err := s.users.TrackSuccessfulLogin(ctx, user); err != nil {
		s.logger.Warn("failed to track login", "user_id", user.ID.String(), "error", err)
	}

	session, err := s.issue(user)
	if err != nil {
		return nil, err
	}

	s.emit(ctx, ActivityEventLoginSuccess, user.ID.String(), nil)

	return session, nil
}

// dummyPasswordHash is the hash of a password nobody knows, made once with
// the configured hasher.
func (s *Auther) dummyPasswordHash() string {
	s.dummyOnce.Do(func() {
		h, err := s.passwords.HashPassword(uuid.NewString())
		if err != nil {
			s.logger.Warn("failed to prepare login comparison hash", "error", err)
			return
		}
		s.dummyHash = h
	})
	return s.dummyHash
}

func (s *Auther) issue(user *User) (*Session, error) {
	identity := NewIdentityFromCredential(NewCredentialFromUser(user))

	token, err := s.codec.Encode(NewClaims(map[string]any{
		ClaimSubject: identity.ID,
		ClaimEmail:   identity.Email,
		ClaimRole:    string(identity.Role),
	}))
	if err != nil {
		return nil, err
	}

	return &Session{
		Token:     token,
		ExpiresAt: s.now().Add(s.codec.TTL()).UTC(),
		Identity:  identity,
	}, nil
}

func (s *Auther) emit(ctx context.Context, eventType ActivityEventType, userID string, metadata map[string]any) {
	actor := ActorRef{Type: "anonymous"}
	if userID != "" {
		actor = ActorRef{ID: userID, Type: "user"}
	}
	recordActivity(ctx, s.activitySink, s.logger, s.now, ActivityEvent{
		EventType: eventType,
		Actor:     actor,
		UserID:    userID,
		Metadata:  metadata,
	})
}
