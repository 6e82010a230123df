package auth_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-course-auth"
)

// plainPasswords keeps tests fast, bcrypt has its own tests
type plainPasswords struct{}

func (plainPasswords) HashPassword(password string) (string, error) {
	if password == "" {
		return "", auth.ErrNoEmptyString
	}
	return "plain:" + password, nil
}

func (plainPasswords) ComparePasswordAndHash(password, hash string) error {
	if hash != "plain:"+password {
		return auth.ErrMismatchedHashAndPassword
	}
	return nil
}

// countingPasswords records the hashes logins are compared against
type countingPasswords struct {
	plainPasswords
	mu       sync.Mutex
	compared []string
}

func (c *countingPasswords) ComparePasswordAndHash(password, hash string) error {
	c.mu.Lock()
	c.compared = append(c.compared, hash)
	c.mu.Unlock()
	return c.plainPasswords.ComparePasswordAndHash(password, hash)
}

func (c *countingPasswords) Compared() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.compared...)
}

type MockActivitySink struct {
	mock.Mock
}

func (m *MockActivitySink) Record(ctx context.Context, event auth.ActivityEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

type accountsFixture struct {
	users  auth.Users
	codec  *auth.TokenCodec
	auther *auth.Auther
	clock  *fixedClock
	sink   *recordingSink
}

func newAccountsFixture(t *testing.T, secret string) *accountsFixture {
	t.Helper()

	db := newTestDB(t)
	clock := newFixedClock(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	users := auth.NewUsersRepository(db, auth.WithUsersClock(clock.Now))
	codec := auth.NewTokenCodec([]byte(secret), 24*time.Hour, auth.WithCodecClock(clock.Now))
	sink := &recordingSink{}

	auther := auth.NewAuthenticator(users, codec).
		WithLogger(nopLogger{}).
		WithActivitySink(sink).
		WithPasswordAuthenticator(plainPasswords{}).
		WithClock(clock.Now)

	return &accountsFixture{users: users, codec: codec, auther: auther, clock: clock, sink: sink}
}

func TestAuther_RegisterIssuesMemberToken(t *testing.T) {
	f := newAccountsFixture(t, "secret")

	session, err := f.auther.Register(context.Background(), auth.RegisterInput{
		Email:       " Ana@Example.com ",
		DisplayName: " Ana ",
		Password:    "correct horse",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, session.Token)
	assert.Equal(t, f.clock.Now().Add(24*time.Hour), session.ExpiresAt)
	assert.Equal(t, "ana@example.com", session.Identity.Email)
	assert.Equal(t, "Ana", session.Identity.DisplayName)
	assert.Equal(t, auth.RoleMember, session.Identity.Role)

	expectedID, err := hashid.NewUUID("ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, expectedID.String(), session.Identity.ID)

	claims, err := f.codec.Decode(session.Token)
	require.NoError(t, err)
	assert.Equal(t, session.Identity.ID, claims.Subject())
	assert.Equal(t, "member", claims.String(auth.ClaimRole))

	stored, err := f.users.GetByIdentifier(context.Background(), "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, "MEMBER", stored.Role)
	assert.Equal(t, "plain:correct horse", stored.PasswordHash)

	events := f.sink.Events()
	require.Len(t, events, 1)
	assert.Equal(t, auth.ActivityEventRegistered, events[0].EventType)
}

func TestAuther_RegisterValidation(t *testing.T) {
	f := newAccountsFixture(t, "secret")

	tests := []struct {
		name  string
		input auth.RegisterInput
		field string
	}{
		{name: "missing email", input: auth.RegisterInput{DisplayName: "A", Password: "password1"}, field: "email"},
		{name: "bad email", input: auth.RegisterInput{Email: "nope", DisplayName: "A", Password: "password1"}, field: "email"},
		{name: "missing name", input: auth.RegisterInput{Email: "a@example.com", Password: "password1"}, field: "display_name"},
		{name: "short password", input: auth.RegisterInput{Email: "a@example.com", DisplayName: "A", Password: "short"}, field: "password"},
		{name: "long password", input: auth.RegisterInput{Email: "a@example.com", DisplayName: "A", Password: strings.Repeat("x", 73)}, field: "password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.auther.Register(context.Background(), tt.input)
			require.Error(t, err)
			assert.True(t, auth.HasTextCode(err, auth.TextCodeValidation))
		})
	}

	assert.Empty(t, f.sink.Events())
}

func TestAuther_RegisterDuplicateEmail(t *testing.T) {
	f := newAccountsFixture(t, "secret")

	input := auth.RegisterInput{Email: "dup@example.com", DisplayName: "Dup", Password: "password1"}
	_, err := f.auther.Register(context.Background(), input)
	require.NoError(t, err)

	input.Email = "DUP@example.com"
	_, err = f.auther.Register(context.Background(), input)
	require.Error(t, err)
	assert.True(t, auth.HasTextCode(err, auth.TextCodeConflict))
}

func TestAuther_RegisterWithoutSecret(t *testing.T) {
	f := newAccountsFixture(t, "")

	_, err := f.auther.Register(context.Background(), auth.RegisterInput{
		Email: "a@example.com", DisplayName: "A", Password: "password1",
	})
	require.Error(t, err)
	assert.True(t, auth.HasTextCode(err, auth.TextCodeServerMisconfigured))

	_, err = f.users.GetByIdentifier(context.Background(), "a@example.com")
	assert.True(t, auth.IsNotFound(err))
}

func TestAuther_Login(t *testing.T) {
	f := newAccountsFixture(t, "secret")

	registered, err := f.auther.Register(context.Background(), auth.RegisterInput{
		Email: "login@example.com", DisplayName: "Login", Password: "password1",
	})
	require.NoError(t, err)

	f.clock.Advance(time.Hour)

	session, err := f.auther.Login(context.Background(), auth.LoginInput{Email: "LOGIN@example.com", Password: "password1"})
	require.NoError(t, err)
	assert.Equal(t, registered.Identity.ID, session.Identity.ID)
	assert.NotEqual(t, registered.Token, session.Token)

	stored, err := f.users.GetByIdentifier(context.Background(), "login@example.com")
	require.NoError(t, err)
	require.NotNil(t, stored.LoggedInAt)
	assert.True(t, stored.LoggedInAt.Equal(f.clock.Now()))

	authn := auth.NewRequestAuthenticator(f.codec, auth.NewUserCredentialStore(f.users), auth.WithAuthenticatorLogger(nopLogger{}))
	identity, err := authn.Authenticate(context.Background(), "Bearer "+session.Token)
	require.NoError(t, err)
	assert.Equal(t, session.Identity.ID, identity.ID)
}

func TestAuther_LoginFailuresLookAlike(t *testing.T) {
	f := newAccountsFixture(t, "secret")

	_, err := f.auther.Register(context.Background(), auth.RegisterInput{
		Email: "known@example.com", DisplayName: "Known", Password: "password1",
	})
	require.NoError(t, err)

	_, unknownErr := f.auther.Login(context.Background(), auth.LoginInput{Email: "unknown@example.com", Password: "password1"})
	_, wrongErr := f.auther.Login(context.Background(), auth.LoginInput{Email: "known@example.com", Password: "password2"})

	require.Error(t, unknownErr)
	require.Error(t, wrongErr)
	assert.Equal(t, unknownErr, wrongErr)
	assert.True(t, auth.HasTextCode(wrongErr, auth.TextCodeInvalidCredentials))

	var failures []string
	for _, e := range f.sink.Events() {
		if e.EventType == auth.ActivityEventLoginFailure {
			failures = append(failures, e.Metadata["reason"].(string))
		}
	}
	assert.Equal(t, []string{"unknown_email", "password_mismatch"}, failures)
}

func TestAuther_SinkErrorsDoNotFailLogin(t *testing.T) {
	db := newTestDB(t)
	users := auth.NewUsersRepository(db)
	codec := auth.NewTokenCodec([]byte("secret"), time.Hour)

	sink := new(MockActivitySink)
	sink.On("Record", mock.Anything, mock.MatchedBy(func(e auth.ActivityEvent) bool {
		return e.EventType == auth.ActivityEventRegistered || e.EventType == auth.ActivityEventLoginSuccess
	})).Return(assert.AnError).Twice()

	auther := auth.NewAuthenticator(users, codec).
		WithLogger(nopLogger{}).
		WithActivitySink(sink).
		WithPasswordAuthenticator(plainPasswords{})

	_, err := auther.Register(context.Background(), auth.RegisterInput{
		Email: "sink@example.com", DisplayName: "Sink", Password: "password1",
	})
	require.NoError(t, err)

	_, err = auther.Login(context.Background(), auth.LoginInput{Email: "sink@example.com", Password: "password1"})
	require.NoError(t, err)

	sink.AssertExpectations(t)
}

func TestAuther_DefaultBcrypt(t *testing.T) {
	db := newTestDB(t)
	users := auth.NewUsersRepository(db)
	auther := auth.NewAuthenticator(users, auth.NewTokenCodec([]byte("secret"), time.Hour)).WithLogger(nopLogger{})

	_, err := auther.Register(context.Background(), auth.RegisterInput{
		Email: "bcrypt@example.com", DisplayName: "B", Password: "password1",
	})
	require.NoError(t, err)

	stored, err := users.GetByIdentifier(context.Background(), "bcrypt@example.com")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stored.PasswordHash, "$2"))

	_, err = auther.Login(context.Background(), auth.LoginInput{Email: "bcrypt@example.com", Password: "password1"})
	assert.NoError(t, err)
}

func TestAuther_UnknownEmailStillComparesPassword(t *testing.T) {
	db := newTestDB(t)
	users := auth.NewUsersRepository(db)
	passwords := &countingPasswords{}

	auther := auth.NewAuthenticator(users, auth.NewTokenCodec([]byte("secret"), time.Hour)).
		WithLogger(nopLogger{}).
		WithPasswordAuthenticator(passwords)

	_, err := auther.Login(context.Background(), auth.LoginInput{Email: "nobody@example.com", Password: "password1"})
	require.Error(t, err)
	assert.True(t, auth.HasTextCode(err, auth.TextCodeInvalidCredentials))

	_, err = auther.Login(context.Background(), auth.LoginInput{Email: "ghost@example.com", Password: "password1"})
	require.Error(t, err)

	compared := passwords.Compared()
	require.Len(t, compared, 2)
	assert.NotEmpty(t, compared[0])
	assert.Equal(t, compared[0], compared[1])
	assert.NotEqual(t, "plain:password1", compared[0])
}
