package auth_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-course-auth"
	"github.com/goliatone/go-course-auth/persistence"
)

type dbConfig struct{}

func (dbConfig) GetDriver() string { return persistence.DriverSQLite }
func (dbConfig) GetDSN() string    { return ":memory:" }

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	db, err := persistence.Open(context.Background(), dbConfig{})
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = db.Close()
	})

	return db
}

func seedUser(t *testing.T, users auth.Users, email string, role auth.Role) *auth.User {
	t.Helper()

	user, err := users.Register(context.Background(), &auth.User{
		Email:        email,
		DisplayName:  "User " + email,
		Role:         role.Canonical(),
		PasswordHash: "not-a-real-hash",
	})
	require.NoError(t, err)
	return user
}

// fixedClock returns a clock that only moves when advanced
type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFixedClock(t time.Time) *fixedClock {
	return &fixedClock{now: t}
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type memoryStore struct {
	mu    sync.RWMutex
	creds map[string]*auth.Credential
	err   error
}

func newMemoryStore(creds ...*auth.Credential) *memoryStore {
	m := &memoryStore{creds: map[string]*auth.Credential{}}
	for _, c := range creds {
		m.creds[c.ID] = c
	}
	return m
}

func (m *memoryStore) FindByID(_ context.Context, id string) (*auth.Credential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	if c, ok := m.creds[id]; ok {
		return c, nil
	}
	return nil, auth.ErrIdentityNotFound
}

type recordingSink struct {
	mu     sync.Mutex
	events []auth.ActivityEvent
}

func (r *recordingSink) Record(_ context.Context, event auth.ActivityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingSink) Events() []auth.ActivityEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]auth.ActivityEvent(nil), r.events...)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
