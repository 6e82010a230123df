package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-course-auth"
)

func TestUsers_RegisterDefaults(t *testing.T) {
	db := newTestDB(t)
	clock := newFixedClock(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	users := auth.NewUsersRepository(db, auth.WithUsersClock(clock.Now))

	user, err := users.Register(context.Background(), &auth.User{
		Email:       "  New@Example.COM ",
		DisplayName: "New",
	})
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, user.ID)
	assert.Equal(t, "new@example.com", user.Email)
	assert.Equal(t, "MEMBER", user.Role)
	require.NotNil(t, user.CreatedAt)
	assert.True(t, user.CreatedAt.Equal(clock.Now()))
}

func TestUsers_GetByIdentifier(t *testing.T) {
	db := newTestDB(t)
	users := auth.NewUsersRepository(db)
	user := seedUser(t, users, "find@example.com", auth.RoleMember)

	byID, err := users.GetByIdentifier(context.Background(), user.ID.String())
	require.NoError(t, err)
	assert.Equal(t, user.ID, byID.ID)

	byEmail, err := users.GetByIdentifier(context.Background(), "FIND@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.ID)

	for _, identifier := range []string{"", "nobody@example.com", uuid.NewString(), "not an email"} {
		_, err := users.GetByIdentifier(context.Background(), identifier)
		require.Error(t, err, identifier)
		assert.True(t, auth.IsNotFound(err), identifier)
	}
}

func TestUsers_DuplicateEmail(t *testing.T) {
	db := newTestDB(t)
	users := auth.NewUsersRepository(db)
	seedUser(t, users, "dup@example.com", auth.RoleMember)

	_, err := users.Register(context.Background(), &auth.User{Email: "DUP@example.com", DisplayName: "Dup"})
	assert.Error(t, err)
}

func TestUsers_UpdateRoleTx(t *testing.T) {
	db := newTestDB(t)
	users := auth.NewUsersRepository(db)
	user := seedUser(t, users, "role@example.com", auth.RoleMember)

	updated, err := users.UpdateRoleTx(context.Background(), db, user.ID, auth.RoleTrainer)
	require.NoError(t, err)
	assert.Equal(t, "TRAINER", updated.Role)
	assert.Equal(t, auth.RoleTrainer, updated.ClientRole())

	_, err = users.UpdateRoleTx(context.Background(), db, uuid.New(), auth.RoleTrainer)
	require.Error(t, err)
	assert.True(t, auth.IsNotFound(err))

	_, err = users.UpdateRoleTx(context.Background(), db, user.ID, auth.Role("owner"))
	require.Error(t, err)
	assert.True(t, auth.HasTextCode(err, auth.TextCodeValidation))
}

func TestUsers_TrackSuccessfulLogin(t *testing.T) {
	db := newTestDB(t)
	clock := newFixedClock(time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC))
	users := auth.NewUsersRepository(db, auth.WithUsersClock(clock.Now))
	user := seedUser(t, users, "login@example.com", auth.RoleMember)

	require.NoError(t, users.TrackSuccessfulLogin(context.Background(), user))
	require.NotNil(t, user.LoggedInAt)

	stored, err := users.GetByID(context.Background(), user.ID.String())
	require.NoError(t, err)
	require.NotNil(t, stored.LoggedInAt)
	assert.True(t, stored.LoggedInAt.Equal(clock.Now()))

	assert.NoError(t, users.TrackSuccessfulLogin(context.Background(), nil))
}
