package auth

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// UserCredentialStore adapts the users repository to a CredentialStore.
// It only reads, so a single instance is shared by every connection.
type UserCredentialStore struct {
	users Users
}

var _ CredentialStore = (*UserCredentialStore)(nil)

// NewUserCredentialStore creates a CredentialStore backed by users
func NewUserCredentialStore(users Users) *UserCredentialStore {
	return &UserCredentialStore{users: users}
}

// FindByID resolves a subject id. Ids that are not valid UUIDs cannot be
// stored and are reported as not found.
func (s *UserCredentialStore) FindByID(ctx context.Context, id string) (*Credential, error) {
	uid, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return nil, with(ErrIdentityNotFound, map[string]any{"id": id})
	}

	user, err := s.users.GetByID(ctx, uid.String())
	if err != nil {
		if IsNotFound(err) {
			return nil, with(ErrIdentityNotFound, map[string]any{"id": id})
		}
		return nil, err
	}

	return NewCredentialFromUser(user), nil
}
