package auth

import (
	"context"
	"database/sql"
	"errors"

	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	Users() Users
	TrainerApplications() TrainerApplications
}

type mngr struct {
	db                  *bun.DB
	users               Users
	trainerApplications TrainerApplications
}

// RepositoryManagerOption customizes the manager
type RepositoryManagerOption func(*mngr)

// WithUsersRepository replaces the default users repository
func WithUsersRepository(users Users) RepositoryManagerOption {
	return func(m *mngr) {
		if users != nil {
			m.users = users
		}
	}
}

// WithTrainerApplicationsRepository replaces the default applications repository
func WithTrainerApplicationsRepository(apps TrainerApplications) RepositoryManagerOption {
	return func(m *mngr) {
		if apps != nil {
			m.trainerApplications = apps
		}
	}
}

func NewRepositoryManager(db *bun.DB, opts ...RepositoryManagerOption) RepositoryManager {
	m := &mngr{
		db:                  db,
		users:               NewUsersRepository(db),
		trainerApplications: NewTrainerApplicationsRepository(db),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

func (m mngr) Validate() error {
	if m.db == nil {
		return errors.New("repository database should be initialized")
	}

	if m.users == nil {
		return errors.New("repository users should be initialized")
	}

	if m.trainerApplications == nil {
		return errors.New("repository trainerApplications should be initialized")
	}

	return nil
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Users() Users {
	return m.users
}

func (m mngr) TrainerApplications() TrainerApplications {
	return m.trainerApplications
}
