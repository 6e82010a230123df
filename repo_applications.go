package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// TrainerApplications persists trainer applications, one row per requester
type TrainerApplications interface {
	repository.Repository[*TrainerApplication]

	GetByUser(ctx context.Context, userID uuid.UUID) (*TrainerApplication, error)
	GetByUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (*TrainerApplication, error)
	GetDetailedTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*TrainerApplication, error)
	UpsertPendingTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, justification string) (*TrainerApplication, error)
	UpdateDecisionTx(ctx context.Context, tx bun.IDB, app *TrainerApplication, from ApplicationStatus) error
	ListDetailed(ctx context.Context, status ApplicationStatus) ([]*TrainerApplication, error)
}

type trainerApplications struct {
	repository.Repository[*TrainerApplication]
	db  *bun.DB
	now func() time.Time
}

var _ TrainerApplications = (*trainerApplications)(nil)

type TrainerApplicationsOption func(*trainerApplications)

// WithTrainerApplicationsClock injects a custom clock (useful for tests).
func WithTrainerApplicationsClock(clock func() time.Time) TrainerApplicationsOption {
	return func(r *trainerApplications) {
		if clock != nil {
			r.now = clock
		}
	}
}

func NewTrainerApplicationsRepository(db *bun.DB, opts ...TrainerApplicationsOption) TrainerApplications {
	repo := repository.NewRepository[*TrainerApplication](db, repository.ModelHandlers[*TrainerApplication]{
		NewRecord: func() *TrainerApplication { return &TrainerApplication{} },
		GetID: func(record *TrainerApplication) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *TrainerApplication, id uuid.UUID) {
			if record != nil {
				record.ID = id
			}
		},
		GetIdentifier: func() string {
			return "user_id"
		},
	})

	r := &trainerApplications{
		Repository: repo,
		db:         db,
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

func (r *trainerApplications) GetByUser(ctx context.Context, userID uuid.UUID) (*TrainerApplication, error) {
	return r.GetByUserTx(ctx, r.db, userID)
}

func (r *trainerApplications) GetByUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (*TrainerApplication, error) {
	record := &TrainerApplication{}
	err := tx.NewSelect().
		Model(record).
		Relation("User").
		Where("?TableAlias.user_id = ?", userID.String()).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"user_id": userID.String(),
				})
		}
		return nil, err
	}
	return record, nil
}

// GetDetailedTx loads an application together with its requester
func (r *trainerApplications) GetDetailedTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*TrainerApplication, error) {
	record := &TrainerApplication{}
	err := tx.NewSelect().
		Model(record).
		Relation("User").
		Where("?TableAlias.id = ?", id.String()).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"id": id.String(),
				})
		}
		return nil, err
	}
	return record, nil
}

// UpsertPendingTx creates the requester's application or resets the
// existing one to pending with a fresh justification and no review data.
// An approved row is never reset, the write reports ErrConflict instead.
func (r *trainerApplications) UpsertPendingTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, justification string) (*TrainerApplication, error) {
	now := r.now().UTC()
	record := &TrainerApplication{
		ID:            uuid.New(),
		UserID:        userID,
		Justification: justification,
		Status:        ApplicationPending,
		CreatedAt:     &now,
		UpdatedAt:     &now,
	}

	err := tx.NewInsert().
		Model(record).
		On("CONFLICT (user_id) DO UPDATE").
		Set("justification = EXCLUDED.justification").
		Set("status = EXCLUDED.status").
		Set("reviewed_by = NULL").
		Set("reviewed_at = NULL").
		Set("rejection_reason = NULL").
		Set("updated_at = EXCLUDED.updated_at").
		Where("?TableAlias.status <> ?", string(ApplicationApproved)).
		Returning("*").
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || repository.IsRecordNotFound(err) {
			return nil, with(ErrConflict, map[string]any{
				"user_id": userID.String(),
				"status":  ApplicationApproved,
				"reason":  "application already approved",
			})
		}
		return nil, err
	}

	return r.GetDetailedTx(ctx, tx, record.ID)
}

// UpdateDecisionTx persists the review fields of app. The row must still
// hold status from, otherwise another decision won and ErrConflict is
// returned.
func (r *trainerApplications) UpdateDecisionTx(ctx context.Context, tx bun.IDB, app *TrainerApplication, from ApplicationStatus) error {
	now := r.now().UTC()
	app.UpdatedAt = &now

	res, err := tx.NewUpdate().
		Model(app).
		Column("status", "reviewed_by", "reviewed_at", "rejection_reason", "updated_at").
		WherePK().
		Where("?TableAlias.status = ?", string(from)).
		Exec(ctx)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return with(ErrConflict, map[string]any{
			"id":   app.ID.String(),
			"from": from,
			"to":   app.Status,
		})
	}
	return nil
}

// ListDetailed returns applications with their requesters, oldest first.
// An empty status lists every application.
func (r *trainerApplications) ListDetailed(ctx context.Context, status ApplicationStatus) ([]*TrainerApplication, error) {
	records := []*TrainerApplication{}
	q := r.db.NewSelect().
		Model(&records).
		Relation("User")

	if status != "" {
		q = q.Where("?TableAlias.status = ?", string(status))
	}

	if err := q.Order("tapp.created_at ASC").Scan(ctx); err != nil {
		return nil, err
	}
	return records, nil
}
