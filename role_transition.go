package auth

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// DecisionAction is what a reviewer does with an application
type DecisionAction string

const (
	DecisionApprove DecisionAction = "approve"
	DecisionReject  DecisionAction = "reject"
)

// target returns the status a decision moves the application to
func (a DecisionAction) target() (ApplicationStatus, bool) {
	switch a {
	case DecisionApprove:
		return ApplicationApproved, true
	case DecisionReject:
		return ApplicationRejected, true
	default:
		return "", false
	}
}

// MaxJustificationLength caps the free-text justification
const MaxJustificationLength = 2000

// DecisionInput is an administrative decision on a trainer application
type DecisionInput struct {
	RequestID       string         `json:"-"`
	Action          DecisionAction `json:"action"`
	ReviewerID      string         `json:"-"`
	RejectionReason string         `json:"rejection_reason,omitempty"`
}

// Validate checks the decision payload
func (d DecisionInput) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.RequestID, validation.Required),
		validation.Field(&d.ReviewerID, validation.Required),
		validation.Field(&d.Action,
			validation.Required,
			validation.In(DecisionApprove, DecisionReject).Error("must be approve or reject"),
		),
	)
}

// RoleTransitionAuthority is the only component that changes a role after
// registration. It owns the trainer application lifecycle.
type RoleTransitionAuthority interface {
	Submit(ctx context.Context, requesterID, justification string) (*ApplicationView, error)
	Decide(ctx context.Context, input DecisionInput) (*ApplicationView, error)
	Get(ctx context.Context, requesterID string) (*ApplicationView, error)
	List(ctx context.Context, status ApplicationStatus) ([]*ApplicationView, error)
}

// RoleTransitionOption customizes the authority
type RoleTransitionOption func(*roleTransitions)

// WithRoleTransitionClock injects a custom clock (useful for tests).
func WithRoleTransitionClock(clock func() time.Time) RoleTransitionOption {
	return func(rt *roleTransitions) {
		if clock != nil {
			rt.now = clock
		}
	}
}

// WithRoleTransitionActivitySink sets the ActivitySink used to publish decisions.
func WithRoleTransitionActivitySink(sink ActivitySink) RoleTransitionOption {
	return func(rt *roleTransitions) {
		rt.activitySink = normalizeActivitySink(sink)
	}
}

// WithRoleTransitionLogger overrides the logger used for sink failures.
func WithRoleTransitionLogger(logger Logger) RoleTransitionOption {
	return func(rt *roleTransitions) {
		if logger != nil {
			rt.logger = logger
		}
	}
}

// WithRoleUpdater replaces the store used to write the promoted role
func WithRoleUpdater(updater RoleUpdater) RoleTransitionOption {
	return func(rt *roleTransitions) {
		if updater != nil {
			rt.roles = updater
		}
	}
}

// WithStrictDecisions makes rejected applications terminal as well, so
// any decision on an already decided application is a conflict.
func WithStrictDecisions() RoleTransitionOption {
	return func(rt *roleTransitions) {
		rt.transitions[ApplicationRejected] = map[ApplicationStatus]struct{}{}
	}
}

type roleTransitions struct {
	repo         RepositoryManager
	roles        RoleUpdater
	transitions  map[ApplicationStatus]map[ApplicationStatus]struct{}
	now          func() time.Time
	activitySink ActivitySink
	logger       Logger
}

// NewRoleTransitionAuthority returns the default implementation backed by repo.
// Approved applications are terminal; rejected ones may be decided again.
func NewRoleTransitionAuthority(repo RepositoryManager, opts ...RoleTransitionOption) RoleTransitionAuthority {
	rt := &roleTransitions{
		repo:  repo,
		roles: repo.Users(),
		transitions: map[ApplicationStatus]map[ApplicationStatus]struct{}{
			ApplicationPending: {
				ApplicationApproved: {},
				ApplicationRejected: {},
			},
			ApplicationRejected: {
				ApplicationApproved: {},
				ApplicationRejected: {},
			},
		},
		now:          time.Now,
		activitySink: noopActivitySink{},
		logger:       defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(rt)
		}
	}

	return rt
}

func (rt *roleTransitions) canTransition(from, to ApplicationStatus) bool {
	if allowed, ok := rt.transitions[from]; ok {
		_, exists := allowed[to]
		return exists
	}
	return false
}

// Submit creates or resets the requester's application to pending
func (rt *roleTransitions) Submit(ctx context.Context, requesterID, justification string) (*ApplicationView, error) {
	justification = strings.TrimSpace(justification)
	err := validation.Errors{
		"justification": validation.Validate(justification,
			validation.Required,
			validation.RuneLength(1, MaxJustificationLength),
		),
	}.Filter()
	if err != nil {
		return nil, validationError(err)
	}

	userID, err := uuid.Parse(strings.TrimSpace(requesterID))
	if err != nil {
		return nil, with(ErrNotFound, map[string]any{"user_id": requesterID})
	}

	var submitted *TrainerApplication
	err = rt.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := rt.repo.Users().GetByIdentifierTx(ctx, tx, userID.String()); err != nil {
			if IsNotFound(err) {
				return with(ErrNotFound, map[string]any{"user_id": requesterID})
			}
			return err
		}

		existing, err := rt.repo.TrainerApplications().GetByUserTx(ctx, tx, userID)
		if err != nil && !IsNotFound(err) {
			return err
		}

		if existing != nil && existing.Status == ApplicationApproved {
			return with(ErrConflict, map[string]any{
				"status": existing.Status,
				"reason": "application already approved",
			})
		}

		submitted, err = rt.repo.TrainerApplications().UpsertPendingTx(ctx, tx, userID, justification)
		return err
	})
	if err != nil {
		return nil, rt.wrap(err, "submit trainer application")
	}

	recordActivity(ctx, rt.activitySink, rt.logger, rt.now, ActivityEvent{
		EventType: ActivityEventApplicationSubmitted,
		Actor:     ActorRef{ID: userID.String(), Type: "user"},
		UserID:    userID.String(),
		Metadata: map[string]any{
			"application_id": submitted.ID.String(),
		},
	})

	return NewApplicationView(submitted), nil
}

// Decide applies a reviewer decision. The status change and, on approval,
// the promotion to trainer commit together or not at all.
func (rt *roleTransitions) Decide(ctx context.Context, input DecisionInput) (*ApplicationView, error) {
	input.Action = DecisionAction(strings.ToLower(strings.TrimSpace(string(input.Action))))
	input.RejectionReason = strings.TrimSpace(input.RejectionReason)

	if err := input.Validate(); err != nil {
		return nil, validationError(err)
	}

	target, _ := input.Action.target()

	requestID, err := uuid.Parse(strings.TrimSpace(input.RequestID))
	if err != nil {
		return nil, with(ErrNotFound, map[string]any{"id": input.RequestID})
	}

	reviewerID, err := uuid.Parse(strings.TrimSpace(input.ReviewerID))
	if err != nil {
		return nil, with(ErrValidation, map[string]any{
			"fields": map[string]any{"reviewer_id": "must be a valid id"},
		})
	}

	var (
		decided  *TrainerApplication
		from     ApplicationStatus
		fromRole Role
	)

	err = rt.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		app, err := rt.repo.TrainerApplications().GetDetailedTx(ctx, tx, requestID)
		if err != nil {
			if IsNotFound(err) {
				return with(ErrNotFound, map[string]any{"id": input.RequestID})
			}
			return err
		}

		from = app.Status
		if !rt.canTransition(from, target) {
			return with(ErrConflict, map[string]any{
				"from": from,
				"to":   target,
			})
		}

		decidedAt := rt.now().UTC()
		app.Status = target
		app.ReviewedBy = &reviewerID
		app.ReviewedAt = &decidedAt
		app.RejectionReason = ""
		if input.Action == DecisionReject {
			app.RejectionReason = input.RejectionReason
		}

		if err := rt.repo.TrainerApplications().UpdateDecisionTx(ctx, tx, app, from); err != nil {
			return err
		}

		if input.Action == DecisionApprove {
			fromRole = app.User.ClientRole()
			if _, err := rt.roles.UpdateRoleTx(ctx, tx, app.UserID, RoleTrainer); err != nil {
				return err
			}
		}

		decided, err = rt.repo.TrainerApplications().GetDetailedTx(ctx, tx, requestID)
		return err
	})
	if err != nil {
		RoleDecisionsTotal.WithLabelValues("failed").Inc()
		return nil, rt.wrap(err, "decide trainer application")
	}

	RoleDecisionsTotal.WithLabelValues(string(input.Action)).Inc()

	actor := ActorRef{ID: reviewerID.String(), Type: "admin"}
	recordActivity(ctx, rt.activitySink, rt.logger, rt.now, ActivityEvent{
		EventType: ActivityEventApplicationDecided,
		Actor:     actor,
		UserID:    decided.UserID.String(),
		Metadata: map[string]any{
			"application_id": decided.ID.String(),
			"action":         string(input.Action),
			"from_status":    string(from),
			"to_status":      string(decided.Status),
		},
	})

	if input.Action == DecisionApprove {
		recordActivity(ctx, rt.activitySink, rt.logger, rt.now, ActivityEvent{
			EventType: ActivityEventRoleChanged,
			Actor:     actor,
			UserID:    decided.UserID.String(),
			FromRole:  fromRole,
			ToRole:    RoleTrainer,
		})
	}

	return NewApplicationView(decided), nil
}

// Get returns the requester's application
func (rt *roleTransitions) Get(ctx context.Context, requesterID string) (*ApplicationView, error) {
	userID, err := uuid.Parse(strings.TrimSpace(requesterID))
	if err != nil {
		return nil, with(ErrNotFound, map[string]any{"user_id": requesterID})
	}

	app, err := rt.repo.TrainerApplications().GetByUser(ctx, userID)
	if err != nil {
		if IsNotFound(err) {
			return nil, with(ErrNotFound, map[string]any{"user_id": requesterID})
		}
		return nil, rt.wrap(err, "get trainer application")
	}

	return NewApplicationView(app), nil
}

// List returns applications filtered by status, all of them when status is empty
func (rt *roleTransitions) List(ctx context.Context, status ApplicationStatus) ([]*ApplicationView, error) {
	if status != "" && !status.IsValid() {
		return nil, with(ErrValidation, map[string]any{
			"fields": map[string]any{"status": "must be pending, approved or rejected"},
		})
	}

	apps, err := rt.repo.TrainerApplications().ListDetailed(ctx, status)
	if err != nil {
		return nil, rt.wrap(err, "list trainer applications")
	}

	views := make([]*ApplicationView, 0, len(apps))
	for _, app := range apps {
		views = append(views, NewApplicationView(app))
	}
	return views, nil
}

// wrap passes domain errors through and turns store failures into internal errors
func (rt *roleTransitions) wrap(err error, op string) error {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.Category != goerrors.CategoryInternal {
		return err
	}
	rt.logger.Error("role transition failed", "operation", op, "error", err)
	return goerrors.Wrap(err, goerrors.CategoryInternal, op+" failed").
		WithCode(goerrors.CodeInternal)
}
