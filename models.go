package auth

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the user model. Role holds the canonical upper-case form.
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email         string     `bun:"email,notnull,unique" json:"email,omitempty"`
	DisplayName   string     `bun:"display_name,notnull" json:"display_name,omitempty"`
	Role          string     `bun:"role,notnull" json:"role,omitempty"`
	PasswordHash  string     `bun:"password_hash" json:"-"`
	LoggedInAt    *time.Time `bun:"loggedin_at,nullzero" json:"loggedin_at,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// ClientRole returns the lower-case role, empty when the stored value is unknown
func (u *User) ClientRole() Role {
	if u == nil {
		return ""
	}
	role, ok := ParseRole(u.Role)
	if !ok {
		return ""
	}
	return role
}

// ApplicationStatus is the lifecycle state of a trainer application
type ApplicationStatus string

const (
	ApplicationPending  ApplicationStatus = "pending"
	ApplicationApproved ApplicationStatus = "approved"
	ApplicationRejected ApplicationStatus = "rejected"
)

// IsValid checks the status against the known set
func (s ApplicationStatus) IsValid() bool {
	switch s {
	case ApplicationPending, ApplicationApproved, ApplicationRejected:
		return true
	default:
		return false
	}
}

// TrainerApplication is a member's request to be elevated to trainer.
// There is at most one row per requester.
type TrainerApplication struct {
	bun.BaseModel   `bun:"table:trainer_applications,alias:tapp"`
	ID              uuid.UUID         `bun:"id,pk,nullzero,type:uuid" json:"id"`
	UserID          uuid.UUID         `bun:"user_id,notnull,unique,type:uuid" json:"user_id"`
	User            *User             `bun:"rel:belongs-to,join:user_id=id" json:"-"`
	Justification   string            `bun:"justification,notnull" json:"justification"`
	Status          ApplicationStatus `bun:"status,notnull" json:"status"`
	ReviewedBy      *uuid.UUID        `bun:"reviewed_by,type:uuid" json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time        `bun:"reviewed_at,nullzero" json:"reviewed_at,omitempty"`
	RejectionReason string            `bun:"rejection_reason,nullzero" json:"rejection_reason,omitempty"`
	CreatedAt       *time.Time        `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt       *time.Time        `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// ApplicationView is a trainer application joined with its requester
type ApplicationView struct {
	ID              uuid.UUID         `json:"id"`
	UserID          uuid.UUID         `json:"user_id"`
	RequesterName   string            `json:"requester_name"`
	RequesterEmail  string            `json:"requester_email"`
	Justification   string            `json:"justification"`
	Status          ApplicationStatus `json:"status"`
	ReviewedBy      *uuid.UUID        `json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time        `json:"reviewed_at,omitempty"`
	RejectionReason string            `json:"rejection_reason,omitempty"`
	CreatedAt       *time.Time        `json:"created_at,omitempty"`
	UpdatedAt       *time.Time        `json:"updated_at,omitempty"`
}

// NewApplicationView flattens an application and its loaded requester
func NewApplicationView(app *TrainerApplication) *ApplicationView {
	if app == nil {
		return nil
	}
	view := &ApplicationView{
		ID:              app.ID,
		UserID:          app.UserID,
		Justification:   app.Justification,
		Status:          app.Status,
		ReviewedBy:      app.ReviewedBy,
		ReviewedAt:      app.ReviewedAt,
		RejectionReason: app.RejectionReason,
		CreatedAt:       app.CreatedAt,
		UpdatedAt:       app.UpdatedAt,
	}
	if app.User != nil {
		view.RequesterName = app.User.DisplayName
		view.RequesterEmail = app.User.Email
	}
	return view
}
