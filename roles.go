package auth

import "strings"

// Role is the user's role. Exactly one role per user, never a set.
type Role string

const (
	// RoleMember is the default role every registration gets
	RoleMember Role = "member"
	// RoleTrainer can publish courses, granted through an approved application
	RoleTrainer Role = "trainer"
	// RoleAdmin reviews trainer applications
	RoleAdmin Role = "admin"
)

// IsValid checks if the role is one of the predefined valid roles
func (r Role) IsValid() bool {
	switch r {
	case RoleMember, RoleTrainer, RoleAdmin:
		return true
	default:
		return false
	}
}

// Canonical is the upper-case form persisted in the credential store
func (r Role) Canonical() string {
	return strings.ToUpper(string(r))
}

// String is the lower-case client form authorization logic works with
func (r Role) String() string {
	return string(r)
}

// ParseRole accepts either the stored or the client form
func ParseRole(raw string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	return role, role.IsValid()
}

// GetAllRoles returns all predefined roles
func GetAllRoles() []Role {
	return []Role{
		RoleMember,
		RoleTrainer,
		RoleAdmin,
	}
}
