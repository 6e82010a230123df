package auth

// Identity is the authenticated, request or connection scoped principal.
// It is derived from the credential store on every authentication and
// never persisted.
type Identity struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Role        Role   `json:"role"`
}

// NewIdentityFromCredential normalizes a stored credential into an Identity
func NewIdentityFromCredential(cred *Credential) *Identity {
	if cred == nil {
		return nil
	}
	role, ok := ParseRole(string(cred.Role))
	if !ok {
		role = ""
	}
	return &Identity{
		ID:          cred.ID,
		Email:       cred.Email,
		DisplayName: cred.DisplayName,
		Role:        role,
	}
}

// NewCredentialFromUser adapts a User row into a Credential
func NewCredentialFromUser(user *User) *Credential {
	if user == nil {
		return nil
	}
	return &Credential{
		ID:          user.ID.String(),
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Role:        user.ClientRole(),
	}
}

// HasRole reports whether the identity holds one of roles
func (i *Identity) HasRole(roles ...Role) bool {
	if i == nil {
		return false
	}
	for _, r := range roles {
		if i.Role == r {
			return true
		}
	}
	return false
}
