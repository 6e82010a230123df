package auth

// Authorize allows the operation when identity holds one of the permitted
// roles. It is a pure predicate and safe to call any number of times.
func Authorize(identity *Identity, roles ...Role) error {
	if identity == nil {
		return ErrAuthenticationRequired
	}

	if !identity.HasRole(roles...) {
		return with(ErrForbidden, map[string]any{
			"role":     identity.Role.String(),
			"required": roleNames(roles),
		})
	}

	return nil
}

func roleNames(roles []Role) []string {
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		out = append(out, r.String())
	}
	return out
}
