package auth

import "strings"

// Role values mirror the user directory verbatim, including the Swedish
// labels used by the upstream datastore.
const (
	RoleAdmin    = "ClientFlowAdmin"
	RoleManager  = "Ledare"
	RoleEmployee = "Anställd"
)

// Principal is the authenticated caller as resolved from the user directory.
type Principal struct {
	UserID   string
	Role     string
	AgencyID string
	Name     string
	Email    string
}

// PrincipalFromClaims rebuilds a principal from validated token claims.
func PrincipalFromClaims(claims *Claims) Principal {
	if claims == nil {
		return Principal{}
	}
	return Principal{
		UserID:   claims.Subject,
		Role:     claims.Role,
		AgencyID: claims.AgencyID,
		Name:     claims.Name,
		Email:    claims.Email,
	}
}

// KnownRole reports whether role is one of the three directory roles.
func KnownRole(role string) bool {
	switch strings.TrimSpace(role) {
	case RoleAdmin, RoleManager, RoleEmployee:
		return true
	}
	return false
}
