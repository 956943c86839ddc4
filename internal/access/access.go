package access

import (
	"strings"

	"clientflow.se/internal/auth"
	"clientflow.se/internal/datastore"
)

// BuildFilter derives the record filter for the caller. ok=false is the
// no-records outcome: the caller is served an empty list, never an error.
// The filter is derived fresh per request and must not be cached, since a
// user's role or agency can change between requests.
func BuildFilter(p auth.Principal) (datastore.Filter, bool) {
	switch p.Role {
	case auth.RoleAdmin:
		return datastore.Filter{}, true
	case auth.RoleManager:
		agency := strings.TrimSpace(p.AgencyID)
		if agency == "" || containsQuote(agency) {
			return datastore.Filter{}, false
		}
		return datastore.Filter{AgencyID: agency}, true
	case auth.RoleEmployee:
		member := strings.TrimSpace(p.UserID)
		if member == "" || containsQuote(member) {
			return datastore.Filter{}, false
		}
		return datastore.Filter{MemberID: member}, true
	}
	return datastore.Filter{}, false
}

// containsQuote rejects values that could escape a datastore filter formula.
// Directory ids are machine-generated, so a quote only appears in tampered
// tokens.
func containsQuote(v string) bool {
	return strings.ContainsAny(v, `"'`)
}
