package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"clientflow.se/internal/auth"
	"clientflow.se/internal/pipeline"
	"clientflow.se/internal/registry"
)

// Form builders name these fields differently depending on which template
// produced the webhook, so the identity and the submitter references are
// accepted under every spelling seen in production payloads.
var (
	identityAliases  = []string{"organisationsnummer", "orgnr", "Orgnr", "organization_number", "orgNumber", "identity"}
	submitterAliases = []string{"anvandareId", "anvId", "userId", "anv_id", "user_id", "Användare", "användare", "submitter"}
	agencyAliases    = []string{"byraId", "byra_id", "agencyId", "agency_id", "byrå_id", "Byrå ID"}
)

func (a *API) handleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var payload map[string]any
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	req := pipeline.Request{
		Identity:    firstString(payload, identityAliases),
		SubmitterID: firstString(payload, submitterAliases),
		AgencyID:    firstString(payload, agencyAliases),
	}
	if req.Identity == "" {
		writeError(w, r, http.StatusBadRequest, "organisation number is required")
		return
	}
	if req.AgencyID == "" {
		// Fall back to the caller's own agency when the payload has none.
		if principal, ok := auth.PrincipalFromContext(r.Context()); ok {
			req.AgencyID = principal.AgencyID
		}
	}

	res, err := a.syncer.Sync(r.Context(), req)
	if err != nil {
		if errors.Is(err, registry.ErrInvalidIdentity) || errors.Is(err, registry.ErrNotFound) ||
			errors.Is(err, registry.ErrUpstreamAuth) {
			handleRegistryError(w, r, err)
			return
		}
		var upstream *registry.UpstreamError
		if errors.As(err, &upstream) {
			handleRegistryError(w, r, err)
			return
		}
		writeError(w, r, http.StatusInternalServerError, "sync failed")
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// firstString returns the first alias present in the payload, as a trimmed
// string. Numeric values are accepted since webhook fields arrive untyped.
func firstString(payload map[string]any, aliases []string) string {
	for _, key := range aliases {
		v, ok := payload[key]
		if !ok {
			continue
		}
		switch val := v.(type) {
		case string:
			if s := strings.TrimSpace(val); s != "" {
				return s
			}
		case float64:
			return fmt.Sprintf("%.0f", val)
		}
	}
	return ""
}
