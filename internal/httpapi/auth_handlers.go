package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"clientflow.se/internal/audit"
	"clientflow.se/internal/auth"
	"clientflow.se/internal/datastore"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionUser struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name,omitempty"`
	Role     string `json:"role"`
	AgencyID string `json:"agency_id,omitempty"`
}

type loginResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      sessionUser `json:"user"`
}

const sessionTTL = 12 * time.Hour

func (a *API) handleAuthLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	email := strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := a.store.FindUserByEmail(r.Context(), email)
	if err != nil {
		if errors.Is(err, datastore.ErrNotFound) {
			// Same answer as for a wrong password.
			writeError(w, r, http.StatusUnauthorized, "invalid credentials")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "login failed")
		return
	}
	if err := auth.VerifyPassword(user.PasswordHash, req.Password); err != nil {
		writeError(w, r, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if !auth.KnownRole(user.Role) {
		// A directory row with a role outside the three known values would
		// otherwise produce a session no access filter can place.
		writeError(w, r, http.StatusForbidden, "account role is not recognised")
		return
	}

	principal := auth.Principal{
		UserID:   user.ID,
		Role:     user.Role,
		AgencyID: user.AgencyID,
		Name:     user.Name,
		Email:    user.Email,
	}
	token, err := auth.GenerateToken(principal, sessionTTL)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "token generation failed")
		return
	}

	expiresAt := time.Now().UTC().Add(sessionTTL)
	_ = audit.LogEvent(r.Context(), "auth.login", map[string]any{
		"user_id":    user.ID,
		"role":       user.Role,
		"expires_at": expiresAt.Format(time.RFC3339),
	})

	writeJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User: sessionUser{
			ID:       user.ID,
			Email:    user.Email,
			Name:     user.Name,
			Role:     user.Role,
			AgencyID: user.AgencyID,
		},
	})
}

func (a *API) handleAuthMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "missing session")
		return
	}
	writeJSON(w, http.StatusOK, sessionUser{
		ID:       principal.UserID,
		Email:    principal.Email,
		Name:     principal.Name,
		Role:     principal.Role,
		AgencyID: principal.AgencyID,
	})
}
