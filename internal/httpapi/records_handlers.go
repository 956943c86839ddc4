package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"clientflow.se/internal/access"
	"clientflow.se/internal/auth"
	"clientflow.se/internal/datastore"
)

type listRecordsResponse struct {
	Items []datastore.Record `json:"items"`
	Count int                `json:"count"`
}

func (a *API) handleRecords(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "missing session")
		return
	}

	filter, ok := access.BuildFilter(principal)
	if !ok {
		// Unknown role or unusable scope: an empty result, not an error.
		writeJSON(w, http.StatusOK, listRecordsResponse{Items: []datastore.Record{}})
		return
	}

	records, err := a.store.ListRecords(r.Context(), filter)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "record listing failed")
		return
	}
	if records == nil {
		records = []datastore.Record{}
	}
	writeJSON(w, http.StatusOK, listRecordsResponse{Items: records, Count: len(records)})
}

func (a *API) handleRecordResource(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/v1/records/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "missing session")
		return
	}
	filter, ok := access.BuildFilter(principal)
	if !ok {
		writeError(w, r, http.StatusNotFound, "record not found")
		return
	}

	rec, err := a.store.GetRecord(r.Context(), id)
	if err != nil {
		if errors.Is(err, datastore.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "record not found")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "record lookup failed")
		return
	}
	// Out-of-scope records answer exactly like missing ones.
	if !recordVisible(rec, filter) {
		writeError(w, r, http.StatusNotFound, "record not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func recordVisible(rec datastore.Record, filter datastore.Filter) bool {
	if filter.AgencyID != "" {
		if fmt.Sprint(rec.Fields["Byrå ID"]) != filter.AgencyID {
			return false
		}
	}
	if filter.MemberID != "" {
		if !strings.Contains(fmt.Sprint(rec.Fields["Användare"]), filter.MemberID) {
			return false
		}
	}
	return true
}
