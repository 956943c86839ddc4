package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"clientflow.se/internal/registry"
)

type identityRequest struct {
	Identity string `json:"identity"`
}

type documentItem struct {
	DocumentID   string `json:"document_id"`
	PeriodEnd    string `json:"period_end"`
	Format       string `json:"format"`
	RegisteredAt string `json:"registered_at"`
	DisplayName  string `json:"display_name"`
	DownloadURL  string `json:"download_url"`
}

func (a *API) handleRegistryOrganisations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req identityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	identity, err := registry.NormalizeIdentity(req.Identity)
	if err != nil {
		handleRegistryError(w, r, err)
		return
	}
	orgs, err := a.registry.LookupOrganisation(r.Context(), identity)
	if err != nil {
		handleRegistryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"identity":      identity,
		"organisations": orgs,
	})
}

func (a *API) handleRegistryDocuments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req identityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	identity, err := registry.NormalizeIdentity(req.Identity)
	if err != nil {
		handleRegistryError(w, r, err)
		return
	}
	docs, err := a.registry.ListDocuments(r.Context(), identity)
	if err != nil {
		handleRegistryError(w, r, err)
		return
	}

	items := make([]documentItem, 0, len(docs))
	for _, doc := range docs {
		items = append(items, documentItem{
			DocumentID:   doc.ID,
			PeriodEnd:    doc.PeriodEnd,
			Format:       doc.Format,
			RegisteredAt: doc.RegisteredAt,
			DisplayName:  fmt.Sprintf("Årsredovisning %s (%s)", doc.PeriodEnd, doc.Format),
			DownloadURL:  "/v1/registry/documents/" + doc.ID,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"identity": identity,
		"items":    items,
	})
}

func (a *API) handleRegistryDocumentResource(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/v1/registry/documents/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	data, contentType, err := a.registry.FetchDocument(r.Context(), id)
	if err != nil {
		handleRegistryError(w, r, err)
		return
	}
	if contentType == "" {
		contentType = "application/zip"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="arsredovisning-`+id+`.zip"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

func (a *API) handleRegistryAlive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if err := a.registry.Alive(r.Context()); err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"status": "unreachable",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}
