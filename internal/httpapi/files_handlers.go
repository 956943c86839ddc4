package httpapi

import (
	"net/http"
	"path/filepath"
	"strings"
)

func (a *API) handleFiles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		methodNotAllowed(w, r, http.MethodGet, http.MethodHead)
		return
	}
	name := strings.TrimPrefix(r.URL.Path, "/v1/files/")
	if name == "" || strings.Contains(name, "/") {
		writeError(w, r, http.StatusNotFound, "file not found")
		return
	}

	path, err := a.files.Path(name)
	if err != nil {
		writeError(w, r, http.StatusNotFound, "file not found")
		return
	}

	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		w.Header().Set("Content-Type", "application/pdf")
	case ".zip":
		w.Header().Set("Content-Type", "application/zip")
	default:
		w.Header().Set("Content-Type", "application/octet-stream")
	}
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	http.ServeFile(w, r, path)
}
