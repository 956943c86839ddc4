package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"clientflow.se/internal/datastore"
	"clientflow.se/internal/obs"
	"clientflow.se/internal/pipeline"
	"clientflow.se/internal/registry"
)

// ReadyProbe answers /readyz by pinging the configured datastore.
type ReadyProbe struct {
	Store datastore.Store
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.Store == nil {
		return nil
	}
	return rp.Store.Ping(ctx)
}

// RegistryService is the slice of the registry client the HTTP layer uses.
type RegistryService interface {
	LookupOrganisation(ctx context.Context, identity string) ([]registry.Organisation, error)
	ListDocuments(ctx context.Context, identity string) ([]registry.Document, error)
	FetchDocument(ctx context.Context, documentID string) ([]byte, string, error)
	Alive(ctx context.Context) error
}

// SyncService runs a full organisation sync.
type SyncService interface {
	Sync(ctx context.Context, req pipeline.Request) (pipeline.Result, error)
}

// FileResolver maps stored file names to local paths.
type FileResolver interface {
	Path(name string) (string, error)
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string

	store    datastore.Store
	registry RegistryService
	syncer   SyncService
	files    FileResolver

	rateBurst  int
	ratePerSec int
}

func New(rp ReadyProbe, version string, store datastore.Store, reg RegistryService, syncer SyncService, files FileResolver) *API {
	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: rp,
		version:    version,
		store:      store,
		registry:   reg,
		syncer:     syncer,
		files:      files,
		rateBurst:  20,
		ratePerSec: 10,
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// session handling
	a.mux.HandleFunc("/v1/auth/login", a.handleAuthLogin)
	a.mux.HandleFunc("/v1/auth/me", a.handleAuthMe)

	// registry passthrough
	a.mux.HandleFunc("/v1/registry/organisations", a.handleRegistryOrganisations)
	a.mux.HandleFunc("/v1/registry/documents", a.handleRegistryDocuments)
	a.mux.HandleFunc("/v1/registry/documents/", a.handleRegistryDocumentResource)
	a.mux.HandleFunc("/v1/registry/alive", a.handleRegistryAlive)

	// sync pipeline and stored results
	a.mux.HandleFunc("/v1/sync", a.handleSync)
	a.mux.HandleFunc("/v1/records", a.handleRecords)
	a.mux.HandleFunc("/v1/records/", a.handleRecordResource)

	// rendered documents
	a.mux.HandleFunc("/v1/files/", a.handleFiles)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// ConfigureRateLimit overrides the default per-IP token bucket settings.
// Must be called before Handler.
func (a *API) ConfigureRateLimit(burst, perSec int) {
	if burst > 0 {
		a.rateBurst = burst
	}
	if perSec > 0 {
		a.ratePerSec = perSec
	}
}

// Handler returns the fully wrapped http.Handler for the server.
func (a *API) Handler() http.Handler {
	h := obs.Instrument(a.mux)
	h = a.withAuth(h)
	h = MaxBodyBytes(h, 1<<20)
	h = SecurityHeaders(h)
	h = CORS(h)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = LoggingJSON(h)
	return RequestID(h)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "clientflow-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "clientflow-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

func handleRegistryError(w http.ResponseWriter, r *http.Request, err error) {
	var upstream *registry.UpstreamError
	switch {
	case errors.Is(err, registry.ErrInvalidIdentity):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, registry.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "organisation not found")
	case errors.Is(err, registry.ErrUpstreamAuth):
		writeError(w, r, http.StatusBadGateway, "registry authentication failed")
	case errors.As(err, &upstream):
		writeError(w, r, http.StatusBadGateway, upstream.Error())
	default:
		writeError(w, r, http.StatusBadGateway, "registry request failed")
	}
}
