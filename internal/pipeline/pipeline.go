package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"clientflow.se/internal/audit"
	"clientflow.se/internal/datastore"
	"clientflow.se/internal/normalize"
	"clientflow.se/internal/obs"
	"clientflow.se/internal/registry"
	"clientflow.se/internal/render"
)

// maxDocuments is how many annual reports one sync stores, newest first.
const maxDocuments = 3

var slotNames = [maxDocuments]string{"senaste", "fg", "ffg"}

// RegistryAPI is the slice of the registry client the pipeline needs.
type RegistryAPI interface {
	LookupOrganisation(ctx context.Context, identity string) ([]registry.Organisation, error)
	ListDocuments(ctx context.Context, identity string) ([]registry.Document, error)
	FetchDocument(ctx context.Context, documentID string) ([]byte, string, error)
}

// Renderer converts a fetched archive to a storable document.
type Renderer interface {
	Render(ctx context.Context, archive []byte, contentType string, desc render.Descriptor) render.Result
}

// FileSaver persists rendered documents and returns the stored name.
type FileSaver interface {
	Save(base string, data []byte) (string, error)
}

// Request is one canonical sync trigger. The HTTP layer resolves input
// aliases before the pipeline sees anything.
type Request struct {
	Identity    string
	SubmitterID string
	AgencyID    string
}

// DocumentOutcome describes what happened to one annual report.
type DocumentOutcome struct {
	Slot       string      `json:"slot"`
	DocumentID string      `json:"document_id"`
	PeriodEnd  string      `json:"period_end"`
	FileName   string      `json:"file_name,omitempty"`
	Mode       render.Mode `json:"mode,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// Result is the full sync outcome. Partial means the record was written but
// at least one document step failed.
type Result struct {
	RecordID        string            `json:"record_id"`
	Identity        string            `json:"identity"`
	Partial         bool              `json:"partial"`
	Documents       []DocumentOutcome `json:"documents"`
	DocumentListErr string            `json:"document_list_error,omitempty"`
}

// Orchestrator runs the lookup - documents - render - store pipeline.
type Orchestrator struct {
	registry      RegistryAPI
	renderer      Renderer
	files         FileSaver
	store         datastore.Store
	publicBaseURL string
}

// New wires the pipeline dependencies. publicBaseURL is the externally
// reachable prefix for stored file links.
func New(reg RegistryAPI, renderer Renderer, files FileSaver, store datastore.Store, publicBaseURL string) *Orchestrator {
	return &Orchestrator{
		registry:      reg,
		renderer:      renderer,
		files:         files,
		store:         store,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

// Sync executes one run. Lookup and the final record write are fatal;
// everything between is best-effort and reported in the result.
func (o *Orchestrator) Sync(ctx context.Context, req Request) (Result, error) {
	identity, err := registry.NormalizeIdentity(req.Identity)
	if err != nil {
		obs.ObserveSync("failed")
		return Result{}, err
	}
	res := Result{Identity: identity}

	orgs, err := o.registry.LookupOrganisation(ctx, identity)
	if err != nil {
		obs.ObserveSync("failed")
		return Result{}, err
	}

	docs, err := o.registry.ListDocuments(ctx, identity)
	if err != nil {
		// The organisation data is still worth storing; record the
		// failure and continue with an empty document list.
		res.DocumentListErr = err.Error()
		res.Partial = true
		docs = nil
	}

	sort.SliceStable(docs, func(i, j int) bool { return docs[i].PeriodEnd > docs[j].PeriodEnd })
	if len(docs) > maxDocuments {
		docs = docs[:maxDocuments]
	}

	files := make(map[string]normalize.FileRef, len(docs))
	for i, doc := range docs {
		outcome := o.processDocument(ctx, slotNames[i], doc, files)
		if outcome.Error != "" {
			res.Partial = true
		}
		res.Documents = append(res.Documents, outcome)
	}

	fields := normalize.Fields(normalize.Input{
		Identity:      identity,
		Organisations: orgs,
		Documents:     docs,
		Files:         files,
		AgencyID:      req.AgencyID,
		SubmitterRaw:  req.SubmitterID,
	})

	rec, err := o.store.CreateRecord(ctx, fields)
	if err != nil {
		obs.ObserveSync("failed")
		return Result{}, fmt.Errorf("store record: %w", err)
	}
	res.RecordID = rec.ID

	outcome := "ok"
	if res.Partial {
		outcome = "partial"
	}
	obs.ObserveSync(outcome)
	_ = audit.LogEvent(ctx, "sync.completed", map[string]any{
		"identity":  identity,
		"record_id": rec.ID,
		"outcome":   outcome,
		"documents": len(res.Documents),
	})
	return res, nil
}

// processDocument fetches, renders and stores one report. Failures are
// captured in the outcome, never propagated.
func (o *Orchestrator) processDocument(ctx context.Context, slot string, doc registry.Document, files map[string]normalize.FileRef) DocumentOutcome {
	outcome := DocumentOutcome{
		Slot:       slot,
		DocumentID: doc.ID,
		PeriodEnd:  doc.PeriodEnd,
	}

	archive, contentType, err := o.registry.FetchDocument(ctx, doc.ID)
	if err != nil {
		outcome.Error = err.Error()
		return outcome
	}

	rendered := o.renderer.Render(ctx, archive, contentType, render.Descriptor{
		DocumentID: doc.ID,
		PeriodEnd:  doc.PeriodEnd,
	})
	outcome.Mode = rendered.Mode

	base := fmt.Sprintf("%s-arsredovisning-%s%s", slot, doc.PeriodEnd, extensionFor(rendered.Mode))
	name, err := o.files.Save(base, rendered.Data)
	if err != nil {
		outcome.Error = fmt.Sprintf("save rendered document: %v", err)
		return outcome
	}
	outcome.FileName = name

	files[doc.ID] = normalize.FileRef{
		URL:      o.publicBaseURL + "/v1/files/" + name,
		Filename: base,
	}
	return outcome
}

func extensionFor(mode render.Mode) string {
	if mode == render.ModeRawPassthrough {
		return ".zip"
	}
	return ".pdf"
}
