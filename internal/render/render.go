package render

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"path"
	"strings"
	"time"

	"clientflow.se/internal/obs"
)

// Mode tags which tier produced the render result.
type Mode string

const (
	ModeFullRender      Mode = "full_render"
	ModeSyntheticNotice Mode = "synthetic_notice"
	ModeMetadataOnly    Mode = "metadata_only"
	ModeRawPassthrough  Mode = "raw_passthrough"
)

// Descriptor carries document metadata used by the fallback tiers.
type Descriptor struct {
	DocumentID string
	PeriodEnd  string
}

// Result is the rendered document. ContentType is application/pdf for every
// tier except raw passthrough, which keeps the original mime.
type Result struct {
	Data        []byte
	ContentType string
	Mode        Mode
}

// Engine renders HTML markup to a paginated PDF. One engine instance serves
// one render and is closed afterwards.
type Engine interface {
	RenderPDF(ctx context.Context, html string) ([]byte, error)
	Close() error
}

// EngineFactory creates a fresh engine per render.
type EngineFactory func(ctx context.Context) (Engine, error)

// Renderer converts registry document archives to PDF with a chain of
// fallbacks. Render never returns an error: the last tier passes the
// original bytes through untouched.
type Renderer struct {
	engines EngineFactory
	timeout time.Duration
}

// New constructs a renderer. A nil factory disables the full-render tier,
// which is useful on hosts without a Chromium binary.
func New(engines EngineFactory) *Renderer {
	return &Renderer{
		engines: engines,
		timeout: 60 * time.Second,
	}
}

// Render produces a PDF (or the raw archive) for one fetched document.
func (r *Renderer) Render(ctx context.Context, archive []byte, contentType string, desc Descriptor) Result {
	markup, ok, err := extractMarkup(archive)
	if err != nil {
		// Unreadable archive: pass the original bytes through so the
		// caller still gets a file to store.
		return r.finish(Result{Data: archive, ContentType: contentType, Mode: ModeRawPassthrough})
	}

	if ok {
		if data, err := r.fullRender(ctx, markup); err == nil {
			return r.finish(Result{Data: data, ContentType: "application/pdf", Mode: ModeFullRender})
		} else {
			obs.LogEvent("warn", "full_render_failed", map[string]any{
				"document_id": desc.DocumentID,
				"error":       err.Error(),
			})
		}
		if data, err := noticePDF(desc); err == nil {
			return r.finish(Result{Data: data, ContentType: "application/pdf", Mode: ModeSyntheticNotice})
		}
	}

	if data, err := metadataPDF(desc); err == nil {
		return r.finish(Result{Data: data, ContentType: "application/pdf", Mode: ModeMetadataOnly})
	}

	return r.finish(Result{Data: archive, ContentType: contentType, Mode: ModeRawPassthrough})
}

func (r *Renderer) finish(res Result) Result {
	obs.ObserveRender(string(res.Mode))
	return res
}

func (r *Renderer) fullRender(ctx context.Context, markup string) ([]byte, error) {
	if r.engines == nil {
		return nil, errNoEngine
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	engine, err := r.engines(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = engine.Close() }()

	return engine.RenderPDF(ctx, markup)
}

// extractMarkup returns the first markup entry of the archive. The registry
// packages annual reports as ZIP files holding a single XHTML document plus
// assets; entry naming varies, so matching is by extension only.
func extractMarkup(archive []byte) (string, bool, error) {
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return "", false, err
	}
	for _, f := range zr.File {
		if !isMarkupName(f.Name) {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", false, err
		}
		data, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return "", false, err
		}
		return string(data), true, nil
	}
	return "", false, nil
}

func isMarkupName(name string) bool {
	switch strings.ToLower(path.Ext(name)) {
	case ".htm", ".html", ".xhtml":
		return true
	}
	return false
}
