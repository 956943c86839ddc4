package render

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"testing"
)

type fakeEngine struct {
	out    []byte
	err    error
	closed bool
	gotIn  string
}

func (f *fakeEngine) RenderPDF(ctx context.Context, html string) ([]byte, error) {
	f.gotIn = html
	return f.out, f.err
}

func (f *fakeEngine) Close() error {
	f.closed = true
	return nil
}

func zipWith(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range entries {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create: %v", err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("zip write: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

func TestRenderFullTierUsesFirstMarkupEntry(t *testing.T) {
	engine := &fakeEngine{out: []byte("%PDF-fake")}
	r := New(func(ctx context.Context) (Engine, error) { return engine, nil })

	archive := zipWith(t, map[string]string{
		"report.XHTML": "<html>first</html>",
		"styles.css":   "body{}",
	})
	res := r.Render(context.Background(), archive, "application/zip", Descriptor{DocumentID: "d1", PeriodEnd: "2023-12-31"})

	if res.Mode != ModeFullRender {
		t.Fatalf("expected full render, got %s", res.Mode)
	}
	if res.ContentType != "application/pdf" {
		t.Fatalf("unexpected content type %q", res.ContentType)
	}
	if string(res.Data) != "%PDF-fake" {
		t.Fatalf("unexpected payload")
	}
	if engine.gotIn != "<html>first</html>" {
		t.Fatalf("engine got wrong markup: %q", engine.gotIn)
	}
	if !engine.closed {
		t.Fatalf("engine was not closed after render")
	}
}

func TestRenderFallsBackToNoticeOnEngineFailure(t *testing.T) {
	engine := &fakeEngine{err: errors.New("browser crashed")}
	r := New(func(ctx context.Context) (Engine, error) { return engine, nil })

	archive := zipWith(t, map[string]string{"index.html": "<html/>"})
	res := r.Render(context.Background(), archive, "application/zip", Descriptor{DocumentID: "d2", PeriodEnd: "2022-12-31"})

	if res.Mode != ModeSyntheticNotice {
		t.Fatalf("expected synthetic notice, got %s", res.Mode)
	}
	if res.ContentType != "application/pdf" {
		t.Fatalf("unexpected content type %q", res.ContentType)
	}
	if !bytes.HasPrefix(res.Data, []byte("%PDF")) {
		t.Fatalf("expected a PDF payload")
	}
	if !engine.closed {
		t.Fatalf("engine was not closed after failure")
	}
}

func TestRenderMetadataTierWithoutMarkup(t *testing.T) {
	r := New(nil)

	archive := zipWith(t, map[string]string{"data.xml": "<xbrl/>"})
	res := r.Render(context.Background(), archive, "application/zip", Descriptor{DocumentID: "d3", PeriodEnd: "2021-12-31"})

	if res.Mode != ModeMetadataOnly {
		t.Fatalf("expected metadata tier, got %s", res.Mode)
	}
	if !bytes.HasPrefix(res.Data, []byte("%PDF")) {
		t.Fatalf("expected a PDF payload")
	}
}

func TestRenderRawPassthroughOnBrokenArchive(t *testing.T) {
	r := New(nil)

	archive := []byte("this is not a zip")
	res := r.Render(context.Background(), archive, "application/octet-stream", Descriptor{DocumentID: "d4"})

	if res.Mode != ModeRawPassthrough {
		t.Fatalf("expected raw passthrough, got %s", res.Mode)
	}
	if res.ContentType != "application/octet-stream" {
		t.Fatalf("expected original content type, got %q", res.ContentType)
	}
	if !bytes.Equal(res.Data, archive) {
		t.Fatalf("payload must be untouched")
	}
}

func TestRenderNoEngineStillProducesNoticeChain(t *testing.T) {
	// Markup present but no engine configured: the chain must skip the
	// full-render tier and produce the simplified notice.
	r := New(nil)

	archive := zipWith(t, map[string]string{"arsredovisning.xhtml": "<html/>"})
	res := r.Render(context.Background(), archive, "application/zip", Descriptor{DocumentID: "d5", PeriodEnd: "2020-12-31"})

	if res.Mode != ModeSyntheticNotice {
		t.Fatalf("expected synthetic notice, got %s", res.Mode)
	}
}

func TestIsMarkupName(t *testing.T) {
	cases := map[string]bool{
		"index.html":       true,
		"REPORT.HTM":       true,
		"doc.xhtml":        true,
		"nested/page.Html": true,
		"style.css":        false,
		"report.xml":       false,
		"htmlish.txt":      false,
	}
	for name, want := range cases {
		if got := isMarkupName(name); got != want {
			t.Fatalf("isMarkupName(%q)=%v, want %v", name, got, want)
		}
	}
}
