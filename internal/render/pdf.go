package render

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

var errNoEngine = errors.New("no rendering engine configured")

// noticePDF builds a single-page PDF telling the reader the full report
// could not be rendered and a simplified view is shown instead.
func noticePDF(desc Descriptor) ([]byte, error) {
	return composePDF([]textLine{
		{Value: "Årsredovisning (förenklad vy)", X: 50, Y: 780, Size: 16},
		{Value: "Rapporteringsperiod: " + orDash(desc.PeriodEnd), X: 50, Y: 750, Size: 11},
		{Value: "Dokument-ID: " + orDash(desc.DocumentID), X: 50, Y: 730, Size: 11},
		{Value: "Den fullständiga årsredovisningen kunde inte renderas.", X: 50, Y: 700, Size: 11},
		{Value: "Originaldokumentet finns tillgängligt hos Bolagsverket.", X: 50, Y: 684, Size: 11},
	})
}

// metadataPDF builds a single-page summary when the archive holds no markup.
func metadataPDF(desc Descriptor) ([]byte, error) {
	return composePDF([]textLine{
		{Value: "Årsredovisning från Bolagsverket", X: 50, Y: 780, Size: 16},
		{Value: "Rapporteringsperiod: " + orDash(desc.PeriodEnd), X: 50, Y: 750, Size: 11},
		{Value: "Dokument-ID: " + orDash(desc.DocumentID), X: 50, Y: 730, Size: 11},
		{Value: "Detta är en sammanfattning av årsredovisningen.", X: 50, Y: 700, Size: 11},
	})
}

type textLine struct {
	Value string
	X     float64
	Y     float64
	Size  int
}

// composePDF renders text lines onto one A4 page using pdfcpu's JSON
// page-description input.
func composePDF(lines []textLine) ([]byte, error) {
	entries := make([]map[string]any, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line.Value) == "" {
			continue
		}
		entries = append(entries, map[string]any{
			"value":    line.Value,
			"position": []float64{line.X, line.Y},
			"font": map[string]any{
				"name": "Helvetica",
				"size": line.Size,
			},
		})
	}
	decl := map[string]any{
		"pages": map[string]any{
			"1": map[string]any{
				"content": map[string]any{
					"text": entries,
				},
			},
		},
	}
	raw, err := json.Marshal(decl)
	if err != nil {
		return nil, err
	}

	var out bytes.Buffer
	if err := api.Create(nil, bytes.NewReader(raw), &out, nil); err != nil {
		return nil, fmt.Errorf("compose pdf: %w", err)
	}
	return out.Bytes(), nil
}

func orDash(v string) string {
	if strings.TrimSpace(v) == "" {
		return "-"
	}
	return v
}
