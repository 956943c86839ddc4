package normalize

import (
	"sort"
	"strconv"
	"strings"

	"clientflow.se/internal/registry"
)

// FileRef points at a stored rendered document in the Airtable attachment
// shape the datastore expects.
type FileRef struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
}

// Input is everything one sync run gathered for a single organisation.
// Names are collected across all registry entries; every other organisation
// field comes from the first entry, matching upstream consumers.
type Input struct {
	Identity      string
	Organisations []registry.Organisation
	Documents     []registry.Document
	Files         map[string]FileRef // document id -> stored file
	AgencyID      string
	SubmitterRaw  string
}

// Document slots in the record, newest first.
var slotPrefixes = [3]string{"Senaste", "Fg", "Ffg"}

// Fields flattens the input to the datastore's column names. The SNI column
// is omitted entirely when no codes resolved so an existing value is never
// overwritten with an empty string.
func Fields(in Input) map[string]any {
	var first registry.Organisation
	if len(in.Organisations) > 0 {
		first = in.Organisations[0]
	}

	fields := map[string]any{
		"Orgnr":                  in.Identity,
		"Namn":                   strings.Join(collectNames(in.Organisations), ", "),
		"Verksamhetsbeskrivning": strings.Join(collectDescriptions(first), ", "),
		"Address":                formatAddress(first),
		"Bolagsform":             first.LegalForm.Text,
		"regdatum":               first.Dates.Registered,
		"registreringsland":      first.Country.Text,
		"Aktivt företag":         activeLabel(first),
		"Byrå ID":                AgencyRef(in.AgencyID),
	}

	if ref := SubmitterRef(in.SubmitterRaw); ref > 0 {
		fields["Användare"] = ref
	}
	if sni := sniString(first); sni != "" {
		fields["SNI kod"] = sni
	}

	docs := sortedByPeriodDesc(in.Documents)
	for i, prefix := range slotPrefixes {
		var period, docID string
		var file any = ""
		if i < len(docs) {
			period = docs[i].PeriodEnd
			docID = docs[i].ID
			if ref, ok := in.Files[docs[i].ID]; ok {
				file = []FileRef{ref}
			}
		}
		fields[prefix+" årsredovisning"] = period
		fields[prefix+" årsredovisning json"] = docID
		fields[prefix+" årsredovisning fil"] = file
	}

	return fields
}

// activeRules decide the three-way status question in order; the first rule
// that applies wins, anything else means deregistered.
var activeRules = []struct {
	name    string
	applies func(org registry.Organisation) bool
}{
	{"active_marker", func(org registry.Organisation) bool {
		return org.Active.Code == "JA"
	}},
	// An error object in the deregistration block means the registry has no
	// deregistration on file, so the organisation is still active.
	{"deregistration_block_error", func(org registry.Organisation) bool {
		return org.Deregistered.HasError()
	}},
	{"deregistration_reason_error", func(org registry.Organisation) bool {
		return org.DeregReason.HasError()
	}},
}

// IsActive applies the status rules.
func IsActive(org registry.Organisation) bool {
	for _, rule := range activeRules {
		if rule.applies(org) {
			return true
		}
	}
	return false
}

func activeLabel(org registry.Organisation) string {
	if IsActive(org) {
		return "Ja"
	}
	return "Nej"
}

// SubmitterRef coerces the raw submitter id to a positive integer. Zero
// means unset and callers omit the column. Unparsable or non-positive input
// collapses to 1.
// TODO: surface unparsable submitter ids to the caller instead of writing
// them as user 1; needs a datastore column for the raw value first.
func SubmitterRef(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// AgencyRef strips formatting commas from the agency id and keeps the rest
// verbatim.
func AgencyRef(raw string) string {
	return strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
}

func collectNames(orgs []registry.Organisation) []string {
	var names []string
	for _, org := range orgs {
		for _, entry := range org.Names.List {
			if entry.Name != "" {
				names = append(names, entry.Name)
			}
		}
		for _, entry := range org.SpecialNames.List {
			if entry.Name != "" {
				names = append(names, entry.Name)
			}
		}
	}
	return names
}

func collectDescriptions(org registry.Organisation) []string {
	var out []string
	if org.Description.Desc != "" {
		out = append(out, org.Description.Desc)
	}
	if org.Description.Text != "" {
		out = append(out, org.Description.Text)
	}
	return out
}

func formatAddress(org registry.Organisation) string {
	addr := org.Postal.Address
	if addr.Street == "" && addr.PostalCode == "" && addr.City == "" {
		return ""
	}
	return addr.Street + ", " + addr.PostalCode + " " + addr.City
}

// sniString joins code/label pairs from every source block, requiring both
// halves, deduplicating while preserving first occurrence.
func sniString(org registry.Organisation) string {
	var parts []string
	seen := make(map[string]struct{})
	add := func(codes []registry.IndustryCode) {
		for _, c := range codes {
			code := strings.TrimSpace(c.Code)
			label := strings.TrimSpace(c.Label)
			if label == "" {
				label = strings.TrimSpace(c.Desc)
			}
			if code == "" || label == "" {
				continue
			}
			pair := code + " - " + label
			if _, ok := seen[pair]; ok {
				continue
			}
			seen[pair] = struct{}{}
			parts = append(parts, pair)
		}
	}
	add(org.Industry.Codes)
	add(org.IndustryTop)
	return strings.Join(parts, ", ")
}

func sortedByPeriodDesc(docs []registry.Document) []registry.Document {
	out := make([]registry.Document, len(docs))
	copy(out, docs)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PeriodEnd > out[j].PeriodEnd
	})
	return out
}
