package registry

import "encoding/json"

// Organisation mirrors one entry of the registry's organisationer response.
// Only the fields the service consumes are mapped; unknown fields are dropped.
type Organisation struct {
	Names        NameList        `json:"organisationsnamn"`
	SpecialNames SpecialNameList `json:"sarskiltForeningsnamn"`
	LegalForm    CodedBlock      `json:"organisationsform"`
	Dates        OrgDates        `json:"organisationsdatum"`
	Country      CodedBlock      `json:"registreringsland"`
	Description  CodedBlock      `json:"verksamhetsbeskrivning"`
	Industry     IndustryBlock   `json:"naringsgrenOrganisation"`
	IndustryTop  []IndustryCode  `json:"sni"`
	Postal       AddressBlock    `json:"postadressOrganisation"`
	Active       StatusProbe     `json:"verksamOrganisation"`
	Deregistered *StatusProbe    `json:"avregistreradOrganisation"`
	DeregReason  *StatusProbe    `json:"avregistreringsorsak"`
}

// NameList wraps the registered organisation names.
type NameList struct {
	List []NamedEntry `json:"organisationsnamnLista"`
}

// SpecialNameList wraps secondary trading names, which use their own
// list key upstream.
type SpecialNameList struct {
	List []NamedEntry `json:"sarskiltForeningsnamnLista"`
}

// NamedEntry is one name variant.
type NamedEntry struct {
	Name string `json:"namn"`
}

// CodedBlock is the registry's recurring {kod, klartext} pair, optionally
// carrying a free-text beskrivning or an error object instead of data.
type CodedBlock struct {
	Code  string          `json:"kod"`
	Text  string          `json:"klartext"`
	Desc  string          `json:"beskrivning"`
	Error json.RawMessage `json:"fel,omitempty"`
}

// OrgDates carries registry lifecycle dates.
type OrgDates struct {
	Registered string `json:"registreringsdatum"`
}

// IndustryBlock wraps the SNI code list; a present fel object means the
// statistics office could not resolve the classification.
type IndustryBlock struct {
	Codes []IndustryCode  `json:"sni"`
	Error json.RawMessage `json:"fel,omitempty"`
}

// IndustryCode is one SNI code/label pair.
type IndustryCode struct {
	Code  string `json:"kod"`
	Label string `json:"klartext"`
	Desc  string `json:"beskrivning"`
}

// AddressBlock wraps the postal address.
type AddressBlock struct {
	Address PostalAddress `json:"postadress"`
}

// PostalAddress is the deliverable street address.
type PostalAddress struct {
	Street     string `json:"utdelningsadress"`
	PostalCode string `json:"postnummer"`
	City       string `json:"postort"`
}

// StatusProbe is a registry block that either carries a status code or an
// error object saying the question does not apply.
type StatusProbe struct {
	Code  string          `json:"kod"`
	Error json.RawMessage `json:"fel,omitempty"`
}

// HasError reports whether the probe carries an error object instead of data.
func (p *StatusProbe) HasError() bool {
	return p != nil && len(p.Error) > 0 && string(p.Error) != "null"
}

// Document is one entry of the dokumentlista response.
type Document struct {
	ID           string `json:"dokumentId"`
	PeriodEnd    string `json:"rapporteringsperiodTom"`
	Format       string `json:"filformat"`
	RegisteredAt string `json:"registreringstidpunkt"`
}

type organisationsResponse struct {
	Organisations []Organisation `json:"organisationer"`
}

type documentsResponse struct {
	Documents []Document `json:"dokument"`
}
