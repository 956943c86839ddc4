package airtable

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"clientflow.se/internal/datastore"
)

const defaultAPIBase = "https://api.airtable.com/v0"

// Store talks to a hosted Airtable base over its REST API.
type Store struct {
	apiBase    string
	token      string
	baseID     string
	table      string
	usersTable string
	client     *http.Client
}

var _ datastore.Store = (*Store)(nil)

// Option configures Store.
type Option func(*Store)

// WithAPIBase overrides the API endpoint. Used in tests.
func WithAPIBase(base string) Option {
	return func(s *Store) {
		if base != "" {
			s.apiBase = strings.TrimRight(base, "/")
		}
	}
}

// New constructs a store for the given base and tables.
func New(token, baseID, table, usersTable string, opts ...Option) *Store {
	s := &Store{
		apiBase:    defaultAPIBase,
		token:      token,
		baseID:     baseID,
		table:      table,
		usersTable: usersTable,
		client:     &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type apiRecord struct {
	ID          string         `json:"id"`
	CreatedTime time.Time      `json:"createdTime"`
	Fields      map[string]any `json:"fields"`
}

type listResponse struct {
	Records []apiRecord `json:"records"`
	Offset  string      `json:"offset"`
}

func (s *Store) CreateRecord(ctx context.Context, fields map[string]any) (datastore.Record, error) {
	payload := map[string]any{
		"fields": fields,
		// Lets the base coerce numbers and attachment arrays without a
		// per-column schema on this side.
		"typecast": true,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return datastore.Record{}, err
	}

	var created apiRecord
	if err := s.do(ctx, http.MethodPost, s.tableURL(s.table), raw, &created); err != nil {
		return datastore.Record{}, err
	}
	return fromAPI(created), nil
}

func (s *Store) GetRecord(ctx context.Context, id string) (datastore.Record, error) {
	var rec apiRecord
	if err := s.do(ctx, http.MethodGet, s.tableURL(s.table)+"/"+url.PathEscape(id), nil, &rec); err != nil {
		return datastore.Record{}, err
	}
	return fromAPI(rec), nil
}

func (s *Store) ListRecords(ctx context.Context, filter datastore.Filter) ([]datastore.Record, error) {
	params := url.Values{}
	if formula := filterFormula(filter); formula != "" {
		params.Set("filterByFormula", formula)
	}

	var out []datastore.Record
	for {
		reqURL := s.tableURL(s.table)
		if len(params) > 0 {
			reqURL += "?" + params.Encode()
		}
		var page listResponse
		if err := s.do(ctx, http.MethodGet, reqURL, nil, &page); err != nil {
			return nil, err
		}
		for _, rec := range page.Records {
			out = append(out, fromAPI(rec))
		}
		if page.Offset == "" {
			return out, nil
		}
		params.Set("offset", page.Offset)
	}
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (datastore.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || strings.ContainsAny(email, `"'`) {
		return datastore.User{}, datastore.ErrNotFound
	}

	params := url.Values{}
	params.Set("filterByFormula", fmt.Sprintf(`{Email}="%s"`, email))
	params.Set("maxRecords", "1")

	var page listResponse
	if err := s.do(ctx, http.MethodGet, s.tableURL(s.usersTable)+"?"+params.Encode(), nil, &page); err != nil {
		return datastore.User{}, err
	}
	if len(page.Records) == 0 {
		return datastore.User{}, datastore.ErrNotFound
	}
	fields := page.Records[0].Fields
	return datastore.User{
		ID:           page.Records[0].ID,
		Email:        str(fields["Email"]),
		PasswordHash: str(fields["password"]),
		Role:         str(fields["Role"]),
		AgencyID:     str(fields["Byrå ID i text 2"]),
		Name:         str(fields["Full Name"]),
	}, nil
}

// Ping verifies the credentials by listing a single record.
func (s *Store) Ping(ctx context.Context) error {
	params := url.Values{}
	params.Set("maxRecords", "1")
	var page listResponse
	return s.do(ctx, http.MethodGet, s.tableURL(s.table)+"?"+params.Encode(), nil, &page)
}

// filterFormula builds the base's filter expression for the access filter.
// Inputs are pre-validated by the access package to exclude quotes.
func filterFormula(filter datastore.Filter) string {
	switch {
	case filter.AgencyID != "":
		return fmt.Sprintf(`{Byrå ID}="%s"`, filter.AgencyID)
	case filter.MemberID != "":
		return fmt.Sprintf(`SEARCH("%s", {Användare})`, filter.MemberID)
	}
	return ""
}

func (s *Store) tableURL(table string) string {
	return s.apiBase + "/" + url.PathEscape(s.baseID) + "/" + url.PathEscape(table)
}

func (s *Store) do(ctx context.Context, method, reqURL string, body []byte, dst any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("airtable request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return datastore.ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("airtable responded %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if dst == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}

func fromAPI(rec apiRecord) datastore.Record {
	return datastore.Record{
		ID:        rec.ID,
		Fields:    rec.Fields,
		CreatedAt: rec.CreatedTime,
	}
}

func str(v any) string {
	s, _ := v.(string)
	return s
}
