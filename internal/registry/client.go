package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"clientflow.se/internal/obs"
)

const maxDocumentBytes = 64 << 20

// tokenProvider abstracts TokenSource for tests.
type tokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// Client calls the company registry's valuable-datasets API.
type Client struct {
	baseURL string
	tokens  tokenProvider

	// Metadata endpoints answer fast; document downloads can be tens of
	// megabytes behind a slow gateway, so they get their own budget.
	metaClient *http.Client
	docClient  *http.Client
}

// NewClient constructs a registry client for the given base URL
// (".../vardefulla-datamangder/v1" without trailing slash).
func NewClient(baseURL string, tokens tokenProvider) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		tokens:     tokens,
		metaClient: &http.Client{Timeout: 15 * time.Second},
		docClient:  &http.Client{Timeout: 30 * time.Second},
	}
}

// NormalizeIdentity strips dashes and whitespace and validates that the
// result is a 10, 11 or 12 digit identity. No I/O.
func NormalizeIdentity(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r == '-' || r == ' ' || r == '\t':
			continue
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			return "", ErrInvalidIdentity
		}
	}
	id := b.String()
	switch len(id) {
	case 10, 11, 12:
		return id, nil
	}
	return "", ErrInvalidIdentity
}

// LookupOrganisation fetches all registry entries for the identity. An empty
// result maps to ErrNotFound.
func (c *Client) LookupOrganisation(ctx context.Context, identity string) ([]Organisation, error) {
	identity, err := NormalizeIdentity(identity)
	if err != nil {
		return nil, err
	}
	body, _, err := c.postJSON(ctx, "organisationer", map[string]string{"identitetsbeteckning": identity})
	if err != nil {
		return nil, err
	}
	var payload organisationsResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode organisationer response: %w", err)
	}
	if len(payload.Organisations) == 0 {
		return nil, ErrNotFound
	}
	return payload.Organisations, nil
}

// ListDocuments fetches the annual-report document list for the identity.
// A missing list is not an error; the caller decides how to treat it.
func (c *Client) ListDocuments(ctx context.Context, identity string) ([]Document, error) {
	identity, err := NormalizeIdentity(identity)
	if err != nil {
		return nil, err
	}
	body, _, err := c.postJSON(ctx, "dokumentlista", map[string]string{"identitetsbeteckning": identity})
	if err != nil {
		return nil, err
	}
	var payload documentsResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode dokumentlista response: %w", err)
	}
	return payload.Documents, nil
}

// FetchDocument downloads one document archive and returns its bytes together
// with the upstream content type.
func (c *Client) FetchDocument(ctx context.Context, documentID string) ([]byte, string, error) {
	documentID = strings.TrimSpace(documentID)
	if documentID == "" {
		return nil, "", ErrNotFound
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, "", err
	}

	requestID := uuid.NewString()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/dokument/"+documentID, nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/zip")
	req.Header.Set("X-Request-Id", requestID)

	resp, err := c.docClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch dokument %s: %w", documentID, err)
	}
	defer resp.Body.Close()
	obs.ObserveRegistryCall("dokument", resp.StatusCode)

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, "", mapUpstream(resp, body, requestID)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return nil, "", fmt.Errorf("read dokument %s: %w", documentID, err)
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/zip"
	}
	return data, contentType, nil
}

// Alive probes the registry health endpoint.
func (c *Client) Alive(ctx context.Context) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}
	requestID := uuid.NewString()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/isalive", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Request-Id", requestID)

	resp, err := c.metaClient.Do(req)
	if err != nil {
		return fmt.Errorf("registry isalive: %w", err)
	}
	defer resp.Body.Close()
	obs.ObserveRegistryCall("isalive", resp.StatusCode)

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return mapUpstream(resp, body, requestID)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, endpoint string, payload any) ([]byte, string, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, "", err
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, "", err
	}

	requestID := uuid.NewString()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+endpoint, bytes.NewReader(raw))
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", requestID)

	resp, err := c.metaClient.Do(req)
	if err != nil {
		return nil, requestID, fmt.Errorf("registry %s: %w", endpoint, err)
	}
	defer resp.Body.Close()
	obs.ObserveRegistryCall(endpoint, resp.StatusCode)

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, requestID, fmt.Errorf("read registry %s response: %w", endpoint, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, requestID, mapUpstream(resp, body, requestID)
	}
	return body, requestID, nil
}

// mapUpstream converts a non-2xx registry response to the error taxonomy.
func mapUpstream(resp *http.Response, body []byte, requestID string) error {
	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if rid := resp.Header.Get("X-Request-Id"); rid != "" {
		requestID = rid
	}
	msg := upstreamMessage(body)
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &UpstreamError{
		Status:    resp.StatusCode,
		Message:   msg,
		RequestID: requestID,
	}
}

// upstreamMessage pulls a human-readable message out of the registry's
// problem-details payloads, which use detail or message depending on layer.
func upstreamMessage(body []byte) string {
	var payload struct {
		Detail  string `json:"detail"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return strings.TrimSpace(string(body))
	}
	if payload.Detail != "" {
		return payload.Detail
	}
	return payload.Message
}
