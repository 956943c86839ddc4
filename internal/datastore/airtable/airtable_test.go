package airtable

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"clientflow.se/internal/datastore"
)

func newTestStore(t *testing.T, handler http.HandlerFunc) *Store {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New("test-token", "appBase", "KUNDDATA", "Application Users", WithAPIBase(srv.URL))
}

func TestCreateRecordPostsTypecastFields(t *testing.T) {
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/appBase/KUNDDATA" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("unexpected auth header %q", got)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body["typecast"] != true {
			t.Errorf("expected typecast true")
		}
		fields := body["fields"].(map[string]any)
		if fields["Orgnr"] != "5560160680" {
			t.Errorf("unexpected fields: %v", fields)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"rec123","createdTime":"2024-01-02T03:04:05.000Z","fields":{"Orgnr":"5560160680"}}`))
	})

	rec, err := store.CreateRecord(context.Background(), map[string]any{"Orgnr": "5560160680"})
	if err != nil {
		t.Fatalf("CreateRecord: %v", err)
	}
	if rec.ID != "rec123" {
		t.Fatalf("unexpected id %q", rec.ID)
	}
	if rec.CreatedAt.IsZero() {
		t.Fatalf("expected createdTime to be parsed")
	}
}

func TestListRecordsEncodesAgencyFormula(t *testing.T) {
	var gotFormula string
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		gotFormula = r.URL.Query().Get("filterByFormula")
		if r.URL.RawQuery == "" || r.URL.Query().Get("filterByFormula") == "" {
			t.Errorf("expected filterByFormula, raw query %q", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"records":[{"id":"r1","fields":{"Byrå ID":"778899"}}]}`))
	})

	recs, err := store.ListRecords(context.Background(), datastore.Filter{AgencyID: "778899"})
	if err != nil {
		t.Fatalf("ListRecords: %v", err)
	}
	if len(recs) != 1 || recs[0].ID != "r1" {
		t.Fatalf("unexpected records: %+v", recs)
	}
	if gotFormula != `{Byrå ID}="778899"` {
		t.Fatalf("unexpected formula %q", gotFormula)
	}
}

func TestListRecordsMembershipFormulaAndPagination(t *testing.T) {
	var formulas []string
	page := 0
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		formulas = append(formulas, r.URL.Query().Get("filterByFormula"))
		w.Header().Set("Content-Type", "application/json")
		if page == 0 {
			page++
			_, _ = w.Write([]byte(`{"records":[{"id":"r1","fields":{}}],"offset":"next-page"}`))
			return
		}
		if r.URL.Query().Get("offset") != "next-page" {
			t.Errorf("expected offset param, got %q", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"records":[{"id":"r2","fields":{}}]}`))
	})

	recs, err := store.ListRecords(context.Background(), datastore.Filter{MemberID: "42"})
	if err != nil {
		t.Fatalf("ListRecords: %v", err)
	}
	if len(recs) != 2 || recs[0].ID != "r1" || recs[1].ID != "r2" {
		t.Fatalf("unexpected records: %+v", recs)
	}
	for _, f := range formulas {
		if f != `SEARCH("42", {Användare})` {
			t.Fatalf("unexpected formula %q", f)
		}
	}
}

func TestFindUserByEmail(t *testing.T) {
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/appBase/Application%20Users" && r.URL.Path != "/appBase/Application Users" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("filterByFormula"); got != `{Email}="anna@example.se"` {
			t.Errorf("unexpected formula %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"records":[{"id":"recUser1","fields":{
			"Email":"anna@example.se",
			"password":"$2a$10$hash",
			"Role":"Ledare",
			"Byrå ID i text 2":"778899",
			"Full Name":"Anna Andersson"
		}}]}`))
	})

	user, err := store.FindUserByEmail(context.Background(), "anna@example.se")
	if err != nil {
		t.Fatalf("FindUserByEmail: %v", err)
	}
	want := datastore.User{
		ID:           "recUser1",
		Email:        "anna@example.se",
		PasswordHash: "$2a$10$hash",
		Role:         "Ledare",
		AgencyID:     "778899",
		Name:         "Anna Andersson",
	}
	if user != want {
		t.Fatalf("user=%+v, want %+v", user, want)
	}
}

func TestFindUserByEmailRejectsQuotedInput(t *testing.T) {
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("no request expected for quoted email")
	})
	if _, err := store.FindUserByEmail(context.Background(), `x"or"@example.se`); !errors.Is(err, datastore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetRecordNotFound(t *testing.T) {
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	if _, err := store.GetRecord(context.Background(), "recMissing"); !errors.Is(err, datastore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFormulaEncodingSurvivesURL(t *testing.T) {
	formula := filterFormula(datastore.Filter{AgencyID: "778899"})
	params := url.Values{"filterByFormula": {formula}}
	decoded, err := url.ParseQuery(params.Encode())
	if err != nil {
		t.Fatalf("parse query: %v", err)
	}
	if decoded.Get("filterByFormula") != formula {
		t.Fatalf("formula did not survive encoding: %q", decoded.Get("filterByFormula"))
	}
}
