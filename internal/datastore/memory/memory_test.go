package memory

import (
	"context"
	"errors"
	"testing"

	"clientflow.se/internal/datastore"
)

func TestCreateAndGetRecord(t *testing.T) {
	store := New()
	ctx := context.Background()

	rec, err := store.CreateRecord(ctx, map[string]any{"Orgnr": "5560160680"})
	if err != nil {
		t.Fatalf("CreateRecord: %v", err)
	}
	if rec.ID == "" || rec.CreatedAt.IsZero() {
		t.Fatalf("incomplete record: %+v", rec)
	}

	got, err := store.GetRecord(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if got.Fields["Orgnr"] != "5560160680" {
		t.Fatalf("unexpected fields: %v", got.Fields)
	}

	if _, err := store.GetRecord(ctx, "missing"); !errors.Is(err, datastore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListRecordsFilters(t *testing.T) {
	store := New()
	ctx := context.Background()

	if _, err := store.CreateRecord(ctx, map[string]any{"Orgnr": "1", "Byrå ID": "778899", "Användare": 42}); err != nil {
		t.Fatalf("CreateRecord: %v", err)
	}
	if _, err := store.CreateRecord(ctx, map[string]any{"Orgnr": "2", "Byrå ID": "111111", "Användare": 7}); err != nil {
		t.Fatalf("CreateRecord: %v", err)
	}

	all, err := store.ListRecords(ctx, datastore.Filter{})
	if err != nil || len(all) != 2 {
		t.Fatalf("unfiltered list: %v %d", err, len(all))
	}

	byAgency, err := store.ListRecords(ctx, datastore.Filter{AgencyID: "778899"})
	if err != nil || len(byAgency) != 1 || byAgency[0].Fields["Orgnr"] != "1" {
		t.Fatalf("agency filter: %v %+v", err, byAgency)
	}

	byMember, err := store.ListRecords(ctx, datastore.Filter{MemberID: "7"})
	if err != nil || len(byMember) != 1 || byMember[0].Fields["Orgnr"] != "2" {
		t.Fatalf("member filter: %v %+v", err, byMember)
	}
}

func TestFindUserByEmailIsCaseInsensitive(t *testing.T) {
	store := New()
	store.AddUser(datastore.User{Email: "Anna@Example.se", Role: "Ledare"})

	user, err := store.FindUserByEmail(context.Background(), "anna@example.se")
	if err != nil {
		t.Fatalf("FindUserByEmail: %v", err)
	}
	if user.Role != "Ledare" || user.ID == "" {
		t.Fatalf("unexpected user: %+v", user)
	}

	if _, err := store.FindUserByEmail(context.Background(), "nobody@example.se"); !errors.Is(err, datastore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
