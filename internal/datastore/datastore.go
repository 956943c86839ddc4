package datastore

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("datastore: not found")
)

// Record is one stored organisation row. Fields use the datastore's column
// names verbatim.
type Record struct {
	ID        string         `json:"id"`
	Fields    map[string]any `json:"fields"`
	CreatedAt time.Time      `json:"created_at"`
}

// Filter narrows record reads to what the caller may see. The zero value
// means unrestricted.
type Filter struct {
	// AgencyID requires an exact match on the record's agency column.
	AgencyID string
	// MemberID requires the caller id to appear in the record's
	// membership column.
	MemberID string
}

// User is one row of the application user directory.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Role         string
	AgencyID     string
	Name         string
}

// Store is the tabular datastore boundary. Implementations exist for the
// hosted Airtable base, Postgres and an in-memory test double.
type Store interface {
	CreateRecord(ctx context.Context, fields map[string]any) (Record, error)
	GetRecord(ctx context.Context, id string) (Record, error)
	ListRecords(ctx context.Context, filter Filter) ([]Record, error)
	FindUserByEmail(ctx context.Context, email string) (User, error)
	Ping(ctx context.Context) error
}
