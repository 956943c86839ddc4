package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"clientflow.se/internal/datastore"
	"clientflow.se/internal/ids"
)

// Store is the Postgres datastore backend. Record fields live in a jsonb
// column; the agency and membership values are extracted into their own
// columns at write time so access filters stay indexable.
type Store struct {
	db *sql.DB
}

var _ datastore.Store = (*Store)(nil)

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing handle. Used in tests.
func NewWithDB(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) CreateRecord(ctx context.Context, fields map[string]any) (datastore.Record, error) {
	raw, err := json.Marshal(fields)
	if err != nil {
		return datastore.Record{}, err
	}
	id := ids.New()
	now := time.Now().UTC()

	_, err = s.db.ExecContext(ctx, `
		insert into records(id, fields, agency_id, member_refs, created_at)
		values ($1, $2, $3, $4, $5)
	`, id, raw, fieldString(fields["Byrå ID"]), fieldString(fields["Användare"]), now)
	if err != nil {
		return datastore.Record{}, fmt.Errorf("insert record: %w", err)
	}

	return datastore.Record{ID: id, Fields: fields, CreatedAt: now}, nil
}

func (s *Store) GetRecord(ctx context.Context, id string) (datastore.Record, error) {
	var raw []byte
	var created time.Time
	err := s.db.QueryRowContext(ctx,
		`select fields, created_at from records where id=$1`, id,
	).Scan(&raw, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return datastore.Record{}, datastore.ErrNotFound
	}
	if err != nil {
		return datastore.Record{}, err
	}

	fields := map[string]any{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return datastore.Record{}, fmt.Errorf("decode record %s: %w", id, err)
	}
	return datastore.Record{ID: id, Fields: fields, CreatedAt: created}, nil
}

func (s *Store) ListRecords(ctx context.Context, filter datastore.Filter) ([]datastore.Record, error) {
	query := `select id, fields, created_at from records`
	var args []any
	switch {
	case filter.AgencyID != "":
		query += ` where agency_id=$1`
		args = append(args, filter.AgencyID)
	case filter.MemberID != "":
		query += ` where position($1 in member_refs) > 0`
		args = append(args, filter.MemberID)
	}
	query += ` order by created_at asc`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []datastore.Record
	for rows.Next() {
		var rec datastore.Record
		var raw []byte
		if err := rows.Scan(&rec.ID, &raw, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.Fields = map[string]any{}
		if err := json.Unmarshal(raw, &rec.Fields); err != nil {
			return nil, fmt.Errorf("decode record %s: %w", rec.ID, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (datastore.User, error) {
	email = strings.TrimSpace(email)
	var u datastore.User
	err := s.db.QueryRowContext(ctx, `
		select id, email, password_hash, role, coalesce(agency_id, ''), coalesce(full_name, '')
		from app_users where lower(email) = lower($1)
	`, email).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.AgencyID, &u.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return datastore.User{}, datastore.ErrNotFound
	}
	if err != nil {
		return datastore.User{}, err
	}
	return u, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func fieldString(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}
