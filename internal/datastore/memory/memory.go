package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"clientflow.se/internal/datastore"
	"clientflow.se/internal/ids"
)

// Store is an in-process datastore used in tests and for running without
// external storage configured.
type Store struct {
	mu      sync.RWMutex
	order   []string
	records map[string]datastore.Record
	users   map[string]datastore.User // lower-cased email -> user
}

var _ datastore.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		records: make(map[string]datastore.Record),
		users:   make(map[string]datastore.User),
	}
}

// AddUser seeds a directory user.
func (s *Store) AddUser(u datastore.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == "" {
		u.ID = ids.New()
	}
	s.users[strings.ToLower(u.Email)] = u
}

func (s *Store) CreateRecord(ctx context.Context, fields map[string]any) (datastore.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make(map[string]any, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	rec := datastore.Record{
		ID:        ids.New(),
		Fields:    copied,
		CreatedAt: time.Now().UTC(),
	}
	s.records[rec.ID] = rec
	s.order = append(s.order, rec.ID)
	return rec, nil
}

func (s *Store) GetRecord(ctx context.Context, id string) (datastore.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return datastore.Record{}, datastore.ErrNotFound
	}
	return rec, nil
}

func (s *Store) ListRecords(ctx context.Context, filter datastore.Filter) ([]datastore.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]datastore.Record, 0, len(s.order))
	for _, id := range s.order {
		rec := s.records[id]
		if matches(rec, filter) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (datastore.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return datastore.User{}, datastore.ErrNotFound
	}
	return u, nil
}

func (s *Store) Ping(ctx context.Context) error { return nil }

// matches mirrors the hosted backend's filter semantics: exact match on the
// agency column, substring match on the membership column.
func matches(rec datastore.Record, filter datastore.Filter) bool {
	if filter.AgencyID != "" {
		if fieldString(rec.Fields["Byrå ID"]) != filter.AgencyID {
			return false
		}
	}
	if filter.MemberID != "" {
		if !strings.Contains(fieldString(rec.Fields["Användare"]), filter.MemberID) {
			return false
		}
	}
	return true
}

func fieldString(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}
