// Package calstoretest provides calendar stores for tests.
package calstoretest

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/tazhate/calkit/internal/calstore"
	"github.com/tazhate/calkit/internal/domain"
	"github.com/tazhate/calkit/internal/storage"
)

// NewSQLite opens a fresh SQLite store with access granted to both kinds.
func NewSQLite(t testing.TB) *storage.Storage {
	t.Helper()
	st, err := storage.New(filepath.Join(t.TempDir(), "calkit.db"), zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	ctx := context.Background()
	for _, kind := range []domain.Kind{domain.KindEvent, domain.KindReminder} {
		require.NoError(t, st.SetAuthorization(ctx, kind, domain.AuthAuthorized))
	}
	return st
}

// Store wraps a store, counting reads and writes. Auth and Caps, when
// set, replace the answers of the wrapped store.
type Store struct {
	calstore.Store

	Auth map[domain.Kind]domain.AuthState
	Caps *calstore.Capabilities

	mu      sync.Mutex
	fetches int
	writes  int
}

var _ calstore.Store = (*Store)(nil)

// Wrap returns a counting wrapper around s.
func Wrap(s calstore.Store) *Store {
	return &Store{Store: s}
}

// Fetches returns the number of item and container reads.
func (s *Store) Fetches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches
}

// Writes returns the number of saves and removes.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func (s *Store) fetched() {
	s.mu.Lock()
	s.fetches++
	s.mu.Unlock()
}

func (s *Store) wrote() {
	s.mu.Lock()
	s.writes++
	s.mu.Unlock()
}

func (s *Store) Authorization(ctx context.Context, kind domain.Kind) (domain.AuthState, error) {
	if state, ok := s.Auth[kind]; ok {
		return state, nil
	}
	return s.Store.Authorization(ctx, kind)
}

func (s *Store) Containers(ctx context.Context, kind domain.Kind) ([]domain.Container, error) {
	s.fetched()
	return s.Store.Containers(ctx, kind)
}

func (s *Store) DefaultContainer(ctx context.Context, kind domain.Kind) (domain.Container, error) {
	s.fetched()
	return s.Store.DefaultContainer(ctx, kind)
}

func (s *Store) Events(ctx context.Context, from, to time.Time, containerIDs []string) ([]*calstore.Item, error) {
	s.fetched()
	return s.Store.Events(ctx, from, to, containerIDs)
}

func (s *Store) Reminders(ctx context.Context, containerIDs []string) ([]*calstore.Item, error) {
	s.fetched()
	return s.Store.Reminders(ctx, containerIDs)
}

func (s *Store) Item(ctx context.Context, kind domain.Kind, id string) (*calstore.Item, error) {
	s.fetched()
	return s.Store.Item(ctx, kind, id)
}

func (s *Store) FirstOccurrence(ctx context.Context, kind domain.Kind, seriesID string) (*calstore.Item, error) {
	s.fetched()
	return s.Store.FirstOccurrence(ctx, kind, seriesID)
}

func (s *Store) Save(ctx context.Context, item *calstore.Item, span calstore.Span) (*calstore.Item, error) {
	s.wrote()
	return s.Store.Save(ctx, item, span)
}

func (s *Store) Remove(ctx context.Context, item *calstore.Item, span calstore.Span) error {
	s.wrote()
	return s.Store.Remove(ctx, item, span)
}

func (s *Store) Capabilities() calstore.Capabilities {
	if s.Caps != nil {
		return *s.Caps
	}
	return s.Store.Capabilities()
}
