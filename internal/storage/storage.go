// Package storage is the local persistent key/value storage demo mode keeps
// its session in. Values survive restarts unless the memory backend is used.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/alexedwards/scs/v2/memstore"
)

// Store reads and writes string values under fixed keys.
type Store interface {
	// Get returns the value and whether the key is present.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	// Remove deletes the key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error
}

// persistFor stands in for "never expires"; scs stores always carry an expiry.
const persistFor = 100 * 365 * 24 * time.Hour

// SCSStore adapts any scs session store to Store, using the key as the session token.
type SCSStore struct {
	store scs.Store
	now   func() time.Time
}

func NewSCSStore(store scs.Store) *SCSStore {
	return &SCSStore{store: store, now: time.Now}
}

// NewMemoryStore is a process-local Store backed by scs memstore.
func NewMemoryStore() *SCSStore {
	return NewSCSStore(memstore.New())
}

func (s *SCSStore) Get(_ context.Context, key string) (string, bool, error) {
	b, found, err := s.store.Find(key)
	if err != nil {
		return "", false, fmt.Errorf("storage: find %q: %w", key, err)
	}
	if !found {
		return "", false, nil
	}
	return string(b), true, nil
}

func (s *SCSStore) Set(_ context.Context, key, value string) error {
	if err := s.store.Commit(key, []byte(value), s.now().Add(persistFor)); err != nil {
		return fmt.Errorf("storage: commit %q: %w", key, err)
	}
	return nil
}

func (s *SCSStore) Remove(_ context.Context, key string) error {
	if err := s.store.Delete(key); err != nil {
		return fmt.Errorf("storage: delete %q: %w", key, err)
	}
	return nil
}
