// Package memstore keeps entities in process memory. It backs short lived runs and tests, where nothing
// needs to survive the process.
package memstore

import (
	"bytes"
	"context"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/sidereusnuntius/fedicache/internal/storage"
)

type MemStore struct {
	cache *cache.Cache
}

func New() *MemStore {
	return NewWithTTL(cache.NoExpiration)
}

// NewWithTTL returns a store whose entries disappear ttl after being saved.
func NewWithTTL(ttl time.Duration) *MemStore {
	cleanup := time.Duration(0)
	if ttl > 0 {
		cleanup = ttl
	}
	return &MemStore{
		cache: cache.New(ttl, cleanup),
	}
}

func (s *MemStore) Load(ctx context.Context, key storage.Key) ([]byte, error) {
	v, ok := s.cache.Get(key.String())
	if !ok {
		return nil, storage.ErrNotExist
	}
	return bytes.Clone(v.([]byte)), nil
}

func (s *MemStore) Save(ctx context.Context, key storage.Key, value []byte) error {
	s.cache.SetDefault(key.String(), bytes.Clone(value))
	return nil
}

func (s *MemStore) Exists(ctx context.Context, key storage.Key) (bool, error) {
	_, ok := s.cache.Get(key.String())
	return ok, nil
}

func (s *MemStore) Delete(ctx context.Context, key storage.Key) error {
	if _, ok := s.cache.Get(key.String()); !ok {
		return storage.ErrNotExist
	}
	s.cache.Delete(key.String())
	return nil
}
