// Package memcachestore keeps entities in memcached. Entries may be evicted at any time, which the
// harvester treats like a cache miss. memcached refuses items larger than its item size limit, 1 MB
// unless the server is started with -I, so the ledgers of very active accounts may not fit.
package memcachestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/rs/zerolog/log"
	"github.com/sidereusnuntius/fedicache/internal/storage"
)

const (
	// DefaultMaxItemSize is memcached's default item size limit.
	DefaultMaxItemSize = 1 << 20
	// Expirations longer than this are sent as absolute unix times.
	maxRelativeExpiration = 30 * 24 * time.Hour
)

type MemcacheStore struct {
	client *memcache.Client
	prefix string
	ttl    time.Duration
	// MaxItemSize is the item size limit of the servers. Larger values are not sent.
	MaxItemSize int
	now         func() time.Time
}

func NewClient(servers ...string) *memcache.Client {
	return memcache.New(servers...)
}

func New(client *memcache.Client, prefix string, ttl time.Duration) *MemcacheStore {
	return &MemcacheStore{
		client:      client,
		prefix:      prefix,
		ttl:         ttl,
		MaxItemSize: DefaultMaxItemSize,
		now:         time.Now,
	}
}

// expiration encodes the ttl the way memcached expects it: seconds for up to 30 days, an absolute
// unix time beyond that. Zero means no expiry.
func (s *MemcacheStore) expiration() int32 {
	switch {
	case s.ttl <= 0:
		return 0
	case s.ttl > maxRelativeExpiration:
		return int32(s.now().Add(s.ttl).Unix())
	case s.ttl < time.Second:
		return 1
	default:
		return int32(s.ttl / time.Second)
	}
}

func (s *MemcacheStore) key(key storage.Key) string {
	return s.prefix + key.String()
}

func (s *MemcacheStore) handleError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, memcache.ErrCacheMiss):
		return storage.ErrNotExist
	default:
		log.Error().Err(err).Msg("memcache error")
		return storage.ErrInternal
	}
}

func (s *MemcacheStore) Load(ctx context.Context, key storage.Key) ([]byte, error) {
	item, err := s.client.Get(s.key(key))
	if err != nil {
		return nil, s.handleError(err)
	}
	return item.Value, nil
}

func (s *MemcacheStore) Save(ctx context.Context, key storage.Key, value []byte) error {
	if s.MaxItemSize > 0 && len(value) > s.MaxItemSize {
		log.Warn().Stringer("key", key).Int("size", len(value)).Int("max_size", s.MaxItemSize).Msg("item too large for memcache")
		return fmt.Errorf("%w: %s is %d bytes, memcache accepts %d", storage.ErrInternal, key, len(value), s.MaxItemSize)
	}
	return s.handleError(s.client.Set(&memcache.Item{
		Key:        s.key(key),
		Value:      value,
		Expiration: s.expiration(),
	}))
}

func (s *MemcacheStore) Exists(ctx context.Context, key storage.Key) (bool, error) {
	_, err := s.client.Get(s.key(key))
	if errors.Is(err, memcache.ErrCacheMiss) {
		return false, nil
	}
	return err == nil, s.handleError(err)
}

func (s *MemcacheStore) Delete(ctx context.Context, key storage.Key) error {
	return s.handleError(s.client.Delete(s.key(key)))
}
