// Package redisstore keeps entities in Redis, so that several harvesters can share one cache.
package redisstore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/sidereusnuntius/fedicache/internal/storage"
)

type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewClient(addr string, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// New returns a store whose keys are prefixed with prefix. A zero ttl keeps entries forever.
func New(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (s *RedisStore) key(key storage.Key) string {
	return s.prefix + key.String()
}

func (s *RedisStore) handleError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, redis.Nil):
		return storage.ErrNotExist
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		log.Error().Err(err).Msg("redis error")
		return storage.ErrInternal
	}
}

func (s *RedisStore) Load(ctx context.Context, key storage.Key) ([]byte, error) {
	value, err := s.client.Get(ctx, s.key(key)).Bytes()
	return value, s.handleError(err)
}

func (s *RedisStore) Save(ctx context.Context, key storage.Key, value []byte) error {
	return s.handleError(s.client.Set(ctx, s.key(key), value, s.ttl).Err())
}

func (s *RedisStore) Exists(ctx context.Context, key storage.Key) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(key)).Result()
	return n > 0, s.handleError(err)
}

func (s *RedisStore) Delete(ctx context.Context, key storage.Key) error {
	n, err := s.client.Del(ctx, s.key(key)).Result()
	if err != nil {
		return s.handleError(err)
	}
	if n == 0 {
		return storage.ErrNotExist
	}
	return nil
}
