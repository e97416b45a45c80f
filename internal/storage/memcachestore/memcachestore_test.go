package memcachestore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/sidereusnuntius/fedicache/internal/domain"
	"github.com/sidereusnuntius/fedicache/internal/storage"
)

func TestKey(t *testing.T) {
	s := New(nil, "fc:", 0)
	key := storage.ProfileKey(domain.NewAccount("alice", "good.example"))
	if got := s.key(key); got != "fc:profile/alice@good.example" {
		t.Errorf("unexpected memcache key %q", got)
	}
}

func TestHandleError(t *testing.T) {
	s := New(nil, "", 0)
	if err := s.handleError(memcache.ErrCacheMiss); !errors.Is(err, storage.ErrNotExist) {
		t.Errorf("expected ErrNotExist, got %v", err)
	}
	if err := s.handleError(memcache.ErrServerError); !errors.Is(err, storage.ErrInternal) {
		t.Errorf("expected ErrInternal, got %v", err)
	}
}

func TestExpiration(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name   string
		ttl    time.Duration
		expect int32
	}{
		{"no expiry", 0, 0},
		{"below a second", 10 * time.Millisecond, 1},
		{"relative", time.Hour, 3600},
		{"thirty days", 30 * 24 * time.Hour, 2592000},
		{"absolute", 60 * 24 * time.Hour, int32(now.Add(60 * 24 * time.Hour).Unix())},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			s := New(nil, "", c.ttl)
			s.now = func() time.Time { return now }
			if got := s.expiration(); got != c.expect {
				t.Errorf("expected %d, got %d", c.expect, got)
			}
		})
	}
}

func TestSaveTooLarge(t *testing.T) {
	s := New(nil, "", 0)
	s.MaxItemSize = 4

	key := storage.StatusesKey(domain.NewAccount("alice", "good.example"))
	err := s.Save(context.Background(), key, []byte("12345"))
	if !errors.Is(err, storage.ErrInternal) {
		t.Errorf("expected ErrInternal, got %v", err)
	}
}
