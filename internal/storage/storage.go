package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sidereusnuntius/fedicache/internal/domain"
)

var (
	ErrNotDir   = errors.New("given root is not a directory")
	ErrInternal = errors.New("internal error")
	ErrNotExist = errors.New("entry does not exist")
	ErrCorrupt  = errors.New("cache entry is corrupt")
)

type Kind uint8

const (
	Profile Kind = iota
	Following
	Followers
	Statuses
)

// Kinds lists every kind of cached entity.
var Kinds = []Kind{Profile, Following, Followers, Statuses}

func (k Kind) String() string {
	switch k {
	case Profile:
		return "profile"
	case Following:
		return "following"
	case Followers:
		return "followers"
	case Statuses:
		return "statuses"
	default:
		return fmt.Sprintf("kind%d", uint8(k))
	}
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Key addresses one cached entity.
type Key struct {
	Kind    Kind
	Account domain.AccountID
}

func ProfileKey(a domain.AccountID) Key  { return Key{Profile, a} }
func StatusesKey(a domain.AccountID) Key { return Key{Statuses, a} }

func RelationKey(a domain.AccountID, kind domain.RelationKind) Key {
	if kind == domain.Followers {
		return Key{Followers, a}
	}
	return Key{Following, a}
}

func (k Key) String() string {
	return k.Kind.String() + "/" + k.Account.String()
}

//go:generate mockgen -destination=../mocks/store.go -package=mocks . EntityStore

// EntityStore persists one opaque value per key. Implementations must be safe for concurrent use with
// distinct keys.
type EntityStore interface {
	// Load returns the value stored under key, or ErrNotExist.
	Load(ctx context.Context, key Key) ([]byte, error)
	// Save stores value under key, replacing any previous value.
	Save(ctx context.Context, key Key, value []byte) error
	Exists(ctx context.Context, key Key) (bool, error)
	Delete(ctx context.Context, key Key) error
}

// LoadJSON loads the value under key into v. A value that cannot be decoded is reported as ErrCorrupt.
func LoadJSON(ctx context.Context, s EntityStore, key Key, v any) error {
	data, err := s.Load(ctx, key)
	if err != nil {
		return err
	}
	if err = json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %s: %s", ErrCorrupt, key, err)
	}
	return nil
}

func SaveJSON(ctx context.Context, s EntityStore, key Key, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	return s.Save(ctx, key, data)
}

// Forget deletes every entity cached for account and returns the kinds that were present.
func Forget(ctx context.Context, s EntityStore, account domain.AccountID) ([]Kind, error) {
	removed := []Kind{}
	for _, kind := range Kinds {
		key := Key{kind, account}
		exists, err := s.Exists(ctx, key)
		if err != nil {
			return removed, err
		}
		if !exists {
			continue
		}
		// Entries may expire between the two calls.
		if err = s.Delete(ctx, key); err != nil && !errors.Is(err, ErrNotExist) {
			return removed, err
		}
		removed = append(removed, kind)
	}
	return removed, nil
}
