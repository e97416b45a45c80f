// Package sqlstore keeps entities as rows of a single SQLite table, keyed by kind and account.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sidereusnuntius/fedicache/internal/storage"
)

type SQLStore struct {
	db *sql.DB
}

// New expects a database on which the migrations have already been applied.
func New(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// HandleError takes a database error and returns a storage error that hides the driver's details.
func (s *SQLStore) HandleError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return storage.ErrNotExist
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		log.Error().Err(err).Msg("database error")
		return storage.ErrInternal
	}
}

func (s *SQLStore) Load(ctx context.Context, key storage.Key) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM entities WHERE kind = ? AND account = ?",
		key.Kind.String(), key.Account.String(),
	).Scan(&value)
	return value, s.HandleError(err)
}

func (s *SQLStore) Save(ctx context.Context, key storage.Key, value []byte) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO entities(kind, account, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(kind, account) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key.Kind.String(), key.Account.String(), value, time.Now().UTC(),
	)
	return s.HandleError(err)
}

func (s *SQLStore) Exists(ctx context.Context, key storage.Key) (exists bool, err error) {
	err = s.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT TRUE FROM entities WHERE kind = ? AND account = ?)",
		key.Kind.String(), key.Account.String(),
	).Scan(&exists)
	return exists, s.HandleError(err)
}

func (s *SQLStore) Delete(ctx context.Context, key storage.Key) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM entities WHERE kind = ? AND account = ?",
		key.Kind.String(), key.Account.String(),
	)
	if err != nil {
		return s.HandleError(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return s.HandleError(err)
	}
	if n == 0 {
		return storage.ErrNotExist
	}
	return nil
}
