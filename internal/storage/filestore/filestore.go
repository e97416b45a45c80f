package filestore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"

	"codeberg.org/gruf/go-mutexes"
	"github.com/natefinch/atomic"
	"github.com/rs/zerolog/log"
	"github.com/sidereusnuntius/fedicache/internal/storage"
)

// FileStore keeps every entity in its own file below Root, grouped in one directory per kind.
type FileStore struct {
	Root  string
	locks *mutexes.MutexMap
}

func New(root string) (store *FileStore, err error) {
	store = &FileStore{
		Root:  root,
		locks: &mutexes.MutexMap{},
	}

	info, err := os.Stat(root)
	if err == nil {
		if !info.IsDir() {
			log.Error().Str("root", root).Msg("not a directory")
			err = storage.ErrNotDir
		}
		return
	}

	if errors.Is(err, os.ErrNotExist) {
		err = os.MkdirAll(root, os.ModePerm)
	}

	if err != nil {
		log.Error().Err(err).Msg("internal error when setting up storage")
		err = storage.ErrInternal
	}

	return
}

func (s *FileStore) path(key storage.Key) string {
	name := url.PathEscape(key.Account.String()) + ".json"
	return filepath.Join(s.Root, key.Kind.String(), name)
}

func (s *FileStore) Load(ctx context.Context, key storage.Key) (content []byte, err error) {
	unlock := s.locks.RLock(key.String())
	defer unlock()

	path := s.path(key)
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			err = storage.ErrNotExist
		} else {
			log.Error().Err(err).Msg("failed to open file at path " + path)
			err = storage.ErrInternal
		}
		return
	}
	defer f.Close()

	content, err = io.ReadAll(f)
	if err != nil {
		log.Error().Err(err).Msg("failed to read file " + path)
		err = storage.ErrInternal
	}
	return
}

// Save replaces the file atomically, so a crash never leaves a half written entry behind.
func (s *FileStore) Save(ctx context.Context, key storage.Key, value []byte) error {
	unlock := s.locks.Lock(key.String())
	defer unlock()

	path := s.path(key)
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		log.Error().Err(err).Msg("failed to create directory for " + path)
		return storage.ErrInternal
	}

	if err := atomic.WriteFile(path, bytes.NewReader(value)); err != nil {
		log.Error().Err(err).Msg("failed to write file " + path)
		return storage.ErrInternal
	}
	log.Debug().Str("key", key.String()).Str("path", path).Msg("saved entry")
	return nil
}

func (s *FileStore) Exists(ctx context.Context, key storage.Key) (bool, error) {
	unlock := s.locks.RLock(key.String())
	defer unlock()

	_, err := os.Stat(s.path(key))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	log.Error().Err(err).Msg("unknown filesystem error")
	return false, storage.ErrInternal
}

func (s *FileStore) Delete(ctx context.Context, key storage.Key) error {
	unlock := s.locks.Lock(key.String())
	defer unlock()

	if err := os.Remove(s.path(key)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return storage.ErrNotExist
		}
		log.Error().Err(err).Msg("file deletion error")
		return storage.ErrInternal
	}

	return nil
}
