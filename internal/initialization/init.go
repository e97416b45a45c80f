// The initialization package contains functions that set up required dependencies such as the SQLite
// database and the refresh queue.
package initialization

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate"
	"github.com/golang-migrate/migrate/database/sqlite3"
	_ "github.com/golang-migrate/migrate/source/file"
	_ "github.com/mattn/go-sqlite3"
	"github.com/mikestefanello/backlite"
	"github.com/rs/zerolog/log"
)

// SetupDB applies all pending migrations found in folder.
func SetupDB(db *sql.DB, folder string) error {
	log.Info().Str("folder", folder).Msg("starting migrations")
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("creating sqlite3 migration driver: %w", err)
	}

	mig, err := migrate.NewWithDatabaseInstance("file://"+folder, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("creating migrations: %w", err)
	}

	if err = mig.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

func OpenDB(connString string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", connString)
	if err != nil {
		log.Error().Err(err).Str("connection string", connString).Msg("failed to open database")
		return nil, err
	}
	return db, nil
}

// InitQueue creates the backlite client on db and installs its schema. Queues must be registered
// before the client is started.
func InitQueue(db *sql.DB, workers int) (*backlite.Client, error) {
	client, err := backlite.NewClient(backlite.ClientConfig{
		DB:              db,
		Logger:          queueLogger{},
		ReleaseAfter:    10 * time.Minute,
		NumWorkers:      max(workers, 1),
		CleanupInterval: time.Hour,
	})
	if err != nil {
		return nil, err
	}
	if err = client.Install(); err != nil {
		return nil, fmt.Errorf("installing queue schema: %w", err)
	}
	return client, nil
}

// queueLogger forwards backlite's messages to the global logger.
type queueLogger struct{}

func (queueLogger) Info(message string, params ...any) {
	log.Debug().Fields(params).Msg(message)
}

func (queueLogger) Error(message string, params ...any) {
	log.Error().Fields(params).Msg(message)
}
