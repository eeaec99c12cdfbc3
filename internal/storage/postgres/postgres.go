// Package postgres implements the storage.Backend interface on PostgreSQL
// by embedding the queue-based GORM backend.
package postgres

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/phaseline/lightcycle/internal/config"
	"github.com/phaseline/lightcycle/internal/database"
	gormstorage "github.com/phaseline/lightcycle/internal/storage/gorm"
)

// Backend records matches into Postgres.
type Backend struct {
	*gormstorage.Backend
	dbm *database.Manager
	cfg config.PostgresConfig
}

// New creates a new Postgres storage backend. The connection is made in Init.
func New(cfg config.PostgresConfig, flushInterval time.Duration, dbm *database.Manager, logger *slog.Logger) *Backend {
	return &Backend{
		Backend: gormstorage.New(gormstorage.Dependencies{
			Logger:        logger,
			FlushInterval: flushInterval,
		}),
		dbm: dbm,
		cfg: cfg,
	}
}

// Init connects, migrates the schema and starts the DB writer goroutine.
func (b *Backend) Init() error {
	db, err := b.dbm.OpenPostgres(b.cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := b.dbm.Setup(db); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}
	b.SetDB(db)
	return b.Backend.Init()
}
