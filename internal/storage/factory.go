package storage

import (
	"fmt"
	"log/slog"

	"github.com/phaseline/lightcycle/internal/config"
	"github.com/phaseline/lightcycle/internal/database"
	"github.com/phaseline/lightcycle/internal/storage/memory"
	"github.com/phaseline/lightcycle/internal/storage/postgres"
	sqlitestorage "github.com/phaseline/lightcycle/internal/storage/sqlite"
)

// NewBackend creates a storage backend based on configuration. The backend
// still needs Init.
func NewBackend(cfg config.StorageConfig, dbm *database.Manager, logger *slog.Logger) (Backend, error) {
	switch cfg.Type {
	case "postgres":
		return postgres.New(cfg.Postgres, cfg.FlushInterval, dbm, logger), nil
	case "sqlite":
		return sqlitestorage.New(cfg.SQLite, cfg.FlushInterval, dbm, logger), nil
	case "memory":
		return memory.New(cfg.Memory), nil
	case "none", "":
		return Nop{}, nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
