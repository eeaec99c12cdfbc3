package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gorm.io/gorm"

	"github.com/phaseline/lightcycle/internal/config"
	"github.com/phaseline/lightcycle/internal/database"
	"github.com/phaseline/lightcycle/internal/logging"
	"github.com/phaseline/lightcycle/internal/storage"
)

// gormBacked is implemented by the sqlite and postgres backends.
type gormBacked interface {
	DB() *gorm.DB
}

func initStorage(logsDir string, sessionStart time.Time, level string, logFile *os.File, logger *slog.Logger) (storage.Backend, error) {
	logger.Debug("Initializing storage")

	storageCfg, err := config.GetStorageConfig()
	if err != nil {
		return nil, err
	}
	if storageCfg.Type == "sqlite" && storageCfg.SQLite.DumpPath == "" {
		storageCfg.SQLite.DumpPath = filepath.Join(logsDir,
			fmt.Sprintf("%s_%s.db", programName, sessionStart.Format("20060102_150405")))
	}

	dbm := database.NewManager(logging.NewZerolog(logFile, level).With().Str("component", "database").Logger())
	backend, err := storage.NewBackend(storageCfg, dbm, logger)
	if err != nil {
		logger.Error("Failed to create storage backend", "error", err)
		return nil, err
	}
	if err := backend.Init(); err != nil {
		logger.Error("Failed to initialize storage backend", "error", err)
		return nil, err
	}
	logger.Info("Storage backend initialized", "type", storageCfg.Type)
	return backend, nil
}
