// Package sqlitestorage implements the storage.Backend interface using an in-memory
// SQLite database with periodic disk dumps via VACUUM INTO.
// It wraps the GORM backend via composition; the only SQLite-specific concerns are
// creating the in-memory DB and the periodic disk dump.
package sqlitestorage

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/phaseline/lightcycle/internal/config"
	"github.com/phaseline/lightcycle/internal/database"
	gormstorage "github.com/phaseline/lightcycle/internal/storage/gorm"
)

// Backend wraps the GORM backend for SQLite-specific behavior.
type Backend struct {
	*gormstorage.Backend
	dbm      *database.Manager
	cfg      config.SQLiteConfig
	log      *slog.Logger
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// New creates a new SQLite storage backend. The database is opened in Init.
func New(cfg config.SQLiteConfig, flushInterval time.Duration, dbm *database.Manager, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		Backend: gormstorage.New(gormstorage.Dependencies{
			Logger:        logger,
			FlushInterval: flushInterval,
		}),
		dbm: dbm,
		cfg: cfg,
		log: logger,
	}
}

// Init opens the in-memory database, migrates it and starts the writer and
// dump goroutines.
func (b *Backend) Init() error {
	db, err := b.dbm.OpenSqlite("")
	if err != nil {
		return fmt.Errorf("failed to create in-memory SQLite DB: %w", err)
	}
	if err := b.dbm.Setup(db); err != nil {
		return err
	}
	b.SetDB(db)

	if err := b.Backend.Init(); err != nil {
		return err
	}

	b.stopChan = make(chan struct{})
	if b.cfg.DumpPath != "" && b.cfg.DumpInterval > 0 {
		b.wg.Add(1)
		go b.dumpLoop(b.stopChan)
	}
	return nil
}

// EndMatch flushes the match and writes a final dump.
func (b *Backend) EndMatch() error {
	if err := b.Backend.EndMatch(); err != nil {
		return err
	}
	return b.Dump()
}

// Close stops the dump goroutine and closes the embedded GORM backend.
func (b *Backend) Close() error {
	if b.stopChan != nil {
		close(b.stopChan)
		b.stopChan = nil
		b.wg.Wait()
	}
	return b.Backend.Close()
}

// ExportedFilePath returns the dump path, empty when dumps are disabled.
func (b *Backend) ExportedFilePath() string {
	return b.cfg.DumpPath
}

// Dump writes the database to DumpPath now. It is a no-op without a path.
func (b *Backend) Dump() error {
	if b.cfg.DumpPath == "" || b.DB() == nil {
		return nil
	}
	elapsed, err := database.TimedDump(b.DB(), b.cfg.DumpPath)
	if err != nil {
		return err
	}
	b.log.Debug("Dumped to disk", "path", b.cfg.DumpPath, "duration", elapsed)
	return nil
}

// dumpLoop periodically dumps the in-memory SQLite database to disk via VACUUM INTO.
// VACUUM INTO creates a point-in-time snapshot, so no pause mechanism is needed.
func (b *Backend) dumpLoop(stop <-chan struct{}) {
	defer b.wg.Done()
	ticker := time.NewTicker(b.cfg.DumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := b.Dump(); err != nil {
				b.log.Error("Error dumping to disk", "error", err)
			}
		}
	}
}
