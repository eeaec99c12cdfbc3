// Package gormstorage implements the storage.Backend interface on any GORM
// dialect with internal queues and a background DB writer goroutine.
// The sqlite and postgres backends embed it and only add connection setup.
package gormstorage

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"gorm.io/gorm"

	"github.com/phaseline/lightcycle/internal/model"
	"github.com/phaseline/lightcycle/internal/model/convert"
	"github.com/phaseline/lightcycle/internal/queue"
	"github.com/phaseline/lightcycle/pkg/core"
)

// DefaultFlushInterval is used when Dependencies.FlushInterval is zero.
const DefaultFlushInterval = 2 * time.Second

// ErrNotInitialized is returned when recording before Init.
var ErrNotInitialized = errors.New("storage backend not initialized")

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB            *gorm.DB
	Logger        *slog.Logger
	FlushInterval time.Duration
}

// queues holds all the write queues for batch DB insertion.
type queues struct {
	Vehicles       *queue.Queue[model.Vehicle]
	VehicleSamples *queue.Queue[model.VehicleSample]
	TrailRuns      *queue.Queue[model.TrailRun]
	DeathEvents    *queue.Queue[model.DeathEvent]
	TeleportEvents *queue.Queue[model.TeleportEvent]
	PowerUpEvents  *queue.Queue[model.PowerUpEvent]
}

func newQueues() *queues {
	return &queues{
		Vehicles:       queue.New[model.Vehicle](),
		VehicleSamples: queue.New[model.VehicleSample](),
		TrailRuns:      queue.New[model.TrailRun](),
		DeathEvents:    queue.New[model.DeathEvent](),
		TeleportEvents: queue.New[model.TeleportEvent](),
		PowerUpEvents:  queue.New[model.PowerUpEvent](),
	}
}

// Backend implements storage.Backend using GORM with queue-based batch writes.
type Backend struct {
	deps    Dependencies
	queues  *queues
	matchID atomic.Uint64

	flushMu  sync.Mutex
	stopChan chan struct{}
	done     chan struct{}
}

// New creates a new GORM storage backend. DB may be set later with SetDB,
// before Init.
func New(deps Dependencies) *Backend {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.FlushInterval <= 0 {
		deps.FlushInterval = DefaultFlushInterval
	}
	return &Backend{deps: deps}
}

// SetDB injects the connection opened by an embedding backend.
func (b *Backend) SetDB(db *gorm.DB) {
	b.deps.DB = db
}

// DB returns the underlying connection.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Init creates internal queues and starts the DB writer goroutine. The
// schema must already be migrated.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		return ErrNotInitialized
	}
	b.queues = newQueues()
	b.stopChan = make(chan struct{})
	b.done = make(chan struct{})
	go b.writerLoop()
	return nil
}

// Close stops the writer and flushes what is still queued.
func (b *Backend) Close() error {
	if b.stopChan == nil {
		return nil
	}
	close(b.stopChan)
	<-b.done
	b.stopChan = nil
	return b.Flush()
}

// StartMatch inserts the match synchronously so its ID can stamp every
// queued row.
func (b *Backend) StartMatch(m *core.Match) error {
	if b.deps.DB == nil {
		return ErrNotInitialized
	}
	gormMatch := convert.CoreToMatch(*m)
	if err := b.deps.DB.Create(&gormMatch).Error; err != nil {
		return fmt.Errorf("failed to insert new match: %w", err)
	}
	m.ID = gormMatch.ID
	b.matchID.Store(uint64(gormMatch.ID))
	b.deps.Logger.Info("Match started", "matchId", m.ID, "name", m.Name)
	return nil
}

// SetMatchID sets the match rows are stamped with.
func (b *Backend) SetMatchID(id uint) {
	b.matchID.Store(uint64(id))
}

// MatchID returns the current match ID, 0 before StartMatch.
func (b *Backend) MatchID() uint {
	return uint(b.matchID.Load())
}

// EndMatch flushes the queues and stamps the match end time.
func (b *Backend) EndMatch() error {
	if err := b.Flush(); err != nil {
		return err
	}
	id := b.MatchID()
	if id == 0 || b.deps.DB == nil {
		return nil
	}
	now := time.Now().UTC()
	if err := b.deps.DB.Model(&model.Match{}).Where("id = ?", id).Update("end_time", now).Error; err != nil {
		return fmt.Errorf("failed to close match %d: %w", id, err)
	}
	b.deps.Logger.Info("Match ended", "matchId", id)
	return nil
}

// AddVehicle converts a core vehicle to GORM and pushes to the write queue.
func (b *Backend) AddVehicle(v *core.Vehicle) error {
	if b.queues == nil {
		return ErrNotInitialized
	}
	return b.queues.Vehicles.Push(convert.CoreToVehicle(*v))
}

// RecordVehicleSample converts and queues a vehicle state sample.
func (b *Backend) RecordVehicleSample(s *core.VehicleSample) error {
	if b.queues == nil {
		return ErrNotInitialized
	}
	gormObj, err := convert.CoreToVehicleSample(*s)
	if err != nil {
		return err
	}
	return b.queues.VehicleSamples.Push(gormObj)
}

// RecordTrailRun converts and queues a trail run.
func (b *Backend) RecordTrailRun(r *core.TrailRun) error {
	if b.queues == nil {
		return ErrNotInitialized
	}
	gormObj, err := convert.CoreToTrailRun(*r)
	if err != nil {
		return err
	}
	return b.queues.TrailRuns.Push(gormObj)
}

// RecordDeath converts and queues a death event.
func (b *Backend) RecordDeath(e *core.DeathEvent) error {
	if b.queues == nil {
		return ErrNotInitialized
	}
	return b.queues.DeathEvents.Push(convert.CoreToDeathEvent(*e))
}

// RecordTeleport converts and queues a teleport event.
func (b *Backend) RecordTeleport(e *core.TeleportEvent) error {
	if b.queues == nil {
		return ErrNotInitialized
	}
	return b.queues.TeleportEvents.Push(convert.CoreToTeleportEvent(*e))
}

// RecordPowerUp converts and queues a pickup event.
func (b *Backend) RecordPowerUp(e *core.PowerUpEvent) error {
	if b.queues == nil {
		return ErrNotInitialized
	}
	return b.queues.PowerUpEvents.Push(convert.CoreToPowerUpEvent(*e))
}

// QueueLengths reports the number of rows waiting per queue.
func (b *Backend) QueueLengths() map[string]int {
	if b.queues == nil {
		return nil
	}
	return map[string]int{
		"vehicles":        b.queues.Vehicles.Len(),
		"vehicle samples": b.queues.VehicleSamples.Len(),
		"trail runs":      b.queues.TrailRuns.Len(),
		"death events":    b.queues.DeathEvents.Len(),
		"teleport events": b.queues.TeleportEvents.Len(),
		"powerup events":  b.queues.PowerUpEvents.Len(),
	}
}

// writeQueue writes all items from a queue to the database in a transaction.
// On failure the items are pushed back for the next cycle.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], name string, log *slog.Logger, prepare func([]T)) error {
	if q.Empty() {
		return nil
	}

	items := q.Drain()
	if prepare != nil {
		prepare(items)
	}

	tx := db.Begin()
	if err := tx.Create(&items).Error; err != nil {
		log.Error("Error creating rows", "table", name, "count", len(items), "error", err)
		tx.Rollback()
		_ = q.Push(items...)
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tx.Commit().Error; err != nil {
		_ = q.Push(items...)
		return fmt.Errorf("failed to commit %s: %w", name, err)
	}
	return nil
}

// Flush drains every queue into the database.
func (b *Backend) Flush() error {
	if b.queues == nil || b.deps.DB == nil {
		return nil
	}
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	// Read matchID once per write cycle
	matchID := b.MatchID()
	db := b.deps.DB
	log := b.deps.Logger

	return errors.Join(
		writeQueue(db, b.queues.Vehicles, "vehicles", log, func(items []model.Vehicle) {
			for i := range items {
				items[i].MatchID = matchID
			}
		}),
		writeQueue(db, b.queues.VehicleSamples, "vehicle samples", log, func(items []model.VehicleSample) {
			for i := range items {
				items[i].MatchID = matchID
			}
		}),
		writeQueue(db, b.queues.TrailRuns, "trail runs", log, func(items []model.TrailRun) {
			for i := range items {
				items[i].MatchID = matchID
			}
		}),
		writeQueue(db, b.queues.DeathEvents, "death events", log, func(items []model.DeathEvent) {
			for i := range items {
				items[i].MatchID = matchID
			}
		}),
		writeQueue(db, b.queues.TeleportEvents, "teleport events", log, func(items []model.TeleportEvent) {
			for i := range items {
				items[i].MatchID = matchID
			}
		}),
		writeQueue(db, b.queues.PowerUpEvents, "powerup events", log, func(items []model.PowerUpEvent) {
			for i := range items {
				items[i].MatchID = matchID
			}
		}),
	)
}

// writerLoop periodically drains queues into the DB until Close.
func (b *Backend) writerLoop() {
	defer close(b.done)
	ticker := time.NewTicker(b.deps.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			start := time.Now()
			if err := b.Flush(); err != nil {
				b.deps.Logger.Error("DB writer cycle failed", "error", err)
				continue
			}
			b.deps.Logger.Debug("DB writer cycle", "duration", time.Since(start))
		}
	}
}
