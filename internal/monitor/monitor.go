package monitor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"gorm.io/gorm"

	"github.com/phaseline/lightcycle/internal/match"
	"github.com/phaseline/lightcycle/internal/model/convert"
)

// QueueReporter is implemented by storage backends that buffer writes.
type QueueReporter interface {
	QueueLengths() map[string]int
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	DB         *gorm.DB // optional; TickPerformance rows are written when set
	Logger     *slog.Logger
	Queues     QueueReporter // optional
	MatchID    func() uint
	Period     time.Duration
	StatusPath string // optional status file rewritten each period
}

// Status is the snapshot written to the log and the status file.
type Status struct {
	Time        time.Time      `json:"time"`
	MatchID     uint           `json:"matchId"`
	Tick        uint64         `json:"tick"`
	TickMs      float64        `json:"tickMs"`
	MaxTickMs   float64        `json:"maxTickMs"`
	Vehicles    int            `json:"vehicles"`
	Alive       int            `json:"alive"`
	Segments    int            `json:"segments"`
	Kills       int            `json:"kills"`
	WriteQueues map[string]int `json:"writeQueues,omitempty"`
}

// Service manages status monitoring. It observes every tick and reports
// once per period.
type Service struct {
	deps Dependencies

	last     atomic.Pointer[match.TickStats]
	kills    atomic.Int64
	maxNanos atomic.Int64

	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Period <= 0 {
		deps.Period = 10 * time.Second
	}
	return &Service{deps: deps}
}

// ObserveTick implements match.TickObserver.
func (s *Service) ObserveTick(st match.TickStats) {
	s.last.Store(&st)
	s.kills.Add(int64(st.Kills))
	d := int64(st.Duration)
	for {
		cur := s.maxNanos.Load()
		if d <= cur || s.maxNanos.CompareAndSwap(cur, d) {
			break
		}
	}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetStatus returns the current status and resets the per-period
// counters. ok is false before the first tick.
func (s *Service) GetStatus() (status Status, ok bool) {
	last := s.last.Load()
	if last == nil {
		return Status{}, false
	}
	status = Status{
		Time:      time.Now(),
		Tick:      last.Tick,
		TickMs:    float64(last.Duration.Microseconds()) / 1000,
		MaxTickMs: float64(time.Duration(s.maxNanos.Swap(0)).Microseconds()) / 1000,
		Vehicles:  last.Vehicles,
		Alive:     last.Alive,
		Segments:  last.Segments,
		Kills:     int(s.kills.Swap(0)),
	}
	if s.deps.MatchID != nil {
		status.MatchID = s.deps.MatchID()
	}
	if s.deps.Queues != nil {
		status.WriteQueues = s.deps.Queues.QueueLengths()
	}
	return status, true
}

// Report logs one status line, rewrites the status file and stores a
// performance row.
func (s *Service) Report() error {
	status, ok := s.GetStatus()
	if !ok {
		return nil
	}

	s.deps.Logger.Info("Status",
		"tick", status.Tick,
		"tickMs", status.TickMs,
		"maxTickMs", status.MaxTickMs,
		"vehicles", status.Vehicles,
		"alive", status.Alive,
		"segments", status.Segments,
		"kills", status.Kills,
	)

	if s.deps.StatusPath != "" {
		data, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode status: %w", err)
		}
		if err := os.WriteFile(s.deps.StatusPath, data, 0644); err != nil {
			return fmt.Errorf("failed to write status file: %w", err)
		}
	}

	if s.deps.DB != nil && status.MatchID != 0 {
		perf := convert.StatsToTickPerformance(match.TickStats{
			Tick:     status.Tick,
			Time:     status.Time,
			Duration: time.Duration(status.TickMs * float64(time.Millisecond)),
			Vehicles: status.Vehicles,
			Alive:    status.Alive,
			Segments: status.Segments,
			Kills:    status.Kills,
		}, status.MatchID)
		if err := s.deps.DB.Create(&perf).Error; err != nil {
			return fmt.Errorf("failed to write tick performance: %w", err)
		}
	}
	return nil
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})

	go s.loop(s.stopChan, s.done)
	return nil
}

func (s *Service) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	s.deps.Logger.Debug("Starting status monitor", "period", s.deps.Period)

	ticker := time.NewTicker(s.deps.Period)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := s.Report(); err != nil {
				s.deps.Logger.Error("Status report failed", "error", err)
			}
		}
	}
}

// Stop stops the status monitor and waits for it to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	close(s.stopChan)
	done := s.done
	s.mu.Unlock()
	<-done
}
