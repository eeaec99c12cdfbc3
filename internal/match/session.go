package match

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/phaseline/lightcycle/internal/cache"
	"github.com/phaseline/lightcycle/internal/damage"
	"github.com/phaseline/lightcycle/internal/input"
	"github.com/phaseline/lightcycle/internal/netcode"
	"github.com/phaseline/lightcycle/internal/physics"
	"github.com/phaseline/lightcycle/internal/powerup"
	"github.com/phaseline/lightcycle/internal/queue"
	"github.com/phaseline/lightcycle/internal/scheduler"
	"github.com/phaseline/lightcycle/internal/spawn"
	"github.com/phaseline/lightcycle/internal/teleport"
	"github.com/phaseline/lightcycle/internal/trail"
	"github.com/phaseline/lightcycle/internal/world"
	"github.com/phaseline/lightcycle/pkg/core"
	"github.com/phaseline/lightcycle/pkg/streaming"
)

var (
	ErrUnknownVehicle = errors.New("unknown vehicle")
	ErrMatchFull      = errors.New("match is full")
)

// command runs on the session goroutine at the start of a tick.
type command func(s *Session)

// Option configures a Session.
type Option func(*Session)

// WithOutbox sets where protocol messages go.
func WithOutbox(o Outbox) Option {
	return func(s *Session) { s.outbox = o }
}

// WithRecorder sets the match history sink.
func WithRecorder(r Recorder) Option {
	return func(s *Session) { s.recorder = r }
}

// WithObserver receives per-tick statistics.
func WithObserver(o TickObserver) Option {
	return func(s *Session) { s.observer = o }
}

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// Session is the authoritative simulation of one match.
//
// Network goroutines talk to it through Join, Leave, Teleport and
// SubmitInputs; everything else happens on the goroutine calling Step,
// usually Run's ticker loop.
type Session struct {
	cfg     Config
	match   *Context
	world   *world.World
	stepper *physics.Stepper
	logger  *slog.Logger

	owners      *cache.OwnerIndex
	judge       *damage.Judge
	coordinator *teleport.Coordinator
	spawns      *spawn.Manager
	powerups    *powerup.Manager
	sched       *scheduler.Scheduler
	inbox       *queue.Queue[command]
	contacts    *overlapTracker

	outbox   Outbox
	recorder Recorder
	observer TickObserver
	metrics  sessionMetrics

	mu       sync.Mutex // held for a whole tick and for roster changes
	tick     atomic.Uint64
	nextID   core.VehicleID
	segments atomic.Uint32

	vmu      sync.RWMutex
	vehicles map[core.VehicleID]*Vehicle
	order    []*Vehicle
}

// NewSession builds a session on w. mctx may be nil.
func NewSession(cfg Config, w *world.World, mctx *Context, opts ...Option) (*Session, error) {
	if w == nil {
		return nil, errors.New("new session: nil world")
	}
	stepper, err := physics.NewStepper(cfg.Physics, w)
	if err != nil {
		return nil, fmt.Errorf("new session: %w", err)
	}
	if mctx == nil {
		mctx = NewContext()
	}

	s := &Session{
		cfg:      cfg,
		match:    mctx,
		world:    w,
		stepper:  stepper,
		logger:   slog.Default(),
		owners:   cache.NewOwnerIndex(),
		sched:    scheduler.New(),
		contacts: newOverlapTracker(),
		outbox:   nopOutbox{},
		recorder: nopRecorder{},
		vehicles: make(map[core.VehicleID]*Vehicle),
	}
	if cfg.InboxLimit > 0 {
		s.inbox = queue.NewBounded[command](cfg.InboxLimit)
	} else {
		s.inbox = queue.New[command]()
	}
	for _, opt := range opts {
		opt(s)
	}

	s.judge = damage.NewJudge(true, s.owners, s)
	s.judge.MinRelativeSpeed = cfg.MinCrashSpeed
	s.coordinator = teleport.NewCoordinator(s, s.logger)
	s.spawns, err = spawn.NewManager(cfg.Spawn, w.SpawnPoints(), s.sched, s.coordinator, s, s.logger)
	if err != nil {
		return nil, fmt.Errorf("new session: %w", err)
	}
	s.powerups = powerup.NewManager(cfg.PowerUp, w.PickupSites(), s.sched)

	s.metrics, err = newSessionMetrics()
	if err != nil {
		return nil, fmt.Errorf("new session: %w", err)
	}
	return s, nil
}

// Config returns the session settings.
func (s *Session) Config() Config { return s.cfg }

// World returns the arena.
func (s *Session) World() *world.World { return s.world }

// CurrentTick returns the last simulated tick.
func (s *Session) CurrentTick() uint64 { return s.tick.Load() }

// Match returns the match being played.
func (s *Session) Match() *core.Match { return s.match.GetMatch() }

// Vehicle looks up a registered vehicle.
func (s *Session) Vehicle(id core.VehicleID) (*Vehicle, bool) {
	s.vmu.RLock()
	defer s.vmu.RUnlock()
	v, ok := s.vehicles[id]
	return v, ok
}

// Vehicles returns the registered vehicles in join order.
func (s *Session) Vehicles() []*Vehicle {
	s.vmu.RLock()
	defer s.vmu.RUnlock()
	return slices.Clone(s.order)
}

// Health implements damage.Registry.
func (s *Session) Health(id core.VehicleID) (*damage.Health, bool) {
	v, ok := s.Vehicle(id)
	if !ok {
		return nil, false
	}
	return v.Health(), true
}

// Run steps the session at the configured tick rate until ctx ends.
func (s *Session) Run(ctx context.Context) error {
	period := time.Duration(s.cfg.Dt() * float64(time.Second))
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	s.logger.Info("session started", "world", s.world.Name(), "tickRate", s.cfg.TickRate)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("session stopped", "tick", s.CurrentTick())
			return nil
		case <-ticker.C:
			s.Step()
		}
	}
}

// Join registers a networked vehicle and returns its welcome message.
// It waits for the session goroutine to process the request.
func (s *Session) Join(ctx context.Context, name string, isBot bool) (streaming.WelcomePayload, error) {
	type result struct {
		welcome streaming.WelcomePayload
		err     error
	}
	reply := make(chan result, 1)
	err := s.inbox.Push(func(s *Session) {
		if ctx.Err() != nil {
			reply <- result{err: ctx.Err()}
			return
		}
		v, err := s.addVehicle(name, isBot, nil)
		if err != nil {
			reply <- result{err: err}
			return
		}
		reply <- result{welcome: s.welcome(v)}
	})
	if err != nil {
		return streaming.WelcomePayload{}, fmt.Errorf("join %q: %w", name, err)
	}

	select {
	case r := <-reply:
		return r.welcome, r.err
	case <-ctx.Done():
		return streaming.WelcomePayload{}, ctx.Err()
	}
}

// Leave removes a vehicle at the start of the next tick.
func (s *Session) Leave(id core.VehicleID) error {
	return s.inbox.Push(func(s *Session) {
		if err := s.removeVehicle(id); err != nil {
			s.logger.Debug("leave ignored", "vehicle", id, "error", err)
		}
	})
}

// Teleport moves a vehicle on behalf of an operator.
func (s *Session) Teleport(ctx context.Context, id core.VehicleID, pos mgl64.Vec3, rot mgl64.Quat) (core.TeleportEvent, error) {
	type result struct {
		ev  core.TeleportEvent
		err error
	}
	reply := make(chan result, 1)
	err := s.inbox.Push(func(s *Session) {
		ev, err := s.teleport(id, pos, rot, core.ReasonAdmin)
		reply <- result{ev, err}
	})
	if err != nil {
		return core.TeleportEvent{}, fmt.Errorf("teleport vehicle %d: %w", id, err)
	}

	select {
	case r := <-reply:
		return r.ev, r.err
	case <-ctx.Done():
		return core.TeleportEvent{}, ctx.Err()
	}
}

// SubmitInputs hands remote inputs to a vehicle's authority. It returns
// how many were kept; stale ticks are dropped.
func (s *Session) SubmitInputs(id core.VehicleID, inputs []core.TickInput) (int, error) {
	v, ok := s.Vehicle(id)
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrUnknownVehicle, id)
	}
	kept := 0
	for _, in := range inputs {
		if v.auth.SubmitInput(in) {
			kept++
		}
	}
	return kept, nil
}

// AddVehicle registers a vehicle driven by src, typically a bot. It must
// not be called from a command.
func (s *Session) AddVehicle(name string, isBot bool, src input.Source) (*Vehicle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addVehicle(name, isBot, src)
}

// RemoveVehicle unregisters a vehicle immediately.
func (s *Session) RemoveVehicle(id core.VehicleID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeVehicle(id)
}

func (s *Session) addVehicle(name string, isBot bool, src input.Source) (*Vehicle, error) {
	s.vmu.RLock()
	count := len(s.order)
	s.vmu.RUnlock()
	if s.cfg.MaxVehicles > 0 && count >= s.cfg.MaxVehicles {
		return nil, fmt.Errorf("add %q: %w", name, ErrMatchFull)
	}

	tick := s.tick.Load()
	s.nextID++
	info := core.Vehicle{
		ID:       s.nextID,
		Name:     name,
		IsBot:    isBot,
		JoinTime: time.Now(),
		JoinTick: tick,
	}
	auth := netcode.NewAuthority(info.ID, s.stepper, s.cfg.Dt(),
		core.NewVehicleState(mgl64.Vec3{}, mgl64.QuatIdent()), tick, s.cfg.InputCapacity)
	ledger := trail.NewLedger(info.ID, s.cfg.Trail, trail.Options{Authoritative: true, NextID: s.nextSegmentID})
	v := newVehicle(info, auth, ledger, src)

	s.vmu.Lock()
	s.vehicles[info.ID] = v
	s.order = append(s.order, v)
	s.vmu.Unlock()
	s.owners.SetHull(v.Hull(), info.ID)

	if err := s.recorder.AddVehicle(&info); err != nil {
		s.logger.Error("failed to record vehicle", "vehicle", info.ID, "error", err)
	}
	s.outbox.Broadcast(streaming.TypeVehicleJoined, streaming.VehiclePayload{VehicleID: info.ID, Name: name})

	if _, err := s.spawns.Spawn(tick, v); err != nil {
		_ = s.removeVehicle(info.ID)
		return nil, fmt.Errorf("add %q: %w", name, err)
	}
	s.logger.Info("vehicle joined", "vehicle", info.ID, "name", name, "bot", isBot, "tick", tick)
	return v, nil
}

func (s *Session) removeVehicle(id core.VehicleID) error {
	v, ok := s.Vehicle(id)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownVehicle, id)
	}
	tick := s.tick.Load()

	s.spawns.Forget(id)
	s.powerups.Cancel(v)
	s.recordRuns(tick, v)
	v.ledger.Clear()
	s.flushTrail(tick, v)
	s.owners.RemoveOwner(id)
	s.contacts.forget(v.Hull())

	s.vmu.Lock()
	delete(s.vehicles, id)
	s.order = slices.DeleteFunc(s.order, func(o *Vehicle) bool { return o == v })
	s.vmu.Unlock()

	s.outbox.Broadcast(streaming.TypeVehicleLeft, streaming.VehiclePayload{VehicleID: id, Name: v.info.Name})
	s.logger.Info("vehicle left", "vehicle", id, "tick", tick)
	return nil
}

func (s *Session) teleport(id core.VehicleID, pos mgl64.Vec3, rot mgl64.Quat, reason core.TeleportReason) (core.TeleportEvent, error) {
	v, ok := s.Vehicle(id)
	if !ok {
		return core.TeleportEvent{}, fmt.Errorf("%w: %d", ErrUnknownVehicle, id)
	}
	return s.coordinator.Teleport(v.TeleportTarget(!v.health.State.IsDead()), pos, rot, reason)
}

func (s *Session) welcome(v *Vehicle) streaming.WelcomePayload {
	tick := s.tick.Load()
	return streaming.WelcomePayload{
		VehicleID: v.ID(),
		TickRate:  s.cfg.TickRate,
		Tick:      tick,
		Spawn:     core.SnapshotOf(v.ID(), tick, v.Snapshot()),
	}
}

func (s *Session) nextSegmentID() core.SegmentID {
	return core.SegmentID(s.segments.Add(1))
}

// Step simulates one tick: commands, scheduled tasks, parallel vehicle
// steps, then contacts, portals, pickups, broadcast and recording.
func (s *Session) Step() TickStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	for _, cmd := range s.inbox.Drain() {
		cmd(s)
	}

	tick := s.tick.Add(1)
	s.sched.RunDue(tick)

	s.stepVehicles(tick)
	for _, v := range s.order {
		s.flushTrail(tick, v)
	}

	kills := s.resolveContacts(tick)
	s.usePortals(tick)
	s.collectPickups(tick)

	if every(tick, s.cfg.BroadcastEvery) {
		s.broadcastSnapshots(tick)
	}
	if every(tick, s.cfg.SampleEvery) {
		s.recordSamples(tick, start)
	}

	stats := TickStats{
		Tick:     tick,
		Time:     start,
		Vehicles: len(s.order),
		Segments: s.owners.SegmentCount(),
		Kills:    kills,
	}
	for _, v := range s.order {
		if !v.health.State.IsDead() {
			stats.Alive++
		}
	}
	stats.Duration = time.Since(start)

	ctx := context.Background()
	s.metrics.tickDuration.Record(ctx, float64(stats.Duration.Microseconds())/1000)
	s.metrics.segments.Record(ctx, int64(stats.Segments))
	s.metrics.vehicles.Record(ctx, int64(stats.Vehicles))
	if s.observer != nil {
		s.observer.ObserveTick(stats)
	}
	return stats
}

func (s *Session) stepVehicles(tick uint64) {
	var g errgroup.Group
	if s.cfg.Workers > 0 {
		g.SetLimit(s.cfg.Workers)
	}
	for _, v := range s.order {
		g.Go(func() error {
			v.step(tick)
			return nil
		})
	}
	_ = g.Wait()
}

// flushTrail moves a ledger's spawn and retire events into the owner
// index and out to mirrors.
func (s *Session) flushTrail(tick uint64, v *Vehicle) {
	for _, ev := range v.ledger.TakeEvents() {
		switch ev.Kind {
		case trail.EventSpawned:
			s.owners.AddSegment(ev.Segment.ID, ev.Segment.Owner)
			s.outbox.Broadcast(streaming.TypeSegmentSpawn, core.SegmentSpawned{Segment: ev.Segment})
		case trail.EventRetired:
			s.owners.RemoveSegment(ev.Segment.ID)
			s.outbox.Broadcast(streaming.TypeSegmentRetire, core.SegmentRetired{
				Owner: ev.Segment.Owner,
				ID:    ev.Segment.ID,
				Tick:  tick,
			})
		}
	}
}

// resolveContacts tests every living hull against lethal walls, trail
// colliders and other hulls, judges the contacts that began this tick
// and handles the resulting deaths. It returns the number of kills.
func (s *Session) resolveContacts(tick uint64) int {
	var killed []damage.Verdict
	judge := func(v damage.Verdict) {
		if v.Outcome == damage.Killed {
			killed = append(killed, v)
		}
	}

	type hull struct {
		v      *Vehicle
		sphere world.Sphere
	}
	var hulls []hull
	segments := make([][]core.TrailColliderSegment, 0, len(s.order))
	for _, v := range s.order {
		segments = append(segments, v.ledger.Segments())
		if !v.health.State.IsDead() {
			hulls = append(hulls, hull{v, v.hullSphere(s.cfg.HullRadius, s.cfg.HullHeight)})
		}
	}

	for _, h := range hulls {
		id := h.v.Hull()
		for _, box := range s.world.LethalOverlaps(h.sphere) {
			if s.contacts.touch(wallKey(id, box)) {
				judge(s.judge.OnWallContact(tick, id))
			}
		}
		for _, segs := range segments {
			for _, seg := range segs {
				obb := world.OBB{Center: seg.Center, Rotation: seg.Rotation, HalfExtents: seg.HalfExtents}
				if obb.OverlapsSphere(h.sphere.Center, h.sphere.Radius) && s.contacts.touch(trailKey(id, seg.ID)) {
					judge(s.judge.OnOverlapBegin(tick, seg.ID, id))
				}
			}
		}
	}

	for i := range hulls {
		for j := i + 1; j < len(hulls); j++ {
			a, b := hulls[i], hulls[j]
			if !a.sphere.Overlaps(b.sphere) || !s.contacts.touch(hullKey(a.v.Hull(), b.v.Hull())) {
				continue
			}
			rel := a.v.Snapshot().Velocity.Sub(b.v.Snapshot().Velocity).Len()
			for _, verdict := range s.judge.OnHullContact(tick, a.v.Hull(), b.v.Hull(), rel) {
				judge(verdict)
			}
		}
	}
	s.contacts.flush()

	for _, verdict := range killed {
		s.handleDeath(tick, verdict)
	}
	return len(killed)
}

func (s *Session) handleDeath(tick uint64, verdict damage.Verdict) {
	v, ok := s.Vehicle(verdict.Victim)
	if !ok {
		return
	}
	last := v.Snapshot()

	s.recordRuns(tick, v)
	s.powerups.Cancel(v)
	v.kill()
	s.flushTrail(tick, v)

	ev := core.DeathEvent{
		VehicleID: v.ID(),
		Tick:      tick,
		Time:      time.Now(),
		Cause:     verdict.Cause,
		KillerID:  verdict.Killer,
		SegmentID: verdict.Segment,
		Position:  last.Position,
	}
	s.outbox.Broadcast(streaming.TypeDeath, ev)
	s.outbox.Broadcast(streaming.TypeTrailClear, streaming.TrailPayload{
		VehicleID: v.ID(),
		Tick:      tick,
		Position:  last.Position,
		Rotation:  last.Rotation,
	})
	if err := s.recorder.RecordDeath(&ev); err != nil {
		s.logger.Error("failed to record death", "vehicle", v.ID(), "error", err)
	}
	s.metrics.kills.Add(context.Background(), 1, metric.WithAttributes(attribute.String("cause", string(verdict.Cause))))

	s.spawns.ScheduleRespawn(tick, v)
	s.logger.Info("vehicle died", "vehicle", v.ID(), "cause", verdict.Cause, "tick", tick)
}

func (s *Session) usePortals(tick uint64) {
	for _, v := range s.order {
		if v.health.State.IsDead() || v.onCooldown() {
			continue
		}
		p, ok := s.world.PortalAt(v.hullSphere(s.cfg.HullRadius, s.cfg.HullHeight))
		if !ok {
			continue
		}
		if _, err := s.teleport(v.ID(), p.ExitPosition, p.ExitRotation, core.ReasonPortal); err != nil {
			s.logger.Warn("portal teleport failed", "vehicle", v.ID(), "portal", p.ID, "tick", tick, "error", err)
			continue
		}
		v.setCooldown(s.cfg.PortalCooldown)
	}
}

func (s *Session) collectPickups(tick uint64) {
	for _, v := range s.order {
		if v.health.State.IsDead() {
			continue
		}
		for _, ev := range s.powerups.Collect(tick, v, v.hullSphere(s.cfg.HullRadius, s.cfg.HullHeight)) {
			s.outbox.Broadcast(streaming.TypePowerUp, ev)
			if err := s.recorder.RecordPowerUp(&ev); err != nil {
				s.logger.Error("failed to record power-up", "vehicle", v.ID(), "error", err)
			}
		}
	}
}

func (s *Session) broadcastSnapshots(tick uint64) {
	payload := streaming.SnapshotPayload{
		Tick:      tick,
		Snapshots: make([]core.ReconcileSnapshot, 0, len(s.order)),
	}
	for _, v := range s.order {
		payload.Snapshots = append(payload.Snapshots, core.SnapshotOf(v.ID(), tick, v.Snapshot()))
	}
	s.outbox.Broadcast(streaming.TypeSnapshot, payload)
}

func (s *Session) recordSamples(tick uint64, at time.Time) {
	for _, v := range s.order {
		sample := core.VehicleSample{
			VehicleID: v.ID(),
			Tick:      tick,
			Time:      at,
			State:     v.Snapshot(),
			IsAlive:   v.Alive(),
		}
		if err := s.recorder.RecordVehicleSample(&sample); err != nil {
			s.logger.Error("failed to record sample", "vehicle", v.ID(), "error", err)
		}
	}
}

func (s *Session) recordRuns(tick uint64, v *Vehicle) {
	for _, run := range v.ledger.Runs() {
		if len(run) < 2 {
			continue
		}
		r := core.TrailRun{VehicleID: v.ID(), Tick: tick, Points: run}
		if err := s.recorder.RecordTrailRun(&r); err != nil {
			s.logger.Error("failed to record trail", "vehicle", v.ID(), "error", err)
		}
	}
}

// BroadcastTeleport implements teleport.Broadcaster.
func (s *Session) BroadcastTeleport(ev core.TeleportEvent, snap core.ReconcileSnapshot, resumeTrail bool) {
	s.outbox.Broadcast(streaming.TypeTeleport, streaming.TeleportPayload{
		Snapshot:    snap,
		From:        ev.From,
		Reason:      ev.Reason,
		ResumeTrail: resumeTrail,
	})
	if err := s.recorder.RecordTeleport(&ev); err != nil {
		s.logger.Error("failed to record teleport", "vehicle", ev.VehicleID, "error", err)
	}
	s.metrics.teleports.Add(context.Background(), 1, metric.WithAttributes(attribute.String("reason", string(ev.Reason))))
}

// Spawned implements spawn.Listener.
func (s *Session) Spawned(v spawn.Vehicle, tick uint64, _ core.TeleportEvent) {
	s.outbox.Broadcast(streaming.TypeRevive, core.ReviveEvent{VehicleID: v.ID(), Tick: tick})
}

// TrailResumed implements spawn.Listener.
func (s *Session) TrailResumed(v spawn.Vehicle, tick uint64) {
	p := v.Pose()
	s.outbox.Broadcast(streaming.TypeTrailResume, streaming.TrailPayload{
		VehicleID: v.ID(),
		Tick:      tick,
		Position:  p.Position,
		Rotation:  p.Rotation,
	})
}

func every(tick uint64, n int) bool {
	return n > 0 && tick%uint64(n) == 0
}
