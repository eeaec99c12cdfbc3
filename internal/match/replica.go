package match

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/phaseline/lightcycle/internal/input"
	"github.com/phaseline/lightcycle/internal/netcode"
	"github.com/phaseline/lightcycle/internal/physics"
	"github.com/phaseline/lightcycle/internal/queue"
	"github.com/phaseline/lightcycle/internal/trail"
	"github.com/phaseline/lightcycle/internal/world"
	"github.com/phaseline/lightcycle/pkg/core"
	"github.com/phaseline/lightcycle/pkg/streaming"
)

// inputRedundancy is how many recent inputs each input message repeats.
const inputRedundancy = 4

// Sender delivers client messages to the authority.
type Sender interface {
	Send(msgType string, payload any) error
}

// mirror is the client's copy of one vehicle's trail.
type mirror struct {
	ledger *trail.Ledger
	pose   trail.Pose
	seen   bool
}

// Replica is the client side of a match. It predicts the local vehicle,
// keeps the latest authoritative state of remote ones and mirrors every
// trail from replicated collider events.
//
// Handle may be called from the network goroutine; Tick and the trail
// accessors belong to the client's simulation goroutine.
type Replica struct {
	id        core.VehicleID
	cfg       Config
	codec     streaming.Codec
	predictor *netcode.Predictor
	source    input.Source
	sender    Sender
	logger    *slog.Logger
	metrics   replicaMetrics

	events  *queue.Queue[streaming.Envelope]
	history []core.TickInput
	stats   netcode.Stats
	dead    bool

	mu      sync.RWMutex
	own     core.VehicleState
	remotes map[core.VehicleID]core.ReconcileSnapshot
	mirrors map[core.VehicleID]*mirror
	// teleports counts queued teleports per vehicle; snapshots that arrive
	// behind one wait in deferred until its trail cut is applied
	teleports map[core.VehicleID]int
	deferred  map[core.VehicleID]core.ReconcileSnapshot
}

// NewReplica starts predicting the vehicle assigned by welcome. src is
// shaped with cfg.Input before use.
func NewReplica(cfg Config, w *world.World, welcome streaming.WelcomePayload, codec streaming.Codec, src input.Source, sender Sender, logger *slog.Logger) (*Replica, error) {
	stepper, err := physics.NewStepper(cfg.Physics, w)
	if err != nil {
		return nil, fmt.Errorf("new replica: %w", err)
	}
	metrics, err := newReplicaMetrics()
	if err != nil {
		return nil, fmt.Errorf("new replica: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if src == nil {
		src = input.Constant{}
	}

	r := &Replica{
		id:        welcome.VehicleID,
		cfg:       cfg,
		codec:     codec,
		predictor: netcode.NewPredictor(welcome.VehicleID, stepper, cfg.Dt(), welcome.Spawn, cfg.PredictionLead, cfg.InputCapacity),
		source:    input.Shaped{Source: src, Shaper: cfg.Input},
		sender:    sender,
		logger:    logger.With("vehicle", welcome.VehicleID),
		metrics:   metrics,
		events:    queue.New[streaming.Envelope](),
		own:       welcome.Spawn.State(),
		remotes:   make(map[core.VehicleID]core.ReconcileSnapshot),
		mirrors:   make(map[core.VehicleID]*mirror),
		teleports: make(map[core.VehicleID]int),
		deferred:  make(map[core.VehicleID]core.ReconcileSnapshot),
	}
	return r, nil
}

// ID returns the locally controlled vehicle.
func (r *Replica) ID() core.VehicleID { return r.id }

// Predictor exposes the local predictor.
func (r *Replica) Predictor() *netcode.Predictor { return r.predictor }

// Handle accepts one message from the authority. Snapshots go straight to
// the predictor's mailbox or the remote table unless a teleport of the same
// vehicle is still queued; everything else waits for the start of the
// next Tick, so a teleport's pose change and trail cut land together.
func (r *Replica) Handle(env streaming.Envelope) error {
	switch env.Type {
	case streaming.TypeSnapshot:
		p, err := streaming.DecodePayload[streaming.SnapshotPayload](r.codec, env)
		if err != nil {
			return err
		}
		for _, s := range p.Snapshots {
			r.receive(s)
		}
		return nil

	case streaming.TypeTeleport:
		p, err := streaming.DecodePayload[streaming.TeleportPayload](r.codec, env)
		if err != nil {
			return err
		}
		id := p.Snapshot.VehicleID
		r.mu.Lock()
		r.teleports[id]++
		r.mu.Unlock()
		if err := r.events.Push(env); err != nil {
			r.mu.Lock()
			r.settleTeleport(id)
			r.mu.Unlock()
			return err
		}
		return nil

	case streaming.TypeSegmentSpawn, streaming.TypeSegmentRetire,
		streaming.TypeTrailClear, streaming.TypeTrailResume,
		streaming.TypeDeath, streaming.TypeRevive,
		streaming.TypeVehicleJoined, streaming.TypeVehicleLeft,
		streaming.TypePowerUp:
		return r.events.Push(env)

	default:
		r.logger.Debug("ignoring message", "type", env.Type)
		return nil
	}
}

func (r *Replica) receive(s core.ReconcileSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.teleports[s.VehicleID] > 0 {
		if held, ok := r.deferred[s.VehicleID]; !ok || s.Tick > held.Tick {
			r.deferred[s.VehicleID] = s
		}
		return
	}
	r.deliverLocked(s)
}

// deliverLocked hands s to the predictor or the remote table. r.mu must be held.
func (r *Replica) deliverLocked(s core.ReconcileSnapshot) {
	if s.VehicleID == r.id {
		r.predictor.Receive(s)
		return
	}
	held, ok := r.remotes[s.VehicleID]
	if ok && (s.Tick < held.Tick || (s.Tick == held.Tick && !s.Teleport)) {
		return
	}
	r.remotes[s.VehicleID] = s
}

// settleTeleport retires one queued teleport of id and returns the
// snapshot deferred behind it once none remain. r.mu must be held.
func (r *Replica) settleTeleport(id core.VehicleID) (core.ReconcileSnapshot, bool) {
	if r.teleports[id] > 1 {
		r.teleports[id]--
		return core.ReconcileSnapshot{}, false
	}
	delete(r.teleports, id)
	s, ok := r.deferred[id]
	delete(r.deferred, id)
	return s, ok
}

// Tick applies queued control messages, predicts one tick of the local
// vehicle, advances every mirrored trail and sends the recent inputs.
func (r *Replica) Tick(ctx context.Context) (core.VehicleState, error) {
	r.applyEvents()

	next := r.predictor.CurrentTick() + 1
	in := core.TickInput{Tick: next}
	if !r.dead {
		in = r.source.Next(next, r.predictor.State())
	}
	state := r.predictor.Tick(in)
	tick := r.predictor.CurrentTick()

	r.mu.Lock()
	r.own = state
	remotes := make(map[core.VehicleID]core.ReconcileSnapshot, len(r.remotes))
	for id, s := range r.remotes {
		remotes[id] = s
	}
	r.mu.Unlock()

	r.advance(r.id, tick, trail.Pose{Position: state.Position, Rotation: state.Rotation})
	for id, s := range remotes {
		r.advance(id, s.Tick, trail.Pose{Position: s.Position, Rotation: s.Rotation})
	}

	r.recordMetrics(ctx)

	if recorded, ok := r.predictor.Input(tick); ok {
		r.history = append(r.history, recorded)
		if len(r.history) > inputRedundancy {
			r.history = r.history[len(r.history)-inputRedundancy:]
		}
	}
	if r.sender == nil {
		return state, nil
	}
	payload := streaming.InputPayload{VehicleID: r.id, Inputs: append([]core.TickInput(nil), r.history...)}
	if err := r.sender.Send(streaming.TypeInput, payload); err != nil {
		return state, fmt.Errorf("send input for tick %d: %w", tick, err)
	}
	return state, nil
}

// advance drives one mirror ledger. A vehicle's trail starts emitting the
// first time it is seen.
func (r *Replica) advance(id core.VehicleID, tick uint64, pose trail.Pose) {
	m := r.mirror(id)
	if !m.seen {
		m.seen = true
		m.ledger.ResumeEmission(pose)
	}
	if r.dead && id == r.id {
		m.pose = pose
		return
	}
	m.ledger.OnTick(tick, pose)
	m.pose = pose
}

func (r *Replica) mirror(id core.VehicleID) *mirror {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.mirrors[id]
	if !ok {
		m = &mirror{
			ledger: trail.NewLedger(id, r.cfg.Trail, trail.Options{}),
			pose:   trail.Pose{Rotation: mgl64.QuatIdent()},
		}
		r.mirrors[id] = m
	}
	return m
}

func (r *Replica) applyEvents() {
	for _, env := range r.events.Drain() {
		if err := r.applyEvent(env); err != nil {
			r.logger.Debug("dropping malformed message", "type", env.Type, "error", err)
		}
	}
}

func (r *Replica) applyEvent(env streaming.Envelope) error {
	switch env.Type {
	case streaming.TypeSegmentSpawn:
		p, err := streaming.DecodePayload[core.SegmentSpawned](r.codec, env)
		if err != nil {
			return err
		}
		r.mirror(p.Segment.Owner).ledger.ApplySpawn(p.Segment)

	case streaming.TypeSegmentRetire:
		p, err := streaming.DecodePayload[core.SegmentRetired](r.codec, env)
		if err != nil {
			return err
		}
		r.mirror(p.Owner).ledger.ApplyRetire(p.ID)

	case streaming.TypeTeleport:
		p, err := streaming.DecodePayload[streaming.TeleportPayload](r.codec, env)
		if err != nil {
			return err
		}
		id := p.Snapshot.VehicleID
		m := r.mirror(id)
		m.ledger.Cut(trail.Pose{Position: p.From, Rotation: m.pose.Rotation})
		m.pose = trail.Pose{Position: p.Snapshot.Position, Rotation: p.Snapshot.Rotation}
		m.seen = true
		if p.ResumeTrail {
			m.ledger.ResumeEmission(m.pose)
		}

		snap := p.Snapshot
		snap.Teleport = true
		r.mu.Lock()
		next, ok := r.settleTeleport(id)
		r.deliverLocked(snap)
		if ok && next.Tick > snap.Tick {
			r.deliverLocked(next)
		}
		r.mu.Unlock()

	case streaming.TypeTrailClear:
		p, err := streaming.DecodePayload[streaming.TrailPayload](r.codec, env)
		if err != nil {
			return err
		}
		r.mirror(p.VehicleID).ledger.Clear()

	case streaming.TypeTrailResume:
		p, err := streaming.DecodePayload[streaming.TrailPayload](r.codec, env)
		if err != nil {
			return err
		}
		m := r.mirror(p.VehicleID)
		m.seen = true
		m.ledger.ResumeEmission(trail.Pose{Position: p.Position, Rotation: p.Rotation})

	case streaming.TypeDeath:
		p, err := streaming.DecodePayload[core.DeathEvent](r.codec, env)
		if err != nil {
			return err
		}
		if p.VehicleID == r.id {
			r.dead = true
		}
		r.logger.Debug("vehicle died", "victim", p.VehicleID, "cause", p.Cause)

	case streaming.TypeRevive:
		p, err := streaming.DecodePayload[core.ReviveEvent](r.codec, env)
		if err != nil {
			return err
		}
		if p.VehicleID == r.id {
			r.dead = false
		}

	case streaming.TypeVehicleLeft:
		p, err := streaming.DecodePayload[streaming.VehiclePayload](r.codec, env)
		if err != nil {
			return err
		}
		r.mu.Lock()
		delete(r.mirrors, p.VehicleID)
		delete(r.remotes, p.VehicleID)
		delete(r.deferred, p.VehicleID)
		r.mu.Unlock()
	}
	return nil
}

func (r *Replica) recordMetrics(ctx context.Context) {
	cur := r.predictor.Stats()
	r.metrics.reconciles.Add(ctx, int64(cur.Reconciles-r.stats.Reconciles))
	r.metrics.replayed.Add(ctx, int64(cur.Replayed-r.stats.Replayed))
	r.metrics.discarded.Add(ctx, int64(cur.Discarded-r.stats.Discarded))
	r.stats = cur
}

// State returns the predicted state of the local vehicle.
func (r *Replica) State() core.VehicleState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.own
}

// Dead reports whether the local vehicle is waiting to respawn.
func (r *Replica) Dead() bool { return r.dead }

// Remote returns the latest authoritative state of another vehicle.
func (r *Replica) Remote(id core.VehicleID) (core.VehicleState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.remotes[id]
	if !ok {
		return core.VehicleState{}, false
	}
	return s.State(), true
}

// Trail returns the mirrored trail points of a vehicle.
func (r *Replica) Trail(id core.VehicleID) []core.TrailPoint {
	r.mu.RLock()
	m, ok := r.mirrors[id]
	r.mu.RUnlock()
	if !ok {
		return nil
	}
	return m.ledger.Points()
}

// Segments returns the mirrored colliders of a vehicle.
func (r *Replica) Segments(id core.VehicleID) []core.TrailColliderSegment {
	r.mu.RLock()
	m, ok := r.mirrors[id]
	r.mu.RUnlock()
	if !ok {
		return nil
	}
	return m.ledger.Segments()
}

// Mesh builds the render mesh of a vehicle's mirrored trail.
func (r *Replica) Mesh(id core.VehicleID) trail.Mesh {
	return trail.BuildMesh(r.Trail(id))
}
