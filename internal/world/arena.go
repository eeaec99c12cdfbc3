package world

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/go-gl/mathgl/mgl64"
)

// ErrNoSpawnPoints is returned when a definition declares no spawn points.
var ErrNoSpawnPoints = errors.New("world has no spawn points")

// Definition is the on-disk description of a world.
type Definition struct {
	Name    string       `json:"name"`
	Planes  []Plane      `json:"planes"`
	Boxes   []Box        `json:"boxes"`
	Portals []Portal     `json:"portals"`
	Spawns  []SpawnPoint `json:"spawns"`
	Pickups []PickupSite `json:"pickups"`
}

// New validates a definition and builds the world from it.
func New(def Definition) (*World, error) {
	if len(def.Spawns) == 0 {
		return nil, ErrNoSpawnPoints
	}

	w := &World{name: def.Name}
	for i, p := range def.Planes {
		if p.Normal.Len() == 0 {
			return nil, fmt.Errorf("plane %d has zero normal", i)
		}
		p.Normal = p.Normal.Normalize()
		if p.Layer == 0 {
			p.Layer = LayerGround
		}
		w.planes = append(w.planes, p)
	}
	for i, b := range def.Boxes {
		if b.Shape.HalfExtents[0] <= 0 || b.Shape.HalfExtents[1] <= 0 || b.Shape.HalfExtents[2] <= 0 {
			return nil, fmt.Errorf("box %d has non-positive extents", i)
		}
		b.Shape.Rotation = normalizeQuat(b.Shape.Rotation)
		if b.Layer == 0 {
			b.Layer = LayerGround
		}
		w.boxes = append(w.boxes, b)
	}
	for _, p := range def.Portals {
		p.Trigger.Rotation = normalizeQuat(p.Trigger.Rotation)
		p.ExitRotation = normalizeQuat(p.ExitRotation)
		w.portals = append(w.portals, p)
	}
	for _, s := range def.Spawns {
		s.Rotation = normalizeQuat(s.Rotation)
		w.spawns = append(w.spawns, s)
	}
	w.pickups = append(w.pickups, def.Pickups...)
	return w, nil
}

// Load reads a JSON world definition from path.
func Load(path string) (*World, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read world file: %w", err)
	}
	var def Definition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to parse world file: %w", err)
	}
	return New(def)
}

// DefaultArena is a flat square arena of the given half size, ringed by
// lethal walls, with a spawn point in each quadrant facing the centre, a
// pair of linked portals and two pickup sites.
func DefaultArena(halfSize float64) *World {
	const wallHeight, wallThickness = 4.0, 1.0
	wall := func(id int, center, half mgl64.Vec3) Box {
		return Box{
			ID:     id,
			Shape:  OBB{Center: center, Rotation: mgl64.QuatIdent(), HalfExtents: half},
			Layer:  LayerWall,
			Lethal: true,
		}
	}
	s := halfSize
	spawnAt := func(x, z float64) SpawnPoint {
		heading := math.Atan2(-x, -z)
		return SpawnPoint{
			Position: mgl64.Vec3{x, 1, z},
			Rotation: mgl64.QuatRotate(heading, mgl64.Vec3{0, 1, 0}),
		}
	}
	quarter := s / 2

	def := Definition{
		Name: "default",
		Planes: []Plane{
			{Point: mgl64.Vec3{}, Normal: mgl64.Vec3{0, 1, 0}, Layer: LayerGround},
		},
		Boxes: []Box{
			wall(1, mgl64.Vec3{0, wallHeight / 2, s + wallThickness}, mgl64.Vec3{s + wallThickness, wallHeight / 2, wallThickness}),
			wall(2, mgl64.Vec3{0, wallHeight / 2, -s - wallThickness}, mgl64.Vec3{s + wallThickness, wallHeight / 2, wallThickness}),
			wall(3, mgl64.Vec3{s + wallThickness, wallHeight / 2, 0}, mgl64.Vec3{wallThickness, wallHeight / 2, s + wallThickness}),
			wall(4, mgl64.Vec3{-s - wallThickness, wallHeight / 2, 0}, mgl64.Vec3{wallThickness, wallHeight / 2, s + wallThickness}),
		},
		Portals: []Portal{
			{
				ID:           1,
				Trigger:      OBB{Center: mgl64.Vec3{-quarter, 1, 0}, Rotation: mgl64.QuatIdent(), HalfExtents: mgl64.Vec3{1, 1, 1}},
				ExitPosition: mgl64.Vec3{quarter, 1, 3},
				ExitRotation: mgl64.QuatIdent(),
			},
			{
				ID:           2,
				Trigger:      OBB{Center: mgl64.Vec3{quarter, 1, 0}, Rotation: mgl64.QuatIdent(), HalfExtents: mgl64.Vec3{1, 1, 1}},
				ExitPosition: mgl64.Vec3{-quarter, 1, -3},
				ExitRotation: mgl64.QuatRotate(math.Pi, mgl64.Vec3{0, 1, 0}),
			},
		},
		Spawns: []SpawnPoint{
			spawnAt(-quarter, -quarter),
			spawnAt(quarter, quarter),
			spawnAt(quarter, -quarter),
			spawnAt(-quarter, quarter),
		},
		Pickups: []PickupSite{
			{ID: 1, Kind: "boost", Position: mgl64.Vec3{0, 1, quarter}, Radius: 1},
			{ID: 2, Kind: "shield", Position: mgl64.Vec3{0, 1, -quarter}, Radius: 1},
		},
	}

	w, err := New(def)
	if err != nil {
		panic(fmt.Errorf("default arena: %w", err))
	}
	return w
}

func normalizeQuat(q mgl64.Quat) mgl64.Quat {
	if q.W == 0 && q.V.Len() == 0 {
		return mgl64.QuatIdent()
	}
	return q.Normalize()
}
