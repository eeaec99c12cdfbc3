package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&Match{},
	&Vehicle{},
	&VehicleSample{},
	&DeathEvent{},
	&TeleportEvent{},
	&PowerUpEvent{},
	&TrailRun{},
	&TickPerformance{},
}

////////////////////////
// SYSTEM MODELS
////////////////////////

// TickPerformance is one status sample of the running session
type TickPerformance struct {
	ID         uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time       time.Time `json:"time" gorm:"index:idx_tickperformance_time"`
	MatchID    uint      `json:"matchId" gorm:"index:idx_tickperformance_match_id"`
	Tick       uint64    `json:"tick"`
	DurationMs float64   `json:"durationMs"`
	Vehicles   int       `json:"vehicles"`
	Alive      int       `json:"alive"`
	Segments   int       `json:"segments"`
	Kills      int       `json:"kills"`
}

func (*TickPerformance) TableName() string {
	return "tick_performances"
}

////////////////////////
// MATCH DATA
////////////////////////

// Match is one recorded session
type Match struct {
	gorm.Model
	Name      string     `json:"name" gorm:"size:200"`
	WorldName string     `json:"worldName" gorm:"size:200"`
	StartTime time.Time  `json:"startTime"`
	EndTime   *time.Time `json:"endTime"`
	TickRate  int        `json:"tickRate"`
	Tag       string     `json:"tag" gorm:"size:127"`
}

func (*Match) TableName() string {
	return "matches"
}

// Vehicle is a participant registered with a match
type Vehicle struct {
	ID        uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	MatchID   uint      `json:"matchId" gorm:"index:idx_vehicle_match_id"`
	VehicleID uint16    `json:"vehicleId" gorm:"index:idx_vehicle_vehicle_id"`
	Name      string    `json:"name" gorm:"size:64"`
	IsBot     bool      `json:"isBot"`
	JoinTime  time.Time `json:"joinTime"`
	JoinTick  uint64    `json:"joinTick"`
}

func (*Vehicle) TableName() string {
	return "vehicles"
}

// VehicleSample is a recorded vehicle state. State carries the full rigid
// body as JSON; the position is duplicated into columns for queries.
type VehicleSample struct {
	ID        uint           `json:"id" gorm:"primarykey;autoIncrement;"`
	MatchID   uint           `json:"matchId" gorm:"index:idx_vehiclesample_match_id"`
	VehicleID uint16         `json:"vehicleId" gorm:"index:idx_vehiclesample_vehicle_id"`
	Tick      uint64         `json:"tick" gorm:"index:idx_vehiclesample_tick"`
	Time      time.Time      `json:"time"`
	PosX      float64        `json:"posX"`
	PosY      float64        `json:"posY"`
	PosZ      float64        `json:"posZ"`
	Speed     float64        `json:"speed"`
	Grounded  bool           `json:"grounded"`
	IsAlive   bool           `json:"isAlive"`
	State     datatypes.JSON `json:"state"`
}

func (*VehicleSample) TableName() string {
	return "vehicle_samples"
}

////////////////////////
// EVENT DATA
////////////////////////

// DeathEvent records a vehicle being destroyed
type DeathEvent struct {
	ID        uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	MatchID   uint      `json:"matchId" gorm:"index:idx_deathevent_match_id"`
	VehicleID uint16    `json:"vehicleId" gorm:"index:idx_deathevent_vehicle_id"`
	Tick      uint64    `json:"tick"`
	Time      time.Time `json:"time"`
	Cause     string    `json:"cause" gorm:"size:16"`
	KillerID  *uint16   `json:"killerId"`
	SegmentID *uint32   `json:"segmentId"`
	PosX      float64   `json:"posX"`
	PosY      float64   `json:"posY"`
	PosZ      float64   `json:"posZ"`
}

func (*DeathEvent) TableName() string {
	return "death_events"
}

// TeleportEvent records a completed teleport
type TeleportEvent struct {
	ID        uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	MatchID   uint      `json:"matchId" gorm:"index:idx_teleportevent_match_id"`
	VehicleID uint16    `json:"vehicleId"`
	Tick      uint64    `json:"tick"`
	Time      time.Time `json:"time"`
	Reason    string    `json:"reason" gorm:"size:16"`
	FromX     float64   `json:"fromX"`
	FromY     float64   `json:"fromY"`
	FromZ     float64   `json:"fromZ"`
	ToX       float64   `json:"toX"`
	ToY       float64   `json:"toY"`
	ToZ       float64   `json:"toZ"`
}

func (*TeleportEvent) TableName() string {
	return "teleport_events"
}

// PowerUpEvent records a pickup being collected
type PowerUpEvent struct {
	ID        uint   `json:"id" gorm:"primarykey;autoIncrement;"`
	MatchID   uint   `json:"matchId" gorm:"index:idx_powerupevent_match_id"`
	VehicleID uint16 `json:"vehicleId"`
	Tick      uint64 `json:"tick"`
	Kind      string `json:"kind" gorm:"size:16"`
	PickupID  int    `json:"pickupId"`
}

func (*PowerUpEvent) TableName() string {
	return "powerup_events"
}

// TrailRun is a connected stretch of trail, stored as a LineString Z in
// well-known binary.
type TrailRun struct {
	ID         uint    `json:"id" gorm:"primarykey;autoIncrement;"`
	MatchID    uint    `json:"matchId" gorm:"index:idx_trailrun_match_id"`
	VehicleID  uint16  `json:"vehicleId" gorm:"index:idx_trailrun_vehicle_id"`
	Tick       uint64  `json:"tick"`
	PointCount int     `json:"pointCount"`
	Length     float64 `json:"length"`
	Path       []byte  `json:"path"`
}

func (*TrailRun) TableName() string {
	return "trail_runs"
}
