package core

import "time"

// Match describes a recorded session.
type Match struct {
	ID        uint
	Name      string
	WorldName string
	StartTime time.Time
	TickRate  int
	Tag       string
}
