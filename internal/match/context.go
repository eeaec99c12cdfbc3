package match

import (
	"sync"

	"github.com/phaseline/lightcycle/pkg/core"
)

// Context holds the match currently being played
type Context struct {
	mu    sync.RWMutex
	match *core.Match
}

// NewContext creates a new Context with a placeholder match
func NewContext() *Context {
	return &Context{
		match: &core.Match{Name: "No match running"},
	}
}

// GetMatch returns the current match
func (c *Context) GetMatch() *core.Match {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.match
}

// SetMatch sets the current match
func (c *Context) SetMatch(m *core.Match) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.match = m
}
