package room

import (
	"sync"

	"switchboard/internal/logging"
)

// Registry is the process-wide Room Registry: one Room per
// namespace+lesson name, created on first join and destroyed on last
// leave, driven here by Room's onEmpty callback.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]*Room
}

// NewRegistry constructs an empty Room Registry.
func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*Room)}
}

// GetOrCreate returns the Room for name, creating it if this is the first
// reference.
func (reg *Registry) GetOrCreate(name string) *Room {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if r, ok := reg.rooms[name]; ok {
		return r
	}
	r := NewRoom(name, reg.onEmpty)
	reg.rooms[name] = r
	return r
}

// Get returns the Room for name without creating it.
func (reg *Registry) Get(name string) (*Room, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	r, ok := reg.rooms[name]
	return r, ok
}

func (reg *Registry) onEmpty(name string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if r, ok := reg.rooms[name]; ok && r.Destroyed() {
		delete(reg.rooms, name)
		logging.L().Info("room destroyed", logging.Room(name))
	}
}

// Len reports the number of live rooms, for the rooms_active metric.
func (reg *Registry) Len() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.rooms)
}

// Names returns every currently live room name, used by the admin
// overview-statistics surface.
func (reg *Registry) Names() []string {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	out := make([]string, 0, len(reg.rooms))
	for name := range reg.rooms {
		out = append(out, name)
	}
	return out
}
