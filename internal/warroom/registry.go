package warroom

import "sync"

// Registry owns the room -> session-set mapping. It is the single piece
// of shared mutable state between the connection-accept path and the
// dispatch path, so every mutation happens under the lock and dispatch
// always iterates over a snapshot. Only one room exists today; the keyed
// structure makes multi-room a configuration change.
type Registry struct {
	mu      sync.RWMutex
	rooms   map[string]map[*Session]struct{}
	members map[*Session]map[string]struct{}
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{
		rooms:   make(map[string]map[*Session]struct{}),
		members: make(map[*Session]map[string]struct{}),
	}
}

// Join adds the session to a room. Idempotent: joining a room twice is a
// no-op. A closed session is not re-admitted; the check happens under the
// lock so a racing Disconnect cannot leave a dead session in the map.
func (r *Registry) Join(s *Session, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	select {
	case <-s.Done():
		return
	default:
	}

	if r.rooms[room] == nil {
		r.rooms[room] = make(map[*Session]struct{})
	}
	r.rooms[room][s] = struct{}{}

	if r.members[s] == nil {
		r.members[s] = make(map[string]struct{})
	}
	r.members[s][room] = struct{}{}
}

// Disconnect closes the session, removes it from every room it joined
// and releases all registry state. The session is closed before the maps
// are touched: a Join racing with Disconnect either lands first and gets
// cleaned up here, or observes the closed session and refuses. Safe to
// call multiple times and concurrently with an in-flight dispatch: the
// dispatcher holds its own snapshot and TrySend tolerates a closed
// session.
func (r *Registry) Disconnect(s *Session) {
	s.Close()

	r.mu.Lock()
	for room := range r.members[s] {
		delete(r.rooms[room], s)
		if len(r.rooms[room]) == 0 {
			delete(r.rooms, room)
		}
	}
	delete(r.members, s)
	r.mu.Unlock()
}

// Snapshot returns the sessions currently joined to room. The returned
// slice is the dispatcher's to iterate without holding the lock; sessions
// joining concurrently may or may not see the in-flight message.
func (r *Registry) Snapshot(room string) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := make([]*Session, 0, len(r.rooms[room]))
	for s := range r.rooms[room] {
		sessions = append(sessions, s)
	}
	return sessions
}

// RoomSize returns the number of sessions joined to room.
func (r *Registry) RoomSize(room string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[room])
}
