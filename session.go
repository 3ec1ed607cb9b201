package main

import (
	"errors"
	"sort"
	"sync"
)

// ErrUnknownParticipant is returned for a state update whose participant is
// not registered, usually one that raced its own disconnect.
var ErrUnknownParticipant = errors.New("unknown participant")

// Sender is the outbound half of a connection. *Client implements it; tests
// use a recording fake.
type Sender interface {
	Codec() Codec
	SendFrame(f Frame) error
	Close() error
}

// Session is the server-side record of one connected participant
type Session struct {
	ID    int
	Conn  Sender
	State PlayerState
	// Reported is false until the participant submits its first state.
	Reported bool
}

// Registry owns participant sessions and hands out identifiers.
// Identifiers start at 1 and are never reused.
type Registry struct {
	mu       sync.RWMutex
	nextID   int
	sessions map[int]*Session
}

// NewRegistry creates an empty Registry
func NewRegistry() *Registry {
	return &Registry{
		nextID:   1,
		sessions: make(map[int]*Session),
	}
}

// Register allocates the next identifier and creates a session with an empty body.
func (r *Registry) Register(conn Sender) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextID
	r.nextID++
	r.sessions[id] = &Session{
		ID:    id,
		Conn:  conn,
		State: PlayerState{PlayerID: id, BodySegments: []BodySegment{}},
	}
	return id
}

// UpdateState replaces the stored state of participant id.
func (r *Registry) UpdateState(id int, state PlayerState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[id]
	if !ok {
		return ErrUnknownParticipant
	}
	if state.BodySegments == nil {
		state.BodySegments = []BodySegment{}
	}
	sess.State = state
	sess.Reported = true
	return nil
}

// Remove deletes the session. It reports whether a session was removed.
func (r *Registry) Remove(id int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return false
	}
	delete(r.sessions, id)
	return true
}

// SnapshotExcluding returns the latest state of every other participant that
// has reported at least once, ordered by identifier. Body slices are shared
// with the registry; UpdateState replaces them wholesale, never in place.
func (r *Registry) SnapshotExcluding(id int) []PlayerState {
	r.mu.RLock()
	defer r.mu.RUnlock()

	states := make([]PlayerState, 0, len(r.sessions))
	for _, sess := range r.sortedLocked() {
		if sess.ID == id || !sess.Reported {
			continue
		}
		states = append(states, sess.State)
	}
	return states
}

// ForEachConnection calls fn for every open connection. fn runs outside the
// lock, so it may send or call back into the registry.
func (r *Registry) ForEachConnection(fn func(id int, conn Sender)) {
	r.mu.RLock()
	sessions := r.sortedLocked()
	r.mu.RUnlock()

	for _, sess := range sessions {
		fn(sess.ID, sess.Conn)
	}
}

// Len returns the number of registered participants
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) sortedLocked() []Session {
	list := make([]Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		list = append(list, *sess)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}
