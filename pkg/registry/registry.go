package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/marmos91/dittonet/pkg/session"
)

// ErrClosed is returned by Add after Close.
var ErrClosed = errors.New("registry: closed")

// Registry holds the sessions admitted by a server, keyed by a unique id.
//
// Ids start at 1 and increase strictly; they are never reused within one
// registry, even after the session they named is removed. Id assignment and
// insertion happen in the same critical section, so concurrent Adds always
// observe distinct ids.
//
// Example usage:
//
//	reg := registry.New()
//	id, _ := reg.Add(sess)
//	sess, ok := reg.Get(id)
//	reg.Remove(id)
type Registry struct {
	mu       sync.RWMutex
	sessions map[int64]*session.Session
	lastID   int64
	closed   bool
}

// Info is a point-in-time description of a registered session.
type Info struct {
	ID      int64     `json:"id"`
	TraceID string    `json:"trace_id"`
	Remote  string    `json:"remote"`
	Since   time.Time `json:"since"`
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		sessions: make(map[int64]*session.Session),
	}
}

// Add assigns the next id to s, stores it and returns the id.
func (r *Registry) Add(s *session.Session) (int64, error) {
	if s == nil {
		return 0, fmt.Errorf("cannot register nil session")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return 0, ErrClosed
	}

	r.lastID++
	id := r.lastID
	s.SetID(id)
	r.sessions[id] = s
	return id, nil
}

// Remove deletes the session with the given id. It reports whether an entry
// was removed.
func (r *Registry) Remove(id int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return false
	}
	delete(r.sessions, id)
	return true
}

// Get returns the session registered under id.
func (r *Registry) Get(id int64) (*session.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	return s, ok
}

// Count returns the number of registered sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// LastID returns the most recently assigned id, or 0 if none was assigned.
func (r *Registry) LastID() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastID
}

// IDs returns the registered ids in ascending order.
func (r *Registry) IDs() []int64 {
	r.mu.RLock()
	ids := make([]int64, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Range calls fn for each session in ascending id order until fn returns
// false. It iterates over a snapshot, so fn may call back into the registry.
func (r *Registry) Range(fn func(id int64, s *session.Session) bool) {
	for _, e := range r.entries() {
		if !fn(e.id, e.session) {
			return
		}
	}
}

// Snapshot describes every registered session in ascending id order.
func (r *Registry) Snapshot() []Info {
	entries := r.entries()
	infos := make([]Info, 0, len(entries))
	for _, e := range entries {
		info := Info{
			ID:      e.id,
			TraceID: e.session.TraceID().String(),
			Since:   e.session.Created(),
		}
		if addr := e.session.RemoteAddr(); addr != nil {
			info.Remote = addr.String()
		}
		infos = append(infos, info)
	}
	return infos
}

// Clear removes every entry without closing the sessions.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.sessions)
}

// Close disposes the registry: it refuses further Adds, empties itself and
// closes every session it held. It returns the number of sessions closed.
func (r *Registry) Close() int {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return 0
	}
	r.closed = true
	sessions := make([]*session.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	clear(r.sessions)
	r.mu.Unlock()

	// Close hooks call Remove, so sessions are closed outside the lock.
	for _, s := range sessions {
		_ = s.Close()
	}
	return len(sessions)
}

// Closed reports whether Close has been called.
func (r *Registry) Closed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.closed
}

type entry struct {
	id      int64
	session *session.Session
}

func (r *Registry) entries() []entry {
	r.mu.RLock()
	entries := make([]entry, 0, len(r.sessions))
	for id, s := range r.sessions {
		entries = append(entries, entry{id: id, session: s})
	}
	r.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].id < entries[j].id })
	return entries
}
