package session

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"
	"time"
)

// ErrStreamExists is returned when registering a stream id that already has a
// live session. The live session is left untouched.
var ErrStreamExists = errors.New("stream already active")

// ErrEmptyID is returned when registering an empty stream id.
var ErrEmptyID = errors.New("stream id is required")

// State describes a live session.
type State struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"started_at"`
}

type entry struct {
	state  State
	cancel context.CancelFunc
}

// Registry maps stream ids to the cancellation handles of their live
// sessions. All methods are safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
	now     func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

// Register records a live session. It fails with ErrStreamExists when id is
// already registered.
func (r *Registry) Register(id string, cancel context.CancelFunc) error {
	if id == "" {
		return ErrEmptyID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[id]; ok {
		return ErrStreamExists
	}

	r.entries[id] = &entry{
		state:  State{ID: id, StartedAt: r.now().UTC()},
		cancel: cancel,
	}
	return nil
}

// Cancel signals cancellation to the session registered under id and reports
// whether one was found. Cancelling an unknown id is a no-op.
//
// The entry stays registered until the session removes itself.
func (r *Registry) Cancel(id string) bool {
	r.mu.Lock()
	e, ok := r.entries[id]
	r.mu.Unlock()

	if !ok {
		return false
	}
	if e.cancel != nil {
		e.cancel()
	}
	return true
}

// CancelAll signals cancellation to every live session.
func (r *Registry) CancelAll() {
	r.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(r.entries))
	for _, e := range r.entries {
		if e.cancel != nil {
			cancels = append(cancels, e.cancel)
		}
	}
	r.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

// Remove forgets id. It is idempotent.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, id)
}

// Has reports whether id has a live session.
func (r *Registry) Has(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[id]
	return ok
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Active returns a snapshot of the live sessions, oldest first.
func (r *Registry) Active() []State {
	r.mu.Lock()
	states := make([]State, 0, len(r.entries))
	for _, e := range r.entries {
		states = append(states, e.state)
	}
	r.mu.Unlock()

	slices.SortFunc(states, func(a, b State) int {
		if c := a.StartedAt.Compare(b.StartedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return states
}

