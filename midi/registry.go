package midi

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go-midiclock/debug"
)

type entry struct {
	id  string
	out Output
}

// Registry holds the opened outputs keyed by device identity.
//
// Appends take the lock unconditionally; broadcasts only try it and give up
// when it is held. Entries are never removed or replaced, so a broadcast that
// gets the lock always sees a consistent, append-ordered view.
type Registry struct {
	mu      sync.Mutex
	entries []entry
	index   map[string]struct{}

	// published after every append for lock-free observers
	ids atomic.Pointer[[]string]
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	r := &Registry{
		index: make(map[string]struct{}),
	}
	r.ids.Store(&[]string{})
	return r
}

// TryBroadcast sends msg to every registered output, in append order.
// It never blocks: if the lock is held it returns false and nothing is sent.
// Send errors on individual outputs do not stop the broadcast.
func (r *Registry) TryBroadcast(msg []byte) bool {
	if !r.mu.TryLock() {
		return false
	}
	defer r.mu.Unlock()

	for _, e := range r.entries {
		if err := e.out.Send(msg); err != nil {
			debug.LogEvery(100, "send", "%s to %s failed: %v", MessageName(msg), e.id, err)
		}
	}
	return true
}

// Append registers out under id. It blocks until the lock is free.
// Returns false, leaving the registry untouched, if id is already present;
// the caller keeps ownership of out in that case.
func (r *Registry) Append(id string, out Output) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.index[id]; ok {
		return false
	}
	r.entries = append(r.entries, entry{id: id, out: out})
	r.index[id] = struct{}{}

	ids := make([]string, len(r.entries))
	for i, e := range r.entries {
		ids[i] = e.id
	}
	r.ids.Store(&ids)
	return true
}

// Contains reports whether id has been appended
func (r *Registry) Contains(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.index[id]
	return ok
}

// Len returns the number of registered outputs without touching the lock
func (r *Registry) Len() int {
	return len(*r.ids.Load())
}

// IDs returns the registered identities in append order without touching
// the lock
func (r *Registry) IDs() []string {
	ids := *r.ids.Load()
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

// Close closes every output. The registry must not be used afterwards.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for _, e := range r.entries {
		if err := e.out.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %q: %w", e.id, err))
		}
	}
	r.entries = nil
	return errors.Join(errs...)
}
