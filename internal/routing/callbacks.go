package routing

import "sync"

// callbackRegistry maps a monotonically assigned handle id to a default-
// route-change callback. It is the sole means of deregistration: the
// Handle returned by register owns removing its own entry.
//
// Lock ordering discipline: callers that need both this registry and the
// managed-route store's mutex must always acquire this one first and
// release it before taking the store's, to avoid deadlock (§5).
type callbackRegistry struct {
	mu        sync.Mutex
	nextID    int32
	callbacks map[int32]Callback
	// onWarn, if set, is invoked when a removal targets an absent entry.
	// Left nil in tests; wired to the shared logger by the façade.
	onWarn func(format string, args ...any)
}

func newCallbackRegistry() *callbackRegistry {
	return &callbackRegistry{callbacks: make(map[int32]Callback)}
}

// register inserts cb under the next id (wrapping on signed overflow,
// matching the source's wrapping_add counter) and returns that id.
func (r *callbackRegistry) register(cb Callback) int32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	r.callbacks[id] = cb
	return id
}

// remove deletes the entry for id. Returns false if no such entry
// existed, which callers treat as a no-op warning rather than an error.
func (r *callbackRegistry) remove(id int32) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.callbacks[id]; !ok {
		if r.onWarn != nil {
			r.onWarn("callback handle %d already removed", id)
		}
		return false
	}
	delete(r.callbacks, id)
	return true
}

// dispatch invokes every registered callback with ev while holding the
// registry mutex, per §4.7: callbacks must be non-blocking and must not
// call back into the façade. dispatch returns only after every callback
// registered at call time has run, and releases the mutex before
// returning so callers can then safely take the store mutex.
func (r *callbackRegistry) dispatch(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cb := range r.callbacks {
		cb(ev)
	}
}

// Handle is returned by RegisterDefaultChange. Closing it removes the
// callback; closing it more than once is a safe no-op, matching the
// source's Drop-based single-removal guarantee.
type Handle struct {
	id   int32
	reg  *callbackRegistry
	once sync.Once
}

func newHandle(id int32, reg *callbackRegistry) *Handle {
	return &Handle{id: id, reg: reg}
}

// Close deregisters the callback. Safe to call more than once and from
// more than one goroutine.
func (h *Handle) Close() {
	h.once.Do(func() {
		h.reg.remove(h.id)
	})
}
