package routing

import (
	"sync/atomic"
	"testing"
)

func TestCallbackRegistryDispatchInvokesAllRegistered(t *testing.T) {
	r := newCallbackRegistry()
	var a, b int32
	r.register(func(Event) { atomic.AddInt32(&a, 1) })
	r.register(func(Event) { atomic.AddInt32(&b, 1) })

	r.dispatch(Event{Kind: EventUpdated})

	if atomic.LoadInt32(&a) != 1 || atomic.LoadInt32(&b) != 1 {
		t.Errorf("expected both callbacks invoked once, got a=%d b=%d", a, b)
	}
}

func TestHandleCloseRemovesCallback(t *testing.T) {
	r := newCallbackRegistry()
	var fired int32
	id := r.register(func(Event) { atomic.AddInt32(&fired, 1) })
	h := newHandle(id, r)

	h.Close()
	r.dispatch(Event{Kind: EventUpdated})

	if atomic.LoadInt32(&fired) != 0 {
		t.Error("callback must not fire after its handle is closed")
	}
}

func TestHandleDoubleCloseIsNoOpWarning(t *testing.T) {
	r := newCallbackRegistry()
	var warnings int
	r.onWarn = func(format string, args ...any) { warnings++ }

	id := r.register(func(Event) {})
	h := newHandle(id, r)

	h.Close()
	h.Close() // must not panic or double-warn via the registry (guarded by sync.Once)
	h.Close()

	if warnings != 0 {
		t.Errorf("Handle.Close is guarded by sync.Once: repeated closes on the same handle must never reach the registry, got %d warnings", warnings)
	}
}

func TestRegistryRemoveAbsentWarns(t *testing.T) {
	r := newCallbackRegistry()
	var warnings int
	r.onWarn = func(format string, args ...any) { warnings++ }

	if r.remove(999) {
		t.Error("removing an absent id must report false")
	}
	if warnings != 1 {
		t.Errorf("expected exactly 1 warning for removing an absent entry, got %d", warnings)
	}
}

func TestCallbackRegistryIdsAreMonotonic(t *testing.T) {
	r := newCallbackRegistry()
	id1 := r.register(func(Event) {})
	id2 := r.register(func(Event) {})
	if id2 <= id1 {
		t.Errorf("expected monotonically increasing ids, got %d then %d", id1, id2)
	}
}
