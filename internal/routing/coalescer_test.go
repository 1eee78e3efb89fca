package routing

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestCoalescerSingleTriggerFiresAfterQuietWindow(t *testing.T) {
	var fires int32
	var firedAt atomic.Int64
	c := newCoalescer(30*time.Millisecond, 500*time.Millisecond, func() {
		firedAt.Store(time.Now().UnixNano())
		atomic.AddInt32(&fires, 1)
	})
	defer c.close()

	start := time.Now()
	c.trigger()
	time.Sleep(150 * time.Millisecond)
	if got := atomic.LoadInt32(&fires); got != 1 {
		t.Fatalf("expected exactly 1 fire, got %d", got)
	}
	if elapsed := time.Duration(firedAt.Load() - start.UnixNano()); elapsed < 30*time.Millisecond {
		t.Errorf("fired before the quiet window elapsed: %v", elapsed)
	}
}

func TestCoalescerBurstCollapsesToOneFire(t *testing.T) {
	var fires int32
	quiet := 40 * time.Millisecond
	max := 500 * time.Millisecond
	c := newCoalescer(quiet, max, func() {
		atomic.AddInt32(&fires, 1)
	})
	defer c.close()

	start := time.Now()
	for i := 0; i < 20; i++ {
		c.trigger()
		time.Sleep(5 * time.Millisecond)
	}
	// Let the quiet window settle after the last trigger.
	time.Sleep(200 * time.Millisecond)
	elapsed := time.Since(start)

	if got := atomic.LoadInt32(&fires); got != 1 {
		t.Fatalf("burst of 20 triggers must collapse to exactly 1 fire, got %d (elapsed %v)", got, elapsed)
	}
}

func TestCoalescerHardCapBoundsContinuousChurn(t *testing.T) {
	var fires int32
	quiet := 20 * time.Millisecond
	max := 100 * time.Millisecond
	c := newCoalescer(quiet, max, func() {
		atomic.AddInt32(&fires, 1)
	})
	defer c.close()

	stop := time.Now().Add(350 * time.Millisecond)
	for time.Now().Before(stop) {
		c.trigger()
		time.Sleep(5 * time.Millisecond) // always < quiet, so quiet alone never settles
	}
	time.Sleep(150 * time.Millisecond) // let the final burst settle

	got := atomic.LoadInt32(&fires)
	if got < 2 {
		t.Errorf("continuous churn longer than W must fire more than once via the hard cap, got %d", got)
	}
}

func TestCoalescerSinkNotInvokedAfterClose(t *testing.T) {
	var fires int32
	c := newCoalescer(500*time.Millisecond, 2*time.Second, func() {
		atomic.AddInt32(&fires, 1)
	})
	c.trigger()
	c.close()
	time.Sleep(700 * time.Millisecond)
	if got := atomic.LoadInt32(&fires); got != 0 {
		t.Errorf("sink must not fire for a burst cancelled by close, got %d fires", got)
	}
}
