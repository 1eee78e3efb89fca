package routing

import (
	"sync"
	"time"
)

const (
	// DefaultQuietWindow is the default debounce window Q (§4.4).
	DefaultQuietWindow = 200 * time.Millisecond
	// DefaultMaxWait is the default hard cap W (§4.4).
	DefaultMaxWait = 2 * time.Second
)

// coalescer wraps a sink function so that bursts of Trigger calls
// collapse into a single sink invocation: the sink fires Q after the
// last trigger of a burst, or W after the first trigger of the burst,
// whichever comes first. The sink is never invoked concurrently with
// itself, even across bursts.
type coalescer struct {
	quiet, max time.Duration
	sink       func()

	triggerCh chan struct{}
	done      chan struct{}
	wg        sync.WaitGroup
}

// newCoalescer starts the coalescer's worker goroutine immediately.
func newCoalescer(quiet, max time.Duration, sink func()) *coalescer {
	c := &coalescer{
		quiet:     quiet,
		max:       max,
		sink:      sink,
		triggerCh: make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	c.wg.Add(1)
	go c.run()
	return c
}

// trigger is non-blocking: it never waits on the worker.
func (c *coalescer) trigger() {
	select {
	case c.triggerCh <- struct{}{}:
	default:
	}
}

// close cancels the worker. If close races a burst in progress, the
// worker observes the closed done channel and exits without invoking the
// sink for that burst.
func (c *coalescer) close() {
	close(c.done)
	c.wg.Wait()
}

func (c *coalescer) run() {
	defer c.wg.Done()
	for {
		select {
		case <-c.done:
			return
		case <-c.triggerCh:
			if !c.waitBurst() {
				return
			}
		}
	}
}

// waitBurst blocks until the current burst settles (quiet window
// elapsed) or hits the hard cap, then invokes the sink once. Returns
// false if cancelled mid-burst.
func (c *coalescer) waitBurst() bool {
	quietTimer := time.NewTimer(c.quiet)
	maxTimer := time.NewTimer(c.max)
	defer quietTimer.Stop()
	defer maxTimer.Stop()

	for {
		select {
		case <-c.done:
			return false
		case <-c.triggerCh:
			if !quietTimer.Stop() {
				select {
				case <-quietTimer.C:
				default:
				}
			}
			quietTimer.Reset(c.quiet)
		case <-quietTimer.C:
			c.sink()
			return true
		case <-maxTimer.C:
			c.sink()
			return true
		}
	}
}
