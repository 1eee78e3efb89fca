package routing

import "sync"

// monitorContext holds the per-monitor state §4.5 describes: the last
// known best default, the "force re-emit" flag, and the callback to
// invoke. It is pure evaluation logic; the real OS notification
// registration that feeds trigger() and updateRefreshFlag() lives in
// monitor_windows.go, which is why this type takes its OS-facing
// dependencies as injected functions.
type monitorContext struct {
	mu      sync.Mutex
	family  AddressFamily
	hasLast bool
	last    BestDefault
	refresh bool

	cb func(Event)

	// pickDefault re-runs §4.2 against the live OS state.
	pickDefault func() (BestDefault, bool)
	// resolveIndex maps an interface id to its current index, used only
	// by the wildcard branch of updateRefreshFlag.
	resolveIndex func(InterfaceId) (uint32, bool)
}

func newMonitorContext(family AddressFamily, cb func(Event), pickDefault func() (BestDefault, bool), resolveIndex func(InterfaceId) (uint32, bool)) *monitorContext {
	return &monitorContext{
		family:       family,
		cb:           cb,
		pickDefault:  pickDefault,
		resolveIndex: resolveIndex,
	}
}

// updateRefreshFlag implements §4.5's update_refresh_flag: set the
// force-re-emit flag if the event's interface matches the current best,
// or — for the wildcard interface id 0 — if its index matches the best's
// resolved index. Index resolution failure sets the flag defensively,
// since a stale "no change" read is worse than one spurious evaluate().
func (c *monitorContext) updateRefreshFlag(ifLUID uint64, ifIndex uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.hasLast {
		return
	}
	if uint64(c.last.InterfaceId) == ifLUID {
		c.refresh = true
		return
	}
	if ifLUID == 0 {
		idx, ok := c.resolveIndex(c.last.InterfaceId)
		if !ok || idx == ifIndex {
			c.refresh = true
		}
	}
}

// evaluate implements §4.5's evaluate(): snapshot-and-clear the flag,
// recompute the best default, and emit at most one event reflecting the
// transition from the prior state.
func (c *monitorContext) evaluate() {
	c.mu.Lock()
	flagWasSet := c.refresh
	c.refresh = false
	hadLast := c.hasLast
	last := c.last
	c.mu.Unlock()

	current, ok := c.pickDefault()

	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case !hadLast && !ok:
		// no event
	case !hadLast && ok:
		c.hasLast, c.last = true, current
		c.cb(Event{Kind: EventUpdated, Family: c.family, Best: current})
	case hadLast && !ok:
		c.hasLast, c.last = false, BestDefault{}
		c.cb(Event{Kind: EventRemoved, Family: c.family})
	case hadLast && ok && current != last:
		c.last = current
		c.cb(Event{Kind: EventUpdated, Family: c.family, Best: current})
	default: // hadLast && ok && current == last
		if flagWasSet {
			c.cb(Event{Kind: EventUpdatedDetails, Family: c.family, Best: current})
		}
	}
}
