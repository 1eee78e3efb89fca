//go:build windows

package routing

import (
	"net/netip"
	"sync/atomic"
	"time"

	"awg-split-tunnel/internal/core"
)

// Option configures a Manager at construction time.
type Option func(*managerConfig)

type managerConfig struct {
	quiet, max time.Duration
	logger     *core.Logger
	logTag     string
}

func defaultManagerConfig() managerConfig {
	return managerConfig{
		quiet:  DefaultQuietWindow,
		max:    DefaultMaxWait,
		logger: core.Log,
		logTag: "Route",
	}
}

// WithCoalesceWindow overrides the burst coalescer's quiet window and hard
// cap (§4.5), used by tests and by callers tuning for a noisier adapter.
func WithCoalesceWindow(quiet, max time.Duration) Option {
	return func(c *managerConfig) { c.quiet, c.max = quiet, max }
}

// WithLogger overrides the logger the manager tags its diagnostics with.
func WithLogger(l *core.Logger) Option {
	return func(c *managerConfig) { c.logger = l }
}

// Manager is C7: the façade combining the managed-route store, the
// default-route callback registry, and one monitor per address family.
type Manager struct {
	cfg managerConfig

	store    *Store
	registry *callbackRegistry

	monitorV4 *DefaultRouteMonitor
	monitorV6 *DefaultRouteMonitor

	closed atomic.Bool
}

// NewManager constructs the route manager core, starting both family
// monitors. Their initial best-default read happens before this returns.
func NewManager(opts ...Option) (*Manager, error) {
	cfg := defaultManagerConfig()
	for _, o := range opts {
		o(&cfg)
	}

	store := newStore(osTableWriter{}, osNodeResolver{})
	store.onWarn = func(format string, args ...any) { cfg.logger.Warnf(cfg.logTag, format, args...) }
	store.onError = func(format string, args ...any) { cfg.logger.Errorf(cfg.logTag, format, args...) }

	registry := newCallbackRegistry()
	registry.onWarn = func(format string, args ...any) { cfg.logger.Warnf(cfg.logTag, format, args...) }

	m := &Manager{cfg: cfg, store: store, registry: registry}

	// onDefaultEvent implements §4.7's ordering: dispatch to subscribers
	// first, then re-bind Default-node records — never holding the
	// registry and store mutexes at once, since dispatch fully releases
	// its lock before Rebind takes the store's.
	onDefaultEvent := func(ev Event) {
		registry.dispatch(ev)
		if ev.Kind == EventUpdated {
			store.Rebind(ev.Family, ev.Best)
		}
	}

	v4, err := NewDefaultRouteMonitor(FamilyV4, cfg.quiet, cfg.max, onDefaultEvent)
	if err != nil {
		return nil, err
	}
	v6, err := NewDefaultRouteMonitor(FamilyV6, cfg.quiet, cfg.max, onDefaultEvent)
	if err != nil {
		v4.Close()
		return nil, err
	}
	m.monitorV4, m.monitorV6 = v4, v6

	cfg.logger.Infof(cfg.logTag, "route manager started")
	return m, nil
}

func (m *Manager) checkOpen(op string) error {
	if m.closed.Load() {
		return newErr(HandleExpired, op, nil)
	}
	return nil
}

// Apply installs a batch of route specs transactionally.
func (m *Manager) Apply(specs []RouteSpec) error {
	if err := m.checkOpen("Apply"); err != nil {
		return err
	}
	return m.store.Apply(specs)
}

// Remove transactionally deletes the records matching specs.
func (m *Manager) Remove(specs []RouteSpec) error {
	if err := m.checkOpen("Remove"); err != nil {
		return err
	}
	return m.store.Remove(specs)
}

// Clear removes every managed route on a best-effort basis.
func (m *Manager) Clear() error {
	if err := m.checkOpen("Clear"); err != nil {
		return err
	}
	m.store.Clear()
	return nil
}

// Records returns a snapshot of the currently managed routes.
func (m *Manager) Records() []RouteRecord {
	return m.store.Records()
}

// RegisterDefaultChange subscribes cb to default-route change events for
// both families. Closing the returned Handle unsubscribes it.
func (m *Manager) RegisterDefaultChange(cb Callback) (*Handle, error) {
	if err := m.checkOpen("RegisterDefaultChange"); err != nil {
		return nil, err
	}
	id := m.registry.register(cb)
	return newHandle(id, m.registry), nil
}

// MTUForRoute reports the MTU of the interface currently carrying the
// default route for ip's address family, a supplemented operation
// (original_source's NIC MTU query) callers use to size tunnel MTU.
func (m *Manager) MTUForRoute(ip netip.Addr) (uint16, error) {
	if err := m.checkOpen("MTUForRoute"); err != nil {
		return 0, err
	}
	family, err := FamilyOf(ip)
	if err != nil {
		return 0, err
	}
	best, ok, err := pickDefault(family)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, newErr(NoDefaultRoute, "MTUForRoute", nil)
	}
	return mtuForInterface(family, best.InterfaceId)
}

// CurrentDefault recomputes and returns the current best default route for
// family directly from the OS, independent of what the monitor last saw.
func (m *Manager) CurrentDefault(family AddressFamily) (BestDefault, bool, error) {
	if err := m.checkOpen("CurrentDefault"); err != nil {
		return BestDefault{}, false, err
	}
	return pickDefault(family)
}

// InterfaceIndexFor resolves an interface's current index from its LUID.
func (m *Manager) InterfaceIndexFor(id InterfaceId) (uint32, bool) {
	return convertInterfaceLuidToIndex(id)
}

// Close implements §4.5/§4.7's shutdown ordering: cancel both monitors
// first (so no further evaluate()/Rebind() can start), then clear the
// store. Safe to call more than once.
func (m *Manager) Close() {
	if !m.closed.CompareAndSwap(false, true) {
		return
	}
	m.monitorV4.Close()
	m.monitorV6.Close()
	m.store.Clear()
	m.cfg.logger.Infof(m.cfg.logTag, "route manager stopped")
}

// RouteManagerHandle is a handle to a Manager that degrades gracefully
// once the Manager is closed, instead of operating on torn-down state.
// It plays the role original_source's Weak<Mutex<RouteManagerInner>>
// handle does, expressed with an atomic closed flag rather than a
// separate weak pointer: Go's garbage collector already keeps the
// Manager alive as long as this handle references it, so the only thing
// worth guarding against is use-after-close, not use-after-free.
type RouteManagerHandle struct {
	mgr *Manager
}

// Handle returns a RouteManagerHandle over m.
func (m *Manager) Handle() RouteManagerHandle { return RouteManagerHandle{mgr: m} }

func (h RouteManagerHandle) Apply(specs []RouteSpec) error { return h.mgr.Apply(specs) }
func (h RouteManagerHandle) Remove(specs []RouteSpec) error { return h.mgr.Remove(specs) }
func (h RouteManagerHandle) Clear() error                   { return h.mgr.Clear() }
func (h RouteManagerHandle) Records() []RouteRecord         { return h.mgr.Records() }
func (h RouteManagerHandle) RegisterDefaultChange(cb Callback) (*Handle, error) {
	return h.mgr.RegisterDefaultChange(cb)
}
func (h RouteManagerHandle) MTUForRoute(ip netip.Addr) (uint16, error) {
	return h.mgr.MTUForRoute(ip)
}
