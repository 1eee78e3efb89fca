//go:build windows

package gateway

import (
	"fmt"
	"net"
	"net/netip"
	"sync"

	"awg-split-tunnel/internal/core"
	"awg-split-tunnel/internal/platform"
	"awg-split-tunnel/internal/routing"
)

// RouteManager manages system routing table entries for the TUN gateway,
// built on the routing package's transactional route manager core. It
// implements platform.RouteManager.
type RouteManager struct {
	tunLUID uint64

	mu      sync.Mutex
	mgr     *routing.Manager
	realNIC platform.RealNIC
}

// NewRouteManager creates a route manager for the given TUN adapter. Failure
// to start the underlying route manager core is logged rather than
// propagated, matching this constructor's existing no-error signature.
// If that happened, DiscoverRealNIC, SetDefaultRoute and AddBypassRoute
// return an error and Cleanup does nothing.
func NewRouteManager(tunLUID uint64) *RouteManager {
	mgr, err := routing.NewManager()
	if err != nil {
		core.Log.Errorf("Route", "failed to start route manager: %v", err)
		mgr = nil
	}
	return &RouteManager{tunLUID: tunLUID, mgr: mgr}
}

// DiscoverRealNIC finds the current default gateway (non-TUN) NIC. The TUN
// adapter is never a candidate: its WinTUN description excludes it from
// default-route selection. Must be called before SetDefaultRoute.
func (rm *RouteManager) DiscoverRealNIC() (platform.RealNIC, error) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.mgr == nil {
		return platform.RealNIC{}, fmt.Errorf("[Route] route manager unavailable")
	}

	best, ok, err := rm.mgr.CurrentDefault(routing.FamilyV4)
	if err != nil {
		return platform.RealNIC{}, fmt.Errorf("[Route] discover real NIC: %w", err)
	}
	if !ok {
		return platform.RealNIC{}, fmt.Errorf("[Route] no default gateway found")
	}

	index, _ := rm.mgr.InterfaceIndexFor(best.InterfaceId)
	nic := platform.RealNIC{
		LUID:    uint64(best.InterfaceId),
		Index:   index,
		Gateway: best.Gateway,
		LocalIP: localIPv4ForIndex(index),
	}
	rm.realNIC = nic

	core.Log.Infof("Route", "Real NIC: LUID=0x%x Index=%d Gateway=%s LocalIP=%s", nic.LUID, nic.Index, nic.Gateway, nic.LocalIP)
	return nic, nil
}

// RealNICInfo returns the discovered real NIC information.
func (rm *RouteManager) RealNICInfo() platform.RealNIC {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.realNIC
}

// SetDefaultRoute adds split default routes (0.0.0.0/1 + 128.0.0.0/1) via
// TUN. This captures all traffic without replacing the actual 0.0.0.0/0
// entry. Both halves name the TUN interface by its encoded LUID, so they
// stay on the TUN adapter and are not re-bound when the best default
// route changes.
func (rm *RouteManager) SetDefaultRoute() error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.mgr == nil {
		return fmt.Errorf("[Route] route manager unavailable")
	}

	tun := routing.NamedNode(routing.EncodeLUIDString(routing.InterfaceId(rm.tunLUID)))
	specs := []routing.RouteSpec{
		{Prefix: routing.Prefix{Addr: netip.MustParseAddr("0.0.0.0"), Bits: 1, Family: routing.FamilyV4}, Node: tun},
		{Prefix: routing.Prefix{Addr: netip.MustParseAddr("128.0.0.0"), Bits: 1, Family: routing.FamilyV4}, Node: tun},
	}
	if err := rm.mgr.Apply(specs); err != nil {
		return fmt.Errorf("[Route] set default routes: %w", err)
	}

	core.Log.Infof("Route", "Default routes set via TUN")
	return nil
}

// AddBypassRoute adds a specific host route via the real NIC. Used for VPN
// server endpoints to avoid routing loops.
func (rm *RouteManager) AddBypassRoute(dst netip.Addr) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.mgr == nil {
		return fmt.Errorf("[Route] route manager unavailable")
	}

	node := routing.NamedNode(routing.EncodeLUIDString(routing.InterfaceId(rm.realNIC.LUID)), rm.realNIC.Gateway)
	spec := routing.RouteSpec{Prefix: routing.Prefix{Addr: dst, Bits: 32, Family: routing.FamilyV4}, Node: node}
	if err := rm.mgr.Apply([]routing.RouteSpec{spec}); err != nil {
		return fmt.Errorf("[Route] bypass %s: %w", dst, err)
	}

	core.Log.Infof("Route", "Added bypass route: %s via real NIC", dst)
	return nil
}

// Cleanup removes all routes added by this manager and stops its default-
// route monitors, restoring the original routing table.
func (rm *RouteManager) Cleanup() error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.mgr == nil {
		return nil
	}
	rm.mgr.Close()
	core.Log.Infof("Route", "Cleanup completed")
	return nil
}

func localIPv4ForIndex(index uint32) netip.Addr {
	ifi, err := net.InterfaceByIndex(int(index))
	if err != nil {
		return netip.Addr{}
	}
	addrs, err := ifi.Addrs()
	if err != nil {
		return netip.Addr{}
	}
	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		if ip4 := ipNet.IP.To4(); ip4 != nil {
			if addr, ok := netip.AddrFromSlice(ip4); ok {
				return addr
			}
		}
	}
	return netip.Addr{}
}
