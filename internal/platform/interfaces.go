package platform

import "net/netip"

// RealNIC holds information about the system's real internet-facing NIC.
type RealNIC struct {
	LUID    uint64
	Index   uint32
	Gateway netip.Addr
	LocalIP netip.Addr // NIC's own IPv4 address
}

// RouteManager abstracts system routing table management.
type RouteManager interface {
	// DiscoverRealNIC finds the current default gateway (non-TUN) NIC.
	DiscoverRealNIC() (RealNIC, error)
	// RealNICInfo returns the previously discovered real NIC info.
	RealNICInfo() RealNIC
	// SetDefaultRoute adds default routes (0/1 + 128/1) through the TUN adapter.
	SetDefaultRoute() error
	// AddBypassRoute adds a host route for a VPN server through the real NIC.
	AddBypassRoute(dst netip.Addr) error
	// Cleanup removes all routes added by this manager.
	Cleanup() error
}
