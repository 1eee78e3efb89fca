package routing

import "net/netip"

// AdapterInfo is the caller-owned projection of one OS adapter entry,
// copied out of the OS enumeration buffer before it is freed.
type AdapterInfo struct {
	InterfaceId   InterfaceId
	IfIndex       uint32
	Description   string
	Kind          InterfaceKind
	FamilyEnabled bool
	Gateways      []netip.Addr
	Metric        uint32
}

// adapterHasGateway reports whether any of a's gateways equals gw.
// Comparison is byte-exact for v6 and by value for v4; netip.Addr
// equality never matches addresses of different families, so no
// separate family check is needed.
func adapterHasGateway(a AdapterInfo, gw netip.Addr) bool {
	for _, g := range a.Gateways {
		if g == gw {
			return true
		}
	}
	return false
}

// findInterfaceForGatewayFromAdapters implements §4.3 steps 2-4 over an
// already-enumerated adapter list: keep adapters enabled for the
// gateway's family whose gateway list contains gw, then pick the one
// with the lowest interface metric.
func findInterfaceForGatewayFromAdapters(adapters []AdapterInfo, gw netip.Addr) (InterfaceId, error) {
	var best *AdapterInfo
	for i := range adapters {
		a := &adapters[i]
		if !a.FamilyEnabled {
			continue
		}
		if !adapterHasGateway(*a, gw) {
			continue
		}
		if best == nil || a.Metric < best.Metric {
			best = a
		}
	}
	if best == nil {
		return 0, newErr(DeviceGatewayNotFound, "findInterfaceForGateway", nil)
	}
	return best.InterfaceId, nil
}
