//go:build windows

package routing

import "math"

// pickDefault implements C2's pick_default(family) against the live OS
// state: snapshot the table, then run the pure selection logic with a
// real per-row interface lookup.
func pickDefault(family AddressFamily) (BestDefault, bool, error) {
	rows, err := snapshot(family)
	if err != nil {
		return BestDefault{}, false, err
	}
	lookup := func(id InterfaceId) (interfaceMetric, error) {
		info, err := getIPInterfaceEntry(family, id)
		if err != nil {
			return interfaceMetric{}, err
		}
		return interfaceMetric{connected: info.connected, metric: info.metric}, nil
	}
	best, ok := pickDefaultFromRows(rows, lookup)
	return best, ok, nil
}

// mtuForInterface resolves the MTU of a specific interface, clamped to
// 16 bits per §7's MtuUnavailable definition.
func mtuForInterface(family AddressFamily, id InterfaceId) (uint16, error) {
	info, err := getIPInterfaceEntry(family, id)
	if err != nil {
		return 0, newErr(MtuUnavailable, "mtuForInterface", err)
	}
	if info.mtu > math.MaxUint16 {
		return 0, newErr(MtuUnavailable, "mtuForInterface", nil)
	}
	return uint16(info.mtu), nil
}
