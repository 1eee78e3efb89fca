package routing

import "net/netip"

// InterfaceKind classifies the adapter backing a forwarding-table row,
// enough to tell physical interfaces apart from loopback and tunnel
// adapters.
type InterfaceKind int

const (
	InterfaceKindOther InterfaceKind = iota
	InterfaceKindLoopback
	InterfaceKindTunnel
)

// virtualDescriptionMarkers are substrings of an adapter's OS-reported
// description that mark it as a tunnel adapter this manager must not pick
// as a physical egress. The match is case-sensitive, mirroring the
// wide-character description the OS returns.
var virtualDescriptionMarkers = []string{"WireGuard", "Wintun", "Tunnel"}

// Row is one entry of a forwarding-table snapshot, copied out of
// OS-owned memory so it is safe to hold past the enumeration call.
type Row struct {
	Prefix      Prefix
	NextHop     netip.Addr
	InterfaceId InterfaceId
	IfIndex     uint32
	Metric      uint32
	// Description is the adapter's OS-reported description, used only
	// for the tunnel/loopback substring test; empty if not resolved.
	Description string
	Kind        InterfaceKind
	// Protocol and Origin are the OS's own tags for who wrote the row;
	// carried through for diagnostics, not used in selection.
	Protocol uint32
	Origin   uint32
}

// HasGateway reports whether row's next-hop is a real gateway rather than
// the family's unspecified ("on-link") address.
func (r Row) HasGateway() bool {
	return !isUnspecified(r.NextHop)
}

// OnPhysicalInterface reports whether row's adapter is neither loopback
// nor tunnel, by kind and by the teacher-grounded description substring
// test.
func (r Row) OnPhysicalInterface() bool {
	if r.Kind == InterfaceKindLoopback || r.Kind == InterfaceKindTunnel {
		return false
	}
	for _, marker := range virtualDescriptionMarkers {
		if containsCaseSensitive(r.Description, marker) {
			return false
		}
	}
	return true
}

func containsCaseSensitive(s, substr string) bool {
	if substr == "" {
		return true
	}
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

// filterCandidateDefaultRows keeps rows that are prefix-0, have a
// gateway, and sit on a physical interface — the first filtering stage
// of default-route selection (§4.2 step 2).
func filterCandidateDefaultRows(rows []Row) []Row {
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		if r.Prefix.IsDefault() && r.HasGateway() && r.OnPhysicalInterface() {
			out = append(out, r)
		}
	}
	return out
}
