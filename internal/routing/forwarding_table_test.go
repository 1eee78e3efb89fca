package routing

import (
	"net/netip"
	"testing"
)

func mkRow(bits int, nextHop string, descr string, kind InterfaceKind) Row {
	return Row{
		Prefix:      Prefix{Addr: netip.IPv4Unspecified(), Bits: bits, Family: FamilyV4},
		NextHop:     netip.MustParseAddr(nextHop),
		Description: descr,
		Kind:        kind,
	}
}

func TestRowHasGateway(t *testing.T) {
	onLink := mkRow(0, "0.0.0.0", "", InterfaceKindOther)
	if onLink.HasGateway() {
		t.Error("row with unspecified next-hop must not report HasGateway")
	}
	viaGW := mkRow(0, "10.0.0.1", "", InterfaceKindOther)
	if !viaGW.HasGateway() {
		t.Error("row with real next-hop must report HasGateway")
	}
}

func TestRowOnPhysicalInterface(t *testing.T) {
	cases := []struct {
		name string
		row  Row
		want bool
	}{
		{"loopback excluded", mkRow(0, "10.0.0.1", "", InterfaceKindLoopback), false},
		{"tunnel kind excluded", mkRow(0, "10.0.0.1", "", InterfaceKindTunnel), false},
		{"wireguard description excluded", mkRow(0, "10.0.0.1", "WireGuard Tunnel", InterfaceKindOther), false},
		{"wintun description excluded", mkRow(0, "10.0.0.1", "Wintun Userspace Tunnel", InterfaceKindOther), false},
		{"physical nic kept", mkRow(0, "10.0.0.1", "Intel(R) Ethernet Connection", InterfaceKindOther), true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.row.OnPhysicalInterface(); got != c.want {
				t.Errorf("OnPhysicalInterface() = %v, want %v", got, c.want)
			}
		})
	}
}

func TestOnPhysicalInterfaceCaseSensitive(t *testing.T) {
	row := mkRow(0, "10.0.0.1", "wireguard lowercase", InterfaceKindOther)
	if !row.OnPhysicalInterface() {
		t.Error("the substring test is documented case-sensitive: lowercase 'wireguard' must not match 'WireGuard' and thus must be kept")
	}
}

func TestFilterCandidateDefaultRows(t *testing.T) {
	rows := []Row{
		mkRow(0, "10.0.0.1", "Ethernet", InterfaceKindOther),      // keep
		mkRow(8, "10.0.0.1", "Ethernet", InterfaceKindOther),      // drop: not default
		mkRow(0, "0.0.0.0", "Ethernet", InterfaceKindOther),       // drop: no gateway
		mkRow(0, "10.0.0.1", "", InterfaceKindLoopback),           // drop: loopback
		mkRow(0, "10.0.0.1", "Wintun Adapter", InterfaceKindOther), // drop: tunnel description
	}
	got := filterCandidateDefaultRows(rows)
	if len(got) != 1 {
		t.Fatalf("expected 1 surviving row, got %d", len(got))
	}
}
