package routing

import (
	"errors"
	"net/netip"
	"testing"
)

func TestFindInterfaceForGatewayFromAdapters(t *testing.T) {
	gw := netip.MustParseAddr("10.0.0.1")
	adapters := []AdapterInfo{
		{InterfaceId: 1, FamilyEnabled: true, Gateways: []netip.Addr{netip.MustParseAddr("192.168.1.1")}, Metric: 5},
		{InterfaceId: 2, FamilyEnabled: true, Gateways: []netip.Addr{gw}, Metric: 25},
		{InterfaceId: 3, FamilyEnabled: true, Gateways: []netip.Addr{gw}, Metric: 10},
		{InterfaceId: 4, FamilyEnabled: false, Gateways: []netip.Addr{gw}, Metric: 1},
	}
	got, err := findInterfaceForGatewayFromAdapters(adapters, gw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 3 {
		t.Errorf("expected lowest-metric matching adapter (3), got %d", got)
	}
}

func TestFindInterfaceForGatewayNotFound(t *testing.T) {
	adapters := []AdapterInfo{
		{InterfaceId: 1, FamilyEnabled: true, Gateways: []netip.Addr{netip.MustParseAddr("192.168.1.1")}},
	}
	_, err := findInterfaceForGatewayFromAdapters(adapters, netip.MustParseAddr("10.0.0.1"))
	var re *RouteError
	if !errors.As(err, &re) || re.Kind != DeviceGatewayNotFound {
		t.Fatalf("expected DeviceGatewayNotFound, got %v", err)
	}
}

func TestFindInterfaceForGatewayDisabledFamilySkipped(t *testing.T) {
	gw := netip.MustParseAddr("fe80::1")
	adapters := []AdapterInfo{
		{InterfaceId: 9, FamilyEnabled: false, Gateways: []netip.Addr{gw}},
	}
	_, err := findInterfaceForGatewayFromAdapters(adapters, gw)
	if err == nil {
		t.Fatal("expected error: only matching adapter has the family disabled")
	}
}
