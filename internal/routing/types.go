// Package routing implements the route manager core: default-route
// selection, change monitoring with burst coalescing, and a transactional
// managed-route store for the Windows IPv4/IPv6 forwarding tables.
package routing

import (
	"fmt"
	"net/netip"
)

// AddressFamily identifies IPv4 or IPv6.
type AddressFamily int

const (
	FamilyV4 AddressFamily = iota
	FamilyV6
)

func (f AddressFamily) String() string {
	switch f {
	case FamilyV4:
		return "v4"
	case FamilyV6:
		return "v6"
	default:
		return "unknown"
	}
}

// FamilyOf returns the address family of addr, or an error if addr is
// invalid or neither v4 nor v6.
func FamilyOf(addr netip.Addr) (AddressFamily, error) {
	switch {
	case addr.Is4() || addr.Is4In6():
		return FamilyV4, nil
	case addr.Is6():
		return FamilyV6, nil
	default:
		return 0, &RouteError{Kind: InvalidAddressFamily, Op: "FamilyOf", Err: fmt.Errorf("address %v has no valid family", addr)}
	}
}

// InterfaceId is the OS-assigned locally-unique interface identifier
// (LUID). It is stable across adapter renames and index changes.
type InterfaceId uint64

// Prefix is a network address plus prefix length, tagged with a family.
// The default route is represented by Bits == 0.
type Prefix struct {
	Addr   netip.Addr
	Bits   int
	Family AddressFamily
}

// IsDefault reports whether p is the 0/0 default route for its family.
func (p Prefix) IsDefault() bool { return p.Bits == 0 }

func (p Prefix) String() string {
	return fmt.Sprintf("%s/%d", p.Addr, p.Bits)
}

// unspecifiedFor returns the unspecified ("on-link") address for family f.
func unspecifiedFor(f AddressFamily) netip.Addr {
	if f == FamilyV6 {
		return netip.IPv6Unspecified()
	}
	return netip.IPv4Unspecified()
}

// isUnspecified reports whether addr is the family's unspecified address,
// meaning "on-link" when used as a gateway.
func isUnspecified(addr netip.Addr) bool {
	return !addr.IsValid() || addr.IsUnspecified()
}

// NodeSpec describes how a caller names the egress of a route.
type NodeSpec struct {
	kind nodeKind

	// Named fields.
	deviceName string

	// ByGateway / optional Named gateway.
	gateway    netip.Addr
	hasGateway bool
}

type nodeKind int

const (
	nodeDefault nodeKind = iota
	nodeNamed
	nodeByGateway
)

// DefaultNode follows the current best default route.
func DefaultNode() NodeSpec { return NodeSpec{kind: nodeDefault} }

// NamedNode names an adapter by alias or by its ?-encoded LUID string,
// with an optional gateway (absent means on-link).
func NamedNode(deviceName string, gateway ...netip.Addr) NodeSpec {
	n := NodeSpec{kind: nodeNamed, deviceName: deviceName}
	if len(gateway) > 0 {
		n.gateway = gateway[0]
		n.hasGateway = true
	}
	return n
}

// ByGatewayNode resolves the interface by matching an adapter's gateway
// address list.
func ByGatewayNode(gateway netip.Addr) NodeSpec {
	return NodeSpec{kind: nodeByGateway, gateway: gateway, hasGateway: true}
}

func (n NodeSpec) IsDefault() bool { return n.kind == nodeDefault }

// RouteSpec is a user-visible route declaration: a destination prefix and
// the node to reach it through.
type RouteSpec struct {
	Prefix Prefix
	Node   NodeSpec
}

// Gateway is the next-hop for a RegisteredRoute; the family's unspecified
// address represents "on-link".
type Gateway = netip.Addr

// RegisteredRoute is the concrete triple written into the OS forwarding
// table. Equality is defined over all three fields.
type RegisteredRoute struct {
	Prefix      Prefix
	InterfaceId InterfaceId
	NextHop     Gateway
}

func (r RegisteredRoute) Equal(o RegisteredRoute) bool {
	return r.Prefix == o.Prefix && r.InterfaceId == o.InterfaceId && r.NextHop == o.NextHop
}

func (r RegisteredRoute) String() string {
	return fmt.Sprintf("%s via if=%d next-hop=%s", r.Prefix, r.InterfaceId, r.NextHop)
}

// RouteRecord pairs the spec a caller declared with the concrete entry
// realizing it in the OS table.
type RouteRecord struct {
	Spec     RouteSpec
	Concrete RegisteredRoute
}

// BestDefault is the OS's current 0/0 route winner for one family.
type BestDefault struct {
	InterfaceId InterfaceId
	Gateway     Gateway
}

// EventKind enumerates the events a default-route monitor emits.
type EventKind int

const (
	// EventUpdated means the selected interface/gateway identity changed.
	EventUpdated EventKind = iota
	// EventUpdatedDetails means identity is unchanged but some property
	// (e.g. metric) of the winning route moved.
	EventUpdatedDetails
	// EventRemoved means there is no longer a best default for the family.
	EventRemoved
)

func (k EventKind) String() string {
	switch k {
	case EventUpdated:
		return "Updated"
	case EventUpdatedDetails:
		return "UpdatedDetails"
	case EventRemoved:
		return "Removed"
	default:
		return "Unknown"
	}
}

// Event is delivered to registered default-route-change callbacks.
type Event struct {
	Kind   EventKind
	Family AddressFamily
	Best   BestDefault // zero value when Kind == EventRemoved
}

// Callback receives default-route change notifications. Callbacks are
// invoked synchronously while the registry mutex is held: they must not
// block and must not call back into the route manager.
type Callback func(Event)
