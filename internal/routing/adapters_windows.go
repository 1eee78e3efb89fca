//go:build windows

package routing

import (
	"fmt"
	"net/netip"
	"unicode/utf16"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	procGetAdaptersAddresses = modIPHlpAPI.NewProc("GetAdaptersAddresses")
)

const (
	gaaFlagSkipAnycast      = 0x2
	gaaFlagSkipMulticast    = 0x4
	gaaFlagSkipDNSServer    = 0x8
	gaaFlagSkipFriendlyName = 0x20
	gaaFlagIncludeGateways  = 0x80

	ipAdapterIPv4Enabled = 0x80
	ipAdapterIPv6Enabled = 0x100

	ifTypeSoftwareLoopback = 24
	ifTypeTunnel           = 131

	gaaInitialBufferLen = 15 * 1024
	gaaMaxRetries       = 3
)

// socketAddress mirrors SOCKET_ADDRESS: a pointer to a sockaddr plus its
// length, as used throughout the GetAdaptersAddresses linked lists.
type socketAddress struct {
	Sockaddr *windows.RawSockaddrAny
	Len      int32
}

// ipAdapterGatewayAddress mirrors IP_ADAPTER_GATEWAY_ADDRESS_LH.
type ipAdapterGatewayAddress struct {
	Length   uint32
	Reserved uint32
	Next     *ipAdapterGatewayAddress
	Address  socketAddress
}

// ipAdapterAddresses mirrors the prefix of IP_ADAPTER_ADDRESSES_LH this
// package actually reads: enough to walk the adapter list, classify by
// type/description, and walk each adapter's gateway list. Trailing
// fields the real struct carries (DHCP, DNS suffix lists, etc.) are
// omitted since nothing here reads them.
type ipAdapterAddresses struct {
	Length                uint32
	IfIndex               uint32
	Next                  *ipAdapterAddresses
	AdapterName           *byte
	FirstUnicastAddress   uintptr
	FirstAnycastAddress   uintptr
	FirstMulticastAddress uintptr
	FirstDnsServerAddress *socketAddress
	DnsSuffix             *uint16
	Description           *uint16
	FriendlyName          *uint16
	PhysicalAddress       [8]byte
	PhysicalAddressLength uint32
	Flags                 uint32
	Mtu                   uint32
	IfType                uint32
	OperStatus            uint32
	Ipv6IfIndex           uint32
	ZoneIndices           [16]uint32
	FirstGatewayAddress   *ipAdapterGatewayAddress
	Ipv4Metric            uint32
	Ipv6Metric            uint32
	Luid                  uint64
}

func utf16PtrToString(p *uint16) string {
	if p == nil {
		return ""
	}
	var u []uint16
	for ptr := unsafe.Pointer(p); ; ptr = unsafe.Add(ptr, 2) {
		c := *(*uint16)(ptr)
		if c == 0 {
			break
		}
		u = append(u, c)
	}
	return string(utf16.Decode(u))
}

// getAdaptersAddresses wraps GetAdaptersAddresses with the buffer-retry
// dance (§4.3 step 1): start at 15 KiB, resize to the OS-reported length
// on overflow, and give up after gaaMaxRetries calls in total; "no data"
// is success with an empty list.
func getAdaptersAddresses() ([]*ipAdapterAddresses, []byte, error) {
	size := uint32(gaaInitialBufferLen)
	var buf []byte
	for attempt := 0; attempt < gaaMaxRetries; attempt++ {
		buf = make([]byte, size)
		r1, _, _ := procGetAdaptersAddresses.Call(
			uintptr(windows.AF_UNSPEC),
			uintptr(gaaFlagIncludeGateways|gaaFlagSkipAnycast|gaaFlagSkipMulticast|gaaFlagSkipDNSServer|gaaFlagSkipFriendlyName),
			0,
			uintptr(unsafe.Pointer(&buf[0])),
			uintptr(unsafe.Pointer(&size)),
		)
		switch windows.Errno(r1) {
		case 0:
			var out []*ipAdapterAddresses
			for aa := (*ipAdapterAddresses)(unsafe.Pointer(&buf[0])); aa != nil; aa = aa.Next {
				out = append(out, aa)
			}
			return out, buf, nil
		case windows.ERROR_BUFFER_OVERFLOW:
			continue // size was updated in place by the OS; retry
		case windows.ERROR_NO_DATA:
			return nil, nil, nil
		default:
			return nil, nil, newOsErr(OsQueryFailed, "getAdaptersAddresses", r1, windows.Errno(r1))
		}
	}
	return nil, nil, newErr(OsQueryFailed, "getAdaptersAddresses", fmt.Errorf("buffer still too small after %d attempts", gaaMaxRetries))
}

func adapterKind(aa *ipAdapterAddresses) InterfaceKind {
	switch aa.IfType {
	case ifTypeSoftwareLoopback:
		return InterfaceKindLoopback
	case ifTypeTunnel:
		return InterfaceKindTunnel
	default:
		return InterfaceKindOther
	}
}

func adapterFamilyEnabled(aa *ipAdapterAddresses, family AddressFamily) bool {
	if family == FamilyV6 {
		return aa.Flags&ipAdapterIPv6Enabled != 0
	}
	return aa.Flags&ipAdapterIPv4Enabled != 0
}

// gatewayAddrFromSockaddr reads one SOCKET_ADDRESS's address, validating
// its family against the two the OS is documented to return (§7
// InvalidAddressFamily: an OS bug, not a value to silently drop).
func gatewayAddrFromSockaddr(sa *windows.RawSockaddrAny) (netip.Addr, error) {
	if sa == nil {
		return netip.Addr{}, nil
	}
	switch sa.Addr.Family {
	case windows.AF_INET:
		p := (*windows.RawSockaddrInet4)(unsafe.Pointer(sa))
		return netip.AddrFrom4(p.Addr), nil
	case windows.AF_INET6:
		p := (*windows.RawSockaddrInet6)(unsafe.Pointer(sa))
		return netip.AddrFrom16(p.Addr), nil
	default:
		return netip.Addr{}, newErr(InvalidAddressFamily, "gatewayAddrFromSockaddr", fmt.Errorf("unexpected sockaddr family %d", sa.Addr.Family))
	}
}

func adapterGateways(aa *ipAdapterAddresses) ([]netip.Addr, error) {
	var out []netip.Addr
	for g := aa.FirstGatewayAddress; g != nil; g = g.Next {
		addr, err := gatewayAddrFromSockaddr(g.Address.Sockaddr)
		if err != nil {
			return nil, err
		}
		if addr.IsValid() {
			out = append(out, addr)
		}
	}
	return out, nil
}

// enumerateAdapters enumerates every adapter and attaches its gateway
// address list. Adapters are not filtered here: each one carries
// FamilyEnabled for family, which findInterfaceForGatewayFromAdapters
// checks.
func enumerateAdapters(family AddressFamily) ([]AdapterInfo, error) {
	list, _, err := getAdaptersAddresses()
	if err != nil {
		return nil, err
	}
	out := make([]AdapterInfo, 0, len(list))
	for _, aa := range list {
		metric := aa.Ipv4Metric
		if family == FamilyV6 {
			metric = aa.Ipv6Metric
		}
		gateways, err := adapterGateways(aa)
		if err != nil {
			return nil, err
		}
		out = append(out, AdapterInfo{
			InterfaceId:   InterfaceId(aa.Luid),
			IfIndex:       aa.IfIndex,
			Description:   utf16PtrToString(aa.Description),
			Kind:          adapterKind(aa),
			FamilyEnabled: adapterFamilyEnabled(aa, family),
			Gateways:      gateways,
			Metric:        metric,
		})
	}
	return out, nil
}

// adapterMetaByInterface builds the description/kind lookup snapshot()
// uses to classify forwarding-table rows (§4.1's on-physical-interface
// predicate needs the adapter description, which the table rows
// themselves don't carry).
func adapterMetaByInterface(family AddressFamily) (map[InterfaceId]struct {
	Description string
	Kind        InterfaceKind
}, error) {
	adapters, err := enumerateAdapters(family)
	if err != nil {
		return nil, err
	}
	out := make(map[InterfaceId]struct {
		Description string
		Kind        InterfaceKind
	}, len(adapters))
	for _, a := range adapters {
		out[a.InterfaceId] = struct {
			Description string
			Kind        InterfaceKind
		}{a.Description, a.Kind}
	}
	return out, nil
}

// findInterfaceForGateway implements the full C3 operation: enumerate
// then delegate to the pure matcher.
func findInterfaceForGateway(family AddressFamily, gateway netip.Addr) (InterfaceId, error) {
	adapters, err := enumerateAdapters(family)
	if err != nil {
		return 0, err
	}
	return findInterfaceForGatewayFromAdapters(adapters, gateway)
}
