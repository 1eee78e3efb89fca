//go:build windows

package routing

import (
	"net/netip"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	procInitializeIpForwardEntry    = modIPHlpAPI.NewProc("InitializeIpForwardEntry")
	procCreateIpForwardEntry2       = modIPHlpAPI.NewProc("CreateIpForwardEntry2")
	procSetIpForwardEntry2          = modIPHlpAPI.NewProc("SetIpForwardEntry2")
	procDeleteIpForwardEntry2       = modIPHlpAPI.NewProc("DeleteIpForwardEntry2")
	procConvertInterfaceAliasToLuid = modIPHlpAPI.NewProc("ConvertInterfaceAliasToLuid")
)

// errorObjectAlreadyExists is the HRESULT CreateIpForwardEntry2 returns
// when an identical row is already present; create reports it as
// alreadyExists so the store overwrites the row via Set.
const errorObjectAlreadyExists = 0x80071392

// Route protocol/origin tags: management-owned, manually written, so
// administrators can tell this manager's entries apart from ones the OS
// or DHCP wrote.
const (
	protoNetMgmt = 3 // MIB_IPPROTO_NETMGMT
	originManual = 4 // NlroManual
)

func putAddr(row *[fwdRowSize]byte, off int, family uint16, addr netip.Addr) {
	if family == windows.AF_INET6 {
		b := addr.As16()
		copy(row[off:off+16], b[:])
		return
	}
	b := addr.As4()
	copy(row[off:off+4], b[:])
}

func buildForwardRow(entry RegisteredRoute) [fwdRowSize]byte {
	var row [fwdRowSize]byte
	procInitializeIpForwardEntry.Call(uintptr(unsafe.Pointer(&row[0])))

	destFamily := familyConst(entry.Prefix.Family)
	// The next hop is always the same family as the destination prefix:
	// a route never crosses address families.
	nextHopFamily := destFamily

	*(*uint64)(unsafe.Pointer(&row[fwdInterfaceLUID])) = uint64(entry.InterfaceId)
	*(*uint16)(unsafe.Pointer(&row[fwdDestFamily])) = destFamily
	putAddr(&row, fwdDestAddr, destFamily, entry.Prefix.Addr)
	row[fwdDestPrefixLen] = byte(entry.Prefix.Bits)
	*(*uint16)(unsafe.Pointer(&row[fwdNextHopFamily])) = nextHopFamily
	putAddr(&row, fwdNextHopAddr, nextHopFamily, entry.NextHop)
	*(*uint32)(unsafe.Pointer(&row[fwdMetric])) = 0
	*(*uint32)(unsafe.Pointer(&row[fwdProtocol])) = protoNetMgmt
	row[fwdOrigin] = originManual
	return row
}

// osTableWriter is the real tableWriter, backed by iphlpapi.
type osTableWriter struct{}

func (osTableWriter) create(entry RegisteredRoute) (bool, error) {
	row := buildForwardRow(entry)
	r1, _, _ := procCreateIpForwardEntry2.Call(uintptr(unsafe.Pointer(&row[0])))
	if r1 == 0 {
		return false, nil
	}
	if r1 == errorObjectAlreadyExists {
		return true, nil
	}
	return false, newOsErr(WriteFailed, "create", r1, windows.Errno(r1))
}

func (osTableWriter) set(entry RegisteredRoute) error {
	row := buildForwardRow(entry)
	r1, _, _ := procSetIpForwardEntry2.Call(uintptr(unsafe.Pointer(&row[0])))
	if r1 != 0 {
		return newOsErr(WriteFailed, "set", r1, windows.Errno(r1))
	}
	return nil
}

func (osTableWriter) delete(entry RegisteredRoute) (bool, error) {
	row := buildForwardRow(entry)
	r1, _, _ := procDeleteIpForwardEntry2.Call(uintptr(unsafe.Pointer(&row[0])))
	if r1 == 0 {
		return false, nil
	}
	if windows.Errno(r1) == windows.ERROR_NOT_FOUND {
		return true, nil
	}
	return false, newOsErr(DeleteFailed, "delete", r1, windows.Errno(r1))
}

func convertInterfaceAliasToLuid(alias string) (InterfaceId, error) {
	aliasPtr, err := windows.UTF16PtrFromString(alias)
	if err != nil {
		return 0, err
	}
	var luid uint64
	r1, _, _ := procConvertInterfaceAliasToLuid.Call(uintptr(unsafe.Pointer(aliasPtr)), uintptr(unsafe.Pointer(&luid)))
	if r1 != 0 {
		return 0, windows.Errno(r1)
	}
	return InterfaceId(luid), nil
}

// osNodeResolver is the real nodeResolver, implementing §4.6.1.
type osNodeResolver struct{}

func (osNodeResolver) resolve(family AddressFamily, node NodeSpec) (InterfaceId, Gateway, error) {
	switch node.kind {
	case nodeDefault:
		best, ok, err := pickDefault(family)
		if err != nil {
			return 0, netip.Addr{}, err
		}
		if !ok {
			return 0, netip.Addr{}, newErr(NoDefaultRoute, "resolve", nil)
		}
		return best.InterfaceId, best.Gateway, nil

	case nodeNamed:
		var ifID InterfaceId
		if looksLikeEncodedLUID(node.deviceName) {
			id, err := ParseLUIDString(node.deviceName)
			if err != nil {
				return 0, netip.Addr{}, err
			}
			ifID = id
		} else {
			id, err := convertInterfaceAliasToLuid(node.deviceName)
			if err != nil {
				return 0, netip.Addr{}, newErr(DeviceNotFound, "resolve", err)
			}
			ifID = id
		}
		gw := unspecifiedFor(family)
		if node.hasGateway {
			gw = node.gateway
		}
		return ifID, gw, nil

	case nodeByGateway:
		ifID, err := findInterfaceForGateway(family, node.gateway)
		if err != nil {
			return 0, netip.Addr{}, err
		}
		return ifID, node.gateway, nil

	default:
		return 0, netip.Addr{}, newErr(InvalidAddressFamily, "resolve", nil)
	}
}
