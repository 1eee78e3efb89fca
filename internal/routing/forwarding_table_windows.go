//go:build windows

package routing

import (
	"fmt"
	"net/netip"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	modIPHlpAPI                     = windows.NewLazySystemDLL("iphlpapi.dll")
	procGetIpForwardTable2          = modIPHlpAPI.NewProc("GetIpForwardTable2")
	procFreeMibTable                = modIPHlpAPI.NewProc("FreeMibTable")
	procGetIpInterfaceEntry         = modIPHlpAPI.NewProc("GetIpInterfaceEntry")
	procConvertInterfaceLuidToIndex = modIPHlpAPI.NewProc("ConvertInterfaceLuidToIndex")
)

// mibIPForwardRow2 is one row of MIB_IPFORWARD_TABLE2, accessed by byte
// offset rather than a typed struct. Offsets below generalize the IPv4
// layout to both families: DestinationPrefix.Prefix is a SOCKADDR_INET
// union wide enough for either an IPv4 (first 4 bytes) or IPv6 (first 16
// bytes) address at the same base offset.
const (
	fwdInterfaceLUID   = 0
	fwdInterfaceIndex  = 8
	fwdDestFamily      = 12
	fwdDestAddr        = 16
	fwdDestPrefixLen   = 40
	fwdNextHopFamily   = 44
	fwdNextHopAddr     = 48
	fwdMetric          = 84
	fwdProtocol        = 88
	fwdOrigin          = 100
	fwdRowSize         = 104
)

func familyConst(f AddressFamily) uint16 {
	if f == FamilyV6 {
		return windows.AF_INET6
	}
	return windows.AF_INET
}

func readUint16(base uintptr, off uintptr) uint16 {
	return *(*uint16)(unsafe.Pointer(base + off))
}

func readUint32(base uintptr, off uintptr) uint32 {
	return *(*uint32)(unsafe.Pointer(base + off))
}

func readUint64(base uintptr, off uintptr) uint64 {
	return *(*uint64)(unsafe.Pointer(base + off))
}

// readAddr reads the address at off, validating family against the two
// families the OS is documented to return (§7 InvalidAddressFamily: "OS
// returned a family that is neither v4 nor v6" indicates an OS bug and
// must be surfaced, not silently coerced to IPv4).
func readAddr(base uintptr, off uintptr, family uint16) (netip.Addr, error) {
	switch family {
	case windows.AF_INET6:
		var b [16]byte
		for i := 0; i < 16; i++ {
			b[i] = *(*byte)(unsafe.Pointer(base + off + uintptr(i)))
		}
		return netip.AddrFrom16(b), nil
	case windows.AF_INET:
		var b [4]byte
		for i := 0; i < 4; i++ {
			b[i] = *(*byte)(unsafe.Pointer(base + off + uintptr(i)))
		}
		return netip.AddrFrom4(b), nil
	default:
		return netip.Addr{}, newErr(InvalidAddressFamily, "readAddr", fmt.Errorf("unexpected sockaddr family %d", family))
	}
}

// snapshot implements C1's one operation: copy the OS forwarding table
// for family into caller-owned Rows. Interface descriptions/kinds are
// filled in from a parallel adapter enumeration so OnPhysicalInterface
// can classify rows without holding OS memory past this call.
func snapshot(family AddressFamily) ([]Row, error) {
	var tablePtr uintptr
	r1, _, _ := procGetIpForwardTable2.Call(uintptr(familyConst(family)), uintptr(unsafe.Pointer(&tablePtr)))
	if r1 != 0 {
		return nil, newOsErr(OsQueryFailed, "snapshot", r1, windows.Errno(r1))
	}
	defer procFreeMibTable.Call(tablePtr)

	numEntries := *(*uint32)(unsafe.Pointer(tablePtr))
	// MIB_IPFORWARD_TABLE2 starts with a ULONG NumEntries, rows follow
	// 8-byte aligned.
	rowsBase := tablePtr + 8

	meta, err := adapterMetaByInterface(family)
	if err != nil {
		// Classification metadata is best-effort: if adapter enumeration
		// fails we still return raw rows, just without description-based
		// tunnel filtering (Kind stays InterfaceKindOther).
		meta = nil
	}

	rows := make([]Row, 0, numEntries)
	for i := uint32(0); i < numEntries; i++ {
		base := rowsBase + uintptr(i)*fwdRowSize

		destFamily := readUint16(base, fwdDestFamily)
		nextHopFamily := readUint16(base, fwdNextHopFamily)
		luid := InterfaceId(readUint64(base, fwdInterfaceLUID))

		destAddr, err := readAddr(base, fwdDestAddr, destFamily)
		if err != nil {
			return nil, err
		}
		nextHop, err := readAddr(base, fwdNextHopAddr, nextHopFamily)
		if err != nil {
			return nil, err
		}

		row := Row{
			Prefix: Prefix{
				Addr:   destAddr,
				Bits:   int(*(*byte)(unsafe.Pointer(base + fwdDestPrefixLen))),
				Family: family,
			},
			NextHop:     nextHop,
			InterfaceId: luid,
			IfIndex:     readUint32(base, fwdInterfaceIndex),
			Metric:      readUint32(base, fwdMetric),
			Protocol:    readUint32(base, fwdProtocol),
			Origin:      uint32(*(*byte)(unsafe.Pointer(base + fwdOrigin))),
		}
		if m, ok := meta[luid]; ok {
			row.Description = m.Description
			row.Kind = m.Kind
		}
		rows = append(rows, row)
	}
	return rows, nil
}

type ipInterfaceInfo struct {
	connected bool
	metric    uint32
	mtu       uint32
}

// MIB_IPINTERFACE_ROW byte offsets read and written by getIPInterfaceEntry.
const (
	ipIfFamily      = 0
	ipIfLUID        = 8
	ipIfIndex       = 16
	ipIfConnected   = 88 // BOOL Connected
	ipIfMetric      = 148
	ipIfNlMtu       = 152
	ipIfRowSize     = 256
)

func getIPInterfaceEntry(family AddressFamily, luid InterfaceId) (ipInterfaceInfo, error) {
	var row [ipIfRowSize]byte
	*(*uint16)(unsafe.Pointer(&row[ipIfFamily])) = familyConst(family)
	*(*uint64)(unsafe.Pointer(&row[ipIfLUID])) = uint64(luid)

	r1, _, _ := procGetIpInterfaceEntry.Call(uintptr(unsafe.Pointer(&row[0])))
	if r1 != 0 {
		return ipInterfaceInfo{}, newOsErr(OsQueryFailed, "getIPInterfaceEntry", r1, windows.Errno(r1))
	}

	connected := *(*int32)(unsafe.Pointer(&row[ipIfConnected])) != 0
	metric := *(*uint32)(unsafe.Pointer(&row[ipIfMetric]))
	mtu := *(*uint32)(unsafe.Pointer(&row[ipIfNlMtu]))
	return ipInterfaceInfo{connected: connected, metric: metric, mtu: mtu}, nil
}

func convertInterfaceLuidToIndex(luid InterfaceId) (uint32, bool) {
	var index uint32
	r1, _, _ := procConvertInterfaceLuidToIndex.Call(uintptr(unsafe.Pointer(&luid)), uintptr(unsafe.Pointer(&index)))
	return index, r1 == 0
}
