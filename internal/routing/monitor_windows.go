//go:build windows

package routing

import (
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	procNotifyRouteChange2           = modIPHlpAPI.NewProc("NotifyRouteChange2")
	procNotifyIpInterfaceChange      = modIPHlpAPI.NewProc("NotifyIpInterfaceChange")
	procNotifyUnicastIpAddressChange = modIPHlpAPI.NewProc("NotifyUnicastIpAddressChange")
	procCancelMibChangeNotify2       = modIPHlpAPI.NewProc("CancelMibChangeNotify2")
)

// MIB_UNICASTIPADDRESS_ROW byte offsets: SOCKADDR_INET Address (16
// bytes, wide enough for either family) at offset 0, then
// NET_LUID64 InterfaceLuid, then NET_IFINDEX InterfaceIndex.
const (
	unicastIfLUID  = 16
	unicastIfIndex = 24
)

// DefaultRouteMonitor is C5: one instance per family, registering for
// the three OS notification streams and feeding a burst coalescer that
// re-evaluates the best default.
type DefaultRouteMonitor struct {
	family AddressFamily
	ctx    *monitorContext
	co     *coalescer

	routeHandle windows.Handle
	ifaceHandle windows.Handle
	addrHandle  windows.Handle

	// cbRoute/cbIface/cbAddr pin the Go closures passed to
	// windows.NewCallback for the monitor's lifetime: the monitor struct
	// holding these fields is what keeps them (and the monitorContext
	// they close over) reachable. Cancellation of all three
	// notifications strictly precedes the monitor being dropped.
	cbRoute, cbIface, cbAddr uintptr
}

// NewDefaultRouteMonitor constructs and starts a monitor for family,
// implementing §4.5's construction sequence: allocate context, register
// notifications, then read the initial best default. quiet/max tune the
// burst coalescer (§4.5's quiet window and hard cap).
func NewDefaultRouteMonitor(family AddressFamily, quiet, max time.Duration, onEvent func(Event)) (*DefaultRouteMonitor, error) {
	m := &DefaultRouteMonitor{family: family}

	resolveIndex := func(id InterfaceId) (uint32, bool) {
		return convertInterfaceLuidToIndex(id)
	}
	pick := func() (BestDefault, bool) {
		best, ok, err := pickDefault(family)
		if err != nil {
			return BestDefault{}, false
		}
		return best, ok
	}
	m.ctx = newMonitorContext(family, onEvent, pick, resolveIndex)
	m.co = newCoalescer(quiet, max, m.ctx.evaluate)

	familyConstVal := uintptr(familyConst(family))

	m.cbRoute = windows.NewCallback(func(_ uintptr, row uintptr, notificationType uint32) uintptr {
		prefixLen := *(*byte)(unsafe.Pointer(row + fwdDestPrefixLen))
		nextHopFamily := readUint16(row, fwdNextHopFamily)
		nextHop, err := readAddr(row, fwdNextHopAddr, nextHopFamily)
		if err != nil || prefixLen != 0 || isUnspecified(nextHop) {
			return 0
		}
		luid := readUint64(row, fwdInterfaceLUID)
		index := readUint32(row, fwdInterfaceIndex)
		m.ctx.updateRefreshFlag(luid, index)
		m.co.trigger()
		return 0
	})
	m.cbIface = windows.NewCallback(func(_ uintptr, row uintptr, notificationType uint32) uintptr {
		luid := readUint64(row, ipIfLUID)
		index := readUint32(row, ipIfIndex)
		m.ctx.updateRefreshFlag(luid, index)
		m.co.trigger()
		return 0
	})
	m.cbAddr = windows.NewCallback(func(_ uintptr, row uintptr, notificationType uint32) uintptr {
		luid := readUint64(row, unicastIfLUID)
		index := readUint32(row, unicastIfIndex)
		m.ctx.updateRefreshFlag(luid, index)
		m.co.trigger()
		return 0
	})

	var err error
	if m.routeHandle, err = registerNotify(procNotifyRouteChange2, familyConstVal, m.cbRoute); err != nil {
		return nil, err
	}
	if m.ifaceHandle, err = registerNotify(procNotifyIpInterfaceChange, familyConstVal, m.cbIface); err != nil {
		procCancelMibChangeNotify2.Call(uintptr(m.routeHandle))
		return nil, err
	}
	if m.addrHandle, err = registerNotify(procNotifyUnicastIpAddressChange, familyConstVal, m.cbAddr); err != nil {
		procCancelMibChangeNotify2.Call(uintptr(m.routeHandle))
		procCancelMibChangeNotify2.Call(uintptr(m.ifaceHandle))
		return nil, err
	}

	// Read the initial best default only after all three registrations
	// are in place, so a change racing construction is never lost.
	if best, ok, err := pickDefault(family); err == nil && ok {
		m.ctx.hasLast, m.ctx.last = true, best
	}

	return m, nil
}

func registerNotify(proc *windows.LazyProc, family uintptr, cb uintptr) (windows.Handle, error) {
	var h windows.Handle
	r1, _, _ := proc.Call(family, cb, 0, 0, uintptr(unsafe.Pointer(&h)))
	if r1 != 0 {
		return 0, newOsErr(OsQueryFailed, "notify-register", r1, windows.Errno(r1))
	}
	return h, nil
}

// Close implements §4.5's shutdown ordering: cancel all three
// notifications (the OS guarantees no handler runs after this returns),
// then close the coalescer (which may still fire once from a pending
// trigger), then let the context become unreachable.
func (m *DefaultRouteMonitor) Close() {
	procCancelMibChangeNotify2.Call(uintptr(m.routeHandle))
	procCancelMibChangeNotify2.Call(uintptr(m.ifaceHandle))
	procCancelMibChangeNotify2.Call(uintptr(m.addrHandle))
	m.co.close()
}
