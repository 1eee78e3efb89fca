//go:build windows

package main

import (
	"flag"
	"fmt"
	"log"
	"net/netip"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"awg-split-tunnel/internal/core"
	platformWindows "awg-split-tunnel/internal/platform/windows"
)

// Build info — injected via ldflags at compile time.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	tunLUID := flag.String("tun-luid", "", "LUID of the TUN adapter to route through (hex, e.g. 0x1a2b3c)")
	bypass := flag.String("bypass", "", "comma-separated host IPs to route via the real NIC instead of the TUN adapter")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("awg-split-tunnel %s (commit=%s, built=%s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	luid, err := strconv.ParseUint(strings.TrimPrefix(*tunLUID, "0x"), 16, 64)
	if err != nil {
		log.Fatalf("[Core] invalid -tun-luid %q: %v", *tunLUID, err)
	}

	if err := run(luid, *bypass); err != nil {
		log.Fatalf("[Core] Fatal: %v", err)
	}
}

// run demonstrates the route manager's host integration: discover the
// real NIC, split the default route through the TUN adapter, pin any
// bypass hosts to the real NIC, then hold routes in place until signalled
// to shut down.
func run(tunLUID uint64, bypassCSV string) error {
	core.Log.Infof("Core", "awg-split-tunnel %s starting, tun-luid=0x%x", version, tunLUID)

	plat := platformWindows.NewPlatform()
	routeMgr := plat.NewRouteManager(tunLUID)
	defer routeMgr.Cleanup()

	realNIC, err := routeMgr.DiscoverRealNIC()
	if err != nil {
		return fmt.Errorf("discover real NIC: %w", err)
	}
	core.Log.Infof("Core", "real NIC: index=%d gateway=%s local=%s", realNIC.Index, realNIC.Gateway, realNIC.LocalIP)

	if err := routeMgr.SetDefaultRoute(); err != nil {
		return fmt.Errorf("set default route: %w", err)
	}

	for _, host := range splitBypassHosts(bypassCSV) {
		if err := routeMgr.AddBypassRoute(host); err != nil {
			core.Log.Warnf("Core", "bypass route for %s: %v", host, err)
		}
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	core.Log.Infof("Core", "shutdown signal received")
	return nil
}

func splitBypassHosts(csv string) []netip.Addr {
	var out []netip.Addr
	for _, s := range strings.Split(csv, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		addr, err := netip.ParseAddr(s)
		if err != nil {
			core.Log.Warnf("Core", "invalid -bypass host %q: %v", s, err)
			continue
		}
		out = append(out, addr)
	}
	return out
}
