//go:build windows

// Package windows provides the Windows platform implementation.
package windows

import (
	"awg-split-tunnel/internal/gateway"
	"awg-split-tunnel/internal/platform"
)

// NewPlatform creates a Platform configured for Windows: iphlpapi-backed
// routing via internal/routing.
func NewPlatform() *platform.Platform {
	return &platform.Platform{
		NewRouteManager: func(tunLUID uint64) platform.RouteManager {
			return gateway.NewRouteManager(tunLUID)
		},
	}
}
