package platform

// Platform aggregates the platform-specific implementations the host
// process wires up at startup. Populated by a platform-specific factory
// (NewPlatform) in platform/windows/.
type Platform struct {
	NewRouteManager func(tunLUID uint64) RouteManager
}
