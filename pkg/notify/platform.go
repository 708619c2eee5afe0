// Package notify contains the public vocabulary and contracts for the
// notification kit: platforms, permissions, capabilities, events, the
// provider contract, and the ports through which the kit reaches its
// external collaborators (native bridge, storage, in-app renderer).
package notify

// Platform identifies the runtime surface the kit is managing.
type Platform string

const (
	PlatformWeb      Platform = "web"
	PlatformIOS      Platform = "ios"
	PlatformAndroid  Platform = "android"
	PlatformElectron Platform = "electron"
	PlatformUnknown  Platform = "unknown"
)

// IsNative reports whether the platform is reached through the native
// mobile bridge.
func (p Platform) IsNative() bool {
	return p == PlatformIOS || p == PlatformAndroid
}

// IsMobile reports whether the platform is a mobile device surface.
func (p Platform) IsMobile() bool {
	return p.IsNative()
}

// IsDesktop reports whether the platform is a desktop surface.
func (p Platform) IsDesktop() bool {
	return p == PlatformWeb || p == PlatformElectron
}

// ParsePlatform maps a string onto a known Platform, defaulting to
// PlatformUnknown for anything unrecognized.
func ParsePlatform(s string) Platform {
	switch Platform(s) {
	case PlatformWeb, PlatformIOS, PlatformAndroid, PlatformElectron:
		return Platform(s)
	default:
		return PlatformUnknown
	}
}
