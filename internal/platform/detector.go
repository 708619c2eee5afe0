// Package platform determines the runtime surface the kit is managing
// and derives the static capability table for that surface. Detection is
// memoized per detector; the native bridge, when present, is the
// authority, with an environment hint as the fallback.
package platform

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"github.com/tinywideclouds/go-notification-kit/internal/capability"
	"github.com/tinywideclouds/go-notification-kit/pkg/notify"
)

// EnvPlatformHint is consulted when no native bridge is registered.
const EnvPlatformHint = "NOTIFYKIT_PLATFORM"

// EnvSecureContext marks the web surface as an insecure context when set
// to "false". Advisory only; detection never blocks on it.
const EnvSecureContext = "NOTIFYKIT_SECURE_CONTEXT"

// Info is the result of surface detection.
type Info struct {
	Platform  notify.Platform `json:"platform"`
	IsNative  bool            `json:"is_native"`
	IsHybrid  bool            `json:"is_hybrid"`
	IsMobile  bool            `json:"is_mobile"`
	IsDesktop bool            `json:"is_desktop"`

	SupportedFeatures []notify.Feature `json:"supported_features"`
	Limitations       []string         `json:"limitations"`
	// Warnings are advisory strings only and never block operations.
	Warnings []string `json:"warnings"`
}

// Detector performs memoized surface detection against a capability
// registry.
type Detector struct {
	registry *capability.Registry
	logger   *slog.Logger

	// lookupEnv is swappable for tests.
	lookupEnv func(string) (string, bool)

	once sync.Once
	info Info
}

// NewDetector creates a detector bound to the given registry.
func NewDetector(registry *capability.Registry, logger *slog.Logger) *Detector {
	return &Detector{
		registry:  registry,
		logger:    logger.With("component", "PlatformDetector"),
		lookupEnv: os.LookupEnv,
	}
}

// Detect computes the surface info once and returns the memoized value on
// every subsequent call.
func (d *Detector) Detect(ctx context.Context) Info {
	d.once.Do(func() {
		d.info = d.detect(ctx)
		d.logger.Debug("platform detected",
			"platform", string(d.info.Platform),
			"native", d.info.IsNative,
			"warnings", len(d.info.Warnings))
	})
	return d.info
}

func (d *Detector) detect(ctx context.Context) Info {
	p := notify.PlatformUnknown
	hybrid := false

	if bridge := d.registry.Bridge(ctx); bridge != nil {
		p = bridge.Platform()
		// A native bridge means the app runs inside a web view reached
		// through an intermediate layer.
		hybrid = p.IsNative()
	} else if hint, ok := d.lookupEnv(EnvPlatformHint); ok {
		p = notify.ParsePlatform(hint)
	} else {
		p = notify.PlatformWeb
	}

	info := Info{
		Platform:          p,
		IsNative:          p.IsNative(),
		IsHybrid:          hybrid,
		IsMobile:          p.IsMobile(),
		IsDesktop:         p.IsDesktop(),
		SupportedFeatures: supportedFeatures(p),
		Limitations:       limitations(p),
	}

	if p == notify.PlatformWeb || p == notify.PlatformElectron {
		if secure, ok := d.lookupEnv(EnvSecureContext); ok && secure == "false" {
			info.Warnings = append(info.Warnings,
				"not a secure context; push registration will fail")
		}
	}
	if p == notify.PlatformUnknown {
		info.Warnings = append(info.Warnings,
			"runtime surface could not be determined; only in-app notifications are available")
	}

	return info
}

// Capabilities returns the merged capability table for the detected
// surface.
func (d *Detector) Capabilities(ctx context.Context) notify.Capabilities {
	return CapabilitiesFor(d.Detect(ctx).Platform)
}

// IsSupported is a pure lookup against the static table.
func IsSupported(f notify.Feature, p notify.Platform) bool {
	return CapabilitiesFor(p).Has(f)
}

// CapabilitiesFor builds the capability table for a platform from the
// static allow-list. Features not listed for a surface stay false.
func CapabilitiesFor(p notify.Platform) notify.Capabilities {
	var c notify.Capabilities
	for _, f := range supportedFeatures(p) {
		switch f {
		case notify.FeaturePush:
			c.Push = true
		case notify.FeatureLocalSchedule:
			c.LocalSchedule = true
		case notify.FeatureChannels:
			c.Channels = true
		case notify.FeatureBadge:
			c.Badge = true
		case notify.FeatureCriticalAlerts:
			c.CriticalAlerts = true
		case notify.FeatureInApp:
			c.InApp = true
		case notify.FeatureSound:
			c.Sound = true
		case notify.FeatureActions:
			c.Actions = true
		}
	}
	return c
}

// Merge folds a provider's declared capabilities into a platform table.
// Provider flags only ever add; they cannot grant a feature the surface
// does not support.
func Merge(base notify.Capabilities, pc notify.ProviderCapabilities) notify.Capabilities {
	merged := base
	merged.NativeTopics = pc.NativeTopics
	merged.RichMedia = pc.RichMedia
	merged.Scheduling = pc.Scheduling
	merged.Analytics = pc.Analytics
	merged.Segmentation = pc.Segmentation
	merged.Badge = base.Badge && pc.Badge
	return merged
}

func supportedFeatures(p notify.Platform) []notify.Feature {
	switch p {
	case notify.PlatformAndroid:
		return []notify.Feature{
			notify.FeaturePush, notify.FeatureLocalSchedule,
			notify.FeatureChannels, notify.FeatureBadge,
			notify.FeatureInApp, notify.FeatureSound, notify.FeatureActions,
		}
	case notify.PlatformIOS:
		return []notify.Feature{
			notify.FeaturePush, notify.FeatureLocalSchedule,
			notify.FeatureBadge, notify.FeatureCriticalAlerts,
			notify.FeatureInApp, notify.FeatureSound, notify.FeatureActions,
		}
	case notify.PlatformWeb, notify.PlatformElectron:
		return []notify.Feature{
			notify.FeaturePush, notify.FeatureBadge,
			notify.FeatureInApp, notify.FeatureSound, notify.FeatureActions,
		}
	default:
		return []notify.Feature{notify.FeatureInApp}
	}
}

func limitations(p notify.Platform) []string {
	switch p {
	case notify.PlatformAndroid:
		return []string{"critical alerts are unavailable"}
	case notify.PlatformIOS:
		return []string{"notification channels are unavailable"}
	case notify.PlatformWeb, notify.PlatformElectron:
		return []string{
			"notification channels are unavailable",
			"local scheduling is unavailable",
		}
	default:
		return []string{"push delivery is unavailable"}
	}
}
