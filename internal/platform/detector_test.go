package platform

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-notification-kit/internal/capability"
	"github.com/tinywideclouds/go-notification-kit/pkg/notify"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubBridge struct {
	notify.NativeBridge
	platform notify.Platform
}

func (b *stubBridge) Platform() notify.Platform { return b.platform }

func envMap(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestDetect_BridgeWins(t *testing.T) {
	ctx := context.Background()
	reg := capability.NewRegistry(newTestLogger())
	reg.Register(capability.KeyBridgeCore, func(context.Context) (any, error) {
		return &stubBridge{platform: notify.PlatformIOS}, nil
	})

	d := NewDetector(reg, newTestLogger())
	d.lookupEnv = envMap(map[string]string{EnvPlatformHint: "web"})

	info := d.Detect(ctx)
	assert.Equal(t, notify.PlatformIOS, info.Platform)
	assert.True(t, info.IsNative)
	assert.True(t, info.IsHybrid)
	assert.True(t, info.IsMobile)
	assert.False(t, info.IsDesktop)
}

func TestDetect_EnvHintFallback(t *testing.T) {
	ctx := context.Background()
	d := NewDetector(capability.NewRegistry(newTestLogger()), newTestLogger())
	d.lookupEnv = envMap(map[string]string{EnvPlatformHint: "electron"})

	info := d.Detect(ctx)
	assert.Equal(t, notify.PlatformElectron, info.Platform)
	assert.True(t, info.IsDesktop)
	assert.False(t, info.IsNative)
}

func TestDetect_DefaultsToWeb(t *testing.T) {
	ctx := context.Background()
	d := NewDetector(capability.NewRegistry(newTestLogger()), newTestLogger())
	d.lookupEnv = envMap(nil)

	info := d.Detect(ctx)
	assert.Equal(t, notify.PlatformWeb, info.Platform)
}

func TestDetect_Memoized(t *testing.T) {
	ctx := context.Background()
	d := NewDetector(capability.NewRegistry(newTestLogger()), newTestLogger())
	env := map[string]string{EnvPlatformHint: "android"}
	d.lookupEnv = envMap(env)

	first := d.Detect(ctx)
	env[EnvPlatformHint] = "web" // must not matter anymore
	second := d.Detect(ctx)
	assert.Equal(t, first.Platform, second.Platform)
}

func TestDetect_InsecureContextWarning(t *testing.T) {
	ctx := context.Background()
	d := NewDetector(capability.NewRegistry(newTestLogger()), newTestLogger())
	d.lookupEnv = envMap(map[string]string{EnvSecureContext: "false"})

	info := d.Detect(ctx)
	require.Len(t, info.Warnings, 1)
	assert.Contains(t, info.Warnings[0], "secure context")
}

func TestCapabilitiesFor_AllowList(t *testing.T) {
	android := CapabilitiesFor(notify.PlatformAndroid)
	assert.True(t, android.Channels)
	assert.False(t, android.CriticalAlerts)

	ios := CapabilitiesFor(notify.PlatformIOS)
	assert.True(t, ios.CriticalAlerts)
	assert.False(t, ios.Channels)

	web := CapabilitiesFor(notify.PlatformWeb)
	assert.True(t, web.Push)
	assert.False(t, web.LocalSchedule)
	assert.False(t, web.Channels)

	unknown := CapabilitiesFor(notify.PlatformUnknown)
	assert.True(t, unknown.InApp)
	assert.False(t, unknown.Push)
}

func TestIsSupported_PureLookup(t *testing.T) {
	assert.True(t, IsSupported(notify.FeatureChannels, notify.PlatformAndroid))
	assert.False(t, IsSupported(notify.FeatureChannels, notify.PlatformWeb))
	assert.False(t, IsSupported(notify.Feature("made_up"), notify.PlatformAndroid))
}

func TestMerge_ProviderCannotGrantPlatformFeatures(t *testing.T) {
	base := CapabilitiesFor(notify.PlatformWeb)
	merged := Merge(base, notify.ProviderCapabilities{
		NativeTopics: true,
		RichMedia:    true,
		Badge:        true,
	})

	assert.True(t, merged.NativeTopics)
	assert.True(t, merged.RichMedia)
	assert.True(t, merged.Badge, "both sides support badge")
	assert.False(t, merged.LocalSchedule, "platform table still rules")

	noBadge := Merge(base, notify.ProviderCapabilities{Badge: false})
	assert.False(t, noBadge.Badge)
}
