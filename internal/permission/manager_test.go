package permission_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-notification-kit/internal/capability"
	"github.com/tinywideclouds/go-notification-kit/internal/permission"
	"github.com/tinywideclouds/go-notification-kit/internal/platform"
	"github.com/tinywideclouds/go-notification-kit/pkg/notify"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubBridge struct {
	platform      notify.Platform
	requestStatus notify.PermissionStatus
	checkStatus   notify.PermissionStatus
	requestErr    error
	checkErr      error
	settingsCalls int
}

func (b *stubBridge) Platform() notify.Platform { return b.platform }
func (b *stubBridge) Configure(context.Context, notify.Credentials) error {
	return nil
}
func (b *stubBridge) RequestPermission(context.Context) (notify.PermissionStatus, error) {
	return b.requestStatus, b.requestErr
}
func (b *stubBridge) CheckPermission(context.Context) (notify.PermissionStatus, error) {
	return b.checkStatus, b.checkErr
}
func (b *stubBridge) OpenSettings(context.Context) error {
	b.settingsCalls++
	return nil
}

type stubWebPermissions struct {
	status     string
	requestRes string
	err        error
}

func (w *stubWebPermissions) Request(context.Context) (string, error) {
	return w.requestRes, w.err
}
func (w *stubWebPermissions) Status(context.Context) (string, error) {
	return w.status, w.err
}

func nativeManager(t *testing.T, bridge *stubBridge) *permission.Manager {
	t.Helper()
	reg := capability.NewRegistry(newTestLogger())
	reg.Register(capability.KeyBridgeCore, func(context.Context) (any, error) {
		return bridge, nil
	})
	det := platform.NewDetector(reg, newTestLogger())
	return permission.NewManager(reg, det, newTestLogger())
}

func webManager(t *testing.T, shim *stubWebPermissions) *permission.Manager {
	t.Helper()
	reg := capability.NewRegistry(newTestLogger())
	if shim != nil {
		reg.Register(capability.KeyWebPermissions, func(context.Context) (any, error) {
			return shim, nil
		})
	}
	det := platform.NewDetector(reg, newTestLogger())
	return permission.NewManager(reg, det, newTestLogger())
}

func TestNativeRequest(t *testing.T) {
	m := nativeManager(t, &stubBridge{
		platform:      notify.PlatformAndroid,
		requestStatus: notify.PermissionGranted,
	})
	assert.True(t, m.Request(context.Background()))
}

func TestNativeRequest_FailureIsFalseNotError(t *testing.T) {
	m := nativeManager(t, &stubBridge{
		platform:   notify.PlatformIOS,
		requestErr: errors.New("bridge crashed"),
	})
	assert.False(t, m.Request(context.Background()))
}

func TestNativeCheck_FailClosed(t *testing.T) {
	m := nativeManager(t, &stubBridge{
		platform: notify.PlatformIOS,
		checkErr: errors.New("bridge crashed"),
	})
	assert.Equal(t, notify.PermissionDenied, m.Check(context.Background()))
}

func TestWebCheck_DefaultMapsToPrompt(t *testing.T) {
	m := webManager(t, &stubWebPermissions{status: "default"})
	ctx := context.Background()

	assert.Equal(t, notify.PermissionPrompt, m.Check(ctx))
	assert.True(t, m.CanRequest(ctx))
	assert.False(t, m.IsGranted(ctx))
}

func TestWebCheck_GrantedPassthrough(t *testing.T) {
	m := webManager(t, &stubWebPermissions{status: "granted"})
	ctx := context.Background()

	assert.True(t, m.IsGranted(ctx))
	assert.False(t, m.CanRequest(ctx))
}

func TestWebCheck_NoShimFailsClosed(t *testing.T) {
	m := webManager(t, nil)
	ctx := context.Background()

	assert.Equal(t, notify.PermissionDenied, m.Check(ctx))
	assert.False(t, m.Request(ctx))
}

func TestOpenSettings_UnsupportedOnWeb(t *testing.T) {
	m := webManager(t, &stubWebPermissions{status: "granted"})

	err := m.OpenSettings(context.Background())
	var unsupported *notify.UnsupportedOperationError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "openSettings", unsupported.Op)
}

func TestOpenSettings_Native(t *testing.T) {
	bridge := &stubBridge{platform: notify.PlatformAndroid}
	m := nativeManager(t, bridge)

	require.NoError(t, m.OpenSettings(context.Background()))
	assert.Equal(t, 1, bridge.settingsCalls)
}
