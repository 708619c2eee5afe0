// Package permission implements the provider-independent notification
// permission flow. The logic branches on platform only: the web branch
// speaks the browser permission vocabulary through a registered shim, the
// native branch goes through the bridge core. Both branches fail closed;
// "can I" queries never surface errors.
package permission

import (
	"context"
	"log/slog"

	"github.com/tinywideclouds/go-notification-kit/internal/capability"
	"github.com/tinywideclouds/go-notification-kit/internal/platform"
	"github.com/tinywideclouds/go-notification-kit/pkg/notify"
)

// WebPermissions is the browser Notification-API shim registered under
// capability key "web.permissions". Results use the raw browser
// vocabulary ("default", "granted", "denied").
type WebPermissions interface {
	Request(ctx context.Context) (string, error)
	Status(ctx context.Context) (string, error)
}

// Manager answers permission queries for the detected surface.
type Manager struct {
	registry *capability.Registry
	detector *platform.Detector
	logger   *slog.Logger
}

// NewManager creates a permission manager over the given registry and
// detector.
func NewManager(registry *capability.Registry, detector *platform.Detector, logger *slog.Logger) *Manager {
	return &Manager{
		registry: registry,
		detector: detector,
		logger:   logger.With("component", "PermissionManager"),
	}
}

// Request prompts for notification permission. Any failure, including an
// unsupported surface, reads as false so callers can treat "unsupported"
// and "denied" uniformly.
func (m *Manager) Request(ctx context.Context) bool {
	if m.detector.Detect(ctx).IsNative {
		bridge := m.registry.Bridge(ctx)
		if bridge == nil {
			return false
		}
		status, err := bridge.RequestPermission(ctx)
		if err != nil {
			m.logger.Debug("native permission request failed", "err", err)
			return false
		}
		return status == notify.PermissionGranted
	}

	shim := m.webShim(ctx)
	if shim == nil {
		return false
	}
	raw, err := shim.Request(ctx)
	if err != nil {
		m.logger.Debug("web permission request failed", "err", err)
		return false
	}
	return notify.ParsePermissionStatus(raw) == notify.PermissionGranted
}

// Check reports the current permission status. Internal failures resolve
// to denied, never to an error.
func (m *Manager) Check(ctx context.Context) notify.PermissionStatus {
	if m.detector.Detect(ctx).IsNative {
		bridge := m.registry.Bridge(ctx)
		if bridge == nil {
			return notify.PermissionDenied
		}
		status, err := bridge.CheckPermission(ctx)
		if err != nil {
			m.logger.Debug("native permission check failed", "err", err)
			return notify.PermissionDenied
		}
		return status
	}

	shim := m.webShim(ctx)
	if shim == nil {
		return notify.PermissionDenied
	}
	raw, err := shim.Status(ctx)
	if err != nil {
		m.logger.Debug("web permission check failed", "err", err)
		return notify.PermissionDenied
	}
	return notify.ParsePermissionStatus(raw)
}

// IsGranted is a convenience over Check.
func (m *Manager) IsGranted(ctx context.Context) bool {
	return m.Check(ctx) == notify.PermissionGranted
}

// CanRequest reports whether a request prompt may still be shown.
func (m *Manager) CanRequest(ctx context.Context) bool {
	return m.Check(ctx) == notify.PermissionPrompt
}

// OpenSettings deep-links into the OS notification settings. There is no
// programmatic settings link from a web page, so non-native surfaces fail
// with UnsupportedOperationError.
func (m *Manager) OpenSettings(ctx context.Context) error {
	if !m.detector.Detect(ctx).IsNative {
		return &notify.UnsupportedOperationError{
			Op:     "openSettings",
			Reason: "there is no programmatic settings link from a web page",
		}
	}
	handle, err := m.registry.Require(ctx, capability.KeyBridgeCore)
	if err != nil {
		return err
	}
	bridge, ok := handle.(notify.NativeBridge)
	if !ok {
		return &notify.ModuleLoadError{Module: string(capability.KeyBridgeCore)}
	}
	return bridge.OpenSettings(ctx)
}

func (m *Manager) webShim(ctx context.Context) WebPermissions {
	handle := m.registry.Optional(ctx, capability.KeyWebPermissions)
	if handle == nil {
		return nil
	}
	shim, ok := handle.(WebPermissions)
	if !ok {
		m.logger.Warn("web.permissions module does not implement permission.WebPermissions")
		return nil
	}
	return shim
}
