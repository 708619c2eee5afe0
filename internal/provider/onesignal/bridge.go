package onesignal

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/tinywideclouds/go-notification-kit/internal/capability"
	"github.com/tinywideclouds/go-notification-kit/pkg/notify"
)

// BridgeHelper hands the OneSignal app id to the native SDK through the
// native configuration port. Only the app id and the optional Safari web
// id cross the bridge; the REST key is server-side material and never
// leaves this process.
type BridgeHelper struct {
	registry *capability.Registry
	logger   *slog.Logger

	mu   sync.Mutex
	done bool
}

// NewBridgeHelper creates an idle helper.
func NewBridgeHelper(registry *capability.Registry, logger *slog.Logger) *BridgeHelper {
	return &BridgeHelper{
		registry: registry,
		logger:   logger.With("component", "OneSignalBridgeHelper"),
	}
}

// InitializeNative injects the app id through the bridge core. It no-ops
// immediately off-native, and a second call on the same helper warns and
// no-ops rather than re-injecting.
func (h *BridgeHelper) InitializeNative(ctx context.Context, cfg *notify.OneSignalConfig) error {
	if !h.registry.IsNativeRuntime(ctx) {
		h.logger.Debug("not a native runtime; skipping sdk configuration")
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.done {
		h.logger.Warn("native sdk already configured; ignoring repeated call")
		return nil
	}

	if cfg.AppID == "" {
		return &notify.ConfigError{Provider: notify.ProviderOneSignal, Fields: []string{"app_id"}}
	}

	creds := notify.Credentials{"appId": cfg.AppID}
	if cfg.SafariWebID != "" {
		creds["safariWebId"] = cfg.SafariWebID
	}

	handle, err := h.registry.Require(ctx, capability.KeyBridgeCore)
	if err != nil {
		return err
	}
	bridge, ok := handle.(notify.NativeBridge)
	if !ok {
		return &notify.ModuleLoadError{Module: string(capability.KeyBridgeCore)}
	}

	fields := make([]string, 0, len(creds))
	for k := range creds {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	h.logger.Info("configuring onesignal sdk through native bridge", "fields", fields)

	if err := bridge.Configure(ctx, creds); err != nil {
		return fmt.Errorf("native sdk configuration failed: %w", err)
	}
	h.done = true
	return nil
}
