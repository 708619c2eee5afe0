package fcm

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/sideshow/apns2/token"

	"github.com/tinywideclouds/go-notification-kit/internal/capability"
	"github.com/tinywideclouds/go-notification-kit/pkg/notify"
)

// BridgeHelper performs runtime credential injection into the native
// Firebase SDK through the native configuration port. Secrets reach the
// native side as a credentials object only; they are never written into
// static native project files.
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
		logger:   logger.With("component", "FCMBridgeHelper"),
	}
}

// InitializeNative injects the Firebase credentials through the bridge
// core. It no-ops immediately off-native, and a second call on the same
// helper warns and no-ops rather than re-injecting.
func (h *BridgeHelper) InitializeNative(ctx context.Context, cfg *notify.FCMConfig) error {
	if !h.registry.IsNativeRuntime(ctx) {
		h.logger.Debug("not a native runtime; skipping credential injection")
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.done {
		h.logger.Warn("native credentials already injected; ignoring repeated call")
		return nil
	}

	if cfg.ExistingClient == nil {
		var missing []string
		for field, value := range map[string]string{
			"api_key":             cfg.APIKey,
			"project_id":          cfg.ProjectID,
			"app_id":              cfg.AppID,
			"messaging_sender_id": cfg.MessagingSenderID,
		} {
			if value == "" {
				missing = append(missing, field)
			}
		}
		if len(missing) > 0 {
			sort.Strings(missing)
			return &notify.ConfigError{Provider: notify.ProviderFCM, Fields: missing}
		}
	}

	creds := notify.Credentials{
		"apiKey":            cfg.APIKey,
		"projectId":         cfg.ProjectID,
		"appId":             cfg.AppID,
		"messagingSenderId": cfg.MessagingSenderID,
	}

	if h.registry.Platform(ctx) == notify.PlatformIOS && cfg.APNsP8Key != "" {
		// Parse the P8 key up front so a bad credential fails here with a
		// clear message instead of deep inside the native SDK.
		if _, err := token.AuthKeyFromBytes([]byte(cfg.APNsP8Key)); err != nil {
			return fmt.Errorf("failed to parse APNs P8 key: %w", err)
		}
		creds["apnsKeyId"] = cfg.APNsKeyID
		creds["apnsTeamId"] = cfg.APNsTeamID
		creds["apnsP8Key"] = cfg.APNsP8Key
	}

	handle, err := h.registry.Require(ctx, capability.KeyBridgeCore)
	if err != nil {
		return err
	}
	bridge, ok := handle.(notify.NativeBridge)
	if !ok {
		return &notify.ModuleLoadError{Module: string(capability.KeyBridgeCore)}
	}

	// Log which fields are being injected, never their values.
	fields := make([]string, 0, len(creds))
	for k := range creds {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	h.logger.Info("injecting firebase credentials through native bridge", "fields", fields)

	if err := bridge.Configure(ctx, creds); err != nil {
		return fmt.Errorf("native credential injection failed: %w", err)
	}
	h.done = true
	return nil
}
