// Package capability provides the lazy, memoized loading of optional
// runtime modules: native bridges, storage backends, provider SDK
// clients, the in-app renderer. Nothing here fails at construction time;
// a module is resolved on first use and the outcome, success or failure,
// is cached for the lifetime of the registry.
package capability

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tinywideclouds/go-notification-kit/pkg/notify"
)

// Key names a loadable module.
type Key string

const (
	// KeyBridgeCore is the native configuration/permission port
	// (notify.NativeBridge).
	KeyBridgeCore Key = "bridge.core"
	// KeyBridgePush is the native push-token port (notify.PushBridge).
	KeyBridgePush Key = "bridge.push"
	// KeyBridgeLocal is the native local-notification port
	// (notify.LocalBridge).
	KeyBridgeLocal Key = "bridge.local"
	// KeyStorageBackend is the persistent key-value store
	// (notify.Store).
	KeyStorageBackend Key = "storage.backend"
	// KeySDKFCM is the Firebase messaging client (fcm.MessagingClient).
	KeySDKFCM Key = "sdk.fcm"
	// KeySDKOneSignal is the OneSignal HTTP client
	// (onesignal.HTTPDoer).
	KeySDKOneSignal Key = "sdk.onesignal"
	// KeyWebToken is the web-surface token source (notify.TokenSource).
	KeyWebToken Key = "push.webtoken"
	// KeyWebPermissions is the browser Notification-API shim
	// (permission.WebPermissions).
	KeyWebPermissions Key = "web.permissions"
	// KeyInAppRenderer is the in-app visual renderer (notify.Renderer).
	KeyInAppRenderer Key = "inapp.renderer"
)

// Factory produces a module handle. Factories run at most once per key;
// both the handle and the error are cached.
type Factory func(ctx context.Context) (any, error)

type outcome struct {
	handle any
	err    error
}

// Registry is the per-kit module registry. The zero value is not usable;
// construct with NewRegistry.
type Registry struct {
	mu        sync.Mutex
	factories map[Key]Factory
	loaded    map[Key]outcome
	logger    *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		factories: make(map[Key]Factory),
		loaded:    make(map[Key]outcome),
		logger:    logger.With("component", "CapabilityRegistry"),
	}
}

// Register installs the factory for a key. Registering after the key has
// been loaded has no effect on the cached outcome.
func (r *Registry) Register(key Key, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[key] = factory
}

// Registered reports whether a factory exists for the key.
func (r *Registry) Registered(key Key) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.factories[key]
	return ok
}

// Load resolves a module, running its factory on first call. The first
// outcome wins: a failed load is cached and not retried.
func (r *Registry) Load(ctx context.Context, key Key) (any, error) {
	r.mu.Lock()
	if out, ok := r.loaded[key]; ok {
		r.mu.Unlock()
		return out.handle, out.err
	}
	factory, ok := r.factories[key]
	r.mu.Unlock()

	var out outcome
	if !ok {
		out = outcome{err: fmt.Errorf("no factory registered for %q", key)}
	} else {
		handle, err := factory(ctx)
		out = outcome{handle: handle, err: err}
		if err != nil {
			r.logger.Debug("module load failed", "module", string(key), "err", err)
		}
	}

	r.mu.Lock()
	// A concurrent loader may have won the race; keep the first outcome.
	if cached, ok := r.loaded[key]; ok {
		out = cached
	} else {
		r.loaded[key] = out
	}
	r.mu.Unlock()

	return out.handle, out.err
}

// Optional resolves a module for callers with a degraded-mode fallback.
// It returns nil on any failure.
func (r *Registry) Optional(ctx context.Context, key Key) any {
	handle, err := r.Load(ctx, key)
	if err != nil {
		return nil
	}
	return handle
}

// Require resolves a module a caller cannot proceed without, converting
// any failure into a *notify.ModuleLoadError naming the missing module.
func (r *Registry) Require(ctx context.Context, key Key) (any, error) {
	handle, err := r.Load(ctx, key)
	if err != nil {
		return nil, &notify.ModuleLoadError{Module: string(key), Err: err}
	}
	if handle == nil {
		return nil, &notify.ModuleLoadError{Module: string(key)}
	}
	return handle, nil
}

// Bridge resolves the optional native bridge core, or nil off-native.
func (r *Registry) Bridge(ctx context.Context) notify.NativeBridge {
	handle := r.Optional(ctx, KeyBridgeCore)
	if handle == nil {
		return nil
	}
	bridge, ok := handle.(notify.NativeBridge)
	if !ok {
		r.logger.Warn("bridge.core module does not implement notify.NativeBridge")
		return nil
	}
	return bridge
}

// Platform reports the runtime surface claimed by the native bridge,
// defaulting to web when no bridge is available.
func (r *Registry) Platform(ctx context.Context) notify.Platform {
	if bridge := r.Bridge(ctx); bridge != nil {
		return bridge.Platform()
	}
	return notify.PlatformWeb
}

// IsNativeRuntime reports whether a native bridge is present and claims a
// native surface.
func (r *Registry) IsNativeRuntime(ctx context.Context) bool {
	return r.Platform(ctx).IsNative()
}
