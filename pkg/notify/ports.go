package notify

import (
	"context"
	"time"
)

// Credentials is the opaque bag handed to the native configuration port.
// Values are injected programmatically at runtime; they are never written
// to native project files.
type Credentials map[string]string

// NativeBridge is the native configuration and permission port. The
// concrete implementation lives outside this module (a native plugin that
// accepts a credentials object and configures the underlying SDK) and is
// registered through the capability registry under "bridge.core".
type NativeBridge interface {
	// Platform reports which native surface the bridge is running on.
	Platform() Platform

	// Configure injects provider credentials into the native SDK. The
	// port accepts a credentials object only; file-based configuration is
	// deliberately not part of the contract.
	Configure(ctx context.Context, creds Credentials) error

	RequestPermission(ctx context.Context) (PermissionStatus, error)
	CheckPermission(ctx context.Context) (PermissionStatus, error)

	// OpenSettings deep-links into the OS notification settings.
	OpenSettings(ctx context.Context) error
}

// PushBridge is the native push-token port, registered under
// "bridge.push".
type PushBridge interface {
	Token(ctx context.Context) (string, error)
	DeleteToken(ctx context.Context) error

	// OnMessage registers an inbound-message callback and returns an
	// idempotent unsubscribe closure.
	OnMessage(cb func(Message)) (unsubscribe func())
}

// LocalBridge is the native local-notification port, registered under
// "bridge.local". It speaks platform-native semantics (channel ids,
// importance levels); the kit translates its own vocabulary to and from
// this port.
type LocalBridge interface {
	Schedule(ctx context.Context, n LocalNotification, fireAt time.Time) error
	Cancel(ctx context.Context, id string) error
	Pending(ctx context.Context) ([]LocalNotification, error)

	CreateChannel(ctx context.Context, ch Channel) error
	DeleteChannel(ctx context.Context, id string) error
	ListChannels(ctx context.Context) ([]Channel, error)
}

// TokenSource supplies a push token on surfaces without a native push
// bridge (the web token source is registered under "push.webtoken").
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Delete(ctx context.Context) error
}

// RenderedHandle is the live visual element for one in-app notification.
// The in-app manager is its sole owner and releases it on dismissal.
type RenderedHandle interface {
	Release(ctx context.Context) error
}

// RenderRequest carries everything the external renderer needs to draw a
// transient in-app element and report interactions back.
type RenderRequest struct {
	ID      string
	Options InAppOptions

	// OnAction is invoked with the action id when the user taps a button.
	OnAction func(actionID string)
	// OnDismiss is invoked when the element is dismissed by the user.
	OnDismiss func()
}

// Renderer renders transient in-app elements. The renderer owns pixels
// only; the kit owns the lifecycle.
type Renderer interface {
	Render(ctx context.Context, req RenderRequest) (RenderedHandle, error)
}

// Store is the persistent key-value collaborator contract. Implementations
// must treat a missing key as (nil, false, nil), never as an error. Key
// prefixing and TTL wrapping are the kit's responsibility, not the
// store's.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Keys(ctx context.Context) ([]string, error)
}
