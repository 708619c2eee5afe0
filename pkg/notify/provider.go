package notify

import (
	"context"
)

// ProviderKind identifies a backend variant.
type ProviderKind string

const (
	ProviderFCM       ProviderKind = "fcm"
	ProviderOneSignal ProviderKind = "onesignal"
)

// FCMConfig is the credential bag for the Firebase messaging provider.
// When ExistingClient holds an already-constructed messaging client the
// field validation is bypassed entirely.
type FCMConfig struct {
	APIKey            string `yaml:"api_key" validate:"required"`
	AuthDomain        string `yaml:"auth_domain"`
	ProjectID         string `yaml:"project_id" validate:"required"`
	StorageBucket     string `yaml:"storage_bucket"`
	MessagingSenderID string `yaml:"messaging_sender_id" validate:"required"`
	AppID             string `yaml:"app_id" validate:"required"`
	MeasurementID     string `yaml:"measurement_id"`

	// VapidKey is the web push application server key, required only on
	// the web surface.
	VapidKey string `yaml:"vapid_key"`

	// CredentialsJSON is the service account used to construct the
	// server-side SDK client for topic management.
	CredentialsJSON []byte `yaml:"-"`

	// APNsP8Key, APNsKeyID and APNsTeamID configure the iOS path. The P8
	// key is validated before runtime injection, never written to native
	// project files.
	APNsP8Key  string `yaml:"apns_p8_key"`
	APNsKeyID  string `yaml:"apns_key_id"`
	APNsTeamID string `yaml:"apns_team_id"`

	// ExistingClient bypasses validation and SDK construction for callers
	// who already hold an initialized messaging client.
	ExistingClient any `yaml:"-"`
}

// OneSignalConfig is the credential bag for the OneSignal provider.
type OneSignalConfig struct {
	AppID string `yaml:"app_id" validate:"required"`
	// APIKey is the REST key, only needed for tag listing.
	APIKey string `yaml:"api_key"`
	// SafariWebID is optional and web-only.
	SafariWebID string `yaml:"safari_web_id"`
	// BaseURL overrides the API endpoint, mainly for tests.
	BaseURL string `yaml:"base_url"`

	// ExistingClient bypasses validation and client construction.
	ExistingClient any `yaml:"-"`
}

// ProviderConfig is the tagged union of per-variant credential bags.
// Exactly the bag matching the chosen kind must be populated.
type ProviderConfig struct {
	Kind      ProviderKind     `yaml:"kind"`
	FCM       *FCMConfig       `yaml:"fcm,omitempty"`
	OneSignal *OneSignalConfig `yaml:"onesignal,omitempty"`
}

// Provider is the uniform contract both backend variants implement. It
// normalizes permission requests, token lifecycle, topic subscription and
// inbound-message delivery into the shared vocabulary.
//
// Lifecycle: constructed empty, Init populates the backend handle and
// starts listening, Destroy flushes listeners, deletes any held token and
// releases the handle. Re-Init after Destroy is legal and behaves as a
// fresh instance.
type Provider interface {
	// Kind identifies the backend variant.
	Kind() ProviderKind

	// Init validates the config, loads the backend SDK and starts
	// listening. On native runtimes it delegates credential injection to
	// the variant's bridge helper. Fails with *ProviderInitError or
	// *ConfigError.
	Init(ctx context.Context, cfg ProviderConfig) error

	// Destroy tears down listeners and deletes any held token. Safe to
	// call when never initialized.
	Destroy(ctx context.Context) error

	// RequestPermission returns false rather than failing, so callers can
	// treat "unsupported" and "denied" uniformly.
	RequestPermission(ctx context.Context) bool

	// CheckPermission never fails; internal failures resolve to denied.
	CheckPermission(ctx context.Context) PermissionStatus

	// Token returns the device token, requesting one if none is held.
	// Fails with *TokenError when the backend is not initialized or
	// rejects the request.
	Token(ctx context.Context) (string, error)

	// RefreshToken deletes the held token (if any) and re-requests.
	RefreshToken(ctx context.Context) (string, error)

	// DeleteToken invalidates and forgets the held token.
	DeleteToken(ctx context.Context) error

	// Subscribe and Unsubscribe manage topic membership. Both fail with
	// *SubscriptionError when no token is held; topic operations are
	// meaningless without device identity.
	Subscribe(ctx context.Context, topic string) error
	Unsubscribe(ctx context.Context, topic string) error

	// Subscriptions lists the topics the device is subscribed to.
	Subscriptions(ctx context.Context) ([]string, error)

	// Send always fails with *UnsupportedOperationError on both variants:
	// client-side sending would require server credentials in the app.
	Send(ctx context.Context, msg Message) error

	// Capabilities declares the variant's optional feature support.
	Capabilities(ctx context.Context) ProviderCapabilities

	// Listener registration. Each returned closure removes exactly the
	// registered callback and is a no-op on a second call.
	OnMessage(cb func(Message)) (unsubscribe func())
	OnTokenRefresh(cb func(token string)) (unsubscribe func())
	OnError(cb func(err error)) (unsubscribe func())
}
