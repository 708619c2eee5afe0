// Package fcm implements the Firebase Cloud Messaging backend variant.
// Topics are a first-class backend operation here; the dashboard-push
// variant has to emulate them.
package fcm

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"github.com/tinywideclouds/go-notification-kit/internal/capability"
	"github.com/tinywideclouds/go-notification-kit/internal/permission"
	"github.com/tinywideclouds/go-notification-kit/internal/platform"
	"github.com/tinywideclouds/go-notification-kit/internal/provider"
	"github.com/tinywideclouds/go-notification-kit/notifykit/config"
	"github.com/tinywideclouds/go-notification-kit/pkg/notify"
)

// MessagingClient defines the subset of the Firebase Messaging API we
// use. The interface allows mocking the client for unit testing;
// *messaging.Client satisfies it automatically.
type MessagingClient interface {
	SubscribeToTopic(ctx context.Context, tokens []string, topic string) (*messaging.TopicManagementResponse, error)
	UnsubscribeFromTopic(ctx context.Context, tokens []string, topic string) (*messaging.TopicManagementResponse, error)
}

// Provider is the messaging-SDK backend variant.
type Provider struct {
	registry *capability.Registry
	perms    *permission.Manager
	helper   *BridgeHelper
	logger   *slog.Logger

	mu           sync.Mutex
	initialized  bool
	cfg          *notify.FCMConfig
	client       MessagingClient
	token        string
	source       notify.TokenSource
	topics       map[string]struct{}
	stopInbound  func()

	messages  *provider.Listeners[notify.Message]
	refreshes *provider.Listeners[string]
	errs      *provider.Listeners[error]
}

// NewProvider constructs an empty, uninitialized provider.
func NewProvider(registry *capability.Registry, detector *platform.Detector, logger *slog.Logger) *Provider {
	return &Provider{
		registry:  registry,
		perms:     permission.NewManager(registry, detector, logger),
		helper:    NewBridgeHelper(registry, logger),
		logger:    logger.With("component", "FCMProvider"),
		topics:    make(map[string]struct{}),
		messages:  provider.NewListeners[notify.Message](),
		refreshes: provider.NewListeners[string](),
		errs:      provider.NewListeners[error](),
	}
}

func (p *Provider) Kind() notify.ProviderKind { return notify.ProviderFCM }

// Init validates the config, constructs the messaging client through the
// capability registry and, on native runtimes, delegates credential
// injection to the bridge helper. A second Init on a live provider is a
// no-op.
func (p *Provider) Init(ctx context.Context, cfg notify.ProviderConfig) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.initialized {
		p.logger.Warn("provider already initialized; ignoring repeated init")
		return nil
	}

	if err := config.ValidateProviderConfig(cfg); err != nil {
		return err
	}
	fcmCfg := cfg.FCM

	client, err := p.loadClient(ctx, fcmCfg)
	if err != nil {
		return &notify.ProviderInitError{Provider: notify.ProviderFCM, Err: err}
	}

	if p.registry.IsNativeRuntime(ctx) {
		if err := p.helper.InitializeNative(ctx, fcmCfg); err != nil {
			return &notify.ProviderInitError{Provider: notify.ProviderFCM, Err: err}
		}
	} else if fcmCfg.VapidKey != "" {
		// The browser uses this as the push applicationServerKey. Parse it
		// up front so a bad credential fails here with a clear message
		// instead of at subscribe time inside the browser SDK.
		if err := validateVapidKey(fcmCfg.VapidKey); err != nil {
			p.logger.Warn("rejecting malformed vapid key", "err", err)
			return &notify.ConfigError{Provider: notify.ProviderFCM, Fields: []string{"vapid_key"}}
		}
	}

	p.cfg = fcmCfg
	p.client = client
	p.source = p.resolveTokenSource(ctx)
	p.startInbound(ctx)
	p.initialized = true

	p.logger.Info("provider initialized", "native", p.registry.IsNativeRuntime(ctx))
	return nil
}

// loadClient resolves the messaging client: an existing handle wins,
// otherwise the sdk.fcm module is loaded (with a default factory that
// builds the Firebase app from the config's service account).
func (p *Provider) loadClient(ctx context.Context, cfg *notify.FCMConfig) (MessagingClient, error) {
	if cfg.ExistingClient != nil {
		client, ok := cfg.ExistingClient.(MessagingClient)
		if !ok {
			return nil, fmt.Errorf("existing client does not implement fcm.MessagingClient")
		}
		return client, nil
	}

	if !p.registry.Registered(capability.KeySDKFCM) {
		p.registry.Register(capability.KeySDKFCM, func(ctx context.Context) (any, error) {
			return newMessagingClient(ctx, cfg)
		})
	}
	handle, err := p.registry.Require(ctx, capability.KeySDKFCM)
	if err != nil {
		return nil, err
	}
	client, ok := handle.(MessagingClient)
	if !ok {
		return nil, fmt.Errorf("sdk.fcm module does not implement fcm.MessagingClient")
	}
	return client, nil
}

// validateVapidKey checks that a configured VAPID public key is
// base64url text decoding to an uncompressed P-256 point, the shape
// web push subscriptions require.
func validateVapidKey(key string) error {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(key, "="))
	if err != nil {
		return fmt.Errorf("vapid key is not valid base64url: %w", err)
	}
	if len(raw) != 65 || raw[0] != 0x04 {
		return fmt.Errorf("vapid key is not an uncompressed P-256 public key")
	}
	return nil
}

func newMessagingClient(ctx context.Context, cfg *notify.FCMConfig) (MessagingClient, error) {
	opts := []option.ClientOption{}
	if len(cfg.CredentialsJSON) > 0 {
		opts = append(opts, option.WithCredentialsJSON(cfg.CredentialsJSON))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to construct firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to construct messaging client: %w", err)
	}
	return client, nil
}

// resolveTokenSource picks the native push bridge on native surfaces and
// the registered web token source elsewhere. A missing source is not an
// init failure; Token surfaces it when actually asked.
func (p *Provider) resolveTokenSource(ctx context.Context) notify.TokenSource {
	if p.registry.IsNativeRuntime(ctx) {
		if bridge, ok := p.registry.Optional(ctx, capability.KeyBridgePush).(notify.PushBridge); ok {
			return bridgeTokenSource{bridge: bridge}
		}
		return nil
	}
	if source, ok := p.registry.Optional(ctx, capability.KeyWebToken).(notify.TokenSource); ok {
		return source
	}
	return nil
}

// startInbound wires the native push bridge's message stream into the
// provider's listener set. Off-native there is no inbound channel.
func (p *Provider) startInbound(ctx context.Context) {
	bridge, ok := p.registry.Optional(ctx, capability.KeyBridgePush).(notify.PushBridge)
	if !ok {
		return
	}
	p.stopInbound = bridge.OnMessage(func(msg notify.Message) {
		if msg.ReceivedAt.IsZero() {
			msg.ReceivedAt = time.Now()
		}
		p.messages.Emit(msg)
	})
}

// Destroy tears down listeners and deletes any held token. Safe to call
// on a never-initialized provider; after Destroy the provider behaves as
// fresh and may be re-initialized.
func (p *Provider) Destroy(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		return nil
	}

	if p.token != "" && p.source != nil {
		if err := p.source.Delete(ctx); err != nil {
			p.logger.Warn("failed to delete token during destroy", "err", err)
		}
	}
	if p.stopInbound != nil {
		p.stopInbound()
		p.stopInbound = nil
	}
	p.messages.Clear()
	p.refreshes.Clear()
	p.errs.Clear()

	p.initialized = false
	p.cfg = nil
	p.client = nil
	p.source = nil
	p.token = ""
	p.topics = make(map[string]struct{})

	p.logger.Info("provider destroyed")
	return nil
}

func (p *Provider) RequestPermission(ctx context.Context) bool {
	return p.perms.Request(ctx)
}

func (p *Provider) CheckPermission(ctx context.Context) notify.PermissionStatus {
	return p.perms.Check(ctx)
}

// Token returns the held token, requesting a fresh one from the token
// source on first use.
func (p *Provider) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tokenLocked(ctx)
}

func (p *Provider) tokenLocked(ctx context.Context) (string, error) {
	if !p.initialized {
		return "", &notify.TokenError{Op: "get", Err: notify.ErrNotInitialized}
	}
	if p.token != "" {
		return p.token, nil
	}
	if p.source == nil {
		return "", &notify.TokenError{Op: "get", Err: fmt.Errorf(
			"no token source available; register %q on native or %q on web",
			capability.KeyBridgePush, capability.KeyWebToken)}
	}
	token, err := p.source.Token(ctx)
	if err != nil {
		p.errs.Emit(err)
		return "", &notify.TokenError{Op: "get", Err: err}
	}
	p.token = token
	return token, nil
}

// RefreshToken deletes the held token and re-requests, notifying refresh
// listeners on success.
func (p *Provider) RefreshToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	if !p.initialized {
		p.mu.Unlock()
		return "", &notify.TokenError{Op: "refresh", Err: notify.ErrNotInitialized}
	}
	if p.token != "" && p.source != nil {
		if err := p.source.Delete(ctx); err != nil {
			p.logger.Warn("failed to delete token during refresh", "err", err)
		}
		p.token = ""
	}
	token, err := p.tokenLocked(ctx)
	p.mu.Unlock()

	if err != nil {
		// tokenLocked already returns a TokenError; do not stack another.
		return "", err
	}
	p.refreshes.Emit(token)
	return token, nil
}

func (p *Provider) DeleteToken(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		return &notify.TokenError{Op: "delete", Err: notify.ErrNotInitialized}
	}
	if p.token == "" {
		return nil
	}
	if p.source != nil {
		if err := p.source.Delete(ctx); err != nil {
			return &notify.TokenError{Op: "delete", Err: err}
		}
	}
	p.token = ""
	return nil
}

// Subscribe adds the device token to a topic through the backend.
func (p *Provider) Subscribe(ctx context.Context, topic string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.requireTopicIdentity(topic); err != nil {
		return err
	}
	resp, err := p.client.SubscribeToTopic(ctx, []string{p.token}, topic)
	if err := classifyTopicError(resp, err, "subscribe", topic); err != nil {
		p.errs.Emit(err)
		return err
	}
	p.topics[topic] = struct{}{}
	p.logger.Debug("subscribed to topic", "topic", topic)
	return nil
}

// Unsubscribe removes the device token from a topic.
func (p *Provider) Unsubscribe(ctx context.Context, topic string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.requireTopicIdentity(topic); err != nil {
		return err
	}
	resp, err := p.client.UnsubscribeFromTopic(ctx, []string{p.token}, topic)
	if err := classifyTopicError(resp, err, "unsubscribe", topic); err != nil {
		p.errs.Emit(err)
		return err
	}
	delete(p.topics, topic)
	p.logger.Debug("unsubscribed from topic", "topic", topic)
	return nil
}

// Subscriptions lists topics subscribed through this instance. FCM has
// no listing API, so the provider tracks membership itself.
func (p *Provider) Subscriptions(ctx context.Context) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		return nil, notify.ErrNotInitialized
	}
	out := make([]string, 0, len(p.topics))
	for t := range p.topics {
		out = append(out, t)
	}
	sort.Strings(out)
	return out, nil
}

// Send is deliberately unsupported: sending from the client would require
// shipping server credentials inside the app.
func (p *Provider) Send(ctx context.Context, msg notify.Message) error {
	return &notify.UnsupportedOperationError{
		Op:     "send",
		Reason: "client-side sending is disabled for security; send through your backend instead",
	}
}

func (p *Provider) Capabilities(ctx context.Context) notify.ProviderCapabilities {
	return notify.ProviderCapabilities{
		NativeTopics: true,
		RichMedia:    true,
		Analytics:    true,
		Badge:        true,
	}
}

func (p *Provider) OnMessage(cb func(notify.Message)) func() {
	return p.messages.Add(cb)
}

func (p *Provider) OnTokenRefresh(cb func(string)) func() {
	return p.refreshes.Add(cb)
}

func (p *Provider) OnError(cb func(error)) func() {
	return p.errs.Add(cb)
}

func (p *Provider) requireTopicIdentity(topic string) error {
	if !p.initialized {
		return &notify.SubscriptionError{Topic: topic, Reason: "provider is not initialized"}
	}
	if p.token == "" {
		return &notify.SubscriptionError{Topic: topic,
			Reason: "no device token held; topic operations are meaningless without device identity"}
	}
	return nil
}

// classifyTopicError folds transport and per-token failures into one
// error, treating backend-rejected arguments distinctly from transient
// transport problems.
func classifyTopicError(resp *messaging.TopicManagementResponse, err error, op, topic string) error {
	if err != nil {
		if messaging.IsInvalidArgument(err) {
			return fmt.Errorf("fcm rejected %s for topic %q as invalid: %w", op, topic, err)
		}
		return fmt.Errorf("fcm %s transport failed: %w", op, err)
	}
	if resp != nil && resp.FailureCount > 0 {
		reason := "unknown"
		if len(resp.Errors) > 0 {
			reason = resp.Errors[0].Reason
		}
		return fmt.Errorf("fcm %s for topic %q failed for %d token(s): %s", op, topic, resp.FailureCount, reason)
	}
	return nil
}

// bridgeTokenSource adapts the native push bridge onto the TokenSource
// shape.
type bridgeTokenSource struct {
	bridge notify.PushBridge
}

func (s bridgeTokenSource) Token(ctx context.Context) (string, error) {
	return s.bridge.Token(ctx)
}

func (s bridgeTokenSource) Delete(ctx context.Context) error {
	return s.bridge.DeleteToken(ctx)
}
