// Package onesignal implements the dashboard-push backend variant over
// the OneSignal REST API. The backend has no topic primitive, so topic
// membership is emulated with prefixed player tags.
package onesignal

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tinywideclouds/go-notification-kit/internal/capability"
	"github.com/tinywideclouds/go-notification-kit/internal/permission"
	"github.com/tinywideclouds/go-notification-kit/internal/platform"
	"github.com/tinywideclouds/go-notification-kit/internal/provider"
	"github.com/tinywideclouds/go-notification-kit/notifykit/config"
	"github.com/tinywideclouds/go-notification-kit/pkg/notify"
)

// TagPrefix marks the player tags that encode topic membership. Tags
// without the prefix belong to the application and are never touched.
const TagPrefix = "topic_"

// Provider is the OneSignal backend variant.
type Provider struct {
	registry *capability.Registry
	detector *platform.Detector
	perms    *permission.Manager
	helper   *BridgeHelper
	logger   *slog.Logger

	mu          sync.Mutex
	initialized bool
	cfg         *notify.OneSignalConfig
	client      *restClient
	playerID    string
	source      notify.TokenSource
	topics      map[string]struct{}
	stopInbound func()

	messages  *provider.Listeners[notify.Message]
	refreshes *provider.Listeners[string]
	errs      *provider.Listeners[error]
}

// NewProvider constructs an empty, uninitialized provider.
func NewProvider(registry *capability.Registry, detector *platform.Detector, logger *slog.Logger) *Provider {
	return &Provider{
		registry:  registry,
		detector:  detector,
		perms:     permission.NewManager(registry, detector, logger),
		helper:    NewBridgeHelper(registry, logger),
		logger:    logger.With("component", "OneSignalProvider"),
		topics:    make(map[string]struct{}),
		messages:  provider.NewListeners[notify.Message](),
		refreshes: provider.NewListeners[string](),
		errs:      provider.NewListeners[error](),
	}
}

func (p *Provider) Kind() notify.ProviderKind { return notify.ProviderOneSignal }

// Init validates the config and constructs the REST client. On native
// runtimes the app id is handed to the SDK through the bridge helper. A
// second Init on a live provider is a no-op.
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
	osCfg := cfg.OneSignal

	client, err := p.loadClient(osCfg)
	if err != nil {
		return &notify.ProviderInitError{Provider: notify.ProviderOneSignal, Err: err}
	}

	if p.registry.IsNativeRuntime(ctx) {
		if err := p.helper.InitializeNative(ctx, osCfg); err != nil {
			return &notify.ProviderInitError{Provider: notify.ProviderOneSignal, Err: err}
		}
	}

	p.cfg = osCfg
	p.client = client
	p.source = p.resolveTokenSource(ctx)
	p.startInbound(ctx)
	p.initialized = true

	p.logger.Info("provider initialized", "native", p.registry.IsNativeRuntime(ctx))
	return nil
}

func (p *Provider) loadClient(cfg *notify.OneSignalConfig) (*restClient, error) {
	if cfg.ExistingClient != nil {
		doer, ok := cfg.ExistingClient.(HTTPDoer)
		if !ok {
			return nil, fmt.Errorf("existing client does not implement onesignal.HTTPDoer")
		}
		return newRestClient(doer, cfg.BaseURL, cfg.AppID, cfg.APIKey), nil
	}
	return newRestClient(nil, cfg.BaseURL, cfg.AppID, cfg.APIKey), nil
}

// resolveTokenSource finds whatever can supply the underlying push
// identifier. It is optional here: OneSignal can register an anonymous
// player without one.
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

// Destroy tears down listeners and forgets the player registration. Safe
// to call on a never-initialized provider.
func (p *Provider) Destroy(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		return nil
	}

	if p.playerID != "" && p.cfg.APIKey != "" {
		if err := p.client.deletePlayer(ctx, p.playerID); err != nil {
			p.logger.Warn("failed to delete player during destroy", "err", err)
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
	p.playerID = ""
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

// Token returns the player id, registering the device with the backend on
// first use. The player id is the token in this variant; the raw push
// identifier stays an internal detail.
func (p *Provider) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tokenLocked(ctx)
}

func (p *Provider) tokenLocked(ctx context.Context) (string, error) {
	if !p.initialized {
		return "", &notify.TokenError{Op: "get", Err: notify.ErrNotInitialized}
	}
	if p.playerID != "" {
		return p.playerID, nil
	}

	identifier := ""
	if p.source != nil {
		raw, err := p.source.Token(ctx)
		if err != nil {
			p.logger.Warn("push identifier unavailable; registering anonymous player", "err", err)
		} else {
			identifier = raw
		}
	}

	id, err := p.client.registerPlayer(ctx, p.deviceType(ctx), identifier)
	if err != nil {
		p.errs.Emit(err)
		return "", &notify.TokenError{Op: "get", Err: err}
	}
	p.playerID = id
	return id, nil
}

func (p *Provider) deviceType(ctx context.Context) int {
	switch p.registry.Platform(ctx) {
	case notify.PlatformIOS:
		return deviceTypeIOS
	case notify.PlatformAndroid:
		return deviceTypeAndroid
	default:
		return deviceTypeChromeWeb
	}
}

// RefreshToken discards the player registration and re-registers,
// notifying refresh listeners on success.
func (p *Provider) RefreshToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	if !p.initialized {
		p.mu.Unlock()
		return "", &notify.TokenError{Op: "refresh", Err: notify.ErrNotInitialized}
	}
	if p.playerID != "" && p.cfg.APIKey != "" {
		if err := p.client.deletePlayer(ctx, p.playerID); err != nil {
			p.logger.Warn("failed to delete player during refresh", "err", err)
		}
	}
	p.playerID = ""
	token, err := p.tokenLocked(ctx)
	p.mu.Unlock()

	if err != nil {
		return "", &notify.TokenError{Op: "refresh", Err: err}
	}
	p.refreshes.Emit(token)
	return token, nil
}

// DeleteToken removes the player record when the REST key allows it and
// forgets the registration either way.
func (p *Provider) DeleteToken(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		return &notify.TokenError{Op: "delete", Err: notify.ErrNotInitialized}
	}
	if p.playerID == "" {
		return nil
	}
	if p.cfg.APIKey != "" {
		if err := p.client.deletePlayer(ctx, p.playerID); err != nil {
			return &notify.TokenError{Op: "delete", Err: err}
		}
	}
	p.playerID = ""
	return nil
}

// Subscribe emulates topic membership by setting a prefixed tag on the
// player record.
func (p *Provider) Subscribe(ctx context.Context, topic string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.requireTopicIdentity(topic); err != nil {
		return err
	}
	tags := map[string]string{TagPrefix + topic: "true"}
	if err := p.client.updateTags(ctx, p.playerID, tags); err != nil {
		err = &notify.SubscriptionError{Topic: topic, Reason: err.Error()}
		p.errs.Emit(err)
		return err
	}
	p.topics[topic] = struct{}{}
	p.logger.Debug("subscribed to topic", "topic", topic)
	return nil
}

// Unsubscribe removes the emulated membership tag. An empty tag value
// deletes the tag on the backend.
func (p *Provider) Unsubscribe(ctx context.Context, topic string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.requireTopicIdentity(topic); err != nil {
		return err
	}
	tags := map[string]string{TagPrefix + topic: ""}
	if err := p.client.updateTags(ctx, p.playerID, tags); err != nil {
		err = &notify.SubscriptionError{Topic: topic, Reason: err.Error()}
		p.errs.Emit(err)
		return err
	}
	delete(p.topics, topic)
	p.logger.Debug("unsubscribed from topic", "topic", topic)
	return nil
}

// Subscriptions lists emulated topic memberships. With a REST key the
// backend record is authoritative; without one the provider falls back to
// what it tracked locally. Application tags without the prefix are never
// reported.
func (p *Provider) Subscriptions(ctx context.Context) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		return nil, notify.ErrNotInitialized
	}

	if p.cfg.APIKey != "" && p.playerID != "" {
		rec, err := p.client.getPlayer(ctx, p.playerID)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch player record: %w", err)
		}
		out := make([]string, 0, len(rec.Tags))
		for tag, value := range rec.Tags {
			if strings.HasPrefix(tag, TagPrefix) && value != "" {
				out = append(out, strings.TrimPrefix(tag, TagPrefix))
			}
		}
		sort.Strings(out)
		return out, nil
	}

	out := make([]string, 0, len(p.topics))
	for t := range p.topics {
		out = append(out, t)
	}
	sort.Strings(out)
	return out, nil
}

// Send is deliberately unsupported: sending from the client would require
// shipping the REST key inside the app.
func (p *Provider) Send(ctx context.Context, msg notify.Message) error {
	return &notify.UnsupportedOperationError{
		Op:     "send",
		Reason: "client-side sending is disabled for security; send through your backend instead",
	}
}

func (p *Provider) Capabilities(ctx context.Context) notify.ProviderCapabilities {
	return notify.ProviderCapabilities{
		NativeTopics: false,
		RichMedia:    true,
		Scheduling:   true,
		Analytics:    true,
		Segmentation: true,
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
	if p.playerID == "" {
		return &notify.SubscriptionError{Topic: topic,
			Reason: "no player registered; topic operations are meaningless without device identity"}
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
