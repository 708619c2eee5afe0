// Package notifykit is the coordinator tying the provider backends,
// platform detection, permissions, local scheduling, in-app display and
// persistent state into one façade with a single lifecycle.
package notifykit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tinywideclouds/go-notification-kit/internal/capability"
	"github.com/tinywideclouds/go-notification-kit/internal/inapp"
	"github.com/tinywideclouds/go-notification-kit/internal/metrics"
	"github.com/tinywideclouds/go-notification-kit/internal/permission"
	"github.com/tinywideclouds/go-notification-kit/internal/platform"
	"github.com/tinywideclouds/go-notification-kit/internal/provider/fcm"
	"github.com/tinywideclouds/go-notification-kit/internal/provider/onesignal"
	"github.com/tinywideclouds/go-notification-kit/internal/schedule"
	"github.com/tinywideclouds/go-notification-kit/internal/storage"
	"github.com/tinywideclouds/go-notification-kit/notifykit/config"
	"github.com/tinywideclouds/go-notification-kit/pkg/notify"
)

// Storage keys the kit persists under its prefix.
const (
	stateKeyToken         = "last_token"
	stateKeySubscriptions = "subscriptions"
)

// Kit is the single entry point. Construct with New, then Init before
// anything else; every operation except Platform and listener management
// fails with ErrNotInitialized until Init succeeds.
type Kit struct {
	cfg      config.Config
	registry *capability.Registry
	detector *platform.Detector
	perms    *permission.Manager
	logger   *slog.Logger
	metrics  *metrics.KitMetrics
	bus      *eventBus

	mu            sync.Mutex
	initialized   bool
	pending       chan struct{}
	initErr       error
	provider      notify.Provider
	injected      notify.Provider
	store         *storage.PrefixedStore
	inapp         *inapp.Manager
	providerUnsub []func()
}

// Option configures a Kit at construction time.
type Option func(*Kit)

// WithLogger replaces the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(k *Kit) { k.logger = logger }
}

// WithRegistry supplies a pre-populated capability registry. The host
// registers its native bridges and optional modules here before Init.
func WithRegistry(reg *capability.Registry) Option {
	return func(k *Kit) { k.registry = reg }
}

// WithPrometheus registers the kit's metrics on the given registry.
func WithPrometheus(reg *prometheus.Registry) Option {
	return func(k *Kit) {
		m, err := metrics.NewKitMetrics(reg)
		if err != nil {
			k.logger.Warn("failed to register metrics; continuing without", "err", err)
			return
		}
		k.metrics = m
	}
}

// WithProvider injects an already-constructed backend, bypassing the
// kind-based construction in Init. Mainly for tests and embedders with
// custom backends.
func WithProvider(p notify.Provider) Option {
	return func(k *Kit) { k.injected = p }
}

// New constructs an uninitialized kit around the given config.
func New(cfg config.Config, opts ...Option) *Kit {
	k := &Kit{cfg: cfg}
	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	// The default logger must exist before options run; WithPrometheus
	// logs through it when registration fails.
	k.logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	for _, opt := range opts {
		opt(k)
	}
	if k.registry == nil {
		k.registry = capability.NewRegistry(k.logger)
	}
	k.detector = platform.NewDetector(k.registry, k.logger)
	k.perms = permission.NewManager(k.registry, k.detector, k.logger)
	k.bus = newEventBus(k.logger, k.metrics)
	k.inapp = inapp.NewManager(k.registry, cfg.InAppDefaults, k.onInAppAction, k.logger)

	if cfg.AutoInit {
		// Failures surface through the error event stream; callers that
		// need the error synchronously call Init themselves.
		go func() {
			if err := k.Init(context.Background()); err != nil {
				k.logger.Error("auto init failed", "err", err)
			}
		}()
	}
	return k
}

// Init brings the kit up: config audit, backend construction and
// initialization, event wiring and state store resolution. A second Init
// on a live kit is a no-op; concurrent callers of a first Init share one
// attempt and its outcome.
func (k *Kit) Init(ctx context.Context) error {
	k.mu.Lock()
	if k.initialized {
		k.mu.Unlock()
		k.logger.Warn("kit already initialized; ignoring repeated init")
		k.record("init", "already_initialized")
		return nil
	}
	if k.pending != nil {
		ch := k.pending
		k.mu.Unlock()
		<-ch
		k.mu.Lock()
		err := k.initErr
		k.mu.Unlock()
		return err
	}
	ch := make(chan struct{})
	k.pending = ch
	k.mu.Unlock()

	started := time.Now()
	err := k.doInit(ctx)

	k.mu.Lock()
	k.initErr = err
	k.initialized = err == nil
	k.pending = nil
	k.mu.Unlock()
	close(ch)

	providerKind := string(k.cfg.Provider.Kind)
	if err != nil {
		if k.metrics != nil {
			k.metrics.RecordInit(providerKind, "error", time.Since(started))
		}
		k.bus.emit(notify.NewEvent(notify.EventError, notify.ErrorPayload{Op: "init", Err: err}))
		return err
	}
	if k.metrics != nil {
		k.metrics.RecordInit(providerKind, "success", time.Since(started))
	}

	info := k.detector.Detect(ctx)
	k.bus.emit(notify.NewEvent(notify.EventReady, notify.ReadyPayload{
		Platform:     info.Platform,
		Capabilities: k.Capabilities(ctx),
	}))
	return nil
}

func (k *Kit) doInit(ctx context.Context) error {
	config.SecurityAudit(k.cfg.Provider, k.cfg.Production, k.logger)

	prov := k.injected
	if prov == nil {
		switch k.cfg.Provider.Kind {
		case notify.ProviderFCM:
			prov = fcm.NewProvider(k.registry, k.detector, k.logger)
		case notify.ProviderOneSignal:
			prov = onesignal.NewProvider(k.registry, k.detector, k.logger)
		default:
			return &notify.ConfigError{Provider: k.cfg.Provider.Kind, Fields: []string{"kind"}}
		}
	}

	if err := prov.Init(ctx, k.cfg.Provider); err != nil {
		return err
	}

	k.mu.Lock()
	k.provider = prov
	k.store = k.resolveStore(ctx)
	k.providerUnsub = []func(){
		prov.OnMessage(func(msg notify.Message) {
			k.bus.emit(notify.NewEvent(notify.EventNotificationReceived, msg))
		}),
		prov.OnTokenRefresh(func(token string) {
			k.persistToken(token)
			k.bus.emit(notify.NewEvent(notify.EventTokenRefreshed, notify.TokenPayload{Token: token}))
		}),
		prov.OnError(func(err error) {
			k.bus.emit(notify.NewEvent(notify.EventError, notify.ErrorPayload{Op: "provider", Err: err}))
		}),
	}
	k.mu.Unlock()

	k.logger.Info("kit initialized",
		"provider", prov.Kind(),
		"platform", k.detector.Detect(ctx).Platform)
	return nil
}

// resolveStore picks the persistent backend: a registered storage module
// wins, then redis when configured, then the in-memory fallback.
func (k *Kit) resolveStore(ctx context.Context) *storage.PrefixedStore {
	var backend notify.Store
	if handle, ok := k.registry.Optional(ctx, capability.KeyStorageBackend).(notify.Store); ok {
		backend = handle
	} else if k.cfg.Storage.Redis.Enabled {
		rs, err := storage.NewRedisStore(k.cfg.Storage.Redis.Addr, k.cfg.Storage.Redis.Password, k.cfg.Storage.Redis.DB)
		if err != nil {
			k.logger.Warn("redis unavailable; falling back to in-memory state", "err", err)
		} else {
			backend = rs
		}
	}
	if backend == nil {
		backend = storage.NewMemoryStore()
	}
	return storage.NewPrefixedStore(backend, k.cfg.Storage.Prefix, k.cfg.Storage.TTL)
}

// Destroy tears the kit down: provider teardown, in-app dismissal and
// listener removal. The kit may be re-initialized afterwards.
func (k *Kit) Destroy(ctx context.Context) error {
	k.mu.Lock()
	if !k.initialized {
		k.mu.Unlock()
		return nil
	}
	prov := k.provider
	unsubs := k.providerUnsub
	k.initialized = false
	k.provider = nil
	k.providerUnsub = nil
	k.store = nil
	k.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
	if err := k.inapp.DismissAll(ctx); err != nil {
		k.logger.Warn("failed to dismiss in-app notifications during destroy", "err", err)
	}
	if k.metrics != nil {
		k.metrics.InAppActive.Set(0)
	}
	k.bus.clear()

	if err := prov.Destroy(ctx); err != nil {
		return fmt.Errorf("provider teardown failed: %w", err)
	}
	k.logger.Info("kit destroyed")
	return nil
}

// IsInitialized reports whether Init has completed successfully.
func (k *Kit) IsInitialized() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.initialized
}

// Platform reports the detected surface. Available before Init.
func (k *Kit) Platform(ctx context.Context) platform.Info {
	return k.detector.Detect(ctx)
}

// Capabilities reports the platform feature table, narrowed and extended
// by the provider's declared capabilities once initialized.
func (k *Kit) Capabilities(ctx context.Context) notify.Capabilities {
	base := k.detector.Capabilities(ctx)
	k.mu.Lock()
	prov := k.provider
	k.mu.Unlock()
	if prov == nil {
		return base
	}
	return platform.Merge(base, prov.Capabilities(ctx))
}

// On registers an event listener and returns an idempotent unsubscribe
// closure. Available before Init so no early event is missed.
func (k *Kit) On(t notify.EventType, cb func(notify.Event)) func() {
	return k.bus.on(t, cb)
}

// Off removes every listener for the given event type.
func (k *Kit) Off(t notify.EventType) {
	k.bus.off(t)
}

func (k *Kit) activeProvider() (notify.Provider, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if !k.initialized || k.provider == nil {
		return nil, notify.ErrNotInitialized
	}
	return k.provider, nil
}

// RequestPermission prompts for notification permission and reports the
// resulting status. Permission denial is an answer, not an error.
func (k *Kit) RequestPermission(ctx context.Context) (notify.PermissionStatus, error) {
	prov, err := k.activeProvider()
	if err != nil {
		return notify.PermissionUnknown, err
	}
	granted := prov.RequestPermission(ctx)
	status := notify.PermissionDenied
	if granted {
		status = notify.PermissionGranted
	} else if k.metrics != nil {
		k.metrics.PermissionDenied.Inc()
	}
	k.record("request_permission", "success")
	k.bus.emit(notify.NewEvent(notify.EventPermissionChanged, notify.PermissionPayload{Status: status}))
	return status, nil
}

// CheckPermission reports the current permission status without
// prompting.
func (k *Kit) CheckPermission(ctx context.Context) (notify.PermissionStatus, error) {
	prov, err := k.activeProvider()
	if err != nil {
		return notify.PermissionUnknown, err
	}
	return prov.CheckPermission(ctx), nil
}

// OpenSettings deep-links to the OS notification settings on native
// surfaces.
func (k *Kit) OpenSettings(ctx context.Context) error {
	if _, err := k.activeProvider(); err != nil {
		return err
	}
	return k.perms.OpenSettings(ctx)
}

// Token returns the device push identity, obtaining one on first use.
func (k *Kit) Token(ctx context.Context) (string, error) {
	prov, err := k.activeProvider()
	if err != nil {
		return "", err
	}
	token, err := prov.Token(ctx)
	if err != nil {
		k.record("get_token", "error")
		return "", err
	}
	k.record("get_token", "success")
	k.persistToken(token)
	k.bus.emit(notify.NewEvent(notify.EventTokenReceived, notify.TokenPayload{Token: token}))
	return token, nil
}

// RefreshToken forces a new push identity. The refreshed event is emitted
// through the provider's refresh stream.
func (k *Kit) RefreshToken(ctx context.Context) (string, error) {
	prov, err := k.activeProvider()
	if err != nil {
		return "", err
	}
	token, err := prov.RefreshToken(ctx)
	if err != nil {
		k.record("refresh_token", "error")
		return "", err
	}
	k.record("refresh_token", "success")
	return token, nil
}

// DeleteToken invalidates the current push identity.
func (k *Kit) DeleteToken(ctx context.Context) error {
	prov, err := k.activeProvider()
	if err != nil {
		return err
	}
	if err := prov.DeleteToken(ctx); err != nil {
		k.record("delete_token", "error")
		return err
	}
	k.record("delete_token", "success")
	k.forgetState(ctx, stateKeyToken)
	return nil
}

// Subscribe adds the device to a topic and persists the membership list.
func (k *Kit) Subscribe(ctx context.Context, topic string) error {
	prov, err := k.activeProvider()
	if err != nil {
		return err
	}
	if err := prov.Subscribe(ctx, topic); err != nil {
		k.record("subscribe", "error")
		return err
	}
	k.record("subscribe", "success")
	k.persistSubscriptions(ctx, prov)
	k.bus.emit(notify.NewEvent(notify.EventSubscribed, notify.TopicPayload{Topic: topic}))
	return nil
}

// Unsubscribe removes the device from a topic.
func (k *Kit) Unsubscribe(ctx context.Context, topic string) error {
	prov, err := k.activeProvider()
	if err != nil {
		return err
	}
	if err := prov.Unsubscribe(ctx, topic); err != nil {
		k.record("unsubscribe", "error")
		return err
	}
	k.record("unsubscribe", "success")
	k.persistSubscriptions(ctx, prov)
	k.bus.emit(notify.NewEvent(notify.EventUnsubscribed, notify.TopicPayload{Topic: topic}))
	return nil
}

// GetSubscriptions lists the topics this device belongs to.
func (k *Kit) GetSubscriptions(ctx context.Context) ([]string, error) {
	prov, err := k.activeProvider()
	if err != nil {
		return nil, err
	}
	return prov.Subscriptions(ctx)
}

// SendNotification is deliberately unsupported on every backend: a client
// holding send credentials is a credential leak. The error carries the
// guidance; nothing is ever sent.
func (k *Kit) SendNotification(ctx context.Context, msg notify.Message) error {
	prov, err := k.activeProvider()
	if err != nil {
		return err
	}
	err = prov.Send(ctx, msg)
	k.record("send", "unsupported")
	return err
}

// ScheduleLocalNotification validates the descriptor, computes its next
// fire time and hands it to the native scheduler. Surfaces without local
// scheduling reject the call as unsupported.
func (k *Kit) ScheduleLocalNotification(ctx context.Context, n notify.LocalNotification) (time.Time, error) {
	if _, err := k.activeProvider(); err != nil {
		return time.Time{}, err
	}
	if !k.detector.Capabilities(ctx).LocalSchedule {
		k.record("schedule_local", "unsupported")
		return time.Time{}, &notify.UnsupportedOperationError{
			Op:     "schedule_local",
			Reason: fmt.Sprintf("local scheduling is not available on %s", k.detector.Detect(ctx).Platform),
		}
	}

	now := time.Now()
	if err := schedule.Validate(n.Schedule, now).Err(); err != nil {
		k.record("schedule_local", "error")
		return time.Time{}, err
	}
	fireAt, err := schedule.NextFireTime(n.Schedule, now)
	if err != nil {
		k.record("schedule_local", "error")
		return time.Time{}, err
	}

	bridge, err := k.localBridge(ctx)
	if err != nil {
		k.record("schedule_local", "error")
		return time.Time{}, err
	}
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if err := bridge.Schedule(ctx, n, fireAt); err != nil {
		k.record("schedule_local", "error")
		return time.Time{}, fmt.Errorf("native scheduler rejected notification %q: %w", n.ID, err)
	}

	k.record("schedule_local", "success")
	if k.metrics != nil {
		k.metrics.ScheduledLocal.Inc()
	}
	k.bus.emit(notify.NewEvent(notify.EventNotificationScheduled, notify.SchedulePayload{
		NotificationID: n.ID,
		FireAt:         &fireAt,
	}))
	return fireAt, nil
}

// CancelLocalNotification removes a pending local notification.
func (k *Kit) CancelLocalNotification(ctx context.Context, id string) error {
	if _, err := k.activeProvider(); err != nil {
		return err
	}
	bridge, err := k.localBridge(ctx)
	if err != nil {
		return err
	}
	if err := bridge.Cancel(ctx, id); err != nil {
		k.record("cancel_local", "error")
		return err
	}
	k.record("cancel_local", "success")
	k.bus.emit(notify.NewEvent(notify.EventNotificationCancelled, notify.SchedulePayload{
		NotificationID: id,
	}))
	return nil
}

// PendingLocalNotifications lists notifications the native scheduler
// still holds.
func (k *Kit) PendingLocalNotifications(ctx context.Context) ([]notify.LocalNotification, error) {
	if _, err := k.activeProvider(); err != nil {
		return nil, err
	}
	bridge, err := k.localBridge(ctx)
	if err != nil {
		return nil, err
	}
	return bridge.Pending(ctx)
}

// ShowInApp displays a transient in-app notification and returns its id.
func (k *Kit) ShowInApp(ctx context.Context, opts notify.InAppOptions) (string, error) {
	if _, err := k.activeProvider(); err != nil {
		return "", err
	}
	id, err := k.inapp.Show(ctx, opts)
	if err != nil {
		k.record("show_inapp", "error")
		return "", err
	}
	k.record("show_inapp", "success")
	k.syncInAppGauge()
	return id, nil
}

// DismissInApp dismisses one in-app notification; unknown ids are a
// silent no-op.
func (k *Kit) DismissInApp(ctx context.Context, id string) error {
	if _, err := k.activeProvider(); err != nil {
		return err
	}
	if err := k.inapp.Dismiss(ctx, id); err != nil {
		return err
	}
	k.syncInAppGauge()
	return nil
}

// DismissAllInApp dismisses every active in-app notification.
func (k *Kit) DismissAllInApp(ctx context.Context) error {
	if _, err := k.activeProvider(); err != nil {
		return err
	}
	if err := k.inapp.DismissAll(ctx); err != nil {
		return err
	}
	k.syncInAppGauge()
	return nil
}

// ActiveInApp lists currently displayed in-app notifications.
func (k *Kit) ActiveInApp() []inapp.Snapshot {
	return k.inapp.Active()
}

// CreateChannel creates an Android notification channel. On every other
// surface the call is a silent no-op.
func (k *Kit) CreateChannel(ctx context.Context, ch notify.Channel) error {
	if _, err := k.activeProvider(); err != nil {
		return err
	}
	if !k.detector.Capabilities(ctx).Channels {
		k.logger.Debug("channels unsupported on this surface; ignoring create", "channel", ch.ID)
		return nil
	}
	bridge, err := k.localBridge(ctx)
	if err != nil {
		return err
	}
	if err := bridge.CreateChannel(ctx, ch); err != nil {
		k.record("create_channel", "error")
		return err
	}
	k.record("create_channel", "success")
	k.bus.emit(notify.NewEvent(notify.EventChannelCreated, notify.ChannelPayload{ChannelID: ch.ID}))
	return nil
}

// DeleteChannel deletes an Android notification channel; a silent no-op
// elsewhere.
func (k *Kit) DeleteChannel(ctx context.Context, id string) error {
	if _, err := k.activeProvider(); err != nil {
		return err
	}
	if !k.detector.Capabilities(ctx).Channels {
		k.logger.Debug("channels unsupported on this surface; ignoring delete", "channel", id)
		return nil
	}
	bridge, err := k.localBridge(ctx)
	if err != nil {
		return err
	}
	if err := bridge.DeleteChannel(ctx, id); err != nil {
		k.record("delete_channel", "error")
		return err
	}
	k.record("delete_channel", "success")
	k.bus.emit(notify.NewEvent(notify.EventChannelDeleted, notify.ChannelPayload{ChannelID: id}))
	return nil
}

// ListChannels lists Android notification channels; empty elsewhere.
func (k *Kit) ListChannels(ctx context.Context) ([]notify.Channel, error) {
	if _, err := k.activeProvider(); err != nil {
		return nil, err
	}
	if !k.detector.Capabilities(ctx).Channels {
		return []notify.Channel{}, nil
	}
	bridge, err := k.localBridge(ctx)
	if err != nil {
		return nil, err
	}
	return bridge.ListChannels(ctx)
}

func (k *Kit) localBridge(ctx context.Context) (notify.LocalBridge, error) {
	handle, err := k.registry.Require(ctx, capability.KeyBridgeLocal)
	if err != nil {
		return nil, err
	}
	bridge, ok := handle.(notify.LocalBridge)
	if !ok {
		return nil, &notify.ModuleLoadError{Module: string(capability.KeyBridgeLocal)}
	}
	return bridge, nil
}

// onInAppAction routes renderer action callbacks into the event stream.
func (k *Kit) onInAppAction(notificationID, actionID string) {
	k.syncInAppGauge()
	k.bus.emit(notify.NewEvent(notify.EventNotificationActionPerformed, notify.ActionPayload{
		NotificationID: notificationID,
		ActionID:       actionID,
	}))
}

func (k *Kit) syncInAppGauge() {
	if k.metrics != nil {
		k.metrics.InAppActive.Set(float64(len(k.inapp.Active())))
	}
}

func (k *Kit) record(operation, status string) {
	if k.metrics != nil {
		k.metrics.RecordOperation(operation, status)
	}
}

func (k *Kit) persistToken(token string) {
	k.mu.Lock()
	store := k.store
	k.mu.Unlock()
	if store == nil {
		return
	}
	if err := store.Set(context.Background(), stateKeyToken, []byte(token)); err != nil {
		k.logger.Warn("failed to persist token", "err", err)
	}
}

func (k *Kit) persistSubscriptions(ctx context.Context, prov notify.Provider) {
	k.mu.Lock()
	store := k.store
	k.mu.Unlock()
	if store == nil {
		return
	}
	topics, err := prov.Subscriptions(ctx)
	if err != nil {
		return
	}
	encoded, err := json.Marshal(topics)
	if err != nil {
		return
	}
	if err := store.Set(ctx, stateKeySubscriptions, encoded); err != nil {
		k.logger.Warn("failed to persist subscriptions", "err", err)
	}
}

func (k *Kit) forgetState(ctx context.Context, key string) {
	k.mu.Lock()
	store := k.store
	k.mu.Unlock()
	if store == nil {
		return
	}
	if err := store.Remove(ctx, key); err != nil {
		k.logger.Warn("failed to remove persisted state", "key", key, "err", err)
	}
}
