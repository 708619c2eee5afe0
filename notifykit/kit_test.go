package notifykit_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"firebase.google.com/go/v4/messaging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-notification-kit/internal/capability"
	"github.com/tinywideclouds/go-notification-kit/notifykit"
	"github.com/tinywideclouds/go-notification-kit/notifykit/config"
	"github.com/tinywideclouds/go-notification-kit/pkg/notify"
)

// fakeProvider is a fully in-memory backend for coordinator tests.
type fakeProvider struct {
	mu        sync.Mutex
	initCalls int
	initErr   error
	destroyed int
	token     string
	topics    map[string]struct{}

	messages  []func(notify.Message)
	refreshes []func(string)
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{token: "fake-token", topics: make(map[string]struct{})}
}

func (f *fakeProvider) Kind() notify.ProviderKind { return notify.ProviderFCM }

func (f *fakeProvider) Init(ctx context.Context, cfg notify.ProviderConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initCalls++
	return f.initErr
}

func (f *fakeProvider) Destroy(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.destroyed++
	return nil
}

func (f *fakeProvider) RequestPermission(ctx context.Context) bool { return true }
func (f *fakeProvider) CheckPermission(ctx context.Context) notify.PermissionStatus {
	return notify.PermissionGranted
}
func (f *fakeProvider) Token(ctx context.Context) (string, error)        { return f.token, nil }
func (f *fakeProvider) RefreshToken(ctx context.Context) (string, error) { return f.token, nil }
func (f *fakeProvider) DeleteToken(ctx context.Context) error            { return nil }

func (f *fakeProvider) Subscribe(ctx context.Context, topic string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topics[topic] = struct{}{}
	return nil
}

func (f *fakeProvider) Unsubscribe(ctx context.Context, topic string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.topics, topic)
	return nil
}

func (f *fakeProvider) Subscriptions(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.topics))
	for t := range f.topics {
		out = append(out, t)
	}
	sort.Strings(out)
	return out, nil
}

func (f *fakeProvider) Send(ctx context.Context, msg notify.Message) error {
	return &notify.UnsupportedOperationError{Op: "send", Reason: "disabled for security"}
}

func (f *fakeProvider) Capabilities(ctx context.Context) notify.ProviderCapabilities {
	return notify.ProviderCapabilities{NativeTopics: true, Badge: true}
}

func (f *fakeProvider) OnMessage(cb func(notify.Message)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, cb)
	return func() {}
}

func (f *fakeProvider) OnTokenRefresh(cb func(string)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes = append(f.refreshes, cb)
	return func() {}
}

func (f *fakeProvider) OnError(cb func(error)) func() { return func() {} }

// pushMessage simulates an inbound backend message.
func (f *fakeProvider) pushMessage(msg notify.Message) {
	f.mu.Lock()
	cbs := append([]func(notify.Message){}, f.messages...)
	f.mu.Unlock()
	for _, cb := range cbs {
		cb(msg)
	}
}

func testConfig() config.Config {
	return config.Config{
		Provider: notify.ProviderConfig{
			Kind: notify.ProviderFCM,
			FCM:  &notify.FCMConfig{ExistingClient: struct{}{}},
		},
	}
}

func newTestKit(t *testing.T, prov notify.Provider) *notifykit.Kit {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return notifykit.New(testConfig(),
		notifykit.WithLogger(logger),
		notifykit.WithProvider(prov),
	)
}

func TestNew_SharedMetricsRegistry(t *testing.T) {
	// Two kits registering on the same registry: the second registration
	// collides, which must degrade to a logged warning rather than a panic.
	reg := prometheus.NewRegistry()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	first := notifykit.New(testConfig(),
		notifykit.WithLogger(logger),
		notifykit.WithProvider(newFakeProvider()),
		notifykit.WithPrometheus(reg),
	)
	require.NotNil(t, first)

	// No WithLogger here: the degraded path must work with only the
	// construction-time default logger in place.
	var second *notifykit.Kit
	require.NotPanics(t, func() {
		second = notifykit.New(testConfig(),
			notifykit.WithProvider(newFakeProvider()),
			notifykit.WithPrometheus(reg),
		)
	})
	require.NoError(t, second.Init(context.Background()))
	assert.True(t, second.IsInitialized())
}

func TestInit_Idempotent(t *testing.T) {
	ctx := context.Background()
	prov := newFakeProvider()
	kit := newTestKit(t, prov)

	assert.False(t, kit.IsInitialized())
	require.NoError(t, kit.Init(ctx))
	require.NoError(t, kit.Init(ctx))
	require.NoError(t, kit.Init(ctx))

	assert.True(t, kit.IsInitialized())
	assert.Equal(t, 1, prov.initCalls, "backend constructed exactly once")
}

func TestInit_ConcurrentCallersShareOneAttempt(t *testing.T) {
	ctx := context.Background()
	prov := newFakeProvider()
	kit := newTestKit(t, prov)

	var wg sync.WaitGroup
	errs := make([]error, 16)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = kit.Init(ctx)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 1, prov.initCalls)
}

func TestInit_FailureEmitsErrorEventAndStaysDown(t *testing.T) {
	ctx := context.Background()
	prov := newFakeProvider()
	prov.initErr = errors.New("backend unavailable")
	kit := newTestKit(t, prov)

	var gotErr error
	kit.On(notify.EventError, func(ev notify.Event) {
		if payload, ok := ev.Payload.(notify.ErrorPayload); ok {
			gotErr = payload.Err
		}
	})

	require.Error(t, kit.Init(ctx))
	require.Error(t, gotErr)

	_, err := kit.Token(ctx)
	assert.ErrorIs(t, err, notify.ErrNotInitialized)

	// A later attempt may succeed once the backend recovers.
	prov.initErr = nil
	require.NoError(t, kit.Init(ctx))
}

func TestInit_EmitsReady(t *testing.T) {
	ctx := context.Background()
	kit := newTestKit(t, newFakeProvider())

	var ready *notify.ReadyPayload
	kit.On(notify.EventReady, func(ev notify.Event) {
		if payload, ok := ev.Payload.(notify.ReadyPayload); ok {
			ready = &payload
		}
	})

	require.NoError(t, kit.Init(ctx))
	require.NotNil(t, ready)
	assert.Equal(t, notify.PlatformWeb, ready.Platform)
	assert.True(t, ready.Capabilities.NativeTopics, "provider extras merged in")
}

func TestOperations_FailFastBeforeInit(t *testing.T) {
	ctx := context.Background()
	kit := newTestKit(t, newFakeProvider())

	_, err := kit.Token(ctx)
	assert.ErrorIs(t, err, notify.ErrNotInitialized)
	_, err = kit.RefreshToken(ctx)
	assert.ErrorIs(t, err, notify.ErrNotInitialized)
	assert.ErrorIs(t, kit.DeleteToken(ctx), notify.ErrNotInitialized)
	assert.ErrorIs(t, kit.Subscribe(ctx, "sports"), notify.ErrNotInitialized)
	assert.ErrorIs(t, kit.Unsubscribe(ctx, "sports"), notify.ErrNotInitialized)
	_, err = kit.GetSubscriptions(ctx)
	assert.ErrorIs(t, err, notify.ErrNotInitialized)
	_, err = kit.RequestPermission(ctx)
	assert.ErrorIs(t, err, notify.ErrNotInitialized)
	_, err = kit.CheckPermission(ctx)
	assert.ErrorIs(t, err, notify.ErrNotInitialized)
	_, err = kit.ScheduleLocalNotification(ctx, notify.LocalNotification{})
	assert.ErrorIs(t, err, notify.ErrNotInitialized)
	assert.ErrorIs(t, kit.CancelLocalNotification(ctx, "x"), notify.ErrNotInitialized)
	_, err = kit.PendingLocalNotifications(ctx)
	assert.ErrorIs(t, err, notify.ErrNotInitialized)
	_, err = kit.ShowInApp(ctx, notify.InAppOptions{Title: "hi"})
	assert.ErrorIs(t, err, notify.ErrNotInitialized)
	assert.ErrorIs(t, kit.SendNotification(ctx, notify.Message{}), notify.ErrNotInitialized)
	assert.ErrorIs(t, kit.CreateChannel(ctx, notify.Channel{ID: "c"}), notify.ErrNotInitialized)
	_, err = kit.ListChannels(ctx)
	assert.ErrorIs(t, err, notify.ErrNotInitialized)
}

func TestToken_EmitsReceived(t *testing.T) {
	ctx := context.Background()
	kit := newTestKit(t, newFakeProvider())
	require.NoError(t, kit.Init(ctx))

	var received string
	kit.On(notify.EventTokenReceived, func(ev notify.Event) {
		received = ev.Payload.(notify.TokenPayload).Token
	})

	token, err := kit.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "fake-token", token)
	assert.Equal(t, "fake-token", received)
}

func TestSubscribe_EmitsTopicEvents(t *testing.T) {
	ctx := context.Background()
	kit := newTestKit(t, newFakeProvider())
	require.NoError(t, kit.Init(ctx))

	var events []notify.EventType
	kit.On(notify.EventSubscribed, func(ev notify.Event) { events = append(events, ev.Type) })
	kit.On(notify.EventUnsubscribed, func(ev notify.Event) { events = append(events, ev.Type) })

	require.NoError(t, kit.Subscribe(ctx, "sports"))
	subs, err := kit.GetSubscriptions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"sports"}, subs)

	require.NoError(t, kit.Unsubscribe(ctx, "sports"))
	assert.Equal(t, []notify.EventType{notify.EventSubscribed, notify.EventUnsubscribed}, events)
}

func TestInboundMessage_ReachesListeners(t *testing.T) {
	ctx := context.Background()
	prov := newFakeProvider()
	kit := newTestKit(t, prov)
	require.NoError(t, kit.Init(ctx))

	var got notify.Message
	kit.On(notify.EventNotificationReceived, func(ev notify.Event) {
		got = ev.Payload.(notify.Message)
	})

	prov.pushMessage(notify.Message{ID: "m1", Title: "hello"})
	assert.Equal(t, "m1", got.ID)
}

func TestListeners_PanicIsolated(t *testing.T) {
	ctx := context.Background()
	kit := newTestKit(t, newFakeProvider())
	require.NoError(t, kit.Init(ctx))

	var order []string
	kit.On(notify.EventSubscribed, func(notify.Event) { order = append(order, "first") })
	kit.On(notify.EventSubscribed, func(notify.Event) { panic("listener bug") })
	kit.On(notify.EventSubscribed, func(notify.Event) { order = append(order, "third") })

	require.NoError(t, kit.Subscribe(ctx, "sports"))
	assert.Equal(t, []string{"first", "third"}, order)
}

func TestOn_UnsubscribeIdempotent(t *testing.T) {
	ctx := context.Background()
	kit := newTestKit(t, newFakeProvider())
	require.NoError(t, kit.Init(ctx))

	calls := 0
	unsub := kit.On(notify.EventSubscribed, func(notify.Event) { calls++ })

	require.NoError(t, kit.Subscribe(ctx, "a"))
	unsub()
	unsub()
	require.NoError(t, kit.Subscribe(ctx, "b"))

	assert.Equal(t, 1, calls)
}

func TestOff_DropsAllListenersForType(t *testing.T) {
	ctx := context.Background()
	kit := newTestKit(t, newFakeProvider())
	require.NoError(t, kit.Init(ctx))

	calls := 0
	kit.On(notify.EventSubscribed, func(notify.Event) { calls++ })
	kit.On(notify.EventSubscribed, func(notify.Event) { calls++ })
	kit.Off(notify.EventSubscribed)

	require.NoError(t, kit.Subscribe(ctx, "a"))
	assert.Zero(t, calls)
}

func TestSendNotification_Unsupported(t *testing.T) {
	ctx := context.Background()
	kit := newTestKit(t, newFakeProvider())
	require.NoError(t, kit.Init(ctx))

	err := kit.SendNotification(ctx, notify.Message{Title: "hi"})
	var unsupported *notify.UnsupportedOperationError
	require.ErrorAs(t, err, &unsupported)
}

func TestScheduleLocal_UnsupportedOnWeb(t *testing.T) {
	ctx := context.Background()
	kit := newTestKit(t, newFakeProvider())
	require.NoError(t, kit.Init(ctx))

	at := time.Now().Add(time.Hour)
	_, err := kit.ScheduleLocalNotification(ctx, notify.LocalNotification{
		Title:    "reminder",
		Schedule: notify.Schedule{At: &at},
	})

	var unsupported *notify.UnsupportedOperationError
	require.ErrorAs(t, err, &unsupported)
}

func TestChannels_NoOpOffAndroid(t *testing.T) {
	ctx := context.Background()
	kit := newTestKit(t, newFakeProvider())
	require.NoError(t, kit.Init(ctx))

	require.NoError(t, kit.CreateChannel(ctx, notify.Channel{ID: "c1", Name: "General"}))
	require.NoError(t, kit.DeleteChannel(ctx, "c1"))
	channels, err := kit.ListChannels(ctx)
	require.NoError(t, err)
	assert.Empty(t, channels)
}

func TestDestroy_ReturnsToUninitialized(t *testing.T) {
	ctx := context.Background()
	prov := newFakeProvider()
	kit := newTestKit(t, prov)

	// Destroy before init is safe.
	require.NoError(t, kit.Destroy(ctx))

	require.NoError(t, kit.Init(ctx))
	require.NoError(t, kit.Destroy(ctx))
	assert.Equal(t, 1, prov.destroyed)

	_, err := kit.Token(ctx)
	assert.ErrorIs(t, err, notify.ErrNotInitialized)

	// Re-init after destroy behaves as fresh.
	require.NoError(t, kit.Init(ctx))
	assert.Equal(t, 2, prov.initCalls)
}

func TestPlatform_AvailableBeforeInit(t *testing.T) {
	kit := newTestKit(t, newFakeProvider())
	info := kit.Platform(context.Background())
	assert.Equal(t, notify.PlatformWeb, info.Platform)
}

// localBridgeStub exercises the android scheduling path.
type localBridgeStub struct {
	mu        sync.Mutex
	scheduled map[string]time.Time
	channels  map[string]notify.Channel
}

func newLocalBridgeStub() *localBridgeStub {
	return &localBridgeStub{
		scheduled: make(map[string]time.Time),
		channels:  make(map[string]notify.Channel),
	}
}

func (b *localBridgeStub) Schedule(ctx context.Context, n notify.LocalNotification, fireAt time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.scheduled[n.ID] = fireAt
	return nil
}

func (b *localBridgeStub) Cancel(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.scheduled, id)
	return nil
}

func (b *localBridgeStub) Pending(ctx context.Context) ([]notify.LocalNotification, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]notify.LocalNotification, 0, len(b.scheduled))
	for id := range b.scheduled {
		out = append(out, notify.LocalNotification{ID: id})
	}
	return out, nil
}

func (b *localBridgeStub) CreateChannel(ctx context.Context, ch notify.Channel) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.channels[ch.ID] = ch
	return nil
}

func (b *localBridgeStub) DeleteChannel(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.channels, id)
	return nil
}

func (b *localBridgeStub) ListChannels(ctx context.Context) ([]notify.Channel, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]notify.Channel, 0, len(b.channels))
	for _, ch := range b.channels {
		out = append(out, ch)
	}
	return out, nil
}

func newAndroidKit(t *testing.T, bridge *localBridgeStub) *notifykit.Kit {
	t.Helper()
	t.Setenv("NOTIFYKIT_PLATFORM", "android")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := capability.NewRegistry(logger)
	reg.Register(capability.KeyBridgeLocal, func(context.Context) (any, error) {
		return bridge, nil
	})
	return notifykit.New(testConfig(),
		notifykit.WithLogger(logger),
		notifykit.WithRegistry(reg),
		notifykit.WithProvider(newFakeProvider()),
	)
}

func TestScheduleLocal_AndroidLifecycle(t *testing.T) {
	ctx := context.Background()
	bridge := newLocalBridgeStub()
	kit := newAndroidKit(t, bridge)
	require.NoError(t, kit.Init(ctx))

	var scheduled, cancelled string
	kit.On(notify.EventNotificationScheduled, func(ev notify.Event) {
		scheduled = ev.Payload.(notify.SchedulePayload).NotificationID
	})
	kit.On(notify.EventNotificationCancelled, func(ev notify.Event) {
		cancelled = ev.Payload.(notify.SchedulePayload).NotificationID
	})

	at := time.Now().Add(2 * time.Hour)
	fireAt, err := kit.ScheduleLocalNotification(ctx, notify.LocalNotification{
		ID:       "n1",
		Title:    "reminder",
		Schedule: notify.Schedule{At: &at},
	})
	require.NoError(t, err)
	assert.WithinDuration(t, at, fireAt, time.Second)
	assert.Equal(t, "n1", scheduled)

	pending, err := kit.PendingLocalNotifications(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	require.NoError(t, kit.CancelLocalNotification(ctx, "n1"))
	assert.Equal(t, "n1", cancelled)

	pending, err = kit.PendingLocalNotifications(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestScheduleLocal_RejectsMultipleForms(t *testing.T) {
	ctx := context.Background()
	kit := newAndroidKit(t, newLocalBridgeStub())
	require.NoError(t, kit.Init(ctx))

	at := time.Now().Add(time.Hour)
	_, err := kit.ScheduleLocalNotification(ctx, notify.LocalNotification{
		Title: "bad",
		Schedule: notify.Schedule{
			At:    &at,
			Every: notify.IntervalDay,
		},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only one schedule form")
}

// stubMessaging satisfies the FCM provider's messaging interface.
type stubMessaging struct{}

func (stubMessaging) SubscribeToTopic(ctx context.Context, tokens []string, topic string) (*messaging.TopicManagementResponse, error) {
	return &messaging.TopicManagementResponse{SuccessCount: len(tokens)}, nil
}

func (stubMessaging) UnsubscribeFromTopic(ctx context.Context, tokens []string, topic string) (*messaging.TopicManagementResponse, error) {
	return &messaging.TopicManagementResponse{SuccessCount: len(tokens)}, nil
}

type webTokenStub struct{ token string }

func (s webTokenStub) Token(context.Context) (string, error) { return s.token, nil }
func (s webTokenStub) Delete(context.Context) error          { return nil }

// TestEndToEnd_FCMOnWeb drives the whole stack with only the messaging
// backend stubbed: init, permission, token, topic round-trip, teardown.
func TestEndToEnd_FCMOnWeb(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	reg := capability.NewRegistry(logger)
	reg.Register(capability.KeyWebToken, func(context.Context) (any, error) {
		return webTokenStub{token: "web-device-token"}, nil
	})

	cfg := config.Config{
		Provider: notify.ProviderConfig{
			Kind: notify.ProviderFCM,
			FCM:  &notify.FCMConfig{ExistingClient: stubMessaging{}},
		},
	}
	kit := notifykit.New(cfg, notifykit.WithLogger(logger), notifykit.WithRegistry(reg))

	var seen []notify.EventType
	for _, et := range []notify.EventType{
		notify.EventReady, notify.EventTokenReceived,
		notify.EventSubscribed, notify.EventUnsubscribed,
	} {
		et := et
		kit.On(et, func(notify.Event) { seen = append(seen, et) })
	}

	require.NoError(t, kit.Init(ctx))
	require.True(t, kit.IsInitialized())

	status, err := kit.RequestPermission(ctx)
	require.NoError(t, err)
	assert.Equal(t, notify.PermissionDenied, status, "no permission shim registered, fail closed")

	token, err := kit.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "web-device-token", token)

	require.NoError(t, kit.Subscribe(ctx, "sports"))
	subs, err := kit.GetSubscriptions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"sports"}, subs)
	require.NoError(t, kit.Unsubscribe(ctx, "sports"))

	caps := kit.Capabilities(ctx)
	assert.True(t, caps.Push)
	assert.True(t, caps.NativeTopics)
	assert.False(t, caps.LocalSchedule)

	assert.Equal(t, []notify.EventType{
		notify.EventReady, notify.EventTokenReceived,
		notify.EventSubscribed, notify.EventUnsubscribed,
	}, seen)

	require.NoError(t, kit.Destroy(ctx))
	assert.False(t, kit.IsInitialized())
}

func TestChannels_AndroidLifecycle(t *testing.T) {
	ctx := context.Background()
	bridge := newLocalBridgeStub()
	kit := newAndroidKit(t, bridge)
	require.NoError(t, kit.Init(ctx))

	var created, deleted string
	kit.On(notify.EventChannelCreated, func(ev notify.Event) {
		created = ev.Payload.(notify.ChannelPayload).ChannelID
	})
	kit.On(notify.EventChannelDeleted, func(ev notify.Event) {
		deleted = ev.Payload.(notify.ChannelPayload).ChannelID
	})

	require.NoError(t, kit.CreateChannel(ctx, notify.Channel{ID: "alerts", Name: "Alerts"}))
	channels, err := kit.ListChannels(ctx)
	require.NoError(t, err)
	require.Len(t, channels, 1)
	assert.Equal(t, "alerts", created)

	require.NoError(t, kit.DeleteChannel(ctx, "alerts"))
	assert.Equal(t, "alerts", deleted)
}
