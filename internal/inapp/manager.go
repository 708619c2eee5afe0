// Package inapp maintains the active set of transient in-app
// notifications, independent of provider and platform. The manager owns
// every rendered handle exclusively and releases it on dismissal; the
// external renderer owns pixels only.
package inapp

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tinywideclouds/go-notification-kit/internal/capability"
	"github.com/tinywideclouds/go-notification-kit/pkg/notify"
)

// instance is one live in-app notification.
type instance struct {
	id        string
	handle    notify.RenderedHandle
	options   notify.InAppOptions
	createdAt time.Time
	timer     *time.Timer
}

// Snapshot is a read-only view of one active notification.
type Snapshot struct {
	ID        string              `json:"id"`
	Options   notify.InAppOptions `json:"options"`
	CreatedAt time.Time           `json:"created_at"`
}

// Manager tracks active in-app notifications by id.
type Manager struct {
	registry *capability.Registry
	logger   *slog.Logger
	defaults notify.InAppOptions

	// onAction receives user action callbacks for event fan-out; nil is
	// fine.
	onAction func(notificationID, actionID string)

	mu     sync.Mutex
	active map[string]*instance
}

// NewManager creates an empty manager. defaults fill in unset option
// fields on Show.
func NewManager(registry *capability.Registry, defaults notify.InAppOptions, onAction func(notificationID, actionID string), logger *slog.Logger) *Manager {
	return &Manager{
		registry: registry,
		logger:   logger.With("component", "InAppManager"),
		defaults: defaults,
		onAction: onAction,
		active:   make(map[string]*instance),
	}
}

// Show renders a notification and returns its fresh opaque id. It fails
// only when the renderer itself fails. A positive Duration arms an
// automatic dismissal.
func (m *Manager) Show(ctx context.Context, opts notify.InAppOptions) (string, error) {
	handle, err := m.registry.Require(ctx, capability.KeyInAppRenderer)
	if err != nil {
		return "", err
	}
	renderer, ok := handle.(notify.Renderer)
	if !ok {
		return "", fmt.Errorf("inapp.renderer module does not implement notify.Renderer")
	}

	opts = m.applyDefaults(opts)
	id := uuid.New().String()

	rendered, err := renderer.Render(ctx, notify.RenderRequest{
		ID:      id,
		Options: opts,
		OnAction: func(actionID string) {
			if m.onAction != nil {
				m.onAction(id, actionID)
			}
		},
		OnDismiss: func() {
			// User-driven dismissal re-enters through the same path as a
			// programmatic one.
			_ = m.Dismiss(context.Background(), id)
		},
	})
	if err != nil {
		return "", fmt.Errorf("in-app render failed: %w", err)
	}

	inst := &instance{
		id:        id,
		handle:    rendered,
		options:   opts,
		createdAt: time.Now(),
	}
	if opts.Duration > 0 {
		inst.timer = time.AfterFunc(opts.Duration, func() {
			_ = m.Dismiss(context.Background(), id)
		})
	}

	m.mu.Lock()
	m.active[id] = inst
	m.mu.Unlock()

	m.logger.Debug("in-app notification shown", "id", id, "type", string(opts.Type))
	return id, nil
}

// Dismiss removes a notification and releases its rendered handle.
// Unknown ids are a silent no-op; dismissal is idempotent.
func (m *Manager) Dismiss(ctx context.Context, id string) error {
	m.mu.Lock()
	inst, ok := m.active[id]
	if ok {
		delete(m.active, id)
	}
	m.mu.Unlock()

	if !ok {
		return nil
	}

	if inst.timer != nil {
		inst.timer.Stop()
	}
	if err := inst.handle.Release(ctx); err != nil {
		m.logger.Warn("failed to release rendered handle", "id", id, "err", err)
	}
	m.logger.Debug("in-app notification dismissed", "id", id)
	return nil
}

// DismissAll dismisses every currently-active notification.
func (m *Manager) DismissAll(ctx context.Context) error {
	m.mu.Lock()
	ids := make([]string, 0, len(m.active))
	for id := range m.active {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		if err := m.Dismiss(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// Active returns a point-in-time snapshot, not a live view.
func (m *Manager) Active() []Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Snapshot, 0, len(m.active))
	for _, inst := range m.active {
		out = append(out, Snapshot{
			ID:        inst.id,
			Options:   inst.options,
			CreatedAt: inst.createdAt,
		})
	}
	return out
}

func (m *Manager) applyDefaults(opts notify.InAppOptions) notify.InAppOptions {
	if opts.Type == "" {
		if m.defaults.Type != "" {
			opts.Type = m.defaults.Type
		} else {
			opts.Type = notify.InAppInfo
		}
	}
	if opts.Position == "" {
		if m.defaults.Position != "" {
			opts.Position = m.defaults.Position
		} else {
			opts.Position = notify.PositionTop
		}
	}
	if opts.Duration == 0 {
		opts.Duration = m.defaults.Duration
	}
	return opts
}
