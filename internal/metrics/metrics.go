// Package metrics provides Prometheus metrics for kit operations.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// KitMetrics contains all Prometheus metrics the coordinator records.
type KitMetrics struct {
	InitTotal    *prometheus.CounterVec   // init attempts by provider and status
	InitDuration *prometheus.HistogramVec // init latency by provider

	OperationsTotal *prometheus.CounterVec // operations by name and status

	EventsEmitted  *prometheus.CounterVec // events fanned out by type
	ListenerPanics *prometheus.CounterVec // listener callbacks recovered by event type

	ScheduledLocal   prometheus.Counter // local notifications scheduled
	InAppActive      prometheus.Gauge   // in-app elements currently shown
	PermissionDenied prometheus.Counter // permission requests that ended denied

	registry *prometheus.Registry
}

// NewKitMetrics creates and registers the kit metric set on the given
// registry.
func NewKitMetrics(registry *prometheus.Registry) (*KitMetrics, error) {
	m := &KitMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register kit metrics: %w", err)
	}
	return m, nil
}

func (m *KitMetrics) initMetrics() {
	m.InitTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifykit_init_total",
			Help: "Total kit initialization attempts by provider and status",
		},
		[]string{"provider", "status"}, // status: success, error, already_initialized
	)

	m.InitDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notifykit_init_duration_seconds",
			Help:    "Time taken to initialize the provider backend",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0},
		},
		[]string{"provider"},
	)

	m.OperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifykit_operations_total",
			Help: "Total kit operations by name and status",
		},
		[]string{"operation", "status"}, // status: success, error, unsupported
	)

	m.EventsEmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifykit_events_emitted_total",
			Help: "Total events fanned out to listeners by event type",
		},
		[]string{"type"},
	)

	m.ListenerPanics = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifykit_listener_panics_total",
			Help: "Total listener callbacks recovered from panic by event type",
		},
		[]string{"type"},
	)

	m.ScheduledLocal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notifykit_local_scheduled_total",
		Help: "Total local notifications handed to the native scheduler",
	})

	m.InAppActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "notifykit_inapp_active",
		Help: "In-app notification elements currently displayed",
	})

	m.PermissionDenied = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notifykit_permission_denied_total",
		Help: "Permission requests that ended in a denied status",
	})
}

// RecordInit records one initialization attempt.
func (m *KitMetrics) RecordInit(provider, status string, elapsed time.Duration) {
	m.InitTotal.WithLabelValues(provider, status).Inc()
	if status == "success" {
		m.InitDuration.WithLabelValues(provider).Observe(elapsed.Seconds())
	}
}

// RecordOperation records one coordinator operation outcome.
func (m *KitMetrics) RecordOperation(operation, status string) {
	m.OperationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordEvent records one event fan-out.
func (m *KitMetrics) RecordEvent(eventType string) {
	m.EventsEmitted.WithLabelValues(eventType).Inc()
}

// RecordListenerPanic records a recovered listener callback.
func (m *KitMetrics) RecordListenerPanic(eventType string) {
	m.ListenerPanics.WithLabelValues(eventType).Inc()
}

// Describe implements the prometheus.Collector interface.
func (m *KitMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.InitTotal.Describe(ch)
	m.InitDuration.Describe(ch)
	m.OperationsTotal.Describe(ch)
	m.EventsEmitted.Describe(ch)
	m.ListenerPanics.Describe(ch)
	m.ScheduledLocal.Describe(ch)
	m.InAppActive.Describe(ch)
	m.PermissionDenied.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *KitMetrics) Collect(ch chan<- prometheus.Metric) {
	m.InitTotal.Collect(ch)
	m.InitDuration.Collect(ch)
	m.OperationsTotal.Collect(ch)
	m.EventsEmitted.Collect(ch)
	m.ListenerPanics.Collect(ch)
	m.ScheduledLocal.Collect(ch)
	m.InAppActive.Collect(ch)
	m.PermissionDenied.Collect(ch)
}
