package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dosewise"

// Metrics holds the collectors of one registry. All record methods are safe
// on a nil receiver so components can run without instrumentation.
type Metrics struct {
	startTime time.Time
	registry  *prometheus.Registry

	mutations       *prometheus.CounterVec
	timersArmed     *prometheus.CounterVec
	timersSkipped   *prometheus.CounterVec
	timersCancelled prometheus.Counter
	timersLive      prometheus.Gauge
	notifications   *prometheus.CounterVec
	lookups         *prometheus.CounterVec
	agendaDoses     prometheus.Gauge
	wsClients       prometheus.Gauge
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

var (
	defaultMetrics *Metrics
	once           sync.Once
)

// Default returns the process-wide metrics instance
func Default() *Metrics {
	once.Do(func() {
		defaultMetrics = New()
	})
	return defaultMetrics
}

// New builds a fresh registry with every collector registered
func New() *Metrics {
	m := &Metrics{
		startTime: time.Now(),
		registry:  prometheus.NewRegistry(),

		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_mutations_total",
			Help:      "Prescription store mutations by operation and result",
		}, []string{"op", "result"}),
		timersArmed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminder_timers_armed_total",
			Help:      "Reminder timers armed by notification kind",
		}, []string{"kind"}),
		timersSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminder_timers_skipped_total",
			Help:      "Reminder timers discarded because their fire time had passed",
		}, []string{"kind"}),
		timersCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminder_timers_cancelled_total",
			Help:      "Armed reminder timers cancelled by a re-arm",
		}),
		timersLive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reminder_timers_live",
			Help:      "Reminder timers currently armed",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notifications shown by kind and result",
		}, []string{"kind", "result"}),
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "medicine_lookups_total",
			Help:      "Medicine lookups by source and result",
		}, []string{"source", "result"}),
		agendaDoses: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "agenda_doses_today",
			Help:      "Doses on today's agenda",
		}),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_clients",
			Help:      "Connected notification clients",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "API requests by method and status",
		}, []string{"method", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "API request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Time since process start",
		}, func() float64 { return time.Since(m.startTime).Seconds() }),
		m.mutations,
		m.timersArmed,
		m.timersSkipped,
		m.timersCancelled,
		m.timersLive,
		m.notifications,
		m.lookups,
		m.agendaDoses,
		m.wsClients,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) RecordMutation(op string, err error) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(op, result(err)).Inc()
}

func (m *Metrics) RecordTimerArmed(kind string) {
	if m == nil {
		return
	}
	m.timersArmed.WithLabelValues(kind).Inc()
}

func (m *Metrics) RecordTimerSkipped(kind string) {
	if m == nil {
		return
	}
	m.timersSkipped.WithLabelValues(kind).Inc()
}

func (m *Metrics) RecordTimersCancelled(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.timersCancelled.Add(float64(n))
}

func (m *Metrics) SetTimersLive(n int) {
	if m == nil {
		return
	}
	m.timersLive.Set(float64(n))
}

func (m *Metrics) RecordNotification(kind string, err error) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(kind, result(err)).Inc()
}

// RecordLookup counts a lookup answered by source ("local", "remote")
func (m *Metrics) RecordLookup(source string, err error) {
	if m == nil {
		return
	}
	m.lookups.WithLabelValues(source, result(err)).Inc()
}

func (m *Metrics) SetAgendaSize(n int) {
	if m == nil {
		return
	}
	m.agendaDoses.Set(float64(n))
}

func (m *Metrics) IncrementWSClients() {
	if m == nil {
		return
	}
	m.wsClients.Inc()
}

func (m *Metrics) DecrementWSClients() {
	if m == nil {
		return
	}
	m.wsClients.Dec()
}

func (m *Metrics) RecordRequest(method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method).Observe(d.Seconds())
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
