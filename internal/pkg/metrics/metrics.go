package metrics

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ameba"

// Metrics holds the application collectors. All methods are safe on a nil receiver.
type Metrics struct {
	registry *prometheus.Registry

	requestDuration  *prometheus.HistogramVec
	gateDecisions    *prometheus.CounterVec
	terminalsCreated prometheus.Counter
	terminalChanges  *prometheus.CounterVec
	paymentsCreated  *prometheus.CounterVec
	paymentResults   *prometheus.CounterVec
	clientsCreated   prometheus.Counter
	selections       *prometheus.CounterVec
}

// New creates a metrics set on its own registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
		gateDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "gate",
				Name:      "decisions_total",
				Help:      "Authorization gate decisions by route class and outcome",
			},
			[]string{"class", "outcome"},
		),
		terminalsCreated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "terminal",
				Name:      "created_total",
				Help:      "Total number of terminals created",
			},
		),
		terminalChanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "terminal",
				Name:      "transitions_total",
				Help:      "Terminal status transitions by target status and result",
			},
			[]string{"status", "result"},
		),
		paymentsCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "payment",
				Name:      "created_total",
				Help:      "Total number of payments created by initial status",
			},
			[]string{"status"},
		),
		paymentResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "payment",
				Name:      "provider_results_total",
				Help:      "Provider results applied to payments",
			},
			[]string{"status", "result"},
		),
		clientsCreated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "client",
				Name:      "created_total",
				Help:      "Total number of clients created",
			},
		),
		selections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "client",
				Name:      "selections_total",
				Help:      "Active client selections by result",
			},
			[]string{"result"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requestDuration,
		m.gateDecisions,
		m.terminalsCreated,
		m.terminalChanges,
		m.paymentsCreated,
		m.paymentResults,
		m.clientsCreated,
		m.selections,
	)
	return m
}

var (
	defaultMetrics *Metrics
	defaultOnce    sync.Once
)

// Default returns the process-wide metrics set.
func Default() *Metrics {
	defaultOnce.Do(func() {
		defaultMetrics = New()
	})
	return defaultMetrics
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}

// Middleware records request durations by matched route.
func (m *Metrics) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		if m == nil {
			return err
		}
		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}
		route := c.Route().Path
		m.requestDuration.WithLabelValues(c.Method(), route, statusClass(status)).Observe(time.Since(start).Seconds())
		return err
	}
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

func (m *Metrics) GateDecision(class, outcome string) {
	if m == nil {
		return
	}
	m.gateDecisions.WithLabelValues(class, outcome).Inc()
}

func (m *Metrics) TerminalCreated() {
	if m == nil {
		return
	}
	m.terminalsCreated.Inc()
}

func (m *Metrics) TerminalTransition(status string, applied bool) {
	if m == nil {
		return
	}
	m.terminalChanges.WithLabelValues(status, result(applied)).Inc()
}

func (m *Metrics) PaymentCreated(status string) {
	if m == nil {
		return
	}
	m.paymentsCreated.WithLabelValues(status).Inc()
}

func (m *Metrics) PaymentResult(status string, applied bool) {
	if m == nil {
		return
	}
	m.paymentResults.WithLabelValues(status, result(applied)).Inc()
}

func (m *Metrics) ClientCreated() {
	if m == nil {
		return
	}
	m.clientsCreated.Inc()
}

func (m *Metrics) Selection(ok bool) {
	if m == nil {
		return
	}
	m.selections.WithLabelValues(result(ok)).Inc()
}

func result(ok bool) string {
	if ok {
		return "applied"
	}
	return "skipped"
}
