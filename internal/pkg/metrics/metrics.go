package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "orders"

type ServerMetrics struct {
	Requests  *prometheus.CounterVec
	LatencyMS *prometheus.HistogramVec
}

type EventMetrics struct {
	Published *prometheus.CounterVec
	Consumed  *prometheus.CounterVec
}

// Registry bundles every collector of the service on its own registry so
// tests can build as many as they like.
type Registry struct {
	reg    *prometheus.Registry
	Server *ServerMetrics
	Events *EventMetrics
}

// NewRegistry builds the collectors under orders_<service>_*. Characters
// that are not valid in metric names are replaced with underscores.
func NewRegistry(service string) *Registry {
	reg := prometheus.NewRegistry()
	service = strings.Map(func(r rune) rune {
		if r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '_'
	}, service)

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: service,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"handler", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: service,
		Name:      "http_request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"handler"})
	published := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: service,
		Name:      "events_published_total",
		Help:      "Domain events handed to the broker, by topic and result.",
	}, []string{"topic", "result"})
	consumed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: service,
		Name:      "events_consumed_total",
		Help:      "Inbound events processed, by topic and result.",
	}, []string{"topic", "result"})

	reg.MustRegister(requests, latency, published, consumed)

	return &Registry{
		reg:    reg,
		Server: &ServerMetrics{Requests: requests, LatencyMS: latency},
		Events: &EventMetrics{Published: published, Consumed: consumed},
	}
}

func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// Middleware records request count and latency labelled by chi route
// pattern.
func (m *ServerMetrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		pattern := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			pattern = r.Method + " " + rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.Requests.WithLabelValues(pattern, strconv.Itoa(status)).Inc()
		m.LatencyMS.WithLabelValues(pattern).Observe(float64(time.Since(start).Milliseconds()))
	})
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObservePublish is nil-safe so callers can run without metrics.
func (m *EventMetrics) ObservePublish(topic string, err error) {
	if m == nil {
		return
	}
	m.Published.WithLabelValues(topic, result(err)).Inc()
}

func (m *EventMetrics) ObserveConsume(topic string, err error) {
	if m == nil {
		return
	}
	m.Consumed.WithLabelValues(topic, result(err)).Inc()
}
