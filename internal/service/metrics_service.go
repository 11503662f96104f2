package service

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the
// collaboration gateway.
type MetricsService struct {
	registry *prometheus.Registry
	handler  http.Handler

	requestDuration  *prometheus.HistogramVec
	requestTotal     *prometheus.CounterVec
	connectedClients prometheus.Gauge
	wsMessages       *prometheus.CounterVec
	eventsAppended   *prometheus.CounterVec
	busPublishes     prometheus.Counter
	syncWindows      prometheus.Counter
	syncResponses    prometheus.Histogram
}

// NewMetricsService registers the gateway's collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	connectedClients := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ws_connected_clients",
		Help: "Currently connected realtime clients",
	})

	wsMessages := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ws_messages_total",
		Help: "Inbound realtime messages by action",
	}, []string{"action"})

	eventsAppended := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "events_appended_total",
		Help: "Events appended to the log by type",
	}, []string{"type"})

	busPublishes := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bus_publishes_total",
		Help: "Messages published on the broadcast fabric",
	})

	syncWindows := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "code_sync_windows_total",
		Help: "Sync collection windows opened by late joiners",
	})

	syncResponses := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "code_sync_responses_per_window",
		Help:    "Peer responses collected per sync window",
		Buckets: []float64{0, 1, 2, 3, 5, 8, 13},
	})

	registry.MustRegister(requestDuration, requestTotal, connectedClients,
		wsMessages, eventsAppended, busPublishes, syncWindows, syncResponses)

	return &MetricsService{
		registry:         registry,
		handler:          promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:  requestDuration,
		requestTotal:     requestTotal,
		connectedClients: connectedClients,
		wsMessages:       wsMessages,
		eventsAppended:   eventsAppended,
		busPublishes:     busPublishes,
		syncWindows:      syncWindows,
		syncResponses:    syncResponses,
	}
}

// Handler exposes the Prometheus scrape endpoint.
func (s *MetricsService) Handler() http.Handler {
	return s.handler
}

// ObserveHTTPRequest records one request's latency and count.
func (s *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	labels := prometheus.Labels{
		"method": method,
		"path":   path,
		"status": httpStatusLabel(status),
	}
	s.requestDuration.With(labels).Observe(duration.Seconds())
	s.requestTotal.With(labels).Inc()
}

// ClientConnected and ClientDisconnected track the live client gauge.
func (s *MetricsService) ClientConnected()    { s.connectedClients.Inc() }
func (s *MetricsService) ClientDisconnected() { s.connectedClients.Dec() }

// ObserveWSMessage counts one inbound realtime action.
func (s *MetricsService) ObserveWSMessage(action string) {
	s.wsMessages.WithLabelValues(action).Inc()
}

// ObserveEventAppended counts one appended event.
func (s *MetricsService) ObserveEventAppended(eventType string) {
	s.eventsAppended.WithLabelValues(eventType).Inc()
}

// ObserveBusPublish counts one fabric publish.
func (s *MetricsService) ObserveBusPublish() { s.busPublishes.Inc() }

// ObserveSyncWindow records one completed collection window.
func (s *MetricsService) ObserveSyncWindow(responses int) {
	s.syncWindows.Inc()
	s.syncResponses.Observe(float64(responses))
}

func httpStatusLabel(status int) string {
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
