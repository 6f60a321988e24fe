package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// Business metrics
	interactionsApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_interactions_total",
			Help: "Total number of visit interactions applied",
		},
		[]string{"collection", "action"},
	)

	awardsUnlocked = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_awards_unlocked_total",
			Help: "Total number of awards unlocked",
		},
		[]string{"award"},
	)

	recordsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_records_created_total",
			Help: "Total number of medical records created",
		},
		[]string{"incident_type"},
	)

	documentSaves = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_document_saves_total",
			Help: "Total number of user document save attempts",
		},
		[]string{"result"},
	)

	documentLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_document_loads_total",
			Help: "Total number of user document loads",
		},
		[]string{"result"},
	)

	sessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tracker_sessions_active",
			Help: "Number of live user sessions",
		},
	)

	geocodeLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_geocode_lookups_total",
			Help: "Total number of geocoding lookups",
		},
		[]string{"result"},
	)

	seedFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_seed_fallbacks_total",
			Help: "Times a seed source failed and the bundled defaults were used",
		},
		[]string{"source"},
	)

	cacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_document_cache_requests_total",
			Help: "Document cache lookups by outcome",
		},
		[]string{"outcome"},
	)
)

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware creates HTTP metrics middleware
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		path := normalizePath(r.URL.Path)

		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// normalizePath normalizes URL paths for metrics to avoid cardinality explosion
func normalizePath(path string) string {
	if len(path) > 100 {
		return "/api/..."
	}
	return path
}

// --- Business metric helpers ---

// RecordInteraction records an applied visit interaction
func RecordInteraction(collection, action string) {
	interactionsApplied.WithLabelValues(collection, action).Inc()
}

// RecordAwardUnlocked records an award unlock
func RecordAwardUnlocked(awardID string) {
	awardsUnlocked.WithLabelValues(awardID).Inc()
}

// RecordMedicalRecordCreated records a medical record creation
func RecordMedicalRecordCreated(incidentType string) {
	recordsCreated.WithLabelValues(incidentType).Inc()
}

// RecordDocumentSave records a save attempt outcome
func RecordDocumentSave(ok bool) {
	result := "error"
	if ok {
		result = "ok"
	}
	documentSaves.WithLabelValues(result).Inc()
}

// RecordDocumentLoad records a load outcome: "found", "seeded" or "error"
func RecordDocumentLoad(result string) {
	documentLoads.WithLabelValues(result).Inc()
}

// RecordSessionOpened increments the live session gauge
func RecordSessionOpened() {
	sessionsActive.Inc()
}

// RecordSessionClosed decrements the live session gauge
func RecordSessionClosed() {
	sessionsActive.Dec()
}

// RecordGeocodeLookup records a geocoding outcome: "hit", "miss" or "error"
func RecordGeocodeLookup(result string) {
	geocodeLookups.WithLabelValues(result).Inc()
}

// RecordSeedFallback records a seed source falling back to defaults
func RecordSeedFallback(source string) {
	seedFallbacks.WithLabelValues(source).Inc()
}

// RecordCacheRequest records a document cache outcome: "hit", "miss" or "error"
func RecordCacheRequest(outcome string) {
	cacheRequests.WithLabelValues(outcome).Inc()
}
