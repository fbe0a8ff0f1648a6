package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	ConsentUpdates     *prometheus.CounterVec
	InvalidTransitions prometheus.Counter
	ArtifactsSigned    prometheus.Counter
	SnapshotFailures   prometheus.Counter
	SessionsCreated    prometheus.Counter
	TicketsOpened      prometheus.Counter
	CertificatesIssued prometheus.Counter
	UpdateLatency      prometheus.Histogram
	HTTPRequests       *prometheus.CounterVec
	HTTPDuration       *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		ConsentUpdates: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "covenant_consent_updates_total",
			Help: "Total consent status transitions, labeled by resulting status",
		}, []string{"status"}),
		InvalidTransitions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "covenant_invalid_transitions_total",
			Help: "Total rejected consent transitions (e.g. withdrawing a required purpose)",
		}),
		ArtifactsSigned: promauto.NewCounter(prometheus.CounterOpts{
			Name: "covenant_artifacts_signed_total",
			Help: "Total consent artifacts produced by the signer",
		}),
		SnapshotFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "covenant_snapshot_failures_total",
			Help: "Total failed snapshot persistence writes (durability lost, state intact)",
		}),
		SessionsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "covenant_sessions_created_total",
			Help: "Total principal sessions created via login",
		}),
		TicketsOpened: promauto.NewCounter(prometheus.CounterOpts{
			Name: "covenant_grievance_tickets_opened_total",
			Help: "Total grievance tickets opened",
		}),
		CertificatesIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "covenant_certificates_issued_total",
			Help: "Total quiz certificates issued",
		}),
		UpdateLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "covenant_consent_update_duration_seconds",
			Help:    "Latency of consent ledger updates",
			Buckets: prometheus.DefBuckets,
		}),
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "covenant_http_requests_total",
			Help: "Total HTTP requests, labeled by method and status code",
		}, []string{"method", "code"}),
		HTTPDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "covenant_http_request_duration_seconds",
			Help:    "HTTP request latency by method",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
	}
}
