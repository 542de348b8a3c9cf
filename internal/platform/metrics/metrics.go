package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	IdentitiesCreated  prometheus.Counter
	IdentifiersCreated prometheus.Counter
	ValidationFailures prometheus.Counter
	SchemaCacheHits    prometheus.Counter
	SchemaCacheMisses  prometheus.Counter
	RequestDuration    *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		IdentitiesCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "identityshelf_identities_created_total",
			Help: "Total number of identities created",
		}),
		IdentifiersCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "identityshelf_identifiers_created_total",
			Help: "Total number of identity identifiers created",
		}),
		ValidationFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "identityshelf_validation_failures_total",
			Help: "Total number of identity create/update requests rejected by validation",
		}),
		SchemaCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "identityshelf_schema_cache_hits_total",
			Help: "Schema resolution cache hits",
		}),
		SchemaCacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "identityshelf_schema_cache_misses_total",
			Help: "Schema resolution cache misses",
		}),
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "identityshelf_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}
}

// NewForTest creates metrics on a private registry so test packages can
// construct services without double-registration panics.
func NewForTest() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		IdentitiesCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "identityshelf_identities_created_total",
		}),
		IdentifiersCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "identityshelf_identifiers_created_total",
		}),
		ValidationFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "identityshelf_validation_failures_total",
		}),
		SchemaCacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "identityshelf_schema_cache_hits_total",
		}),
		SchemaCacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "identityshelf_schema_cache_misses_total",
		}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "identityshelf_http_request_duration_seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}
}
