// Package metrics holds the API and upstream collectors shared by handlers
// and the Search Console client.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	EndpointLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "searchinsight",
			Subsystem: "api",
			Name:      "latency_seconds",
			Help:      "Latency of insight endpoints",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	EndpointErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "searchinsight",
			Subsystem: "api",
			Name:      "errors_total",
			Help:      "Errors by insight endpoint",
		},
		[]string{"endpoint"},
	)

	UpstreamRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "searchinsight",
			Subsystem: "searchconsole",
			Name:      "requests_total",
			Help:      "Search Console API requests by outcome",
		},
		[]string{"operation", "outcome"},
	)

	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "searchinsight",
			Subsystem: "searchconsole",
			Name:      "cache_lookups_total",
			Help:      "Search Console response cache lookups",
		},
		[]string{"result"},
	)
)

func Register() {
	once.Do(func() {
		prometheus.MustRegister(EndpointLatency, EndpointErrors, UpstreamRequests, CacheLookups)
	})
}
