package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ProviderCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snowreport_provider_calls_total",
			Help: "Total weather provider API calls by horizon and outcome",
		},
		[]string{"horizon", "status"},
	)

	ProviderLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "snowreport_provider_latency_seconds",
			Help:    "Weather provider API call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"horizon"},
	)

	SamplesFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snowreport_samples_fetched_total",
			Help: "Total samples decoded from provider responses",
		},
		[]string{"horizon"},
	)

	SnowReports = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snowreport_snow_reports_total",
			Help: "Snow reports produced, by result (snow, no_snow, unavailable)",
		},
		[]string{"result"},
	)
)
