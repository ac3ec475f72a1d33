package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// UpstreamRequests counts outbound calls by endpoint host and outcome
	// ("ok", "rate_limited", "rejected", "transport_error").
	UpstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "proposals_upstream_requests_total",
		Help: "Outbound upstream requests by outcome.",
	}, []string{"host", "outcome"})

	// UpstreamRetries counts backoff sleeps taken before a retry.
	UpstreamRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "proposals_upstream_retries_total",
		Help: "Retries performed after a 429/503 response.",
	})

	// CacheLookups counts page-cache lookups by source and result.
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "proposals_cache_lookups_total",
		Help: "Page cache lookups by source and result (hit/miss).",
	}, []string{"source", "result"})
)
