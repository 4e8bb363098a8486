// Package metrics holds the process-wide Prometheus collectors. Counters are
// registered at init and incremented from the hot paths; the run summary in
// run history is the authoritative per-run record, these are for scraping a
// long-lived process.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DataCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "teamarr",
		Subsystem: "dataservice",
		Name:      "cache_hits_total",
		Help:      "Reads served from the in-memory data cache.",
	})
	DataCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "teamarr",
		Subsystem: "dataservice",
		Name:      "cache_misses_total",
		Help:      "Reads that fell through to a provider fetch.",
	})

	ProviderRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "teamarr",
		Subsystem: "provider",
		Name:      "requests_total",
		Help:      "HTTP requests issued to sports data providers.",
	}, []string{"provider"})
	ProviderRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "teamarr",
		Subsystem: "provider",
		Name:      "retries_total",
		Help:      "Retried provider requests.",
	}, []string{"provider"})
	ProviderRateWaits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "teamarr",
		Subsystem: "provider",
		Name:      "rate_waits_total",
		Help:      "Rate limiter waits by kind (preemptive, reactive).",
	}, []string{"provider", "kind"})

	MatchAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "teamarr",
		Subsystem: "matcher",
		Name:      "attempts_total",
		Help:      "Stream name match attempts by outcome.",
	}, []string{"outcome"})
	MatchFingerprintHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "teamarr",
		Subsystem: "matcher",
		Name:      "fingerprint_hits_total",
		Help:      "Matches served from the fingerprint cache.",
	})

	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "teamarr",
		Subsystem: "epg",
		Name:      "runs_total",
		Help:      "Completed generation runs by final status.",
	}, []string{"status"})
	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "teamarr",
		Subsystem: "epg",
		Name:      "run_duration_seconds",
		Help:      "Wall time of a full generation run.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
	})
	ProgrammesEmitted = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "teamarr",
		Subsystem: "epg",
		Name:      "programmes_emitted",
		Help:      "Programme count in the last written XMLTV file.",
	})
	ChannelsEmitted = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "teamarr",
		Subsystem: "epg",
		Name:      "channels_emitted",
		Help:      "Channel count in the last written XMLTV file.",
	})
)
