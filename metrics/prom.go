package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PasteCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pastebin_paste_created_total",
		Help: "no. of pastes created",
	})
	Transitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pastebin_transitions_total",
			Help: "no. of entry lifecycle transitions",
		},
		[]string{"op"},
	)
	CapacityEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pastebin_capacity_evictions_total",
		Help: "no. of active entries moved to deleted by the size cap",
	})
	RetentionEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pastebin_retention_evictions_total",
		Help: "no. of deleted entries permanently discarded",
	})
	ListSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pastebin_list_entries",
			Help: "current no. of entries per list",
		},
		[]string{"list"},
	)
	ShortURLHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pastebin_short_url_hits_total",
		Help: "no. of requests served through a short url",
	})
	Saves = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pastebin_saves_total",
			Help: "no. of persistence saves by result",
		},
		[]string{"result"},
	)
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pastebin_page_cache_hits_total",
		Help: "no. of rendered page cache hits",
	})
	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pastebin_page_cache_misses_total",
		Help: "no. of rendered page cache misses",
	})
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pastebin_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status"},
	)
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pastebin_rate_limit_hits_total",
			Help: "no. of rate limit violations",
		},
		[]string{"endpoint"},
	)
	RecentErrorRatePercent = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pastebin_recent_error_rate_percent",
		Help: "error rate over the last five minutes",
	})
	AdaptiveMode = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pastebin_rate_limit_adaptive_mode",
		Help: "1 while rate limits are halved after an error spike",
	})
)

// SetListSizes publishes the current list lengths.
func SetListSizes(active, pinned, deleted int) {
	ListSize.WithLabelValues("active").Set(float64(active))
	ListSize.WithLabelValues("pinned").Set(float64(pinned))
	ListSize.WithLabelValues("deleted").Set(float64(deleted))
}
