package cache

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// lastFetchTimestamp is a Gauge that captures the timestamp of the
	// last successful bare-repository fetch.
	lastFetchTimestamp *prometheus.GaugeVec
	// fetchCount is a Counter vector of EnsureBare clone/fetch attempts.
	fetchCount *prometheus.CounterVec
	// fetchLatency is a Histogram vector tracking EnsureBare durations.
	fetchLatency *prometheus.HistogramVec
)

// EnableMetrics enables metrics collection for cache fetches. Opt-in, for
// library callers embedding this package; the CLI's one-shot process does
// not call it. Available metrics are...
//   - protofetch_last_fetch_timestamp - (tags: coordinate)
//     A Gauge that captures the timestamp of the last successful fetch.
//   - protofetch_fetch_count - (tags: coordinate,success)
//     A Counter for each fetch attempt, tagged with the result.
//   - protofetch_fetch_latency_seconds - (tags: coordinate)
//     A Histogram that keeps track of fetch latency per coordinate.
func EnableMetrics(namespace string, registerer prometheus.Registerer) {
	lastFetchTimestamp = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "protofetch_last_fetch_timestamp",
		Help:      "Timestamp of the last successful cache fetch",
	},
		[]string{"coordinate"},
	)

	fetchCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "protofetch_fetch_count",
		Help:      "Count of cache fetch operations",
	},
		[]string{"coordinate", "success"},
	)

	fetchLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "protofetch_fetch_latency_seconds",
		Help:      "Latency for cache fetch operations",
		Buckets:   []float64{0.1, 0.5, 1, 5, 10, 20, 30, 60, 90},
	},
		[]string{"coordinate"},
	)

	registerer.MustRegister(lastFetchTimestamp, fetchCount, fetchLatency)
}

func recordFetch(coordinate string, success bool) {
	if fetchCount == nil {
		return
	}
	if success {
		lastFetchTimestamp.With(prometheus.Labels{"coordinate": coordinate}).Set(float64(time.Now().Unix()))
	}
	fetchCount.With(prometheus.Labels{
		"coordinate": coordinate,
		"success":    strconv.FormatBool(success),
	}).Inc()
}

func updateFetchLatency(coordinate string, start time.Time) {
	if fetchLatency == nil {
		return
	}
	fetchLatency.WithLabelValues(coordinate).Observe(time.Since(start).Seconds())
}
