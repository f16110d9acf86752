package graph

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// resolvedDependencies is a Gauge of the dependency count in the most
	// recently built graph.
	resolvedDependencies *prometheus.GaugeVec
	// buildLatency is a Histogram of Build's wall-clock duration.
	buildLatency *prometheus.HistogramVec
)

// EnableMetrics enables metrics collection for graph builds. Opt-in, mirrors
// cache.EnableMetrics. Available metrics are...
//   - protofetch_resolved_dependencies - (tags: module)
//     A Gauge of the dependency count in the most recently built graph.
//   - protofetch_graph_build_latency_seconds - (tags: module)
//     A Histogram tracking Build's wall-clock duration.
func EnableMetrics(namespace string, registerer prometheus.Registerer) {
	resolvedDependencies = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "protofetch_resolved_dependencies",
		Help:      "Dependency count in the most recently built graph",
	},
		[]string{"module"},
	)

	buildLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "protofetch_graph_build_latency_seconds",
		Help:      "Latency of graph builds",
		Buckets:   []float64{0.1, 0.5, 1, 5, 10, 20, 30, 60, 90},
	},
		[]string{"module"},
	)

	registerer.MustRegister(resolvedDependencies, buildLatency)
}

func recordBuild(module string, start time.Time, dependencyCount int) {
	if buildLatency == nil {
		return
	}
	buildLatency.WithLabelValues(module).Observe(time.Since(start).Seconds())
	resolvedDependencies.WithLabelValues(module).Set(float64(dependencyCount))
}
