package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(analysisJobsTotal, analysisJobsInFlight) }

var (
	analysisJobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_jobs_total",
			Help:      "Total number of analysis jobs finished, labeled by status and error kind.",
		},
		[]string{"status", "error_kind"}, // 'completed'|'failed', 'none'|'transport'|...
	)

	analysisJobsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "analysis_jobs_in_flight",
			Help:      "Analysis jobs currently waiting on the remote service.",
		},
	)
)

func IncAnalysisJob(status, errorKind string) {
	if errorKind == "" {
		errorKind = "none"
	}
	analysisJobsTotal.WithLabelValues(norm(status), norm(errorKind)).Inc()
}

// TrackInFlight increments the in-flight gauge and returns its decrement.
func TrackInFlight() func() {
	analysisJobsInFlight.Inc()
	return analysisJobsInFlight.Dec
}
