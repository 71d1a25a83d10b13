package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(buildInfo)
}

var buildInfo = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "build_info",
		Help:      "A constant metric with labels for version, commit and the configured Space endpoint.",
	},
	[]string{"version", "commit", "endpoint"},
)

func SetBuildInfo(version, commit, endpoint string) {
	buildInfo.WithLabelValues(version, commit, endpoint).Set(1)
}
