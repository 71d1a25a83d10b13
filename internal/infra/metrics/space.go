package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		spaceEnqueueSeconds,
		spaceStreamSeconds,
		spaceStreamFramesTotal,
	)
}

var (
	spaceEnqueueSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "space_enqueue_seconds",
			Help:      "Latency of job enqueue requests.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"success"},
	)

	spaceStreamSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "space_stream_seconds",
			Help:      "Time from opening a job stream to its resolution.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80, 160, 300},
		},
		[]string{"error_kind"},
	)

	spaceStreamFramesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "space_stream_frames_total",
			Help:      "Frames received on job streams, by event type.",
		},
		[]string{"event"},
	)
)

var knownEvents = map[string]bool{
	"heartbeat":  true,
	"generating": true,
	"complete":   true,
	"error":      true,
}

func ObserveEnqueue(success bool, d time.Duration) {
	spaceEnqueueSeconds.WithLabelValues(strconv.FormatBool(success)).Observe(d.Seconds())
}

// ObserveStream records a resolved stream; kind is "" on success.
func ObserveStream(kind string, d time.Duration) {
	if kind == "" {
		kind = "none"
	}
	spaceStreamSeconds.WithLabelValues(norm(kind)).Observe(d.Seconds())
}

// IncStreamFrame counts a frame. Unrecognised event names share one label.
func IncStreamFrame(event string) {
	e := norm(event)
	switch {
	case e == "":
		e = "none"
	case !knownEvents[e]:
		e = "other"
	}
	spaceStreamFramesTotal.WithLabelValues(e).Inc()
}
