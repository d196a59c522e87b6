package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(searchRequestsTotal, searchLatencyMs, searchBackendUp)
}

var (
	searchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_requests_total",
			Help: "Course search calls by result (ok, empty, failed).",
		},
		[]string{"result"},
	)

	searchLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "search_latency_ms",
			Help:    "Course search latency distribution in milliseconds.",
			Buckets: []float64{10, 25, 50, 100, 200, 400, 800, 1600, 3000, 5000},
		},
		[]string{"success"},
	)

	searchBackendUp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "search_backend_up",
			Help: "1 when the last health probe of the search backend succeeded.",
		},
	)
)

func ObserveSearch(result string, latencyMs int64, success bool) {
	searchRequestsTotal.WithLabelValues(norm(result)).Inc()
	searchLatencyMs.WithLabelValues(strconv.FormatBool(success)).Observe(float64(latencyMs))
}

func SetSearchBackendUp(up bool) {
	if up {
		searchBackendUp.Set(1)
		return
	}
	searchBackendUp.Set(0)
}
