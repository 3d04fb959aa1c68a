// Package metrics
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	DBQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Duration of database queries in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"query_name"},
	)
	FetchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scrape_fetch_duration_seconds",
			Help:    "Wall-clock duration of proxied fetches in seconds.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)
	FetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrape_fetches_total",
			Help: "Total number of proxied fetches, labeled by origin status code (0 for network failures).",
		},
		[]string{"status_code"},
	)
	BlocksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrape_blocks_total",
			Help: "Total number of fetches classified as blocked, labeled by block type.",
		},
		[]string{"block_type"},
	)
	ConsecutiveBlocks = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "scrape_consecutive_blocks",
			Help: "Current run of consecutive blocked fetches.",
		},
	)
	CyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrape_cycles_total",
			Help: "Total number of cycles, labeled by outcome.",
		},
		[]string{"outcome"},
	)
	AutoStopsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scrape_auto_stops_total",
			Help: "Total number of times the circuit breaker disabled scraping.",
		},
	)
	Enabled = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "scrape_enabled",
			Help: "1 when scraping is enabled, 0 otherwise.",
		},
	)
)

func init() {
	prometheus.MustRegister(DBQueryDuration)
	prometheus.MustRegister(FetchDuration)
	prometheus.MustRegister(FetchesTotal)
	prometheus.MustRegister(BlocksTotal)
	prometheus.MustRegister(ConsecutiveBlocks)
	prometheus.MustRegister(CyclesTotal)
	prometheus.MustRegister(AutoStopsTotal)
	prometheus.MustRegister(Enabled)
}

// ObserveFetch records one fetch outcome.
func ObserveFetch(status int, seconds float64, blockType string) {
	FetchDuration.Observe(seconds)
	FetchesTotal.WithLabelValues(strconv.Itoa(status)).Inc()
	if blockType != "" {
		BlocksTotal.WithLabelValues(blockType).Inc()
	}
}

func SetEnabled(enabled bool) {
	if enabled {
		Enabled.Set(1)
		return
	}
	Enabled.Set(0)
}

func Handler() http.Handler {
	return promhttp.Handler()
}
