// Package metrics exposes Prometheus collectors for roomwatch runs.
package metrics

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Alert outcomes used as the status label of roomwatch_alerts_total.
const (
	AlertSent    = "sent"
	AlertFailed  = "failed"
	AlertSkipped = "skipped"
)

// Store write outcomes used as the result label of roomwatch_store_writes_total.
const (
	WriteChanged   = "changed"
	WriteUnchanged = "unchanged"
	WriteError     = "error"
)

var (
	fetchesTotal        *prometheus.CounterVec
	fetchBytesTotal     *prometheus.CounterVec
	listingsScraped     prometheus.Gauge
	listingsFresh       prometheus.Gauge
	listingsVanished    prometheus.Gauge
	alertsTotal         *prometheus.CounterVec
	storeWritesTotal    *prometheus.CounterVec
	runDurationSeconds  prometheus.Histogram
	lastSuccessfulRunTS prometheus.Gauge

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		fetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "roomwatch_fetches_total",
				Help: "Total number of board fetches, labeled by site and status.",
			},
			[]string{"site", "status"},
		)

		fetchBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "roomwatch_fetch_bytes_total",
				Help: "Total number of bytes fetched, labeled by site.",
			},
			[]string{"site"},
		)

		listingsScraped = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "roomwatch_listings_scraped",
				Help: "Number of listings in the latest snapshot.",
			},
		)

		listingsFresh = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "roomwatch_listings_fresh",
				Help: "Number of listings inside the freshness window in the latest run.",
			},
		)

		listingsVanished = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "roomwatch_listings_vanished",
				Help: "Number of listings that turned inactive in the latest run.",
			},
		)

		alertsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "roomwatch_alerts_total",
				Help: "Total number of alerts, labeled by status.",
			},
			[]string{"status"},
		)

		storeWritesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "roomwatch_store_writes_total",
				Help: "Total number of history saves, labeled by result.",
			},
			[]string{"result"},
		)

		runDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "roomwatch_run_duration_seconds",
				Help:    "Histogram of full run durations.",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
			},
		)

		lastSuccessfulRunTS = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "roomwatch_last_success_timestamp_seconds",
				Help: "Unix time of the last run that completed without a fatal error.",
			},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// ObserveFetch records one board fetch.
func ObserveFetch(site, status string, bytesFetched int) {
	Init()
	sanitized := SanitizeSite(site)
	fetchesTotal.WithLabelValues(sanitized, status).Inc()
	if bytesFetched > 0 {
		fetchBytesTotal.WithLabelValues(sanitized).Add(float64(bytesFetched))
	}
}

// ObserveSnapshot sets the per-run listing gauges.
func ObserveSnapshot(scraped, fresh, vanished int) {
	Init()
	listingsScraped.Set(float64(scraped))
	listingsFresh.Set(float64(fresh))
	listingsVanished.Set(float64(vanished))
}

// ObserveAlerts adds n alerts with the given status.
func ObserveAlerts(status string, n int) {
	if n <= 0 {
		return
	}
	Init()
	alertsTotal.WithLabelValues(status).Add(float64(n))
}

// ObserveStoreWrite records the outcome of a history save.
func ObserveStoreWrite(result string) {
	Init()
	storeWritesTotal.WithLabelValues(result).Inc()
}

// ObserveRun records a finished run.
func ObserveRun(duration time.Duration, succeeded bool, finishedAt time.Time) {
	Init()
	runDurationSeconds.Observe(duration.Seconds())
	if succeeded {
		lastSuccessfulRunTS.Set(float64(finishedAt.Unix()))
	}
}

// Push sends every registered collector to a Pushgateway under job.
func Push(ctx context.Context, gatewayURL, job string) error {
	if gatewayURL == "" {
		return nil
	}
	if job == "" {
		job = "roomwatch"
	}
	err := push.New(gatewayURL, job).
		Gatherer(prometheus.DefaultGatherer).
		PushContext(ctx)
	if err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
