// Package metrics exposes Prometheus collectors for the scraper service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	scrapePagesTotal           *prometheus.CounterVec
	scrapeBytesTotal           *prometheus.CounterVec
	scrapeListingsTotal        prometheus.Counter
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	browserInstallsTotal       *prometheus.CounterVec
	browserInstallSeconds      *prometheus.HistogramVec
	headlessRendersTotal       *prometheus.CounterVec
	rateLimitDelaysSeconds     *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		scrapePagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_pages_total",
				Help: "Total number of pages fetched, labeled by site and status.",
			},
			[]string{"site", "status"},
		)

		scrapeBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_bytes_total",
				Help: "Total number of bytes fetched, labeled by site.",
			},
			[]string{"site"},
		)

		scrapeListingsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "scraper_listings_total",
				Help: "Total number of listings extracted.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)

		browserInstallsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_browser_installs_total",
				Help: "Browser provisioning attempts, labeled by mode and result.",
			},
			[]string{"mode", "result"},
		)

		browserInstallSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scraper_browser_install_seconds",
				Help:    "Duration of browser provisioning passes, labeled by mode.",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"mode"},
		)

		headlessRendersTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_headless_renders_total",
				Help: "Headless render attempts, labeled by backend and result.",
			},
			[]string{"backend", "result"},
		)

		rateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scraper_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
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

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveScrape increments the page fetch metrics.
func ObserveScrape(site string, status string, bytesFetched int) {
	sanitizedSite := SanitizeSite(site)
	scrapePagesTotal.WithLabelValues(sanitizedSite, status).Inc()
	if bytesFetched > 0 {
		scrapeBytesTotal.WithLabelValues(sanitizedSite).Add(float64(bytesFetched))
	}
}

// ObserveListings adds extracted listings to the running total.
func ObserveListings(count int) {
	if count > 0 {
		scrapeListingsTotal.Add(float64(count))
	}
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveBrowserInstall records one provisioning attempt. Mode is "driver",
// "install" or "forced", result is "ok" or "error".
func ObserveBrowserInstall(mode, result string, duration time.Duration) {
	browserInstallsTotal.WithLabelValues(mode, result).Inc()
	browserInstallSeconds.WithLabelValues(mode).Observe(duration.Seconds())
}

// ObserveHeadlessRender records one render attempt for the given backend.
func ObserveHeadlessRender(backend, result string) {
	headlessRendersTotal.WithLabelValues(backend, result).Inc()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	rateLimitDelaysSeconds.WithLabelValues(domain).Observe(duration.Seconds())
}
