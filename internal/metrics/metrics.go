package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "marketplace"

var (
	// HTTP request metrics
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HttpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// Store quota metrics
	StoresCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stores_created_total",
			Help:      "Stores created, by plan",
		},
		[]string{"plan"},
	)

	QuotaRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_rejections_total",
			Help:      "Store creations rejected because the plan limit was reached",
		},
		[]string{"plan"},
	)

	UploadRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_rejections_total",
			Help:      "Attachments rejected by the plan upload policy",
		},
		[]string{"plan"},
	)

	OwnersOverQuota = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "owners_over_quota",
			Help:      "Owners holding more stores than their current plan allows",
		},
	)

	// Wizard metrics
	WizardTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wizard_transitions_total",
			Help:      "Registration wizard transitions",
		},
		[]string{"transition"},
	)

	RemoteRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_retries_total",
			Help:      "Retries of transient document store failures",
		},
		[]string{"operation"},
	)
)

func RecordStoreCreated(plan string) {
	StoresCreatedTotal.WithLabelValues(plan).Inc()
}

func RecordQuotaRejection(plan string) {
	QuotaRejectionsTotal.WithLabelValues(plan).Inc()
}

func RecordUploadRejection(plan string) {
	UploadRejectionsTotal.WithLabelValues(plan).Inc()
}

func RecordWizardTransition(transition string) {
	WizardTransitionsTotal.WithLabelValues(transition).Inc()
}

func RecordRemoteRetry(operation string) {
	RemoteRetriesTotal.WithLabelValues(operation).Inc()
}

// Middleware adds prometheus metrics to track HTTP requests
func Middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()

		err := next(c)

		status := c.Response().Status
		if he, ok := err.(*echo.HTTPError); ok {
			status = he.Code
		}

		labels := []string{c.Request().Method, c.Path(), strconv.Itoa(status)}
		HttpRequestsTotal.WithLabelValues(labels...).Inc()
		HttpRequestDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())

		return err
	}
}
