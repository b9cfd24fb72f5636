package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	webhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Webhook deliveries by endpoint and outcome",
		},
		[]string{"endpoint", "outcome"},
	)

	syncRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_runs_total",
			Help: "Marketplace sync runs by channel, operation, and result",
		},
		[]string{"channel", "operation", "result"},
	)

	syncRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_records_total",
			Help: "Records handled by sync runs, split by outcome",
		},
		[]string{"channel", "operation", "outcome"},
	)

	syncRunDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sync_run_duration_seconds",
			Help:    "Duration of marketplace sync runs",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"channel", "operation"},
	)
)

func init() {
	prometheus.MustRegister(webhookEventsTotal)
	prometheus.MustRegister(syncRunsTotal)
	prometheus.MustRegister(syncRecordsTotal)
	prometheus.MustRegister(syncRunDuration)
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func RecordWebhookEvent(endpoint, outcome string) {
	webhookEventsTotal.WithLabelValues(endpoint, outcome).Inc()
}

func RecordSyncRun(channel, operation, result string, duration time.Duration) {
	syncRunsTotal.WithLabelValues(channel, operation, result).Inc()
	syncRunDuration.WithLabelValues(channel, operation).Observe(duration.Seconds())
}

func AddSyncRecords(channel, operation string, processed, failed int32) {
	syncRecordsTotal.WithLabelValues(channel, operation, "processed").Add(float64(processed))
	syncRecordsTotal.WithLabelValues(channel, operation, "failed").Add(float64(failed))
}
