// Package observability registers the Prometheus collectors exported on /metrics.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	activitiesRecorded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "carbon_tracker",
		Subsystem: "ledger",
		Name:      "activities_recorded_total",
		Help:      "Activities appended to the ledger, by category.",
	}, []string{"category"})
	emissionsRecorded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "carbon_tracker",
		Subsystem: "ledger",
		Name:      "emissions_recorded_kg_total",
		Help:      "Kilograms of CO2e appended to the ledger, by category.",
	}, []string{"category"})
	activitiesRemoved = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "carbon_tracker",
		Subsystem: "ledger",
		Name:      "activities_removed_total",
		Help:      "Activities deleted by their owners.",
	})
	backdatedActivities = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "carbon_tracker",
		Subsystem: "streak",
		Name:      "backdated_activities_total",
		Help:      "Activities dated before the owner's last activity day; the streak was left untouched.",
	})
	lastActivityGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "carbon_tracker",
		Subsystem: "ledger",
		Name:      "last_activity_recorded_timestamp_seconds",
		Help:      "Unix timestamp of the most recent activity appended to the ledger.",
	})
	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "carbon_tracker",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by method, route pattern and status.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
	panicsRecovered = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "carbon_tracker",
		Name:      "panics_recovered_total",
		Help:      "Handler panics turned into internal errors, by transport.",
	}, []string{"transport"})
)

func init() {
	prometheus.MustRegister(
		activitiesRecorded,
		emissionsRecorded,
		activitiesRemoved,
		backdatedActivities,
		lastActivityGauge,
		httpDuration,
		panicsRecovered,
	)
}

// RecordActivity counts an appended activity and moves the watermark gauge.
func RecordActivity(category string, kg float64, ts time.Time) {
	activitiesRecorded.WithLabelValues(category).Inc()
	if kg > 0 {
		emissionsRecorded.WithLabelValues(category).Add(kg)
	}
	if !ts.IsZero() {
		lastActivityGauge.Set(float64(ts.Unix()))
	}
}

// RecordRemoval counts a deleted activity.
func RecordRemoval() { activitiesRemoved.Inc() }

// RecordBackdated counts an activity that did not advance the streak.
func RecordBackdated() { backdatedActivities.Inc() }

// ObserveHTTP records one served request.
func ObserveHTTP(method, route string, status int, d time.Duration) {
	httpDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}

// RecordPanic counts a recovered panic; transport is "http" or "grpc".
func RecordPanic(transport string) { panicsRecovered.WithLabelValues(transport).Inc() }

// Handler serves the default registry.
func Handler() http.Handler { return promhttp.Handler() }
