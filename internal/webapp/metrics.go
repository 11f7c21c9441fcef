package webapp

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	tasksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "otterdog_tasks_total",
		Help: "Tasks processed, by type and final status.",
	}, []string{"type", "status"})

	taskDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "otterdog_task_duration_seconds",
		Help:    "Task execution time in seconds.",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	}, []string{"type"})

	tasksInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "otterdog_tasks_in_flight",
		Help: "Tasks currently being executed.",
	})

	tasksQueued = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "otterdog_tasks_queued",
		Help: "Tasks waiting for a worker.",
	})

	webhookDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "otterdog_webhook_deliveries_total",
		Help: "Webhook deliveries received, by event type.",
	}, []string{"event"})

	driftResources = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "otterdog_drift_resources",
		Help: "Resources diverging from the configuration, by organization.",
	}, []string{"org"})
)
