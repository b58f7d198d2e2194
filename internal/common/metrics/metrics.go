package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RemindersScheduled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reminder_scheduled_total",
			Help: "Total number of interview reminders scheduled",
		},
	)

	RemindersCancelled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminder_cancelled_total",
			Help: "Total number of interview reminders cancelled",
		},
		[]string{"reason"},
	)

	RemindersSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminder_skipped_total",
			Help: "Total number of schedule requests skipped without a record",
		},
		[]string{"reason"},
	)

	DeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminder_deliveries_total",
			Help: "Total number of delivery attempts by terminal status",
		},
		[]string{"status"},
	)

	ScanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "reminder_scan_duration_seconds",
			Help: "Duration of a due-notification scan run in seconds",
		},
	)

	PendingBacklog = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reminder_pending_backlog",
			Help: "Number of notifications currently in PENDING state",
		},
	)
)
