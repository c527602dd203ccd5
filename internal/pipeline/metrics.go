package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/domain"
)

var (
	taskRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intellistock_task_runs_total",
		Help: "Refresh task runs by task and status",
	}, []string{"task", "status"})

	taskDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "intellistock_task_duration_seconds",
		Help:    "Refresh task run duration",
		Buckets: prometheus.DefBuckets,
	}, []string{"task"})

	taskRecords = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "intellistock_task_records",
		Help: "Records processed by the latest run of each task",
	}, []string{"task"})

	taskSkipsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intellistock_task_skips_total",
		Help: "Scheduler skips by task and reason",
	}, []string{"task", "reason"})

	// 0 stale, 1 refreshing, 2 fresh
	taskState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "intellistock_task_state",
		Help: "Refresh state per task",
	}, []string{"task"})

	taskLogWriteFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intellistock_task_log_write_failures_total",
		Help: "Task execution log entries that could not be written",
	}, []string{"task"})

	alertsGeneratedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "intellistock_alerts_generated_total",
		Help: "Alerts inserted after deduplication",
	})
)

func observeState(task string, state domain.RefreshState) {
	v := 0.0
	switch state {
	case domain.StateRefreshing:
		v = 1
	case domain.StateFresh:
		v = 2
	}
	taskState.WithLabelValues(task).Set(v)
}

func logLockRelease(task string, err error) {
	log.Warn().Err(err).Str("task", task).Msg("failed to release distributed task lock")
}
