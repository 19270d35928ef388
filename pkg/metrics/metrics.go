package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Catalog metrics
	ItemsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "archi3d_items_total",
			Help: "Total number of items in the catalog",
		},
	)

	IssuesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "archi3d_items_issues_total",
			Help: "Total number of open catalog issues by tag",
		},
		[]string{"issue"},
	)

	CatalogBuildDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "archi3d_catalog_build_duration_seconds",
			Help:    "Time taken to build the catalog",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Planner metrics
	PlannerCandidatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "archi3d_planner_candidates_total",
			Help: "Total (item, algo) candidates considered by the planner, by run",
		},
		[]string{"run_id"},
	)

	PlannerEnqueuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "archi3d_planner_enqueued_total",
			Help: "Total jobs enqueued by the planner, by run",
		},
		[]string{"run_id"},
	)

	PlannerSkippedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "archi3d_planner_skipped_total",
			Help: "Total candidates skipped by the planner, by reason",
		},
		[]string{"reason"},
	)

	PlanDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "archi3d_plan_duration_seconds",
			Help:    "Time taken to plan a batch",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Worker metrics
	JobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "archi3d_jobs_total",
			Help: "Total jobs processed by the worker engine, by algo and outcome",
		},
		[]string{"algo", "outcome"},
	)

	JobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "archi3d_job_duration_seconds",
			Help:    "Job generation duration in seconds, by algo",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		},
		[]string{"algo"},
	)

	JobRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "archi3d_job_retries_total",
			Help: "Total transient-failure retries attempted, by algo",
		},
		[]string{"algo"},
	)

	// Consolidator metrics
	ConsolidationConsideredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "archi3d_consolidation_considered_total",
			Help: "Total rows considered by the consolidator, by run",
		},
		[]string{"run_id"},
	)

	ConsolidationUpdatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "archi3d_consolidation_updated_total",
			Help: "Total rows updated by the consolidator, by run",
		},
		[]string{"run_id"},
	)

	ConsolidationConflictsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "archi3d_consolidation_conflicts_resolved_total",
			Help: "Total duplicate-row conflicts resolved by the consolidator, by run",
		},
		[]string{"run_id"},
	)

	ConsolidationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "archi3d_consolidation_duration_seconds",
			Help:    "Time taken for a consolidation pass",
			Buckets: prometheus.DefBuckets,
		},
	)

	// GenerationsByStatus is a gauge snapshot refreshed by Collector.
	GenerationsByStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "archi3d_generations_by_status",
			Help: "Current count of generation rows by status, by run",
		},
		[]string{"run_id", "status"},
	)
)

func init() {
	prometheus.MustRegister(ItemsTotal)
	prometheus.MustRegister(IssuesTotal)
	prometheus.MustRegister(CatalogBuildDuration)

	prometheus.MustRegister(PlannerCandidatesTotal)
	prometheus.MustRegister(PlannerEnqueuedTotal)
	prometheus.MustRegister(PlannerSkippedTotal)
	prometheus.MustRegister(PlanDuration)

	prometheus.MustRegister(JobsTotal)
	prometheus.MustRegister(JobDuration)
	prometheus.MustRegister(JobRetriesTotal)

	prometheus.MustRegister(ConsolidationConsideredTotal)
	prometheus.MustRegister(ConsolidationUpdatedTotal)
	prometheus.MustRegister(ConsolidationConflictsTotal)
	prometheus.MustRegister(ConsolidationDuration)

	prometheus.MustRegister(GenerationsByStatus)
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed time to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the elapsed time to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
