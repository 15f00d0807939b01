// Package metrics holds the process-wide Prometheus collectors served on
// /metrics.
package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry = prometheus.NewRegistry()

	scoresComputed     = counter("ats_scores_computed_total", "Total ATS scores computed")
	checkoutsCreated   = counter("checkouts_created_total", "Total checkout sessions created")
	paymentsCompleted  = counter("payments_completed_total", "Total payments completed")
	paymentsFailed     = counter("payments_failed_total", "Total payments failed")
	paymentsRefunded   = counter("payments_refunded_total", "Total payments refunded")
	reconcileConflicts = counter("reconcile_conflicts_total", "Concurrent reconciliations that lost the race")
	exportsCompleted   = counter("exports_completed_total", "Total PDF exports delivered")
	exportsDenied      = counter("exports_denied_total", "PDF exports refused for lack of downloads")
	workerProcessed    = counter("worker_jobs_processed_total", "Score jobs processed by workers")
	workerFailed       = counter("worker_jobs_failed_total", "Score jobs that failed in workers")

	exportDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "export_duration_ms",
		Help:    "PDF export duration in milliseconds",
		Buckets: []float64{25, 50, 100, 250, 500, 1000, 2500, 5000},
	})
)

func init() {
	registry.MustRegister(
		exportDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

func counter(name, help string) prometheus.Counter {
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
	registry.MustRegister(c)
	return c
}

func IncScoresComputed()     { scoresComputed.Inc() }
func IncCheckoutsCreated()   { checkoutsCreated.Inc() }
func IncPaymentsCompleted()  { paymentsCompleted.Inc() }
func IncPaymentsFailed()     { paymentsFailed.Inc() }
func IncPaymentsRefunded()   { paymentsRefunded.Inc() }
func IncReconcileConflicts() { reconcileConflicts.Inc() }
func IncExportsCompleted()   { exportsCompleted.Inc() }
func IncExportsDenied()      { exportsDenied.Inc() }
func IncWorkerProcessed()    { workerProcessed.Inc() }
func IncWorkerFailed()       { workerFailed.Inc() }

// ObserveExportDurationMs records a render+store duration in milliseconds.
func ObserveExportDurationMs(value float64) {
	exportDuration.Observe(max(value, 0))
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
