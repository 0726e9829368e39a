// File: internal/infra/metrics/metrics.go
package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is an explicitly constructed collector set owned by the process
// wiring and passed to callers. All methods tolerate a nil receiver so tests
// can run without a registry.
type Metrics struct {
	paymentsTotal    *prometheus.CounterVec
	webhooksTotal    *prometheus.CounterVec
	activationsTotal *prometheus.CounterVec
	recoveriesTotal  *prometheus.CounterVec
	jobDuration      *prometheus.HistogramVec
	jobProcessed     *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		paymentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payments_total",
			Help: "Payment records by status (pending/success/failed).",
		}, []string{"status"}),
		webhooksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payment_webhooks_total",
			Help: "Inbound gateway webhooks by outcome (applied/duplicate/divergent/orphan/rejected).",
		}, []string{"outcome"}),
		activationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "campaign_activations_total",
			Help: "Campaign activations by plan; recovered marks reconciliation repairs.",
		}, []string{"plan", "recovered"}),
		recoveriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "campaign_recoveries_total",
			Help: "Stuck campaigns repaired, by path (paid/free).",
		}, []string{"path"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "batch_job_duration_seconds",
			Help:    "Batch job run duration.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"job"}),
		jobProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batch_job_processed_total",
			Help: "Rows processed by batch jobs (swept, recovered, removed).",
		}, []string{"job"}),
	}
	reg.MustRegister(m.paymentsTotal, m.webhooksTotal, m.activationsTotal,
		m.recoveriesTotal, m.jobDuration, m.jobProcessed)
	return m
}

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func (m *Metrics) IncPayment(status string) {
	if m == nil {
		return
	}
	m.paymentsTotal.WithLabelValues(norm(status)).Inc()
}

func (m *Metrics) IncWebhook(outcome string) {
	if m == nil {
		return
	}
	m.webhooksTotal.WithLabelValues(norm(outcome)).Inc()
}

func (m *Metrics) IncActivation(plan string, recovered bool) {
	if m == nil {
		return
	}
	m.activationsTotal.WithLabelValues(norm(plan), strconv.FormatBool(recovered)).Inc()
}

func (m *Metrics) IncRecovery(path string) {
	if m == nil {
		return
	}
	m.recoveriesTotal.WithLabelValues(norm(path)).Inc()
}

func (m *Metrics) ObserveJob(job string, d time.Duration, processed int) {
	if m == nil {
		return
	}
	m.jobDuration.WithLabelValues(norm(job)).Observe(d.Seconds())
	if processed > 0 {
		m.jobProcessed.WithLabelValues(norm(job)).Add(float64(processed))
	}
}
