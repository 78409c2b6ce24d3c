package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Config carries the constant labels applied to every metric.
type Config struct {
	ServiceName string
	Environment string
}

// EngineMetrics captures health signals for the flash-sale engine: issuance
// outcomes, admission-queue throughput and scheduler tick behaviour.
type EngineMetrics struct {
	issuanceResults   *prometheus.CounterVec
	rollbackFailures  prometheus.Counter
	queueAdmissions   *prometheus.CounterVec
	queueJoins        *prometheus.CounterVec
	schedulerRuns     *prometheus.CounterVec
	schedulerErrors   *prometheus.CounterVec
	schedulerSkipped  prometheus.Counter
	schedulerDuration *prometheus.HistogramVec
}

var (
	engineMetricsOnce sync.Once
	engineMetrics     *EngineMetrics
)

// Engine returns the singleton engine metrics registry.
func Engine() *EngineMetrics {
	return EngineWithConfig(Config{})
}

// EngineWithConfig returns the singleton engine metrics registry using config labels.
func EngineWithConfig(cfg Config) *EngineMetrics {
	engineMetricsOnce.Do(func() {
		engineMetrics = newEngineMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return engineMetrics
}

// ResetEngineMetricsForTest resets the engine metrics singleton for tests.
func ResetEngineMetricsForTest() {
	engineMetricsOnce = sync.Once{}
	engineMetrics = nil
}

func newEngineMetrics(registerer prometheus.Registerer, cfg Config) *EngineMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "flashsale"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	issuanceResults := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "flashsale_issuance_results_total",
		Help:        "Atomic issuance outcomes by result.",
		ConstLabels: constLabels,
	}, []string{"kind", "result"})
	rollbackFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "flashsale_issuance_rollback_failures_total",
		Help:        "Ledger rollbacks that failed and require manual reconciliation.",
		ConstLabels: constLabels,
	})
	queueAdmissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "flashsale_queue_admissions_total",
		Help:        "Queue entries released into ENTERED state.",
		ConstLabels: constLabels,
	}, []string{"event_type"})
	queueJoins := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "flashsale_queue_joins_total",
		Help:        "Requesters joining a waiting queue.",
		ConstLabels: constLabels,
	}, []string{"event_type"})
	schedulerRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "flashsale_scheduler_job_runs_total",
		Help:        "Lifecycle scheduler job runs by name.",
		ConstLabels: constLabels,
	}, []string{"job"})
	schedulerErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "flashsale_scheduler_job_errors_total",
		Help:        "Lifecycle scheduler job errors by name.",
		ConstLabels: constLabels,
	}, []string{"job"})
	schedulerSkipped := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "flashsale_scheduler_ticks_skipped_total",
		Help:        "Ticks skipped because another instance held the cluster lock.",
		ConstLabels: constLabels,
	})
	schedulerDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "flashsale_scheduler_job_duration_seconds",
		Help:        "Lifecycle scheduler job latency.",
		Buckets:     []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		ConstLabels: constLabels,
	}, []string{"job"})

	register := func(c prometheus.Collector) prometheus.Collector {
		if err := registerer.Register(c); err != nil {
			if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
				return are.ExistingCollector
			}
			panic(err)
		}
		return c
	}

	issuanceResults = register(issuanceResults).(*prometheus.CounterVec)
	rollbackFailures = register(rollbackFailures).(prometheus.Counter)
	queueAdmissions = register(queueAdmissions).(*prometheus.CounterVec)
	queueJoins = register(queueJoins).(*prometheus.CounterVec)
	schedulerRuns = register(schedulerRuns).(*prometheus.CounterVec)
	schedulerErrors = register(schedulerErrors).(*prometheus.CounterVec)
	schedulerSkipped = register(schedulerSkipped).(prometheus.Counter)
	schedulerDuration = register(schedulerDuration).(*prometheus.HistogramVec)

	return &EngineMetrics{
		issuanceResults:   issuanceResults,
		rollbackFailures:  rollbackFailures,
		queueAdmissions:   queueAdmissions,
		queueJoins:        queueJoins,
		schedulerRuns:     schedulerRuns,
		schedulerErrors:   schedulerErrors,
		schedulerSkipped:  schedulerSkipped,
		schedulerDuration: schedulerDuration,
	}
}

func (m *EngineMetrics) IncIssuanceResult(kind, result string) {
	if m == nil {
		return
	}
	m.issuanceResults.WithLabelValues(kind, result).Inc()
}

func (m *EngineMetrics) IncRollbackFailure() {
	if m == nil {
		return
	}
	m.rollbackFailures.Inc()
}

func (m *EngineMetrics) AddQueueAdmissions(eventType string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.queueAdmissions.WithLabelValues(eventType).Add(float64(n))
}

func (m *EngineMetrics) IncQueueJoin(eventType string) {
	if m == nil {
		return
	}
	m.queueJoins.WithLabelValues(eventType).Inc()
}

func (m *EngineMetrics) IncJobRun(job string) {
	if m == nil {
		return
	}
	m.schedulerRuns.WithLabelValues(job).Inc()
}

func (m *EngineMetrics) IncJobError(job string) {
	if m == nil {
		return
	}
	m.schedulerErrors.WithLabelValues(job).Inc()
}

func (m *EngineMetrics) IncTickSkipped() {
	if m == nil {
		return
	}
	m.schedulerSkipped.Inc()
}

func (m *EngineMetrics) ObserveJobDuration(job string, d time.Duration) {
	if m == nil {
		return
	}
	m.schedulerDuration.WithLabelValues(job).Observe(d.Seconds())
}
