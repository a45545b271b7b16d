// Package metrics счётчики Prometheus для проверок доступа, процедур, биллинга
// и напоминаний.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "stable_manager"

// Слои, в которых принимается решение о доступе.
const (
	LayerGateway   = "gateway"
	LayerProcedure = "procedure"
)

// Metrics набор метрик сервиса. Нулевой указатель допустим: все методы становятся no-op.
type Metrics struct {
	registry          *prometheus.Registry
	decisions         *prometheus.CounterVec
	checkFailures     *prometheus.CounterVec
	procedureCalls    *prometheus.CounterVec
	procedureDuration *prometheus.HistogramVec
	billingEvents     *prometheus.CounterVec
	trialReminders    *prometheus.CounterVec
}

// New регистрирует метрики в собственном реестре вместе со стандартными
// коллекторами процесса и рантайма Go.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entitlement_decisions_total",
			Help:      "Entitlement decisions by layer and code (ALLOW for granted access).",
		}, []string{"layer", "code"}),
		checkFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entitlement_check_failures_total",
			Help:      "Entitlement checks that could not read the account snapshot.",
		}, []string{"layer"}),
		procedureCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "procedure_calls_total",
			Help:      "Procedure calls by procedure name and result code.",
		}, []string{"procedure", "code"}),
		procedureDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "procedure_duration_seconds",
			Help:      "Procedure call latency including guards.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"procedure"}),
		billingEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "billing_events_total",
			Help:      "Billing webhook events by type and processing result.",
		}, []string{"event", "result"}),
		trialReminders: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trial_reminders_total",
			Help:      "Trial ending reminders by result.",
		}, []string{"result"}),
	}
}

// Handler отдаёт метрики в формате Prometheus.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// IncDecision учитывает решение о доступе. Пустой code означает разрешение.
func (m *Metrics) IncDecision(layer, code string) {
	if m == nil {
		return
	}
	if code == "" {
		code = "ALLOW"
	}
	m.decisions.WithLabelValues(layer, code).Inc()
}

// IncCheckFailure учитывает ошибку чтения снимка аккаунта.
func (m *Metrics) IncCheckFailure(layer string) {
	if m == nil {
		return
	}
	m.checkFailures.WithLabelValues(layer).Inc()
}

// ObserveProcedure учитывает вызов процедуры.
func (m *Metrics) ObserveProcedure(procedure, code string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.procedureCalls.WithLabelValues(procedure, code).Inc()
	m.procedureDuration.WithLabelValues(procedure).Observe(elapsed.Seconds())
}

// IncBillingEvent учитывает событие биллинга.
func (m *Metrics) IncBillingEvent(event, result string) {
	if m == nil {
		return
	}
	m.billingEvents.WithLabelValues(event, result).Inc()
}

// IncTrialReminder учитывает попытку отправки напоминания.
func (m *Metrics) IncTrialReminder(result string) {
	if m == nil {
		return
	}
	m.trialReminders.WithLabelValues(result).Inc()
}
