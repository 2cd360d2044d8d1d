package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "relay"

// Metrics — Prometheus метрики relay.
//
// Все методы безопасны для nil-получателя: компоненты,
// созданные без метрик (например, в тестах), просто ничего не пишут.
type Metrics struct {
	cycles           prometheus.Counter
	flowRuns         *prometheus.CounterVec
	flowDuration     *prometheus.HistogramVec
	serviceRuns      *prometheus.CounterVec
	serviceDuration  *prometheus.HistogramVec
	contractFailures *prometheus.CounterVec
	configReloads    *prometheus.CounterVec
	servicesLoaded   prometheus.Gauge
}

// NewMetrics создаёт метрики и регистрирует их в reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Number of orchestration cycles started.",
		}),
		flowRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flow_runs_total",
			Help:      "Number of flow runs by final status.",
		}, []string{"flow", "status"}),
		flowDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "flow_duration_seconds",
			Help:      "Wall-clock duration of flow runs.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		}, []string{"flow"}),
		serviceRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "service_executions_total",
			Help:      "Number of service process executions by result.",
		}, []string{"service", "result"}),
		serviceDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "service_duration_seconds",
			Help:      "Duration of service processes.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 14),
		}, []string{"service"}),
		contractFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "contract_failures_total",
			Help:      "Number of failed data contract verifications.",
		}, []string{"direction", "reason"}),
		configReloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "config_reloads_total",
			Help:      "Number of configuration file reloads by kind and result.",
		}, []string{"kind", "result"}),
		servicesLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "services_loaded",
			Help:      "Number of services in the active configuration.",
		}),
	}

	reg.MustRegister(
		m.cycles,
		m.flowRuns,
		m.flowDuration,
		m.serviceRuns,
		m.serviceDuration,
		m.contractFailures,
		m.configReloads,
		m.servicesLoaded,
	)

	return m
}

// CycleStarted увеличивает счётчик циклов.
func (m *Metrics) CycleStarted() {
	if m == nil {
		return
	}
	m.cycles.Inc()
}

// FlowFinished записывает результат flow.
func (m *Metrics) FlowFinished(flow, status string, seconds float64) {
	if m == nil {
		return
	}
	m.flowRuns.WithLabelValues(flow, status).Inc()
	m.flowDuration.WithLabelValues(flow).Observe(seconds)
}

// ServiceExecuted записывает результат процесса сервиса.
// result: "ok", "exit_error", "launch_error", "timeout".
func (m *Metrics) ServiceExecuted(service, result string, seconds float64) {
	if m == nil {
		return
	}
	m.serviceRuns.WithLabelValues(service, result).Inc()
	m.serviceDuration.WithLabelValues(service).Observe(seconds)
}

// ContractFailed увеличивает счётчик проваленных проверок контракта.
func (m *Metrics) ContractFailed(direction, reason string) {
	if m == nil {
		return
	}
	m.contractFailures.WithLabelValues(direction, reason).Inc()
}

// ConfigReloaded записывает перезагрузку файла конфигурации.
// kind: "program" или "service"; result: "ok" или "error".
func (m *Metrics) ConfigReloaded(kind, result string) {
	if m == nil {
		return
	}
	m.configReloads.WithLabelValues(kind, result).Inc()
}

// SetServicesLoaded выставляет число активных сервисов.
func (m *Metrics) SetServicesLoaded(n int) {
	if m == nil {
		return
	}
	m.servicesLoaded.Set(float64(n))
}
