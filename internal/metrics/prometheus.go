// Package metrics реализует экспорт метрик в Prometheus
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus метрики
var (
	// RequestsTotal общее количество запросов
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spc_requests_total",
			Help: "Total number of requests processed",
		},
		[]string{"endpoint", "method", "status"},
	)

	// RequestDuration длительность запросов
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "spc_request_duration_seconds",
			Help:    "Request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"endpoint", "method"},
	)

	// MeasurementsReceived количество полученных измерений
	MeasurementsReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "spc_measurements_received_total",
			Help: "Total number of measurements received",
		},
	)

	// AlertsTotal количество измерений за контрольными границами по операторам
	AlertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spc_alerts_total",
			Help: "Total number of out-of-control measurements",
		},
		[]string{"operator"},
	)

	// OperatorsTracked количество отслеживаемых операторов
	OperatorsTracked = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "spc_operators_tracked",
			Help: "Number of operators with an active control window",
		},
	)

	// WindowAvg скользящее среднее по операторам
	WindowAvg = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "spc_window_avg",
			Help: "Rolling window average per operator",
		},
		[]string{"operator"},
	)

	// WindowUCL верхняя контрольная граница по операторам
	WindowUCL = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "spc_window_ucl",
			Help: "Upper control limit per operator",
		},
		[]string{"operator"},
	)

	// WindowLCL нижняя контрольная граница по операторам
	WindowLCL = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "spc_window_lcl",
			Help: "Lower control limit per operator",
		},
		[]string{"operator"},
	)

	// CacheHits попадания в кэш
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "spc_cache_hits_total",
			Help: "Total number of cache hits",
		},
	)

	// CacheMisses промахи кэша
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "spc_cache_misses_total",
			Help: "Total number of cache misses",
		},
	)

	// ActiveGoroutines количество активных горутин
	ActiveGoroutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "spc_active_goroutines",
			Help: "Number of active goroutines",
		},
	)

	// EvaluationLatency время вычисления оценки
	EvaluationLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "spc_evaluation_latency_seconds",
			Help:    "Evaluation computation latency in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05},
		},
	)
)

// UpdateEvaluationMetrics обновляет метрики по результату оценки
func UpdateEvaluationMetrics(operator string, avg, ucl, lcl float64, alert bool) {
	WindowAvg.WithLabelValues(operator).Set(avg)
	WindowUCL.WithLabelValues(operator).Set(ucl)
	WindowLCL.WithLabelValues(operator).Set(lcl)
	if alert {
		AlertsTotal.WithLabelValues(operator).Inc()
	}
}
