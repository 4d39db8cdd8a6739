// Package handlers содержит HTTP обработчики для API
package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"spc-service/internal/cache"
	"spc-service/internal/metrics"
	"spc-service/internal/models"
	"spc-service/internal/source"
	"spc-service/internal/spc"
)

// Handler содержит зависимости для HTTP обработчиков
type Handler struct {
	tracker   *spc.Tracker
	cache     *cache.RedisCache
	startTime time.Time
}

// NewHandler создает новый обработчик
func NewHandler(tracker *spc.Tracker, cache *cache.RedisCache) *Handler {
	return &Handler{
		tracker:   tracker,
		cache:     cache,
		startTime: time.Now(),
	}
}

// MeasurementHandler обрабатывает POST /measurements - прием одного измерения
func (h *Handler) MeasurementHandler(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues("/measurements", r.Method))
	defer timer.ObserveDuration()

	var m models.Measurement
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		h.respondError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		metrics.RequestsTotal.WithLabelValues("/measurements", r.Method, "400").Inc()
		return
	}

	if err := m.Validate(); err != nil {
		h.respondError(w, "Invalid measurement: "+err.Error(), http.StatusBadRequest)
		metrics.RequestsTotal.WithLabelValues("/measurements", r.Method, "400").Inc()
		return
	}

	// Кэшируем измерение в Redis
	if h.cache != nil {
		if err := h.cache.CacheMeasurement(m); err != nil {
			// Логируем ошибку, но продолжаем обработку
			metrics.CacheMisses.Inc()
		} else {
			metrics.CacheHits.Inc()
		}
		h.cache.IncrementCounter("measurements:total")
	}

	metrics.MeasurementsReceived.Inc()

	startEval := time.Now()
	result, err := h.tracker.Track(m)
	metrics.EvaluationLatency.Observe(time.Since(startEval).Seconds())

	var invalidErr *spc.InvalidMeasurementError
	if errors.As(err, &invalidErr) {
		h.respondError(w, err.Error(), http.StatusBadRequest)
		metrics.RequestsTotal.WithLabelValues("/measurements", r.Method, "400").Inc()
		return
	}

	h.recordEvaluation(result)

	metrics.RequestsTotal.WithLabelValues("/measurements", r.Method, "200").Inc()
	h.respondJSON(w, result, http.StatusOK)
}

// BatchHandler обрабатывает POST /measurements/batch - массовая загрузка измерений.
// Пакет обрабатывается как упорядоченный конечный поток: внутри каждого
// оператора записи сортируются по номеру детали, результаты возвращаются
// в исходном порядке входа.
func (h *Handler) BatchHandler(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues("/measurements/batch", r.Method))
	defer timer.ObserveDuration()

	var batch models.MeasurementBatch
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		h.respondError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		metrics.RequestsTotal.WithLabelValues("/measurements/batch", r.Method, "400").Inc()
		return
	}

	response := h.evaluateBatch(batch.Measurements)

	metrics.RequestsTotal.WithLabelValues("/measurements/batch", r.Method, "200").Inc()
	h.respondJSON(w, response, http.StatusOK)
}

// ImportHandler обрабатывает POST /measurements/import - загрузка CSV
// (operator,item,value; первая строка может быть заголовком)
func (h *Handler) ImportHandler(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues("/measurements/import", r.Method))
	defer timer.ObserveDuration()

	measurements, err := source.ReadCSV(r.Body)
	if err != nil {
		h.respondError(w, "Invalid CSV: "+err.Error(), http.StatusBadRequest)
		metrics.RequestsTotal.WithLabelValues("/measurements/import", r.Method, "400").Inc()
		return
	}

	response := h.evaluateBatch(measurements)

	metrics.RequestsTotal.WithLabelValues("/measurements/import", r.Method, "200").Inc()
	h.respondJSON(w, response, http.StatusOK)
}

// evaluateBatch прогоняет измерения через пакетный оценщик и кэширует результаты
func (h *Handler) evaluateBatch(measurements []models.Measurement) map[string]interface{} {
	for _, m := range measurements {
		if h.cache != nil {
			_ = h.cache.CacheMeasurement(m)
			h.cache.IncrementCounter("measurements:total")
		}
		metrics.MeasurementsReceived.Inc()
	}

	startEval := time.Now()
	results, err := spc.Evaluate(measurements)
	metrics.EvaluationLatency.Observe(time.Since(startEval).Seconds())
	if err != nil {
		log.Printf("Batch contained invalid measurements: %v", err)
	}

	alertsCount := 0
	for _, result := range results {
		h.recordEvaluation(result)
		if result.Alert {
			alertsCount++
		}
	}

	return map[string]interface{}{
		"processed":    len(results),
		"skipped":      len(measurements) - len(results),
		"alerts_found": alertsCount,
		"results":      results,
	}
}

// recordEvaluation обновляет метрики и кэш по одному результату
func (h *Handler) recordEvaluation(result models.EvaluatedMeasurement) {
	metrics.UpdateEvaluationMetrics(result.Operator, result.Avg, result.UCL, result.LCL, result.Alert)

	if h.cache != nil {
		_ = h.cache.CacheEvaluation(result)
		if result.Alert {
			h.cache.IncrementCounter("alerts:total")
		}
	}

	if result.Alert {
		log.Printf("ALERT: operator=%s item=%d value=%.3f outside [%.3f, %.3f]",
			result.Operator, result.Item, result.Value, result.LCL, result.UCL)
	}
}

// ControlHandler обрабатывает GET /control - текущие контрольные границы.
// С параметром operator возвращает окно одного оператора, без него - всех.
func (h *Handler) ControlHandler(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues("/control", r.Method))
	defer timer.ObserveDuration()

	if operator := r.URL.Query().Get("operator"); operator != "" {
		stats, ok := h.tracker.OperatorStats(operator)
		if !ok {
			h.respondError(w, "Unknown operator: "+operator, http.StatusNotFound)
			metrics.RequestsTotal.WithLabelValues("/control", r.Method, "404").Inc()
			return
		}
		metrics.RequestsTotal.WithLabelValues("/control", r.Method, "200").Inc()
		h.respondJSON(w, stats, http.StatusOK)
		return
	}

	response := map[string]interface{}{
		"timestamp": time.Now(),
		"operators": h.tracker.AllStats(),
		"thresholds": map[string]float64{
			"sigma_multiplier": spc.SigmaMultiplier,
			"window_size":      float64(spc.WindowSize),
		},
	}

	metrics.RequestsTotal.WithLabelValues("/control", r.Method, "200").Inc()
	h.respondJSON(w, response, http.StatusOK)
}

// HealthHandler обрабатывает GET /health - проверка здоровья
func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	redisStatus := "disconnected"
	if h.cache != nil && h.cache.Ping() == nil {
		redisStatus = "connected"
	}

	status := models.HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now(),
		Redis:     redisStatus,
		Uptime:    time.Since(h.startTime).String(),
	}

	h.respondJSON(w, status, http.StatusOK)
}

// StatsHandler обрабатывает GET /stats - статистика сервиса
func (h *Handler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues("/stats", r.Method))
	defer timer.ObserveDuration()

	// Обновляем метрику горутин
	metrics.ActiveGoroutines.Set(float64(runtime.NumGoroutine()))

	var totalMeasurements int64
	var alertsCount int64

	if h.cache != nil {
		totalMeasurements, _ = h.cache.GetCounter("measurements:total")
		alertsCount, _ = h.cache.GetCounter("alerts:total")
	} else {
		totalMeasurements, alertsCount = h.tracker.Counters()
	}

	response := models.StatsResponse{
		TotalMeasurements: totalMeasurements,
		AlertsCount:       alertsCount,
		OperatorsTracked:  h.tracker.Operators(),
	}

	metrics.OperatorsTracked.Set(float64(h.tracker.Operators()))

	metrics.RequestsTotal.WithLabelValues("/stats", r.Method, "200").Inc()
	h.respondJSON(w, response, http.StatusOK)
}

// LatestMeasurementsHandler возвращает последние измерения из кэша
func (h *Handler) LatestMeasurementsHandler(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues("/measurements/latest", r.Method))
	defer timer.ObserveDuration()

	if h.cache == nil {
		h.respondError(w, "Cache not available", http.StatusServiceUnavailable)
		return
	}

	measurements, err := h.cache.GetLatestMeasurements(h.countParam(r))
	if err != nil {
		h.respondError(w, "Failed to get measurements: "+err.Error(), http.StatusInternalServerError)
		return
	}

	metrics.RequestsTotal.WithLabelValues("/measurements/latest", r.Method, "200").Inc()
	h.respondJSON(w, measurements, http.StatusOK)
}

// AlertsHandler возвращает последние алерты из кэша
func (h *Handler) AlertsHandler(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues("/alerts", r.Method))
	defer timer.ObserveDuration()

	if h.cache == nil {
		h.respondError(w, "Cache not available", http.StatusServiceUnavailable)
		return
	}

	alerts, err := h.cache.GetLatestAlerts(h.countParam(r))
	if err != nil {
		h.respondError(w, "Failed to get alerts: "+err.Error(), http.StatusInternalServerError)
		return
	}

	metrics.RequestsTotal.WithLabelValues("/alerts", r.Method, "200").Inc()
	h.respondJSON(w, alerts, http.StatusOK)
}

// countParam читает параметр count (по умолчанию 50, максимум 1000)
func (h *Handler) countParam(r *http.Request) int64 {
	count := int64(50)
	if countStr := r.URL.Query().Get("count"); countStr != "" {
		if c, err := strconv.ParseInt(countStr, 10, 64); err == nil && c > 0 && c <= 1000 {
			count = c
		}
	}
	return count
}

// respondJSON отправляет JSON ответ
func (h *Handler) respondJSON(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError отправляет ошибку в JSON формате
func (h *Handler) respondError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
