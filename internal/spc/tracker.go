package spc

import (
	"math"
	"sort"
	"sync"

	"spc-service/internal/models"
)

// Tracker выполняет онлайн-оценку измерений для HTTP-пути.
// Ведёт по одному окну на оператора; измерения применяются в порядке
// поступления. Для строгого порядка по номеру детали используется
// пакетная обработка (Evaluate).
type Tracker struct {
	mu        sync.RWMutex
	windows   map[string]*Window
	processed int64
	alerts    int64
}

// NewTracker создает новый трекер
func NewTracker() *Tracker {
	return &Tracker{
		windows: make(map[string]*Window),
	}
}

// Track добавляет измерение в окно его оператора и возвращает оценку
func (t *Tracker) Track(m models.Measurement) (models.EvaluatedMeasurement, error) {
	if math.IsNaN(m.Value) || math.IsInf(m.Value, 0) {
		return models.EvaluatedMeasurement{}, &InvalidMeasurementError{Operator: m.Operator, Item: m.Item, Value: m.Value}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	window, ok := t.windows[m.Operator]
	if !ok {
		window = NewWindow(WindowSize)
		t.windows[m.Operator] = window
	}

	result := evaluate(window, m)

	t.processed++
	if result.Alert {
		t.alerts++
	}

	return result, nil
}

// OperatorStats возвращает текущее состояние окна оператора
func (t *Tracker) OperatorStats(operator string) (models.OperatorStats, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	window, ok := t.windows[operator]
	if !ok {
		return models.OperatorStats{}, false
	}
	return t.statsLocked(operator, window), true
}

// AllStats возвращает состояние окон всех операторов, отсортированное по оператору
func (t *Tracker) AllStats() []models.OperatorStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	stats := make([]models.OperatorStats, 0, len(t.windows))
	for operator, window := range t.windows {
		stats = append(stats, t.statsLocked(operator, window))
	}
	sort.Slice(stats, func(i, j int) bool {
		return stats[i].Operator < stats[j].Operator
	})
	return stats
}

func (t *Tracker) statsLocked(operator string, window *Window) models.OperatorStats {
	avg := window.Mean()
	stdDev := window.StdDev()
	ucl, lcl := Limits(avg, stdDev)
	return models.OperatorStats{
		Operator:   operator,
		WindowSize: window.Count(),
		Avg:        avg,
		StdDev:     stdDev,
		UCL:        ucl,
		LCL:        lcl,
	}
}

// Operators возвращает количество отслеживаемых операторов
func (t *Tracker) Operators() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.windows)
}

// Counters возвращает счётчики обработанных измерений и алертов
func (t *Tracker) Counters() (processed, alerts int64) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.processed, t.alerts
}

// Reset очищает все окна и счётчики
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.windows = make(map[string]*Window)
	t.processed = 0
	t.alerts = 0
}
