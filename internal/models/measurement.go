// Package models содержит структуры данных для измерений и результатов SPC-анализа
package models

import (
	"errors"
	"math"
	"time"
)

// Measurement представляет одно измерение детали, произведённой оператором.
// Item - порядковый номер детали, уникальный и возрастающий внутри потока оператора.
type Measurement struct {
	Operator string  `json:"operator"`
	Item     int     `json:"item"`
	Value    float64 `json:"value"`
}

// Validate проверяет корректность измерения
func (m *Measurement) Validate() error {
	if m.Operator == "" {
		return errors.New("operator is required")
	}

	if m.Item < 0 {
		return errors.New("item must be non-negative")
	}

	if math.IsNaN(m.Value) || math.IsInf(m.Value, 0) {
		return errors.New("value must be a finite number")
	}

	return nil
}

// EvaluatedMeasurement содержит измерение вместе с вычисленными контрольными
// границами. Avg и StdDev считаются по скользящему окну оператора,
// UCL/LCL - верхняя и нижняя контрольные границы, Alert - выход за границы.
type EvaluatedMeasurement struct {
	Operator string  `json:"operator"`
	Item     int     `json:"item"`
	Value    float64 `json:"value"`
	Avg      float64 `json:"avg"`
	StdDev   float64 `json:"std_dev"`
	UCL      float64 `json:"ucl"`
	LCL      float64 `json:"lcl"`
	Alert    bool    `json:"alert"`
}

// MeasurementBatch представляет пакет измерений для массовой загрузки
type MeasurementBatch struct {
	Measurements []Measurement `json:"measurements"`
}

// OperatorStats содержит текущее состояние окна оператора
type OperatorStats struct {
	Operator   string  `json:"operator"`
	WindowSize int     `json:"window_size"`
	Avg        float64 `json:"avg"`
	StdDev     float64 `json:"std_dev"`
	UCL        float64 `json:"ucl"`
	LCL        float64 `json:"lcl"`
}

// HealthStatus представляет статус здоровья сервиса
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Redis     string    `json:"redis"`
	Uptime    string    `json:"uptime"`
}

// StatsResponse содержит статистику сервиса
type StatsResponse struct {
	TotalMeasurements int64 `json:"total_measurements"`
	AlertsCount       int64 `json:"alerts_count"`
	OperatorsTracked  int   `json:"operators_tracked"`
}
