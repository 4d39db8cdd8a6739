// Package spc реализует расчёт контрольных границ (SPC) по скользящему окну
// Для каждого оператора ведётся окно из 5 последних измерений, по которому
// считаются среднее и выборочное стандартное отклонение; выход значения за
// границы avg ± 3σ/√5 помечается как alert
package spc

import (
	"math"

	"spc-service/internal/models"
)

const (
	// WindowSize размер скользящего окна (5 последних измерений оператора)
	WindowSize = 5
	// SigmaMultiplier множитель для контрольных границ (3σ)
	SigmaMultiplier = 3.0
)

// limitDivisor - знаменатель в формуле контрольных границ.
// Всегда √5 независимо от фактического заполнения окна (1..5):
// так считает исходная формула, и это поведение сохранено намеренно.
var limitDivisor = math.Sqrt(float64(WindowSize))

// Limits вычисляет верхнюю и нижнюю контрольные границы
func Limits(avg, stdDev float64) (ucl, lcl float64) {
	delta := SigmaMultiplier * stdDev / limitDivisor
	return avg + delta, avg - delta
}

// evaluate добавляет измерение в окно и классифицирует его.
// Для первого измерения потока stddev равен 0, границы совпадают со средним
// и alert всегда false. Граничные значения (value == UCL или LCL) не считаются alert.
func evaluate(w *Window, m models.Measurement) models.EvaluatedMeasurement {
	w.Add(m.Value)

	avg := w.Mean()
	stdDev := w.StdDev()
	ucl, lcl := Limits(avg, stdDev)

	return models.EvaluatedMeasurement{
		Operator: m.Operator,
		Item:     m.Item,
		Value:    m.Value,
		Avg:      avg,
		StdDev:   stdDev,
		UCL:      ucl,
		LCL:      lcl,
		Alert:    m.Value < lcl || m.Value > ucl,
	}
}
