package spc

import "fmt"

// InvalidMeasurementError сигнализирует о некорректном (NaN/Inf) значении измерения.
// Такое измерение не попадает в окно своего оператора; обработка остальных
// записей потока продолжается.
type InvalidMeasurementError struct {
	Operator string
	Item     int
	Value    float64
}

func (e *InvalidMeasurementError) Error() string {
	return fmt.Sprintf("invalid measurement: operator=%s item=%d value=%v", e.Operator, e.Item, e.Value)
}
