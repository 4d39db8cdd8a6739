package spc

import (
	"errors"
	"math"
	"sort"
	"sync"

	"spc-service/internal/models"
)

// Evaluate обрабатывает упорядоченный конечный поток измерений.
// Поток разбивается по операторам, внутри каждого раздела записи
// сортируются по номеру детали (стабильно, повторные номера сохраняют
// порядок ввода) и прогоняются через скользящее окно. Результаты
// возвращаются строго в исходном порядке входа, по одному на каждое
// корректное измерение.
//
// Разделы операторов независимы и обрабатываются параллельно: на каждый
// раздел одна горутина, результаты собираются по исходному индексу записи,
// поэтому общих блокировок нет. Раздел никогда не делится между горутинами -
// окно строится строго последовательно.
//
// Некорректные значения (NaN/Inf) не попадают в окно и не дают результата;
// соответствующие InvalidMeasurementError объединяются и возвращаются
// вторым значением вместе с результатами остальных записей.
// Пустой вход не является ошибкой и даёт пустой выход.
func Evaluate(measurements []models.Measurement) ([]models.EvaluatedMeasurement, error) {
	results := make([]*models.EvaluatedMeasurement, len(measurements))
	errs := make([]error, len(measurements))

	// Разбивка по операторам с сохранением исходных индексов
	partitions := make(map[string][]int)
	for i, m := range measurements {
		partitions[m.Operator] = append(partitions[m.Operator], i)
	}

	var wg sync.WaitGroup
	for _, indices := range partitions {
		wg.Add(1)
		go func(indices []int) {
			defer wg.Done()
			evaluatePartition(measurements, indices, results, errs)
		}(indices)
	}
	wg.Wait()

	out := make([]models.EvaluatedMeasurement, 0, len(measurements))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out, errors.Join(errs...)
}

// evaluatePartition обрабатывает раздел одного оператора.
// Каждая горутина пишет только в свои исходные индексы results/errs,
// поэтому синхронизация не нужна.
func evaluatePartition(measurements []models.Measurement, indices []int, results []*models.EvaluatedMeasurement, errs []error) {
	sort.SliceStable(indices, func(a, b int) bool {
		return measurements[indices[a]].Item < measurements[indices[b]].Item
	})

	window := NewWindow(WindowSize)
	for _, i := range indices {
		m := measurements[i]
		if math.IsNaN(m.Value) || math.IsInf(m.Value, 0) {
			errs[i] = &InvalidMeasurementError{Operator: m.Operator, Item: m.Item, Value: m.Value}
			continue
		}
		r := evaluate(window, m)
		results[i] = &r
	}
}
