package spc

import (
	"errors"
	"math"
	"testing"

	"spc-service/internal/models"
)

const floatTol = 1e-6

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestEvaluate_ReferenceExample(t *testing.T) {
	// Оператор Op-1, высоты деталей 13..17
	heights := []float64{20.50, 20.10, 19.90, 20.30, 19.33}
	measurements := make([]models.Measurement, len(heights))
	for i, h := range heights {
		measurements[i] = models.Measurement{Operator: "Op-1", Item: 13 + i, Value: h}
	}

	results, err := Evaluate(measurements)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(results) != len(measurements) {
		t.Fatalf("Expected %d results, got %d", len(measurements), len(results))
	}

	// Первая запись потока: окно из одного значения
	first := results[0]
	if first.Alert {
		t.Error("First record of a stream must not alert")
	}
	if first.UCL != first.Value || first.LCL != first.Value {
		t.Errorf("Expected UCL == LCL == value for first record, got ucl=%.4f lcl=%.4f value=%.4f",
			first.UCL, first.LCL, first.Value)
	}

	// Пятая запись: окно заполнено, 19.33 ниже LCL
	last := results[4]
	if !almostEqual(last.Avg, 20.026, floatTol) {
		t.Errorf("Expected avg 20.026, got %.6f", last.Avg)
	}
	if !almostEqual(last.StdDev, 0.4487533, 1e-5) {
		t.Errorf("Expected stddev 0.44875, got %.6f", last.StdDev)
	}
	if !almostEqual(last.UCL, 20.6280657, 1e-5) {
		t.Errorf("Expected UCL 20.62807, got %.6f", last.UCL)
	}
	if !almostEqual(last.LCL, 19.4239343, 1e-5) {
		t.Errorf("Expected LCL 19.42393, got %.6f", last.LCL)
	}
	if !last.Alert {
		t.Error("Expected alert for item 17: value 19.33 is below LCL")
	}

	// Алгебраическое тождество для всех записей
	for _, r := range results {
		want := 6 * r.StdDev / math.Sqrt(5)
		if !almostEqual(r.UCL-r.LCL, want, 1e-9) {
			t.Errorf("Item %d: ucl-lcl = %.9f, want 6*stddev/sqrt(5) = %.9f", r.Item, r.UCL-r.LCL, want)
		}
	}
}

func TestEvaluate_SingleMeasurement(t *testing.T) {
	results, err := Evaluate([]models.Measurement{
		{Operator: "Op-9", Item: 1, Value: 25.0},
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(results))
	}

	r := results[0]
	if r.Avg != 25.0 || r.StdDev != 0 || r.UCL != 25.0 || r.LCL != 25.0 {
		t.Errorf("Expected avg=ucl=lcl=25, stddev=0; got avg=%.4f stddev=%.4f ucl=%.4f lcl=%.4f",
			r.Avg, r.StdDev, r.UCL, r.LCL)
	}
	if r.Alert {
		t.Error("Single-record stream must not alert")
	}
}

func TestEvaluate_IdenticalValuesNoAlert(t *testing.T) {
	// stddev = 0, границы совпадают со значением; попадание ровно на границу - не алерт
	var measurements []models.Measurement
	for i := 1; i <= 7; i++ {
		measurements = append(measurements, models.Measurement{Operator: "Op-2", Item: i, Value: 42.0})
	}

	results, err := Evaluate(measurements)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	for _, r := range results {
		if r.Alert {
			t.Errorf("Item %d: value on the control limit must not alert", r.Item)
		}
		if r.UCL != 42.0 || r.LCL != 42.0 {
			t.Errorf("Item %d: expected ucl=lcl=42, got ucl=%.4f lcl=%.4f", r.Item, r.UCL, r.LCL)
		}
	}
}

func TestEvaluate_FixedDivisorForPartialWindow(t *testing.T) {
	// Делитель в формуле границ всегда √5, даже когда окно заполнено частично
	results, err := Evaluate([]models.Measurement{
		{Operator: "Op-3", Item: 1, Value: 10},
		{Operator: "Op-3", Item: 2, Value: 14},
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	second := results[1]
	// avg=12, выборочное stddev=sqrt(8); ucl = 12 + 3*sqrt(8)/sqrt(5)
	wantUCL := 12 + 3*math.Sqrt(8)/math.Sqrt(5)
	if !almostEqual(second.UCL, wantUCL, 1e-9) {
		t.Errorf("Expected UCL %.6f (divisor sqrt(5)), got %.6f", wantUCL, second.UCL)
	}
}

func TestEvaluate_PreservesInputOrder(t *testing.T) {
	measurements := []models.Measurement{
		{Operator: "A", Item: 1, Value: 10},
		{Operator: "B", Item: 1, Value: 100},
		{Operator: "A", Item: 2, Value: 11},
		{Operator: "C", Item: 5, Value: 7},
		{Operator: "B", Item: 2, Value: 101},
		{Operator: "A", Item: 3, Value: 12},
	}

	results, err := Evaluate(measurements)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(results) != len(measurements) {
		t.Fatalf("Expected %d results, got %d", len(measurements), len(results))
	}

	for i, r := range results {
		if r.Operator != measurements[i].Operator || r.Item != measurements[i].Item {
			t.Errorf("Position %d: expected %s/%d, got %s/%d",
				i, measurements[i].Operator, measurements[i].Item, r.Operator, r.Item)
		}
	}
}

func TestEvaluate_SortsPartitionByItem(t *testing.T) {
	// Окно строится по номеру детали, а не по порядку поступления
	measurements := []models.Measurement{
		{Operator: "A", Item: 3, Value: 30},
		{Operator: "A", Item: 1, Value: 10},
		{Operator: "A", Item: 2, Value: 20},
	}

	results, err := Evaluate(measurements)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	// Результаты в исходном порядке входа, но статистика - в порядке items:
	// item 1 -> avg 10, item 2 -> avg 15, item 3 -> avg 20
	wantAvg := map[int]float64{1: 10, 2: 15, 3: 20}
	for i, r := range results {
		if r.Item != measurements[i].Item {
			t.Errorf("Position %d: expected item %d, got %d", i, measurements[i].Item, r.Item)
		}
		if !almostEqual(r.Avg, wantAvg[r.Item], floatTol) {
			t.Errorf("Item %d: expected avg %.2f, got %.2f", r.Item, wantAvg[r.Item], r.Avg)
		}
	}
}

func TestEvaluate_InvalidValue(t *testing.T) {
	measurements := []models.Measurement{
		{Operator: "A", Item: 1, Value: 10},
		{Operator: "A", Item: 2, Value: math.NaN()},
		{Operator: "A", Item: 3, Value: 20},
		{Operator: "B", Item: 1, Value: 5},
	}

	results, err := Evaluate(measurements)
	if err == nil {
		t.Fatal("Expected error for NaN measurement")
	}

	var invalidErr *InvalidMeasurementError
	if !errors.As(err, &invalidErr) {
		t.Fatalf("Expected InvalidMeasurementError, got %v", err)
	}
	if invalidErr.Operator != "A" || invalidErr.Item != 2 {
		t.Errorf("Expected error for A/2, got %s/%d", invalidErr.Operator, invalidErr.Item)
	}

	// Некорректная запись не даёт результата и не попадает в окно
	if len(results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(results))
	}
	// item 3 оператора A считается по окну {10, 20}
	third := results[1]
	if third.Operator != "A" || third.Item != 3 {
		t.Fatalf("Expected second result to be A/3, got %s/%d", third.Operator, third.Item)
	}
	if !almostEqual(third.Avg, 15.0, floatTol) {
		t.Errorf("Expected avg 15 (NaN excluded from window), got %.4f", third.Avg)
	}

	// Независимые операторы обработаны
	if results[2].Operator != "B" {
		t.Errorf("Expected operator B processed, got %s", results[2].Operator)
	}
}

func TestEvaluate_EmptyInput(t *testing.T) {
	results, err := Evaluate(nil)
	if err != nil {
		t.Fatalf("Empty input must not fail: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("Expected empty output, got %d results", len(results))
	}
}

func TestEvaluate_Idempotent(t *testing.T) {
	measurements := []models.Measurement{
		{Operator: "A", Item: 1, Value: 10.5},
		{Operator: "B", Item: 1, Value: 99.1},
		{Operator: "A", Item: 2, Value: 11.2},
		{Operator: "A", Item: 3, Value: 9.8},
		{Operator: "B", Item: 2, Value: 98.4},
	}

	first, err1 := Evaluate(measurements)
	second, err2 := Evaluate(measurements)
	if err1 != nil || err2 != nil {
		t.Fatalf("Unexpected errors: %v, %v", err1, err2)
	}

	if len(first) != len(second) {
		t.Fatalf("Result lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("Position %d differs between runs: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestEvaluate_AlertMatchesLimits(t *testing.T) {
	measurements := []models.Measurement{
		{Operator: "A", Item: 1, Value: 20.1},
		{Operator: "A", Item: 2, Value: 19.9},
		{Operator: "A", Item: 3, Value: 20.0},
		{Operator: "A", Item: 4, Value: 20.2},
		{Operator: "A", Item: 5, Value: 25.0},
		{Operator: "A", Item: 6, Value: 20.1},
	}

	results, err := Evaluate(measurements)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	for _, r := range results {
		want := r.Value < r.LCL || r.Value > r.UCL
		if r.Alert != want {
			t.Errorf("Item %d: alert=%v inconsistent with value=%.4f limits=[%.4f, %.4f]",
				r.Item, r.Alert, r.Value, r.LCL, r.UCL)
		}
	}

	// Выброс 25.0 обязан дать алерт
	if !results[4].Alert {
		t.Error("Expected alert for the 25.0 outlier")
	}
}

func BenchmarkEvaluate(b *testing.B) {
	measurements := make([]models.Measurement, 1000)
	for i := range measurements {
		measurements[i] = models.Measurement{
			Operator: "Op-" + string(rune('A'+i%8)),
			Item:     i / 8,
			Value:    20 + float64(i%10)/10,
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Evaluate(measurements)
	}
}
