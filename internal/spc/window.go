package spc

import "math"

// Window реализует скользящее окно фиксированной ёмкости (кольцевой буфер)
type Window struct {
	values []float64
	size   int
	index  int
	count  int
}

// NewWindow создает новое скользящее окно заданного размера
func NewWindow(size int) *Window {
	if size <= 0 {
		size = 1
	}
	return &Window{
		values: make([]float64, size),
		size:   size,
	}
}

// Add добавляет новое значение в окно, вытесняя самое старое при заполнении
func (w *Window) Add(value float64) {
	if w.count < w.size {
		w.count++
	}
	w.values[w.index] = value
	w.index = (w.index + 1) % w.size
}

// Count возвращает количество элементов в окне
func (w *Window) Count() int {
	return w.count
}

// Values возвращает копию текущего содержимого окна
func (w *Window) Values() []float64 {
	out := make([]float64, w.count)
	copy(out, w.values[:w.count])
	return out
}

// Mean возвращает среднее значение окна.
// Окно не больше 5 элементов, поэтому сумма пересчитывается заново:
// это точнее инкрементальной схемы sum/sumSq и детерминировано.
func (w *Window) Mean() float64 {
	if w.count == 0 {
		return 0
	}
	var sum float64
	for _, v := range w.values[:w.count] {
		sum += v
	}
	return sum / float64(w.count)
}

// StdDev возвращает выборочное стандартное отклонение (деление на n-1).
// Для окна из одного элемента отклонение не определено и принимается равным 0.
func (w *Window) StdDev() float64 {
	if w.count < 2 {
		return 0
	}
	mean := w.Mean()
	var sumSq float64
	for _, v := range w.values[:w.count] {
		d := v - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(w.count-1))
}
