// Package source реализует загрузку измерений из внешних источников
// Ядру (internal/spc) всё равно, откуда пришли записи; здесь живут адаптеры
package source

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"spc-service/internal/models"
)

// csvColumns ожидаемый формат строки: operator,item,value
const csvColumns = 3

// ReadCSV читает измерения из CSV-потока.
// Первая строка может быть заголовком (operator,item,value) - она
// распознаётся по нечисловому полю item и пропускается. Порядок строк
// сохраняется. Некорректная строка прерывает чтение с ошибкой, указывающей
// номер строки.
func ReadCSV(r io.Reader) ([]models.Measurement, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = csvColumns
	reader.TrimLeadingSpace = true

	var measurements []models.Measurement
	line := 0

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV: %w", err)
		}
		line++

		item, err := strconv.Atoi(strings.TrimSpace(record[1]))
		if err != nil {
			// Заголовок допустим только в первой строке
			if line == 1 {
				continue
			}
			return nil, fmt.Errorf("line %d: invalid item %q: %w", line, record[1], err)
		}

		value, err := strconv.ParseFloat(strings.TrimSpace(record[2]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid value %q: %w", line, record[2], err)
		}

		m := models.Measurement{
			Operator: strings.TrimSpace(record[0]),
			Item:     item,
			Value:    value,
		}
		if err := m.Validate(); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		measurements = append(measurements, m)
	}

	return measurements, nil
}
