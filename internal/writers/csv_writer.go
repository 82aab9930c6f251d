package writers

import (
	"encoding/csv"
	"fmt"
	"io"

	"mongotable/internal/formatters"
	"mongotable/internal/table"
)

type csvWriter struct{}

// Write emits a header row followed by one record per table row. NA cells are empty.
func (csvWriter) Write(w io.Writer, t *table.Table, opts Options) (int, error) {
	writer := csv.NewWriter(w)
	if opts.Delimiter != 0 {
		writer.Comma = opts.Delimiter
	}

	if !opts.NoHeader && t.Width() > 0 {
		if err := writer.Write(t.Columns()); err != nil {
			return 0, fmt.Errorf("error writing headers: %w", err)
		}
	}

	rowCount := 0
	for _, row := range t.Rows() {
		record := make([]string, len(row))
		for i, v := range row {
			record[i] = formatters.FormatCSVValue(v)
		}
		if err := writer.Write(record); err != nil {
			return rowCount, fmt.Errorf("error writing row %d: %w", rowCount+1, err)
		}
		rowCount++
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return rowCount, fmt.Errorf("error flushing CSV: %w", err)
	}
	return rowCount, nil
}

func init() {
	MustRegister(FormatCSV, func() Writer { return csvWriter{} })
}
