package writers

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/elliotchance/orderedmap/v3"

	"mongotable/internal/formatters"
	"mongotable/internal/table"
)

type jsonWriter struct{}

// Write emits a JSON array with one object per row. Keys follow column order and NA
// cells are null.
func (jsonWriter) Write(w io.Writer, t *table.Table, _ Options) (int, error) {
	if _, err := io.WriteString(w, "["); err != nil {
		return 0, fmt.Errorf("error writing start of JSON array: %w", err)
	}

	columns := t.Columns()
	rowCount := 0
	for _, row := range t.Rows() {
		rowData := orderedmap.NewOrderedMap[string, any]()
		for i, name := range columns {
			rowData.Set(name, formatters.FormatJSONValue(row[i]))
		}
		encoded, err := encodeRow(rowData)
		if err != nil {
			return rowCount, fmt.Errorf("error encoding JSON for row %d: %w", rowCount+1, err)
		}

		sep := "\n  "
		if rowCount > 0 {
			sep = ",\n  "
		}
		if _, err := io.WriteString(w, sep); err != nil {
			return rowCount, fmt.Errorf("error writing separator for row %d: %w", rowCount+1, err)
		}
		if _, err := w.Write(encoded); err != nil {
			return rowCount, fmt.Errorf("error writing JSON object for row %d: %w", rowCount+1, err)
		}
		rowCount++
	}

	end := "]\n"
	if rowCount > 0 {
		end = "\n]\n"
	}
	if _, err := io.WriteString(w, end); err != nil {
		return rowCount, fmt.Errorf("error writing end of JSON array: %w", err)
	}
	return rowCount, nil
}

// encodeRow marshals rowData as a JSON object keeping insertion order.
func encodeRow(rowData *orderedmap.OrderedMap[string, any]) ([]byte, error) {
	buf := []byte{'{'}
	i := 0
	for k, v := range rowData.AllFromFront() {
		if i > 0 {
			buf = append(buf, ',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("error marshaling value for key %q: %w", k, err)
		}
		buf = append(buf, key...)
		buf = append(buf, ':')
		buf = append(buf, value...)
		i++
	}
	return append(buf, '}'), nil
}

func init() {
	MustRegister(FormatJSON, func() Writer { return jsonWriter{} })
}
