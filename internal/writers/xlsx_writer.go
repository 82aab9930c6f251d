package writers

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"mongotable/internal/formatters"
	"mongotable/internal/table"
)

// maxSheetRows is the row limit of a single XLSX sheet.
const maxSheetRows = 1_048_576

// defaultSheet is the sheet excelize.NewFile creates.
const defaultSheet = "Sheet1"

type xlsxWriter struct {
	maxRows int
}

// Write stores the table in a workbook, continuing on a new sheet whenever a sheet
// reaches the row limit.
func (x xlsxWriter) Write(w io.Writer, t *table.Table, opts Options) (int, error) {
	limit := x.maxRows
	if limit <= 0 {
		limit = maxSheetRows
	}
	baseName := opts.SheetName
	if baseName == "" {
		baseName = "Sheet"
	}

	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return 0, fmt.Errorf("error creating header style: %w", err)
	}

	columns := t.Columns()
	writeHeader := !opts.NoHeader && len(columns) > 0

	sheetIndex := 1
	sw, currentRow, err := initSheet(f, sheetName(baseName, sheetIndex), columns, writeHeader, headerStyle)
	if err != nil {
		return 0, err
	}
	if first := sheetName(baseName, sheetIndex); first != defaultSheet {
		if err := f.DeleteSheet(defaultSheet); err != nil {
			return 0, fmt.Errorf("error removing default sheet: %w", err)
		}
	}

	rowCount := 0
	for _, row := range t.Rows() {
		if currentRow > limit {
			if err := sw.Flush(); err != nil {
				return rowCount, fmt.Errorf("error flushing sheet %d: %w", sheetIndex, err)
			}
			sheetIndex++
			sw, currentRow, err = initSheet(f, sheetName(baseName, sheetIndex), columns, writeHeader, headerStyle)
			if err != nil {
				return rowCount, err
			}
		}

		values := make([]any, len(row))
		for i, v := range row {
			values[i] = formatters.FormatXLSXValue(v)
		}
		cell, _ := excelize.CoordinatesToCellName(1, currentRow)
		if err := sw.SetRow(cell, values); err != nil {
			return rowCount, fmt.Errorf("error writing row %d: %w", rowCount+1, err)
		}
		currentRow++
		rowCount++
	}

	if err := sw.Flush(); err != nil {
		return rowCount, fmt.Errorf("error flushing stream: %w", err)
	}
	if err := f.Write(w); err != nil {
		return rowCount, fmt.Errorf("error writing Excel file: %w", err)
	}
	return rowCount, nil
}

func sheetName(base string, index int) string {
	return fmt.Sprintf("%s%d", base, index)
}

// initSheet creates a sheet and writes the header row when requested.
// It returns the stream writer and the next free row number.
func initSheet(f *excelize.File, name string, columns []string, header bool, styleID int) (*excelize.StreamWriter, int, error) {
	if name != defaultSheet {
		if _, err := f.NewSheet(name); err != nil {
			return nil, 0, fmt.Errorf("failed to create sheet %s: %w", name, err)
		}
	}
	sw, err := f.NewStreamWriter(name)
	if err != nil {
		return nil, 0, fmt.Errorf("error creating stream writer: %w", err)
	}

	currentRow := 1
	if header {
		cells := make([]any, len(columns))
		for i, col := range columns {
			cells[i] = excelize.Cell{Value: col, StyleID: styleID}
		}
		if err := sw.SetRow("A1", cells); err != nil {
			return nil, 0, fmt.Errorf("error writing headers: %w", err)
		}
		currentRow++
	}
	return sw, currentRow, nil
}

func init() {
	MustRegister(FormatXLSX, func() Writer { return xlsxWriter{} })
}
