// Package export serializes a materialized query result to the download
// formats. Both writers work purely in memory and never mutate the
// result they read.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/pbelov/snowview/internal/warehouse"
)

const (
	FormatCSV   = "csv"
	FormatExcel = "excel"

	csvContentType   = "text/csv"
	excelContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	sheetName = "Data"
)

// DefaultFormat picks the preselected download format: Excel for result
// sets below the limit, CSV above it (generating Excel for very large
// results is slow). The user can still override the choice.
func DefaultFormat(rowCount, excelRowLimit int) string {
	if rowCount < excelRowLimit {
		return FormatExcel
	}
	return FormatCSV
}

func ContentType(format string) string {
	if format == FormatExcel {
		return excelContentType
	}
	return csvContentType
}

// Filename names the download artifact after the view.
func Filename(viewName, format string) string {
	if format == FormatExcel {
		return viewName + ".xlsx"
	}
	return viewName + ".csv"
}

// CSV renders the result as UTF-8 comma-separated text with a header row
// and no index column.
func CSV(r *warehouse.Result) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(r.Columns); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	for _, row := range r.Rows {
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// Excel renders the result as a single-worksheet workbook through the
// excelize stream writer, buffered entirely in memory.
func Excel(r *warehouse.Result) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create stream writer: %w", err)
	}

	header := make([]any, len(r.Columns))
	for i, c := range r.Columns {
		header[i] = c
	}
	if err := sw.SetRow("A1", header); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	for i, row := range r.Rows {
		cells := make([]any, len(row))
		for j, v := range row {
			cells[j] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := sw.SetRow(cell, cells); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return nil, fmt.Errorf("failed to flush stream writer: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
