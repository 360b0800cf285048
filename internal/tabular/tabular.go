// Package tabular loads spreadsheet rows into ordered records and writes
// them back out, detecting CSV and XLSX by file extension.
package tabular

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/gierrejunior/using-geocarbon-api/internal/common"
)

// Table is an in-memory spreadsheet: a header plus one record per data row.
type Table struct {
	Columns []string
	Records []*Record
}

func (t *Table) Len() int {
	return len(t.Records)
}

// RequireColumn fails when the named column is absent from the header.
func (t *Table) RequireColumn(name string) error {
	for _, c := range t.Columns {
		if c == name {
			return nil
		}
	}
	return common.NewAppError("MISSING_COLUMN",
		fmt.Sprintf("column %q not found, available: %v", name, t.Columns),
		common.ErrMissingColumn)
}

// AddColumn appends a column to the header if it is not already present.
func (t *Table) AddColumn(name string) {
	for _, c := range t.Columns {
		if c == name {
			return
		}
	}
	t.Columns = append(t.Columns, name)
}

// Load reads a CSV or XLSX file into a Table. The first row is the header;
// header names are trimmed. Legacy .xls workbooks have no Go reader and are
// rejected, as is any other extension.
func Load(path string) (*Table, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		return loadCSV(path)
	case ".xlsx", ".xlsm":
		return loadXLSX(path)
	default:
		return nil, common.NewAppError("FILE_FORMAT",
			fmt.Sprintf("unsupported input format %q for %s", ext, path),
			common.ErrFileFormat)
	}
}

func loadCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv %s: %w", path, err)
	}
	return fromRows(rows)
}

func loadXLSX(path string) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook %s has no sheets", path)
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return fromRows(rows)
}

func fromRows(rows [][]string) (*Table, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("file has no header row")
	}
	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.TrimSpace(h)
	}
	t := &Table{Columns: header}
	for _, row := range rows[1:] {
		rec := NewRecord()
		for i, col := range header {
			val := ""
			if i < len(row) {
				val = row[i]
			}
			rec.Set(col, val)
		}
		t.Records = append(t.Records, rec)
	}
	return t, nil
}

// Save writes records to a CSV or XLSX file by extension. The header is
// seeded with the given columns and extended by any further record columns
// in order of first occurrence.
func Save(path string, columns []string, records []*Record) error {
	header := unionColumns(columns, records)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		return saveCSV(path, header, records)
	case ".xlsx":
		return saveXLSX(path, header, records)
	default:
		return common.NewAppError("FILE_FORMAT",
			fmt.Sprintf("unsupported output format %q for %s", ext, path),
			common.ErrFileFormat)
	}
}

// Save writes the table back out, preserving its header order.
func (t *Table) Save(path string) error {
	return Save(path, t.Columns, t.Records)
}

func unionColumns(seed []string, records []*Record) []string {
	seen := make(map[string]struct{}, len(seed))
	header := make([]string, 0, len(seed))
	for _, c := range seed {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		header = append(header, c)
	}
	for _, rec := range records {
		for _, c := range rec.Columns() {
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			header = append(header, c)
		}
	}
	return header
}

func saveCSV(path string, header []string, records []*Record) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	row := make([]string, len(header))
	for _, rec := range records {
		for i, col := range header {
			row[i] = rec.Get(col)
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush csv %s: %w", path, err)
	}
	return nil
}

func saveXLSX(path string, header []string, records []*Record) error {
	f := excelize.NewFile()
	const sheet = "Sheet1"

	write := func(col, row int, v string) error {
		cell, err := excelize.CoordinatesToCellName(col, row)
		if err != nil {
			return err
		}
		return f.SetCellValue(sheet, cell, v)
	}

	for i, h := range header {
		if err := write(i+1, 1, h); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	for ri, rec := range records {
		for ci, col := range header {
			if err := write(ci+1, ri+2, rec.Get(col)); err != nil {
				return fmt.Errorf("write row %d: %w", ri+2, err)
			}
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("xlsx write %s: %w", path, err)
	}
	return nil
}
