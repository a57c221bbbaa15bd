package batch

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Table is an in-memory CSV sheet with a header row.
type Table struct {
	header []string
	rows   [][]string
	index  map[string]int
}

// ErrRowTooWide rejects a data row with more cells than the header names.
var ErrRowTooWide = errors.New("row has more cells than header")

// ReadTable parses CSV with a header row. Short rows are padded; rows wider
// than the header fail with ErrRowTooWide instead of losing cells.
func ReadTable(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("read csv: missing header row")
	}
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	t := &Table{header: nil, index: map[string]int{}}
	for _, name := range header {
		name = strings.TrimSpace(name)
		if t.HasColumn(name) {
			return nil, fmt.Errorf("read csv: duplicate column %q", name)
		}
		t.addColumn(name)
	}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return t, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		if len(record) > len(header) {
			line, _ := reader.FieldPos(len(header))
			return nil, fmt.Errorf("read csv: line %d: %w (%d > %d)", line, ErrRowTooWide, len(record), len(header))
		}
		row := make([]string, len(t.header))
		copy(row, record)
		t.rows = append(t.rows, row)
	}
}

// ReadFile opens and parses a CSV file.
func ReadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ReadTable(f)
}

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.rows) }

// Header returns a copy of the column names.
func (t *Table) Header() []string { return append([]string(nil), t.header...) }

// HasColumn reports whether the column exists.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Get returns the cell value, or "" when the column does not exist.
func (t *Table) Get(row int, column string) string {
	col, ok := t.index[column]
	if !ok || row < 0 || row >= len(t.rows) {
		return ""
	}
	return t.rows[row][col]
}

// Set writes the cell value, adding the column when missing.
func (t *Table) Set(row int, column, value string) {
	if row < 0 || row >= len(t.rows) {
		return
	}
	col, ok := t.index[column]
	if !ok {
		col = t.addColumn(column)
	}
	t.rows[row][col] = value
}

func (t *Table) addColumn(name string) int {
	if col, ok := t.index[name]; ok {
		return col
	}
	t.header = append(t.header, name)
	col := len(t.header) - 1
	t.index[name] = col
	for i := range t.rows {
		t.rows[i] = append(t.rows[i], "")
	}
	return col
}

// Write renders the table as CSV.
func (t *Table) Write(w io.Writer) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(t.header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := writer.WriteAll(t.rows); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	return nil
}

// WriteFile replaces path atomically with the table contents.
func (t *Table) WriteFile(path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if err := t.Write(tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

// SplitName splits a full name on the first run of whitespace.
func SplitName(full string) (first, last string) {
	fields := strings.Fields(full)
	switch len(fields) {
	case 0:
		return "", ""
	case 1:
		return fields[0], ""
	default:
		return fields[0], strings.Join(fields[1:], " ")
	}
}
