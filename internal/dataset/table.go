// Package dataset reads, transforms and writes the rated artwork tables.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrMissingColumns is returned when a table lacks required columns.
var ErrMissingColumns = errors.New("dataset: missing required columns")

// Table is an in-memory CSV table with a header row. Short rows are padded
// on read so every row has one cell per column.
type Table struct {
	Header []string
	Rows   [][]string
	index  map[string]int
}

// NewTable creates an empty table with the given header.
func NewTable(header []string) *Table {
	t := &Table{Header: append([]string(nil), header...)}
	t.reindex()

	return t
}

func (t *Table) reindex() {
	t.index = make(map[string]int, len(t.Header))
	for i, name := range t.Header {
		if _, dup := t.index[name]; !dup {
			t.index[name] = i
		}
	}
}

// ReadTable parses a CSV stream whose first record is the header.
func ReadTable(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("dataset: table is empty")
		}

		return nil, fmt.Errorf("read header: %w", err)
	}

	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	t := NewTable(header)

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(t.Rows)+1, err)
		}

		if len(record) < len(header) {
			record = append(record, make([]string, len(header)-len(record))...)
		}

		t.Rows = append(t.Rows, record[:len(header)])
	}

	return t, nil
}

// ReadTableFile reads a CSV table from path.
func ReadTableFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open table: %w", err)
	}
	defer f.Close()

	t, err := ReadTable(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return t, nil
}

// Write writes the header and rows as CSV.
func (t *Table) Write(w io.Writer) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(t.Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	if err := writer.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}

	return nil
}

// WriteFile replaces path with the table. The file is written to a temporary
// sibling and renamed, so readers never observe a partial table.
func (t *Table) WriteFile(path string) error {
	return WriteFileAtomic(path, t.Write)
}

// WriteFileAtomic writes through fn into a temporary file next to path and
// renames it over path once fn and the sync succeed.
func WriteFileAtomic(path string, fn func(io.Writer) error) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = fn(tmp); err != nil {
		return err
	}

	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}

	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}

	return nil
}

// Has reports whether the table has the named column.
func (t *Table) Has(name string) bool {
	_, ok := t.index[name]

	return ok
}

// Require returns ErrMissingColumns listing every absent name.
func (t *Table) Require(names ...string) error {
	var missing []string

	for _, n := range names {
		if !t.Has(n) {
			missing = append(missing, n)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}

	return nil
}

// EnsureColumn appends an empty column unless it already exists.
func (t *Table) EnsureColumn(name string) {
	if t.Has(name) {
		return
	}

	t.Header = append(t.Header, name)
	t.index[name] = len(t.Header) - 1

	for i := range t.Rows {
		t.Rows[i] = append(t.Rows[i], "")
	}
}

// Get returns the cell at row for column name, or "" when the column is absent.
func (t *Table) Get(row int, name string) string {
	col, ok := t.index[name]
	if !ok {
		return ""
	}

	return t.Rows[row][col]
}

// Set stores value at row for column name. The column must exist.
func (t *Table) Set(row int, name, value string) {
	col, ok := t.index[name]
	if !ok {
		panic("dataset: unknown column " + name)
	}

	t.Rows[row][col] = value
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	return len(t.Rows)
}
