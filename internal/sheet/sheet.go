// Package sheet reads loosely formatted spreadsheets into plain rows of text.
//
// Census publications are authored for people, not programs: merged cells,
// wrapped labels and free-text markers are common. This package does no
// interpretation at all. It only turns a workbook (or a CSV export of one)
// into a [Table] of cleaned cells so that the scanners in package census can
// apply their heuristics to a uniform shape.
//
// Every cell is read as text, including numeric cells (raw values, not the
// formatted display string). An empty string means the cell had no value.
package sheet

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Format identifies the on-disk encoding of a table.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

var (
	// ErrUnsupportedFormat is returned for file types other than xlsx/csv.
	ErrUnsupportedFormat = errors.New("unsupported spreadsheet format")

	// ErrShape is returned when a sheet is narrower than the layout expects.
	ErrShape = errors.New("sheet shape mismatch")
)

// Options controls how a table is read.
type Options struct {
	// Sheet is the worksheet to read from a workbook. Empty means the first one.
	Sheet string

	// Comma is the CSV field delimiter (default ',').
	Comma rune

	// Encoding is the CSV character encoding: "utf-8" (default) or "windows-1251".
	Encoding string
}

// Row is one spreadsheet row of cleaned cells.
type Row []string

// Cell returns the value at column i, or "" when the row is shorter.
func (r Row) Cell(i int) string {
	if i < 0 || i >= len(r) {
		return ""
	}
	return r[i]
}

// Table is a header-less, fully materialized sheet.
type Table struct {
	Source string // file path or upload name
	Sheet  string // worksheet name (empty for CSV)
	Rows   []Row
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Width returns the length of the widest row.
func (t *Table) Width() int {
	w := 0
	for _, r := range t.Rows {
		if len(r) > w {
			w = len(r)
		}
	}
	return w
}

// NewRow cleans raw cell values into a Row.
func NewRow(cells []string) Row {
	row := make(Row, len(cells))
	for i, c := range cells {
		row[i] = CleanCell(c)
	}
	return row
}

// CleanCell collapses embedded line breaks to spaces and trims the result.
// Multi-line labels in merged header cells are the usual source of newlines.
func CleanCell(s string) string {
	if strings.ContainsAny(s, "\r\n") {
		s = strings.ReplaceAll(s, "\r\n", " ")
		s = strings.ReplaceAll(s, "\n", " ")
		s = strings.ReplaceAll(s, "\r", " ")
	}
	return strings.TrimSpace(s)
}

// FormatFromPath derives the table format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	case ".csv":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// ReadFile reads the table stored at path.
// A missing file yields an error matching fs.ErrNotExist.
func ReadFile(path string, opts Options) (*Table, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	t, err := Read(f, format, opts)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	t.Source = path
	return t, nil
}

// Read reads a table of the given format from r.
func Read(r io.Reader, format Format, opts Options) (*Table, error) {
	switch format {
	case FormatXLSX:
		return readXLSX(r, opts)
	case FormatCSV:
		return readCSV(r, opts)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}
