package sheet

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// readXLSX loads one worksheet. Raw cell values are requested so that numbers
// formatted with thousands separators still arrive as plain digits.
func readXLSX(r io.Reader, opts Options) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	name := opts.Sheet
	if name == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook has no sheets")
		}
		name = sheets[0]
	}

	raw, err := f.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", name, err)
	}

	t := &Table{Sheet: name, Rows: make([]Row, len(raw))}
	for i, cells := range raw {
		t.Rows[i] = NewRow(cells)
	}
	return t, nil
}

// ColumnName returns the spreadsheet letter for a zero-based column index.
func ColumnName(index int) string {
	name, err := excelize.ColumnNumberToName(index + 1)
	if err != nil {
		return fmt.Sprintf("#%d", index)
	}
	return name
}
