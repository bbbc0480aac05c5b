package sheet

import (
	"fmt"
	"strings"
)

// Column names a positional column of a fixed layout.
type Column struct {
	Name  string
	Index int // zero-based
}

// Layout describes the columns a scanner reads from a sheet.
// Validating it once up front turns a shifted or truncated sheet into a
// structural error instead of a silent misread.
type Layout struct {
	Name    string
	Columns []Column
}

// MinWidth returns the number of columns a sheet needs to satisfy the layout.
func (l Layout) MinWidth() int {
	w := 0
	for _, c := range l.Columns {
		if c.Index+1 > w {
			w = c.Index + 1
		}
	}
	return w
}

// Validate checks that t is wide enough for every column of the layout.
func (l Layout) Validate(t *Table) error {
	need := l.MinWidth()
	have := t.Width()
	if have >= need {
		return nil
	}

	var missing []string
	for _, c := range l.Columns {
		if c.Index >= have {
			missing = append(missing, fmt.Sprintf("%s (%s)", c.Name, ColumnName(c.Index)))
		}
	}
	return fmt.Errorf("%w: %s layout needs %d columns, sheet has %d; missing %s",
		ErrShape, l.Name, need, have, strings.Join(missing, ", "))
}
