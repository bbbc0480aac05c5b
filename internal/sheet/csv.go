package sheet

// csv.go reads CSV exports of the census workbooks.
//
// Exports produced on Windows commonly carry a UTF-8 BOM or are saved in
// Windows-1251. Decoding goes through golang.org/x/text so both cases, and
// stray invalid bytes, are handled before encoding/csv sees the data.

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

func readCSV(r io.Reader, opts Options) (*Table, error) {
	dec, err := csvDecoder(opts.Encoding)
	if err != nil {
		return nil, err
	}

	cr := csv.NewReader(transform.NewReader(r, dec))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	if opts.Comma != 0 {
		cr.Comma = opts.Comma
	}

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	t := &Table{Rows: make([]Row, len(records))}
	for i, rec := range records {
		t.Rows[i] = NewRow(rec)
	}
	return t, nil
}

// csvDecoder returns a transformer producing valid UTF-8.
// A leading BOM always wins over the configured encoding.
func csvDecoder(name string) (transform.Transformer, error) {
	var enc encoding.Encoding
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		enc = unicode.UTF8
	case "windows-1251", "cp1251":
		enc = charmap.Windows1251
	default:
		return nil, fmt.Errorf("%w: csv encoding %q", ErrUnsupportedFormat, name)
	}
	return unicode.BOMOverride(enc.NewDecoder()), nil
}
