package census

import (
	"errors"
	"fmt"
	"io/fs"
)

// Status summarizes the outcome of one scan.
type Status string

const (
	// StatusOK means every row was consumed by a known rule.
	StatusOK Status = "ok"

	// StatusPartial means data was produced but rows were skipped or the
	// region count drifted from the expected value.
	StatusPartial Status = "partial"

	// StatusNotFound means the input file does not exist.
	StatusNotFound Status = "not_found"

	// StatusFailed means the input could not be read or has the wrong shape.
	StatusFailed Status = "failed"
)

// Report describes one scan. It travels alongside the scanned data so that an
// empty map can be told apart from a missing or unreadable file.
type Report struct {
	Table   string `json:"table"`
	Source  string `json:"source"`
	Status  Status `json:"status"`
	Rows    int    `json:"rows"`
	Regions int    `json:"regions"`
	Entries int    `json:"entries"`
	Skipped int    `json:"skipped"`
	Drift   bool   `json:"drift,omitempty"`
	Failure string `json:"error,omitempty"`
	Err     error  `json:"-"`
}

// Usable reports whether the scan produced data worth loading.
func (r Report) Usable() bool {
	return r.Status == StatusOK || r.Status == StatusPartial
}

// String formats the report for logs and CLI output.
func (r Report) String() string {
	s := fmt.Sprintf("%s %s: status=%s rows=%d regions=%d entries=%d skipped=%d",
		r.Table, r.Source, r.Status, r.Rows, r.Regions, r.Entries, r.Skipped)
	if r.Drift {
		s += " drift=true"
	}
	if r.Err != nil {
		s += " error=" + r.Err.Error()
	}
	return s
}

// finish derives the final status from the counters.
func (r *Report) finish() {
	if r.Status != "" {
		return
	}
	if r.Skipped > 0 || r.Drift {
		r.Status = StatusPartial
		return
	}
	r.Status = StatusOK
}

// failure builds the report of a scan that never started.
func failure(table, source string, err error) Report {
	status := StatusFailed
	if errors.Is(err, fs.ErrNotExist) {
		status = StatusNotFound
	}
	return Report{Table: table, Source: source, Status: status, Failure: err.Error(), Err: err}
}
