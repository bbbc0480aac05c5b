package census

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/JonMunkholm/census/internal/sheet"
)

// fakeReader serves a fixed table, error or panic instead of touching disk.
type fakeReader struct {
	table     *sheet.Table
	err       error
	panicWith any
}

func (r fakeReader) ReadTable(path string) (*sheet.Table, error) {
	if r.panicWith != nil {
		panic(r.panicWith)
	}
	if r.err != nil {
		return nil, r.err
	}
	return r.table, nil
}

type recordingObserver struct {
	mu      sync.Mutex
	reports []Report
}

func (o *recordingObserver) ObserveScan(r Report) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.reports = append(o.reports, r)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestScanner disables the region drift check unless opts set it again.
func newTestScanner(opts ...Option) *Scanner {
	base := []Option{WithExpectedRegions(0, 0)}
	return NewScanner(discardLogger(), append(base, opts...)...)
}

func table(rows ...[]string) *sheet.Table {
	t := &sheet.Table{Source: "test"}
	for _, r := range rows {
		t.Rows = append(t.Rows, sheet.NewRow(r))
	}
	return t
}

func TestScanner_ReadFailures(t *testing.T) {
	tests := []struct {
		name   string
		reader fakeReader
		want   Status
	}{
		{"not found", fakeReader{err: fmt.Errorf("read x: %w", fs.ErrNotExist)}, StatusNotFound},
		{"unsupported", fakeReader{err: fmt.Errorf("read x: %w", sheet.ErrUnsupportedFormat)}, StatusFailed},
		{"reader panic", fakeReader{panicWith: "corrupt zip"}, StatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs := &recordingObserver{}
			s := newTestScanner(WithReader(tt.reader), WithObserver(obs))

			nat, natRep := s.ReadNationalityData("x.xlsx")
			if len(nat) != 0 {
				t.Errorf("nationality data = %v, want empty", nat)
			}
			if natRep.Status != tt.want {
				t.Errorf("nationality status = %q, want %q", natRep.Status, tt.want)
			}
			if natRep.Usable() {
				t.Error("failed scan reported as usable")
			}

			ages, ageRep := s.ReadAgeSexData("x.xlsx")
			if len(ages) != 0 {
				t.Errorf("age/sex data = %v, want empty", ages)
			}
			if ageRep.Status != tt.want {
				t.Errorf("age/sex status = %q, want %q", ageRep.Status, tt.want)
			}
			if ageRep.Failure == "" {
				t.Error("Failure should carry the error text")
			}

			if len(obs.reports) != 2 {
				t.Errorf("observer saw %d reports, want 2", len(obs.reports))
			}
		})
	}
}

func TestScanner_ReadMissingFile(t *testing.T) {
	s := newTestScanner()
	path := filepath.Join(t.TempDir(), "missing.xlsx")

	data, rep := s.ReadNationalityData(path)
	if len(data) != 0 {
		t.Errorf("data = %v, want empty", data)
	}
	if rep.Status != StatusNotFound {
		t.Errorf("status = %q, want %q", rep.Status, StatusNotFound)
	}
	if !errors.Is(rep.Err, fs.ErrNotExist) {
		t.Errorf("Err = %v, want fs.ErrNotExist", rep.Err)
	}
	if rep.Source != path {
		t.Errorf("Source = %q, want %q", rep.Source, path)
	}
}

func TestScanner_ShapeFailure(t *testing.T) {
	narrow := table([]string{"1.", "", "Sample Region"})

	_, natRep := newTestScanner().ScanNationality(narrow)
	if natRep.Status != StatusFailed || !errors.Is(natRep.Err, sheet.ErrShape) {
		t.Errorf("nationality report = %v, want failed with ErrShape", natRep)
	}

	_, ageRep := newTestScanner().ScanAgeSex(narrow)
	if ageRep.Status != StatusFailed || !errors.Is(ageRep.Err, sheet.ErrShape) {
		t.Errorf("age/sex report = %v, want failed with ErrShape", ageRep)
	}
}

func TestScanner_EmptyTable(t *testing.T) {
	s := newTestScanner()

	nat, rep := s.ScanNationality(table())
	if len(nat) != 0 || rep.Status != StatusOK || rep.Regions != 0 {
		t.Errorf("nationality: data=%v report=%v", nat, rep)
	}

	ages, rep := s.ScanAgeSex(table())
	if len(ages) != 0 || rep.Status != StatusOK || rep.Regions != 0 {
		t.Errorf("age/sex: data=%v report=%v", ages, rep)
	}
}

func TestHelpers(t *testing.T) {
	tests := []struct {
		in                    string
		leadingIndex, isCount bool
	}{
		{"1.", true, false},
		{"12", true, true},
		{"3.1", true, false},
		{"", false, false},
		{"a.", false, false},
		{"1 234", false, false},
		{"-5", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := hasLeadingIndex(tt.in); got != tt.leadingIndex {
				t.Errorf("hasLeadingIndex(%q) = %v, want %v", tt.in, got, tt.leadingIndex)
			}
			if _, got := parseCount(tt.in); got != tt.isCount {
				t.Errorf("parseCount(%q) ok = %v, want %v", tt.in, got, tt.isCount)
			}
		})
	}
}

func TestContainsWords(t *testing.T) {
	phrases := []string{"в том числе", "возрасте", "age"}

	tests := []struct {
		in   string
		want bool
	}{
		{"в том числе в возрасте, лет:", true},
		{"В возрасте", true},
		{"Age, years", true},
		{"by age:", true},
		{"Village Region", false},
		{"Agency district", false},
		{"в том", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := containsWords(tt.in, phrases); got != tt.want {
				t.Errorf("containsWords(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
