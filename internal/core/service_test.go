package core

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/census/internal/census"
	"github.com/JonMunkholm/census/internal/sheet"
)

// mapReader serves in-memory tables by path.
type mapReader map[string]*sheet.Table

func (m mapReader) ReadTable(path string) (*sheet.Table, error) {
	t, ok := m[path]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: path, Err: fs.ErrNotExist}
	}
	return t, nil
}

func rows(src string, records ...[]string) *sheet.Table {
	t := &sheet.Table{Source: src}
	for _, r := range records {
		t.Rows = append(t.Rows, sheet.NewRow(r))
	}
	return t
}

func ageRow(label, male, female string) []string {
	r := make([]string, 10)
	r[3], r[8], r[9] = label, male, female
	return r
}

func testTables() mapReader {
	return mapReader{
		"nat.xlsx": rows("nat.xlsx",
			[]string{"", "", "Central Federal District", ""},
			[]string{"1.", "", "Sample Region", "1000"},
			[]string{"", "", "indicating nationality affiliation", ""},
			[]string{"1.", "", "Russians", "800"},
			[]string{"2.", "", "Tatars", "200"},
			[]string{"", "", "", ""},
			[]string{"2.", "", "Lonely Region", "50"},
			[]string{"", "", "indicating nationality affiliation", ""},
			[]string{"1.", "", "Russians", "50"},
		),
		"ages.xlsx": rows("ages.xlsx",
			ageRow("Sample Region", "", ""),
			ageRow("Urban and rural population", "", ""),
			ageRow("0 - 4", "120", "130"),
		),
	}
}

type loadRecorder struct {
	calls int
	err   error
}

func (r *loadRecorder) ObserveLoad(_ time.Time, _, _ int64, err error) {
	r.calls++
	r.err = err
}

func newTestService(reader census.TableReader, opts Options) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts.Logger = logger
	opts.Scanner = census.NewScanner(logger,
		census.WithReader(reader),
		census.WithExpectedRegions(0, 0))
	return NewService(nil, opts)
}

func TestService_Defaults(t *testing.T) {
	s := NewService(nil, Options{})

	if s.HasDatabase() {
		t.Error("HasDatabase() = true with nil pool")
	}
	if s.baseYear != census.DefaultBaseYear {
		t.Errorf("baseYear = %d, want %d", s.baseYear, census.DefaultBaseYear)
	}
	if s.batch != 1000 {
		t.Errorf("batch = %d, want 1000", s.batch)
	}
	if s.match.Mode != census.MatchExact {
		t.Errorf("match mode = %q, want exact", s.match.Mode)
	}
	if s.genders != DefaultGenders() {
		t.Errorf("genders = %+v", s.genders)
	}
	if s.Limiter().Status().MaxConcurrent != 1 {
		t.Errorf("limiter = %+v", s.Limiter().Status())
	}
}

func TestService_Scan(t *testing.T) {
	s := newTestService(testTables(), Options{})

	res, err := s.Scan(context.Background(), Inputs{NationalityFile: "nat.xlsx", AgeSexFile: "ages.xlsx"})
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if !res.Usable() {
		t.Fatalf("Scan() not usable: %v / %v", res.NationalityReport, res.AgeSexReport)
	}
	if got := len(res.Reconciliation.Pairs); got != 1 {
		t.Errorf("pairs = %d, want 1", got)
	}
	if got := res.Reconciliation.OnlyNationality; len(got) != 1 || got[0] != "Lonely Region" {
		t.Errorf("OnlyNationality = %v", got)
	}
	if res.Nationality["Sample Region"].Nations["Tatars"] != 200 {
		t.Errorf("nationality data = %+v", res.Nationality)
	}
}

func TestService_ScanMissingFile(t *testing.T) {
	s := newTestService(testTables(), Options{})

	res, err := s.Scan(context.Background(), Inputs{NationalityFile: "nat.xlsx", AgeSexFile: "missing.xlsx"})
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if res.AgeSexReport.Status != census.StatusNotFound {
		t.Errorf("agesex status = %q, want not_found", res.AgeSexReport.Status)
	}
	if res.Usable() {
		t.Error("Usable() = true with a missing table")
	}
}

func TestService_ScanCancelled(t *testing.T) {
	s := newTestService(testTables(), Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Scan(ctx, Inputs{NationalityFile: "nat.xlsx", AgeSexFile: "ages.xlsx"}); !errors.Is(err, context.Canceled) {
		t.Errorf("Scan() error = %v, want context.Canceled", err)
	}
}

func TestService_Preview(t *testing.T) {
	s := newTestService(mapReader{}, Options{})

	csvData := ",,Central Federal District,\n" +
		"1.,,Sample Region,1000\n" +
		",,indicating nationality affiliation,\n" +
		"1.,,Russians,800\n"

	p, err := s.Preview(KindNationality, "upload.csv", strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("Preview() error = %v", err)
	}
	if p.Report.Status != census.StatusOK {
		t.Errorf("status = %q, report %v", p.Report.Status, p.Report)
	}
	if p.Report.Source != "upload.csv" {
		t.Errorf("source = %q", p.Report.Source)
	}
	data, ok := p.Data.(census.NationalityData)
	if !ok {
		t.Fatalf("Data is %T, want NationalityData", p.Data)
	}
	if data["Sample Region"].Nations["Russians"] != 800 {
		t.Errorf("data = %+v", data)
	}
}

func TestService_PreviewErrors(t *testing.T) {
	s := newTestService(mapReader{}, Options{})

	tests := []struct {
		name     string
		kind     string
		filename string
		body     string
		wantErr  error
	}{
		{"unknown kind", "households", "a.csv", "", ErrUnknownTable},
		{"unsupported extension", KindAgeSex, "a.ods", "", sheet.ErrUnsupportedFormat},
		{"narrow agesex sheet", KindAgeSex, "a.csv", "a,b,c\n", sheet.ErrShape},
		{"narrow nationality sheet", KindNationality, "n.csv", "a\n", sheet.ErrShape},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := s.Preview(tt.kind, tt.filename, strings.NewReader(tt.body))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Preview() error = %v, want %v", err, tt.wantErr)
			}
			if p != nil {
				t.Errorf("Preview() returned %+v alongside an error", p)
			}
			if got := MapError(err).Code; tt.wantErr == sheet.ErrShape && got != "SHEET001" {
				t.Errorf("MapError code = %q, want SHEET001", got)
			}
		})
	}
}

func TestService_RequiresDatabase(t *testing.T) {
	obs := &loadRecorder{}
	s := newTestService(testTables(), Options{Observer: obs})
	ctx := context.Background()

	if _, err := s.Load(ctx, Inputs{}); !errors.Is(err, ErrDatabaseRequired) {
		t.Errorf("Load() error = %v", err)
	}
	if err := s.Migrate(ctx); !errors.Is(err, ErrDatabaseRequired) {
		t.Errorf("Migrate() error = %v", err)
	}
	if err := s.ResetFacts(ctx); !errors.Is(err, ErrDatabaseRequired) {
		t.Errorf("ResetFacts() error = %v", err)
	}
	if _, err := s.History(ctx, 10); !errors.Is(err, ErrDatabaseRequired) {
		t.Errorf("History() error = %v", err)
	}
	if obs.calls != 0 {
		t.Errorf("observer called %d times before a load started", obs.calls)
	}
}

func TestService_Plan(t *testing.T) {
	s := newTestService(testTables(), Options{Genders: Genders{Male: "M", Female: "F"}})
	ctx := context.Background()

	_, plan, err := s.Plan(ctx, Inputs{NationalityFile: "nat.xlsx", AgeSexFile: "ages.xlsx", BaseYear: 2021})
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	// Sample Region: Russians 800/1000 and Tatars 200/1000 of 120 M / 130 F.
	want := map[string]int64{"Russians/M": 96, "Russians/F": 104, "Tatars/M": 24, "Tatars/F": 26}
	if len(plan.Facts) != len(want) {
		t.Fatalf("facts = %+v", plan.Facts)
	}
	for _, f := range plan.Facts {
		if f.Year != "(2017, 2021)" {
			t.Errorf("year = %q, want (2017, 2021)", f.Year)
		}
		if got := want[f.Nation+"/"+f.Gender]; got != f.Count {
			t.Errorf("%s/%s = %d, want %d", f.Nation, f.Gender, f.Count, got)
		}
	}
}

func TestService_PlanNoData(t *testing.T) {
	s := newTestService(testTables(), Options{})

	scan, _, err := s.Plan(context.Background(), Inputs{NationalityFile: "missing.xlsx", AgeSexFile: "ages.xlsx"})
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("Plan() error = %v, want ErrNoData", err)
	}
	if scan == nil || scan.NationalityReport.Status != census.StatusNotFound {
		t.Errorf("scan = %+v", scan)
	}
}
