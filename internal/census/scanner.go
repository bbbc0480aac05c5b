package census

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/JonMunkholm/census/internal/sheet"
)

// Defaults for the post-scan completeness check of the nationality table.
const (
	DefaultExpectedRegions = 85
	DefaultRegionTolerance = 10
)

// TableReader supplies the rows of a spreadsheet.
type TableReader interface {
	ReadTable(path string) (*sheet.Table, error)
}

// FileReader reads tables from the local filesystem.
type FileReader struct {
	Options sheet.Options
}

// ReadTable implements TableReader.
func (r FileReader) ReadTable(path string) (*sheet.Table, error) {
	return sheet.ReadFile(path, r.Options)
}

// Observer receives the report of every finished scan.
type Observer interface {
	ObserveScan(Report)
}

// Scanner holds the collaborators and tuning of both table scanners.
// A Scanner keeps no state between calls and is safe for concurrent use;
// each scan builds its own state machine.
type Scanner struct {
	log      *slog.Logger
	reader   TableReader
	observer Observer
	vocab    Vocabulary

	nationality NationalityLayout
	ageSex      AgeSexLayout

	expectedRegions int
	regionTolerance int
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithReader replaces the filesystem table reader.
func WithReader(r TableReader) Option {
	return func(s *Scanner) { s.reader = r }
}

// WithObserver registers a sink for scan reports (metrics).
func WithObserver(o Observer) Option {
	return func(s *Scanner) { s.observer = o }
}

// WithVocabulary replaces the row-role phrases.
func WithVocabulary(v Vocabulary) Option {
	return func(s *Scanner) { s.vocab = v }
}

// WithNationalityLayout overrides the nationality table columns.
func WithNationalityLayout(l NationalityLayout) Option {
	return func(s *Scanner) { s.nationality = l }
}

// WithAgeSexLayout overrides the age/sex table columns.
func WithAgeSexLayout(l AgeSexLayout) Option {
	return func(s *Scanner) { s.ageSex = l }
}

// WithExpectedRegions sets the region count the nationality scan is checked
// against. expected <= 0 disables the check.
func WithExpectedRegions(expected, tolerance int) Option {
	return func(s *Scanner) {
		s.expectedRegions = expected
		s.regionTolerance = tolerance
	}
}

// NewScanner creates a Scanner that logs diagnostics to logger.
func NewScanner(logger *slog.Logger, opts ...Option) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scanner{
		log:             logger,
		reader:          FileReader{},
		vocab:           DefaultVocabulary(),
		nationality:     DefaultNationalityLayout(),
		ageSex:          DefaultAgeSexLayout(),
		expectedRegions: DefaultExpectedRegions,
		regionTolerance: DefaultRegionTolerance,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// readTable shields callers from panics inside third-party readers.
func (s *Scanner) readTable(path string) (t *sheet.Table, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("read %s: %v", path, r)
		}
	}()
	return s.reader.ReadTable(path)
}

// fail logs and publishes the report of a scan whose input was unusable.
func (s *Scanner) fail(rep Report) Report {
	switch rep.Status {
	case StatusNotFound:
		s.log.Error("file not found", "table", rep.Table, "path", rep.Source)
	default:
		s.log.Error("failed to read table", "table", rep.Table, "path", rep.Source, "error", rep.Err)
	}
	s.observe(rep)
	return rep
}

func (s *Scanner) observe(rep Report) {
	if s.observer != nil {
		s.observer.ObserveScan(rep)
	}
}

// hasLeadingIndex reports whether the text before the first '.' is an item number.
func hasLeadingIndex(s string) bool {
	head, _, _ := strings.Cut(s, ".")
	return isDigits(head)
}

// parseCount parses a non-negative integer written with ASCII digits only.
func parseCount(s string) (int, bool) {
	if !isDigits(s) {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func hasDigit(s string) bool {
	for _, r := range s {
		if r >= '0' && r <= '9' {
			return true
		}
	}
	return false
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
