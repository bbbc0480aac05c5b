package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/census/internal/census"
	"github.com/JonMunkholm/census/internal/database"
	"github.com/JonMunkholm/census/internal/sheet"
)

var (
	// ErrNoData is returned when a scan produced nothing that could be loaded.
	ErrNoData = errors.New("no census data to load")

	// ErrDatabaseRequired is returned by operations that need DATABASE_URL.
	ErrDatabaseRequired = errors.New("database connection not configured")

	// ErrUnknownTable is returned for a table kind other than nationality or agesex.
	ErrUnknownTable = errors.New("unknown table kind")
)

// Table kinds accepted by Preview.
const (
	KindNationality = "nationality"
	KindAgeSex      = "agesex"
)

// Pool is the subset of *pgxpool.Pool the service needs.
type Pool interface {
	database.DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
}

// LoadObserver receives the outcome of every load.
type LoadObserver interface {
	ObserveLoad(start time.Time, inserted, ignored int64, err error)
}

// Options configures a Service. Zero values fall back to defaults.
type Options struct {
	Logger      *slog.Logger
	Scanner     *census.Scanner
	Sheet       sheet.Options
	Match       census.MatchOptions
	BaseYear    int
	BatchSize   int
	Genders     Genders
	Observer    LoadObserver
	Limiter     *LoadLimiter
	LoadTimeout time.Duration
}

// Service runs scans and loads. The pool may be nil, in which case only
// scanning, previews and reconciliation are available.
type Service struct {
	pool     Pool
	log      *slog.Logger
	scanner  *census.Scanner
	sheet    sheet.Options
	match    census.MatchOptions
	baseYear int
	batch    int
	genders  Genders
	observer LoadObserver
	limiter  *LoadLimiter
	timeout  time.Duration
}

// NewService creates a Service.
func NewService(pool Pool, opts Options) *Service {
	s := &Service{
		pool:     pool,
		log:      opts.Logger,
		scanner:  opts.Scanner,
		sheet:    opts.Sheet,
		match:    opts.Match,
		baseYear: opts.BaseYear,
		batch:    opts.BatchSize,
		genders:  opts.Genders,
		observer: opts.Observer,
		limiter:  opts.Limiter,
		timeout:  opts.LoadTimeout,
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.scanner == nil {
		s.scanner = census.NewScanner(s.log, census.WithReader(census.FileReader{Options: opts.Sheet}))
	}
	if s.match.Mode == "" {
		s.match.Mode = census.MatchExact
	}
	if s.baseYear == 0 {
		s.baseYear = census.DefaultBaseYear
	}
	if s.batch <= 0 {
		s.batch = 1000
	}
	if s.genders == (Genders{}) {
		s.genders = DefaultGenders()
	}
	if s.limiter == nil {
		s.limiter = NewLoadLimiter(1, DefaultLoadWait)
	}
	if s.timeout <= 0 {
		s.timeout = 10 * time.Minute
	}
	return s
}

// HasDatabase reports whether load operations are available.
func (s *Service) HasDatabase() bool {
	return s.pool != nil
}

// Limiter exposes the load limiter for health reporting and shutdown.
func (s *Service) Limiter() *LoadLimiter {
	return s.limiter
}

// Inputs names the two files of one run.
type Inputs struct {
	NationalityFile string `json:"nationality_file"`
	AgeSexFile      string `json:"agesex_file"`

	// BaseYear overrides the configured reference year when non-zero.
	BaseYear int `json:"base_year,omitempty"`
}

// ScanResult holds both scans and their reconciliation.
type ScanResult struct {
	Nationality       census.NationalityData `json:"-"`
	NationalityReport census.Report          `json:"nationality"`
	AgeSex            census.AgeSexData      `json:"-"`
	AgeSexReport      census.Report          `json:"agesex"`
	Reconciliation    census.Reconciliation  `json:"reconciliation"`
}

// Usable reports whether both scans produced data.
func (r *ScanResult) Usable() bool {
	return r.NationalityReport.Usable() && r.AgeSexReport.Usable()
}

// Scan reads both tables concurrently and reconciles their regions.
// Scan failures are reported in the result, not returned as errors; the
// error is non-nil only when ctx ends first.
func (s *Service) Scan(ctx context.Context, in Inputs) (*ScanResult, error) {
	res := &ScanResult{}
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		res.Nationality, res.NationalityReport = s.scanner.ReadNationalityData(in.NationalityFile)
		return ctx.Err()
	})
	g.Go(func() error {
		res.AgeSex, res.AgeSexReport = s.scanner.ReadAgeSexData(in.AgeSexFile)
		return ctx.Err()
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	res.Reconciliation = census.Reconcile(res.Nationality, res.AgeSex, s.match)
	s.logReconciliation(res.Reconciliation)
	return res, nil
}

func (s *Service) logReconciliation(rec census.Reconciliation) {
	s.log.Info("regions reconciled",
		"pairs", len(rec.Pairs),
		"only_nationality", len(rec.OnlyNationality),
		"only_agesex", len(rec.OnlyAgeSex),
		"mode", s.match.Mode)

	for _, name := range rec.OnlyNationality {
		s.log.Warn("region only in nationality table", "region", name)
	}
	for _, name := range rec.OnlyAgeSex {
		s.log.Warn("region only in age/sex table", "region", name)
	}
	for _, p := range rec.Pairs {
		if p.Mode != census.MatchExact {
			s.log.Info("region matched by name normalization",
				"nationality", p.Nationality, "agesex", p.AgeSex, "mode", p.Mode, "distance", p.Distance)
		}
	}
}

// Preview is the scan of a single uploaded table.
type Preview struct {
	Kind   string        `json:"kind"`
	Report census.Report `json:"report"`
	Data   any           `json:"data"`
}

// Preview parses an uploaded table without touching the database.
// The format is taken from filename's extension. A table the scanner cannot
// use, such as one narrower than its layout, is returned as an error.
func (s *Service) Preview(kind, filename string, r io.Reader) (*Preview, error) {
	if kind != KindNationality && kind != KindAgeSex {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTable, kind)
	}

	format, err := sheet.FormatFromPath(filename)
	if err != nil {
		return nil, err
	}
	t, err := sheet.Read(r, format, s.sheet)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filename, err)
	}
	t.Source = filename

	p := &Preview{Kind: kind}
	switch kind {
	case KindNationality:
		p.Data, p.Report = s.scanner.ScanNationality(t)
	case KindAgeSex:
		p.Data, p.Report = s.scanner.ScanAgeSex(t)
	}
	if p.Report.Status == census.StatusFailed {
		err := p.Report.Err
		if err == nil {
			err = errors.New(p.Report.Failure)
		}
		return nil, fmt.Errorf("scan %s: %w", filename, err)
	}
	return p, nil
}

// Migrate creates the schema and seeds the gender dimension.
func (s *Service) Migrate(ctx context.Context) error {
	if s.pool == nil {
		return ErrDatabaseRequired
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // No-op if already committed

	q := database.New(s.pool).WithTx(tx)
	if err := q.EnsureSchema(ctx); err != nil {
		return err
	}
	for _, g := range []string{s.genders.Male, s.genders.Female} {
		id, err := q.UpsertDimension(ctx, database.DimGender, g)
		if err != nil {
			return err
		}
		s.log.Info("gender ready", "gender", g, "id", id)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ResetFacts deletes every fact row and keeps dimensions and load history.
func (s *Service) ResetFacts(ctx context.Context) error {
	if s.pool == nil {
		return ErrDatabaseRequired
	}
	if err := database.New(s.pool).ResetFacts(ctx); err != nil {
		return fmt.Errorf("reset facts: %w", err)
	}
	s.log.Warn("population facts reset")
	return nil
}
