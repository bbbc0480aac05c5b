package core

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/census/internal/database"
)

// LoadResult describes one completed load.
type LoadResult struct {
	RunID      uuid.UUID                  `json:"run_id"`
	Planned    int                        `json:"planned"`
	Inserted   int64                      `json:"inserted"`
	Ignored    int64                      `json:"ignored"`
	Dimensions map[database.Dimension]int `json:"dimensions"`
	Skips      PlanSkips                  `json:"skips"`
	Scan       *ScanResult                `json:"scan"`
	Duration   time.Duration              `json:"duration_ns"`
}

// Load scans both inputs and writes their facts in a single transaction.
// Either every fact and dimension value of the run is committed or nothing is.
func (s *Service) Load(ctx context.Context, in Inputs) (res *LoadResult, err error) {
	if s.pool == nil {
		return nil, ErrDatabaseRequired
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	runID := uuid.New()
	log := s.log.With("run_id", runID)

	defer func() {
		if s.observer == nil {
			return
		}
		var inserted, ignored int64
		if res != nil {
			inserted, ignored = res.Inserted, res.Ignored
		}
		s.observer.ObserveLoad(start, inserted, ignored, err)
	}()

	baseYear := s.resolveBaseYear(in)
	scan, plan, err := s.Plan(ctx, in)
	if err != nil {
		return nil, err
	}
	log.Info("load planned", "facts", len(plan.Facts), "base_year", baseYear,
		"zero_counts", plan.Skips.ZeroCounts, "duplicate_keys", plan.Skips.DuplicateKeys)

	res = &LoadResult{
		RunID:   runID,
		Planned: len(plan.Facts),
		Skips:   plan.Skips,
		Scan:    scan,
	}
	if err := s.write(ctx, plan, res, in, baseYear, start); err != nil {
		return nil, err
	}

	res.Duration = time.Since(start)
	log.Info("load committed", "inserted", res.Inserted, "ignored", res.Ignored, "duration", res.Duration)
	return res, nil
}

func (s *Service) resolveBaseYear(in Inputs) int {
	if in.BaseYear != 0 {
		return in.BaseYear
	}
	return s.baseYear
}

// Plan scans both inputs and builds the facts a load would write. It needs
// no database and returns ErrNoData when nothing would be loaded.
func (s *Service) Plan(ctx context.Context, in Inputs) (*ScanResult, Plan, error) {
	scan, err := s.Scan(ctx, in)
	if err != nil {
		return nil, Plan{}, err
	}
	if !scan.Usable() {
		return scan, Plan{}, fmt.Errorf("%w: nationality %s, agesex %s",
			ErrNoData, scan.NationalityReport.Status, scan.AgeSexReport.Status)
	}

	plan := BuildPlan(scan.Nationality, scan.AgeSex, scan.Reconciliation, PlanOptions{
		BaseYear: s.resolveBaseYear(in),
		Genders:  s.genders,
	})
	if len(plan.Facts) == 0 {
		return scan, plan, fmt.Errorf("%w: no region produced facts (%d matched regions)",
			ErrNoData, len(scan.Reconciliation.Pairs))
	}
	return scan, plan, nil
}

// write runs the dimension upserts, fact batches and run record in one transaction.
func (s *Service) write(ctx context.Context, plan Plan, res *LoadResult, in Inputs, baseYear int, start time.Time) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // No-op if already committed

	q := database.New(s.pool).WithTx(tx)

	ids, err := resolveDimensions(ctx, q, plan)
	if err != nil {
		return err
	}
	res.Dimensions = make(map[database.Dimension]int, len(ids))
	for dim, m := range ids {
		res.Dimensions[dim] = len(m)
	}

	params := make([]database.InsertFactParams, 0, s.batch)
	flush := func() error {
		n, err := q.InsertFacts(ctx, params)
		if err != nil {
			return err
		}
		res.Inserted += n
		params = params[:0]
		return nil
	}

	for _, f := range plan.Facts {
		params = append(params, database.InsertFactParams{
			YearID:      ids[database.DimYear][f.Year],
			NationID:    ids[database.DimNation][f.Nation],
			TerritoryID: ids[database.DimTerritory][f.Territory],
			GenderID:    ids[database.DimGender][f.Gender],
			Count:       f.Count,
		})
		if len(params) == s.batch {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}
	res.Ignored = int64(res.Planned) - res.Inserted

	err = q.InsertLoadRun(ctx, database.LoadRun{
		ID:                pgtype.UUID{Bytes: res.RunID, Valid: true},
		NationalitySource: in.NationalityFile,
		AgeSexSource:      in.AgeSexFile,
		BaseYear:          int32(baseYear),
		Planned:           int32(res.Planned),
		Inserted:          int32(res.Inserted),
		Ignored:           int32(res.Ignored),
		StartedAt:         pgtype.Timestamptz{Time: start, Valid: true},
		FinishedAt:        pgtype.Timestamptz{Time: time.Now(), Valid: true},
	})
	if err != nil {
		return fmt.Errorf("record load run: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// resolveDimensions upserts every distinct dimension value of the plan.
func resolveDimensions(ctx context.Context, q *database.Queries, plan Plan) (map[database.Dimension]map[string]int32, error) {
	fields := map[database.Dimension]func(Fact) string{
		database.DimGender:    func(f Fact) string { return f.Gender },
		database.DimNation:    func(f Fact) string { return f.Nation },
		database.DimTerritory: func(f Fact) string { return f.Territory },
		database.DimYear:      func(f Fact) string { return f.Year },
	}

	ids := make(map[database.Dimension]map[string]int32, len(fields))
	for _, dim := range database.Dimensions {
		values := plan.Distinct(fields[dim])
		ids[dim] = make(map[string]int32, len(values))
		for _, v := range values {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			id, err := q.UpsertDimension(ctx, dim, v)
			if err != nil {
				return nil, err
			}
			ids[dim][v] = id
		}
	}
	return ids, nil
}

// LoadRun is a past load as shown to users.
type LoadRun struct {
	RunID             uuid.UUID `json:"run_id"`
	NationalitySource string    `json:"nationality_source"`
	AgeSexSource      string    `json:"agesex_source"`
	BaseYear          int       `json:"base_year"`
	Planned           int       `json:"planned"`
	Inserted          int       `json:"inserted"`
	Ignored           int       `json:"ignored"`
	StartedAt         time.Time `json:"started_at"`
	FinishedAt        time.Time `json:"finished_at"`
}

// History returns the most recent loads, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]LoadRun, error) {
	if s.pool == nil {
		return nil, ErrDatabaseRequired
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := database.New(s.pool).ListLoadRuns(ctx, int32(limit))
	if err != nil {
		return nil, fmt.Errorf("list load runs: %w", err)
	}

	runs := make([]LoadRun, 0, len(rows))
	for _, r := range rows {
		runs = append(runs, LoadRun{
			RunID:             uuid.UUID(r.ID.Bytes),
			NationalitySource: r.NationalitySource,
			AgeSexSource:      r.AgeSexSource,
			BaseYear:          int(r.BaseYear),
			Planned:           int(r.Planned),
			Inserted:          int(r.Inserted),
			Ignored:           int(r.Ignored),
			StartedAt:         r.StartedAt.Time,
			FinishedAt:        r.FinishedAt.Time,
		})
	}
	return runs, nil
}

// Summary renders the outcome of a load for CLI output.
func (r *LoadResult) Summary() string {
	return fmt.Sprintf("run %s: planned=%d inserted=%d ignored=%d nations=%d territories=%d years=%d in %s",
		r.RunID, r.Planned, r.Inserted, r.Ignored,
		r.Dimensions[database.DimNation], r.Dimensions[database.DimTerritory], r.Dimensions[database.DimYear],
		r.Duration.Round(time.Millisecond))
}
