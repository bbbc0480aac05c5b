package database

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

//go:embed schema.sql
var schemaSQL string

// Dimension names a dimension table of the star schema.
type Dimension string

const (
	DimGender    Dimension = "gender"
	DimNation    Dimension = "nation"
	DimTerritory Dimension = "territory"
	DimYear      Dimension = "year"
)

// Dimensions lists every dimension table.
var Dimensions = []Dimension{DimGender, DimNation, DimTerritory, DimYear}

func (d Dimension) valid() bool {
	switch d {
	case DimGender, DimNation, DimTerritory, DimYear:
		return true
	}
	return false
}

func (d Dimension) ident() string {
	return pgx.Identifier{string(d)}.Sanitize()
}

// EnsureSchema creates all tables that do not exist yet.
func (q *Queries) EnsureSchema(ctx context.Context) error {
	if _, err := q.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// UpsertDimension returns the id of val in dim, inserting it when missing.
func (q *Queries) UpsertDimension(ctx context.Context, dim Dimension, val string) (int32, error) {
	if !dim.valid() {
		return 0, fmt.Errorf("unknown dimension %q", dim)
	}
	if val == "" {
		return 0, fmt.Errorf("%s: empty value", dim)
	}

	insert := fmt.Sprintf("INSERT INTO %s (val) VALUES ($1) ON CONFLICT (val) DO NOTHING", dim.ident())
	if _, err := q.db.Exec(ctx, insert, val); err != nil {
		return 0, fmt.Errorf("insert %s %q: %w", dim, val, err)
	}

	return q.LookupDimension(ctx, dim, val)
}

// LookupDimension returns the id of an existing value.
// A missing value yields pgx.ErrNoRows.
func (q *Queries) LookupDimension(ctx context.Context, dim Dimension, val string) (int32, error) {
	if !dim.valid() {
		return 0, fmt.Errorf("unknown dimension %q", dim)
	}
	var id int32
	sel := fmt.Sprintf("SELECT id FROM %s WHERE val = $1", dim.ident())
	if err := q.db.QueryRow(ctx, sel, val).Scan(&id); err != nil {
		return 0, fmt.Errorf("lookup %s %q: %w", dim, val, err)
	}
	return id, nil
}

// CountDimension returns the number of rows in dim.
func (q *Queries) CountDimension(ctx context.Context, dim Dimension) (int64, error) {
	if !dim.valid() {
		return 0, fmt.Errorf("unknown dimension %q", dim)
	}
	var n int64
	err := q.db.QueryRow(ctx, "SELECT count(*) FROM "+dim.ident()).Scan(&n)
	return n, err
}

type InsertFactParams struct {
	YearID      int32
	NationID    int32
	TerritoryID int32
	GenderID    int32
	Count       int64
}

const insertFact = `INSERT INTO population_fact (year_id, nation_id, territory_id, gender_id, count)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (year_id, nation_id, territory_id, gender_id) DO NOTHING`

// InsertFacts sends facts as one batch and returns how many rows were written.
// Facts whose key already exists are ignored.
func (q *Queries) InsertFacts(ctx context.Context, facts []InsertFactParams) (int64, error) {
	if len(facts) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, f := range facts {
		batch.Queue(insertFact, f.YearID, f.NationID, f.TerritoryID, f.GenderID, f.Count)
	}

	br := q.db.SendBatch(ctx, batch)
	var inserted int64
	for i := range facts {
		tag, err := br.Exec()
		if err != nil {
			br.Close()
			return inserted, fmt.Errorf("insert fact %d of %d: %w", i+1, len(facts), err)
		}
		inserted += tag.RowsAffected()
	}
	if err := br.Close(); err != nil {
		return inserted, fmt.Errorf("close batch: %w", err)
	}
	return inserted, nil
}

func (q *Queries) CountFacts(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, "SELECT count(*) FROM population_fact").Scan(&n)
	return n, err
}

// ResetFacts empties the fact table and keeps the dimensions.
func (q *Queries) ResetFacts(ctx context.Context) error {
	_, err := q.db.Exec(ctx, "TRUNCATE population_fact")
	return err
}

type LoadRun struct {
	ID                pgtype.UUID
	NationalitySource string
	AgeSexSource      string
	BaseYear          int32
	Planned           int32
	Inserted          int32
	Ignored           int32
	StartedAt         pgtype.Timestamptz
	FinishedAt        pgtype.Timestamptz
}

const insertLoadRun = `INSERT INTO load_run (
    id, nationality_source, agesex_source, base_year, planned, inserted, ignored, started_at, finished_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

func (q *Queries) InsertLoadRun(ctx context.Context, r LoadRun) error {
	_, err := q.db.Exec(ctx, insertLoadRun,
		r.ID, r.NationalitySource, r.AgeSexSource, r.BaseYear,
		r.Planned, r.Inserted, r.Ignored, r.StartedAt, r.FinishedAt)
	return err
}

const listLoadRuns = `SELECT id, nationality_source, agesex_source, base_year, planned, inserted, ignored, started_at, finished_at
FROM load_run
ORDER BY started_at DESC
LIMIT $1`

// ListLoadRuns returns the most recent load runs first.
func (q *Queries) ListLoadRuns(ctx context.Context, limit int32) ([]LoadRun, error) {
	rows, err := q.db.Query(ctx, listLoadRuns, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []LoadRun
	for rows.Next() {
		var r LoadRun
		if err := rows.Scan(
			&r.ID, &r.NationalitySource, &r.AgeSexSource, &r.BaseYear,
			&r.Planned, &r.Inserted, &r.Ignored, &r.StartedAt, &r.FinishedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}
