package cli

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/JonMunkholm/census/internal/census"
	"github.com/JonMunkholm/census/internal/core"
	"github.com/JonMunkholm/census/internal/metrics"
	"github.com/JonMunkholm/census/internal/sheet"
)

// runtime is everything a command needs to talk to the service.
type runtime struct {
	service  *core.Service
	registry *prometheus.Registry
	pool     *pgxpool.Pool
}

func (r *runtime) Close() {
	if r.pool != nil {
		r.pool.Close()
	}
}

func (a *app) sheetOptions() sheet.Options {
	return sheet.Options{
		Sheet:    a.cfg.Census.Sheet,
		Comma:    a.cfg.Census.Delimiter(),
		Encoding: a.cfg.Census.CSVEncoding,
	}
}

func (a *app) scanner(observer census.Observer) *census.Scanner {
	opts := []census.Option{
		census.WithReader(census.FileReader{Options: a.sheetOptions()}),
		census.WithExpectedRegions(a.cfg.Census.ExpectedRegions, a.cfg.Census.RegionTolerance),
	}
	if observer != nil {
		opts = append(opts, census.WithObserver(observer))
	}
	return census.NewScanner(a.log, opts...)
}

// newRuntime builds the service. The database pool is opened only when
// DATABASE_URL is set; requireDB turns its absence into an error.
func (a *app) newRuntime(ctx context.Context, requireDB bool) (*runtime, error) {
	rt := &runtime{registry: prometheus.NewRegistry()}
	rt.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(rt.registry)

	mode, err := census.ParseMatchMode(a.cfg.Match.Mode)
	if err != nil {
		return nil, err
	}

	var pool core.Pool
	switch {
	case a.cfg.Database.URL != "":
		rt.pool, err = a.openPool(ctx)
		if err != nil {
			return nil, err
		}
		pool = rt.pool
	case requireDB:
		return nil, core.ErrDatabaseRequired
	}

	rt.service = core.NewService(pool, core.Options{
		Logger:      a.log,
		Scanner:     a.scanner(m),
		Sheet:       a.sheetOptions(),
		Match:       census.MatchOptions{Mode: mode, MaxDistance: a.cfg.Match.MaxDistance},
		BaseYear:    a.cfg.Census.BaseYear,
		BatchSize:   a.cfg.Load.BatchSize,
		Genders:     core.Genders{Male: a.cfg.Load.MaleLabel, Female: a.cfg.Load.FemaleLabel},
		Observer:    m,
		Limiter:     core.NewLoadLimiter(1, core.DefaultLoadWait),
		LoadTimeout: a.cfg.Load.Timeout,
	})
	return rt, nil
}

func (a *app) openPool(ctx context.Context) (*pgxpool.Pool, error) {
	db := a.cfg.Database
	poolConfig, err := pgxpool.ParseConfig(db.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = int32(db.MaxConns)
	poolConfig.MinConns = int32(db.MinConns)
	poolConfig.MaxConnLifetime = db.MaxConnLifetime
	poolConfig.MaxConnIdleTime = db.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if u, err := url.Parse(db.URL); err == nil {
		a.log.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		a.log.Info("connected to database")
	}
	return pool, nil
}

// inputFlags are shared by commands that read both tables.
type inputFlags struct {
	nationality string
	agesex      string
	baseYear    int
	match       string
}

func (f *inputFlags) inputs(a *app) core.Inputs {
	in := core.Inputs{
		NationalityFile: a.cfg.Census.NationalityFile,
		AgeSexFile:      a.cfg.Census.AgeSexFile,
		BaseYear:        f.baseYear,
	}
	if f.nationality != "" {
		in.NationalityFile = f.nationality
	}
	if f.agesex != "" {
		in.AgeSexFile = f.agesex
	}
	return in
}

// apply copies flag overrides that live in the config.
func (f *inputFlags) apply(a *app) {
	if f.match != "" {
		a.cfg.Match.Mode = f.match
	}
}
