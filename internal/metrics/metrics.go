// Package metrics exposes prometheus collectors for table scans and loads.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/JonMunkholm/census/internal/census"
)

// Metrics tracks scan outcomes and database loads.
// It implements census.Observer.
type Metrics struct {
	ScanRows     *prometheus.CounterVec
	ScanSkipped  *prometheus.CounterVec
	ScanRegions  *prometheus.GaugeVec
	Scans        *prometheus.CounterVec
	Loads        *prometheus.CounterVec
	FactsWritten prometheus.Counter
	FactsIgnored prometheus.Counter
	LoadDuration prometheus.Histogram
}

// New registers all collectors with reg. Pass prometheus.DefaultRegisterer in
// production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ScanRows: f.NewCounterVec(prometheus.CounterOpts{
			Name: "census_scan_rows_total",
			Help: "Rows read by table scanners",
		}, []string{"table"}),
		ScanSkipped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "census_scan_skipped_rows_total",
			Help: "Rows that looked like data but were dropped by a scanner",
		}, []string{"table"}),
		ScanRegions: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "census_scan_regions",
			Help: "Regions found by the most recent scan of each table",
		}, []string{"table"}),
		Scans: f.NewCounterVec(prometheus.CounterOpts{
			Name: "census_scans_total",
			Help: "Finished scans by table and status",
		}, []string{"table", "status"}),
		Loads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "census_loads_total",
			Help: "Database loads by outcome",
		}, []string{"status"}),
		FactsWritten: f.NewCounter(prometheus.CounterOpts{
			Name: "census_facts_inserted_total",
			Help: "Population facts written to the database",
		}),
		FactsIgnored: f.NewCounter(prometheus.CounterOpts{
			Name: "census_facts_ignored_total",
			Help: "Population facts skipped because their key already existed",
		}),
		LoadDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "census_load_duration_seconds",
			Help:    "Duration of database loads",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
	}
}

// ObserveScan records a finished scan.
func (m *Metrics) ObserveScan(r census.Report) {
	m.Scans.WithLabelValues(r.Table, string(r.Status)).Inc()
	if !r.Usable() {
		return
	}
	m.ScanRows.WithLabelValues(r.Table).Add(float64(r.Rows))
	m.ScanSkipped.WithLabelValues(r.Table).Add(float64(r.Skipped))
	m.ScanRegions.WithLabelValues(r.Table).Set(float64(r.Regions))
}

// ObserveLoad records a load that started at start.
func (m *Metrics) ObserveLoad(start time.Time, inserted, ignored int64, err error) {
	m.LoadDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		m.Loads.WithLabelValues("failed").Inc()
		return
	}
	m.Loads.WithLabelValues("ok").Inc()
	m.FactsWritten.Add(float64(inserted))
	m.FactsIgnored.Add(float64(ignored))
}
