package census

import (
	"sort"
	"strings"

	"github.com/JonMunkholm/census/internal/sheet"
)

const nationalityTable = "nationality"

// NationalityLayout names the positional columns of the nationality table.
type NationalityLayout struct {
	Index    int // item number or marker ("1.", "12")
	Subtitle int // usually empty; federal district names sometimes land here
	Name     int // region, federal district, marker or nationality name
	Count    int // population
}

// DefaultNationalityLayout is columns A-D.
func DefaultNationalityLayout() NationalityLayout {
	return NationalityLayout{Index: 0, Subtitle: 1, Name: 2, Count: 3}
}

// Layout returns the sheet layout used for shape validation.
func (l NationalityLayout) Layout() sheet.Layout {
	return sheet.Layout{
		Name: nationalityTable,
		Columns: []sheet.Column{
			{Name: "index", Index: l.Index},
			{Name: "subtitle", Index: l.Subtitle},
			{Name: "name", Index: l.Name},
			{Name: "count", Index: l.Count},
		},
	}
}

func (l NationalityLayout) row(r sheet.Row) nationalityRow {
	return nationalityRow{
		Index:    r.Cell(l.Index),
		Subtitle: r.Cell(l.Subtitle),
		Name:     r.Cell(l.Name),
		Count:    r.Cell(l.Count),
	}
}

// RegionNations is the nationality breakdown of one region.
type RegionNations struct {
	Total   int            `json:"total"`
	Nations map[string]int `json:"nations"`
}

// NationalityData maps region name to its nationality breakdown.
type NationalityData map[string]RegionNations

// Regions returns the region names in sorted order.
func (d NationalityData) Regions() []string {
	names := make([]string, 0, len(d))
	for name := range d {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Entries returns the number of stored nationality counts.
func (d NationalityData) Entries() int {
	n := 0
	for _, r := range d {
		n += len(r.Nations)
	}
	return n
}

type nationalityPhase int

const (
	phaseSearchingFederalDistrict nationalityPhase = iota
	phaseSearchingRegion
	phaseSearchingNationMarker
	phaseReadingNations
)

func (p nationalityPhase) String() string {
	switch p {
	case phaseSearchingFederalDistrict:
		return "searching_federal_district"
	case phaseSearchingRegion:
		return "searching_region"
	case phaseSearchingNationMarker:
		return "searching_nation_marker"
	case phaseReadingNations:
		return "reading_nations"
	default:
		return "unknown"
	}
}

type nationalityState struct {
	Phase    nationalityPhase
	Region   string
	District string // diagnostics only
}

type nationalityRow struct {
	Index    string
	Subtitle string
	Name     string
	Count    string
}

type nationalityAction int

const (
	nationalityNone nationalityAction = iota
	nationalityFederalDistrict
	nationalityRegion
	nationalityDuplicateRegion
	nationalityMarker
	nationalityBeforeMarker
	nationalityEntry
	nationalityZeroEntry
	nationalityBlockEnd
)

type nationalityEvent struct {
	Action nationalityAction
	Name   string
	Count  int
}

// stepNationality is the transition function of the nationality scanner.
// seen reports whether a region name has already been registered.
func stepNationality(st nationalityState, row nationalityRow, seen func(string) bool, v *Vocabulary) (nationalityState, nationalityEvent) {
	// A federal district heading resets the machine from any phase.
	if containsAny(row.Subtitle, v.FederalDistrict) || containsAny(row.Name, v.FederalDistrict) {
		district := strings.TrimSpace(row.Subtitle + " " + row.Name)
		next := nationalityState{Phase: phaseSearchingRegion, District: district}
		return next, nationalityEvent{Action: nationalityFederalDistrict, Name: district}
	}

	switch st.Phase {
	case phaseSearchingRegion:
		total, ok := regionRow(row, v)
		if !ok {
			return st, nationalityEvent{}
		}
		if seen(row.Name) {
			return st, nationalityEvent{Action: nationalityDuplicateRegion, Name: row.Name, Count: total}
		}
		st.Phase = phaseSearchingNationMarker
		st.Region = row.Name
		return st, nationalityEvent{Action: nationalityRegion, Name: row.Name, Count: total}

	case phaseSearchingNationMarker:
		if st.Region != "" && containsAny(row.Name, v.NationMarker) {
			st.Phase = phaseReadingNations
			return st, nationalityEvent{Action: nationalityMarker}
		}
		if n, ok := parseCount(row.Count); ok && hasLeadingIndex(row.Index) && row.Name != "" {
			return st, nationalityEvent{Action: nationalityBeforeMarker, Name: row.Name, Count: n}
		}

	case phaseReadingNations:
		if st.Region != "" {
			if n, ok := nationRow(row, v); ok {
				if n > 0 {
					return st, nationalityEvent{Action: nationalityEntry, Name: row.Name, Count: n}
				}
				return st, nationalityEvent{Action: nationalityZeroEntry, Name: row.Name}
			}
		}
		if row.Index == "" && row.Name == "" && row.Count == "" {
			next := nationalityState{Phase: phaseSearchingRegion, District: st.District}
			return next, nationalityEvent{Action: nationalityBlockEnd, Name: st.Region}
		}
	}

	return st, nationalityEvent{}
}

// regionRow reports whether row is a region heading and returns its total.
func regionRow(row nationalityRow, v *Vocabulary) (int, bool) {
	if !hasLeadingIndex(row.Index) || row.Subtitle != "" || row.Name == "" {
		return 0, false
	}
	total, ok := parseCount(row.Count)
	if !ok {
		return 0, false
	}
	if containsAny(row.Name, v.FederalDistrict) || containsAny(row.Name, v.NationMarker) {
		return 0, false
	}
	if runeLen(row.Name) <= 3 {
		return 0, false
	}
	return total, true
}

// nationRow reports whether row is a nationality entry and returns its count.
func nationRow(row nationalityRow, v *Vocabulary) (int, bool) {
	if !hasLeadingIndex(row.Index) || row.Name == "" {
		return 0, false
	}
	n, ok := parseCount(row.Count)
	if !ok {
		return 0, false
	}
	if equalsAny(row.Name, v.NationStoplist) {
		return 0, false
	}
	return n, true
}

// ReadNationalityData reads and scans the nationality table at path.
// It never fails: problems are reported through the returned Report and the
// data map is empty when the file could not be used.
func (s *Scanner) ReadNationalityData(path string) (NationalityData, Report) {
	s.log.Info("reading nationality table", "path", path)

	t, err := s.readTable(path)
	if err != nil {
		return NationalityData{}, s.fail(failure(nationalityTable, path, err))
	}
	if t.Source == "" {
		t.Source = path
	}
	return s.ScanNationality(t)
}

// ScanNationality runs the nationality state machine over an in-memory table.
func (s *Scanner) ScanNationality(t *sheet.Table) (NationalityData, Report) {
	data := NationalityData{}
	rep := Report{Table: nationalityTable, Source: t.Source, Rows: t.Len()}
	log := s.log.With("table", nationalityTable, "source", t.Source)

	if t.Len() > 0 {
		if err := s.nationality.Layout().Validate(t); err != nil {
			rep.Status = StatusFailed
			rep.Err = err
			rep.Failure = err.Error()
			return data, s.fail(rep)
		}
	}

	seen := func(name string) bool {
		_, ok := data[name]
		return ok
	}

	st := nationalityState{Phase: phaseSearchingFederalDistrict}
	for i, r := range t.Rows {
		var ev nationalityEvent
		st, ev = stepNationality(st, s.nationality.row(r), seen, &s.vocab)
		line := i + 1

		switch ev.Action {
		case nationalityFederalDistrict:
			log.Info("federal district found", "line", line, "district", ev.Name)
		case nationalityRegion:
			data[ev.Name] = RegionNations{Total: ev.Count, Nations: map[string]int{}}
			log.Debug("region found", "line", line, "region", ev.Name, "district", st.District, "total", ev.Count)
		case nationalityDuplicateRegion:
			rep.Skipped++
			log.Warn("duplicate region ignored", "line", line, "region", ev.Name)
		case nationalityMarker:
			log.Debug("nationality marker found", "line", line, "region", st.Region)
		case nationalityBeforeMarker:
			rep.Skipped++
			log.Warn("nationality-like row before marker, check file structure",
				"line", line, "region", st.Region, "name", ev.Name)
		case nationalityEntry:
			data[st.Region].Nations[ev.Name] = ev.Count
		case nationalityZeroEntry:
			log.Debug("zero population nationality dropped", "line", line, "region", st.Region, "name", ev.Name)
		case nationalityBlockEnd:
			log.Debug("nationality block finished", "line", line, "region", ev.Name)
		}
	}

	rep.Regions = len(data)
	rep.Entries = data.Entries()

	if s.expectedRegions > 0 {
		diff := rep.Regions - s.expectedRegions
		if diff < 0 {
			diff = -diff
		}
		if diff > s.regionTolerance {
			rep.Drift = true
			log.Warn("region count differs from expected, check parser rules or file structure",
				"regions", rep.Regions, "expected", s.expectedRegions, "tolerance", s.regionTolerance)
		}
	}

	rep.finish()
	log.Info("nationality table scanned",
		"status", rep.Status, "rows", rep.Rows, "regions", rep.Regions,
		"entries", rep.Entries, "skipped", rep.Skipped)
	s.observe(rep)
	return data, rep
}
