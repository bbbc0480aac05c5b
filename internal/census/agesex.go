package census

import (
	"sort"
	"strings"

	"github.com/JonMunkholm/census/internal/sheet"
)

const ageSexTable = "agesex"

// AgeSexLayout names the positional columns of the age/sex table.
// Region headers and age labels share a column; they appear on different rows.
type AgeSexLayout struct {
	Label  int
	Male   int
	Female int
}

// DefaultAgeSexLayout is columns D, I and J.
func DefaultAgeSexLayout() AgeSexLayout {
	return AgeSexLayout{Label: 3, Male: 8, Female: 9}
}

// Layout returns the sheet layout used for shape validation.
func (l AgeSexLayout) Layout() sheet.Layout {
	return sheet.Layout{
		Name: ageSexTable,
		Columns: []sheet.Column{
			{Name: "label", Index: l.Label},
			{Name: "male", Index: l.Male},
			{Name: "female", Index: l.Female},
		},
	}
}

func (l AgeSexLayout) row(r sheet.Row) ageSexRow {
	return ageSexRow{
		Label:  r.Cell(l.Label),
		Male:   r.Cell(l.Male),
		Female: r.Cell(l.Female),
	}
}

// SexCounts is the male and female population of one age group.
type SexCounts struct {
	Male   int `json:"male"`
	Female int `json:"female"`
}

// AgeSexData maps region name to age label (as written in the source) to counts.
type AgeSexData map[string]map[string]SexCounts

// Regions returns the region names in sorted order.
func (d AgeSexData) Regions() []string {
	names := make([]string, 0, len(d))
	for name := range d {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Entries returns the number of stored age groups across all regions.
func (d AgeSexData) Entries() int {
	n := 0
	for _, ages := range d {
		n += len(ages)
	}
	return n
}

type ageSexState struct {
	Reading bool
	Region  string
	Ages    int // age rows accepted for Region
}

type ageSexRow struct {
	Label  string
	Male   string
	Female string
}

type ageSexAction int

const (
	ageSexNone ageSexAction = iota
	ageSexRegion
	ageSexEntry
	ageSexRejected
	ageSexBlockEnd
)

type ageSexEvent struct {
	Action ageSexAction
	Name   string
	Counts SexCounts
}

// stepAgeSex is the transition function of the age/sex scanner. next is the
// row after the cursor, or nil at the end of the table. advance is the number
// of rows consumed: a confirmed region header also consumes its
// "urban and rural" line.
func stepAgeSex(st ageSexState, row ageSexRow, next *ageSexRow, v *Vocabulary) (ageSexState, ageSexEvent, int) {
	if next != nil && regionHeader(row.Label, v) && containsAny(next.Label, v.UrbanAndRural) {
		return ageSexState{Reading: true, Region: row.Label},
			ageSexEvent{Action: ageSexRegion, Name: row.Label}, 2
	}

	if !st.Reading || st.Region == "" {
		return st, ageSexEvent{}, 1
	}

	if row.Label != "" && row.Male != "" && row.Female != "" {
		male, okMale := parseCount(row.Male)
		female, okFemale := parseCount(row.Female)
		if !okMale || !okFemale {
			return st, ageSexEvent{}, 1
		}
		if _, ok := ParseAgeGroup(row.Label); !ok {
			return st, ageSexEvent{Action: ageSexRejected, Name: row.Label}, 1
		}
		st.Ages++
		return st, ageSexEvent{
			Action: ageSexEntry,
			Name:   row.Label,
			Counts: SexCounts{Male: male, Female: female},
		}, 1
	}

	if row.Label == "" && row.Male == "" && row.Female == "" && st.Ages > 0 {
		return ageSexState{}, ageSexEvent{Action: ageSexBlockEnd, Name: st.Region}, 1
	}

	return st, ageSexEvent{}, 1
}

// regionHeader reports whether label can name a region. Short labels such as
// "лет:", labels starting with a number, sub-headers and age groups are not.
func regionHeader(label string, v *Vocabulary) bool {
	if label == "" || runeLen(label) <= 5 {
		return false
	}
	if fields := strings.Fields(label); len(fields) == 0 || hasDigit(fields[0]) {
		return false
	}
	if containsWords(label, v.AgeSubheader) {
		return false
	}
	if _, ok := ParseAgeGroup(label); ok {
		return false
	}
	return true
}

// ReadAgeSexData reads and scans the age/sex table at path.
// Like ReadNationalityData it never fails and reports problems in the Report.
func (s *Scanner) ReadAgeSexData(path string) (AgeSexData, Report) {
	s.log.Info("reading age/sex table", "path", path)

	t, err := s.readTable(path)
	if err != nil {
		return AgeSexData{}, s.fail(failure(ageSexTable, path, err))
	}
	if t.Source == "" {
		t.Source = path
	}
	return s.ScanAgeSex(t)
}

// ScanAgeSex runs the age/sex state machine over an in-memory table.
func (s *Scanner) ScanAgeSex(t *sheet.Table) (AgeSexData, Report) {
	data := AgeSexData{}
	rep := Report{Table: ageSexTable, Source: t.Source, Rows: t.Len()}
	log := s.log.With("table", ageSexTable, "source", t.Source)

	if t.Len() > 0 {
		if err := s.ageSex.Layout().Validate(t); err != nil {
			rep.Status = StatusFailed
			rep.Err = err
			rep.Failure = err.Error()
			return data, s.fail(rep)
		}
	}

	var st ageSexState
	for i := 0; i < t.Len(); {
		var next *ageSexRow
		if i+1 < t.Len() {
			n := s.ageSex.row(t.Rows[i+1])
			next = &n
		}

		var ev ageSexEvent
		var advance int
		st, ev, advance = stepAgeSex(st, s.ageSex.row(t.Rows[i]), next, &s.vocab)
		line := i + 1

		switch ev.Action {
		case ageSexRegion:
			if _, ok := data[ev.Name]; ok {
				log.Warn("region header repeated, restarting its block", "line", line, "region", ev.Name)
			}
			data[ev.Name] = map[string]SexCounts{}
			log.Debug("region found", "line", line, "region", ev.Name)
		case ageSexEntry:
			data[st.Region][ev.Name] = ev.Counts
		case ageSexRejected:
			rep.Skipped++
			log.Debug("unrecognized age group skipped", "line", line, "region", st.Region, "label", ev.Name)
		case ageSexBlockEnd:
			log.Debug("age block finished", "line", line, "region", ev.Name, "groups", len(data[ev.Name]))
		}

		i += advance
	}

	rep.Regions = len(data)
	rep.Entries = data.Entries()
	rep.finish()
	log.Info("age/sex table scanned",
		"status", rep.Status, "rows", rep.Rows, "regions", rep.Regions,
		"entries", rep.Entries, "skipped", rep.Skipped)
	s.observe(rep)
	return data, rep
}
