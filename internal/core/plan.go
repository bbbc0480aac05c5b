package core

import (
	"sort"

	"github.com/JonMunkholm/census/internal/census"
)

// Genders names the two values of the gender dimension.
type Genders struct {
	Male   string `json:"male"`
	Female string `json:"female"`
}

// DefaultGenders are the labels used by the published tables.
func DefaultGenders() Genders {
	return Genders{Male: "Мужчины", Female: "Женщины"}
}

// Fact is one population_fact row expressed with dimension values.
type Fact struct {
	Year      string `json:"year"`
	Nation    string `json:"nation"`
	Territory string `json:"territory"`
	Gender    string `json:"gender"`
	Count     int64  `json:"count"`
}

func (f Fact) key() [4]string {
	return [4]string{f.Year, f.Nation, f.Territory, f.Gender}
}

// PlanSkips counts inputs that produced no fact.
type PlanSkips struct {
	RegionsWithoutTotal int `json:"regions_without_total"`
	UnparsedAges        int `json:"unparsed_ages"`
	ZeroCounts          int `json:"zero_counts"`
	DuplicateKeys       int `json:"duplicate_keys"`
}

// Plan is the full set of facts a load will write.
type Plan struct {
	Facts []Fact    `json:"facts"`
	Skips PlanSkips `json:"skips"`
}

// PlanOptions configures BuildPlan.
type PlanOptions struct {
	BaseYear int
	Genders  Genders
}

// BuildPlan joins the two scans over the reconciled region pairs.
//
// The tables share no cross-tabulation, so the count of a
// (year, nation, territory, gender) cell is estimated by distributing each
// sex/age count over the region's nationalities in proportion to their share
// of the region total: round(count * nation / total).
//
// Iteration order is sorted at every level so the same inputs always yield
// the same plan; when two age labels map to one year range the first wins.
func BuildPlan(nat census.NationalityData, ages census.AgeSexData, rec census.Reconciliation, opts PlanOptions) Plan {
	if opts.BaseYear == 0 {
		opts.BaseYear = census.DefaultBaseYear
	}
	if opts.Genders == (Genders{}) {
		opts.Genders = DefaultGenders()
	}

	var plan Plan
	seen := make(map[[4]string]bool)

	for _, pair := range rec.Pairs {
		region := nat[pair.Nationality]
		groups := ages[pair.AgeSex]
		if region.Total <= 0 {
			plan.Skips.RegionsWithoutTotal++
			continue
		}

		nations := sortedNations(region.Nations)
		for _, label := range sortedLabels(groups) {
			iv, ok := census.ParseAgeGroup(label)
			if !ok {
				plan.Skips.UnparsedAges++
				continue
			}
			year := iv.YearRange(opts.BaseYear)
			counts := groups[label]

			for _, nation := range nations {
				pop := int64(region.Nations[nation])
				for _, g := range []struct {
					label string
					count int
				}{
					{opts.Genders.Male, counts.Male},
					{opts.Genders.Female, counts.Female},
				} {
					n := share(int64(g.count), pop, int64(region.Total))
					if n == 0 {
						plan.Skips.ZeroCounts++
						continue
					}
					f := Fact{Year: year, Nation: nation, Territory: pair.Nationality, Gender: g.label, Count: n}
					if seen[f.key()] {
						plan.Skips.DuplicateKeys++
						continue
					}
					seen[f.key()] = true
					plan.Facts = append(plan.Facts, f)
				}
			}
		}
	}

	return plan
}

// share returns round(count * part / total), rounding halves up.
func share(count, part, total int64) int64 {
	if total <= 0 || count <= 0 || part <= 0 {
		return 0
	}
	return (2*count*part + total) / (2 * total)
}

// Distinct returns the sorted distinct values of one dimension of the plan.
func (p Plan) Distinct(field func(Fact) string) []string {
	set := make(map[string]bool)
	for _, f := range p.Facts {
		set[field(f)] = true
	}
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func sortedNations(m map[string]int) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedLabels(m map[string]census.SexCounts) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
