package census

import (
	"fmt"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// MatchMode selects how region names of the two tables are joined.
type MatchMode string

const (
	// MatchExact joins on byte-identical cleaned names.
	MatchExact MatchMode = "exact"

	// MatchCanonical also joins names equal after CanonicalRegion.
	MatchCanonical MatchMode = "canonical"

	// MatchFuzzy also joins the unique nearest canonical name within
	// MaxDistance edits.
	MatchFuzzy MatchMode = "fuzzy"
)

// ParseMatchMode validates a configured mode name.
func ParseMatchMode(s string) (MatchMode, error) {
	switch m := MatchMode(strings.ToLower(strings.TrimSpace(s))); m {
	case MatchExact, MatchCanonical, MatchFuzzy:
		return m, nil
	case "":
		return MatchExact, nil
	default:
		return "", fmt.Errorf("unknown region match mode %q", s)
	}
}

// MatchOptions configures Reconcile.
type MatchOptions struct {
	Mode        MatchMode
	MaxDistance int
}

// RegionPair joins a nationality region to an age/sex region.
type RegionPair struct {
	Nationality string    `json:"nationality"`
	AgeSex      string    `json:"agesex"`
	Mode        MatchMode `json:"mode"`
	Distance    int       `json:"distance,omitempty"`
}

// Reconciliation is the result of joining the regions of both tables.
type Reconciliation struct {
	Pairs           []RegionPair `json:"pairs"`
	OnlyNationality []string     `json:"only_nationality"`
	OnlyAgeSex      []string     `json:"only_agesex"`
}

// CanonicalRegion normalizes a region name for comparison: NFC, case folded,
// single spaces, "ё" spelled as "е".
func CanonicalRegion(name string) string {
	s := norm.NFC.String(name)
	s = cases.Fold().String(s)
	s = strings.ReplaceAll(s, "ё", "е")
	return strings.Join(strings.Fields(s), " ")
}

// Reconcile pairs region names of the two scans. Every name appears exactly
// once, either in a pair or in one of the "only" lists. Results are sorted so
// the outcome does not depend on map iteration order.
func Reconcile(nat NationalityData, ages AgeSexData, opts MatchOptions) Reconciliation {
	natLeft := nat.Regions()
	ageLeft := make(map[string]bool, len(ages))
	for name := range ages {
		ageLeft[name] = true
	}

	var rec Reconciliation
	var pending []string

	for _, name := range natLeft {
		if ageLeft[name] {
			rec.Pairs = append(rec.Pairs, RegionPair{Nationality: name, AgeSex: name, Mode: MatchExact})
			delete(ageLeft, name)
			continue
		}
		pending = append(pending, name)
	}

	if opts.Mode == MatchCanonical || opts.Mode == MatchFuzzy {
		pending = matchCanonical(&rec, pending, ageLeft)
	}
	if opts.Mode == MatchFuzzy && opts.MaxDistance > 0 {
		pending = matchFuzzy(&rec, pending, ageLeft, opts.MaxDistance)
	}

	rec.OnlyNationality = pending
	rec.OnlyAgeSex = sortedKeys(ageLeft)
	sort.Slice(rec.Pairs, func(i, j int) bool {
		return rec.Pairs[i].Nationality < rec.Pairs[j].Nationality
	})
	return rec
}

func matchCanonical(rec *Reconciliation, pending []string, ageLeft map[string]bool) []string {
	byCanon := make(map[string][]string)
	for _, name := range sortedKeys(ageLeft) {
		c := CanonicalRegion(name)
		byCanon[c] = append(byCanon[c], name)
	}

	var rest []string
	for _, name := range pending {
		candidates := byCanon[CanonicalRegion(name)]
		if len(candidates) != 1 || !ageLeft[candidates[0]] {
			rest = append(rest, name)
			continue
		}
		rec.Pairs = append(rec.Pairs, RegionPair{Nationality: name, AgeSex: candidates[0], Mode: MatchCanonical})
		delete(ageLeft, candidates[0])
	}
	return rest
}

// matchFuzzy accepts a candidate only when it is the single nearest name;
// ties are left unmatched rather than guessed.
func matchFuzzy(rec *Reconciliation, pending []string, ageLeft map[string]bool, maxDist int) []string {
	var rest []string
	for _, name := range pending {
		canon := CanonicalRegion(name)
		best, bestDist, ties := "", maxDist+1, 0

		for _, candidate := range sortedKeys(ageLeft) {
			d := levenshtein.ComputeDistance(canon, CanonicalRegion(candidate))
			switch {
			case d < bestDist:
				best, bestDist, ties = candidate, d, 1
			case d == bestDist:
				ties++
			}
		}

		if best == "" || ties != 1 {
			rest = append(rest, name)
			continue
		}
		rec.Pairs = append(rec.Pairs, RegionPair{Nationality: name, AgeSex: best, Mode: MatchFuzzy, Distance: bestDist})
		delete(ageLeft, best)
	}
	return rest
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
