package census

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// OpenEndedUpperAge caps open-ended buckets such as "85 and over".
const OpenEndedUpperAge = 120

// DefaultBaseYear is the reference year of the census the tables come from.
const DefaultBaseYear = 2010

// Patterns are tried in declaration order; the first match wins.
var (
	openEndedAgeRegex = regexp.MustCompile(`(?i)^(\d+)\s*(и\s+более|и\s+старше|and\s+older|and\s+over|and\s+more|\+)`)
	rangeAgeRegex     = regexp.MustCompile(`^(\d+)\s*[-–—]\s*(\d+)`)
	singleAgeRegex    = regexp.MustCompile(`(?i)^(\d+)\s*(лет|года|год|years?|yrs?)?$`)
)

// AgeInterval is an inclusive range of ages in years.
type AgeInterval struct {
	Lower int `json:"lower"`
	Upper int `json:"upper"`
}

// String formats the interval as "lower-upper".
func (a AgeInterval) String() string {
	return fmt.Sprintf("%d-%d", a.Lower, a.Upper)
}

// YearRange returns the birth-year label for the interval relative to baseYear.
func (a AgeInterval) YearRange(baseYear int) string {
	return CalculateYearRange(a.Lower, a.Upper, baseYear)
}

// ParseAgeGroup maps an age-group label to an inclusive interval.
//
// Recognized shapes:
//
//	"85 и более", "85 and over", "85+"  -> (85, 120)
//	"0 - 4", "15–19"                    -> (0, 4), (15, 19)
//	"5", "5 лет", "5 years"             -> (5, 5)
//
// Range bounds are returned in textual order without validation.
// Anything else reports ok == false.
func ParseAgeGroup(label string) (AgeInterval, bool) {
	s := strings.TrimSpace(label)

	if m := openEndedAgeRegex.FindStringSubmatch(s); m != nil {
		lower, err := strconv.Atoi(m[1])
		if err != nil {
			return AgeInterval{}, false
		}
		return AgeInterval{Lower: lower, Upper: OpenEndedUpperAge}, true
	}

	if m := rangeAgeRegex.FindStringSubmatch(s); m != nil {
		lower, err := strconv.Atoi(m[1])
		if err != nil {
			return AgeInterval{}, false
		}
		upper, err := strconv.Atoi(m[2])
		if err != nil {
			return AgeInterval{}, false
		}
		return AgeInterval{Lower: lower, Upper: upper}, true
	}

	if m := singleAgeRegex.FindStringSubmatch(s); m != nil {
		age, err := strconv.Atoi(m[1])
		if err != nil {
			return AgeInterval{}, false
		}
		return AgeInterval{Lower: age, Upper: age}, true
	}

	return AgeInterval{}, false
}

// CalculateYearRange converts an age interval into the interval of birth
// years relative to baseYear, formatted as "(lower_year, upper_year)".
// The youngest age gives the latest birth year, so the bounds swap roles.
func CalculateYearRange(lowerAge, upperAge, baseYear int) string {
	upperYear := baseYear - lowerAge
	lowerYear := baseYear - upperAge
	return fmt.Sprintf("(%d, %d)", lowerYear, upperYear)
}
