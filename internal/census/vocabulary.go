package census

import (
	"strings"
	"unicode"
)

// Vocabulary lists the free-text phrases that identify row roles.
// Matching is case-insensitive; all phrases are stored lowercase.
type Vocabulary struct {
	// FederalDistrict marks a federal district heading in the nationality table.
	FederalDistrict []string

	// NationMarker precedes the nationality listing of a region.
	NationMarker []string

	// NationStoplist holds boilerplate names that are never nationalities.
	// Compared for equality against the lowercased name cell.
	NationStoplist []string

	// UrbanAndRural is the line that must follow an age/sex region header.
	UrbanAndRural []string

	// AgeSubheader excludes sub-header rows from region detection in the age/sex table.
	// Phrases match whole words, so "age" does not hide "Village Region".
	AgeSubheader []string
}

// DefaultVocabulary covers the Russian-language publications and their
// English translations.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		FederalDistrict: []string{"федеральный округ", "federal district"},
		NationMarker:    []string{"указавшие национальную", "indicating nationality"},
		NationStoplist: []string{
			"указавшие национальную принадлежность",
			"национальность не указана",
			"итого",
			"лица,",
			"не указавшие национальную",
			"принадлежность",
			"(не перечисленные выше)",
			"indicating nationality affiliation",
			"nationality not indicated",
			"total",
			"persons,",
			"not indicating nationality",
			"affiliation",
			"(not listed above)",
		},
		UrbanAndRural: []string{"городское и сельское", "urban and rural"},
		AgeSubheader:  []string{"в том числе", "возрасте", "including", "age"},
	}
}

// containsAny reports whether the lowercased s contains any phrase.
func containsAny(s string, phrases []string) bool {
	if s == "" {
		return false
	}
	lower := strings.ToLower(s)
	for _, p := range phrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// containsWords reports whether the words of any phrase appear as
// consecutive whole words of s.
func containsWords(s string, phrases []string) bool {
	words := splitWords(s)
	if len(words) == 0 {
		return false
	}
	for _, p := range phrases {
		pw := splitWords(p)
		if len(pw) == 0 || len(pw) > len(words) {
			continue
		}
		for i := 0; i+len(pw) <= len(words); i++ {
			if equalWords(words[i:i+len(pw)], pw) {
				return true
			}
		}
	}
	return false
}

func splitWords(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func equalWords(a, b []string) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// equalsAny reports whether the lowercased s equals any phrase.
func equalsAny(s string, phrases []string) bool {
	lower := strings.ToLower(s)
	for _, p := range phrases {
		if lower == p {
			return true
		}
	}
	return false
}
