package boundary

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// CountySet is a county-granularity designation list keyed by 5-digit FIPS.
// Non-metro high-cost areas are designated at county level, not by polygon.
type CountySet struct {
	Name    string
	Vintage int
	FIPS    map[string]bool
}

// NewCountySet builds a CountySet from FIPS codes.
func NewCountySet(name string, vintage int, fips []string) *CountySet {
	set := &CountySet{Name: name, Vintage: vintage, FIPS: make(map[string]bool, len(fips))}
	for _, f := range fips {
		f = strings.TrimSpace(f)
		if f != "" {
			set.FIPS[f] = true
		}
	}
	return set
}

// Contains reports whether the county FIPS is in the set.
func (s *CountySet) Contains(fips string) bool {
	if s == nil {
		return false
	}
	return s.FIPS[fips]
}

// Len returns the number of counties in the set.
func (s *CountySet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.FIPS)
}

var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// FoldCountyName normalizes a county name for matching against name-keyed
// source lists: strips diacritics ("Doña Ana" -> "dona ana"), lowercases,
// drops the "County"/"Parish"/"Borough" suffix, and collapses whitespace.
func FoldCountyName(name string) string {
	folded, _, err := transform.String(foldTransformer, name)
	if err != nil {
		folded = name
	}
	folded = strings.ToLower(strings.TrimSpace(folded))
	for _, suffix := range []string{" county", " parish", " borough", " census area", " municipality"} {
		folded = strings.TrimSuffix(folded, suffix)
	}
	return strings.Join(strings.Fields(folded), " ")
}

// Collection is the full boundary reference for one program year: the four
// independent designation sets plus the metro and large-county lists.
// Loaded fully before any parcel evaluation begins; never mutated after.
type Collection struct {
	MetroQCT    *PolygonSet
	NonMetroQCT *PolygonSet
	MetroDDA    *PolygonSet
	NonMetroDDA *CountySet

	// MetroCounties decides the exclusive metro/non-metro classification.
	// A county absent from this universe is outside program scope.
	MetroCounties *CountySet
	// CountyUniverse is every county covered by the program year's data.
	CountyUniverse *CountySet
	// LargeCounties gates the same-year wide-radius competition rule.
	LargeCounties *CountySet
}

// OldestVintage returns the oldest vintage among the designation sets, used
// for data-staleness warnings downstream.
func (c *Collection) OldestVintage() int {
	oldest := 0
	consider := func(v int) {
		if v > 0 && (oldest == 0 || v < oldest) {
			oldest = v
		}
	}
	if c.MetroQCT != nil {
		consider(c.MetroQCT.Vintage)
	}
	if c.NonMetroQCT != nil {
		consider(c.NonMetroQCT.Vintage)
	}
	if c.MetroDDA != nil {
		consider(c.MetroDDA.Vintage)
	}
	if c.NonMetroDDA != nil {
		consider(c.NonMetroDDA.Vintage)
	}
	return oldest
}
