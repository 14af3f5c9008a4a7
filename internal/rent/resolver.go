// Package rent resolves program rent ceilings from income limit tables using
// the fixed household-size conventions. The interpolation and rounding here
// are numerically load-bearing: results are regression-tested against an
// external reference calculator and must match to the dollar.
package rent

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/sitescore/internal/model"
)

// Sentinel errors, matched with eris.Is.
var (
	ErrGeographyNotFound = eris.New("rent: geography not found")
	ErrUnsupportedTier   = eris.New("rent: unsupported income tier")
)

// MinHouseholdSizes is the smallest number of household-size columns a
// geography row must carry: the 4BR convention reads the 6-person limit.
const MinHouseholdSizes = 6

// IncomeLimitTable holds annual income ceilings keyed by geography and
// AMI tier percentage. Limits are indexed by household size minus one
// (index 0 = 1 person). Read-only after load.
type IncomeLimitTable struct {
	Vintage int
	Limits  map[string]map[int][]float64
}

// Resolver answers rent-ceiling queries against a single income limit table.
type Resolver struct {
	table *IncomeLimitTable
}

// NewResolver creates a Resolver over the given table.
func NewResolver(table *IncomeLimitTable) *Resolver {
	return &Resolver{table: table}
}

// Vintage returns the program year of the underlying table.
func (r *Resolver) Vintage() int { return r.table.Vintage }

// Ceiling is a resolved rent ceiling with its audit intermediates.
type Ceiling struct {
	MonthlyRent  float64 `json:"monthly_rent"`
	AnnualIncome float64 `json:"annual_income"`
	PersonCount  float64 `json:"person_count"`
}

// Resolve returns the monthly rent ceiling for a geography, AMI tier, and
// unit size. Monthly rent is floor(annual * 0.30 / 12); always floor, never
// round-to-nearest.
func (r *Resolver) Resolve(geoKey string, tierPct int, size model.UnitSize) (Ceiling, error) {
	tiers, ok := r.table.Limits[geoKey]
	if !ok {
		return Ceiling{}, eris.Wrapf(ErrGeographyNotFound, "geography %q", geoKey)
	}

	limits, ok := tiers[tierPct]
	if !ok {
		return Ceiling{}, eris.Wrapf(ErrUnsupportedTier, "tier %d%% for geography %q", tierPct, geoKey)
	}
	if len(limits) < MinHouseholdSizes {
		return Ceiling{}, eris.Errorf("rent: geography %q tier %d%% has %d household sizes, need %d",
			geoKey, tierPct, len(limits), MinHouseholdSizes)
	}

	persons, ok := size.PersonCount()
	if !ok {
		return Ceiling{}, eris.Errorf("rent: unknown unit size %q", size)
	}

	annual, err := incomeAtPersons(limits, persons)
	if err != nil {
		return Ceiling{}, err
	}

	return Ceiling{
		MonthlyRent:  math.Floor(annual * 0.30 / 12),
		AnnualIncome: annual,
		PersonCount:  persons,
	}, nil
}

// incomeAtPersons evaluates the income limit at a possibly fractional person
// count p. For fractional p between p_lo and p_hi = p_lo+1:
//
//	income(p) = income(p_lo) + (p - p_lo) * (income(p_hi) - income(p_lo))
func incomeAtPersons(limits []float64, p float64) (float64, error) {
	lo := int(math.Floor(p))
	if lo < 1 || lo > len(limits) {
		return 0, eris.Errorf("rent: person count %.1f outside table range", p)
	}

	frac := p - float64(lo)
	if frac == 0 {
		return limits[lo-1], nil
	}

	hi := lo + 1
	if hi > len(limits) {
		return 0, eris.Errorf("rent: person count %.1f needs %d-person limit, table has %d", p, hi, len(limits))
	}

	return limits[lo-1] + frac*(limits[hi-1]-limits[lo-1]), nil
}
