// Package competition evaluates nearby prior awards against the allocation
// program's proximity rules, with track-dependent severity.
package competition

import (
	"math"

	"github.com/golang/geo/s2"
	"github.com/rotisserie/eris"

	"github.com/sells-group/sitescore/internal/model"
)

const (
	earthRadiusMeters = 6371000.0
	metersPerMile     = 1609.344
)

// Rule names carried on conflicts for explainability.
const (
	RuleProximityRecency = "proximity_recency"
	RuleSameYearWide     = "same_year_wide_radius"
)

// SameYearScope selects which prior awards the same-year wide-radius rule
// considers. The program guidance is ambiguous here, so the predicate is
// configuration rather than a hard-coded choice.
type SameYearScope string

// Same-year rule scopes.
const (
	ScopeAll                   SameYearScope = "all"
	ScopeNewConstructionFamily SameYearScope = "new_construction_family"
)

// Rules holds the tunable competition parameters.
type Rules struct {
	ProximityMiles float64       `yaml:"proximity_miles" mapstructure:"proximity_miles"`
	LookbackYears  int           `yaml:"lookback_years" mapstructure:"lookback_years"`
	SameYearMiles  float64       `yaml:"same_year_miles" mapstructure:"same_year_miles"`
	SameYearScope  SameYearScope `yaml:"same_year_scope" mapstructure:"same_year_scope"`
}

// DefaultRules returns the program-standard rule parameters.
func DefaultRules() Rules {
	return Rules{
		ProximityMiles: 1.0,
		LookbackYears:  3,
		SameYearMiles:  2.0,
		SameYearScope:  ScopeAll,
	}
}

// ValidateRules checks rule parameters for internal consistency.
func ValidateRules(r Rules) error {
	if r.ProximityMiles <= 0 {
		return eris.New("competition: proximity_miles must be > 0")
	}
	if r.LookbackYears < 0 {
		return eris.New("competition: lookback_years must be >= 0")
	}
	if r.SameYearMiles < r.ProximityMiles {
		return eris.Errorf("competition: same_year_miles %.1f must be >= proximity_miles %.1f",
			r.SameYearMiles, r.ProximityMiles)
	}
	switch r.SameYearScope {
	case ScopeAll, ScopeNewConstructionFamily:
	default:
		return eris.Errorf("competition: unknown same_year_scope %q", r.SameYearScope)
	}
	return nil
}

// History is the read-only prior-award reference, indexed by county so the
// common no-nearby-award case never reaches the distance computation.
type History struct {
	awards   []model.Award
	byCounty map[string][]int
}

// NewHistory builds a History, rejecting award rows with coordinates outside
// the WGS84 envelope. Upstream longitude fields have shipped with corrupt
// separator characters before; a corrupt row silently kept would zero out
// every match downstream, so bad rows are a hard error here.
func NewHistory(awards []model.Award) (*History, error) {
	h := &History{
		awards:   make([]model.Award, 0, len(awards)),
		byCounty: make(map[string][]int),
	}
	for _, a := range awards {
		if a.Lat < -90 || a.Lat > 90 || a.Lon < -180 || a.Lon > 180 {
			return nil, eris.Errorf("competition: award %s has out-of-range coordinates (%.6f, %.6f)",
				a.ID, a.Lat, a.Lon)
		}
		idx := len(h.awards)
		h.awards = append(h.awards, a)
		if a.CountyFIPS != "" {
			h.byCounty[a.CountyFIPS] = append(h.byCounty[a.CountyFIPS], idx)
		}
	}
	return h, nil
}

// Len returns the number of awards in the history.
func (h *History) Len() int { return len(h.awards) }

// candidates returns indices of awards worth measuring for a parcel. When
// the county index covers every award, only same-county awards are measured;
// awards lacking a county key are always considered.
func (h *History) candidates(countyFIPS string) []int {
	indexed := 0
	for _, idxs := range h.byCounty {
		indexed += len(idxs)
	}
	if indexed == len(h.awards) {
		return h.byCounty[countyFIPS]
	}
	// Mixed history: same-county awards plus any unindexed rows.
	out := append([]int(nil), h.byCounty[countyFIPS]...)
	for i, a := range h.awards {
		if a.CountyFIPS == "" {
			out = append(out, i)
		}
	}
	return out
}

// Engine applies the competition rules to parcels against one history.
type Engine struct {
	rules   Rules
	history *History
}

// NewEngine creates an Engine. Rules are validated once here.
func NewEngine(rules Rules, history *History) (*Engine, error) {
	if err := ValidateRules(rules); err != nil {
		return nil, err
	}
	return &Engine{rules: rules, history: history}, nil
}

// DistanceMiles returns the great-circle distance between two points in
// miles. Geodesic, never flat Euclidean degrees.
func DistanceMiles(lat1, lon1, lat2, lon2 float64) float64 {
	p1 := s2.LatLngFromDegrees(lat1, lon1)
	p2 := s2.LatLngFromDegrees(lat2, lon2)
	return p1.Distance(p2).Radians() * earthRadiusMeters / metersPerMile
}

// Check evaluates both competition rules for a parcel. The verdict is
// computed fresh per track; severity for the same violation differs between
// tracks and results must never be cached across them.
func (e *Engine) Check(lat, lon float64, track model.FinancingTrack, analysisYear int, countyFIPS string, countyIsLarge bool) (model.CompetitionResult, error) {
	switch track {
	case model.TrackCompetitive, model.TrackNonCompetitive:
	default:
		return model.CompetitionResult{}, eris.Errorf("competition: unknown financing track %q", track)
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return model.CompetitionResult{}, eris.Errorf(
			"competition: parcel coordinates out of range (%.6f, %.6f)", lat, lon)
	}

	res := model.CompetitionResult{Verdict: model.VerdictNone}

	idxs := e.history.candidates(countyFIPS)
	if len(idxs) == 0 {
		return res, nil
	}

	sameYearActive := track == model.TrackCompetitive && countyIsLarge
	maxMiles := e.rules.ProximityMiles
	if sameYearActive {
		maxMiles = math.Max(maxMiles, e.rules.SameYearMiles)
	}

	for _, i := range idxs {
		a := e.history.awards[i]
		d := DistanceMiles(lat, lon, a.Lat, a.Lon)
		if d > maxMiles {
			continue
		}

		// Proximity-Recency: within 1 mile, awarded in the last 3 years
		// inclusive. Fatal for competitive, soft risk for non-competitive.
		if d <= e.rules.ProximityMiles &&
			a.Year <= analysisYear && a.Year >= analysisYear-e.rules.LookbackYears {
			res.Conflicts = append(res.Conflicts, model.Conflict{
				Award: a, DistanceMiles: d, Rule: RuleProximityRecency,
			})
			if track == model.TrackCompetitive {
				res.Verdict = model.VerdictFatal
			} else if res.Verdict < model.VerdictSoftRisk {
				res.Verdict = model.VerdictSoftRisk
			}
			continue
		}

		// Same-Year Wide-Radius: competitive track in large counties only.
		if sameYearActive && d <= e.rules.SameYearMiles &&
			a.Year == analysisYear && e.inSameYearScope(a) {
			res.Conflicts = append(res.Conflicts, model.Conflict{
				Award: a, DistanceMiles: d, Rule: RuleSameYearWide,
			})
			res.Verdict = model.VerdictFatal
		}
	}

	return res, nil
}

func (e *Engine) inSameYearScope(a model.Award) bool {
	switch e.rules.SameYearScope {
	case ScopeNewConstructionFamily:
		return a.NewConstruction && a.FamilyDev
	default:
		return true
	}
}
