package model

import (
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
)

// Verdict is the competition-rule outcome for a parcel, ordered by severity.
type Verdict int

// Conflict verdicts.
const (
	VerdictNone Verdict = iota
	VerdictSoftRisk
	VerdictFatal
)

var verdictNames = map[Verdict]string{
	VerdictNone:     "none",
	VerdictSoftRisk: "soft_risk",
	VerdictFatal:    "fatal",
}

func (v Verdict) String() string {
	if s, ok := verdictNames[v]; ok {
		return s
	}
	return "unknown"
}

// MarshalJSON encodes the verdict as its string name.
func (v Verdict) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.String())
}

// UnmarshalJSON decodes a verdict from its string name.
func (v *Verdict) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for k, name := range verdictNames {
		if name == s {
			*v = k
			return nil
		}
	}
	return eris.Errorf("model: unknown verdict %q", s)
}

// Tier is the qualitative investment ranking, ordered worst to best.
type Tier int

// Ranking tiers.
const (
	TierFatal Tier = iota
	TierPoor
	TierFair
	TierGood
	TierHighPotential
	TierExceptional
)

var tierNames = map[Tier]string{
	TierFatal:         "fatal",
	TierPoor:          "poor",
	TierFair:          "fair",
	TierGood:          "good",
	TierHighPotential: "high_potential",
	TierExceptional:   "exceptional",
}

// Tiers lists all tiers in ascending order.
var Tiers = []Tier{TierFatal, TierPoor, TierFair, TierGood, TierHighPotential, TierExceptional}

func (t Tier) String() string {
	if s, ok := tierNames[t]; ok {
		return s
	}
	return "unknown"
}

// MarshalJSON encodes the tier as its string name.
func (t Tier) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON decodes a tier from its string name.
func (t *Tier) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for k, name := range tierNames {
		if name == s {
			*t = k
			return nil
		}
	}
	return eris.Errorf("model: unknown tier %q", s)
}

// ResultStatus marks whether a parcel evaluation produced a usable result.
type ResultStatus string

// Result statuses. Indeterminate means the inputs were insufficient for a
// meaningful answer; it is distinct from a computed "poor" result and from
// an outright error.
const (
	StatusOK            ResultStatus = "ok"
	StatusIndeterminate ResultStatus = "indeterminate"
	StatusError         ResultStatus = "error"
)

// Award is a prior allocation in the program's history, used by the
// competition rules.
type Award struct {
	ID              string         `json:"id"`
	Project         string         `json:"project,omitempty"`
	Lat             float64        `json:"lat"`
	Lon             float64        `json:"lon"`
	Year            int            `json:"year"`
	Track           FinancingTrack `json:"track"`
	CountyFIPS      string         `json:"county_fips"`
	NewConstruction bool           `json:"new_construction"`
	FamilyDev       bool           `json:"family_dev"`
	Units           int            `json:"units,omitempty"`
}

// Conflict is a single prior award that triggered a competition rule,
// retained for explainability.
type Conflict struct {
	Award         Award   `json:"award"`
	DistanceMiles float64 `json:"distance_miles"`
	Rule          string  `json:"rule"`
}

// CompetitionResult is the full competition-rule outcome for one parcel and
// one financing track. It is never reused across tracks since severity
// differs by track.
type CompetitionResult struct {
	Verdict   Verdict    `json:"verdict"`
	Conflicts []Conflict `json:"conflicts,omitempty"`
}

// Classification is the geospatial eligibility outcome for a parcel.
// QCT and DDA are independent; both may be true.
type Classification struct {
	QCT         bool   `json:"qct"`
	DDA         bool   `json:"dda"`
	Metro       bool   `json:"metro"`
	BoostPct    int    `json:"boost_pct"`
	QCTKey      string `json:"qct_key,omitempty"`
	DDAKey      string `json:"dda_key,omitempty"`
	DataVintage int    `json:"data_vintage"`
	Stale       bool   `json:"stale,omitempty"`
}

// EconomicResult holds the cost/revenue model output plus every multiplier
// applied, for auditability.
type EconomicResult struct {
	CostPerSF            float64 `json:"cost_per_sf"`
	ConstructionPerAcre  float64 `json:"construction_per_acre"`
	LandCostPerAcre      float64 `json:"land_cost_per_acre"`
	TotalDevCostPerAcre  float64 `json:"total_dev_cost_per_acre"`
	WeightedRent         float64 `json:"weighted_rent"`
	DensityPerAcre       float64 `json:"density_per_acre"`
	AnnualRevenuePerAcre float64 `json:"annual_revenue_per_acre"`
	Ratio                float64 `json:"ratio"`
	BoostAdjustedRatio   float64 `json:"boost_adjusted_ratio"`
	LocationClass        string  `json:"location_class"`

	Multipliers     map[string]float64 `json:"multipliers"`
	DefaultsApplied []string           `json:"defaults_applied,omitempty"`

	Indeterminate bool   `json:"indeterminate,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

// ParcelResult is the per-parcel bundle handed to downstream report and
// presentation collaborators. Every field needed to render a report is here
// so consumers never re-derive engine logic.
type ParcelResult struct {
	Parcel       Parcel             `json:"parcel"`
	Status       ResultStatus       `json:"status"`
	StatusReason string             `json:"status_reason,omitempty"`
	Eligibility  *Classification    `json:"eligibility,omitempty"`
	Competition  *CompetitionResult `json:"competition,omitempty"`
	Economics    *EconomicResult    `json:"economics,omitempty"`
	Tier         Tier               `json:"tier"`
	Warnings     []string           `json:"warnings,omitempty"`
	EvaluatedAt  time.Time          `json:"evaluated_at"`
}

// BatchSummary aggregates per-parcel results for dashboards.
type BatchSummary struct {
	Total         int            `json:"total"`
	OK            int            `json:"ok"`
	Indeterminate int            `json:"indeterminate"`
	Errored       int            `json:"errored"`
	ByTier        map[string]int `json:"by_tier"`
	ByVerdict     map[string]int `json:"by_verdict"`
	QCTOnly       int            `json:"qct_only"`
	DDAOnly       int            `json:"dda_only"`
	QCTAndDDA     int            `json:"qct_and_dda"`
	Ineligible    int            `json:"ineligible"`
	RatioP25      float64        `json:"ratio_p25"`
	RatioP50      float64        `json:"ratio_p50"`
	RatioP75      float64        `json:"ratio_p75"`
	RatioP90      float64        `json:"ratio_p90"`
}
