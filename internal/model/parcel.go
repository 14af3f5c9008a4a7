// Package model defines the core domain types shared across the site
// feasibility engine: parcels, financing tracks, unit sizes, verdicts,
// tiers, and per-parcel result bundles.
package model

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
)

// FinancingTrack identifies the allocation process a project applies under.
type FinancingTrack string

// Financing tracks. The set is closed; anything else is rejected at parse time.
const (
	TrackCompetitive    FinancingTrack = "competitive"
	TrackNonCompetitive FinancingTrack = "non_competitive"
)

// ParseTrack converts a string to a FinancingTrack.
func ParseTrack(s string) (FinancingTrack, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "competitive", "9%":
		return TrackCompetitive, nil
	case "non_competitive", "noncompetitive", "non-competitive", "4%":
		return TrackNonCompetitive, nil
	default:
		return "", eris.Errorf("model: unknown financing track %q", s)
	}
}

// ConstructionType distinguishes ground-up builds from acquisition-rehab deals.
type ConstructionType string

// Construction types.
const (
	NewConstruction  ConstructionType = "new_construction"
	AcquisitionRehab ConstructionType = "acquisition_rehab"
)

// ParseConstructionType converts a string to a ConstructionType.
func ParseConstructionType(s string) (ConstructionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "new_construction", "new", "nc":
		return NewConstruction, nil
	case "acquisition_rehab", "acq_rehab", "rehab", "ar":
		return AcquisitionRehab, nil
	default:
		return "", eris.Errorf("model: unknown construction type %q", s)
	}
}

// UnitSize is a bedroom-count bucket.
type UnitSize string

// Unit sizes, smallest to largest.
const (
	Studio       UnitSize = "studio"
	OneBedroom   UnitSize = "1br"
	TwoBedroom   UnitSize = "2br"
	ThreeBedroom UnitSize = "3br"
	FourBedroom  UnitSize = "4br"
)

// UnitSizes lists all unit sizes in ascending order.
var UnitSizes = []UnitSize{Studio, OneBedroom, TwoBedroom, ThreeBedroom, FourBedroom}

// PersonCount returns the household-size convention for the unit size.
// Fractional values are interpolated between adjacent integer income limits
// by the rent resolver. The mapping is fixed by program rules:
// studio 1.0, 1BR 1.5, 2BR 3.0, 3BR 4.5, 4BR 6.0.
func (u UnitSize) PersonCount() (float64, bool) {
	switch u {
	case Studio:
		return 1.0, true
	case OneBedroom:
		return 1.5, true
	case TwoBedroom:
		return 3.0, true
	case ThreeBedroom:
		return 4.5, true
	case FourBedroom:
		return 6.0, true
	default:
		return 0, false
	}
}

// ParseUnitSize converts a string to a UnitSize.
func ParseUnitSize(s string) (UnitSize, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "studio", "0br", "efficiency":
		return Studio, nil
	case "1br", "1", "one":
		return OneBedroom, nil
	case "2br", "2", "two":
		return TwoBedroom, nil
	case "3br", "3", "three":
		return ThreeBedroom, nil
	case "4br", "4", "four":
		return FourBedroom, nil
	default:
		return "", eris.Errorf("model: unknown unit size %q", s)
	}
}

// Parcel is a candidate site under evaluation. It is constructed once per
// analysis request and never mutated during engine execution.
type Parcel struct {
	ID         string  `json:"id"`
	Address    string  `json:"address,omitempty"` // informational only; geocoding happens upstream
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	CountyFIPS string  `json:"county_fips"`
	City       string  `json:"city,omitempty"`
	RegionID   string  `json:"region_id,omitempty"`
	Acreage    float64 `json:"acreage"`

	Track        FinancingTrack       `json:"track"`
	Units        int                  `json:"units"`
	UnitMix      map[UnitSize]float64 `json:"unit_mix"` // shares, expected to sum to ~1
	HazardZone   string               `json:"hazard_zone,omitempty"`
	Construction ConstructionType     `json:"construction"`
	AnalysisYear int                  `json:"analysis_year"`

	// AuxPoints is the regulatory scoring total for competitive-track deals,
	// supplied by the caller (scored outside this engine).
	AuxPoints float64 `json:"aux_points,omitempty"`
}

// ValidCoordinates reports whether the parcel's lat/lon are inside the WGS84
// envelope and not the (0,0) null-island sentinel a failed geocode produces.
func (p Parcel) ValidCoordinates() bool {
	if p.Lat == 0 && p.Lon == 0 {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// UnmarshalJSON validates enum fields on the way in.
func (u *UnitSize) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseUnitSize(s)
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}

// UnmarshalJSON validates the financing track on the way in.
func (t *FinancingTrack) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseTrack(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
