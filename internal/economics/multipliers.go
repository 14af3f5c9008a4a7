// Package economics models construction cost and rental revenue per acre
// and derives the revenue/cost ratio used for cross-parcel comparison.
package economics

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/sitescore/internal/model"
)

// LocationClass buckets parcels by development density context.
type LocationClass string

// Location classes, least to most dense.
const (
	ClassRural    LocationClass = "rural"
	ClassSuburban LocationClass = "suburban"
	ClassUrban    LocationClass = "urban"
)

// MultiplierTable is the versioned cost-model configuration. These numbers
// are recalibrated regularly, so they load from yaml alongside the other
// reference tables rather than living in code.
type MultiplierTable struct {
	Vintage       int     `yaml:"vintage" mapstructure:"vintage"`
	BaseCostPerSF float64 `yaml:"base_cost_per_sf" mapstructure:"base_cost_per_sf"`

	LocationMultipliers map[string]float64 `yaml:"location_multipliers" mapstructure:"location_multipliers"`
	DefaultLocation     float64            `yaml:"default_location_multiplier" mapstructure:"default_location_multiplier"`

	RegionMultipliers map[string]float64 `yaml:"region_multipliers" mapstructure:"region_multipliers"`
	DefaultRegion     float64            `yaml:"default_region_multiplier" mapstructure:"default_region_multiplier"`

	HazardMultipliers map[string]float64 `yaml:"hazard_multipliers" mapstructure:"hazard_multipliers"`
	DefaultHazard     float64            `yaml:"default_hazard_multiplier" mapstructure:"default_hazard_multiplier"`

	// RehabFactor discounts construction cost for acquisition-rehab deals.
	RehabFactor float64 `yaml:"rehab_factor" mapstructure:"rehab_factor"`

	UnitSF         map[model.UnitSize]float64   `yaml:"unit_sf" mapstructure:"unit_sf"`
	DensityPerAcre map[LocationClass]float64    `yaml:"density_per_acre" mapstructure:"density_per_acre"`
	LandPerAcre    map[LocationClass]float64    `yaml:"land_per_acre" mapstructure:"land_per_acre"`

	// UrbanLocationThreshold: a city multiplier at or above this marks the
	// parcel urban when it is in a metro county.
	UrbanLocationThreshold float64 `yaml:"urban_location_threshold" mapstructure:"urban_location_threshold"`

	// CreditEquityFactor is the share of development cost returned as credit
	// equity per 100% of qualified basis; used only for the boost-adjusted
	// audit ratio.
	CreditEquityFactor float64 `yaml:"credit_equity_factor" mapstructure:"credit_equity_factor"`
}

// DefaultMultipliers returns the shipped calibration.
func DefaultMultipliers() MultiplierTable {
	return MultiplierTable{
		Vintage:       2025,
		BaseCostPerSF: 185.0,

		LocationMultipliers: map[string]float64{
			"austin":      1.12,
			"dallas":      1.10,
			"houston":     1.08,
			"san antonio": 1.02,
			"el paso":     0.97,
			"lubbock":     0.95,
		},
		DefaultLocation: 1.00,

		RegionMultipliers: map[string]float64{
			"1": 1.05, "2": 1.00, "3": 1.08, "4": 0.96,
			"5": 0.94, "6": 1.02, "7": 1.10, "8": 0.92,
		},
		DefaultRegion: 1.00,

		HazardMultipliers: map[string]float64{
			"X":   1.00, // outside flood hazard
			"AE":  1.14,
			"A":   1.12,
			"VE":  1.28,
			"V":   1.25,
		},
		DefaultHazard: 1.05,

		RehabFactor: 0.72,

		UnitSF: map[model.UnitSize]float64{
			model.Studio:       520,
			model.OneBedroom:   690,
			model.TwoBedroom:   940,
			model.ThreeBedroom: 1170,
			model.FourBedroom:  1360,
		},

		DensityPerAcre: map[LocationClass]float64{
			ClassRural:    8,
			ClassSuburban: 18,
			ClassUrban:    42,
		},
		LandPerAcre: map[LocationClass]float64{
			ClassRural:    65000,
			ClassSuburban: 240000,
			ClassUrban:    1150000,
		},

		UrbanLocationThreshold: 1.08,
		CreditEquityFactor:     0.0585,
	}
}

// Validate checks the table for internal consistency.
func (t MultiplierTable) Validate() error {
	var errs []string

	if t.Vintage <= 0 {
		errs = append(errs, "vintage is required")
	}
	if t.BaseCostPerSF <= 0 {
		errs = append(errs, "base_cost_per_sf must be > 0")
	}
	for name, v := range map[string]float64{
		"default_location_multiplier": t.DefaultLocation,
		"default_region_multiplier":   t.DefaultRegion,
		"default_hazard_multiplier":   t.DefaultHazard,
	} {
		if v <= 0 {
			errs = append(errs, fmt.Sprintf("%s must be > 0", name))
		}
	}
	if t.RehabFactor <= 0 || t.RehabFactor > 1 {
		errs = append(errs, "rehab_factor must be in (0, 1]")
	}
	for _, size := range model.UnitSizes {
		if t.UnitSF[size] <= 0 {
			errs = append(errs, fmt.Sprintf("unit_sf missing %s", size))
		}
	}
	for _, class := range []LocationClass{ClassRural, ClassSuburban, ClassUrban} {
		if t.DensityPerAcre[class] <= 0 {
			errs = append(errs, fmt.Sprintf("density_per_acre missing %s", class))
		}
		if t.LandPerAcre[class] <= 0 {
			errs = append(errs, fmt.Sprintf("land_per_acre missing %s", class))
		}
	}
	// Density tiers must actually be tiered.
	if t.DensityPerAcre[ClassRural] >= t.DensityPerAcre[ClassSuburban] ||
		t.DensityPerAcre[ClassSuburban] >= t.DensityPerAcre[ClassUrban] {
		errs = append(errs, "density_per_acre must increase rural < suburban < urban")
	}
	if t.CreditEquityFactor < 0 || t.CreditEquityFactor >= 1 {
		errs = append(errs, "credit_equity_factor must be in [0, 1)")
	}

	if len(errs) > 0 {
		return eris.Errorf("economics: multiplier table invalid: %s", strings.Join(errs, "; "))
	}
	return nil
}

// locationMultiplier returns the city multiplier and whether the documented
// default was used instead of a table hit.
func (t MultiplierTable) locationMultiplier(city string) (float64, bool) {
	if m, ok := t.LocationMultipliers[strings.ToLower(strings.TrimSpace(city))]; ok {
		return m, false
	}
	return t.DefaultLocation, true
}

func (t MultiplierTable) regionMultiplier(regionID string) (float64, bool) {
	if m, ok := t.RegionMultipliers[regionID]; ok {
		return m, false
	}
	return t.DefaultRegion, true
}

func (t MultiplierTable) hazardMultiplier(zone string) (float64, bool) {
	if m, ok := t.HazardMultipliers[strings.ToUpper(strings.TrimSpace(zone))]; ok {
		return m, false
	}
	return t.DefaultHazard, true
}

// classify maps a parcel to a location class: non-metro counties are rural;
// metro parcels are urban when the city cost multiplier clears the urban
// threshold, suburban otherwise.
func (t MultiplierTable) classify(metro bool, locMultiplier float64) LocationClass {
	if !metro {
		return ClassRural
	}
	if locMultiplier >= t.UrbanLocationThreshold {
		return ClassUrban
	}
	return ClassSuburban
}
