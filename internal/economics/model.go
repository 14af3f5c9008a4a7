package economics

import (
	"fmt"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/sitescore/internal/model"
	"github.com/sells-group/sitescore/internal/rent"
)

// Model computes the cost and revenue sides of the viability ratio for one
// multiplier table and rent resolver. Stateless per call.
type Model struct {
	table   MultiplierTable
	rents   *rent.Resolver
	tierPct int
}

// NewModel creates a Model. The table is validated once here.
func NewModel(table MultiplierTable, rents *rent.Resolver, tierPct int) (*Model, error) {
	if err := table.Validate(); err != nil {
		return nil, err
	}
	if rents == nil {
		return nil, eris.New("economics: rent resolver is required")
	}
	if tierPct <= 0 {
		return nil, eris.New("economics: income tier is required")
	}
	return &Model{table: table, rents: rents, tierPct: tierPct}, nil
}

// Evaluate runs the cost and revenue models for a parcel. Insufficient
// inputs (zero acreage, empty unit mix, missing rent geography) produce an
// explicit Indeterminate result, never a default ratio of zero or infinity.
func (m *Model) Evaluate(p model.Parcel, cls model.Classification) (model.EconomicResult, error) {
	if p.Acreage <= 0 {
		return indeterminate("acreage missing or non-positive"), nil
	}
	if len(p.UnitMix) == 0 {
		return indeterminate("unit mix missing"), nil
	}

	res := model.EconomicResult{Multipliers: map[string]float64{}}

	// Cost side: multiplicative over the audit-tracked adjustments.
	loc, locDefault := m.table.locationMultiplier(p.City)
	region, regionDefault := m.table.regionMultiplier(p.RegionID)
	hazard, hazardDefault := m.table.hazardMultiplier(p.HazardZone)

	res.Multipliers["location"] = loc
	res.Multipliers["region"] = region
	res.Multipliers["hazard"] = hazard
	if locDefault {
		res.DefaultsApplied = append(res.DefaultsApplied, fmt.Sprintf("location multiplier defaulted for city %q", p.City))
	}
	if regionDefault {
		res.DefaultsApplied = append(res.DefaultsApplied, fmt.Sprintf("region multiplier defaulted for region %q", p.RegionID))
	}
	if hazardDefault {
		res.DefaultsApplied = append(res.DefaultsApplied, fmt.Sprintf("hazard multiplier defaulted for zone %q", p.HazardZone))
	}

	res.CostPerSF = m.table.BaseCostPerSF * loc * region * hazard
	if p.Construction == model.AcquisitionRehab {
		res.CostPerSF *= m.table.RehabFactor
		res.Multipliers["rehab"] = m.table.RehabFactor
	}

	// Revenue side: mix-weighted rent ceiling and weighted unit size.
	weightedRent, weightedSF, err := m.weightedMix(p)
	if err != nil {
		if eris.Is(err, rent.ErrGeographyNotFound) {
			zap.L().Warn("economics: rent geography missing, parcel indeterminate",
				zap.String("parcel", p.ID),
				zap.String("county_fips", p.CountyFIPS),
			)
			return indeterminate("rent geography not found: " + p.CountyFIPS), nil
		}
		return model.EconomicResult{}, err
	}
	if weightedRent <= 0 {
		return indeterminate("unit mix shares are zero or negative"), nil
	}

	class := m.table.classify(cls.Metro, loc)
	density := m.table.DensityPerAcre[class]
	res.LocationClass = string(class)
	res.DensityPerAcre = density
	res.WeightedRent = weightedRent

	builtSFPerAcre := density * weightedSF
	res.ConstructionPerAcre = res.CostPerSF * builtSFPerAcre
	res.LandCostPerAcre = m.table.LandPerAcre[class]
	res.TotalDevCostPerAcre = res.ConstructionPerAcre + res.LandCostPerAcre

	res.AnnualRevenuePerAcre = weightedRent * 12 * density

	// The headline ratio is against unsubsidized cost so it stays comparable
	// across eligible and ineligible parcels.
	res.Ratio = res.AnnualRevenuePerAcre / res.TotalDevCostPerAcre

	// Audit-only view of the eligibility boost: eligible basis returns more
	// credit equity, shrinking the effective cost denominator.
	effectiveCost := res.TotalDevCostPerAcre * (1 - m.table.CreditEquityFactor*float64(cls.BoostPct)/100)
	res.BoostAdjustedRatio = res.AnnualRevenuePerAcre / effectiveCost

	return res, nil
}

// weightedMix folds the unit-mix shares into a weighted rent ceiling and a
// weighted unit square footage. Iteration is ordered for deterministic
// error reporting.
func (m *Model) weightedMix(p model.Parcel) (weightedRent, weightedSF float64, err error) {
	sizes := make([]model.UnitSize, 0, len(p.UnitMix))
	for size := range p.UnitMix {
		sizes = append(sizes, size)
	}
	sort.Slice(sizes, func(i, j int) bool { return sizes[i] < sizes[j] })

	for _, size := range sizes {
		share := p.UnitMix[size]
		if share < 0 {
			return 0, 0, eris.Errorf("economics: negative unit mix share for %s", size)
		}
		if share == 0 {
			continue
		}
		ceiling, rerr := m.rents.Resolve(p.CountyFIPS, m.tierPct, size)
		if rerr != nil {
			return 0, 0, eris.Wrapf(rerr, "economics: resolve rent for %s", size)
		}
		weightedRent += share * ceiling.MonthlyRent
		weightedSF += share * m.table.UnitSF[size]
	}
	return weightedRent, weightedSF, nil
}

func indeterminate(reason string) model.EconomicResult {
	return model.EconomicResult{Indeterminate: true, Reason: reason}
}
