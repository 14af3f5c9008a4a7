package economics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/sitescore/internal/model"
	"github.com/sells-group/sitescore/internal/rent"
)

func testResolver() *rent.Resolver {
	return rent.NewResolver(&rent.IncomeLimitTable{
		Vintage: 2025,
		Limits: map[string]map[int][]float64{
			"48453": {60: {43560, 49800, 55980, 62220, 67200, 72180}},
		},
	})
}

func testModel(t *testing.T, table MultiplierTable) *Model {
	t.Helper()
	m, err := NewModel(table, testResolver(), 60)
	require.NoError(t, err)
	return m
}

func testParcel() model.Parcel {
	return model.Parcel{
		ID:         "p1",
		Lat:        30.3,
		Lon:        -97.7,
		CountyFIPS: "48453",
		City:       "Austin",
		RegionID:   "7",
		Acreage:    5,
		Units:      60,
		UnitMix: map[model.UnitSize]float64{
			model.OneBedroom: 0.4,
			model.TwoBedroom: 0.6,
		},
		HazardZone:   "X",
		Construction: model.NewConstruction,
		Track:        model.TrackNonCompetitive,
		AnalysisYear: 2025,
	}
}

func metroClass() model.Classification {
	return model.Classification{Metro: true, DataVintage: 2025}
}

func TestEvaluateCostModel(t *testing.T) {
	t.Parallel()
	m := testModel(t, DefaultMultipliers())

	res, err := m.Evaluate(testParcel(), metroClass())
	require.NoError(t, err)
	require.False(t, res.Indeterminate)

	// 185 * austin 1.12 * region7 1.10 * zone X 1.00
	assert.InDelta(t, 185.0*1.12*1.10, res.CostPerSF, 1e-9)
	assert.Equal(t, 1.12, res.Multipliers["location"])
	assert.Equal(t, 1.10, res.Multipliers["region"])
	assert.Equal(t, 1.00, res.Multipliers["hazard"])
	assert.Empty(t, res.DefaultsApplied)
	assert.Positive(t, res.Ratio)
	assert.Greater(t, res.TotalDevCostPerAcre, res.ConstructionPerAcre)
}

func TestRehabFactor(t *testing.T) {
	t.Parallel()
	m := testModel(t, DefaultMultipliers())

	p := testParcel()
	newRes, err := m.Evaluate(p, metroClass())
	require.NoError(t, err)

	p.Construction = model.AcquisitionRehab
	rehabRes, err := m.Evaluate(p, metroClass())
	require.NoError(t, err)

	assert.InDelta(t, newRes.CostPerSF*0.72, rehabRes.CostPerSF, 1e-9)
	assert.Equal(t, 0.72, rehabRes.Multipliers["rehab"])
	assert.Greater(t, rehabRes.Ratio, newRes.Ratio, "cheaper construction must raise the ratio")
}

func TestDefaultsAreRecorded(t *testing.T) {
	t.Parallel()
	m := testModel(t, DefaultMultipliers())

	p := testParcel()
	p.City = "Marfa"
	p.RegionID = "99"
	p.HazardZone = "AO"

	res, err := m.Evaluate(p, metroClass())
	require.NoError(t, err)
	assert.Len(t, res.DefaultsApplied, 3)
	assert.Equal(t, 1.00, res.Multipliers["location"])
	assert.Equal(t, 1.00, res.Multipliers["region"])
	assert.Equal(t, 1.05, res.Multipliers["hazard"])
}

func TestIndeterminateInputs(t *testing.T) {
	t.Parallel()
	m := testModel(t, DefaultMultipliers())

	zeroAcre := testParcel()
	zeroAcre.Acreage = 0
	res, err := m.Evaluate(zeroAcre, metroClass())
	require.NoError(t, err)
	assert.True(t, res.Indeterminate)
	assert.Contains(t, res.Reason, "acreage")

	noMix := testParcel()
	noMix.UnitMix = nil
	res, err = m.Evaluate(noMix, metroClass())
	require.NoError(t, err)
	assert.True(t, res.Indeterminate)

	unknownGeo := testParcel()
	unknownGeo.CountyFIPS = "48999"
	res, err = m.Evaluate(unknownGeo, metroClass())
	require.NoError(t, err)
	assert.True(t, res.Indeterminate)
	assert.Contains(t, res.Reason, "48999")

	zeroShares := testParcel()
	zeroShares.UnitMix = map[model.UnitSize]float64{model.OneBedroom: 0}
	res, err = m.Evaluate(zeroShares, metroClass())
	require.NoError(t, err)
	assert.True(t, res.Indeterminate)
}

// TestRatioMonotonicity: raising any cost multiplier strictly lowers the
// ratio; raising rents strictly raises it.
func TestRatioMonotonicity(t *testing.T) {
	t.Parallel()

	base := testModel(t, DefaultMultipliers())
	baseRes, err := base.Evaluate(testParcel(), metroClass())
	require.NoError(t, err)

	costlier := DefaultMultipliers()
	costlier.RegionMultipliers["7"] = 1.30
	costRes, err := testModel(t, costlier).Evaluate(testParcel(), metroClass())
	require.NoError(t, err)
	assert.Less(t, costRes.Ratio, baseRes.Ratio)

	richer := rent.NewResolver(&rent.IncomeLimitTable{
		Vintage: 2025,
		Limits: map[string]map[int][]float64{
			"48453": {60: {53560, 59800, 65980, 72220, 77200, 82180}},
		},
	})
	richModel, err := NewModel(DefaultMultipliers(), richer, 60)
	require.NoError(t, err)
	richRes, err := richModel.Evaluate(testParcel(), metroClass())
	require.NoError(t, err)
	assert.Greater(t, richRes.Ratio, baseRes.Ratio)
}

// TestBoostAdjustedRatio: the audit ratio equals the headline ratio at zero
// boost and exceeds it when the boost is present; the headline never moves.
func TestBoostAdjustedRatio(t *testing.T) {
	t.Parallel()
	m := testModel(t, DefaultMultipliers())

	plain, err := m.Evaluate(testParcel(), metroClass())
	require.NoError(t, err)
	assert.InDelta(t, plain.Ratio, plain.BoostAdjustedRatio, 1e-9)

	boosted := metroClass()
	boosted.QCT = true
	boosted.BoostPct = 30
	res, err := m.Evaluate(testParcel(), boosted)
	require.NoError(t, err)
	assert.InDelta(t, plain.Ratio, res.Ratio, 1e-9)
	assert.Greater(t, res.BoostAdjustedRatio, res.Ratio)
}

func TestLocationClassing(t *testing.T) {
	t.Parallel()
	m := testModel(t, DefaultMultipliers())

	urban, err := m.Evaluate(testParcel(), metroClass()) // austin 1.12 >= 1.08
	require.NoError(t, err)
	assert.Equal(t, string(ClassUrban), urban.LocationClass)

	p := testParcel()
	p.City = "San Antonio" // 1.02 < 1.08
	suburban, err := m.Evaluate(p, metroClass())
	require.NoError(t, err)
	assert.Equal(t, string(ClassSuburban), suburban.LocationClass)

	rural, err := m.Evaluate(testParcel(), model.Classification{Metro: false})
	require.NoError(t, err)
	assert.Equal(t, string(ClassRural), rural.LocationClass)
	assert.Less(t, rural.DensityPerAcre, suburban.DensityPerAcre)
	assert.Less(t, suburban.DensityPerAcre, urban.DensityPerAcre)
}

func TestValidateTable(t *testing.T) {
	t.Parallel()
	assert.NoError(t, DefaultMultipliers().Validate())

	bad := DefaultMultipliers()
	bad.Vintage = 0
	assert.Error(t, bad.Validate())

	bad = DefaultMultipliers()
	bad.BaseCostPerSF = -1
	assert.Error(t, bad.Validate())

	bad = DefaultMultipliers()
	bad.DensityPerAcre[ClassUrban] = 1 // breaks rural < suburban < urban
	assert.Error(t, bad.Validate())
}
