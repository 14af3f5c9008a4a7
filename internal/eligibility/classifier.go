// Package eligibility classifies parcels for federal geographic subsidy:
// low-income tract (QCT) and high-cost area (DDA) designations, with the
// basis boost percentage they carry.
package eligibility

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/sitescore/internal/boundary"
	"github.com/sells-group/sitescore/internal/model"
)

// ErrUnsupportedGeography marks a county outside the program's covered
// designation universe.
var ErrUnsupportedGeography = eris.New("eligibility: county outside program scope")

// BoostPct is the basis boost for parcels matching either designation.
const BoostPct = 30

// Classifier runs the geospatial eligibility tests against a loaded
// boundary collection. Stateless per call; safe for concurrent use.
type Classifier struct {
	bounds *boundary.Collection
}

// NewClassifier creates a Classifier over the given boundary collection.
func NewClassifier(bounds *boundary.Collection) *Classifier {
	return &Classifier{bounds: bounds}
}

// Classify determines QCT and DDA status for a parcel. Metro/non-metro is
// resolved once from the county and selects which designation sets apply;
// QCT and DDA are then tested independently. Eligibility is the OR of the
// two matches, never an exclusive choice.
func (c *Classifier) Classify(p model.Parcel) (model.Classification, error) {
	if !p.ValidCoordinates() {
		return model.Classification{}, eris.Errorf(
			"eligibility: parcel %s has invalid coordinates (%.6f, %.6f)", p.ID, p.Lat, p.Lon)
	}
	if c.bounds.CountyUniverse != nil && !c.bounds.CountyUniverse.Contains(p.CountyFIPS) {
		return model.Classification{}, eris.Wrapf(ErrUnsupportedGeography, "county %q", p.CountyFIPS)
	}

	cls := model.Classification{
		Metro:       c.bounds.MetroCounties.Contains(p.CountyFIPS),
		DataVintage: c.bounds.OldestVintage(),
	}

	if cls.Metro {
		cls.QCTKey, cls.QCT = c.bounds.MetroQCT.Contains(p.Lat, p.Lon)
		cls.DDAKey, cls.DDA = c.bounds.MetroDDA.Contains(p.Lat, p.Lon)
	} else {
		cls.QCTKey, cls.QCT = c.bounds.NonMetroQCT.Contains(p.Lat, p.Lon)
		// Non-metro high-cost areas are designated at county granularity.
		if c.bounds.NonMetroDDA.Contains(p.CountyFIPS) {
			cls.DDA = true
			cls.DDAKey = p.CountyFIPS
		}
	}

	if cls.QCT || cls.DDA {
		cls.BoostPct = BoostPct
	}

	// Stale designation data is a warning for downstream auditing, never a
	// silent wrong answer.
	if cls.DataVintage > 0 && cls.DataVintage < p.AnalysisYear {
		cls.Stale = true
	}

	return cls, nil
}
