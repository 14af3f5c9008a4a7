// Package ranking assigns the qualitative investment tier from the conflict
// verdict, the viability ratio, and (competitive track) the regulatory
// point score.
package ranking

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/sitescore/internal/model"
)

// Thresholds are the ascending ratio cutoffs for the non-fatal tiers.
// They are calibrated from the candidate dataset, not fixed by regulation,
// so they ship as configuration.
type Thresholds struct {
	Fair        float64 `yaml:"fair" mapstructure:"fair"`
	Good        float64 `yaml:"good" mapstructure:"good"`
	High        float64 `yaml:"high" mapstructure:"high"`
	Exceptional float64 `yaml:"exceptional" mapstructure:"exceptional"`
}

// ScoreFloors are the minimum competitive-track point scores required for
// the top tiers. Ratio alone can never promote past them.
type ScoreFloors struct {
	HighPotential float64 `yaml:"high_potential" mapstructure:"high_potential"`
	Exceptional   float64 `yaml:"exceptional" mapstructure:"exceptional"`
}

// DefaultThresholds returns the shipped calibration.
func DefaultThresholds() Thresholds {
	return Thresholds{Fair: 0.045, Good: 0.065, High: 0.085, Exceptional: 0.105}
}

// DefaultScoreFloors returns the shipped competitive score floors.
func DefaultScoreFloors() ScoreFloors {
	return ScoreFloors{HighPotential: 110, Exceptional: 125}
}

// Validate checks thresholds are positive and strictly ascending.
func (t Thresholds) Validate() error {
	var errs []string
	if t.Fair <= 0 {
		errs = append(errs, "fair must be > 0")
	}
	if !(t.Fair < t.Good && t.Good < t.High && t.High < t.Exceptional) {
		errs = append(errs, "thresholds must strictly ascend fair < good < high < exceptional")
	}
	if len(errs) > 0 {
		return eris.Errorf("ranking: thresholds invalid: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Validate checks score floors are ordered.
func (f ScoreFloors) Validate() error {
	if f.HighPotential < 0 || f.Exceptional < f.HighPotential {
		return eris.New("ranking: score floors must satisfy 0 <= high_potential <= exceptional")
	}
	return nil
}

// Classifier ranks parcels. It is a pure decision table; nothing persists
// across calls.
type Classifier struct {
	thresholds Thresholds
	floors     ScoreFloors
}

// NewClassifier creates a Classifier, validating its configuration.
func NewClassifier(thresholds Thresholds, floors ScoreFloors) (*Classifier, error) {
	if err := thresholds.Validate(); err != nil {
		return nil, err
	}
	if err := floors.Validate(); err != nil {
		return nil, err
	}
	return &Classifier{thresholds: thresholds, floors: floors}, nil
}

// Rank assigns a tier. A fatal verdict dominates everything. The
// non-competitive track ranks purely by ratio; SoftRisk never changes the
// tier (it travels as result metadata). The competitive track caps the
// ratio tier by the score floors: both the ratio and the score must clear
// for HighPotential and Exceptional.
func (c *Classifier) Rank(track model.FinancingTrack, verdict model.Verdict, ratio, auxPoints float64) (model.Tier, error) {
	if verdict == model.VerdictFatal {
		return model.TierFatal, nil
	}

	base := c.ratioTier(ratio)

	switch track {
	case model.TrackNonCompetitive:
		return base, nil
	case model.TrackCompetitive:
		scoreCap := model.TierGood
		if auxPoints >= c.floors.Exceptional {
			scoreCap = model.TierExceptional
		} else if auxPoints >= c.floors.HighPotential {
			scoreCap = model.TierHighPotential
		}
		if base > scoreCap {
			return scoreCap, nil
		}
		return base, nil
	default:
		return model.TierFatal, eris.Errorf("ranking: unknown financing track %q", track)
	}
}

func (c *Classifier) ratioTier(ratio float64) model.Tier {
	switch {
	case ratio >= c.thresholds.Exceptional:
		return model.TierExceptional
	case ratio >= c.thresholds.High:
		return model.TierHighPotential
	case ratio >= c.thresholds.Good:
		return model.TierGood
	case ratio >= c.thresholds.Fair:
		return model.TierFair
	default:
		return model.TierPoor
	}
}

// Calibrate derives thresholds from the empirical ratio distribution of a
// candidate dataset (p25/p50/p75/p90). Importing thresholds calibrated on a
// different dataset has historically collapsed whole sources into the low
// tiers, so recalibration is a first-class operation.
func Calibrate(ratios []float64) (Thresholds, error) {
	finite := make([]float64, 0, len(ratios))
	for _, r := range ratios {
		if !math.IsNaN(r) && !math.IsInf(r, 0) && r > 0 {
			finite = append(finite, r)
		}
	}
	if len(finite) < 5 {
		return Thresholds{}, eris.Errorf("ranking: need at least 5 finite ratios to calibrate, got %d", len(finite))
	}
	sort.Float64s(finite)

	t := Thresholds{
		Fair:        Quantile(finite, 0.25),
		Good:        Quantile(finite, 0.50),
		High:        Quantile(finite, 0.75),
		Exceptional: Quantile(finite, 0.90),
	}
	if err := t.Validate(); err != nil {
		return Thresholds{}, eris.Wrap(err, "ranking: calibration produced degenerate thresholds")
	}
	return t, nil
}

// Quantile linearly interpolates the q-th quantile of sorted values. Batch
// summaries use the same interpolation so calibration cutoffs and reported
// ratio quantiles stay comparable.
func Quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	frac := pos - float64(lo)
	if lo+1 >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}

// Coverage counts results per tier and returns the tiers with no
// representation: the calibration sanity check that every tier sees
// non-trivial membership across the input sources.
func Coverage(tiers []model.Tier) (map[model.Tier]int, []model.Tier) {
	counts := make(map[model.Tier]int, len(model.Tiers))
	for _, t := range tiers {
		counts[t]++
	}
	var missing []model.Tier
	for _, t := range model.Tiers {
		if t == model.TierFatal {
			continue // fatal is conflict-driven, not distribution-driven
		}
		if counts[t] == 0 {
			missing = append(missing, t)
		}
	}
	return counts, missing
}

// String renders thresholds for CLI output.
func (t Thresholds) String() string {
	return fmt.Sprintf("fair=%.4f good=%.4f high=%.4f exceptional=%.4f",
		t.Fair, t.Good, t.High, t.Exceptional)
}
