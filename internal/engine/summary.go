package engine

import (
	"math"
	"sort"

	"github.com/sells-group/sitescore/internal/model"
	"github.com/sells-group/sitescore/internal/ranking"
)

// Summarize aggregates per-parcel results into the batch-level counts and
// ratio quantiles dashboards consume. Tier and eligibility counts cover OK
// results only; indeterminate and errored parcels are counted separately.
func Summarize(results []model.ParcelResult) model.BatchSummary {
	s := model.BatchSummary{
		Total:     len(results),
		ByTier:    make(map[string]int),
		ByVerdict: make(map[string]int),
	}

	var ratios []float64
	for i := range results {
		r := &results[i]
		switch r.Status {
		case model.StatusIndeterminate:
			s.Indeterminate++
			continue
		case model.StatusError:
			s.Errored++
			continue
		}
		s.OK++

		s.ByTier[r.Tier.String()]++
		if r.Competition != nil {
			s.ByVerdict[r.Competition.Verdict.String()]++
		}
		if r.Eligibility != nil {
			switch {
			case r.Eligibility.QCT && r.Eligibility.DDA:
				s.QCTAndDDA++
			case r.Eligibility.QCT:
				s.QCTOnly++
			case r.Eligibility.DDA:
				s.DDAOnly++
			default:
				s.Ineligible++
			}
		}
		if r.Economics != nil && !r.Economics.Indeterminate &&
			!math.IsNaN(r.Economics.Ratio) && !math.IsInf(r.Economics.Ratio, 0) {
			ratios = append(ratios, r.Economics.Ratio)
		}
	}

	if len(ratios) > 0 {
		sort.Float64s(ratios)
		s.RatioP25 = ranking.Quantile(ratios, 0.25)
		s.RatioP50 = ranking.Quantile(ratios, 0.50)
		s.RatioP75 = ranking.Quantile(ratios, 0.75)
		s.RatioP90 = ranking.Quantile(ratios, 0.90)
	}

	return s
}
