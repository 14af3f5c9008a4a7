// Package engine runs the full per-parcel evaluation pipeline and the
// embarrassingly-parallel batch scheduler over it.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/sitescore/internal/boundary"
	"github.com/sells-group/sitescore/internal/competition"
	"github.com/sells-group/sitescore/internal/economics"
	"github.com/sells-group/sitescore/internal/eligibility"
	"github.com/sells-group/sitescore/internal/model"
	"github.com/sells-group/sitescore/internal/ranking"
	"github.com/sells-group/sitescore/internal/rent"
)

// Refs is the read-only reference data an Engine evaluates against. It must
// be fully loaded before any parcel evaluation begins; swapping in a new
// program year means building a new Engine at a batch boundary.
type Refs struct {
	Bounds      *boundary.Collection
	Rents       *rent.Resolver
	History     *competition.History
	Multipliers economics.MultiplierTable
}

// Options tunes engine construction.
type Options struct {
	Rules      competition.Rules
	Thresholds ranking.Thresholds
	Floors     ranking.ScoreFloors
	TierPct    int // AMI tier the revenue model prices at
}

// DefaultOptions returns the shipped engine options.
func DefaultOptions() Options {
	return Options{
		Rules:      competition.DefaultRules(),
		Thresholds: ranking.DefaultThresholds(),
		Floors:     ranking.DefaultScoreFloors(),
		TierPct:    60,
	}
}

// Engine evaluates parcels. Stateless and side-effect-free per parcel; safe
// for concurrent use once constructed.
type Engine struct {
	eligibility *eligibility.Classifier
	competition *competition.Engine
	economics   *economics.Model
	ranking     *ranking.Classifier
	bounds      *boundary.Collection
}

// New builds an Engine from reference data and options. Any failure here
// aborts the batch: nothing evaluates against partially-wired refs.
func New(refs Refs, opts Options) (*Engine, error) {
	if refs.Bounds == nil {
		return nil, eris.New("engine: boundary collection is required")
	}
	if refs.Rents == nil {
		return nil, eris.New("engine: rent resolver is required")
	}
	if refs.History == nil {
		return nil, eris.New("engine: award history is required")
	}

	comp, err := competition.NewEngine(opts.Rules, refs.History)
	if err != nil {
		return nil, err
	}
	econ, err := economics.NewModel(refs.Multipliers, refs.Rents, opts.TierPct)
	if err != nil {
		return nil, err
	}
	rank, err := ranking.NewClassifier(opts.Thresholds, opts.Floors)
	if err != nil {
		return nil, err
	}

	return &Engine{
		eligibility: eligibility.NewClassifier(refs.Bounds),
		competition: comp,
		economics:   econ,
		ranking:     rank,
		bounds:      refs.Bounds,
	}, nil
}

// EvaluateParcel runs the full pipeline for one parcel. Failures are local:
// the returned result carries an error or indeterminate status instead of a
// plausible-looking default, and never aborts sibling evaluations.
func (e *Engine) EvaluateParcel(ctx context.Context, p model.Parcel) *model.ParcelResult {
	res := &model.ParcelResult{
		Parcel:      p,
		Status:      model.StatusOK,
		Tier:        model.TierFatal,
		EvaluatedAt: time.Now().UTC(),
	}

	if !p.ValidCoordinates() {
		return indeterminateResult(res, fmt.Sprintf("invalid coordinates (%.6f, %.6f)", p.Lat, p.Lon))
	}
	if p.AnalysisYear <= 0 {
		return indeterminateResult(res, "analysis year missing")
	}

	// Eligibility first: cheap, and its boost feeds the economics audit.
	cls, err := e.eligibility.Classify(p)
	if err != nil {
		return errorResult(res, eris.Wrap(err, "engine: classify eligibility"))
	}
	res.Eligibility = &cls
	if cls.Stale {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("designation data vintage %d older than analysis year %d", cls.DataVintage, p.AnalysisYear))
	}

	// Competition and economics are independent; run them concurrently.
	var (
		comp model.CompetitionResult
		econ model.EconomicResult
	)
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		var cerr error
		comp, cerr = e.competition.Check(p.Lat, p.Lon, p.Track, p.AnalysisYear, p.CountyFIPS,
			e.bounds.LargeCounties.Contains(p.CountyFIPS))
		return cerr
	})
	g.Go(func() error {
		var eerr error
		econ, eerr = e.economics.Evaluate(p, cls)
		return eerr
	})
	if err := g.Wait(); err != nil {
		return errorResult(res, eris.Wrap(err, "engine: evaluate parcel"))
	}

	res.Competition = &comp
	res.Economics = &econ
	if comp.Verdict == model.VerdictSoftRisk {
		res.Warnings = append(res.Warnings, "soft-risk competition conflict nearby")
	}
	res.Warnings = append(res.Warnings, econ.DefaultsApplied...)

	if econ.Indeterminate && comp.Verdict != model.VerdictFatal {
		// A fatal conflict still ranks fatal; otherwise there is no
		// meaningful ratio to rank against.
		res.Status = model.StatusIndeterminate
		res.StatusReason = econ.Reason
		return res
	}

	tier, err := e.ranking.Rank(p.Track, comp.Verdict, econ.Ratio, p.AuxPoints)
	if err != nil {
		return errorResult(res, eris.Wrap(err, "engine: rank"))
	}
	res.Tier = tier

	return res
}

func indeterminateResult(res *model.ParcelResult, reason string) *model.ParcelResult {
	res.Status = model.StatusIndeterminate
	res.StatusReason = reason
	return res
}

func errorResult(res *model.ParcelResult, err error) *model.ParcelResult {
	res.Status = model.StatusError
	res.StatusReason = err.Error()
	zap.L().Warn("parcel evaluation failed",
		zap.String("parcel", res.Parcel.ID),
		zap.Error(err),
	)
	return res
}

// BatchResult bundles a batch's identity, ordered per-parcel results, and
// the aggregate summary.
type BatchResult struct {
	BatchID string               `json:"batch_id"`
	Results []model.ParcelResult `json:"results"`
	Summary model.BatchSummary   `json:"summary"`
}

// EvaluateBatch evaluates parcels in parallel. Results preserve input order.
// Individual parcel failures never abort the batch; cancellation of ctx
// abandons remaining work without partial external effects.
func (e *Engine) EvaluateBatch(ctx context.Context, parcels []model.Parcel, concurrency int) (*BatchResult, error) {
	if concurrency <= 0 {
		concurrency = 8
	}

	batch := &BatchResult{
		BatchID: uuid.New().String(),
		Results: make([]model.ParcelResult, len(parcels)),
	}

	zap.L().Info("evaluating batch",
		zap.String("batch_id", batch.BatchID),
		zap.Int("parcels", len(parcels)),
		zap.Int("concurrency", concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, p := range parcels {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			batch.Results[i] = *e.EvaluateParcel(gctx, p)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "engine: batch cancelled")
	}

	batch.Summary = Summarize(batch.Results)
	return batch, nil
}
