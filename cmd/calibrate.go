package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/sitescore/internal/model"
	"github.com/sells-group/sitescore/internal/ranking"
)

var calibrateCmd = &cobra.Command{
	Use:   "calibrate <parcels.csv>",
	Short: "Derive ranking thresholds from a candidate dataset",
	Long: "Evaluates every parcel in the CSV and fits the tier thresholds to the\n" +
		"empirical viability-ratio distribution (p25/p50/p75/p90). Thresholds imported\n" +
		"from a different dataset tend to collapse whole sources into the low tiers.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		parcels, err := readParcelsCSV(args[0])
		if err != nil {
			return err
		}

		eng, err := buildEngine()
		if err != nil {
			return err
		}

		batch, err := eng.EvaluateBatch(ctx, parcels, cfg.Engine.Concurrency)
		if err != nil {
			return err
		}

		var ratios []float64
		for _, res := range batch.Results {
			if res.Status != model.StatusOK {
				continue
			}
			if res.Economics == nil || res.Economics.Indeterminate {
				continue
			}
			ratios = append(ratios, res.Economics.Ratio)
		}

		thresholds, err := ranking.Calibrate(ratios)
		if err != nil {
			return err
		}
		zap.L().Info("thresholds calibrated",
			zap.Int("parcels", len(parcels)),
			zap.Int("ratios", len(ratios)),
		)

		reportCalibration(batch.Results, thresholds, cfg.Ranking.Floors)

		out, _ := cmd.Flags().GetString("out")
		if out == "" {
			return nil
		}
		return writeThresholds(out, thresholds)
	},
}

func init() {
	calibrateCmd.Flags().String("out", "", "write calibrated thresholds as YAML (merge into config under ranking.thresholds)")
	rootCmd.AddCommand(calibrateCmd)
}

// reportCalibration re-ranks the batch under the new thresholds and prints
// the per-tier distribution, flagging tiers with no membership.
func reportCalibration(results []model.ParcelResult, thresholds ranking.Thresholds, floors ranking.ScoreFloors) {
	fmt.Printf("calibrated: %s\n\n", thresholds)

	classifier, err := ranking.NewClassifier(thresholds, floors)
	if err != nil {
		zap.L().Warn("coverage check skipped", zap.Error(err))
		return
	}

	var tiers []model.Tier
	for _, res := range results {
		if res.Status != model.StatusOK || res.Economics == nil || res.Competition == nil {
			continue
		}
		tier, err := classifier.Rank(res.Parcel.Track, res.Competition.Verdict, res.Economics.Ratio, res.Parcel.AuxPoints)
		if err != nil {
			continue
		}
		tiers = append(tiers, tier)
	}

	counts, missing := ranking.Coverage(tiers)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "TIER\tCOUNT")
	for _, t := range model.Tiers {
		if t == model.TierFatal {
			continue
		}
		_, _ = fmt.Fprintf(w, "%s\t%d\n", t, counts[t])
	}
	_ = w.Flush()

	if len(missing) > 0 {
		fmt.Fprintf(os.Stderr, "\nwarning: no parcels ranked %v; the dataset may be too uniform\n", missing)
	}
}

func writeThresholds(path string, thresholds ranking.Thresholds) error {
	data, err := yaml.Marshal(thresholds)
	if err != nil {
		return eris.Wrap(err, "calibrate: marshal thresholds")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "calibrate: write %s", path)
	}
	zap.L().Info("thresholds written", zap.String("path", path))
	return nil
}
