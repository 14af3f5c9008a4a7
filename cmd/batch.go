package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/sitescore/internal/engine"
	"github.com/sells-group/sitescore/internal/model"
	"github.com/sells-group/sitescore/pkg/geocode"
)

var batchCmd = &cobra.Command{
	Use:   "batch <parcels.csv>",
	Short: "Evaluate a CSV of parcels",
	Long: "Evaluates every parcel in the CSV concurrently. Individual parcel failures never abort the batch.\n" +
		"Rows without a construction value default to new_construction.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		parcels, err := readParcelsCSV(args[0])
		if err != nil {
			return err
		}
		if len(parcels) == 0 {
			zap.L().Info("no parcels found")
			return nil
		}

		if doGeocode, _ := cmd.Flags().GetBool("geocode"); doGeocode {
			client := geocode.NewCensusClient(geocode.WithRateLimit(cfg.Geocode.RateLimit))
			geocodeParcels(ctx, client, parcels, cfg.Geocode.Concurrency)
		}

		eng, err := buildEngine()
		if err != nil {
			return err
		}

		batch, err := eng.EvaluateBatch(ctx, parcels, cfg.Engine.Concurrency)
		if err != nil {
			return err
		}

		if save, _ := cmd.Flags().GetBool("save"); save {
			st, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck

			if _, err := st.CreateBatch(ctx, batch.BatchID, len(parcels)); err != nil {
				return err
			}
			if err := st.SaveResults(ctx, batch); err != nil {
				return err
			}
			zap.L().Info("batch saved", zap.String("batch_id", batch.BatchID))
		}

		out, _ := cmd.Flags().GetString("out")
		output, _ := cmd.Flags().GetString("output")
		return writeBatchOutput(batch, out, output)
	},
}

func init() {
	batchCmd.Flags().Bool("save", false, "persist results to the configured store")
	batchCmd.Flags().Bool("geocode", false, "geocode rows that have an address but no coordinates")
	batchCmd.Flags().String("out", "", "output file (default stdout)")
	batchCmd.Flags().String("output", "csv", "output format (csv, json)")
	rootCmd.AddCommand(batchCmd)
}

func writeBatchOutput(batch *engine.BatchResult, out, format string) error {
	w := os.Stdout
	if out != "" {
		f, err := os.Create(out)
		if err != nil {
			return eris.Wrapf(err, "batch: create %s", out)
		}
		defer f.Close() //nolint:errcheck
		w = f
	}

	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(batch), "batch: write json")
	}

	return writeResultsCSV(w, batch.Results)
}

func writeResultsCSV(w *os.File, results []model.ParcelResult) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := []string{
		"id", "status", "status_reason", "tier", "verdict",
		"qct", "dda", "boost_pct", "ratio", "weighted_rent", "warnings",
	}
	if err := cw.Write(header); err != nil {
		return eris.Wrap(err, "batch: write csv header")
	}

	for _, res := range results {
		row := make([]string, len(header))
		row[0] = res.Parcel.ID
		row[1] = string(res.Status)
		row[2] = res.StatusReason
		row[3] = res.Tier.String()
		if res.Competition != nil {
			row[4] = res.Competition.Verdict.String()
		}
		if res.Eligibility != nil {
			row[5] = strconv.FormatBool(res.Eligibility.QCT)
			row[6] = strconv.FormatBool(res.Eligibility.DDA)
			row[7] = strconv.Itoa(res.Eligibility.BoostPct)
		}
		if res.Economics != nil && !res.Economics.Indeterminate {
			row[8] = strconv.FormatFloat(res.Economics.Ratio, 'f', 6, 64)
			row[9] = strconv.FormatFloat(res.Economics.WeightedRent, 'f', 2, 64)
		}
		if len(res.Warnings) > 0 {
			row[10] = fmt.Sprintf("%d warning(s)", len(res.Warnings))
		}
		if err := cw.Write(row); err != nil {
			return eris.Wrapf(err, "batch: write csv row %s", res.Parcel.ID)
		}
	}
	return nil
}
