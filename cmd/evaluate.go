package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/sitescore/internal/model"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate a single parcel",
	Long:  "Runs the full evaluation pipeline for one parcel supplied via --file (JSON) or flags.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		p, err := parcelFromFlags(cmd)
		if err != nil {
			return err
		}

		eng, err := buildEngine()
		if err != nil {
			return err
		}

		res := eng.EvaluateParcel(cmd.Context(), p)

		output, _ := cmd.Flags().GetString("output")
		if output == "json" {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}

		formatResult(os.Stdout, res)
		return nil
	},
}

func init() {
	evaluateCmd.Flags().String("file", "", "JSON file describing the parcel")
	evaluateCmd.Flags().String("id", "", "parcel identifier")
	evaluateCmd.Flags().Float64("lat", 0, "latitude (WGS84)")
	evaluateCmd.Flags().Float64("lon", 0, "longitude (WGS84)")
	evaluateCmd.Flags().String("county", "", "5-digit county FIPS")
	evaluateCmd.Flags().String("city", "", "city name")
	evaluateCmd.Flags().String("region", "", "service region identifier")
	evaluateCmd.Flags().Float64("acreage", 0, "parcel size in acres")
	evaluateCmd.Flags().Int("units", 0, "proposed unit count")
	evaluateCmd.Flags().String("mix", "", "unit mix, e.g. 1br=0.4,2br=0.6")
	evaluateCmd.Flags().String("track", "competitive", "financing track (competitive, non_competitive, 9%, 4%)")
	evaluateCmd.Flags().String("construction", "new", "construction type (new, rehab)")
	evaluateCmd.Flags().String("hazard", "", "flood hazard zone code")
	evaluateCmd.Flags().Int("year", 0, "analysis year")
	evaluateCmd.Flags().Float64("aux", 0, "regulatory score total (competitive track)")
	evaluateCmd.Flags().String("output", "table", "output format (table, json)")
	rootCmd.AddCommand(evaluateCmd)
}

// parcelFromFlags builds a Parcel from --file or individual flags.
func parcelFromFlags(cmd *cobra.Command) (model.Parcel, error) {
	var p model.Parcel

	if file, _ := cmd.Flags().GetString("file"); file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return p, eris.Wrapf(err, "evaluate: read %s", file)
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return p, eris.Wrapf(err, "evaluate: parse %s", file)
		}
		return p, nil
	}

	p.ID, _ = cmd.Flags().GetString("id")
	p.Lat, _ = cmd.Flags().GetFloat64("lat")
	p.Lon, _ = cmd.Flags().GetFloat64("lon")
	p.CountyFIPS, _ = cmd.Flags().GetString("county")
	p.City, _ = cmd.Flags().GetString("city")
	p.RegionID, _ = cmd.Flags().GetString("region")
	p.Acreage, _ = cmd.Flags().GetFloat64("acreage")
	p.Units, _ = cmd.Flags().GetInt("units")
	p.HazardZone, _ = cmd.Flags().GetString("hazard")
	p.AnalysisYear, _ = cmd.Flags().GetInt("year")
	p.AuxPoints, _ = cmd.Flags().GetFloat64("aux")

	track, _ := cmd.Flags().GetString("track")
	parsedTrack, err := model.ParseTrack(track)
	if err != nil {
		return p, err
	}
	p.Track = parsedTrack

	construction, _ := cmd.Flags().GetString("construction")
	parsedConstruction, err := model.ParseConstructionType(construction)
	if err != nil {
		return p, err
	}
	p.Construction = parsedConstruction

	mix, _ := cmd.Flags().GetString("mix")
	if mix != "" {
		p.UnitMix, err = parseUnitMix(mix)
		if err != nil {
			return p, err
		}
	}

	return p, nil
}

// parseUnitMix parses "1br=0.4,2br=0.6" into a unit-mix map.
func parseUnitMix(s string) (map[model.UnitSize]float64, error) {
	mix := make(map[model.UnitSize]float64)
	for _, part := range strings.Split(s, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			return nil, eris.Errorf("evaluate: bad unit mix entry %q", part)
		}
		size, err := model.ParseUnitSize(kv[0])
		if err != nil {
			return nil, err
		}
		var share float64
		if _, err := fmt.Sscanf(kv[1], "%f", &share); err != nil {
			return nil, eris.Errorf("evaluate: bad unit mix share %q", kv[1])
		}
		mix[size] = share
	}
	return mix, nil
}

// formatResult renders a single parcel result as a table.
func formatResult(w *os.File, res *model.ParcelResult) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintf(tw, "Parcel\t%s\n", res.Parcel.ID)
	fmt.Fprintf(tw, "Status\t%s\n", res.Status)
	if res.StatusReason != "" {
		fmt.Fprintf(tw, "Reason\t%s\n", res.StatusReason)
	}
	fmt.Fprintf(tw, "Tier\t%s\n", res.Tier)

	if res.Eligibility != nil {
		fmt.Fprintf(tw, "QCT\t%t\n", res.Eligibility.QCT)
		fmt.Fprintf(tw, "DDA\t%t\n", res.Eligibility.DDA)
		fmt.Fprintf(tw, "Basis boost\t%d%%\n", res.Eligibility.BoostPct)
	}
	if res.Competition != nil {
		fmt.Fprintf(tw, "Competition\t%s\n", res.Competition.Verdict)
		for _, c := range res.Competition.Conflicts {
			fmt.Fprintf(tw, "  conflict\t%s (%.2f mi, %s)\n", c.Award.ID, c.DistanceMiles, c.Rule)
		}
	}
	if res.Economics != nil && !res.Economics.Indeterminate {
		fmt.Fprintf(tw, "Weighted rent\t$%.2f\n", res.Economics.WeightedRent)
		fmt.Fprintf(tw, "Dev cost / acre\t$%.0f\n", res.Economics.TotalDevCostPerAcre)
		fmt.Fprintf(tw, "Revenue / acre\t$%.0f\n", res.Economics.AnnualRevenuePerAcre)
		fmt.Fprintf(tw, "Ratio\t%.4f\n", res.Economics.Ratio)
	}
	for _, warning := range res.Warnings {
		fmt.Fprintf(tw, "Warning\t%s\n", warning)
	}
}
