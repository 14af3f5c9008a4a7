package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/sitescore/internal/model"
	"github.com/sells-group/sitescore/internal/refdata"
)

var awardsCmd = &cobra.Command{
	Use:   "awards",
	Short: "Manage the prior-award history",
	Long:  "Commands for loading, listing, and counting prior tax-credit awards in the store.",
}

// -- awards load --

var awardsLoadCmd = &cobra.Command{
	Use:   "load <awards.csv>",
	Short: "Load an award CSV into the store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		awards, err := refdata.LoadAwards(args[0])
		if err != nil {
			return err
		}
		if len(awards) == 0 {
			fmt.Fprintln(os.Stderr, "No awards found in file.")
			return nil
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		n, err := st.SaveAwards(ctx, awards)
		if err != nil {
			return eris.Wrap(err, "awards load")
		}

		zap.L().Info("awards loaded",
			zap.String("file", args[0]),
			zap.Int("saved", n),
		)
		return nil
	},
}

// -- awards list --

var awardsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored awards",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		county, _ := cmd.Flags().GetString("county")

		awards, err := st.ListAwards(ctx, county)
		if err != nil {
			return eris.Wrap(err, "awards list")
		}

		if len(awards) == 0 {
			fmt.Fprintln(os.Stderr, "No awards found.")
			return nil
		}

		formatAwardsList(os.Stdout, awards)
		return nil
	},
}

// -- awards count --

var awardsCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Show how many awards are stored",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		n, err := st.CountAwards(ctx)
		if err != nil {
			return eris.Wrap(err, "awards count")
		}

		fmt.Printf("%d award(s)\n", n)
		return nil
	},
}

func init() {
	awardsListCmd.Flags().String("county", "", "filter by 5-digit county FIPS")

	awardsCmd.AddCommand(awardsLoadCmd)
	awardsCmd.AddCommand(awardsListCmd)
	awardsCmd.AddCommand(awardsCountCmd)
	rootCmd.AddCommand(awardsCmd)
}

// formatAwardsList writes a tabular list of awards to w.
func formatAwardsList(out io.Writer, awards []model.Award) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tPROJECT\tYEAR\tTRACK\tCOUNTY\tNEW_CONST\tFAMILY\tUNITS")
	_, _ = fmt.Fprintln(w, "--\t-------\t----\t-----\t------\t---------\t------\t-----")

	for _, a := range awards {
		project := a.Project
		if len(project) > 30 {
			project = project[:27] + "..."
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%t\t%t\t%d\n",
			a.ID,
			project,
			a.Year,
			a.Track,
			a.CountyFIPS,
			a.NewConstruction,
			a.FamilyDev,
			a.Units,
		)
	}
	_ = w.Flush()
}
