package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/sitescore/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "sitescore",
	Short: "Site feasibility and allocation-rule engine",
	Long:  "Evaluates candidate parcels for affordable housing tax-credit deals: rent ceilings, QCT/DDA eligibility, competition rules, economic viability, and investment-tier ranking.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := c.Validate(); err != nil {
			return err
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
