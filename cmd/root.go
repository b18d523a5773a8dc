package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/zcta-crosswalk/internal/config"
	"github.com/sells-group/zcta-crosswalk/internal/monitoring"
)

var (
	cfg     *config.Config
	metrics *monitoring.Metrics
)

var rootCmd = &cobra.Command{
	Use:   "zcta-crosswalk",
	Short: "ZIP Code to Census ZCTA crosswalk",
	Long:  "Converts USPS ZIP Codes to Census Zip Code Tabulation Areas and back, and resolves ZCTA centroids, for single codes or whole CSV/XLSX tables.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := c.Validate(); err != nil {
			return fmt.Errorf("validate config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		metrics = monitoring.NewMetrics()
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		defer func() { _ = zap.L().Sync() }()

		if cfg == nil || cfg.Metrics.Textfile == "" {
			return nil
		}
		if err := metrics.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			return err
		}
		zap.L().Debug("metrics written", zap.String("path", cfg.Metrics.Textfile))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().Int("vintage", 0, "census vintage, 2010 or 2020 (default from config)")
	rootCmd.PersistentFlags().Int("year", 0, "any census-era year; mapped to the vintage in force for it")
	rootCmd.PersistentFlags().StringP("format", "o", formatText, "output format: text, json, yaml")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
