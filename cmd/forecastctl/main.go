package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"

	"DemandCast/internal/di"
	drepo "DemandCast/internal/domain/repository"
	"DemandCast/internal/repository"
	"DemandCast/internal/services/features"
	"DemandCast/internal/services/forecast"
	"DemandCast/internal/usecase"
	"DemandCast/pkg/config"
	applogger "DemandCast/pkg/logger"
	"DemandCast/pkg/metrics"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	configFile string
	horizon    int
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "forecastctl",
		Short:        "Run demand forecasts from the command line",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "config/config.yaml", "config file path")
	rootCmd.PersistentFlags().IntVar(&horizon, "horizon", 14, "days to forecast")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(csvCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// runCmd forecasts one product against the configured store.
func runCmd() *cobra.Command {
	var (
		productID int64
		persist   bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Forecast a product from the configured sales store",
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()
			cfg, err := config.LoadWithEnv(configFile)
			if err != nil {
				return err
			}
			l, err := di.ProvideLogger(cfg)
			if err != nil {
				return err
			}
			store, err := di.ProvideStorage(cfg, di.ProvideCache(cfg, nil), l)
			if err != nil {
				return err
			}
			defer store.Close()

			pipeline, err := di.ProvidePipeline(cfg)
			if err != nil {
				return err
			}

			// without --persist the run lands in a throwaway store
			var runs drepo.ForecastStore = repository.NewMemoryStore()
			if persist {
				runs = store
			}
			svc := usecase.NewForecastService(store, runs, pipeline, repository.MultiNotifier(nil), metrics.New(), l,
				usecase.WithMaxHorizon(cfg.Forecast.MaxHorizon))
			run, err := svc.RunForecast(cmd.Context(), productID, horizon)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), run)
		},
	}
	cmd.Flags().Int64Var(&productID, "product", 0, "product id")
	cmd.Flags().BoolVar(&persist, "persist", false, "save the run to the configured store")
	_ = cmd.MarkFlagRequired("product")
	return cmd
}

// csvCmd forecasts a date,quantity file without any backing services.
func csvCmd() *cobra.Command {
	var (
		file     string
		locale   string
		ensemble bool
	)
	cmd := &cobra.Command{
		Use:   "csv",
		Short: "Forecast a date,quantity CSV file offline",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()

			obs, err := parseSalesCSV(f)
			if err != nil {
				return err
			}
			loc, err := features.LocaleByName(locale)
			if err != nil {
				return err
			}
			fc := forecast.DefaultConfig()
			fc.EnsembleEnabled = ensemble

			const csvProduct = 0
			store := repository.NewMemoryStore()
			store.AddSales(csvProduct, obs...)
			svc := usecase.NewForecastService(store, store, forecast.NewPipeline(features.NewBuilder(loc), fc),
				repository.MultiNotifier(nil), metrics.New(), applogger.Nop())
			run, err := svc.RunForecast(cmd.Context(), csvProduct, horizon)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), run)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "CSV file with date,quantity rows")
	cmd.Flags().StringVar(&locale, "locale", "kenya", "holiday calendar")
	cmd.Flags().BoolVar(&ensemble, "ensemble", true, "use the GBM+RF ensemble")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
