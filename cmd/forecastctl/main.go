package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"WattWise/internal/di"
	"WattWise/internal/domain/models"
	"WattWise/internal/usecase"
	"WattWise/pkg/config"
	xutil "WattWise/pkg/util"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
	pretty     bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "forecastctl",
		Short: "Run electricity demand forecasts without the HTTP server",
		Long: `forecastctl drives the forecasting engine directly against the configured
feature store and model servers. Completed runs are delivered to the configured
output backends exactly as the server would deliver them.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "config/config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVar(&pretty, "pretty", false, "indent JSON output")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(batchCmd())
	rootCmd.AddCommand(specCmd())
	rootCmd.AddCommand(toleranceCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// withForecaster loads config, builds the use cases and releases them after fn.
func withForecaster(fn func(ctx context.Context, f *di.Forecaster) error) error {
	cfg, err := config.LoadWithEnv(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	f, cleanup, err := di.InitializeForecaster(cfg, nil)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	defer cleanup()
	defer f.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return fn(ctx, f)
}

// runCmd forecasts one city and prints its summary.
func runCmd() *cobra.Command {
	var city, start, end, model string
	var points bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Forecast one city over a day range",
		RunE: func(cmd *cobra.Command, args []string) error {
			from, to, err := xutil.ParseDayRange(start, end)
			if err != nil {
				return err
			}
			return withForecaster(func(ctx context.Context, f *di.Forecaster) error {
				run, err := f.Forecasts.Predict(ctx, usecase.PredictParams{
					City:  xutil.NormalizeCity(city),
					From:  from,
					To:    to,
					Model: models.ModelType(model),
				})
				if err != nil {
					return err
				}
				if points {
					return printJSON(cmd.OutOrStdout(), run)
				}
				return printJSON(cmd.OutOrStdout(), run.Summary)
			})
		},
	}

	cmd.Flags().StringVar(&city, "city", "", "city to forecast")
	cmd.Flags().StringVar(&start, "start", "", "first day, YYYY-MM-DD")
	cmd.Flags().StringVar(&end, "end", "", "last day, YYYY-MM-DD")
	cmd.Flags().StringVar(&model, "model", string(models.ModelHybrid), "fast or hybrid")
	cmd.Flags().BoolVar(&points, "points", false, "print the full run instead of the summary")
	_ = cmd.MarkFlagRequired("city")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")

	return cmd
}

// batchCmd forecasts several cities; failures are reported per city.
func batchCmd() *cobra.Command {
	var cities, start, end, model string

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Forecast several cities over the same day range",
		RunE: func(cmd *cobra.Command, args []string) error {
			from, to, err := xutil.ParseDayRange(start, end)
			if err != nil {
				return err
			}
			names := splitCities(cities)
			if len(names) == 0 {
				return fmt.Errorf("--cities must name at least one city")
			}
			return withForecaster(func(ctx context.Context, f *di.Forecaster) error {
				items, err := f.Forecasts.PredictBatch(ctx, names, from, to, models.ModelType(model))
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), items)
			})
		},
	}

	cmd.Flags().StringVar(&cities, "cities", "", "comma-separated cities")
	cmd.Flags().StringVar(&start, "start", "", "first day, YYYY-MM-DD")
	cmd.Flags().StringVar(&end, "end", "", "last day, YYYY-MM-DD")
	cmd.Flags().StringVar(&model, "model", string(models.ModelHybrid), "fast or hybrid")
	_ = cmd.MarkFlagRequired("cities")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")

	return cmd
}

// specCmd prints the stored model spec of the latest run for a city.
func specCmd() *cobra.Command {
	var city string

	cmd := &cobra.Command{
		Use:   "spec",
		Short: "Show the model spec of the latest run for a city",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withForecaster(func(ctx context.Context, f *di.Forecaster) error {
				s, err := f.Analysis.ModelSpec(ctx, xutil.NormalizeCity(city))
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), s)
			})
		},
	}

	cmd.Flags().StringVar(&city, "city", "", "city")
	_ = cmd.MarkFlagRequired("city")
	return cmd
}

func toleranceCmd() *cobra.Command {
	var city string
	var maxPct int

	cmd := &cobra.Command{
		Use:   "tolerance",
		Short: "Show accuracy at increasing tolerance levels for the latest run",
		RunE: func(cmd *cobra.Command, args []string) error {
			if maxPct > 100 {
				return fmt.Errorf("--max must be at most 100")
			}
			return withForecaster(func(ctx context.Context, f *di.Forecaster) error {
				res, err := f.Analysis.Tolerance(ctx, xutil.NormalizeCity(city), maxPct)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}

	cmd.Flags().StringVar(&city, "city", "", "city")
	cmd.Flags().IntVar(&maxPct, "max", -1, "highest tolerance percent; negative uses the configured default")
	_ = cmd.MarkFlagRequired("city")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), di.Version)
		},
	}
}

func splitCities(s string) []string {
	var out []string
	for _, c := range strings.Split(s, ",") {
		if c = xutil.NormalizeCity(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
