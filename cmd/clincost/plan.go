package main

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/gyeh/clincost/internal/exitcode"
	"github.com/gyeh/clincost/internal/logging"
	"github.com/gyeh/clincost/internal/pipeline"
	"github.com/gyeh/clincost/internal/store"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Dry-run check of a model and run (no writes)",
	RunE:  runPlan,
}

func init() {
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat, cfg.LogLevel)
	ctx := context.Background()

	key := cfg.Key()
	if err := key.Validate(); err != nil {
		log.Error().Err(err).Msg("config validation failed")
		os.Exit(exitcode.UsageError)
	}

	pool := connect(ctx, log)
	defer pool.Close()

	if err := store.CheckRunKey(ctx, pool, key); err != nil {
		log.Error().Err(err).Msg("run key check failed")
		os.Exit(exitcode.ConfigError)
	}
	report, err := pipeline.Check(ctx, pool, key)
	if err != nil {
		log.Error().Err(err).Msg("model check failed")
		os.Exit(exitcode.DBConnError)
	}

	names := make([]string, 0, len(report.Counts))
	for n := range report.Counts {
		names = append(names, n)
	}
	sort.Strings(names)

	fmt.Println("=== clincost plan ===")
	fmt.Printf("Hospital: %s\n", key.Hospital)
	fmt.Printf("Model:    %s\n", key.Model)
	fmt.Printf("Run:      %s\n", key.Run)
	fmt.Println()
	fmt.Println("Configuration rows:")
	for _, n := range names {
		fmt.Printf("  %-22s %6d\n", n, report.Counts[n])
	}

	if len(report.Warnings) > 0 {
		fmt.Printf("\nWarnings (%d):\n", len(report.Warnings))
		for _, w := range report.Warnings {
			fmt.Printf("  - %s\n", w)
		}
	}
	if len(report.Errors) > 0 {
		fmt.Printf("\nErrors (%d):\n", len(report.Errors))
		for _, e := range report.Errors {
			fmt.Printf("  - %s\n", e)
		}
		os.Exit(exitcode.ValidationError)
	}
	fmt.Println("\nModel check: OK")
	return nil
}
