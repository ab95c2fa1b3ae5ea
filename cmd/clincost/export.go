package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gyeh/clincost/internal/exitcode"
	"github.com/gyeh/clincost/internal/export"
	"github.com/gyeh/clincost/internal/logging"
	"github.com/gyeh/clincost/internal/store"
)

var verifyExport bool

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a run's event costs to a Parquet file",
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVar(&cfg.Out, "out", "", "Output Parquet path (required)")
	exportCmd.Flags().BoolVar(&verifyExport, "verify", false, "Read the file back and check row count and total cost")
	_ = exportCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat, cfg.LogLevel)
	ctx := context.Background()

	key := cfg.Key()
	if err := key.Validate(); err != nil {
		log.Error().Err(err).Msg("config validation failed")
		os.Exit(exitcode.UsageError)
	}

	pool := connect(ctx, log)
	defer pool.Close()

	status, err := store.StageStatus(ctx, pool, key, "distribute")
	if err != nil {
		log.Error().Err(err).Msg("stage status lookup failed")
		os.Exit(exitcode.DBConnError)
	}
	if status != store.StatusComplete {
		log.Warn().Str("status", status).Msg("distribute is not complete; exporting the event costs on record")
	}

	costs, err := store.LoadEventCosts(ctx, pool, key)
	if err != nil {
		log.Error().Err(err).Msg("load event costs failed")
		os.Exit(exitcode.DBConnError)
	}
	n, err := export.WriteEventCosts(cfg.Out, key, costs)
	if err != nil {
		log.Error().Err(err).Msg("export failed")
		os.Exit(exitcode.CopyError)
	}

	if verifyExport {
		if err := export.VerifyEventCosts(cfg.Out, key, costs); err != nil {
			log.Error().Err(err).Msg("export verification failed")
			os.Exit(exitcode.ValidationError)
		}
		log.Info().Str("path", cfg.Out).Msg("export verified")
	}

	fmt.Printf("Exported %d event costs for %s to %s\n", n, key, cfg.Out)
	return nil
}
