package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gyeh/clincost/internal/exitcode"
	"github.com/gyeh/clincost/internal/logging"
	"github.com/gyeh/clincost/internal/model"
	"github.com/gyeh/clincost/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the stage states of a run",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat, cfg.LogLevel)
	ctx := context.Background()

	key := cfg.Key()
	if err := key.Validate(); err != nil {
		log.Error().Err(err).Msg("config validation failed")
		os.Exit(exitcode.UsageError)
	}

	pool := connect(ctx, log)
	defer pool.Close()

	recs, err := store.RunStates(ctx, pool, key)
	if err != nil {
		log.Error().Err(err).Msg("run state lookup failed")
		os.Exit(exitcode.DBConnError)
	}
	byStage := make(map[string]store.StageRecord, len(recs))
	for _, r := range recs {
		byStage[r.Stage] = r
	}

	fmt.Printf("Run %s\n", key)
	for _, s := range model.AllStages {
		r, ok := byStage[s.Name]
		if !ok {
			fmt.Printf("  %-10s never run\n", s.Name)
			continue
		}
		fmt.Printf("  %-10s %-8s %s  %8d rows %4d warnings  batch %s\n",
			s.Name, r.Status, r.FinishedAt.Format("2006-01-02 15:04:05"), r.RowsWritten, r.Warnings, r.BatchID)
	}
	return nil
}
