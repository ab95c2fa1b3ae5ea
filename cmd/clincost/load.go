package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/gyeh/clincost/internal/exitcode"
	"github.com/gyeh/clincost/internal/logging"
	"github.com/gyeh/clincost/internal/workbook"
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load an xlsx workbook of reference, model or run tables",
	Long: "Each sheet is named after a table and its first row names the columns.\n" +
		"The hospital, model and run codes come from flags; every loaded table\n" +
		"has its rows for those codes replaced in a single transaction.",
	RunE: runLoad,
}

func init() {
	f := loadCmd.Flags()
	f.StringVar(&cfg.FilePath, "file", "", "Path to xlsx workbook (required)")
	f.StringVar(&cfg.Scope, "scope", "", "Only load tables of this scope: hospital, model or run")
	_ = loadCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(loadCmd)
}

func runLoad(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat, cfg.LogLevel)
	ctx := context.Background()

	var scope workbook.Scope
	if cfg.Scope != "" {
		s, ok := workbook.ParseScope(cfg.Scope)
		if !ok {
			log.Error().Str("scope", cfg.Scope).Msg("scope must be hospital, model or run")
			os.Exit(exitcode.UsageError)
		}
		scope = s
	}
	if cfg.Hospital == "" {
		log.Error().Msg("--hospital is required")
		os.Exit(exitcode.UsageError)
	}
	if _, err := os.Stat(cfg.FilePath); err != nil {
		log.Error().Err(err).Msg("file not accessible")
		os.Exit(exitcode.UsageError)
	}

	pool := connect(ctx, log)
	defer pool.Close()

	res, err := workbook.Load(ctx, pool, log, cfg.FilePath, cfg.Key(), scope)
	if err != nil {
		log.Error().Err(err).Msg("load failed")
		if errors.Is(err, workbook.ErrUnknownColumn) || errors.Is(err, workbook.ErrMissingKey) {
			os.Exit(exitcode.ValidationError)
		}
		os.Exit(exitcode.CopyError)
	}

	tables := make([]string, 0, len(res.Rows))
	for t := range res.Rows {
		tables = append(tables, t)
	}
	sort.Strings(tables)

	fmt.Printf("Loaded %s (sha256 %s)\n", cfg.FilePath, res.FileSHA256)
	for _, t := range tables {
		fmt.Printf("  %-36s %8d rows\n", t, res.Rows[t])
	}
	if len(res.Skipped) > 0 {
		fmt.Printf("Skipped sheets: %v\n", res.Skipped)
	}
	return nil
}
