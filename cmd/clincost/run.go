package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gyeh/clincost/internal/exitcode"
	"github.com/gyeh/clincost/internal/logging"
	"github.com/gyeh/clincost/internal/model"
	"github.com/gyeh/clincost/internal/pipeline"
)

var runCmd = &cobra.Command{
	Use:   "run <stage>",
	Short: "Run a costing stage, or all of them",
	Long: "Stages run in order: " + strings.Join(model.StageNames(), ", ") + ".\n" +
		"Each stage requires the one before it to be complete; \"all\" runs every stage.",
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	f := runCmd.Flags()
	f.BoolVar(&cfg.Iterate, "iterate", cfg.Iterate, "Use iterative disbursement (allows cyclic indirect departments)")
	f.IntVar(&cfg.MaxIterations, "max-iterations", cfg.MaxIterations, "Iteration cap for iterative disbursement")
	f.StringVar(&cfg.Remainder, "remainder", cfg.Remainder, "Distribution remainder policy: retain or absorb")
	f.StringVar(&cfg.ReportDir, "report-dir", cfg.ReportDir, "Directory for the undistributed costs workbook")
	f.Float64Var(&cfg.DefaultScaling, "default-scaling", cfg.DefaultScaling, "Acuity scaling when a model row leaves it empty")
	f.Float64Var(&cfg.ResidualTolerance, "residual-tolerance", cfg.ResidualTolerance, "Indirect balance treated as drained")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat, cfg.LogLevel)
	ctx := context.Background()

	if _, err := pipeline.Resolve(args[0]); err != nil {
		log.Error().Err(err).Msg("invalid stage")
		os.Exit(exitcode.UsageError)
	}
	rc, err := cfg.RunContext()
	if err != nil {
		log.Error().Err(err).Msg("config validation failed")
		os.Exit(exitcode.UsageError)
	}

	pool := connect(ctx, log)
	defer pool.Close()

	summary, err := pipeline.New(pool, log, rc).Run(ctx, args[0])
	if err != nil {
		var pe *pipeline.PipelineError
		phase := args[0]
		if errors.As(err, &pe) {
			phase = pe.Phase
		}
		log.Error().Err(err).Str("phase", phase).Msg("costing run failed")
		completed := 0
		if summary != nil {
			completed = len(summary.Stages)
		}
		os.Exit(exitCode(err, completed))
	}

	for _, s := range summary.Stages {
		fmt.Printf("%-10s %8d read %8d written %4d warnings (%.1fs)\n",
			s.Stage.Name, s.RowsRead, s.RowsWritten, s.Warnings, s.Duration.Seconds())
		if s.Stage.Name == "distribute" {
			fmt.Printf("           distributed %s of %s, undistributed %s\n",
				s.TotalOut.StringFixed(2), s.TotalIn.StringFixed(2), s.Undistributed.StringFixed(2))
		}
	}
	fmt.Printf("Run %s complete (%.1fs)\n", rc.Key, summary.DurationTotal.Seconds())
	return nil
}

// exitCode maps a pipeline failure to a process exit code. Stages completed
// before the failure stay committed.
func exitCode(err error, completed int) int {
	switch {
	case errors.Is(err, model.ErrConfig):
		return exitcode.ConfigError
	case completed > 0:
		return exitcode.PartialSuccess
	default:
		return exitcode.TransformError
	}
}
