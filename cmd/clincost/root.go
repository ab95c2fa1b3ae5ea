package main

import (
	"context"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/gyeh/clincost/internal/config"
	"github.com/gyeh/clincost/internal/db"
	"github.com/gyeh/clincost/internal/exitcode"
)

var cfg = config.FromEnv()

var rootCmd = &cobra.Command{
	Use:   "clincost",
	Short: "Hospital clinical costing pipeline",
	Long: "Loads general ledger, feeder and activity workbooks into Postgres and allocates\n" +
		"ledger costs to patient events: build, disburse, build events, distribute.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cfg.ConfigFile == "" {
			return nil
		}
		return cfg.LoadFromFile(cfg.ConfigFile, cmd.Flags().Changed)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfg.DSN, "dsn", cfg.DSN, "Postgres connection string (or set DATABASE_URL)")
	pf.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format: text or json")
	pf.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn or error")
	pf.StringVar(&cfg.ConfigFile, "config", "", "YAML options file")
	pf.StringVar(&cfg.Hospital, "hospital", cfg.Hospital, "Hospital code")
	pf.StringVar(&cfg.Model, "model", cfg.Model, "Costing model code")
	pf.StringVar(&cfg.Run, "run", cfg.Run, "Costing run code")
}

// connect opens the pool or exits with DBConnError.
func connect(ctx context.Context, log zerolog.Logger) *pgxpool.Pool {
	if err := cfg.RequireDSN(); err != nil {
		log.Error().Err(err).Msg("config validation failed")
		os.Exit(exitcode.UsageError)
	}
	pool, err := db.NewPool(ctx, cfg.DSN)
	if err != nil {
		log.Error().Err(err).Msg("database connection failed")
		os.Exit(exitcode.DBConnError)
	}
	return pool
}
