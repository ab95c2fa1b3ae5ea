package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/gyeh/clincost/internal/model"
)

// Config holds all runtime configuration for a clincost invocation.
type Config struct {
	DSN        string
	LogFormat  string // "text" or "json"
	LogLevel   string
	ConfigFile string // optional YAML options file

	Hospital string
	Model    string
	Run      string

	FilePath string // workbook for load
	Scope    string // load scope: hospital, model, run or empty for all
	Out      string // export destination

	Iterate           bool
	MaxIterations     int
	Remainder         string
	ReportDir         string
	DefaultScaling    float64
	ResidualTolerance float64
}

// yamlConfig is the on-disk YAML structure. Pointers tell unset keys apart
// from zero values.
type yamlConfig struct {
	Hospital          *string  `yaml:"hospital"`
	Model             *string  `yaml:"model"`
	Iterate           *bool    `yaml:"iterate"`
	MaxIterations     *int     `yaml:"max_iterations"`
	Remainder         *string  `yaml:"remainder"`
	ReportDir         *string  `yaml:"report_dir"`
	DefaultScaling    *float64 `yaml:"default_scaling"`
	ResidualTolerance *float64 `yaml:"residual_tolerance"`
}

// FromEnv returns the defaults for every flag, read from CLINCOST_*
// environment variables. The DSN also falls back to DATABASE_URL.
func FromEnv() Config {
	v := viper.New()
	v.SetEnvPrefix("CLINCOST")
	v.AutomaticEnv()
	_ = v.BindEnv("dsn", "CLINCOST_DSN", "DATABASE_URL")
	_ = v.BindEnv("report_dir", "CLINCOST_REPORT_DIR")
	_ = v.BindEnv("log_format", "CLINCOST_LOG_FORMAT")
	_ = v.BindEnv("log_level", "CLINCOST_LOG_LEVEL")

	d := model.DefaultOptions()
	v.SetDefault("log_format", "text")
	v.SetDefault("log_level", "info")
	v.SetDefault("max_iterations", d.MaxIterations)
	v.SetDefault("remainder", string(d.Remainder))
	v.SetDefault("default_scaling", d.DefaultScaling)
	v.SetDefault("residual_tolerance", d.ResidualTolerance)

	return Config{
		DSN:               v.GetString("dsn"),
		LogFormat:         v.GetString("log_format"),
		LogLevel:          v.GetString("log_level"),
		Hospital:          v.GetString("hospital"),
		Model:             v.GetString("model"),
		Run:               v.GetString("run"),
		Iterate:           v.GetBool("iterate"),
		MaxIterations:     v.GetInt("max_iterations"),
		Remainder:         v.GetString("remainder"),
		ReportDir:         v.GetString("report_dir"),
		DefaultScaling:    v.GetFloat64("default_scaling"),
		ResidualTolerance: v.GetFloat64("residual_tolerance"),
	}
}

// LoadFromFile reads a YAML options file and merges its values into Config.
// explicit reports whether a flag was set on the command line; those fields
// keep their flag value.
func (c *Config) LoadFromFile(path string, explicit func(flag string) bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	if explicit == nil {
		explicit = func(string) bool { return false }
	}
	set(&c.Hospital, yc.Hospital, explicit("hospital"))
	set(&c.Model, yc.Model, explicit("model"))
	set(&c.Iterate, yc.Iterate, explicit("iterate"))
	set(&c.MaxIterations, yc.MaxIterations, explicit("max-iterations"))
	set(&c.Remainder, yc.Remainder, explicit("remainder"))
	set(&c.ReportDir, yc.ReportDir, explicit("report-dir"))
	set(&c.DefaultScaling, yc.DefaultScaling, explicit("default-scaling"))
	set(&c.ResidualTolerance, yc.ResidualTolerance, explicit("residual-tolerance"))
	return c.Validate()
}

func set[T any](dst *T, v *T, keep bool) {
	if v != nil && !keep {
		*dst = *v
	}
}

// Validate checks the pipeline options.
func (c *Config) Validate() error {
	if _, err := model.ParseRemainderPolicy(c.Remainder); err != nil {
		return err
	}
	if c.MaxIterations < 1 {
		return fmt.Errorf("max iterations must be at least 1, got %d", c.MaxIterations)
	}
	if c.ResidualTolerance < 0 {
		return fmt.Errorf("residual tolerance must not be negative, got %g", c.ResidualTolerance)
	}
	if c.DefaultScaling <= 0 {
		return fmt.Errorf("default scaling must be positive, got %g", c.DefaultScaling)
	}
	return nil
}

// RequireDSN checks that a database is configured.
func (c *Config) RequireDSN() error {
	if c.DSN == "" {
		return fmt.Errorf("--dsn or DATABASE_URL is required")
	}
	return nil
}

// Key returns the run key named by the hospital, model and run flags.
func (c *Config) Key() model.RunKey {
	return model.RunKey{Hospital: c.Hospital, Model: c.Model, Run: c.Run}
}

// RunContext validates the options and the run key and returns the context
// the pipeline runs with.
func (c *Config) RunContext() (model.RunContext, error) {
	if err := c.Validate(); err != nil {
		return model.RunContext{}, err
	}
	key := c.Key()
	if err := key.Validate(); err != nil {
		return model.RunContext{}, err
	}
	remainder, _ := model.ParseRemainderPolicy(c.Remainder)
	return model.RunContext{
		Key: key,
		Options: model.Options{
			Iterate:           c.Iterate,
			MaxIterations:     c.MaxIterations,
			Remainder:         remainder,
			ReportDir:         c.ReportDir,
			DefaultScaling:    c.DefaultScaling,
			ResidualTolerance: c.ResidualTolerance,
		},
	}, nil
}
