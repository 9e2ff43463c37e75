package main

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"fleetd/internal/config"
	"fleetd/internal/logging"
)

// envLookup reads FLEETD_* overrides. Tests replace it.
var envLookup = os.Getenv

// options holds the persistent flags shared by every subcommand.
type options struct {
	configPath string
	logLevel   string
	logFormat  string
	dbPath     string
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "fleetd",
		Short:         "Mining fleet coordinator and agent",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "Config file (.yaml, .yml, .json or .toml)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level: debug|info|warn|error (defaults FLEETD_LOG_LEVEL or info)")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "Log format: console|json")
	root.PersistentFlags().StringVar(&opts.dbPath, "db", "", "SQLite database path (defaults FLEETD_DB or ~/.fleetd/fleetd.db)")

	root.AddCommand(newServeCmd(opts), newAgentCmd(opts), newNodesCmd(opts), newVersionCmd())
	return root
}

// load resolves the effective configuration: file, then environment, then
// flags, then defaults.
func (o *options) load(flags func(*config.Config)) (config.Config, error) {
	var cfg config.Config
	if o.configPath != "" {
		c, err := config.Load(o.configPath)
		if err != nil {
			return cfg, err
		}
		cfg = c
	}
	cfg.ApplyEnv(envLookup)
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	if o.logFormat != "" {
		cfg.LogFormat = o.logFormat
	}
	if o.dbPath != "" {
		cfg.DBPath = o.dbPath
	}
	if flags != nil {
		flags(&cfg)
	}
	cfg = cfg.Merge(config.Defaults())
	if err := cfg.ExpandPaths(); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (o *options) logger(cfg config.Config) (zerolog.Logger, error) {
	return logging.New("fleetd", cfg.LogLevel, cfg.LogFormat)
}

// splitCSV splits a comma-separated flag value, dropping empty items.
func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
