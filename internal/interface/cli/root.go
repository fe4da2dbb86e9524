// Package cli wires configuration, storage and transport into the
// studentgrades command line.
package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/studentgrades/studentgrades-api/config"
	"github.com/studentgrades/studentgrades-api/pkg/logger"
)

// version is overridden at build time with -ldflags "-X ...cli.version=...".
var version = "dev"

type rootOptions struct {
	configFile string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "studentgrades",
		Short:         "Student and grade records service",
		Long:          "studentgrades keeps students and their grades and serves them over a JSON REST API.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "YAML config file (default $CONFIG_FILE)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override LOG_LEVEL (debug, info, warn, error)")

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newMigrateCmd(opts))
	cmd.AddCommand(newSeedCmd(opts))
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// NewRootCmdForTest returns the root command for testing.
func NewRootCmdForTest() *cobra.Command {
	return newRootCmd()
}

func Execute() error {
	return newRootCmd().Execute()
}

// load reads the configuration and builds the process logger.
func (o *rootOptions) load(stderr io.Writer) (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load(o.configFile)
	if err != nil {
		return nil, nil, err
	}
	if o.logLevel != "" {
		cfg.Observability.LogLevel = o.logLevel
	}

	log := logger.New(logger.Options{
		Output:    stderr,
		Level:     logger.ParseLevel(cfg.Observability.LogLevel),
		Format:    logger.Format(cfg.Observability.LogFormat),
		AddCaller: !cfg.IsDevelopment(),
	}).With(
		logger.String("app", cfg.App.Name),
		logger.String("env", string(cfg.App.Environment)),
	)

	return cfg, log, nil
}

// buildVersion prefers the linker-provided version over the configured one.
func buildVersion(cfg *config.Config) string {
	if version != "dev" || cfg == nil {
		return version
	}
	return cfg.App.Version
}
