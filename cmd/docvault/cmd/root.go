// Package cmd provides the CLI commands for docvault.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docvault/internal/config"
	logpkg "github.com/kailas-cloud/docvault/internal/logger"
	"github.com/kailas-cloud/docvault/internal/version"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	env        string
	configPath string
	logLevel   string
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd creates the root command for the docvault CLI.
func NewRootCmd() *cobra.Command {
	flags := &globalFlags{}

	cmd := &cobra.Command{
		Use:   "docvault",
		Short: "Tamper-evident document store with hybrid keyword and vector search",
		Long: `docvault keeps canonical document records in a durable store and
projects them into a full-text index and an optional vector index.

Run 'docvault serve' to start the HTTP API.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.SetVersionTemplate("docvault version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&flags.env, "env", config.GetEnv(),
		"Environment name; selects config/<env>.yaml and the log format")
	cmd.PersistentFlags().StringVar(&flags.configPath, "config", "",
		"Explicit config file path (overrides --env lookup)")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "",
		"Log level override: debug, info, warn, error")

	cmd.AddCommand(newServeCmd(flags))
	cmd.AddCommand(newReindexCmd(flags))
	cmd.AddCommand(newVerifyCmd(flags))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// load reads the configuration and builds the logger the flags select.
func (f *globalFlags) load() (config.Config, *zap.Logger, error) {
	var (
		cfg config.Config
		err error
	)
	if f.configPath != "" {
		cfg, err = config.LoadFile(f.configPath)
	} else {
		cfg, err = config.Load(f.env)
	}
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}

	level := cfg.Logging.Level
	if f.logLevel != "" {
		level = f.logLevel
	}
	logger, err := logpkg.New(logpkg.Options{Env: f.env, Level: level})
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("create logger: %w", err)
	}
	return cfg, logger, nil
}
