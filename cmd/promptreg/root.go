package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/cgast/promptreg/internal/config"
	"github.com/cgast/promptreg/internal/logging"
	"github.com/cgast/promptreg/pkg/store"
)

// rootOptions holds the persistent flags.
type rootOptions struct {
	configPath string
	dataDir    string
	logLevel   string
	lookup     config.LookupFunc
}

// app is the state shared by commands that touch the store.
type app struct {
	cfg    config.Config
	logger *slog.Logger
	store  *store.BoltStore
}

func (a *app) Close() error {
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}

func newRootCmd() *cobra.Command {
	return newRootCmdWithEnv(os.LookupEnv)
}

func newRootCmdWithEnv(lookup config.LookupFunc) *cobra.Command {
	opts := &rootOptions{lookup: lookup}

	root := &cobra.Command{
		Use:           "promptreg",
		Short:         "Regression tests for LLM prompts",
		Long:          "promptreg runs saved prompts against model providers and checks the responses against declared expectations.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", config.DefaultPath, "config file")
	root.PersistentFlags().StringVar(&opts.dataDir, "data-dir", "", "data directory (overrides config)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(
		newInitCmd(opts),
		newValidateCmd(opts),
		newImportCmd(opts),
		newExportCmd(opts),
		newListCmd(opts),
		newShowCmd(opts),
		newDeleteCmd(opts),
		newRunCmd(opts),
		newResultsCmd(opts),
		newDiffCmd(opts),
		newReportCmd(opts),
		newServeCmd(opts),
	)
	return root
}

// loadConfig reads the config file and applies flag overrides.
func (o *rootOptions) loadConfig(errOut io.Writer) (config.Config, *slog.Logger, error) {
	cfg, err := config.LoadConfig(o.configPath, o.lookup)
	if err != nil {
		return cfg, nil, configError(err)
	}
	if o.dataDir != "" {
		cfg.DataDir = o.dataDir
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}

	logger, err := logging.New(errOut, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return cfg, nil, configError(err)
	}
	return cfg, logger, nil
}

// open loads config and opens the store. Callers must Close the app.
func (o *rootOptions) open(cmd *cobra.Command) (*app, error) {
	cfg, logger, err := o.loadConfig(cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	st, err := store.NewBoltStore(cfg.DBPath(), logger)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, logger: logger, store: st}, nil
}
