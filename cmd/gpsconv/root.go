package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"gpsconv/internal/bootstrap"
	"gpsconv/internal/config"
	"gpsconv/internal/logger"
)

var version = "dev"

// rootOptions carries persistent flags and the App they produce.
type rootOptions struct {
	debug      bool
	configFile string
	envFile    string

	cfg config.Config
	app *bootstrap.App
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "gpsconv",
		Short: "gpsconv - convert GPS files with gpsbabel",
		Long: `gpsconv converts GPS data files between formats by driving gpsbabel.

It locates a working gpsbabel binary, lists the formats it supports, and runs
conversions with optional filters. Output is staged and only moved into place
after gpsbabel exits cleanly.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "Config file (YAML, JSON or TOML)")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "Dotenv file with GPSCONV_* overrides")
	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return opts.prepare(cmd)
	}

	cmd.AddCommand(newConvertCommand(opts))
	cmd.AddCommand(newFormatsCommand(opts))
	cmd.AddCommand(newVersionCommand(opts))
	cmd.AddCommand(newDoctorCommand(opts))
	cmd.AddCommand(newBinaryCommand(opts))
	cmd.AddCommand(newInstallCommand(opts))

	return cmd
}

// prepare loads configuration, installs the logger and builds the App.
func (o *rootOptions) prepare(cmd *cobra.Command) error {
	cfg, err := config.Load(config.Options{ConfigFile: o.configFile, EnvFile: o.envFile})
	if err != nil {
		return err
	}
	if o.debug {
		cfg.LogLevel = "debug"
	}
	o.cfg = cfg

	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}, cmd.ErrOrStderr())
	log.Debug("configuration loaded",
		"settings_path", cfg.SettingsPath,
		"bundle_dir", cfg.BundleDir,
		"probe_timeout", cfg.ProbeTimeout,
	)

	app, err := bootstrap.New(cfg, log)
	if err != nil {
		return fmt.Errorf("bootstrap app: %w", err)
	}
	o.app = app
	return nil
}

func execute() error {
	rootCmd := newRootCommand()
	return rootCmd.Execute()
}
