package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. GPSCONV_LOG_LEVEL.
const EnvPrefix = "GPSCONV"

// DefaultProbeTimeout bounds each `gpsbabel --version` validation call.
const DefaultProbeTimeout = 5 * time.Second

// Config holds runtime configuration resolved from file, env and defaults.
type Config struct {
	LogLevel     string
	LogFormat    string
	SettingsPath string
	BundleDir    string
	ProbeTimeout time.Duration
}

// Options selects the optional sources for Load.
type Options struct {
	// ConfigFile is a YAML/JSON/TOML file read by viper. Empty skips it.
	ConfigFile string
	// EnvFile is a dotenv file loaded into the process environment. A
	// missing file is not an error.
	EnvFile string
}

// Load resolves configuration: defaults, then the config file, then
// GPSCONV_* environment variables (including those from EnvFile).
func Load(opts Options) (Config, error) {
	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load env file: %w", err)
		}
	}

	v := viper.New()
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "auto")
	v.SetDefault("settings_path", DefaultSettingsPath())
	v.SetDefault("bundle_dir", "")
	v.SetDefault("probe_timeout", DefaultProbeTimeout)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := Config{
		LogLevel:     strings.ToLower(strings.TrimSpace(v.GetString("log_level"))),
		LogFormat:    strings.ToLower(strings.TrimSpace(v.GetString("log_format"))),
		SettingsPath: strings.TrimSpace(v.GetString("settings_path")),
		BundleDir:    strings.TrimSpace(v.GetString("bundle_dir")),
		ProbeTimeout: v.GetDuration("probe_timeout"),
	}
	if cfg.SettingsPath == "" {
		cfg.SettingsPath = DefaultSettingsPath()
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = DefaultProbeTimeout
	}

	return cfg, nil
}
