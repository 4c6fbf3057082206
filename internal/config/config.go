package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"codeberg.org/mutker/ffdash/internal/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultEnvPrefix     = "FFDASH"
	DefaultLogLevel      = string(LogLevelInfo)
	DefaultDBPath        = "/var/lib/ffdash/ffdash.db"
	DefaultMetricsAddr   = "127.0.0.1:9477"
	DefaultPingInterval  = 2 * time.Second
	DefaultAlertCooldown = 1500 * time.Millisecond
	DefaultMaxSessions   = 20
	// DefaultServer is used when no address is configured or stored.
	DefaultServer        = "192.168.1.110:8000"

	configName = "ffdash"
	configType = "toml"
)

type Config struct {
	// Server is the desktop server address as typed by the user. Empty means
	// reuse the last address stored in the database, see ServerAddress.
	Server        string        `mapstructure:"server"`
	DBPath        string        `mapstructure:"db_path"`
	MaxSessions   int           `mapstructure:"max_sessions"`
	LogLevel      string        `mapstructure:"log_level"`
	Demo          bool          `mapstructure:"demo"`
	MetricsAddr   string        `mapstructure:"metrics_addr"`
	PingInterval  time.Duration `mapstructure:"ping_interval"`
	AlertCooldown time.Duration `mapstructure:"alert_cooldown"`
	RemoteURL     string        `mapstructure:"remote_url"`
	RemoteToken   string        `mapstructure:"remote_token"`
	LicenseKey    string        `mapstructure:"license_key"`
	PIDFile       string        `mapstructure:"pid_file"`
}

// Load merges defaults, the TOML config file, FFDASH_* environment
// variables and the command line, in increasing order of precedence. args
// excludes the program name.
func Load(args []string, opts ...Option) (*Config, error) {
	errFactory := errors.New()

	o := options{envPrefix: DefaultEnvPrefix}
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
		}
	}

	v := viper.New()
	setDefaults(v)

	flags := newFlagSet()
	if err := flags.Parse(args); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}
	if err := bindFlags(v, flags); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	v.SetEnvPrefix(o.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	path := o.configPath
	if path == "" {
		path, _ = flags.GetString("config")
	}
	if path == "" {
		path = os.Getenv(o.envPrefix + "_CONFIG")
	}
	if err := readConfigFile(v, path); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	errFactory := errors.New()

	if !LogLevel(c.LogLevel).IsValid() {
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}
	if c.PingInterval <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, c.PingInterval)
	}
	if c.AlertCooldown < 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, c.AlertCooldown)
	}
	if c.MaxSessions <= 0 {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "max_sessions must be positive")
	}
	if c.DBPath == "" {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "db_path must not be empty")
	}

	return nil
}

// ServerAddress returns the configured server, then stored, then
// DefaultServer, whichever is set first.
func (c *Config) ServerAddress(stored string) string {
	switch {
	case c.Server != "":
		return c.Server
	case stored != "":
		return stored
	default:
		return DefaultServer
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server", "")
	v.SetDefault("db_path", DefaultDBPath)
	v.SetDefault("max_sessions", DefaultMaxSessions)
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("demo", false)
	v.SetDefault("metrics_addr", DefaultMetricsAddr)
	v.SetDefault("ping_interval", DefaultPingInterval)
	v.SetDefault("alert_cooldown", DefaultAlertCooldown)
	v.SetDefault("remote_url", "")
	v.SetDefault("remote_token", "")
	v.SetDefault("license_key", "")
	v.SetDefault("pid_file", "")
}

func newFlagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("ffdash", pflag.ContinueOnError)

	flags.String("config", "", "Path to config file")
	flags.String("server", "", "Desktop server address (host[:port])")
	flags.String("db-path", DefaultDBPath, "Path to the session database")
	flags.Int("max-sessions", DefaultMaxSessions, "Number of sessions to keep")
	flags.String("log-level", DefaultLogLevel, "Log level (debug, info, warning, error)")
	flags.Bool("demo", false, "Run on synthetic data without a server")
	flags.String("metrics-addr", DefaultMetricsAddr, "Listen address for metrics and status, empty to disable")
	flags.Duration("ping-interval", DefaultPingInterval, "Interval between latency probes")
	flags.Duration("alert-cooldown", DefaultAlertCooldown, "Minimum time between two alert notifications")
	flags.String("remote-url", "", "Base URL to mirror recorded sessions to")
	flags.String("remote-token", "", "Bearer token for the session mirror")
	flags.String("license-key", "", "License key")
	flags.String("pid-file", "", "Path to PID file")

	return flags
}

// bindFlags maps every dashed flag to its snake_case key. Only flags set on
// the command line override other sources.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var err error
	flags.VisitAll(func(f *pflag.Flag) {
		if err != nil || f.Name == "config" {
			return
		}
		err = v.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f)
	})
	return err
}

func readConfigFile(v *viper.Viper, path string) error {
	errFactory := errors.New()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType(configType)
		if err := v.ReadInConfig(); err != nil {
			return errFactory.Wrap(errors.ErrReadConfig, err)
		}
		return nil
	}

	v.SetConfigName(configName)
	v.SetConfigType(configType)
	v.AddConfigPath("/etc")
	if dir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(dir, configName))
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return errFactory.Wrap(errors.ErrReadConfig, err)
		}
	}

	return nil
}
