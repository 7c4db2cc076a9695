// Package config loads simbiotad's YAML configuration the way the teacher
// repo's pkg/sweep/config package loads its own: viper, mapstructure tags,
// SetDefault for the scalar fields that have a default. The schema itself
// follows spec §6, which in
// turn restates the original daemon_config.rs schema field for field.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// DetectorSettings holds the simple_tlsh detector's tunables.
type DetectorSettings struct {
	Threshold int `mapstructure:"threshold"`
}

// DetectorConfig selects and configures the classifier.
type DetectorConfig struct {
	Class  string           `mapstructure:"class"`
	Config DetectorSettings `mapstructure:"config"`
}

// MonitoredPath describes one fanotify mark to install.
type MonitoredPath struct {
	Path            string   `mapstructure:"path"`
	Dir             bool     `mapstructure:"dir"`
	Mount           bool     `mapstructure:"mount"`
	Filesystem      bool     `mapstructure:"filesystem"`
	EventOnChildren bool     `mapstructure:"event_on_children"`
	Mask            []string `mapstructure:"mask"`
}

// MonitorConfig is the set of marks to install at startup.
type MonitorConfig struct {
	Paths []MonitoredPath `mapstructure:"paths"`
}

// CacheConfig controls the result cache.
type CacheConfig struct {
	Disable bool `mapstructure:"disable"`
}

// DatabaseConfig points at the signature database file.
type DatabaseConfig struct {
	DatabaseFile string `mapstructure:"database_file"`
}

// QuarantineConfig controls the quarantine manager.
type QuarantineConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Smtp security levels, matching the original's SmtpConnectionSecurity enum.
const (
	SMTPSecurityNone     = "none"
	SMTPSecuritySSL      = "SSL"
	SMTPSecurityStartTLS = "STARTTLS"
)

// SMTPConfig holds outgoing mail transport settings.
type SMTPConfig struct {
	Server   string `mapstructure:"server"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Security string `mapstructure:"security"`
}

// EmailConfig controls the alert sink's email transport.
type EmailConfig struct {
	Enabled    bool       `mapstructure:"enabled"`
	Recipients []string   `mapstructure:"recipients"`
	SMTP       SMTPConfig `mapstructure:"smtp"`
}

// LoggerEntry is one entry of the logger[] array.
type LoggerEntry struct {
	Output string `mapstructure:"output"`
	Level  string `mapstructure:"level"`
	Target string `mapstructure:"target"`
	Path   string `mapstructure:"path"`
	Format string `mapstructure:"format"`
}

// Config is the full daemon configuration.
type Config struct {
	Detector   DetectorConfig   `mapstructure:"detector"`
	Monitor    MonitorConfig    `mapstructure:"monitor"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Quarantine QuarantineConfig `mapstructure:"quarantine"`
	Email      EmailConfig      `mapstructure:"email"`
	Logger     []LoggerEntry    `mapstructure:"logger"`
}

// ErrInvalidConfig wraps any validation failure in the loaded config.
var ErrInvalidConfig = errors.New("invalid configuration")

// Load reads and validates the configuration at path. A missing or
// malformed file at an explicitly requested path is a fatal config error
// (exit code 1 per spec §6's CLI contract); callers decide the exit.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrInvalidConfig, path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: unmarshalling %s: %v", ErrInvalidConfig, path, err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	return &cfg, nil
}

// Default returns the daemon's built-in fallback configuration, used when
// no config file is found and the caller did not request one explicitly
// (mirroring DaemonConfig::default() in the original).
func Default() *Config {
	return &Config{
		Detector: DetectorConfig{
			Class:  DefaultDetectorClass,
			Config: DetectorSettings{Threshold: DefaultThreshold},
		},
		Monitor: MonitorConfig{
			Paths: []MonitoredPath{
				{Path: "/usr/bin", Dir: true, EventOnChildren: true, Mask: []string{"OPEN_EXEC_PERM"}},
			},
		},
		Database: DatabaseConfig{DatabaseFile: DefaultDatabaseFile},
		Quarantine: QuarantineConfig{
			Enabled: true,
			Path:    DefaultQuarantinePath,
		},
		Logger: []LoggerEntry{
			{Output: "console", Level: "info", Target: "stderr"},
		},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("detector.class", DefaultDetectorClass)
	v.SetDefault("detector.config.threshold", DefaultThreshold)
	v.SetDefault("cache.disable", false)
	v.SetDefault("database.database_file", DefaultDatabaseFile)
	v.SetDefault("quarantine.enabled", false)
	v.SetDefault("quarantine.path", DefaultQuarantinePath)
	v.SetDefault("email.enabled", false)
	v.SetDefault("email.smtp.security", SMTPSecurityStartTLS)
	v.SetDefault("email.smtp.port", DefaultSMTPPort)
}

func validate(cfg *Config) error {
	if cfg.Detector.Class != "simple_tlsh" {
		return fmt.Errorf("unsupported detector class: %s", cfg.Detector.Class)
	}
	if cfg.Detector.Config.Threshold < 0 || cfg.Detector.Config.Threshold > 1000 {
		return fmt.Errorf("detector.config.threshold out of range [0,1000]: %d", cfg.Detector.Config.Threshold)
	}
	for i, mp := range cfg.Monitor.Paths {
		if mp.Path == "" {
			return fmt.Errorf("monitor.paths[%d]: path is required", i)
		}
		if mp.Mount && mp.Filesystem {
			return fmt.Errorf("monitor.paths[%d]: mount and filesystem are mutually exclusive", i)
		}
	}
	if cfg.Quarantine.Enabled && cfg.Quarantine.Path == "" {
		return errors.New("quarantine.enabled requires quarantine.path")
	}
	if cfg.Email.Enabled {
		switch cfg.Email.SMTP.Security {
		case SMTPSecurityNone, SMTPSecuritySSL, SMTPSecurityStartTLS:
		default:
			return fmt.Errorf("email.smtp.security must be one of none|SSL|STARTTLS, got %q", cfg.Email.SMTP.Security)
		}
		if len(cfg.Email.Recipients) == 0 {
			return errors.New("email.enabled requires at least one recipient")
		}
	}
	for i, le := range cfg.Logger {
		switch le.Output {
		case "console", "file", "syslog":
		default:
			return fmt.Errorf("logger[%d]: invalid output %q", i, le.Output)
		}
		switch strings.ToLower(le.Level) {
		case "off", "error", "warn", "warning", "info", "debug", "trace":
		default:
			return fmt.Errorf("logger[%d]: invalid level %q", i, le.Level)
		}
	}
	return nil
}
