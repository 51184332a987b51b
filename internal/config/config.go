package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/caarlos0/env/v11"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

const (
	defaultPort           = "8080"
	defaultRateLimitRPS   = 25.0
	defaultRateLimitBurst = 50
	defaultLogLevel       = "info"
	defaultResourcesDir   = "resources"

	envPrefix = "PROPTEST_"
)

// Config aggregates runtime configuration resolved from multiple sources.
// Precedence: CLI flags > Environment variables > YAML config > Defaults
type Config struct {
	Files            []string          `env:"FILES" envSeparator:","`
	DefaultsFile     string            `env:"DEFAULTS_FILE"`
	EnvPrefixes      []string          `env:"ENV_PREFIXES" envSeparator:","`
	SystemProperties map[string]string `env:"SYSTEM_PROPERTIES"`
	LogLevel         string            `env:"LOG_LEVEL"`

	Serve                bool          `env:"SERVE"`
	Port                 string        `env:"PORT"`
	ShutdownGracePeriod  time.Duration `env:"SHUTDOWN_GRACE_PERIOD"`
	ReadHeaderTimeout    time.Duration `env:"READ_HEADER_TIMEOUT"`
	WriteTimeout         time.Duration `env:"WRITE_TIMEOUT"`
	IdleTimeout          time.Duration `env:"IDLE_TIMEOUT"`
	EnableRequestLogging bool          `env:"ENABLE_REQUEST_LOGGING"`
	RateLimitRPS         float64       `env:"RATE_LIMIT_RPS"`
	RateLimitBurst       int           `env:"RATE_LIMIT_BURST"`
}

// yamlConfig represents the YAML configuration file structure.
type yamlConfig struct {
	Files                []string          `yaml:"files"`
	DefaultsFile         string            `yaml:"defaults_file"`
	EnvPrefixes          []string          `yaml:"env_prefixes"`
	SystemProperties     map[string]string `yaml:"system_properties"`
	LogLevel             string            `yaml:"log_level"`
	Serve                *bool             `yaml:"serve"`
	Port                 string            `yaml:"port"`
	ShutdownGracePeriod  string            `yaml:"shutdown_grace_period"`
	ReadHeaderTimeout    string            `yaml:"read_header_timeout"`
	WriteTimeout         string            `yaml:"write_timeout"`
	IdleTimeout          string            `yaml:"idle_timeout"`
	EnableRequestLogging *bool             `yaml:"enable_request_logging"`
	RateLimit            *yamlRateLimit    `yaml:"rate_limit"`
}

// yamlRateLimit represents the rate limit section in YAML.
type yamlRateLimit struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// CLIOverrides holds command-line flag overrides.
type CLIOverrides struct {
	ConfigFile       string
	Files            []string
	DefaultsFile     *string
	SystemProperties map[string]string
	LogLevel         *string
	Serve            *bool
	Port             *string
	RateLimitRPS     *float64
	RateLimitBurst   *int
}

// Load extracts configuration from multiple sources with precedence:
// CLI flags > Environment variables > YAML config > Defaults
func Load(overrides *CLIOverrides) (Config, error) {
	cfg := defaultConfig()

	if overrides != nil && overrides.ConfigFile != "" {
		yamlCfg, err := loadFromFile(overrides.ConfigFile)
		if err != nil {
			return Config{}, fmt.Errorf("load YAML config: %w", err)
		}
		if err := applyYAMLConfig(&cfg, yamlCfg); err != nil {
			return Config{}, fmt.Errorf("apply YAML config: %w", err)
		}
	}

	if err := applyEnvConfig(&cfg); err != nil {
		return Config{}, fmt.Errorf("load environment config: %w", err)
	}

	if overrides != nil {
		if err := applyCLIOverrides(&cfg, overrides); err != nil {
			return Config{}, err
		}
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// defaultConfig returns a Config with default values.
func defaultConfig() Config {
	return Config{
		Files:                []string{defaultResourcesDir + "/db.properties", defaultResourcesDir + "/config.properties"},
		DefaultsFile:         defaultResourcesDir + "/application.yaml",
		SystemProperties:     map[string]string{},
		LogLevel:             defaultLogLevel,
		Port:                 defaultPort,
		ShutdownGracePeriod:  10 * time.Second,
		ReadHeaderTimeout:    5 * time.Second,
		WriteTimeout:         15 * time.Second,
		IdleTimeout:          60 * time.Second,
		EnableRequestLogging: true,
		RateLimitRPS:         defaultRateLimitRPS,
		RateLimitBurst:       defaultRateLimitBurst,
	}
}

// loadFromFile loads configuration from a YAML file.
func loadFromFile(path string) (*yamlConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	return &yamlCfg, nil
}

// applyYAMLConfig applies YAML configuration to the Config struct.
func applyYAMLConfig(cfg *Config, yamlCfg *yamlConfig) error {
	if len(yamlCfg.Files) > 0 {
		cfg.Files = yamlCfg.Files
	}
	if yamlCfg.DefaultsFile != "" {
		cfg.DefaultsFile = yamlCfg.DefaultsFile
	}
	if len(yamlCfg.EnvPrefixes) > 0 {
		cfg.EnvPrefixes = yamlCfg.EnvPrefixes
	}
	if err := mergeSystemProperties(cfg, yamlCfg.SystemProperties); err != nil {
		return err
	}
	if yamlCfg.LogLevel != "" {
		cfg.LogLevel = yamlCfg.LogLevel
	}
	if yamlCfg.Serve != nil {
		cfg.Serve = *yamlCfg.Serve
	}
	if yamlCfg.Port != "" {
		cfg.Port = yamlCfg.Port
	}

	durations := []struct {
		raw string
		dst *time.Duration
	}{
		{yamlCfg.ShutdownGracePeriod, &cfg.ShutdownGracePeriod},
		{yamlCfg.ReadHeaderTimeout, &cfg.ReadHeaderTimeout},
		{yamlCfg.WriteTimeout, &cfg.WriteTimeout},
		{yamlCfg.IdleTimeout, &cfg.IdleTimeout},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("parse duration %q: %w", d.raw, err)
		}
		*d.dst = parsed
	}

	if yamlCfg.EnableRequestLogging != nil {
		cfg.EnableRequestLogging = *yamlCfg.EnableRequestLogging
	}

	if yamlCfg.RateLimit != nil {
		cfg.RateLimitRPS = yamlCfg.RateLimit.RPS
		cfg.RateLimitBurst = yamlCfg.RateLimit.Burst
	}
	return nil
}

// applyEnvConfig applies PROPTEST_* environment variables. Unset variables
// leave the current value untouched.
func applyEnvConfig(cfg *Config) error {
	fromYAML := cfg.SystemProperties
	cfg.SystemProperties = nil

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: envPrefix}); err != nil {
		return err
	}

	fromEnv := cfg.SystemProperties
	cfg.SystemProperties = fromYAML
	return mergeSystemProperties(cfg, fromEnv)
}

// applyCLIOverrides applies command-line flag overrides.
func applyCLIOverrides(cfg *Config, overrides *CLIOverrides) error {
	if len(overrides.Files) > 0 {
		cfg.Files = overrides.Files
	}

	if overrides.DefaultsFile != nil {
		cfg.DefaultsFile = *overrides.DefaultsFile
	}

	if err := mergeSystemProperties(cfg, overrides.SystemProperties); err != nil {
		return fmt.Errorf("merge system properties: %w", err)
	}

	if overrides.LogLevel != nil && *overrides.LogLevel != "" {
		cfg.LogLevel = *overrides.LogLevel
	}

	if overrides.Serve != nil {
		cfg.Serve = *overrides.Serve
	}

	if overrides.Port != nil && *overrides.Port != "" {
		cfg.Port = *overrides.Port
	}

	if overrides.RateLimitRPS != nil && *overrides.RateLimitRPS >= 0 {
		cfg.RateLimitRPS = *overrides.RateLimitRPS
	}

	if overrides.RateLimitBurst != nil && *overrides.RateLimitBurst >= 0 {
		cfg.RateLimitBurst = *overrides.RateLimitBurst
	}

	return nil
}

// mergeSystemProperties lays props over the configured system properties.
func mergeSystemProperties(cfg *Config, props map[string]string) error {
	if len(props) == 0 {
		return nil
	}
	if cfg.SystemProperties == nil {
		cfg.SystemProperties = make(map[string]string, len(props))
	}
	return mergo.Merge(&cfg.SystemProperties, props, mergo.WithOverride)
}

// validateConfig validates the final configuration.
func validateConfig(cfg Config) error {
	if cfg.RateLimitRPS < 0 {
		return errors.New("RATE_LIMIT_RPS must be >= 0")
	}
	if cfg.RateLimitBurst < 0 {
		return errors.New("RATE_LIMIT_BURST must be >= 0")
	}
	if _, err := zapcore.ParseLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	for key := range cfg.SystemProperties {
		if strings.TrimSpace(key) == "" {
			return errors.New("system property names cannot be empty")
		}
	}
	return nil
}
