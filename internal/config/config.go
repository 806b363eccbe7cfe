package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultPort                = "5001"
	defaultCollectorScript     = "odd_collector/__main__.py"
	defaultCollectorInterp     = "python3"
	defaultCollectorConfigPath = "collector_config.yaml"
	defaultRateLimitRPS        = 25.0
	defaultRateLimitBurst      = 50
	defaultLogLevel            = "info"
)

// Config aggregates runtime configuration resolved from multiple sources.
// Precedence: CLI flags > YAML config > Environment variables > Defaults
type Config struct {
	Port                 string
	Collector            CollectorConfig
	ShutdownGracePeriod  time.Duration
	ReadHeaderTimeout    time.Duration
	WriteTimeout         time.Duration
	IdleTimeout          time.Duration
	EnableRequestLogging bool
	LogLevel             string
	RateLimitRPS         float64
	RateLimitBurst       int
}

// CollectorConfig locates the collector script and the document it reads its settings from.
type CollectorConfig struct {
	Script      string
	Interpreter string
	Dir         string
	// Timeout of zero leaves collector runs unbounded.
	Timeout    time.Duration
	ConfigPath string
}

// yamlConfig represents the YAML configuration file structure.
type yamlConfig struct {
	Port                 string        `yaml:"port"`
	Collector            yamlCollector `yaml:"collector"`
	ShutdownGracePeriod  string        `yaml:"shutdown_grace_period"`
	ReadHeaderTimeout    string        `yaml:"read_header_timeout"`
	WriteTimeout         string        `yaml:"write_timeout"`
	IdleTimeout          string        `yaml:"idle_timeout"`
	EnableRequestLogging *bool         `yaml:"enable_request_logging"`
	LogLevel             string        `yaml:"log_level"`
	RateLimit            yamlRateLimit `yaml:"rate_limit"`
}

// yamlCollector represents the collector section in YAML.
type yamlCollector struct {
	Script      string  `yaml:"script"`
	Interpreter *string `yaml:"interpreter"`
	Dir         string  `yaml:"dir"`
	Timeout     string  `yaml:"timeout"`
	ConfigPath  string  `yaml:"config_path"`
}

// yamlRateLimit represents the rate limit section in YAML.
type yamlRateLimit struct {
	RPS   *float64 `yaml:"rps"`
	Burst *int     `yaml:"burst"`
}

// CLIOverrides holds command-line flag overrides.
type CLIOverrides struct {
	ConfigFile           string
	Port                 *string
	CollectorScript      *string
	CollectorInterpreter *string
	CollectorDir         *string
	CollectorTimeout     *time.Duration
	CollectorConfigPath  *string
	LogLevel             *string
	RateLimitRPS         *float64
	RateLimitBurst       *int
}

// Load extracts configuration from multiple sources with precedence:
// CLI flags > YAML config > Environment variables > Defaults
func Load(overrides *CLIOverrides) (Config, error) {
	cfg := defaultConfig()

	// Apply environment variables first so the YAML file can override them
	if err := applyEnvConfig(&cfg); err != nil {
		return Config{}, err
	}

	if overrides != nil && overrides.ConfigFile != "" {
		yamlCfg, err := loadFromFile(overrides.ConfigFile)
		if err != nil {
			return Config{}, fmt.Errorf("load YAML config: %w", err)
		}
		if err := applyYAMLConfig(&cfg, yamlCfg); err != nil {
			return Config{}, fmt.Errorf("apply YAML config: %w", err)
		}
	}

	if overrides != nil {
		applyCLIOverrides(&cfg, overrides)
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// defaultConfig returns a Config with default values. WriteTimeout stays zero
// because the run endpoint holds its response until the collector exits.
func defaultConfig() Config {
	return Config{
		Port: defaultPort,
		Collector: CollectorConfig{
			Script:      defaultCollectorScript,
			Interpreter: defaultCollectorInterp,
			ConfigPath:  defaultCollectorConfigPath,
		},
		ShutdownGracePeriod:  10 * time.Second,
		ReadHeaderTimeout:    5 * time.Second,
		IdleTimeout:          60 * time.Second,
		EnableRequestLogging: true,
		LogLevel:             defaultLogLevel,
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
	if yamlCfg.Port != "" {
		cfg.Port = yamlCfg.Port
	}

	if yamlCfg.Collector.Script != "" {
		cfg.Collector.Script = yamlCfg.Collector.Script
	}
	if yamlCfg.Collector.Interpreter != nil {
		cfg.Collector.Interpreter = strings.TrimSpace(*yamlCfg.Collector.Interpreter)
	}
	if yamlCfg.Collector.Dir != "" {
		cfg.Collector.Dir = yamlCfg.Collector.Dir
	}
	if yamlCfg.Collector.ConfigPath != "" {
		cfg.Collector.ConfigPath = yamlCfg.Collector.ConfigPath
	}

	durations := []struct {
		name  string
		raw   string
		field *time.Duration
	}{
		{"collector.timeout", yamlCfg.Collector.Timeout, &cfg.Collector.Timeout},
		{"shutdown_grace_period", yamlCfg.ShutdownGracePeriod, &cfg.ShutdownGracePeriod},
		{"read_header_timeout", yamlCfg.ReadHeaderTimeout, &cfg.ReadHeaderTimeout},
		{"write_timeout", yamlCfg.WriteTimeout, &cfg.WriteTimeout},
		{"idle_timeout", yamlCfg.IdleTimeout, &cfg.IdleTimeout},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		value, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", d.name, d.raw, err)
		}
		*d.field = value
	}

	if yamlCfg.EnableRequestLogging != nil {
		cfg.EnableRequestLogging = *yamlCfg.EnableRequestLogging
	}

	if yamlCfg.LogLevel != "" {
		cfg.LogLevel = yamlCfg.LogLevel
	}

	if yamlCfg.RateLimit.RPS != nil {
		cfg.RateLimitRPS = *yamlCfg.RateLimit.RPS
	}
	if yamlCfg.RateLimit.Burst != nil {
		cfg.RateLimitBurst = *yamlCfg.RateLimit.Burst
	}

	return nil
}

// applyEnvConfig applies environment variable configuration.
func applyEnvConfig(cfg *Config) error {
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		cfg.Port = port
	}

	if script := strings.TrimSpace(os.Getenv("COLLECTOR_SCRIPT")); script != "" {
		cfg.Collector.Script = script
	}

	if interpreter, ok := os.LookupEnv("COLLECTOR_INTERPRETER"); ok {
		cfg.Collector.Interpreter = strings.TrimSpace(interpreter)
	}

	if dir := strings.TrimSpace(os.Getenv("COLLECTOR_DIR")); dir != "" {
		cfg.Collector.Dir = dir
	}

	if raw := strings.TrimSpace(os.Getenv("COLLECTOR_TIMEOUT")); raw != "" {
		timeout, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid COLLECTOR_TIMEOUT %q: %w", raw, err)
		}
		cfg.Collector.Timeout = timeout
	}

	if path := strings.TrimSpace(os.Getenv("COLLECTOR_CONFIG_PATH")); path != "" {
		cfg.Collector.ConfigPath = path
	}

	if level := strings.TrimSpace(os.Getenv("LOG_LEVEL")); level != "" {
		cfg.LogLevel = level
	}

	if rps := strings.TrimSpace(os.Getenv("RATE_LIMIT_RPS")); rps != "" {
		if value, err := strconv.ParseFloat(rps, 64); err == nil && value >= 0 {
			cfg.RateLimitRPS = value
		}
	}

	if burst := strings.TrimSpace(os.Getenv("RATE_LIMIT_BURST")); burst != "" {
		if value, err := strconv.Atoi(burst); err == nil && value >= 0 {
			cfg.RateLimitBurst = value
		}
	}

	return nil
}

// applyCLIOverrides applies command-line flag overrides.
func applyCLIOverrides(cfg *Config, overrides *CLIOverrides) {
	if overrides.Port != nil && *overrides.Port != "" {
		cfg.Port = *overrides.Port
	}

	if overrides.CollectorScript != nil && *overrides.CollectorScript != "" {
		cfg.Collector.Script = *overrides.CollectorScript
	}

	if overrides.CollectorInterpreter != nil {
		cfg.Collector.Interpreter = strings.TrimSpace(*overrides.CollectorInterpreter)
	}

	if overrides.CollectorDir != nil && *overrides.CollectorDir != "" {
		cfg.Collector.Dir = *overrides.CollectorDir
	}

	if overrides.CollectorTimeout != nil && *overrides.CollectorTimeout >= 0 {
		cfg.Collector.Timeout = *overrides.CollectorTimeout
	}

	if overrides.CollectorConfigPath != nil && *overrides.CollectorConfigPath != "" {
		cfg.Collector.ConfigPath = *overrides.CollectorConfigPath
	}

	if overrides.LogLevel != nil && *overrides.LogLevel != "" {
		cfg.LogLevel = *overrides.LogLevel
	}

	if overrides.RateLimitRPS != nil && *overrides.RateLimitRPS >= 0 {
		cfg.RateLimitRPS = *overrides.RateLimitRPS
	}

	if overrides.RateLimitBurst != nil && *overrides.RateLimitBurst >= 0 {
		cfg.RateLimitBurst = *overrides.RateLimitBurst
	}
}

// validateConfig validates the final configuration.
func validateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.Collector.Script) == "" {
		return fmt.Errorf("collector script path cannot be empty")
	}
	if strings.TrimSpace(cfg.Collector.ConfigPath) == "" {
		return fmt.Errorf("collector config path cannot be empty")
	}
	if cfg.Collector.Timeout < 0 {
		return fmt.Errorf("collector timeout must be >= 0")
	}
	if cfg.RateLimitRPS < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be >= 0")
	}
	if cfg.RateLimitBurst < 0 {
		return fmt.Errorf("RATE_LIMIT_BURST must be >= 0")
	}
	return nil
}
