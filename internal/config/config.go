// Package config provides configuration management for weft using Viper,
// loading from .weft.yml, environment variables with the WEFT_ prefix, and
// command-line flags.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// Cache backends.
const (
	BackendDisk   = "disk"
	BackendSQLite = "sqlite"
)

type Config struct {
	Enabled   bool            `yaml:"enabled"`
	Debug     DebugConfig     `yaml:"debug"`
	Cache     CacheConfig     `yaml:"cache"`
	Security  SecurityConfig  `yaml:"security"`
	Templates TemplatesConfig `yaml:"templates"`
	Serve     ServeConfig     `yaml:"serve"`

	TargetFiles []string `yaml:"-"` // CLI arguments, not from config file
}

type DebugConfig struct {
	Enabled bool   `yaml:"enabled"`
	LogDir  string `yaml:"log_dir"`
}

type CacheConfig struct {
	Enabled        bool   `yaml:"enabled"`
	TTLSeconds     int    `yaml:"ttl_seconds"`
	Dir            string `yaml:"dir"`
	Backend        string `yaml:"backend"`
	MaxMemoryBytes int64  `yaml:"max_memory_bytes"`
	SweepSchedule  string `yaml:"sweep_schedule"`
}

type SecurityConfig struct {
	ExtraAllowedFunctions []string `yaml:"extra_allowed_functions"`
	DeniedFunctions       []string `yaml:"denied_functions"`
	MaxNestingDepth       int      `yaml:"max_nesting_depth"`
	MaxExpressionLength   int      `yaml:"max_expression_length"`
}

type TemplatesConfig struct {
	Paths      []string `yaml:"paths"`
	Extensions []string `yaml:"extensions"`
}

type ServeConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

func Load() (*Config, error) {
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Enabled defaults to true; only an explicit false disables processing.
	if !viper.IsSet("enabled") {
		config.Enabled = true
	} else {
		config.Enabled = viper.GetBool("enabled")
	}

	if !viper.IsSet("cache.enabled") {
		config.Cache.Enabled = true
	} else {
		config.Cache.Enabled = viper.GetBool("cache.enabled")
	}
	if viper.IsSet("debug.enabled") {
		config.Debug.Enabled = viper.GetBool("debug.enabled")
	}

	// Underscore-named keys don't survive viper.Unmarshal's field matching;
	// read them explicitly.
	if viper.IsSet("cache.ttl_seconds") {
		config.Cache.TTLSeconds = viper.GetInt("cache.ttl_seconds")
	}
	if viper.IsSet("cache.max_memory_bytes") {
		config.Cache.MaxMemoryBytes = viper.GetInt64("cache.max_memory_bytes")
	}
	if viper.IsSet("cache.sweep_schedule") {
		config.Cache.SweepSchedule = viper.GetString("cache.sweep_schedule")
	}
	if viper.IsSet("security.max_nesting_depth") {
		config.Security.MaxNestingDepth = viper.GetInt("security.max_nesting_depth")
	}
	if viper.IsSet("security.max_expression_length") {
		config.Security.MaxExpressionLength = viper.GetInt("security.max_expression_length")
	}
	if viper.IsSet("debug.log_dir") {
		config.Debug.LogDir = viper.GetString("debug.log_dir")
	}

	// Handle slices set via viper (workaround for viper slice handling)
	if viper.IsSet("security.extra_allowed_functions") && len(config.Security.ExtraAllowedFunctions) == 0 {
		config.Security.ExtraAllowedFunctions = viper.GetStringSlice("security.extra_allowed_functions")
	}
	if viper.IsSet("security.denied_functions") && len(config.Security.DeniedFunctions) == 0 {
		config.Security.DeniedFunctions = viper.GetStringSlice("security.denied_functions")
	}
	if viper.IsSet("templates.paths") && len(config.Templates.Paths) == 0 {
		config.Templates.Paths = viper.GetStringSlice("templates.paths")
	}
	if viper.IsSet("serve.allowed_origins") && len(config.Serve.AllowedOrigins) == 0 {
		config.Serve.AllowedOrigins = viper.GetStringSlice("serve.allowed_origins")
	}

	applyDefaults(&config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &config, nil
}

// Default returns the configuration used when no config file is present.
func Default() *Config {
	config := &Config{Enabled: true}
	config.Cache.Enabled = true
	applyDefaults(config)
	return config
}

func applyDefaults(config *Config) {
	if config.Cache.Dir == "" {
		config.Cache.Dir = ".weft/cache"
	}
	if config.Cache.Backend == "" {
		config.Cache.Backend = BackendDisk
	}
	if config.Cache.MaxMemoryBytes == 0 {
		config.Cache.MaxMemoryBytes = 32 * 1024 * 1024
	}
	if config.Security.MaxNestingDepth == 0 {
		config.Security.MaxNestingDepth = 10
	}
	if config.Security.MaxExpressionLength == 0 {
		config.Security.MaxExpressionLength = 1000
	}
	if len(config.Templates.Paths) == 0 {
		config.Templates.Paths = []string{"./templates"}
	}
	if len(config.Templates.Extensions) == 0 {
		config.Templates.Extensions = []string{".tpl", ".tmpl", ".html"}
	}
	if config.Serve.Host == "" {
		config.Serve.Host = "localhost"
	}
	if config.Serve.Port == 0 {
		config.Serve.Port = 8120
	}
	if config.Debug.LogDir == "" {
		config.Debug.LogDir = ".weft/logs"
	}
}

// validateConfig validates configuration values for security and correctness
func validateConfig(config *Config) error {
	if err := validateServeConfig(&config.Serve); err != nil {
		return fmt.Errorf("serve config: %w", err)
	}
	if err := validateCacheConfig(&config.Cache); err != nil {
		return fmt.Errorf("cache config: %w", err)
	}
	if err := validateSecurityConfig(&config.Security); err != nil {
		return fmt.Errorf("security config: %w", err)
	}
	for _, path := range config.Templates.Paths {
		if err := validatePath(path); err != nil {
			return fmt.Errorf("templates config: invalid path %q: %w", path, err)
		}
	}
	return nil
}

func validateServeConfig(config *ServeConfig) error {
	// Allow 0 for system-assigned ports in testing.
	if config.Port < 0 || config.Port > 65535 {
		return fmt.Errorf("port %d is not in valid range 0-65535", config.Port)
	}
	if config.Host != "" {
		dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\"}
		for _, char := range dangerousChars {
			if strings.Contains(config.Host, char) {
				return fmt.Errorf("host contains dangerous character: %s", char)
			}
		}
	}
	return nil
}

func validateCacheConfig(config *CacheConfig) error {
	if config.TTLSeconds < 0 {
		return fmt.Errorf("ttl_seconds must not be negative")
	}
	if config.Backend != BackendDisk && config.Backend != BackendSQLite {
		return fmt.Errorf("backend must be %q or %q, got %q", BackendDisk, BackendSQLite, config.Backend)
	}
	if config.Dir != "" {
		cleanPath := filepath.Clean(config.Dir)
		if strings.Contains(cleanPath, "..") {
			return fmt.Errorf("dir contains path traversal: %s", config.Dir)
		}
	}
	if config.SweepSchedule != "" {
		if _, err := cron.ParseStandard(config.SweepSchedule); err != nil {
			return fmt.Errorf("sweep_schedule is not a valid cron spec: %w", err)
		}
	}
	return nil
}

func validateSecurityConfig(config *SecurityConfig) error {
	if config.MaxNestingDepth < 1 {
		return fmt.Errorf("max_nesting_depth must be at least 1")
	}
	if config.MaxExpressionLength < 1 {
		return fmt.Errorf("max_expression_length must be at least 1")
	}
	return nil
}

// validatePath validates a file path for security
func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("empty path")
	}
	cleanPath := filepath.Clean(path)
	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("path contains traversal: %s", path)
	}
	dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'"}
	for _, char := range dangerousChars {
		if strings.Contains(cleanPath, char) {
			return fmt.Errorf("path contains dangerous character: %s", char)
		}
	}
	return nil
}
