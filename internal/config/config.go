// Package config provides configuration management for the extremes CLI.
// Configuration is layered from defaults, an optional JSON file, a local .env
// file and finally process environment variables, then validated as a whole.
package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"log/slog"

	"github.com/joho/godotenv"

	apperrors "github.com/johnayoung/go-ohlcv-extremes/internal/errors"
)

// AppConfig represents the complete application configuration
type AppConfig struct {
	AppName    string `json:"app_name" env:"APP_NAME"`
	ConfigPath string `json:"-" env:"CONFIG_PATH"`

	Exchange ExchangeConfig `json:"exchange"`
	Analysis AnalysisConfig `json:"analysis"`
	Export   ExportConfig   `json:"export"`
	Logging  LoggingConfig  `json:"logging"`
}

// ExchangeConfig configures the Binance market data client
type ExchangeConfig struct {
	BaseURL   string `json:"base_url" env:"BINANCE_BASE_URL"`      // REST endpoint root
	APIKey    string `json:"api_key" env:"BINANCE_API_KEY"`        // Sent as X-MBX-APIKEY when set
	APISecret string `json:"api_secret" env:"BINANCE_API_SECRET"`  // Unused by public klines, kept for signed endpoints
	RateLimit int    `json:"rate_limit" env:"EXCHANGE_RATE_LIMIT"` // Requests per second
	Timeout   string `json:"timeout" env:"HTTP_TIMEOUT"`           // HTTP request timeout
	Ping      bool   `json:"ping" env:"EXCHANGE_PING"`             // Ping the exchange before fetching
}

// AnalysisConfig configures the rolling windows
type AnalysisConfig struct {
	LookBackDays    int `json:"lookback_days" env:"LOOKBACK_DAYS"`
	LookForwardDays int `json:"lookforward_days" env:"LOOKFORWARD_DAYS"`
}

// ExportConfig configures the output file
type ExportConfig struct {
	Format string `json:"format" env:"EXPORT_FORMAT"` // xlsx or csv
	Dir    string `json:"dir" env:"EXPORT_DIR"`       // Directory the output file is written to
}

// LoggingConfig configures structured logging
type LoggingConfig struct {
	Level      string `json:"level" env:"LOG_LEVEL"`             // Log level: debug, info, warn, error
	Format     string `json:"format" env:"LOG_FORMAT"`           // Log format: json, text
	Output     string `json:"output" env:"LOG_OUTPUT"`           // Output: stdout, stderr, file
	FilePath   string `json:"file_path" env:"LOG_FILE_PATH"`     // Log file path
	MaxSize    int    `json:"max_size" env:"LOG_MAX_SIZE"`       // Maximum log file size in MB
	MaxBackups int    `json:"max_backups" env:"LOG_MAX_BACKUPS"` // Maximum log file backups
	MaxAge     int    `json:"max_age" env:"LOG_MAX_AGE"`         // Maximum log file age in days
	Compress   bool   `json:"compress" env:"LOG_COMPRESS"`       // Compress old log files
}

// ConfigManager handles configuration loading and validation
type ConfigManager struct {
	configPath string
	envFile    string
	logger     *slog.Logger
}

// NewConfigManager creates a new configuration manager
func NewConfigManager(configPath string, logger *slog.Logger) *ConfigManager {
	if logger == nil {
		logger = slog.Default()
	}

	return &ConfigManager{
		configPath: configPath,
		envFile:    ".env",
		logger:     logger,
	}
}

// WithEnvFile overrides the dotenv file consulted before reading the environment.
// An empty path disables dotenv loading.
func (cm *ConfigManager) WithEnvFile(path string) *ConfigManager {
	cm.envFile = path
	return cm
}

// LoadConfig loads configuration from multiple sources with priority order:
// 1. Environment variables, including those from the .env file (highest priority)
// 2. Configuration file
// 3. Default values (lowest priority)
func (cm *ConfigManager) LoadConfig(ctx context.Context) (*AppConfig, error) {
	config := DefaultConfig()

	if cm.configPath == "" {
		cm.configPath = os.Getenv("CONFIG_PATH")
	}
	config.ConfigPath = cm.configPath

	if cm.configPath != "" {
		if err := cm.loadFromFile(config); err != nil {
			return nil, apperrors.NewConfigurationError("load_config_file", err)
		}
	}

	if err := LoadDotEnv(cm.envFile, cm.logger); err != nil {
		return nil, apperrors.NewConfigurationError("load_dotenv", err)
	}

	if err := cm.loadFromEnv(config); err != nil {
		return nil, apperrors.NewConfigurationError("load_env", err)
	}

	if err := cm.validateConfig(config); err != nil {
		return nil, apperrors.NewConfigurationError("validate_config", err)
	}

	cm.logger.DebugContext(ctx, "configuration loaded",
		"config_path", cm.configPath,
		"base_url", config.Exchange.BaseURL,
		"lookback_days", config.Analysis.LookBackDays,
		"lookforward_days", config.Analysis.LookForwardDays,
		"export_format", config.Export.Format,
		"log_level", config.Logging.Level)

	return config, nil
}

// LoadDotEnv loads variables from a dotenv file into the process environment.
// Variables already present in the environment are left untouched, and a
// missing file is not an error.
func LoadDotEnv(path string, logger *slog.Logger) error {
	if path == "" {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}

	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Debug("no dotenv file found, using environment only", "path", path)
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}

	logger.Debug("loaded environment from dotenv file", "path", path)
	return nil
}

// loadFromFile loads configuration from a JSON file. A path that was asked
// for explicitly must exist.
func (cm *ConfigManager) loadFromFile(config *AppConfig) error {
	data, err := os.ReadFile(cm.configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", cm.configPath, err)
	}

	if err := json.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", cm.configPath, err)
	}

	cm.logger.Debug("loaded configuration from file", "path", cm.configPath)
	return nil
}

// loadFromEnv loads configuration from environment variables.
// Malformed numeric or boolean values are logged and ignored.
func (cm *ConfigManager) loadFromEnv(config *AppConfig) error {
	if val := os.Getenv("APP_NAME"); val != "" {
		config.AppName = val
	}

	// Exchange
	if val := os.Getenv("BINANCE_BASE_URL"); val != "" {
		config.Exchange.BaseURL = val
	}
	if val := os.Getenv("BINANCE_API_KEY"); val != "" {
		config.Exchange.APIKey = val
	}
	if val := os.Getenv("BINANCE_API_SECRET"); val != "" {
		config.Exchange.APISecret = val
	}
	cm.envInt("EXCHANGE_RATE_LIMIT", &config.Exchange.RateLimit)
	if val := os.Getenv("HTTP_TIMEOUT"); val != "" {
		config.Exchange.Timeout = val
	}
	cm.envBool("EXCHANGE_PING", &config.Exchange.Ping)

	// Analysis
	cm.envInt("LOOKBACK_DAYS", &config.Analysis.LookBackDays)
	cm.envInt("LOOKFORWARD_DAYS", &config.Analysis.LookForwardDays)

	// Export
	if val := os.Getenv("EXPORT_FORMAT"); val != "" {
		config.Export.Format = strings.ToLower(val)
	}
	if val := os.Getenv("EXPORT_DIR"); val != "" {
		config.Export.Dir = val
	}

	// Logging
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		config.Logging.Level = strings.ToLower(val)
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		config.Logging.Format = strings.ToLower(val)
	}
	if val := os.Getenv("LOG_OUTPUT"); val != "" {
		config.Logging.Output = strings.ToLower(val)
	}
	if val := os.Getenv("LOG_FILE_PATH"); val != "" {
		config.Logging.FilePath = val
	}
	cm.envInt("LOG_MAX_SIZE", &config.Logging.MaxSize)
	cm.envInt("LOG_MAX_BACKUPS", &config.Logging.MaxBackups)
	cm.envInt("LOG_MAX_AGE", &config.Logging.MaxAge)
	cm.envBool("LOG_COMPRESS", &config.Logging.Compress)

	cm.logger.Debug("loaded configuration from environment variables")
	return nil
}

func (cm *ConfigManager) envInt(key string, dst *int) {
	val := os.Getenv(key)
	if val == "" {
		return
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		cm.logger.Warn("ignoring invalid integer environment variable", "key", key, "value", val)
		return
	}
	*dst = n
}

func (cm *ConfigManager) envBool(key string, dst *bool) {
	val := os.Getenv(key)
	if val == "" {
		return
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		cm.logger.Warn("ignoring invalid boolean environment variable", "key", key, "value", val)
		return
	}
	*dst = b
}

// validateConfig validates the configuration for consistency and required fields
func (cm *ConfigManager) validateConfig(config *AppConfig) error {
	var errs []string

	if config.Exchange.BaseURL == "" {
		errs = append(errs, "exchange.base_url is required")
	}
	if config.Exchange.RateLimit <= 0 {
		errs = append(errs, "exchange.rate_limit must be greater than 0")
	}
	if d, err := time.ParseDuration(config.Exchange.Timeout); err != nil {
		errs = append(errs, fmt.Sprintf("exchange.timeout is not a valid duration: %v", err))
	} else if d <= 0 {
		errs = append(errs, "exchange.timeout must be positive")
	}

	if config.Analysis.LookBackDays <= 0 {
		errs = append(errs, "analysis.lookback_days must be greater than 0")
	}
	if config.Analysis.LookForwardDays <= 0 {
		errs = append(errs, "analysis.lookforward_days must be greater than 0")
	}

	validFormats := map[string]bool{"xlsx": true, "csv": true}
	if !validFormats[config.Export.Format] {
		errs = append(errs, "export.format must be one of: xlsx, csv")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[config.Logging.Level] {
		errs = append(errs, "logging.level must be one of: debug, info, warn, error")
	}

	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[config.Logging.Format] {
		errs = append(errs, "logging.format must be one of: json, text")
	}

	validOutputs := map[string]bool{"stdout": true, "stderr": true, "file": true}
	if !validOutputs[config.Logging.Output] {
		errs = append(errs, "logging.output must be one of: stdout, stderr, file")
	}
	if config.Logging.Output == "file" && config.Logging.FilePath == "" {
		errs = append(errs, "logging.file_path is required when logging.output is file")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation errors:\n- %s", strings.Join(errs, "\n- "))
	}

	return nil
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *AppConfig {
	return &AppConfig{
		AppName: "ohlcv-extremes",
		Exchange: ExchangeConfig{
			BaseURL:   "https://api.binance.com",
			RateLimit: 10,
			Timeout:   "30s",
		},
		Analysis: AnalysisConfig{
			LookBackDays:    7,
			LookForwardDays: 5,
		},
		Export: ExportConfig{
			Format: "xlsx",
			Dir:    ".",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stderr",
			MaxSize:    100, // 100MB
			MaxBackups: 5,
			MaxAge:     30, // 30 days
			Compress:   true,
		},
	}
}

// HTTPTimeout returns the parsed request timeout, falling back to 30s
func (c ExchangeConfig) HTTPTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// String returns a string representation of the configuration (excluding sensitive data)
func (c *AppConfig) String() string {
	sanitized := *c
	if sanitized.Exchange.APIKey != "" {
		sanitized.Exchange.APIKey = "[REDACTED]"
	}
	if sanitized.Exchange.APISecret != "" {
		sanitized.Exchange.APISecret = "[REDACTED]"
	}

	data, _ := json.MarshalIndent(&sanitized, "", "  ")
	return string(data)
}
