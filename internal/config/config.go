// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger      LoggerConfig      `mapstructure:"logger" yaml:"logger"`
	Browser     BrowserConfig     `mapstructure:"browser" yaml:"browser"`
	Executor    ExecutorConfig    `mapstructure:"executor" yaml:"executor"`
	Interpreter InterpreterConfig `mapstructure:"interpreter" yaml:"interpreter"`
	LLM         LLMConfig         `mapstructure:"llm" yaml:"llm"`
	Storage     StorageConfig     `mapstructure:"storage" yaml:"storage"`
}

// LoggerConfig controls the global zap logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"` // "console" or "json"
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"` // megabytes
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"` // days
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// BrowserConfig controls the per-execution Chrome session. The viewport is
// fixed for the whole session so repeated runs render identically.
type BrowserConfig struct {
	Headless           bool          `mapstructure:"headless" yaml:"headless"`
	ViewportWidth      int           `mapstructure:"viewport_width" yaml:"viewport_width"`
	ViewportHeight     int           `mapstructure:"viewport_height" yaml:"viewport_height"`
	UserAgent          string        `mapstructure:"user_agent" yaml:"user_agent"`
	NavigationTimeout  time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	NetworkQuietPeriod time.Duration `mapstructure:"network_quiet_period" yaml:"network_quiet_period"`
	ScreenshotsDir     string        `mapstructure:"screenshots_dir" yaml:"screenshots_dir"`
}

// ExecutorConfig controls script execution.
type ExecutorConfig struct {
	ResultsDir string `mapstructure:"results_dir" yaml:"results_dir"`
}

// InterpreterConfig controls natural-language interpretation.
type InterpreterConfig struct {
	UseLLM bool `mapstructure:"use_llm" yaml:"use_llm"`
}

// LLMConfig configures the language-model collaborator used as the
// interpretation fallback.
type LLMConfig struct {
	Provider          string        `mapstructure:"provider" yaml:"provider"`
	Model             string        `mapstructure:"model" yaml:"model"`
	APIKey            string        `mapstructure:"api_key" yaml:"api_key"`
	Endpoint          string        `mapstructure:"endpoint" yaml:"endpoint"`
	APITimeout        time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	Temperature       float32       `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens         int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	RequestsPerMinute float64       `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
}

// StorageConfig locates the on-disk stores.
type StorageConfig struct {
	ScriptsDir    string `mapstructure:"scripts_dir" yaml:"scripts_dir"`
	KnowledgeFile string `mapstructure:"knowledge_file" yaml:"knowledge_file"`
	PatternsFile  string `mapstructure:"patterns_file" yaml:"patterns_file"`
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "testweaver")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.viewport_width", 1280)
	v.SetDefault("browser.viewport_height", 720)
	v.SetDefault("browser.user_agent", "testweaver/1.0 (deterministic testing)")
	v.SetDefault("browser.navigation_timeout", "90s")
	v.SetDefault("browser.network_quiet_period", "1500ms")
	v.SetDefault("browser.screenshots_dir", "./screenshots")

	// -- Executor --
	v.SetDefault("executor.results_dir", "./test_results")

	// -- Interpreter / LLM --
	v.SetDefault("interpreter.use_llm", false)
	v.SetDefault("llm.provider", "gemini")
	v.SetDefault("llm.model", "gemini-2.5-flash")
	v.SetDefault("llm.api_timeout", "60s")
	// Low temperature for a deterministic preference. Replies are still
	// not guaranteed bit-identical across provider versions.
	v.SetDefault("llm.temperature", 0.1)
	v.SetDefault("llm.max_tokens", 2048)
	v.SetDefault("llm.requests_per_minute", 30)

	// -- Storage --
	v.SetDefault("storage.scripts_dir", "./test_scripts")
	v.SetDefault("storage.knowledge_file", "./knowledge_base/knowledge_base.json")
	v.SetDefault("storage.patterns_file", "./knowledge_base/patterns.json")
}

// NewConfigFromViper creates a configuration instance from a viper object,
// expanding home-relative paths and validating the result.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	// Bind the API key to the environment so it never needs to live in a
	// config file.
	_ = v.BindEnv("llm.api_key", "TESTWEAVER_LLM_API_KEY")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	for _, p := range []*string{
		&cfg.Browser.ScreenshotsDir,
		&cfg.Executor.ResultsDir,
		&cfg.Storage.ScriptsDir,
		&cfg.Storage.KnowledgeFile,
		&cfg.Storage.PatternsFile,
	} {
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return nil, fmt.Errorf("failed to expand path %q: %w", *p, err)
		}
		*p = expanded
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// NewDefaultConfig creates a configuration populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Cannot happen with defaults only.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Browser.ViewportWidth <= 0 || c.Browser.ViewportHeight <= 0 {
		return fmt.Errorf("browser.viewport dimensions must be positive integers")
	}
	if c.Browser.NavigationTimeout <= 0 {
		return fmt.Errorf("browser.navigation_timeout must be a positive duration")
	}
	if c.Storage.ScriptsDir == "" {
		return fmt.Errorf("storage.scripts_dir is required")
	}
	if c.Interpreter.UseLLM {
		if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
			return fmt.Errorf("llm.temperature must be between 0.0 and 2.0")
		}
		if c.LLM.RequestsPerMinute <= 0 {
			return fmt.Errorf("llm.requests_per_minute must be positive")
		}
	}
	return nil
}
