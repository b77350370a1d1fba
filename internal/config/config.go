// File: internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/xkilldash9x/souper/internal/query"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Browser() BrowserConfig
	Network() NetworkConfig
	Query() QueryConfig

	// Browser Setters
	SetBrowserDriver(string)
	SetBrowserHeadless(bool)
	SetBrowserIgnoreTLSErrors(bool)

	// Network Setters
	SetNetworkNavigationTimeout(d time.Duration)

	// Query Setters
	SetQueryTextMatch(string)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	BrowserCfg BrowserConfig `mapstructure:"browser" yaml:"browser"`
	NetworkCfg NetworkConfig `mapstructure:"network" yaml:"network"`
	QueryCfg   QueryConfig   `mapstructure:"query" yaml:"query"`
}

var _ Interface = (*Config)(nil)

func (c *Config) Logger() LoggerConfig   { return c.LoggerCfg }
func (c *Config) Browser() BrowserConfig { return c.BrowserCfg }
func (c *Config) Network() NetworkConfig { return c.NetworkCfg }
func (c *Config) Query() QueryConfig     { return c.QueryCfg }

// Browser Setters
func (c *Config) SetBrowserDriver(d string)        { c.BrowserCfg.Driver = d }
func (c *Config) SetBrowserHeadless(b bool)        { c.BrowserCfg.Headless = b }
func (c *Config) SetBrowserIgnoreTLSErrors(b bool) { c.BrowserCfg.IgnoreTLSErrors = b }

// Network Setters
func (c *Config) SetNetworkNavigationTimeout(d time.Duration) {
	c.NetworkCfg.NavigationTimeout = d
}

// Query Setters
func (c *Config) SetQueryTextMatch(m string) { c.QueryCfg.TextMatch = m }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig selects and tunes the browser behind a session.
type BrowserConfig struct {
	// Driver is "chrome" (DevTools Protocol) or "static" (HTTP + in-process DOM).
	Driver          string         `mapstructure:"driver" yaml:"driver"`
	Headless        bool           `mapstructure:"headless" yaml:"headless"`
	ExecPath        string         `mapstructure:"exec_path" yaml:"exec_path"`
	RemoteURL       string         `mapstructure:"remote_url" yaml:"remote_url"`
	IgnoreTLSErrors bool           `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	UserAgent       string         `mapstructure:"user_agent" yaml:"user_agent"`
	Concurrency     int            `mapstructure:"concurrency" yaml:"concurrency"`
	StartupTimeout  time.Duration  `mapstructure:"startup_timeout" yaml:"startup_timeout"`
	Args            []string       `mapstructure:"args" yaml:"args"`
	Viewport        map[string]int `mapstructure:"viewport" yaml:"viewport"`
}

// NetworkConfig bounds how long the bridge waits on the browser.
type NetworkConfig struct {
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	ActionTimeout     time.Duration `mapstructure:"action_timeout" yaml:"action_timeout"`
	// RequestTimeout applies to the static driver's HTTP requests.
	RequestTimeout   time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	ActionsPerSecond float64       `mapstructure:"actions_per_second" yaml:"actions_per_second"`
}

// QueryConfig sets defaults for text queries.
type QueryConfig struct {
	// TextMatch is "exact" or "contains" ("equals" and "partial" are aliases).
	TextMatch     string `mapstructure:"text_match" yaml:"text_match"`
	CaseSensitive bool   `mapstructure:"case_sensitive" yaml:"case_sensitive"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "souper")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	v.SetDefault("browser.driver", "chrome")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.remote_url", "")
	v.SetDefault("browser.user_agent", "")
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.concurrency", 4)
	v.SetDefault("browser.startup_timeout", "30s")
	v.SetDefault("browser.viewport", map[string]int{"width": 1920, "height": 1080})

	// -- Network --
	v.SetDefault("network.navigation_timeout", "30s")
	v.SetDefault("network.action_timeout", "10s")
	v.SetDefault("network.request_timeout", "30s")
	v.SetDefault("network.actions_per_second", 0)

	// -- Query --
	v.SetDefault("query.text_match", "exact")
	v.SetDefault("query.case_sensitive", true)
}

// NewConfigFromViper creates a new configuration instance from a viper object.
// SOUPER_* environment variables override file values, e.g.
// SOUPER_BROWSER_DRIVER=static.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix("SOUPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	switch strings.ToLower(c.BrowserCfg.Driver) {
	case "chrome", "cdp", "static":
	default:
		return fmt.Errorf("browser.driver must be one of chrome, static (got %q)", c.BrowserCfg.Driver)
	}
	if c.BrowserCfg.Concurrency <= 0 {
		return fmt.Errorf("browser.concurrency must be a positive integer")
	}
	if c.NetworkCfg.NavigationTimeout <= 0 {
		return fmt.Errorf("network.navigation_timeout must be a positive duration")
	}
	if c.NetworkCfg.ActionTimeout <= 0 {
		return fmt.Errorf("network.action_timeout must be a positive duration")
	}
	if c.NetworkCfg.ActionsPerSecond < 0 {
		return fmt.Errorf("network.actions_per_second cannot be negative")
	}
	if _, err := query.ParseTextMatch(strings.ToLower(c.QueryCfg.TextMatch)); err != nil {
		return fmt.Errorf("query.text_match: %w", err)
	}
	return nil
}

// WindowSize returns the configured viewport, or zeros when unset.
func (b BrowserConfig) WindowSize() (width, height int) {
	return b.Viewport["width"], b.Viewport["height"]
}
