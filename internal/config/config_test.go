// File: internal/config/config_test.go
package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -- Constructor and Defaults Tests --

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger().Level)
	assert.Equal(t, "souper", cfg.Logger().ServiceName)
	assert.Equal(t, "chrome", cfg.Browser().Driver)
	assert.True(t, cfg.Browser().Headless)
	assert.Equal(t, 4, cfg.Browser().Concurrency)
	assert.Equal(t, 30*time.Second, cfg.Browser().StartupTimeout)
	assert.Equal(t, 30*time.Second, cfg.Network().NavigationTimeout)
	assert.Equal(t, 10*time.Second, cfg.Network().ActionTimeout)
	assert.Zero(t, cfg.Network().ActionsPerSecond)
	assert.Equal(t, "exact", cfg.Query().TextMatch)
	assert.True(t, cfg.Query().CaseSensitive)

	w, h := cfg.Browser().WindowSize()
	assert.Equal(t, 1920, w)
	assert.Equal(t, 1080, h)

	require.NoError(t, cfg.Validate(), "defaults must always validate")
}

// -- Validation Logic Tests --

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"static driver", func(c *Config) { c.BrowserCfg.Driver = "static" }, ""},
		{"contains matching", func(c *Config) { c.QueryCfg.TextMatch = "contains" }, ""},
		{"partial alias", func(c *Config) { c.QueryCfg.TextMatch = "Partial" }, ""},
		{"unknown driver", func(c *Config) { c.BrowserCfg.Driver = "firefox" }, "browser.driver must be one of"},
		{"zero concurrency", func(c *Config) { c.BrowserCfg.Concurrency = 0 }, "browser.concurrency must be a positive integer"},
		{"zero navigation timeout", func(c *Config) { c.NetworkCfg.NavigationTimeout = 0 }, "network.navigation_timeout must be a positive duration"},
		{"negative action timeout", func(c *Config) { c.NetworkCfg.ActionTimeout = -time.Second }, "network.action_timeout must be a positive duration"},
		{"negative pacing", func(c *Config) { c.NetworkCfg.ActionsPerSecond = -1 }, "network.actions_per_second cannot be negative"},
		{"unknown text match", func(c *Config) { c.QueryCfg.TextMatch = "regex" }, "query.text_match: unknown text match mode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSetters(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.SetBrowserDriver("static")
	cfg.SetBrowserHeadless(false)
	cfg.SetBrowserIgnoreTLSErrors(true)
	cfg.SetNetworkNavigationTimeout(5 * time.Second)
	cfg.SetQueryTextMatch("contains")

	assert.Equal(t, "static", cfg.Browser().Driver)
	assert.False(t, cfg.Browser().Headless)
	assert.True(t, cfg.Browser().IgnoreTLSErrors)
	assert.Equal(t, 5*time.Second, cfg.Network().NavigationTimeout)
	assert.Equal(t, "contains", cfg.Query().TextMatch)
}

// -- Viper Loading Tests --

func TestNewConfigFromViper(t *testing.T) {
	t.Run("YAML Overrides Defaults", func(t *testing.T) {
		yamlBytes := []byte(`
browser:
  driver: static
  concurrency: 2
network:
  navigation_timeout: 5s
  actions_per_second: 2.5
query:
  text_match: contains
`)
		v := viper.New()
		SetDefaults(v)
		v.SetConfigType("yaml")
		require.NoError(t, v.ReadConfig(bytes.NewBuffer(yamlBytes)))

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)

		assert.Equal(t, "static", cfg.Browser().Driver)
		assert.Equal(t, 2, cfg.Browser().Concurrency)
		assert.Equal(t, 5*time.Second, cfg.Network().NavigationTimeout)
		assert.Equal(t, 2.5, cfg.Network().ActionsPerSecond)
		assert.Equal(t, "contains", cfg.Query().TextMatch)
		// Untouched keys keep their defaults.
		assert.Equal(t, 10*time.Second, cfg.Network().ActionTimeout)
		assert.Equal(t, "info", cfg.Logger().Level)
	})

	t.Run("Validation Failure", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.Set("browser.concurrency", 0)

		cfg, err := NewConfigFromViper(v)
		assert.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "invalid configuration")
		assert.Contains(t, err.Error(), "browser.concurrency must be a positive integer")
	})

	t.Run("Environment Variable Binding", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.SetConfigType("yaml")
		require.NoError(t, v.ReadConfig(bytes.NewBufferString("browser:\n  driver: chrome\n")))

		t.Setenv("SOUPER_BROWSER_DRIVER", "static")
		t.Setenv("SOUPER_NETWORK_ACTION_TIMEOUT", "3s")

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		// The env var wins over the config file.
		assert.Equal(t, "static", cfg.Browser().Driver)
		assert.Equal(t, 3*time.Second, cfg.Network().ActionTimeout)
	})
}

func TestLoggerStructureMapping(t *testing.T) {
	yamlInput := `
logger:
  level: debug
  log_file: /var/log/souper.log
  colors:
    error: red
browser:
  args: ["--lang=en-US"]
`
	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(bytes.NewBufferString(yamlInput)))

	var cfg Config
	require.NoError(t, v.Unmarshal(&cfg))

	assert.Equal(t, "debug", cfg.Logger().Level)
	assert.Equal(t, "/var/log/souper.log", cfg.Logger().LogFile)
	assert.Equal(t, "red", cfg.Logger().Colors.Error)
	assert.Equal(t, []string{"--lang=en-US"}, cfg.Browser().Args)
}
