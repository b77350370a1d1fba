// -- cmd/root.go --
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/souper/internal/config"
	"github.com/xkilldash9x/souper/internal/observability"
)

type contextKey string

const configKey contextKey = "config"

// persistentFlagKeys maps root flags onto config keys. Flags override the
// config file and environment only when set.
var persistentFlagKeys = map[string]string{
	"driver":    "browser.driver",
	"log-level": "logger.level",
}

// newRootCmd builds the command tree. Tests build a fresh tree per case.
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "souper",
		Short:         "souper drives a browser and queries its pages like an HTML parser.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			config.SetDefaults(v)

			if err := initializeConfig(cmd, v); err != nil {
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}

			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "souper"})
				return fmt.Errorf("failed to load or validate config: %w", err)
			}

			observability.InitializeLogger(cfg.Logger())
			observability.GetLogger().Debug("Starting souper",
				zap.String("version", Version),
				zap.String("config_file", v.ConfigFileUsed()),
				zap.String("driver", cfg.Browser().Driver))

			cmd.SetContext(context.WithValue(cmd.Context(), configKey, cfg))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is ./souper.yaml, then ~/.souper/souper.yaml)")
	rootCmd.PersistentFlags().String("driver", "", "browser driver: chrome or static (overrides config/env)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (overrides config/env)")
	rootCmd.SetVersionTemplate(`{{printf "souper version %s\n" .Version}}`)

	rootCmd.AddCommand(
		newRunCmd(),
		newQueryCmd(),
		newFetchCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

// Execute runs the CLI with a context canceled on SIGINT or SIGTERM.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := newRootCmd().ExecuteContext(ctx)
	observability.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// initializeConfig points v at the config file and binds the root flags.
func initializeConfig(cmd *cobra.Command, v *viper.Viper) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		if home, err := homedir.Dir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".souper"))
		}
		v.SetConfigName("souper")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// No config file: defaults and env vars apply.
	}

	for name, key := range persistentFlagKeys {
		flag := cmd.Flags().Lookup(name)
		if flag == nil || !flag.Changed {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return err
		}
	}
	return nil
}

// getConfig returns the configuration loaded by the root command.
func getConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, ok := cmd.Context().Value(configKey).(*config.Config)
	if !ok || cfg == nil {
		return nil, errors.New("configuration not loaded")
	}
	return cfg, nil
}
