// Filename: cmd/root.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/xkilldash9x/lancet-sast/internal/config"
	"github.com/xkilldash9x/lancet-sast/internal/observability"
)

// appConfig holds the configuration loaded during PersistentPreRunE. The
// subcommands read it instead of re-parsing viper themselves.
var appConfig config.Interface

var cfgFile string

// NewRootCommand builds a fresh root command tree. main constructs one per
// process so state never leaks between Execute calls in tests.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "lancet",
		Short: "Lancet is a compile-time taint analysis engine for JavaScript.",
		Long: `Lancet infers taint levels for every binding in a set of JavaScript
analysis units, propagates them through calls via function summaries, and
reports flows from untrusted sources into security-sensitive sinks.

All analysis happens at compile time. Nothing is instrumented and nothing
from the analyzed program ever executes.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initializeApp(cmd)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./lancet.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(newAnalyzeCommand())
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

// initializeApp loads configuration from file, environment and flags, then
// initializes the global logger. It runs once per invocation.
func initializeApp(cmd *cobra.Command) error {
	v := viper.New()
	config.SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("lancet")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/lancet")
	}

	v.SetEnvPrefix("LANCET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults and env cover everything.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("reading config: %w", err)
		}
	}

	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		v.Set("logger.level", lvl)
	}

	cfg, err := config.NewConfigFromViper(v)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	appConfig = cfg

	observability.InitializeLogger(cfg.Logger())
	return nil
}

// Execute runs the CLI with the given context and returns the process exit
// code. Errors are printed here because cobra's own printing is silenced.
func Execute(ctx context.Context) int {
	rootCmd := NewRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		observability.Sync()
		return 1
	}
	observability.Sync()
	return 0
}
