// Package cmd provides the command-line interface for weft with
// configuration loading from multiple sources.
//
// Configuration System:
//
//	The CLI supports flexible configuration with clear precedence:
//	1. Command-line flags (--config, etc.) - highest priority
//	2. WEFT_CONFIG_FILE environment variable - custom config file path
//	3. Individual environment variables (WEFT_CACHE_ENABLED, etc.)
//	4. Configuration files (.weft.yml) - lowest priority
package cmd

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/weftware/weft/internal/logging"
)

var (
	cfgFile  string
	logLevel string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "weft",
	Short: "Secure template-enhancement compiler",
	Long: `Weft compiles enhanced template syntax (conditionals, inline expressions,
variable assignment, function-wrapped output, template inclusion) into
fragments the host's own rendering mechanism executes, guarded by a
function allow-list and backed by a two-tier compile cache.

Quick Start:
  weft compile ./templates         Compile templates under a directory
  weft check ./templates           Report syntax and policy findings
  weft cache stats                 Show cache tier statistics
  weft policy list                 Show the function allow-list
  weft watch                       Recompile on file changes

A malformed or disallowed template never breaks a render: weft falls back
to the original content and records diagnostics in debug mode.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is .weft.yml, can also use WEFT_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "info",
		"log level (debug, info, warn, error)")
	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
}

// initConfig initializes the configuration system.
//
// Loading priority (highest to lowest):
//  1. --config flag: explicitly specified config file path
//  2. WEFT_CONFIG_FILE environment variable
//  3. Default: .weft.yml in the current directory
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("WEFT_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".weft")
	}

	// Enable automatic environment variable binding with WEFT_ prefix
	// Examples: WEFT_CACHE_ENABLED, WEFT_SECURITY_MAX_NESTING_DEPTH
	viper.SetEnvPrefix("WEFT")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Missing or malformed config files degrade to defaults.
	_ = viper.ReadInConfig()
}

// newCLILogger builds the logger commands share, honoring --log-level.
func newCLILogger() logging.Logger {
	level := logging.LevelInfo
	switch strings.ToLower(viper.GetString("log-level")) {
	case "debug":
		level = logging.LevelDebug
	case "warn":
		level = logging.LevelWarn
	case "error":
		level = logging.LevelError
	}
	return logging.NewLogger(&logging.Config{
		Level:  level,
		Format: "text",
		Output: os.Stderr,
	})
}
