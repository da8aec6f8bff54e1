package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"panval/internal/platform/config"
)

var (
	// Global flags
	configPath string
	logLevel   string
	logFormat  string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "panval",
	Short: "Clean, deduplicate and classify PAN identifiers",
	Long: `panval loads a raw list of PAN identifiers, trims and upper-cases them,
drops missing and duplicate entries, and classifies each remaining identifier as
valid or invalid against the PAN format:

  5 letters, 4 digits, 1 letter; no two neighbouring characters equal;
  neither the letters nor the digits a straight run (ABCDE, 1234).

Results and a summary go to the configured sinks.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("PANVAL_CONFIG"), "path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (text, json)")

	rootCmd.AddCommand(runCmd, seedCmd, checkCmd)
}

// loadConfig reads file and environment configuration and applies the
// global flag overrides.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if logFormat != "" {
		cfg.LogFormat = logFormat
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
