package main

import (
	"os"

	"docqa/internal/config"
	"docqa/internal/helper"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const configFilePath = "./configs/config.yaml"

var (
	cfgPath  string
	logLevel string

	// cfg is loaded before any subcommand runs.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "docqa",
	Short:         "Question answering over a private document set",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.LoadConfig(cfgPath)
		if err != nil {
			return err
		}
		if logLevel != "" {
			loaded.Log.Level = logLevel
		}
		helper.SetupLogger(cmd.ErrOrStderr(), loaded.Log.Level, loaded.Log.Console)
		log.Debug().Str("path", cfgPath).Str("backend", loaded.VectorIndex.Backend).Msg("Loaded config")
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", configFilePath, "path to the YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}
