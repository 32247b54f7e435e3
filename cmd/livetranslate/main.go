package main

import (
	"os"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/obiente/translate/livetranslate/internal/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "livetranslate",
	Short: "Live speech recognition and translation",
	Long: `livetranslate captures audio, cuts it into utterances, recognizes and
translates them concurrently, and prints the results in order.`,
	SilenceUsage: true,
}

func main() {
	setupLogger("info")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("LIVETRANSLATE_CONFIG"), "path to a YAML config file")
	rootCmd.AddCommand(runCmd, serveCmd, devicesCmd, fetchModelsCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupLogger(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	if isatty.IsTerminal(os.Stderr.Fd()) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"})
	}
	log.Logger = log.Level(lvl)
}

// loadConfig reads the config and applies its log level.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}
	setupLogger(cfg.LogLevel)
	return cfg, nil
}
