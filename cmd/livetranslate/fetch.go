package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/obiente/translate/livetranslate/internal/model"
)

var fetchModelsCmd = &cobra.Command{
	Use:   "fetch-models",
	Short: "Download the configured whisper model if it is missing",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		path, url := cfg.Recognition.ModelPath, cfg.Recognition.ModelURL
		if u, _ := cmd.Flags().GetString("url"); u != "" {
			url = u
		}
		fetched, err := model.NewDownloader().Ensure(cmd.Context(), path, url)
		if err != nil {
			return err
		}
		if !fetched {
			log.Info().Str("path", path).Msg("model already present")
		}
		return nil
	},
}

func init() {
	fetchModelsCmd.Flags().String("url", "", "download URL (overrides recognition.model_url)")
}
