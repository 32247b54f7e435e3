package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/obiente/translate/livetranslate/internal/config"
	"github.com/obiente/translate/livetranslate/internal/observe"
	"github.com/obiente/translate/livetranslate/internal/pipeline"
	"github.com/obiente/translate/livetranslate/internal/source"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Translate live audio from a device or a WAV file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if f, _ := cmd.Flags().GetString("file"); f != "" {
			cfg.Source.Kind = "file"
			cfg.Source.File = f
		}
		if cmd.Flags().Changed("device") {
			cfg.Source.Device, _ = cmd.Flags().GetInt("device")
		}
		if rt, _ := cmd.Flags().GetBool("realtime"); rt {
			cfg.Source.Realtime = true
		}
		return runPipeline(cfg)
	},
}

func init() {
	runCmd.Flags().StringP("file", "f", "", "read a WAV file instead of a capture device")
	runCmd.Flags().IntP("device", "d", -1, "input device ID as listed by the devices command (-1 for default)")
	runCmd.Flags().Bool("realtime", false, "pace file input at wall-clock speed")
}

func openSource(cfg config.SourceConfig) (source.Source, error) {
	if cfg.Kind == "file" {
		f, err := source.OpenFile(cfg.File)
		if err != nil {
			return nil, err
		}
		f.Realtime = cfg.Realtime
		return f, nil
	}
	return source.OpenDevice(source.DeviceConfig{
		ID:         cfg.Device,
		SampleRate: cfg.SampleRate,
		Channels:   cfg.Channels,
	})
}

func runPipeline(cfg config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics, stopMetrics, err := setupMetrics(ctx, cfg.Metrics)
	if err != nil {
		return err
	}
	defer stopMetrics()
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", observe.Handler())
		srv := &http.Server{Addr: cfg.Addr, Handler: mux, ReadTimeout: 30 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("metrics server failed")
			}
		}()
		defer srv.Close()
	}

	rec, closeRec, err := newRecognition(ctx, cfg.Recognition)
	if err != nil {
		return err
	}
	defer closeRec()

	out, closeOut, err := newSinks(cfg.Output)
	if err != nil {
		return err
	}
	defer closeOut()

	src, err := openSource(cfg.Source)
	if err != nil {
		return err
	}
	defer src.Close()

	p := pipeline.New(cfg.Pipeline, src, rec, newTranslation(cfg.Translation), out, metrics)
	stopOnSignal(cancel, src.Close)

	log.Info().
		Str("source", cfg.Source.Kind).
		Str("recognition", cfg.Recognition.Backend).
		Str("translation", cfg.Translation.Backend).
		Str("target", cfg.Translation.Target).
		Msg("livetranslate running; press Ctrl-C to stop")
	return p.Run(ctx)
}

// stopOnSignal closes the source on the first interrupt so the pipeline
// drains, and cancels everything on the second.
func stopOnSignal(cancel context.CancelFunc, stop func() error) {
	sig := make(chan os.Signal, 2)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		log.Info().Msg("stopping capture; draining pending utterances (interrupt again to abort)")
		_ = stop()
		<-sig
		log.Warn().Msg("aborting")
		cancel()
	}()
}
