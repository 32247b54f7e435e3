package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/obiente/translate/livetranslate/internal/audio"
	serverhttp "github.com/obiente/translate/livetranslate/internal/http"
	"github.com/obiente/translate/livetranslate/internal/pipeline"
	"github.com/obiente/translate/livetranslate/internal/transcript"
	"github.com/obiente/translate/livetranslate/internal/ws"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Accept audio over /ws/ingest and broadcast captions on /ws/captions",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Addr = addr
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		metrics, stopMetrics, err := setupMetrics(ctx, cfg.Metrics)
		if err != nil {
			return err
		}
		defer stopMetrics()

		rec, closeRec, err := newRecognition(ctx, cfg.Recognition)
		if err != nil {
			return err
		}
		defer closeRec()

		hub := ws.NewHub()
		out, closeOut, err := newSinks(cfg.Output, hub)
		if err != nil {
			return err
		}
		defer closeOut()

		ingest := ws.NewIngest(audio.Format{SampleRate: transcript.SampleRate, Channels: 1})
		srv := &http.Server{
			Addr:         cfg.Addr,
			Handler:      serverhttp.NewRouter(ingest, hub, cfg.Metrics.Enabled),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
		}
		go func() {
			log.Info().Str("addr", cfg.Addr).Msg("livetranslate server starting")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("server failed")
				cancel()
			}
		}()
		stopOnSignal(cancel, ingest.Close)

		// Each producer session is one pipeline run; sequence numbers restart
		// with every session.
		tr := newTranslation(cfg.Translation)
		for ctx.Err() == nil {
			p := pipeline.New(cfg.Pipeline, ingest, rec, tr, out, metrics)
			err := p.Run(ctx)
			if errors.Is(err, transcript.ErrDevice) {
				log.Warn().Err(err).Msg("ingest session ended abnormally")
				continue
			}
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			if isClosed(ingest) {
				break
			}
		}

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelShutdown()
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (overrides config addr)")
}

func isClosed(in *ws.Ingest) bool {
	select {
	case <-in.Done():
		return true
	default:
		return false
	}
}
