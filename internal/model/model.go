// Package model fetches recognition model files on first use.
package model

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
)

// DownloadTimeout bounds a whole model download.
const DownloadTimeout = 600 * time.Second

// Downloader fetches files over HTTP.
type Downloader struct {
	client *http.Client
}

// NewDownloader returns a downloader with DownloadTimeout applied.
func NewDownloader() *Downloader {
	return &Downloader{client: &http.Client{Timeout: DownloadTimeout}}
}

// Ensure downloads url to path unless a non-empty file is already there.
// It reports whether a download happened.
func (d *Downloader) Ensure(ctx context.Context, path, url string) (bool, error) {
	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		log.Debug().Str("component", "model").Str("path", path).Msg("model present")
		return false, nil
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("stat %s: %w", path, err)
	}
	if url == "" {
		return false, fmt.Errorf("model %s is missing and no download URL is configured", path)
	}
	return true, d.Download(ctx, url, path)
}

// Download writes url to path through a temporary file in the same
// directory, so an interrupted download never leaves a partial model.
func (d *Downloader) Download(ctx context.Context, url, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create model directory: %w", err)
	}

	log.Info().Str("component", "model").Str("url", url).Str("path", path).Msg("downloading model")
	started := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("download %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download %s: HTTP %d", url, resp.StatusCode)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.part")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, resp.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("install %s: %w", path, err)
	}

	log.Info().
		Str("component", "model").
		Str("path", path).
		Int64("bytes", n).
		Dur("took", time.Since(started)).
		Msg("model downloaded")
	return nil
}
