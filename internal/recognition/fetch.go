package recognition

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// ModelFetcher makes sure "<lang>.traineddata" exists in Dir, downloading it
// from BaseURL on first use and reporting progress to a Tracker.
type ModelFetcher struct {
	// BaseURL is the directory URL the model files live under.
	BaseURL string

	// Dir is the local tessdata directory.
	Dir string

	// Client defaults to http.DefaultClient.
	Client *http.Client

	Logger *slog.Logger
}

// Path returns where the model for lang is stored.
func (f *ModelFetcher) Path(lang string) string {
	return filepath.Join(f.Dir, lang+".traineddata")
}

// Present reports whether a non-empty model file for lang is on disk.
func (f *ModelFetcher) Present(lang string) bool {
	info, err := os.Stat(f.Path(lang))
	return err == nil && !info.IsDir() && info.Size() > 0
}

// Ensure downloads the model for lang unless it is already present, then
// marks tracker ready. The file appears atomically: a partial download is
// never left under the final name.
func (f *ModelFetcher) Ensure(ctx context.Context, lang string, tracker *Tracker) error {
	if f.Present(lang) {
		tracker.MarkReady()
		return nil
	}
	if f.BaseURL == "" {
		return fmt.Errorf("model %s missing from %s and no download URL configured: %w", lang, f.Dir, ErrUnavailable)
	}

	if err := os.MkdirAll(f.Dir, 0o755); err != nil {
		return fmt.Errorf("create tessdata dir: %w", err)
	}

	url := strings.TrimRight(f.BaseURL, "/") + "/" + lang + ".traineddata"
	f.logger().Info("downloading model", "lang", lang, "url", url)

	if err := f.download(ctx, url, f.Path(lang), tracker); err != nil {
		tracker.Reset()
		return fmt.Errorf("download model %s: %w", lang, err)
	}

	tracker.MarkReady()
	f.logger().Info("model ready", "lang", lang, "path", f.Path(lang))
	return nil
}

func (f *ModelFetcher) download(ctx context.Context, url, dst string, tracker *Tracker) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), filepath.Base(dst)+".*.part")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // No-op after successful rename

	pw := &progressWriter{total: resp.ContentLength, tracker: tracker}
	if _, err := io.Copy(io.MultiWriter(tmp, pw), resp.Body); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmpPath, dst)
}

func (f *ModelFetcher) logger() *slog.Logger {
	if f.Logger != nil {
		return f.Logger
	}
	return slog.Default()
}

// progressWriter reports written/total to a Tracker.
// With an unknown total (-1) progress stays at 0 until the download completes.
type progressWriter struct {
	total   int64
	written int64
	tracker *Tracker
}

func (w *progressWriter) Write(p []byte) (int, error) {
	w.written += int64(len(p))
	if w.total > 0 {
		// Hold back the final step until the file is in place.
		progress := float64(w.written) / float64(w.total)
		if progress > 0.99 {
			progress = 0.99
		}
		w.tracker.SetProgress(progress)
	}
	return len(p), nil
}
