package tesseract

import (
	"log/slog"

	"github.com/roach88/snaptext/internal/recognition"
)

// DefaultLanguage is used when Config.Language is empty.
const DefaultLanguage = "eng"

// Config configures an Engine.
type Config struct {
	// Language is the Tesseract language code, e.g. "eng".
	Language string

	// TessdataDir holds the traineddata files.
	TessdataDir string

	// TessdataURL is where missing traineddata files are downloaded from.
	// Empty disables downloading.
	TessdataURL string

	// OnReadiness is called on every readiness change. May be nil.
	OnReadiness func(recognition.Readiness)

	Logger *slog.Logger
}

func (c Config) language() string {
	if c.Language == "" {
		return DefaultLanguage
	}
	return c.Language
}

func (c Config) fetcher() *recognition.ModelFetcher {
	return &recognition.ModelFetcher{
		BaseURL: c.TessdataURL,
		Dir:     c.TessdataDir,
		Logger:  c.Logger,
	}
}
