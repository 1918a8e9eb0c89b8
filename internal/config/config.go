// Package config loads snaptext settings.
//
// Layers, lowest to highest precedence:
//
//  1. defaults in the embedded CUE schema
//  2. an optional snaptext.cue file, unified with the schema
//  3. a .env file (read, not exported)
//  4. SNAPTEXT_* process environment variables
//
// The merged result is checked with struct validation before use.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

//go:embed schema.cue
var schemaSource []byte

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SNAPTEXT_"

// DefaultFile is the config file looked for in the working directory.
const DefaultFile = "snaptext.cue"

// Config holds resolved settings.
type Config struct {
	Database         string        `json:"database" validate:"required"`
	MaxImageBytes    int64         `json:"max_image_bytes" validate:"gt=0"`
	RecognizeTimeout time.Duration `json:"recognize_timeout" validate:"gt=0"`
	Language         string        `json:"language" validate:"required"`
	TessdataDir      string        `json:"tessdata_dir" validate:"required"`
	TessdataURL      string        `json:"tessdata_url" validate:"required,url"`
	CaptureDir       string        `json:"capture_dir" validate:"required"`
	LogLevel         string        `json:"log_level" validate:"oneof=debug info warn error"`
}

// fileConfig mirrors #Config as decoded from CUE.
type fileConfig struct {
	Database         string `json:"database"`
	MaxImageBytes    int64  `json:"max_image_bytes"`
	RecognizeTimeout string `json:"recognize_timeout"`
	Language         string `json:"language"`
	TessdataDir      string `json:"tessdata_dir"`
	TessdataURL      string `json:"tessdata_url"`
	CaptureDir       string `json:"capture_dir"`
	LogLevel         string `json:"log_level"`
}

// Options selects the sources Load reads.
type Options struct {
	// File is a CUE config file. Empty means DefaultFile if it exists.
	File string

	// EnvFile is a dotenv file. Empty means ".env" if it exists.
	EnvFile string

	// LookupEnv reads the process environment. Default: os.LookupEnv.
	LookupEnv func(string) (string, bool)
}

// Load resolves the configuration from all layers.
func Load(opts Options) (*Config, error) {
	path := opts.File
	if path == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			path = DefaultFile
		}
	}

	fc, err := loadCUE(path)
	if err != nil {
		return nil, err
	}

	env, err := readEnv(opts)
	if err != nil {
		return nil, err
	}
	if err := fc.applyEnv(env); err != nil {
		return nil, err
	}

	cfg, err := fc.resolve()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the schema defaults with derived paths filled in.
func Default() *Config {
	fc, err := loadCUE("")
	if err != nil {
		panic(fmt.Sprintf("config: embedded schema: %v", err))
	}
	cfg, err := fc.resolve()
	if err != nil {
		panic(fmt.Sprintf("config: embedded schema: %v", err))
	}
	return cfg
}

// loadCUE decodes the schema unified with the file at path.
// An empty path yields the schema defaults.
func loadCUE(path string) (*fileConfig, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileBytes(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile config schema: %w", err)
	}
	v := schema.LookupPath(cue.ParsePath("#Config"))

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		user := ctx.CompileBytes(data, cue.Filename(path))
		if err := user.Err(); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
		v = v.Unify(user)
	}

	if err := v.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	var fc fileConfig
	if err := v.Decode(&fc); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &fc, nil
}

// readEnv merges the dotenv file under the process environment.
// Only SNAPTEXT_ keys are kept.
func readEnv(opts Options) (map[string]string, error) {
	lookup := opts.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}

	merged := map[string]string{}

	path := opts.EnvFile
	explicit := path != ""
	if !explicit {
		path = ".env"
	}
	fileEnv, err := godotenv.Read(path)
	switch {
	case err == nil:
		for k, v := range fileEnv {
			if strings.HasPrefix(k, EnvPrefix) {
				merged[k] = v
			}
		}
	case explicit || !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("read env file %s: %w", path, err)
	}

	for _, key := range envKeys {
		if v, ok := lookup(EnvPrefix + key); ok {
			merged[EnvPrefix+key] = v
		}
	}
	return merged, nil
}

var envKeys = []string{
	"DATABASE",
	"MAX_IMAGE_BYTES",
	"RECOGNIZE_TIMEOUT",
	"LANGUAGE",
	"TESSDATA_DIR",
	"TESSDATA_URL",
	"CAPTURE_DIR",
	"LOG_LEVEL",
}

func (fc *fileConfig) applyEnv(env map[string]string) error {
	str := func(key string, dst *string) {
		if v, ok := env[EnvPrefix+key]; ok {
			*dst = v
		}
	}

	str("DATABASE", &fc.Database)
	str("RECOGNIZE_TIMEOUT", &fc.RecognizeTimeout)
	str("LANGUAGE", &fc.Language)
	str("TESSDATA_DIR", &fc.TessdataDir)
	str("TESSDATA_URL", &fc.TessdataURL)
	str("CAPTURE_DIR", &fc.CaptureDir)
	str("LOG_LEVEL", &fc.LogLevel)

	if v, ok := env[EnvPrefix+"MAX_IMAGE_BYTES"]; ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid %sMAX_IMAGE_BYTES: %w", EnvPrefix, err)
		}
		fc.MaxImageBytes = n
	}
	return nil
}

func (fc *fileConfig) resolve() (*Config, error) {
	timeout, err := time.ParseDuration(fc.RecognizeTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid recognize_timeout: %w", err)
	}

	cfg := &Config{
		Database:         fc.Database,
		MaxImageBytes:    fc.MaxImageBytes,
		RecognizeTimeout: timeout,
		Language:         fc.Language,
		TessdataDir:      fc.TessdataDir,
		TessdataURL:      strings.TrimRight(fc.TessdataURL, "/"),
		CaptureDir:       fc.CaptureDir,
		LogLevel:         strings.ToLower(fc.LogLevel),
	}

	if cfg.TessdataDir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			base = os.TempDir()
		}
		cfg.TessdataDir = filepath.Join(base, "snaptext", "tessdata")
	}
	if cfg.CaptureDir == "" {
		cfg.CaptureDir = filepath.Join(os.TempDir(), "snaptext")
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	err := v.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	msgs := make([]string, len(verrs))
	for i, fe := range verrs {
		msgs[i] = fmt.Sprintf("%s failed %q (value %v)", fe.Field(), fe.Tag(), fe.Value())
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// SlogLevel maps LogLevel to a slog level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
