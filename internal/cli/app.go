package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/roach88/snaptext/internal/config"
	"github.com/roach88/snaptext/internal/recognition"
	"github.com/roach88/snaptext/internal/recognition/tesseract"
	"github.com/roach88/snaptext/internal/registry"
	"github.com/roach88/snaptext/internal/store"
)

// Clipboard receives copied text.
type Clipboard interface {
	WriteAll(text string) error
}

// systemClipboard writes to the OS clipboard.
type systemClipboard struct{}

func (systemClipboard) WriteAll(text string) error {
	if clipboard.Unsupported {
		return errors.New("no clipboard utility available")
	}
	return clipboard.WriteAll(text)
}

// app is the per-invocation wiring shared by commands.
type app struct {
	opts   *RootOptions
	cfg    *config.Config
	logger *slog.Logger
	out    *OutputFormatter

	store    *store.Store
	registry *registry.Registry
}

// loadApp resolves config and logging. It does not touch the database.
func loadApp(cmd *cobra.Command, opts *RootOptions) (*app, error) {
	cfg, err := config.Load(config.Options{
		File:      opts.ConfigFile,
		LookupEnv: opts.LookupEnv,
	})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.Database != "" {
		cfg.Database = opts.Database
	}

	level := cfg.SlogLevel()
	if opts.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: level,
	}))

	return &app{
		opts:   opts,
		cfg:    cfg,
		logger: logger,
		out: &OutputFormatter{
			Format:    opts.Format,
			Writer:    cmd.OutOrStdout(),
			ErrWriter: cmd.ErrOrStderr(),
			Verbose:   opts.Verbose,
		},
	}, nil
}

// openApp is loadApp plus an open, migrated store and a loaded registry.
func openApp(cmd *cobra.Command, opts *RootOptions) (*app, error) {
	a, err := loadApp(cmd, opts)
	if err != nil {
		return nil, err
	}

	a.logger.Debug("opening database", "path", a.cfg.Database)
	storeOpts := append([]store.Option{store.WithLogger(a.logger)}, opts.StoreOptions...)
	st, err := store.OpenContext(commandContext(cmd), a.cfg.Database, storeOpts...)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	a.store = st

	a.registry = registry.New(st, registry.WithLogger(a.logger))
	if err := a.registry.Refresh(commandContext(cmd)); err != nil {
		a.Close()
		return nil, WrapExitError(ExitCommandError, "failed to load history", err)
	}
	return a, nil
}

// Close releases the store, if one was opened.
func (a *app) Close() {
	if a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		a.logger.Error("error closing database", "error", err)
	}
}

func (a *app) clipboard() Clipboard {
	if a.opts.Clipboard != nil {
		return a.opts.Clipboard
	}
	return systemClipboard{}
}

// gateway returns the injected gateway or a Tesseract engine from config.
func (a *app) gateway(progress func(recognition.Readiness)) recognition.Gateway {
	if a.opts.Gateway != nil {
		return a.opts.Gateway
	}
	return tesseract.New(tesseract.Config{
		Language:    a.cfg.Language,
		TessdataDir: a.cfg.TessdataDir,
		TessdataURL: a.cfg.TessdataURL,
		OnReadiness: progress,
		Logger:      a.logger,
	})
}

func (a *app) fetcher() *recognition.ModelFetcher {
	return &recognition.ModelFetcher{
		BaseURL: a.cfg.TessdataURL,
		Dir:     a.cfg.TessdataDir,
		Logger:  a.logger,
	}
}

// commandContext returns cmd's context, or Background outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// progressPrinter reports model download progress in 10% steps.
type progressPrinter struct {
	mu   sync.Mutex
	w    io.Writer
	last int
}

func newProgressPrinter(w io.Writer) *progressPrinter {
	return &progressPrinter{w: w, last: -1}
}

func (p *progressPrinter) update(r recognition.Readiness) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if r.Ready {
		if p.last != 100 {
			fmt.Fprintln(p.w, "Model ready")
			p.last = 100
		}
		return
	}

	step := int(r.Progress*100) / 10 * 10
	if step == p.last {
		return
	}
	p.last = step
	fmt.Fprintf(p.w, "Downloading model... %d%%\n", step)
}

// Run executes the root command and returns the process exit code.
func Run(args []string) int {
	cmd := NewRootCommand()
	cmd.SetArgs(args)

	err := cmd.Execute()
	if err == nil {
		return ExitSuccess
	}

	out := &OutputFormatter{Format: formatFlag(cmd), Writer: os.Stdout, ErrWriter: os.Stderr}
	_ = out.Error(err)
	return GetExitCode(err)
}

func formatFlag(cmd *cobra.Command) string {
	if f := cmd.PersistentFlags().Lookup("format"); f != nil && isValidFormat(f.Value.String()) {
		return f.Value.String()
	}
	return "text"
}
