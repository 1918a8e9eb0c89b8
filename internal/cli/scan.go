package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/snaptext/internal/acquire"
	"github.com/roach88/snaptext/internal/ir"
	"github.com/roach88/snaptext/internal/pipeline"
	"github.com/roach88/snaptext/internal/recognition"
)

// ScanOptions holds flags for the scan command.
type ScanOptions struct {
	*RootOptions
	Camera string
	Copy   bool
	Wait   time.Duration
}

// readyPoll is how often scan re-checks gateway readiness.
var readyPoll = 50 * time.Millisecond

// preparer is implemented by gateways that load their model on demand.
type preparer interface {
	Prepare(ctx context.Context) error
}

// NewScanCommand creates the scan command.
func NewScanCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScanOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "scan [image]",
		Short: "Recognize text in an image and save it",
		Long: `Recognize text in an image and add it to the history.

Pick an existing image by path, or pass --camera with a frame captured by
the device; camera frames are cropped to 3:4 and kept in the capture dir.
Images over the configured size ceiling (2 MiB by default) are rejected.

The recognition model is downloaded on first use.

Example:
  snaptext scan ./receipt.jpg
  snaptext scan --camera /dev/shm/frame.png --copy`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd, opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.Camera, "camera", "", "capture from this camera frame instead of picking an image")
	cmd.Flags().BoolVar(&opts.Copy, "copy", false, "copy recognized text to the clipboard")
	cmd.Flags().DurationVar(&opts.Wait, "wait", 10*time.Minute, "how long to wait for the recognition model")

	return cmd
}

// ScanResult is the scan command's output.
type ScanResult struct {
	State   pipeline.State `json:"state"`
	Record  *ir.TextRecord `json:"record,omitempty"`
	Regions int            `json:"regions"`
	Message string         `json:"message,omitempty"`
	Copied  bool           `json:"copied,omitempty"`
	Image   ir.ImageRef    `json:"image"`
}

// RenderText implements textRenderer.
func (r ScanResult) RenderText(w io.Writer) {
	if r.Record == nil {
		fmt.Fprintln(w, r.Message)
		return
	}
	fmt.Fprintf(w, "Saved %s (%d regions)\n", r.Record.ID, r.Regions)
	fmt.Fprintln(w, r.Record.Text)
	if r.Copied {
		fmt.Fprintln(w, "Copied to clipboard")
	}
}

func runScan(cmd *cobra.Command, opts *ScanOptions, args []string) error {
	if opts.Camera != "" && len(args) > 0 {
		return NewExitError(ExitCommandError, "give an image path or --camera, not both")
	}
	if opts.Camera == "" && len(args) == 0 {
		return NewExitError(ExitCommandError, "scan needs an image path or --camera <frame>")
	}

	a, err := openApp(cmd, opts.RootOptions)
	if err != nil {
		return err
	}
	defer a.Close()

	var src acquire.Source = acquire.Camera{FramePath: opts.Camera, OutputDir: a.cfg.CaptureDir}
	if opts.Camera == "" {
		src = acquire.LibraryPicker{Path: args[0], SkipDecodeAbove: a.cfg.MaxImageBytes}
	}
	acquired := &recordingSource{Source: src}

	ctx := commandContext(cmd)
	progress := newProgressPrinter(a.out.GetErrWriter())
	gw := a.gateway(progress.update)

	p := pipeline.New(gw, a.registry,
		pipeline.WithMaxImageBytes(a.cfg.MaxImageBytes),
		pipeline.WithRecognizeTimeout(a.cfg.RecognizeTimeout),
		pipeline.WithLogger(a.logger),
	)

	if err := p.AcquireFrom(ctx, acquired); err != nil {
		acquired.discardCapture(a.logger)
		if pipeline.IsImageTooLarge(err) {
			return WrapExitError(ExitFailure,
				fmt.Sprintf("image too large: select an image smaller than %s", formatBytes(a.cfg.MaxImageBytes)), err)
		}
		return WrapExitError(ExitFailure, "could not load image", err)
	}
	img := *p.Snapshot().Image
	a.out.VerboseLog("image %s: %d bytes, %dx%d", img.Path, img.Size, img.Width, img.Height)

	if err := waitReady(ctx, gw, opts.Wait); err != nil {
		return WrapExitError(ExitFailure, "recognition model not ready", err)
	}

	out, err := p.Confirm(ctx)
	if err != nil {
		return confirmError(err)
	}

	switch out.State {
	case pipeline.StateFailed:
		a.logger.Debug("recognition failed", "reason", out.Reason)
		return NewExitError(ExitFailure, pipeline.MessageFailed)
	case pipeline.StateEmptyResult:
		return a.out.Success(ScanResult{State: out.State, Message: out.Message, Image: img})
	}

	result := ScanResult{
		State:   out.State,
		Record:  out.Record,
		Regions: len(out.Regions),
		Image:   img,
	}
	if opts.Copy {
		if err := a.clipboard().WriteAll(out.Record.Text); err != nil {
			return WrapExitError(ExitFailure, "text saved but not copied", err)
		}
		result.Copied = true
	}
	return a.out.Success(result)
}

// confirmError maps a Confirm start-up or persistence error to an exit error.
func confirmError(err error) error {
	if pipeline.IsPersistenceError(err) {
		return WrapExitError(ExitFailure, "failed to save recognized text", err)
	}
	return WrapExitError(ExitFailure, "could not start recognition", err)
}

// recordingSource remembers the last reference its Source produced.
type recordingSource struct {
	acquire.Source
	ref ir.ImageRef
}

func (s *recordingSource) Acquire(ctx context.Context) (ir.ImageRef, error) {
	ref, err := s.Source.Acquire(ctx)
	if err == nil {
		s.ref = ref
	}
	return ref, err
}

// discardCapture removes a camera capture the pipeline refused.
// Library picks belong to the user and are never touched.
func (s *recordingSource) discardCapture(logger *slog.Logger) {
	if s.ref.Source != ir.SourceCamera || s.ref.Path == "" {
		return
	}
	if err := os.Remove(s.ref.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("could not remove rejected capture", "path", s.ref.Path, "error", err)
	}
}

// waitReady prepares gw if it can, then polls until it reports ready.
func waitReady(ctx context.Context, gw recognition.Gateway, wait time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	if p, ok := gw.(preparer); ok {
		if err := p.Prepare(ctx); err != nil {
			return err
		}
	}

	ticker := time.NewTicker(readyPoll)
	defer ticker.Stop()
	for {
		r := gw.Readiness()
		if r.Ready {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("model at %.0f%%: %w", r.Progress*100, ctx.Err())
		case <-ticker.C:
		}
	}
}

func formatBytes(n int64) string {
	const mib = 1024 * 1024
	if n%mib == 0 {
		return fmt.Sprintf("%dMB", n/mib)
	}
	return fmt.Sprintf("%d bytes", n)
}
