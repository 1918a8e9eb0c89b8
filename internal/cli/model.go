package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/snaptext/internal/recognition"
)

// ModelOptions holds flags for the model command.
type ModelOptions struct {
	*RootOptions
	Check bool
}

// NewModelCommand creates the model command.
func NewModelCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ModelOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "model",
		Short: "Download the recognition model if missing",
		Long: `Make sure the recognition model for the configured language is on disk,
downloading it with progress if it is missing.

With --check, only report whether it is present.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runModel(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Check, "check", false, "report status without downloading")

	return cmd
}

// ModelStatus is the model command's output.
type ModelStatus struct {
	Language string  `json:"language"`
	Path     string  `json:"path"`
	Ready    bool    `json:"ready"`
	Progress float64 `json:"progress"`
}

func (s ModelStatus) String() string {
	if s.Ready {
		return fmt.Sprintf("Model %s ready at %s", s.Language, s.Path)
	}
	return fmt.Sprintf("Model %s missing (%s)", s.Language, s.Path)
}

func runModel(cmd *cobra.Command, opts *ModelOptions) error {
	a, err := loadApp(cmd, opts.RootOptions)
	if err != nil {
		return err
	}

	fetcher := a.fetcher()
	lang := a.cfg.Language
	status := ModelStatus{Language: lang, Path: fetcher.Path(lang)}

	if opts.Check {
		if !fetcher.Present(lang) {
			_ = a.out.Success(status)
			return NewExitError(ExitFailure, fmt.Sprintf("model %s not downloaded", lang))
		}
		status.Ready, status.Progress = true, 1
		return a.out.Success(status)
	}

	tracker := recognition.NewTracker(newProgressPrinter(a.out.GetErrWriter()).update)
	if err := fetcher.Ensure(commandContext(cmd), lang, tracker); err != nil {
		return WrapExitError(ExitFailure, "failed to prepare model", err)
	}

	r := tracker.Readiness()
	status.Ready, status.Progress = r.Ready, r.Progress
	return a.out.Success(status)
}
