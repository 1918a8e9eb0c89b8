package cli

import (
	"fmt"
	"unicode/utf8"

	"github.com/spf13/cobra"
)

// NewCopyCommand creates the copy command.
func NewCopyCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "copy <id>",
		Short:         "Copy a saved text to the clipboard",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			rec, err := lookup(cmd, a, args[0])
			if err != nil {
				return err
			}
			if err := a.clipboard().WriteAll(rec.Text); err != nil {
				return WrapExitError(ExitFailure, "failed to copy to clipboard", err)
			}
			return a.out.Success(CopyResult{ID: rec.ID, Chars: utf8.RuneCountInString(rec.Text)})
		},
	}
}

// CopyResult is the copy command's output.
type CopyResult struct {
	ID    string `json:"id"`
	Chars int    `json:"chars"`
}

func (r CopyResult) String() string {
	return fmt.Sprintf("Copied %d characters from %s", r.Chars, r.ID)
}
