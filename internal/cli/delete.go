package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

// DeleteOptions holds flags for the delete command.
type DeleteOptions struct {
	*RootOptions
	Yes bool
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DeleteOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a saved text",
		Long: `Delete a saved text permanently.

Asks for confirmation unless --yes is given.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(cmd, opts, args[0])
		},
	}

	cmd.Flags().BoolVarP(&opts.Yes, "yes", "y", false, "skip the confirmation prompt")

	return cmd
}

// DeleteResult is the delete command's output.
type DeleteResult struct {
	ID        string `json:"id"`
	Deleted   bool   `json:"deleted"`
	Remaining int    `json:"remaining"`
}

func (r DeleteResult) String() string {
	if !r.Deleted {
		return "Cancelled"
	}
	return fmt.Sprintf("Deleted %s (%d remaining)", r.ID, r.Remaining)
}

func runDelete(cmd *cobra.Command, opts *DeleteOptions, id string) error {
	a, err := openApp(cmd, opts.RootOptions)
	if err != nil {
		return err
	}
	defer a.Close()

	rec, err := lookup(cmd, a, id)
	if err != nil {
		return err
	}

	if !opts.Yes {
		ok, err := confirm(cmd, fmt.Sprintf("Delete %q? [y/N]: ", preview(rec.Text)))
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read confirmation", err)
		}
		if !ok {
			return a.out.Success(DeleteResult{ID: id})
		}
	}

	ctx := commandContext(cmd)
	if err := a.registry.Remove(ctx, id); err != nil {
		return WrapExitError(ExitFailure, "failed to delete record", err)
	}
	if err := a.registry.Refresh(ctx); err != nil {
		return WrapExitError(ExitFailure, "record deleted but history not reloaded", err)
	}

	return a.out.Success(DeleteResult{ID: id, Deleted: true, Remaining: len(a.registry.List())})
}

// confirm writes prompt to stderr and reads a yes/no answer from stdin.
// Anything but y or yes (any case) is a no, including EOF.
func confirm(cmd *cobra.Command, prompt string) (bool, error) {
	fmt.Fprint(cmd.ErrOrStderr(), prompt)

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		return false, err
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
