package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/snaptext/internal/ir"
)

// previewWidth is the number of runes of text shown per list row.
const previewWidth = 60

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "Show saved text, newest first",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			return a.out.Success(RecordList(a.registry.List()))
		},
	}
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show <id>",
		Short:         "Show one saved text in full",
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
			return a.out.Success(RecordDetail(rec))
		},
	}
}

// lookup fetches a record or returns an ExitFailure error if it is absent.
func lookup(cmd *cobra.Command, a *app, id string) (ir.TextRecord, error) {
	rec, ok, err := a.registry.Get(commandContext(cmd), id)
	if err != nil {
		return ir.TextRecord{}, WrapExitError(ExitCommandError, "failed to read record", err)
	}
	if !ok {
		return ir.TextRecord{}, NewExitError(ExitFailure, fmt.Sprintf("record %s not found", id))
	}
	return rec, nil
}

// RecordList renders as one line per record.
type RecordList []ir.TextRecord

// RenderText implements textRenderer.
func (l RecordList) RenderText(w io.Writer) {
	if len(l) == 0 {
		fmt.Fprintln(w, "No saved text yet")
		return
	}
	for _, rec := range l {
		fmt.Fprintf(w, "%s  %s  %s\n", rec.ID, rec.CreatedAt.Local().Format(time.DateTime), preview(rec.Text))
	}
}

// RecordDetail renders one record with its full text.
type RecordDetail ir.TextRecord

// RenderText implements textRenderer.
func (d RecordDetail) RenderText(w io.Writer) {
	fmt.Fprintf(w, "ID:      %s\n", d.ID)
	fmt.Fprintf(w, "Created: %s\n", d.CreatedAt.Local().Format(time.RFC3339))
	fmt.Fprintln(w)
	fmt.Fprintln(w, d.Text)
}

// preview flattens region delimiters and truncates to previewWidth runes.
func preview(text string) string {
	flat := strings.Join(strings.Fields(text), " ")
	runes := []rune(flat)
	if len(runes) <= previewWidth {
		return flat
	}
	return string(runes[:previewWidth-1]) + "…"
}
