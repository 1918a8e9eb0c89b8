package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/snaptext/internal/ir"
	"github.com/roach88/snaptext/internal/recognition"
	"github.com/roach88/snaptext/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	Database   string // overrides config when set
	ConfigFile string

	// Gateway overrides the recognition engine (for testing).
	// If nil, a Tesseract engine is built from config.
	Gateway recognition.Gateway

	// Clipboard overrides the system clipboard (for testing).
	Clipboard Clipboard

	// StoreOptions are appended when opening the store (for testing).
	StoreOptions []store.Option

	// LookupEnv overrides os.LookupEnv for config loading (for testing).
	LookupEnv func(string) (string, bool)
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the snaptext CLI.
func NewRootCommand() *cobra.Command {
	return NewRootCommandWithOptions(&RootOptions{})
}

// NewRootCommandWithOptions creates the root command around opts, letting
// tests inject collaborators before flags are parsed.
func NewRootCommandWithOptions(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "snaptext",
		Short:   "snaptext - capture text from images",
		Long:    "Recognize text in a photo or picked image and keep a local history of the results.",
		Version: ir.AppVersion,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config)")
	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "path to snaptext.cue (default ./snaptext.cue if present)")

	cmd.AddCommand(NewScanCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))
	cmd.AddCommand(NewCopyCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewModelCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
