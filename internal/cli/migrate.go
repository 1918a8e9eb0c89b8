package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/snaptext/internal/ir"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Bring the database schema up to date",
		Long: `Create the database if needed and apply pending schema migrations.

Every other command migrates on open as well; this one only reports what
happened. A database from a newer snaptext is left untouched.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			from, to := a.store.Migrated()
			return a.out.Success(MigrateResult{
				Database: a.cfg.Database,
				From:     from,
				To:       to,
				Target:   ir.SchemaVersion,
			})
		},
	}
}

// MigrateResult is the migrate command's output.
type MigrateResult struct {
	Database string `json:"database"`
	From     int    `json:"from"`
	To       int    `json:"to"`
	Target   int    `json:"target"`
}

func (r MigrateResult) String() string {
	switch {
	case r.From == r.To && r.To > r.Target:
		return fmt.Sprintf("%s: schema v%d is newer than this build (v%d), left untouched", r.Database, r.To, r.Target)
	case r.From == r.To:
		return fmt.Sprintf("%s: schema v%d, up to date", r.Database, r.To)
	default:
		return fmt.Sprintf("%s: migrated schema v%d -> v%d", r.Database, r.From, r.To)
	}
}
