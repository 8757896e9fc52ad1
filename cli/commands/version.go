package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kzar79/massive-go/cli/internal/version"
)

// NewVersionCommand creates the version command.
func NewVersionCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := version.Get()
			if app.cfg.Output != OutputTable {
				return printValue(app.out, app.cfg.Output, info)
			}
			_, err := fmt.Fprintln(app.out, info.FullString())
			return err
		},
	}
}
