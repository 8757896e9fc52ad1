package commands

import (
	"net/url"

	"github.com/spf13/cobra"

	"github.com/kzar79/massive-go/cli/internal/config"
	"github.com/kzar79/massive-go/cli/internal/ui"
)

// NewConfigCommand creates the config command.
func NewConfigCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the resolved configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			shown := *app.cfg
			shown.DatabaseURL = redact(shown.DatabaseURL)
			if app.cfg.Output != OutputTable {
				return printValue(app.out, app.cfg.Output, shown)
			}
			file := shown.File
			if file == "" {
				file = "(none)"
			}
			ui.Key(app.out, "config file", file)
			ui.Key(app.out, "database url", shown.DatabaseURL)
			ui.Key(app.out, "driver", shown.Driver)
			ui.Key(app.out, "schemas", shown.Schemas)
			ui.Key(app.out, "output", shown.Output)
			ui.Key(app.out, "debug", shown.Debug)
			return nil
		},
	}
	cmd.AddCommand(newConfigSaveCommand(app))
	return cmd
}

func newConfigSaveCommand(app *App) *cobra.Command {
	var withURL bool

	cmd := &cobra.Command{
		Use:   "save",
		Short: "Write the resolved configuration to $HOME/.config/massive/.massive.yaml",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.SaveConfig(app.v, app.cfg, withURL)
			if err != nil {
				return err
			}
			ui.PrintSuccess(app.out, "configuration written to %s", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&withURL, "with-url", false, "also store the database URL")
	return cmd
}

// redact hides the password in a connection URL.
func redact(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}
