// Package commands implements the massive CLI.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/kzar79/massive-go/cli/internal/config"
	"github.com/kzar79/massive-go/cli/internal/ui"
	"github.com/kzar79/massive-go/cli/internal/version"
	"github.com/kzar79/massive-go/internal/debug"
	"github.com/kzar79/massive-go/runtime/client"
)

// Output formats.
const (
	OutputTable = "table"
	OutputJSON  = "json"
	OutputYAML  = "yaml"
)

// ErrNoDatabaseURL is returned when a command needs a connection and none
// is configured.
var ErrNoDatabaseURL = errors.New("no database URL: set --url, MASSIVE_DATABASE_URL or DATABASE_URL")

// App carries the state shared by every command.
type App struct {
	v       *viper.Viper
	cfg     *config.Config
	cfgFile string
	noColor bool
	prompt  bool
	out     io.Writer
}

// Execute is the main entry point for the CLI
func Execute() error {
	cmd := NewRootCommand()
	if err := cmd.Execute(); err != nil {
		ui.PrintError("%v", err)
		return err
	}
	return nil
}

// NewRootCommand creates the massive root command.
func NewRootCommand() *cobra.Command {
	app := &App{v: viper.New()}

	cmd := &cobra.Command{
		Use:   "massive",
		Short: "Query PostgreSQL tables and views with descriptors",
		Long: `massive compiles criteria descriptors such as {"price >": 10, "tags @>": ["sale"]}
into parameterized SQL and runs them against the tables and views of a PostgreSQL
database. Use "massive sql" to see the statement without connecting.`,
		Version:       version.Get().String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.init(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&app.cfgFile, "config", "", "config file (default .massive.yaml in ., $HOME or $HOME/.config/massive)")
	flags.String("url", "", "database URL (or MASSIVE_DATABASE_URL, DATABASE_URL)")
	flags.String("driver", "postgres", "database driver: postgres or pgx")
	flags.StringSlice("schema", []string{"public"}, "schemas to load, in search order")
	flags.StringP("output", "o", OutputTable, "output format: table, json or yaml")
	flags.Bool("debug", false, "log statements to stderr")
	flags.String("log-format", string(debug.FormatText), "debug log format: text or json")
	flags.BoolVar(&app.noColor, "no-color", false, "disable colored output (also NO_COLOR)")
	flags.BoolVar(&app.prompt, "prompt", false, "prompt for the database URL when none is configured")
	bindFlags(app.v, flags, map[string]string{
		config.KeyDatabaseURL: "url",
		config.KeyDriver:      "driver",
		config.KeySchemas:     "schema",
		config.KeyOutput:      "output",
		config.KeyDebug:       "debug",
		config.KeyLogFormat:   "log-format",
	})

	cmd.AddCommand(NewFindCommand(app))
	cmd.AddCommand(NewFindOneCommand(app))
	cmd.AddCommand(NewWhereCommand(app))
	cmd.AddCommand(NewCountCommand(app))
	cmd.AddCommand(NewSearchCommand(app))
	cmd.AddCommand(NewSQLCommand(app))
	cmd.AddCommand(NewTablesCommand(app))
	cmd.AddCommand(NewConfigCommand(app))
	cmd.AddCommand(NewVersionCommand(app))
	return cmd
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}
}

func (a *App) init(cmd *cobra.Command) error {
	cfg, err := config.LoadConfig(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	switch cfg.Output {
	case OutputTable, OutputJSON, OutputYAML:
	default:
		return fmt.Errorf("unknown output format %q (want table, json or yaml)", cfg.Output)
	}

	if a.noColor || os.Getenv("NO_COLOR") != "" {
		ui.DisableColor()
	}
	debug.InitWithFormat(cfg.Debug, debug.Format(cfg.LogFormat), cmd.ErrOrStderr())
	a.cfg = cfg
	a.out = cmd.OutOrStdout()
	return nil
}

// connect opens a client with the resolved configuration, prompting for
// the URL when --prompt is set and none is configured.
func (a *App) connect(ctx context.Context) (*client.Client, error) {
	url := a.cfg.DatabaseURL
	if url == "" && a.prompt {
		var err error
		if url, err = config.PromptDatabaseURL(); err != nil {
			return nil, err
		}
	}
	if url == "" {
		return nil, ErrNoDatabaseURL
	}

	spinner := ui.Spinner("Loading schema...")
	c, err := client.Open(ctx,
		client.WithDriver(a.cfg.Driver),
		client.WithDatabaseURL(url),
		client.WithSchemas(a.cfg.Schemas...),
		client.WithLogQueries(a.cfg.Debug),
	)
	ui.StopSpinner(spinner)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// relation connects and resolves name. The caller closes the client.
func (a *App) relation(ctx context.Context, name string) (*client.Client, *client.Queryable, error) {
	c, err := a.connect(ctx)
	if err != nil {
		return nil, nil, err
	}
	q, err := c.Relation(name)
	if err != nil {
		c.Close()
		return nil, nil, err
	}
	return c, q, nil
}
