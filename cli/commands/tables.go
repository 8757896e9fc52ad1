package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kzar79/massive-go/cli/internal/ui"
	"github.com/kzar79/massive-go/schema"
)

type relationOutput struct {
	Name       string   `json:"name" yaml:"name"`
	Kind       string   `json:"kind" yaml:"kind"`
	PrimaryKey []string `json:"primary_key" yaml:"primary_key"`
	Columns    []string `json:"columns" yaml:"columns"`
	Updatable  bool     `json:"updatable" yaml:"updatable"`
}

// NewTablesCommand creates the tables command.
func NewTablesCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "tables",
		Aliases: []string{"relations"},
		Short:   "List the tables and views in the loaded schemas",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			if v := c.ServerVersion(); v != nil {
				ui.Key(app.out, "server", v.Original())
			}
			return printRelations(app, c.Relations())
		},
	}
}

func printRelations(app *App, relations []*schema.Relation) error {
	out := make([]relationOutput, len(relations))
	for i, r := range relations {
		out[i] = relationOutput{
			Name:       r.QualifiedName(),
			Kind:       string(r.Kind),
			PrimaryKey: r.KeyColumns,
			Columns:    r.ColumnNames(),
			Updatable:  r.Updatable,
		}
	}
	if app.cfg.Output != OutputTable {
		return printValue(app.out, app.cfg.Output, out)
	}

	ui.PrintSection(app.out, fmt.Sprintf("%d relation(s) in %s", len(out), strings.Join(app.cfg.Schemas, ", ")))
	rows := make([][]string, len(out))
	for i, r := range out {
		rows[i] = []string{r.Name, r.Kind, strings.Join(r.PrimaryKey, ", "), strconv.Itoa(len(r.Columns)), strconv.FormatBool(r.Updatable)}
	}
	return ui.PrintTable(app.out, []string{"relation", "kind", "primary key", "columns", "updatable"}, rows)
}
