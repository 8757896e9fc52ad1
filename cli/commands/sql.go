package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kzar79/massive-go/cli/internal/ui"
	"github.com/kzar79/massive-go/query"
	"github.com/kzar79/massive-go/runtime/client"
	"github.com/kzar79/massive-go/schema"
)

type statementOutput struct {
	SQL  string `json:"sql" yaml:"sql"`
	Args []any  `json:"args" yaml:"args"`
}

// NewSQLCommand creates the sql command, a dry run that prints the
// statement find or count would execute without connecting.
func NewSQLCommand(app *App) *cobra.Command {
	var qf queryFlags
	var pk string
	var count bool

	cmd := &cobra.Command{
		Use:   "sql <relation> [descriptor-json | pk]",
		Short: "Print the SQL a find would run, without connecting",
		Long:  criteriaHelp,
		Example: `  massive sql products '{"price >": 20, "specs->>color": "red"}' --limit 5
  massive sql store.orders 5d8e7c1a-3c2b-4f0e-9a77-0a1b2c3d4e5f
  massive sql products '{"id": [1, 2]}' --count`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			criteria, err := parseCriteria(args[1:])
			if err != nil {
				return err
			}
			q := dryRelation(args[0], app.cfg.Schemas, pk)

			var stmt query.Statement
			if count {
				stmt, err = q.CompileCount(criteria)
			} else {
				stmt, err = q.Compile(criteria, qf.options(cmd)...)
			}
			if err != nil {
				return err
			}
			return printStatement(app, stmt)
		},
	}
	qf.register(cmd, true, false)
	cmd.Flags().StringVar(&pk, "pk", "id", "primary key column used for key lookups and default ordering (empty for none)")
	cmd.Flags().BoolVar(&count, "count", false, "print the count statement instead")
	return cmd
}

// dryRelation builds a Queryable over a relation known only by name. It
// has no column metadata, so type checks are skipped.
func dryRelation(name string, schemas []string, pk string) *client.Queryable {
	rel := schema.Relation{Schema: "public", Name: name, Kind: schema.KindTable}
	if len(schemas) > 0 {
		rel.Schema = schemas[0]
	}
	if i := strings.LastIndex(name, "."); i > 0 {
		rel.Schema, rel.Name = name[:i], name[i+1:]
	}
	if pk != "" {
		rel.KeyColumns = []string{pk}
	}
	c := client.New(nil, schema.NewSnapshot([]schema.Relation{rel}))
	return c.MustRelation(rel.QualifiedName())
}

func printStatement(app *App, stmt query.Statement) error {
	args := stmt.Args
	if args == nil {
		args = []any{}
	}
	if app.cfg.Output != OutputTable {
		return printValue(app.out, app.cfg.Output, statementOutput{SQL: stmt.SQL, Args: args})
	}

	ui.PrintCodeBlock(app.out, stmt.SQL, "sql")
	for i, a := range args {
		ui.Key(app.out, fmt.Sprintf("$%d", i+1), fmt.Sprintf("%s (%T)", formatValue(a), a))
	}
	return nil
}
