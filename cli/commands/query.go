package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kzar79/massive-go/cli/internal/ui"
	"github.com/kzar79/massive-go/query"
)

// NewFindCommand creates the find command.
func NewFindCommand(app *App) *cobra.Command {
	var qf queryFlags

	cmd := &cobra.Command{
		Use:   "find <relation> [descriptor-json | pk]",
		Short: "Find rows matching a descriptor or primary key",
		Long:  criteriaHelp,
		Example: `  massive find products
  massive find products 3
  massive find products '{"price >": 20, "tags @>": ["sale"]}' --order "price desc" --limit 10`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			criteria, err := parseCriteria(args[1:])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			c, q, err := app.relation(ctx, args[0])
			if err != nil {
				return err
			}
			defer c.Close()

			if qf.stream {
				s, err := q.FindStream(ctx, criteria, qf.options(cmd)...)
				if err != nil {
					return err
				}
				return printStream(app.out, app.cfg.Output, s, q.Relation())
			}
			rows, err := q.Find(ctx, criteria, qf.options(cmd)...)
			if err != nil {
				return err
			}
			return printRows(app.out, app.cfg.Output, rows, q.Relation())
		},
	}
	qf.register(cmd, true, true)
	return cmd
}

// NewFindOneCommand creates the findone command.
func NewFindOneCommand(app *App) *cobra.Command {
	var qf queryFlags
	var strict bool

	cmd := &cobra.Command{
		Use:   "findone <relation> [descriptor-json | pk]",
		Short: "Find the first row matching a descriptor or primary key",
		Long:  criteriaHelp,
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			criteria, err := parseCriteria(args[1:])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			c, q, err := app.relation(ctx, args[0])
			if err != nil {
				return err
			}
			defer c.Close()

			find := q.FindOne
			if strict {
				find = q.FindOneOrThrow
			}
			row, err := find(ctx, criteria, qf.options(cmd)...)
			if err != nil {
				return err
			}
			if row == nil {
				if app.cfg.Output == OutputTable {
					ui.PrintWarning(app.out, "no row matches")
					return nil
				}
				return printValue(app.out, app.cfg.Output, nil)
			}
			if app.cfg.Output == OutputTable {
				return printRows(app.out, app.cfg.Output, []query.Row{row}, q.Relation())
			}
			return printValue(app.out, app.cfg.Output, row)
		},
	}
	qf.register(cmd, false, false)
	cmd.Flags().BoolVar(&strict, "strict", false, "fail when no row matches")
	return cmd
}

// NewWhereCommand creates the where command.
func NewWhereCommand(app *App) *cobra.Command {
	var qf queryFlags

	cmd := &cobra.Command{
		Use:   "where <relation> <condition> [param...]",
		Short: "Find rows matching a raw SQL condition",
		Example: `  massive where products 'price > $1 AND name <> $2' 20 "Product 4"
  massive where products 'specs IS NULL'`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := parseParams(args[2:])
			ctx := cmd.Context()
			c, q, err := app.relation(ctx, args[0])
			if err != nil {
				return err
			}
			defer c.Close()

			if qf.stream {
				s, err := q.WhereStream(ctx, args[1], params, qf.options(cmd)...)
				if err != nil {
					return err
				}
				return printStream(app.out, app.cfg.Output, s, q.Relation())
			}
			rows, err := q.Where(ctx, args[1], params, qf.options(cmd)...)
			if err != nil {
				return err
			}
			return printRows(app.out, app.cfg.Output, rows, q.Relation())
		},
	}
	qf.register(cmd, true, true)
	return cmd
}

// NewCountCommand creates the count command.
func NewCountCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "count <relation> [descriptor-json | condition [param...]]",
		Short: "Count rows matching a descriptor or raw condition",
		Example: `  massive count products
  massive count products '{"id": [1, 2]}'
  massive count products 'price > $1' 30`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			criteria, err := countCriteria(args[1:])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			c, q, err := app.relation(ctx, args[0])
			if err != nil {
				return err
			}
			defer c.Close()

			n, err := q.Count(ctx, criteria)
			if err != nil {
				return err
			}
			if app.cfg.Output == OutputTable {
				_, err = fmt.Fprintln(app.out, n)
				return err
			}
			return printValue(app.out, app.cfg.Output, map[string]int64{"count": n})
		},
	}
}

// countCriteria reads a descriptor, or a raw condition followed by its
// parameters.
func countCriteria(args []string) (query.Criteria, error) {
	if len(args) == 0 {
		return nil, nil
	}
	if isJSON(strings.TrimSpace(args[0])) {
		if len(args) > 1 {
			return nil, &query.ValidationError{Field: "args", Reason: "a descriptor takes no parameters"}
		}
		return parseCriteria(args)
	}
	return query.Raw{SQL: args[0], Params: parseParams(args[1:])}, nil
}

// NewSearchCommand creates the search command.
func NewSearchCommand(app *App) *cobra.Command {
	var qf queryFlags
	var search query.Search
	var mode string

	cmd := &cobra.Command{
		Use:   "search <relation>",
		Short: "Full-text search over one or more columns",
		Example: `  massive search products --fields name,description --term 'red & shoe'
  massive search products --fields description --term '"red shoe" -blue' --mode web --language english`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if mode != "" {
				m, err := query.ParseSearchMode(mode)
				if err != nil {
					return err
				}
				search.Mode = m
			}
			ctx := cmd.Context()
			c, q, err := app.relation(ctx, args[0])
			if err != nil {
				return err
			}
			defer c.Close()

			if qf.stream {
				s, err := q.SearchStream(ctx, search, qf.options(cmd)...)
				if err != nil {
					return err
				}
				return printStream(app.out, app.cfg.Output, s, q.Relation())
			}
			rows, err := q.Search(ctx, search, qf.options(cmd)...)
			if err != nil {
				return err
			}
			return printRows(app.out, app.cfg.Output, rows, q.Relation())
		},
	}
	qf.register(cmd, true, true)
	cmd.Flags().StringSliceVar(&search.Columns, "fields", nil, "columns to search, concatenated")
	cmd.Flags().StringVar(&search.Term, "term", "", "search term")
	cmd.Flags().StringVar(&mode, "mode", "", "term syntax: to, plain, phrase or web")
	cmd.Flags().StringVar(&search.Language, "language", "", "text search configuration, e.g. english")
	_ = cmd.MarkFlagRequired("fields")
	_ = cmd.MarkFlagRequired("term")
	return cmd
}
