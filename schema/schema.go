// Package schema describes the relations a client can query: their columns,
// primary keys and kind. Snapshots are loaded once from PostgreSQL's
// information_schema and treated as read-only afterwards.
package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/go-version"

	"github.com/kzar79/massive-go/query"
)

// RelationKind distinguishes tables from views.
type RelationKind string

const (
	KindTable RelationKind = "table"
	KindView  RelationKind = "view"
)

// ColumnKind is the coarse type class the compiler cares about.
type ColumnKind int

const (
	ColumnOther ColumnKind = iota
	ColumnJSON
	ColumnArray
	ColumnText
	ColumnNumeric
	ColumnBool
	ColumnTemporal
	ColumnUUID
)

// Column describes one column of a relation.
type Column struct {
	Name     string
	DataType string
	UDTName  string
	Nullable bool
	Position int
}

// Kind derives the column's type class from its information_schema types.
func (c Column) Kind() ColumnKind {
	dt := strings.ToLower(c.DataType)
	switch {
	case dt == "array" || strings.HasPrefix(c.UDTName, "_"):
		return ColumnArray
	case dt == "json" || dt == "jsonb":
		return ColumnJSON
	case dt == "uuid":
		return ColumnUUID
	case dt == "boolean":
		return ColumnBool
	case strings.Contains(dt, "char") || dt == "text" || dt == "citext":
		return ColumnText
	case strings.Contains(dt, "int") || dt == "numeric" || dt == "real" || dt == "double precision" || dt == "money":
		return ColumnNumeric
	case strings.HasPrefix(dt, "timestamp") || dt == "date" || strings.HasPrefix(dt, "time") || dt == "interval":
		return ColumnTemporal
	}
	return ColumnOther
}

// Relation is a table or view.
type Relation struct {
	Schema     string
	Name       string
	Kind       RelationKind
	Columns    []Column
	KeyColumns []string
	Updatable  bool
}

// PrimaryKey returns the single-column primary key, or "" when the relation
// has none or a composite one.
func (r *Relation) PrimaryKey() string {
	if len(r.KeyColumns) != 1 {
		return ""
	}
	return r.KeyColumns[0]
}

// Column looks up a column by name.
func (r *Relation) Column(name string) (Column, bool) {
	for _, c := range r.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// ColumnNames lists the columns in ordinal order.
func (r *Relation) ColumnNames() []string {
	names := make([]string, len(r.Columns))
	for i, c := range r.Columns {
		names[i] = c.Name
	}
	return names
}

// QualifiedName returns schema.name.
func (r *Relation) QualifiedName() string {
	if r.Schema == "" {
		return r.Name
	}
	return r.Schema + "." + r.Name
}

func (r *Relation) String() string {
	return r.QualifiedName()
}

// Snapshot is an immutable set of relations.
type Snapshot struct {
	relations map[string]*Relation
	ordered   []*Relation
	// SearchPath orders schemas when resolving an unqualified name.
	SearchPath []string
	Version    *version.Version
}

// NewSnapshot builds a snapshot from relations. searchPath defaults to
// the schemas in the order they first appear.
func NewSnapshot(relations []Relation, searchPath ...string) *Snapshot {
	s := &Snapshot{relations: make(map[string]*Relation, len(relations))}
	seen := map[string]bool{}
	for i := range relations {
		r := relations[i]
		r.Columns = append([]Column(nil), r.Columns...)
		sort.SliceStable(r.Columns, func(a, b int) bool { return r.Columns[a].Position < r.Columns[b].Position })
		s.relations[r.QualifiedName()] = &r
		s.ordered = append(s.ordered, &r)
		if !seen[r.Schema] {
			seen[r.Schema] = true
			if len(searchPath) == 0 {
				s.SearchPath = append(s.SearchPath, r.Schema)
			}
		}
	}
	if len(searchPath) > 0 {
		s.SearchPath = searchPath
	}
	sort.SliceStable(s.ordered, func(a, b int) bool {
		return s.ordered[a].QualifiedName() < s.ordered[b].QualifiedName()
	})
	return s
}

// Relation resolves name, which may be qualified as schema.name.
func (s *Snapshot) Relation(name string) (*Relation, error) {
	if r, ok := s.relations[name]; ok {
		return r, nil
	}
	if !strings.Contains(name, ".") {
		for _, schema := range s.SearchPath {
			if r, ok := s.relations[schema+"."+name]; ok {
				return r, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %s", query.ErrUnknownRelation, name)
}

// Relations returns every relation sorted by qualified name.
func (s *Snapshot) Relations() []*Relation {
	out := make([]*Relation, len(s.ordered))
	copy(out, s.ordered)
	return out
}

// Len returns the number of relations.
func (s *Snapshot) Len() int {
	return len(s.ordered)
}
