// Package bound defines the semantically resolved statement tree.
//
// A bound statement is produced by the binder from a raw syntax tree. Every identifier
// in it has been resolved to an entity, a physical table and its columns, every parameter
// occurrence has a ParameterSpec, and the join topology is explicit. Bound statements
// are read-only once built.
package bound

import (
	"fmt"
	"sort"

	"github.com/satishbabariya/aql-go/catalog"
	"github.com/satishbabariya/aql-go/query/ast"
)

// Kind is the statement kind.
type Kind int

const (
	// SelectKind is a query returning rows.
	SelectKind Kind = iota
	// InsertKind is a bulk insert.
	InsertKind
	// UpdateKind is a bulk update.
	UpdateKind
	// DeleteKind is a bulk delete.
	DeleteKind
)

func (k Kind) String() string {
	switch k {
	case SelectKind:
		return "select"
	case InsertKind:
		return "insert"
	case UpdateKind:
		return "update"
	case DeleteKind:
		return "delete"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Statement is the sealed union of *Select, *Insert, *Update and *Delete.
type Statement interface {
	Kind() Kind
	// NeedsExecutor reports whether the statement is DML and runs through an executor
	// instead of the row loader.
	NeedsExecutor() bool
	// QuerySpaces returns the sorted physical tables the statement reads or writes.
	QuerySpaces() []string
	statement()
}

// FromElement is an entity occurrence in a statement: a root range, an explicit join or
// an implicit join created by navigating a many-to-one path.
type FromElement struct {
	Entity *catalog.Entity
	// Alias is the query alias. Generated aliases are used for anonymous elements.
	Alias string
	// TableAlias is the SQL alias of the primary table; secondary tables use
	// TableAliasAt.
	TableAlias string

	// Origin is the element this one was joined from; nil for roots.
	Origin      *FromElement
	Association *catalog.Association
	JoinType    ast.JoinKind
	Fetch       bool
	Implied     bool
	// With holds the extra join condition, including injected filters.
	With Expr
}

// IsJoin reports whether the element is joined from another element.
func (f *FromElement) IsJoin() bool { return f.Origin != nil }

// IsCollectionJoin reports whether joining the element fans out rows of its origin.
func (f *FromElement) IsCollectionJoin() bool {
	return f.Association != nil && f.Association.IsCollection()
}

// IsCollectionFetch reports whether the element is a fetched collection.
func (f *FromElement) IsCollectionFetch() bool {
	return f.Fetch && f.IsCollectionJoin()
}

// TableAliasAt returns the SQL alias of the i-th physical table of the entity.
func (f *FromElement) TableAliasAt(i int) string {
	if i == 0 {
		return f.TableAlias
	}
	return fmt.Sprintf("%s%d_", f.TableAlias, i)
}

// Path returns the alias, or the association path for anonymous joins.
func (f *FromElement) Path() string {
	if f.Origin != nil && f.Implied {
		return f.Origin.Path() + "." + f.Association.Name
	}
	return f.Alias
}

// Select is a bound select.
type Select struct {
	Distinct bool
	// From lists root ranges and joins in SQL order. A join always follows its origin.
	From       []*FromElement
	Projection *Projection
	Where      Expr
	GroupBy    []Expr
	Having     Expr
	OrderBy    []*OrderItem
	Shallow    bool
}

// OrderItem is an ordering term.
type OrderItem struct {
	Expr Expr
	Desc bool
}

// Roots returns the root ranges.
func (s *Select) Roots() []*FromElement {
	var out []*FromElement
	for _, f := range s.From {
		if !f.IsJoin() {
			out = append(out, f)
		}
	}
	return out
}

// ContainsCollectionFetches reports whether a fetched collection fans out result rows.
func (s *Select) ContainsCollectionFetches() bool {
	for _, f := range s.From {
		if f.IsCollectionFetch() {
			return true
		}
	}
	return false
}

// Kind implements Statement.
func (s *Select) Kind() Kind { return SelectKind }

// NeedsExecutor implements Statement.
func (s *Select) NeedsExecutor() bool { return false }

// QuerySpaces implements Statement.
func (s *Select) QuerySpaces() []string { return spaces(s.From...) }

// Assignment is one SET entry of an update.
type Assignment struct {
	Target *ColumnRef
	Value  Expr
}

// Update is a bulk update of one entity.
type Update struct {
	Target      *FromElement
	Assignments []*Assignment
	Where       Expr
}

// Kind implements Statement.
func (u *Update) Kind() Kind { return UpdateKind }

// NeedsExecutor implements Statement.
func (u *Update) NeedsExecutor() bool { return true }

// QuerySpaces implements Statement.
func (u *Update) QuerySpaces() []string { return spaces(u.Target) }

// AssignedTables returns the indexes of the target's physical tables written by the
// assignments, in table order.
func (u *Update) AssignedTables() []int {
	seen := map[int]bool{}
	for _, a := range u.Assignments {
		seen[a.Target.Table] = true
	}
	out := make([]int, 0, len(seen))
	for i := range u.Target.Entity.Tables {
		if seen[i] {
			out = append(out, i)
		}
	}
	return out
}

// Delete is a bulk delete of one entity.
type Delete struct {
	Target *FromElement
	Where  Expr
}

// Kind implements Statement.
func (d *Delete) Kind() Kind { return DeleteKind }

// NeedsExecutor implements Statement.
func (d *Delete) NeedsExecutor() bool { return true }

// QuerySpaces implements Statement.
func (d *Delete) QuerySpaces() []string { return spaces(d.Target) }

// Insert is insert-select or insert-values into a single physical table.
type Insert struct {
	Target *catalog.Entity
	// Table is the physical table receiving the rows.
	Table   *catalog.Table
	Columns []string
	Select  *Select
	Values  []Expr
}

// Kind implements Statement.
func (i *Insert) Kind() Kind { return InsertKind }

// NeedsExecutor implements Statement.
func (i *Insert) NeedsExecutor() bool { return true }

// QuerySpaces implements Statement.
func (i *Insert) QuerySpaces() []string {
	out := []string{i.Table.Name}
	if i.Select != nil {
		out = append(out, i.Select.QuerySpaces()...)
	}
	return dedupe(out)
}

func (*Select) statement() {}
func (*Update) statement() {}
func (*Delete) statement() {}
func (*Insert) statement() {}

func spaces(elements ...*FromElement) []string {
	var out []string
	for _, f := range elements {
		for _, t := range f.Entity.Tables {
			out = append(out, t.Name)
		}
	}
	return dedupe(out)
}

func dedupe(in []string) []string {
	sort.Strings(in)
	out := in[:0]
	for i, s := range in {
		if i == 0 || s != in[i-1] {
			out = append(out, s)
		}
	}
	return out
}
