// Package catalog describes the persistent entity model that queries are compiled against.
//
// An Entity maps onto one or more physical tables. The first table is the primary table
// and owns the identifier columns; every further table is a secondary table whose key
// columns reference the primary identifier. Queries resolve property paths through the
// catalog to find column names, SQL types and the physical table owning each property.
package catalog

import (
	"fmt"
	"sort"
	"strings"
)

// Type is the SQL-level type of a property.
type Type string

const (
	// String is a character type.
	String Type = "string"
	// Integer is a whole-number type.
	Integer Type = "integer"
	// Float is a floating-point type.
	Float Type = "float"
	// Boolean is a boolean type.
	Boolean Type = "boolean"
	// Timestamp is a date-time type.
	Timestamp Type = "timestamp"
	// Binary is a byte-array type.
	Binary Type = "binary"
	// Unknown is used for expressions whose type cannot be inferred.
	Unknown Type = ""
)

// Valid reports whether t is a known property type.
func (t Type) Valid() bool {
	switch t {
	case String, Integer, Float, Boolean, Timestamp, Binary:
		return true
	}
	return false
}

// Numeric reports whether t is a numeric type.
func (t Type) Numeric() bool {
	return t == Integer || t == Float
}

// AssociationKind is the cardinality of an association.
type AssociationKind string

const (
	// ManyToOne references a single target entity through foreign-key columns on the owner.
	ManyToOne AssociationKind = "many-to-one"
	// OneToMany is a collection of target entities whose foreign-key columns reference the owner.
	OneToMany AssociationKind = "one-to-many"
)

// Catalog resolves entity names to their metadata.
type Catalog interface {
	// Entity returns the entity registered under name.
	Entity(name string) (*Entity, bool)
	// Entities returns every registered entity ordered by name.
	Entities() []*Entity
}

// Table is a physical table holding (part of) an entity.
type Table struct {
	Name string
	// Key holds the columns joining this table to the identifier of the primary table.
	// For the primary table it equals the identifier columns.
	Key []string
	// Optional secondary tables are joined with an outer join.
	Optional bool
}

// Property is a mapped, non-association attribute of an entity.
type Property struct {
	Name    string
	Columns []string
	Type    Type
	// Table names the physical table holding the columns.
	Table string
}

// Association is a navigable reference from one entity to another.
type Association struct {
	Name   string
	Kind   AssociationKind
	Target string
	// Columns are the foreign-key columns. For many-to-one they live on the owner's
	// Table, for one-to-many they live on the target's primary table.
	Columns []string
	// Table is the owner table holding a many-to-one foreign key.
	Table string
}

// IsCollection reports whether navigating the association fans out into many rows.
func (a *Association) IsCollection() bool {
	return a.Kind == OneToMany
}

// FilterDef is a named row-level restriction that can be enabled per session.
// Condition is an AQL predicate over the entity's properties; it may reference
// filter parameters as :name.
type FilterDef struct {
	Name       string
	Condition  string
	Parameters map[string]Type
}

// Entity is a logical entity type.
type Entity struct {
	Name         string
	Tables       []*Table
	Identifier   *Property
	Properties   []*Property
	Associations []*Association
	Filters      []*FilterDef

	props   map[string]*Property
	assocs  map[string]*Association
	filters map[string]*FilterDef
	tables  map[string]*Table
}

// PrimaryTable returns the table owning the identifier.
func (e *Entity) PrimaryTable() *Table {
	return e.Tables[0]
}

// SecondaryTables returns the tables sharing the primary key, in declaration order.
func (e *Entity) SecondaryTables() []*Table {
	return e.Tables[1:]
}

// IsMultiTable reports whether the entity spans more than one physical table.
func (e *Entity) IsMultiTable() bool {
	return len(e.Tables) > 1
}

// IdentifierColumns returns the identifier columns on the primary table.
func (e *Entity) IdentifierColumns() []string {
	return e.Identifier.Columns
}

// Property returns the property called name. The identifier is a property too.
func (e *Entity) Property(name string) (*Property, bool) {
	p, ok := e.props[name]
	return p, ok
}

// Association returns the association called name.
func (e *Entity) Association(name string) (*Association, bool) {
	a, ok := e.assocs[name]
	return a, ok
}

// Filter returns the filter definition called name.
func (e *Entity) Filter(name string) (*FilterDef, bool) {
	f, ok := e.filters[name]
	return f, ok
}

// Table returns the physical table called name.
func (e *Entity) Table(name string) (*Table, bool) {
	t, ok := e.tables[name]
	return t, ok
}

// PropertyTable returns the physical table owning the named property.
func (e *Entity) PropertyTable(name string) (*Table, error) {
	p, ok := e.Property(name)
	if !ok {
		return nil, fmt.Errorf("entity %s has no property %q", e.Name, name)
	}
	t, ok := e.Table(p.Table)
	if !ok {
		return nil, fmt.Errorf("property %s.%s is mapped to unknown table %q", e.Name, name, p.Table)
	}
	return t, nil
}

// TableIndex returns the position of the named table in Tables, or -1.
func (e *Entity) TableIndex(name string) int {
	for i, t := range e.Tables {
		if t.Name == name {
			return i
		}
	}
	return -1
}

// AllProperties returns the identifier followed by every other property.
func (e *Entity) AllProperties() []*Property {
	out := make([]*Property, 0, len(e.Properties)+1)
	out = append(out, e.Identifier)
	return append(out, e.Properties...)
}

func (e *Entity) index() error {
	if e.Name == "" {
		return fmt.Errorf("entity without a name")
	}
	if len(e.Tables) == 0 {
		return fmt.Errorf("entity %s has no tables", e.Name)
	}
	if e.Identifier == nil || len(e.Identifier.Columns) == 0 {
		return fmt.Errorf("entity %s has no identifier", e.Name)
	}

	e.tables = make(map[string]*Table, len(e.Tables))
	for i, t := range e.Tables {
		if _, dup := e.tables[t.Name]; dup {
			return fmt.Errorf("entity %s maps table %q twice", e.Name, t.Name)
		}
		if i == 0 && len(t.Key) == 0 {
			t.Key = e.Identifier.Columns
		}
		if len(t.Key) != len(e.Identifier.Columns) {
			return fmt.Errorf("table %s of entity %s has %d key columns, identifier has %d",
				t.Name, e.Name, len(t.Key), len(e.Identifier.Columns))
		}
		e.tables[t.Name] = t
	}

	if e.Identifier.Table == "" {
		e.Identifier.Table = e.Tables[0].Name
	}
	if e.Identifier.Table != e.Tables[0].Name {
		return fmt.Errorf("identifier of %s must live on the primary table %s", e.Name, e.Tables[0].Name)
	}

	e.props = make(map[string]*Property, len(e.Properties)+1)
	e.props[e.Identifier.Name] = e.Identifier
	for _, p := range e.Properties {
		if p.Table == "" {
			p.Table = e.Tables[0].Name
		}
		if _, ok := e.tables[p.Table]; !ok {
			return fmt.Errorf("property %s.%s is mapped to unknown table %q", e.Name, p.Name, p.Table)
		}
		if len(p.Columns) == 0 {
			return fmt.Errorf("property %s.%s has no columns", e.Name, p.Name)
		}
		if !p.Type.Valid() {
			return fmt.Errorf("property %s.%s has unknown type %q", e.Name, p.Name, p.Type)
		}
		if _, dup := e.props[p.Name]; dup {
			return fmt.Errorf("entity %s declares property %q twice", e.Name, p.Name)
		}
		e.props[p.Name] = p
	}

	e.assocs = make(map[string]*Association, len(e.Associations))
	for _, a := range e.Associations {
		if _, dup := e.props[a.Name]; dup {
			return fmt.Errorf("association %s.%s shadows a property", e.Name, a.Name)
		}
		if a.Kind == ManyToOne && a.Table == "" {
			a.Table = e.Tables[0].Name
		}
		e.assocs[a.Name] = a
	}

	e.filters = make(map[string]*FilterDef, len(e.Filters))
	for _, f := range e.Filters {
		e.filters[f.Name] = f
	}
	return nil
}

// Registry is an in-memory Catalog.
type Registry struct {
	entities map[string]*Entity
	tables   map[string]*Entity
}

// NewRegistry indexes and validates the given entities.
func NewRegistry(entities ...*Entity) (*Registry, error) {
	r := &Registry{
		entities: make(map[string]*Entity, len(entities)),
		tables:   make(map[string]*Entity),
	}
	for _, e := range entities {
		if err := e.index(); err != nil {
			return nil, err
		}
		if _, dup := r.entities[e.Name]; dup {
			return nil, fmt.Errorf("entity %s registered twice", e.Name)
		}
		r.entities[e.Name] = e
		for _, t := range e.Tables {
			if owner, dup := r.tables[t.Name]; dup {
				return nil, fmt.Errorf("table %s is mapped by both %s and %s", t.Name, owner.Name, e.Name)
			}
			r.tables[t.Name] = e
		}
	}

	for _, e := range entities {
		for _, a := range e.Associations {
			target, ok := r.entities[a.Target]
			if !ok {
				return nil, fmt.Errorf("association %s.%s targets unknown entity %q", e.Name, a.Name, a.Target)
			}
			var want int
			switch a.Kind {
			case ManyToOne:
				want = len(target.IdentifierColumns())
				if _, ok := e.Table(a.Table); !ok {
					return nil, fmt.Errorf("association %s.%s is mapped to unknown table %q", e.Name, a.Name, a.Table)
				}
			case OneToMany:
				want = len(e.IdentifierColumns())
			default:
				return nil, fmt.Errorf("association %s.%s has unknown kind %q", e.Name, a.Name, a.Kind)
			}
			if len(a.Columns) != want {
				return nil, fmt.Errorf("association %s.%s needs %d foreign-key columns, has %d",
					e.Name, a.Name, want, len(a.Columns))
			}
		}
	}
	return r, nil
}

// MustRegistry is like NewRegistry but panics on error.
func MustRegistry(entities ...*Entity) *Registry {
	r, err := NewRegistry(entities...)
	if err != nil {
		panic(err)
	}
	return r
}

// Entity implements Catalog.
func (r *Registry) Entity(name string) (*Entity, bool) {
	e, ok := r.entities[name]
	if !ok {
		// entity names are matched case-insensitively as a fallback
		for n, candidate := range r.entities {
			if strings.EqualFold(n, name) {
				return candidate, true
			}
		}
	}
	return e, ok
}

// Entities implements Catalog.
func (r *Registry) Entities() []*Entity {
	out := make([]*Entity, 0, len(r.entities))
	for _, e := range r.entities {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// EntityForTable returns the entity mapping the physical table.
func (r *Registry) EntityForTable(table string) (*Entity, bool) {
	e, ok := r.tables[table]
	return e, ok
}

var _ Catalog = (*Registry)(nil)
