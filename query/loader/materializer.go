package loader

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/satishbabariya/aql-go/catalog"
	"github.com/satishbabariya/aql-go/query/bound"
)

// Materializer converts raw rows into result objects.
type Materializer interface {
	// Begin starts one execution over rows shaped by p.
	Begin(p *bound.Projection) RowMaterializer
}

// RowMaterializer converts the rows of one execution. row holds the scanned values of
// every projection item column followed by every fetch column.
type RowMaterializer interface {
	Materialize(row []any) (any, error)
}

// Entity is a materialized entity instance.
type Entity struct {
	Name string
	ID   any
	// Values holds the property values and fetched many-to-one associations.
	Values map[string]any
	// Collections holds fetched collections by association name.
	Collections map[string][]*Entity
}

// Get returns the value of a property.
func (e *Entity) Get(name string) any {
	return e.Values[name]
}

// String renders the entity as Name#ID.
func (e *Entity) String() string {
	return fmt.Sprintf("%s#%v", e.Name, e.ID)
}

// EntityMaterializer builds *Entity results. Within one execution the same row identity
// always yields the same *Entity, so fan-out rows of a collection fetch share one
// instance. Single-item projections return the item value, tuples return []any.
type EntityMaterializer struct{}

// Begin implements Materializer.
func (EntityMaterializer) Begin(p *bound.Projection) RowMaterializer {
	return &entityRows{projection: p, identities: map[string]*Entity{}}
}

type entityRows struct {
	projection *bound.Projection
	identities map[string]*Entity
}

func (m *entityRows) Materialize(row []any) (any, error) {
	p := m.projection
	elements := map[*bound.FromElement]*Entity{}
	values := make([]any, len(p.Items))
	off := 0
	for i, it := range p.Items {
		n := len(it.Columns)
		if off+n > len(row) {
			return nil, fmt.Errorf("row has %d columns, projection needs more", len(row))
		}
		cols := row[off : off+n]
		off += n

		fe := it.Entity()
		switch {
		case fe != nil && it.Shallow:
			values[i] = scalar(cols)
		case fe != nil:
			e := m.entity(fe.Entity, it.Properties, cols)
			elements[fe] = e
			values[i] = nilIfEmpty(e)
		default:
			values[i] = scalar(cols)
		}
	}

	for _, f := range p.Fetches {
		n := len(f.Columns)
		if off+n > len(row) {
			return nil, fmt.Errorf("row has %d columns, fetches need more", len(row))
		}
		e := m.entity(f.From.Entity, f.Properties, row[off:off+n])
		off += n
		elements[f.From] = e

		owner := elements[f.From.Origin]
		if owner == nil {
			continue
		}
		name := f.From.Association.Name
		if !f.From.Association.IsCollection() {
			owner.Values[name] = nilIfEmpty(e)
			continue
		}
		if owner.Collections == nil {
			owner.Collections = map[string][]*Entity{}
		}
		members := owner.Collections[name]
		if members == nil {
			members = []*Entity{}
		}
		if e != nil && !contains(members, e) {
			members = append(members, e)
		}
		owner.Collections[name] = members
	}

	if len(values) == 1 {
		return values[0], nil
	}
	return values, nil
}

// entity returns the instance for the identifier in the leading columns, or nil when
// the identifier is null (an unmatched outer join).
func (m *entityRows) entity(meta *catalog.Entity, props []*catalog.Property, cols []any) *Entity {
	idCols := len(meta.Identifier.Columns)
	id := scalar(cols[:idCols])
	if isNull(cols[:idCols]) {
		return nil
	}
	key := meta.Name + "#" + fmt.Sprint(id)
	if e, ok := m.identities[key]; ok {
		return e
	}
	e := &Entity{Name: meta.Name, ID: normalize(id, meta.Identifier.Type), Values: map[string]any{}}
	k := 0
	for _, prop := range props {
		n := len(prop.Columns)
		e.Values[prop.Name] = normalize(scalar(cols[k:k+n]), prop.Type)
		k += n
	}
	m.identities[key] = e
	return e
}

func nilIfEmpty(e *Entity) any {
	if e == nil {
		return nil
	}
	return e
}

func scalar(cols []any) any {
	if len(cols) == 1 {
		return cols[0]
	}
	return append([]any(nil), cols...)
}

func isNull(cols []any) bool {
	for _, c := range cols {
		if c != nil {
			return false
		}
	}
	return true
}

// normalize converts driver text representations to strings.
func normalize(v any, t catalog.Type) any {
	if b, ok := v.([]byte); ok && t == catalog.String {
		return string(b)
	}
	return v
}

func contains(members []*Entity, e *Entity) bool {
	for _, m := range members {
		if m == e {
			return true
		}
	}
	return false
}

// Identical reports whether a and b are the same object: the same pointer or map.
// Values of other kinds are never identical.
func Identical(a, b any) bool {
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if !va.IsValid() || !vb.IsValid() || va.Type() != vb.Type() {
		return false
	}
	switch va.Kind() {
	case reflect.Pointer, reflect.Map:
		return va.Pointer() == vb.Pointer()
	}
	return false
}

// IdentitySet tracks objects by identity.
type IdentitySet struct {
	seen map[identity]struct{}
}

type identity struct {
	t reflect.Type
	p uintptr
}

// NewIdentitySet creates an empty set.
func NewIdentitySet() *IdentitySet {
	return &IdentitySet{seen: map[identity]struct{}{}}
}

// Add adds v and reports whether it was absent. Values that are not pointers or maps
// have no identity and are always added.
func (s *IdentitySet) Add(v any) bool {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return true
	}
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map:
	default:
		return true
	}
	id := identity{t: rv.Type(), p: rv.Pointer()}
	if _, ok := s.seen[id]; ok {
		return false
	}
	s.seen[id] = struct{}{}
	return true
}

// describe renders a result for debug output.
func describe(v any) string {
	switch r := v.(type) {
	case []any:
		parts := make([]string, len(r))
		for i, x := range r {
			parts[i] = fmt.Sprint(x)
		}
		return "(" + strings.Join(parts, ", ") + ")"
	default:
		return fmt.Sprint(v)
	}
}
