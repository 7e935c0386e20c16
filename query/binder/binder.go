// Package binder resolves raw syntax trees against the catalog.
//
// The binder turns an ast.Statement into a bound.Statement: entity names become
// catalog entities with SQL table aliases, property paths become column references on
// the physical table owning them, many-to-one navigation becomes implicit joins, and
// every parameter occurrence gets a ParameterSpec with its expected type. Enabled filters
// are injected into the WHERE clause of roots and the join condition of joins.
package binder

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/satishbabariya/aql-go/catalog"
	"github.com/satishbabariya/aql-go/query/ast"
	"github.com/satishbabariya/aql-go/query/bound"
	"github.com/satishbabariya/aql-go/query/parser"
	"github.com/satishbabariya/aql-go/query/qerrors"
)

// Options configures a Binder.
type Options struct {
	// Filters names the filters enabled for this compilation.
	Filters []string
	// Shallow binds entity projections to their identifiers and ignores fetches.
	Shallow bool
	// Constants resolves constants referenced by filter conditions.
	Constants parser.Constants
	// CollectionRole, in the form "Entity.collection", binds a select without a from
	// clause against the elements of that collection, aliased "this".
	CollectionRole string
}

// Binder binds one statement. It is not safe for concurrent use.
type Binder struct {
	catalog catalog.Catalog
	opts    Options
	filters []string
	aliases int
}

// New creates a Binder over cat.
func New(cat catalog.Catalog, opts Options) *Binder {
	filters := append([]string(nil), opts.Filters...)
	sort.Strings(filters)
	return &Binder{catalog: cat, opts: opts, filters: filters}
}

// scope holds the from elements visible to the expressions being bound.
type scope struct {
	from    []*bound.FromElement
	aliases map[string]*bound.FromElement
	// fallback resolves unqualified paths when set; otherwise the single root does.
	fallback *bound.FromElement
	// noJoins rejects paths that would need an implicit join.
	noJoins string
	// filter is the filter whose condition is being bound.
	filter   *catalog.FilterDef
	items    []*bound.ProjectionItem
	inSelect bool
}

func newScope() *scope {
	return &scope{aliases: map[string]*bound.FromElement{}}
}

func (sc *scope) implicitElement() *bound.FromElement {
	if sc.fallback != nil {
		return sc.fallback
	}
	var root *bound.FromElement
	for _, f := range sc.from {
		if f.IsJoin() {
			continue
		}
		if root != nil {
			return nil
		}
		root = f
	}
	return root
}

// Bind binds stmt.
func (b *Binder) Bind(stmt ast.Statement) (bound.Statement, error) {
	switch s := stmt.(type) {
	case *ast.Select:
		return b.bindSelect(newScope(), s)
	case *ast.Update:
		return b.bindUpdate(s)
	case *ast.Delete:
		return b.bindDelete(s)
	case *ast.Insert:
		return b.bindInsert(s)
	default:
		return nil, qerrors.NewQueryError("unexpected statement type", fmt.Sprintf("%T", stmt))
	}
}

var aliasSanitizer = regexp.MustCompile(`[^a-z0-9]`)

// tableAlias generates the SQL alias of an element: a prefix of the table name, a
// counter and a trailing underscore, e.g. "patient0_".
func (b *Binder) tableAlias(e *catalog.Entity) string {
	name := aliasSanitizer.ReplaceAllString(strings.ToLower(e.PrimaryTable().Name), "")
	if len(name) > 10 {
		name = name[:10]
	}
	if name == "" || (name[0] >= '0' && name[0] <= '9') {
		name = "t" + name
	}
	alias := name + strconv.Itoa(b.aliases) + "_"
	b.aliases++
	return alias
}

func (b *Binder) entity(name string) (*catalog.Entity, error) {
	e, ok := b.catalog.Entity(name)
	if !ok {
		return nil, qerrors.Semanticf(name, "entity is not mapped")
	}
	return e, nil
}

func (b *Binder) declare(sc *scope, fe *bound.FromElement) error {
	if fe.Alias != "" {
		if _, dup := sc.aliases[fe.Alias]; dup {
			return qerrors.Semanticf(fe.Alias, "alias is already defined")
		}
		sc.aliases[fe.Alias] = fe
	}
	sc.from = append(sc.from, fe)
	return nil
}

func (b *Binder) bindFrom(sc *scope, from *ast.From) error {
	for _, item := range from.Items {
		switch it := item.(type) {
		case *ast.Range:
			e, err := b.entity(it.Entity)
			if err != nil {
				return err
			}
			fe := &bound.FromElement{Entity: e, Alias: it.Alias, TableAlias: b.tableAlias(e)}
			if err := b.declare(sc, fe); err != nil {
				return err
			}
		case *ast.Join:
			if err := b.bindJoin(sc, it); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *Binder) bindJoin(sc *scope, j *ast.Join) error {
	path := j.Path.String()
	if len(j.Path.Parts) != 2 {
		return qerrors.Semanticf(path, "join path must be an alias followed by an association")
	}
	origin, ok := sc.aliases[j.Path.Parts[0]]
	if !ok {
		return qerrors.Semanticf(path, "unknown alias %q", j.Path.Parts[0])
	}
	assoc, ok := origin.Entity.Association(j.Path.Parts[1])
	if !ok {
		return qerrors.Semanticf(path, "%s has no association %q", origin.Entity.Name, j.Path.Parts[1])
	}
	target, err := b.entity(assoc.Target)
	if err != nil {
		return err
	}
	fe := &bound.FromElement{
		Entity:      target,
		Alias:       j.Alias,
		TableAlias:  b.tableAlias(target),
		Origin:      origin,
		Association: assoc,
		JoinType:    j.Kind,
		Fetch:       j.Fetch && !b.opts.Shallow,
	}
	if j.With != nil {
		if fe.Fetch {
			return qerrors.Semanticf(path, "with clause not allowed on fetched associations")
		}
		// the joined alias is visible in its own with clause
		if err := b.declare(sc, fe); err != nil {
			return err
		}
		with, err := b.expr(sc, j.With)
		if err != nil {
			return err
		}
		fe.With = with
		return nil
	}
	return b.declare(sc, fe)
}

func (b *Binder) bindSelect(sc *scope, s *ast.Select) (*bound.Select, error) {
	out := &bound.Select{Distinct: s.Distinct, Shallow: b.opts.Shallow}

	var restriction bound.Expr
	switch {
	case s.From != nil:
		if err := b.bindFrom(sc, s.From); err != nil {
			return nil, err
		}
	case b.opts.CollectionRole != "":
		cond, err := b.bindCollectionBasis(sc)
		if err != nil {
			return nil, err
		}
		restriction = cond
	default:
		return nil, qerrors.Semanticf("", "select statement requires a from clause")
	}

	// filters on explicit elements; implied joins created later are not filtered
	for _, fe := range append([]*bound.FromElement(nil), sc.from...) {
		cond, err := b.filterCondition(fe)
		if err != nil {
			return nil, err
		}
		if cond == nil {
			continue
		}
		if fe.IsJoin() {
			fe.With = and(fe.With, cond)
		} else {
			restriction = and(restriction, cond)
		}
	}

	projection, err := b.bindProjection(sc, s)
	if err != nil {
		return nil, err
	}
	out.Projection = projection

	where, err := b.optional(sc, s.Where)
	if err != nil {
		return nil, err
	}
	out.Where = and(restriction, where)

	for _, g := range s.GroupBy {
		e, err := b.expr(sc, g)
		if err != nil {
			return nil, err
		}
		out.GroupBy = append(out.GroupBy, e)
	}
	if out.Having, err = b.optional(sc, s.Having); err != nil {
		return nil, err
	}
	for _, o := range s.OrderBy {
		e, err := b.orderExpr(sc, o.Expr)
		if err != nil {
			return nil, err
		}
		out.OrderBy = append(out.OrderBy, &bound.OrderItem{Expr: e, Desc: o.Desc})
	}

	out.From = sc.from
	assignColumns(out.Projection)
	return out, nil
}

// bindCollectionBasis creates the "this" root of a collection filter and returns the
// owner key restriction.
func (b *Binder) bindCollectionBasis(sc *scope) (bound.Expr, error) {
	role := b.opts.CollectionRole
	dot := strings.LastIndex(role, ".")
	if dot <= 0 {
		return nil, qerrors.Semanticf(role, "collection role must be Entity.collection")
	}
	owner, err := b.entity(role[:dot])
	if err != nil {
		return nil, err
	}
	assoc, ok := owner.Association(role[dot+1:])
	if !ok || !assoc.IsCollection() {
		return nil, qerrors.Semanticf(role, "%s has no collection %q", owner.Name, role[dot+1:])
	}
	if len(assoc.Columns) != 1 {
		return nil, qerrors.Semanticf(role, "collection filters need a single-column owner key")
	}
	target, err := b.entity(assoc.Target)
	if err != nil {
		return nil, err
	}
	fe := &bound.FromElement{Entity: target, Alias: "this", TableAlias: b.tableAlias(target)}
	if err := b.declare(sc, fe); err != nil {
		return nil, err
	}
	key := &bound.ColumnRef{
		From:        fe,
		Association: assoc,
		Columns:     assoc.Columns,
		Table:       0,
		ColType:     owner.Identifier.Type,
	}
	spec := &bound.ParameterSpec{Kind: bound.OwnerKeyParameter, Type: owner.Identifier.Type}
	return &bound.Compare{Op: "=", Left: key, Right: &bound.Param{Spec: spec}}, nil
}

func (b *Binder) filterCondition(fe *bound.FromElement) (bound.Expr, error) {
	var cond bound.Expr
	for _, name := range b.filters {
		def, ok := fe.Entity.Filter(name)
		if !ok {
			continue
		}
		raw, err := parser.ParseExpression(def.Condition)
		if err != nil {
			return nil, fmt.Errorf("filter %s of %s: %w", name, fe.Entity.Name, err)
		}
		raw = parser.FoldExpr(raw, b.opts.Constants)

		fsc := &scope{
			aliases:  map[string]*bound.FromElement{},
			from:     []*bound.FromElement{fe},
			fallback: fe,
			noJoins:  "implicit joins are not allowed in filter conditions",
			filter:   def,
		}
		e, err := b.expr(fsc, raw)
		if err != nil {
			return nil, fmt.Errorf("filter %s of %s: %w", name, fe.Entity.Name, err)
		}
		cond = and(cond, e)
	}
	return cond, nil
}

func (b *Binder) bindProjection(sc *scope, s *ast.Select) (*bound.Projection, error) {
	p := &bound.Projection{}
	if len(s.Items) == 0 {
		// implicit select returns every root and explicitly joined, non-fetched element
		for _, fe := range sc.from {
			if fe.Fetch || fe.Implied {
				continue
			}
			p.Items = append(p.Items, &bound.ProjectionItem{
				Alias:   itemAlias(fe.Alias, len(p.Items)),
				Expr:    &bound.EntityRef{From: fe},
				Shallow: b.opts.Shallow,
			})
		}
	} else {
		sc.inSelect = true
		for _, item := range s.Items {
			e, err := b.expr(sc, item.Expr)
			if err != nil {
				sc.inSelect = false
				return nil, err
			}
			_, isEntity := e.(*bound.EntityRef)
			p.Items = append(p.Items, &bound.ProjectionItem{
				Alias:   itemAlias(item.Alias, len(p.Items)),
				Expr:    e,
				Shallow: isEntity && b.opts.Shallow,
			})
		}
		sc.inSelect = false
	}
	sc.items = p.Items

	selected := map[*bound.FromElement]bool{}
	for _, it := range p.Items {
		if fe := it.Entity(); fe != nil {
			selected[fe] = true
		}
	}
	for _, fe := range sc.from {
		if !fe.Fetch {
			continue
		}
		if !selected[fe.Origin] {
			return nil, qerrors.Semanticf(fe.Path(),
				"query specified join fetching, but the owner of the fetched association was not present in the select list")
		}
		selected[fe] = true
		p.Fetches = append(p.Fetches, &bound.FetchItem{From: fe})
	}
	return p, nil
}

func itemAlias(alias string, i int) string {
	if alias != "" {
		return alias
	}
	return strconv.Itoa(i)
}

// assignColumns assigns SQL column aliases to projection items and fetches.
func assignColumns(p *bound.Projection) {
	for i, it := range p.Items {
		switch e := it.Expr.(type) {
		case *bound.EntityRef:
			props := e.From.Entity.AllProperties()
			if it.Shallow {
				props = props[:1]
			}
			it.Properties = props
			it.Columns = aliases(i, props)
		case *bound.ColumnRef:
			it.Columns = make([]string, len(e.Columns))
			for j := range e.Columns {
				it.Columns[j] = bound.ColumnAlias(i, j)
			}
		default:
			it.Columns = []string{bound.ColumnAlias(i, 0)}
		}
	}
	for k, f := range p.Fetches {
		f.Properties = f.From.Entity.AllProperties()
		f.Columns = aliases(len(p.Items)+k, f.Properties)
	}
}

func aliases(i int, props []*catalog.Property) []string {
	var out []string
	j := 0
	for _, prop := range props {
		for range prop.Columns {
			out = append(out, bound.ColumnAlias(i, j))
			j++
		}
	}
	return out
}

func (b *Binder) orderExpr(sc *scope, e ast.Expr) (bound.Expr, error) {
	if p, ok := e.(*ast.Path); ok && len(p.Parts) == 1 {
		if _, isAlias := sc.aliases[p.Parts[0]]; !isAlias {
			for _, it := range sc.items {
				if it.Alias == p.Parts[0] {
					return &bound.ItemRef{Item: it}, nil
				}
			}
		}
	}
	return b.expr(sc, e)
}

func (b *Binder) optional(sc *scope, e ast.Expr) (bound.Expr, error) {
	if e == nil {
		return nil, nil
	}
	return b.expr(sc, e)
}

func and(a, c bound.Expr) bound.Expr {
	switch {
	case a == nil:
		return c
	case c == nil:
		return a
	default:
		return &bound.Binary{Op: "and", Left: a, Right: c, ResultType: catalog.Boolean}
	}
}
