package binder

import (
	"github.com/satishbabariya/aql-go/query/ast"
	"github.com/satishbabariya/aql-go/query/bound"
	"github.com/satishbabariya/aql-go/query/qerrors"
)

const bulkJoins = "implicit joins are not allowed in bulk statements"

func (b *Binder) dmlTarget(entity, alias string) (*scope, *bound.FromElement, error) {
	e, err := b.entity(entity)
	if err != nil {
		return nil, nil, err
	}
	sc := newScope()
	sc.noJoins = bulkJoins
	fe := &bound.FromElement{Entity: e, Alias: alias, TableAlias: b.tableAlias(e)}
	if err := b.declare(sc, fe); err != nil {
		return nil, nil, err
	}
	return sc, fe, nil
}

func (b *Binder) bindDelete(d *ast.Delete) (*bound.Delete, error) {
	sc, target, err := b.dmlTarget(d.Entity, d.Alias)
	if err != nil {
		return nil, err
	}
	where, err := b.optional(sc, d.Where)
	if err != nil {
		return nil, err
	}
	return &bound.Delete{Target: target, Where: where}, nil
}

func (b *Binder) bindUpdate(u *ast.Update) (*bound.Update, error) {
	sc, target, err := b.dmlTarget(u.Entity, u.Alias)
	if err != nil {
		return nil, err
	}
	out := &bound.Update{Target: target}
	for _, a := range u.Assignments {
		ref, err := b.assignable(sc, a.Target)
		if err != nil {
			return nil, err
		}
		value, err := b.expr(sc, a.Value)
		if err != nil {
			return nil, err
		}
		if err := unify(a.Value, ref, value); err != nil {
			return nil, err
		}
		if columnCount(value) != len(ref.Columns) {
			return nil, qerrors.Semanticf(a.Target.String(), "cannot assign a %d-column value to %d columns",
				columnCount(value), len(ref.Columns))
		}
		out.Assignments = append(out.Assignments, &bound.Assignment{Target: ref, Value: value})
	}
	if out.Where, err = b.optional(sc, u.Where); err != nil {
		return nil, err
	}
	return out, nil
}

// assignable resolves an assignment or insert target to a property or many-to-one
// foreign key of the statement's single element.
func (b *Binder) assignable(sc *scope, p *ast.Path) (*bound.ColumnRef, error) {
	e, err := b.resolvePath(sc, p)
	if err != nil {
		return nil, err
	}
	ref, ok := e.(*bound.ColumnRef)
	if !ok || ref.From.IsJoin() {
		return nil, qerrors.Semanticf(p.String(), "not an assignable property")
	}
	return ref, nil
}

func (b *Binder) bindInsert(ins *ast.Insert) (*bound.Insert, error) {
	sc, target, err := b.dmlTarget(ins.Entity, "")
	if err != nil {
		return nil, err
	}
	out := &bound.Insert{Target: target.Entity}

	var refs []*bound.ColumnRef
	table := -1
	for _, p := range ins.Properties {
		ref, err := b.assignable(sc, p)
		if err != nil {
			return nil, err
		}
		if table >= 0 && ref.Table != table {
			return nil, qerrors.Semanticf(p.String(),
				"insert into %s spans more than one table", target.Entity.Name)
		}
		table = ref.Table
		refs = append(refs, ref)
		out.Columns = append(out.Columns, ref.Columns...)
	}
	out.Table = target.Entity.Tables[table]

	if ins.Select != nil {
		sel, err := b.bindSelect(newScope(), ins.Select)
		if err != nil {
			return nil, err
		}
		n := 0
		for _, it := range sel.Projection.Items {
			n += columnCount(it.Expr)
		}
		if len(sel.Projection.Fetches) > 0 {
			return nil, qerrors.Semanticf(ins.Entity, "insert select cannot fetch associations")
		}
		if n != len(out.Columns) {
			return nil, qerrors.Semanticf(ins.Entity,
				"number of select columns (%d) did not match the insert columns (%d)", n, len(out.Columns))
		}
		// entity items insert their identifier
		for i, it := range sel.Projection.Items {
			if it.Entity() != nil {
				it.Shallow = true
			}
			if len(sel.Projection.Items) == len(refs) {
				if err := unify(ins.Properties[i], refs[i], it.Expr); err != nil {
					return nil, err
				}
			}
		}
		assignColumns(sel.Projection)
		out.Select = sel
		return out, nil
	}

	if len(ins.Values) != len(refs) {
		return nil, qerrors.Semanticf(ins.Entity,
			"number of values (%d) did not match the insert properties (%d)", len(ins.Values), len(refs))
	}
	for i, v := range ins.Values {
		value, err := b.expr(sc, v)
		if err != nil {
			return nil, err
		}
		if err := unify(v, refs[i], value); err != nil {
			return nil, err
		}
		if columnCount(value) != len(refs[i].Columns) {
			return nil, qerrors.Semanticf(ins.Properties[i].String(), "value does not match the property columns")
		}
		out.Values = append(out.Values, value)
	}
	return out, nil
}
