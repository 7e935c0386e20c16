package sqlgen

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/satishbabariya/aql-go/catalog"
	"github.com/satishbabariya/aql-go/query/ast"
	"github.com/satishbabariya/aql-go/query/bound"
	"github.com/satishbabariya/aql-go/query/qerrors"
)

// Generated is a rendered SQL statement and the parameters bound to its placeholders,
// in placeholder order.
type Generated struct {
	SQL        string
	Parameters []*bound.ParameterSpec
	// OrderBy is the text of the order by clause of a select, without the keywords.
	OrderBy string
}

// Generator renders bound statements. A Generator is cheap and not safe for concurrent
// use; every method renders one statement from scratch.
type Generator struct {
	dialect Dialect

	buf    strings.Builder
	params []*bound.ParameterSpec
	// unqualified renders columns without table aliases; only columns of the physical
	// table at index table of the DML target may then be referenced.
	unqualified bool
	table       int
	theta       []string
	orderBy     string
}

// NewGenerator creates a generator for d.
func NewGenerator(d Dialect) *Generator {
	return &Generator{dialect: d}
}

// Dialect returns the generator's dialect.
func (g *Generator) Dialect() Dialect { return g.dialect }

func (g *Generator) reset() {
	g.buf.Reset()
	g.params = nil
	g.unqualified = false
	g.table = 0
	g.theta = nil
	g.orderBy = ""
}

func (g *Generator) result() *Generated {
	return &Generated{SQL: g.buf.String(), Parameters: g.params, OrderBy: g.orderBy}
}

// write appends s. Operators are written without spaces, so a space separates two
// adjacent minus signs, which SQL would otherwise read as a line comment.
func (g *Generator) write(s ...string) {
	for _, x := range s {
		if strings.HasPrefix(x, "-") && strings.HasSuffix(g.buf.String(), "-") {
			g.buf.WriteByte(' ')
		}
		g.buf.WriteString(x)
	}
}

// Select renders a select statement.
func (g *Generator) Select(s *bound.Select) (*Generated, error) {
	g.reset()
	if err := g.selectStatement(s); err != nil {
		return nil, err
	}
	return g.result(), nil
}

func (g *Generator) selectStatement(s *bound.Select) error {
	g.write("select ")
	if s.Distinct {
		g.write("distinct ")
	}
	if err := g.selectList(s.Projection); err != nil {
		return err
	}
	g.write(" from ")
	if err := g.fromClause(s.From); err != nil {
		return err
	}

	if len(g.theta) > 0 || s.Where != nil {
		g.write(" where ")
		g.write(strings.Join(g.theta, " and "))
		if s.Where != nil {
			floor := 0
			if len(g.theta) > 0 {
				g.write(" and ")
				floor = precAnd
			}
			if err := g.exprPrec(s.Where, floor); err != nil {
				return err
			}
		}
	}
	if len(s.GroupBy) > 0 {
		g.write(" group by ")
		if err := g.columnList(s.GroupBy); err != nil {
			return err
		}
	}
	if s.Having != nil {
		g.write(" having ")
		if err := g.expr(s.Having); err != nil {
			return err
		}
	}
	if len(s.OrderBy) > 0 {
		g.write(" order by ")
		mark := g.buf.Len()
		for i, o := range s.OrderBy {
			cols, err := g.columns(o.Expr)
			if err != nil {
				return err
			}
			for j, c := range cols {
				if i > 0 || j > 0 {
					g.write(", ")
				}
				g.write(c)
				if o.Desc {
					g.write(" desc")
				}
			}
			if cols == nil {
				if i > 0 {
					g.write(", ")
				}
				if err := g.expr(o.Expr); err != nil {
					return err
				}
				if o.Desc {
					g.write(" desc")
				}
			}
		}
		g.orderBy = g.buf.String()[mark:]
	}
	return nil
}

func (g *Generator) selectList(p *bound.Projection) error {
	first := true
	sep := func() {
		if !first {
			g.write(", ")
		}
		first = false
	}
	for _, it := range p.Items {
		switch e := it.Expr.(type) {
		case *bound.EntityRef:
			for _, c := range g.entityColumns(e.From, it.Properties, it.Columns) {
				sep()
				g.write(c)
			}
		case *bound.ColumnRef:
			for j, c := range g.qualified(e) {
				sep()
				g.write(c, " as ", it.Columns[j])
			}
		default:
			sep()
			if err := g.expr(e); err != nil {
				return err
			}
			g.write(" as ", it.Columns[0])
		}
	}
	for _, f := range p.Fetches {
		for _, c := range g.entityColumns(f.From, f.Properties, f.Columns) {
			sep()
			g.write(c)
		}
	}
	return nil
}

func (g *Generator) entityColumns(fe *bound.FromElement, props []*catalog.Property, aliases []string) []string {
	var out []string
	k := 0
	for _, p := range props {
		alias := fe.TableAliasAt(fe.Entity.TableIndex(p.Table))
		for _, c := range p.Columns {
			out = append(out, alias+"."+c+" as "+aliases[k])
			k++
		}
	}
	return out
}

func (g *Generator) fromClause(from []*bound.FromElement) error {
	for i, fe := range from {
		switch {
		case !fe.IsJoin():
			if i > 0 {
				g.write(", ")
			}
			g.tableClause(fe, false)
		case fe.Implied:
			g.write(", ")
			g.tableClause(fe, false)
			g.theta = append(g.theta, g.joinCondition(fe))
		default:
			g.write(" ", fe.JoinType.String(), " ", fe.Entity.PrimaryTable().Name, " ", fe.TableAlias, " on ")
			g.write(g.joinCondition(fe))
			if fe.With != nil {
				g.write(" and ")
				if err := g.exprPrec(fe.With, precAnd); err != nil {
					return err
				}
			}
			g.secondaryTables(fe, fe.JoinType != ast.InnerJoin)
		}
	}
	return nil
}

// tableClause renders the primary table of an element followed by its secondary tables.
func (g *Generator) tableClause(fe *bound.FromElement, outer bool) {
	g.write(fe.Entity.PrimaryTable().Name, " ", fe.TableAlias)
	g.secondaryTables(fe, outer)
}

func (g *Generator) secondaryTables(fe *bound.FromElement, outer bool) {
	ids := fe.Entity.IdentifierColumns()
	for i, t := range fe.Entity.Tables {
		if i == 0 {
			continue
		}
		join := ast.InnerJoin
		if outer || t.Optional {
			join = ast.LeftJoin
		}
		alias := fe.TableAliasAt(i)
		g.write(" ", join.String(), " ", t.Name, " ", alias, " on ")
		g.write(equalities(alias, t.Key, fe.TableAlias, ids))
	}
}

// joinCondition renders the association join condition of a joined element.
func (g *Generator) joinCondition(fe *bound.FromElement) string {
	a := fe.Association
	origin := fe.Origin
	if a.IsCollection() {
		return equalities(fe.TableAlias, a.Columns, origin.TableAlias, origin.Entity.IdentifierColumns())
	}
	owner := origin.TableAliasAt(origin.Entity.TableIndex(a.Table))
	return equalities(fe.TableAlias, fe.Entity.IdentifierColumns(), owner, a.Columns)
}

func equalities(leftAlias string, left []string, rightAlias string, right []string) string {
	parts := make([]string, len(left))
	for i := range left {
		parts[i] = leftAlias + "." + left[i] + "=" + rightAlias + "." + right[i]
	}
	return strings.Join(parts, " and ")
}

// Delete renders a single-table delete.
func (g *Generator) Delete(d *bound.Delete) (*Generated, error) {
	g.reset()
	g.unqualified = true
	g.write("delete from ", d.Target.Entity.PrimaryTable().Name)
	if err := g.where(d.Where); err != nil {
		return nil, err
	}
	return g.result(), nil
}

// Update renders a single-table update.
func (g *Generator) Update(u *bound.Update) (*Generated, error) {
	g.reset()
	g.unqualified = true
	g.write("update ", u.Target.Entity.PrimaryTable().Name, " set ")
	if err := g.assignments(u.Assignments); err != nil {
		return nil, err
	}
	if err := g.where(u.Where); err != nil {
		return nil, err
	}
	return g.result(), nil
}

func (g *Generator) assignments(assignments []*bound.Assignment) error {
	first := true
	for _, a := range assignments {
		if a.Target.Table != g.table {
			continue
		}
		values, err := g.columns(a.Value)
		if err != nil {
			return err
		}
		for j, c := range a.Target.Columns {
			if !first {
				g.write(", ")
			}
			first = false
			g.write(c, "=")
			if values != nil {
				g.write(values[j])
				continue
			}
			if err := g.expr(a.Value); err != nil {
				return err
			}
		}
	}
	return nil
}

func (g *Generator) where(where bound.Expr) error {
	if where == nil {
		return nil
	}
	g.write(" where ")
	return g.expr(where)
}

// Insert renders insert-values or insert-select.
func (g *Generator) Insert(ins *bound.Insert) (*Generated, error) {
	g.reset()
	g.write("insert into ", ins.Table.Name, " (", strings.Join(ins.Columns, ", "), ") ")
	if ins.Select != nil {
		if err := g.selectStatement(ins.Select); err != nil {
			return nil, err
		}
		return g.result(), nil
	}
	g.unqualified = true
	g.table = ins.Target.TableIndex(ins.Table.Name)
	g.write("values (")
	for i, v := range ins.Values {
		if i > 0 {
			g.write(", ")
		}
		if err := g.expr(v); err != nil {
			return nil, err
		}
	}
	g.write(")")
	return g.result(), nil
}

// StagingInsert renders the statement copying the identifiers of the target rows
// matching where into the staging table.
func (g *Generator) StagingInsert(target *bound.FromElement, where bound.Expr, staging string) (*Generated, error) {
	g.reset()
	ids := target.Entity.IdentifierColumns()
	g.write("insert into ", staging, " (", strings.Join(ids, ", "), ") select ")
	for i, c := range ids {
		if i > 0 {
			g.write(", ")
		}
		g.write(target.TableAlias, ".", c)
	}
	g.write(" from ")
	g.tableClause(target, false)
	if where != nil {
		g.write(" where ")
		if err := g.expr(where); err != nil {
			return nil, err
		}
	}
	return g.result(), nil
}

// StagedDelete renders the delete of the staged rows from the physical table at index
// table of the target.
func (g *Generator) StagedDelete(target *bound.FromElement, table int, staging string) *Generated {
	g.reset()
	t := target.Entity.Tables[table]
	g.write("delete from ", t.Name, " where ", stagedRestriction(t.Key, target.Entity.IdentifierColumns(), staging))
	return g.result()
}

// StagedUpdate renders the update of the staged rows of the physical table at index
// table, applying only the assignments to that table's columns.
func (g *Generator) StagedUpdate(u *bound.Update, table int, staging string) (*Generated, error) {
	g.reset()
	g.unqualified = true
	g.table = table
	t := u.Target.Entity.Tables[table]
	g.write("update ", t.Name, " set ")
	if err := g.assignments(u.Assignments); err != nil {
		return nil, err
	}
	g.write(" where ", stagedRestriction(t.Key, u.Target.Entity.IdentifierColumns(), staging))
	return g.result(), nil
}

func stagedRestriction(key, ids []string, staging string) string {
	if len(key) == 1 {
		return fmt.Sprintf("%s in (select %s from %s)", key[0], ids[0], staging)
	}
	return fmt.Sprintf("(%s) in (select %s from %s)", strings.Join(key, ", "), strings.Join(ids, ", "), staging)
}

// precedence levels, lowest first
const (
	precOr = iota + 1
	precAnd
	precNot
	precCompare
	precAdd
	precMul
	precUnary
	precPrimary
)

func precedence(e bound.Expr) int {
	switch n := e.(type) {
	case *bound.Binary:
		switch n.Op {
		case "or":
			return precOr
		case "and":
			return precAnd
		case "+", "-", "||":
			return precAdd
		default:
			return precMul
		}
	case *bound.Unary:
		if n.Op == "not" {
			return precNot
		}
		return precUnary
	case *bound.Compare, *bound.IsNull, *bound.Between, *bound.In, *bound.Like:
		return precCompare
	default:
		return precPrimary
	}
}

// exprPrec renders e, parenthesized when it binds looser than floor.
func (g *Generator) exprPrec(e bound.Expr, floor int) error {
	if precedence(e) < floor {
		g.write("(")
		if err := g.expr(e); err != nil {
			return err
		}
		g.write(")")
		return nil
	}
	return g.expr(e)
}

func (g *Generator) expr(e bound.Expr) error {
	switch n := e.(type) {
	case *bound.ColumnRef, *bound.EntityRef:
		cols, err := g.columns(n)
		if err != nil {
			return err
		}
		if len(cols) != 1 {
			return qerrors.NewQueryError("multi-column value used as a scalar", strings.Join(cols, ", "))
		}
		g.write(cols[0])
	case *bound.ItemRef:
		g.write(n.Item.Columns[0])
	case *bound.Literal:
		s, err := g.literal(n)
		if err != nil {
			return err
		}
		g.write(s)
	case *bound.Param:
		g.params = append(g.params, n.Spec)
		g.write(g.dialect.Placeholder(len(g.params)))
	case *bound.Binary:
		return g.binary(n)
	case *bound.Unary:
		if n.Op == "not" {
			g.write("not ")
			return g.exprPrec(n.Operand, precNot)
		}
		g.write("-")
		return g.exprPrec(n.Operand, precUnary)
	case *bound.Compare:
		return g.compare(n)
	case *bound.IsNull:
		cols, err := g.columns(n.Operand)
		if err != nil {
			return err
		}
		suffix := " is null"
		if n.Not {
			suffix = " is not null"
		}
		if cols == nil {
			if err := g.exprPrec(n.Operand, precAdd); err != nil {
				return err
			}
			g.write(suffix)
			return nil
		}
		parts := make([]string, len(cols))
		for i, c := range cols {
			parts[i] = c + suffix
		}
		g.write(strings.Join(parts, " and "))
	case *bound.Between:
		if err := g.exprPrec(n.Operand, precAdd); err != nil {
			return err
		}
		g.write(not(n.Not), " between ")
		if err := g.exprPrec(n.Low, precAdd); err != nil {
			return err
		}
		g.write(" and ")
		return g.exprPrec(n.High, precAdd)
	case *bound.In:
		if err := g.exprPrec(n.Operand, precAdd); err != nil {
			return err
		}
		g.write(not(n.Not), " in (")
		for i, x := range n.List {
			if i > 0 {
				g.write(", ")
			}
			if err := g.expr(x); err != nil {
				return err
			}
		}
		g.write(")")
	case *bound.Like:
		if err := g.exprPrec(n.Operand, precAdd); err != nil {
			return err
		}
		g.write(not(n.Not), " like ")
		if err := g.exprPrec(n.Pattern, precAdd); err != nil {
			return err
		}
		if n.Escape != nil {
			g.write(" escape ")
			return g.exprPrec(n.Escape, precAdd)
		}
	case *bound.Func:
		return g.function(n)
	default:
		return qerrors.NewQueryError("unexpected expression", fmt.Sprintf("%T", e))
	}
	return nil
}

func not(negated bool) string {
	if negated {
		return " not"
	}
	return ""
}

func (g *Generator) binary(n *bound.Binary) error {
	p := precedence(n)
	if n.Op == "||" {
		var left, right strings.Builder
		for _, side := range []struct {
			e   bound.Expr
			out *strings.Builder
		}{{n.Left, &left}, {n.Right, &right}} {
			mark := g.buf.Len()
			if err := g.exprPrec(side.e, p); err != nil {
				return err
			}
			rendered := g.buf.String()[mark:]
			side.out.WriteString(rendered)
			truncate(&g.buf, mark)
		}
		g.write(g.dialect.Concat(left.String(), right.String()))
		return nil
	}
	if err := g.exprPrec(n.Left, p); err != nil {
		return err
	}
	switch n.Op {
	case "and", "or":
		g.write(" ", n.Op, " ")
	default:
		g.write(n.Op)
	}
	// right operands of non-associative operators bind tighter
	rp := p
	if n.Op == "-" || n.Op == "/" || n.Op == "%" {
		rp = p + 1
	}
	return g.exprPrec(n.Right, rp)
}

func truncate(b *strings.Builder, n int) {
	s := b.String()[:n]
	b.Reset()
	b.WriteString(s)
}

func (g *Generator) compare(n *bound.Compare) error {
	left, err := g.columns(n.Left)
	if err != nil {
		return err
	}
	right, err := g.columns(n.Right)
	if err != nil {
		return err
	}
	if len(left) > 1 && len(right) == len(left) {
		if n.Op != "=" && n.Op != "<>" {
			return qerrors.NewQueryError("operator not supported for multi-column values", n.Op)
		}
		parts := make([]string, len(left))
		for i := range left {
			parts[i] = left[i] + "=" + right[i]
		}
		cond := strings.Join(parts, " and ")
		if n.Op == "<>" {
			cond = "not (" + cond + ")"
		}
		g.write("(", cond, ")")
		return nil
	}
	if err := g.exprPrec(n.Left, precAdd); err != nil {
		return err
	}
	g.write(n.Op)
	return g.exprPrec(n.Right, precAdd)
}

func (g *Generator) function(n *bound.Func) error {
	switch n.Name {
	case "current_date", "current_time", "current_timestamp":
		if len(n.Args) == 0 {
			g.write(n.Name)
			return nil
		}
	}
	g.write(n.Name, "(")
	if n.Distinct {
		g.write("distinct ")
	}
	if n.Star {
		g.write("*")
	}
	for i, a := range n.Args {
		if i > 0 {
			g.write(", ")
		}
		// entities are counted and compared by their first identifier column
		if ref, ok := a.(*bound.EntityRef); ok {
			cols, err := g.columns(ref)
			if err != nil {
				return err
			}
			g.write(cols[0])
			continue
		}
		if err := g.expr(a); err != nil {
			return err
		}
	}
	g.write(")")
	return nil
}

func (g *Generator) columnList(exprs []bound.Expr) error {
	for i, e := range exprs {
		if i > 0 {
			g.write(", ")
		}
		cols, err := g.columns(e)
		if err != nil {
			return err
		}
		if cols != nil {
			g.write(strings.Join(cols, ", "))
			continue
		}
		if err := g.expr(e); err != nil {
			return err
		}
	}
	return nil
}

// columns returns the rendered columns of column and entity references, or nil for
// other expressions.
func (g *Generator) columns(e bound.Expr) ([]string, error) {
	switch n := e.(type) {
	case *bound.ColumnRef:
		if g.unqualified {
			if n.Table != g.table {
				return nil, qerrors.NewQueryError("column is not on the updated table", n.From.Path()+"."+n.Name())
			}
			return n.Columns, nil
		}
		return g.qualified(n), nil
	case *bound.EntityRef:
		ids := n.From.Entity.IdentifierColumns()
		if g.unqualified {
			return ids, nil
		}
		out := make([]string, len(ids))
		for i, c := range ids {
			out[i] = n.From.TableAlias + "." + c
		}
		return out, nil
	}
	return nil, nil
}

func (g *Generator) qualified(ref *bound.ColumnRef) []string {
	alias := ref.From.TableAliasAt(ref.Table)
	out := make([]string, len(ref.Columns))
	for i, c := range ref.Columns {
		out[i] = alias + "." + c
	}
	return out
}

func (g *Generator) literal(l *bound.Literal) (string, error) {
	switch v := l.Value.(type) {
	case nil:
		return "null", nil
	case string:
		return "'" + strings.ReplaceAll(v, "'", "''") + "'", nil
	case bool:
		return g.dialect.BoolLiteral(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case int:
		return strconv.Itoa(v), nil
	case int32:
		return strconv.FormatInt(int64(v), 10), nil
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32), nil
	case time.Time:
		return "'" + v.UTC().Format("2006-01-02 15:04:05") + "'", nil
	case fmt.Stringer:
		return "'" + strings.ReplaceAll(v.String(), "'", "''") + "'", nil
	default:
		name := l.Constant
		if name == "" {
			name = fmt.Sprint(v)
		}
		return "", qerrors.NewQueryError("cannot render constant", name)
	}
}
