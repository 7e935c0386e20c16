package parser

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/aql-go/query/ast"
	"github.com/satishbabariya/aql-go/query/qerrors"
)

func TestParseSelect(t *testing.T) {
	stmt, err := Parse(`select distinct p.name as n, count(v) from Patient as p
		left join fetch p.visits v with v.amount > 10
		where p.gender = :gender and not p.name like 'z%'
		group by p.name having count(v) >= 1
		order by p.name desc, p.id`, nil)
	require.NoError(t, err)

	sel, ok := stmt.(*ast.Select)
	require.True(t, ok)
	assert.True(t, sel.Distinct)
	require.Len(t, sel.Items, 2)
	assert.Equal(t, "n", sel.Items[0].Alias)
	assert.Equal(t, "p.name", sel.Items[0].Expr.(*ast.Path).String())

	count, ok := sel.Items[1].Expr.(*ast.Func)
	require.True(t, ok)
	assert.Equal(t, "count", count.Name)

	require.Len(t, sel.From.Items, 2)
	root := sel.From.Items[0].(*ast.Range)
	assert.Equal(t, "Patient", root.Entity)
	assert.Equal(t, "p", root.Alias)

	join := sel.From.Items[1].(*ast.Join)
	assert.Equal(t, ast.LeftJoin, join.Kind)
	assert.True(t, join.Fetch)
	assert.Equal(t, "p.visits", join.Path.String())
	assert.Equal(t, "v", join.Alias)
	assert.Equal(t, "v.amount > 10", ast.Format(join.With))

	where, ok := sel.Where.(*ast.Binary)
	require.True(t, ok)
	assert.Equal(t, "and", where.Op)
	assert.IsType(t, &ast.Unary{}, where.Right)

	require.Len(t, sel.GroupBy, 1)
	assert.NotNil(t, sel.Having)
	require.Len(t, sel.OrderBy, 2)
	assert.True(t, sel.OrderBy[0].Desc)
	assert.False(t, sel.OrderBy[1].Desc)
}

func TestParseKeywordsAreCaseInsensitive(t *testing.T) {
	stmt, err := Parse(`SELECT p FROM Patient p WHERE p.name IS NOT NULL ORDER BY p.id ASC`, nil)
	require.NoError(t, err)
	sel := stmt.(*ast.Select)
	isNull, ok := sel.Where.(*ast.IsNull)
	require.True(t, ok)
	assert.True(t, isNull.Not)
}

func TestParseImplicitSelectAndFragment(t *testing.T) {
	stmt, err := Parse(`from Patient`, nil)
	require.NoError(t, err)
	sel := stmt.(*ast.Select)
	assert.Empty(t, sel.Items)
	assert.Equal(t, "", sel.From.Items[0].(*ast.Range).Alias)

	stmt, err = Parse(`where this.amount between 10 and 50 order by this.id`, nil)
	require.NoError(t, err)
	sel = stmt.(*ast.Select)
	assert.Nil(t, sel.From)
	assert.IsType(t, &ast.Between{}, sel.Where)
}

func TestParseDML(t *testing.T) {
	stmt, err := Parse(`delete from Patient as o where o.name = :name`, nil)
	require.NoError(t, err)
	del := stmt.(*ast.Delete)
	assert.Equal(t, "Patient", del.Entity)
	assert.Equal(t, "o", del.Alias)
	cmp := del.Where.(*ast.Compare)
	assert.Equal(t, "name", cmp.Right.(*ast.Param).Name)

	stmt, err = Parse(`update Person p set p.salary = p.salary * 1.1, p.dept = ? where p.dept in ('eng', ?)`, nil)
	require.NoError(t, err)
	upd := stmt.(*ast.Update)
	require.Len(t, upd.Assignments, 2)
	assert.Equal(t, "p.salary", upd.Assignments[0].Target.String())
	assert.Equal(t, 0, upd.Assignments[1].Value.(*ast.Param).Index)
	in := upd.Where.(*ast.In)
	assert.Equal(t, 1, in.List[1].(*ast.Param).Index, "positional parameters are numbered in text order")

	stmt, err = Parse(`insert into Visit (id, reason, patient) select v.id + 100, v.reason, v.patient from Visit v`, nil)
	require.NoError(t, err)
	ins := stmt.(*ast.Insert)
	assert.Len(t, ins.Properties, 3)
	require.NotNil(t, ins.Select)

	stmt, err = Parse(`insert into Visit (id, reason) values (?1, 'x')`, nil)
	require.NoError(t, err)
	ins = stmt.(*ast.Insert)
	require.Len(t, ins.Values, 2)
	assert.Equal(t, "1", ins.Values[0].(*ast.Param).Name)
}

func TestParseLiterals(t *testing.T) {
	e, err := ParseExpression(`p.name = 'O''Brien' or p.id = -3 or p.x = 2.5 or p.b = true or p.n is null`)
	require.NoError(t, err)

	var literals []*ast.Literal
	ast.Walk(e, func(n ast.Expr) bool {
		if lit, ok := n.(*ast.Literal); ok {
			literals = append(literals, lit)
		}
		return true
	})
	require.Len(t, literals, 4)
	assert.Equal(t, "O'Brien", literals[0].Value)
	assert.Equal(t, int64(-3), literals[1].Value)
	assert.Equal(t, 2.5, literals[2].Value)
	assert.Equal(t, true, literals[3].Value)
}

func TestParsePrecedence(t *testing.T) {
	e, err := ParseExpression(`a.x = 1 or a.y = 2 and a.z = 3`)
	require.NoError(t, err)
	or := e.(*ast.Binary)
	assert.Equal(t, "or", or.Op)
	assert.Equal(t, "and", or.Right.(*ast.Binary).Op)

	e, err = ParseExpression(`a.x + a.y * 2 > 3`)
	require.NoError(t, err)
	assert.Equal(t, "(a.x + (a.y * 2)) > 3", ast.Format(e))
}

func TestParseSyntaxError(t *testing.T) {
	_, err := Parse(`select p from Patient p where`, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, qerrors.ErrSyntax))

	var se *qerrors.SyntaxError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 1, se.Line)
	assert.Positive(t, se.Column)

	_, err = Parse(`select p from Patient p where p.name = 'unterminated`, nil)
	assert.True(t, errors.Is(err, qerrors.ErrSyntax))
}

func TestSubstitute(t *testing.T) {
	subs := map[string]string{"yes": "true", "Pat": "Patient"}
	out, err := Substitute(`from Pat p where p.active = yes and p.name = 'yes'`, subs)
	require.NoError(t, err)
	assert.Equal(t, `from Patient p where p.active = true and p.name = 'yes'`, out)

	out, err = Substitute(`from Patient`, nil)
	require.NoError(t, err)
	assert.Equal(t, `from Patient`, out)
}

func TestFoldIsPure(t *testing.T) {
	stmt, err := Parse(`from Patient p where p.gender = Gender.FEMALE and p.name = name`, nil)
	require.NoError(t, err)

	folded := Fold(stmt, ConstantMap{"Gender.FEMALE": "F", "name": "never folded"})

	orig := stmt.(*ast.Select).Where.(*ast.Binary)
	assert.IsType(t, &ast.Path{}, orig.Left.(*ast.Compare).Right, "input tree is not modified")

	where := folded.(*ast.Select).Where.(*ast.Binary)
	c, ok := where.Left.(*ast.Compare).Right.(*ast.Constant)
	require.True(t, ok)
	assert.Equal(t, "F", c.Value)
	assert.IsType(t, &ast.Path{}, where.Right.(*ast.Compare).Right)
}
