package binder_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/aql-go/catalog"
	"github.com/satishbabariya/aql-go/internal/testutil"
	"github.com/satishbabariya/aql-go/query/binder"
	"github.com/satishbabariya/aql-go/query/bound"
	"github.com/satishbabariya/aql-go/query/parser"
	"github.com/satishbabariya/aql-go/query/qerrors"
)

func bind(t *testing.T, query string, opts binder.Options) (bound.Statement, error) {
	t.Helper()
	raw, err := parser.Parse(query, nil)
	require.NoError(t, err)
	return binder.New(testutil.Catalog(t), opts).Bind(raw)
}

func mustBind(t *testing.T, query string, opts binder.Options) bound.Statement {
	t.Helper()
	stmt, err := bind(t, query, opts)
	require.NoError(t, err)
	return stmt
}

func TestBindSelectEntity(t *testing.T) {
	sel := mustBind(t, "select p from Patient p where p.name = :name", binder.Options{}).(*bound.Select)

	assert.Equal(t, bound.SelectKind, sel.Kind())
	assert.False(t, sel.NeedsExecutor())
	require.Len(t, sel.From, 1)
	assert.Equal(t, "patient0_", sel.From[0].TableAlias)
	assert.Equal(t, []string{"p"}, sel.Projection.ReturnAliases())
	assert.Equal(t, []string{"col_0_0_", "col_0_1_", "col_0_2_", "col_0_3_"}, sel.Projection.Items[0].Columns)
	assert.Equal(t, []string{"patient"}, sel.QuerySpaces())

	cmp := sel.Where.(*bound.Compare)
	param := cmp.Right.(*bound.Param)
	assert.Equal(t, bound.NamedParameter, param.Spec.Kind)
	assert.Equal(t, catalog.String, param.Spec.Type, "parameter type is inferred from the compared column")
}

func TestBindImplicitSelect(t *testing.T) {
	sel := mustBind(t, "from Patient p join p.visits v left join fetch p.visits f", binder.Options{}).(*bound.Select)

	// roots and plain joins are returned, fetches are not
	require.Len(t, sel.Projection.Items, 2)
	assert.Equal(t, "Patient", sel.Projection.Items[0].Entity().Entity.Name)
	assert.Equal(t, "Visit", sel.Projection.Items[1].Entity().Entity.Name)
	require.Len(t, sel.Projection.Fetches, 1)
	assert.True(t, sel.ContainsCollectionFetches())
	assert.Equal(t, []string{"patient", "visit"}, sel.QuerySpaces())
}

func TestBindShallowIgnoresFetches(t *testing.T) {
	sel := mustBind(t, "select p from Patient p left join fetch p.visits v", binder.Options{Shallow: true}).(*bound.Select)

	assert.True(t, sel.Shallow)
	assert.Empty(t, sel.Projection.Fetches)
	assert.False(t, sel.ContainsCollectionFetches())
	assert.Equal(t, []string{"col_0_0_"}, sel.Projection.Items[0].Columns)
}

func TestBindImpliedJoinIsReused(t *testing.T) {
	sel := mustBind(t, "select v from Visit v where v.patient.name = 'a' or v.patient.gender = 'F'",
		binder.Options{}).(*bound.Select)

	require.Len(t, sel.From, 2)
	assert.True(t, sel.From[1].Implied)
	assert.Equal(t, "patient1_", sel.From[1].TableAlias)
}

func TestBindForeignKeyWithoutJoin(t *testing.T) {
	sel := mustBind(t, "select v.id from Visit v where v.patient.id = 1 and v.patient = 2", binder.Options{}).(*bound.Select)
	assert.Len(t, sel.From, 1)
}

func TestBindOrderByItemAlias(t *testing.T) {
	sel := mustBind(t, "select p.name as n from Patient p order by n desc", binder.Options{}).(*bound.Select)

	require.Len(t, sel.OrderBy, 1)
	ref, ok := sel.OrderBy[0].Expr.(*bound.ItemRef)
	require.True(t, ok)
	assert.Equal(t, "n", ref.Item.Alias)
	assert.True(t, sel.OrderBy[0].Desc)
}

func TestBindFilters(t *testing.T) {
	sel := mustBind(t, "select v from Visit v join v.patient p", binder.Options{Filters: []string{"byGender", "missing"}}).(*bound.Select)

	// the filter of the joined Patient lands on its join condition
	assert.Nil(t, sel.Where)
	join := sel.From[1]
	require.NotNil(t, join.With)
	cmp := join.With.(*bound.Compare)
	spec := cmp.Right.(*bound.Param).Spec
	assert.Equal(t, bound.FilterParameter, spec.Kind)
	assert.Equal(t, "byGender", spec.Filter)
	assert.Equal(t, "gender", spec.Name)
	assert.Equal(t, ":byGender.gender", spec.String())
}

func TestBindCollectionFilterBasis(t *testing.T) {
	sel := mustBind(t, "where this.amount > 10 order by this.id", binder.Options{CollectionRole: "Patient.visits"}).(*bound.Select)

	require.Len(t, sel.From, 1)
	assert.Equal(t, "this", sel.From[0].Alias)
	assert.Equal(t, "Visit", sel.From[0].Entity.Name)

	and := sel.Where.(*bound.Binary)
	assert.Equal(t, "and", and.Op)
	owner := and.Left.(*bound.Compare).Right.(*bound.Param)
	assert.Equal(t, bound.OwnerKeyParameter, owner.Spec.Kind)
}

func TestBindMultiTableUpdate(t *testing.T) {
	upd := mustBind(t, "update Person p set p.salary = :s where p.name = 'ada'", binder.Options{}).(*bound.Update)

	assert.True(t, upd.NeedsExecutor())
	assert.True(t, upd.Target.Entity.IsMultiTable())
	assert.Equal(t, []int{1}, upd.AssignedTables())
	assert.Equal(t, []string{"employee", "person"}, upd.QuerySpaces())
	assert.Equal(t, catalog.Float, upd.Assignments[0].Value.(*bound.Param).Spec.Type)
}

func TestBindErrors(t *testing.T) {
	tests := []struct {
		name  string
		query string
		opts  binder.Options
		msg   string
	}{
		{"unknown entity", "from Nothing n", binder.Options{}, "entity is not mapped"},
		{"duplicate alias", "from Patient p, Visit p", binder.Options{}, "alias is already defined"},
		{"unknown property", "select p.age from Patient p", binder.Options{}, `could not resolve property "age"`},
		{"collection dereference", "select p.visits.reason from Patient p", binder.Options{}, "illegal attempt to dereference collection"},
		{"type mismatch", "from Patient p where p.name = 1", binder.Options{}, "type mismatch"},
		{"fetch owner missing", "select v from Patient p join fetch p.visits v", binder.Options{},
			"owner of the fetched association was not present"},
		{"with on fetch", "from Patient p join fetch p.visits v with v.amount > 1", binder.Options{},
			"with clause not allowed on fetched associations"},
		{"no from", "select 1", binder.Options{}, "select statement requires a from clause"},
		{"join in bulk", "delete from Visit v where v.patient.name = 'x'", binder.Options{},
			"implicit joins are not allowed in bulk statements"},
		{"insert spans tables", "insert into Person (name, salary) values ('a', 1)", binder.Options{},
			"spans more than one table"},
		{"insert value count", "insert into Visit (id, reason) values (1)", binder.Options{}, "number of values"},
		{"count star only", "select sum(*) from Visit v", binder.Options{}, "only count accepts *"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := bind(t, tt.query, tt.opts)
			require.Error(t, err)
			assert.True(t, errors.Is(err, qerrors.ErrSemantic), err.Error())
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestBindSemanticErrorCarriesPath(t *testing.T) {
	_, err := bind(t, "select p.age from Patient p", binder.Options{})

	var sem *qerrors.SemanticError
	require.ErrorAs(t, err, &sem)
	assert.Equal(t, "p.age", sem.Path)
}
