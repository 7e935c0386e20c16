package sqlgen_test

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/aql-go/internal/testutil"
	"github.com/satishbabariya/aql-go/query/binder"
	"github.com/satishbabariya/aql-go/query/bound"
	"github.com/satishbabariya/aql-go/query/parser"
	"github.com/satishbabariya/aql-go/query/sqlgen"
)

func bind(t *testing.T, query string, opts binder.Options) bound.Statement {
	t.Helper()
	raw, err := parser.Parse(query, nil)
	require.NoError(t, err)
	stmt, err := binder.New(testutil.Catalog(t), opts).Bind(raw)
	require.NoError(t, err)
	return stmt
}

func TestSelectGolden(t *testing.T) {
	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"), goldie.WithNameSuffix(".golden"))

	tests := []struct {
		name     string
		provider string
		query    string
		params   int
	}{
		{"entity_by_name", "postgresql", "select p from Patient p where p.name = :name order by p.id", 1},
		{"collection_fetch", "postgresql", "select p from Patient p left join fetch p.visits v order by p.id", 0},
		{"implicit_join", "sqlite", "select v.reason from Visit v where v.patient.name = 'lisi'", 0},
		{"multi_table", "postgresql", "select p.name, p.salary from Person p where p.dept = ?", 1},
		{"mysql_concat", "mysql", "select p.name || '-' || p.gender from Patient p", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := sqlgen.NewDialect(tt.provider)
			require.NoError(t, err)
			sel := bind(t, tt.query, binder.Options{}).(*bound.Select)

			out, err := sqlgen.NewGenerator(d).Select(sel)
			require.NoError(t, err)
			assert.Len(t, out.Parameters, tt.params)
			g.Assert(t, tt.name, []byte(out.SQL+"\n"))
		})
	}
}

func TestSelectCollectsParametersInOrder(t *testing.T) {
	sel := bind(t, "select p from Patient p where p.gender = :g and p.name in (?, ?)", binder.Options{}).(*bound.Select)

	out, err := sqlgen.NewGenerator(sqlgen.PostgresDialect{}).Select(sel)
	require.NoError(t, err)
	assert.Contains(t, out.SQL, "patient0_.gender=$1 and patient0_.name in ($2, $3)")
	require.Len(t, out.Parameters, 3)
	assert.Equal(t, bound.NamedParameter, out.Parameters[0].Kind)
	assert.Equal(t, "g", out.Parameters[0].Name)
	assert.Equal(t, 0, out.Parameters[1].Position)
	assert.Equal(t, 1, out.Parameters[2].Position)
}

func TestSelectWithFilter(t *testing.T) {
	sel := bind(t, "from Patient p where p.name like 'z%'", binder.Options{Filters: []string{"byGender"}}).(*bound.Select)

	out, err := sqlgen.NewGenerator(sqlgen.SQLiteDialect{}).Select(sel)
	require.NoError(t, err)
	assert.Equal(t, "select patient0_.id as col_0_0_, patient0_.name as col_0_1_, patient0_.gender as col_0_2_, "+
		"patient0_.birth as col_0_3_ from patient patient0_ where patient0_.gender=? and patient0_.name like 'z%'", out.SQL)
	require.Len(t, out.Parameters, 1)
	assert.Equal(t, bound.FilterParameter, out.Parameters[0].Kind)
	assert.Equal(t, "byGender", out.Parameters[0].Filter)
}

func TestSelectParenthesizesByPrecedence(t *testing.T) {
	sel := bind(t, "select v.id from Visit v where (v.amount - (v.amount - 1)) * 2 > 3 and (v.reason = 'a' or v.reason = 'b')",
		binder.Options{}).(*bound.Select)

	out, err := sqlgen.NewGenerator(sqlgen.SQLiteDialect{}).Select(sel)
	require.NoError(t, err)
	assert.Equal(t, "select visit0_.id as col_0_0_ from visit visit0_ where "+
		"(visit0_.amount-(visit0_.amount-1))*2>3 and (visit0_.reason='a' or visit0_.reason='b')", out.SQL)
}

func TestAdjacentMinusSignsAreSeparated(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		constants parser.ConstantMap
		want      string
	}{
		{
			name:  "negative right operand",
			query: "select v.id from Visit v where v.amount - -1 > 1000",
			want:  "where visit0_.amount- -1>1000",
		},
		{
			name:  "double negation",
			query: "select v.id from Visit v where - - v.amount > 1",
			want:  "where - -visit0_.amount>1",
		},
		{
			name:      "negative folded constant",
			query:     "select v.id from Visit v where v.amount - Fee.CREDIT > 40",
			constants: parser.ConstantMap{"Fee.CREDIT": int64(-10)},
			want:      "where visit0_.amount- -10>40",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := parser.Parse(tt.query, nil)
			require.NoError(t, err)
			stmt, err := binder.New(testutil.Catalog(t), binder.Options{}).Bind(parser.Fold(raw, tt.constants))
			require.NoError(t, err)

			out, err := sqlgen.NewGenerator(sqlgen.SQLiteDialect{}).Select(stmt.(*bound.Select))
			require.NoError(t, err)
			assert.NotContains(t, out.SQL, "--")
			assert.Contains(t, out.SQL, tt.want)
		})
	}
}

func TestSingleTableDML(t *testing.T) {
	gen := sqlgen.NewGenerator(sqlgen.PostgresDialect{})

	del := bind(t, "delete from Patient as o where o.name = :name", binder.Options{}).(*bound.Delete)
	out, err := gen.Delete(del)
	require.NoError(t, err)
	assert.Equal(t, "delete from patient where name=$1", out.SQL)

	upd := bind(t, "update Visit v set v.amount = v.amount * 2 where v.reason like 'c%'", binder.Options{}).(*bound.Update)
	out, err = gen.Update(upd)
	require.NoError(t, err)
	assert.Equal(t, "update visit set amount=amount*2 where reason like 'c%'", out.SQL)

	ins := bind(t, "insert into Visit (id, reason, patient) values (20, :reason, 1)", binder.Options{}).(*bound.Insert)
	out, err = gen.Insert(ins)
	require.NoError(t, err)
	assert.Equal(t, "insert into visit (id, reason, patient_id) values (20, $1, 1)", out.SQL)
}

func TestInsertSelect(t *testing.T) {
	ins := bind(t, "insert into Visit (id, reason) select p.id, p.name from Patient p", binder.Options{}).(*bound.Insert)

	out, err := sqlgen.NewGenerator(sqlgen.SQLiteDialect{}).Insert(ins)
	require.NoError(t, err)
	assert.Equal(t, "insert into visit (id, reason) select patient1_.id as col_0_0_, patient1_.name as col_1_0_ "+
		"from patient patient1_", out.SQL)
}

func TestStagedStatements(t *testing.T) {
	gen := sqlgen.NewGenerator(sqlgen.SQLiteDialect{})
	staging := sqlgen.StagingTableName("person")
	assert.Equal(t, "HT_person", staging)

	del := bind(t, "delete from Person p where p.dept = 'eng'", binder.Options{}).(*bound.Delete)
	out, err := gen.StagingInsert(del.Target, del.Where, staging)
	require.NoError(t, err)
	assert.Equal(t, "insert into HT_person (id) select person0_.id from person person0_ "+
		"inner join employee person0_1_ on person0_1_.person_id=person0_.id where person0_1_.dept='eng'", out.SQL)

	assert.Equal(t, "delete from employee where person_id in (select id from HT_person)",
		gen.StagedDelete(del.Target, 1, staging).SQL)
	assert.Equal(t, "delete from person where id in (select id from HT_person)",
		gen.StagedDelete(del.Target, 0, staging).SQL)

	upd := bind(t, "update Person p set p.name = 'x', p.salary = p.salary + 1", binder.Options{}).(*bound.Update)
	assert.Equal(t, []int{0, 1}, upd.AssignedTables())
	out, err = gen.StagedUpdate(upd, 0, staging)
	require.NoError(t, err)
	assert.Equal(t, "update person set name='x' where id in (select id from HT_person)", out.SQL)
	out, err = gen.StagedUpdate(upd, 1, staging)
	require.NoError(t, err)
	assert.Equal(t, "update employee set salary=salary+1 where person_id in (select id from HT_person)", out.SQL)
}

func TestUnqualifiedColumnOnOtherTable(t *testing.T) {
	del := bind(t, "delete from Person p where p.dept = 'eng'", binder.Options{}).(*bound.Delete)

	_, err := sqlgen.NewGenerator(sqlgen.SQLiteDialect{}).Delete(del)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "column is not on the updated table")
}
