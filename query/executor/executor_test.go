package executor_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/aql-go/internal/testutil"
	"github.com/satishbabariya/aql-go/query/binder"
	"github.com/satishbabariya/aql-go/query/engine"
	"github.com/satishbabariya/aql-go/query/executor"
	"github.com/satishbabariya/aql-go/query/parser"
	"github.com/satishbabariya/aql-go/query/qerrors"
	"github.com/satishbabariya/aql-go/query/sqlgen"
)

// recorder records every statement and fails the one starting with failOn.
type recorder struct {
	engine.Session
	statements []string
	failOn     string
}

func (r *recorder) Exec(ctx context.Context, sql string, args []any) (int64, error) {
	r.statements = append(r.statements, sql)
	if r.failOn != "" && strings.HasPrefix(sql, r.failOn) {
		return 0, &engine.TransportError{SQL: sql, Err: errors.New("constraint violation")}
	}
	return r.Session.Exec(ctx, sql, args)
}

func compile(t *testing.T, query string) executor.StatementExecutor {
	t.Helper()
	raw, err := parser.Parse(query, nil)
	require.NoError(t, err)
	stmt, err := binder.New(testutil.Catalog(t), binder.Options{}).Bind(raw)
	require.NoError(t, err)
	exec, err := executor.ForStatement(stmt, sqlgen.SQLiteDialect{})
	require.NoError(t, err)
	return exec
}

func count(t *testing.T, session engine.Session, sql string) int {
	t.Helper()
	rows, err := session.Query(context.Background(), sql, nil, engine.RowOptions{})
	require.NoError(t, err)
	defer rows.Close()
	require.True(t, rows.Next())
	var n int
	require.NoError(t, rows.Scan(&n))
	return n
}

func TestForStatementSelectsStrategy(t *testing.T) {
	tests := []struct {
		query string
		want  any
	}{
		{"delete from Patient p where p.name = 'x'", &executor.BasicExecutor{}},
		{"update Visit v set v.amount = 1", &executor.BasicExecutor{}},
		{"insert into Visit (id, reason) values (1, 'a')", &executor.BasicExecutor{}},
		{"delete from Person p", &executor.MultiTableDeleteExecutor{}},
		{"update Person p set p.salary = 1", &executor.MultiTableUpdateExecutor{}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.IsType(t, tt.want, compile(t, tt.query))
		})
	}
}

func TestForStatementRejectsSelect(t *testing.T) {
	raw, err := parser.Parse("from Patient p", nil)
	require.NoError(t, err)
	stmt, err := binder.New(testutil.Catalog(t), binder.Options{}).Bind(raw)
	require.NoError(t, err)

	_, err = executor.ForStatement(stmt, sqlgen.SQLiteDialect{})
	var qe *qerrors.QueryError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, "unexpected statement type", qe.Message)
}

func TestBasicDelete(t *testing.T) {
	ctx := context.Background()
	session := engine.NewSQLSession(testutil.OpenSQLite(t))
	exec := compile(t, "delete from Patient as o where o.name = :name")

	n, err := exec.Execute(ctx, &engine.QueryParameters{Named: map[string]any{"name": "lisi"}}, session)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 0, count(t, session, "select count(*) from patient where name = 'lisi'"))
	assert.Equal(t, 2, count(t, session, "select count(*) from patient"))
}

func TestBasicExecuteRequiresParameters(t *testing.T) {
	exec := compile(t, "delete from Patient as o where o.name = :name")

	_, err := exec.Execute(context.Background(), &engine.QueryParameters{}, &recorder{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), ":name")
}

func TestMultiTableDelete(t *testing.T) {
	ctx := context.Background()
	session := &recorder{Session: engine.NewSQLSession(testutil.OpenSQLite(t))}
	exec := compile(t, "delete from Person p where p.salary > 50")

	n, err := exec.Execute(ctx, nil, session)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []string{
		"create temporary table HT_person (id integer)",
		"insert into HT_person (id) select person0_.id from person person0_ inner join employee person0_1_ " +
			"on person0_1_.person_id=person0_.id where person0_1_.salary>50",
		"delete from employee where person_id in (select id from HT_person)",
		"delete from person where id in (select id from HT_person)",
		"drop table HT_person",
	}, session.statements)
	assert.Equal(t, session.statements, exec.SQLStatements())
	assert.Equal(t, 0, count(t, session, "select count(*) from person"))
	assert.Equal(t, 0, count(t, session, "select count(*) from employee"))
}

func TestMultiTableDeletePartialFailure(t *testing.T) {
	session := &recorder{
		Session: engine.NewSQLSession(testutil.OpenSQLite(t)),
		failOn:  "delete from person",
	}
	exec := compile(t, "delete from Person p where p.dept = 'eng'")

	n, err := exec.Execute(context.Background(), nil, session)
	assert.Equal(t, 2, n)
	var te *engine.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "delete from person where id in (select id from HT_person)", te.SQL)
	assert.Equal(t, "drop table HT_person", session.statements[len(session.statements)-1])
}

func TestLeftoverStagingTableFailsBeforeWriting(t *testing.T) {
	ctx := context.Background()
	session := &recorder{Session: engine.NewSQLSession(testutil.OpenSQLite(t))}
	// a staging table whose drop failed, still holding the id of a person outside the match
	_, err := session.Session.Exec(ctx, "create temporary table HT_person (id integer)", nil)
	require.NoError(t, err)
	_, err = session.Session.Exec(ctx, "insert into HT_person (id) values (3)", nil)
	require.NoError(t, err)

	exec := compile(t, "delete from Person p where p.dept = 'eng'")
	n, err := exec.Execute(ctx, nil, session)
	assert.Equal(t, 0, n)
	var te *engine.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "create temporary table HT_person (id integer)", te.SQL)
	assert.Equal(t, []string{"create temporary table HT_person (id integer)"}, session.statements)
	assert.Equal(t, 3, count(t, session, "select count(*) from person"))
}

func TestMultiTableUpdate(t *testing.T) {
	ctx := context.Background()
	session := &recorder{Session: engine.NewSQLSession(testutil.OpenSQLite(t))}
	exec := compile(t, "update Person p set p.salary = p.salary + :raise where p.dept = 'eng'")

	n, err := exec.Execute(ctx, &engine.QueryParameters{Named: map[string]any{"raise": 5}}, session)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	// only the employee table owns an assigned column
	require.Len(t, session.statements, 4)
	assert.Equal(t, "update employee set salary=salary+? where person_id in (select id from HT_person)", session.statements[2])
	assert.Equal(t, 105, count(t, session, "select salary from employee where person_id = 1"))
	assert.Equal(t, 80, count(t, session, "select salary from employee where person_id = 3"))

	tables := exec.(*executor.MultiTableUpdateExecutor).AffectedTables()
	require.Len(t, tables, 1)
	assert.Equal(t, "employee", tables[0].Name)
}

func TestInsertSelect(t *testing.T) {
	ctx := context.Background()
	session := engine.NewSQLSession(testutil.OpenSQLite(t))
	exec := compile(t, "insert into Visit (id, reason, patient) select p.id + 100, p.name, p from Patient p where p.gender = 'F'")

	n, err := exec.Execute(ctx, nil, session)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, count(t, session, "select count(*) from visit where id = 102 and patient_id = 2"))
}
