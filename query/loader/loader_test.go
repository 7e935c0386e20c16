package loader_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/aql-go/internal/testutil"
	"github.com/satishbabariya/aql-go/query/binder"
	"github.com/satishbabariya/aql-go/query/bound"
	"github.com/satishbabariya/aql-go/query/engine"
	"github.com/satishbabariya/aql-go/query/loader"
	"github.com/satishbabariya/aql-go/query/parser"
	"github.com/satishbabariya/aql-go/query/sqlgen"
)

func newLoader(t *testing.T, query string) *loader.QueryLoader {
	t.Helper()
	raw, err := parser.Parse(query, nil)
	require.NoError(t, err)
	stmt, err := binder.New(testutil.Catalog(t), binder.Options{}).Bind(raw)
	require.NoError(t, err)
	sel := stmt.(*bound.Select)
	out, err := sqlgen.NewGenerator(sqlgen.SQLiteDialect{}).Select(sel)
	require.NoError(t, err)
	return loader.New(sel, out, sqlgen.SQLiteDialect{}, nil)
}

func intp(v int) *int { return &v }

func TestPrepareAppliesWindow(t *testing.T) {
	l := newLoader(t, "select p.name from Patient p where p.gender <> :g order by p.id")
	params := &engine.QueryParameters{
		Named:        map[string]any{"g": "X"},
		RowSelection: &engine.RowSelection{FirstRow: intp(1), MaxRows: intp(2)},
	}

	sql, args, err := l.Prepare(params)
	require.NoError(t, err)
	assert.Equal(t, l.SQL()+" limit ? offset ?", sql)
	assert.Equal(t, []any{"X", 2, 1}, args)
}

func TestListScalars(t *testing.T) {
	session := engine.NewSQLSession(testutil.OpenSQLite(t))
	l := newLoader(t, "select p.name from Patient p order by p.id")

	rows, err := l.List(context.Background(), &engine.QueryParameters{
		RowSelection: &engine.RowSelection{FirstRow: intp(1), MaxRows: intp(1)},
	}, session)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "lisi", fmt.Sprintf("%s", rows[0]))
}

func TestListTuples(t *testing.T) {
	session := engine.NewSQLSession(testutil.OpenSQLite(t))
	l := newLoader(t, "select v.id, v.patient.name from Visit v where v.id = 12")

	rows, err := l.List(context.Background(), nil, session)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	tuple := rows[0].([]any)
	assert.Equal(t, int64(12), tuple[0])
	assert.Equal(t, "lisi", fmt.Sprintf("%s", tuple[1]))
}

func TestCollectionFetchSharesInstances(t *testing.T) {
	session := engine.NewSQLSession(testutil.OpenSQLite(t))
	l := newLoader(t, "select p from Patient p left join fetch p.visits v order by p.id")

	rows, err := l.List(context.Background(), nil, session)
	require.NoError(t, err)
	require.Len(t, rows, 4, "one raw row per visit")
	assert.Same(t, rows[0], rows[1])
	assert.True(t, loader.Identical(rows[0], rows[1]))
	assert.False(t, loader.Identical(rows[1], rows[2]))

	first := rows[0].(*loader.Entity)
	assert.Equal(t, "Patient", first.Name)
	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, "zhangsan", first.Get("name"))
	assert.Len(t, first.Collections["visits"], 2)
}

func TestIterateSuppressesFetchDuplicates(t *testing.T) {
	session := engine.NewSQLSession(testutil.OpenSQLite(t))
	l := newLoader(t, "select p from Patient p left join fetch p.visits v order by p.id")

	it, err := l.Iterate(context.Background(), nil, session)
	require.NoError(t, err)
	defer it.Close()
	var ids []any
	for it.Next() {
		ids = append(ids, it.Value().(*loader.Entity).ID)
	}
	require.NoError(t, it.Err())
	assert.Equal(t, []any{int64(1), int64(2), int64(3)}, ids)
}

func TestScrollGroupsFanOut(t *testing.T) {
	session := engine.NewSQLSession(testutil.OpenSQLite(t))
	l := newLoader(t, "select p from Patient p left join fetch p.visits v order by p.id")

	sr, err := l.Scroll(context.Background(), nil, session)
	require.NoError(t, err)
	defer sr.Close()

	var sizes []int
	for sr.Next() {
		sizes = append(sizes, len(sr.Get().(*loader.Entity).Collections["visits"]))
	}
	require.NoError(t, sr.Err())
	assert.Equal(t, []int{2, 1, 1}, sizes)
	assert.Equal(t, 2, sr.RowNumber())
}

func TestIdentitySet(t *testing.T) {
	s := loader.NewIdentitySet()
	e := &loader.Entity{Name: "Patient"}
	assert.True(t, s.Add(e))
	assert.False(t, s.Add(e))
	assert.True(t, s.Add(&loader.Entity{Name: "Patient"}))
	assert.True(t, s.Add("text"))
	assert.True(t, s.Add("text"), "values without identity are never duplicates")
}
