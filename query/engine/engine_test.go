package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/aql-go/internal/testutil"
	"github.com/satishbabariya/aql-go/query/bound"
	"github.com/satishbabariya/aql-go/query/engine"
	"github.com/satishbabariya/aql-go/query/qerrors"
)

func intp(v int) *int { return &v }

func TestRowSelection(t *testing.T) {
	var none *engine.RowSelection
	assert.False(t, none.DefinesLimits())
	assert.Equal(t, 0, none.First())
	assert.Equal(t, -1, none.Max())

	sel := &engine.RowSelection{MaxRows: intp(3), FetchSize: 50, TimeoutSeconds: 2}
	assert.True(t, sel.DefinesLimits())
	assert.Equal(t, 0, sel.First())
	assert.Equal(t, 3, sel.Max())
	assert.Equal(t, engine.RowOptions{FetchSize: 50, Timeout: 2 * time.Second}, sel.Options())

	stripped := sel.WithoutLimits()
	assert.False(t, stripped.DefinesLimits())
	assert.Equal(t, 50, stripped.FetchSize)

	assert.Equal(t, -1, (&engine.RowSelection{MaxRows: intp(-5)}).Max())
}

func TestBind(t *testing.T) {
	params := &engine.QueryParameters{
		Named:      map[string]any{"name": "lisi"},
		Positional: []any{7},
		Filters:    map[string]map[string]any{"byGender": {"gender": "F"}},
		OwnerKey:   int64(1),
	}
	specs := []*bound.ParameterSpec{
		{Kind: bound.NamedParameter, Name: "name"},
		{Kind: bound.PositionalParameter, Position: 0},
		{Kind: bound.FilterParameter, Filter: "byGender", Name: "gender"},
		{Kind: bound.OwnerKeyParameter},
	}

	args, err := params.Bind(specs)
	require.NoError(t, err)
	assert.Equal(t, []any{"lisi", 7, "F", int64(1)}, args)

	_, err = params.Bind([]*bound.ParameterSpec{{Kind: bound.PositionalParameter, Position: 3}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, qerrors.ErrQuery))
	assert.Contains(t, err.Error(), "?3")
}

func TestSQLSession(t *testing.T) {
	ctx := context.Background()
	session := engine.NewSQLSession(testutil.OpenSQLite(t))

	rows, err := session.Query(ctx, "select name from patient where id = ?", []any{2}, engine.RowOptions{Timeout: time.Second})
	require.NoError(t, err)
	require.True(t, rows.Next())
	var name string
	require.NoError(t, rows.Scan(&name))
	assert.Equal(t, "lisi", name)
	require.NoError(t, rows.Close())
	require.NoError(t, rows.Err())

	n, err := session.Exec(ctx, "update visit set amount = 1 where patient_id = ?", []any{1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = session.Exec(ctx, "delete from nowhere", nil)
	var te *engine.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "delete from nowhere", te.SQL)
	assert.Same(t, te, engine.Transport("other", te))
}
