package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/aql-go/internal/testutil"
	"github.com/satishbabariya/aql-go/query/loader"
	"github.com/satishbabariya/aql-go/query/qerrors"
)

func newSession(t *testing.T) (*Client, *Session) {
	t.Helper()
	c, err := New(testutil.OpenSQLite(t), Options{Provider: "sqlite", Catalog: testutil.Catalog(t)})
	require.NoError(t, err)
	s, err := c.Session(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return c, s
}

func names(t *testing.T, rows []any) []string {
	t.Helper()
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = fmt.Sprintf("%s", r)
	}
	return out
}

func patientNames(t *testing.T, s *Session) []string {
	t.Helper()
	rows, err := s.Query("select p.name from Patient p order by p.id").List(context.Background())
	require.NoError(t, err)
	return names(t, rows)
}

func TestUnsupportedProvider(t *testing.T) {
	_, err := Open("", Options{Provider: "oracle", Catalog: testutil.Catalog(t)})
	assert.EqualError(t, err, "unsupported provider: oracle")
}

func TestListAndDelete(t *testing.T) {
	ctx := context.Background()
	c, s := newSession(t)

	assert.Equal(t, []string{"zhangsan", "lisi", "wangwu"}, patientNames(t, s))

	n, err := s.Query("delete from Patient as o where o.name = :name").SetParameter("name", "lisi").ExecuteUpdate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"zhangsan", "wangwu"}, patientNames(t, s))

	assert.Equal(t, 2, c.PlanCacheStats().Size, "the list plan is reused")
}

func TestWindowAndUniqueResult(t *testing.T) {
	ctx := context.Background()
	_, s := newSession(t)

	rows, err := s.Query("select p.name from Patient p order by p.id").SetFirstResult(1).SetMaxResults(1).List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"lisi"}, names(t, rows))

	one, err := s.Query("select p from Patient p left join fetch p.visits v where p.id = 1").UniqueResult(ctx)
	require.NoError(t, err)
	assert.Len(t, one.(*loader.Entity).Collections["visits"], 2)

	_, err = s.Query("select p from Patient p").UniqueResult(ctx)
	assert.Error(t, err)
}

func TestMultiTableDeleteOnPinnedConnection(t *testing.T) {
	ctx := context.Background()
	_, s := newSession(t)

	n, err := s.Query("delete from Person p where p.dept = :dept").SetParameter("dept", "eng").ExecuteUpdate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	rows, err := s.Query("select p.name from Person p").List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"cy"}, names(t, rows))
}

func TestResultCacheInvalidatedByWrites(t *testing.T) {
	ctx := context.Background()
	c, s := newSession(t)
	list := func() []string {
		rows, err := s.Query("select p.gender from Patient p order by p.id").SetCacheable(true).List(ctx)
		require.NoError(t, err)
		return names(t, rows)
	}

	assert.Equal(t, []string{"M", "F", "O"}, list())
	assert.Equal(t, []string{"M", "F", "O"}, list())
	assert.EqualValues(t, 1, c.ResultCacheStats().Hits)

	_, err := s.Query("update Visit v set v.amount = 0").ExecuteUpdate(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"M", "F", "O"}, list())
	assert.EqualValues(t, 2, c.ResultCacheStats().Hits, "writes to other tables keep the results")

	_, err = s.Query("update Patient p set p.gender = 'X' where p.id = 1").ExecuteUpdate(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"X", "F", "O"}, list())
}

func TestTransactionRollback(t *testing.T) {
	ctx := context.Background()
	_, s := newSession(t)
	abort := errors.New("abort")

	err := s.Transaction(ctx, func(s *Session) error {
		assert.True(t, s.InTransaction())
		_, err := s.Query("delete from Patient p where p.id = 2").ExecuteUpdate(ctx)
		require.NoError(t, err)
		return abort
	})
	assert.ErrorIs(t, err, abort)
	assert.False(t, s.InTransaction())
	assert.Equal(t, []string{"zhangsan", "lisi", "wangwu"}, patientNames(t, s))
}

func TestRollbackDropsCachedResults(t *testing.T) {
	ctx := context.Background()
	c, s := newSession(t)
	list := func() []string {
		rows, err := s.Query("select p.name from Patient p order by p.id").SetCacheable(true).List(ctx)
		require.NoError(t, err)
		return names(t, rows)
	}
	all := []string{"zhangsan", "lisi", "wangwu"}
	abort := errors.New("abort")

	assert.Equal(t, all, list())
	err := s.Transaction(ctx, func(s *Session) error {
		_, err := s.Query("delete from Patient p where p.id = 2").ExecuteUpdate(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"zhangsan", "wangwu"}, list())
		assert.Equal(t, []string{"zhangsan", "wangwu"}, list())
		return abort
	})
	require.ErrorIs(t, err, abort)
	assert.EqualValues(t, 0, c.ResultCacheStats().Hits, "uncommitted reads bypass the cache")

	assert.Equal(t, all, list())
	assert.Equal(t, all, list())
	assert.EqualValues(t, 1, c.ResultCacheStats().Hits)
}

func TestNestedTransaction(t *testing.T) {
	ctx := context.Background()
	_, s := newSession(t)

	err := s.Transaction(ctx, func(s *Session) error {
		if _, err := s.Query("delete from Patient p where p.id = 3").ExecuteUpdate(ctx); err != nil {
			return err
		}
		inner := s.Transaction(ctx, func(s *Session) error {
			if _, err := s.Query("delete from Patient p where p.id = 1").ExecuteUpdate(ctx); err != nil {
				return err
			}
			return errors.New("inner failure")
		})
		assert.EqualError(t, inner, "inner failure")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"zhangsan", "lisi"}, patientNames(t, s))
}

func TestFilters(t *testing.T) {
	ctx := context.Background()
	_, s := newSession(t)

	s.EnableFilter("byGender").Set("gender", "M")
	assert.Equal(t, []string{"byGender"}, s.EnabledFilters())
	assert.Equal(t, []string{"zhangsan"}, patientNames(t, s))

	s.DisableFilter("byGender")
	assert.Len(t, patientNames(t, s), 3)

	rows, err := s.Filter("Patient.visits", 1, "where this.amount > 25").List(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(11), rows[0].(*loader.Entity).ID)
}

func TestCompileErrorsSurface(t *testing.T) {
	_, s := newSession(t)

	_, err := s.Query("select p.nope from Patient p").List(context.Background())
	assert.ErrorIs(t, err, qerrors.ErrSemantic)
	assert.Equal(t, "select p.nope from Patient p", qerrors.QueryString(err))

	_, err = s.Query("select p from Patient p").ExecuteUpdate(context.Background())
	assert.ErrorIs(t, err, qerrors.ErrExecutionRequest)
}

func TestMiddlewareAndExtensions(t *testing.T) {
	ctx := context.Background()
	c, s := newSession(t)

	var events []string
	c.Use(func(ctx context.Context, event *QueryEvent, next func() error) error {
		err := next()
		events = append(events, event.Operation+":"+strings.Fields(event.SQL)[0])
		return err
	})
	var logged []string
	c.Extend(LoggingExtension(func(format string, args ...any) {
		logged = append(logged, fmt.Sprintf(format, args...))
	}))
	c.Extend(ResultTransformationExtension(func(ctx *ExtensionContext, result any) any {
		rows := result.([]any)
		return rows[:1]
	}))

	rows, err := s.Query("select p.name from Patient p order by p.id").List(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	_, err = s.Query("delete from Patient p where p.id = 3").ExecuteUpdate(ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{"query:select", "exec:delete"}, events)
	require.Len(t, logged, 4)
	assert.Contains(t, logged[0], "[list]")
	assert.Contains(t, logged[3], "[executeUpdate]")
}

func TestStatementEvents(t *testing.T) {
	ctx := context.Background()
	c, s := newSession(t)

	var order []string
	c.Use(func(ctx context.Context, event *QueryEvent, next func() error) error {
		order = append(order, "outer")
		return next()
	})
	c.Use(func(ctx context.Context, event *QueryEvent, next func() error) error {
		order = append(order, "inner")
		return next()
	})
	var slow []*QueryEvent
	c.Use(SlowStatementMiddleware(0, func(ev *QueryEvent) { slow = append(slow, ev) }))

	require.NoError(t, s.Transaction(ctx, func(s *Session) error {
		_, err := s.Query("update Patient p set p.gender = 'X' where p.id < 3").ExecuteUpdate(ctx)
		return err
	}))

	assert.Equal(t, []string{"outer", "inner"}, order)
	require.Len(t, slow, 1)
	assert.Equal(t, "exec", slow[0].Operation)
	assert.True(t, slow[0].InTransaction)
	assert.EqualValues(t, 2, slow[0].RowsAffected)
	assert.NoError(t, slow[0].Error)
	assert.False(t, slow[0].Start.IsZero())
}

func TestIterateAndScroll(t *testing.T) {
	ctx := context.Background()
	_, s := newSession(t)

	it, err := s.Query("select p from Patient p left join fetch p.visits v order by p.id").Iterate(ctx)
	require.NoError(t, err)
	count := 0
	for it.Next() {
		count++
	}
	require.NoError(t, it.Err())
	require.NoError(t, it.Close())
	assert.Equal(t, 3, count)

	_, err = s.Query("select p from Patient p left join fetch p.visits v order by v.amount").Scroll(ctx)
	assert.ErrorIs(t, err, qerrors.ErrSemantic)
}

type patientRow struct {
	Name   string `db:"name"`
	Gender string
}

type patientEntity struct {
	ID     int64 `db:"id"`
	Name   string
	Visits []*loader.Entity
}

func TestScanInto(t *testing.T) {
	ctx := context.Background()
	_, s := newSession(t)

	q := s.Query("select p.name as name, p.gender as gender from Patient p order by p.id")
	rows, err := q.List(ctx)
	require.NoError(t, err)
	tr, err := q.Translator()
	require.NoError(t, err)

	out, err := ScanInto[patientRow](rows, tr.ReturnAliases())
	require.NoError(t, err)
	assert.Equal(t, patientRow{Name: "zhangsan", Gender: "M"}, out[0])

	entities, err := s.Query("select p from Patient p left join fetch p.visits v where p.id = 1").
		SetMaxResults(-1).List(ctx)
	require.NoError(t, err)
	patients, err := ScanInto[patientEntity](entities, nil)
	require.NoError(t, err)
	require.Len(t, patients, 1)
	assert.Equal(t, int64(1), patients[0].ID)
	assert.Equal(t, "zhangsan", patients[0].Name)
	assert.Len(t, patients[0].Visits, 2)

	_, err = ScanInto[int](rows, tr.ReturnAliases())
	assert.Error(t, err)
}
