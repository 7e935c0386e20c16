// Package loader executes compiled select statements and materializes their rows.
package loader

import (
	"context"
	"fmt"

	"github.com/satishbabariya/aql-go/internal/debug"
	"github.com/satishbabariya/aql-go/query/bound"
	"github.com/satishbabariya/aql-go/query/engine"
	"github.com/satishbabariya/aql-go/query/sqlgen"
)

// QueryLoader is the row-fetch plan of a compiled select.
type QueryLoader struct {
	stmt         *bound.Select
	statement    *sqlgen.Generated
	dialect      sqlgen.Dialect
	materializer Materializer
	width        int
}

// New creates a loader running statement, the SQL generated for stmt. A nil
// materializer selects EntityMaterializer.
func New(stmt *bound.Select, statement *sqlgen.Generated, d sqlgen.Dialect, m Materializer) *QueryLoader {
	if m == nil {
		m = EntityMaterializer{}
	}
	width := 0
	for _, it := range stmt.Projection.Items {
		width += len(it.Columns)
	}
	for _, f := range stmt.Projection.Fetches {
		width += len(f.Columns)
	}
	return &QueryLoader{stmt: stmt, statement: statement, dialect: d, materializer: m, width: width}
}

// SQL returns the statement text without a row window.
func (l *QueryLoader) SQL() string {
	return l.statement.SQL
}

// Statement returns the bound select.
func (l *QueryLoader) Statement() *bound.Select {
	return l.stmt
}

// Prepare resolves the statement text and arguments of one execution. A row window in
// params is pushed down to the database.
func (l *QueryLoader) Prepare(params *engine.QueryParameters) (string, []any, error) {
	args, err := params.Bind(l.statement.Parameters)
	if err != nil {
		return "", nil, err
	}
	sql := l.statement.SQL
	sel := params.Selection()
	if sel.DefinesLimits() {
		var first, max *int
		if f := sel.First(); f > 0 {
			first = &f
		}
		if m := sel.Max(); m >= 0 {
			max = &m
		}
		var extra []any
		sql, extra = l.dialect.ApplyLimit(sql, first, max, len(args)+1)
		args = append(args, extra...)
	}
	return sql, args, nil
}

// List executes the statement and returns every materialized row.
func (l *QueryLoader) List(ctx context.Context, params *engine.QueryParameters, session engine.Session) ([]any, error) {
	c, err := l.open(ctx, params, session)
	if err != nil {
		return nil, err
	}
	defer c.close()

	var out []any
	for {
		r, ok := c.next()
		if !ok {
			break
		}
		out = append(out, r)
	}
	if c.err != nil {
		return nil, c.err
	}
	return out, nil
}

// Iterate executes the statement and returns a lazy iterator over its rows. Results of
// a collection fetch are returned once.
func (l *QueryLoader) Iterate(ctx context.Context, params *engine.QueryParameters, session engine.Session) (*Iterator, error) {
	c, err := l.open(ctx, params, session)
	if err != nil {
		return nil, err
	}
	it := &Iterator{c: c}
	if l.stmt.ContainsCollectionFetches() {
		it.distinct = NewIdentitySet()
	}
	return it, nil
}

// Scroll executes the statement and returns a forward-only cursor. With collection
// fetches, contiguous rows of one root are returned as one result.
func (l *QueryLoader) Scroll(ctx context.Context, params *engine.QueryParameters, session engine.Session) (*ScrollableResults, error) {
	c, err := l.open(ctx, params, session)
	if err != nil {
		return nil, err
	}
	return &ScrollableResults{c: c, group: l.stmt.ContainsCollectionFetches() && !l.stmt.Shallow}, nil
}

func (l *QueryLoader) open(ctx context.Context, params *engine.QueryParameters, session engine.Session) (*cursor, error) {
	sql, args, err := l.Prepare(params)
	if err != nil {
		return nil, err
	}
	debug.Debug("executing query", "sql", sql, "args", args)
	rows, err := session.Query(ctx, sql, args, params.Selection().Options())
	if err != nil {
		return nil, engine.Transport(sql, err)
	}
	return &cursor{
		rows:  rows,
		rm:    l.materializer.Begin(l.stmt.Projection),
		width: l.width,
		sql:   sql,
	}, nil
}

// cursor materializes the rows of one execution.
type cursor struct {
	rows   engine.Rows
	rm     RowMaterializer
	width  int
	sql    string
	err    error
	closed bool
}

func (c *cursor) next() (any, bool) {
	if c.closed || c.err != nil {
		return nil, false
	}
	if !c.rows.Next() {
		if err := c.rows.Err(); err != nil {
			c.err = engine.Transport(c.sql, err)
		}
		return nil, false
	}
	raw := make([]any, c.width)
	dest := make([]any, c.width)
	for i := range raw {
		dest[i] = &raw[i]
	}
	if err := c.rows.Scan(dest...); err != nil {
		c.err = engine.Transport(c.sql, err)
		return nil, false
	}
	r, err := c.rm.Materialize(raw)
	if err != nil {
		c.err = fmt.Errorf("materializing row: %w", err)
		return nil, false
	}
	return r, true
}

func (c *cursor) close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.rows.Close()
}

// Iterator is a lazy sequence of results. It is not restartable; execute the query
// again to start over.
type Iterator struct {
	c        *cursor
	distinct *IdentitySet
	current  any
}

// Next advances to the next result.
func (it *Iterator) Next() bool {
	for {
		r, ok := it.c.next()
		if !ok {
			_ = it.c.close()
			return false
		}
		if it.distinct != nil && !it.distinct.Add(r) {
			continue
		}
		it.current = r
		return true
	}
}

// Value returns the current result.
func (it *Iterator) Value() any { return it.current }

// Err returns the error that stopped the iteration.
func (it *Iterator) Err() error { return it.c.err }

// Close releases the cursor.
func (it *Iterator) Close() error { return it.c.close() }

// ScrollableResults is a forward-only cursor.
type ScrollableResults struct {
	c       *cursor
	group   bool
	current any
	pending any
	hasNext bool
	rowNum  int
}

// Next advances to the next result.
func (s *ScrollableResults) Next() bool {
	if s.hasNext {
		s.current, s.hasNext = s.pending, false
	} else {
		r, ok := s.c.next()
		if !ok {
			return false
		}
		s.current = r
	}
	if s.group {
		for {
			r, ok := s.c.next()
			if !ok {
				break
			}
			if !Identical(r, s.current) {
				s.pending, s.hasNext = r, true
				break
			}
		}
	}
	s.rowNum++
	debug.Debug("scrolled", "row", s.rowNum, "result", describe(s.current))
	return true
}

// Get returns the current result.
func (s *ScrollableResults) Get() any { return s.current }

// RowNumber returns the zero-based number of the current result.
func (s *ScrollableResults) RowNumber() int { return s.rowNum - 1 }

// Err returns the error that stopped scrolling.
func (s *ScrollableResults) Err() error { return s.c.err }

// Close releases the cursor.
func (s *ScrollableResults) Close() error { return s.c.close() }
