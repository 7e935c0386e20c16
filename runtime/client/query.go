package client

import (
	"context"
	"fmt"
	"sort"

	"github.com/satishbabariya/aql-go/internal/debug"
	"github.com/satishbabariya/aql-go/query/engine"
	"github.com/satishbabariya/aql-go/query/loader"
	"github.com/satishbabariya/aql-go/query/translator"
)

// Query is an executable AQL query bound to a session.
type Query struct {
	session *Session
	aql     string

	role     string
	ownerKey any

	named      map[string]any
	positional []any
	first      *int
	max        *int
	fetchSize  int
	timeout    int
	shallow    bool
	cacheable  bool
}

func newQuery(s *Session, aql string) *Query {
	return &Query{
		session:   s,
		aql:       aql,
		named:     map[string]any{},
		fetchSize: s.fetchSize,
		timeout:   s.timeoutSeconds,
	}
}

// SetParameter binds a named parameter (":name" or "?1").
func (q *Query) SetParameter(name string, value any) *Query {
	q.named[name] = value
	return q
}

// SetParameters binds the positional parameters in order.
func (q *Query) SetParameters(values ...any) *Query {
	q.positional = values
	return q
}

// SetFirstResult sets the zero-based offset of the first result.
func (q *Query) SetFirstResult(first int) *Query {
	q.first = &first
	return q
}

// SetMaxResults caps the number of results; negative means unbounded.
func (q *Query) SetMaxResults(max int) *Query {
	q.max = &max
	return q
}

// SetFetchSize sets the fetch size hint.
func (q *Query) SetFetchSize(n int) *Query {
	q.fetchSize = n
	return q
}

// SetTimeout bounds each statement of the query.
func (q *Query) SetTimeout(seconds int) *Query {
	q.timeout = seconds
	return q
}

// SetShallow compiles entity projections to their identifiers.
func (q *Query) SetShallow(shallow bool) *Query {
	q.shallow = shallow
	return q
}

// SetCacheable caches the results of List until a statement writes to a table the
// query reads.
func (q *Query) SetCacheable(cacheable bool) *Query {
	q.cacheable = cacheable
	return q
}

// Translator returns the compiled plan of the query.
func (q *Query) Translator() (*translator.Translator, error) {
	c := q.session.client
	filters := q.session.EnabledFilters()
	if q.role != "" {
		return c.CompileFilter(q.role, q.aql, filters, q.shallow)
	}
	return c.Compile(q.aql, filters, q.shallow)
}

func (q *Query) parameters() *engine.QueryParameters {
	return &engine.QueryParameters{
		Named:      q.named,
		Positional: q.positional,
		Filters:    q.session.filterValues(),
		OwnerKey:   q.ownerKey,
		RowSelection: &engine.RowSelection{
			FirstRow:       q.first,
			MaxRows:        q.max,
			FetchSize:      q.fetchSize,
			TimeoutSeconds: q.timeout,
		},
	}
}

// List returns every result.
func (q *Query) List(ctx context.Context) ([]any, error) {
	tr, err := q.Translator()
	if err != nil {
		return nil, err
	}
	out, err := q.session.client.runExtensions(q.extensionContext(ctx, "list", tr), false, func() (any, error) {
		return q.list(ctx, tr)
	})
	if err != nil {
		return nil, err
	}
	rows, ok := out.([]any)
	if !ok && out != nil {
		return nil, fmt.Errorf("extension replaced list results with %T", out)
	}
	return rows, nil
}

func (q *Query) list(ctx context.Context, tr *translator.Translator) ([]any, error) {
	params := q.parameters()
	if !q.cacheable || tr.IsManipulationStatement() || q.session.readsUncommitted(tr.QuerySpaces()) {
		return tr.List(ctx, params, q.session.transport())
	}

	results := q.session.client.results
	key := q.cacheKey(params)
	if rows, ok := results.Get(tr.SQLString(), key); ok {
		debug.Debug("result cache hit", "aql", q.aql)
		return rows, nil
	}
	rows, err := tr.List(ctx, params, q.session.transport())
	if err != nil {
		return nil, err
	}
	results.Put(tr.SQLString(), key, rows, tr.QuerySpaces())
	return rows, nil
}

func (q *Query) extensionContext(ctx context.Context, operation string, tr *translator.Translator) *ExtensionContext {
	return &ExtensionContext{Context: ctx, Query: q.aql, Operation: operation, Spaces: tr.QuerySpaces()}
}

// cacheKey flattens everything that may change the results of one plan.
func (q *Query) cacheKey(p *engine.QueryParameters) []any {
	key := []any{"first", p.RowSelection.First(), "max", p.RowSelection.Max(), "owner", p.OwnerKey}
	key = append(key, sortedPairs(p.Named)...)
	key = append(key, p.Positional...)
	names := make([]string, 0, len(p.Filters))
	for n := range p.Filters {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		key = append(key, n)
		key = append(key, sortedPairs(p.Filters[n])...)
	}
	return key
}

func sortedPairs(m map[string]any) []any {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]any, 0, 2*len(keys))
	for _, k := range keys {
		out = append(out, k, m[k])
	}
	return out
}

// UniqueResult returns the single result of the query, or nil when there is none.
func (q *Query) UniqueResult(ctx context.Context) (any, error) {
	rows, err := q.List(ctx)
	if err != nil {
		return nil, err
	}
	var out any
	set := loader.NewIdentitySet()
	n := 0
	for _, r := range rows {
		if set.Add(r) {
			out = r
			n++
		}
	}
	if n > 1 {
		return nil, fmt.Errorf("query did not return a unique result: %d", n)
	}
	return out, nil
}

// Iterate returns a lazy iterator over the results.
func (q *Query) Iterate(ctx context.Context) (*loader.Iterator, error) {
	tr, err := q.Translator()
	if err != nil {
		return nil, err
	}
	return tr.Iterate(ctx, q.parameters(), q.session.transport())
}

// Scroll returns a forward-only cursor over the results.
func (q *Query) Scroll(ctx context.Context) (*loader.ScrollableResults, error) {
	tr, err := q.Translator()
	if err != nil {
		return nil, err
	}
	return tr.Scroll(ctx, q.parameters(), q.session.transport())
}

// ExecuteUpdate executes a bulk insert, update or delete and returns the affected row
// count. Cached results reading the written tables are dropped.
func (q *Query) ExecuteUpdate(ctx context.Context) (int, error) {
	tr, err := q.Translator()
	if err != nil {
		return 0, err
	}
	out, err := q.session.client.runExtensions(q.extensionContext(ctx, "executeUpdate", tr), true, func() (any, error) {
		return tr.ExecuteUpdate(ctx, q.parameters(), q.session.transport())
	})
	if tr.IsManipulationStatement() {
		q.session.client.results.Invalidate(tr.QuerySpaces())
		q.session.recordWrite(tr.QuerySpaces())
	}
	n, _ := out.(int)
	return n, err
}
