package client

import (
	"database/sql"
	"sort"

	"github.com/satishbabariya/aql-go/query/engine"
)

// Session is a unit of work pinned to one database connection. A Session is not safe
// for concurrent use.
type Session struct {
	client *Client
	conn   *sql.Conn
	tx     *sql.Tx
	depth  int
	// written holds the query spaces written by the active transaction
	written map[string]struct{}

	// filters holds the enabled filters and their parameter values
	filters map[string]map[string]any

	fetchSize      int
	timeoutSeconds int
}

// EnableFilter enables the named filter for the queries created afterwards and returns
// its parameter values, which may be set until a query runs.
func (s *Session) EnableFilter(name string) FilterParameters {
	params, ok := s.filters[name]
	if !ok {
		params = map[string]any{}
		s.filters[name] = params
	}
	return FilterParameters(params)
}

// DisableFilter disables the named filter.
func (s *Session) DisableFilter(name string) {
	delete(s.filters, name)
}

// EnabledFilters returns the sorted names of the enabled filters.
func (s *Session) EnabledFilters() []string {
	names := make([]string, 0, len(s.filters))
	for n := range s.filters {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// FilterParameters holds the parameter values of an enabled filter.
type FilterParameters map[string]any

// Set sets a parameter value.
func (p FilterParameters) Set(name string, value any) FilterParameters {
	p[name] = value
	return p
}

// SetDefaults sets the fetch size and timeout applied to queries that set none.
func (s *Session) SetDefaults(fetchSize, timeoutSeconds int) {
	s.fetchSize = fetchSize
	s.timeoutSeconds = timeoutSeconds
}

// Query creates a query over the session.
func (s *Session) Query(aql string) *Query {
	return newQuery(s, aql)
}

// Filter creates a query filtering the collection role ("Entity.collection") of the
// owner with identifier ownerKey. The query refers to the collection elements as this.
func (s *Session) Filter(role string, ownerKey any, aql string) *Query {
	q := newQuery(s, aql)
	q.role = role
	q.ownerKey = ownerKey
	return q
}

// Close releases the connection, rolling back an unfinished transaction.
func (s *Session) Close() error {
	if s.tx != nil {
		_ = s.tx.Rollback()
		s.tx = nil
	}
	return s.conn.Close()
}

// transport returns the session statements are run on.
func (s *Session) transport() engine.Session {
	var q engine.Querier = s.conn
	if s.tx != nil {
		q = s.tx
	}
	return &transport{client: s.client, inner: engine.NewSQLSession(q), inTx: s.tx != nil}
}

// filterValues copies the parameter values of the enabled filters.
func (s *Session) filterValues() map[string]map[string]any {
	out := make(map[string]map[string]any, len(s.filters))
	for name, params := range s.filters {
		cp := make(map[string]any, len(params))
		for k, v := range params {
			cp[k] = v
		}
		out[name] = cp
	}
	return out
}
