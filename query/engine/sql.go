package engine

import (
	"context"
	"database/sql"
)

// Querier is the part of *sql.DB, *sql.Conn and *sql.Tx used by SQLSession.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// SQLSession is a Session over database/sql.
type SQLSession struct {
	q Querier
}

// NewSQLSession creates a session running statements on q. Pass a *sql.Conn or *sql.Tx
// when executing multi-table DML so the staging table stays visible.
func NewSQLSession(q Querier) *SQLSession {
	return &SQLSession{q: q}
}

// Query implements Session. A positive timeout applies until the rows are closed.
func (s *SQLSession) Query(ctx context.Context, query string, args []any, opts RowOptions) (Rows, error) {
	cancel := context.CancelFunc(func() {})
	if opts.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
	}
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		cancel()
		return nil, Transport(query, err)
	}
	return &sqlRows{Rows: rows, cancel: cancel, query: query}, nil
}

// Exec implements Session.
func (s *SQLSession) Exec(ctx context.Context, query string, args []any) (int64, error) {
	res, err := s.q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, Transport(query, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, Transport(query, err)
	}
	return n, nil
}

type sqlRows struct {
	*sql.Rows
	cancel context.CancelFunc
	query  string
}

func (r *sqlRows) Err() error {
	return Transport(r.query, r.Rows.Err())
}

func (r *sqlRows) Close() error {
	defer r.cancel()
	return r.Rows.Close()
}

var _ Session = (*SQLSession)(nil)
