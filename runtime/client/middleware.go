package client

import (
	"context"
	"time"

	"github.com/satishbabariya/aql-go/internal/debug"
	"github.com/satishbabariya/aql-go/query/engine"
)

// QueryEvent describes one SQL statement sent to the database. Middleware sees it
// before the statement runs; the result fields are filled in when next returns.
type QueryEvent struct {
	// Operation is "query" for selects and "exec" for other statements.
	Operation     string
	SQL           string
	Args          []any
	InTransaction bool

	Start        time.Time
	Duration     time.Duration
	RowsAffected int64
	Error        error
}

// Middleware wraps the execution of statements. It must call next exactly once to run
// the statement.
type Middleware func(ctx context.Context, event *QueryEvent, next func() error) error

// Use appends a middleware. Middleware registered first runs outermost.
func (c *Client) Use(middleware Middleware) {
	c.middlewares = append(c.middlewares, middleware)
}

func (c *Client) intercept(ctx context.Context, event *QueryEvent, exec func() error) error {
	run := func() error {
		event.Start = time.Now()
		err := exec()
		event.Duration = time.Since(event.Start)
		event.Error = err
		return err
	}
	for i := len(c.middlewares) - 1; i >= 0; i-- {
		mw, next := c.middlewares[i], run
		run = func() error { return mw(ctx, event, next) }
	}
	return run()
}

// LoggingMiddleware logs every statement at debug level.
func LoggingMiddleware() Middleware {
	return func(ctx context.Context, event *QueryEvent, next func() error) error {
		err := next()
		attrs := []any{"sql", event.SQL, "args", event.Args, "duration", event.Duration}
		if event.Operation == "exec" {
			attrs = append(attrs, "rows", event.RowsAffected)
		}
		if err != nil {
			debug.Debug(event.Operation+" failed", append(attrs, "error", err)...)
		} else {
			debug.Debug(event.Operation, attrs...)
		}
		return err
	}
}

// SlowStatementMiddleware reports statements running for at least threshold.
func SlowStatementMiddleware(threshold time.Duration, report func(event *QueryEvent)) Middleware {
	return func(ctx context.Context, event *QueryEvent, next func() error) error {
		err := next()
		if event.Duration >= threshold {
			report(event)
		}
		return err
	}
}

// transport runs the statements of a session through the middleware chain.
type transport struct {
	client *Client
	inner  engine.Session
	inTx   bool
}

func (t *transport) Query(ctx context.Context, sql string, args []any, opts engine.RowOptions) (engine.Rows, error) {
	var rows engine.Rows
	event := &QueryEvent{Operation: "query", SQL: sql, Args: args, InTransaction: t.inTx}
	err := t.client.intercept(ctx, event, func() error {
		var err error
		rows, err = t.inner.Query(ctx, sql, args, opts)
		return err
	})
	return rows, err
}

func (t *transport) Exec(ctx context.Context, sql string, args []any) (int64, error) {
	event := &QueryEvent{Operation: "exec", SQL: sql, Args: args, InTransaction: t.inTx}
	err := t.client.intercept(ctx, event, func() error {
		var err error
		event.RowsAffected, err = t.inner.Exec(ctx, sql, args)
		return err
	})
	return event.RowsAffected, err
}
