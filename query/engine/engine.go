// Package engine defines the execution-side contracts shared by loaders and executors:
// runtime parameter bindings, row selection hints and the transport session.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/satishbabariya/aql-go/query/bound"
	"github.com/satishbabariya/aql-go/query/qerrors"
)

// RowSelection is the row window and the transport hints of one execution.
type RowSelection struct {
	// FirstRow is the zero-based offset of the first returned row.
	FirstRow *int
	// MaxRows caps the number of returned rows; negative means unbounded.
	MaxRows *int
	// FetchSize is passed to the transport as a hint.
	FetchSize int
	// TimeoutSeconds bounds a statement's execution when positive.
	TimeoutSeconds int
}

// DefinesLimits reports whether a row window was requested.
func (r *RowSelection) DefinesLimits() bool {
	return r != nil && (r.FirstRow != nil || r.MaxRows != nil)
}

// First returns the window offset, 0 when unset.
func (r *RowSelection) First() int {
	if r == nil || r.FirstRow == nil || *r.FirstRow < 0 {
		return 0
	}
	return *r.FirstRow
}

// Max returns the window size, -1 when unbounded.
func (r *RowSelection) Max() int {
	if r == nil || r.MaxRows == nil || *r.MaxRows < 0 {
		return -1
	}
	return *r.MaxRows
}

// WithoutLimits returns a copy keeping only the transport hints.
func (r *RowSelection) WithoutLimits() *RowSelection {
	if r == nil {
		return nil
	}
	return &RowSelection{FetchSize: r.FetchSize, TimeoutSeconds: r.TimeoutSeconds}
}

// Options returns the transport hints of r.
func (r *RowSelection) Options() RowOptions {
	if r == nil {
		return RowOptions{}
	}
	return RowOptions{
		FetchSize: r.FetchSize,
		Timeout:   time.Duration(r.TimeoutSeconds) * time.Second,
	}
}

// QueryParameters holds the values bound to one execution.
type QueryParameters struct {
	Named      map[string]any
	Positional []any
	// Filters holds the parameter values of enabled filters, by filter name.
	Filters map[string]map[string]any
	// OwnerKey is the collection owner key of a collection filter.
	OwnerKey     any
	RowSelection *RowSelection
}

// Value returns the value bound to spec.
func (p *QueryParameters) Value(spec *bound.ParameterSpec) (any, error) {
	if p == nil {
		p = &QueryParameters{}
	}
	var (
		v  any
		ok bool
	)
	switch spec.Kind {
	case bound.NamedParameter:
		v, ok = p.Named[spec.Name]
	case bound.PositionalParameter:
		if ok = spec.Position < len(p.Positional); ok {
			v = p.Positional[spec.Position]
		}
	case bound.FilterParameter:
		v, ok = p.Filters[spec.Filter][spec.Name]
	case bound.OwnerKeyParameter:
		v, ok = p.OwnerKey, p.OwnerKey != nil
	}
	if !ok {
		return nil, qerrors.NewQueryError("no value bound for parameter", spec.String())
	}
	return v, nil
}

// Bind resolves the values of specs in order.
func (p *QueryParameters) Bind(specs []*bound.ParameterSpec) ([]any, error) {
	args := make([]any, len(specs))
	for i, spec := range specs {
		v, err := p.Value(spec)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return args, nil
}

// Selection returns the row selection, never nil.
func (p *QueryParameters) Selection() *RowSelection {
	if p == nil || p.RowSelection == nil {
		return &RowSelection{}
	}
	return p.RowSelection
}

// RowOptions are the transport hints of a query.
type RowOptions struct {
	FetchSize int
	Timeout   time.Duration
}

// Rows is a forward-only cursor over a result set. *sql.Rows implements it.
type Rows interface {
	Columns() ([]string, error)
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// Session is the transport to the relational store. Multi-step statements require
// every call of one execution to run on the same connection.
type Session interface {
	Query(ctx context.Context, sql string, args []any, opts RowOptions) (Rows, error)
	Exec(ctx context.Context, sql string, args []any) (int64, error)
}

// TransportError is a failure reported by the Session. It is never interpreted or
// retried.
type TransportError struct {
	SQL string
	Err error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("executing %q: %v", e.SQL, e.Err)
}

// Unwrap returns the driver error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Transport wraps err as a TransportError for sql unless it already is one.
func Transport(sql string, err error) error {
	if err == nil {
		return nil
	}
	var te *TransportError
	if errors.As(err, &te) {
		return err
	}
	return &TransportError{SQL: sql, Err: err}
}
