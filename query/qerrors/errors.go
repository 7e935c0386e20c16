// Package qerrors defines the error taxonomy of query translation and execution.
//
// Every error raised while compiling a query carries the source query string. Errors that
// originate without one are enriched by WithQueryString before they reach the caller.
package qerrors

import (
	"errors"
	"fmt"
)

var (
	// ErrQuery matches every error raised by query translation.
	ErrQuery = errors.New("query error")

	// ErrSyntax is returned when the query string cannot be parsed.
	ErrSyntax = errors.New("query syntax error")

	// ErrSemantic is returned when the parsed query cannot be bound against the catalog.
	ErrSemantic = errors.New("query semantic error")

	// ErrExecutionRequest is returned when a select-only operation is invoked on a DML
	// statement or vice versa.
	ErrExecutionRequest = errors.New("unsupported execution request")
)

// SyntaxError is a parse failure.
type SyntaxError struct {
	Query   string
	Line    int
	Column  int
	Offset  int
	Token   string
	Message string
}

// Error implements the error interface.
func (e *SyntaxError) Error() string {
	msg := e.Message
	if e.Token != "" {
		msg = fmt.Sprintf("%s near %q", msg, e.Token)
	}
	if e.Line > 0 {
		msg = fmt.Sprintf("%d:%d: %s", e.Line, e.Column, msg)
	}
	return withQuery(msg, e.Query)
}

// Is reports whether target is ErrSyntax or ErrQuery.
func (e *SyntaxError) Is(target error) bool {
	return target == ErrSyntax || target == ErrQuery
}

// SemanticError is a binding failure: an unresolved identifier, a type mismatch, an
// ambiguous scroll ordering or a malformed multi-table decomposition.
type SemanticError struct {
	Query string
	// Path is the alias or property path that failed to bind, when known.
	Path    string
	Message string
}

// Error implements the error interface.
func (e *SemanticError) Error() string {
	msg := e.Message
	if e.Path != "" {
		msg = fmt.Sprintf("%s [%s]", msg, e.Path)
	}
	return withQuery(msg, e.Query)
}

// Is reports whether target is ErrSemantic or ErrQuery.
func (e *SemanticError) Is(target error) bool {
	return target == ErrSemantic || target == ErrQuery
}

// Semanticf creates a SemanticError for path.
func Semanticf(path, format string, args ...any) *SemanticError {
	return &SemanticError{Path: path, Message: fmt.Sprintf(format, args...)}
}

// QueryError is a generic translation failure, e.g. a generation-time inconsistency.
type QueryError struct {
	Query string
	// Fragment is the offending piece of the query or generated SQL.
	Fragment string
	Message  string
	Cause    error
}

// Error implements the error interface.
func (e *QueryError) Error() string {
	msg := e.Message
	if e.Fragment != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Fragment)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return withQuery(msg, e.Query)
}

// Unwrap returns the underlying error.
func (e *QueryError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is ErrQuery.
func (e *QueryError) Is(target error) bool {
	return target == ErrQuery
}

// NewQueryError creates a QueryError without query text.
func NewQueryError(message, fragment string) *QueryError {
	return &QueryError{Message: message, Fragment: fragment}
}

// ExecutionRequestError is raised by the select/DML guard checks.
type ExecutionRequestError struct {
	Query   string
	Message string
}

// Error implements the error interface.
func (e *ExecutionRequestError) Error() string {
	return withQuery(e.Message, e.Query)
}

// Is reports whether target is ErrExecutionRequest or ErrQuery.
func (e *ExecutionRequestError) Is(target error) bool {
	return target == ErrExecutionRequest || target == ErrQuery
}

// WithQueryString returns err carrying query. Typed errors of this package receive the
// query if they have none; any other error is wrapped in a QueryError.
func WithQueryString(err error, query string) error {
	if err == nil {
		return nil
	}
	var (
		syn *SyntaxError
		sem *SemanticError
		qe  *QueryError
		req *ExecutionRequestError
	)
	switch {
	case errors.As(err, &syn):
		if syn.Query == "" {
			syn.Query = query
		}
		return err
	case errors.As(err, &sem):
		if sem.Query == "" {
			sem.Query = query
		}
		return err
	case errors.As(err, &qe):
		if qe.Query == "" {
			qe.Query = query
		}
		return err
	case errors.As(err, &req):
		if req.Query == "" {
			req.Query = query
		}
		return err
	}
	return &QueryError{Query: query, Message: "query translation failed", Cause: err}
}

// QueryString extracts the query carried by err, if any.
func QueryString(err error) string {
	var (
		syn *SyntaxError
		sem *SemanticError
		qe  *QueryError
		req *ExecutionRequestError
	)
	switch {
	case errors.As(err, &syn):
		return syn.Query
	case errors.As(err, &sem):
		return sem.Query
	case errors.As(err, &qe):
		return qe.Query
	case errors.As(err, &req):
		return req.Query
	}
	return ""
}

func withQuery(msg, query string) string {
	if query == "" {
		return msg
	}
	return fmt.Sprintf("%s [%s]", msg, query)
}
