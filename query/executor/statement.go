// Package executor runs compiled DML statements.
//
// ForStatement picks the strategy for a bound statement: a BasicExecutor issuing a single
// statement for inserts and single-table updates and deletes, or a staged executor for
// updates and deletes of entities spread over several physical tables. Staged executors
// copy the identifiers of the matching rows into a temporary staging table and then
// update or delete each physical table by joining against it.
package executor

import (
	"context"
	"fmt"

	"github.com/satishbabariya/aql-go/internal/debug"
	"github.com/satishbabariya/aql-go/query/bound"
	"github.com/satishbabariya/aql-go/query/engine"
	"github.com/satishbabariya/aql-go/query/qerrors"
	"github.com/satishbabariya/aql-go/query/sqlgen"
)

// StatementExecutor executes a DML statement and returns the affected row count.
type StatementExecutor interface {
	Execute(ctx context.Context, params *engine.QueryParameters, session engine.Session) (int, error)
	// SQLStatements lists every statement an execution issues, in order.
	SQLStatements() []string
	// Parameters lists the parameter occurrences of every statement, in binding order.
	Parameters() []*bound.ParameterSpec
}

// ForStatement selects the executor for stmt.
func ForStatement(stmt bound.Statement, d sqlgen.Dialect) (StatementExecutor, error) {
	gen := sqlgen.NewGenerator(d)
	switch s := stmt.(type) {
	case *bound.Delete:
		if s.Target.Entity.IsMultiTable() {
			return NewMultiTableDeleteExecutor(s, d)
		}
		out, err := gen.Delete(s)
		if err != nil {
			return nil, err
		}
		return NewBasicExecutor(out), nil
	case *bound.Update:
		if s.Target.Entity.IsMultiTable() {
			return NewMultiTableUpdateExecutor(s, d)
		}
		out, err := gen.Update(s)
		if err != nil {
			return nil, err
		}
		return NewBasicExecutor(out), nil
	case *bound.Insert:
		out, err := gen.Insert(s)
		if err != nil {
			return nil, err
		}
		return NewBasicExecutor(out), nil
	case *bound.Select:
		return nil, qerrors.NewQueryError("unexpected statement type", s.Kind().String())
	default:
		return nil, qerrors.NewQueryError("unexpected statement type", fmt.Sprintf("%T", stmt))
	}
}

// BasicExecutor issues one statement.
type BasicExecutor struct {
	statement *sqlgen.Generated
}

// NewBasicExecutor creates an executor issuing statement.
func NewBasicExecutor(statement *sqlgen.Generated) *BasicExecutor {
	return &BasicExecutor{statement: statement}
}

// Execute implements StatementExecutor.
func (e *BasicExecutor) Execute(ctx context.Context, params *engine.QueryParameters, session engine.Session) (int, error) {
	n, err := exec(ctx, session, e.statement, params)
	return int(n), err
}

// SQLStatements implements StatementExecutor.
func (e *BasicExecutor) SQLStatements() []string {
	return []string{e.statement.SQL}
}

// Parameters implements StatementExecutor.
func (e *BasicExecutor) Parameters() []*bound.ParameterSpec {
	return e.statement.Parameters
}

func exec(ctx context.Context, session engine.Session, g *sqlgen.Generated, params *engine.QueryParameters) (int64, error) {
	args, err := params.Bind(g.Parameters)
	if err != nil {
		return 0, err
	}
	debug.Debug("executing statement", "sql", g.SQL, "args", args)
	n, err := session.Exec(ctx, g.SQL, args)
	if err != nil {
		return 0, engine.Transport(g.SQL, err)
	}
	return n, nil
}
