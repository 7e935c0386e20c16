package executor

import (
	"context"

	"github.com/satishbabariya/aql-go/catalog"
	"github.com/satishbabariya/aql-go/internal/debug"
	"github.com/satishbabariya/aql-go/query/bound"
	"github.com/satishbabariya/aql-go/query/engine"
	"github.com/satishbabariya/aql-go/query/qerrors"
	"github.com/satishbabariya/aql-go/query/sqlgen"
)

// staged holds the statements shared by the multi-table strategies.
type staged struct {
	create string
	insert *sqlgen.Generated
	steps  []*sqlgen.Generated
	drop   string
}

func newStaged(target *bound.FromElement, where bound.Expr, d sqlgen.Dialect) (*staged, error) {
	e := target.Entity
	ids := e.IdentifierColumns()
	if len(e.Tables) < 2 {
		return nil, qerrors.Semanticf(e.Name, "entity is not mapped to multiple tables")
	}
	for _, t := range e.SecondaryTables() {
		if len(t.Key) != len(ids) {
			return nil, qerrors.Semanticf(e.Name, "secondary table %s key does not match the identifier", t.Name)
		}
	}

	name := sqlgen.StagingTableName(e.PrimaryTable().Name)
	types := make([]string, len(ids))
	for i := range ids {
		types[i] = d.ColumnType(e.Identifier.Type)
	}
	insert, err := sqlgen.NewGenerator(d).StagingInsert(target, where, name)
	if err != nil {
		return nil, err
	}
	return &staged{
		create: d.CreateStagingTable(name, ids, types),
		insert: insert,
		drop:   d.DropStagingTable(name),
	}, nil
}

// execute stages the matching identifiers and runs every step. The count is the number
// of staged rows. The staging table is dropped even when a step fails; the count staged
// so far is returned with the error.
func (s *staged) execute(ctx context.Context, params *engine.QueryParameters, session engine.Session) (count int, err error) {
	if _, err := session.Exec(ctx, s.create, nil); err != nil {
		return 0, engine.Transport(s.create, err)
	}
	defer func() {
		if _, dropErr := session.Exec(ctx, s.drop, nil); dropErr != nil {
			debug.Warn("failed to drop staging table", "sql", s.drop, "error", dropErr)
			if err == nil {
				err = engine.Transport(s.drop, dropErr)
			}
		}
	}()

	n, err := exec(ctx, session, s.insert, params)
	if err != nil {
		return 0, err
	}
	count = int(n)
	for _, step := range s.steps {
		if _, err := exec(ctx, session, step, params); err != nil {
			return count, err
		}
	}
	return count, nil
}

func (s *staged) statements() []string {
	out := []string{s.create, s.insert.SQL}
	for _, step := range s.steps {
		out = append(out, step.SQL)
	}
	return append(out, s.drop)
}

func (s *staged) parameters() []*bound.ParameterSpec {
	out := append([]*bound.ParameterSpec(nil), s.insert.Parameters...)
	for _, step := range s.steps {
		out = append(out, step.Parameters...)
	}
	return out
}

// MultiTableDeleteExecutor deletes the matching rows of a multi-table entity from every
// physical table, secondary tables first in reverse declaration order.
type MultiTableDeleteExecutor struct {
	*staged
}

// NewMultiTableDeleteExecutor creates the staged executor for d.
func NewMultiTableDeleteExecutor(del *bound.Delete, d sqlgen.Dialect) (*MultiTableDeleteExecutor, error) {
	s, err := newStaged(del.Target, del.Where, d)
	if err != nil {
		return nil, err
	}
	gen := sqlgen.NewGenerator(d)
	name := sqlgen.StagingTableName(del.Target.Entity.PrimaryTable().Name)
	for i := len(del.Target.Entity.Tables) - 1; i >= 0; i-- {
		s.steps = append(s.steps, gen.StagedDelete(del.Target, i, name))
	}
	return &MultiTableDeleteExecutor{staged: s}, nil
}

// Execute implements StatementExecutor.
func (e *MultiTableDeleteExecutor) Execute(ctx context.Context, params *engine.QueryParameters, session engine.Session) (int, error) {
	return e.execute(ctx, params, session)
}

// SQLStatements implements StatementExecutor.
func (e *MultiTableDeleteExecutor) SQLStatements() []string { return e.statements() }

// Parameters implements StatementExecutor.
func (e *MultiTableDeleteExecutor) Parameters() []*bound.ParameterSpec { return e.parameters() }

// MultiTableUpdateExecutor updates the matching rows of a multi-table entity on the
// physical tables owning an assigned column.
type MultiTableUpdateExecutor struct {
	*staged
	tables []*catalog.Table
}

// NewMultiTableUpdateExecutor creates the staged executor for u.
func NewMultiTableUpdateExecutor(u *bound.Update, d sqlgen.Dialect) (*MultiTableUpdateExecutor, error) {
	s, err := newStaged(u.Target, u.Where, d)
	if err != nil {
		return nil, err
	}
	gen := sqlgen.NewGenerator(d)
	name := sqlgen.StagingTableName(u.Target.Entity.PrimaryTable().Name)
	out := &MultiTableUpdateExecutor{staged: s}
	for _, i := range u.AssignedTables() {
		step, err := gen.StagedUpdate(u, i, name)
		if err != nil {
			return nil, err
		}
		s.steps = append(s.steps, step)
		out.tables = append(out.tables, u.Target.Entity.Tables[i])
	}
	return out, nil
}

// Execute implements StatementExecutor.
func (e *MultiTableUpdateExecutor) Execute(ctx context.Context, params *engine.QueryParameters, session engine.Session) (int, error) {
	return e.execute(ctx, params, session)
}

// SQLStatements implements StatementExecutor.
func (e *MultiTableUpdateExecutor) SQLStatements() []string { return e.statements() }

// Parameters implements StatementExecutor.
func (e *MultiTableUpdateExecutor) Parameters() []*bound.ParameterSpec { return e.parameters() }

// AffectedTables returns the physical tables updated, in statement order.
func (e *MultiTableUpdateExecutor) AffectedTables() []*catalog.Table { return e.tables }

var (
	_ StatementExecutor = (*BasicExecutor)(nil)
	_ StatementExecutor = (*MultiTableDeleteExecutor)(nil)
	_ StatementExecutor = (*MultiTableUpdateExecutor)(nil)
)
