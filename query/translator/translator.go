// Package translator compiles an AQL query string into an executable plan.
//
// A Translator is one compilation unit. It compiles at most once: the query is parsed
// and constant-folded, bound against the catalog, and then either rendered to SQL with a
// loader (select) or handed to a DML executor. Once compiled a Translator is read-only
// and may be executed concurrently.
package translator

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/satishbabariya/aql-go/catalog"
	"github.com/satishbabariya/aql-go/internal/debug"
	"github.com/satishbabariya/aql-go/query/ast"
	"github.com/satishbabariya/aql-go/query/binder"
	"github.com/satishbabariya/aql-go/query/bound"
	"github.com/satishbabariya/aql-go/query/executor"
	"github.com/satishbabariya/aql-go/query/loader"
	"github.com/satishbabariya/aql-go/query/parser"
	"github.com/satishbabariya/aql-go/query/qerrors"
	"github.com/satishbabariya/aql-go/query/sqlgen"
	"github.com/satishbabariya/aql-go/telemetry"
)

// State is the compilation state of a Translator.
type State int

const (
	// Uncompiled is the state of a new Translator.
	Uncompiled State = iota
	// Compiling is held while the single compilation runs.
	Compiling
	// Compiled translators are read-only and executable.
	Compiled
	// Failed translators keep returning their compilation error.
	Failed
)

func (s State) String() string {
	switch s {
	case Uncompiled:
		return "uncompiled"
	case Compiling:
		return "compiling"
	case Compiled:
		return "compiled"
	default:
		return "failed"
	}
}

// Options holds the collaborators of a Translator.
type Options struct {
	Catalog catalog.Catalog
	Dialect sqlgen.Dialect
	// Constants resolves dotted paths folded into literals before binding.
	Constants parser.Constants
	// Materializer converts select rows; nil selects loader.EntityMaterializer.
	Materializer loader.Materializer
	Telemetry    *telemetry.Collector
}

// Translator is the compilation unit of one query string.
type Translator struct {
	id    string
	query string
	opts  Options

	mu      sync.Mutex
	state   State
	err     error
	filters map[string]struct{}
	shallow bool
	role    string

	stmt      bound.Statement
	generated *sqlgen.Generated
	loader    *loader.QueryLoader
	executor  executor.StatementExecutor
	params    *ParameterTranslations
}

// New creates a Translator for query with the given filters enabled.
func New(query string, enabledFilters []string, opts Options) *Translator {
	filters := make(map[string]struct{}, len(enabledFilters))
	for _, f := range enabledFilters {
		filters[f] = struct{}{}
	}
	return &Translator{
		id:      uuid.NewString(),
		query:   query,
		opts:    opts,
		filters: filters,
	}
}

// Compile compiles the query. substitutions replace identifier tokens before parsing;
// shallow binds entity projections to their identifiers. Only the first call does any
// work; later calls return its result.
func (t *Translator) Compile(substitutions map[string]string, shallow bool) error {
	return t.compile(substitutions, shallow, "")
}

// CompileFilter compiles the query as a filter over the collection role
// ("Entity.collection"). The query is bound against the collection elements, aliased
// "this", restricted to the owner key supplied at execution.
func (t *Translator) CompileFilter(role string, substitutions map[string]string, shallow bool) error {
	return t.compile(substitutions, shallow, role)
}

func (t *Translator) compile(substitutions map[string]string, shallow bool, role string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch t.state {
	case Compiled:
		debug.Debug("compile skipped, already compiled", "query", t.query)
		return nil
	case Failed:
		return t.err
	}

	t.state = Compiling
	t.shallow = shallow
	t.role = role
	err := t.doCompile(substitutions)
	// enabled filters only matter while binding
	t.filters = nil

	t.opts.Telemetry.RecordCompile(t.id, err)
	if err != nil {
		t.err = qerrors.WithQueryString(err, t.query)
		t.state = Failed
		t.stmt, t.loader, t.executor, t.generated = nil, nil, nil, nil
		t.params = nil
		debug.Debug("compilation failed", "query", t.query, "error", t.err)
		return t.err
	}
	t.params = newParameterTranslations(t.specs())
	t.state = Compiled
	return nil
}

func (t *Translator) doCompile(substitutions map[string]string) error {
	if t.opts.Catalog == nil || t.opts.Dialect == nil {
		return errors.New("translator requires a catalog and a dialect")
	}

	start := time.Now()
	raw, err := parser.Parse(t.query, substitutions)
	if err != nil {
		return err
	}
	raw = parser.Fold(raw, t.opts.Constants)
	t.opts.Telemetry.RecordPhase(t.id, telemetry.PhaseParse, time.Since(start))
	debug.Debug("parsed query", "id", t.id, "aql", t.query, "statement", statementName(raw))

	start = time.Now()
	b := binder.New(t.opts.Catalog, binder.Options{
		Filters:        t.filterNames(),
		Shallow:        t.shallow,
		Constants:      t.opts.Constants,
		CollectionRole: t.role,
	})
	stmt, err := b.Bind(raw)
	if err != nil {
		return err
	}
	t.opts.Telemetry.RecordPhase(t.id, telemetry.PhaseBind, time.Since(start))
	t.stmt = stmt

	if stmt.NeedsExecutor() {
		start = time.Now()
		exec, err := executor.ForStatement(stmt, t.opts.Dialect)
		if err != nil {
			return err
		}
		t.executor = exec
		t.opts.Telemetry.RecordPhase(t.id, telemetry.PhasePlan, time.Since(start))
		debug.Debug("planned statement", "id", t.id, "sql", strings.Join(exec.SQLStatements(), "; "))
		return nil
	}

	sel := stmt.(*bound.Select)
	generated, err := t.generate(sel)
	if err != nil {
		return err
	}
	t.loader = loader.New(sel, generated, t.opts.Dialect, t.opts.Materializer)
	return nil
}

// generate renders sel once; later calls return the memoized statement.
func (t *Translator) generate(sel *bound.Select) (*sqlgen.Generated, error) {
	if t.generated != nil {
		return t.generated, nil
	}
	start := time.Now()
	out, err := sqlgen.NewGenerator(t.opts.Dialect).Select(sel)
	if err != nil {
		return nil, err
	}
	t.opts.Telemetry.RecordPhase(t.id, telemetry.PhaseGenerate, time.Since(start))
	debug.Debug("generated sql", "id", t.id, "sql", out.SQL)
	t.generated = out
	return out, nil
}

func (t *Translator) filterNames() []string {
	names := make([]string, 0, len(t.filters))
	for f := range t.filters {
		names = append(names, f)
	}
	sort.Strings(names)
	return names
}

func statementName(s ast.Statement) string {
	switch s.(type) {
	case *ast.Select:
		return "select"
	case *ast.Update:
		return "update"
	case *ast.Delete:
		return "delete"
	case *ast.Insert:
		return "insert"
	}
	return "unknown"
}

// compiled returns the compiled statement or the error explaining why there is none.
func (t *Translator) compiled() (bound.Statement, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch t.state {
	case Compiled:
		return t.stmt, nil
	case Failed:
		return nil, t.err
	default:
		return nil, &qerrors.QueryError{Query: t.query, Message: "query has not been compiled"}
	}
}

// State returns the compilation state.
func (t *Translator) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// QueryIdentifier returns the unique identifier of this unit.
func (t *Translator) QueryIdentifier() string { return t.id }

// QueryString returns the query text.
func (t *Translator) QueryString() string { return t.query }

// EnabledFilters returns the filters enabled for compilation. The set is discarded
// once compilation ends.
func (t *Translator) EnabledFilters() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.filterNames()
}

// Statement returns the bound statement, nil until compiled.
func (t *Translator) Statement() bound.Statement {
	stmt, _ := t.compiled()
	return stmt
}

// IsManipulationStatement reports whether the query is DML.
func (t *Translator) IsManipulationStatement() bool {
	stmt, err := t.compiled()
	return err == nil && stmt.NeedsExecutor()
}

// IsShallow reports whether the query was compiled shallow.
func (t *Translator) IsShallow() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.shallow
}

// ContainsCollectionFetches reports whether a fetched collection fans out the rows.
func (t *Translator) ContainsCollectionFetches() bool {
	sel, ok := t.Statement().(*bound.Select)
	return ok && sel.ContainsCollectionFetches()
}

// SQLString returns the generated select, or the first statement of a DML plan.
func (t *Translator) SQLString() string {
	all := t.SQLStrings()
	if len(all) == 0 {
		return ""
	}
	return all[0]
}

// SQLStrings returns every statement the plan issues.
func (t *Translator) SQLStrings() []string {
	if _, err := t.compiled(); err != nil {
		return nil
	}
	if t.executor != nil {
		return t.executor.SQLStatements()
	}
	return []string{t.generated.SQL}
}

// Executor returns the DML execution strategy, nil for selects and uncompiled units.
func (t *Translator) Executor() executor.StatementExecutor {
	if _, err := t.compiled(); err != nil {
		return nil
	}
	return t.executor
}

// ReturnTypes returns the type names of the select items.
func (t *Translator) ReturnTypes() []string {
	if sel, ok := t.Statement().(*bound.Select); ok {
		return sel.Projection.ReturnTypes()
	}
	return nil
}

// ReturnAliases returns the aliases of the select items.
func (t *Translator) ReturnAliases() []string {
	if sel, ok := t.Statement().(*bound.Select); ok {
		return sel.Projection.ReturnAliases()
	}
	return nil
}

// ColumnNames returns the SQL column aliases of every select item.
func (t *Translator) ColumnNames() [][]string {
	if sel, ok := t.Statement().(*bound.Select); ok {
		return sel.Projection.ColumnNames()
	}
	return nil
}

// QuerySpaces returns the physical tables the query touches.
func (t *Translator) QuerySpaces() []string {
	if stmt := t.Statement(); stmt != nil {
		return stmt.QuerySpaces()
	}
	return nil
}

// specs returns the parameter occurrences of the compiled plan in binding order.
func (t *Translator) specs() []*bound.ParameterSpec {
	if t.executor != nil {
		return t.executor.Parameters()
	}
	return t.generated.Parameters
}
