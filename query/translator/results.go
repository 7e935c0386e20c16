package translator

import (
	"context"
	"strings"
	"time"

	"github.com/satishbabariya/aql-go/internal/debug"
	"github.com/satishbabariya/aql-go/query/bound"
	"github.com/satishbabariya/aql-go/query/engine"
	"github.com/satishbabariya/aql-go/query/loader"
	"github.com/satishbabariya/aql-go/query/qerrors"
)

// List executes a compiled select and returns its results.
//
// A row window is normally pushed down to the database. When the select fetches a
// collection the raw rows fan out, so the window is instead applied here to the
// identity-distinct results, as is distinct for such selects.
func (t *Translator) List(ctx context.Context, params *engine.QueryParameters, session engine.Session) ([]any, error) {
	sel, err := t.selectStatement()
	if err != nil {
		return nil, err
	}

	selection := params.Selection()
	hasLimit := selection.DefinesLimits()
	fetches := sel.ContainsCollectionFetches()
	needsDistincting := (sel.Distinct || hasLimit) && fetches

	query := params
	if hasLimit && fetches {
		debug.Warn("first/max results specified with collection fetch; applying in memory",
			"query", t.query)
		cp := *params
		cp.RowSelection = selection.WithoutLimits()
		query = &cp
	}

	start := time.Now()
	rows, err := t.loader.List(ctx, query, session)
	t.opts.Telemetry.RecordExecution(t.id, "list", len(rows), time.Since(start), err)
	if err != nil {
		return nil, err
	}

	if needsDistincting {
		max := -1
		if hasLimit {
			max = selection.Max()
		}
		return Window(rows, selection.First(), max), nil
	}
	return rows, nil
}

// Window returns the identity-distinct results of rows, skipping the first first of
// them and returning at most max (unbounded when max is negative).
func Window(rows []any, first, max int) []any {
	out := []any{}
	if max == 0 {
		return out
	}
	seen := loader.NewIdentitySet()
	included := -1
	for _, r := range rows {
		if !seen.Add(r) {
			continue
		}
		included++
		if included < first {
			continue
		}
		out = append(out, r)
		if max >= 0 && included-first >= max-1 {
			break
		}
	}
	return out
}

// Iterate executes a compiled select and returns a lazy iterator over its results.
func (t *Translator) Iterate(ctx context.Context, params *engine.QueryParameters, session engine.Session) (*loader.Iterator, error) {
	if _, err := t.selectStatement(); err != nil {
		return nil, err
	}
	start := time.Now()
	it, err := t.loader.Iterate(ctx, params, session)
	t.opts.Telemetry.RecordExecution(t.id, "iterate", 0, time.Since(start), err)
	return it, err
}

// Scroll executes a compiled select and returns a forward-only cursor. The select must
// be scroll-safe, see ValidateScrollability.
func (t *Translator) Scroll(ctx context.Context, params *engine.QueryParameters, session engine.Session) (*loader.ScrollableResults, error) {
	if err := t.ValidateScrollability(); err != nil {
		return nil, err
	}
	start := time.Now()
	sr, err := t.loader.Scroll(ctx, params, session)
	t.opts.Telemetry.RecordExecution(t.id, "scroll", 0, time.Since(start), err)
	return sr, err
}

// ValidateScrollability checks that a forward-only cursor over the select keeps the
// fan-out rows of each result contiguous. Selects without collection fetches and
// shallow selects always pass. Otherwise the select must return a single item and,
// when ordered, be ordered first by the identifier of the entity owning the fetches.
func (t *Translator) ValidateScrollability() error {
	sel, err := t.selectStatement()
	if err != nil {
		return err
	}
	if !sel.ContainsCollectionFetches() || sel.Shallow {
		return nil
	}
	if len(sel.Projection.Items) > 1 {
		return &qerrors.SemanticError{Query: t.query, Message: "cannot scroll with collection fetches and returned tuples"}
	}

	owner := fetchOwner(sel.Projection)
	if owner == nil {
		return &qerrors.SemanticError{Query: t.query, Message: "unable to locate collection fetch(es) owner for scrollability checks"}
	}

	if order := t.generated.OrderBy; order != "" {
		ids := owner.Entity.IdentifierColumns()
		qualified := make([]string, len(ids))
		for i, c := range ids {
			qualified[i] = owner.TableAlias + "." + c
		}
		if !orderedFirstBy(order, strings.Join(qualified, ", ")) {
			return &qerrors.SemanticError{
				Query:   t.query,
				Path:    owner.Path(),
				Message: "cannot scroll results with collection fetches which are not ordered primarily by the root entity's PK",
			}
		}
	}
	return nil
}

// orderedFirstBy reports whether the rendered order by list starts with the columns
// cols as whole items.
func orderedFirstBy(order, cols string) bool {
	rest, ok := strings.CutPrefix(order, cols)
	return ok && (rest == "" || rest[0] == ',' || rest[0] == ' ')
}

// fetchOwner returns the first loaded element that is not itself joined.
func fetchOwner(p *bound.Projection) *bound.FromElement {
	for _, it := range p.Items {
		if fe := it.Entity(); fe != nil && fe.Origin == nil {
			return fe
		}
	}
	for _, f := range p.Fetches {
		if f.From.Origin == nil {
			return f.From
		}
	}
	return nil
}

// ExecuteUpdate executes a compiled DML statement and returns the affected row count.
func (t *Translator) ExecuteUpdate(ctx context.Context, params *engine.QueryParameters, session engine.Session) (int, error) {
	stmt, err := t.compiled()
	if err != nil {
		return 0, err
	}
	if !stmt.NeedsExecutor() {
		return 0, &qerrors.ExecutionRequestError{Query: t.query, Message: "not supported for select queries"}
	}
	start := time.Now()
	n, err := t.executor.Execute(ctx, params, session)
	t.opts.Telemetry.RecordExecution(t.id, "update", n, time.Since(start), err)
	return n, err
}

// selectStatement returns the compiled select, failing for DML.
func (t *Translator) selectStatement() (*bound.Select, error) {
	stmt, err := t.compiled()
	if err != nil {
		return nil, err
	}
	sel, ok := stmt.(*bound.Select)
	if !ok {
		return nil, &qerrors.ExecutionRequestError{Query: t.query, Message: "not supported for DML operations"}
	}
	return sel, nil
}
