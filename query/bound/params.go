package bound

import (
	"fmt"

	"github.com/satishbabariya/aql-go/catalog"
	"github.com/satishbabariya/aql-go/query/ast"
)

// ParameterKind classifies where a parameter value comes from at execution.
type ParameterKind int

const (
	// NamedParameter is bound by name (":name" or "?1").
	NamedParameter ParameterKind = iota
	// PositionalParameter is bound by position ("?").
	PositionalParameter
	// FilterParameter is a parameter of an enabled filter.
	FilterParameter
	// OwnerKeyParameter is the collection owner key of a filter-basis query.
	OwnerKeyParameter
)

func (k ParameterKind) String() string {
	switch k {
	case NamedParameter:
		return "named"
	case PositionalParameter:
		return "positional"
	case FilterParameter:
		return "filter"
	case OwnerKeyParameter:
		return "owner-key"
	default:
		return fmt.Sprintf("ParameterKind(%d)", int(k))
	}
}

// ParameterSpec is one parameter occurrence in a statement.
type ParameterSpec struct {
	Kind ParameterKind
	// Name is the parameter name for named and filter parameters.
	Name string
	// Filter is the filter name of a filter parameter.
	Filter string
	// Position is the zero-based index of a positional parameter.
	Position int
	// Type is the expected SQL type inferred from the parameter's context.
	Type catalog.Type
	// Location is where the parameter occurs in the query text.
	Location ast.Position
}

// String renders the parameter the way it appears in the query.
func (p *ParameterSpec) String() string {
	switch p.Kind {
	case NamedParameter:
		return ":" + p.Name
	case PositionalParameter:
		return fmt.Sprintf("?%d", p.Position)
	case FilterParameter:
		return ":" + p.Filter + "." + p.Name
	default:
		return "<owner key>"
	}
}
