package translator

import (
	"sort"

	"github.com/satishbabariya/aql-go/catalog"
	"github.com/satishbabariya/aql-go/query/bound"
	"github.com/satishbabariya/aql-go/query/qerrors"
)

// NamedParameter describes a named parameter of the compiled plan.
type NamedParameter struct {
	Name         string
	ExpectedType catalog.Type
	// SQLLocations are the zero-based placeholder indexes bound to the parameter.
	SQLLocations []int
}

// OrdinalParameter describes a positional parameter of the compiled plan.
type OrdinalParameter struct {
	Position     int
	ExpectedType catalog.Type
	SQLLocation  int
}

// ParameterTranslations maps the parameters of a query onto the placeholders of its
// generated SQL.
type ParameterTranslations struct {
	Named    map[string]*NamedParameter
	Ordinals []*OrdinalParameter
}

func newParameterTranslations(specs []*bound.ParameterSpec) *ParameterTranslations {
	pt := &ParameterTranslations{Named: map[string]*NamedParameter{}}
	for i, spec := range specs {
		switch spec.Kind {
		case bound.NamedParameter:
			np, ok := pt.Named[spec.Name]
			if !ok {
				np = &NamedParameter{Name: spec.Name, ExpectedType: spec.Type}
				pt.Named[spec.Name] = np
			}
			if np.ExpectedType == catalog.Unknown {
				np.ExpectedType = spec.Type
			}
			np.SQLLocations = append(np.SQLLocations, i)
		case bound.PositionalParameter:
			pt.Ordinals = append(pt.Ordinals, &OrdinalParameter{
				Position:     spec.Position,
				ExpectedType: spec.Type,
				SQLLocation:  i,
			})
		}
	}
	sort.SliceStable(pt.Ordinals, func(i, j int) bool {
		return pt.Ordinals[i].Position < pt.Ordinals[j].Position
	})
	return pt
}

// NamedParameterNames returns the sorted names of the named parameters.
func (pt *ParameterTranslations) NamedParameterNames() []string {
	names := make([]string, 0, len(pt.Named))
	for n := range pt.Named {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ParameterTranslations returns the parameter metadata, nil until compiled.
func (t *Translator) ParameterTranslations() *ParameterTranslations {
	if _, err := t.compiled(); err != nil {
		return nil
	}
	return t.params
}

// NamedParameterLocations returns the placeholder indexes bound to the named
// parameter name.
func (t *Translator) NamedParameterLocations(name string) ([]int, error) {
	if _, err := t.compiled(); err != nil {
		return nil, err
	}
	np, ok := t.params.Named[name]
	if !ok {
		return nil, &qerrors.QueryError{Query: t.query, Fragment: ":" + name, Message: "named parameter does not appear in query"}
	}
	return append([]int(nil), np.SQLLocations...), nil
}
