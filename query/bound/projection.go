package bound

import (
	"fmt"

	"github.com/satishbabariya/aql-go/catalog"
)

// Projection describes the result shape of a select: the returned items and the fetched
// joins hydrated into them. Column aliases are assigned in SQL order.
type Projection struct {
	Items   []*ProjectionItem
	Fetches []*FetchItem
}

// ProjectionItem is one returned value.
type ProjectionItem struct {
	// Alias is the select alias, or the item position for unaliased items.
	Alias string
	Expr  Expr
	// Shallow entity items return identifiers instead of entities.
	Shallow bool
	// Columns are the SQL column aliases selected for the item.
	Columns []string
	// Properties lists the properties hydrated from Columns for entity items, in order.
	Properties []*catalog.Property
}

// Entity returns the from element of an entity item, or nil for scalar items.
func (p *ProjectionItem) Entity() *FromElement {
	if ref, ok := p.Expr.(*EntityRef); ok {
		return ref.From
	}
	return nil
}

// ReturnType returns the entity name for entity items and the SQL type otherwise.
func (p *ProjectionItem) ReturnType() string {
	if fe := p.Entity(); fe != nil {
		return fe.Entity.Name
	}
	return string(p.Expr.Type())
}

// FetchItem is a fetched join whose entity is hydrated into its owner.
type FetchItem struct {
	From       *FromElement
	Columns    []string
	Properties []*catalog.Property
}

// ColumnAlias returns the SQL alias of the j-th column of the i-th selected expression.
func ColumnAlias(i, j int) string {
	return fmt.Sprintf("col_%d_%d_", i, j)
}

// ReturnTypes returns the type of every item.
func (p *Projection) ReturnTypes() []string {
	out := make([]string, len(p.Items))
	for i, it := range p.Items {
		out[i] = it.ReturnType()
	}
	return out
}

// ReturnAliases returns the alias of every item.
func (p *Projection) ReturnAliases() []string {
	out := make([]string, len(p.Items))
	for i, it := range p.Items {
		out[i] = it.Alias
	}
	return out
}

// ColumnNames returns the column aliases of every item.
func (p *Projection) ColumnNames() [][]string {
	out := make([][]string, len(p.Items))
	for i, it := range p.Items {
		out[i] = it.Columns
	}
	return out
}

// HasEntities reports whether any item or fetch hydrates an entity.
func (p *Projection) HasEntities() bool {
	if len(p.Fetches) > 0 {
		return true
	}
	for _, it := range p.Items {
		if it.Entity() != nil && !it.Shallow {
			return true
		}
	}
	return false
}
