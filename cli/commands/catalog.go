package commands

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/satishbabariya/aql-go/catalog"
	"github.com/satishbabariya/aql-go/cli/internal/ui"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog [catalog-path]",
	Short: "Validate and describe the entity catalog",
	Long: `Load the entity catalog, check its format version and references, and list its
entities with their tables, properties, associations and filters.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCatalog,
}

func init() {
	rootCmd.AddCommand(catalogCmd)
}

func runCatalog(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		cfg.CatalogPath = args[0]
	}

	ui.PrintHeader("aql", "Catalog")
	reg, err := loadCatalog()
	if err != nil {
		return err
	}

	absPath, _ := filepath.Abs(cfg.CatalogPath)
	ui.PrintSuccess("Catalog is valid: %s", absPath)

	entities := reg.Entities()
	rows := make([][]string, 0, len(entities))
	for _, e := range entities {
		rows = append(rows, []string{
			e.Name,
			tableNames(e),
			fmt.Sprintf("%s (%s)", e.Identifier.Name, e.Identifier.Type),
			propertyNames(e),
			associationNames(e),
			filterNames(e),
		})
	}
	ui.PrintSection(fmt.Sprintf("%d entities", len(entities)))
	ui.PrintTable([]string{"entity", "tables", "id", "properties", "associations", "filters"}, rows)
	return nil
}

func tableNames(e *catalog.Entity) string {
	names := make([]string, len(e.Tables))
	for i, t := range e.Tables {
		names[i] = t.Name
		if t.Optional {
			names[i] += "?"
		}
	}
	return strings.Join(names, ", ")
}

func propertyNames(e *catalog.Entity) string {
	names := make([]string, len(e.Properties))
	for i, p := range e.Properties {
		names[i] = p.Name
	}
	return strings.Join(names, ", ")
}

func associationNames(e *catalog.Entity) string {
	names := make([]string, len(e.Associations))
	for i, a := range e.Associations {
		names[i] = fmt.Sprintf("%s → %s (%s)", a.Name, a.Target, a.Kind)
	}
	return strings.Join(names, ", ")
}

func filterNames(e *catalog.Entity) string {
	names := make([]string, len(e.Filters))
	for i, f := range e.Filters {
		params := make([]string, 0, len(f.Parameters))
		for p := range f.Parameters {
			params = append(params, ":"+p)
		}
		sort.Strings(params)
		names[i] = f.Name
		if len(params) > 0 {
			names[i] += "(" + strings.Join(params, ", ") + ")"
		}
	}
	return strings.Join(names, ", ")
}
