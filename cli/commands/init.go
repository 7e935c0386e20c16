package commands

import (
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/satishbabariya/aql-go/cli/internal/config"
	"github.com/satishbabariya/aql-go/cli/internal/ui"
)

var initProvider string

var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Create a configuration and a starter catalog",
	Long: `Initialize a project directory with .aql.yaml, a starter catalog.yaml and an
.env.example holding the DATABASE_URL. Existing files are left untouched.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringVar(&initProvider, "with-provider", "sqlite", "Provider written to the configuration")
	rootCmd.AddCommand(initCmd)
}

const starterCatalog = `format: "1.0"
entities:
  - name: Customer
    table: customer
    id: { name: id, column: id, type: integer }
    properties:
      - { name: name, column: name, type: string }
      - { name: active, column: active, type: boolean }
    associations:
      - { name: orders, kind: one-to-many, target: Order, column: customer_id }
    filters:
      - name: activeOnly
        condition: "active = :active"
        parameters: { active: boolean }
  - name: Order
    table: orders
    id: { name: id, column: id, type: integer }
    properties:
      - { name: total, column: total, type: float }
    associations:
      - { name: customer, kind: many-to-one, target: Customer, column: customer_id }
`

const envExample = `# Database connection string
DATABASE_URL="file:aql.db"
`

func runInit(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	fs := config.AppFs
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	ui.PrintHeader("aql", "Initialize")

	cfgFile := filepath.Join(dir, config.FileName+".yaml")
	if exists, _ := afero.Exists(fs, cfgFile); exists {
		ui.PrintWarning("%s already exists, skipping", cfgFile)
	} else {
		path, err := config.Save(&config.Config{Provider: initProvider, CatalogPath: "catalog.yaml"}, dir)
		if err != nil {
			return err
		}
		ui.PrintSuccess("Created %s", path)
	}

	for name, content := range map[string]string{
		"catalog.yaml": starterCatalog,
		".env.example": envExample,
	} {
		path := filepath.Join(dir, name)
		if exists, _ := afero.Exists(fs, path); exists {
			ui.PrintWarning("%s already exists, skipping", path)
			continue
		}
		if err := afero.WriteFile(fs, path, []byte(content), 0o644); err != nil {
			return err
		}
		ui.PrintSuccess("Created %s", path)
	}

	ui.PrintSection("Next Steps")
	ui.PrintList([]string{
		"Describe your entities in catalog.yaml",
		"Set DATABASE_URL in .env",
		`Run: aql compile "select c from Customer c"`,
	})
	return nil
}
