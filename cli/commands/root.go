// Package commands implements the aql command line.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/satishbabariya/aql-go/cli/internal/config"
	"github.com/satishbabariya/aql-go/cli/internal/ui"
	"github.com/satishbabariya/aql-go/cli/internal/version"
	"github.com/satishbabariya/aql-go/internal/debug"
)

var (
	configPath   string
	flagCatalog  string
	flagProvider string
	flagDatabase string
	flagDebug    bool
	flagQuiet    bool

	// cfg is loaded before every command runs.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "aql",
	Short: "Compile and run AQL queries",
	Long: `aql compiles queries written in the AQL object query language against an entity
catalog, shows the SQL they translate to and runs them against a database.

Configuration is read from .aql.yaml (working directory, $HOME or $HOME/.config/aql),
AQL_* environment variables and .env files. Flags override configuration.`,
	Version:       version.Get().String(),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if flagCatalog != "" {
			loaded.CatalogPath = flagCatalog
		}
		if flagProvider != "" {
			loaded.Provider = flagProvider
		}
		if flagDatabase != "" {
			loaded.DatabaseURL = flagDatabase
		}
		if flagDebug {
			loaded.Debug = true
		}
		cfg = loaded
		ui.Quiet = flagQuiet
		debug.Configure(debug.Options{Verbose: cfg.Debug, Format: debug.Format(cfg.LogFormat)})
		debug.Debug("configuration loaded", "file", cfg.File, "provider", cfg.Provider, "catalog", cfg.CatalogPath)
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Path to the configuration file")
	pf.StringVarP(&flagCatalog, "catalog", "c", "", "Path to the entity catalog")
	pf.StringVarP(&flagProvider, "provider", "p", "", "Database provider: postgresql, mysql or sqlite")
	pf.StringVar(&flagDatabase, "database-url", "", "Database connection string")
	pf.BoolVar(&flagDebug, "debug", false, "Log compilation and execution details")
	pf.BoolVarP(&flagQuiet, "quiet", "q", false, "Print results only")
}

// Execute is the main entry point for the CLI
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		ui.PrintError("%v", err)
	}
	return err
}
