package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/satishbabariya/aql-go/cli/internal/ui"
	"github.com/satishbabariya/aql-go/query/executor"
	"github.com/satishbabariya/aql-go/query/translator"
)

type compileFlags struct {
	file    string
	filters []string
	shallow bool
	role    string
}

var compileOpts compileFlags

var compileCmd = &cobra.Command{
	Use:   "compile [query]",
	Short: "Translate a query to SQL",
	Long: `Compile an AQL query against the catalog and print the SQL it translates to,
together with its parameters and the tables it touches. No database is needed.`,
	Example: `  aql compile "select p from Patient p where p.name = :name"
  aql compile -f report.aql --provider postgresql
  aql compile --role Patient.visits "where this.amount > 25"`,
	RunE: runCompile,
}

func init() {
	addCompileFlags(compileCmd, &compileOpts)
	rootCmd.AddCommand(compileCmd)
}

func addCompileFlags(cmd *cobra.Command, f *compileFlags) {
	cmd.Flags().StringVarP(&f.file, "file", "f", "", "Read the query from a file (- for stdin)")
	cmd.Flags().StringSliceVar(&f.filters, "filter", nil, "Enable a catalog filter (repeatable)")
	cmd.Flags().BoolVar(&f.shallow, "shallow", false, "Select entity identifiers instead of full entities")
	cmd.Flags().StringVar(&f.role, "role", "", "Compile a collection filter over Entity.collection")
}

func runCompile(cmd *cobra.Command, args []string) error {
	query, err := readQuery(compileOpts.file, args)
	if err != nil {
		return err
	}
	tr, err := compileOffline(query, compileOpts.filters, compileOpts.shallow, compileOpts.role)
	if err != nil {
		return err
	}

	ui.PrintHeader("aql", "Compile")
	ui.PrintSection(fmt.Sprintf("%s (%s)", tr.Statement().Kind(), provider()))
	for _, sql := range tr.SQLStrings() {
		ui.PrintCodeBlock(sql, "sql")
	}

	if headers, rows := parameterRows(tr); len(rows) > 0 {
		ui.PrintSection("Parameters")
		ui.PrintTable(headers, rows)
	}
	if !tr.IsManipulationStatement() {
		ui.PrintSection("Returns")
		ui.PrintTable([]string{"alias", "type", "columns"}, returnRows(tr))
	}
	ui.PrintInfo("query spaces: %s", strings.Join(tr.QuerySpaces(), ", "))
	return nil
}

func parameterRows(tr *translator.Translator) ([]string, [][]string) {
	pt := tr.ParameterTranslations()
	headers := []string{"parameter", "type", "sql positions"}
	var rows [][]string
	for _, name := range pt.NamedParameterNames() {
		p := pt.Named[name]
		rows = append(rows, []string{":" + name, string(p.ExpectedType), joinInts(p.SQLLocations)})
	}
	for _, p := range pt.Ordinals {
		rows = append(rows, []string{fmt.Sprintf("?%d", p.Position), string(p.ExpectedType), fmt.Sprint(p.SQLLocation)})
	}
	return headers, rows
}

func returnRows(tr *translator.Translator) [][]string {
	aliases, types, cols := tr.ReturnAliases(), tr.ReturnTypes(), tr.ColumnNames()
	rows := make([][]string, len(aliases))
	for i := range aliases {
		rows[i] = []string{aliases[i], types[i], strings.Join(cols[i], ", ")}
	}
	return rows
}

func joinInts(xs []int) string {
	sorted := append([]int(nil), xs...)
	sort.Ints(sorted)
	parts := make([]string, len(sorted))
	for i, x := range sorted {
		parts[i] = fmt.Sprint(x)
	}
	return strings.Join(parts, ", ")
}

func describeExecutor(e executor.StatementExecutor) string {
	switch e.(type) {
	case *executor.MultiTableDeleteExecutor:
		return "staged multi-table delete"
	case *executor.MultiTableUpdateExecutor:
		return "staged multi-table update"
	case *executor.BasicExecutor:
		return "single statement"
	case nil:
		return "query loader"
	default:
		return fmt.Sprintf("%T", e)
	}
}
