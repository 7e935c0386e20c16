package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/satishbabariya/aql-go/cli/internal/ui"
	"github.com/satishbabariya/aql-go/query/translator"
)

var explainOpts compileFlags

var explainCmd = &cobra.Command{
	Use:   "explain [query]",
	Short: "Describe how a query is executed",
	Long: `Compile an AQL query and describe its execution plan: the statements issued, the
strategy used for bulk updates and deletes, parameters, returned columns and whether the
results can be scrolled.`,
	RunE: runExplain,
}

func init() {
	addCompileFlags(explainCmd, &explainOpts)
	rootCmd.AddCommand(explainCmd)
}

func runExplain(cmd *cobra.Command, args []string) error {
	query, err := readQuery(explainOpts.file, args)
	if err != nil {
		return err
	}
	tr, err := compileOffline(query, explainOpts.filters, explainOpts.shallow, explainOpts.role)
	if err != nil {
		return err
	}
	return ui.PrintMarkdown(explainMarkdown(tr, provider()))
}

// explainMarkdown renders the plan of a compiled query as markdown.
func explainMarkdown(tr *translator.Translator, dialect string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", tr.Statement().Kind())
	fmt.Fprintf(&b, "```\n%s\n```\n\n", tr.QueryString())

	fmt.Fprintf(&b, "- **Dialect:** %s\n", dialect)
	fmt.Fprintf(&b, "- **Strategy:** %s\n", describeExecutor(tr.Executor()))
	fmt.Fprintf(&b, "- **Query spaces:** %s\n", strings.Join(tr.QuerySpaces(), ", "))
	if !tr.IsManipulationStatement() {
		fmt.Fprintf(&b, "- **Collection fetches:** %t\n", tr.ContainsCollectionFetches())
		fmt.Fprintf(&b, "- **Shallow:** %t\n", tr.IsShallow())
		if err := tr.ValidateScrollability(); err != nil {
			fmt.Fprintf(&b, "- **Scrollable:** no, %v\n", err)
		} else {
			b.WriteString("- **Scrollable:** yes\n")
		}
	}

	b.WriteString("\n## Statements\n\n")
	for i, sql := range tr.SQLStrings() {
		fmt.Fprintf(&b, "%d. `%s`\n", i+1, sql)
	}

	if headers, rows := parameterRows(tr); len(rows) > 0 {
		b.WriteString("\n## Parameters\n\n")
		writeMarkdownTable(&b, headers, rows)
	}
	if !tr.IsManipulationStatement() {
		b.WriteString("\n## Returns\n\n")
		writeMarkdownTable(&b, []string{"alias", "type", "columns"}, returnRows(tr))
	}
	return b.String()
}

func writeMarkdownTable(b *strings.Builder, headers []string, rows [][]string) {
	b.WriteString("| " + strings.Join(headers, " | ") + " |\n")
	b.WriteString("|" + strings.Repeat(" --- |", len(headers)) + "\n")
	for _, r := range rows {
		b.WriteString("| " + strings.Join(r, " | ") + " |\n")
	}
}
