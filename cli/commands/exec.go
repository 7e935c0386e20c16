package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/satishbabariya/aql-go/cli/internal/config"
	"github.com/satishbabariya/aql-go/cli/internal/ui"
	"github.com/satishbabariya/aql-go/runtime/client"
	"github.com/satishbabariya/aql-go/telemetry"
)

var execOpts struct {
	compileFlags
	params       []string
	args         []string
	filterParams []string
	owner        string
	first        int
	max          int
	interactive  bool
	yes          bool
	stats        bool
	events       string
}

var execCmd = &cobra.Command{
	Use:   "exec [query]",
	Short: "Run a query against the database",
	Long: `Run an AQL query. Selects print their results as a table; inserts, updates and
deletes print the number of affected rows after confirmation.`,
	Example: `  aql exec "select p.name from Patient p where p.gender = :g" --param g=F
  aql exec "delete from Person p where p.salary > ?1" --arg 50 --yes
  aql exec --filter byGender --filter-param byGender.gender=M "select p from Patient p"
  aql exec --role Patient.visits --owner 1 "where this.amount > 25"`,
	RunE: runExec,
}

func init() {
	f := execCmd.Flags()
	addCompileFlags(execCmd, &execOpts.compileFlags)
	f.StringArrayVar(&execOpts.params, "param", nil, "Bind a named parameter, name=value (repeatable)")
	f.StringArrayVar(&execOpts.args, "arg", nil, "Bind the next positional parameter (repeatable)")
	f.StringArrayVar(&execOpts.filterParams, "filter-param", nil, "Set a filter parameter, filter.param=value (repeatable)")
	f.StringVar(&execOpts.owner, "owner", "", "Owner identifier of a collection filter")
	f.IntVar(&execOpts.first, "first", -1, "Skip this many results")
	f.IntVar(&execOpts.max, "max", -1, "Return at most this many results")
	f.BoolVarP(&execOpts.interactive, "interactive", "i", false, "Prompt for unbound named parameters")
	f.BoolVarP(&execOpts.yes, "yes", "y", false, "Run updates and deletes without confirmation")
	f.BoolVar(&execOpts.stats, "stats", false, "Print compilation and execution statistics")
	f.StringVar(&execOpts.events, "events", "", "Append telemetry events as JSON lines to a file")
	rootCmd.AddCommand(execCmd)
}

func runExec(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	query, err := readQuery(execOpts.file, args)
	if err != nil {
		return err
	}
	named, err := parseAssignments(execOpts.params)
	if err != nil {
		return err
	}
	filterValues, err := parseFilterAssignments(execOpts.filterParams)
	if err != nil {
		return err
	}
	if execOpts.role != "" && execOpts.owner == "" {
		return fmt.Errorf("--role needs --owner")
	}

	collector, closeEvents, err := newCollector()
	if err != nil {
		return err
	}
	defer closeEvents()

	ui.PrintHeader("aql", "Execute")
	ui.PrintStep(1, 3, "connecting")
	c, err := openClient(collector)
	if err != nil {
		return err
	}
	defer c.Close(context.Background())
	if err := c.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	return c.Do(ctx, func(s *client.Session) error {
		s.SetDefaults(cfg.FetchSize, cfg.TimeoutSeconds)
		enableFilters(s, execOpts.filters, filterValues)

		var q *client.Query
		if execOpts.role != "" {
			q = s.Filter(execOpts.role, coerce(execOpts.owner), query)
		} else {
			q = s.Query(query)
		}
		q.SetShallow(execOpts.shallow)

		ui.PrintStep(2, 3, "compiling")
		tr, err := q.Translator()
		if err != nil {
			return err
		}
		for _, name := range tr.ParameterTranslations().NamedParameterNames() {
			if _, ok := named[name]; ok {
				continue
			}
			if !execOpts.interactive {
				return fmt.Errorf("parameter :%s is not bound, use --param %s=value or --interactive", name, name)
			}
			v, err := promptParameter(name, string(tr.ParameterTranslations().Named[name].ExpectedType))
			if err != nil {
				return err
			}
			named[name] = v
		}
		for name, v := range named {
			q.SetParameter(name, v)
		}
		positional := make([]any, len(execOpts.args))
		for i, a := range execOpts.args {
			positional[i] = coerce(a)
		}
		q.SetParameters(positional...)
		if execOpts.first >= 0 {
			q.SetFirstResult(execOpts.first)
		}
		if execOpts.max >= 0 {
			q.SetMaxResults(execOpts.max)
		}

		ui.PrintStep(3, 3, "executing")
		if tr.IsManipulationStatement() {
			return execUpdate(ctx, q, tr.SQLStrings())
		}
		return execSelect(ctx, q, tr.ReturnAliases())
	})
}

func execSelect(ctx context.Context, q *client.Query, aliases []string) error {
	spinner := ui.PrintSpinner("running query...")
	results, err := q.List(ctx)
	ui.StopSpinner(spinner)
	if err != nil {
		return err
	}
	headers, rows := resultTable(results, aliases)
	if len(rows) > 0 {
		ui.PrintTable(headers, rows)
	}
	ui.PrintSuccess("%d result(s)", len(results))
	return nil
}

func execUpdate(ctx context.Context, q *client.Query, statements []string) error {
	if !execOpts.yes {
		ui.PrintSection("Statements")
		ui.PrintList(statements)
		confirmed := false
		prompt := &survey.Confirm{Message: "Run this statement against the database?", Default: false}
		if err := survey.AskOne(prompt, &confirmed); err != nil {
			return err
		}
		if !confirmed {
			ui.PrintWarning("aborted")
			return nil
		}
	}
	n, err := q.ExecuteUpdate(ctx)
	if err != nil {
		return err
	}
	ui.ColorPrint(ui.Printers["success"], "%d row(s) affected\n", n)
	return nil
}

func promptParameter(name, typ string) (any, error) {
	var answer string
	prompt := &survey.Input{Message: fmt.Sprintf(":%s (%s)", name, typ)}
	if err := survey.AskOne(prompt, &answer, survey.WithValidator(survey.Required)); err != nil {
		return nil, err
	}
	return coerce(answer), nil
}

// enableFilters enables the named filters and every filter given a parameter value.
func enableFilters(s *client.Session, names []string, values map[string]map[string]any) {
	for _, name := range names {
		s.EnableFilter(name)
	}
	for name, params := range values {
		fp := s.EnableFilter(name)
		for param, v := range params {
			fp.Set(param, v)
		}
	}
}

// newCollector returns the telemetry collector requested by --stats and --events, and a
// cleanup that prints the statistics and closes the event file.
func newCollector() (*telemetry.Collector, func(), error) {
	if !execOpts.stats && execOpts.events == "" {
		return nil, func() {}, nil
	}
	var opts telemetry.Options
	var file interface{ Close() error }
	if execOpts.events != "" {
		f, err := config.AppFs.OpenFile(execOpts.events, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open event file: %w", err)
		}
		opts.Sink = telemetry.NewJSONSink(f)
		file = f
	}
	collector := telemetry.New(opts)
	return collector, func() {
		// The client flushes and stops the collector on Close.
		if execOpts.stats {
			printStats(collector.Snapshot())
		}
		if file != nil {
			_ = file.Close()
		}
	}, nil
}

func printStats(s telemetry.Stats) {
	ui.PrintSection("Statistics")
	ui.PrintTable([]string{"metric", "value"}, [][]string{
		{"compilations", fmt.Sprint(s.Compilations)},
		{"compile failures", fmt.Sprint(s.CompileFailures)},
		{"compile time", s.CompileTime.String()},
		{"executions", fmt.Sprint(s.Executions)},
		{"execution failures", fmt.Sprint(s.ExecutionFailures)},
		{"execution time", s.ExecutionTime.String()},
		{"rows returned", fmt.Sprint(s.RowsReturned)},
		{"rows affected", fmt.Sprint(s.RowsAffected)},
		{"cache hits", fmt.Sprint(s.CacheHits)},
		{"cache misses", fmt.Sprint(s.CacheMisses)},
	})
}
