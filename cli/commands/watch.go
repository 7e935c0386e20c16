package commands

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/satishbabariya/aql-go/cli/internal/ui"
	"github.com/satishbabariya/aql-go/cli/internal/watch"
)

var watchOpts compileFlags

var watchCmd = &cobra.Command{
	Use:   "watch -f <query-file>",
	Short: "Recompile a query file whenever it changes",
	Long: `Watch a query file and recompile it on every save, printing the changes to the
generated SQL or the compilation error.`,
	RunE: runWatch,
}

func init() {
	addCompileFlags(watchCmd, &watchOpts)
	_ = watchCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if watchOpts.file == "-" {
		return fmt.Errorf("watch needs a query file, not stdin")
	}
	if _, err := os.Stat(watchOpts.file); err != nil {
		return fmt.Errorf("query file not found: %s", watchOpts.file)
	}

	ui.PrintHeader("aql", "Watch Mode")
	ui.PrintInfo("watching %s (Ctrl+C to stop)", watchOpts.file)

	w, err := watch.New(watchOpts.file, watch.DefaultDebounce)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var previous string
	err = w.Run(ctx, func() error {
		query, err := readQuery(watchOpts.file, nil)
		if err != nil {
			return err
		}
		tr, err := compileOffline(query, watchOpts.filters, watchOpts.shallow, watchOpts.role)
		if err != nil {
			ui.PrintError("%v", err)
			return nil
		}
		current := strings.Join(tr.SQLStrings(), "\n")
		switch {
		case current == previous:
			ui.ColorPrint(ui.Printers["info"], "unchanged\n")
		case previous == "":
			ui.PrintCodeBlock(current, "sql")
		default:
			ui.PrintDiff(previous, current)
		}
		if current != previous {
			ui.PrintSuccess("compiled %s", tr.Statement().Kind())
		}
		previous = current
		return nil
	})
	fmt.Println()
	ui.PrintInfo("stopped watching %s", watchOpts.file)
	return err
}
