// Package ui renders the terminal output of the aql command.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"github.com/pterm/pterm"
)

var (
	// Out receives results and progress, ErrOut receives errors.
	Out    io.Writer = os.Stdout
	ErrOut io.Writer = os.Stderr

	// Quiet suppresses headers, sections and steps, leaving results and errors.
	Quiet bool
)

var (
	accent = lipgloss.Color("#00D9FF")
	muted  = lipgloss.Color("#6C757D")

	titleStyle = lipgloss.NewStyle().Foreground(accent).Bold(true).MarginBottom(1)
	mutedStyle = lipgloss.NewStyle().Foreground(muted)

	removedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4444"))
	addedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF88"))
)

type status struct {
	symbol string
	style  lipgloss.Style
}

var statuses = map[string]status{
	"success": {"✓", lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF88")).Bold(true)},
	"error":   {"✗", lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4444")).Bold(true)},
	"warning": {"⚠", lipgloss.NewStyle().Foreground(lipgloss.Color("#FFB800")).Bold(true)},
	"info":    {"ℹ", lipgloss.NewStyle().Foreground(accent)},
}

func width() int {
	if w := pterm.GetTerminalWidth(); w > 0 {
		return w
	}
	return 80
}

func printStatus(w io.Writer, kind, format string, args []any) {
	st := statuses[kind]
	fmt.Fprintln(w, st.style.Render(st.symbol+" "+fmt.Sprintf(format, args...)))
}

func PrintSuccess(format string, args ...any) { printStatus(Out, "success", format, args) }

func PrintWarning(format string, args ...any) { printStatus(Out, "warning", format, args) }

func PrintInfo(format string, args ...any) { printStatus(Out, "info", format, args) }

// PrintError writes to ErrOut, also in quiet mode.
func PrintError(format string, args ...any) { printStatus(ErrOut, "error", format, args) }

// PrintHeader prints a boxed title.
func PrintHeader(title, subtitle string) {
	if Quiet {
		return
	}
	box := lipgloss.NewStyle().
		Width(width()).
		Align(lipgloss.Center).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(accent).
		Padding(0, 2)
	fmt.Fprintln(Out, box.Render(lipgloss.JoinVertical(lipgloss.Center, titleStyle.Render(title), mutedStyle.Render(subtitle))))
}

// PrintSection prints an underlined section title.
func PrintSection(title string) {
	if Quiet {
		return
	}
	fmt.Fprintln(Out, lipgloss.NewStyle().
		Width(width()).
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(muted).
		Render(title))
}

// PrintStep prints "[step/total] message".
func PrintStep(step, total int, message string) {
	if Quiet {
		return
	}
	fmt.Fprintf(Out, "%s %s\n", mutedStyle.Render(fmt.Sprintf("[%d/%d]", step, total)), message)
}

// PrintTable prints rows under a header row.
func PrintTable(headers []string, rows [][]string) {
	data := append(pterm.TableData{headers}, rows...)
	s, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		PrintError("%v", err)
		return
	}
	fmt.Fprintln(Out, s)
}

func PrintList(items []string) {
	for _, item := range items {
		fmt.Fprintf(Out, "  • %s\n", item)
	}
}

// PrintMarkdown renders markdown for the terminal.
func PrintMarkdown(content string) error {
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(width()))
	if err != nil {
		return err
	}
	out, err := r.Render(content)
	if err != nil {
		return err
	}
	_, err = io.WriteString(Out, out)
	return err
}

// PrintSpinner starts a spinner, or returns nil in quiet mode or when it cannot start.
func PrintSpinner(message string) *pterm.SpinnerPrinter {
	if Quiet {
		return nil
	}
	sp, err := pterm.DefaultSpinner.WithText(message).Start()
	if err != nil {
		return nil
	}
	return sp
}

// StopSpinner stops s; a nil spinner is ignored.
func StopSpinner(s *pterm.SpinnerPrinter) {
	if s != nil {
		_ = s.Stop()
	}
}

// PrintCodeBlock prints SQL or AQL text in a bordered block labelled with language.
func PrintCodeBlock(code, language string) {
	if language != "" && !Quiet {
		fmt.Fprintln(Out, mutedStyle.Render(" "+language+" "))
	}
	fmt.Fprintln(Out, lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(muted).
		Padding(0, 1).
		Width(width()).
		Render(code))
}

// PrintDiff prints the line diff turning old into new.
func PrintDiff(old, new string) {
	for _, l := range DiffLines(strings.Split(old, "\n"), strings.Split(new, "\n")) {
		switch l.Op {
		case '-':
			fmt.Fprintln(Out, removedStyle.Render("- "+l.Text))
		case '+':
			fmt.Fprintln(Out, addedStyle.Render("+ "+l.Text))
		default:
			fmt.Fprintln(Out, "  "+l.Text)
		}
	}
}

// DiffLine is one line of a diff; Op is ' ', '-' or '+'.
type DiffLine struct {
	Op   byte
	Text string
}

// DiffLines computes a minimal line diff from the longest common subsequence of a
// and b. Removals are listed before the additions replacing them.
func DiffLines(a, b []string) []DiffLine {
	// lcs[i][j] is the LCS length of a[i:] and b[j:].
	lcs := make([][]int, len(a)+1)
	for i := range lcs {
		lcs[i] = make([]int, len(b)+1)
	}
	for i := len(a) - 1; i >= 0; i-- {
		for j := len(b) - 1; j >= 0; j-- {
			if a[i] == b[j] {
				lcs[i][j] = lcs[i+1][j+1] + 1
			} else {
				lcs[i][j] = max(lcs[i+1][j], lcs[i][j+1])
			}
		}
	}

	out := make([]DiffLine, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			out = append(out, DiffLine{' ', a[i]})
			i++
			j++
		case lcs[i+1][j] >= lcs[i][j+1]:
			out = append(out, DiffLine{'-', a[i]})
			i++
		default:
			out = append(out, DiffLine{'+', b[j]})
			j++
		}
	}
	for ; i < len(a); i++ {
		out = append(out, DiffLine{'-', a[i]})
	}
	for ; j < len(b); j++ {
		out = append(out, DiffLine{'+', b[j]})
	}
	return out
}

// ColorPrint writes plain colored text to Out.
func ColorPrint(c *color.Color, format string, args ...any) {
	_, _ = c.Fprintf(Out, format, args...)
}

// Printers are the fatih/color printers for plain status output.
var Printers = map[string]*color.Color{
	"success": color.New(color.FgGreen, color.Bold),
	"error":   color.New(color.FgRed, color.Bold),
	"warning": color.New(color.FgYellow, color.Bold),
	"info":    color.New(color.FgCyan),
}
