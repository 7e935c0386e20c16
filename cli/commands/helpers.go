package commands

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/afero"

	"github.com/satishbabariya/aql-go/catalog"
	"github.com/satishbabariya/aql-go/cli/internal/config"
	"github.com/satishbabariya/aql-go/query/loader"
	"github.com/satishbabariya/aql-go/query/parser"
	"github.com/satishbabariya/aql-go/query/sqlgen"
	"github.com/satishbabariya/aql-go/query/translator"
	"github.com/satishbabariya/aql-go/runtime/client"
	"github.com/satishbabariya/aql-go/telemetry"
)

// provider returns the configured provider, guessing from the database URL when unset.
func provider() string {
	if cfg.Provider != "" {
		return cfg.Provider
	}
	return detectProvider(cfg.DatabaseURL)
}

func detectProvider(connStr string) string {
	switch {
	case strings.HasPrefix(connStr, "postgres://"), strings.HasPrefix(connStr, "postgresql://"):
		return "postgresql"
	case strings.Contains(connStr, "@tcp("), strings.HasPrefix(connStr, "mysql://"):
		return "mysql"
	default:
		return "sqlite"
	}
}

func loadCatalog() (*catalog.Registry, error) {
	reg, err := catalog.LoadFile(config.AppFs, cfg.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	return reg, nil
}

// compileOffline compiles query without a database connection.
func compileOffline(query string, filters []string, shallow bool, role string) (*translator.Translator, error) {
	reg, err := loadCatalog()
	if err != nil {
		return nil, err
	}
	dialect, err := sqlgen.NewDialect(provider())
	if err != nil {
		return nil, err
	}
	tr := translator.New(query, filters, translator.Options{
		Catalog:   reg,
		Dialect:   dialect,
		Constants: parser.ConstantMap(cfg.Constants),
	})
	if role != "" {
		return tr, tr.CompileFilter(role, cfg.Substitutions, shallow)
	}
	return tr, tr.Compile(cfg.Substitutions, shallow)
}

func openClient(collector *telemetry.Collector) (*client.Client, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("no database configured: set database_url, AQL_DATABASE_URL or DATABASE_URL")
	}
	reg, err := loadCatalog()
	if err != nil {
		return nil, err
	}
	return client.Open(cfg.DatabaseURL, client.Options{
		Provider:        provider(),
		Catalog:         reg,
		Constants:       parser.ConstantMap(cfg.Constants),
		Substitutions:   cfg.Substitutions,
		Telemetry:       collector,
		PlanCacheSize:   cfg.PlanCacheSize,
		ResultCacheSize: cfg.QueryCacheSize,
	})
}

// readQuery takes the query from a file ("-" is stdin) or from the arguments.
func readQuery(file string, args []string) (string, error) {
	switch {
	case file == "-":
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read query: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	case file != "":
		data, err := afero.ReadFile(config.AppFs, file)
		if err != nil {
			return "", fmt.Errorf("failed to read query: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	case len(args) > 0:
		return strings.Join(args, " "), nil
	default:
		return "", fmt.Errorf("no query given: pass it as an argument or with --file")
	}
}

// parseAssignments parses name=value pairs. Values are coerced with coerce.
func parseAssignments(pairs []string) (map[string]any, error) {
	out := map[string]any{}
	for _, p := range pairs {
		name, value, ok := strings.Cut(p, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid assignment %q, want name=value", p)
		}
		out[strings.TrimPrefix(name, ":")] = coerce(value)
	}
	return out, nil
}

// parseFilterAssignments parses filter.param=value pairs.
func parseFilterAssignments(pairs []string) (map[string]map[string]any, error) {
	flat, err := parseAssignments(pairs)
	if err != nil {
		return nil, err
	}
	out := map[string]map[string]any{}
	for key, v := range flat {
		filter, param, ok := strings.Cut(key, ".")
		if !ok || filter == "" || param == "" {
			return nil, fmt.Errorf("invalid filter parameter %q, want filter.param=value", key)
		}
		if out[filter] == nil {
			out[filter] = map[string]any{}
		}
		out[filter][param] = v
	}
	return out, nil
}

// coerce reads integers, floats, booleans and null; anything else is a string, with one
// pair of surrounding quotes removed.
func coerce(s string) any {
	s = strings.TrimSpace(s)
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	switch strings.ToLower(s) {
	case "true":
		return true
	case "false":
		return false
	case "null":
		return nil
	}
	if len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}

// formatValue renders a result value for a table cell.
func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(x)
	case *loader.Entity:
		return formatEntity(x)
	case []any:
		parts := make([]string, len(x))
		for i, p := range x {
			parts[i] = formatValue(p)
		}
		return "(" + strings.Join(parts, ", ") + ")"
	default:
		return fmt.Sprint(x)
	}
}

func formatEntity(e *loader.Entity) string {
	names := make([]string, 0, len(e.Values))
	for n := range e.Values {
		names = append(names, n)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names)+len(e.Collections))
	for _, n := range names {
		parts = append(parts, n+"="+formatValue(e.Values[n]))
	}
	colls := make([]string, 0, len(e.Collections))
	for n := range e.Collections {
		colls = append(colls, n)
	}
	sort.Strings(colls)
	for _, n := range colls {
		parts = append(parts, fmt.Sprintf("%s=[%d]", n, len(e.Collections[n])))
	}
	return fmt.Sprintf("%s {%s}", e.String(), strings.Join(parts, ", "))
}

// resultTable lays results out in rows of cells, one column per return alias.
func resultTable(results []any, aliases []string) ([]string, [][]string) {
	headers := append([]string(nil), aliases...)
	if len(headers) == 0 {
		headers = []string{"result"}
	}
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		tuple, ok := r.([]any)
		if !ok || len(headers) == 1 {
			rows = append(rows, []string{formatValue(r)})
			continue
		}
		cells := make([]string, len(tuple))
		for i, v := range tuple {
			cells[i] = formatValue(v)
		}
		rows = append(rows, cells)
	}
	return headers, rows
}
