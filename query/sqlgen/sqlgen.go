// Package sqlgen renders bound statements as SQL for different database providers.
package sqlgen

import (
	"fmt"
	"strings"

	"github.com/satishbabariya/aql-go/catalog"
)

// Dialect captures the provider-specific parts of the emitted SQL.
type Dialect interface {
	// Name returns the provider name.
	Name() string
	// Placeholder returns the bind marker of the 1-based parameter index.
	Placeholder(index int) string
	// QuoteIdentifier quotes a table or column name.
	QuoteIdentifier(name string) string
	// BoolLiteral renders a boolean constant.
	BoolLiteral(v bool) string
	// Concat renders string concatenation of two rendered operands.
	Concat(left, right string) string
	// ApplyLimit appends a row window to a select. next is the index of the next
	// placeholder; the returned arguments must be appended to the statement's arguments.
	ApplyLimit(sql string, first, max *int, next int) (string, []any)
	// ColumnType returns the column type name used for staging tables.
	ColumnType(t catalog.Type) string
	// CreateStagingTable returns the DDL creating a temporary table. It must fail when
	// the table exists, so identifiers left behind by a failed drop are never reused.
	CreateStagingTable(name string, columns, types []string) string
	// DropStagingTable returns the DDL dropping a temporary table.
	DropStagingTable(name string) string
}

// NewDialect returns the dialect of the given provider.
func NewDialect(provider string) (Dialect, error) {
	switch provider {
	case "postgresql", "postgres":
		return PostgresDialect{}, nil
	case "mysql":
		return MySQLDialect{}, nil
	case "sqlite", "sqlite3":
		return SQLiteDialect{}, nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

// StagingTableName returns the name of the id staging table of a physical table.
func StagingTableName(table string) string {
	return "HT_" + table
}

// PostgresDialect generates PostgreSQL SQL.
type PostgresDialect struct{}

func (PostgresDialect) Name() string                       { return "postgresql" }
func (PostgresDialect) Placeholder(index int) string       { return fmt.Sprintf("$%d", index) }
func (PostgresDialect) QuoteIdentifier(name string) string { return fmt.Sprintf(`"%s"`, name) }
func (PostgresDialect) Concat(left, right string) string   { return left + "||" + right }

func (PostgresDialect) BoolLiteral(v bool) string {
	if v {
		return "true"
	}
	return "false"
}

func (d PostgresDialect) ApplyLimit(sql string, first, max *int, next int) (string, []any) {
	var args []any
	if max != nil {
		sql += " limit " + d.Placeholder(next)
		args = append(args, *max)
		next++
	}
	if first != nil {
		sql += " offset " + d.Placeholder(next)
		args = append(args, *first)
	}
	return sql, args
}

func (PostgresDialect) ColumnType(t catalog.Type) string {
	switch t {
	case catalog.Integer:
		return "bigint"
	case catalog.Float:
		return "double precision"
	case catalog.Boolean:
		return "boolean"
	case catalog.Timestamp:
		return "timestamp"
	case catalog.Binary:
		return "bytea"
	default:
		return "varchar(255)"
	}
}

func (PostgresDialect) CreateStagingTable(name string, columns, types []string) string {
	return fmt.Sprintf("create temporary table %s (%s)", name, columnList(columns, types))
}

func (PostgresDialect) DropStagingTable(name string) string {
	return "drop table " + name
}

// MySQLDialect generates MySQL SQL.
type MySQLDialect struct{}

func (MySQLDialect) Name() string                       { return "mysql" }
func (MySQLDialect) Placeholder(int) string             { return "?" }
func (MySQLDialect) QuoteIdentifier(name string) string { return fmt.Sprintf("`%s`", name) }
func (MySQLDialect) Concat(left, right string) string   { return "concat(" + left + ", " + right + ")" }

func (MySQLDialect) BoolLiteral(v bool) string {
	if v {
		return "true"
	}
	return "false"
}

func (MySQLDialect) ApplyLimit(sql string, first, max *int, _ int) (string, []any) {
	switch {
	case first != nil && max != nil:
		return sql + " limit ?, ?", []any{*first, *max}
	case max != nil:
		return sql + " limit ?", []any{*max}
	case first != nil:
		// mysql has no offset without a limit
		return sql + " limit ?, 18446744073709551615", []any{*first}
	}
	return sql, nil
}

func (MySQLDialect) ColumnType(t catalog.Type) string {
	switch t {
	case catalog.Integer:
		return "bigint"
	case catalog.Float:
		return "double"
	case catalog.Boolean:
		return "bit"
	case catalog.Timestamp:
		return "datetime"
	case catalog.Binary:
		return "longblob"
	default:
		return "varchar(255)"
	}
}

func (MySQLDialect) CreateStagingTable(name string, columns, types []string) string {
	return fmt.Sprintf("create temporary table %s (%s)", name, columnList(columns, types))
}

func (MySQLDialect) DropStagingTable(name string) string {
	return "drop temporary table " + name
}

// SQLiteDialect generates SQLite SQL.
type SQLiteDialect struct{}

func (SQLiteDialect) Name() string                       { return "sqlite" }
func (SQLiteDialect) Placeholder(int) string             { return "?" }
func (SQLiteDialect) QuoteIdentifier(name string) string { return fmt.Sprintf(`"%s"`, name) }
func (SQLiteDialect) Concat(left, right string) string   { return left + "||" + right }

func (SQLiteDialect) BoolLiteral(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

func (SQLiteDialect) ApplyLimit(sql string, first, max *int, _ int) (string, []any) {
	switch {
	case first != nil && max != nil:
		return sql + " limit ? offset ?", []any{*max, *first}
	case max != nil:
		return sql + " limit ?", []any{*max}
	case first != nil:
		return sql + " limit -1 offset ?", []any{*first}
	}
	return sql, nil
}

func (SQLiteDialect) ColumnType(t catalog.Type) string {
	switch t {
	case catalog.Integer, catalog.Boolean:
		return "integer"
	case catalog.Float:
		return "real"
	case catalog.Binary:
		return "blob"
	default:
		return "text"
	}
}

func (SQLiteDialect) CreateStagingTable(name string, columns, types []string) string {
	return fmt.Sprintf("create temporary table %s (%s)", name, columnList(columns, types))
}

func (SQLiteDialect) DropStagingTable(name string) string {
	return "drop table " + name
}

func columnList(columns, types []string) string {
	parts := make([]string, len(columns))
	for i, c := range columns {
		parts[i] = c + " " + types[i]
	}
	return strings.Join(parts, ", ")
}
