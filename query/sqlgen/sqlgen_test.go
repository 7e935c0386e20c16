package sqlgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/aql-go/catalog"
)

func TestNewDialect(t *testing.T) {
	for provider, name := range map[string]string{
		"postgres":   "postgresql",
		"postgresql": "postgresql",
		"mysql":      "mysql",
		"sqlite":     "sqlite",
		"sqlite3":    "sqlite",
	} {
		d, err := NewDialect(provider)
		require.NoError(t, err, provider)
		assert.Equal(t, name, d.Name())
	}

	_, err := NewDialect("oracle")
	assert.EqualError(t, err, "unsupported provider: oracle")
}

func TestApplyLimit(t *testing.T) {
	first, max := 5, 10

	tests := []struct {
		dialect Dialect
		first   *int
		max     *int
		sql     string
		args    []any
	}{
		{PostgresDialect{}, &first, &max, "select x limit $3 offset $4", []any{10, 5}},
		{PostgresDialect{}, nil, &max, "select x limit $3", []any{10}},
		{PostgresDialect{}, &first, nil, "select x offset $3", []any{5}},
		{MySQLDialect{}, &first, &max, "select x limit ?, ?", []any{5, 10}},
		{MySQLDialect{}, &first, nil, "select x limit ?, 18446744073709551615", []any{5}},
		{SQLiteDialect{}, &first, &max, "select x limit ? offset ?", []any{10, 5}},
		{SQLiteDialect{}, &first, nil, "select x limit -1 offset ?", []any{5}},
		{SQLiteDialect{}, nil, nil, "select x", nil},
	}
	for _, tt := range tests {
		t.Run(tt.dialect.Name(), func(t *testing.T) {
			sql, args := tt.dialect.ApplyLimit("select x", tt.first, tt.max, 3)
			assert.Equal(t, tt.sql, sql)
			assert.Equal(t, tt.args, args)
		})
	}
}

func TestStagingDDL(t *testing.T) {
	types := []string{PostgresDialect{}.ColumnType(catalog.Integer)}
	assert.Equal(t, "create temporary table HT_person (id bigint)",
		PostgresDialect{}.CreateStagingTable("HT_person", []string{"id"}, types))
	assert.Equal(t, "drop temporary table HT_person", MySQLDialect{}.DropStagingTable("HT_person"))
	assert.Equal(t, "integer", SQLiteDialect{}.ColumnType(catalog.Boolean))
	assert.Equal(t, "concat(a, b)", MySQLDialect{}.Concat("a", "b"))
	assert.Equal(t, "1", SQLiteDialect{}.BoolLiteral(true))
}
