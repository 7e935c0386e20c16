package commands

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/aql-go/cli/internal/config"
	"github.com/satishbabariya/aql-go/internal/testutil"
	"github.com/satishbabariya/aql-go/query/loader"
)

func withCatalog(t *testing.T, provider string) {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "catalog.yaml", []byte(testutil.CatalogYAML), 0o644))
	prevFs, prevCfg := config.AppFs, cfg
	config.AppFs = fs
	cfg = &config.Config{CatalogPath: "catalog.yaml", Provider: provider}
	t.Cleanup(func() { config.AppFs, cfg = prevFs, prevCfg })
}

func TestCoerce(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"42", int64(42)},
		{"-3", int64(-3)},
		{"2.5", 2.5},
		{"true", true},
		{"FALSE", false},
		{"null", nil},
		{"lisi", "lisi"},
		{"'42'", "42"},
		{`"a b"`, "a b"},
		{" F ", "F"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, coerce(tt.in))
		})
	}
}

func TestParseAssignments(t *testing.T) {
	got, err := parseAssignments([]string{"name=lisi", ":age=30", "note=a=b"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "lisi", "age": int64(30), "note": "a=b"}, got)

	_, err = parseAssignments([]string{"novalue"})
	assert.Error(t, err)
	_, err = parseAssignments([]string{"=x"})
	assert.Error(t, err)
}

func TestParseFilterAssignments(t *testing.T) {
	got, err := parseFilterAssignments([]string{"byGender.gender=F", "byAge.min=18", "byAge.max=65"})
	require.NoError(t, err)
	assert.Equal(t, map[string]map[string]any{
		"byGender": {"gender": "F"},
		"byAge":    {"min": int64(18), "max": int64(65)},
	}, got)

	_, err = parseFilterAssignments([]string{"gender=F"})
	assert.Error(t, err)
}

func TestDetectProvider(t *testing.T) {
	assert.Equal(t, "postgresql", detectProvider("postgres://u:p@localhost/db"))
	assert.Equal(t, "mysql", detectProvider("u:p@tcp(localhost:3306)/db"))
	assert.Equal(t, "sqlite", detectProvider("file:aql.db"))
	assert.Equal(t, "sqlite", detectProvider(""))
}

func TestResultTable(t *testing.T) {
	patient := &loader.Entity{
		Name:        "Patient",
		ID:          int64(1),
		Values:      map[string]any{"name": "zhangsan", "gender": []byte("M")},
		Collections: map[string][]*loader.Entity{"visits": {{}, {}}},
	}

	headers, rows := resultTable([]any{patient}, []string{"0"})
	assert.Equal(t, []string{"0"}, headers)
	assert.Equal(t, [][]string{{"Patient#1 {gender=M, name=zhangsan, visits=[2]}"}}, rows)

	headers, rows = resultTable([]any{[]any{"lisi", nil}, []any{"wangwu", 2.5}}, []string{"name", "amount"})
	assert.Equal(t, []string{"name", "amount"}, headers)
	assert.Equal(t, [][]string{{"lisi", "NULL"}, {"wangwu", "2.5"}}, rows)
}

func TestReadQuery(t *testing.T) {
	withCatalog(t, "sqlite")
	require.NoError(t, afero.WriteFile(config.AppFs, "q.aql", []byte("select p from Patient p\n"), 0o644))

	q, err := readQuery("q.aql", nil)
	require.NoError(t, err)
	assert.Equal(t, "select p from Patient p", q)

	q, err = readQuery("", []string{"select", "p", "from", "Patient", "p"})
	require.NoError(t, err)
	assert.Equal(t, "select p from Patient p", q)

	_, err = readQuery("", nil)
	assert.Error(t, err)
}

func TestCompileOffline(t *testing.T) {
	withCatalog(t, "postgresql")

	tr, err := compileOffline("select p.name from Patient p where p.gender = :g", nil, false, "")
	require.NoError(t, err)
	assert.Contains(t, tr.SQLString(), "$1")

	headers, rows := parameterRows(tr)
	assert.Equal(t, []string{"parameter", "type", "sql positions"}, headers)
	assert.Equal(t, [][]string{{":g", "string", "0"}}, rows)

	_, err = compileOffline("select p.nope from Patient p", nil, false, "")
	assert.Error(t, err)
}

func TestExplainMarkdown(t *testing.T) {
	withCatalog(t, "sqlite")

	tr, err := compileOffline("delete from Person p where p.salary > 50", nil, false, "")
	require.NoError(t, err)
	md := explainMarkdown(tr, "sqlite")
	assert.Contains(t, md, "# delete")
	assert.Contains(t, md, "**Strategy:** staged multi-table delete")
	assert.Contains(t, md, "**Query spaces:** employee, person")
	assert.NotContains(t, md, "## Returns")

	tr, err = compileOffline("select p from Patient p left join fetch p.visits v order by v.amount", nil, false, "")
	require.NoError(t, err)
	md = explainMarkdown(tr, "sqlite")
	assert.Contains(t, md, "# select")
	assert.Contains(t, md, "**Strategy:** query loader")
	assert.Contains(t, md, "**Collection fetches:** true")
	assert.Contains(t, md, "**Scrollable:** no")
	assert.Contains(t, md, "## Returns")
}

func TestRootRegistersCommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"compile", "explain", "exec", "watch", "catalog", "init", "version"} {
		assert.True(t, names[want], want)
	}
}
