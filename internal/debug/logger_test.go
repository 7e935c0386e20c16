package debug

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevels(t *testing.T) {
	var buf bytes.Buffer
	Configure(Options{Writer: &buf})
	t.Cleanup(func() { Init(false) })

	assert.False(t, Enabled())
	Debug("hidden")
	Warn("shown", "n", 1)
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "msg=shown n=1")

	SetVerbose(true)
	assert.True(t, Enabled())
	Debug("visible")
	assert.Contains(t, buf.String(), "msg=visible")
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	Configure(Options{Verbose: true, Format: FormatJSON, Writer: &buf})
	t.Cleanup(func() { Init(false) })

	Info("compiled", "aql", "select p from Patient p")

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &rec))
	assert.Equal(t, "INFO", rec["level"])
	assert.Equal(t, "compiled", rec["msg"])
	assert.Equal(t, "select p from Patient p", rec["aql"])
}
