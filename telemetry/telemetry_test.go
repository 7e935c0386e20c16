package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector
	c.RecordPhase("q", PhaseParse, time.Second)
	c.RecordCompile("q", nil)
	c.RecordExecution("q", "select", 1, time.Second, nil)
	c.RecordCacheLookup("plan", true)
	assert.Equal(t, Stats{}, c.Snapshot())
	assert.NoError(t, c.Shutdown(context.Background()))
}

func TestCounters(t *testing.T) {
	c := New(Options{})
	c.RecordPhase("q", PhaseParse, time.Millisecond)
	c.RecordPhase("q", PhaseBind, time.Millisecond)
	c.RecordPhase("q", PhaseGenerate, time.Millisecond)
	c.RecordCompile("q", nil)
	c.RecordCompile("r", errors.New("boom"))
	c.RecordExecution("q", "select", 3, time.Millisecond, nil)
	c.RecordExecution("q", "update", 2, time.Millisecond, errors.New("lost"))
	c.RecordCacheLookup("plan", true)
	c.RecordCacheLookup("plan", false)

	s := c.Snapshot()
	assert.Equal(t, int64(2), s.Compilations)
	assert.Equal(t, int64(1), s.CompileFailures)
	assert.Equal(t, int64(1), s.Parses)
	assert.Equal(t, int64(1), s.Generations)
	assert.Equal(t, int64(2), s.Executions)
	assert.Equal(t, int64(1), s.ExecutionFailures)
	assert.Equal(t, int64(3), s.RowsReturned)
	assert.Equal(t, int64(2), s.RowsAffected)
	assert.Equal(t, int64(1), s.CacheHits)
	assert.Equal(t, int64(1), s.CacheMisses)
	assert.Equal(t, 3*time.Millisecond, s.CompileTime)
}

func TestJSONSinkBatches(t *testing.T) {
	var buf bytes.Buffer
	c := New(Options{Sink: NewJSONSink(&buf), BatchSize: 2, FlushInterval: time.Hour})

	c.RecordCompile("q", errors.New("bad"))
	assert.Zero(t, buf.Len(), "first event is buffered")
	c.RecordCacheLookup("plan", false)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var e Event
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &e))
	assert.Equal(t, ErrorEvent, e.Type)
	assert.Equal(t, "bad", e.Error)

	c.RecordPhase("q", PhasePlan, time.Millisecond)
	require.NoError(t, c.Shutdown(context.Background()))
	assert.Len(t, strings.Split(strings.TrimSpace(buf.String()), "\n"), 3)
}
