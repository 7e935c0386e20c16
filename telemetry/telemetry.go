// Package telemetry collects in-process statistics about query compilation and execution.
//
// A Collector keeps running counters that are always available through Snapshot. When a
// Sink is configured, every recorded event is also buffered and delivered in batches by
// a background goroutine.
package telemetry

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// EventType classifies an event.
type EventType string

const (
	// CompileEvent records one compilation phase.
	CompileEvent EventType = "compile"
	// ExecuteEvent records one list, iterate, scroll or update execution.
	ExecuteEvent EventType = "execute"
	// CacheEvent records a plan or result cache lookup.
	CacheEvent EventType = "cache"
	// ErrorEvent records a failed compilation or execution.
	ErrorEvent EventType = "error"
)

// Event is one recorded occurrence.
type Event struct {
	Type      EventType      `json:"type"`
	Name      string         `json:"name"`
	QueryID   string         `json:"query_id,omitempty"`
	Duration  time.Duration  `json:"duration,omitempty"`
	Rows      int            `json:"rows,omitempty"`
	Error     string         `json:"error,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Sink receives batches of events.
type Sink interface {
	Send(ctx context.Context, events []Event) error
}

// JSONSink writes each event as one JSON line.
type JSONSink struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSONSink creates a sink writing to w.
func NewJSONSink(w io.Writer) *JSONSink {
	return &JSONSink{enc: json.NewEncoder(w)}
}

// Send implements Sink.
func (s *JSONSink) Send(_ context.Context, events []Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range events {
		if err := s.enc.Encode(e); err != nil {
			return err
		}
	}
	return nil
}

// Stats is a snapshot of the counters of a Collector.
type Stats struct {
	Compilations      int64
	CompileFailures   int64
	Parses            int64
	Binds             int64
	Generations       int64
	Executions        int64
	ExecutionFailures int64
	RowsReturned      int64
	RowsAffected      int64
	CacheHits         int64
	CacheMisses       int64
	CompileTime       time.Duration
	ExecutionTime     time.Duration
}

// Options configures a Collector.
type Options struct {
	Sink          Sink
	BatchSize     int
	FlushInterval time.Duration
}

// Collector records statistics. A nil *Collector discards everything.
type Collector struct {
	compilations      atomic.Int64
	compileFailures   atomic.Int64
	parses            atomic.Int64
	binds             atomic.Int64
	generations       atomic.Int64
	executions        atomic.Int64
	executionFailures atomic.Int64
	rowsReturned      atomic.Int64
	rowsAffected      atomic.Int64
	cacheHits         atomic.Int64
	cacheMisses       atomic.Int64
	compileTime       atomic.Int64
	executionTime     atomic.Int64

	sink          Sink
	mu            sync.Mutex
	events        []Event
	batchSize     int
	flushInterval time.Duration
	stopChan      chan struct{}
	stopOnce      sync.Once
	wg            sync.WaitGroup
}

// New creates a collector. With a sink, events are flushed every FlushInterval or once
// BatchSize events are buffered.
func New(opts Options) *Collector {
	c := &Collector{
		sink:          opts.Sink,
		batchSize:     opts.BatchSize,
		flushInterval: opts.FlushInterval,
		stopChan:      make(chan struct{}),
	}
	if c.batchSize <= 0 {
		c.batchSize = 10
	}
	if c.flushInterval <= 0 {
		c.flushInterval = 30 * time.Second
	}
	if c.sink != nil {
		c.startBackgroundFlush()
	}
	return c
}

// Phase names recorded by RecordPhase.
const (
	PhaseParse    = "parse"
	PhaseBind     = "bind"
	PhaseGenerate = "generate"
	PhasePlan     = "plan"
)

// RecordPhase records one compilation phase of the query queryID.
func (c *Collector) RecordPhase(queryID, phase string, d time.Duration) {
	if c == nil {
		return
	}
	switch phase {
	case PhaseParse:
		c.parses.Add(1)
	case PhaseBind:
		c.binds.Add(1)
	case PhaseGenerate:
		c.generations.Add(1)
	}
	c.compileTime.Add(int64(d))
	c.record(Event{Type: CompileEvent, Name: phase, QueryID: queryID, Duration: d})
}

// RecordCompile records the outcome of a compilation.
func (c *Collector) RecordCompile(queryID string, err error) {
	if c == nil {
		return
	}
	c.compilations.Add(1)
	if err != nil {
		c.compileFailures.Add(1)
		c.record(Event{Type: ErrorEvent, Name: "compile", QueryID: queryID, Error: err.Error()})
	}
}

// RecordExecution records a list, iterate, scroll ("select") or update execution.
// For selects rows counts returned rows; for updates the affected rows.
func (c *Collector) RecordExecution(queryID, kind string, rows int, d time.Duration, err error) {
	if c == nil {
		return
	}
	c.executions.Add(1)
	c.executionTime.Add(int64(d))
	if kind == "update" {
		c.rowsAffected.Add(int64(rows))
	} else {
		c.rowsReturned.Add(int64(rows))
	}
	e := Event{Type: ExecuteEvent, Name: kind, QueryID: queryID, Rows: rows, Duration: d}
	if err != nil {
		c.executionFailures.Add(1)
		e.Type = ErrorEvent
		e.Error = err.Error()
	}
	c.record(e)
}

// RecordCacheLookup records a hit or miss of the named cache.
func (c *Collector) RecordCacheLookup(cache string, hit bool) {
	if c == nil {
		return
	}
	if hit {
		c.cacheHits.Add(1)
	} else {
		c.cacheMisses.Add(1)
	}
	c.record(Event{Type: CacheEvent, Name: cache, Metadata: map[string]any{"hit": hit}})
}

// Snapshot returns the current counters.
func (c *Collector) Snapshot() Stats {
	if c == nil {
		return Stats{}
	}
	return Stats{
		Compilations:      c.compilations.Load(),
		CompileFailures:   c.compileFailures.Load(),
		Parses:            c.parses.Load(),
		Binds:             c.binds.Load(),
		Generations:       c.generations.Load(),
		Executions:        c.executions.Load(),
		ExecutionFailures: c.executionFailures.Load(),
		RowsReturned:      c.rowsReturned.Load(),
		RowsAffected:      c.rowsAffected.Load(),
		CacheHits:         c.cacheHits.Load(),
		CacheMisses:       c.cacheMisses.Load(),
		CompileTime:       time.Duration(c.compileTime.Load()),
		ExecutionTime:     time.Duration(c.executionTime.Load()),
	}
}

// record adds an event to the batch
func (c *Collector) record(e Event) {
	if c.sink == nil {
		return
	}
	e.Timestamp = time.Now()

	c.mu.Lock()
	c.events = append(c.events, e)
	full := len(c.events) >= c.batchSize
	c.mu.Unlock()

	if full {
		c.Flush(context.Background())
	}
}

// Flush sends the buffered events to the sink.
func (c *Collector) Flush(ctx context.Context) error {
	if c == nil || c.sink == nil {
		return nil
	}
	c.mu.Lock()
	if len(c.events) == 0 {
		c.mu.Unlock()
		return nil
	}
	events := make([]Event, len(c.events))
	copy(events, c.events)
	c.events = c.events[:0]
	c.mu.Unlock()

	return c.sink.Send(ctx, events)
}

// startBackgroundFlush starts a background goroutine to flush events periodically
func (c *Collector) startBackgroundFlush() {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.flushInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				// delivery failures never affect queries
				_ = c.Flush(context.Background())
			case <-c.stopChan:
				return
			}
		}
	}()
}

// Shutdown stops the background flush and delivers the remaining events.
func (c *Collector) Shutdown(ctx context.Context) error {
	if c == nil {
		return nil
	}
	c.stopOnce.Do(func() { close(c.stopChan) })
	c.wg.Wait()
	return c.Flush(ctx)
}
