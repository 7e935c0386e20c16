// Package client provides the runtime client for aql-go.
//
// A Client owns a database handle, the SQL dialect of its provider, the entity catalog
// and the plan and result caches. Queries run inside a Session, which pins one database
// connection so temporary staging tables survive between the statements of a bulk
// update or delete.
package client

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "github.com/lib/pq"              // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3"    // SQLite driver

	"github.com/satishbabariya/aql-go/catalog"
	"github.com/satishbabariya/aql-go/internal/debug"
	"github.com/satishbabariya/aql-go/query/cache"
	"github.com/satishbabariya/aql-go/query/loader"
	"github.com/satishbabariya/aql-go/query/parser"
	"github.com/satishbabariya/aql-go/query/sqlgen"
	"github.com/satishbabariya/aql-go/query/translator"
	"github.com/satishbabariya/aql-go/telemetry"
)

// Options configures a Client.
type Options struct {
	// Provider is one of postgresql, mysql or sqlite.
	Provider string
	Catalog  catalog.Catalog
	// Constants are folded into queries referencing them by dotted path.
	Constants parser.Constants
	// Substitutions replace query tokens before parsing.
	Substitutions map[string]string
	// Materializer converts select rows; nil selects loader.EntityMaterializer.
	Materializer loader.Materializer
	Telemetry    *telemetry.Collector

	PlanCacheSize   int
	ResultCacheSize int
	ResultCacheTTL  time.Duration
}

// Client is the main database client
type Client struct {
	db          *sql.DB
	opts        Options
	dialect     sqlgen.Dialect
	plans       *cache.PlanCache
	results     *cache.ResultCache
	middlewares []Middleware
	extensions  []Extension
}

// Open opens a database for provider with the connection string dsn.
func Open(dsn string, opts Options) (*Client, error) {
	driverName := getDriverName(opts.Provider)
	if driverName == "" {
		return nil, fmt.Errorf("unsupported provider: %s", opts.Provider)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}
	c, err := New(db, opts)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

// New creates a client over an open database.
func New(db *sql.DB, opts Options) (*Client, error) {
	if opts.Catalog == nil {
		return nil, fmt.Errorf("client requires a catalog")
	}
	dialect, err := sqlgen.NewDialect(opts.Provider)
	if err != nil {
		return nil, err
	}
	if opts.PlanCacheSize <= 0 {
		opts.PlanCacheSize = 256
	}
	if opts.ResultCacheSize <= 0 {
		opts.ResultCacheSize = 128
	}
	return &Client{
		db:      db,
		opts:    opts,
		dialect: dialect,
		plans:   cache.NewPlanCache(opts.PlanCacheSize, opts.Telemetry),
		results: cache.NewResultCache(opts.ResultCacheSize, opts.ResultCacheTTL, opts.Telemetry),
	}, nil
}

// getDriverName maps provider names to Go database driver names
func getDriverName(provider string) string {
	switch provider {
	case "postgresql", "postgres":
		return "postgres"
	case "mysql":
		return "mysql"
	case "sqlite", "sqlite3":
		return "sqlite3"
	default:
		return ""
	}
}

// Connect verifies the database connection
func (c *Client) Connect(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Close closes the database and flushes telemetry
func (c *Client) Close(ctx context.Context) error {
	if err := c.opts.Telemetry.Shutdown(ctx); err != nil {
		debug.Warn("telemetry shutdown failed", "error", err)
	}
	return c.db.Close()
}

// DB returns the underlying database connection
func (c *Client) DB() *sql.DB {
	return c.db
}

// Dialect returns the SQL dialect of the provider.
func (c *Client) Dialect() sqlgen.Dialect {
	return c.dialect
}

// Catalog returns the entity catalog.
func (c *Client) Catalog() catalog.Catalog {
	return c.opts.Catalog
}

// PlanCacheStats returns the statistics of the plan cache.
func (c *Client) PlanCacheStats() cache.Stats {
	return c.plans.Stats()
}

// ResultCacheStats returns the statistics of the result cache.
func (c *Client) ResultCacheStats() cache.Stats {
	return c.results.Stats()
}

// Compile returns the compiled plan of query, from the plan cache when possible.
func (c *Client) Compile(query string, filters []string, shallow bool) (*translator.Translator, error) {
	key := cache.PlanKey(query, filters, shallow)
	return c.plans.Get(key, func() (*translator.Translator, error) {
		tr := translator.New(query, filters, c.translatorOptions())
		return tr, tr.Compile(c.opts.Substitutions, shallow)
	})
}

// CompileFilter returns the compiled plan of a collection filter over role.
func (c *Client) CompileFilter(role, query string, filters []string, shallow bool) (*translator.Translator, error) {
	key := "filter:" + role + "|" + cache.PlanKey(query, filters, shallow)
	return c.plans.Get(key, func() (*translator.Translator, error) {
		tr := translator.New(query, filters, c.translatorOptions())
		return tr, tr.CompileFilter(role, c.opts.Substitutions, shallow)
	})
}

func (c *Client) translatorOptions() translator.Options {
	return translator.Options{
		Catalog:      c.opts.Catalog,
		Dialect:      c.dialect,
		Constants:    c.opts.Constants,
		Materializer: c.opts.Materializer,
		Telemetry:    c.opts.Telemetry,
	}
}

// Session opens a session pinned to one connection.
func (c *Client) Session(ctx context.Context) (*Session, error) {
	conn, err := c.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	return &Session{
		client:  c,
		conn:    conn,
		filters: map[string]map[string]any{},
	}, nil
}

// Do runs fn in a new session and closes it afterwards.
func (c *Client) Do(ctx context.Context, fn func(s *Session) error) error {
	s, err := c.Session(ctx)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}
