package client

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/satishbabariya/aql-go/internal/debug"
)

// TxOptions configures the outermost transaction of a session. Nested transactions
// inherit the options of the transaction they run in.
type TxOptions struct {
	Isolation sql.IsolationLevel
	ReadOnly  bool
}

func (o TxOptions) sql() *sql.TxOptions {
	if o == (TxOptions{}) {
		return nil
	}
	return &sql.TxOptions{Isolation: o.Isolation, ReadOnly: o.ReadOnly}
}

// Transaction runs fn in a transaction on the session's connection, committing when fn
// returns nil and rolling back otherwise. Called inside another transaction it runs in
// a savepoint, so only the work of fn is undone on failure.
func (s *Session) Transaction(ctx context.Context, fn func(s *Session) error) error {
	return s.TransactionWithOptions(ctx, TxOptions{}, fn)
}

// ReadOnlyTransaction runs fn in a read-only transaction.
func (s *Session) ReadOnlyTransaction(ctx context.Context, fn func(s *Session) error) error {
	return s.TransactionWithOptions(ctx, TxOptions{ReadOnly: true}, fn)
}

// TransactionWithOptions is Transaction with explicit options for the outermost level.
func (s *Session) TransactionWithOptions(ctx context.Context, opts TxOptions, fn func(s *Session) error) error {
	if s.tx != nil {
		return s.savepoint(ctx, fn)
	}

	tx, err := s.conn.BeginTx(ctx, opts.sql())
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	s.tx = tx
	s.written = map[string]struct{}{}
	defer func() {
		s.tx = nil
		s.written = nil
	}()

	rollback := func() error {
		err := tx.Rollback()
		s.dropWritten()
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = rollback()
			panic(p)
		}
	}()

	if err := fn(s); err != nil {
		debug.Debug("rolling back transaction", "error", err)
		if rbErr := rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		s.dropWritten()
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *Session) savepoint(ctx context.Context, fn func(s *Session) error) error {
	s.depth++
	defer func() { s.depth-- }()
	name := fmt.Sprintf("sp_%d", s.depth)

	if _, err := s.tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return fmt.Errorf("create savepoint %s: %w", name, err)
	}

	// Spaces written inside the savepoint stay recorded after a partial rollback.
	rollback := func() error {
		_, err := s.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name)
		s.dropWritten()
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = rollback()
			panic(p)
		}
	}()

	if err := fn(s); err != nil {
		debug.Debug("rolling back savepoint", "savepoint", name, "error", err)
		if rbErr := rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback to %s: %v)", err, name, rbErr)
		}
		return err
	}
	if _, err := s.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name); err != nil {
		return fmt.Errorf("release savepoint %s: %w", name, err)
	}
	return nil
}

// InTransaction reports whether a transaction is active.
func (s *Session) InTransaction() bool {
	return s.tx != nil
}

// recordWrite notes the query spaces a statement of the current transaction wrote.
func (s *Session) recordWrite(spaces []string) {
	if s.written == nil {
		return
	}
	for _, sp := range spaces {
		s.written[sp] = struct{}{}
	}
}

// readsUncommitted reports whether a query over spaces would see writes of the
// current transaction. Such results must not reach the shared result cache.
func (s *Session) readsUncommitted(spaces []string) bool {
	for _, sp := range spaces {
		if _, ok := s.written[sp]; ok {
			return true
		}
	}
	return false
}

// dropWritten evicts cached results over the spaces written in this transaction.
func (s *Session) dropWritten() {
	if len(s.written) == 0 {
		return
	}
	spaces := make([]string, 0, len(s.written))
	for sp := range s.written {
		spaces = append(spaces, sp)
	}
	sort.Strings(spaces)
	s.client.results.Invalidate(spaces)
}
