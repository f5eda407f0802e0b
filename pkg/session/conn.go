package session

import (
	"context"
	"database/sql"
	"errors"
)

// Querier is the statement execution surface shared by *sql.DB, *sql.Conn,
// *sql.Tx and Session.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var (
	_ Querier = (*sql.DB)(nil)
	_ Querier = (*sql.Conn)(nil)
	_ Querier = (*sql.Tx)(nil)
)

// Conn is a live connection handle. DB, Tx and Session only borrow it; the
// code that created it is responsible for closing it.
type Conn interface {
	Querier

	IsClosed() bool
	IsReadOnly() bool
	SetReadOnly(ctx context.Context, readOnly bool) error

	// AutoCommit is false exactly while an explicit transaction is open.
	AutoCommit() bool
	// SetAutoCommit(false) opens a transaction, SetAutoCommit(true) commits
	// one that is still open.
	SetAutoCommit(ctx context.Context, autoCommit bool) error

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// ErrNoDriverTx is returned by SQLConn when Commit or Rollback is called
// while the handle is in auto-commit mode.
var ErrNoDriverTx = errors.New("session: no driver transaction is open")

// ErrReadOnlyInTx is returned by SQLConn.SetReadOnly(true) while an explicit
// transaction is open.
var ErrReadOnlyInTx = errors.New("session: cannot mark the connection read-only inside a transaction")

// SQLConn adapts a *sql.Conn to Conn. The open *sql.Tx is the auto-commit
// flag: nil means auto-commit. While the handle is read-only, statements run
// in a separate read-only driver transaction that is rolled back when the
// flag is cleared; it does not count as an explicit transaction.
type SQLConn struct {
	conn   *sql.Conn
	tx     *sql.Tx
	roTx   *sql.Tx
	opts   *sql.TxOptions
	closed bool
}

var _ Conn = (*SQLConn)(nil)

// NewSQLConn wraps conn. opts, if non-nil, is used for every BeginTx.
func NewSQLConn(conn *sql.Conn, opts *sql.TxOptions) *SQLConn {
	return &SQLConn{conn: conn, opts: opts}
}

func (c *SQLConn) IsClosed() bool   { return c.closed }
func (c *SQLConn) IsReadOnly() bool { return c.roTx != nil }
func (c *SQLConn) AutoCommit() bool { return c.tx == nil }

// SetReadOnly(true) opens a driver transaction with TxOptions.ReadOnly set,
// so the database itself rejects writes. SetReadOnly(false) rolls it back.
func (c *SQLConn) SetReadOnly(ctx context.Context, readOnly bool) error {
	if c.closed {
		return sql.ErrConnDone
	}
	switch {
	case readOnly && c.roTx == nil:
		if c.tx != nil {
			return ErrReadOnlyInTx
		}
		opts := sql.TxOptions{ReadOnly: true}
		if c.opts != nil {
			opts.Isolation = c.opts.Isolation
		}
		tx, err := c.conn.BeginTx(ctx, &opts)
		if err != nil {
			return err
		}
		c.roTx = tx
	case !readOnly && c.roTx != nil:
		tx := c.roTx
		c.roTx = nil
		return tx.Rollback()
	}
	return nil
}

func (c *SQLConn) SetAutoCommit(ctx context.Context, autoCommit bool) error {
	if c.closed {
		return sql.ErrConnDone
	}
	switch {
	case autoCommit && c.tx != nil:
		return c.Commit(ctx)
	case !autoCommit && c.tx == nil:
		tx, err := c.conn.BeginTx(ctx, c.opts)
		if err != nil {
			return err
		}
		c.tx = tx
	}
	return nil
}

// Commit commits the open transaction. The handle is back in auto-commit
// mode afterwards whether or not the driver succeeded, since database/sql
// discards a *sql.Tx after its first Commit.
func (c *SQLConn) Commit(_ context.Context) error {
	if c.tx == nil {
		return ErrNoDriverTx
	}
	tx := c.tx
	c.tx = nil
	return tx.Commit()
}

func (c *SQLConn) Rollback(_ context.Context) error {
	if c.tx == nil {
		return ErrNoDriverTx
	}
	tx := c.tx
	c.tx = nil
	return tx.Rollback()
}

func (c *SQLConn) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.querier().ExecContext(ctx, query, args...)
}

func (c *SQLConn) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.querier().QueryContext(ctx, query, args...)
}

func (c *SQLConn) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return c.querier().QueryRowContext(ctx, query, args...)
}

func (c *SQLConn) querier() Querier {
	switch {
	case c.tx != nil:
		return c.tx
	case c.roTx != nil:
		return c.roTx
	}
	return c.conn
}

// Close rolls back any transaction left open and returns the connection to
// its pool. It is meant for the code that created the SQLConn.
func (c *SQLConn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	var errs []error
	for _, tx := range []*sql.Tx{c.tx, c.roTx} {
		if tx != nil {
			errs = append(errs, tx.Rollback())
		}
	}
	c.tx, c.roTx = nil, nil
	errs = append(errs, c.conn.Close())
	return errors.Join(errs...)
}
