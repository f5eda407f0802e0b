package session

import (
	"context"
	"database/sql"
	"errors"
)

// fakeConn is an in-memory handle that records every state-changing call.
type fakeConn struct {
	autoCommit bool
	readOnly   bool
	closed     bool

	commitErr   error
	rollbackErr error
	beginErr    error

	calls []string
}

func newFakeConn() *fakeConn {
	return &fakeConn{autoCommit: true}
}

func (c *fakeConn) IsClosed() bool   { return c.closed }
func (c *fakeConn) IsReadOnly() bool { return c.readOnly }
func (c *fakeConn) AutoCommit() bool { return c.autoCommit }

func (c *fakeConn) SetReadOnly(_ context.Context, readOnly bool) error {
	if readOnly {
		c.calls = append(c.calls, "readOnly=true")
	} else {
		c.calls = append(c.calls, "readOnly=false")
	}
	c.readOnly = readOnly
	return nil
}

func (c *fakeConn) SetAutoCommit(_ context.Context, autoCommit bool) error {
	if autoCommit {
		c.calls = append(c.calls, "autoCommit=true")
	} else {
		c.calls = append(c.calls, "autoCommit=false")
		if c.beginErr != nil {
			return c.beginErr
		}
	}
	c.autoCommit = autoCommit
	return nil
}

func (c *fakeConn) Commit(context.Context) error {
	c.calls = append(c.calls, "commit")
	return c.commitErr
}

func (c *fakeConn) Rollback(context.Context) error {
	c.calls = append(c.calls, "rollback")
	return c.rollbackErr
}

func (c *fakeConn) ExecContext(_ context.Context, query string, _ ...any) (sql.Result, error) {
	c.calls = append(c.calls, "exec "+query)
	return nil, nil
}

func (c *fakeConn) QueryContext(_ context.Context, query string, _ ...any) (*sql.Rows, error) {
	c.calls = append(c.calls, "query "+query)
	return nil, errors.New("fakeConn: QueryContext not supported")
}

func (c *fakeConn) QueryRowContext(_ context.Context, query string, _ ...any) *sql.Row {
	c.calls = append(c.calls, "queryRow "+query)
	return nil
}

func (c *fakeConn) count(call string) int {
	n := 0
	for _, c := range c.calls {
		if c == call {
			n++
		}
	}
	return n
}

type countingHooks struct {
	NopHooks
	begins, commits, rollbacks int
}

func (h *countingHooks) AfterBegin(context.Context)    { h.begins++ }
func (h *countingHooks) AfterCommit(context.Context)   { h.commits++ }
func (h *countingHooks) AfterRollback(context.Context) { h.rollbacks++ }
