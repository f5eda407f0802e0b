package session

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// TxState is the lifecycle state of a Tx.
type TxState int

const (
	TxNotBegun TxState = iota
	TxActive
	TxCommitted
	TxRolledBack
	// TxFailed marks a Tx whose commit or rollback was rejected by the driver.
	TxFailed
)

func (s TxState) String() string {
	switch s {
	case TxNotBegun:
		return "not-begun"
	case TxActive:
		return "active"
	case TxCommitted:
		return "committed"
	case TxRolledBack:
		return "rolled-back"
	case TxFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Tx is a transaction over a borrowed Conn. Whether it is active is read from
// the handle on every call, so any number of Tx values over one handle agree.
// The only thing a Tx remembers is its terminal state: once Commit or
// Rollback has reached the driver, successfully or not, every further
// operation on it fails.
type Tx struct {
	conn     Conn
	hooks    Hooks
	log      *zap.Logger
	terminal TxState
}

func newTx(conn Conn, hooks Hooks, log *zap.Logger) *Tx {
	return &Tx{conn: conn, hooks: hooks, log: log}
}

// Begin turns off auto-commit on the handle.
func (t *Tx) Begin(ctx context.Context) error {
	if t.terminal != TxNotBegun || !t.usable() || !t.conn.AutoCommit() {
		return ErrCannotBegin
	}
	if err := t.conn.SetAutoCommit(ctx, false); err != nil {
		return err
	}
	t.log.Debug("transaction begun")
	t.hooks.AfterBegin(ctx)
	return nil
}

// IsActive reports whether an explicit transaction is open on the handle.
func (t *Tx) IsActive() bool {
	return t.terminal == TxNotBegun && t.usable() && !t.conn.AutoCommit()
}

func (t *Tx) State() TxState {
	if t.terminal != TxNotBegun {
		return t.terminal
	}
	if t.IsActive() {
		return TxActive
	}
	return TxNotBegun
}

func (t *Tx) Commit(ctx context.Context) error {
	if !t.IsActive() {
		return ErrTxNotActive
	}
	if err := t.conn.Commit(ctx); err != nil {
		t.terminal = TxFailed
		return err
	}
	t.terminal = TxCommitted
	if err := t.conn.SetAutoCommit(ctx, true); err != nil {
		return err
	}
	t.log.Debug("transaction committed")
	t.hooks.AfterCommit(ctx)
	return nil
}

func (t *Tx) Rollback(ctx context.Context) error {
	if !t.IsActive() {
		return ErrTxNotActive
	}
	if err := t.conn.Rollback(ctx); err != nil {
		t.terminal = TxFailed
		return err
	}
	t.terminal = TxRolledBack
	if err := t.conn.SetAutoCommit(ctx, true); err != nil {
		return err
	}
	t.log.Debug("transaction rolled back")
	t.hooks.AfterRollback(ctx)
	return nil
}

// RollbackIfActive is Rollback without the not-active failure. Driver errors
// are still returned.
func (t *Tx) RollbackIfActive(ctx context.Context) error {
	if err := t.Rollback(ctx); err != nil && !errors.Is(err, ErrTxNotActive) {
		return err
	}
	return nil
}

func (t *Tx) usable() bool {
	return !t.conn.IsClosed() && !t.conn.IsReadOnly()
}
