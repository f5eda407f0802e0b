package session

import (
	"context"

	"go.uber.org/zap"
)

// DB owns one connection handle for its lifetime and runs units of work
// against it in auto-commit, within-transaction, local-transaction or
// read-only mode. It keeps no transaction state of its own; every check reads
// the handle.
//
// A DB is not safe for concurrent use. Hand each concurrent flow its own
// connection (see runtime.Borrow).
type DB struct {
	conn  Conn
	log   *zap.Logger
	hooks Hooks
}

// Option configures a DB.
type Option func(*DB)

// WithLogger sets the logger used for transaction lifecycle lines.
func WithLogger(log *zap.Logger) Option {
	return func(d *DB) {
		if log != nil {
			d.log = log
		}
	}
}

// WithHooks registers lifecycle callbacks.
func WithHooks(h Hooks) Option {
	return func(d *DB) {
		if h != nil {
			d.hooks = h
		}
	}
}

// New returns a DB bound to conn.
func New(conn Conn, opts ...Option) *DB {
	d := &DB{conn: conn, log: zap.NewNop(), hooks: NopHooks{}}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Conn returns the bound handle.
func (d *DB) Conn() Conn { return d.conn }

func (d *DB) IsTxAlreadyStarted() bool {
	return d.view().IsActive()
}

func (d *DB) IsTxNotActive() bool {
	return !d.IsTxAlreadyStarted()
}

// NewTx returns a fresh, not yet begun transaction for the handle.
func (d *DB) NewTx() (*Tx, error) {
	if !d.usable() {
		return nil, ErrConnUnavailable
	}
	if !d.conn.AutoCommit() {
		return nil, ErrTxAlreadyStarted
	}
	return d.view(), nil
}

// CurrentTx returns a view of the transaction open on the handle.
func (d *DB) CurrentTx() (*Tx, error) {
	if !d.usable() {
		return nil, ErrConnUnavailable
	}
	if d.conn.AutoCommit() {
		return nil, ErrTxNotActive
	}
	return d.view(), nil
}

func (d *DB) Begin(ctx context.Context) error {
	tx, err := d.NewTx()
	if err != nil {
		return err
	}
	return tx.Begin(ctx)
}

// BeginIfNotYet is Begin that ignores state errors, so calling it twice
// leaves one transaction open.
func (d *DB) BeginIfNotYet(ctx context.Context) error {
	if err := d.Begin(ctx); err != nil && !IsIllegalState(err) {
		return err
	}
	return nil
}

func (d *DB) Commit(ctx context.Context) error {
	tx, err := d.CurrentTx()
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (d *DB) Rollback(ctx context.Context) error {
	tx, err := d.CurrentTx()
	if err != nil {
		return err
	}
	return tx.Rollback(ctx)
}

func (d *DB) RollbackIfActive(ctx context.Context) error {
	return d.view().RollbackIfActive(ctx)
}

// AutoCommit runs work without transaction management.
func (d *DB) AutoCommit(ctx context.Context, work func(*Session) error) error {
	_, err := AutoCommit(ctx, d, discard(work))
	return err
}

// WithinTx runs work inside the transaction already open on the handle. It
// neither commits nor rolls back.
func (d *DB) WithinTx(ctx context.Context, work func(*Session) error) error {
	_, err := WithinTx(ctx, d, discard(work))
	return err
}

// LocalTx runs work in a new transaction, committing when it succeeds and
// rolling back when it fails.
func (d *DB) LocalTx(ctx context.Context, work func(*Session) error) error {
	_, err := LocalTx(ctx, d, discard(work))
	return err
}

// ReadOnly runs work with the handle marked read-only.
func (d *DB) ReadOnly(ctx context.Context, work func(*Session) error) error {
	_, err := ReadOnly(ctx, d, discard(work))
	return err
}

// AutoCommit is the value-returning form of DB.AutoCommit.
func AutoCommit[A any](ctx context.Context, d *DB, work func(*Session) (A, error)) (A, error) {
	s, err := NewSession(d.conn, nil, false)
	if err != nil {
		var zero A
		return zero, err
	}
	return work(s)
}

// WithinTx is the value-returning form of DB.WithinTx.
func WithinTx[A any](ctx context.Context, d *DB, work func(*Session) (A, error)) (A, error) {
	var zero A
	tx, err := d.CurrentTx()
	if err != nil {
		return zero, err
	}
	s, err := NewSession(d.conn, tx, false)
	if err != nil {
		return zero, err
	}
	return work(s)
}

// LocalTx is the value-returning form of DB.LocalTx.
//
// When work fails its error is returned as is after the rollback. If the
// rollback fails as well, a *RollbackError carrying both is returned. A panic
// in work rolls back and re-panics.
func LocalTx[A any](ctx context.Context, d *DB, work func(*Session) (A, error)) (A, error) {
	var zero A
	tx, err := d.NewTx()
	if err != nil {
		return zero, err
	}
	if err := tx.Begin(ctx); err != nil {
		return zero, err
	}
	if !tx.IsActive() {
		return zero, ErrTxNotActive
	}
	s, err := NewSession(d.conn, tx, false)
	if err != nil {
		return zero, err
	}
	log := d.log.With(zap.Stringer("session", s.ID()))

	done := false
	defer func() {
		if done {
			return
		}
		if rbErr := tx.RollbackIfActive(ctx); rbErr != nil {
			log.Warn("rollback after panic failed", zap.Error(rbErr))
		}
	}()

	result, err := work(s)
	done = true
	if err != nil {
		if rbErr := tx.RollbackIfActive(ctx); rbErr != nil {
			log.Warn("rollback after failed unit of work failed", zap.Error(rbErr), zap.NamedError("cause", err))
			return zero, &RollbackError{Err: err, RollbackErr: rbErr}
		}
		return zero, err
	}
	if err := tx.Commit(ctx); err != nil {
		// tx is terminal now; roll back whatever the handle still has open.
		if rbErr := d.RollbackIfActive(ctx); rbErr != nil {
			log.Warn("rollback after failed commit failed", zap.Error(rbErr))
		}
		return zero, err
	}
	return result, nil
}

// ReadOnly is the value-returning form of DB.ReadOnly. The handle's previous
// read-only flag is restored when work returns.
func ReadOnly[A any](ctx context.Context, d *DB, work func(*Session) (A, error)) (A, error) {
	var zero A
	if d.conn.IsClosed() {
		return zero, ErrConnUnavailable
	}
	if d.IsTxAlreadyStarted() {
		return zero, ErrTxAlreadyStarted
	}
	if !d.conn.IsReadOnly() {
		if err := d.conn.SetReadOnly(ctx, true); err != nil {
			return zero, err
		}
		defer func() {
			if err := d.conn.SetReadOnly(ctx, false); err != nil {
				d.log.Warn("restoring read-write mode failed", zap.Error(err))
			}
		}()
	}
	s, err := NewSession(d.conn, nil, true)
	if err != nil {
		return zero, err
	}
	return work(s)
}

func (d *DB) view() *Tx {
	return newTx(d.conn, d.hooks, d.log)
}

func (d *DB) usable() bool {
	return !d.conn.IsClosed() && !d.conn.IsReadOnly()
}

func discard(work func(*Session) error) func(*Session) (struct{}, error) {
	return func(s *Session) (struct{}, error) {
		return struct{}{}, work(s)
	}
}
