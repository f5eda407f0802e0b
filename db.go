// Package db resolves a session.DB carried in a context.Context and runs
// units of work against it. The helpers hold no state of their own.
package db

import (
	"context"

	"github.com/TechXTT/torm-session/pkg/session"
)

type ctxKey struct{}

// WithDB returns a copy of ctx carrying d.
func WithDB(ctx context.Context, d *session.DB) context.Context {
	return context.WithValue(ctx, ctxKey{}, d)
}

// FromContext returns the DB installed by WithDB, or session.ErrNoImplicitDB.
func FromContext(ctx context.Context) (*session.DB, error) {
	d, ok := ctx.Value(ctxKey{}).(*session.DB)
	if !ok || d == nil {
		return nil, session.ErrNoImplicitDB
	}
	return d, nil
}

// AutoCommit runs work on the context's DB in auto-commit mode.
func AutoCommit[A any](ctx context.Context, work func(*session.Session) (A, error)) (A, error) {
	d, err := FromContext(ctx)
	if err != nil {
		var zero A
		return zero, err
	}
	return session.AutoCommit(ctx, d, work)
}

// WithinTx runs work in the transaction already open on the context's DB.
func WithinTx[A any](ctx context.Context, work func(*session.Session) (A, error)) (A, error) {
	d, err := FromContext(ctx)
	if err != nil {
		var zero A
		return zero, err
	}
	return session.WithinTx(ctx, d, work)
}

// LocalTx runs work in a new transaction on the context's DB.
func LocalTx[A any](ctx context.Context, work func(*session.Session) (A, error)) (A, error) {
	d, err := FromContext(ctx)
	if err != nil {
		var zero A
		return zero, err
	}
	return session.LocalTx(ctx, d, work)
}

// ReadOnly runs work on the context's DB with the handle marked read-only.
func ReadOnly[A any](ctx context.Context, work func(*session.Session) (A, error)) (A, error) {
	d, err := FromContext(ctx)
	if err != nil {
		var zero A
		return zero, err
	}
	return session.ReadOnly(ctx, d, work)
}

func Begin(ctx context.Context) error {
	return with(ctx, (*session.DB).Begin)
}

func BeginIfNotYet(ctx context.Context) error {
	return with(ctx, (*session.DB).BeginIfNotYet)
}

func Commit(ctx context.Context) error {
	return with(ctx, (*session.DB).Commit)
}

func Rollback(ctx context.Context) error {
	return with(ctx, (*session.DB).Rollback)
}

func RollbackIfActive(ctx context.Context) error {
	return with(ctx, (*session.DB).RollbackIfActive)
}

func with(ctx context.Context, fn func(*session.DB, context.Context) error) error {
	d, err := FromContext(ctx)
	if err != nil {
		return err
	}
	return fn(d, ctx)
}
