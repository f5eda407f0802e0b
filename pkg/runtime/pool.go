package runtime

import (
	"context"
	"database/sql"
	"fmt"

	db "github.com/TechXTT/torm-session"
	"github.com/TechXTT/torm-session/pkg/session"
)

// Borrow takes one connection out of pool and binds a session.DB to it. The
// caller owns the connection until release is called; release rolls back a
// transaction left open and hands the connection back to the pool.
func Borrow(ctx context.Context, pool *sql.DB, txOpts *sql.TxOptions, opts ...session.Option) (*session.DB, func() error, error) {
	conn, err := pool.Conn(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("acquire connection: %w", err)
	}
	c := session.NewSQLConn(conn, txOpts)
	return session.New(c, opts...), c.Close, nil
}

// Using borrows a connection for the length of fn. The DB is also installed
// in the context passed to fn, for the helpers in the root package.
func Using(ctx context.Context, pool *sql.DB, txOpts *sql.TxOptions, fn func(context.Context, *session.DB) error, opts ...session.Option) (err error) {
	d, release, err := Borrow(ctx, pool, txOpts, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := release(); rerr != nil && err == nil {
			err = fmt.Errorf("release connection: %w", rerr)
		}
	}()
	return fn(db.WithDB(ctx, d), d)
}
