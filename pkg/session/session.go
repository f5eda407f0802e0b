package session

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
)

// Session is what statement execution runs against for the length of one
// unit of work: the borrowed handle and, in transactional modes, the active
// Tx.
type Session struct {
	id       uuid.UUID
	conn     Conn
	tx       *Tx
	readOnly bool
}

var _ Querier = (*Session)(nil)

// NewSession fails with ErrTxNotActive when tx is non-nil and not active.
func NewSession(conn Conn, tx *Tx, readOnly bool) (*Session, error) {
	if tx != nil && !tx.IsActive() {
		return nil, ErrTxNotActive
	}
	return &Session{
		id:       uuid.New(),
		conn:     conn,
		tx:       tx,
		readOnly: readOnly,
	}, nil
}

func (s *Session) ID() uuid.UUID  { return s.id }
func (s *Session) Conn() Conn     { return s.conn }
func (s *Session) ReadOnly() bool { return s.readOnly }

// Tx returns the transaction the session runs in, if any.
func (s *Session) Tx() (*Tx, bool) {
	return s.tx, s.tx != nil
}

func (s *Session) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.conn.ExecContext(ctx, query, args...)
}

func (s *Session) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.conn.QueryContext(ctx, query, args...)
}

func (s *Session) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return s.conn.QueryRowContext(ctx, query, args...)
}
