package session

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testTx(conn Conn) *Tx {
	return newTx(conn, NopHooks{}, zap.NewNop())
}

func TestTx_BeginCommit(t *testing.T) {
	ctx := context.Background()
	conn := newFakeConn()
	tx := testTx(conn)

	require.Equal(t, TxNotBegun, tx.State())
	require.NoError(t, tx.Begin(ctx))
	require.True(t, tx.IsActive())
	require.Equal(t, TxActive, tx.State())
	require.NoError(t, tx.Commit(ctx))

	assert.True(t, conn.AutoCommit())
	assert.Equal(t, TxCommitted, tx.State())
	if diff := cmp.Diff([]string{"autoCommit=false", "commit", "autoCommit=true"}, conn.calls); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestTx_BeginRollback(t *testing.T) {
	ctx := context.Background()
	conn := newFakeConn()
	tx := testTx(conn)

	require.NoError(t, tx.Begin(ctx))
	require.NoError(t, tx.Rollback(ctx))

	assert.True(t, conn.AutoCommit())
	assert.Equal(t, TxRolledBack, tx.State())
	if diff := cmp.Diff([]string{"autoCommit=false", "rollback", "autoCommit=true"}, conn.calls); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestTx_BeginRejected(t *testing.T) {
	ctx := context.Background()

	t.Run("already in a transaction", func(t *testing.T) {
		conn := newFakeConn()
		conn.autoCommit = false
		err := testTx(conn).Begin(ctx)
		require.ErrorIs(t, err, ErrCannotBegin)
		require.ErrorIs(t, err, ErrIllegalState)
		assert.Empty(t, conn.calls)
	})
	t.Run("closed", func(t *testing.T) {
		conn := newFakeConn()
		conn.closed = true
		require.ErrorIs(t, testTx(conn).Begin(ctx), ErrIllegalState)
		assert.Empty(t, conn.calls)
	})
	t.Run("read-only", func(t *testing.T) {
		conn := newFakeConn()
		conn.readOnly = true
		require.ErrorIs(t, testTx(conn).Begin(ctx), ErrIllegalState)
		assert.Empty(t, conn.calls)
	})
}

func TestTx_BeginDriverError(t *testing.T) {
	conn := newFakeConn()
	driverErr := errors.New("connection reset")
	conn.beginErr = driverErr

	err := testTx(conn).Begin(context.Background())
	require.Same(t, driverErr, err)
	assert.False(t, IsIllegalState(err))
}

func TestTx_FinalizeWhenNotActive(t *testing.T) {
	ctx := context.Background()
	conn := newFakeConn()
	tx := testTx(conn)

	require.ErrorIs(t, tx.Commit(ctx), ErrTxNotActive)
	require.ErrorIs(t, tx.Rollback(ctx), ErrTxNotActive)
	assert.Empty(t, conn.calls)
}

func TestTx_TerminalAfterCommit(t *testing.T) {
	ctx := context.Background()
	conn := newFakeConn()
	tx := testTx(conn)
	require.NoError(t, tx.Begin(ctx))
	require.NoError(t, tx.Commit(ctx))

	require.ErrorIs(t, tx.Begin(ctx), ErrIllegalState)
	require.ErrorIs(t, tx.Commit(ctx), ErrTxNotActive)
	require.ErrorIs(t, tx.Rollback(ctx), ErrTxNotActive)

	// A new transaction on the same handle is unaffected.
	other := testTx(conn)
	require.NoError(t, other.Begin(ctx))
	assert.False(t, tx.IsActive())
	assert.True(t, other.IsActive())
}

func TestTx_TerminalAfterDriverFailure(t *testing.T) {
	ctx := context.Background()

	t.Run("commit", func(t *testing.T) {
		conn := newFakeConn()
		commitErr := errors.New("could not serialize access")
		conn.commitErr = commitErr
		tx := testTx(conn)
		require.NoError(t, tx.Begin(ctx))

		require.Same(t, commitErr, tx.Commit(ctx))
		assert.Equal(t, TxFailed, tx.State())
		assert.False(t, tx.IsActive())

		// The driver dropped its transaction; the handle is reusable but tx is not.
		conn.autoCommit = true
		conn.calls = nil
		require.ErrorIs(t, tx.Begin(ctx), ErrCannotBegin)
		require.ErrorIs(t, tx.Rollback(ctx), ErrTxNotActive)
		assert.Empty(t, conn.calls)
		require.NoError(t, testTx(conn).Begin(ctx))
	})
	t.Run("rollback", func(t *testing.T) {
		conn := newFakeConn()
		rbErr := errors.New("broken pipe")
		conn.rollbackErr = rbErr
		tx := testTx(conn)
		require.NoError(t, tx.Begin(ctx))

		require.Same(t, rbErr, tx.Rollback(ctx))
		assert.Equal(t, TxFailed, tx.State())
		require.ErrorIs(t, tx.Commit(ctx), ErrTxNotActive)
		assert.Zero(t, conn.count("commit"))
	})
}

func TestTx_ViewsAgree(t *testing.T) {
	ctx := context.Background()
	conn := newFakeConn()
	a, b := testTx(conn), testTx(conn)

	require.NoError(t, a.Begin(ctx))
	assert.True(t, b.IsActive())
	require.NoError(t, b.Commit(ctx))
	assert.False(t, a.IsActive())
}

func TestTx_ActiveFollowsHandle(t *testing.T) {
	ctx := context.Background()
	conn := newFakeConn()
	tx := testTx(conn)
	require.NoError(t, tx.Begin(ctx))

	conn.closed = true
	assert.False(t, tx.IsActive())
	require.ErrorIs(t, tx.Commit(ctx), ErrTxNotActive)
}

func TestTx_RollbackIfActive(t *testing.T) {
	ctx := context.Background()

	t.Run("inactive is a no-op", func(t *testing.T) {
		conn := newFakeConn()
		require.NoError(t, testTx(conn).RollbackIfActive(ctx))
		assert.Empty(t, conn.calls)
	})
	t.Run("active rolls back", func(t *testing.T) {
		conn := newFakeConn()
		tx := testTx(conn)
		require.NoError(t, tx.Begin(ctx))
		require.NoError(t, tx.RollbackIfActive(ctx))
		assert.Equal(t, 1, conn.count("rollback"))
		assert.True(t, conn.AutoCommit())
	})
	t.Run("driver error propagates", func(t *testing.T) {
		conn := newFakeConn()
		driverErr := errors.New("broken pipe")
		conn.rollbackErr = driverErr
		tx := testTx(conn)
		require.NoError(t, tx.Begin(ctx))
		require.Same(t, driverErr, tx.RollbackIfActive(ctx))
	})
}

func TestTx_Hooks(t *testing.T) {
	ctx := context.Background()
	hooks := &countingHooks{}
	conn := newFakeConn()

	tx := newTx(conn, hooks, zap.NewNop())
	require.NoError(t, tx.Begin(ctx))
	require.NoError(t, tx.Commit(ctx))
	tx = newTx(conn, hooks, zap.NewNop())
	require.NoError(t, tx.Begin(ctx))
	require.NoError(t, tx.Rollback(ctx))

	assert.Equal(t, 2, hooks.begins)
	assert.Equal(t, 1, hooks.commits)
	assert.Equal(t, 1, hooks.rollbacks)
}

func TestTxState_String(t *testing.T) {
	assert.Equal(t, "not-begun", TxNotBegun.String())
	assert.Equal(t, "active", TxActive.String())
	assert.Equal(t, "committed", TxCommitted.String())
	assert.Equal(t, "rolled-back", TxRolledBack.String())
	assert.Equal(t, "failed", TxFailed.String())
	assert.Equal(t, "unknown", TxState(42).String())
}
