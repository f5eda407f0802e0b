package session

import (
	"errors"
	"fmt"
)

// ErrIllegalState matches every misuse of the transaction state machine.
var ErrIllegalState = errors.New("illegal state")

var (
	ErrCannotBegin      = illegalState("cannot start a new transaction")
	ErrTxNotActive      = illegalState("transaction is not active")
	ErrTxAlreadyStarted = illegalState("transaction is already started")
	ErrConnUnavailable  = illegalState("connection is not available")
	ErrNoImplicitDB     = illegalState("implicit DB instance required")
)

type illegalStateError struct {
	msg string
}

func illegalState(msg string) error {
	return &illegalStateError{msg: msg}
}

func (e *illegalStateError) Error() string { return e.msg }

func (e *illegalStateError) Is(target error) bool { return target == ErrIllegalState }

// IsIllegalState reports whether err is a state machine misuse rather than a
// driver failure.
func IsIllegalState(err error) bool {
	return errors.Is(err, ErrIllegalState)
}

// RollbackError is returned by LocalTx when the unit of work failed and the
// rollback that followed failed too. Both errors stay reachable through
// errors.Is and errors.As.
type RollbackError struct {
	Err         error
	RollbackErr error
}

func (e *RollbackError) Error() string {
	return fmt.Sprintf("%v (rollback failed: %v)", e.Err, e.RollbackErr)
}

func (e *RollbackError) Unwrap() []error {
	return []error{e.Err, e.RollbackErr}
}
