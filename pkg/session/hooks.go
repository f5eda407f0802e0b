package session

import "context"

// Hooks observes transaction lifecycle events. Each callback runs after the
// driver call succeeded.
type Hooks interface {
	AfterBegin(ctx context.Context)
	AfterCommit(ctx context.Context)
	AfterRollback(ctx context.Context)
}

// NopHooks implements Hooks with no-ops; embed it to override a subset.
type NopHooks struct{}

func (NopHooks) AfterBegin(context.Context)    {}
func (NopHooks) AfterCommit(context.Context)   {}
func (NopHooks) AfterRollback(context.Context) {}
