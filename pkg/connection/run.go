package connection

import (
	"context"
	"errors"
	"time"

	"github.com/marmos91/dittodocs/internal/logger"
	"github.com/marmos91/dittodocs/pkg/transport"
)

// Run acquires the session and runs fn on it under a per-operation
// timeout (0 = no timeout beyond ctx).
//
// When the operation times out, the session it used is invalidated: a
// stalled remote call may still be in flight, and the next operation must
// not queue behind it. Cancellation of the caller's own context does not
// invalidate the session.
func Run[T any](ctx context.Context, pool *Pool, timeout time.Duration, fn func(ctx context.Context, t transport.Transport) (T, error)) (T, error) {
	var zero T

	opCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		opCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	session, err := pool.Acquire(opCtx)
	if err != nil {
		return zero, err
	}

	result, err := fn(opCtx, session)
	if err != nil && errors.Is(opCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		logger.Warn("Remote operation timed out after %s, resetting session", timeout)
		pool.InvalidateSession(session)
		return zero, err
	}
	return result, err
}

// Do is Run for operations without a result.
func Do(ctx context.Context, pool *Pool, timeout time.Duration, fn func(ctx context.Context, t transport.Transport) error) error {
	_, err := Run(ctx, pool, timeout, func(ctx context.Context, t transport.Transport) (struct{}, error) {
		return struct{}{}, fn(ctx, t)
	})
	return err
}
