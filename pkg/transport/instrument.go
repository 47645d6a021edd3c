package transport

import (
	"context"
	"time"

	"github.com/marmos91/dittodocs/internal/ratelimiter"
)

// Metrics receives one observation per transport call.
//
// Implementations must be safe for concurrent use. A nil Metrics disables
// collection.
type Metrics interface {
	// ObserveOperation records the outcome of a call. err is nil on
	// success.
	ObserveOperation(op Op, duration time.Duration, err error)
}

// InstrumentOptions configures Instrument.
type InstrumentOptions struct {
	// Metrics collects per-operation latency and errors (optional)
	Metrics Metrics

	// Limiter throttles calls against the remote service (optional)
	Limiter *ratelimiter.RateLimiter
}

// Instrument wraps t with metrics collection and rate limiting.
//
// When opts carries neither metrics nor limiter, t is returned unchanged.
func Instrument(t Transport, opts InstrumentOptions) Transport {
	if opts.Metrics == nil && (opts.Limiter == nil || opts.Limiter.Unlimited()) {
		return t
	}
	return &instrumented{next: t, metrics: opts.Metrics, limiter: opts.Limiter}
}

type instrumented struct {
	next    Transport
	metrics Metrics
	limiter *ratelimiter.RateLimiter
}

// do waits for a rate limiter token, runs fn and records the outcome.
// Time spent waiting for a token is not part of the observed duration.
func (i *instrumented) do(ctx context.Context, op Op, fn func() error) error {
	if i.limiter != nil {
		if err := i.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	start := time.Now()
	err := fn()
	if i.metrics != nil {
		i.metrics.ObserveOperation(op, time.Since(start), err)
	}
	return err
}

func (i *instrumented) Get(ctx context.Context, p string) ([]byte, error) {
	var data []byte
	err := i.do(ctx, OpGet, func() error {
		var err error
		data, err = i.next.Get(ctx, p)
		return err
	})
	return data, err
}

func (i *instrumented) Put(ctx context.Context, p string, data []byte) error {
	return i.do(ctx, OpPut, func() error {
		return i.next.Put(ctx, p, data)
	})
}

func (i *instrumented) List(ctx context.Context, p string) ([]Entry, error) {
	var entries []Entry
	err := i.do(ctx, OpList, func() error {
		var err error
		entries, err = i.next.List(ctx, p)
		return err
	})
	return entries, err
}

func (i *instrumented) Stat(ctx context.Context, p string) (*Entry, error) {
	var entry *Entry
	err := i.do(ctx, OpStat, func() error {
		var err error
		entry, err = i.next.Stat(ctx, p)
		return err
	})
	return entry, err
}

func (i *instrumented) Mkdir(ctx context.Context, p string, recursive bool) error {
	return i.do(ctx, OpMkdir, func() error {
		return i.next.Mkdir(ctx, p, recursive)
	})
}

func (i *instrumented) Remove(ctx context.Context, p string) error {
	return i.do(ctx, OpRemove, func() error {
		return i.next.Remove(ctx, p)
	})
}

func (i *instrumented) RemoveAll(ctx context.Context, p string) error {
	return i.do(ctx, OpRemoveAll, func() error {
		return i.next.RemoveAll(ctx, p)
	})
}

// Ping bypasses the limiter: probes must not queue behind regular traffic.
func (i *instrumented) Ping(ctx context.Context) error {
	start := time.Now()
	err := i.next.Ping(ctx)
	if i.metrics != nil {
		i.metrics.ObserveOperation(OpPing, time.Since(start), err)
	}
	return err
}

func (i *instrumented) Close() error {
	return i.next.Close()
}
