// Package connection owns the single shared remote session.
//
// Every store operation obtains the session through Pool.Acquire, which
// serializes (re)connection: the liveness probe, the teardown of a dead
// session and the dial of a new one all happen under one mutex, so
// concurrent callers never race to open duplicate sessions. Operations on
// the acquired session are not serialized.
package connection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/marmos91/dittodocs/internal/logger"
	"github.com/marmos91/dittodocs/pkg/transport"
)

// ErrPoolClosed is returned by Acquire after Close.
var ErrPoolClosed = errors.New("connection pool closed")

// State is the lifecycle state of the pooled session.
type State int32

const (
	// Disconnected: no session yet, or the pool was closed
	Disconnected State = iota

	// Connecting: a dial is in progress
	Connecting

	// Ready: the session passed its last probe or was just dialed
	Ready

	// Broken: the session failed (probe, dial or invalidation) and will be
	// replaced by the next Acquire
	Broken
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Ready:
		return "ready"
	case Broken:
		return "broken"
	default:
		return "unknown"
	}
}

// Dialer opens a new remote session.
type Dialer interface {
	Dial(ctx context.Context) (transport.Transport, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context) (transport.Transport, error)

// Dial implements Dialer.
func (f DialerFunc) Dial(ctx context.Context) (transport.Transport, error) {
	return f(ctx)
}

// Metrics receives pool events. Implementations must be safe for
// concurrent use.
type Metrics interface {
	// RecordDial records a dial attempt; err is nil on success
	RecordDial(duration time.Duration, err error)

	// RecordProbeFailure records a failed liveness probe
	RecordProbeFailure()

	// SetState publishes the current state
	SetState(state State)
}

// Config contains pool tuning.
type Config struct {
	// ProbeInterval limits liveness probes to one per interval. 0 probes
	// on every Acquire.
	ProbeInterval time.Duration

	// DialTimeout bounds a single dial (0 = bounded by the caller context)
	DialTimeout time.Duration

	// Metrics receives pool events (optional)
	Metrics Metrics
}

// Pool holds at most one live session.
//
// The zero value is not usable; create pools with NewPool. The pool is
// owned by the composition root and injected into the stores.
type Pool struct {
	mu sync.Mutex

	dialer  Dialer
	config  Config
	session transport.Transport
	state   State

	// lastProbe is the time of the last successful probe or dial
	lastProbe time.Time

	closed bool
}

// NewPool creates a pool that dials sessions with dialer. No connection is
// opened until the first Acquire.
func NewPool(dialer Dialer, cfg Config) *Pool {
	p := &Pool{
		dialer: dialer,
		config: cfg,
		state:  Disconnected,
	}
	if cfg.Metrics != nil {
		cfg.Metrics.SetState(Disconnected)
	}
	return p
}

// setState transitions the state. Caller must hold p.mu.
func (p *Pool) setState(s State) {
	if p.state == s {
		return
	}
	logger.Debug("Connection state: %s -> %s", p.state, s)
	p.state = s
	if p.config.Metrics != nil {
		p.config.Metrics.SetState(s)
	}
}

// teardown closes the current session. Caller must hold p.mu.
func (p *Pool) teardown() {
	if p.session == nil {
		return
	}
	if err := p.session.Close(); err != nil {
		logger.Debug("Closing remote session: %v", err)
	}
	p.session = nil
}

// Acquire returns the shared session, (re)connecting when there is none,
// when it was invalidated, or when the liveness probe fails.
//
// Context Cancellation:
// The context bounds the probe and the dial. A cancelled caller leaves the
// pool in a consistent state (Broken, or Ready if the probe succeeded).
func (p *Pool) Acquire(ctx context.Context) (transport.Transport, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrPoolClosed
	}

	// ========================================================================
	// Step 1: Reuse the live session if it still answers
	// ========================================================================

	if p.session != nil && p.state == Ready {
		if p.config.ProbeInterval > 0 && time.Since(p.lastProbe) < p.config.ProbeInterval {
			return p.session, nil
		}

		err := p.session.Ping(ctx)
		if err == nil {
			p.lastProbe = time.Now()
			return p.session, nil
		}
		if ctx.Err() != nil {
			// The caller gave up; that says nothing about the session.
			return nil, ctx.Err()
		}

		logger.Warn("Remote session probe failed, reconnecting: %v", err)
		if p.config.Metrics != nil {
			p.config.Metrics.RecordProbeFailure()
		}
		p.setState(Broken)
	}

	// ========================================================================
	// Step 2: Replace the dead session
	// ========================================================================

	p.teardown()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.setState(Connecting)

	dialCtx := ctx
	if p.config.DialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, p.config.DialTimeout)
		defer cancel()
	}

	start := time.Now()
	session, err := p.dialer.Dial(dialCtx)
	if p.config.Metrics != nil {
		p.config.Metrics.RecordDial(time.Since(start), err)
	}
	if err != nil {
		p.setState(Broken)
		return nil, fmt.Errorf("failed to connect to remote: %w", err)
	}

	p.session = session
	p.lastProbe = time.Now()
	p.setState(Ready)
	logger.Info("Remote session established in %s", time.Since(start).Round(time.Millisecond))

	return session, nil
}

// Invalidate tears down the current session; the next Acquire reconnects.
func (p *Pool) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.invalidateLocked()
}

// InvalidateSession tears down session only if it is still the pooled
// one. A caller holding a stale handle cannot kill its replacement.
func (p *Pool) InvalidateSession(session transport.Transport) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.session == nil || p.session != session {
		return
	}
	p.invalidateLocked()
}

func (p *Pool) invalidateLocked() {
	if p.closed {
		return
	}
	p.teardown()
	p.setState(Broken)
}

// State returns the current lifecycle state.
func (p *Pool) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Close closes the session; further Acquire calls fail with
// ErrPoolClosed. Safe to call multiple times.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	var err error
	if p.session != nil {
		err = p.session.Close()
		p.session = nil
	}
	p.setState(Disconnected)
	return err
}
