// Package gc removes orphaned sidecars from the remote store.
//
// A sidecar "X.meta" is orphaned when X no longer exists. This can occur
// due to:
//   - A crash or lost connection between deleting a payload and its sidecar
//   - Payloads deleted out of band on the remote
//   - Failed remove operations (RemoveFailed)
//
// Orphans are harmless to readers (the record points at nothing) but keep
// the address typed: a later write with another type would be refused.
// Directory-form sidecars (".meta" inside a directory) live and die with
// their directory and are never orphaned.
package gc

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/marmos91/dittodocs/internal/logger"
	"github.com/marmos91/dittodocs/pkg/connection"
	"github.com/marmos91/dittodocs/pkg/file"
	"github.com/marmos91/dittodocs/pkg/transport"
)

// Sweeper periodically scans document trees for orphaned sidecars and
// deletes them.
//
// Thread Safety: Safe for concurrent use.
type Sweeper struct {
	pool   *connection.Pool
	root   string
	config Config

	stopOnce sync.Once
	started  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// Config contains configuration for the sweeper.
type Config struct {
	// Enabled controls whether background sweeping is active
	Enabled bool

	// Interval is how often to sweep (default: 24h)
	Interval time.Duration

	// Documents lists the documents to sweep. Empty means every document
	// under the root.
	Documents []string

	// Timeout bounds each remote call of a sweep (default: 30s)
	Timeout time.Duration

	// DryRun mode logs what would be deleted without deleting
	DryRun bool

	// Metrics receives sweep results (optional)
	Metrics Metrics
}

// Metrics receives the outcome of every document sweep.
type Metrics interface {
	ObserveSweep(report *Report, err error)
}

// NewSweeper creates a sweeper over the documents stored under root.
//
// The sweeper is initialized but not started. Call Start() to begin
// background sweeping.
func NewSweeper(pool *connection.Pool, root string, config Config) *Sweeper {
	if config.Interval == 0 {
		config.Interval = 24 * time.Hour
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	return &Sweeper{
		pool:   pool,
		root:   root,
		config: config,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start begins background sweeping at the configured interval.
func (s *Sweeper) Start() {
	if !s.config.Enabled {
		logger.Info("Sidecar sweeper disabled")
		return
	}

	logger.Info("Starting sidecar sweeper: interval=%s dry_run=%v", s.config.Interval, s.config.DryRun)
	s.started = true
	go s.worker()
}

// Stop stops the sweeper and waits for an in-progress sweep to finish.
// Safe to call multiple times.
//
// Returns ctx.Err() if ctx expires before the worker exits.
func (s *Sweeper) Stop(ctx context.Context) error {
	if !s.started {
		return nil
	}

	s.stopOnce.Do(func() {
		logger.Info("Stopping sidecar sweeper...")
		close(s.stopCh)
	})

	select {
	case <-s.doneCh:
		return nil
	case <-ctx.Done():
		logger.Warn("Sidecar sweeper shutdown timeout")
		return ctx.Err()
	}
}

// RunNow sweeps every configured document immediately and returns the
// combined report.
func (s *Sweeper) RunNow(ctx context.Context) (*Report, error) {
	docs := s.config.Documents
	if len(docs) == 0 {
		var err error
		docs, err = s.documents(ctx)
		if err != nil {
			return nil, err
		}
	}

	total := &Report{StartTime: time.Now()}
	for _, doc := range docs {
		r, err := s.Sweep(ctx, doc)
		if r != nil {
			total.merge(r)
		}
		if err != nil {
			total.EndTime = time.Now()
			return total, err
		}
	}
	total.EndTime = time.Now()
	return total, nil
}

func (s *Sweeper) worker() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			report, err := s.RunNow(ctx)
			cancel()

			if err != nil {
				logger.Error("Sidecar sweep failed: %v", err)
			} else {
				logger.Info("Sidecar sweep completed: %s", report.Summary())
			}

		case <-s.stopCh:
			return
		}
	}
}

// documents lists the document directories under the root.
func (s *Sweeper) documents(ctx context.Context) ([]string, error) {
	entries, err := connection.Run(ctx, s.pool, s.config.Timeout, func(ctx context.Context, t transport.Transport) ([]transport.Entry, error) {
		return t.List(ctx, s.root)
	})
	if err != nil {
		if transport.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	var docs []string
	for _, e := range entries {
		if e.IsDir && !file.IsHiddenName(e.Name) {
			docs = append(docs, e.Name)
		}
	}
	return docs, nil
}

// Sweep scans document docID and deletes its orphaned sidecars.
//
// The algorithm:
//  1. Walk the document tree, one listing per directory
//  2. In each listing, a sidecar "X.meta" is orphaned if X is not listed
//  3. Delete the orphans (unless DryRun)
//
// A failed delete is counted and logged; a failed listing aborts the
// sweep.
func (s *Sweeper) Sweep(ctx context.Context, docID string) (*Report, error) {
	report, err := s.sweep(ctx, docID)
	if s.config.Metrics != nil {
		s.config.Metrics.ObserveSweep(report, err)
	}
	return report, err
}

func (s *Sweeper) sweep(ctx context.Context, docID string) (*Report, error) {
	report := &Report{StartTime: time.Now()}

	// ========================================================================
	// Phase 1: Find orphans
	// ========================================================================

	pending := []string{transport.Join(s.root, docID)}
	for len(pending) > 0 {
		if err := ctx.Err(); err != nil {
			report.EndTime = time.Now()
			return report, err
		}

		dir := pending[len(pending)-1]
		pending = pending[:len(pending)-1]

		entries, err := connection.Run(ctx, s.pool, s.config.Timeout, func(ctx context.Context, t transport.Transport) ([]transport.Entry, error) {
			return t.List(ctx, dir)
		})
		if err != nil {
			report.EndTime = time.Now()
			return report, fmt.Errorf("failed to list %s: %w", dir, err)
		}
		report.Directories++

		present := make(map[string]struct{}, len(entries))
		for _, e := range entries {
			present[e.Name] = struct{}{}
			if e.IsDir {
				pending = append(pending, transport.Join(dir, e.Name))
			}
		}

		for _, e := range entries {
			if e.IsDir || !strings.HasSuffix(e.Name, file.MetaSuffix) || e.Name == file.MetaSuffix {
				continue
			}
			report.Sidecars++

			if _, ok := present[strings.TrimSuffix(e.Name, file.MetaSuffix)]; !ok {
				report.Orphans = append(report.Orphans, transport.Join(dir, e.Name))
			}
		}
	}

	if len(report.Orphans) == 0 {
		report.EndTime = time.Now()
		return report, nil
	}

	logger.Info("Sweep %s: found %d orphaned sidecars", docID, len(report.Orphans))

	if s.config.DryRun {
		for i, p := range report.Orphans {
			if i < 10 {
				logger.Info("  - %s", p)
			}
		}
		if len(report.Orphans) > 10 {
			logger.Info("  ... and %d more", len(report.Orphans)-10)
		}
		report.EndTime = time.Now()
		return report, nil
	}

	// ========================================================================
	// Phase 2: Delete them
	// ========================================================================

	for _, p := range report.Orphans {
		if err := ctx.Err(); err != nil {
			report.EndTime = time.Now()
			return report, err
		}

		err := connection.Do(ctx, s.pool, s.config.Timeout, func(ctx context.Context, t transport.Transport) error {
			return t.Remove(ctx, p)
		})
		if err != nil && !transport.IsNotFound(err) {
			logger.Debug("Sweep: failed to delete %s: %v", p, err)
			report.Failed++
			continue
		}
		report.Deleted++
	}

	report.EndTime = time.Now()
	logger.Info("Sweep %s: deleted %d sidecars, %d failed, duration=%s",
		docID, report.Deleted, report.Failed, report.Duration())

	return report, nil
}

// Report contains statistics from a sweep.
type Report struct {
	StartTime   time.Time // When the sweep started
	EndTime     time.Time // When the sweep ended
	Directories int       // Directories listed
	Sidecars    int       // File sidecars examined
	Deleted     int       // Orphans deleted
	Failed      int       // Orphans that failed to delete

	// Orphans holds the physical paths of the orphaned sidecars found
	Orphans []string
}

func (r *Report) merge(o *Report) {
	r.Directories += o.Directories
	r.Sidecars += o.Sidecars
	r.Deleted += o.Deleted
	r.Failed += o.Failed
	r.Orphans = append(r.Orphans, o.Orphans...)
}

// Duration returns the total sweep duration.
func (r *Report) Duration() time.Duration {
	if r.EndTime.IsZero() {
		return time.Since(r.StartTime)
	}
	return r.EndTime.Sub(r.StartTime)
}

// Summary returns a human-readable summary of the sweep.
func (r *Report) Summary() string {
	return fmt.Sprintf("directories=%d sidecars=%d orphaned=%d deleted=%d failed=%d duration=%s",
		r.Directories, r.Sidecars, len(r.Orphans), r.Deleted, r.Failed, r.Duration())
}
