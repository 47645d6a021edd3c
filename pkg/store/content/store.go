// Package content reads, writes and removes the payloads of logical files.
//
// The metadata store is the source of truth for the type of an address:
// every operation resolves the metadata record first and dispatches on
// its type. A directory has no payload of its own; reading one lists the
// physical directory (see VisibleChildren).
//
// Error Handling:
//   - hidden addresses: no-op, without touching the remote
//   - transport failures: logged, nil result (RemoveFailed for Remove)
//   - contract violations: *file.Error, returned to the caller
package content

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/marmos91/dittodocs/internal/logger"
	"github.com/marmos91/dittodocs/pkg/connection"
	"github.com/marmos91/dittodocs/pkg/file"
	"github.com/marmos91/dittodocs/pkg/store/metadata"
	"github.com/marmos91/dittodocs/pkg/transport"
)

// RemoveStatus is the outcome of Remove.
type RemoveStatus int

const (
	// RemoveSkipped: hidden address, or nothing recorded at the address
	RemoveSkipped RemoveStatus = iota

	// Removed: payload and sidecar are gone
	Removed

	// RemoveFailed: a remote call failed (logged)
	RemoveFailed
)

func (s RemoveStatus) String() string {
	switch s {
	case Removed:
		return "removed"
	case RemoveFailed:
		return "failed"
	default:
		return "skipped"
	}
}

// Config contains content store settings.
type Config struct {
	// Timeout bounds each store operation (0 = no timeout)
	Timeout time.Duration
}

// Store handles file payloads through the shared session pool.
//
// Thread Safety:
// Store is safe for concurrent use. Concurrent writers of one address race
// at the remote and the last upload wins.
type Store struct {
	pool    *connection.Pool
	meta    *metadata.Store
	timeout time.Duration
}

// New creates a content store. Physical paths are resolved by meta, so
// both stores share one root.
func New(pool *connection.Pool, meta *metadata.Store, cfg Config) *Store {
	return &Store{
		pool:    pool,
		meta:    meta,
		timeout: cfg.Timeout,
	}
}

// Metadata returns the metadata store backing s.
func (s *Store) Metadata() *metadata.Store {
	return s.meta
}

// Read returns the metadata and payload of a, or nil when a is hidden, has
// no metadata, or the remote could not be read (logged).
func (s *Store) Read(ctx context.Context, a file.Address) (*file.File, error) {
	if err := file.ValidatePath(a); err != nil {
		return nil, err
	}
	if file.IsHidden(a) {
		return nil, nil
	}

	f, err := connection.Run(ctx, s.pool, s.timeout, func(ctx context.Context, t transport.Transport) (*file.File, error) {
		l, err := s.meta.LookupOn(ctx, t, a)
		if err != nil || l.Meta == nil {
			return nil, err
		}

		data, err := s.readData(ctx, t, a, l.Meta.Type)
		if err != nil {
			return nil, err
		}
		return &file.File{Meta: *l.Meta, Data: data}, nil
	})
	if err != nil {
		if file.IsContractViolation(err) {
			return nil, err
		}
		logger.Error("Failed to read %s: %v", a, err)
		return nil, nil
	}
	return f, nil
}

func (s *Store) readData(ctx context.Context, t transport.Transport, a file.Address, typ file.Type) (file.Data, error) {
	physical := s.meta.PhysicalPath(a)

	if typ == file.TypeDirectory {
		entries, err := t.List(ctx, physical)
		if err != nil {
			return nil, err
		}
		return file.Directory{Children: VisibleChildren(a, entries)}, nil
	}

	raw, err := t.Get(ctx, physical)
	if err != nil {
		return nil, err
	}
	return file.Decode(typ, raw)
}

// Write stores d at a as a file of type typ and returns the stored file.
//
// The payload is validated against typ before anything is sent, and typ
// must match the type already recorded for a, if any. A directory write
// only creates the physical directory. The metadata record is written
// last, keeping its created timestamp and extra data.
//
// Returns nil for hidden addresses and on transport failures (logged).
func (s *Store) Write(ctx context.Context, a file.Address, typ file.Type, d file.Data) (*file.File, error) {
	if err := file.ValidatePath(a); err != nil {
		return nil, err
	}
	if file.IsHidden(a) {
		return nil, nil
	}

	if err := file.Validate(typ, d); err != nil {
		return nil, withPath(err, s.meta.PhysicalPath(a))
	}

	f, err := connection.Run(ctx, s.pool, s.timeout, func(ctx context.Context, t transport.Transport) (*file.File, error) {
		// ====================================================================
		// Step 1: Type immutability
		// ====================================================================

		l, err := s.meta.LookupOn(ctx, t, a)
		if err != nil {
			return nil, err
		}
		var extra []byte
		if l.Meta != nil {
			if l.Meta.Type != typ {
				return nil, file.NewError(file.ErrTypeMismatch,
					fmt.Sprintf("cannot write %s over %s file", typ, l.Meta.Type), s.meta.PhysicalPath(a))
			}
			extra = l.Meta.Extra
		}

		// ====================================================================
		// Step 2: Payload
		// ====================================================================

		physical := s.meta.PhysicalPath(a)
		if typ == file.TypeDirectory {
			if err := t.Mkdir(ctx, physical, true); err != nil {
				return nil, err
			}
		} else {
			raw, err := file.Encode(d)
			if err != nil {
				return nil, withPath(err, physical)
			}
			if err := t.Mkdir(ctx, transport.Parent(physical), true); err != nil {
				return nil, err
			}
			if err := t.Put(ctx, physical, raw); err != nil {
				return nil, err
			}
		}

		// ====================================================================
		// Step 3: Metadata
		// ====================================================================

		meta, err := s.meta.Commit(ctx, t, a, l.Meta, file.Meta{Address: a, Type: typ, Extra: extra})
		if err != nil {
			return nil, err
		}
		return &file.File{Meta: *meta, Data: d}, nil
	})
	if err != nil {
		if file.IsContractViolation(err) {
			return nil, err
		}
		logger.Error("Failed to write %s: %v", a, err)
		return nil, nil
	}

	logger.Debug("Wrote %s file %s", typ, a)
	return f, nil
}

// Remove deletes the payload of a and its sidecar. Directories are removed
// with their whole subtree.
//
// The sidecar is left alone when the record was synthesized (there is
// none) or when it lives inside the removed directory.
func (s *Store) Remove(ctx context.Context, a file.Address) (RemoveStatus, error) {
	if err := file.ValidatePath(a); err != nil {
		return RemoveFailed, err
	}
	if file.IsHidden(a) {
		return RemoveSkipped, nil
	}

	status, err := connection.Run(ctx, s.pool, s.timeout, func(ctx context.Context, t transport.Transport) (RemoveStatus, error) {
		l, err := s.meta.LookupOn(ctx, t, a)
		if err != nil {
			return RemoveFailed, err
		}
		if l.Meta == nil {
			return RemoveSkipped, nil
		}

		physical := s.meta.PhysicalPath(a)
		if l.Meta.Type == file.TypeDirectory {
			if err := t.RemoveAll(ctx, physical); err != nil {
				return RemoveFailed, err
			}
		} else {
			if err := t.Remove(ctx, physical); err != nil && !transport.IsNotFound(err) {
				return RemoveFailed, err
			}
		}

		if l.Source == metadata.SourceSidecar && !s.sidecarInside(a, l.Meta.Type) {
			if err := s.meta.DeleteSidecar(ctx, t, a); err != nil {
				return RemoveFailed, err
			}
		}
		return Removed, nil
	})
	if err != nil {
		if file.IsContractViolation(err) {
			return RemoveFailed, err
		}
		logger.Error("Failed to remove %s: %v", a, err)
		return RemoveFailed, nil
	}

	if status == Removed {
		logger.Debug("Removed %s", a)
	}
	return status, nil
}

// sidecarInside reports whether the sidecar of a directory lives inside
// the directory itself, and so went away with its subtree.
func (s *Store) sidecarInside(a file.Address, typ file.Type) bool {
	if typ != file.TypeDirectory {
		return false
	}
	return strings.HasPrefix(s.meta.SidecarPath(a), s.meta.PhysicalPath(a)+"/")
}

// withPath fills in the path of a contract violation raised by the pure
// file model.
func withPath(err error, path string) error {
	if fe, ok := err.(*file.Error); ok && fe.Path == "" {
		return file.NewError(fe.Code, fe.Message, path)
	}
	return err
}
