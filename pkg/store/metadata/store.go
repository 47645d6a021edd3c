// Package metadata manages the sidecar records of logical files.
//
// Every non-directory logical file "<doc>/<path>" has a JSON sidecar
// "<doc>/<path>.meta" holding its file.Meta. Directory-form addresses keep
// theirs inside the directory ("<doc>/<dir>/.meta"). When a sidecar is
// missing, a record may be synthesized from the address shape (see
// file.InferType) as long as the physical object exists.
//
// Error Handling:
//   - hidden addresses: (nil, nil), without touching the remote
//   - transport failures: logged, (nil, nil)
//   - contract violations: *file.Error, returned to the caller
package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/marmos91/dittodocs/internal/logger"
	"github.com/marmos91/dittodocs/pkg/connection"
	"github.com/marmos91/dittodocs/pkg/file"
	"github.com/marmos91/dittodocs/pkg/transport"
)

// Source tells where a metadata record came from.
type Source int

const (
	// SourceNone: no record exists
	SourceNone Source = iota

	// SourceSidecar: the record was read from its sidecar
	SourceSidecar

	// SourceSynthesized: the sidecar is missing and the record was inferred
	SourceSynthesized
)

func (s Source) String() string {
	switch s {
	case SourceSidecar:
		return "sidecar"
	case SourceSynthesized:
		return "synthesized"
	default:
		return "none"
	}
}

// Lookup is the result of resolving the metadata of an address.
type Lookup struct {
	// Meta is nil when Source is SourceNone
	Meta *file.Meta

	Source Source
}

// Config contains metadata store settings.
type Config struct {
	// Root is the remote directory holding every document
	Root string

	// Timeout bounds each store operation (0 = no timeout)
	Timeout time.Duration

	// Clock returns the current time (default: time.Now)
	Clock func() time.Time
}

// Store reads and writes sidecar records through the shared session pool.
//
// Thread Safety:
// Store is safe for concurrent use. The read-validate-write sequence of
// SetMeta is not atomic: two concurrent writers of the same address race
// and the last one wins. Callers needing more serialize per address.
type Store struct {
	pool    *connection.Pool
	root    string
	timeout time.Duration
	now     func() time.Time
}

// New creates a metadata store on top of pool.
func New(pool *connection.Pool, cfg Config) *Store {
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	return &Store{
		pool:    pool,
		root:    cfg.Root,
		timeout: cfg.Timeout,
		now:     now,
	}
}

// PhysicalPath returns the remote path of the content of a.
func (s *Store) PhysicalPath(a file.Address) string {
	return transport.Join(s.root, file.FilePath(a))
}

// SidecarPath returns the remote path of the sidecar of a.
func (s *Store) SidecarPath(a file.Address) string {
	return transport.Join(s.root, file.SidecarPath(a))
}

// GetMeta returns the metadata record of a, read from its sidecar or
// synthesized. It returns nil when there is none, when a is hidden, or when
// the remote could not be reached (logged).
func (s *Store) GetMeta(ctx context.Context, a file.Address) (*file.Meta, error) {
	if err := file.ValidatePath(a); err != nil {
		return nil, err
	}
	if file.IsHidden(a) {
		return nil, nil
	}

	l, err := s.Lookup(ctx, a)
	if err != nil {
		if file.IsContractViolation(err) {
			return nil, err
		}
		logger.Error("Failed to read metadata of %s: %v", a, err)
		return nil, nil
	}
	return l.Meta, nil
}

// Lookup resolves the metadata of a and reports its source. Unlike
// GetMeta, transport failures are returned rather than logged, so callers
// can tell "absent" from "unknown".
func (s *Store) Lookup(ctx context.Context, a file.Address) (Lookup, error) {
	if err := file.ValidatePath(a); err != nil {
		return Lookup{}, err
	}
	if file.IsHidden(a) {
		return Lookup{}, nil
	}

	return connection.Run(ctx, s.pool, s.timeout, func(ctx context.Context, t transport.Transport) (Lookup, error) {
		return s.LookupOn(ctx, t, a)
	})
}

// LookupOn is Lookup on an already acquired session. The caller checks
// for hidden addresses.
func (s *Store) LookupOn(ctx context.Context, t transport.Transport, a file.Address) (Lookup, error) {
	sidecar := s.SidecarPath(a)

	raw, err := t.Get(ctx, sidecar)
	if err == nil {
		meta, derr := decodeMeta(raw, sidecar)
		if derr != nil {
			return Lookup{}, derr
		}
		return Lookup{Meta: meta, Source: SourceSidecar}, nil
	}
	if !transport.IsNotFound(err) {
		return Lookup{}, err
	}

	// ========================================================================
	// Sidecar missing: legacy synthesis from the address shape
	// ========================================================================

	typ, ok := file.InferType(a)
	if !ok {
		return Lookup{}, nil
	}

	entry, err := t.Stat(ctx, s.PhysicalPath(a))
	if err != nil {
		if transport.IsNotFound(err) {
			return Lookup{}, nil
		}
		return Lookup{}, err
	}
	if entry.IsDir != (typ == file.TypeDirectory) {
		return Lookup{}, nil
	}

	stamp := entry.ModTime
	if stamp.IsZero() {
		stamp = s.now()
	}

	logger.Debug("Synthesized %s metadata for %s", typ, a)
	return Lookup{
		Meta: &file.Meta{
			Address: a,
			Type:    typ,
			Created: stamp,
			Updated: stamp,
		},
		Source: SourceSynthesized,
	}, nil
}

// SetMeta persists the metadata record of a and returns the stored
// record.
//
// The previous record, if any, is loaded first and a failed load aborts
// the write. Then:
//   - no previous record: m is stored with created = updated = now
//   - m.Type differs from the stored type: file.ErrTypeMismatch
//   - m.Address differs from the stored address: file.ErrAddressMismatch
//   - otherwise the previous record is kept, updated is set to now and
//     extra is replaced by m.Extra
//
// A zero m.Address defaults to a; any other address must equal a.
func (s *Store) SetMeta(ctx context.Context, a file.Address, m file.Meta) (*file.Meta, error) {
	if err := file.ValidatePath(a); err != nil {
		return nil, err
	}
	if file.IsHidden(a) {
		return nil, nil
	}

	meta, err := connection.Run(ctx, s.pool, s.timeout, func(ctx context.Context, t transport.Transport) (*file.Meta, error) {
		return s.SetMetaOn(ctx, t, a, m)
	})
	if err != nil {
		if file.IsContractViolation(err) {
			return nil, err
		}
		logger.Error("Failed to write metadata of %s: %v", a, err)
		return nil, nil
	}
	return meta, nil
}

// SetMetaOn is SetMeta on an already acquired session. Transport failures
// are returned, not logged. The caller checks for hidden addresses.
func (s *Store) SetMetaOn(ctx context.Context, t transport.Transport, a file.Address, m file.Meta) (*file.Meta, error) {
	m, err := s.check(a, m)
	if err != nil {
		return nil, err
	}

	old, err := s.LookupOn(ctx, t, a)
	if err != nil {
		return nil, err
	}
	return s.Commit(ctx, t, a, old.Meta, m)
}

// Commit writes m over prev, the record resolved for a earlier on the same
// session (nil if there was none), with the SetMeta rules. It lets a
// caller that already looked the record up skip a second round trip.
func (s *Store) Commit(ctx context.Context, t transport.Transport, a file.Address, prev *file.Meta, m file.Meta) (*file.Meta, error) {
	m, err := s.check(a, m)
	if err != nil {
		return nil, err
	}

	next, err := s.merge(a, prev, m)
	if err != nil {
		return nil, err
	}

	if err := s.put(ctx, t, a, next); err != nil {
		return nil, err
	}
	return next, nil
}

// check defaults the address of m and validates it against a.
func (s *Store) check(a file.Address, m file.Meta) (file.Meta, error) {
	if m.Address == (file.Address{}) {
		m.Address = a
	}
	if !m.Type.Valid() {
		return m, file.NewError(file.ErrInvalidType, fmt.Sprintf("unknown file type %q", m.Type), s.SidecarPath(a))
	}
	if !m.Address.Equal(a) {
		return m, file.NewError(file.ErrAddressMismatch,
			fmt.Sprintf("meta address %s does not match %s", m.Address, a), s.SidecarPath(a))
	}
	return m, nil
}

// merge applies m onto the previous record.
func (s *Store) merge(a file.Address, old *file.Meta, m file.Meta) (*file.Meta, error) {
	now := s.now().UTC()

	if old == nil {
		return &file.Meta{
			Address: m.Address,
			Type:    m.Type,
			Created: now,
			Updated: now,
			Extra:   m.Extra,
		}, nil
	}

	if old.Type != m.Type {
		return nil, file.NewError(file.ErrTypeMismatch,
			fmt.Sprintf("file type mismatch: stored %s, got %s", old.Type, m.Type), s.SidecarPath(a))
	}
	if !old.Address.Equal(m.Address) {
		return nil, file.NewError(file.ErrAddressMismatch,
			fmt.Sprintf("file address mismatch: stored %s, got %s", old.Address, m.Address), s.SidecarPath(a))
	}

	next := *old
	next.Updated = now
	next.Extra = m.Extra
	return &next, nil
}

func (s *Store) put(ctx context.Context, t transport.Transport, a file.Address, m *file.Meta) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	return t.Put(ctx, s.SidecarPath(a), raw)
}

// DeleteSidecar removes the sidecar of a. A missing sidecar is not an
// error.
func (s *Store) DeleteSidecar(ctx context.Context, t transport.Transport, a file.Address) error {
	err := t.Remove(ctx, s.SidecarPath(a))
	if err != nil && !transport.IsNotFound(err) {
		return err
	}
	return nil
}

func decodeMeta(raw []byte, sidecar string) (*file.Meta, error) {
	var m file.Meta
	if err := json.Unmarshal(raw, &m); err != nil {
		var fe *file.Error
		if errors.As(err, &fe) {
			fe.Path = sidecar
			return nil, fe
		}
		return nil, file.NewError(file.ErrCorruptMeta, fmt.Sprintf("corrupt metadata: %v", err), sidecar)
	}
	return &m, nil
}
