// Package transport abstracts the remote file-transfer service backing the
// logical filesystem.
//
// A Transport is one remote session. It exposes a small, path-based
// filesystem surface (get, put, list, stat, mkdir, remove) that every
// backend (SFTP, S3, BadgerDB, in-memory) implements with the same
// semantics, verified by the shared suite in transport/testing.
//
// Paths are slash separated and relative to the backend root. Leading and
// trailing slashes are ignored; "" denotes the root directory.
package transport

import (
	"context"
	"errors"
	"path"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when the requested path does not exist.
	ErrNotFound = errors.New("no such file or directory")

	// ErrClosed is returned by every operation on a closed session.
	ErrClosed = errors.New("transport closed")

	// ErrNotDirectory is returned when listing a path that is a file.
	ErrNotDirectory = errors.New("not a directory")
)

// Op names a transport operation. Used for metrics labels and fault
// injection.
type Op string

const (
	OpGet       Op = "get"
	OpPut       Op = "put"
	OpList      Op = "list"
	OpStat      Op = "stat"
	OpMkdir     Op = "mkdir"
	OpRemove    Op = "remove"
	OpRemoveAll Op = "remove_all"
	OpPing      Op = "ping"
)

// Ops lists every instrumented operation.
var Ops = []Op{OpGet, OpPut, OpList, OpStat, OpMkdir, OpRemove, OpRemoveAll, OpPing}

// Entry describes one remote object.
type Entry struct {
	// Name is the final path segment
	Name string

	// IsDir is true for directories (or directory markers on object stores)
	IsDir bool

	// Size in bytes, 0 for directories
	Size int64

	// ModTime is the last modification time when the backend reports one
	ModTime time.Time
}

// Transport is a session with the remote file service.
//
// Implementations must be safe for concurrent use. Operations after Close
// return ErrClosed.
type Transport interface {
	// Get downloads the whole object at p. ErrNotFound if missing.
	Get(ctx context.Context, p string) ([]byte, error)

	// Put uploads data to p, replacing any previous object. Callers create
	// the parent directory first; backends with a real directory tree
	// fail otherwise.
	Put(ctx context.Context, p string, data []byte) error

	// List returns the immediate children of directory p in no particular
	// order. ErrNotFound if missing, ErrNotDirectory if p is a file.
	List(ctx context.Context, p string) ([]Entry, error)

	// Stat describes p. ErrNotFound if missing.
	Stat(ctx context.Context, p string) (*Entry, error)

	// Mkdir creates directory p. With recursive, missing ancestors are
	// created too. Creating an existing directory succeeds.
	Mkdir(ctx context.Context, p string, recursive bool) error

	// Remove deletes the file (or empty directory) at p. ErrNotFound if
	// missing.
	Remove(ctx context.Context, p string) error

	// RemoveAll deletes p and everything below it. Removing a missing
	// path succeeds.
	RemoveAll(ctx context.Context, p string) error

	// Ping is a cheap liveness probe of the session.
	Ping(ctx context.Context) error

	// Close terminates the session.
	Close() error
}

// Clean normalizes a transport path: slash separated, no leading or
// trailing slash, "" for the root.
func Clean(p string) string {
	return strings.Trim(path.Clean("/"+p), "/")
}

// Join joins path elements and cleans the result.
func Join(elem ...string) string {
	return Clean(path.Join(elem...))
}

// Parent returns the cleaned parent of p ("" for top-level entries).
func Parent(p string) string {
	p = Clean(p)
	idx := strings.LastIndex(p, "/")
	if idx < 0 {
		return ""
	}
	return p[:idx]
}

// Base returns the final segment of p.
func Base(p string) string {
	p = Clean(p)
	return p[strings.LastIndex(p, "/")+1:]
}

// IsNotFound reports whether err means the path does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
