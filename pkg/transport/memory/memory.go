package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/marmos91/dittodocs/pkg/transport"
)

// MemoryTransport implements transport.Transport on an in-memory tree.
//
// It behaves like a strict remote filesystem (uploads and non-recursive
// mkdir require the parent directory to exist) and is designed for:
//   - Unit tests of the stores, without a remote server
//   - Counting remote calls (hidden addresses must never reach the remote)
//   - Injecting faults (failed probes, failed uploads, ...)
//
// Thread Safety:
// All operations are protected by a sync.Mutex. Data is copied on the way
// in and out so callers can reuse their buffers.
type MemoryTransport struct {
	*tree

	// closed is per session; the tree outlives it
	closed bool
}

// tree is the remote state shared by every session opened with Reopen.
type tree struct {
	mu sync.Mutex

	// files maps cleaned paths to content
	files map[string]file

	// dirs is the set of existing directories; "" (root) always exists
	dirs map[string]time.Time

	// calls counts invocations per operation
	calls map[transport.Op]int

	// faults holds injected errors per operation
	faults map[transport.Op]error
}

type file struct {
	data    []byte
	modTime time.Time
}

// New creates an empty in-memory transport.
func New() *MemoryTransport {
	return &MemoryTransport{tree: &tree{
		files:  make(map[string]file),
		dirs:   map[string]time.Time{"": time.Now()},
		calls:  make(map[transport.Op]int),
		faults: make(map[transport.Op]error),
	}}
}

// ============================================================================
// Test Hooks
// ============================================================================

// Calls returns the number of calls issued for op.
func (m *MemoryTransport) Calls(op transport.Op) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

// TotalCalls returns the number of calls issued for any operation, pings
// included.
func (m *MemoryTransport) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := 0
	for _, n := range m.calls {
		total += n
	}
	return total
}

// ResetCalls zeroes the call counters.
func (m *MemoryTransport) ResetCalls() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = make(map[transport.Op]int)
}

// Fail makes every subsequent op call return err. A nil err clears the
// fault.
func (m *MemoryTransport) Fail(op transport.Op, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err == nil {
		delete(m.faults, op)
		return
	}
	m.faults[op] = err
}

// Exists reports whether p is a file or directory, without counting as a
// call.
func (m *MemoryTransport) Exists(p string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	p = transport.Clean(p)
	_, isFile := m.files[p]
	_, isDir := m.dirs[p]
	return isFile || isDir
}

// Paths returns every stored file and directory path, sorted. Directories
// carry a trailing slash.
func (m *MemoryTransport) Paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	paths := make([]string, 0, len(m.files)+len(m.dirs))
	for p := range m.files {
		paths = append(paths, p)
	}
	for p := range m.dirs {
		if p != "" {
			paths = append(paths, p+"/")
		}
	}
	sort.Strings(paths)
	return paths
}

// begin records a call and returns the injected fault, if any.
// Caller must hold m.mu.
func (m *MemoryTransport) begin(ctx context.Context, op transport.Op) error {
	m.calls[op]++

	if err := ctx.Err(); err != nil {
		return err
	}
	if m.closed {
		return transport.ErrClosed
	}
	if err := m.faults[op]; err != nil {
		return err
	}
	return nil
}

// ============================================================================
// Transport Implementation
// ============================================================================

func (m *MemoryTransport) Get(ctx context.Context, p string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.begin(ctx, transport.OpGet); err != nil {
		return nil, err
	}

	f, ok := m.files[transport.Clean(p)]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", p, transport.ErrNotFound)
	}

	out := make([]byte, len(f.data))
	copy(out, f.data)
	return out, nil
}

func (m *MemoryTransport) Put(ctx context.Context, p string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.begin(ctx, transport.OpPut); err != nil {
		return err
	}

	p = transport.Clean(p)
	if _, isDir := m.dirs[p]; isDir {
		return fmt.Errorf("put %s: is a directory", p)
	}
	if _, ok := m.dirs[transport.Parent(p)]; !ok {
		return fmt.Errorf("put %s: parent: %w", p, transport.ErrNotFound)
	}

	buf := make([]byte, len(data))
	copy(buf, data)
	m.files[p] = file{data: buf, modTime: time.Now()}
	return nil
}

func (m *MemoryTransport) List(ctx context.Context, p string) ([]transport.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.begin(ctx, transport.OpList); err != nil {
		return nil, err
	}

	p = transport.Clean(p)
	if _, ok := m.dirs[p]; !ok {
		if _, isFile := m.files[p]; isFile {
			return nil, fmt.Errorf("list %s: %w", p, transport.ErrNotDirectory)
		}
		return nil, fmt.Errorf("list %s: %w", p, transport.ErrNotFound)
	}

	var entries []transport.Entry
	for name, f := range m.files {
		if transport.Parent(name) == p {
			entries = append(entries, transport.Entry{
				Name:    transport.Base(name),
				Size:    int64(len(f.data)),
				ModTime: f.modTime,
			})
		}
	}
	for name, modTime := range m.dirs {
		if name != "" && transport.Parent(name) == p {
			entries = append(entries, transport.Entry{
				Name:    transport.Base(name),
				IsDir:   true,
				ModTime: modTime,
			})
		}
	}
	return entries, nil
}

func (m *MemoryTransport) Stat(ctx context.Context, p string) (*transport.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.begin(ctx, transport.OpStat); err != nil {
		return nil, err
	}

	p = transport.Clean(p)
	if modTime, ok := m.dirs[p]; ok {
		return &transport.Entry{Name: transport.Base(p), IsDir: true, ModTime: modTime}, nil
	}
	if f, ok := m.files[p]; ok {
		return &transport.Entry{Name: transport.Base(p), Size: int64(len(f.data)), ModTime: f.modTime}, nil
	}
	return nil, fmt.Errorf("stat %s: %w", p, transport.ErrNotFound)
}

func (m *MemoryTransport) Mkdir(ctx context.Context, p string, recursive bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.begin(ctx, transport.OpMkdir); err != nil {
		return err
	}

	p = transport.Clean(p)
	if _, ok := m.dirs[p]; ok {
		return nil
	}

	// Collect missing ancestors, closest first.
	var missing []string
	for cur := p; ; cur = transport.Parent(cur) {
		if _, ok := m.dirs[cur]; ok {
			break
		}
		if _, isFile := m.files[cur]; isFile {
			return fmt.Errorf("mkdir %s: %s: %w", p, cur, transport.ErrNotDirectory)
		}
		missing = append(missing, cur)
		if cur == "" {
			break
		}
	}

	if len(missing) > 1 && !recursive {
		return fmt.Errorf("mkdir %s: parent: %w", p, transport.ErrNotFound)
	}

	now := time.Now()
	for _, dir := range missing {
		m.dirs[dir] = now
	}
	return nil
}

func (m *MemoryTransport) Remove(ctx context.Context, p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.begin(ctx, transport.OpRemove); err != nil {
		return err
	}

	p = transport.Clean(p)
	if _, ok := m.files[p]; ok {
		delete(m.files, p)
		return nil
	}
	if _, ok := m.dirs[p]; ok && p != "" {
		prefix := p + "/"
		for name := range m.files {
			if strings.HasPrefix(name, prefix) {
				return fmt.Errorf("remove %s: directory not empty", p)
			}
		}
		for name := range m.dirs {
			if strings.HasPrefix(name, prefix) {
				return fmt.Errorf("remove %s: directory not empty", p)
			}
		}
		delete(m.dirs, p)
		return nil
	}
	return fmt.Errorf("remove %s: %w", p, transport.ErrNotFound)
}

func (m *MemoryTransport) RemoveAll(ctx context.Context, p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.begin(ctx, transport.OpRemoveAll); err != nil {
		return err
	}

	p = transport.Clean(p)
	if p == "" {
		m.files = make(map[string]file)
		m.dirs = map[string]time.Time{"": time.Now()}
		return nil
	}

	prefix := p + "/"
	delete(m.files, p)
	delete(m.dirs, p)
	for name := range m.files {
		if strings.HasPrefix(name, prefix) {
			delete(m.files, name)
		}
	}
	for name := range m.dirs {
		if strings.HasPrefix(name, prefix) {
			delete(m.dirs, name)
		}
	}
	return nil
}

func (m *MemoryTransport) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.begin(ctx, transport.OpPing)
}

// Close marks the transport closed. The tree is kept so a test can inspect
// it, or reopen it with Reopen to simulate a reconnect to the same server.
func (m *MemoryTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Reopen returns a new session on the same tree, sharing its counters and
// faults. It simulates reconnecting to the same server.
func (m *MemoryTransport) Reopen() *MemoryTransport {
	return &MemoryTransport{tree: m.tree}
}

// Closed reports whether Close was called.
func (m *MemoryTransport) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
