// Package badger implements transport.Transport on an embedded BadgerDB.
//
// It serves single-node and offline deployments where no remote file
// service is available: the whole document tree, sidecars included, lives
// in one local key-value database. In-memory mode backs tests.
package badger

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/marmos91/dittodocs/pkg/transport"
)

// BadgerTransport implements transport.Transport using BadgerDB.
//
// Thread Safety:
// Every operation runs in its own BadgerDB transaction; the transport is
// safe for concurrent use. Conflicting concurrent writes are retried by
// the caller (ErrConflict surfaces as a regular error).
type BadgerTransport struct {
	db     *badgerdb.DB
	closed atomic.Bool
}

// Config contains configuration for opening a BadgerDB transport.
type Config struct {
	// Path is the directory where BadgerDB stores its files
	Path string `mapstructure:"path"`

	// InMemory keeps everything in RAM (Path is ignored)
	InMemory bool `mapstructure:"in_memory"`

	// SyncWrites fsyncs every commit
	SyncWrites bool `mapstructure:"sync_writes"`

	// BlockCacheSizeMB is BadgerDB's block cache size in MB (default: 64)
	BlockCacheSizeMB int64 `mapstructure:"block_cache_mb"`

	// IndexCacheSizeMB is BadgerDB's index cache size in MB (default: 32)
	IndexCacheSizeMB int64 `mapstructure:"index_cache_mb"`
}

// Open opens (creating if needed) the database described by cfg.
func Open(ctx context.Context, cfg Config) (*BadgerTransport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !cfg.InMemory && cfg.Path == "" {
		return nil, fmt.Errorf("badger transport: path is required")
	}

	var opts badgerdb.Options
	if cfg.InMemory {
		opts = badgerdb.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badgerdb.DefaultOptions(cfg.Path)
	}

	// Small JSON documents: compression is not worth it.
	opts = opts.WithLoggingLevel(badgerdb.WARNING)
	opts = opts.WithCompression(options.None)
	opts = opts.WithSyncWrites(cfg.SyncWrites)

	blockCacheMB := cfg.BlockCacheSizeMB
	if blockCacheMB == 0 {
		blockCacheMB = 64
	}
	indexCacheMB := cfg.IndexCacheSizeMB
	if indexCacheMB == 0 {
		indexCacheMB = 32
	}
	opts = opts.WithBlockCacheSize(blockCacheMB << 20)
	opts = opts.WithIndexCacheSize(indexCacheMB << 20)

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", cfg.Path, err)
	}

	return &BadgerTransport{db: db}, nil
}

func (b *BadgerTransport) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if b.closed.Load() {
		return transport.ErrClosed
	}
	return nil
}

// ============================================================================
// Value Encoding
// ============================================================================

func encodeValue(modTime time.Time, data []byte) []byte {
	buf := make([]byte, 8+len(data))
	binary.BigEndian.PutUint64(buf, uint64(modTime.UnixNano()))
	copy(buf[8:], data)
	return buf
}

func decodeValue(val []byte) (time.Time, []byte, error) {
	if len(val) < 8 {
		return time.Time{}, nil, fmt.Errorf("corrupt value: %d bytes", len(val))
	}
	modTime := time.Unix(0, int64(binary.BigEndian.Uint64(val[:8])))
	data := make([]byte, len(val)-8)
	copy(data, val[8:])
	return modTime, data, nil
}

// ============================================================================
// Transaction Helpers
// ============================================================================

func exists(txn *badgerdb.Txn, key []byte) (bool, error) {
	_, err := txn.Get(key)
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return false, nil
	}
	return err == nil, err
}

func dirExists(txn *badgerdb.Txn, p string) (bool, error) {
	if p == "" {
		return true, nil
	}
	return exists(txn, keyDir(p))
}

func hasChildren(txn *badgerdb.Txn, p string) bool {
	for _, ns := range []string{prefixFile, prefixDir} {
		opts := badgerdb.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = childPrefix(ns, p)

		it := txn.NewIterator(opts)
		it.Rewind()
		found := it.Valid()
		it.Close()

		if found {
			return true
		}
	}
	return false
}

// ============================================================================
// Transport Implementation
// ============================================================================

func (b *BadgerTransport) Get(ctx context.Context, p string) ([]byte, error) {
	if err := b.check(ctx); err != nil {
		return nil, err
	}
	p = transport.Clean(p)

	var data []byte
	err := b.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(keyFile(p))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			_, data, err = decodeValue(val)
			return err
		})
	})
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return nil, fmt.Errorf("badger get %s: %w", p, transport.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("badger get %s: %w", p, err)
	}
	return data, nil
}

func (b *BadgerTransport) Put(ctx context.Context, p string, data []byte) error {
	if err := b.check(ctx); err != nil {
		return err
	}
	p = transport.Clean(p)

	return b.db.Update(func(txn *badgerdb.Txn) error {
		if isDir, err := dirExists(txn, p); err != nil {
			return err
		} else if isDir {
			return fmt.Errorf("badger put %s: is a directory", p)
		}

		parentOK, err := dirExists(txn, transport.Parent(p))
		if err != nil {
			return err
		}
		if !parentOK {
			return fmt.Errorf("badger put %s: parent: %w", p, transport.ErrNotFound)
		}

		return txn.Set(keyFile(p), encodeValue(time.Now(), data))
	})
}

func (b *BadgerTransport) List(ctx context.Context, p string) ([]transport.Entry, error) {
	if err := b.check(ctx); err != nil {
		return nil, err
	}
	p = transport.Clean(p)

	var entries []transport.Entry
	err := b.db.View(func(txn *badgerdb.Txn) error {
		isDir, err := dirExists(txn, p)
		if err != nil {
			return err
		}
		if !isDir {
			if isFile, _ := exists(txn, keyFile(p)); isFile {
				return transport.ErrNotDirectory
			}
			return transport.ErrNotFound
		}

		for _, ns := range []string{prefixFile, prefixDir} {
			prefix := childPrefix(ns, p)

			opts := badgerdb.DefaultIteratorOptions
			opts.Prefix = prefix
			opts.PrefetchValues = ns == prefixFile

			it := txn.NewIterator(opts)
			for it.Rewind(); it.Valid(); it.Next() {
				if err := ctx.Err(); err != nil {
					it.Close()
					return err
				}

				item := it.Item()
				name := string(item.Key()[len(prefix):])
				if name == "" || strings.Contains(name, "/") {
					continue
				}

				entry := transport.Entry{Name: name, IsDir: ns == prefixDir}
				err := item.Value(func(val []byte) error {
					modTime, data, err := decodeValue(val)
					if err != nil {
						return err
					}
					entry.ModTime = modTime
					if !entry.IsDir {
						entry.Size = int64(len(data))
					}
					return nil
				})
				if err != nil {
					it.Close()
					return err
				}
				entries = append(entries, entry)
			}
			it.Close()
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badger list %s: %w", p, err)
	}
	return entries, nil
}

func (b *BadgerTransport) Stat(ctx context.Context, p string) (*transport.Entry, error) {
	if err := b.check(ctx); err != nil {
		return nil, err
	}
	p = transport.Clean(p)
	if p == "" {
		return &transport.Entry{IsDir: true}, nil
	}

	var entry *transport.Entry
	err := b.db.View(func(txn *badgerdb.Txn) error {
		for _, isDir := range []bool{true, false} {
			key := keyFile(p)
			if isDir {
				key = keyDir(p)
			}

			item, err := txn.Get(key)
			if errors.Is(err, badgerdb.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}

			return item.Value(func(val []byte) error {
				modTime, data, err := decodeValue(val)
				if err != nil {
					return err
				}
				entry = &transport.Entry{Name: transport.Base(p), IsDir: isDir, ModTime: modTime}
				if !isDir {
					entry.Size = int64(len(data))
				}
				return nil
			})
		}
		return transport.ErrNotFound
	})
	if err != nil {
		return nil, fmt.Errorf("badger stat %s: %w", p, err)
	}
	return entry, nil
}

func (b *BadgerTransport) Mkdir(ctx context.Context, p string, recursive bool) error {
	if err := b.check(ctx); err != nil {
		return err
	}
	p = transport.Clean(p)

	err := b.db.Update(func(txn *badgerdb.Txn) error {
		var missing []string
		for cur := p; cur != ""; cur = transport.Parent(cur) {
			ok, err := dirExists(txn, cur)
			if err != nil {
				return err
			}
			if ok {
				break
			}
			if isFile, _ := exists(txn, keyFile(cur)); isFile {
				return transport.ErrNotDirectory
			}
			missing = append(missing, cur)
		}

		if len(missing) > 1 && !recursive {
			return transport.ErrNotFound
		}

		marker := encodeValue(time.Now(), nil)
		for _, dir := range missing {
			if err := txn.Set(keyDir(dir), marker); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("badger mkdir %s: %w", p, err)
	}
	return nil
}

func (b *BadgerTransport) Remove(ctx context.Context, p string) error {
	if err := b.check(ctx); err != nil {
		return err
	}
	p = transport.Clean(p)

	err := b.db.Update(func(txn *badgerdb.Txn) error {
		if isFile, err := exists(txn, keyFile(p)); err != nil {
			return err
		} else if isFile {
			return txn.Delete(keyFile(p))
		}

		if p != "" {
			if isDir, err := exists(txn, keyDir(p)); err != nil {
				return err
			} else if isDir {
				if hasChildren(txn, p) {
					return errors.New("directory not empty")
				}
				return txn.Delete(keyDir(p))
			}
		}
		return transport.ErrNotFound
	})
	if err != nil {
		return fmt.Errorf("badger remove %s: %w", p, err)
	}
	return nil
}

// RemoveAll collects every key of the subtree in a read transaction and
// deletes them with a write batch, which is not bound by the transaction
// size limit.
func (b *BadgerTransport) RemoveAll(ctx context.Context, p string) error {
	if err := b.check(ctx); err != nil {
		return err
	}
	p = transport.Clean(p)

	var keys [][]byte
	if p != "" {
		keys = append(keys, keyFile(p), keyDir(p))
	}

	err := b.db.View(func(txn *badgerdb.Txn) error {
		for _, ns := range []string{prefixFile, prefixDir} {
			opts := badgerdb.DefaultIteratorOptions
			opts.PrefetchValues = false
			opts.Prefix = childPrefix(ns, p)

			it := txn.NewIterator(opts)
			for it.Rewind(); it.Valid(); it.Next() {
				keys = append(keys, it.Item().KeyCopy(nil))
			}
			it.Close()
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("badger remove_all %s: %w", p, err)
	}

	wb := b.db.NewWriteBatch()
	defer wb.Cancel()

	for _, key := range keys {
		if err := wb.Delete(key); err != nil {
			return fmt.Errorf("badger remove_all %s: %w", p, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("badger remove_all %s: %w", p, err)
	}
	return nil
}

// Ping reports whether the database is open.
func (b *BadgerTransport) Ping(ctx context.Context) error {
	if err := b.check(ctx); err != nil {
		return err
	}
	if b.db.IsClosed() {
		return transport.ErrClosed
	}
	return nil
}

// Close closes the database. Safe to call multiple times.
func (b *BadgerTransport) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	return b.db.Close()
}
