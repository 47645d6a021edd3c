// Package sftp implements transport.Transport over SFTP.
//
// This is the default production backend: documents live on a remote SFTP
// server under a configurable base path. Sessions are opened with Dial
// (SSH over TCP) and are safe for concurrent use; pkg/sftp pipelines
// concurrent requests over the single SSH channel.
package sftp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"sync/atomic"

	"github.com/marmos91/dittodocs/pkg/transport"
	"github.com/pkg/sftp"
)

// sshFxNoSuchFile is SSH_FX_NO_SUCH_FILE from the SFTP protocol.
const sshFxNoSuchFile = 2

// SFTPTransport is one SFTP session.
//
// pkg/sftp calls do not take a context. Each call runs on its own
// goroutine; when the context expires first the call returns ctx.Err()
// and the request is abandoned on the wire. The caller is then expected
// to close the session (see connection.Run), which fails the abandoned
// request.
type SFTPTransport struct {
	client *sftp.Client

	// conn is the underlying SSH connection, closed with the session.
	// nil when the client was built over a pipe (tests).
	conn io.Closer

	// basePath is prepended to every path
	basePath string

	closed atomic.Bool
}

// New wraps an established SFTP client.
//
// Parameters:
//   - client: connected SFTP client
//   - conn: underlying connection to close with the session (may be nil)
//   - basePath: remote directory all paths are relative to ("" = server cwd)
func New(client *sftp.Client, conn io.Closer, basePath string) *SFTPTransport {
	return &SFTPTransport{
		client:   client,
		conn:     conn,
		basePath: basePath,
	}
}

// remotePath maps a transport path onto the server.
func (s *SFTPTransport) remotePath(p string) string {
	p = transport.Clean(p)
	if s.basePath != "" {
		return path.Join(s.basePath, p)
	}
	if p == "" {
		return "."
	}
	return p
}

// do runs fn unless the session is closed, giving up when ctx expires.
func (s *SFTPTransport) do(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.closed.Load() {
		return transport.ErrClosed
	}

	done := make(chan error, 1)
	go func() { done <- fn() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// isNotExist recognises "no such file" in its various pkg/sftp shapes.
func isNotExist(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, os.ErrNotExist) {
		return true
	}
	var status *sftp.StatusError
	return errors.As(err, &status) && status.Code == sshFxNoSuchFile
}

// mapError converts SFTP errors to transport errors.
func mapError(op transport.Op, p string, err error) error {
	if err == nil {
		return nil
	}
	if isNotExist(err) {
		return fmt.Errorf("sftp %s %s: %w", op, p, transport.ErrNotFound)
	}
	if errors.Is(err, sftp.ErrSSHFxConnectionLost) || errors.Is(err, io.EOF) {
		return fmt.Errorf("sftp %s %s: connection lost: %w", op, p, err)
	}
	return fmt.Errorf("sftp %s %s: %w", op, p, err)
}

func entryOf(fi os.FileInfo) transport.Entry {
	e := transport.Entry{
		Name:    fi.Name(),
		IsDir:   fi.IsDir(),
		ModTime: fi.ModTime(),
	}
	if !e.IsDir {
		e.Size = fi.Size()
	}
	return e
}

// ============================================================================
// Transport Implementation
// ============================================================================

func (s *SFTPTransport) Get(ctx context.Context, p string) ([]byte, error) {
	var buf bytes.Buffer
	err := s.do(ctx, func() error {
		f, err := s.client.Open(s.remotePath(p))
		if err != nil {
			return err
		}
		defer f.Close()

		_, err = f.WriteTo(&buf)
		return err
	})
	if err != nil {
		return nil, mapError(transport.OpGet, p, err)
	}
	return buf.Bytes(), nil
}

func (s *SFTPTransport) Put(ctx context.Context, p string, data []byte) error {
	err := s.do(ctx, func() error {
		f, err := s.client.OpenFile(s.remotePath(p), os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
		if err != nil {
			return err
		}

		if _, err := f.Write(data); err != nil {
			_ = f.Close()
			return err
		}
		return f.Close()
	})
	return mapError(transport.OpPut, p, err)
}

func (s *SFTPTransport) List(ctx context.Context, p string) ([]transport.Entry, error) {
	var entries []transport.Entry
	err := s.do(ctx, func() error {
		remote := s.remotePath(p)

		fi, err := s.client.Stat(remote)
		if err != nil {
			return err
		}
		if !fi.IsDir() {
			return transport.ErrNotDirectory
		}

		infos, err := s.client.ReadDir(remote)
		if err != nil {
			return err
		}

		entries = make([]transport.Entry, 0, len(infos))
		for _, info := range infos {
			entries = append(entries, entryOf(info))
		}
		return nil
	})
	if err != nil {
		return nil, mapError(transport.OpList, p, err)
	}
	return entries, nil
}

func (s *SFTPTransport) Stat(ctx context.Context, p string) (*transport.Entry, error) {
	var entry transport.Entry
	err := s.do(ctx, func() error {
		fi, err := s.client.Stat(s.remotePath(p))
		if err != nil {
			return err
		}
		entry = entryOf(fi)
		entry.Name = transport.Base(p)
		return nil
	})
	if err != nil {
		return nil, mapError(transport.OpStat, p, err)
	}
	return &entry, nil
}

func (s *SFTPTransport) Mkdir(ctx context.Context, p string, recursive bool) error {
	err := s.do(ctx, func() error {
		remote := s.remotePath(p)

		if fi, err := s.client.Stat(remote); err == nil {
			if !fi.IsDir() {
				return transport.ErrNotDirectory
			}
			return nil
		}

		if recursive {
			return s.client.MkdirAll(remote)
		}
		return s.client.Mkdir(remote)
	})
	return mapError(transport.OpMkdir, p, err)
}

func (s *SFTPTransport) Remove(ctx context.Context, p string) error {
	err := s.do(ctx, func() error {
		return s.client.Remove(s.remotePath(p))
	})
	return mapError(transport.OpRemove, p, err)
}

// RemoveAll walks the tree depth first: SFTP has no recursive delete.
func (s *SFTPTransport) RemoveAll(ctx context.Context, p string) error {
	err := s.do(ctx, func() error {
		return s.removeAll(ctx, s.remotePath(p))
	})
	return mapError(transport.OpRemoveAll, p, err)
}

func (s *SFTPTransport) removeAll(ctx context.Context, remote string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	fi, err := s.client.Stat(remote)
	if err != nil {
		if isNotExist(err) {
			return nil
		}
		return err
	}
	if !fi.IsDir() {
		return s.client.Remove(remote)
	}

	children, err := s.client.ReadDir(remote)
	if err != nil {
		return err
	}
	for _, child := range children {
		if err := s.removeAll(ctx, path.Join(remote, child.Name())); err != nil {
			return err
		}
	}
	return s.client.RemoveDirectory(remote)
}

// Ping resolves the working directory, the cheapest round trip SFTP
// offers.
func (s *SFTPTransport) Ping(ctx context.Context) error {
	err := s.do(ctx, func() error {
		_, err := s.client.Getwd()
		return err
	})
	return mapError(transport.OpPing, "", err)
}

// Close terminates the SFTP session and its SSH connection. Safe to call
// multiple times.
func (s *SFTPTransport) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	err := s.client.Close()
	if s.conn != nil {
		if cerr := s.conn.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
