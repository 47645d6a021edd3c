// Package s3 implements transport.Transport on Amazon S3 or S3-compatible
// object storage.
//
// Object stores have no directories. The backend emulates them:
//   - a directory "a/b" is the zero-length marker object "a/b/"
//   - a directory also exists implicitly when any key lives below it
//   - listings use the "/" delimiter; common prefixes become directories
//
// The bucket therefore mirrors the logical tree ("doc/notes.json",
// "doc/notes.json.meta", "doc/sub/"), which keeps it inspectable with
// standard S3 tooling.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/marmos91/dittodocs/internal/logger"
	"github.com/marmos91/dittodocs/pkg/transport"
)

// maxDeleteBatch is the S3 limit of objects per DeleteObjects request.
const maxDeleteBatch = 1000

// S3Transport implements transport.Transport on an S3 bucket.
//
// Thread Safety:
// The S3 client is safe for concurrent use, so is the transport.
// Concurrent writes to the same key are last-write-wins.
type S3Transport struct {
	client    *s3.Client
	bucket    string
	keyPrefix string

	closed atomic.Bool
}

// S3TransportConfig contains configuration for the S3 transport.
type S3TransportConfig struct {
	// Client is the configured S3 client
	Client *s3.Client

	// Bucket is the S3 bucket name
	Bucket string

	// KeyPrefix is an optional prefix for all object keys
	// Example: "dittodocs/" results in keys like "dittodocs/<doc>/notes.json"
	KeyPrefix string
}

// New creates an S3 transport and verifies bucket access. The bucket must
// already exist.
func New(ctx context.Context, cfg S3TransportConfig) (*S3Transport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if cfg.Client == nil {
		return nil, fmt.Errorf("S3 client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	prefix := cfg.KeyPrefix
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	_, err := cfg.Client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(cfg.Bucket),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to access bucket %q: %w", cfg.Bucket, err)
	}

	return &S3Transport{
		client:    cfg.Client,
		bucket:    cfg.Bucket,
		keyPrefix: prefix,
	}, nil
}

// objectKey returns the key of the object at p.
func (s *S3Transport) objectKey(p string) string {
	return s.keyPrefix + transport.Clean(p)
}

// dirPrefix returns the key prefix of everything below directory p.
func (s *S3Transport) dirPrefix(p string) string {
	c := transport.Clean(p)
	if c == "" {
		return s.keyPrefix
	}
	return s.keyPrefix + c + "/"
}

func (s *S3Transport) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.closed.Load() {
		return transport.ErrClosed
	}
	return nil
}

func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	return errors.As(err, &noSuchKey) || errors.As(err, &notFound)
}

// headObject returns the object size, or ErrNotFound.
func (s *S3Transport) headObject(ctx context.Context, key string) (*s3.HeadObjectOutput, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, transport.ErrNotFound
		}
		return nil, err
	}
	return out, nil
}

// dirExists reports whether directory p exists, as a marker or
// implicitly through a key below it.
func (s *S3Transport) dirExists(ctx context.Context, p string) (bool, error) {
	if transport.Clean(p) == "" {
		return true, nil
	}

	out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		Prefix:  aws.String(s.dirPrefix(p)),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return false, err
	}
	return len(out.Contents) > 0, nil
}

// ============================================================================
// Transport Implementation
// ============================================================================

func (s *S3Transport) Get(ctx context.Context, p string) ([]byte, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(p)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("s3 get %s: %w", p, transport.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get object from S3: %w", err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object body: %w", err)
	}
	return data, nil
}

func (s *S3Transport) Put(ctx context.Context, p string, data []byte) error {
	if err := s.check(ctx); err != nil {
		return err
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.objectKey(p)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to write object to S3: %w", err)
	}
	return nil
}

func (s *S3Transport) List(ctx context.Context, p string) ([]transport.Entry, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	prefix := s.dirPrefix(p)
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})

	var entries []transport.Entry
	found := transport.Clean(p) == ""

	for paginator.HasMorePages() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}

		for _, cp := range page.CommonPrefixes {
			found = true
			name := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(cp.Prefix), prefix), "/")
			if name == "" {
				continue
			}
			entries = append(entries, transport.Entry{Name: name, IsDir: true})
		}

		for _, obj := range page.Contents {
			found = true
			key := aws.ToString(obj.Key)
			if key == prefix {
				// Directory marker of p itself.
				continue
			}
			entry := transport.Entry{
				Name: strings.TrimPrefix(key, prefix),
				Size: aws.ToInt64(obj.Size),
			}
			if obj.LastModified != nil {
				entry.ModTime = *obj.LastModified
			}
			entries = append(entries, entry)
		}
	}

	if !found {
		if _, err := s.headObject(ctx, s.objectKey(p)); err == nil {
			return nil, fmt.Errorf("s3 list %s: %w", p, transport.ErrNotDirectory)
		}
		return nil, fmt.Errorf("s3 list %s: %w", p, transport.ErrNotFound)
	}
	return entries, nil
}

func (s *S3Transport) Stat(ctx context.Context, p string) (*transport.Entry, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	name := transport.Base(p)
	if transport.Clean(p) != "" {
		out, err := s.headObject(ctx, s.objectKey(p))
		if err == nil {
			entry := &transport.Entry{Name: name, Size: aws.ToInt64(out.ContentLength)}
			if out.LastModified != nil {
				entry.ModTime = *out.LastModified
			}
			return entry, nil
		}
		if !errors.Is(err, transport.ErrNotFound) {
			return nil, fmt.Errorf("failed to head object: %w", err)
		}
	}

	isDir, err := s.dirExists(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("failed to list objects: %w", err)
	}
	if !isDir {
		return nil, fmt.Errorf("s3 stat %s: %w", p, transport.ErrNotFound)
	}
	return &transport.Entry{Name: name, IsDir: true}, nil
}

// Mkdir writes directory markers. Object stores have no parent
// requirement, so non-recursive mkdir only writes the marker of p.
func (s *S3Transport) Mkdir(ctx context.Context, p string, recursive bool) error {
	if err := s.check(ctx); err != nil {
		return err
	}

	c := transport.Clean(p)
	if c == "" {
		return nil
	}

	if _, err := s.headObject(ctx, s.objectKey(c)); err == nil {
		return fmt.Errorf("s3 mkdir %s: %w", p, transport.ErrNotDirectory)
	}

	dirs := []string{c}
	if recursive {
		for parent := transport.Parent(c); parent != ""; parent = transport.Parent(parent) {
			dirs = append(dirs, parent)
		}
	}

	for _, dir := range dirs {
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(s.dirPrefix(dir)),
			Body:   bytes.NewReader(nil),
		})
		if err != nil {
			return fmt.Errorf("failed to write directory marker %s: %w", dir, err)
		}
	}
	return nil
}

// Remove deletes an object, or the marker of an empty directory.
//
// S3 deletes are idempotent, so existence is checked first to honour the
// ErrNotFound contract.
func (s *S3Transport) Remove(ctx context.Context, p string) error {
	if err := s.check(ctx); err != nil {
		return err
	}

	key := s.objectKey(p)
	if _, err := s.headObject(ctx, key); err != nil {
		if !errors.Is(err, transport.ErrNotFound) {
			return fmt.Errorf("failed to head object: %w", err)
		}

		out, lerr := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:  aws.String(s.bucket),
			Prefix:  aws.String(s.dirPrefix(p)),
			MaxKeys: aws.Int32(2),
		})
		if lerr != nil {
			return fmt.Errorf("failed to list objects: %w", lerr)
		}
		switch {
		case len(out.Contents) == 0:
			return fmt.Errorf("s3 remove %s: %w", p, transport.ErrNotFound)
		case len(out.Contents) > 1 || aws.ToString(out.Contents[0].Key) != s.dirPrefix(p):
			return fmt.Errorf("s3 remove %s: directory not empty", p)
		}
		key = s.dirPrefix(p)
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// RemoveAll deletes p, its marker and every key below it with batched
// DeleteObjects requests.
func (s *S3Transport) RemoveAll(ctx context.Context, p string) error {
	if err := s.check(ctx); err != nil {
		return err
	}

	var keys []string
	if transport.Clean(p) != "" {
		keys = append(keys, s.objectKey(p))
	}

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.dirPrefix(p)),
	})
	for paginator.HasMorePages() {
		if err := ctx.Err(); err != nil {
			return err
		}

		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("failed to list objects: %w", err)
		}
		for _, obj := range page.Contents {
			if obj.Key != nil {
				keys = append(keys, *obj.Key)
			}
		}
	}

	failures, err := s.deleteBatch(ctx, keys)
	if err != nil {
		return err
	}
	if len(failures) > 0 {
		for key, ferr := range failures {
			logger.Debug("S3 deletion failed: key=%s error=%v", key, ferr)
		}
		return fmt.Errorf("s3 remove_all %s: %d objects could not be deleted", p, len(failures))
	}
	return nil
}

// deleteBatch removes keys in chunks of maxDeleteBatch. Deleting a missing
// key is not a failure.
//
// Returns:
//   - map[string]error: keys that failed (empty = all succeeded)
//   - error: context cancellation
func (s *S3Transport) deleteBatch(ctx context.Context, keys []string) (map[string]error, error) {
	failures := make(map[string]error)

	for i := 0; i < len(keys); i += maxDeleteBatch {
		if err := ctx.Err(); err != nil {
			return failures, err
		}

		end := i + maxDeleteBatch
		if end > len(keys) {
			end = len(keys)
		}
		batch := keys[i:end]

		objects := make([]types.ObjectIdentifier, len(batch))
		for j, key := range batch {
			objects[j] = types.ObjectIdentifier{Key: aws.String(key)}
		}

		result, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{
				Objects: objects,
				Quiet:   aws.Bool(true),
			},
		})
		if err != nil {
			for _, key := range batch {
				failures[key] = err
			}
			continue
		}

		for _, deleteErr := range result.Errors {
			if deleteErr.Key == nil {
				continue
			}
			failures[*deleteErr.Key] = fmt.Errorf("%s: %s",
				aws.ToString(deleteErr.Code), aws.ToString(deleteErr.Message))
		}
	}

	return failures, nil
}

// Ping checks bucket access.
func (s *S3Transport) Ping(ctx context.Context) error {
	if err := s.check(ctx); err != nil {
		return err
	}

	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		return fmt.Errorf("failed to access bucket %q: %w", s.bucket, err)
	}
	return nil
}

// Close marks the transport closed. The S3 client holds no session.
func (s *S3Transport) Close() error {
	s.closed.Store(true)
	return nil
}
