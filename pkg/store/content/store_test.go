package content

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/marmos91/dittodocs/pkg/connection"
	"github.com/marmos91/dittodocs/pkg/file"
	"github.com/marmos91/dittodocs/pkg/store/metadata"
	"github.com/marmos91/dittodocs/pkg/transport"
	"github.com/marmos91/dittodocs/pkg/transport/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store  *Store
	remote *memory.MemoryTransport
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	remote := memory.New()
	require.NoError(t, remote.Mkdir(context.Background(), "srv/doc1", true))
	remote.ResetCalls()

	pool := connection.NewPool(connection.DialerFunc(func(context.Context) (transport.Transport, error) {
		return remote.Reopen(), nil
	}), connection.Config{})
	t.Cleanup(func() { _ = pool.Close() })

	f := &fixture{
		remote: remote,
		now:    time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	meta := metadata.New(pool, metadata.Config{
		Root:  "srv",
		Clock: func() time.Time { return f.now },
	})
	f.store = New(pool, meta, Config{Timeout: time.Second})
	return f
}

func addr(path string) file.Address {
	return file.Address{DocumentID: "doc1", Path: path}
}

func TestStore_WriteRead(t *testing.T) {
	ctx := context.Background()

	t.Run("JSON", func(t *testing.T) {
		f := newFixture(t)

		written, err := f.store.Write(ctx, addr("data/a.json"), file.TypeJSON, file.JSON{Value: map[string]any{"k": "v"}})
		require.NoError(t, err)
		require.NotNil(t, written)
		assert.Equal(t, file.TypeJSON, written.Type)
		assert.Equal(t, f.now, written.Created)

		raw, err := f.remote.Get(ctx, "srv/doc1/data/a.json")
		require.NoError(t, err)
		assert.JSONEq(t, `{"k":"v"}`, string(raw))
		assert.True(t, f.remote.Exists("srv/doc1/data/a.json.meta"))

		read, err := f.store.Read(ctx, addr("data/a.json"))
		require.NoError(t, err)
		require.NotNil(t, read)
		assert.Equal(t, file.JSON{Value: map[string]any{"k": "v"}}, read.Data)
		assert.True(t, read.Created.Equal(f.now))
	})

	t.Run("JSONStringPassthrough", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.store.Write(ctx, addr("a.json"), file.TypeJSON, file.JSON{Value: `[1, 2]`})
		require.NoError(t, err)

		raw, err := f.remote.Get(ctx, "srv/doc1/a.json")
		require.NoError(t, err)
		assert.Equal(t, `[1, 2]`, string(raw))
	})

	t.Run("Page", func(t *testing.T) {
		f := newFixture(t)
		p := file.Page{
			Title:   "Guide",
			Content: json.RawMessage(`[{"type":"p"}]`),
			Icon:    &file.Icon{Library: "emoji", Value: "x"},
		}

		_, err := f.store.Write(ctx, addr("guide.page"), file.TypePage, p)
		require.NoError(t, err)

		read, err := f.store.Read(ctx, addr("guide.page"))
		require.NoError(t, err)
		require.NotNil(t, read)

		got, ok := read.Data.(file.Page)
		require.True(t, ok)
		assert.Equal(t, "Guide", got.Title)
		assert.JSONEq(t, `[{"type":"p"}]`, string(got.Content))
		require.NotNil(t, got.Icon)
		assert.Equal(t, "emoji", got.Icon.Library)
	})

	t.Run("Directory", func(t *testing.T) {
		f := newFixture(t)

		written, err := f.store.Write(ctx, addr("a/b/"), file.TypeDirectory, file.Directory{})
		require.NoError(t, err)
		require.NotNil(t, written)
		assert.True(t, f.remote.Exists("srv/doc1/a/b"))
		assert.True(t, f.remote.Exists("srv/doc1/a/b/.meta"))

		read, err := f.store.Read(ctx, addr("a/b/"))
		require.NoError(t, err)
		require.NotNil(t, read)
		assert.Equal(t, file.Directory{Children: []string{}}, read.Data)
	})

	t.Run("RewriteKeepsCreatedAndExtra", func(t *testing.T) {
		f := newFixture(t)
		created := f.now

		_, err := f.store.Write(ctx, addr("a.json"), file.TypeJSON, file.JSON{Value: map[string]any{"v": 1.0}})
		require.NoError(t, err)
		_, err = f.store.Metadata().SetMeta(ctx, addr("a.json"), file.Meta{
			Type:  file.TypeJSON,
			Extra: json.RawMessage(`{"tag":"x"}`),
		})
		require.NoError(t, err)

		f.now = f.now.Add(time.Minute)
		written, err := f.store.Write(ctx, addr("a.json"), file.TypeJSON, file.JSON{Value: map[string]any{"v": 2.0}})
		require.NoError(t, err)
		require.NotNil(t, written)

		assert.True(t, written.Created.Equal(created))
		assert.True(t, written.Updated.Equal(f.now))
		assert.JSONEq(t, `{"tag":"x"}`, string(written.Extra))
	})
}

func TestStore_ReadDirectory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	for _, name := range []string{"b.json", "c.json"} {
		_, err := f.store.Write(ctx, addr("dir/"+name), file.TypeJSON, file.JSON{Value: map[string]any{}})
		require.NoError(t, err)
	}
	for _, name := range []string{"z", "a"} {
		_, err := f.store.Write(ctx, addr("dir/"+name+"/"), file.TypeDirectory, file.Directory{})
		require.NoError(t, err)
	}
	require.NoError(t, f.remote.Put(ctx, "srv/doc1/dir/.hidden", []byte("x")))
	require.NoError(t, f.remote.Put(ctx, "srv/doc1/dir/__draft.json", []byte("{}")))

	read, err := f.store.Read(ctx, addr("dir/"))
	require.NoError(t, err)
	require.NotNil(t, read, "implicit directory must be readable")
	assert.Equal(t, file.TypeDirectory, read.Type)
	assert.Equal(t, file.Directory{Children: []string{"a", "z", "b.json", "c.json"}}, read.Data)
}

func TestStore_WriteContractViolations(t *testing.T) {
	ctx := context.Background()

	t.Run("DataKindMismatch", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.store.Write(ctx, addr("a.json"), file.TypeJSON, file.Page{Title: "t", Content: json.RawMessage(`[]`)})
		require.Error(t, err)
		assert.Equal(t, file.ErrTypeMismatch, file.CodeOf(err))
		assert.Zero(t, f.remote.TotalCalls(), "invalid payloads never reach the remote")
	})

	t.Run("MalformedPayload", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.store.Write(ctx, addr("p.page"), file.TypePage, file.Page{Content: json.RawMessage(`[]`)})
		require.Error(t, err)
		assert.Equal(t, file.ErrInvalidData, file.CodeOf(err))

		var fe *file.Error
		require.True(t, errors.As(err, &fe))
		assert.Equal(t, "srv/doc1/p.page", fe.Path)
	})

	t.Run("TypeImmutable", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.store.Write(ctx, addr("thing"), file.TypeJSON, file.JSON{Value: map[string]any{}})
		require.NoError(t, err)
		f.remote.ResetCalls()

		_, err = f.store.Write(ctx, addr("thing"), file.TypeDirectory, file.Directory{})
		require.Error(t, err)
		assert.Equal(t, file.ErrTypeMismatch, file.CodeOf(err))
		assert.Zero(t, f.remote.Calls(transport.OpMkdir))
		assert.Zero(t, f.remote.Calls(transport.OpPut))
	})

	t.Run("TypeImmutableOverSynthesized", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.remote.Put(ctx, "srv/doc1/legacy.json", []byte(`{}`)))

		_, err := f.store.Write(ctx, addr("legacy.json"), file.TypePage, file.Page{Title: "t", Content: json.RawMessage(`[]`)})
		require.Error(t, err)
		assert.Equal(t, file.ErrTypeMismatch, file.CodeOf(err))
	})
}

func TestStore_AddressesStayInsideTheirDocument(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.remote.Mkdir(ctx, "srv/doc2", true))
	secret := file.Address{DocumentID: "doc2", Path: "secret.json"}
	_, err := f.store.Write(ctx, secret, file.TypeJSON, file.JSON{Value: map[string]any{"pw": "hunter2"}})
	require.NoError(t, err)
	f.remote.ResetCalls()

	read, err := f.store.Read(ctx, addr("../doc2/secret.json"))
	assert.Equal(t, file.ErrInvalidPath, file.CodeOf(err))
	assert.Nil(t, read)

	written, err := f.store.Write(ctx, addr("../../escaped.json"), file.TypeJSON, file.JSON{Value: map[string]any{"x": 1}})
	assert.Equal(t, file.ErrInvalidPath, file.CodeOf(err))
	assert.Nil(t, written)

	status, err := f.store.Remove(ctx, addr("../doc2/secret.json"))
	assert.Equal(t, file.ErrInvalidPath, file.CodeOf(err))
	assert.Equal(t, RemoveFailed, status)

	assert.Zero(t, f.remote.TotalCalls(), "escaping addresses must not reach the remote")

	_, err = f.remote.Stat(ctx, "escaped.json")
	assert.True(t, transport.IsNotFound(err))

	kept, err := f.store.Read(ctx, secret)
	require.NoError(t, err)
	require.NotNil(t, kept)
}

func TestStore_Remove(t *testing.T) {
	ctx := context.Background()

	t.Run("File", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.store.Write(ctx, addr("a.json"), file.TypeJSON, file.JSON{Value: map[string]any{}})
		require.NoError(t, err)

		status, err := f.store.Remove(ctx, addr("a.json"))
		require.NoError(t, err)
		assert.Equal(t, Removed, status)
		assert.False(t, f.remote.Exists("srv/doc1/a.json"))
		assert.False(t, f.remote.Exists("srv/doc1/a.json.meta"))

		read, err := f.store.Read(ctx, addr("a.json"))
		require.NoError(t, err)
		assert.Nil(t, read)
	})

	t.Run("DirectoryCascade", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.store.Write(ctx, addr("dir"), file.TypeDirectory, file.Directory{})
		require.NoError(t, err)
		_, err = f.store.Write(ctx, addr("dir/sub/x.json"), file.TypeJSON, file.JSON{Value: map[string]any{}})
		require.NoError(t, err)
		_, err = f.store.Write(ctx, addr("other.json"), file.TypeJSON, file.JSON{Value: map[string]any{}})
		require.NoError(t, err)

		status, err := f.store.Remove(ctx, addr("dir"))
		require.NoError(t, err)
		assert.Equal(t, Removed, status)

		assert.Equal(t, []string{
			"srv/",
			"srv/doc1/",
			"srv/doc1/other.json",
			"srv/doc1/other.json.meta",
		}, f.remote.Paths())
	})

	t.Run("DirectoryFormSidecarGoesWithSubtree", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.store.Write(ctx, addr("dir/"), file.TypeDirectory, file.Directory{})
		require.NoError(t, err)
		f.remote.ResetCalls()

		status, err := f.store.Remove(ctx, addr("dir/"))
		require.NoError(t, err)
		assert.Equal(t, Removed, status)
		assert.False(t, f.remote.Exists("srv/doc1/dir"))
		assert.Zero(t, f.remote.Calls(transport.OpRemove))
	})

	t.Run("ImplicitDirectory", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.remote.Mkdir(ctx, "srv/doc1/implicit", false))
		require.NoError(t, f.remote.Put(ctx, "srv/doc1/implicit/x", []byte("{}")))
		f.remote.ResetCalls()

		status, err := f.store.Remove(ctx, addr("implicit/"))
		require.NoError(t, err)
		assert.Equal(t, Removed, status)
		assert.False(t, f.remote.Exists("srv/doc1/implicit"))
		assert.Zero(t, f.remote.Calls(transport.OpRemove), "synthesized records have no sidecar")
	})

	t.Run("Missing", func(t *testing.T) {
		f := newFixture(t)

		status, err := f.store.Remove(ctx, addr("missing.json"))
		require.NoError(t, err)
		assert.Equal(t, RemoveSkipped, status)
	})

	t.Run("PayloadAlreadyGone", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.store.Write(ctx, addr("a.json"), file.TypeJSON, file.JSON{Value: map[string]any{}})
		require.NoError(t, err)
		require.NoError(t, f.remote.Remove(ctx, "srv/doc1/a.json"))

		status, err := f.store.Remove(ctx, addr("a.json"))
		require.NoError(t, err)
		assert.Equal(t, Removed, status)
		assert.False(t, f.remote.Exists("srv/doc1/a.json.meta"))
	})

	t.Run("TransportFailure", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.store.Write(ctx, addr("a.json"), file.TypeJSON, file.JSON{Value: map[string]any{}})
		require.NoError(t, err)
		f.remote.Fail(transport.OpRemove, errors.New("permission denied"))

		status, err := f.store.Remove(ctx, addr("a.json"))
		require.NoError(t, err)
		assert.Equal(t, RemoveFailed, status)
		assert.True(t, f.remote.Exists("srv/doc1/a.json.meta"))
	})
}

func TestStore_HiddenAddresses(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	for _, p := range []string{".env", "dir/__cache.json", "a.json.meta"} {
		t.Run(p, func(t *testing.T) {
			read, err := f.store.Read(ctx, addr(p))
			require.NoError(t, err)
			assert.Nil(t, read)

			written, err := f.store.Write(ctx, addr(p), file.TypeJSON, file.JSON{Value: map[string]any{}})
			require.NoError(t, err)
			assert.Nil(t, written)

			status, err := f.store.Remove(ctx, addr(p))
			require.NoError(t, err)
			assert.Equal(t, RemoveSkipped, status)
		})
	}

	assert.Zero(t, f.remote.TotalCalls())
}

func TestStore_SoftFailures(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("connection reset")

	t.Run("Read", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.store.Write(ctx, addr("a.json"), file.TypeJSON, file.JSON{Value: map[string]any{}})
		require.NoError(t, err)
		f.remote.Fail(transport.OpGet, boom)

		read, err := f.store.Read(ctx, addr("a.json"))
		require.NoError(t, err)
		assert.Nil(t, read)
	})

	t.Run("ReadCorruptPayload", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.store.Write(ctx, addr("a.json"), file.TypeJSON, file.JSON{Value: map[string]any{}})
		require.NoError(t, err)
		require.NoError(t, f.remote.Put(ctx, "srv/doc1/a.json", []byte("{")))

		read, err := f.store.Read(ctx, addr("a.json"))
		require.NoError(t, err)
		assert.Nil(t, read)
	})

	t.Run("Write", func(t *testing.T) {
		f := newFixture(t)
		f.remote.Fail(transport.OpPut, boom)

		written, err := f.store.Write(ctx, addr("a.json"), file.TypeJSON, file.JSON{Value: map[string]any{}})
		require.NoError(t, err)
		assert.Nil(t, written)
	})

	t.Run("Unreachable", func(t *testing.T) {
		f := newFixture(t)
		f.remote.Fail(transport.OpList, boom)

		read, err := f.store.Read(ctx, file.RootAddress("doc1"))
		require.NoError(t, err)
		assert.Nil(t, read)
	})
}

func TestRemoveStatus_String(t *testing.T) {
	assert.Equal(t, "skipped", RemoveSkipped.String())
	assert.Equal(t, "removed", Removed.String())
	assert.Equal(t, "failed", RemoveFailed.String())
}
