package testing

import (
	"context"
	"sort"
	"testing"

	"github.com/marmos91/dittodocs/pkg/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TransportTestSuite is the contract test suite for Transport
// implementations. It tests the interface contract, not implementation
// details, so every backend (memory, SFTP, S3, BadgerDB) is held to the same
// semantics.
//
// Usage:
//
//	func TestMyTransport(t *testing.T) {
//	    suite := &testing.TransportTestSuite{
//	        NewTransport: func(t *testing.T) transport.Transport {
//	            return mytransport.New()
//	        },
//	    }
//	    suite.Run(t)
//	}
type TransportTestSuite struct {
	// NewTransport creates a fresh, empty session for each test. The
	// suite closes it when the test ends.
	NewTransport func(t *testing.T) transport.Transport
}

// Run executes all tests in the suite.
func (suite *TransportTestSuite) Run(t *testing.T) {
	t.Run("PutGet", suite.testPutGet)
	t.Run("PutOverwrite", suite.testPutOverwrite)
	t.Run("GetNotFound", suite.testGetNotFound)
	t.Run("MkdirRecursive", suite.testMkdirRecursive)
	t.Run("MkdirIdempotent", suite.testMkdirIdempotent)
	t.Run("Stat", suite.testStat)
	t.Run("List", suite.testList)
	t.Run("ListErrors", suite.testListErrors)
	t.Run("Remove", suite.testRemove)
	t.Run("RemoveAll", suite.testRemoveAll)
	t.Run("Ping", suite.testPing)
	t.Run("Closed", suite.testClosed)
}

func (suite *TransportTestSuite) open(t *testing.T) transport.Transport {
	t.Helper()
	tr := suite.NewTransport(t)
	t.Cleanup(func() { _ = tr.Close() })
	return tr
}

func ctx() context.Context {
	return context.Background()
}

func mustMkdir(t *testing.T, tr transport.Transport, p string) {
	t.Helper()
	require.NoError(t, tr.Mkdir(ctx(), p, true), "Mkdir %s should succeed", p)
}

func mustPut(t *testing.T, tr transport.Transport, p string, data string) {
	t.Helper()
	require.NoError(t, tr.Put(ctx(), p, []byte(data)), "Put %s should succeed", p)
}

func names(entries []transport.Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Name)
	}
	sort.Strings(out)
	return out
}

// ============================================================================
// Get / Put
// ============================================================================

func (suite *TransportTestSuite) testPutGet(t *testing.T) {
	tr := suite.open(t)
	mustMkdir(t, tr, "doc")

	mustPut(t, tr, "doc/a.json", `{"v":1}`)
	mustPut(t, tr, "doc/a.json.meta", `{"type":"json"}`)

	data, err := tr.Get(ctx(), "doc/a.json")
	require.NoError(t, err)
	assert.Equal(t, `{"v":1}`, string(data))

	data, err = tr.Get(ctx(), "/doc/a.json.meta")
	require.NoError(t, err)
	assert.Equal(t, `{"type":"json"}`, string(data))
}

func (suite *TransportTestSuite) testPutOverwrite(t *testing.T) {
	tr := suite.open(t)
	mustMkdir(t, tr, "doc")

	mustPut(t, tr, "doc/a.json", `{"v":1}`)
	mustPut(t, tr, "doc/a.json", `{"v":2,"more":"data that is longer"}`)

	data, err := tr.Get(ctx(), "doc/a.json")
	require.NoError(t, err)
	assert.Equal(t, `{"v":2,"more":"data that is longer"}`, string(data))
}

func (suite *TransportTestSuite) testGetNotFound(t *testing.T) {
	tr := suite.open(t)

	_, err := tr.Get(ctx(), "doc/missing.json")
	require.Error(t, err)
	assert.ErrorIs(t, err, transport.ErrNotFound)
}

// ============================================================================
// Directories
// ============================================================================

func (suite *TransportTestSuite) testMkdirRecursive(t *testing.T) {
	tr := suite.open(t)
	mustMkdir(t, tr, "doc/a/b/c")

	for _, p := range []string{"doc", "doc/a", "doc/a/b", "doc/a/b/c"} {
		entry, err := tr.Stat(ctx(), p)
		require.NoError(t, err, p)
		assert.True(t, entry.IsDir, p)
	}
}

func (suite *TransportTestSuite) testMkdirIdempotent(t *testing.T) {
	tr := suite.open(t)
	mustMkdir(t, tr, "doc/sub")
	mustPut(t, tr, "doc/sub/x.json", `{}`)

	require.NoError(t, tr.Mkdir(ctx(), "doc/sub", true))
	require.NoError(t, tr.Mkdir(ctx(), "doc/sub", false))

	// Existing content survives.
	data, err := tr.Get(ctx(), "doc/sub/x.json")
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(data))
}

func (suite *TransportTestSuite) testStat(t *testing.T) {
	tr := suite.open(t)
	mustMkdir(t, tr, "doc")
	mustPut(t, tr, "doc/page.page", `{"title":"T"}`)

	entry, err := tr.Stat(ctx(), "doc/page.page")
	require.NoError(t, err)
	assert.Equal(t, "page.page", entry.Name)
	assert.False(t, entry.IsDir)
	assert.Equal(t, int64(len(`{"title":"T"}`)), entry.Size)

	entry, err = tr.Stat(ctx(), "doc/")
	require.NoError(t, err)
	assert.True(t, entry.IsDir)

	_, err = tr.Stat(ctx(), "doc/missing")
	assert.ErrorIs(t, err, transport.ErrNotFound)
}

func (suite *TransportTestSuite) testList(t *testing.T) {
	tr := suite.open(t)
	mustMkdir(t, tr, "doc/sub/deep")
	mustMkdir(t, tr, "doc/empty")
	mustPut(t, tr, "doc/a.json", `{}`)
	mustPut(t, tr, "doc/a.json.meta", `{}`)
	mustPut(t, tr, "doc/sub/b.json", `{}`)
	mustPut(t, tr, "doc/sub/deep/c.json", `{}`)

	entries, err := tr.List(ctx(), "doc")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.json", "a.json.meta", "empty", "sub"}, names(entries))

	for _, e := range entries {
		switch e.Name {
		case "sub", "empty":
			assert.True(t, e.IsDir, e.Name)
		default:
			assert.False(t, e.IsDir, e.Name)
		}
	}

	entries, err = tr.List(ctx(), "doc/sub/")
	require.NoError(t, err)
	assert.Equal(t, []string{"b.json", "deep"}, names(entries))

	entries, err = tr.List(ctx(), "doc/empty")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func (suite *TransportTestSuite) testListErrors(t *testing.T) {
	tr := suite.open(t)
	mustMkdir(t, tr, "doc")
	mustPut(t, tr, "doc/a.json", `{}`)

	_, err := tr.List(ctx(), "doc/missing")
	assert.ErrorIs(t, err, transport.ErrNotFound)

	_, err = tr.List(ctx(), "doc/a.json")
	assert.ErrorIs(t, err, transport.ErrNotDirectory)
}

// ============================================================================
// Removal
// ============================================================================

func (suite *TransportTestSuite) testRemove(t *testing.T) {
	tr := suite.open(t)
	mustMkdir(t, tr, "doc")
	mustPut(t, tr, "doc/a.json", `{}`)
	mustPut(t, tr, "doc/b.json", `{}`)

	require.NoError(t, tr.Remove(ctx(), "doc/a.json"))

	_, err := tr.Get(ctx(), "doc/a.json")
	assert.ErrorIs(t, err, transport.ErrNotFound)

	// Siblings are untouched.
	_, err = tr.Get(ctx(), "doc/b.json")
	assert.NoError(t, err)

	err = tr.Remove(ctx(), "doc/a.json")
	assert.ErrorIs(t, err, transport.ErrNotFound)
}

func (suite *TransportTestSuite) testRemoveAll(t *testing.T) {
	tr := suite.open(t)
	mustMkdir(t, tr, "doc/sub/deep")
	mustPut(t, tr, "doc/sub/.meta", `{}`)
	mustPut(t, tr, "doc/sub/a.json", `{}`)
	mustPut(t, tr, "doc/sub/deep/b.json", `{}`)
	mustPut(t, tr, "doc/subling.json", `{}`)

	require.NoError(t, tr.RemoveAll(ctx(), "doc/sub"))

	_, err := tr.Stat(ctx(), "doc/sub")
	assert.ErrorIs(t, err, transport.ErrNotFound)
	_, err = tr.Get(ctx(), "doc/sub/deep/b.json")
	assert.ErrorIs(t, err, transport.ErrNotFound)

	// A sibling sharing the name prefix survives.
	_, err = tr.Get(ctx(), "doc/subling.json")
	assert.NoError(t, err)

	entries, err := tr.List(ctx(), "doc")
	require.NoError(t, err)
	assert.Equal(t, []string{"subling.json"}, names(entries))

	assert.NoError(t, tr.RemoveAll(ctx(), "doc/never-existed"))
}

// ============================================================================
// Session
// ============================================================================

func (suite *TransportTestSuite) testPing(t *testing.T) {
	tr := suite.open(t)
	assert.NoError(t, tr.Ping(ctx()))
}

func (suite *TransportTestSuite) testClosed(t *testing.T) {
	tr := suite.NewTransport(t)
	require.NoError(t, tr.Close())

	_, err := tr.Get(ctx(), "doc/a.json")
	assert.ErrorIs(t, err, transport.ErrClosed)
	assert.Error(t, tr.Ping(ctx()))
}
