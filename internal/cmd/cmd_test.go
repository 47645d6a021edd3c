package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/marmos91/dittodocs/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
logging:
  level: ERROR
  output: stderr
remote:
  type: memory
store:
  root: upload
  timeout: 5s
documents:
  default_title: Untitled
`

// cli runs commands against one memory-backed runtime shared by every
// invocation of a test.
type cli struct {
	t          *testing.T
	configPath string
	rt         *config.Runtime
}

func newCLI(t *testing.T) *cli {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testConfig), 0600))

	c := &cli{t: t, configPath: path}
	t.Cleanup(func() {
		if c.rt != nil {
			_ = c.rt.Close(context.Background())
		}
	})
	return c
}

func (c *cli) factory(ctx context.Context, cfg *config.Config) (*config.Runtime, func(), error) {
	if c.rt == nil {
		rt, err := config.InitializeRuntime(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		c.rt = rt
	}
	return c.rt, func() {}, nil
}

// exec runs the command line and returns its standard output.
func (c *cli) exec(args ...string) (string, error) {
	c.t.Helper()

	root := newRootCmd(c.factory)
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(append([]string{"--config", c.configPath}, args...))

	err := root.ExecuteContext(context.Background())
	return stdout.String(), err
}

func (c *cli) mustJSON(args ...string) map[string]any {
	c.t.Helper()

	out, err := c.exec(args...)
	require.NoError(c.t, err, "dittodocs %s", strings.Join(args, " "))

	var v map[string]any
	require.NoError(c.t, json.Unmarshal([]byte(out), &v), "output: %s", out)
	return v
}

func TestWriteReadRemove(t *testing.T) {
	c := newCLI(t)

	dir := c.mustJSON("write", "doc1", "notes/", "--type", "directory")
	assert.Equal(t, "directory", dir["type"])

	written := c.mustJSON("write", "doc1", "notes/settings.json", "--type", "json", "--data", `{"theme":"dark"}`)
	assert.Equal(t, "json", written["type"])

	read := c.mustJSON("read", "doc1", "notes/settings.json")
	assert.Equal(t, map[string]any{"theme": "dark"}, read["data"])

	listing := c.mustJSON("read", "doc1", "notes/")
	assert.Equal(t, []any{"settings.json"}, listing["data"])

	removed := c.mustJSON("rm", "doc1", "notes/settings.json")
	assert.Equal(t, "removed", removed["status"])

	out, err := c.exec("read", "doc1", "notes/settings.json")
	require.NoError(t, err)
	assert.Equal(t, "null", strings.TrimSpace(out))
}

func TestWrite_InvalidArguments(t *testing.T) {
	c := newCLI(t)

	_, err := c.exec("write", "doc1", "a.json", "--type", "json")
	assert.ErrorContains(t, err, "--data or --file")

	_, err = c.exec("write", "doc1", "a.json", "--type", "json", "--data", "{}", "--file", "x")
	assert.ErrorContains(t, err, "mutually exclusive")

	_, err = c.exec("write", "doc1", "a.json", "--type", "blob", "--data", "{}")
	assert.Error(t, err)

	_, err = c.exec("read", ".hidden")
	assert.Error(t, err)
}

func TestMetaGetSet(t *testing.T) {
	c := newCLI(t)

	c.mustJSON("write", "doc1", "notes/", "--type", "directory")
	c.mustJSON("write", "doc1", "notes/a.json", "--type", "json", "--data", `[1,2]`)

	saved := c.mustJSON("meta", "set", "doc1", "notes/a.json", "--type", "json", "--extra", `{"pinned":true}`)
	assert.Equal(t, map[string]any{"pinned": true}, saved["extra"])

	got := c.mustJSON("meta", "get", "doc1", "notes/a.json", "--source")
	assert.Equal(t, "sidecar", got["source"])
	meta := got["meta"].(map[string]any)
	assert.Equal(t, "json", meta["type"])

	_, err := c.exec("meta", "set", "doc1", "notes/a.json", "--type", "json", "--extra", "{")
	assert.ErrorContains(t, err, "not valid JSON")
}

func TestDocCreate(t *testing.T) {
	c := newCLI(t)

	created := c.mustJSON("doc", "create")
	id, ok := created["id"].(string)
	require.True(t, ok)
	require.NotEmpty(t, id)

	home := c.mustJSON("page", "read", id)
	data := home["data"].(map[string]any)
	assert.Equal(t, "Untitled", data["title"])

	deleted := c.mustJSON("doc", "delete", id)
	assert.Equal(t, "removed", deleted["status"])
}

func TestPageWrite(t *testing.T) {
	c := newCLI(t)

	c.mustJSON("write", "doc1", "guides/", "--type", "directory")
	written := c.mustJSON("page", "write", "doc1", "guides/intro.page", "--title", "Intro")
	assert.Equal(t, "page", written["type"])

	_, err := c.exec("page", "write", "doc1", "guides/intro.page", "--title", "Intro", "--content", "not json")
	assert.ErrorContains(t, err, "not valid JSON")
}

func TestPageHref(t *testing.T) {
	root := newRootCmd(func(context.Context, *config.Config) (*config.Runtime, func(), error) {
		t.Fatal("href must not build a runtime")
		return nil, nil, nil
	})

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"--config", "/does/not/exist.yaml", "page", "href", "doc", "docs/guide.page", "--edit"})
	require.NoError(t, root.Execute())
	assert.Equal(t, "/documents/d/doc/edit/docs/guide\n", out.String())

	root.SetArgs([]string{"page", "href", "doc", "data.json"})
	assert.ErrorContains(t, root.Execute(), "not a page address")
}

func TestSweep(t *testing.T) {
	c := newCLI(t)

	c.mustJSON("write", "doc1", "notes/", "--type", "directory")
	out, err := c.exec("sweep", "doc1", "--dry-run")
	require.NoError(t, err)
	assert.Empty(t, strings.TrimSpace(out))

	_, err = c.exec("sweep", "../etc")
	assert.Error(t, err)
}

func TestInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"init", "--path", path})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), path)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sftp", cfg.Remote.Type)

	root = NewRootCmd()
	root.SetArgs([]string{"init", "--path", path})
	assert.ErrorContains(t, root.Execute(), "already exists")
}

func TestServe_StopsWhenContextEnds(t *testing.T) {
	c := newCLI(t)
	_, err := c.exec("read", "doc1")
	require.NoError(t, err)
	require.NotNil(t, c.rt)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.NoError(t, serve(ctx, c.rt, time.Second))
}
