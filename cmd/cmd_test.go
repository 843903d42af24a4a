package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/arbor/internal/entry"
	"github.com/agentic-research/arbor/internal/tree"
)

const vulnsJSON = `{
	"vulns": [
		{"id": "CVE-2024-1234", "severity": "CRITICAL"},
		{"id": "CVE-2024-5678", "severity": "LOW"}
	]
}`

func run(t *testing.T, db string, args ...string) (string, error) {
	t.Helper()
	return runCtx(t, context.Background(), db, args...)
}

func runCtx(t *testing.T, ctx context.Context, db string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--db", db}, args...))
	err := root.ExecuteContext(ctx)
	return out.String(), err
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestImportAndLs(t *testing.T) {
	db := filepath.Join(t.TempDir(), "nested", "tree.db")
	src := writeTemp(t, "vulns.json", vulnsJSON)

	out, err := run(t, db, "import", src)
	require.NoError(t, err)
	assert.Equal(t, "Imported "+src+" as /vulns\n", out)

	out, err = run(t, db, "ls")
	require.NoError(t, err)
	assert.Equal(t, "d          vulns\n", out)

	out, err = run(t, db, "ls", "/vulns/vulns")
	require.NoError(t, err)
	assert.Equal(t, "d          0\nd          1\n", out)

	out, err = run(t, db, "ls", "/vulns/vulns/0/severity")
	require.NoError(t, err)
	assert.Equal(t, "f        8 severity\n", out)
}

func TestImportSelectorAndPlacement(t *testing.T) {
	db := filepath.Join(t.TempDir(), "tree.db")
	src := writeTemp(t, "vulns.json", vulnsJSON)

	_, err := run(t, db, "import", src, "--selector", "$.vulns[*].id", "--name", "ids", "--at", "/feeds/nvd")
	require.NoError(t, err)

	out, err := run(t, db, "ls", "/feeds/nvd/ids")
	require.NoError(t, err)
	assert.Equal(t, "f       13 0\nf       13 1\n", out)
}

func TestImportErrors(t *testing.T) {
	db := filepath.Join(t.TempDir(), "tree.db")

	_, err := run(t, db, "import", filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	_, err = run(t, db, "import", writeTemp(t, "bad.json", `{"a": `))
	assert.Error(t, err)

	src := writeTemp(t, "vulns.json", vulnsJSON)
	for _, name := range []string{"a/b", "..", "."} {
		_, err = run(t, db, "import", src, "--name", name)
		assert.ErrorIs(t, err, tree.ErrInvalidPath, name)
	}
	_, err = os.Stat(db)
	assert.ErrorIs(t, err, os.ErrNotExist, "rejected imports write nothing")

	_, err = run(t, db, "import", "--document", writeTemp(t, "doc.json", `{"version": "v0", "root": {"name": "r", "kind": "folder"}}`))
	assert.ErrorContains(t, err, "document version")
}

func TestEditAndTree(t *testing.T) {
	db := filepath.Join(t.TempDir(), "tree.db")
	local := writeTemp(t, "x.txt", "hello")

	_, err := run(t, db, "mkdir", "/a/b")
	require.NoError(t, err)
	_, err = run(t, db, "put", "/a/x.txt", local)
	require.NoError(t, err)
	_, err = run(t, db, "put", "--symlink", "/l", "a/x.txt")
	require.NoError(t, err)

	out, err := run(t, db, "tree")
	require.NoError(t, err)
	assert.Equal(t, "root/\n  a/\n    b/\n    x.txt\n  l -> a/x.txt\n", out)

	out, err = run(t, db, "tree", "-L", "1")
	require.NoError(t, err)
	assert.Equal(t, "root/\n  a/\n  l -> a/x.txt\n", out)

	out, err = run(t, db, "ls", "/a")
	require.NoError(t, err)
	assert.Equal(t, "d          b\nf        5 x.txt\n", out)

	_, err = run(t, db, "mv", "/a/x.txt", "/a/b/y.txt")
	require.NoError(t, err)
	out, err = run(t, db, "tree", "/a")
	require.NoError(t, err)
	assert.Equal(t, "a/\n  b/\n    y.txt\n", out)

	_, err = run(t, db, "rm", "/a")
	assert.ErrorContains(t, err, "not empty")
	_, err = run(t, db, "rm", "-r", "/a")
	require.NoError(t, err)

	out, err = run(t, db, "ls")
	require.NoError(t, err)
	assert.Equal(t, "l          l -> a/x.txt\n", out)
}

func TestEditErrors(t *testing.T) {
	db := filepath.Join(t.TempDir(), "tree.db")

	_, err := run(t, db, "ls", "/missing")
	assert.ErrorIs(t, err, entry.ErrNotFound)

	_, err = run(t, db, "put", "/", writeTemp(t, "x", "x"))
	assert.ErrorIs(t, err, tree.ErrInvalidPath)

	_, err = run(t, db, "mkdir", "/a")
	require.NoError(t, err)
	_, err = run(t, db, "mkdir", "/b")
	require.NoError(t, err)
	_, err = run(t, db, "mv", "/a", "/b")
	assert.ErrorIs(t, err, entry.ErrExists)
	_, err = run(t, db, "mv", "/a", "/a/inner")
	assert.ErrorIs(t, err, tree.ErrInvalidPath)
	_, err = run(t, db, "rm", "/nope")
	assert.ErrorIs(t, err, entry.ErrNotFound)
}

func TestExportImportDocument(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "a.db")
	_, err := run(t, db, "import", writeTemp(t, "vulns.json", vulnsJSON))
	require.NoError(t, err)
	_, err = run(t, db, "put", "--symlink", "/latest", "vulns/vulns/1")
	require.NoError(t, err)

	doc, err := run(t, db, "export")
	require.NoError(t, err)
	assert.Contains(t, doc, `"version": "v1alpha1"`)

	docPath := filepath.Join(dir, "doc.json")
	require.NoError(t, os.WriteFile(docPath, []byte(doc), 0o644))

	other := filepath.Join(dir, "b.db")
	_, err = run(t, other, "import", "--document", docPath)
	require.NoError(t, err)

	want, err := run(t, db, "tree")
	require.NoError(t, err)
	got, err := run(t, other, "tree")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	sub, err := run(t, db, "export", "/vulns/vulns/0")
	require.NoError(t, err)
	assert.Contains(t, sub, `"name": "0"`)
	assert.NotContains(t, sub, "latest")
}

func TestServeStopsOnCancel(t *testing.T) {
	db := filepath.Join(t.TempDir(), "tree.db")
	_, err := run(t, db, "mkdir", "/a")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out, err := runCtx(t, ctx, db, "serve", "--writable")
	require.NoError(t, err)
	assert.Contains(t, out, "Serving NFS on port")
	assert.NotContains(t, out, "Saved changes")
}
