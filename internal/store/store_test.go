package store

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/agentic-research/arbor/internal/entry"
	"github.com/agentic-research/arbor/internal/tree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func newTestTree() *entry.Folder {
	root := entry.NewFolder("root")
	vulns := entry.NewFolder("vulns")
	cve := entry.NewFolder("CVE-2024-1234")
	desc := entry.NewFile("description", []byte("Buffer overflow in example.c\n"))
	desc.SetModTime(time.Unix(1700000000, 42))
	cve.InsertChild(desc)
	cve.InsertChild(entry.NewFile("empty", nil))
	vulns.InsertChild(cve)
	vulns.InsertChild(entry.NewFolder("CVE-2024-5678"))
	root.InsertChild(vulns)
	root.InsertChild(entry.NewSymlink("latest", "vulns/CVE-2024-1234"))
	return root
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "tree.db")
	require.NoError(t, Save(dbPath, newTestTree()))

	_, err := os.Stat(dbPath + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file should be renamed away")

	root, err := Load(dbPath)
	require.NoError(t, err)
	assert.Equal(t, "root", root.Name())
	assert.Equal(t, []string{"latest", "vulns"}, root.ChildNames())

	e, err := tree.Lookup(root, "/vulns/CVE-2024-1234/description")
	require.NoError(t, err)
	f, ok := e.(*entry.File)
	require.True(t, ok, "description is %T", e)
	assert.Equal(t, "Buffer overflow in example.c\n", string(f.Data()))
	assert.True(t, f.ModTime().Equal(time.Unix(1700000000, 42)))

	e, err = tree.Lookup(root, "/vulns/CVE-2024-1234/empty")
	require.NoError(t, err)
	assert.Equal(t, int64(0), e.(*entry.File).Size())

	e, err = tree.Lookup(root, "/latest")
	require.NoError(t, err)
	assert.Equal(t, "vulns/CVE-2024-1234", e.(*entry.Symlink).Target())

	sub, err := tree.LookupFolder(root, "/vulns/CVE-2024-5678")
	require.NoError(t, err)
	assert.True(t, sub.IsEmpty())
}

func TestSaveOverwrites(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "tree.db")
	require.NoError(t, Save(dbPath, newTestTree()))
	require.NoError(t, Save(dbPath, entry.NewFolder("fresh")))

	root, err := Load(dbPath)
	require.NoError(t, err)
	assert.Equal(t, "fresh", root.Name())
	assert.True(t, root.IsEmpty())
}

func TestSavePersistsKeysNotStaleNames(t *testing.T) {
	root := entry.NewFolder("root")
	child := entry.NewFile("a", []byte("x"))
	root.InsertChild(child)
	child.SetName("b") // stale key

	dbPath := filepath.Join(t.TempDir(), "tree.db")
	require.NoError(t, Save(dbPath, root))
	assert.Equal(t, "b", child.Name(), "save must not mutate the live tree")

	loaded, err := Load(dbPath)
	require.NoError(t, err)
	got, ok := loaded.Child("a")
	require.True(t, ok)
	assert.Equal(t, "a", got.Name())
}

func TestLoadAppliesOptions(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "tree.db")
	require.NoError(t, Save(dbPath, newTestTree()))

	var events int
	tracer := entry.TracerFunc(func(string, ...any) { events++ })
	root, err := Load(dbPath, entry.WithTracer(tracer))
	require.NoError(t, err)

	// Loading itself inserts 6 children.
	assert.Equal(t, 6, events)
	sub, err := tree.LookupFolder(root, "/vulns/CVE-2024-5678")
	require.NoError(t, err)
	sub.InsertChild(entry.NewFolder("x"))
	assert.Equal(t, 7, events)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.db"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

// rawDB creates a nodes table and inserts the given rows verbatim.
func rawDB(t *testing.T, rows ...[]any) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "raw.db")
	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	_, err = db.Exec(schema)
	require.NoError(t, err)
	for _, r := range rows {
		_, err := db.Exec("INSERT INTO nodes (id, parent_id, name, kind, size, mtime, record) VALUES (?, ?, ?, ?, ?, ?, ?)", r...)
		require.NoError(t, err)
	}
	return dbPath
}

func TestLoadRejectsCorruptRows(t *testing.T) {
	cases := map[string][][]any{
		"empty": nil,
		"orphan": {
			{0, nil, "root", "folder", 0, 0, nil},
			{1, 7, "lost", "folder", 0, 0, nil},
		},
		"child before parent": {
			{0, nil, "root", "folder", 0, 0, nil},
			{1, 2, "early", "file", 0, 0, nil},
			{2, 0, "late", "folder", 0, 0, nil},
		},
		"second root": {
			{0, nil, "root", "folder", 0, 0, nil},
			{1, nil, "other", "folder", 0, 0, nil},
		},
		"file parent": {
			{0, nil, "root", "folder", 0, 0, nil},
			{1, 0, "f", "file", 1, 0, []byte("x")},
			{2, 1, "g", "file", 0, 0, nil},
		},
		"file root": {
			{0, nil, "root", "file", 0, 0, nil},
		},
		"size mismatch": {
			{0, nil, "root", "folder", 0, 0, nil},
			{1, 0, "f", "file", 99, 0, []byte("x")},
		},
	}
	for name, rows := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(rawDB(t, rows...))
			assert.ErrorIs(t, err, ErrCorrupt)
		})
	}
}

func TestLoadUnknownKind(t *testing.T) {
	dbPath := rawDB(t,
		[]any{0, nil, "root", "folder", 0, 0, nil},
		[]any{1, 0, "dev", "blockdevice", 0, 0, nil},
	)
	_, err := Load(dbPath)
	assert.ErrorIs(t, err, ErrUnknownKind)
}
