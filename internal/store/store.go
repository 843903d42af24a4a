// Package store persists arbor trees to a single-file SQLite database.
//
// Each entry becomes one row of the nodes table. Ids are assigned in
// depth-first order starting at 0 for the root, so a parent row always has a
// smaller id than its children and a tree can be rebuilt in one ordered scan.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"math"
	"os"
	"time"

	"github.com/RoaringBitmap/roaring"
	"github.com/agentic-research/arbor/api"
	"github.com/agentic-research/arbor/internal/entry"
	_ "modernc.org/sqlite"
)

var (
	ErrUnknownKind = errors.New("unknown entry kind")
	ErrCorrupt     = errors.New("corrupt tree database")
)

const schema = `
	CREATE TABLE IF NOT EXISTS nodes (
		id INTEGER PRIMARY KEY,
		parent_id INTEGER,
		name TEXT NOT NULL,
		kind TEXT NOT NULL,
		size INTEGER DEFAULT 0,
		mtime INTEGER NOT NULL,
		record BLOB
	);
	CREATE INDEX IF NOT EXISTS idx_parent_name ON nodes(parent_id, name);
`

// Save writes root and its subtree to path, replacing any existing file.
// The database is built next to path and renamed into place on success.
func Save(path string, root *entry.Folder) error {
	tmp := path + ".tmp"
	_ = os.Remove(tmp) // stale leftover from a failed save

	if err := writeDB(tmp, root); err != nil {
		if rerr := os.Remove(tmp); rerr != nil && !os.IsNotExist(rerr) {
			log.Printf("store: remove %s: %v", tmp, rerr)
		}
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}

func writeDB(dbPath string, root *entry.Folder) (err error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", dbPath, cerr)
		}
	}()

	// journal_mode=DELETE: once committed the file is self-contained and
	// safe to rename.
	if _, err := db.Exec("PRAGMA journal_mode=DELETE"); err != nil {
		return fmt.Errorf("set journal mode: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer func() { _ = tx.Rollback() }() // no-op once committed

	stmt, err := tx.Prepare(`
		INSERT INTO nodes (id, parent_id, name, kind, size, mtime, record)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare node insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	w := &rowWriter{stmt: stmt}
	if err := w.write(root, nil); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}

type rowWriter struct {
	stmt   *sql.Stmt
	nextID int64
}

func (w *rowWriter) write(e entry.Entry, parentID *int64) error {
	id := w.nextID
	w.nextID++
	if id > math.MaxUint32 {
		return fmt.Errorf("save: tree exceeds %d entries", uint64(math.MaxUint32)+1)
	}

	f, isFolder := e.(*entry.Folder)
	kind := api.KindFolder
	var rec Record
	if !isFolder {
		var err error
		kind, rec, err = encode(e)
		if err != nil {
			return err
		}
	}

	if _, err := w.stmt.Exec(id, parentID, e.Name(), kind, rec.Size, unixNano(rec.ModTime), rec.Data); err != nil {
		return fmt.Errorf("insert %q: %w", e.Name(), err)
	}

	if !isFolder {
		return nil
	}
	// Keys, not child names, are what the tree resolves by; persist the key.
	for _, name := range f.ChildNames() {
		child, _ := f.Child(name)
		if child.Name() != name {
			child = child.Clone()
			child.SetName(name)
		}
		if err := w.write(child, &id); err != nil {
			return err
		}
	}
	return nil
}

// Load rebuilds the tree stored at path. opts are applied to every folder
// created, which is how callers inject a tracer.
func Load(path string, opts ...entry.Option) (*entry.Folder, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	defer func() { _ = db.Close() }() // read-only use

	rows, err := db.Query("SELECT id, parent_id, name, kind, size, mtime, record FROM nodes ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query nodes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var root *entry.Folder
	attached := roaring.New() // ids already linked into the tree
	folders := make(map[uint32]*entry.Folder)
	for rows.Next() {
		var (
			id       int64
			parentID sql.NullInt64
			name     string
			kind     string
			size     int64
			mtime    int64
			record   []byte
		)
		if err := rows.Scan(&id, &parentID, &name, &kind, &size, &mtime, &record); err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		if id < 0 || id > math.MaxUint32 {
			return nil, fmt.Errorf("node id %d out of range: %w", id, ErrCorrupt)
		}
		uid := uint32(id)
		if attached.Contains(uid) {
			return nil, fmt.Errorf("duplicate node id %d: %w", id, ErrCorrupt)
		}

		if !parentID.Valid {
			if root != nil {
				return nil, fmt.Errorf("second root %q (id %d): %w", name, id, ErrCorrupt)
			}
			if kind != api.KindFolder {
				return nil, fmt.Errorf("root %q is a %s: %w", name, kind, ErrCorrupt)
			}
			root = entry.NewFolder(name, opts...)
			folders[uid] = root
			attached.Add(uid)
			continue
		}

		pid := parentID.Int64
		if pid < 0 || pid > math.MaxUint32 || !attached.Contains(uint32(pid)) {
			return nil, fmt.Errorf("node %q (id %d): parent %d not loaded: %w", name, id, pid, ErrCorrupt)
		}
		parent, ok := folders[uint32(pid)]
		if !ok {
			return nil, fmt.Errorf("node %q (id %d): parent %d is not a folder: %w", name, id, pid, ErrCorrupt)
		}

		var child entry.Entry
		if kind == api.KindFolder {
			f := entry.NewFolder(name, opts...)
			folders[uid] = f
			child = f
		} else {
			child, err = decode(kind, name, Record{Size: size, ModTime: fromUnixNano(mtime), Data: record})
			if err != nil {
				return nil, err
			}
		}
		parent.InsertChild(child)
		attached.Add(uid)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate nodes: %w", err)
	}
	if root == nil {
		return nil, fmt.Errorf("%s: no root node: %w", path, ErrCorrupt)
	}
	return root, nil
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}
