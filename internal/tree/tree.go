package tree

import (
	"fmt"
	"sync"

	"github.com/agentic-research/arbor/internal/entry"
)

// Tree guards a root folder with a single RW lock: any number of readers or
// exactly one writer at a time. entry.Folder itself is not synchronized.
type Tree struct {
	mu   sync.RWMutex
	root *entry.Folder
}

func New(root *entry.Folder) *Tree {
	return &Tree{root: root}
}

// View runs fn under the read lock. fn must not mutate the tree.
func (t *Tree) View(fn func(root *entry.Folder) error) error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return fn(t.root)
}

// Update runs fn under the write lock.
func (t *Tree) Update(fn func(root *entry.Folder) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fn(t.root)
}

// Snapshot returns a deep copy of the current root.
func (t *Tree) Snapshot() *entry.Folder {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.root.CloneFolder()
}

// Swap atomically replaces the root and returns the previous one.
func (t *Tree) Swap(root *entry.Folder) *entry.Folder {
	t.mu.Lock()
	defer t.mu.Unlock()
	old := t.root
	t.root = root
	return old
}

// Lookup resolves p and returns a clone of the entry, so the caller never
// holds a reference into the locked tree.
func (t *Tree) Lookup(p string) (entry.Entry, error) {
	var out entry.Entry
	err := t.View(func(root *entry.Folder) error {
		e, err := Lookup(root, p)
		if err != nil {
			return err
		}
		out = e.Clone()
		return nil
	})
	return out, err
}

// Create inserts e under its own name in the folder at dir. Unlike
// Folder.InsertChild it refuses to replace an existing child.
func (t *Tree) Create(dir string, e entry.Entry) error {
	return t.Update(func(root *entry.Folder) error {
		parent, err := LookupFolder(root, dir)
		if err != nil {
			return err
		}
		if _, taken := parent.Child(e.Name()); taken {
			return fmt.Errorf("create %q in %q: %w", e.Name(), dir, entry.ErrExists)
		}
		parent.InsertChild(e)
		return nil
	})
}

// Put inserts e into the folder at dir, replacing any same-named child.
func (t *Tree) Put(dir string, e entry.Entry) error {
	return t.Update(func(root *entry.Folder) error {
		return Put(root, dir, e)
	})
}

func (t *Tree) MkdirAll(p string) error {
	return t.Update(func(root *entry.Folder) error {
		_, err := MkdirAll(root, p)
		return err
	})
}

func (t *Tree) Remove(p string) error {
	return t.Update(func(root *entry.Folder) error {
		return Remove(root, p)
	})
}

func (t *Tree) Move(from, to string) error {
	return t.Update(func(root *entry.Folder) error {
		return Move(root, from, to)
	})
}
